//go:build property

package proctor

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestScorerProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	properties.Property("credibility is max(0, 100-15n)", prop.ForAll(
		func(n int) bool {
			got := CredibilityScore(n)
			want := 100 - 15*n
			if want < 0 {
				want = 0
			}
			return got == want
		},
		gen.IntRange(0, 1000),
	))

	properties.Property("credibility never increases with more anomalies", prop.ForAll(
		func(n int) bool {
			return CredibilityScore(n+1) <= CredibilityScore(n)
		},
		gen.IntRange(0, 1000),
	))

	properties.Property("competency stays within 0..100", prop.ForAll(
		func(total, correct int) bool {
			correct = correct % (total + 1)
			s := CompetencyScore(correct, total)
			return s >= 0 && s <= 100
		},
		gen.IntRange(1, 500),
		gen.IntRange(0, 500),
	))

	properties.Property("competency is the nearest integer with ties up", prop.ForAll(
		func(total, correct int) bool {
			correct = correct % (total + 1)
			s := CompetencyScore(correct, total)
			// s-0.5 <= 100c/t < s+0.5, scaled by 2t.
			exact := 200 * correct
			return (2*s-1)*total <= exact && exact < (2*s+1)*total
		},
		gen.IntRange(1, 500),
		gen.IntRange(0, 500),
	))

	properties.TestingRun(t)
}
