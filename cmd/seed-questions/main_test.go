package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSeed(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "questions.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadQuestionsNumbersInFileOrder(t *testing.T) {
	path := writeSeed(t, `[
		{"text": "2 + 2 ?", "options": ["3", "4"], "correct_option_index": 1},
		{"text": "Capitale de la France ?", "options": ["Paris", "Lyon", "Nice"], "correct_option_index": 0}
	]`)

	qs, err := loadQuestions(path)
	require.NoError(t, err)
	require.Len(t, qs, 2)
	assert.Equal(t, 1, qs[0].OrderNum)
	assert.Equal(t, 2, qs[1].OrderNum)
	assert.Equal(t, "Paris", qs[1].Options[qs[1].CorrectOptionIndex])
}

func TestLoadQuestionsRejectsBadEntries(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty", `[]`},
		{"single option", `[{"text": "q", "options": ["a"], "correct_option_index": 0}]`},
		{"index out of range", `[{"text": "q", "options": ["a", "b"], "correct_option_index": 2}]`},
		{"missing text", `[{"options": ["a", "b"], "correct_option_index": 0}]`},
		{"not json", `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadQuestions(writeSeed(t, tt.body))
			assert.Error(t, err)
		})
	}
}
