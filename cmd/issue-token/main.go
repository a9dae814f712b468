package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/service"
)

func main() {
	var (
		tokenType   string
		userID      int
		permissions string
		ttl         time.Duration
	)
	flag.StringVar(&tokenType, "type", "candidate", "Token type: candidate or recruiter")
	flag.IntVar(&userID, "user", 0, "Candidate or recruiter ID")
	flag.StringVar(&permissions, "perm", "", "Comma-separated recruiter permissions, e.g. results:read,proctoring:monitor")
	flag.DurationVar(&ttl, "ttl", 8*time.Hour, "Token lifetime")
	flag.Parse()

	if userID <= 0 {
		fmt.Fprintln(os.Stderr, "Error: -user is required")
		flag.PrintDefaults()
		os.Exit(2)
	}

	tt := service.TokenType(tokenType)
	if tt != service.TokenTypeCandidate && tt != service.TokenTypeRecruiter {
		fmt.Fprintf(os.Stderr, "Error: unknown token type %q\n", tokenType)
		os.Exit(2)
	}

	var perms []string
	if permissions != "" {
		if tt != service.TokenTypeRecruiter {
			fmt.Fprintln(os.Stderr, "Error: permissions only apply to recruiter tokens")
			os.Exit(2)
		}
		for _, p := range strings.Split(permissions, ",") {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			if !model.IsKnownPermission(p) {
				fmt.Fprintf(os.Stderr, "Error: unknown permission %q\n", p)
				os.Exit(2)
			}
			perms = append(perms, p)
		}
	}

	cfg := config.Load()
	token, err := service.NewAuthService(cfg.JWTSecret).IssueToken(tt, userID, perms, ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(token)
}
