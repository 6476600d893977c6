package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/stemsi/exstem-attempts/internal/config"
	"github.com/stemsi/exstem-attempts/internal/service"
)

func main() {
	var (
		userID int64
		ttl    time.Duration
	)
	flag.Int64Var(&userID, "user", 0, "User id to put in the token")
	flag.DurationVar(&ttl, "ttl", 0, "Token lifetime (defaults to JWT_EXPIRY_HOURS)")
	flag.Parse()

	if userID <= 0 {
		fmt.Fprintln(os.Stderr, "Usage: issue-token -user <id> [-ttl 2h]")
		os.Exit(2)
	}

	cfg := config.Load()
	if ttl <= 0 {
		ttl = cfg.JWTExpiry
	}

	token, err := service.NewAuthService(cfg.JWTSecret, ttl).GenerateToken(userID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to sign token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
