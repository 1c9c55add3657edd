// Command devtoken mints an access token for local testing without a login.
// Usage: go run ./cmd/devtoken -role staff -username clerk
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"stockledger/internal/config"
	"stockledger/internal/model"
	"stockledger/internal/service"

	"github.com/google/uuid"
)

func main() {
	role := flag.String("role", model.RoleAdmin, "customer, staff, admin or gateway")
	username := flag.String("username", "dev", "username claim")
	userID := flag.String("user-id", "", "subject id (random when empty)")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	switch *role {
	case model.RoleCustomer, model.RoleStaff, model.RoleAdmin, model.RoleGateway:
	default:
		fmt.Fprintf(os.Stderr, "unknown role %q\n", *role)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}
	if cfg.JWTSecret == "" {
		fmt.Fprintln(os.Stderr, "JWT_SECRET is not set")
		os.Exit(1)
	}

	id := uuid.New()
	if *userID != "" {
		if id, err = uuid.Parse(*userID); err != nil {
			fmt.Fprintln(os.Stderr, "invalid -user-id:", err)
			os.Exit(2)
		}
	}
	acc := &model.Account{ID: id, Username: *username, Role: *role}
	token, err := service.GenerateToken(cfg.JWTSecret, acc, "access", *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, "sign:", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
