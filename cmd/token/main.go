// Command token mints an access token for operators and internal
// services, signed with JWT_SECRET.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/example/meatshop-orders/internal/auth"
	"github.com/example/meatshop-orders/internal/config"
)

func main() {
	userID := flag.String("user", "", "user id placed in the token")
	email := flag.String("email", "", "email placed in the token")
	role := flag.String("role", auth.RoleService, "customer, admin or service")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	cfg := config.Load()
	if len(cfg.JWTSecret) < 32 {
		fmt.Fprintln(os.Stderr, "JWT_SECRET must be set and at least 32 characters long")
		os.Exit(2)
	}
	if *userID == "" {
		fmt.Fprintln(os.Stderr, "-user is required")
		os.Exit(2)
	}

	svc := auth.NewJWTService(cfg.JWTSecret, cfg.JWTIssuer, *ttl)
	token, expiresAt, err := svc.GenerateAccessToken(*userID, *email, *role)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "expires %s\n", expiresAt.Format(time.RFC3339))
	fmt.Println(token)
}
