// cmd/gentoken/main.go — Signs a development JWT for curl testing.
// Usage: go run cmd/gentoken/main.go -tenant <uuid> -role supervisor
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/Bushels/PipeVault-sub014/internal/middleware"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func main() {
	tenant := flag.String("tenant", "", "tenant UUID (default: random)")
	role := flag.String("role", "operator", "operator | supervisor | admin")
	hours := flag.Int("hours", 24, "token lifetime in hours")
	flag.Parse()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "dev-secret-change-me"
	}

	tenantID := *tenant
	if tenantID == "" {
		tenantID = uuid.NewString()
	} else if _, err := uuid.Parse(tenantID); err != nil {
		log.Fatalf("invalid tenant UUID: %v", err)
	}

	claims := middleware.JWTClaims{
		TenantID: tenantID,
		Role:     *role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Duration(*hours) * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		log.Fatalf("sign error: %v", err)
	}
	fmt.Printf("tenant: %s\nrole:   %s\n\n%s\n", tenantID, *role, token)
}
