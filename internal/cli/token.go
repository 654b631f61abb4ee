package cli

import (
	"fmt"
	"time"

	"ride-dispatch/internal/domain/user"
	"ride-dispatch/internal/general/jwt"
)

// GenerateUserToken mints a short-lived JWT for a seeded user.
// Dev/testing convenience only; production tokens come from the auth service.
func GenerateUserToken(secret, userID, roleStr string, ttl time.Duration) (string, jwt.Claims, error) {
	role, err := user.ParseRole(roleStr)
	if err != nil {
		return "", jwt.Claims{}, fmt.Errorf("invalid role %q: %w", roleStr, err)
	}

	mgr := jwt.NewManager(secret, ttl)

	token, claims, err := mgr.Issue(userID, role)
	if err != nil {
		return "", jwt.Claims{}, fmt.Errorf("issue token: %w", err)
	}

	return token, *claims, nil
}
