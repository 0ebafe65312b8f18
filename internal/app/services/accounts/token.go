package accounts

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tradevault/platform/internal/app/domain/account"
)

// tokenClaims is the JWT payload issued at login. The auth middleware parses
// the same shape.
type tokenClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role,omitempty"`
	Tier   string `json:"tier,omitempty"`
	jwt.RegisteredClaims
}

func (s *Service) issueToken(acct account.Account) (string, error) {
	now := time.Now().UTC()
	claims := tokenClaims{
		UserID: acct.ID,
		Email:  acct.Email,
		Role:   string(acct.Role),
		Tier:   string(acct.Tier),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   acct.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
