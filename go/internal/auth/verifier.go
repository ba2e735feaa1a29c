// Package auth verifies HS256 bearer tokens and carries the caller's claims
// through request contexts.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mcdev12/leagueauction/go/internal/auction/auctionerr"
)

const bearerSchema = "Bearer "

type Verifier struct {
	secret []byte
	issuer string
}

func NewVerifier(secret, issuer string) (*Verifier, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	return &Verifier{secret: []byte(secret), issuer: issuer}, nil
}

// Verify parses and validates a raw token string.
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: token has expired", auctionerr.ErrUnauthenticated)
		}
		return nil, fmt.Errorf("%w: invalid token: %v", auctionerr.ErrUnauthenticated, err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("%w: invalid token", auctionerr.ErrUnauthenticated)
	}
	if !claims.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", auctionerr.ErrUnauthenticated, claims.Role)
	}
	if claims.Role == RoleTeam {
		if _, ok := claims.Team(); !ok {
			return nil, fmt.Errorf("%w: team token without a valid team_id", auctionerr.ErrUnauthenticated)
		}
	}
	return claims, nil
}

// VerifyHeader validates an Authorization header value of the form "Bearer <token>".
func (v *Verifier) VerifyHeader(header string) (*Claims, error) {
	if header == "" {
		return nil, fmt.Errorf("%w: authorization header is required", auctionerr.ErrUnauthenticated)
	}
	if !strings.HasPrefix(header, bearerSchema) {
		return nil, fmt.Errorf("%w: authorization header must start with Bearer", auctionerr.ErrUnauthenticated)
	}
	return v.Verify(strings.TrimSpace(header[len(bearerSchema):]))
}

// Issue signs a token for subject. Used by the seed tool and tests.
func (v *Verifier) Issue(subject string, role Role, teamID string, ttl time.Duration, now time.Time) (string, error) {
	claims := Claims{
		TeamID: teamID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
