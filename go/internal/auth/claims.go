package auth

import (
	"context"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Role string

const (
	RoleTeam      Role = "team"
	RoleCommittee Role = "committee"
	RoleAdmin     Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleTeam, RoleCommittee, RoleAdmin:
		return true
	}
	return false
}

// Claims are the JWT claims issued to teams and league officials.
// TeamID is only set for RoleTeam.
type Claims struct {
	TeamID string `json:"team_id,omitempty"`
	Role   Role   `json:"role"`
	jwt.RegisteredClaims
}

// IsOfficial reports whether the caller may run admin operations.
func (c *Claims) IsOfficial() bool {
	return c.Role == RoleCommittee || c.Role == RoleAdmin
}

// Team returns the caller's team id.
func (c *Claims) Team() (uuid.UUID, bool) {
	if c.Role != RoleTeam || c.TeamID == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(c.TeamID)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

type claimsKey struct{}

func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// FromContext returns the claims stored by the interceptor, or nil.
func FromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(claimsKey{}).(*Claims)
	return claims
}
