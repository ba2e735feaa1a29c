package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/mcdev12/leagueauction/go/internal/auction/auctionerr"
)

func TestVerify(t *testing.T) {
	v, err := NewVerifier("s3cret", "leagueauction")
	assert.NoError(t, err)
	now := time.Now()
	teamID := uuid.New()

	t.Run("team token", func(t *testing.T) {
		token, err := v.Issue("user-1", RoleTeam, teamID.String(), time.Hour, now)
		assert.NoError(t, err)

		claims, err := v.VerifyHeader("Bearer " + token)
		assert.NoError(t, err)
		check.Equal(t, "user-1", claims.Subject)
		check.Equal(t, RoleTeam, claims.Role)
		got, ok := claims.Team()
		check.True(t, ok)
		check.Equal(t, teamID, got)
		check.False(t, claims.IsOfficial())
	})

	t.Run("committee token", func(t *testing.T) {
		token, err := v.Issue("official", RoleCommittee, "", time.Hour, now)
		assert.NoError(t, err)

		claims, err := v.Verify(token)
		assert.NoError(t, err)
		check.True(t, claims.IsOfficial())
		_, ok := claims.Team()
		check.False(t, ok)
	})

	t.Run("expired", func(t *testing.T) {
		token, err := v.Issue("user-1", RoleTeam, teamID.String(), time.Minute, now.Add(-time.Hour))
		assert.NoError(t, err)

		_, err = v.Verify(token)
		check.True(t, errors.Is(err, auctionerr.ErrUnauthenticated))
	})

	t.Run("wrong secret", func(t *testing.T) {
		other, err := NewVerifier("other", "leagueauction")
		assert.NoError(t, err)
		token, err := other.Issue("user-1", RoleAdmin, "", time.Hour, now)
		assert.NoError(t, err)

		_, err = v.Verify(token)
		check.True(t, errors.Is(err, auctionerr.ErrUnauthenticated))
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other, err := NewVerifier("s3cret", "someone-else")
		assert.NoError(t, err)
		token, err := other.Issue("user-1", RoleAdmin, "", time.Hour, now)
		assert.NoError(t, err)

		_, err = v.Verify(token)
		check.True(t, errors.Is(err, auctionerr.ErrUnauthenticated))
	})

	t.Run("team token without team", func(t *testing.T) {
		token, err := v.Issue("user-1", RoleTeam, "", time.Hour, now)
		assert.NoError(t, err)

		_, err = v.Verify(token)
		check.True(t, errors.Is(err, auctionerr.ErrUnauthenticated))
	})

	t.Run("unknown role", func(t *testing.T) {
		token, err := v.Issue("user-1", Role("owner"), "", time.Hour, now)
		assert.NoError(t, err)

		_, err = v.Verify(token)
		check.True(t, errors.Is(err, auctionerr.ErrUnauthenticated))
	})

	t.Run("other algorithm", func(t *testing.T) {
		claims := Claims{
			Role: RoleAdmin,
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "leagueauction",
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("s3cret"))
		assert.NoError(t, err)

		_, err = v.Verify(token)
		check.True(t, errors.Is(err, auctionerr.ErrUnauthenticated))
	})

	t.Run("bad header", func(t *testing.T) {
		_, err := v.VerifyHeader("")
		check.True(t, errors.Is(err, auctionerr.ErrUnauthenticated))
		_, err = v.VerifyHeader("Token abc")
		check.True(t, errors.Is(err, auctionerr.ErrUnauthenticated))
	})
}

func TestNewVerifierRequiresSecret(t *testing.T) {
	_, err := NewVerifier("", "")
	check.Error(t, err)
}

func TestAuthorize(t *testing.T) {
	v, err := NewVerifier("s3cret", "")
	assert.NoError(t, err)
	now := time.Now()

	teamToken, err := v.Issue("u", RoleTeam, uuid.NewString(), time.Hour, now)
	assert.NoError(t, err)
	adminToken, err := v.Issue("a", RoleAdmin, "", time.Hour, now)
	assert.NoError(t, err)

	_, err = v.Authorize("Bearer "+teamToken, RoleCommittee, RoleAdmin)
	check.True(t, errors.Is(err, auctionerr.ErrPermissionDenied))

	claims, err := v.Authorize("Bearer "+adminToken, RoleCommittee, RoleAdmin)
	assert.NoError(t, err)
	check.Equal(t, RoleAdmin, claims.Role)

	claims, err = v.Authorize("Bearer " + teamToken)
	assert.NoError(t, err)
	check.Equal(t, RoleTeam, claims.Role)
}
