package auth

import (
	"context"
	"errors"
	"fmt"

	"connectrpc.com/connect"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/leagueauction/go/internal/auction/auctionerr"
)

// Authorize verifies header and checks the caller holds one of roles.
// An empty roles list admits any valid role.
func (v *Verifier) Authorize(header string, roles ...Role) (*Claims, error) {
	claims, err := v.VerifyHeader(header)
	if err != nil {
		return nil, err
	}
	if len(roles) == 0 {
		return claims, nil
	}
	for _, r := range roles {
		if claims.Role == r {
			return claims, nil
		}
	}
	return nil, fmt.Errorf("%w: role %q may not call this service", auctionerr.ErrPermissionDenied, claims.Role)
}

// NewInterceptor authenticates every unary call and stores the claims in the
// handler's context.
func NewInterceptor(v *Verifier, roles ...Role) connect.UnaryInterceptorFunc {
	return NewPublicInterceptor(v, nil, roles...)
}

// NewPublicInterceptor is NewInterceptor except that calls to the public
// procedures carrying no Authorization header run anonymously, without
// claims. A header that is present is still verified.
func NewPublicInterceptor(v *Verifier, public []string, roles ...Role) connect.UnaryInterceptorFunc {
	open := make(map[string]bool, len(public))
	for _, p := range public {
		open[p] = true
	}
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if req.Spec().IsClient {
				return next(ctx, req)
			}
			header := req.Header().Get("Authorization")
			if header == "" && open[req.Spec().Procedure] {
				return next(ctx, req)
			}
			claims, err := v.Authorize(header, roles...)
			if err != nil {
				log.Debug().
					Err(err).
					Str("procedure", req.Spec().Procedure).
					Msg("rejected unauthenticated call")
				return nil, connectError(err)
			}
			return next(WithClaims(ctx, claims), req)
		}
	}
}

func connectError(err error) error {
	if errors.Is(err, auctionerr.ErrPermissionDenied) {
		return connect.NewError(connect.CodePermissionDenied, err)
	}
	return connect.NewError(connect.CodeUnauthenticated, err)
}
