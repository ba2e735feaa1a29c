package service

import (
	"context"
	"errors"

	"connectrpc.com/connect"

	"github.com/mcdev12/leagueauction/go/internal/auction/auctionerr"
)

// toConnectError maps the auction error taxonomy onto connect codes
func toConnectError(err error) error {
	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		return connectErr
	}
	return connect.NewError(codeOf(err), err)
}

func codeOf(err error) connect.Code {
	switch {
	case errors.Is(err, auctionerr.ErrFinalizationFailure):
		return connect.CodeInternal
	case errors.Is(err, auctionerr.ErrValidation):
		return connect.CodeInvalidArgument
	case errors.Is(err, auctionerr.ErrNotFound):
		return connect.CodeNotFound
	case errors.Is(err, auctionerr.ErrStateConflict):
		return connect.CodeAborted
	case errors.Is(err, auctionerr.ErrRoundNotActive),
		errors.Is(err, auctionerr.ErrInsufficientBudget),
		errors.Is(err, auctionerr.ErrTeamNotEligible),
		errors.Is(err, auctionerr.ErrAlreadyAllocated),
		errors.Is(err, auctionerr.ErrTiebreakerPending):
		return connect.CodeFailedPrecondition
	case errors.Is(err, auctionerr.ErrUnauthenticated):
		return connect.CodeUnauthenticated
	case errors.Is(err, auctionerr.ErrPermissionDenied):
		return connect.CodePermissionDenied
	case errors.Is(err, context.Canceled):
		return connect.CodeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return connect.CodeDeadlineExceeded
	default:
		return connect.CodeInternal
	}
}
