package factionserver

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/cory-johannsen/factions/internal/game/faction"
	"github.com/cory-johannsen/factions/internal/game/fault"
)

// toStatus converts a domain error into a gRPC status error.
//
// Postcondition: Errors that already carry a status are returned unchanged.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	return status.Error(codeOf(err), err.Error())
}

func codeOf(err error) codes.Code {
	switch {
	case errors.Is(err, faction.ErrNameTaken), errors.Is(err, faction.ErrAlreadyMember):
		return codes.AlreadyExists
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	}
	switch fault.KindOf(err) {
	case fault.Conflict:
		return codes.FailedPrecondition
	case fault.NotFound:
		return codes.NotFound
	case fault.PermissionDenied:
		return codes.PermissionDenied
	case fault.ExternalFailure:
		return codes.Unavailable
	case fault.Invalid:
		return codes.InvalidArgument
	default:
		return codes.Internal
	}
}
