package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/matheus3301/zpp/internal/compose"
	"github.com/matheus3301/zpp/internal/echo"
	"github.com/matheus3301/zpp/internal/unsent"
	"github.com/matheus3301/zpp/internal/zulip"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// toStatus maps a domain error to a gRPC status error.
func toStatus(op string, err error) error {
	if err == nil {
		return nil
	}
	return grpcstatus.Errorf(codeOf(err), "%s: %v", op, err)
}

func codeOf(err error) codes.Code {
	var apiErr *zulip.APIError
	switch {
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, unsent.ErrNothingOnOffer):
		return codes.FailedPrecondition
	case errors.Is(err, compose.ErrUnknownRecipient):
		return codes.InvalidArgument
	case errors.Is(err, echo.ErrNotTracked):
		return codes.NotFound
	case errors.As(err, &apiErr):
		switch {
		case apiErr.HTTPStatus == http.StatusUnauthorized:
			return codes.Unauthenticated
		case apiErr.HTTPStatus == http.StatusForbidden:
			return codes.PermissionDenied
		case apiErr.HTTPStatus == http.StatusNotFound:
			return codes.NotFound
		case apiErr.HTTPStatus == http.StatusTooManyRequests:
			return codes.ResourceExhausted
		case apiErr.HTTPStatus >= http.StatusInternalServerError:
			return codes.Unavailable
		default:
			return codes.InvalidArgument
		}
	}
	return codes.Internal
}
