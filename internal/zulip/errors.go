package zulip

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes the client reacts to.
const (
	CodeBadEventQueueID   = "BAD_EVENT_QUEUE_ID"
	CodeStreamNotExist    = "STREAM_DOES_NOT_EXIST"
	CodeRateLimitHit      = "RATE_LIMIT_HIT"
	CodeBadRequest        = "BAD_REQUEST"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeInvalidAPIKey     = "INVALID_API_KEY"
	CodeUserDeactivated   = "USER_DEACTIVATED"
	CodeRealmDeactivated  = "REALM_DEACTIVATED"
	CodeStreamWildcardErr = "STREAM_WILDCARD_MENTION_NOT_ALLOWED"
)

// APIError is a `"result": "error"` response from the server.
type APIError struct {
	HTTPStatus int
	Code       string
	Msg        string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("zulip: %s (%s, http %d)", e.Msg, e.Code, e.HTTPStatus)
	}
	return fmt.Sprintf("zulip: %s (http %d)", e.Msg, e.HTTPStatus)
}

// IsCode reports whether err is an APIError with the given code.
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// IsTransient reports whether a retry could succeed without user action.
func IsTransient(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		// Transport-level failures (connection refused, timeouts) are transient.
		return err != nil
	}
	if apiErr.Code == CodeRateLimitHit {
		return true
	}
	return apiErr.HTTPStatus >= http.StatusInternalServerError
}

// ErrorMessage returns the server's human readable text for err, falling
// back to err.Error() for transport failures.
func ErrorMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Msg != "" {
		return apiErr.Msg
	}
	return err.Error()
}
