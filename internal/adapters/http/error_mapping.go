package httpadapter

import (
	"errors"
	"net/http"

	"github.com/kirillkom/alpine-guardian/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput), domain.IsKind(err, domain.ErrInvalidFilter):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrUpdateInProgress):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrIndexNotReady), domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage keeps internal details out of 5xx bodies; client errors echo the cause.
func publicMessage(status int, err error) string {
	if status >= http.StatusInternalServerError {
		switch status {
		case http.StatusServiceUnavailable:
			return "service temporarily unavailable"
		default:
			return "internal server error"
		}
	}
	var unwrapped interface{ Unwrap() []error }
	if errors.As(err, &unwrapped) {
		if parts := unwrapped.Unwrap(); len(parts) == 2 {
			return parts[1].Error()
		}
	}
	return err.Error()
}
