package activities

import (
	"errors"

	"go.temporal.io/sdk/temporal"

	"github.com/helixir/ncbi-query-service/internal/domain"
)

// Application error types attached to non-retryable activity failures.
const (
	ErrTypeInvalidInput      = "invalid_input"
	ErrTypeNotFound          = "not_found"
	ErrTypeUnknownDatabase   = "unknown_database"
	ErrTypeMalformedResponse = "malformed_response"
)

// classifyError marks failures that a retry cannot fix as non-retryable.
// Rate limiting, NCBI outages and database errors are returned unchanged so
// the activity retry policy applies.
func classifyError(msg string, err error) error {
	if err == nil {
		return nil
	}

	var errType string
	switch {
	case errors.Is(err, domain.ErrRateLimited), errors.Is(err, domain.ErrServiceUnavailable):
		return err
	case errors.Is(err, domain.ErrNotFound):
		errType = ErrTypeNotFound
	case errors.Is(err, domain.ErrUnknownDatabase):
		errType = ErrTypeUnknownDatabase
	case errors.Is(err, domain.ErrInvalidInput):
		errType = ErrTypeInvalidInput
	case errors.Is(err, domain.ErrMalformedResponse):
		errType = ErrTypeMalformedResponse
	default:
		return err
	}

	return temporal.NewNonRetryableApplicationError(msg, errType, err)
}
