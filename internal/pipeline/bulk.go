package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// QueryOutcome is the result of one item of a bulk execution.
type QueryOutcome struct {
	QueryID uuid.UUID
	Result  *ExecuteResult
	Err     error
}

// PaperOutcome is the result of one item of a bulk retrieval.
type PaperOutcome struct {
	PaperID uuid.UUID
	Result  *RetrieveResult
	Err     error
}

// ExecuteQueries executes queries one after another. A failed query does not
// stop the batch; the returned error joins every failure. Items left when ctx
// ends fail with the context error.
func (s *Service) ExecuteQueries(ctx context.Context, ids []uuid.UUID) ([]QueryOutcome, error) {
	outcomes := make([]QueryOutcome, 0, len(ids))
	var errs []error

	for _, id := range ids {
		outcome := QueryOutcome{QueryID: id}
		if err := ctx.Err(); err != nil {
			outcome.Err = err
		} else {
			outcome.Result, outcome.Err = s.ExecuteQuery(ctx, id)
		}
		if outcome.Err != nil {
			errs = append(errs, fmt.Errorf("query %s: %w", id, outcome.Err))
		}
		outcomes = append(outcomes, outcome)
	}

	s.logger.Info().
		Int("total", len(ids)).
		Int("failed", len(errs)).
		Msg("bulk query execution finished")

	return outcomes, errors.Join(errs...)
}

// RetrievePapers retrieves papers one after another with the same failure
// handling as ExecuteQueries.
func (s *Service) RetrievePapers(ctx context.Context, ids []uuid.UUID) ([]PaperOutcome, error) {
	outcomes := make([]PaperOutcome, 0, len(ids))
	var errs []error

	for _, id := range ids {
		outcome := PaperOutcome{PaperID: id}
		if err := ctx.Err(); err != nil {
			outcome.Err = err
		} else {
			outcome.Result, outcome.Err = s.RetrievePaper(ctx, id)
		}
		if outcome.Err != nil {
			errs = append(errs, fmt.Errorf("paper %s: %w", id, outcome.Err))
		}
		outcomes = append(outcomes, outcome)
	}

	s.logger.Info().
		Int("total", len(ids)).
		Int("failed", len(errs)).
		Msg("bulk paper retrieval finished")

	return outcomes, errors.Join(errs...)
}
