// Package workflows defines the Temporal workflows of the NCBI query service.
package workflows

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	nqtemporal "github.com/helixir/ncbi-query-service/internal/temporal"
	"github.com/helixir/ncbi-query-service/internal/temporal/activities"
)

// DefaultRetrieveConcurrency is used when the harvest input does not set one.
const DefaultRetrieveConcurrency = 3

// HarvestInput is the input of HarvestQueryWorkflow.
type HarvestInput = nqtemporal.HarvestInput

// HarvestResult summarises a finished harvest.
type HarvestResult struct {
	QueryID   uuid.UUID `json:"query_id"`
	Database  string    `json:"database"`
	Papers    int       `json:"papers"`
	NewPapers int       `json:"new_papers"`
	Retrieved int       `json:"retrieved"`
	Skipped   int       `json:"skipped"`
	Failed    int       `json:"failed"`
	// FailedPaperIDs lists the papers whose retrieval exhausted its retries.
	FailedPaperIDs []uuid.UUID `json:"failed_paper_ids,omitempty"`
}

func retrieveConcurrency(input HarvestInput) int {
	if input.RetrieveConcurrency <= 0 {
		return DefaultRetrieveConcurrency
	}
	return input.RetrieveConcurrency
}

// HarvestQueryWorkflow executes a stored query and retrieves every paper it
// returned.
//
//  1. ExecuteQuery: search the query's database and link stub papers.
//  2. RetrievePaper: fetch and persist each paper, at most
//     RetrieveConcurrency at a time, each retried on its own.
//
// A paper whose retrieval fails after its retries is counted in the result
// and does not fail the workflow. A failed ExecuteQuery does.
func HarvestQueryWorkflow(ctx workflow.Context, input HarvestInput) (*HarvestResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("starting harvest", "queryID", input.QueryID, "requestedBy", input.RequestedBy)

	var act *activities.HarvestActivities

	executeCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    1 * time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    1 * time.Minute,
			MaximumAttempts:    5,
		},
	})

	retrieveCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    2 * time.Minute,
			MaximumAttempts:    6,
		},
	})

	var executed activities.ExecuteQueryOutput
	err := workflow.ExecuteActivity(executeCtx, act.ExecuteQuery, activities.ExecuteQueryInput{
		QueryID: input.QueryID,
	}).Get(ctx, &executed)
	if err != nil {
		logger.Error("query execution failed", "queryID", input.QueryID, "error", err)
		return nil, fmt.Errorf("execute query %s: %w", input.QueryID, err)
	}

	result := &HarvestResult{
		QueryID:   input.QueryID,
		Database:  executed.Database,
		Papers:    len(executed.PaperIDs),
		NewPapers: executed.NewPapers,
	}

	limit := retrieveConcurrency(input)
	inflight := 0

	for _, paperID := range executed.PaperIDs {
		// Sliding window over in-flight retrievals.
		if err := workflow.Await(ctx, func() bool { return inflight < limit }); err != nil {
			return result, fmt.Errorf("await retrieve slot: %w", err)
		}

		inflight++
		future := workflow.ExecuteActivity(retrieveCtx, act.RetrievePaper, activities.RetrievePaperInput{
			PaperID: paperID,
		})

		workflow.Go(ctx, func(gCtx workflow.Context) {
			defer func() { inflight-- }()

			var out activities.RetrievePaperOutput
			if err := future.Get(gCtx, &out); err != nil {
				logger.Warn("paper retrieval failed", "paperID", paperID, "error", err)
				result.Failed++
				result.FailedPaperIDs = append(result.FailedPaperIDs, paperID)
				return
			}
			if out.Skipped {
				result.Skipped++
				return
			}
			result.Retrieved++
		})
	}

	if err := workflow.Await(ctx, func() bool { return inflight == 0 }); err != nil {
		return result, fmt.Errorf("await retrievals: %w", err)
	}

	logger.Info("harvest completed",
		"queryID", input.QueryID,
		"papers", result.Papers,
		"retrieved", result.Retrieved,
		"skipped", result.Skipped,
		"failed", result.Failed,
	)

	return result, nil
}
