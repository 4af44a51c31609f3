// Package activities implements the Temporal activities of the harvest workflow.
package activities

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"

	"github.com/helixir/ncbi-query-service/internal/observability"
	"github.com/helixir/ncbi-query-service/internal/pipeline"
)

// Pipeline is the subset of pipeline.Service the activities call.
type Pipeline interface {
	ExecuteQuery(ctx context.Context, queryID uuid.UUID) (*pipeline.ExecuteResult, error)
	RetrievePaper(ctx context.Context, paperID uuid.UUID) (*pipeline.RetrieveResult, error)
}

// HarvestActivities provides the activities of HarvestQueryWorkflow.
// Methods on this struct are registered as Temporal activities via the worker.
type HarvestActivities struct {
	pipeline Pipeline
}

// NewHarvestActivities creates a new HarvestActivities instance.
func NewHarvestActivities(p Pipeline) *HarvestActivities {
	return &HarvestActivities{pipeline: p}
}

// activityContext tags ctx with the running workflow so pipeline log lines
// and events can be correlated with the harvest.
func activityContext(ctx context.Context) context.Context {
	if !activity.IsActivity(ctx) {
		return ctx
	}
	info := activity.GetInfo(ctx)
	return observability.WithWorkflow(ctx, info.WorkflowExecution.ID, info.WorkflowExecution.RunID)
}

// ExecuteQuery runs the stored query and returns the ids of the papers it links.
func (a *HarvestActivities) ExecuteQuery(ctx context.Context, input ExecuteQueryInput) (*ExecuteQueryOutput, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("executing query", "queryID", input.QueryID)

	result, err := a.pipeline.ExecuteQuery(activityContext(ctx), input.QueryID)
	if err != nil {
		logger.Error("query execution failed", "queryID", input.QueryID, "error", err)
		return nil, classifyError(fmt.Sprintf("execute query %s", input.QueryID), err)
	}

	out := &ExecuteQueryOutput{
		PaperIDs:   result.PaperIDs,
		NewPapers:  result.NewPapers,
		TotalCount: result.TotalCount,
	}
	if result.Query != nil {
		out.Database = result.Query.Database.String()
	}

	logger.Info("query executed",
		"queryID", input.QueryID,
		"papers", len(out.PaperIDs),
		"newPapers", out.NewPapers,
		"totalCount", out.TotalCount,
	)

	return out, nil
}

// RetrievePaper fetches and persists one paper. Papers already retrieved are
// reported as skipped.
func (a *HarvestActivities) RetrievePaper(ctx context.Context, input RetrievePaperInput) (*RetrievePaperOutput, error) {
	logger := activity.GetLogger(ctx)

	result, err := a.pipeline.RetrievePaper(activityContext(ctx), input.PaperID)
	if err != nil {
		logger.Warn("paper retrieval failed", "paperID", input.PaperID, "error", err)
		return nil, classifyError(fmt.Sprintf("retrieve paper %s", input.PaperID), err)
	}

	return &RetrievePaperOutput{
		PaperID:  input.PaperID,
		Skipped:  result.Skipped,
		Authors:  result.Authors,
		Headings: result.Headings,
		Grants:   result.Grants,
	}, nil
}
