package activities

import "github.com/google/uuid"

// ExecuteQueryInput is the input for the ExecuteQuery activity.
type ExecuteQueryInput struct {
	// QueryID is the stored query to execute.
	QueryID uuid.UUID `json:"query_id"`
}

// ExecuteQueryOutput is the output of the ExecuteQuery activity.
type ExecuteQueryOutput struct {
	// Database is the NCBI database the query ran against.
	Database string `json:"database"`
	// PaperIDs are the stub papers linked to the query, in result order.
	PaperIDs []uuid.UUID `json:"paper_ids"`
	// NewPapers is how many of PaperIDs were created by this execution.
	NewPapers int `json:"new_papers"`
	// TotalCount is the total hit count reported by the database.
	TotalCount int `json:"total_count"`
}

// RetrievePaperInput is the input for the RetrievePaper activity.
type RetrievePaperInput struct {
	// PaperID is the paper to fetch and persist.
	PaperID uuid.UUID `json:"paper_id"`
}

// RetrievePaperOutput is the output of the RetrievePaper activity.
type RetrievePaperOutput struct {
	PaperID  uuid.UUID `json:"paper_id"`
	Skipped  bool      `json:"skipped"`
	Authors  int       `json:"authors"`
	Headings int       `json:"headings"`
	Grants   int       `json:"grants"`
}
