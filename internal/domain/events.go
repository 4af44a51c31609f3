package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event type constants.
const (
	EventTypeQueryExecuted  = "query.executed"
	EventTypePaperRetrieved = "paper.retrieved"
)

// Event is a notification emitted after a completed action.
type Event struct {
	EventID    string          `json:"event_id"`
	Type       string          `json:"type"`
	EntityID   string          `json:"id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// NewEvent creates a new event for entityID.
// The payload is JSON-serialized automatically.
func NewEvent(eventType, entityID string, payload interface{}) (*Event, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Event{
		EventID:    uuid.New().String(),
		Type:       eventType,
		EntityID:   entityID,
		OccurredAt: time.Now().UTC(),
		Payload:    payloadBytes,
	}, nil
}

// QueryExecutedPayload is the payload for query.executed events.
type QueryExecutedPayload struct {
	QueryID     uuid.UUID `json:"query_id"`
	Database    Database  `json:"database"`
	QueryString string    `json:"querystring"`
	ResultCount int       `json:"result_count"`
	TotalCount  int       `json:"total_count"`
}

// PaperRetrievedPayload is the payload for paper.retrieved events.
type PaperRetrievedPayload struct {
	PaperID    uuid.UUID `json:"paper_id"`
	Source     Database  `json:"source"`
	Identifier string    `json:"identifier"`
	Authors    int       `json:"authors"`
	Headings   int       `json:"mesh_headings"`
	Grants     int       `json:"grants"`
}
