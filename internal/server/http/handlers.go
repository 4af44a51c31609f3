package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/helixir/ncbi-query-service/internal/domain"
	"github.com/helixir/ncbi-query-service/internal/observability"
	"github.com/helixir/ncbi-query-service/internal/repository"
	"github.com/helixir/ncbi-query-service/internal/temporal"
)

// Pagination and request limits.
const (
	defaultPageSize    = 100
	maxPageSize        = 1000
	maxRequestBodySize = 1 << 20 // 1 MB limit for request bodies
)

// createQueryRequest is the JSON request body for creating a query.
type createQueryRequest struct {
	QueryString string `json:"querystring" validate:"required,max=10000"`
	Database    string `json:"database" validate:"required"`
	RetMax      int    `json:"retmax" validate:"omitempty,min=1,max=10000"`
}

// bulkRequest is the JSON request body of the bulk actions.
type bulkRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,max=500,dive,uuid"`
}

// createQuery handles POST /queries.
func (s *Server) createQuery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createQueryRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	db, err := domain.ParseDatabase(req.Database)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	query, err := domain.NewQuery(observability.UserFromContext(ctx), req.QueryString, db, req.RetMax)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if err := s.repos.Queries.Create(ctx, query); err != nil {
		s.logError(r, err, "failed to create query")
		writeDomainError(w, err)
		return
	}

	log := observability.LoggerFromContext(ctx, s.logger)
	log.Info().
		Str("query_id", query.ID.String()).
		Str("database", query.Database.String()).
		Msg("query created")

	writeJSON(w, http.StatusCreated, domainQueryToResponse(query))
}

// listQueries handles GET /queries.
func (s *Server) listQueries(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := parsePaginationParams(w, r)
	if !ok {
		return
	}

	filter := repository.QueryFilter{
		CreatedBy: r.URL.Query().Get("created_by"),
		Limit:     limit,
		Offset:    offset,
	}

	if dbParam := r.URL.Query().Get("database"); dbParam != "" {
		db, err := domain.ParseDatabase(dbParam)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		filter.Database = &db
	}

	executed, ok := parseBoolParam(w, r, "executed")
	if !ok {
		return
	}
	filter.Executed = executed

	queries, totalCount, err := s.repos.Queries.List(r.Context(), filter)
	if err != nil {
		s.logError(r, err, "failed to list queries")
		writeDomainError(w, err)
		return
	}

	responses := make([]queryResponse, len(queries))
	for i, q := range queries {
		responses[i] = domainQueryToResponse(q)
	}

	writeJSON(w, http.StatusOK, listQueriesResponse{
		Queries:    responses,
		TotalCount: totalCount,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	})
}

// getQuery handles GET /queries/{queryID}.
func (s *Server) getQuery(w http.ResponseWriter, r *http.Request) {
	queryID, ok := parseUUID(w, chi.URLParam(r, "queryID"), "query_id")
	if !ok {
		return
	}

	query, err := s.repos.Queries.Get(r.Context(), queryID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, domainQueryToResponse(query))
}

// listQueryChoices handles GET /queries/choices.
func (s *Server) listQueryChoices(w http.ResponseWriter, r *http.Request) {
	choices, err := s.repos.Queries.Choices(r.Context())
	if err != nil {
		s.logError(r, err, "failed to list query choices")
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listChoicesResponse{Choices: choices})
}

// executeQueries handles POST /queries/actions/execute.
func (s *Server) executeQueries(w http.ResponseWriter, r *http.Request) {
	ids, ok := s.decodeBulkIDs(w, r)
	if !ok {
		return
	}

	outcomes, err := s.pipeline.ExecuteQueries(r.Context(), ids)
	if err != nil {
		log := observability.LoggerFromContext(r.Context(), s.logger)
		log.Warn().Err(err).
			Int("requested", len(ids)).
			Msg("bulk execute finished with failures")
	}

	resp := actionResponse{Results: make([]actionItemResponse, len(outcomes))}
	for i, o := range outcomes {
		item := actionItemResponse{ID: o.QueryID.String(), Status: actionOK}
		if o.Err != nil {
			item.Status = actionFailed
			item.Error = itemErrorMessage(o.Err)
			resp.Failed++
		} else {
			item.Detail = executeDetail{
				ResultCount: len(o.Result.PaperIDs),
				NewPapers:   o.Result.NewPapers,
				TotalCount:  o.Result.TotalCount,
			}
			resp.Succeeded++
		}
		resp.Results[i] = item
	}

	writeJSON(w, http.StatusOK, resp)
}

// startHarvest handles POST /queries/{queryID}/harvest.
func (s *Server) startHarvest(w http.ResponseWriter, r *http.Request) {
	if s.harvester == nil {
		writeError(w, http.StatusServiceUnavailable, "harvest workflows are not configured")
		return
	}

	queryID, ok := parseUUID(w, chi.URLParam(r, "queryID"), "query_id")
	if !ok {
		return
	}

	if _, err := s.repos.Queries.Get(r.Context(), queryID); err != nil {
		writeDomainError(w, err)
		return
	}

	workflowID, runID, err := s.harvester.StartHarvest(r.Context(), queryID)
	if err != nil {
		s.logError(r, err, "failed to start harvest")
		writeDomainError(w, err)
		return
	}

	if s.metrics != nil {
		s.metrics.RecordHarvestStarted()
	}

	writeJSON(w, http.StatusAccepted, harvestResponse{
		QueryID:    queryID.String(),
		WorkflowID: workflowID,
		RunID:      runID,
	})
}

// decodeBody reads a JSON body into dst and validates it.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return false
	}
	if len(body) > maxRequestBodySize {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return false
	}

	if err := json.Unmarshal(body, dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return false
	}

	if err := s.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

// decodeBulkIDs reads and validates the body of a bulk action.
func (s *Server) decodeBulkIDs(w http.ResponseWriter, r *http.Request) ([]uuid.UUID, bool) {
	var req bulkRequest
	if !s.decodeBody(w, r, &req) {
		return nil, false
	}

	ids := make([]uuid.UUID, 0, len(req.IDs))
	seen := make(map[uuid.UUID]bool, len(req.IDs))
	for _, raw := range req.IDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "ids must be valid UUIDs")
			return nil, false
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids, true
}

// validationMessage renders validator errors as "field: rule" pairs.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request"
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		parts = append(parts, fmt.Sprintf("%s: %s", jsonFieldName(fe), rule))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// jsonFieldName maps a struct namespace such as "bulkRequest.IDs[0]" to "ids[0]".
func jsonFieldName(fe validator.FieldError) string {
	switch {
	case fe.StructField() == "QueryString":
		return "querystring"
	case fe.StructField() == "RetMax":
		return "retmax"
	case strings.HasPrefix(fe.StructField(), "IDs"):
		return "ids" + strings.TrimPrefix(fe.StructField(), "IDs")
	}
	return strings.ToLower(fe.StructField())
}

// writeDomainError maps domain and temporal errors to appropriate HTTP status codes
// and writes a JSON error response. Internal error details are not leaked to clients.
func writeDomainError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Error())
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid input")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "resource not found")
	case errors.Is(err, domain.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "resource already exists")
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, domain.ErrUnknownDatabase):
		writeError(w, http.StatusBadRequest, "unknown database")
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate limited")
	case errors.Is(err, domain.ErrServiceUnavailable):
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
	case errors.Is(err, domain.ErrMalformedResponse):
		writeError(w, http.StatusBadGateway, "malformed response from remote database")
	case errors.Is(err, temporal.ErrWorkflowAlreadyStarted):
		writeError(w, http.StatusConflict, "harvest already running")
	case errors.Is(err, temporal.ErrConnectionFailed):
		writeError(w, http.StatusServiceUnavailable, "workflow engine unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// itemErrorMessage describes a failed bulk item without leaking internal details.
func itemErrorMessage(err error) string {
	var (
		ve  *domain.ValidationError
		nf  *domain.NotFoundError
		api *domain.ExternalAPIError
		pe  *domain.ParseError
	)
	switch {
	case errors.As(err, &ve):
		return ve.Error()
	case errors.As(err, &nf):
		return nf.Error()
	case errors.As(err, &api):
		return api.Error()
	case errors.As(err, &pe):
		return pe.Error()
	case errors.Is(err, domain.ErrUnknownDatabase):
		return "unknown database"
	}
	return "internal error"
}

// logError logs an unexpected handler error with request context.
func (s *Server) logError(r *http.Request, err error, msg string) {
	log := observability.LoggerFromContext(r.Context(), s.logger)
	log.Error().Err(err).
		Str("path", r.URL.Path).
		Msg(msg)
}

// parseUUID parses a UUID from a string, writing a 400 error response if invalid.
// The parse error details are not included to avoid echoing potentially malicious input.
func parseUUID(w http.ResponseWriter, s, fieldName string) (uuid.UUID, bool) {
	id, err := uuid.Parse(s)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%s must be a valid UUID", fieldName))
		return uuid.Nil, false
	}
	return id, true
}

// parsePaginationParams extracts limit and offset from query parameters.
func parsePaginationParams(w http.ResponseWriter, r *http.Request) (limit, offset int, ok bool) {
	limit = defaultPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return 0, 0, false
		}
		limit = parsed
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	if raw := r.URL.Query().Get("offset"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
			return 0, 0, false
		}
		offset = parsed
	}

	return limit, offset, true
}

// parseBoolParam parses an optional boolean query parameter.
func parseBoolParam(w http.ResponseWriter, r *http.Request, name string) (*bool, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, name+" must be true or false")
		return nil, false
	}
	return &v, true
}
