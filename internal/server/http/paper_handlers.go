package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/helixir/ncbi-query-service/internal/domain"
	"github.com/helixir/ncbi-query-service/internal/observability"
	"github.com/helixir/ncbi-query-service/internal/pipeline"
	"github.com/helixir/ncbi-query-service/internal/repository"
)

// listPapers handles GET /papers.
func (s *Server) listPapers(w http.ResponseWriter, r *http.Request) {
	filter, ok := parsePaperFilter(w, r)
	if !ok {
		return
	}

	if raw := r.URL.Query().Get("query"); raw != "" {
		queryID, ok := parseUUID(w, raw, "query")
		if !ok {
			return
		}
		filter.QueryID = &queryID
	}

	s.writePaperList(w, r, filter)
}

// listQueryResults handles GET /queries/{queryID}/results.
func (s *Server) listQueryResults(w http.ResponseWriter, r *http.Request) {
	queryID, ok := parseUUID(w, chi.URLParam(r, "queryID"), "query_id")
	if !ok {
		return
	}

	if _, err := s.repos.Queries.Get(r.Context(), queryID); err != nil {
		writeDomainError(w, err)
		return
	}

	filter, ok := parsePaperFilter(w, r)
	if !ok {
		return
	}
	filter.QueryID = &queryID

	s.writePaperList(w, r, filter)
}

func (s *Server) writePaperList(w http.ResponseWriter, r *http.Request, filter repository.PaperFilter) {
	papers, totalCount, err := s.repos.Papers.List(r.Context(), filter)
	if err != nil {
		s.logError(r, err, "failed to list papers")
		writeDomainError(w, err)
		return
	}

	responses := make([]paperResponse, len(papers))
	for i, p := range papers {
		responses[i] = domainPaperToResponse(p)
	}

	writeJSON(w, http.StatusOK, listPapersResponse{
		Papers:     responses,
		TotalCount: totalCount,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	})
}

// parsePaperFilter reads the source, retrieved and pagination parameters.
func parsePaperFilter(w http.ResponseWriter, r *http.Request) (repository.PaperFilter, bool) {
	var filter repository.PaperFilter

	limit, offset, ok := parsePaginationParams(w, r)
	if !ok {
		return filter, false
	}
	filter.Limit = limit
	filter.Offset = offset

	if raw := r.URL.Query().Get("source"); raw != "" {
		source, err := domain.ParseDatabase(raw)
		if err != nil {
			writeDomainError(w, err)
			return filter, false
		}
		filter.Source = &source
	}

	retrieved, ok := parseBoolParam(w, r, "retrieved")
	if !ok {
		return filter, false
	}
	filter.Retrieved = retrieved

	return filter, true
}

// getPaper handles GET /papers/{paperID}.
func (s *Server) getPaper(w http.ResponseWriter, r *http.Request) {
	paperID, ok := parseUUID(w, chi.URLParam(r, "paperID"), "paper_id")
	if !ok {
		return
	}

	detail, err := s.repos.Papers.GetDetail(r.Context(), paperID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, domainPaperDetailToResponse(detail))
}

// retrievePapers handles POST /papers/actions/retrieve.
func (s *Server) retrievePapers(w http.ResponseWriter, r *http.Request) {
	ids, ok := s.decodeBulkIDs(w, r)
	if !ok {
		return
	}

	outcomes, err := s.pipeline.RetrievePapers(r.Context(), ids)
	if err != nil {
		log := observability.LoggerFromContext(r.Context(), s.logger)
		log.Warn().Err(err).
			Int("requested", len(ids)).
			Msg("bulk retrieve finished with failures")
	}

	resp := actionResponse{Results: make([]actionItemResponse, len(outcomes))}
	for i, o := range outcomes {
		resp.Results[i] = paperOutcomeToItem(o)
		if o.Err != nil {
			resp.Failed++
		} else {
			resp.Succeeded++
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func paperOutcomeToItem(o pipeline.PaperOutcome) actionItemResponse {
	item := actionItemResponse{ID: o.PaperID.String(), Status: actionOK}
	switch {
	case o.Err != nil:
		item.Status = actionFailed
		item.Error = itemErrorMessage(o.Err)
	case o.Result.Skipped:
		item.Status = actionSkipped
	default:
		item.Detail = retrieveDetail{
			Authors:  o.Result.Authors,
			Headings: o.Result.Headings,
			Grants:   o.Result.Grants,
		}
	}
	return item
}
