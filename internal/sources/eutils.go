package sources

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/helixir/ncbi-query-service/internal/domain"
)

const (
	// DefaultBaseURL is the base URL for the NCBI E-utilities API.
	DefaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

	// MaxResultsLimit is the largest retmax esearch accepts.
	MaxResultsLimit = 10000

	maxBodyBytes = 32 << 20
)

// EUtilsConfig holds the request parameters shared by every E-utilities call.
type EUtilsConfig struct {
	// BaseURL defaults to DefaultBaseURL.
	BaseURL string

	// APIKey raises the NCBI rate limit when set.
	APIKey string

	// Tool and Email identify the caller to NCBI.
	Tool  string
	Email string
}

// EUtils issues esearch and efetch requests.
type EUtils struct {
	config   EUtilsConfig
	http     *HTTPClient
	recorder RequestRecorder
}

// NewEUtils creates an E-utilities caller on top of a shared HTTP client.
func NewEUtils(cfg EUtilsConfig, httpClient *HTTPClient) *EUtils {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &EUtils{
		config:   cfg,
		http:     httpClient,
		recorder: nopRecorder{},
	}
}

// WithRecorder sets the telemetry sink for requests.
func (e *EUtils) WithRecorder(r RequestRecorder) *EUtils {
	if r != nil {
		e.recorder = r
	}
	return e
}

// ESearchResult represents the response from the esearch.fcgi endpoint.
type ESearchResult struct {
	XMLName   xml.Name   `xml:"eSearchResult"`
	Count     int        `xml:"Count"`
	RetMax    int        `xml:"RetMax"`
	RetStart  int        `xml:"RetStart"`
	IDList    IDList     `xml:"IdList"`
	ErrorList *ErrorList `xml:"ErrorList,omitempty"`
	Error     string     `xml:"ERROR,omitempty"`
}

// IDList contains the identifiers returned by a search.
type IDList struct {
	IDs []string `xml:"Id"`
}

// ErrorList contains soft errors reported by esearch.
type ErrorList struct {
	PhraseNotFound []string `xml:"PhraseNotFound,omitempty"`
	FieldNotFound  []string `xml:"FieldNotFound,omitempty"`
}

// Search runs esearch against db.
func (e *EUtils) Search(ctx context.Context, db domain.Database, params domain.SearchParams) (*domain.SearchResult, error) {
	if strings.TrimSpace(params.Query) == "" {
		return nil, domain.NewValidationError("query", "must not be empty")
	}

	q := e.baseParams(db)
	q.Set("term", params.Query)
	q.Set("usehistory", "n")

	maxResults := params.MaxResults
	if maxResults <= 0 {
		maxResults = domain.DefaultRetMax
	}
	if maxResults > MaxResultsLimit {
		maxResults = MaxResultsLimit
	}
	q.Set("retmax", strconv.Itoa(maxResults))
	if params.Offset > 0 {
		q.Set("retstart", strconv.Itoa(params.Offset))
	}

	body, err := e.get(ctx, db, "esearch", q)
	if err != nil {
		return nil, err
	}

	var result ESearchResult
	if err := xml.Unmarshal(body, &result); err != nil {
		e.recorder.RecordSourceRequestFailed(db.String(), "esearch", "parse")
		return nil, domain.NewParseError(db.String(), "esearch", err)
	}

	if result.Error != "" {
		return nil, domain.NewExternalAPIError(db.String(), http.StatusOK, result.Error, domain.ErrInvalidInput)
	}

	if result.ErrorList != nil && len(result.ErrorList.PhraseNotFound) > 0 && len(result.IDList.IDs) == 0 {
		return &domain.SearchResult{Identifiers: []string{}}, nil
	}

	ids := make([]string, 0, len(result.IDList.IDs))
	for _, id := range result.IDList.IDs {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}

	return &domain.SearchResult{
		Identifiers: ids,
		TotalCount:  result.Count,
	}, nil
}

// Fetch runs efetch for one identifier and returns the raw XML document.
func (e *EUtils) Fetch(ctx context.Context, db domain.Database, id string) ([]byte, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, domain.NewValidationError("id", "must not be empty")
	}

	q := e.baseParams(db)
	q.Set("id", id)
	q.Set("rettype", "xml")

	return e.get(ctx, db, "efetch", q)
}

func (e *EUtils) baseParams(db domain.Database) url.Values {
	q := url.Values{}
	q.Set("db", db.EntrezDB())
	q.Set("retmode", "xml")
	if e.config.APIKey != "" {
		q.Set("api_key", e.config.APIKey)
	}
	if e.config.Tool != "" {
		q.Set("tool", e.config.Tool)
	}
	if e.config.Email != "" {
		q.Set("email", e.config.Email)
	}
	return q
}

func (e *EUtils) get(ctx context.Context, db domain.Database, endpoint string, q url.Values) ([]byte, error) {
	u := e.config.BaseURL + "/" + endpoint + ".fcgi?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	start := time.Now()
	resp, err := e.http.Do(req)
	var exhausted *RetriesExhaustedError
	if errors.As(err, &exhausted) {
		e.recorder.RecordSourceRequestFailed(db.String(), endpoint, "status_"+strconv.Itoa(exhausted.StatusCode))
		return nil, domain.NewExternalAPIError(db.String(), exhausted.StatusCode, endpoint+": "+exhausted.Error(), nil)
	}
	if err != nil {
		errType := "transport"
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			errType = "canceled"
		}
		e.recorder.RecordSourceRequestFailed(db.String(), endpoint, errType)
		return nil, fmt.Errorf("%s request failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		e.recorder.RecordSourceRequestFailed(db.String(), endpoint, "read")
		return nil, fmt.Errorf("failed to read %s response: %w", endpoint, err)
	}

	if resp.StatusCode != http.StatusOK {
		e.recorder.RecordSourceRequestFailed(db.String(), endpoint, "status_"+strconv.Itoa(resp.StatusCode))
		return nil, domain.NewExternalAPIError(db.String(), resp.StatusCode, truncate(string(body), 512), nil)
	}

	e.recorder.RecordSourceRequest(db.String(), endpoint, time.Since(start).Seconds())
	return body, nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
