package httpserver

import (
	"time"

	"github.com/helixir/ncbi-query-service/internal/domain"
)

type queryResponse struct {
	ID          string     `json:"id"`
	CreatedBy   string     `json:"created_by"`
	CreatedOn   time.Time  `json:"created_on"`
	ExecutedOn  *time.Time `json:"executed_on,omitempty"`
	Executed    bool       `json:"executed"`
	QueryString string     `json:"querystring"`
	Database    string     `json:"database"`
	RetMax      int        `json:"retmax"`
	ResultCount int        `json:"result_count"`
	ResultsURL  string     `json:"results_url"`
}

type listQueriesResponse struct {
	Queries    []queryResponse `json:"queries"`
	TotalCount int64           `json:"total_count"`
	Limit      int             `json:"limit"`
	Offset     int             `json:"offset"`
}

type listChoicesResponse struct {
	Choices []domain.QueryChoice `json:"choices"`
}

type paperResponse struct {
	ID          string     `json:"id"`
	Identifier  string     `json:"identifier"`
	Source      string     `json:"source"`
	Title       *string    `json:"title"`
	Abstract    string     `json:"abstract,omitempty"`
	PubDate     *string    `json:"pubdate,omitempty"`
	JournalID   *string    `json:"journal_id,omitempty"`
	Retrieved   bool       `json:"retrieved"`
	RetrievedAt *time.Time `json:"retrieved_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

type listPapersResponse struct {
	Papers     []paperResponse `json:"papers"`
	TotalCount int64           `json:"total_count"`
	Limit      int             `json:"limit"`
	Offset     int             `json:"offset"`
}

type journalResponse struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	ISSN  string `json:"issn"`
}

type personResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	LastName string `json:"last_name"`
	ForeName string `json:"fore_name"`
	Initials string `json:"initials"`
}

type headingResponse struct {
	ID         string `json:"id"`
	Label      string `json:"label"`
	Descriptor string `json:"descriptor"`
	Qualifier  string `json:"qualifier,omitempty"`
}

type grantResponse struct {
	ID      string `json:"id"`
	GrantID string `json:"grant_id"`
	Acronym string `json:"acronym"`
	Agency  string `json:"agency,omitempty"`
}

type paperDetailResponse struct {
	paperResponse
	Journal      *journalResponse  `json:"journal,omitempty"`
	Authors      []personResponse  `json:"authors"`
	MeSHHeadings []headingResponse `json:"mesh_headings"`
	Grants       []grantResponse   `json:"grants"`
}

type actionItemResponse struct {
	ID     string      `json:"id"`
	Status string      `json:"status"`
	Error  string      `json:"error,omitempty"`
	Detail interface{} `json:"detail,omitempty"`
}

type actionResponse struct {
	Succeeded int                  `json:"succeeded"`
	Failed    int                  `json:"failed"`
	Results   []actionItemResponse `json:"results"`
}

type executeDetail struct {
	ResultCount int `json:"result_count"`
	NewPapers   int `json:"new_papers"`
	TotalCount  int `json:"total_count"`
}

type retrieveDetail struct {
	Authors  int `json:"authors"`
	Headings int `json:"mesh_headings"`
	Grants   int `json:"grants"`
}

type harvestResponse struct {
	QueryID    string `json:"query_id"`
	WorkflowID string `json:"workflow_id"`
	RunID      string `json:"run_id"`
}

// Action item statuses.
const (
	actionOK      = "ok"
	actionSkipped = "skipped"
	actionFailed  = "failed"
)

// Converter functions

func domainQueryToResponse(q *domain.Query) queryResponse {
	return queryResponse{
		ID:          q.ID.String(),
		CreatedBy:   q.CreatedBy,
		CreatedOn:   q.CreatedOn,
		ExecutedOn:  q.ExecutedOn,
		Executed:    q.Executed,
		QueryString: q.QueryString,
		Database:    q.Database.String(),
		RetMax:      q.RetMax,
		ResultCount: q.ResultCount,
		ResultsURL:  "/api/v1/papers?query=" + q.ID.String(),
	}
}

func domainPaperToResponse(p *domain.Paper) paperResponse {
	resp := paperResponse{
		ID:          p.ID.String(),
		Identifier:  p.Identifier,
		Source:      p.Source.String(),
		Title:       p.Title,
		Abstract:    p.Abstract,
		Retrieved:   p.Retrieved,
		RetrievedAt: p.RetrievedAt,
		CreatedAt:   p.CreatedAt,
	}
	if p.PubDate != nil {
		date := p.PubDate.Format("2006-01-02")
		resp.PubDate = &date
	}
	if p.JournalID != nil {
		id := p.JournalID.String()
		resp.JournalID = &id
	}
	return resp
}

func domainPaperDetailToResponse(d *domain.PaperDetail) paperDetailResponse {
	resp := paperDetailResponse{
		paperResponse: domainPaperToResponse(&d.Paper),
		Authors:       make([]personResponse, len(d.Authors)),
		MeSHHeadings:  make([]headingResponse, len(d.MeSHHeadings)),
		Grants:        make([]grantResponse, len(d.Grants)),
	}
	if d.Journal != nil {
		resp.Journal = &journalResponse{ID: d.Journal.ID.String(), Title: d.Journal.Title, ISSN: d.Journal.ISSN}
	}
	for i, a := range d.Authors {
		resp.Authors[i] = personResponse{
			ID:       a.ID.String(),
			Name:     a.String(),
			LastName: a.LastName,
			ForeName: a.ForeName,
			Initials: a.Initials,
		}
	}
	for i, h := range d.MeSHHeadings {
		resp.MeSHHeadings[i] = headingResponse{
			ID:         h.ID.String(),
			Label:      h.String(),
			Descriptor: h.Descriptor,
			Qualifier:  h.Qualifier,
		}
	}
	for i, g := range d.Grants {
		resp.Grants[i] = grantResponse{ID: g.ID.String(), GrantID: g.GrantID, Acronym: g.Acronym, Agency: g.Agency}
	}
	return resp
}
