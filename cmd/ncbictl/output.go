package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"

	"github.com/helixir/ncbi-query-service/internal/domain"
	"github.com/helixir/ncbi-query-service/internal/pipeline"
)

const (
	formatTable = "table"
	formatJSON  = "json"
)

type queryView struct {
	ID          uuid.UUID  `json:"id"`
	Database    string     `json:"database"`
	QueryString string     `json:"querystring"`
	RetMax      int        `json:"retmax"`
	CreatedBy   string     `json:"created_by"`
	CreatedOn   time.Time  `json:"created_on"`
	Executed    bool       `json:"executed"`
	ExecutedOn  *time.Time `json:"executed_on"`
	ResultCount int        `json:"result_count"`
}

func newQueryView(q *domain.Query) queryView {
	return queryView{
		ID:          q.ID,
		Database:    q.Database.String(),
		QueryString: q.QueryString,
		RetMax:      q.RetMax,
		CreatedBy:   q.CreatedBy,
		CreatedOn:   q.CreatedOn,
		Executed:    q.Executed,
		ExecutedOn:  q.ExecutedOn,
		ResultCount: q.ResultCount,
	}
}

type paperView struct {
	ID         uuid.UUID `json:"id"`
	Source     string    `json:"source"`
	Identifier string    `json:"identifier"`
	Title      string    `json:"title"`
	PubDate    string    `json:"pubdate,omitempty"`
	Retrieved  bool      `json:"retrieved"`
}

func newPaperView(p *domain.Paper) paperView {
	v := paperView{
		ID:         p.ID,
		Source:     p.Source.String(),
		Identifier: p.Identifier,
		Title:      p.DisplayTitle(),
		Retrieved:  p.Retrieved,
	}
	if p.PubDate != nil {
		v.PubDate = p.PubDate.Format("2006-01-02")
	}
	return v
}

type paperDetailView struct {
	paperView
	Abstract string   `json:"abstract,omitempty"`
	Journal  string   `json:"journal,omitempty"`
	Authors  []string `json:"authors"`
	MeSH     []string `json:"mesh_headings"`
	Grants   []string `json:"grants"`
}

func newPaperDetailView(d *domain.PaperDetail) paperDetailView {
	v := paperDetailView{
		paperView: newPaperView(&d.Paper),
		Abstract:  d.Abstract,
		Authors:   make([]string, 0, len(d.Authors)),
		MeSH:      make([]string, 0, len(d.MeSHHeadings)),
		Grants:    make([]string, 0, len(d.Grants)),
	}
	if d.Journal != nil {
		v.Journal = d.Journal.Title
		if d.Journal.ISSN != "" {
			v.Journal += " (" + d.Journal.ISSN + ")"
		}
	}
	for _, a := range d.Authors {
		v.Authors = append(v.Authors, a.String())
	}
	for _, h := range d.MeSHHeadings {
		v.MeSH = append(v.MeSH, h.String())
	}
	for _, g := range d.Grants {
		label := g.GrantID
		if g.Acronym != "" {
			label += "/" + g.Acronym
		}
		if g.Agency != "" {
			label += " " + g.Agency
		}
		v.Grants = append(v.Grants, label)
	}
	return v
}

type outcomeView struct {
	ID     uuid.UUID `json:"id"`
	Status string    `json:"status"`
	Detail string    `json:"detail,omitempty"`
	Error  string    `json:"error,omitempty"`
}

func queryOutcomeViews(outcomes []pipeline.QueryOutcome) []outcomeView {
	views := make([]outcomeView, 0, len(outcomes))
	for _, o := range outcomes {
		v := outcomeView{ID: o.QueryID, Status: "ok"}
		switch {
		case o.Err != nil:
			v.Status = "failed"
			v.Error = o.Err.Error()
		case o.Result != nil:
			v.Detail = fmt.Sprintf("%d papers (%d new) of %d", len(o.Result.PaperIDs), o.Result.NewPapers, o.Result.TotalCount)
		}
		views = append(views, v)
	}
	return views
}

func paperOutcomeViews(outcomes []pipeline.PaperOutcome) []outcomeView {
	views := make([]outcomeView, 0, len(outcomes))
	for _, o := range outcomes {
		v := outcomeView{ID: o.PaperID, Status: "ok"}
		switch {
		case o.Err != nil:
			v.Status = "failed"
			v.Error = o.Err.Error()
		case o.Result != nil && o.Result.Skipped:
			v.Status = "skipped"
			v.Detail = "already retrieved"
		case o.Result != nil:
			v.Detail = fmt.Sprintf("%d authors, %d headings, %d grants", o.Result.Authors, o.Result.Headings, o.Result.Grants)
		}
		views = append(views, v)
	}
	return views
}

func (c *cli) printJSON(v interface{}) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printTable writes header and rows as aligned columns.
func (c *cli) printTable(header []string, rows [][]string) error {
	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(header, "\t"))
	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	return w.Flush()
}

func (c *cli) printQueries(queries []queryView, total int64) error {
	if c.format == formatJSON {
		return c.printJSON(map[string]interface{}{"queries": queries, "total": total})
	}
	rows := make([][]string, 0, len(queries))
	for _, q := range queries {
		executed := "never"
		if q.ExecutedOn != nil {
			executed = q.ExecutedOn.UTC().Format(time.RFC3339)
		}
		rows = append(rows, []string{
			q.ID.String(), q.Database, truncate(q.QueryString, 60),
			fmt.Sprint(q.RetMax), executed, fmt.Sprint(q.ResultCount),
		})
	}
	if err := c.printTable([]string{"ID", "DATABASE", "QUERY", "RETMAX", "EXECUTED", "RESULTS"}, rows); err != nil {
		return err
	}
	_, err := fmt.Fprintf(c.out, "%d of %d queries\n", len(queries), total)
	return err
}

func (c *cli) printPapers(papers []paperView, total int64) error {
	if c.format == formatJSON {
		return c.printJSON(map[string]interface{}{"papers": papers, "total": total})
	}
	rows := make([][]string, 0, len(papers))
	for _, p := range papers {
		rows = append(rows, []string{
			p.ID.String(), p.Source, p.Identifier, fmt.Sprint(p.Retrieved), p.PubDate, truncate(p.Title, 60),
		})
	}
	if err := c.printTable([]string{"ID", "SOURCE", "IDENTIFIER", "RETRIEVED", "PUBDATE", "TITLE"}, rows); err != nil {
		return err
	}
	_, err := fmt.Fprintf(c.out, "%d of %d papers\n", len(papers), total)
	return err
}

func (c *cli) printOutcomes(outcomes []outcomeView) error {
	if c.format == formatJSON {
		return c.printJSON(map[string]interface{}{"results": outcomes})
	}
	rows := make([][]string, 0, len(outcomes))
	for _, o := range outcomes {
		detail := o.Detail
		if o.Error != "" {
			detail = o.Error
		}
		rows = append(rows, []string{o.ID.String(), o.Status, detail})
	}
	return c.printTable([]string{"ID", "STATUS", "DETAIL"}, rows)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
