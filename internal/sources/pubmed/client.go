package pubmed

import (
	"context"
	"encoding/xml"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/helixir/ncbi-query-service/internal/domain"
	"github.com/helixir/ncbi-query-service/internal/sources"
)

const sourceName = "PubMed"

// Client implements sources.Source for PubMed.
type Client struct {
	eutils *sources.EUtils
}

// Compile-time check that Client implements Source.
var _ sources.Source = (*Client)(nil)

// New creates a new PubMed client.
func New(eutils *sources.EUtils) *Client {
	return &Client{eutils: eutils}
}

// Database returns domain.DatabasePubMed.
func (c *Client) Database() domain.Database {
	return domain.DatabasePubMed
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// Search queries PubMed for PMIDs matching params.
func (c *Client) Search(ctx context.Context, params domain.SearchParams) (*domain.SearchResult, error) {
	result, err := c.eutils.Search(ctx, domain.DatabasePubMed, params)
	if err != nil {
		return nil, fmt.Errorf("esearch failed: %w", err)
	}
	return result, nil
}

// Fetch retrieves and maps the citation for a PMID.
func (c *Client) Fetch(ctx context.Context, id string) (*domain.PaperRecord, error) {
	body, err := c.eutils.Fetch(ctx, domain.DatabasePubMed, id)
	if err != nil {
		return nil, fmt.Errorf("efetch failed: %w", err)
	}
	return Parse(body, id)
}

// Parse maps an efetch document to a record for id.
func Parse(body []byte, id string) (*domain.PaperRecord, error) {
	var set PubmedArticleSet
	if err := xml.Unmarshal(body, &set); err != nil {
		return nil, domain.NewParseError(sourceName, id, err)
	}
	if len(set.Articles) == 0 {
		return nil, domain.NewNotFoundError("pubmed article", id)
	}

	article := set.Articles[0]
	for _, a := range set.Articles {
		if strings.TrimSpace(a.MedlineCitation.PMID) == id {
			article = a
			break
		}
	}

	return articleToRecord(article, id), nil
}

func articleToRecord(article PubmedArticle, id string) *domain.PaperRecord {
	citation := article.MedlineCitation

	record := &domain.PaperRecord{
		Source:       domain.DatabasePubMed,
		Identifier:   id,
		Date:         extractDate(citation),
		Abstract:     extractAbstract(citation.Article.Abstract),
		Journal:      extractJournal(citation.Article.Journal),
		Authors:      extractAuthors(citation.Article.AuthorList),
		MeSHHeadings: extractHeadings(citation.MeshHeadingList),
		Grants:       extractGrants(citation.Article.GrantList),
	}

	if citation.Article.ArticleTitle != nil {
		title := citation.Article.ArticleTitle.String()
		record.Title = &title
	}

	for _, aid := range article.PubmedData.ArticleIdList.ArticleIds {
		if aid.IdType == "pmc" {
			record.AlternateID = strings.TrimSpace(aid.Value)
			break
		}
	}

	return record
}

// extractDate prefers DateCreated, then DateCompleted, then ArticleDate, then the issue PubDate.
func extractDate(citation MedlineCitation) *time.Time {
	for _, d := range []*PubMedDate{citation.DateCreated, citation.DateCompleted} {
		if d == nil {
			continue
		}
		if t := parseDate(d.Year, d.Month, d.Day); t != nil {
			return t
		}
	}

	for _, d := range citation.Article.ArticleDate {
		if t := parseDate(d.Year, d.Month, d.Day); t != nil {
			return t
		}
	}

	if citation.Article.Journal == nil {
		return nil
	}
	pubDate := citation.Article.Journal.JournalIssue.PubDate
	if pubDate.Year != "" {
		month := pubDate.Month
		if month == "" {
			month = seasonMonth[strings.ToLower(pubDate.Season)]
		}
		return parseDate(pubDate.Year, month, pubDate.Day)
	}
	if pubDate.MedlineDate != "" {
		return parseMedlineDate(pubDate.MedlineDate)
	}

	return nil
}

// parseDate parses year, month, day strings into a time.Time.
func parseDate(year, month, day string) *time.Time {
	y, err := strconv.Atoi(strings.TrimSpace(year))
	if err != nil || y <= 0 {
		return nil
	}

	m := parseMonth(strings.TrimSpace(month))
	d := 1
	if day != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(day)); err == nil && parsed >= 1 && parsed <= 31 {
			d = parsed
		}
	}

	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	// Normalise overflow such as Feb 30 to the first of the month.
	if t.Month() != m {
		t = time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	}
	return &t
}

var monthNames = map[string]time.Month{
	"jan": time.January, "january": time.January,
	"feb": time.February, "february": time.February,
	"mar": time.March, "march": time.March,
	"apr": time.April, "april": time.April,
	"may": time.May,
	"jun": time.June, "june": time.June,
	"jul": time.July, "july": time.July,
	"aug": time.August, "august": time.August,
	"sep": time.September, "september": time.September,
	"oct": time.October, "october": time.October,
	"nov": time.November, "november": time.November,
	"dec": time.December, "december": time.December,
}

var seasonMonth = map[string]string{
	"winter": "1",
	"spring": "4",
	"summer": "7",
	"fall":   "10",
	"autumn": "10",
}

func parseMonth(month string) time.Month {
	if month == "" {
		return time.January
	}
	if m, err := strconv.Atoi(month); err == nil && m >= 1 && m <= 12 {
		return time.Month(m)
	}
	if m, ok := monthNames[strings.ToLower(month)]; ok {
		return m
	}
	return time.January
}

var leadingYear = regexp.MustCompile(`\b(\d{4})\b`)

// parseMedlineDate handles free-form dates such as "2020 Jan-Feb" or "1998 Dec 7-21".
func parseMedlineDate(s string) *time.Time {
	s = strings.TrimSpace(s)

	// Keep the first "<year> <month>" pair of a range.
	fields := strings.Fields(s)
	if len(fields) >= 2 {
		month := strings.SplitN(fields[1], "-", 2)[0]
		if _, ok := monthNames[strings.ToLower(month)]; ok {
			if t := parseDate(strings.SplitN(fields[0], "-", 2)[0], month, ""); t != nil {
				return t
			}
		}
	}

	if t, err := dateparse.ParseIn(s, time.UTC); err == nil {
		t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		return &t
	}

	if m := leadingYear.FindStringSubmatch(s); m != nil {
		return parseDate(m[1], "", "")
	}
	return nil
}

// extractAbstract joins all sections with a blank line; labelled ones render
// as "LABEL: text".
func extractAbstract(abstract *Abstract) string {
	if abstract == nil {
		return ""
	}

	parts := make([]string, 0, len(abstract.AbstractTexts))
	for _, at := range abstract.AbstractTexts {
		text := sources.Fold(at.Value)
		if text == "" {
			continue
		}
		if label := sources.Fold(at.Label); label != "" {
			text = label + ": " + text
		}
		parts = append(parts, text)
	}

	return strings.Join(parts, sources.AbstractSeparator)
}

func extractJournal(j *Journal) *domain.RecordJournal {
	if j == nil {
		return nil
	}
	title := j.Title.String()
	if title == "" {
		return nil
	}
	journal := &domain.RecordJournal{Title: title}
	if j.ISSN != nil {
		journal.ISSN = sources.Fold(j.ISSN.Value)
	}
	return journal
}

func extractAuthors(authorList *AuthorList) []domain.RecordAuthor {
	if authorList == nil {
		return nil
	}

	authors := make([]domain.RecordAuthor, 0, len(authorList.Authors))
	for _, a := range authorList.Authors {
		if a.ValidYN == "N" {
			continue
		}

		author := domain.RecordAuthor{
			LastName: sources.Fold(a.LastName),
			ForeName: sources.Fold(a.ForeName),
			Initials: sources.Fold(a.Initials),
		}
		if collective := a.CollectiveName.String(); collective != "" && author.LastName == "" {
			author.LastName = collective
		}
		if !author.Named() {
			continue
		}

		for _, info := range a.AffiliationInfo {
			if name := info.Affiliation.String(); name != "" {
				author.Affiliations = append(author.Affiliations, name)
			}
		}

		authors = append(authors, author)
	}

	return authors
}

func extractHeadings(list *MeshHeadingList) []domain.RecordHeading {
	if list == nil {
		return nil
	}

	headings := make([]domain.RecordHeading, 0, len(list.MeshHeadings))
	for _, mh := range list.MeshHeadings {
		descriptor := sources.Fold(mh.DescriptorName)
		if descriptor == "" {
			continue
		}

		added := false
		for _, q := range mh.QualifierNames {
			qualifier := sources.Fold(q)
			if qualifier == "" {
				continue
			}
			headings = append(headings, domain.RecordHeading{Descriptor: descriptor, Qualifier: qualifier})
			added = true
		}
		if !added {
			headings = append(headings, domain.RecordHeading{Descriptor: descriptor})
		}
	}

	return headings
}

func extractGrants(list *GrantList) []domain.RecordGrant {
	if list == nil {
		return nil
	}

	grants := make([]domain.RecordGrant, 0, len(list.Grants))
	for _, g := range list.Grants {
		grant := domain.RecordGrant{
			GrantID: sources.Fold(g.GrantID),
			Acronym: sources.Fold(g.Acronym),
			Agency:  sources.Fold(g.Agency),
			Country: sources.Fold(g.Country),
		}
		if grant == (domain.RecordGrant{}) {
			continue
		}
		grants = append(grants, grant)
	}

	return grants
}
