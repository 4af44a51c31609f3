package pmc

import (
	"context"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/helixir/ncbi-query-service/internal/domain"
	"github.com/helixir/ncbi-query-service/internal/sources"
)

const sourceName = "PMC"

// Client implements sources.Source for PubMed Central.
type Client struct {
	eutils *sources.EUtils
}

// Compile-time check that Client implements Source.
var _ sources.Source = (*Client)(nil)

// New creates a new PMC client.
func New(eutils *sources.EUtils) *Client {
	return &Client{eutils: eutils}
}

// Database returns domain.DatabasePMC.
func (c *Client) Database() domain.Database {
	return domain.DatabasePMC
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// Search queries PMC for numeric article ids matching params.
func (c *Client) Search(ctx context.Context, params domain.SearchParams) (*domain.SearchResult, error) {
	result, err := c.eutils.Search(ctx, domain.DatabasePMC, params)
	if err != nil {
		return nil, fmt.Errorf("esearch failed: %w", err)
	}
	return result, nil
}

// Fetch retrieves and maps the JATS front matter for a PMC id.
func (c *Client) Fetch(ctx context.Context, id string) (*domain.PaperRecord, error) {
	body, err := c.eutils.Fetch(ctx, domain.DatabasePMC, id)
	if err != nil {
		return nil, fmt.Errorf("efetch failed: %w", err)
	}
	return Parse(body, id)
}

// Parse maps an efetch document to a record for id.
func Parse(body []byte, id string) (*domain.PaperRecord, error) {
	var set ArticleSet
	if err := xml.Unmarshal(body, &set); err != nil {
		return nil, domain.NewParseError(sourceName, id, err)
	}
	if len(set.Articles) == 0 {
		return nil, domain.NewNotFoundError("pmc article", id)
	}

	return articleToRecord(set.Articles[0].Front, id), nil
}

func articleToRecord(front Front, id string) *domain.PaperRecord {
	meta := front.ArticleMeta

	record := &domain.PaperRecord{
		Source:     domain.DatabasePMC,
		Identifier: id,
		Date:       extractDate(meta.PubDates),
		Abstract:   extractAbstract(meta.Abstracts),
		Journal:    extractJournal(front.JournalMeta),
		Authors:    extractAuthors(meta),
		Grants:     extractGrants(meta.FundingGroups),
	}

	if meta.TitleGroup != nil && meta.TitleGroup.ArticleTitle != nil {
		title := meta.TitleGroup.ArticleTitle.String()
		record.Title = &title
	}

	for _, aid := range meta.ArticleIDs {
		if aid.PubIDType == "pmc" || aid.PubIDType == "pmcid" {
			record.AlternateID = strings.TrimSpace(aid.Value)
			break
		}
	}

	return record
}

// dateRank orders pub-date kinds: epub, then ppub, then pub.
func dateRank(d PubDate) int {
	switch {
	case d.PubType == "epub" || d.PublicationFormat == "electronic":
		return 0
	case d.PubType == "ppub" || d.PublicationFormat == "print":
		return 1
	case d.PubType == "pub" || d.DateType == "pub":
		return 2
	default:
		return 3
	}
}

func extractDate(dates []PubDate) *time.Time {
	var best *PubDate
	for i := range dates {
		if best == nil || dateRank(dates[i]) < dateRank(*best) {
			best = &dates[i]
		}
	}
	if best == nil {
		return nil
	}

	y, err := strconv.Atoi(strings.TrimSpace(best.Year))
	if err != nil || y <= 0 {
		return nil
	}
	m := 1
	if v, err := strconv.Atoi(strings.TrimSpace(best.Month)); err == nil && v >= 1 && v <= 12 {
		m = v
	}
	d := 1
	if v, err := strconv.Atoi(strings.TrimSpace(best.Day)); err == nil && v >= 1 && v <= 31 {
		d = v
	}

	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if int(t.Month()) != m {
		t = time.Date(y, time.Month(m), 1, 0, 0, 0, 0, time.UTC)
	}
	return &t
}

// extractAbstract uses the first abstract without an abstract-type, or the first one.
func extractAbstract(abstracts []Abstract) string {
	if len(abstracts) == 0 {
		return ""
	}
	abstract := abstracts[0]
	for _, a := range abstracts {
		if a.AbstractType == "" {
			abstract = a
			break
		}
	}

	var parts []string
	for _, p := range abstract.Paragraphs {
		if text := p.String(); text != "" {
			parts = append(parts, text)
		}
	}
	for _, sec := range abstract.Sections {
		var body []string
		for _, p := range sec.Paragraphs {
			if text := p.String(); text != "" {
				body = append(body, text)
			}
		}
		if len(body) == 0 {
			continue
		}
		text := strings.Join(body, " ")
		if label := sec.Title.String(); label != "" {
			text = label + ": " + text
		}
		parts = append(parts, text)
	}

	return strings.Join(parts, sources.AbstractSeparator)
}

func extractJournal(meta JournalMeta) *domain.RecordJournal {
	title := ""
	for _, group := range meta.TitleGroups {
		for _, t := range group.Titles {
			if title = t.String(); title != "" {
				break
			}
		}
		if title != "" {
			break
		}
	}
	if title == "" {
		title = meta.LegacyTitle.String()
	}
	if title == "" {
		return nil
	}

	journal := &domain.RecordJournal{Title: title}
	for _, issn := range meta.ISSNs {
		value := sources.Fold(issn.Value)
		if value == "" {
			continue
		}
		if issn.PubType == "ppub" || issn.PublicationFormat == "print" {
			journal.ISSN = value
			break
		}
		if journal.ISSN == "" {
			journal.ISSN = value
		}
	}
	return journal
}

func extractAuthors(meta ArticleMeta) []domain.RecordAuthor {
	affs := make(map[string]string)
	for _, aff := range meta.Affs {
		affs[aff.ID] = sources.Fold(aff.Text)
	}
	for _, group := range meta.ContribGroups {
		for _, aff := range group.Affs {
			affs[aff.ID] = sources.Fold(aff.Text)
		}
	}

	var authors []domain.RecordAuthor
	for _, group := range meta.ContribGroups {
		for _, contrib := range group.Contribs {
			if contrib.ContribType != "author" {
				continue
			}

			var author domain.RecordAuthor
			switch {
			case contrib.Name != nil:
				author.LastName = sources.Fold(contrib.Name.Surname)
				author.ForeName = sources.Fold(contrib.Name.GivenNames.Value)
				author.Initials = sources.Fold(contrib.Name.GivenNames.Initials)
				if author.Initials == "" {
					author.Initials = initials(author.ForeName)
				}
			default:
				author.LastName = contrib.Collab.String()
			}
			if !author.Named() {
				continue
			}

			seen := make(map[string]bool)
			add := func(name string) {
				if name == "" || seen[name] {
					return
				}
				seen[name] = true
				author.Affiliations = append(author.Affiliations, name)
			}
			for _, xref := range contrib.XRefs {
				if xref.RefType != "aff" {
					continue
				}
				for _, rid := range strings.Fields(xref.RID) {
					add(affs[rid])
				}
			}
			for _, aff := range contrib.Affs {
				add(sources.Fold(aff.Text))
			}

			authors = append(authors, author)
		}
	}

	return authors
}

// initials derives "JP" from "Jean-Pierre" and "AB" from "Anna B.".
func initials(given string) string {
	var b strings.Builder
	for _, part := range strings.FieldsFunc(given, func(r rune) bool {
		return unicode.IsSpace(r) || r == '-' || r == '.'
	}) {
		for _, r := range part {
			b.WriteRune(unicode.ToUpper(r))
			break
		}
	}
	return b.String()
}

func extractGrants(groups []FundingGroup) []domain.RecordGrant {
	var grants []domain.RecordGrant
	for _, group := range groups {
		for _, award := range group.AwardGroups {
			var agencies []string
			for _, src := range award.FundingSources {
				if name := src.String(); name != "" {
					agencies = append(agencies, name)
				}
			}
			agency := strings.Join(agencies, "; ")

			if len(award.AwardIDs) == 0 {
				if agency != "" {
					grants = append(grants, domain.RecordGrant{Agency: agency})
				}
				continue
			}
			for _, awardID := range award.AwardIDs {
				grants = append(grants, domain.RecordGrant{
					GrantID: sources.Fold(awardID),
					Agency:  agency,
				})
			}
		}
	}
	return grants
}
