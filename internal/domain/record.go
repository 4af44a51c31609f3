package domain

import "time"

// PaperRecord is a fetched document mapped to source-neutral fields.
type PaperRecord struct {
	Source     Database
	Identifier string
	// AlternateID carries a secondary accession, such as the PMC article id.
	AlternateID  string
	Title        *string
	Abstract     string
	Date         *time.Time
	Journal      *RecordJournal
	Authors      []RecordAuthor
	MeSHHeadings []RecordHeading
	Grants       []RecordGrant
}

// RecordJournal is the journal block of a fetched record.
type RecordJournal struct {
	Title string
	ISSN  string
}

// RecordAuthor is one author of a fetched record.
type RecordAuthor struct {
	LastName     string
	ForeName     string
	Initials     string
	Affiliations []string
}

// Named reports whether any name part is set. An author known only by
// initials is still a person.
func (a RecordAuthor) Named() bool {
	return a.LastName != "" || a.ForeName != "" || a.Initials != ""
}

// RecordHeading is one MeSH heading; an empty Qualifier means none.
type RecordHeading struct {
	Descriptor string
	Qualifier  string
}

// RecordGrant is one grant entry of a fetched record.
type RecordGrant struct {
	GrantID string
	Acronym string
	Agency  string
	Country string
}

// SearchParams are the inputs to an esearch call.
type SearchParams struct {
	Query      string
	MaxResults int
	Offset     int
}

// SearchResult holds the identifiers returned by esearch.
type SearchResult struct {
	Identifiers []string
	TotalCount  int
}
