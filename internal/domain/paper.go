package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Paper is a record identified by a source identifier within one database.
// Stubs created by a search carry only Identifier and Source until retrieved.
type Paper struct {
	ID          uuid.UUID
	Title       *string
	Abstract    string
	PubDate     *time.Time
	Identifier  string
	Source      Database
	JournalID   *uuid.UUID
	Retrieved   bool
	CreatedAt   time.Time
	RetrievedAt *time.Time
}

// DisplayTitle returns the title or the identifier for stubs.
func (p *Paper) DisplayTitle() string {
	if p.Title != nil && *p.Title != "" {
		return *p.Title
	}
	return p.Source.String() + ":" + p.Identifier
}

// PaperDetail is a paper with its related entities resolved.
type PaperDetail struct {
	Paper
	Journal      *Journal
	Authors      []Person
	MeSHHeadings []MeSHHeading
	Grants       []Grant
}

// Journal is a periodical identified by ISSN and title.
type Journal struct {
	ID    uuid.UUID
	Title string
	ISSN  string
}

// Person is an author identified by name parts.
type Person struct {
	ID       uuid.UUID
	LastName string
	ForeName string
	Initials string
}

// String renders the person as "<fore> <last>".
func (p Person) String() string {
	if name := strings.TrimSpace(p.ForeName + " " + p.LastName); name != "" {
		return name
	}
	return p.Initials
}

// Country is a named country.
type Country struct {
	ID   uuid.UUID
	Name string
}

// Institution is an affiliation target.
type Institution struct {
	ID        uuid.UUID
	Name      string
	CountryID *uuid.UUID
}

// Affiliation ties a person to an institution at a point in time.
type Affiliation struct {
	ID            uuid.UUID
	PersonID      uuid.UUID
	InstitutionID uuid.UUID
	Date          *time.Time
}

// Agency is a funding body.
type Agency struct {
	ID        uuid.UUID
	Name      string
	CountryID *uuid.UUID
}

// Grant is a funding award identified by grant id and acronym.
type Grant struct {
	ID        uuid.UUID
	GrantID   string
	Acronym   string
	AwardedBy *uuid.UUID
	Agency    string
}

// MeSHDescriptor is a Medical Subject Headings descriptor.
type MeSHDescriptor struct {
	ID          uuid.UUID
	Descriptor  string
	TreeNumbers []string
}

// MeSHQualifier is a MeSH subheading.
type MeSHQualifier struct {
	ID         uuid.UUID
	Subheading string
}

// MeSHHeading pairs a descriptor with an optional qualifier.
type MeSHHeading struct {
	ID           uuid.UUID
	DescriptorID uuid.UUID
	QualifierID  *uuid.UUID
	Descriptor   string
	Qualifier    string
}

// String renders "<descriptor>/<qualifier>" or just the descriptor.
func (h MeSHHeading) String() string {
	if h.Qualifier == "" {
		return h.Descriptor
	}
	return h.Descriptor + "/" + h.Qualifier
}
