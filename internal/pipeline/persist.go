package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/helixir/ncbi-query-service/internal/domain"
	"github.com/helixir/ncbi-query-service/internal/observability"
	"github.com/helixir/ncbi-query-service/internal/repository"
)

// Entity labels used for get-or-create metrics.
const (
	entityPaper       = "paper"
	entityCountry     = "country"
	entityAgency      = "agency"
	entityGrant       = "grant"
	entityPerson      = "person"
	entityInstitution = "institution"
	entityAffiliation = "affiliation"
	entityDescriptor  = "mesh_descriptor"
	entityQualifier   = "mesh_qualifier"
	entityHeading     = "mesh_heading"
	entityJournal     = "journal"
)

// entityTally collects get-or-create outcomes until the transaction commits.
type entityTally struct {
	outcomes []entityOutcome
}

type entityOutcome struct {
	entity  string
	created bool
}

func newEntityTally() *entityTally {
	return &entityTally{}
}

func (t *entityTally) add(entity string, created bool) {
	t.outcomes = append(t.outcomes, entityOutcome{entity: entity, created: created})
}

func (t *entityTally) record(m *observability.Metrics) {
	if m == nil {
		return
	}
	for _, o := range t.outcomes {
		m.RecordEntity(o.entity, o.created)
	}
}

// persister writes one fetched record inside a transaction.
type persister struct {
	repos repository.Repositories
	paper *domain.Paper
	tally *entityTally
}

func (p *persister) persist(ctx context.Context, record *domain.PaperRecord) (*RetrieveResult, error) {
	result := &RetrieveResult{}

	grants, err := p.persistGrants(ctx, record.Grants)
	if err != nil {
		return nil, err
	}
	result.Grants = grants

	authors, err := p.persistAuthors(ctx, record)
	if err != nil {
		return nil, err
	}
	result.Authors = authors

	headings, err := p.persistHeadings(ctx, record.MeSHHeadings)
	if err != nil {
		return nil, err
	}
	result.Headings = headings

	journalID, err := p.persistJournal(ctx, record.Journal)
	if err != nil {
		return nil, err
	}

	err = p.repos.Papers.UpdateMetadata(ctx, p.paper.ID, repository.PaperMetadata{
		Title:     record.Title,
		Abstract:  record.Abstract,
		PubDate:   record.Date,
		JournalID: journalID,
	})
	if err != nil {
		return nil, fmt.Errorf("update paper metadata: %w", err)
	}

	p.paper.Title = record.Title
	p.paper.Abstract = record.Abstract
	p.paper.PubDate = record.Date
	p.paper.JournalID = journalID

	return result, nil
}

// persistGrants stores country, agency and grant in that order. The agency
// and country are stored even when the grant has no id.
func (p *persister) persistGrants(ctx context.Context, grants []domain.RecordGrant) (int, error) {
	linked := 0
	for _, g := range grants {
		var countryID *uuid.UUID
		if name := strings.TrimSpace(g.Country); name != "" {
			country, created, err := p.repos.Catalog.GetOrCreateCountry(ctx, name)
			if err != nil {
				return linked, fmt.Errorf("country %q: %w", name, err)
			}
			p.tally.add(entityCountry, created)
			countryID = &country.ID
		}

		var agencyID *uuid.UUID
		if name := strings.TrimSpace(g.Agency); name != "" {
			agency, created, err := p.repos.Catalog.GetOrCreateAgency(ctx, name, countryID)
			if err != nil {
				return linked, fmt.Errorf("agency %q: %w", name, err)
			}
			p.tally.add(entityAgency, created)
			agencyID = &agency.ID
		}

		if strings.TrimSpace(g.GrantID) == "" {
			continue
		}

		grant, created, err := p.repos.Catalog.GetOrCreateGrant(ctx, g.GrantID, g.Acronym, agencyID)
		if err != nil {
			return linked, fmt.Errorf("grant %q: %w", g.GrantID, err)
		}
		p.tally.add(entityGrant, created)

		if err := p.repos.Papers.AddGrant(ctx, p.paper.ID, grant.ID); err != nil {
			return linked, err
		}
		linked++
	}
	return linked, nil
}

// persistAuthors stores each author and one affiliation per institution,
// dated with the record date.
func (p *persister) persistAuthors(ctx context.Context, record *domain.PaperRecord) (int, error) {
	linked := 0
	for _, a := range record.Authors {
		if !a.Named() {
			continue
		}

		person, created, err := p.repos.Catalog.GetOrCreatePerson(ctx, a.LastName, a.ForeName, a.Initials)
		if err != nil {
			return linked, fmt.Errorf("person %q: %w", a.LastName, err)
		}
		p.tally.add(entityPerson, created)

		linked++
		if err := p.repos.Papers.AddAuthor(ctx, p.paper.ID, person.ID, linked); err != nil {
			return linked, err
		}

		for _, name := range a.Affiliations {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}

			institution, created, err := p.repos.Catalog.GetOrCreateInstitution(ctx, name, nil)
			if err != nil {
				return linked, fmt.Errorf("institution %q: %w", name, err)
			}
			p.tally.add(entityInstitution, created)

			_, created, err = p.repos.Catalog.GetOrCreateAffiliation(ctx, person.ID, institution.ID, record.Date)
			if err != nil {
				return linked, fmt.Errorf("affiliation: %w", err)
			}
			p.tally.add(entityAffiliation, created)
		}
	}
	return linked, nil
}

func (p *persister) persistHeadings(ctx context.Context, headings []domain.RecordHeading) (int, error) {
	linked := 0
	for _, h := range headings {
		if h.Descriptor == "" {
			continue
		}

		descriptor, created, err := p.repos.Catalog.GetOrCreateDescriptor(ctx, h.Descriptor)
		if err != nil {
			return linked, fmt.Errorf("mesh descriptor %q: %w", h.Descriptor, err)
		}
		p.tally.add(entityDescriptor, created)

		var qualifierID *uuid.UUID
		if h.Qualifier != "" {
			qualifier, created, err := p.repos.Catalog.GetOrCreateQualifier(ctx, h.Qualifier)
			if err != nil {
				return linked, fmt.Errorf("mesh qualifier %q: %w", h.Qualifier, err)
			}
			p.tally.add(entityQualifier, created)
			qualifierID = &qualifier.ID
		}

		heading, created, err := p.repos.Catalog.GetOrCreateHeading(ctx, descriptor.ID, qualifierID)
		if err != nil {
			return linked, fmt.Errorf("mesh heading %q: %w", h.Descriptor, err)
		}
		p.tally.add(entityHeading, created)

		if err := p.repos.Papers.AddMeSHHeading(ctx, p.paper.ID, heading.ID); err != nil {
			return linked, err
		}
		linked++
	}
	return linked, nil
}

func (p *persister) persistJournal(ctx context.Context, journal *domain.RecordJournal) (*uuid.UUID, error) {
	if journal == nil || journal.Title == "" {
		return nil, nil
	}

	stored, created, err := p.repos.Catalog.GetOrCreateJournal(ctx, journal.Title, journal.ISSN)
	if err != nil {
		return nil, fmt.Errorf("journal %q: %w", journal.Title, err)
	}
	p.tally.add(entityJournal, created)
	return &stored.ID, nil
}
