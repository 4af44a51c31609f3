package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/helixir/ncbi-query-service/internal/domain"
)

// Compile-time interface verification.
var _ CatalogRepository = (*PgCatalogRepository)(nil)

// PgCatalogRepository is a PostgreSQL implementation of CatalogRepository.
type PgCatalogRepository struct {
	db DBTX
}

// NewPgCatalogRepository creates a new PostgreSQL catalog repository.
func NewPgCatalogRepository(db DBTX) *PgCatalogRepository {
	return &PgCatalogRepository{db: db}
}

// GetOrCreateCountry returns the country named name, creating it if needed.
func (r *PgCatalogRepository) GetOrCreateCountry(ctx context.Context, name string) (*domain.Country, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, false, domain.NewValidationError("name", "country name is required")
	}

	query := `
		WITH ins AS (
			INSERT INTO countries (id, name) VALUES ($1, $2)
			ON CONFLICT (name) DO NOTHING
			RETURNING id, name, TRUE AS created
		)
		SELECT id, name, created FROM ins
		UNION ALL
		SELECT id, name, FALSE FROM countries WHERE name = $2
		LIMIT 1`

	var c domain.Country
	var created bool
	if err := getOrCreate(ctx, r.db, query, []interface{}{uuid.New(), name}, &c.ID, &c.Name, &created); err != nil {
		return nil, false, fmt.Errorf("failed to get or create country: %w", err)
	}
	return &c, created, nil
}

// GetOrCreateInstitution returns the institution named name, creating it if needed.
func (r *PgCatalogRepository) GetOrCreateInstitution(ctx context.Context, name string, countryID *uuid.UUID) (*domain.Institution, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, false, domain.NewValidationError("name", "institution name is required")
	}

	query := `
		WITH ins AS (
			INSERT INTO institutions (id, name, country_id) VALUES ($1, $2, $3)
			ON CONFLICT (name) DO NOTHING
			RETURNING id, name, country_id, TRUE AS created
		)
		SELECT id, name, country_id, created FROM ins
		UNION ALL
		SELECT id, name, country_id, FALSE FROM institutions WHERE name = $2
		LIMIT 1`

	var inst domain.Institution
	var created bool
	if err := getOrCreate(ctx, r.db, query, []interface{}{uuid.New(), name, countryID},
		&inst.ID, &inst.Name, &inst.CountryID, &created); err != nil {
		return nil, false, fmt.Errorf("failed to get or create institution: %w", err)
	}
	return &inst, created, nil
}

// GetOrCreateAgency returns the agency named name, creating it if needed.
func (r *PgCatalogRepository) GetOrCreateAgency(ctx context.Context, name string, countryID *uuid.UUID) (*domain.Agency, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, false, domain.NewValidationError("name", "agency name is required")
	}

	query := `
		WITH ins AS (
			INSERT INTO agencies (id, name, country_id) VALUES ($1, $2, $3)
			ON CONFLICT (name) DO NOTHING
			RETURNING id, name, country_id, TRUE AS created
		)
		SELECT id, name, country_id, created FROM ins
		UNION ALL
		SELECT id, name, country_id, FALSE FROM agencies WHERE name = $2
		LIMIT 1`

	var a domain.Agency
	var created bool
	if err := getOrCreate(ctx, r.db, query, []interface{}{uuid.New(), name, countryID},
		&a.ID, &a.Name, &a.CountryID, &created); err != nil {
		return nil, false, fmt.Errorf("failed to get or create agency: %w", err)
	}
	return &a, created, nil
}

// GetOrCreateGrant returns the grant keyed by (grantID, acronym), creating it if needed.
func (r *PgCatalogRepository) GetOrCreateGrant(ctx context.Context, grantID, acronym string, awardedBy *uuid.UUID) (*domain.Grant, bool, error) {
	grantID = strings.TrimSpace(grantID)
	if grantID == "" {
		return nil, false, domain.NewValidationError("grant_id", "grant id is required")
	}
	acronym = strings.TrimSpace(acronym)

	query := `
		WITH ins AS (
			INSERT INTO grants (id, grant_id, acronym, awarded_by) VALUES ($1, $2, $3, $4)
			ON CONFLICT (grant_id, acronym) DO NOTHING
			RETURNING id, grant_id, acronym, awarded_by, TRUE AS created
		)
		SELECT id, grant_id, acronym, awarded_by, created FROM ins
		UNION ALL
		SELECT id, grant_id, acronym, awarded_by, FALSE FROM grants WHERE grant_id = $2 AND acronym = $3
		LIMIT 1`

	var g domain.Grant
	var created bool
	if err := getOrCreate(ctx, r.db, query, []interface{}{uuid.New(), grantID, acronym, awardedBy},
		&g.ID, &g.GrantID, &g.Acronym, &g.AwardedBy, &created); err != nil {
		return nil, false, fmt.Errorf("failed to get or create grant: %w", err)
	}
	return &g, created, nil
}

// GetOrCreateJournal returns the journal keyed by (issn, title), creating it if needed.
func (r *PgCatalogRepository) GetOrCreateJournal(ctx context.Context, title, issn string) (*domain.Journal, bool, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, false, domain.NewValidationError("title", "journal title is required")
	}
	issn = strings.TrimSpace(issn)

	query := `
		WITH ins AS (
			INSERT INTO journals (id, title, issn) VALUES ($1, $2, $3)
			ON CONFLICT (issn, title) DO NOTHING
			RETURNING id, title, issn, TRUE AS created
		)
		SELECT id, title, issn, created FROM ins
		UNION ALL
		SELECT id, title, issn, FALSE FROM journals WHERE issn = $3 AND title = $2
		LIMIT 1`

	var j domain.Journal
	var created bool
	if err := getOrCreate(ctx, r.db, query, []interface{}{uuid.New(), title, issn},
		&j.ID, &j.Title, &j.ISSN, &created); err != nil {
		return nil, false, fmt.Errorf("failed to get or create journal: %w", err)
	}
	return &j, created, nil
}

// GetOrCreatePerson returns the person keyed by name parts, creating it if needed.
func (r *PgCatalogRepository) GetOrCreatePerson(ctx context.Context, lastName, foreName, initials string) (*domain.Person, bool, error) {
	lastName = strings.TrimSpace(lastName)
	foreName = strings.TrimSpace(foreName)
	initials = strings.TrimSpace(initials)
	if lastName == "" && foreName == "" && initials == "" {
		return nil, false, domain.NewValidationError("last_name", "person name is required")
	}

	query := `
		WITH ins AS (
			INSERT INTO persons (id, last_name, fore_name, initials) VALUES ($1, $2, $3, $4)
			ON CONFLICT (fore_name, last_name, initials) DO NOTHING
			RETURNING id, last_name, fore_name, initials, TRUE AS created
		)
		SELECT id, last_name, fore_name, initials, created FROM ins
		UNION ALL
		SELECT id, last_name, fore_name, initials, FALSE FROM persons
		WHERE fore_name = $3 AND last_name = $2 AND initials = $4
		LIMIT 1`

	var p domain.Person
	var created bool
	if err := getOrCreate(ctx, r.db, query, []interface{}{uuid.New(), lastName, foreName, initials},
		&p.ID, &p.LastName, &p.ForeName, &p.Initials, &created); err != nil {
		return nil, false, fmt.Errorf("failed to get or create person: %w", err)
	}
	return &p, created, nil
}

// GetOrCreateAffiliation links a person to an institution at date, once.
func (r *PgCatalogRepository) GetOrCreateAffiliation(ctx context.Context, personID, institutionID uuid.UUID, date *time.Time) (*domain.Affiliation, bool, error) {
	query := `
		WITH ins AS (
			INSERT INTO affiliations (id, person_id, institution_id, date) VALUES ($1, $2, $3, $4)
			ON CONFLICT ON CONSTRAINT affiliations_person_institution_date_key DO NOTHING
			RETURNING id, person_id, institution_id, date, TRUE AS created
		)
		SELECT id, person_id, institution_id, date, created FROM ins
		UNION ALL
		SELECT id, person_id, institution_id, date, FALSE FROM affiliations
		WHERE person_id = $2 AND institution_id = $3 AND date IS NOT DISTINCT FROM $4
		LIMIT 1`

	var a domain.Affiliation
	var created bool
	err := getOrCreate(ctx, r.db, query, []interface{}{uuid.New(), personID, institutionID, date},
		&a.ID, &a.PersonID, &a.InstitutionID, &a.Date, &created)
	if err != nil {
		if isPgError(err, pgForeignKeyViolation) {
			return nil, false, domain.NewNotFoundError("person or institution", personID.String())
		}
		return nil, false, fmt.Errorf("failed to get or create affiliation: %w", err)
	}
	return &a, created, nil
}

// GetOrCreateDescriptor returns the MeSH descriptor, creating it if needed.
func (r *PgCatalogRepository) GetOrCreateDescriptor(ctx context.Context, descriptor string) (*domain.MeSHDescriptor, bool, error) {
	descriptor = strings.TrimSpace(descriptor)
	if descriptor == "" {
		return nil, false, domain.NewValidationError("descriptor", "descriptor is required")
	}

	query := `
		WITH ins AS (
			INSERT INTO mesh_descriptors (id, descriptor) VALUES ($1, $2)
			ON CONFLICT (descriptor) DO NOTHING
			RETURNING id, descriptor, tree_numbers, TRUE AS created
		)
		SELECT id, descriptor, tree_numbers, created FROM ins
		UNION ALL
		SELECT id, descriptor, tree_numbers, FALSE FROM mesh_descriptors WHERE descriptor = $2
		LIMIT 1`

	var d domain.MeSHDescriptor
	var created bool
	if err := getOrCreate(ctx, r.db, query, []interface{}{uuid.New(), descriptor},
		&d.ID, &d.Descriptor, &d.TreeNumbers, &created); err != nil {
		return nil, false, fmt.Errorf("failed to get or create mesh descriptor: %w", err)
	}
	return &d, created, nil
}

// GetOrCreateQualifier returns the MeSH qualifier, creating it if needed.
func (r *PgCatalogRepository) GetOrCreateQualifier(ctx context.Context, subheading string) (*domain.MeSHQualifier, bool, error) {
	subheading = strings.TrimSpace(subheading)
	if subheading == "" {
		return nil, false, domain.NewValidationError("subheading", "subheading is required")
	}

	query := `
		WITH ins AS (
			INSERT INTO mesh_qualifiers (id, subheading) VALUES ($1, $2)
			ON CONFLICT (subheading) DO NOTHING
			RETURNING id, subheading, TRUE AS created
		)
		SELECT id, subheading, created FROM ins
		UNION ALL
		SELECT id, subheading, FALSE FROM mesh_qualifiers WHERE subheading = $2
		LIMIT 1`

	var q domain.MeSHQualifier
	var created bool
	if err := getOrCreate(ctx, r.db, query, []interface{}{uuid.New(), subheading},
		&q.ID, &q.Subheading, &created); err != nil {
		return nil, false, fmt.Errorf("failed to get or create mesh qualifier: %w", err)
	}
	return &q, created, nil
}

// GetOrCreateHeading returns the heading for a descriptor and optional qualifier.
func (r *PgCatalogRepository) GetOrCreateHeading(ctx context.Context, descriptorID uuid.UUID, qualifierID *uuid.UUID) (*domain.MeSHHeading, bool, error) {
	query := `
		WITH ins AS (
			INSERT INTO mesh_headings (id, descriptor_id, qualifier_id) VALUES ($1, $2, $3)
			ON CONFLICT ON CONSTRAINT mesh_headings_descriptor_qualifier_key DO NOTHING
			RETURNING id, descriptor_id, qualifier_id, TRUE AS created
		)
		SELECT id, descriptor_id, qualifier_id, created FROM ins
		UNION ALL
		SELECT id, descriptor_id, qualifier_id, FALSE FROM mesh_headings
		WHERE descriptor_id = $2 AND qualifier_id IS NOT DISTINCT FROM $3
		LIMIT 1`

	var h domain.MeSHHeading
	var created bool
	err := getOrCreate(ctx, r.db, query, []interface{}{uuid.New(), descriptorID, qualifierID},
		&h.ID, &h.DescriptorID, &h.QualifierID, &created)
	if err != nil {
		if isPgError(err, pgForeignKeyViolation) {
			return nil, false, domain.NewNotFoundError("mesh descriptor", descriptorID.String())
		}
		return nil, false, fmt.Errorf("failed to get or create mesh heading: %w", err)
	}
	return &h, created, nil
}
