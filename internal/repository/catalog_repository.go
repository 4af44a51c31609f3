package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/helixir/ncbi-query-service/internal/domain"
)

// CatalogRepository gives get-or-create access to the normalized entities a
// fetched record refers to. Every method returns the stored row and whether
// this call created it. Values other than the dedup key are applied on
// creation only.
type CatalogRepository interface {
	// GetOrCreateCountry is keyed by name.
	GetOrCreateCountry(ctx context.Context, name string) (*domain.Country, bool, error)

	// GetOrCreateInstitution is keyed by name; countryID is a creation default.
	GetOrCreateInstitution(ctx context.Context, name string, countryID *uuid.UUID) (*domain.Institution, bool, error)

	// GetOrCreateAgency is keyed by name; countryID is a creation default.
	GetOrCreateAgency(ctx context.Context, name string, countryID *uuid.UUID) (*domain.Agency, bool, error)

	// GetOrCreateGrant is keyed by (grantID, acronym); awardedBy is a creation default.
	GetOrCreateGrant(ctx context.Context, grantID, acronym string, awardedBy *uuid.UUID) (*domain.Grant, bool, error)

	// GetOrCreateJournal is keyed by (issn, title).
	GetOrCreateJournal(ctx context.Context, title, issn string) (*domain.Journal, bool, error)

	// GetOrCreatePerson is keyed by (foreName, lastName, initials).
	GetOrCreatePerson(ctx context.Context, lastName, foreName, initials string) (*domain.Person, bool, error)

	// GetOrCreateAffiliation is keyed by (person, institution, date); a nil date is a key value.
	GetOrCreateAffiliation(ctx context.Context, personID, institutionID uuid.UUID, date *time.Time) (*domain.Affiliation, bool, error)

	// GetOrCreateDescriptor is keyed by the descriptor name.
	GetOrCreateDescriptor(ctx context.Context, descriptor string) (*domain.MeSHDescriptor, bool, error)

	// GetOrCreateQualifier is keyed by the subheading.
	GetOrCreateQualifier(ctx context.Context, subheading string) (*domain.MeSHQualifier, bool, error)

	// GetOrCreateHeading is keyed by (descriptor, qualifier); a nil qualifier is a key value.
	GetOrCreateHeading(ctx context.Context, descriptorID uuid.UUID, qualifierID *uuid.UUID) (*domain.MeSHHeading, bool, error)
}
