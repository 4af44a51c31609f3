package repotest

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/helixir/ncbi-query-service/internal/domain"
	"github.com/helixir/ncbi-query-service/internal/repository"
)

type catalogRepo struct {
	s *Store
}

var _ repository.CatalogRepository = (*catalogRepo)(nil)

// getOrCreate looks key up in table and stores create() when absent.
func getOrCreate[T any](s *Store, method string, table map[string]*T, key string, create func() *T) (*T, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(method); err != nil {
		return nil, false, err
	}
	if existing, ok := table[key]; ok {
		cp := *existing
		return &cp, false, nil
	}
	row := create()
	table[key] = row
	cp := *row
	return &cp, true, nil
}

func (r *catalogRepo) GetOrCreateCountry(_ context.Context, name string) (*domain.Country, bool, error) {
	return getOrCreate(r.s, "Catalog.GetOrCreateCountry", r.s.countries, name, func() *domain.Country {
		return &domain.Country{ID: uuid.New(), Name: name}
	})
}

func (r *catalogRepo) GetOrCreateInstitution(_ context.Context, name string, countryID *uuid.UUID) (*domain.Institution, bool, error) {
	return getOrCreate(r.s, "Catalog.GetOrCreateInstitution", r.s.institutions, name, func() *domain.Institution {
		return &domain.Institution{ID: uuid.New(), Name: name, CountryID: countryID}
	})
}

func (r *catalogRepo) GetOrCreateAgency(_ context.Context, name string, countryID *uuid.UUID) (*domain.Agency, bool, error) {
	return getOrCreate(r.s, "Catalog.GetOrCreateAgency", r.s.agencies, name, func() *domain.Agency {
		return &domain.Agency{ID: uuid.New(), Name: name, CountryID: countryID}
	})
}

func (r *catalogRepo) GetOrCreateGrant(_ context.Context, grantID, acronym string, awardedBy *uuid.UUID) (*domain.Grant, bool, error) {
	return getOrCreate(r.s, "Catalog.GetOrCreateGrant", r.s.grants, grantID+"\x00"+acronym, func() *domain.Grant {
		g := &domain.Grant{ID: uuid.New(), GrantID: grantID, Acronym: acronym, AwardedBy: awardedBy}
		if awardedBy != nil {
			for _, a := range r.s.agencies {
				if a.ID == *awardedBy {
					g.Agency = a.Name
				}
			}
		}
		return g
	})
}

func (r *catalogRepo) GetOrCreateJournal(_ context.Context, title, issn string) (*domain.Journal, bool, error) {
	return getOrCreate(r.s, "Catalog.GetOrCreateJournal", r.s.journals, issn+"\x00"+title, func() *domain.Journal {
		return &domain.Journal{ID: uuid.New(), Title: title, ISSN: issn}
	})
}

func (r *catalogRepo) GetOrCreatePerson(_ context.Context, lastName, foreName, initials string) (*domain.Person, bool, error) {
	key := foreName + "\x00" + lastName + "\x00" + initials
	return getOrCreate(r.s, "Catalog.GetOrCreatePerson", r.s.persons, key, func() *domain.Person {
		return &domain.Person{ID: uuid.New(), LastName: lastName, ForeName: foreName, Initials: initials}
	})
}

func (r *catalogRepo) GetOrCreateAffiliation(_ context.Context, personID, institutionID uuid.UUID, date *time.Time) (*domain.Affiliation, bool, error) {
	key := personID.String() + "\x00" + institutionID.String() + "\x00"
	if date != nil {
		key += date.Format("2006-01-02")
	}
	return getOrCreate(r.s, "Catalog.GetOrCreateAffiliation", r.s.affiliations, key, func() *domain.Affiliation {
		return &domain.Affiliation{ID: uuid.New(), PersonID: personID, InstitutionID: institutionID, Date: date}
	})
}

func (r *catalogRepo) GetOrCreateDescriptor(_ context.Context, descriptor string) (*domain.MeSHDescriptor, bool, error) {
	return getOrCreate(r.s, "Catalog.GetOrCreateDescriptor", r.s.descriptors, descriptor, func() *domain.MeSHDescriptor {
		return &domain.MeSHDescriptor{ID: uuid.New(), Descriptor: descriptor, TreeNumbers: []string{}}
	})
}

func (r *catalogRepo) GetOrCreateQualifier(_ context.Context, subheading string) (*domain.MeSHQualifier, bool, error) {
	return getOrCreate(r.s, "Catalog.GetOrCreateQualifier", r.s.qualifiers, subheading, func() *domain.MeSHQualifier {
		return &domain.MeSHQualifier{ID: uuid.New(), Subheading: subheading}
	})
}

func (r *catalogRepo) GetOrCreateHeading(_ context.Context, descriptorID uuid.UUID, qualifierID *uuid.UUID) (*domain.MeSHHeading, bool, error) {
	key := descriptorID.String() + "\x00"
	if qualifierID != nil {
		key += qualifierID.String()
	}
	return getOrCreate(r.s, "Catalog.GetOrCreateHeading", r.s.headings, key, func() *domain.MeSHHeading {
		h := &domain.MeSHHeading{ID: uuid.New(), DescriptorID: descriptorID, QualifierID: qualifierID}
		for _, d := range r.s.descriptors {
			if d.ID == descriptorID {
				h.Descriptor = d.Descriptor
			}
		}
		if qualifierID != nil {
			for _, q := range r.s.qualifiers {
				if q.ID == *qualifierID {
					h.Qualifier = q.Subheading
				}
			}
		}
		return h
	})
}
