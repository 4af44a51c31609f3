package domain

import "strings"

// Database identifies a remote bibliographic database reachable through E-utilities.
type Database string

const (
	// DatabasePubMed is the MEDLINE citation database.
	DatabasePubMed Database = "PubMed"

	// DatabasePMC is the PubMed Central full-text archive.
	DatabasePMC Database = "PMC"
)

// AllDatabases lists every supported database in display order.
func AllDatabases() []Database {
	return []Database{DatabasePubMed, DatabasePMC}
}

// Valid reports whether d is a supported database.
func (d Database) Valid() bool {
	switch d {
	case DatabasePubMed, DatabasePMC:
		return true
	default:
		return false
	}
}

// EntrezDB returns the value of the E-utilities "db" parameter for d.
func (d Database) EntrezDB() string {
	switch d {
	case DatabasePubMed:
		return "pubmed"
	case DatabasePMC:
		return "pmc"
	default:
		return strings.ToLower(string(d))
	}
}

// String implements fmt.Stringer.
func (d Database) String() string {
	return string(d)
}

// ParseDatabase resolves a database name case-insensitively.
func ParseDatabase(s string) (Database, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pubmed":
		return DatabasePubMed, nil
	case "pmc":
		return DatabasePMC, nil
	default:
		return "", NewValidationError("database", "unsupported database "+s)
	}
}
