package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/helixir/ncbi-query-service/internal/domain"
)

// Compile-time interface verification.
var _ PaperRepository = (*PgPaperRepository)(nil)

// PgPaperRepository is a PostgreSQL implementation of PaperRepository.
type PgPaperRepository struct {
	db DBTX
}

// NewPgPaperRepository creates a new PostgreSQL paper repository.
func NewPgPaperRepository(db DBTX) *PgPaperRepository {
	return &PgPaperRepository{db: db}
}

const paperColumns = `p.id, p.identifier, p.source, p.title, p.abstract, p.pubdate,
			p.journal_id, p.retrieved, p.created_at, p.retrieved_at`

// GetOrCreateStub returns the paper keyed by (identifier, source), creating a stub if needed.
func (r *PgPaperRepository) GetOrCreateStub(ctx context.Context, identifier string, source domain.Database) (*domain.Paper, bool, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, false, domain.NewValidationError("identifier", "identifier is required")
	}
	if !source.Valid() {
		return nil, false, domain.NewValidationError("source", "unsupported database "+string(source))
	}

	query := `
		WITH ins AS (
			INSERT INTO papers (id, identifier, source) VALUES ($1, $2, $3)
			ON CONFLICT (identifier, source) DO NOTHING
			RETURNING id, identifier, source, title, abstract, pubdate,
				journal_id, retrieved, created_at, retrieved_at, TRUE AS created
		)
		SELECT * FROM ins
		UNION ALL
		SELECT ` + paperColumns + `, FALSE FROM papers p WHERE p.identifier = $2 AND p.source = $3
		LIMIT 1`

	var dest paperScanDest
	var created bool
	err := getOrCreate(ctx, r.db, query, []interface{}{uuid.New(), identifier, string(source)},
		append(dest.destinations(), &created)...)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get or create paper: %w", err)
	}
	return dest.finalize(), created, nil
}

// Get retrieves a paper by its UUID.
func (r *PgPaperRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Paper, error) {
	query := `SELECT ` + paperColumns + ` FROM papers p WHERE p.id = $1`

	paper, err := scanPaper(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("paper", id.String())
		}
		return nil, fmt.Errorf("failed to get paper: %w", err)
	}
	return paper, nil
}

// GetDetail retrieves a paper with its related entities resolved.
func (r *PgPaperRepository) GetDetail(ctx context.Context, id uuid.UUID) (*domain.PaperDetail, error) {
	paper, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &domain.PaperDetail{Paper: *paper}

	if paper.JournalID != nil {
		var j domain.Journal
		err := r.db.QueryRow(ctx, `SELECT id, title, issn FROM journals WHERE id = $1`, *paper.JournalID).
			Scan(&j.ID, &j.Title, &j.ISSN)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("failed to get journal: %w", err)
		}
		if err == nil {
			detail.Journal = &j
		}
	}

	if detail.Authors, err = r.listAuthors(ctx, id); err != nil {
		return nil, err
	}
	if detail.MeSHHeadings, err = r.listHeadings(ctx, id); err != nil {
		return nil, err
	}
	if detail.Grants, err = r.listGrants(ctx, id); err != nil {
		return nil, err
	}

	return detail, nil
}

func (r *PgPaperRepository) listAuthors(ctx context.Context, paperID uuid.UUID) ([]domain.Person, error) {
	rows, err := r.db.Query(ctx, `
		SELECT pe.id, pe.last_name, pe.fore_name, pe.initials
		FROM paper_authors pa
		JOIN persons pe ON pe.id = pa.person_id
		WHERE pa.paper_id = $1
		ORDER BY pa.position, pe.last_name`, paperID)
	if err != nil {
		return nil, fmt.Errorf("failed to list authors: %w", err)
	}
	defer rows.Close()

	authors := []domain.Person{}
	for rows.Next() {
		var p domain.Person
		if err := rows.Scan(&p.ID, &p.LastName, &p.ForeName, &p.Initials); err != nil {
			return nil, fmt.Errorf("failed to scan author: %w", err)
		}
		authors = append(authors, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating authors: %w", err)
	}
	return authors, nil
}

func (r *PgPaperRepository) listHeadings(ctx context.Context, paperID uuid.UUID) ([]domain.MeSHHeading, error) {
	rows, err := r.db.Query(ctx, `
		SELECT h.id, h.descriptor_id, h.qualifier_id, d.descriptor, COALESCE(q.subheading, '')
		FROM paper_mesh_headings pm
		JOIN mesh_headings h ON h.id = pm.mesh_heading_id
		JOIN mesh_descriptors d ON d.id = h.descriptor_id
		LEFT JOIN mesh_qualifiers q ON q.id = h.qualifier_id
		WHERE pm.paper_id = $1
		ORDER BY d.descriptor, q.subheading NULLS FIRST`, paperID)
	if err != nil {
		return nil, fmt.Errorf("failed to list mesh headings: %w", err)
	}
	defer rows.Close()

	headings := []domain.MeSHHeading{}
	for rows.Next() {
		var h domain.MeSHHeading
		if err := rows.Scan(&h.ID, &h.DescriptorID, &h.QualifierID, &h.Descriptor, &h.Qualifier); err != nil {
			return nil, fmt.Errorf("failed to scan mesh heading: %w", err)
		}
		headings = append(headings, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating mesh headings: %w", err)
	}
	return headings, nil
}

func (r *PgPaperRepository) listGrants(ctx context.Context, paperID uuid.UUID) ([]domain.Grant, error) {
	rows, err := r.db.Query(ctx, `
		SELECT g.id, g.grant_id, g.acronym, g.awarded_by, COALESCE(a.name, '')
		FROM paper_grants pg
		JOIN grants g ON g.id = pg.grant_id
		LEFT JOIN agencies a ON a.id = g.awarded_by
		WHERE pg.paper_id = $1
		ORDER BY g.grant_id`, paperID)
	if err != nil {
		return nil, fmt.Errorf("failed to list grants: %w", err)
	}
	defer rows.Close()

	grants := []domain.Grant{}
	for rows.Next() {
		var g domain.Grant
		if err := rows.Scan(&g.ID, &g.GrantID, &g.Acronym, &g.AwardedBy, &g.Agency); err != nil {
			return nil, fmt.Errorf("failed to scan grant: %w", err)
		}
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating grants: %w", err)
	}
	return grants, nil
}

// List retrieves papers matching the filter criteria.
func (r *PgPaperRepository) List(ctx context.Context, filter PaperFilter) ([]*domain.Paper, int64, error) {
	if err := filter.Validate(); err != nil {
		return nil, 0, err
	}

	var conditions []string
	var args []interface{}
	argIndex := 1

	if filter.QueryID != nil {
		conditions = append(conditions, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM query_results qr WHERE qr.paper_id = p.id AND qr.query_id = $%d)", argIndex))
		args = append(args, *filter.QueryID)
		argIndex++
	}

	if filter.Source != nil {
		conditions = append(conditions, fmt.Sprintf("p.source = $%d", argIndex))
		args = append(args, string(*filter.Source))
		argIndex++
	}

	if filter.Retrieved != nil {
		conditions = append(conditions, fmt.Sprintf("p.retrieved = $%d", argIndex))
		args = append(args, *filter.Retrieved)
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM papers p %s", whereClause)
	var totalCount int64
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count papers: %w", err)
	}

	selectQuery := fmt.Sprintf(`
		SELECT %s
		FROM papers p
		%s
		ORDER BY p.created_at DESC, p.identifier
		LIMIT $%d OFFSET $%d`,
		paperColumns, whereClause, argIndex, argIndex+1)

	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list papers: %w", err)
	}
	defer rows.Close()

	papers := make([]*domain.Paper, 0, filter.Limit)
	for rows.Next() {
		paper, err := scanPaper(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan paper: %w", err)
		}
		papers = append(papers, paper)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating papers: %w", err)
	}

	return papers, totalCount, nil
}

// UpdateMetadata stores the fetched title, abstract, date and journal.
func (r *PgPaperRepository) UpdateMetadata(ctx context.Context, id uuid.UUID, update PaperMetadata) error {
	query := `
		UPDATE papers
		SET title = $2, abstract = $3, pubdate = $4, journal_id = $5
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id, update.Title, update.Abstract, update.PubDate, update.JournalID)
	if err != nil {
		if isPgError(err, pgForeignKeyViolation) && update.JournalID != nil {
			return domain.NewNotFoundError("journal", update.JournalID.String())
		}
		return fmt.Errorf("failed to update paper metadata: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFoundError("paper", id.String())
	}
	return nil
}

// AddAuthor links a person to a paper.
func (r *PgPaperRepository) AddAuthor(ctx context.Context, paperID, personID uuid.UUID, position int) error {
	return r.link(ctx, "author",
		`INSERT INTO paper_authors (paper_id, person_id, position) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
		paperID, personID, position)
}

// AddMeSHHeading links a heading to a paper.
func (r *PgPaperRepository) AddMeSHHeading(ctx context.Context, paperID, headingID uuid.UUID) error {
	return r.link(ctx, "mesh heading",
		`INSERT INTO paper_mesh_headings (paper_id, mesh_heading_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		paperID, headingID)
}

// AddGrant links a grant to a paper.
func (r *PgPaperRepository) AddGrant(ctx context.Context, paperID, grantID uuid.UUID) error {
	return r.link(ctx, "grant",
		`INSERT INTO paper_grants (paper_id, grant_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		paperID, grantID)
}

func (r *PgPaperRepository) link(ctx context.Context, entity, query string, args ...interface{}) error {
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		if isPgError(err, pgForeignKeyViolation) {
			return domain.NewNotFoundError("paper or "+entity, fmt.Sprint(args[0]))
		}
		return fmt.Errorf("failed to link %s: %w", entity, err)
	}
	return nil
}

// MarkRetrieved flags the paper as fully retrieved.
func (r *PgPaperRepository) MarkRetrieved(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.db.Exec(ctx, `UPDATE papers SET retrieved = TRUE, retrieved_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("failed to mark paper retrieved: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFoundError("paper", id.String())
	}
	return nil
}

// paperScanDest holds intermediate scan values for a paper row.
type paperScanDest struct {
	paper  domain.Paper
	source string
}

func (d *paperScanDest) destinations() []interface{} {
	return []interface{}{
		&d.paper.ID,
		&d.paper.Identifier,
		&d.source,
		&d.paper.Title,
		&d.paper.Abstract,
		&d.paper.PubDate,
		&d.paper.JournalID,
		&d.paper.Retrieved,
		&d.paper.CreatedAt,
		&d.paper.RetrievedAt,
	}
}

func (d *paperScanDest) finalize() *domain.Paper {
	p := d.paper
	p.Source = domain.Database(d.source)
	return &p
}

// scanPaper scans a single row from pgx.Row or pgx.Rows.
func scanPaper(row pgx.Row) (*domain.Paper, error) {
	var dest paperScanDest
	if err := row.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize(), nil
}
