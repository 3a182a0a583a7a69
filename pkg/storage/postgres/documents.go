package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"statutelink/pkg/errs"
	"statutelink/pkg/models"
)

const documentColumns = `id, doc_type, level, parent_id, title, full_text, hash,
	act_name, section_number, subsection, citation, court, year, parties, para_no,
	jurisdiction, created_at, updated_at`

// InsertResult summarises a batched document load.
type InsertResult struct {
	Inserted int
	Skipped  int
	Errors   int
	Skips    []SkipRecord
}

// SkipRecord explains why a single document was not inserted.
type SkipRecord struct {
	ID     string
	Reason string
}

func (r *InsertResult) addSkip(id, reason string) {
	r.Skipped++
	r.Skips = append(r.Skips, SkipRecord{ID: id, Reason: reason})
}

// InsertDocuments loads a batch inside one transaction. Documents must arrive
// in ascending level order so parents precede children; duplicates by hash
// are skipped unless allowDuplicates is set, and children whose parent exists
// neither in the batch nor in the store are skipped with a reason.
func (s *Store) InsertDocuments(ctx context.Context, docs []*models.Document, allowDuplicates bool) (*InsertResult, error) {
	result := &InsertResult{}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	inBatch := make(map[string]bool, len(docs))

	for _, doc := range docs {
		if err := doc.Validate(); err != nil {
			result.addSkip(doc.ID, err.Error())
			continue
		}

		if !allowDuplicates {
			var existingID string
			err := tx.QueryRow(ctx, `SELECT id FROM documents WHERE hash = $1`, doc.Hash).Scan(&existingID)
			if err == nil {
				result.addSkip(doc.ID, fmt.Sprintf("duplicate of %s", existingID))
				continue
			}
			if !errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("hash lookup failed for %s: %w", doc.ID, err)
			}
		}

		if doc.ParentID != "" && !inBatch[doc.ParentID] {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM documents WHERE id = $1)`, doc.ParentID).Scan(&exists); err != nil {
				return nil, fmt.Errorf("parent lookup failed for %s: %w", doc.ID, err)
			}
			if !exists {
				result.addSkip(doc.ID, fmt.Sprintf("parent %s not found", doc.ParentID))
				continue
			}
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO documents (id, doc_type, level, parent_id, title, full_text, hash,
				act_name, section_number, subsection, citation, court, year, parties, para_no, jurisdiction)
			VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7,
				NULLIF($8, ''), NULLIF($9, ''), NULLIF($10, ''), NULLIF($11, ''), NULLIF($12, ''),
				NULLIF($13, 0), NULLIF($14, ''), NULLIF($15, 0), NULLIF($16, ''))
			ON CONFLICT (id) DO NOTHING`,
			doc.ID, doc.DocType, doc.Level, doc.ParentID, doc.Title, doc.FullText, doc.Hash,
			doc.ActName, doc.SectionNumber, doc.Subsection, doc.Citation, doc.Court,
			doc.Year, doc.Parties, doc.ParaNo, doc.Jurisdiction)
		if err != nil {
			result.Errors++
			result.addSkip(doc.ID, fmt.Sprintf("insert failed: %v", err))
			continue
		}

		inBatch[doc.ID] = true
		result.Inserted++
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("batch commit failed: %w", err)
	}

	return result, nil
}

// GetDocument fetches a single document by id.
func (s *Store) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.Ef(errs.KindNotFound, "document %s not found", id)
		}
		return nil, fmt.Errorf("failed to fetch document %s: %w", id, err)
	}
	return doc, nil
}

// GetDocuments fetches documents by id, omitting missing ones.
func (s *Store) GetDocuments(ctx context.Context, ids []string) ([]*models.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch documents: %w", err)
	}
	defer rows.Close()
	return scanDocuments(rows)
}

// DocumentExists reports whether a document id is present in the store.
func (s *Store) DocumentExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM documents WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("existence check failed for %s: %w", id, err)
	}
	return exists, nil
}

// GetDocumentByHash finds a document by its content digest.
func (s *Store) GetDocumentByHash(ctx context.Context, hash string) (*models.Document, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE hash = $1 LIMIT 1`, hash)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.Ef(errs.KindNotFound, "no document with hash %s", hash)
		}
		return nil, fmt.Errorf("failed to fetch document by hash: %w", err)
	}
	return doc, nil
}

// Children returns the direct children of a node ordered by id.
func (s *Store) Children(ctx context.Context, parentID string) ([]*models.Document, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+documentColumns+` FROM documents WHERE parent_id = $1 ORDER BY id`, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch children of %s: %w", parentID, err)
	}
	defer rows.Close()
	return scanDocuments(rows)
}

// Roots returns all level-0 documents.
func (s *Store) Roots(ctx context.Context) ([]*models.Document, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+documentColumns+` FROM documents WHERE parent_id IS NULL ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch roots: %w", err)
	}
	defer rows.Close()
	return scanDocuments(rows)
}

// AllUnits streams the index-unit projection of every document, for reindex
// jobs. Results are ordered by id so repeated runs assign stable positions.
func (s *Store) AllUnits(ctx context.Context) ([]models.IndexUnit, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, doc_type, COALESCE(title, ''), full_text,
			COALESCE(citation, ''), COALESCE(court, ''), COALESCE(year, 0), COALESCE(para_no, 0)
		FROM documents ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch index units: %w", err)
	}
	defer rows.Close()

	var units []models.IndexUnit
	for rows.Next() {
		var u models.IndexUnit
		if err := rows.Scan(&u.UnitID, &u.DocType, &u.Title, &u.Text, &u.Citation, &u.Court, &u.Year, &u.ParaNo); err != nil {
			return nil, fmt.Errorf("failed to scan index unit: %w", err)
		}
		units = append(units, u)
	}
	return units, rows.Err()
}

// DocumentsByTypeLevel lists documents of one type at one level, for offline
// jobs walking a slice of the corpus. A negative level means any level.
func (s *Store) DocumentsByTypeLevel(ctx context.Context, docType models.DocType, level int) ([]*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE doc_type = $1`
	args := []interface{}{docType}
	if level >= 0 {
		query += ` AND level = $2`
		args = append(args, level)
	}
	query += ` ORDER BY id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s documents: %w", docType, err)
	}
	defer rows.Close()
	return scanDocuments(rows)
}

// UnitsByID fetches the index-unit projection for a set of documents, keyed
// by unit id. Missing ids are simply absent from the map.
func (s *Store) UnitsByID(ctx context.Context, ids []string) (map[string]models.IndexUnit, error) {
	units := make(map[string]models.IndexUnit, len(ids))
	if len(ids) == 0 {
		return units, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, doc_type, COALESCE(title, ''), full_text,
			COALESCE(citation, ''), COALESCE(court, ''), COALESCE(year, 0), COALESCE(para_no, 0)
		FROM documents WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch units: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var u models.IndexUnit
		if err := rows.Scan(&u.UnitID, &u.DocType, &u.Title, &u.Text, &u.Citation, &u.Court, &u.Year, &u.ParaNo); err != nil {
			return nil, fmt.Errorf("failed to scan unit: %w", err)
		}
		units[u.UnitID] = u
	}
	return units, rows.Err()
}

// CorpusStats holds corpus-level document counts.
type CorpusStats struct {
	TotalDocuments int64 `json:"total_documents"`
	Statutes       int64 `json:"statutes"`
	Cases          int64 `json:"cases"`
	Rules          int64 `json:"rules"`
	Roots          int64 `json:"root_documents"`
	Sections       int64 `json:"sections"`
	Paragraphs     int64 `json:"paragraphs"`
}

// Statistics computes corpus counts by type and level.
func (s *Store) Statistics(ctx context.Context) (*CorpusStats, error) {
	stats := &CorpusStats{}
	err := s.pool.QueryRow(ctx, `
		SELECT count(*),
			count(*) FILTER (WHERE doc_type = 'statute'),
			count(*) FILTER (WHERE doc_type = 'case'),
			count(*) FILTER (WHERE doc_type = 'rule'),
			count(*) FILTER (WHERE level = 0),
			count(*) FILTER (WHERE level = 1),
			count(*) FILTER (WHERE level > 1)
		FROM documents`).Scan(
		&stats.TotalDocuments, &stats.Statutes, &stats.Cases, &stats.Rules,
		&stats.Roots, &stats.Sections, &stats.Paragraphs)
	if err != nil {
		return nil, fmt.Errorf("failed to compute corpus statistics: %w", err)
	}
	return stats, nil
}

func scanDocument(row pgx.Row) (*models.Document, error) {
	var d models.Document
	var parentID, title, actName, sectionNumber, subsection *string
	var citation, court, parties, jurisdiction *string
	var year, paraNo *int
	err := row.Scan(&d.ID, &d.DocType, &d.Level, &parentID, &title, &d.FullText, &d.Hash,
		&actName, &sectionNumber, &subsection, &citation, &court, &year, &parties, &paraNo,
		&jurisdiction, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	assign(&d.ParentID, parentID)
	assign(&d.Title, title)
	assign(&d.ActName, actName)
	assign(&d.SectionNumber, sectionNumber)
	assign(&d.Subsection, subsection)
	assign(&d.Citation, citation)
	assign(&d.Court, court)
	assign(&d.Parties, parties)
	assign(&d.Jurisdiction, jurisdiction)
	if year != nil {
		d.Year = *year
	}
	if paraNo != nil {
		d.ParaNo = *paraNo
	}
	return &d, nil
}

func scanDocuments(rows pgx.Rows) ([]*models.Document, error) {
	var docs []*models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func assign(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}
