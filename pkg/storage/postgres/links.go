package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"statutelink/pkg/errs"
	"statutelink/pkg/models"
)

const linkColumns = `id, statute_id, case_id, statute_name, statute_section, statute_text,
	case_name, case_citation, case_para_no, case_text, court, year,
	interpretation_type, authority, holding,
	fact_pattern_tags, case_facts_summary, applicability_score, cause_of_action,
	boost_factor, verified, verified_by, verified_at,
	extraction_method, extraction_confidence, notes, created_at, updated_at`

// LinksForStatutes returns interpretation links whose statute side is one of
// the given anchors, ordered by boost_factor then applicability descending so
// the strongest interpretation wins ties downstream.
func (s *Store) LinksForStatutes(ctx context.Context, statuteIDs []string, verifiedOnly bool) ([]*models.InterpretationLink, error) {
	if len(statuteIDs) == 0 {
		return nil, nil
	}

	query := `SELECT ` + linkColumns + ` FROM interpretation_links WHERE statute_id = ANY($1)`
	if verifiedOnly {
		query += ` AND verified`
	}
	query += ` ORDER BY boost_factor DESC, applicability_score DESC NULLS LAST`

	rows, err := s.pool.Query(ctx, query, statuteIDs)
	if err != nil {
		return nil, errs.E(errs.KindLinkStore, fmt.Errorf("links lookup failed: %w", err))
	}
	defer rows.Close()
	return scanLinks(rows)
}

// LinksForCase returns every link whose case side is the given document.
func (s *Store) LinksForCase(ctx context.Context, caseID string) ([]*models.InterpretationLink, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+linkColumns+` FROM interpretation_links WHERE case_id = $1 ORDER BY boost_factor DESC`, caseID)
	if err != nil {
		return nil, errs.E(errs.KindLinkStore, fmt.Errorf("case links lookup failed: %w", err))
	}
	defer rows.Close()
	return scanLinks(rows)
}

// FindLink resolves a claimed interpretation: a case citation said to construe
// a named statute section. Citation matching is exact after trimming; statute
// names match case-insensitively so "Misrepresentation Act" finds
// "Misrepresentation Act 1967".
func (s *Store) FindLink(ctx context.Context, caseCitation, statuteName, section string) (*models.InterpretationLink, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+linkColumns+` FROM interpretation_links
		WHERE case_citation = $1
		  AND lower(statute_name) LIKE lower($2) || '%'
		  AND statute_section = $3
		ORDER BY extraction_confidence DESC NULLS LAST
		LIMIT 1`,
		strings.TrimSpace(caseCitation), strings.TrimSpace(statuteName), strings.TrimSpace(section))

	link, err := scanLink(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.Ef(errs.KindNotFound, "no link for %s interpreting %s s %s", caseCitation, statuteName, section)
		}
		return nil, errs.E(errs.KindLinkStore, fmt.Errorf("find link failed: %w", err))
	}
	return link, nil
}

// FindByFactPatternTags returns verified links whose fact-pattern tags contain
// all of the given tags.
func (s *Store) FindByFactPatternTags(ctx context.Context, tags []string) ([]*models.InterpretationLink, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+linkColumns+` FROM interpretation_links
		WHERE verified AND fact_pattern_tags @> $1
		ORDER BY boost_factor DESC, applicability_score DESC NULLS LAST`, tags)
	if err != nil {
		return nil, errs.E(errs.KindLinkStore, fmt.Errorf("fact pattern lookup failed: %w", err))
	}
	defer rows.Close()
	return scanLinks(rows)
}

// UpsertLink inserts a link or, on a (statute_id, case_id) conflict, keeps the
// record with the higher extraction confidence. Re-extraction jobs call this
// repeatedly; manual verification state is never downgraded.
func (s *Store) UpsertLink(ctx context.Context, l *models.InterpretationLink) error {
	if err := l.Validate(); err != nil {
		return errs.E(errs.KindInvariant, err)
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO interpretation_links (
			statute_id, case_id, statute_name, statute_section, statute_text,
			case_name, case_citation, case_para_no, case_text, court, year,
			interpretation_type, authority, holding,
			fact_pattern_tags, case_facts_summary, applicability_score, cause_of_action,
			boost_factor, verified, verified_by, verified_at,
			extraction_method, extraction_confidence, notes)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''),
			$6, $7, $8, NULLIF($9, ''), NULLIF($10, ''), NULLIF($11, 0),
			$12, $13, $14,
			$15, NULLIF($16, ''), $17, NULLIF($18, ''),
			$19, $20, NULLIF($21, ''), $22,
			NULLIF($23, ''), $24, NULLIF($25, ''))
		ON CONFLICT (statute_id, case_id) DO UPDATE SET
			statute_name = EXCLUDED.statute_name,
			statute_section = EXCLUDED.statute_section,
			statute_text = COALESCE(EXCLUDED.statute_text, interpretation_links.statute_text),
			case_name = EXCLUDED.case_name,
			case_citation = EXCLUDED.case_citation,
			case_para_no = EXCLUDED.case_para_no,
			case_text = COALESCE(EXCLUDED.case_text, interpretation_links.case_text),
			interpretation_type = EXCLUDED.interpretation_type,
			authority = EXCLUDED.authority,
			holding = EXCLUDED.holding,
			fact_pattern_tags = EXCLUDED.fact_pattern_tags,
			applicability_score = EXCLUDED.applicability_score,
			boost_factor = EXCLUDED.boost_factor,
			extraction_method = EXCLUDED.extraction_method,
			extraction_confidence = EXCLUDED.extraction_confidence,
			verified = interpretation_links.verified OR EXCLUDED.verified,
			updated_at = now()
		WHERE COALESCE(EXCLUDED.extraction_confidence, 0) >= COALESCE(interpretation_links.extraction_confidence, 0)`,
		l.StatuteID, l.CaseID, l.StatuteName, l.StatuteSection, l.StatuteText,
		l.CaseName, l.CaseCitation, l.CaseParaNo, l.CaseText, l.Court, l.Year,
		l.InterpretationType, l.Authority, l.Holding,
		l.FactPatternTags, l.CaseFactsSummary, nullableFloat(l.ApplicabilityScore), l.CauseOfAction,
		l.BoostFactor, l.Verified, l.VerifiedBy, l.VerifiedAt,
		l.ExtractionMethod, nullableFloat(l.Confidence), l.Notes)
	if err != nil {
		return errs.E(errs.KindLinkStore, fmt.Errorf("upsert link %s->%s failed: %w", l.StatuteID, l.CaseID, err))
	}
	return nil
}

// CountByAuthority returns link counts grouped by authority level.
func (s *Store) CountByAuthority(ctx context.Context) (map[models.Authority]int64, error) {
	rows, err := s.pool.Query(ctx, `SELECT authority, count(*) FROM interpretation_links GROUP BY authority`)
	if err != nil {
		return nil, errs.E(errs.KindLinkStore, fmt.Errorf("authority counts failed: %w", err))
	}
	defer rows.Close()

	counts := make(map[models.Authority]int64)
	for rows.Next() {
		var a models.Authority
		var n int64
		if err := rows.Scan(&a, &n); err != nil {
			return nil, fmt.Errorf("failed to scan authority count: %w", err)
		}
		counts[a] = n
	}
	return counts, rows.Err()
}

func scanLink(row pgx.Row) (*models.InterpretationLink, error) {
	var l models.InterpretationLink
	var statuteText, caseText, court, factsSummary, causeOfAction *string
	var verifiedBy, extractionMethod, notes *string
	var year *int
	var applicability, confidence *float64
	err := row.Scan(&l.ID, &l.StatuteID, &l.CaseID, &l.StatuteName, &l.StatuteSection, &statuteText,
		&l.CaseName, &l.CaseCitation, &l.CaseParaNo, &caseText, &court, &year,
		&l.InterpretationType, &l.Authority, &l.Holding,
		&l.FactPatternTags, &factsSummary, &applicability, &causeOfAction,
		&l.BoostFactor, &l.Verified, &verifiedBy, &l.VerifiedAt,
		&extractionMethod, &confidence, &notes, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	assign(&l.StatuteText, statuteText)
	assign(&l.CaseText, caseText)
	assign(&l.Court, court)
	assign(&l.CaseFactsSummary, factsSummary)
	assign(&l.CauseOfAction, causeOfAction)
	assign(&l.VerifiedBy, verifiedBy)
	assign(&l.Notes, notes)
	if extractionMethod != nil {
		l.ExtractionMethod = models.ExtractionMethod(*extractionMethod)
	}
	if year != nil {
		l.Year = *year
	}
	if applicability != nil {
		l.ApplicabilityScore = *applicability
	}
	if confidence != nil {
		l.Confidence = *confidence
	}
	return &l, nil
}

func scanLinks(rows pgx.Rows) ([]*models.InterpretationLink, error) {
	var links []*models.InterpretationLink
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan interpretation link: %w", err)
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

func nullableFloat(f float64) *float64 {
	if f == 0 {
		return nil
	}
	return &f
}
