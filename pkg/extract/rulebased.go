// Package extract produces interpretation-link candidates offline. The
// rule-based extractor scans case paragraphs for statute references and
// classifies how the paragraph treats the provision; candidates land in the
// link store unverified, for a reviewer to confirm.
package extract

import (
	"regexp"
	"strings"

	"statutelink/pkg/models"
)

// StatuteKey addresses a statute section by normalized act name and section
// number.
type StatuteKey struct {
	ActSlug string
	Section string
}

// StatuteIndex resolves references to actual statute section documents.
type StatuteIndex map[StatuteKey]*models.Document

// RuleBasedExtractor derives link candidates from textual cues alone.
type RuleBasedExtractor struct {
	// MinConfidence drops candidates classified with weaker cues.
	MinConfidence float64
}

var statuteRefRe = regexp.MustCompile(`(?i)section\s+(\d+[A-Z]?)(?:\(\d+\))?\s+of\s+(?:the\s+)?([A-Z][A-Za-z' ]*?(?:Act|Rules)(?:\s+\d{4})?)`)

var interpretationCues = []struct {
	kind       models.InterpretationType
	confidence float64
	cues       []string
}{
	{models.InterpretNarrow, 0.8, []string{"narrowly", "narrow construction", "limited to", "applies only", "only applies", "confined to"}},
	{models.InterpretBroad, 0.8, []string{"broadly", "broad construction", "extends to", "wide enough to"}},
	{models.InterpretPurposive, 0.75, []string{"purposive", "purpose of the provision", "legislative purpose", "objective of the provision"}},
	{models.InterpretLiteral, 0.75, []string{"plain meaning", "literal meaning", "ordinary meaning", "plain text"}},
	{models.InterpretClarify, 0.7, []string{"clarified", "clarifies", "means that", "is to be understood"}},
	{models.InterpretApply, 0.6, []string{"applied", "applying", "held that"}},
}

var dissentRe = regexp.MustCompile(`(?i)\bdissent(?:ing)?\b`)
var obiterRe = regexp.MustCompile(`(?i)\bobiter\b|in passing`)

// Extract scans one case paragraph for statute references resolvable in the
// index and returns link candidates. Each candidate carries RULE_BASED
// extraction metadata and is left unverified.
func (e *RuleBasedExtractor) Extract(para *models.Document, statutes StatuteIndex) []*models.InterpretationLink {
	if para.DocType != models.DocTypeCase || para.Level != 1 {
		return nil
	}

	minConfidence := e.MinConfidence
	if minConfidence == 0 {
		minConfidence = 0.5
	}

	var links []*models.InterpretationLink
	seen := map[string]bool{}

	for _, m := range statuteRefRe.FindAllStringSubmatch(para.FullText, -1) {
		section := m[1]
		actName := strings.TrimSpace(m[2])

		statute, ok := statutes[StatuteKey{ActSlug: actSlug(actName), Section: strings.ToUpper(section)}]
		if !ok {
			continue
		}
		if seen[statute.ID] {
			continue
		}
		seen[statute.ID] = true

		interpType, confidence := classifyInterpretation(para.FullText)
		if confidence < minConfidence {
			continue
		}

		authority := classifyAuthority(para.Court, para.FullText)

		links = append(links, &models.InterpretationLink{
			StatuteID:          statute.ID,
			CaseID:             para.ID,
			StatuteName:        statute.ActName,
			StatuteSection:     statute.SectionNumber,
			StatuteText:        snippet(statute.FullText, 500),
			CaseName:           para.Parties,
			CaseCitation:       para.Citation,
			CaseParaNo:         para.ParaNo,
			CaseText:           snippet(para.FullText, 500),
			Court:              para.Court,
			Year:               para.Year,
			InterpretationType: interpType,
			Authority:          authority,
			Holding:            snippet(para.FullText, 300),
			ApplicabilityScore: 0.5,
			BoostFactor:        models.DefaultBoostFactor(authority),
			ExtractionMethod:   models.ExtractRuleBased,
			Confidence:         confidence,
		})
	}

	return links
}

// BuildStatuteIndex keys statute and rule sections by act slug plus section
// number.
func BuildStatuteIndex(docs []*models.Document) StatuteIndex {
	index := make(StatuteIndex)
	for _, doc := range docs {
		if doc.DocType != models.DocTypeStatute && doc.DocType != models.DocTypeRule {
			continue
		}
		if doc.SectionNumber == "" || doc.ActName == "" {
			continue
		}
		index[StatuteKey{ActSlug: actSlug(doc.ActName), Section: strings.ToUpper(doc.SectionNumber)}] = doc
	}
	return index
}

func classifyInterpretation(text string) (models.InterpretationType, float64) {
	lower := strings.ToLower(text)
	for _, entry := range interpretationCues {
		for _, cue := range entry.cues {
			if strings.Contains(lower, cue) {
				return entry.kind, entry.confidence
			}
		}
	}
	return models.InterpretApply, 0.4
}

func classifyAuthority(court, text string) models.Authority {
	if dissentRe.MatchString(text) {
		return models.AuthorityDissent
	}
	if obiterRe.MatchString(text) {
		return models.AuthorityObiter
	}
	if strings.EqualFold(court, "SGCA") {
		return models.AuthorityBinding
	}
	return models.AuthorityPersuasive
}

var actSlugRe = regexp.MustCompile(`[^a-z0-9]+`)
var trailingYearRe = regexp.MustCompile(`\s+\d{4}$`)

// actSlug normalizes an act name for matching; trailing years are dropped so
// "Misrepresentation Act" matches "Misrepresentation Act 1967".
func actSlug(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = trailingYearRe.ReplaceAllString(s, "")
	return strings.Trim(actSlugRe.ReplaceAllString(s, "_"), "_")
}

func snippet(text string, max int) string {
	text = strings.TrimSpace(text)
	if len(text) > max {
		return text[:max]
	}
	return text
}
