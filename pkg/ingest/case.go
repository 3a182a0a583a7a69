package ingest

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"statutelink/pkg/models"
)

// CaseParser segments a judgment into numbered paragraphs (level 1) under a
// root document carrying the citation metadata.
type CaseParser struct {
	MaxRootChars int
}

// Matches Singapore neutral citations such as "[2004] SGHC 32".
var citationRe = regexp.MustCompile(`\[(\d{4})\]\s+([A-Z]+(?:\([A-Z]+\))?)\s+(\d+)`)

func (p *CaseParser) Supports(source *SourceDocument) bool {
	if source.DeclaredType == models.DocTypeCase {
		return true
	}
	head := source.RawText
	if len(head) > 2000 {
		head = head[:2000]
	}
	return citationRe.MatchString(head) || citationRe.MatchString(source.Path)
}

func (p *CaseParser) Parse(source *SourceDocument) (*ParseResult, error) {
	text := source.RawText
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("case source %s is empty", source.Path)
	}

	citation := p.extractCitation(source.Path, text)
	parties := p.extractParties(source.Path, text)
	court, year := extractCourtYear(citation)
	caseID := caseSlug(citation)

	result := &ParseResult{}
	root := &models.Document{
		ID:           caseID,
		DocType:      models.DocTypeCase,
		Level:        0,
		Title:        citation,
		FullText:     truncate(text, p.MaxRootChars),
		Citation:     citation,
		Court:        court,
		Year:         year,
		Parties:      parties,
		Jurisdiction: "SG",
		Hash:         computeHash(text),
	}
	result.Documents = append(result.Documents, root)

	paragraphs := findParagraphs(text)
	if len(paragraphs) == 0 {
		result.Skipped = append(result.Skipped, NodeError{ID: caseID, Reason: "no numbered paragraphs detected"})
		return result, nil
	}

	seen := map[string]bool{}
	for _, m := range paragraphs {
		paraNo, err := strconv.Atoi(m.Number)
		if err != nil || paraNo == 0 {
			result.Skipped = append(result.Skipped, NodeError{ID: caseID, Reason: fmt.Sprintf("invalid paragraph number %q", m.Number)})
			continue
		}

		paraID := fmt.Sprintf("%s_para_%d", caseID, paraNo)
		if seen[paraID] {
			result.Skipped = append(result.Skipped, NodeError{ID: paraID, Reason: "duplicate paragraph number"})
			continue
		}
		seen[paraID] = true

		preview := m.Text
		if len(preview) > 100 {
			preview = preview[:100]
		}

		result.Documents = append(result.Documents, &models.Document{
			ID:           paraID,
			DocType:      models.DocTypeCase,
			Level:        1,
			ParentID:     caseID,
			Title:        fmt.Sprintf("¶%d: %s", paraNo, strings.TrimSpace(preview)),
			FullText:     m.Text,
			Citation:     citation,
			Court:        court,
			Year:         year,
			Parties:      parties,
			ParaNo:       paraNo,
			Jurisdiction: "SG",
			Hash:         computeHash(m.Text),
		})
	}

	return result, nil
}

// extractCitation looks in the filename first, then the opening lines.
func (p *CaseParser) extractCitation(path, text string) string {
	if m := citationRe.FindString(baseName(path)); m != "" {
		return m
	}
	lines := strings.Split(text, "\n")
	if len(lines) > 10 {
		lines = lines[:10]
	}
	for _, line := range lines {
		if m := citationRe.FindString(line); m != "" {
			return m
		}
	}
	return baseName(path)
}

func (p *CaseParser) extractParties(path, text string) string {
	name := baseName(path)
	parties := strings.TrimSpace(citationRe.ReplaceAllString(name, ""))
	if parties != "" {
		return parties
	}
	parties = strings.TrimSpace(citationRe.ReplaceAllString(firstLine(text), ""))
	if parties != "" {
		return parties
	}
	return name
}

func extractCourtYear(citation string) (string, int) {
	m := citationRe.FindStringSubmatch(citation)
	if m == nil {
		return "", 0
	}
	year, _ := strconv.Atoi(m[1])
	return m[2], year
}

var bracketSpaceRe = regexp.MustCompile(`[\[\]\s]+`)
var multiUnderscoreRe = regexp.MustCompile(`_+`)

func caseSlug(citation string) string {
	s := strings.ToLower(citation)
	s = bracketSpaceRe.ReplaceAllString(s, "_")
	s = multiUnderscoreRe.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}
