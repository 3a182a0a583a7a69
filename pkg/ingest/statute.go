package ingest

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"statutelink/pkg/models"
)

var titleCaser = cases.Title(language.English)

// StatuteParser segments an Act into sections (level 1) and subsections
// (level 2) under a single root document.
type StatuteParser struct {
	MaxRootChars int
}

var actLineRe = regexp.MustCompile(`\d{4}\s+REVISED EDITION`)
var actWordRe = regexp.MustCompile(`\bACT\b`)
var enactmentDateRe = regexp.MustCompile(`\[\d{1,2}\s+\w+\s+\d{4}\]`)
var subsectionRe = regexp.MustCompile(`(?m)^\s*(?:\d+\.—)?\(([a-z0-9]+)\)\s+`)

func (p *StatuteParser) Supports(source *SourceDocument) bool {
	if source.DeclaredType == models.DocTypeStatute {
		return true
	}
	head := source.RawText
	if len(head) > 2000 {
		head = head[:2000]
	}
	return strings.Contains(strings.ToUpper(head), "ACT") &&
		(strings.Contains(head, "Section") || regexp.MustCompile(`(?m)^\s*\d+\.`).MatchString(head))
}

func (p *StatuteParser) Parse(source *SourceDocument) (*ParseResult, error) {
	text := source.RawText
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("statute source %s is empty", source.Path)
	}

	actName := p.extractActName(source.Path, text)
	actID := slug(actName)

	result := &ParseResult{}
	root := &models.Document{
		ID:           actID,
		DocType:      models.DocTypeStatute,
		Level:        0,
		Title:        actName,
		FullText:     truncate(text, p.MaxRootChars),
		ActName:      actName,
		Jurisdiction: "SG",
		Hash:         computeHash(text),
	}
	result.Documents = append(result.Documents, root)

	body := skipTOC(text)
	seen := map[string]bool{root.ID: true}

	var sections []*models.Document
	for _, m := range findSections(body) {
		num := m.Number
		sectionID := fmt.Sprintf("%s_s%s", actID, strings.ToLower(num))
		if seen[sectionID] {
			result.Skipped = append(result.Skipped, NodeError{ID: sectionID, Reason: "duplicate section number"})
			continue
		}
		seen[sectionID] = true

		title := firstLine(m.Text)
		if len(title) > 100 {
			title = strings.TrimSpace(title[:100])
		}

		section := &models.Document{
			ID:            sectionID,
			DocType:       models.DocTypeStatute,
			Level:         1,
			ParentID:      actID,
			Title:         title,
			FullText:      m.Text,
			SectionNumber: num,
			ActName:       actName,
			Jurisdiction:  "SG",
			Hash:          computeHash(m.Text),
		}
		sections = append(sections, section)
		result.Documents = append(result.Documents, section)
	}

	for _, section := range sections {
		for _, sub := range p.extractSubsections(section) {
			if seen[sub.ID] {
				result.Skipped = append(result.Skipped, NodeError{ID: sub.ID, Reason: "duplicate subsection label"})
				continue
			}
			seen[sub.ID] = true
			result.Documents = append(result.Documents, sub)
		}
	}

	return result, nil
}

// extractActName prefers a short "... ACT" line near the top of the text and
// falls back to the filename.
func (p *StatuteParser) extractActName(path, text string) string {
	lines := strings.Split(text, "\n")
	if len(lines) > 20 {
		lines = lines[:20]
	}
	for _, line := range lines {
		if actWordRe.MatchString(strings.ToUpper(line)) && len(line) < 100 {
			name := strings.TrimSpace(actLineRe.ReplaceAllString(line, ""))
			if name != "" {
				return name
			}
		}
	}
	return titleCaser.String(strings.ReplaceAll(baseName(path), "_", " "))
}

// skipTOC drops the table-of-contents prefix by anchoring on the dated
// enactment marker, e.g. "[1 April 1968]".
func skipTOC(text string) string {
	if loc := enactmentDateRe.FindStringIndex(text); loc != nil {
		return text[loc[0]:]
	}
	return text
}

func (p *StatuteParser) extractSubsections(section *models.Document) []*models.Document {
	locs := subsectionRe.FindAllStringSubmatchIndex(section.FullText, -1)
	var subs []*models.Document
	for i, loc := range locs {
		label := section.FullText[loc[2]:loc[3]]
		start := loc[0]
		end := len(section.FullText)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		body := strings.TrimSpace(section.FullText[start:end])
		if body == "" {
			continue
		}

		title := body
		if len(title) > 100 {
			title = strings.TrimSpace(title[:100])
		}

		subs = append(subs, &models.Document{
			ID:            fmt.Sprintf("%s_%s", section.ID, label),
			DocType:       models.DocTypeStatute,
			Level:         2,
			ParentID:      section.ID,
			Title:         title,
			FullText:      body,
			SectionNumber: section.SectionNumber,
			Subsection:    label,
			ActName:       section.ActName,
			Jurisdiction:  "SG",
			Hash:          computeHash(body),
		})
	}
	return subs
}
