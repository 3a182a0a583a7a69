package ingest

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"statutelink/pkg/models"
)

// RulesParser segments a Rules-of-Court book into Orders (level 1), Rules
// (level 2), and numbered sub-rules (level 3).
type RulesParser struct {
	// RootID and RootTitle identify the book; defaults cover ROC 2021.
	RootID    string
	RootTitle string
	// TOCPageToken is the page-number token that ends the table of contents.
	TOCPageToken string
	MaxRootChars int
}

// Rule headers carry their coordinates inline: "Title (O. 9, r. 16)" followed
// by "16.—(1) ..." on the next line. The strict variant requires the opening
// sub-rule marker; the relaxed one accepts a bare "16.—". Go regexps have no
// backreferences, so the rule number echo is verified in code.
var ruleStrictRe = regexp.MustCompile(`([^\n]+)\s*\(O\.\s*(\d+),\s*r\.\s*(\d+)\)\s*\n+\s*(\d+)\.—\([0-9]+\)`)
var ruleRelaxedRe = regexp.MustCompile(`([^\n]+)\s*\(O\.\s*(\d+),\s*r\.\s*(\d+)\)\s*\n+\s*(\d+)\.—`)

var orderTitleRe = regexp.MustCompile(`\nORDER\s+(\d+)\s*\n([A-Z][^\n]+)`)
var ruleLabelPrefixRe = regexp.MustCompile(`^\d+\.\s*`)
var subRuleRe = regexp.MustCompile(`(?m)^\s*\d+\.—\((\d+)\)|^\s*\((\d+)\)\s+`)

type parsedRule struct {
	num     string
	label   string
	content string
}

func (p *RulesParser) Supports(source *SourceDocument) bool {
	if source.DeclaredType == models.DocTypeRule {
		return true
	}
	return ruleRelaxedRe.MatchString(source.RawText)
}

func (p *RulesParser) Parse(source *SourceDocument) (*ParseResult, error) {
	text := source.RawText
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("rules source %s is empty", source.Path)
	}

	rootID := p.RootID
	if rootID == "" {
		rootID = "rules_of_court_2021"
	}
	rootTitle := p.RootTitle
	if rootTitle == "" {
		rootTitle = "Rules of Court 2021"
	}

	if p.TOCPageToken != "" {
		if i := strings.Index(text, p.TOCPageToken); i >= 0 {
			text = text[i+len(p.TOCPageToken):]
		}
	}

	result := &ParseResult{}
	result.Documents = append(result.Documents, &models.Document{
		ID:           rootID,
		DocType:     models.DocTypeRule,
		Level:        0,
		Title:        rootTitle,
		FullText:     truncate(source.RawText, p.MaxRootChars),
		Jurisdiction: "SG",
		Hash:         computeHash(source.RawText),
	})

	ruleMatches := p.matchRules(text)
	if len(ruleMatches) == 0 {
		result.Skipped = append(result.Skipped, NodeError{ID: rootID, Reason: "no rule headers detected"})
		return result, nil
	}

	orderTitles := map[string]string{}
	for _, m := range orderTitleRe.FindAllStringSubmatch(text, -1) {
		orderTitles[m[1]] = strings.TrimSpace(m[2])
	}

	rulesByOrder := map[string][]parsedRule{}
	for i, loc := range ruleMatches {
		label := strings.TrimSpace(text[loc[2]:loc[3]])
		orderNum := text[loc[4]:loc[5]]
		ruleNum := text[loc[6]:loc[7]]
		echoNum := text[loc[8]:loc[9]]
		if ruleNum != echoNum {
			result.Skipped = append(result.Skipped, NodeError{
				ID:     fmt.Sprintf("%s_o_%s_r_%s", rootID, orderNum, ruleNum),
				Reason: fmt.Sprintf("rule number mismatch: header %s, body %s", ruleNum, echoNum),
			})
			continue
		}

		label = strings.TrimSpace(ruleLabelPrefixRe.ReplaceAllString(label, ""))

		contentStart := loc[8]
		contentEnd := len(text)
		if i+1 < len(ruleMatches) {
			contentEnd = ruleMatches[i+1][0]
		}

		rulesByOrder[orderNum] = append(rulesByOrder[orderNum], parsedRule{
			num:     ruleNum,
			label:   label,
			content: strings.TrimSpace(text[contentStart:contentEnd]),
		})
	}

	orderNums := make([]string, 0, len(rulesByOrder))
	for n := range rulesByOrder {
		orderNums = append(orderNums, n)
	}
	sort.Slice(orderNums, func(i, j int) bool {
		a, _ := strconv.Atoi(orderNums[i])
		b, _ := strconv.Atoi(orderNums[j])
		return a < b
	})

	for _, orderNum := range orderNums {
		orderTitle, ok := orderTitles[orderNum]
		if !ok {
			orderTitle = fmt.Sprintf("Order %s", orderNum)
		}
		orderID := fmt.Sprintf("%s_o_%s", rootID, orderNum)

		var sb strings.Builder
		fmt.Fprintf(&sb, "ORDER %s\n%s\n\n", orderNum, orderTitle)
		for _, r := range rulesByOrder[orderNum] {
			fmt.Fprintf(&sb, "Rule %s: %s\n", r.num, r.label)
		}
		orderText := sb.String()

		result.Documents = append(result.Documents, &models.Document{
			ID:            orderID,
			DocType:       models.DocTypeRule,
			Level:         1,
			ParentID:      rootID,
			Title:         fmt.Sprintf("Order %s: %s", orderNum, orderTitle),
			FullText:      orderText,
			SectionNumber: orderNum,
			ActName:       rootTitle,
			Jurisdiction:  "SG",
			Hash:          computeHash(orderText),
		})

		for _, r := range rulesByOrder[orderNum] {
			ruleID := fmt.Sprintf("%s_r_%s", orderID, r.num)
			ruleDoc := &models.Document{
				ID:            ruleID,
				DocType:       models.DocTypeRule,
				Level:         2,
				ParentID:      orderID,
				Title:         fmt.Sprintf("Rule %s: %s", r.num, r.label),
				FullText:      r.content,
				SectionNumber: r.num,
				ActName:       fmt.Sprintf("Order %s", orderNum),
				Jurisdiction:  "SG",
				Hash:          computeHash(r.content),
			}
			result.Documents = append(result.Documents, ruleDoc)
			result.Documents = append(result.Documents, p.extractSubRules(ruleDoc)...)
		}
	}

	return result, nil
}

// matchRules prefers the strict header pattern but falls back to the relaxed
// one when strictness drops too many rules.
func (p *RulesParser) matchRules(text string) [][]int {
	strict := ruleStrictRe.FindAllStringSubmatchIndex(text, -1)
	relaxed := ruleRelaxedRe.FindAllStringSubmatchIndex(text, -1)
	if len(strict)*2 >= len(relaxed) {
		return strict
	}
	return relaxed
}

func (p *RulesParser) extractSubRules(rule *models.Document) []*models.Document {
	locs := subRuleRe.FindAllStringSubmatchIndex(rule.FullText, -1)
	var subs []*models.Document
	seen := map[string]bool{}
	for i, loc := range locs {
		num := submatchAt(rule.FullText, loc, 1)
		if num == "" {
			num = submatchAt(rule.FullText, loc, 2)
		}
		if num == "" {
			continue
		}

		subID := fmt.Sprintf("%s_sub_%s", rule.ID, num)
		if seen[subID] {
			continue
		}
		seen[subID] = true

		end := len(rule.FullText)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		body := strings.TrimSpace(rule.FullText[loc[0]:end])
		if body == "" {
			continue
		}

		title := body
		if len(title) > 100 {
			title = strings.TrimSpace(title[:100])
		}

		subs = append(subs, &models.Document{
			ID:            subID,
			DocType:       models.DocTypeRule,
			Level:         3,
			ParentID:      rule.ID,
			Title:         title,
			FullText:      body,
			SectionNumber: rule.SectionNumber,
			Subsection:    num,
			ActName:       rule.ActName,
			Jurisdiction:  "SG",
			Hash:          computeHash(body),
		})
	}
	return subs
}

func submatchAt(text string, loc []int, group int) string {
	if loc[2*group] < 0 {
		return ""
	}
	return text[loc[2*group]:loc[2*group+1]]
}
