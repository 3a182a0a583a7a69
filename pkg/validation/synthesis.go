// Package validation scores generated answers for synthesis quality,
// verifies their interpretation claims against the link store, and routes
// each answer to pass, review, or reject.
package validation

import (
	"regexp"
	"strings"
)

// Section weights. Synthesis carries the most: coupling statutory text to
// its judicial interpretation is the whole point of the answer structure.
const (
	weightStatute    = 0.25
	weightInterp     = 0.25
	weightSynthesis  = 0.30
	weightPractical  = 0.20

	// DefaultSynthesisThreshold is the pass mark for the overall score.
	DefaultSynthesisThreshold = 0.70

	// synthesisPhrasesForFullCredit is how many distinct connective phrases
	// an answer needs for full synthesis credit.
	synthesisPhrasesForFullCredit = 3
)

// synthesisPhrases is the enumerated connective set. Matching is
// case-insensitive substring search over the whole answer.
var synthesisPhrases = []string{
	"while the statute",
	"the court clarified",
	"the court has clarified",
	"case law has narrowed",
	"case law has broadened",
	"case law has limited",
	"the courts have interpreted",
	"the court interpreted",
	"the court has construed",
	"taking the statutory framework together",
	"although the statute does not",
	"must be read in light of",
	"the plain text suggests",
	"precedent limits",
	"effectively narrowing",
	"effectively broadening",
}

// repairSuggestions maps a weak or missing section to concrete feedback.
var repairSuggestions = map[string]string{
	"statute":          "Quote the statutory provision verbatim with its section identifier, e.g. Section 2(1) of the Misrepresentation Act 1967.",
	"interpretation":   "Cite at least one case with a pinpoint paragraph, e.g. [2013] SGCA 36, ¶158.",
	"synthesis":        "Connect statute and case law with synthesis language, e.g. \"While the statute provides X, the courts have interpreted this to mean Y\". Use at least three such phrases.",
	"practical_effect": "End with the combined effect, starting \"Therefore,\" or \"In practice,\" and state an actionable consequence.",
}

var (
	sectionNumberRe   = regexp.MustCompile(`(?i)\b(?:section|s\.?)\s*\d+[A-Z]?(?:\(\d+\))?`)
	orderRuleRe       = regexp.MustCompile(`(?i)\border\s+\d+\s+rule\s+\d+\b`)
	quotedTextRe      = regexp.MustCompile(`["\x{201c}][^"\x{201d}]{20,}["\x{201d}]`)
	statuteHeaderRe   = regexp.MustCompile(`(?i)\*{0,2}(?:statute|statutory provision)\b`)
	interpHeaderRe    = regexp.MustCompile(`(?i)\*{0,2}(?:judicial\s+)?interpretation\b`)
	pinpointRe        = regexp.MustCompile(`(?:¶|\bpara(?:graph)?\.?\s*)\d+`)
	holdingVerbRe     = regexp.MustCompile(`(?i)\b(?:held|ruled|decided|observed|stated)\b`)
	practicalOpenerRe = regexp.MustCompile(`(?i)\b(?:therefore|in practice|this means|accordingly|as a result)\b`)
	actionableRe      = regexp.MustCompile(`(?i)\b(?:must|cannot|should|may not|is required to|need(?:s)? to|will have to)\b`)
)

// SynthesisReport is the scorer's output.
type SynthesisReport struct {
	Overall         float64            `json:"overall"`
	SectionScores   map[string]float64 `json:"section_scores"`
	MissingSections []string           `json:"missing_sections,omitempty"`
	Passed          bool               `json:"passed"`
	Feedback        []string           `json:"feedback,omitempty"`
	DetectedPhrases []string           `json:"detected_phrases,omitempty"`
}

// SynthesisScorer grades an answer against the four-section structure.
type SynthesisScorer struct {
	Threshold float64
}

// NewSynthesisScorer uses the default pass threshold.
func NewSynthesisScorer() *SynthesisScorer {
	return &SynthesisScorer{Threshold: DefaultSynthesisThreshold}
}

// Score grades the answer. An answer missing only its synthesis section
// fails even when the other three are present.
func (s *SynthesisScorer) Score(answer string) *SynthesisReport {
	threshold := s.Threshold
	if threshold == 0 {
		threshold = DefaultSynthesisThreshold
	}

	statuteScore := scoreStatuteSection(answer)
	interpScore := scoreInterpretationSection(answer)
	synthesisScore, phrases := scoreSynthesisSection(answer)
	practicalScore := scorePracticalSection(answer)

	overall := weightStatute*statuteScore +
		weightInterp*interpScore +
		weightSynthesis*synthesisScore +
		weightPractical*practicalScore

	report := &SynthesisReport{
		Overall: overall,
		SectionScores: map[string]float64{
			"statute":          statuteScore,
			"interpretation":   interpScore,
			"synthesis":        synthesisScore,
			"practical_effect": practicalScore,
		},
		DetectedPhrases: phrases,
	}

	for _, section := range []string{"statute", "interpretation", "synthesis", "practical_effect"} {
		if report.SectionScores[section] < 0.5 {
			report.MissingSections = append(report.MissingSections, section)
			report.Feedback = append(report.Feedback, repairSuggestions[section])
		}
	}

	report.Passed = overall >= threshold && synthesisScore > 0
	if report.Passed && len(report.Feedback) == 0 {
		report.Feedback = []string{"All four sections present with adequate synthesis."}
	}
	return report
}

// scoreStatuteSection checks for a quoted provision carrying a section
// identifier: the reference is worth half, the verbatim quote and the
// section header split the rest.
func scoreStatuteSection(answer string) float64 {
	score := 0.0
	if sectionNumberRe.MatchString(answer) || orderRuleRe.MatchString(answer) {
		score += 0.5
	}
	if quotedTextRe.MatchString(answer) {
		score += 0.3
	}
	if statuteHeaderRe.MatchString(answer) {
		score += 0.2
	}
	return score
}

// scoreInterpretationSection wants a case citation with a pinpoint paragraph
// and a holding verb.
func scoreInterpretationSection(answer string) float64 {
	score := 0.0
	if caseCitationRe.MatchString(answer) {
		score += 0.5
	}
	if pinpointRe.MatchString(answer) {
		score += 0.3
	}
	if holdingVerbRe.MatchString(answer) || interpHeaderRe.MatchString(answer) {
		score += 0.2
	}
	return score
}

// scoreSynthesisSection counts distinct connective phrases; three earn full
// credit, fewer earn a proportional share.
func scoreSynthesisSection(answer string) (float64, []string) {
	lower := strings.ToLower(answer)
	var found []string
	for _, phrase := range synthesisPhrases {
		if strings.Contains(lower, phrase) {
			found = append(found, phrase)
		}
	}
	n := len(found)
	if n >= synthesisPhrasesForFullCredit {
		return 1.0, found
	}
	return float64(n) / float64(synthesisPhrasesForFullCredit), found
}

// scorePracticalSection wants a summarizing connective opening the final
// section plus an actionable consequence.
func scorePracticalSection(answer string) float64 {
	score := 0.0
	if practicalOpenerRe.MatchString(answer) {
		score += 0.6
	}
	if actionableRe.MatchString(answer) {
		score += 0.4
	}
	return score
}
