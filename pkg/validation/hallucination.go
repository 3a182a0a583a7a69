package validation

import (
	"context"
	"regexp"
	"strings"

	"statutelink/pkg/errs"
	"statutelink/pkg/models"
)

// ClaimStatus is the verification outcome for one extracted claim.
type ClaimStatus string

const (
	ClaimVerified     ClaimStatus = "verified"
	ClaimUnverified   ClaimStatus = "unverified"
	ClaimHallucinated ClaimStatus = "hallucinated"
)

// LinkFinder is the slice of the link store the detector needs.
type LinkFinder interface {
	FindLink(ctx context.Context, caseCitation, statuteName, section string) (*models.InterpretationLink, error)
}

// ContextDoc is one retrieved document handed to the validator alongside the
// answer.
type ContextDoc struct {
	DocID   string         `json:"doc_id"`
	Content string         `json:"content"`
	DocType models.DocType `json:"doc_type"`
}

// Claim is one interpretation assertion pulled out of an answer: a case said
// to construe a statute section. Claims live only for one validation call.
type Claim struct {
	CaseCitation   string      `json:"case_citation"`
	CaseParaNo     int         `json:"case_para_no,omitempty"`
	StatuteName    string      `json:"statute_name"`
	StatuteSection string      `json:"statute_section"`
	Sentence       string      `json:"sentence"`
	Status         ClaimStatus `json:"status"`

	// Copied from the matching link when the claim verifies.
	InterpretationType models.InterpretationType `json:"interpretation_type,omitempty"`
	Authority          models.Authority          `json:"authority,omitempty"`
	BoostFactor        float64                   `json:"boost_factor,omitempty"`
}

// HallucinationReport is the detector's output. The three status counts
// always sum to TotalClaims.
type HallucinationReport struct {
	Claims             []Claim  `json:"claims"`
	TotalClaims        int      `json:"total_claims"`
	VerifiedClaims     int      `json:"verified_claims"`
	UnverifiedClaims   int      `json:"unverified_claims"`
	HallucinatedClaims int      `json:"hallucinated_claims"`
	HallucinationRate  float64  `json:"hallucination_rate"`
	VerificationRate   float64  `json:"verification_rate"`
	FlaggedSentences   []string `json:"flagged_sentences,omitempty"`
	Passed             bool     `json:"passed"`
	NeedsReview        bool     `json:"needs_review"`
}

// HallucinationDetector extracts interpretation claims from an answer and
// verifies each against the interpretation-link store.
type HallucinationDetector struct {
	links     LinkFinder
	threshold float64
}

// NewHallucinationDetector builds a detector with the given pass threshold
// on the hallucination rate (default 0.05).
func NewHallucinationDetector(links LinkFinder, threshold float64) *HallucinationDetector {
	if threshold == 0 {
		threshold = 0.05
	}
	return &HallucinationDetector{links: links, threshold: threshold}
}

var caseCitationRe = regexp.MustCompile(`\[(\d{4})\]\s+([A-Z]+(?:\([A-Z]+\))?)\s+(\d+)`)
var claimParaRe = regexp.MustCompile(`¶\s*(\d+)|\bpara(?:graph)?\.?\s*(\d+)`)

// "Section 2 of the Misrepresentation Act 1967" and the inverted
// "Misrepresentation Act 1967, Section 2" both occur in generated answers.
var sectionOfStatuteRe = regexp.MustCompile(`(?i)section\s+(\d+[A-Z]?)(?:\(\d+\))?\s+of\s+(?:the\s+)?([A-Z][A-Za-z' ]*?(?:Act|Rules)(?:\s+\d{4})?)`)
var statuteCommaSectionRe = regexp.MustCompile(`([A-Z][A-Za-z' ]*?(?:Act|Rules)(?:\s+\d{4})?)\s*,?\s+(?i:section)\s+(\d+[A-Z]?)(?:\(\d+\))?`)
var orderRuleOfRe = regexp.MustCompile(`(?i)order\s+(\d+)\s+rule\s+(\d+)\s+of\s+(?:the\s+)?((?:[A-Z][A-Za-z' ]*?)?Rules(?:[A-Za-z' ]*[A-Za-z])?(?:\s+\d{4})?)`)

// Detect segments the answer into sentences, extracts a claim from every
// sentence asserting an interpretation, and verifies each claim against the
// link store. A claim whose case at least appears in the retrieved context
// is unverified rather than hallucinated; a reviewer can confirm it.
func (d *HallucinationDetector) Detect(ctx context.Context, answer string, retrieved []ContextDoc) (*HallucinationReport, error) {
	report := &HallucinationReport{}

	for _, sentence := range splitSentences(answer) {
		claim, ok := extractClaim(sentence)
		if !ok {
			continue
		}

		d.verify(ctx, &claim, retrieved)
		report.Claims = append(report.Claims, claim)

		switch claim.Status {
		case ClaimVerified:
			report.VerifiedClaims++
		case ClaimUnverified:
			report.UnverifiedClaims++
		case ClaimHallucinated:
			report.HallucinatedClaims++
			report.FlaggedSentences = append(report.FlaggedSentences, sentence)
		}
	}

	report.TotalClaims = len(report.Claims)
	denom := float64(report.TotalClaims)
	if denom < 1 {
		denom = 1
	}
	report.HallucinationRate = float64(report.HallucinatedClaims) / denom
	report.VerificationRate = float64(report.VerifiedClaims) / denom
	report.Passed = report.HallucinationRate <= d.threshold
	report.NeedsReview = report.UnverifiedClaims > 0 || !report.Passed

	return report, nil
}

func (d *HallucinationDetector) verify(ctx context.Context, claim *Claim, retrieved []ContextDoc) {
	if d.links != nil {
		link, err := d.links.FindLink(ctx, claim.CaseCitation, claim.StatuteName, claim.StatuteSection)
		if err == nil {
			claim.Status = ClaimVerified
			claim.InterpretationType = link.InterpretationType
			claim.Authority = link.Authority
			claim.BoostFactor = link.BoostFactor
			return
		}
		if !errs.Is(err, errs.KindNotFound) {
			// The store is unreachable, not the claim wrong; leave the claim
			// for a reviewer instead of calling it hallucinated.
			claim.Status = ClaimUnverified
			return
		}
	}

	if citationInContext(claim.CaseCitation, retrieved) {
		claim.Status = ClaimUnverified
		return
	}
	claim.Status = ClaimHallucinated
}

// RemoveHallucinated returns a copy of the answer with every flagged
// sentence deleted verbatim. The input is never modified.
func (d *HallucinationDetector) RemoveHallucinated(answer string, report *HallucinationReport) string {
	cleaned := answer
	for _, sentence := range report.FlaggedSentences {
		cleaned = strings.ReplaceAll(cleaned, sentence, "")
	}
	return collapseSpaces(cleaned)
}

// extractClaim pulls a claim tuple from a sentence that mentions a case
// citation near a statute/section token.
func extractClaim(sentence string) (Claim, bool) {
	citation := caseCitationRe.FindString(sentence)
	if citation == "" {
		return Claim{}, false
	}

	var name, section string
	if m := sectionOfStatuteRe.FindStringSubmatch(sentence); m != nil {
		section, name = m[1], strings.TrimSpace(m[2])
	} else if m := orderRuleOfRe.FindStringSubmatch(sentence); m != nil {
		section, name = "Order "+m[1]+" Rule "+m[2], strings.TrimSpace(m[3])
	} else if m := statuteCommaSectionRe.FindStringSubmatch(sentence); m != nil {
		name, section = strings.TrimSpace(m[1]), m[2]
	} else {
		return Claim{}, false
	}
	name = strings.TrimPrefix(name, "The ")

	claim := Claim{
		CaseCitation:   citation,
		StatuteName:    name,
		StatuteSection: section,
		Sentence:       sentence,
	}
	if m := claimParaRe.FindStringSubmatch(sentence); m != nil {
		para := m[1]
		if para == "" {
			para = m[2]
		}
		claim.CaseParaNo = atoiSafe(para)
	}
	return claim, true
}

func citationInContext(citation string, retrieved []ContextDoc) bool {
	for _, doc := range retrieved {
		if strings.Contains(doc.Content, citation) || strings.Contains(doc.DocID, citation) {
			return true
		}
	}
	return false
}

// splitSentences is a light segmenter: terminators followed by whitespace
// end a sentence. A period followed by any other rune, as in "s.2", does not
// split, so mid-citation periods stay attached.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		current.WriteRune(runes[i])
		if runes[i] != '.' && runes[i] != '!' && runes[i] != '?' {
			continue
		}
		// Terminator must be followed by whitespace (or end of text) to
		// close the sentence.
		if i+1 < len(runes) && runes[i+1] != ' ' && runes[i+1] != '\n' && runes[i+1] != '\t' {
			continue
		}
		s := strings.TrimSpace(current.String())
		if s != "" {
			sentences = append(sentences, s)
		}
		current.Reset()
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

var multiSpaceRe = regexp.MustCompile(`[ \t]{2,}`)

func collapseSpaces(s string) string {
	return strings.TrimSpace(multiSpaceRe.ReplaceAllString(s, " "))
}

func atoiSafe(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}
