package validation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"statutelink/pkg/errs"
	"statutelink/pkg/models"
)

type fakeLinkFinder struct {
	known map[string]*models.InterpretationLink // keyed by case citation
	err   error
}

func (f *fakeLinkFinder) FindLink(ctx context.Context, caseCitation, statuteName, section string) (*models.InterpretationLink, error) {
	if f.err != nil {
		return nil, f.err
	}
	if link, ok := f.known[caseCitation]; ok {
		return link, nil
	}
	return nil, errs.Ef(errs.KindNotFound, "no link for %s", caseCitation)
}

func verifiedFinder() *fakeLinkFinder {
	return &fakeLinkFinder{known: map[string]*models.InterpretationLink{
		"[2013] SGCA 36": {
			StatuteID:          "misrepresentation_act_s2",
			CaseID:             "2013_sgca_36_para_158",
			InterpretationType: models.InterpretNarrow,
			Authority:          models.AuthorityBinding,
			BoostFactor:        2.8,
		},
	}}
}

func TestDetectVerifiedClaim(t *testing.T) {
	detector := NewHallucinationDetector(verifiedFinder(), 0.05)

	report, err := detector.Detect(context.Background(), completeAnswer, nil)
	require.NoError(t, err)

	require.Equal(t, 1, report.TotalClaims)
	assert.Equal(t, 1, report.VerifiedClaims)
	assert.Zero(t, report.HallucinatedClaims)
	assert.Zero(t, report.HallucinationRate)
	assert.Equal(t, 1.0, report.VerificationRate)
	assert.True(t, report.Passed)
	assert.False(t, report.NeedsReview)

	claim := report.Claims[0]
	assert.Equal(t, "[2013] SGCA 36", claim.CaseCitation)
	assert.Contains(t, claim.StatuteName, "Misrepresentation Act")
	assert.Equal(t, "2", claim.StatuteSection)
	assert.Equal(t, 158, claim.CaseParaNo)
	assert.Equal(t, models.InterpretNarrow, claim.InterpretationType)
	assert.Equal(t, models.AuthorityBinding, claim.Authority)
	assert.Equal(t, 2.8, claim.BoostFactor)
}

func TestDetectUnverifiedClaimInContext(t *testing.T) {
	detector := NewHallucinationDetector(&fakeLinkFinder{known: map[string]*models.InterpretationLink{}}, 0.05)

	answer := `In Lim v Singapore Press Holdings [2015] SGCA 33, ¶45, the Court held that Section 7 of the Defamation Act requires social utility.`
	ctxDocs := []ContextDoc{{DocID: "2015_sgca_33_para_45", Content: "The holding in [2015] SGCA 33 about public benefit.", DocType: models.DocTypeCase}}

	report, err := detector.Detect(context.Background(), answer, ctxDocs)
	require.NoError(t, err)

	assert.Equal(t, 1, report.TotalClaims)
	assert.Equal(t, 1, report.UnverifiedClaims)
	assert.Zero(t, report.HallucinatedClaims)
	assert.True(t, report.Passed)
	assert.True(t, report.NeedsReview, "unverified claims require review")
}

func TestDetectHallucinatedClaim(t *testing.T) {
	detector := NewHallucinationDetector(&fakeLinkFinder{known: map[string]*models.InterpretationLink{}}, 0.05)

	answer := `In Fake Case v Another Fake Party [2025] SGCA 999, ¶200, the Court held that Section 12 of the Privacy Act applies to all online communications.`
	ctxDocs := []ContextDoc{{DocID: "contract_case", Content: "This case discusses contract law, not privacy.", DocType: models.DocTypeCase}}

	report, err := detector.Detect(context.Background(), answer, ctxDocs)
	require.NoError(t, err)

	assert.Equal(t, 1, report.TotalClaims)
	assert.Equal(t, 1, report.HallucinatedClaims)
	assert.GreaterOrEqual(t, report.HallucinationRate, 0.5)
	assert.False(t, report.Passed)
	assert.True(t, report.NeedsReview)
	require.Len(t, report.FlaggedSentences, 1)
	assert.Contains(t, report.FlaggedSentences[0], "[2025] SGCA 999")
}

func TestStatusCountsSumToTotal(t *testing.T) {
	detector := NewHallucinationDetector(verifiedFinder(), 0.05)

	answer := `In Wee Chiaw Sek Anna [2013] SGCA 36, ¶158, the Court held that Section 2 of the Misrepresentation Act applies narrowly. ` +
		`In Fake Case [2025] SGCA 999, ¶200, the Court held that Section 12 of the Privacy Act applies broadly. ` +
		`A sentence with no citation asserts nothing verifiable.`

	report, err := detector.Detect(context.Background(), answer, nil)
	require.NoError(t, err)

	assert.Equal(t, report.TotalClaims, report.VerifiedClaims+report.UnverifiedClaims+report.HallucinatedClaims)
	assert.Equal(t, 2, report.TotalClaims)
}

func TestNoClaimsMeansCleanReport(t *testing.T) {
	detector := NewHallucinationDetector(verifiedFinder(), 0.05)

	report, err := detector.Detect(context.Background(), "No citations appear anywhere in this answer.", nil)
	require.NoError(t, err)

	assert.Zero(t, report.TotalClaims)
	assert.Zero(t, report.HallucinationRate)
	assert.True(t, report.Passed)
	assert.False(t, report.NeedsReview)
}

func TestLinkStoreErrorLeavesClaimUnverified(t *testing.T) {
	detector := NewHallucinationDetector(&fakeLinkFinder{err: errs.Ef(errs.KindLinkStore, "connection refused")}, 0.05)

	answer := `In Wee [2013] SGCA 36, ¶158, the Court held that Section 2 of the Misrepresentation Act applies narrowly.`
	report, err := detector.Detect(context.Background(), answer, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, report.UnverifiedClaims)
	assert.Zero(t, report.HallucinatedClaims)
}

func TestRemoveHallucinated(t *testing.T) {
	detector := NewHallucinationDetector(&fakeLinkFinder{known: map[string]*models.InterpretationLink{}}, 0.05)

	answer := `This is a correct statement about the law. In Fake Case [2025] SGCA 999, ¶200, the Court held that Section 99 of the Fictional Act applies universally. The practical effect is significant.`

	report, err := detector.Detect(context.Background(), answer, nil)
	require.NoError(t, err)
	require.NotEmpty(t, report.FlaggedSentences)

	cleaned := detector.RemoveHallucinated(answer, report)
	for _, flagged := range report.FlaggedSentences {
		assert.NotContains(t, cleaned, flagged)
	}
	assert.Contains(t, cleaned, "correct statement about the law")
	assert.Contains(t, cleaned, "practical effect is significant")
	// The original answer is untouched.
	assert.Contains(t, answer, "[2025] SGCA 999")
}

func TestSplitSentencesKeepsPinpointCitations(t *testing.T) {
	text := `First sentence about Section 2. In Wee [2013] SGCA 36, ¶158, the Court held that Section 2 of the Misrepresentation Act applies narrowly. Final sentence.`
	sentences := splitSentences(text)
	require.Len(t, sentences, 3)
	assert.Contains(t, sentences[1], "¶158")
}

func TestExtractClaimInvertedStatuteOrder(t *testing.T) {
	claim, ok := extractClaim(`The Misrepresentation Act 1967, Section 2 was considered in [2013] SGCA 36.`)
	require.True(t, ok)
	assert.Equal(t, "Misrepresentation Act 1967", claim.StatuteName)
	assert.Equal(t, "2", claim.StatuteSection)
}

func TestExtractClaimOrderRule(t *testing.T) {
	claim, ok := extractClaim(`In ABC v XYZ [2022] SGHC 100, ¶23, the court applied Order 9 Rule 16 of the Rules of Court 2021.`)
	require.True(t, ok)
	assert.Equal(t, "Order 9 Rule 16", claim.StatuteSection)
	assert.Equal(t, "Rules of Court 2021", claim.StatuteName)
	assert.Equal(t, 23, claim.CaseParaNo)
}
