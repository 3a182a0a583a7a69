package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const completeAnswer = `**Statute:** Section 2 of the Misrepresentation Act 1967 states: "Where a person has entered into a contract after a misrepresentation has been made to him, damages may be recoverable."

**Judicial Interpretation:** In Wee Chiaw Sek Anna v Ng Li-Ann Genevieve [2013] SGCA 36, ¶158, the Court held that Section 2 of the Misrepresentation Act applies only to fiduciary relationships.

**Synthesis:** While the statute appears to apply broadly, the courts have interpreted this to mean trust-based relationships only. The court clarified that the duty arises in fiduciary settings, and case law has narrowed the provision accordingly.

**Practical Effect:** In practice, this means a party must show a fiduciary relationship before silence amounts to misrepresentation.`

const noSynthesisAnswer = `**Statute:** Section 7 of the Defamation Act states: "The defendant proves that the matter was true and for the public benefit it should be published."

**Judicial Interpretation:** In Lim v Singapore Press Holdings [2015] SGCA 33, ¶45, the Court held that public benefit requires demonstrable social utility.

**Practical Effect:** In practice, defendants must show material public benefit, not just newsworthiness.`

func TestScoreCompleteAnswer(t *testing.T) {
	report := NewSynthesisScorer().Score(completeAnswer)

	assert.GreaterOrEqual(t, report.Overall, 0.9)
	assert.True(t, report.Passed)
	assert.Empty(t, report.MissingSections)
	assert.GreaterOrEqual(t, len(report.DetectedPhrases), 3)
}

func TestMissingSynthesisFails(t *testing.T) {
	report := NewSynthesisScorer().Score(noSynthesisAnswer)

	assert.False(t, report.Passed, "missing synthesis alone must fail the answer")
	assert.Contains(t, report.MissingSections, "synthesis")
	assert.Zero(t, report.SectionScores["synthesis"])

	// The other three sections score well; only the synthesis weight is lost.
	assert.GreaterOrEqual(t, report.SectionScores["statute"], 0.5)
	assert.GreaterOrEqual(t, report.SectionScores["interpretation"], 0.5)
	assert.GreaterOrEqual(t, report.SectionScores["practical_effect"], 0.5)
}

func TestWeakAnswerScoresLow(t *testing.T) {
	answer := `Under Singapore law, courts can strike out claims. This has been discussed in various cases. The threshold is quite high. So basically it is hard to get a claim struck out.`

	report := NewSynthesisScorer().Score(answer)
	assert.Less(t, report.Overall, 0.5)
	assert.False(t, report.Passed)
	assert.NotEmpty(t, report.Feedback)
}

func TestPartialSynthesisCredit(t *testing.T) {
	oneSynthesisPhrase := `While the statute provides a defence, nothing else here connects provisions to holdings.`

	report := NewSynthesisScorer().Score(oneSynthesisPhrase)
	assert.InDelta(t, 1.0/3.0, report.SectionScores["synthesis"], 1e-9)
}

func TestSectionWeights(t *testing.T) {
	report := NewSynthesisScorer().Score(completeAnswer)

	expected := weightStatute*report.SectionScores["statute"] +
		weightInterp*report.SectionScores["interpretation"] +
		weightSynthesis*report.SectionScores["synthesis"] +
		weightPractical*report.SectionScores["practical_effect"]
	assert.InDelta(t, expected, report.Overall, 1e-9)
}

func TestFeedbackFromRepairTable(t *testing.T) {
	report := NewSynthesisScorer().Score("A bare answer with nothing required in it.")
	require.NotEmpty(t, report.Feedback)
	assert.Contains(t, report.Feedback, repairSuggestions["synthesis"])
}
