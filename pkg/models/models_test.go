package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validDocument() *Document {
	return &Document{
		ID:       "misrepresentation_act",
		DocType:  DocTypeStatute,
		Level:    0,
		Title:    "Misrepresentation Act",
		FullText: "text",
		Hash:     "abc123",
	}
}

func TestDocumentValidate(t *testing.T) {
	t.Run("valid root", func(t *testing.T) {
		assert.NoError(t, validDocument().Validate())
	})

	t.Run("root with parent", func(t *testing.T) {
		doc := validDocument()
		doc.ParentID = "other"
		assert.Error(t, doc.Validate())
	})

	t.Run("child without parent", func(t *testing.T) {
		doc := validDocument()
		doc.Level = 1
		doc.SectionNumber = "2"
		assert.Error(t, doc.Validate())
	})

	t.Run("level out of range", func(t *testing.T) {
		doc := validDocument()
		doc.Level = 4
		doc.ParentID = "p"
		assert.Error(t, doc.Validate())
	})

	t.Run("unknown doc type", func(t *testing.T) {
		doc := validDocument()
		doc.DocType = "contract"
		assert.Error(t, doc.Validate())
	})

	t.Run("statute section requires section number", func(t *testing.T) {
		doc := validDocument()
		doc.Level = 1
		doc.ParentID = "misrepresentation_act"
		assert.Error(t, doc.Validate())

		doc.SectionNumber = "2"
		assert.NoError(t, doc.Validate())
	})

	t.Run("case paragraph requires para number", func(t *testing.T) {
		doc := &Document{
			ID:       "2013_sgca_36_para_158",
			DocType:  DocTypeCase,
			Level:    1,
			ParentID: "2013_sgca_36",
			FullText: "text",
			Hash:     "h",
		}
		assert.Error(t, doc.Validate())

		doc.ParaNo = 158
		assert.NoError(t, doc.Validate())
	})
}

func TestUnitFromDocument(t *testing.T) {
	doc := &Document{
		ID:       "2013_sgca_36_para_158",
		DocType:  DocTypeCase,
		Level:    1,
		ParentID: "2013_sgca_36",
		Title:    "¶158",
		FullText: "Section 2 does not impose a general duty to disclose",
		Citation: "[2013] SGCA 36",
		Court:    "SGCA",
		Year:     2013,
		ParaNo:   158,
		Hash:     "h",
	}

	unit := UnitFromDocument(doc)
	assert.Equal(t, doc.ID, unit.UnitID)
	assert.Equal(t, DocTypeCase, unit.DocType)
	assert.Equal(t, doc.FullText, unit.Text)
	assert.Equal(t, doc.Citation, unit.Citation)
	assert.Equal(t, 158, unit.ParaNo)
}

func validLink() *InterpretationLink {
	return &InterpretationLink{
		StatuteID:          "misrepresentation_act_s2",
		CaseID:             "2013_sgca_36_para_158",
		StatuteName:        "Misrepresentation Act 1967",
		StatuteSection:     "2",
		CaseName:           "Wee Chiaw Sek Anna v Ng Li-Ann Genevieve",
		CaseCitation:       "[2013] SGCA 36",
		CaseParaNo:         158,
		InterpretationType: InterpretNarrow,
		Authority:          AuthorityBinding,
		Holding:            "Applies only to fiduciary relationships",
		BoostFactor:        2.8,
		ApplicabilityScore: 0.9,
		Confidence:         0.95,
	}
}

func TestInterpretationLinkValidate(t *testing.T) {
	require.NoError(t, validLink().Validate())

	t.Run("boost factor range", func(t *testing.T) {
		link := validLink()
		link.BoostFactor = 0.5
		assert.Error(t, link.Validate())

		link.BoostFactor = 3.5
		assert.Error(t, link.Validate())
	})

	t.Run("applicability range", func(t *testing.T) {
		link := validLink()
		link.ApplicabilityScore = 1.5
		assert.Error(t, link.Validate())
	})

	t.Run("missing references", func(t *testing.T) {
		link := validLink()
		link.CaseID = ""
		assert.Error(t, link.Validate())
	})
}

func TestDefaultBoostFactor(t *testing.T) {
	assert.Equal(t, 2.8, DefaultBoostFactor(AuthorityBinding))
	assert.Equal(t, 2.0, DefaultBoostFactor(AuthorityPersuasive))
	assert.Equal(t, 1.5, DefaultBoostFactor(AuthorityObiter))
	assert.Equal(t, 1.2, DefaultBoostFactor(AuthorityDissent))
}

func TestEffectiveBoost(t *testing.T) {
	link := validLink()
	assert.InDelta(t, 2.8*0.9, link.EffectiveBoost(), 1e-9)

	link.ApplicabilityScore = 0
	assert.Equal(t, 2.8, link.EffectiveBoost())
}

func TestFactPatternHelpers(t *testing.T) {
	link := validLink()
	link.FactPatternTags = []string{"silence", "fiduciary_duty", "contract"}

	assert.True(t, link.MatchesFactPattern([]string{"silence", "oral_agreement"}))
	assert.False(t, link.MatchesFactPattern([]string{"oral_agreement"}))
	assert.False(t, link.MatchesFactPattern(nil))

	// Two shared of four distinct tags.
	score := link.FactOverlapScore([]string{"silence", "fiduciary_duty", "fraud"})
	assert.InDelta(t, 2.0/4.0, score, 1e-9)
}
