package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"statutelink/pkg/models"
)

func statuteSection() *models.Document {
	return &models.Document{
		ID:            "misrepresentation_act_s2",
		DocType:       models.DocTypeStatute,
		Level:         1,
		ParentID:      "misrepresentation_act",
		ActName:       "Misrepresentation Act 1967",
		SectionNumber: "2",
		FullText:      "Where a person has entered into a contract after a misrepresentation...",
		Hash:          "h",
	}
}

func caseParagraph(text string) *models.Document {
	return &models.Document{
		ID:       "2013_sgca_36_para_158",
		DocType:  models.DocTypeCase,
		Level:    1,
		ParentID: "2013_sgca_36",
		Citation: "[2013] SGCA 36",
		Court:    "SGCA",
		Year:     2013,
		Parties:  "Wee Chiaw Sek Anna v Ng Li-Ann Genevieve",
		ParaNo:   158,
		FullText: text,
		Hash:     "h2",
	}
}

func TestRuleBasedExtraction(t *testing.T) {
	index := BuildStatuteIndex([]*models.Document{statuteSection()})
	extractor := &RuleBasedExtractor{}

	para := caseParagraph("In our judgment, Section 2 of the Misrepresentation Act applies only to fiduciary relationships and must be construed narrowly in that regard.")
	links := extractor.Extract(para, index)
	require.Len(t, links, 1)

	link := links[0]
	assert.Equal(t, "misrepresentation_act_s2", link.StatuteID)
	assert.Equal(t, "2013_sgca_36_para_158", link.CaseID)
	assert.Equal(t, models.InterpretNarrow, link.InterpretationType)
	assert.Equal(t, models.AuthorityBinding, link.Authority)
	assert.Equal(t, models.DefaultBoostFactor(models.AuthorityBinding), link.BoostFactor)
	assert.Equal(t, models.ExtractRuleBased, link.ExtractionMethod)
	assert.False(t, link.Verified)
	assert.Equal(t, 158, link.CaseParaNo)
	require.NoError(t, link.Validate())
}

func TestExtractionSkipsUnknownStatutes(t *testing.T) {
	index := BuildStatuteIndex([]*models.Document{statuteSection()})
	extractor := &RuleBasedExtractor{}

	para := caseParagraph("Section 99 of the Imaginary Act applies only where the facts are strange and the court so declares in terms.")
	assert.Empty(t, extractor.Extract(para, index))
}

func TestExtractionAuthorityFromCourt(t *testing.T) {
	index := BuildStatuteIndex([]*models.Document{statuteSection()})
	extractor := &RuleBasedExtractor{}

	para := caseParagraph("Section 2 of the Misrepresentation Act was applied to the facts before the court in the usual way without controversy.")
	para.Court = "SGHC"

	links := extractor.Extract(para, index)
	require.Len(t, links, 1)
	assert.Equal(t, models.AuthorityPersuasive, links[0].Authority)
	assert.Equal(t, models.InterpretApply, links[0].InterpretationType)
}

func TestExtractionDissentCue(t *testing.T) {
	index := BuildStatuteIndex([]*models.Document{statuteSection()})
	extractor := &RuleBasedExtractor{}

	para := caseParagraph("In my dissenting opinion, Section 2 of the Misrepresentation Act should be construed narrowly and confined to its terms.")
	links := extractor.Extract(para, index)
	require.Len(t, links, 1)
	assert.Equal(t, models.AuthorityDissent, links[0].Authority)
}

func TestExtractionIgnoresNonParagraphs(t *testing.T) {
	index := BuildStatuteIndex([]*models.Document{statuteSection()})
	extractor := &RuleBasedExtractor{}

	root := caseParagraph("Section 2 of the Misrepresentation Act applies narrowly here.")
	root.Level = 0
	assert.Empty(t, extractor.Extract(root, index))
}

func TestActSlugIgnoresYear(t *testing.T) {
	assert.Equal(t, actSlug("Misrepresentation Act 1967"), actSlug("Misrepresentation Act"))
	assert.NotEqual(t, actSlug("Misrepresentation Act"), actSlug("Patents Act"))
}
