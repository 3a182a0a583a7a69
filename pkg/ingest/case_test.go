package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"statutelink/pkg/models"
)

const caseFixture = `Wee Chiaw Sek Anna v Ng Li-Ann Genevieve
[2013] SGCA 36

1    The appellant entered into an agreement with the respondent for the sale of shares in the family company and later discovered matters that had not been disclosed to her at the time of the sale.

2    The respondent contended that silence could not amount to misrepresentation in the absence of a duty of disclosure arising from the nature of the relationship between the parties.

3    We are satisfied that Section 2 of the Misrepresentation Act does not impose a general duty to disclose and applies only where the relationship is a fiduciary one.
`

func TestCaseParserParse(t *testing.T) {
	parser := &CaseParser{}
	source := &SourceDocument{
		Path:         "corpus/Wee Chiaw Sek Anna v Ng Li-Ann Genevieve [2013] SGCA 36.txt",
		RawText:      caseFixture,
		DeclaredType: models.DocTypeCase,
	}
	require.True(t, parser.Supports(source))

	result, err := parser.Parse(source)
	require.NoError(t, err)
	require.Len(t, result.Documents, 4)

	root := result.Documents[0]
	assert.Equal(t, "2013_sgca_36", root.ID)
	assert.Equal(t, models.DocTypeCase, root.DocType)
	assert.Equal(t, "[2013] SGCA 36", root.Citation)
	assert.Equal(t, "SGCA", root.Court)
	assert.Equal(t, 2013, root.Year)
	assert.Contains(t, root.Parties, "Wee Chiaw Sek Anna")

	para := result.Documents[1]
	assert.Equal(t, "2013_sgca_36_para_1", para.ID)
	assert.Equal(t, 1, para.Level)
	assert.Equal(t, root.ID, para.ParentID)
	assert.Equal(t, 1, para.ParaNo)
	assert.Contains(t, para.Title, "¶1")

	last := result.Documents[3]
	assert.Equal(t, 3, last.ParaNo)
	assert.Contains(t, last.FullText, "fiduciary")
}

func TestCaseParserCitationFromText(t *testing.T) {
	parser := &CaseParser{}
	result, err := parser.Parse(&SourceDocument{
		Path:         "corpus/judgment_download.txt",
		RawText:      caseFixture,
		DeclaredType: models.DocTypeCase,
	})
	require.NoError(t, err)
	assert.Equal(t, "[2013] SGCA 36", result.Documents[0].Citation)
}

func TestCaseParserBracketedParagraphs(t *testing.T) {
	text := `ABC Co Ltd v XYZ Ltd
[2022] SGHC 100

[1] The plaintiff commenced this action seeking damages for breach of contract arising from a distribution agreement between the parties.

[2] The defendant applied to strike out the statement of claim on the basis that it disclosed no reasonable cause of action against it.
`
	parser := &CaseParser{}
	result, err := parser.Parse(&SourceDocument{
		Path:         "corpus/abc_v_xyz.txt",
		RawText:      text,
		DeclaredType: models.DocTypeCase,
	})
	require.NoError(t, err)
	require.Len(t, result.Documents, 3)
	assert.Equal(t, 1, result.Documents[1].ParaNo)
	assert.Equal(t, 2, result.Documents[2].ParaNo)
}

func TestCaseParserNoParagraphs(t *testing.T) {
	parser := &CaseParser{}
	result, err := parser.Parse(&SourceDocument{
		Path:         "corpus/empty [2020] SGHC 1.txt",
		RawText:      "A short judgment with no numbered paragraphs at all.",
		DeclaredType: models.DocTypeCase,
	})
	require.NoError(t, err)
	// Root still emitted; the absence of paragraphs is a recorded skip.
	require.Len(t, result.Documents, 1)
	assert.NotEmpty(t, result.Skipped)
}
