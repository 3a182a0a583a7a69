package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"statutelink/pkg/models"
)

const statuteFixture = `MISREPRESENTATION ACT
2012 REVISED EDITION

ARRANGEMENT OF SECTIONS
1. Removal of bar to rescission
2. Damages for misrepresentation

[1 April 1968]

1.Removal of bar to rescission for innocent misrepresentation
Where a person has entered into a contract after a misrepresentation has been made to him, and the misrepresentation has become a term of the contract, then he shall be entitled to rescind the contract.

2.Damages for misrepresentation
(1) Where a person has entered into a contract after a misrepresentation has been made to him by another party thereto and as a result thereof he has suffered loss, the person making the misrepresentation would be liable to damages.
(2) Where a person has entered into a contract after a misrepresentation has been made to him otherwise than fraudulently, the court may declare the contract subsisting and award damages in lieu of rescission.
`

func TestStatuteParserParse(t *testing.T) {
	parser := &StatuteParser{}
	source := &SourceDocument{
		Path:         "corpus/misrepresentation_act.txt",
		RawText:      statuteFixture,
		DeclaredType: models.DocTypeStatute,
	}
	require.True(t, parser.Supports(source))

	result, err := parser.Parse(source)
	require.NoError(t, err)
	require.NotEmpty(t, result.Documents)

	root := result.Documents[0]
	assert.Equal(t, "misrepresentation_act", root.ID)
	assert.Equal(t, models.DocTypeStatute, root.DocType)
	assert.Equal(t, 0, root.Level)
	assert.Equal(t, "MISREPRESENTATION ACT", root.ActName)
	assert.NotEmpty(t, root.Hash)

	byID := map[string]*models.Document{}
	for _, doc := range result.Documents {
		byID[doc.ID] = doc
	}

	s1, ok := byID["misrepresentation_act_s1"]
	require.True(t, ok, "section 1 should be extracted")
	assert.Equal(t, 1, s1.Level)
	assert.Equal(t, root.ID, s1.ParentID)
	assert.Equal(t, "1", s1.SectionNumber)
	assert.Contains(t, s1.FullText, "entitled to rescind")

	s2, ok := byID["misrepresentation_act_s2"]
	require.True(t, ok, "section 2 should be extracted")
	assert.Equal(t, "2", s2.SectionNumber)

	sub, ok := byID["misrepresentation_act_s2_1"]
	require.True(t, ok, "subsection (1) of section 2 should be extracted")
	assert.Equal(t, 2, sub.Level)
	assert.Equal(t, s2.ID, sub.ParentID)
	assert.Equal(t, "1", sub.Subsection)
	assert.Equal(t, "2", sub.SectionNumber)
}

func TestStatuteParserSkipsTOC(t *testing.T) {
	parser := &StatuteParser{}
	result, err := parser.Parse(&SourceDocument{
		Path:         "corpus/misrepresentation_act.txt",
		RawText:      statuteFixture,
		DeclaredType: models.DocTypeStatute,
	})
	require.NoError(t, err)

	// The arrangement-of-sections entries must not surface as sections; the
	// two body sections are the only level-1 nodes.
	sections := 0
	for _, doc := range result.Documents {
		if doc.Level == 1 {
			sections++
		}
	}
	assert.Equal(t, 2, sections)
}

func TestStatuteParserTreeInvariants(t *testing.T) {
	parser := &StatuteParser{}
	result, err := parser.Parse(&SourceDocument{
		Path:         "corpus/misrepresentation_act.txt",
		RawText:      statuteFixture,
		DeclaredType: models.DocTypeStatute,
	})
	require.NoError(t, err)

	levels := map[string]int{}
	for _, doc := range result.Documents {
		levels[doc.ID] = doc.Level
	}
	for _, doc := range result.Documents {
		require.NoError(t, doc.Validate())
		if doc.Level > 0 {
			parentLevel, ok := levels[doc.ParentID]
			require.True(t, ok, "parent %s of %s must be emitted", doc.ParentID, doc.ID)
			assert.Equal(t, doc.Level-1, parentLevel)
		}
	}
}

func TestStatuteParserDeterministicHashes(t *testing.T) {
	parser := &StatuteParser{}
	source := &SourceDocument{Path: "a.txt", RawText: statuteFixture, DeclaredType: models.DocTypeStatute}

	first, err := parser.Parse(source)
	require.NoError(t, err)
	second, err := parser.Parse(source)
	require.NoError(t, err)

	require.Equal(t, len(first.Documents), len(second.Documents))
	for i := range first.Documents {
		assert.Equal(t, first.Documents[i].Hash, second.Documents[i].Hash)
	}
}

func TestStatuteParserActNameFromFilename(t *testing.T) {
	parser := &StatuteParser{}
	text := "[1 April 1968]\n\n1.Short section\nWhere a person has entered into a contract the provision applies to that contract accordingly.\n"
	result, err := parser.Parse(&SourceDocument{
		Path:         "corpus/patents_act.txt",
		RawText:      text,
		DeclaredType: models.DocTypeStatute,
	})
	require.NoError(t, err)
	assert.Equal(t, "Patents Act", result.Documents[0].ActName)
}
