package retriever

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"statutelink/pkg/errs"
	"statutelink/pkg/models"
	"statutelink/pkg/search"
)

type fakeSide struct {
	hits []search.Hit
	err  error
}

func (f *fakeSide) Search(ctx context.Context, query string, k int) ([]search.Hit, error) {
	if f.err != nil {
		return nil, f.err
	}
	if k < len(f.hits) {
		return f.hits[:k], nil
	}
	return f.hits, nil
}

type fakeLinks struct {
	links []*models.InterpretationLink
	err   error
	calls int
}

func (f *fakeLinks) LinksForStatutes(ctx context.Context, statuteIDs []string, verifiedOnly bool) ([]*models.InterpretationLink, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var out []*models.InterpretationLink
	for _, l := range f.links {
		for _, id := range statuteIDs {
			if l.StatuteID == id {
				out = append(out, l)
			}
		}
	}
	return out, nil
}

type fakeUnits map[string]models.IndexUnit

func (f fakeUnits) UnitsByID(ctx context.Context, ids []string) (map[string]models.IndexUnit, error) {
	out := make(map[string]models.IndexUnit, len(ids))
	for _, id := range ids {
		if u, ok := f[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

func lexHits(hits ...search.Hit) *fakeSide { return &fakeSide{hits: hits} }

func hit(id string, score float64) search.Hit {
	return search.Hit{UnitID: id, Score: score, Source: search.SourceLexical}
}

func testUnits() fakeUnits {
	return fakeUnits{
		"statute_s2": {UnitID: "statute_s2", DocType: models.DocTypeStatute, Text: "Where a person has entered into a contract after a misrepresentation..."},
		"case_c":     {UnitID: "case_c", DocType: models.DocTypeCase, Text: "Section 2 applies only to fiduciary relationships", Citation: "[2013] SGCA 36", Year: 2013},
		"case_x":     {UnitID: "case_x", DocType: models.DocTypeCase, Text: "Unrelated holding", Citation: "[2010] SGHC 5", Year: 2010},
		"case_y":     {UnitID: "case_y", DocType: models.DocTypeCase, Text: "Another unrelated holding", Citation: "[2011] SGHC 9", Year: 2011},
	}
}

func link(statuteID, caseID string, boost float64) *models.InterpretationLink {
	return &models.InterpretationLink{
		StatuteID:          statuteID,
		CaseID:             caseID,
		StatuteName:        "Misrepresentation Act 1967",
		StatuteSection:     "2",
		CaseCitation:       "[2013] SGCA 36",
		CaseParaNo:         158,
		InterpretationType: models.InterpretNarrow,
		Authority:          models.AuthorityBinding,
		BoostFactor:        boost,
		ApplicabilityScore: 0.9,
		Verified:           true,
	}
}

func newTestRetriever(lex search.LexicalSearcher, dense search.DenseSearcher, links LinkStore, units UnitRepository) *Retriever {
	cfg := DefaultConfig()
	cfg.SideTimeout = 500 * time.Millisecond
	cfg.LinkTimeout = 500 * time.Millisecond
	return New(cfg, lex, dense, links, units)
}

func TestPureLexicalHit(t *testing.T) {
	// A single statute section matching the query terms ranks first.
	ret := newTestRetriever(
		lexHits(hit("statute_s2", 4.2)),
		&fakeSide{},
		&fakeLinks{},
		testUnits(),
	)

	resp, err := ret.Retrieve(context.Background(), "misrepresentation contract", 5, Options{UseInterpretationLinks: true})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "statute_s2", resp.Results[0].UnitID)
	assert.Equal(t, models.DocTypeStatute, resp.Results[0].DocType)
	assert.False(t, resp.Partial)
}

func TestDenseRescue(t *testing.T) {
	// With all the weight on the dense side, a semantically related case
	// paragraph with no query terms still surfaces in the top 2.
	cfg := DefaultConfig()
	cfg.LexWeight = 0.0
	cfg.DenseWeight = 1.0
	ret := New(cfg,
		lexHits(hit("statute_s2", 4.2)),
		&fakeSide{hits: []search.Hit{{UnitID: "case_c", Score: 0.8, Source: search.SourceDense}}},
		&fakeLinks{}, testUnits())

	resp, err := ret.Retrieve(context.Background(), "misrepresentation contract", 5, Options{})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "case_c", resp.Results[0].UnitID)
}

func TestBoostCoRetrievedCase(t *testing.T) {
	// Lex+dense return S, C, X; the S->C link lifts C above S.
	ret := newTestRetriever(
		lexHits(hit("statute_s2", 3.0), hit("case_c", 2.0), hit("case_x", 1.0)),
		&fakeSide{},
		&fakeLinks{links: []*models.InterpretationLink{link("statute_s2", "case_c", 2.8)}},
		testUnits(),
	)

	resp, err := ret.Retrieve(context.Background(), "misrepresentation", 5, Options{UseInterpretationLinks: true})
	require.NoError(t, err)
	require.Len(t, resp.Results, 3)

	assert.Equal(t, "case_c", resp.Results[0].UnitID)
	assert.Equal(t, "statute_s2", resp.Results[1].UnitID)
	assert.Equal(t, "case_x", resp.Results[2].UnitID)

	boosted := resp.Results[0]
	assert.Equal(t, 2.8, boosted.BoostedBy)
	assert.Equal(t, "statute_s2", boosted.InterpretsStatute)
	assert.Equal(t, models.InterpretNarrow, boosted.InterpretationType)
	assert.False(t, boosted.Synthetic)
}

func TestInjectNonRetrievedCase(t *testing.T) {
	// Lex+dense return S, X, Y without C; the link injects C synthetically
	// at 0.7 * mean(top-10 fused) * boost.
	ret := newTestRetriever(
		lexHits(hit("statute_s2", 3.0), hit("case_x", 2.0), hit("case_y", 1.0)),
		&fakeSide{},
		&fakeLinks{links: []*models.InterpretationLink{link("statute_s2", "case_c", 2.8)}},
		testUnits(),
	)

	resp, err := ret.Retrieve(context.Background(), "misrepresentation", 5, Options{UseInterpretationLinks: true})
	require.NoError(t, err)
	require.Len(t, resp.Results, 4)

	var injected *Result
	for i := range resp.Results {
		if resp.Results[i].UnitID == "case_c" {
			injected = &resp.Results[i]
		}
	}
	require.NotNil(t, injected, "linked case should be injected")
	assert.True(t, injected.Synthetic)
	assert.Equal(t, 2.8, injected.BoostedBy)

	// Fused (lex-only, renormalized weight 1.0 on the active pair halves):
	// S=0.5, X=0.25, Y=0.0 -> mean of top 3 = 0.25.
	expected := 0.7 * 0.25 * 2.8
	assert.InDelta(t, expected, injected.Score, 1e-9)
}

func TestDiversificationCap(t *testing.T) {
	units := fakeUnits{
		"statute_s2": {UnitID: "statute_s2", DocType: models.DocTypeStatute, Text: "provision"},
	}
	var links []*models.InterpretationLink
	for _, id := range []string{"c1", "c2", "c3", "c4", "c5"} {
		units[id] = models.IndexUnit{UnitID: id, DocType: models.DocTypeCase, Text: "holding " + id}
		links = append(links, link("statute_s2", id, 2.5))
	}

	ret := newTestRetriever(
		lexHits(hit("statute_s2", 6.0), hit("c1", 5.0), hit("c2", 4.0), hit("c3", 3.0), hit("c4", 2.0), hit("c5", 1.0)),
		&fakeSide{},
		&fakeLinks{links: links},
		units,
	)

	resp, err := ret.Retrieve(context.Background(), "query", 10, Options{UseInterpretationLinks: true})
	require.NoError(t, err)

	interpretive := 0
	for _, res := range resp.Results {
		if res.InterpretsStatute == "statute_s2" {
			interpretive++
		}
	}
	assert.Equal(t, 3, interpretive, "at most three linked cases per anchor statute")
}

func TestGracefulDegradationOnEmbeddingFailure(t *testing.T) {
	ret := newTestRetriever(
		lexHits(hit("statute_s2", 3.0), hit("case_x", 1.0)),
		&fakeSide{err: errs.Ef(errs.KindEmbeddingFailed, "embedding service down")},
		&fakeLinks{},
		testUnits(),
	)

	resp, err := ret.Retrieve(context.Background(), "misrepresentation", 5, Options{})
	require.NoError(t, err, "embedding failure must not surface to the caller")
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "statute_s2", resp.Results[0].UnitID)
}

func TestLinkStoreErrorSkipsBoost(t *testing.T) {
	ret := newTestRetriever(
		lexHits(hit("statute_s2", 3.0), hit("case_c", 2.0)),
		&fakeSide{},
		&fakeLinks{err: errs.Ef(errs.KindLinkStore, "connection refused")},
		testUnits(),
	)

	resp, err := ret.Retrieve(context.Background(), "misrepresentation", 5, Options{UseInterpretationLinks: true})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "statute_s2", resp.Results[0].UnitID)
	assert.Zero(t, resp.Results[0].BoostedBy)
}

func TestLinksDisabledEqualsFusedTopK(t *testing.T) {
	links := &fakeLinks{links: []*models.InterpretationLink{link("statute_s2", "case_c", 2.8)}}
	ret := newTestRetriever(
		lexHits(hit("statute_s2", 3.0), hit("case_c", 2.0), hit("case_x", 1.0)),
		&fakeSide{},
		links,
		testUnits(),
	)

	resp, err := ret.Retrieve(context.Background(), "misrepresentation", 3, Options{UseInterpretationLinks: false})
	require.NoError(t, err)

	ids := []string{}
	for _, res := range resp.Results {
		ids = append(ids, res.UnitID)
	}
	assert.Equal(t, []string{"statute_s2", "case_c", "case_x"}, ids)
	assert.Zero(t, links.calls, "link store must not be queried when boosting is off")
}

func TestDeterministicOrdering(t *testing.T) {
	build := func() *Retriever {
		return newTestRetriever(
			lexHits(hit("statute_s2", 3.0), hit("case_c", 2.0), hit("case_x", 2.0), hit("case_y", 1.0)),
			&fakeSide{hits: []search.Hit{
				{UnitID: "case_y", Score: 0.9, Source: search.SourceDense},
				{UnitID: "case_x", Score: 0.5, Source: search.SourceDense},
			}},
			&fakeLinks{links: []*models.InterpretationLink{link("statute_s2", "case_c", 2.8)}},
			testUnits(),
		)
	}

	first, err := build().Retrieve(context.Background(), "misrepresentation", 4, Options{UseInterpretationLinks: true})
	require.NoError(t, err)
	second, err := build().Retrieve(context.Background(), "misrepresentation", 4, Options{UseInterpretationLinks: true})
	require.NoError(t, err)

	require.Equal(t, len(first.Results), len(second.Results))
	for i := range first.Results {
		assert.Equal(t, first.Results[i].UnitID, second.Results[i].UnitID)
		assert.Equal(t, first.Results[i].Score, second.Results[i].Score)
	}
}

func TestResultCountBounded(t *testing.T) {
	hits := make([]search.Hit, 0, 30)
	units := fakeUnits{}
	for i := 0; i < 30; i++ {
		id := string(rune('a'+i%26)) + string(rune('0'+i/26))
		hits = append(hits, hit(id, float64(30-i)))
		units[id] = models.IndexUnit{UnitID: id, DocType: models.DocTypeCase, Text: "t"}
	}

	ret := newTestRetriever(lexHits(hits...), &fakeSide{}, &fakeLinks{}, units)
	resp, err := ret.Retrieve(context.Background(), "q", 7, Options{})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(resp.Results), 7)
}

func TestFusionMonotonicity(t *testing.T) {
	// a dominates b on both normalized components, so a ranks above b.
	ret := newTestRetriever(
		lexHits(hit("case_x", 3.0), hit("case_y", 2.0), hit("case_c", 1.0)),
		&fakeSide{hits: []search.Hit{
			{UnitID: "case_x", Score: 0.9, Source: search.SourceDense},
			{UnitID: "case_y", Score: 0.5, Source: search.SourceDense},
			{UnitID: "case_c", Score: 0.1, Source: search.SourceDense},
		}},
		&fakeLinks{},
		testUnits(),
	)

	resp, err := ret.Retrieve(context.Background(), "q", 3, Options{})
	require.NoError(t, err)
	require.Len(t, resp.Results, 3)
	assert.Equal(t, "case_x", resp.Results[0].UnitID)
	assert.Equal(t, "case_y", resp.Results[1].UnitID)
}

func TestBoostCapAtThreeTimesMax(t *testing.T) {
	// Even a 3.0 boost cannot lift a score beyond 3x the best fused score.
	ret := newTestRetriever(
		lexHits(hit("statute_s2", 3.0), hit("case_c", 2.9)),
		&fakeSide{},
		&fakeLinks{links: []*models.InterpretationLink{link("statute_s2", "case_c", 3.0)}},
		testUnits(),
	)

	resp, err := ret.Retrieve(context.Background(), "q", 5, Options{UseInterpretationLinks: true})
	require.NoError(t, err)

	maxFused := 0.5 // top normalized lex score x renormalized weight
	for _, res := range resp.Results {
		assert.LessOrEqual(t, res.Score, 3.0*maxFused+1e-9)
	}
}

func TestNormalizeScores(t *testing.T) {
	t.Run("scales into unit range", func(t *testing.T) {
		out := normalizeScores([]search.Hit{hit("a", 10), hit("b", 5), hit("c", 0)})
		assert.Equal(t, 1.0, out[0].Score)
		assert.Equal(t, 0.5, out[1].Score)
		assert.Equal(t, 0.0, out[2].Score)
	})

	t.Run("identical scores collapse to one", func(t *testing.T) {
		out := normalizeScores([]search.Hit{hit("a", 2), hit("b", 2)})
		assert.Equal(t, 1.0, out[0].Score)
		assert.Equal(t, 1.0, out[1].Score)
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, normalizeScores(nil))
	})
}

func TestRequestOverridesPerStatuteCap(t *testing.T) {
	units := fakeUnits{
		"statute_s2": {UnitID: "statute_s2", DocType: models.DocTypeStatute, Text: "provision"},
	}
	var links []*models.InterpretationLink
	for _, id := range []string{"c1", "c2", "c3"} {
		units[id] = models.IndexUnit{UnitID: id, DocType: models.DocTypeCase, Text: "holding"}
		links = append(links, link("statute_s2", id, 2.5))
	}

	ret := newTestRetriever(
		lexHits(hit("statute_s2", 4.0), hit("c1", 3.0), hit("c2", 2.0), hit("c3", 1.0)),
		&fakeSide{},
		&fakeLinks{links: links},
		units,
	)

	resp, err := ret.Retrieve(context.Background(), "q", 10, Options{UseInterpretationLinks: true, MaxInterpretivePerStatute: 1})
	require.NoError(t, err)

	interpretive := 0
	for _, res := range resp.Results {
		if res.InterpretsStatute != "" {
			interpretive++
		}
	}
	assert.Equal(t, 1, interpretive)
}

func TestEmptyQueryRejected(t *testing.T) {
	ret := newTestRetriever(lexHits(), &fakeSide{}, &fakeLinks{}, fakeUnits{})
	_, err := ret.Retrieve(context.Background(), "", 5, Options{})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindBadRequest))
}
