// Package retriever implements interpretation-aware hybrid retrieval: a
// concurrent lexical+dense fan-out fused by weighted normalized scores, then
// reranked with boosts from the interpretation-link graph and diversified per
// anchor statute.
package retriever

import (
	"context"
	"log"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"statutelink/pkg/errs"
	"statutelink/pkg/models"
	"statutelink/pkg/search"
)

// LinkStore is the slice of the interpretation-link store the retriever
// reads.
type LinkStore interface {
	LinksForStatutes(ctx context.Context, statuteIDs []string, verifiedOnly bool) ([]*models.InterpretationLink, error)
}

// UnitRepository resolves unit ids to their retrieval projections, both for
// annotating fused results and for injecting linked cases that neither side
// returned.
type UnitRepository interface {
	UnitsByID(ctx context.Context, ids []string) (map[string]models.IndexUnit, error)
}

// Config carries the fusion and boosting parameters.
type Config struct {
	TopK         int
	FetchFactor  int // per-side fetch cap is FetchFactor*k
	MergeLimit   int
	LexWeight    float64
	DenseWeight  float64
	LepardWeight float64 // reserved third signal; not yet wired
	AnchorWindow int
	MaxInterpretivePerStatute int
	SideTimeout  time.Duration
	LinkTimeout  time.Duration
}

// DefaultConfig mirrors the production defaults.
func DefaultConfig() Config {
	return Config{
		TopK:         10,
		FetchFactor:  20,
		MergeLimit:   500,
		LexWeight:    0.4,
		DenseWeight:  0.4,
		LepardWeight: 0.2,
		AnchorWindow: 20,
		MaxInterpretivePerStatute: 3,
		SideTimeout:  2 * time.Second,
		LinkTimeout:  time.Second,
	}
}

// Options are the per-request knobs of the retrieval contract.
type Options struct {
	UseInterpretationLinks    bool
	MaxInterpretivePerStatute int // 0 means configured default
}

// Result is one ranked retrieval output.
type Result struct {
	UnitID             string                    `json:"unit_id"`
	DocType            models.DocType            `json:"doc_type"`
	Content            string                    `json:"content"`
	Citation           string                    `json:"citation,omitempty"`
	Score              float64                   `json:"score"`
	Source             search.Source             `json:"source"`
	LexScore           float64                   `json:"lex_score"`
	DenseScore         float64                   `json:"dense_score"`
	BoostedBy          float64                   `json:"boosted_by,omitempty"`
	InterpretsStatute  string                    `json:"interprets_statute,omitempty"`
	InterpretationType models.InterpretationType `json:"interpretation_type,omitempty"`
	Authority          models.Authority          `json:"authority,omitempty"`
	Synthetic          bool                      `json:"synthetic,omitempty"`

	year     int
	preRank  int
}

// Response wraps a ranked list with its partiality flag.
type Response struct {
	Results []Result `json:"results"`
	Partial bool     `json:"partial,omitempty"`
}

// Retriever owns no mutable state beyond an optional cache; all sub-stores
// are read-only at query time.
type Retriever struct {
	cfg   Config
	lex   search.LexicalSearcher
	dense search.DenseSearcher
	links LinkStore
	units UnitRepository
	cache *resultCache
}

// New constructs a retriever. A nil lexical or dense side degrades that side
// to permanently empty rather than failing.
func New(cfg Config, lex search.LexicalSearcher, dense search.DenseSearcher, links LinkStore, units UnitRepository) *Retriever {
	if cfg.TopK <= 0 {
		cfg.TopK = 10
	}
	if cfg.FetchFactor <= 0 {
		cfg.FetchFactor = 20
	}
	if cfg.MergeLimit <= 0 {
		cfg.MergeLimit = 500
	}
	if cfg.AnchorWindow <= 0 {
		cfg.AnchorWindow = 20
	}
	if cfg.MaxInterpretivePerStatute <= 0 {
		cfg.MaxInterpretivePerStatute = 3
	}
	return &Retriever{cfg: cfg, lex: lex, dense: dense, links: links, units: units}
}

// EnableCache bounds an in-process LRU over whole responses. A zero budget
// leaves caching off.
func (r *Retriever) EnableCache(maxBytes int64) {
	if maxBytes > 0 {
		r.cache = newResultCache(maxBytes)
	}
}

// Retrieve runs the full pipeline for one query. The output order is a pure
// function of the inputs, the index generations, and the configured weights.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int, opts Options) (*Response, error) {
	if query == "" {
		return nil, errs.Ef(errs.KindBadRequest, "query must not be empty")
	}
	if k <= 0 {
		k = r.cfg.TopK
	}
	if k > 50 {
		k = 50
	}

	maxPerStatute := opts.MaxInterpretivePerStatute
	if maxPerStatute <= 0 {
		maxPerStatute = r.cfg.MaxInterpretivePerStatute
	}

	if r.cache != nil {
		if resp, ok := r.cache.get(cacheKey(query, k, opts.UseInterpretationLinks, maxPerStatute)); ok {
			return resp, nil
		}
	}

	// Step 1: concurrent fan-out with independent per-side timeouts. A side
	// that errors or times out contributes nothing; it is not an error.
	lexHits, denseHits := r.fanOut(ctx, query, r.cfg.FetchFactor*k)

	// Steps 2-3: normalize each side, fuse by weighted sum.
	fused := r.fuse(normalizeScores(lexHits), normalizeScores(denseHits))
	if len(fused) > r.cfg.MergeLimit {
		fused = fused[:r.cfg.MergeLimit]
	}

	partial := ctx.Err() != nil

	// Annotate fused hits with their unit projections.
	results := r.annotate(ctx, fused)

	// Steps 4-6: interpretation boost.
	if opts.UseInterpretationLinks && !partial {
		results = r.applyInterpretationBoost(ctx, results)
	}

	// Step 7: diversify and truncate.
	final := diversify(results, k, maxPerStatute)

	if ctx.Err() != nil {
		partial = true
	}

	resp := &Response{Results: final, Partial: partial}
	if r.cache != nil && !partial {
		r.cache.put(cacheKey(query, k, opts.UseInterpretationLinks, maxPerStatute), resp)
	}
	return resp, nil
}

func (r *Retriever) fanOut(ctx context.Context, query string, kFetch int) ([]search.Hit, []search.Hit) {
	var lexHits, denseHits []search.Hit

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		if r.lex == nil {
			return nil
		}
		sideCtx, cancel := context.WithTimeout(ctx, r.cfg.SideTimeout)
		defer cancel()
		hits, err := r.lex.Search(sideCtx, query, kFetch)
		if err != nil {
			log.Printf("[RETRIEVER] lexical side degraded (%s): %v", errs.KindOf(err), err)
			return nil
		}
		lexHits = hits
		return nil
	})
	g.Go(func() error {
		if r.dense == nil {
			return nil
		}
		sideCtx, cancel := context.WithTimeout(ctx, r.cfg.SideTimeout)
		defer cancel()
		hits, err := r.dense.Search(sideCtx, query, kFetch)
		if err != nil {
			log.Printf("[RETRIEVER] dense side degraded (%s): %v", errs.KindOf(err), err)
			return nil
		}
		denseHits = hits
		return nil
	})
	g.Wait()

	return lexHits, denseHits
}

// normalizeScores min-max scales a side's scores into [0,1]. A side where
// every score is identical collapses to 1.0 so it still contributes.
func normalizeScores(hits []search.Hit) []search.Hit {
	if len(hits) == 0 {
		return hits
	}
	minScore, maxScore := hits[0].Score, hits[0].Score
	for _, h := range hits[1:] {
		if h.Score < minScore {
			minScore = h.Score
		}
		if h.Score > maxScore {
			maxScore = h.Score
		}
	}

	out := make([]search.Hit, len(hits))
	copy(out, hits)
	if maxScore == minScore {
		for i := range out {
			out[i].Score = 1.0
		}
		return out
	}
	for i := range out {
		out[i].Score = (out[i].Score - minScore) / (maxScore - minScore)
	}
	return out
}

type fusedHit struct {
	unitID     string
	score      float64
	lexScore   float64
	denseScore float64
	source     search.Source
}

// fuse merges the two sides by unit id with renormalized weights. The
// reserved lepard signal is absent, so the active pair is scaled to sum to 1.
func (r *Retriever) fuse(lexHits, denseHits []search.Hit) []fusedHit {
	wSum := r.cfg.LexWeight + r.cfg.DenseWeight
	wLex := r.cfg.LexWeight / wSum
	wDense := r.cfg.DenseWeight / wSum

	merged := make(map[string]*fusedHit, len(lexHits)+len(denseHits))
	order := make([]string, 0, len(lexHits)+len(denseHits))

	for _, h := range lexHits {
		if _, ok := merged[h.UnitID]; ok {
			continue
		}
		merged[h.UnitID] = &fusedHit{
			unitID:   h.UnitID,
			lexScore: h.Score,
			score:    wLex * h.Score,
			source:   search.SourceLexical,
		}
		order = append(order, h.UnitID)
	}
	for _, h := range denseHits {
		if f, ok := merged[h.UnitID]; ok {
			f.denseScore = h.Score
			f.score += wDense * h.Score
			f.source = search.SourceHybrid
			continue
		}
		merged[h.UnitID] = &fusedHit{
			unitID:     h.UnitID,
			denseScore: h.Score,
			score:      wDense * h.Score,
			source:     search.SourceDense,
		}
		order = append(order, h.UnitID)
	}

	fused := make([]fusedHit, 0, len(merged))
	for _, id := range order {
		fused = append(fused, *merged[id])
	}
	sort.SliceStable(fused, func(i, j int) bool {
		if fused[i].score != fused[j].score {
			return fused[i].score > fused[j].score
		}
		return fused[i].unitID < fused[j].unitID
	})
	return fused
}

// annotate attaches unit projections to fused hits. Units that cannot be
// resolved are dropped; the ids came from an index generation, so a miss
// means the corpus moved under us.
func (r *Retriever) annotate(ctx context.Context, fused []fusedHit) []Result {
	ids := make([]string, len(fused))
	for i, f := range fused {
		ids[i] = f.unitID
	}

	units, err := r.units.UnitsByID(ctx, ids)
	if err != nil {
		log.Printf("[RETRIEVER] unit annotation failed: %v", err)
		units = nil
	}

	results := make([]Result, 0, len(fused))
	for i, f := range fused {
		u, ok := units[f.unitID]
		if !ok {
			continue
		}
		results = append(results, Result{
			UnitID:     f.unitID,
			DocType:    u.DocType,
			Content:    u.Text,
			Citation:   u.Citation,
			Score:      f.score,
			Source:     f.source,
			LexScore:   f.lexScore,
			DenseScore: f.denseScore,
			year:       u.Year,
			preRank:    i,
		})
	}
	return results
}

// applyInterpretationBoost implements steps 4-6: find anchor statutes in the
// top of the fused list, pull their verified interpretation links, multiply
// linked cases already present, and inject linked cases the fan-out missed.
func (r *Retriever) applyInterpretationBoost(ctx context.Context, results []Result) []Result {
	anchors := anchorStatutes(results, r.cfg.AnchorWindow)
	if len(anchors) == 0 {
		return results
	}

	linkCtx, cancel := context.WithTimeout(ctx, r.cfg.LinkTimeout)
	defer cancel()

	links, err := r.links.LinksForStatutes(linkCtx, anchors, true)
	if err != nil {
		log.Printf("[RETRIEVER] link lookup degraded, skipping boost: %v", err)
		return results
	}
	if len(links) == 0 {
		return results
	}

	// A case interpreting several anchors keeps its strongest link; the store
	// orders by boost descending, so first entry wins.
	boostMap := make(map[string]*models.InterpretationLink, len(links))
	for _, l := range links {
		if _, ok := boostMap[l.CaseID]; !ok {
			boostMap[l.CaseID] = l
		}
	}

	maxFused := 0.0
	for _, res := range results {
		if res.Score > maxFused {
			maxFused = res.Score
		}
	}
	// Invariant: a boost never lifts any score above 3x the best pre-boost
	// fused score.
	scoreCap := 3.0 * maxFused

	// Synthetic scores derive from the fused top-10 before any boost lands.
	synthetic := 0.7 * meanTopN(results, 10)

	present := make(map[string]bool, len(results))
	for i := range results {
		res := &results[i]
		present[res.UnitID] = true
		link, ok := boostMap[res.UnitID]
		if !ok {
			continue
		}
		res.Score = math.Min(res.Score*link.BoostFactor, scoreCap)
		res.BoostedBy = link.BoostFactor
		res.InterpretsStatute = link.StatuteID
		res.InterpretationType = link.InterpretationType
		res.Authority = link.Authority
	}

	var missing []string
	for caseID := range boostMap {
		if !present[caseID] {
			missing = append(missing, caseID)
		}
	}
	sort.Strings(missing)

	if len(missing) > 0 {
		units, err := r.units.UnitsByID(ctx, missing)
		if err != nil {
			log.Printf("[RETRIEVER] could not fetch linked cases for injection: %v", err)
			units = nil
		}
		for _, caseID := range missing {
			u, ok := units[caseID]
			if !ok {
				continue
			}
			link := boostMap[caseID]
			results = append(results, Result{
				UnitID:             caseID,
				DocType:            u.DocType,
				Content:            u.Text,
				Citation:           u.Citation,
				Score:              math.Min(synthetic*link.BoostFactor, scoreCap),
				Source:             search.SourceHybrid,
				BoostedBy:          link.BoostFactor,
				InterpretsStatute:  link.StatuteID,
				InterpretationType: link.InterpretationType,
				Authority:          link.Authority,
				Synthetic:          true,
				year:               u.Year,
				preRank:            math.MaxInt32,
			})
		}
	}

	return results
}

// anchorStatutes collects statute-typed unit ids from the head of the fused
// list. Rules are statutes for interpretation purposes: both sit on the
// statute side of the link graph.
func anchorStatutes(results []Result, window int) []string {
	if window > len(results) {
		window = len(results)
	}
	var anchors []string
	for _, res := range results[:window] {
		if res.DocType == models.DocTypeStatute || res.DocType == models.DocTypeRule {
			anchors = append(anchors, res.UnitID)
		}
	}
	return anchors
}

// meanTopN averages the scores of the first n results of a score-sorted
// slice.
func meanTopN(results []Result, n int) float64 {
	if len(results) == 0 {
		return 0
	}
	if n > len(results) {
		n = len(results)
	}
	sum := 0.0
	for _, res := range results[:n] {
		sum += res.Score
	}
	return sum / float64(n)
}

// diversify sorts by score and walks the list, capping linked cases per
// anchor statute. Tie-breaks: equal scores preserve pre-boost order;
// synthetic injections prefer the stronger boost, then the more recent case.
func diversify(results []Result, k, maxPerStatute int) []Result {
	sorted := make([]Result, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.preRank != b.preRank {
			return a.preRank < b.preRank
		}
		if a.BoostedBy != b.BoostedBy {
			return a.BoostedBy > b.BoostedBy
		}
		if a.year != b.year {
			return a.year > b.year
		}
		return a.UnitID < b.UnitID
	})

	perStatute := make(map[string]int)
	out := make([]Result, 0, k)
	for _, res := range sorted {
		if res.InterpretsStatute != "" {
			if perStatute[res.InterpretsStatute] >= maxPerStatute {
				continue
			}
			perStatute[res.InterpretsStatute]++
		}
		out = append(out, res)
		if len(out) >= k {
			break
		}
	}
	return out
}
