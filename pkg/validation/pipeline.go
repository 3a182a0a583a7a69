package validation

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
)

// Decision is the routing outcome for one validated answer.
type Decision string

const (
	DecisionPass   Decision = "pass"
	DecisionReview Decision = "review"
	DecisionReject Decision = "reject"
)

// Priority orders the review queue.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Thresholds carries the decision-rule cut points.
type Thresholds struct {
	SynthesisPass     float64 // s >= this to pass
	HallucinationPass float64 // h <= this to pass
	HallucinationReject float64 // h > this rejects outright
}

// DefaultThresholds mirrors the production decision rule.
func DefaultThresholds() Thresholds {
	return Thresholds{
		SynthesisPass:       0.70,
		HallucinationPass:   0.05,
		HallucinationReject: 0.15,
	}
}

// Metrics are the per-request observables of one validation run.
type Metrics struct {
	SynthesisScore      float64 `json:"synthesis_score"`
	CitationScore       float64 `json:"citation_score"`
	HallucinationRate   float64 `json:"hallucination_rate"`
	TotalTimeMs         float64 `json:"total_time_ms"`
	SynthesisTimeMs     float64 `json:"synthesis_time_ms"`
	HallucinationTimeMs float64 `json:"hallucination_time_ms"`
	StagesCompleted     int     `json:"stages_completed"`
	StagesFailed        int     `json:"stages_failed"`
}

// Result is the stable on-the-wire output of the pipeline.
type Result struct {
	CorrelationID string    `json:"correlation_id"`
	Decision      Decision  `json:"decision"`
	Priority      Priority  `json:"priority,omitempty"`
	Metrics       Metrics   `json:"metrics"`
	Synthesis     *SynthesisReport     `json:"synthesis,omitempty"`
	Hallucination *HallucinationReport `json:"hallucination,omitempty"`
	Feedback      []string  `json:"feedback,omitempty"`
	Warnings      []string  `json:"warnings,omitempty"`
	Errors        []string  `json:"errors,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Pipeline orchestrates the synthesis scorer and the hallucination detector
// and derives a routing decision. It is side-effect free apart from logs, so
// upstream retries are always safe.
type Pipeline struct {
	scorer     *SynthesisScorer
	detector   *HallucinationDetector
	thresholds Thresholds
}

// NewPipeline wires the two stages. A nil detector disables hallucination
// checking; the pipeline then decides from synthesis alone with a warning.
func NewPipeline(scorer *SynthesisScorer, detector *HallucinationDetector, thresholds Thresholds) *Pipeline {
	if scorer == nil {
		scorer = NewSynthesisScorer()
	}
	if thresholds == (Thresholds{}) {
		thresholds = DefaultThresholds()
	}
	return &Pipeline{scorer: scorer, detector: detector, thresholds: thresholds}
}

// Validate runs the stage machine: init -> synthesis_scored ->
// hallucination_checked -> decided. Stages fail independently; a failed
// stage is recorded and the pipeline continues with what it has. Nothing is
// raised to the caller.
func (p *Pipeline) Validate(ctx context.Context, answer, query string, retrieved []ContextDoc) *Result {
	start := time.Now()
	result := &Result{
		CorrelationID: correlationIDFrom(ctx),
		Timestamp:     start.UTC(),
	}

	// Stage 1: synthesis quality.
	synthStart := time.Now()
	synthesis := p.scorer.Score(answer)
	result.Synthesis = synthesis
	result.Metrics.SynthesisScore = synthesis.Overall
	result.Metrics.SynthesisTimeMs = msSince(synthStart)
	result.Metrics.StagesCompleted++
	result.Feedback = append(result.Feedback, synthesis.Feedback...)

	// Stage 2: hallucination detection. Aborting between stages is allowed;
	// a stage that began is never cancelled mid-write.
	var hallucination *HallucinationReport
	if p.detector == nil {
		result.Metrics.StagesFailed++
		result.Warnings = append(result.Warnings, "hallucination detection unavailable; decided on synthesis alone")
	} else if ctx.Err() != nil {
		result.Metrics.StagesFailed++
		result.Warnings = append(result.Warnings, "deadline reached before hallucination stage")
	} else {
		hallStart := time.Now()
		report, err := p.detector.Detect(ctx, answer, retrieved)
		result.Metrics.HallucinationTimeMs = msSince(hallStart)
		if err != nil {
			result.Metrics.StagesFailed++
			result.Warnings = append(result.Warnings, "hallucination stage failed: "+err.Error())
			log.Printf("[VALIDATION] [%s] hallucination stage failed: %v", result.CorrelationID, err)
		} else {
			hallucination = report
			result.Hallucination = report
			result.Metrics.HallucinationRate = report.HallucinationRate
			result.Metrics.CitationScore = report.VerificationRate
			result.Metrics.StagesCompleted++
		}
	}

	p.decide(result, synthesis, hallucination)
	result.Metrics.TotalTimeMs = msSince(start)

	log.Printf("[VALIDATION] [%s] decision=%s priority=%s synthesis=%.2f hallucination=%.2f in %.1fms",
		result.CorrelationID, result.Decision, result.Priority,
		result.Metrics.SynthesisScore, result.Metrics.HallucinationRate, result.Metrics.TotalTimeMs)
	return result
}

// decide applies the routing rule over synthesis score s and hallucination
// rate h.
func (p *Pipeline) decide(result *Result, synthesis *SynthesisReport, hallucination *HallucinationReport) {
	s := synthesis.Overall
	h := 0.0
	unverified := 0
	if hallucination != nil {
		h = hallucination.HallucinationRate
		unverified = hallucination.UnverifiedClaims
	}

	noErrors := len(result.Errors) == 0 && result.Metrics.StagesFailed == 0

	switch {
	case h > p.thresholds.HallucinationReject:
		result.Decision = DecisionReject
	case s >= p.thresholds.SynthesisPass && synthesis.Passed && h <= p.thresholds.HallucinationPass && noErrors:
		result.Decision = DecisionPass
	default:
		result.Decision = DecisionReview
		switch {
		case h > 0.10 || s < 0.40:
			result.Priority = PriorityCritical
		case h > p.thresholds.HallucinationPass || s < 0.55:
			result.Priority = PriorityHigh
		case unverified > 0:
			result.Priority = PriorityMedium
		default:
			result.Priority = PriorityLow
		}
	}
}

// ValidateBatch runs the pipeline over independent answers sequentially.
// Callers wanting concurrency run separate goroutines; each validation is
// independent.
func (p *Pipeline) ValidateBatch(ctx context.Context, items []BatchItem) []*Result {
	results := make([]*Result, 0, len(items))
	for _, item := range items {
		results = append(results, p.Validate(ctx, item.Answer, item.Query, item.Context))
	}
	return results
}

// BatchItem is one answer in a batch validation.
type BatchItem struct {
	Answer  string
	Query   string
	Context []ContextDoc
}

// BatchStats aggregates a set of validation results.
type BatchStats struct {
	Total             int     `json:"total"`
	Passed            int     `json:"passed"`
	Review            int     `json:"review"`
	Rejected          int     `json:"rejected"`
	PassRate          float64 `json:"pass_rate"`
	ReviewRate        float64 `json:"review_rate"`
	RejectRate        float64 `json:"reject_rate"`
	AvgTimeMs         float64 `json:"avg_time_ms"`
	AvgSynthesisScore float64 `json:"avg_synthesis_score"`
}

// Statistics summarises a batch of results.
func Statistics(results []*Result) BatchStats {
	stats := BatchStats{Total: len(results)}
	if stats.Total == 0 {
		return stats
	}

	var timeSum, synthSum float64
	for _, r := range results {
		switch r.Decision {
		case DecisionPass:
			stats.Passed++
		case DecisionReview:
			stats.Review++
		case DecisionReject:
			stats.Rejected++
		}
		timeSum += r.Metrics.TotalTimeMs
		synthSum += r.Metrics.SynthesisScore
	}

	n := float64(stats.Total)
	stats.PassRate = float64(stats.Passed) / n
	stats.ReviewRate = float64(stats.Review) / n
	stats.RejectRate = float64(stats.Rejected) / n
	stats.AvgTimeMs = timeSum / n
	stats.AvgSynthesisScore = synthSum / n
	return stats
}

type correlationKey struct{}

// WithCorrelationID stamps a correlation id into the context so the pipeline
// reuses the request's id instead of minting its own.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

func correlationIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(correlationKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000.0
}
