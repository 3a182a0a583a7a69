package ingest

import (
	"regexp"
	"strconv"
	"strings"
)

// segMatch is one detected structural unit (section or paragraph) with the
// confidence of the pattern that produced it.
type segMatch struct {
	Number     string
	Text       string
	Start      int
	End        int
	Confidence float64
	MatchType  string // "exact", "fuzzy", "heuristic"
}

type headerPattern struct {
	re         *regexp.Regexp
	confidence float64
}

// Statute section headers, ordered by declining confidence. Legal PDFs come
// out of text extraction with inconsistent spacing around the section dot, so
// several variants of "1.Where" are tried and the best-scoring pattern wins.
var statutePatterns = []headerPattern{
	{regexp.MustCompile(`(?m)^\s*(\d+[A-Z]?)\.(?:—)?(?:\(\d+\))?\s*([A-Z][^.\n]*)`), 1.0},
	{regexp.MustCompile(`(?m)^\s*(\d+[A-Z]?)\s+\.(?:—)?(?:\(\d+\))?\s*([A-Z][^.\n]*)`), 0.95},
	{regexp.MustCompile(`(?m)^\s*(?:Section|Sec\.?)\s+(\d+[A-Z]?)\.?\s*([A-Z][^.\n]*)`), 0.9},
	{regexp.MustCompile(`(?m)^\s*(\d+[A-Z]?)\.\s{2,}([A-Z][^.\n]*)`), 0.9},
	{regexp.MustCompile(`(?m)^\s*(\d+[A-Z]?)\s+([A-Z][^.\n]{20,})`), 0.85},
}

// Case paragraph headers: "1␠␠Text", "1\tText", "1. Text", "[1] Text", and a
// last-resort single-space variant.
var casePatterns = []headerPattern{
	{regexp.MustCompile(`(?m)^\s*(\d+)\s{2,}([A-Z].+)`), 1.0},
	{regexp.MustCompile(`(?m)^\s*(\d+)\t+([A-Z].+)`), 0.95},
	{regexp.MustCompile(`(?m)^\s*\[(\d+)\]\s+([A-Z].+)`), 0.95},
	{regexp.MustCompile(`(?m)^\s*(\d+)\.\s+([A-Z].+)`), 0.9},
	{regexp.MustCompile(`(?m)^\s*(\d+)\s([A-Z][^0-9]{30,})`), 0.8},
}

// findSections locates statute sections, preferring whichever pattern yields
// the most nearly sequential numbering.
func findSections(text string) []segMatch {
	return findBest(text, statutePatterns, 50, false)
}

// findParagraphs locates case paragraphs.
func findParagraphs(text string) []segMatch {
	return findBest(text, casePatterns, 30, true)
}

func findBest(text string, patterns []headerPattern, minLen int, strict bool) []segMatch {
	var best []segMatch
	bestConfidence := 0.0

	for _, p := range patterns {
		matches := extractWithPattern(text, p.re, p.confidence, minLen)
		if len(matches) == 0 {
			continue
		}

		avg := 0.0
		for _, m := range matches {
			avg += m.Confidence
		}
		avg /= float64(len(matches))

		if isSequential(numbers(matches)) {
			avg += 0.1
		}

		if avg > bestConfidence {
			best = matches
			bestConfidence = avg
		}
	}

	if len(best) == 0 {
		best = heuristicSearch(text, minLen, strict)
	}
	return best
}

func extractWithPattern(text string, re *regexp.Regexp, confidence float64, minLen int) []segMatch {
	locs := re.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 {
		return nil
	}

	matchType := "fuzzy"
	if confidence >= 0.95 {
		matchType = "exact"
	}

	var results []segMatch
	for i, loc := range locs {
		start := loc[0]
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		segment := strings.TrimSpace(text[start:end])
		if len(segment) < minLen {
			continue
		}
		results = append(results, segMatch{
			Number:     text[loc[2]:loc[3]],
			Text:       segment,
			Start:      start,
			End:        end,
			Confidence: confidence,
			MatchType:  matchType,
		})
	}
	return results
}

var heuristicHeadRe = regexp.MustCompile(`^\[?(\d+[A-Z]?)\]?[\s.—\t]+(.+)`)
var heuristicNextRe = regexp.MustCompile(`^\[?\d{1,4}\]?[\s.—\t]`)
var leadingMarkerRe = regexp.MustCompile(`^\s*\[?\d+\]?[\s.—\t]+`)

// heuristicSearch is the line-by-line fallback when no header pattern fits:
// numbered lines with substantial bodies, kept only if the numbering is
// roughly sequential.
func heuristicSearch(text string, minLen int, strict bool) []segMatch {
	lines := strings.Split(text, "\n")
	var candidates []segMatch

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		m := heuristicHeadRe.FindStringSubmatch(trimmed)
		if m == nil {
			continue
		}

		end := i + 1
		for j := i + 1; j < min(i+50, len(lines)); j++ {
			if heuristicNextRe.MatchString(strings.TrimSpace(lines[j])) {
				end = j
				break
			}
			end = j + 1
		}

		body := strings.Join(lines[i:end], "\n")
		if len(body) < minLen {
			continue
		}

		start := strings.Index(text, body)
		if start == -1 {
			continue
		}

		candidates = append(candidates, segMatch{
			Number:     m[1],
			Text:       leadingMarkerRe.ReplaceAllString(strings.TrimSpace(body), ""),
			Start:      start,
			End:        start + len(body),
			Confidence: 0.7,
			MatchType:  "heuristic",
		})
	}

	if !roughlySequential(numbers(candidates), strict) {
		return nil
	}
	return candidates
}

var leadingDigitsRe = regexp.MustCompile(`^\d+`)

func numbers(matches []segMatch) []int {
	nums := make([]int, 0, len(matches))
	for _, m := range matches {
		d := leadingDigitsRe.FindString(m.Number)
		if d == "" {
			continue
		}
		n, err := strconv.Atoi(d)
		if err != nil {
			continue
		}
		nums = append(nums, n)
	}
	return nums
}

func isSequential(nums []int) bool {
	if len(nums) == 0 {
		return false
	}
	for i, n := range nums {
		if n != nums[0]+i {
			return false
		}
	}
	return true
}

// roughlySequential allows small gaps; strict mode additionally requires the
// numbers to be sorted and at least three of them.
func roughlySequential(nums []int, strict bool) bool {
	minCount, maxGap := 2, 3
	if strict {
		minCount, maxGap = 3, 2
	}
	if len(nums) < minCount {
		return false
	}
	ok := 0
	for i := 0; i+1 < len(nums); i++ {
		gap := nums[i+1] - nums[i]
		if strict && gap < 0 {
			return false
		}
		if gap >= 0 && gap <= maxGap {
			ok++
		}
	}
	return float64(ok)/float64(len(nums)-1) > 0.7
}
