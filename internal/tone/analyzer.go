// Package tone checks chapter prose against a vocabulary watchlist and a few
// structural heuristics, producing a 0 to 100 consistency score.
package tone

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"inkwell/api/internal/store"
)

const (
	contextRadius = 30

	// Sentence lengths clustering tighter than this stddev read as monotonous.
	uniformityStddev    = 8.0
	uniformityMinCount  = 5
	connectorRatio      = 0.01
	connectorMinHits    = 3
	penaltyHighSeverity = 8
	penaltyMedium       = 4
	penaltyLow          = 2
)

// WordHit is one watchlist word found in the text, with enough context to
// show and to replace it.
type WordHit struct {
	Word         string   `json:"word"`
	Category     string   `json:"category"`
	Severity     string   `json:"severity"`
	Position     int      `json:"position"`
	Context      string   `json:"context"`
	Alternatives []string `json:"alternatives"`
}

// Issue is a structural finding independent of any single word.
type Issue struct {
	Kind     string `json:"kind"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// SentenceStats summarizes sentence length distribution in words.
type SentenceStats struct {
	Count  int     `json:"count"`
	Avg    float64 `json:"avgLength"`
	Min    int     `json:"minLength"`
	Max    int     `json:"maxLength"`
	Stddev float64 `json:"stdDev"`
}

type Report struct {
	Score         int           `json:"score"`
	Level         string        `json:"level"`
	WordHits      []WordHit     `json:"wordHits"`
	Issues        []Issue       `json:"issues"`
	Sentences     SentenceStats `json:"sentenceStats"`
	SentenceCount int           `json:"sentenceCount"`
	AvgSentence   float64       `json:"avgSentenceLength"`
}

var (
	sentencePattern  = regexp.MustCompile(`[^.!?]+[.!?]*`)
	wordPattern      = regexp.MustCompile(`[A-Za-z']+`)
	connectorPattern = regexp.MustCompile(`(?i)\b(however|therefore|moreover|furthermore|nevertheless|meanwhile)\b`)
)

// Analyze scans content against the vocabulary list and returns a scored
// report. The list typically mixes system defaults with project additions.
func Analyze(content string, vocabulary []store.VocabularyWord) Report {
	report := Report{WordHits: []WordHit{}, Issues: []Issue{}}

	report.WordHits = findWordHits(content, vocabulary)
	sentences := splitSentences(content)
	report.Sentences, report.Issues = structuralIssues(content, sentences)
	report.SentenceCount = report.Sentences.Count
	report.AvgSentence = report.Sentences.Avg

	penalty := 0
	for _, hit := range report.WordHits {
		penalty += severityPenalty(hit.Severity)
	}
	for _, issue := range report.Issues {
		penalty += severityPenalty(issue.Severity)
	}

	report.Score = 100 - penalty
	if report.Score < 0 {
		report.Score = 0
	}
	report.Level = levelFor(report.Score)
	return report
}

// findWordHits locates every occurrence of every watchlist word, with 30
// characters of context on each side. Hits come back in text order.
func findWordHits(content string, vocabulary []store.VocabularyWord) []WordHit {
	lower := strings.ToLower(content)
	hits := []WordHit{}
	for _, vw := range vocabulary {
		word := strings.ToLower(vw.Word)
		if word == "" {
			continue
		}
		for from := 0; ; {
			idx := strings.Index(lower[from:], word)
			if idx < 0 {
				break
			}
			pos := from + idx
			hits = append(hits, WordHit{
				Word:         vw.Word,
				Category:     vw.Category,
				Severity:     vw.Severity,
				Position:     pos,
				Context:      contextAround(content, pos, len(word)),
				Alternatives: vw.Alternatives,
			})
			from = pos + len(word)
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Position < hits[j].Position })
	return hits
}

func contextAround(content string, pos, length int) string {
	start := pos - contextRadius
	if start < 0 {
		start = 0
	}
	end := pos + length + contextRadius
	if end > len(content) {
		end = len(content)
	}
	return content[start:end]
}

// structuralIssues flags monotonous sentence rhythm and connector overuse.
func structuralIssues(content string, sentences []string) (stats SentenceStats, issues []Issue) {
	issues = []Issue{}
	if len(sentences) == 0 {
		return stats, issues
	}

	lengths := make([]float64, len(sentences))
	var sum float64
	stats.Min = int(^uint(0) >> 1)
	for i, s := range sentences {
		lengths[i] = float64(len(wordPattern.FindAllString(s, -1)))
		sum += lengths[i]
		if n := int(lengths[i]); n < stats.Min {
			stats.Min = n
		}
		if n := int(lengths[i]); n > stats.Max {
			stats.Max = n
		}
	}
	stats.Count = len(lengths)
	stats.Avg = sum / float64(len(lengths))

	var variance float64
	for _, l := range lengths {
		variance += (l - stats.Avg) * (l - stats.Avg)
	}
	stats.Stddev = math.Sqrt(variance / float64(len(lengths)))

	if stats.Count > uniformityMinCount && stats.Stddev < uniformityStddev {
		issues = append(issues, Issue{
			Kind:     "sentence_uniformity",
			Severity: "low",
			Message:  "sentence lengths are very uniform; vary the rhythm",
		})
	}

	totalWords := len(wordPattern.FindAllString(content, -1))
	connectors := len(connectorPattern.FindAllString(content, -1))
	if totalWords > 0 && connectors >= connectorMinHits &&
		float64(connectors)/float64(totalWords) > connectorRatio {
		issues = append(issues, Issue{
			Kind:     "connector_overuse",
			Severity: "medium",
			Message:  "logical connectors appear unusually often",
		})
	}
	return stats, issues
}

func splitSentences(content string) []string {
	raw := sentencePattern.FindAllString(content, -1)
	sentences := raw[:0]
	for _, s := range raw {
		if strings.TrimSpace(s) != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

func severityPenalty(severity string) int {
	switch severity {
	case "high":
		return penaltyHighSeverity
	case "medium":
		return penaltyMedium
	default:
		return penaltyLow
	}
}

func levelFor(score int) string {
	switch {
	case score >= 80:
		return "good"
	case score >= 60:
		return "fair"
	case score >= 40:
		return "poor"
	default:
		return "bad"
	}
}

// Replacement swaps one word occurrence at a known position.
type Replacement struct {
	Position int
	Word     string
	With     string
}

// ApplyReplacements rewrites content back to front so earlier positions stay
// valid while later ones are replaced.
func ApplyReplacements(content string, replacements []Replacement) string {
	ordered := make([]Replacement, len(replacements))
	copy(ordered, replacements)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Position > ordered[j].Position })

	for _, r := range ordered {
		end := r.Position + len(r.Word)
		if r.Position < 0 || end > len(content) {
			continue
		}
		if !strings.EqualFold(content[r.Position:end], r.Word) {
			continue
		}
		content = content[:r.Position] + r.With + content[end:]
	}
	return content
}
