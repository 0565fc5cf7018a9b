// Package links discovers narrative connections between chapters and turns
// them into graph, path and statistics views.
package links

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"

	"inkwell/api/internal/ai"
	"inkwell/api/internal/store"
	"inkwell/api/internal/util"
)

const (
	minKeywordGap = 2
	maxKeywordGap = 30

	// Contrast detection compares a chapter against at most this many
	// predecessors per AI call.
	contrastWindow = 5
)

// Keyword pairs that signal a setup in one chapter paying off in a later one.
var keywordPairs = []struct {
	linkType string
	setup    []string
	payoff   []string
}{
	{
		linkType: "foreshadowing",
		setup:    []string{"little did", "would come to", "one day", "not yet know", "someday"},
		payoff:   []string{"at last", "finally", "as promised", "had foreseen", "came to pass"},
	},
	{
		linkType: "callback",
		setup:    []string{"swore", "promised", "vowed", "warned"},
		payoff:   []string{"remembered", "recalled", "kept that promise", "that warning", "as sworn"},
	},
}

type Analyzer struct {
	client ai.Client
}

// New creates an analyzer. client may be nil; contrast links are then skipped.
func New(client ai.Client) *Analyzer {
	return &Analyzer{client: client}
}

// Analyze builds chapter links for a project. Continuation and keyword links
// are rule-based; contrast links need the AI client and are best-effort.
func (a *Analyzer) Analyze(ctx context.Context, projectID string, chapters []store.Chapter, useAI bool) ([]store.ChapterLink, error) {
	ordered := make([]store.Chapter, len(chapters))
	copy(ordered, chapters)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].ChapterNumber < ordered[j].ChapterNumber
	})

	var links []store.ChapterLink
	links = append(links, continuationLinks(projectID, ordered)...)
	links = append(links, keywordLinks(projectID, ordered)...)

	if useAI && a.client != nil {
		contrast, err := a.contrastLinks(ctx, projectID, ordered)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Printf("links: contrast analysis failed: %v", err)
		} else {
			links = append(links, contrast...)
		}
	}

	return links, nil
}

// continuationLinks connects each chapter to its direct successor.
func continuationLinks(projectID string, ordered []store.Chapter) []store.ChapterLink {
	var links []store.ChapterLink
	for i := 1; i < len(ordered); i++ {
		prev, curr := ordered[i-1], ordered[i]
		gap := curr.ChapterNumber - prev.ChapterNumber
		if gap != 1 {
			continue
		}
		links = append(links, store.ChapterLink{
			ID:               util.NewID("lnk"),
			ProjectID:        projectID,
			FromChapterID:    prev.ID,
			FromChapterTitle: prev.Title,
			ToChapterID:      curr.ID,
			ToChapterTitle:   curr.Title,
			LinkType:         "continuation",
			Description:      fmt.Sprintf("chapter %d continues into chapter %d", prev.ChapterNumber, curr.ChapterNumber),
			Strength:         0.6,
			Confidence:       0.8,
			ImportanceScore:  50,
			TimeGap:          &gap,
		})
	}
	return links
}

// keywordLinks pairs setup phrases with payoff phrases across a 2 to 30
// chapter gap. Longer gaps score as more important, capped at 90.
func keywordLinks(projectID string, ordered []store.Chapter) []store.ChapterLink {
	var links []store.ChapterLink
	for i := 0; i < len(ordered); i++ {
		for j := i + 1; j < len(ordered); j++ {
			gap := ordered[j].ChapterNumber - ordered[i].ChapterNumber
			if gap < minKeywordGap {
				continue
			}
			if gap > maxKeywordGap {
				break
			}
			for _, pair := range keywordPairs {
				setup := firstMatch(ordered[i].Content, pair.setup)
				payoff := firstMatch(ordered[j].Content, pair.payoff)
				if setup == "" || payoff == "" {
					continue
				}
				g := gap
				links = append(links, store.ChapterLink{
					ID:               util.NewID("lnk"),
					ProjectID:        projectID,
					FromChapterID:    ordered[i].ID,
					FromChapterTitle: ordered[i].Title,
					ToChapterID:      ordered[j].ID,
					ToChapterTitle:   ordered[j].Title,
					LinkType:         pair.linkType,
					Description:      fmt.Sprintf("%q is answered by %q %d chapters later", setup, payoff, gap),
					FromElement:      setup,
					ToElement:        payoff,
					Strength:         min64(0.9, 0.5+float64(gap)*0.02),
					Confidence:       0.4,
					ImportanceScore:  minInt(90, 50+gap*2),
					TimeGap:          &g,
				})
			}
		}
	}
	return links
}

const contrastSystemPrompt = `You find contrast and causality relationships between a chapter and earlier chapters.
Reply with a JSON array only. Each element:
{"fromChapter":<earlier chapter number>,"toChapter":<later chapter number>,
"linkType":"contrast|causality|parallel","description":"...","strength":0.0,"confidence":0.0}`

type aiLink struct {
	FromChapter int     `json:"fromChapter"`
	ToChapter   int     `json:"toChapter"`
	LinkType    string  `json:"linkType"`
	Description string  `json:"description"`
	Strength    float64 `json:"strength"`
	Confidence  float64 `json:"confidence"`
}

func (a *Analyzer) contrastLinks(ctx context.Context, projectID string, ordered []store.Chapter) ([]store.ChapterLink, error) {
	byNumber := make(map[int]store.Chapter, len(ordered))
	for _, c := range ordered {
		byNumber[c.ChapterNumber] = c
	}

	var links []store.ChapterLink
	for i, chapter := range ordered {
		if i == 0 {
			continue
		}
		start := i - contrastWindow
		if start < 0 {
			start = 0
		}

		var sb strings.Builder
		for _, prev := range ordered[start:i] {
			fmt.Fprintf(&sb, "Chapter %d (%s):\n%s\n\n", prev.ChapterNumber, prev.Title, excerpt(prev.Content, 1500))
		}
		fmt.Fprintf(&sb, "Current chapter %d (%s):\n%s", chapter.ChapterNumber, chapter.Title, excerpt(chapter.Content, 1500))

		result, err := a.client.Complete(ctx, contrastSystemPrompt, sb.String())
		if err != nil {
			return nil, err
		}
		items, err := parseAILinks(result.Text)
		if err != nil {
			log.Printf("links: unparseable contrast reply for chapter %d: %v", chapter.ChapterNumber, err)
			continue
		}
		for _, item := range items {
			from, okFrom := byNumber[item.FromChapter]
			to, okTo := byNumber[item.ToChapter]
			if !okFrom || !okTo || from.ID == to.ID {
				continue
			}
			gap := to.ChapterNumber - from.ChapterNumber
			reasoning, _ := json.Marshal([]string{"model: " + result.Model, item.Description})
			links = append(links, store.ChapterLink{
				ID:               util.NewID("lnk"),
				ProjectID:        projectID,
				FromChapterID:    from.ID,
				FromChapterTitle: from.Title,
				ToChapterID:      to.ID,
				ToChapterTitle:   to.Title,
				LinkType:         item.LinkType,
				Description:      item.Description,
				ReasoningChain:   reasoning,
				Strength:         clamp01(item.Strength),
				Confidence:       clamp01(item.Confidence),
				ImportanceScore:  minInt(90, 50+gap*2),
				TimeGap:          &gap,
			})
		}
	}
	return links, nil
}

func parseAILinks(reply string) ([]aiLink, error) {
	trimmed := strings.TrimSpace(reply)

	var items []aiLink
	if err := json.Unmarshal([]byte(trimmed), &items); err == nil {
		return items, nil
	}
	start := strings.Index(trimmed, "[")
	end := strings.LastIndex(trimmed, "]")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(trimmed[start:end+1]), &items); err == nil {
			return items, nil
		}
	}
	return nil, fmt.Errorf("reply contains no JSON array")
}

func firstMatch(content string, phrases []string) string {
	lower := strings.ToLower(content)
	for _, phrase := range phrases {
		if strings.Contains(lower, phrase) {
			return phrase
		}
	}
	return ""
}

func excerpt(content string, max int) string {
	runes := []rune(content)
	if len(runes) <= max {
		return content
	}
	return string(runes[:max])
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func min64(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
