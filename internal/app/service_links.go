package app

import (
	"context"
	"encoding/json"
	"fmt"

	"inkwell/api/internal/extract"
	"inkwell/api/internal/links"
	"inkwell/api/internal/store"
)

type AnalyzeLinksInput struct {
	UseAI bool `json:"useAi"`
}

// AnalyzeLinks runs chapter link analysis and saves the results. The store
// dedupes on from:to:type, so re-running is additive.
func (s *Service) AnalyzeLinks(ctx context.Context, projectID, ownerID string, input AnalyzeLinksInput) (map[string]any, error) {
	if _, err := s.projectForOwner(ctx, projectID, ownerID); err != nil {
		return nil, err
	}
	chapters, err := s.store.ListChapters(ctx, projectID)
	if err != nil {
		return nil, err
	}
	found, err := s.linker.Analyze(ctx, projectID, chapters, input.UseAI)
	if err != nil {
		return nil, err
	}

	saved := 0
	var linkIDs []string
	for _, link := range found {
		inserted, err := s.store.InsertLink(ctx, link)
		if err != nil {
			return nil, err
		}
		if inserted {
			saved++
			linkIDs = append(linkIDs, link.ID)
		}
	}

	if input.UseAI && s.ai != nil && len(linkIDs) > 0 {
		s.recordThinkingChain(ctx, thinkingChainInput{
			projectID:  projectID,
			chainType:  "generation",
			conclusion: fmt.Sprintf("saved %d chapter link(s)", saved),
			steps: []string{
				"linked adjacent chapters as continuations",
				"paired setup and payoff keywords across the chapter gap window",
				"asked the model for contrast links against recent chapters",
			},
			linkIDs: linkIDs,
			usage:   extract.Usage{Model: s.ai.Model()},
		})
	}

	return map[string]any{
		"linksFound": len(found),
		"linksSaved": saved,
	}, nil
}

func (s *Service) ListLinks(ctx context.Context, projectID, ownerID string, filter store.LinkFilter) ([]map[string]any, error) {
	if _, err := s.projectForOwner(ctx, projectID, ownerID); err != nil {
		return nil, err
	}
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	if filter.Limit > 1000 {
		filter.Limit = 1000
	}
	chapterLinks, err := s.store.ListLinks(ctx, projectID, filter)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(chapterLinks))
	for _, link := range chapterLinks {
		items = append(items, linkPayload(link))
	}
	return items, nil
}

// LinkGraph assembles the chapter relationship graph, optionally dropping link
// types and low-importance nodes.
func (s *Service) LinkGraph(ctx context.Context, projectID, ownerID string, minImportance int, excludeTypes map[string]bool) (map[string]any, error) {
	if _, err := s.projectForOwner(ctx, projectID, ownerID); err != nil {
		return nil, err
	}
	chapters, err := s.store.ListChapters(ctx, projectID)
	if err != nil {
		return nil, err
	}
	chapterLinks, err := s.store.ListLinks(ctx, projectID, store.LinkFilter{Limit: 1000})
	if err != nil {
		return nil, err
	}

	if len(excludeTypes) > 0 {
		kept := chapterLinks[:0]
		for _, link := range chapterLinks {
			if !excludeTypes[link.LinkType] {
				kept = append(kept, link)
			}
		}
		chapterLinks = kept
	}

	graph := links.BuildGraph(chapters, chapterLinks)
	if minImportance > 0 {
		keptNodes := make([]links.GraphNode, 0, len(graph.Nodes))
		keep := make(map[string]bool, len(graph.Nodes))
		for _, node := range graph.Nodes {
			if node.Importance >= minImportance {
				keptNodes = append(keptNodes, node)
				keep[node.ID] = true
			}
		}
		keptEdges := make([]links.GraphEdge, 0, len(graph.Edges))
		for _, edge := range graph.Edges {
			if keep[edge.From] && keep[edge.To] {
				keptEdges = append(keptEdges, edge)
			}
		}
		graph.Nodes = keptNodes
		graph.Edges = keptEdges
	}

	return map[string]any{
		"nodes": graph.Nodes,
		"edges": graph.Edges,
	}, nil
}

func (s *Service) ChapterImportance(ctx context.Context, chapterID, ownerID string) (map[string]any, error) {
	chapter, _, err := s.chapterForOwner(ctx, chapterID, ownerID)
	if err != nil {
		return nil, err
	}
	chapterLinks, err := s.store.ListLinks(ctx, chapter.ProjectID, store.LinkFilter{Limit: 1000})
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"chapterId":  chapterID,
		"importance": links.ChapterImportance(chapterID, chapterLinks),
	}, nil
}

func (s *Service) LinkPaths(ctx context.Context, projectID, ownerID, fromID, toID string, maxHops int) (map[string]any, error) {
	if _, err := s.projectForOwner(ctx, projectID, ownerID); err != nil {
		return nil, err
	}
	chapterLinks, err := s.store.ListLinks(ctx, projectID, store.LinkFilter{Limit: 1000})
	if err != nil {
		return nil, err
	}
	paths := links.FindPaths(chapterLinks, fromID, toID, maxHops)
	if paths == nil {
		paths = [][]string{}
	}
	return map[string]any{
		"from":  fromID,
		"to":    toID,
		"paths": paths,
	}, nil
}

func (s *Service) LinkStats(ctx context.Context, projectID, ownerID string) (map[string]any, error) {
	if _, err := s.projectForOwner(ctx, projectID, ownerID); err != nil {
		return nil, err
	}
	chapterLinks, err := s.store.ListLinks(ctx, projectID, store.LinkFilter{Limit: 1000})
	if err != nil {
		return nil, err
	}
	chapters, err := s.store.ListChapters(ctx, projectID)
	if err != nil {
		return nil, err
	}
	stats := links.ComputeStats(chapterLinks, len(chapters))
	return map[string]any{
		"totalLinks":    stats.TotalLinks,
		"byType":        stats.ByType,
		"strongLinks":   stats.StrongLinks,
		"mediumLinks":   stats.MediumLinks,
		"weakLinks":     stats.WeakLinks,
		"density":       stats.Density,
		"coverageScore": stats.CoverageScore,
	}, nil
}

// ThinkingChains lists AI reasoning records for a chapter with token totals.
func (s *Service) ThinkingChains(ctx context.Context, chapterID, ownerID, chainType string) (map[string]any, error) {
	chapter, _, err := s.chapterForOwner(ctx, chapterID, ownerID)
	if err != nil {
		return nil, err
	}
	chains, err := s.store.ListThinkingChains(ctx, chapter.ProjectID, chapterID, chainType)
	if err != nil {
		return nil, err
	}
	totalPrompt, totalCompletion := 0, 0
	items := make([]map[string]any, 0, len(chains))
	for _, chain := range chains {
		totalPrompt += chain.PromptTokens
		totalCompletion += chain.CompletionTokens
		items = append(items, thinkingChainPayload(chain))
	}
	return map[string]any{
		"chains":                items,
		"totalPromptTokens":     totalPrompt,
		"totalCompletionTokens": totalCompletion,
	}, nil
}

func linkPayload(link store.ChapterLink) map[string]any {
	var reasoning []string
	if len(link.ReasoningChain) > 0 {
		_ = json.Unmarshal(link.ReasoningChain, &reasoning)
	}
	if reasoning == nil {
		reasoning = []string{}
	}
	return map[string]any{
		"id":               link.ID,
		"projectId":        link.ProjectID,
		"fromChapterId":    link.FromChapterID,
		"fromChapterTitle": link.FromChapterTitle,
		"toChapterId":      link.ToChapterID,
		"toChapterTitle":   link.ToChapterTitle,
		"linkType":         link.LinkType,
		"description":      link.Description,
		"fromElement":      link.FromElement,
		"toElement":        link.ToElement,
		"reasoningChain":   reasoning,
		"strength":         link.Strength,
		"importanceScore":  link.ImportanceScore,
		"confidence":       link.Confidence,
		"timeGap":          link.TimeGap,
		"isConfirmed":      link.IsConfirmed,
		"createdAt":        formatTime(link.CreatedAt),
	}
}

func thinkingChainPayload(chain store.ThinkingChain) map[string]any {
	var steps []string
	if len(chain.ReasoningSteps) > 0 {
		_ = json.Unmarshal(chain.ReasoningSteps, &steps)
	}
	if steps == nil {
		steps = []string{}
	}
	return map[string]any{
		"id":               chain.ID,
		"projectId":        chain.ProjectID,
		"chapterId":        chain.ChapterID,
		"chainType":        chain.ChainType,
		"reasoningSteps":   steps,
		"conclusion":       chain.Conclusion,
		"evidence":         chain.Evidence,
		"snapshotIds":      orEmpty(chain.SnapshotIDs),
		"conflictIds":      orEmpty(chain.ConflictIDs),
		"linkIds":          orEmpty(chain.LinkIDs),
		"aiModel":          chain.AIModel,
		"temperature":      chain.Temperature,
		"promptTokens":     chain.PromptTokens,
		"completionTokens": chain.CompletionTokens,
		"createdAt":        formatTime(chain.CreatedAt),
	}
}

func orEmpty(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
