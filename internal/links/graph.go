package links

import (
	"sort"

	"inkwell/api/internal/store"
)

type GraphNode struct {
	ID            string `json:"id"`
	Label         string `json:"label"`
	ChapterNumber int    `json:"chapterNumber"`
	Importance    int    `json:"importance"`
	Size          int    `json:"size"`
}

type GraphEdge struct {
	ID       string  `json:"id"`
	From     string  `json:"from"`
	To       string  `json:"to"`
	LinkType string  `json:"linkType"`
	Strength float64 `json:"strength"`
	Label    string  `json:"label"`
}

type Graph struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// Link types that mark a chapter as structurally significant.
var specialLinkTypes = map[string]bool{
	"foreshadowing": true,
	"callback":      true,
	"causality":     true,
}

// BuildGraph renders chapters and links as a graph. Node importance and size
// grow with total degree, capped at 100 and 35.
func BuildGraph(chapters []store.Chapter, chapterLinks []store.ChapterLink) Graph {
	degree := make(map[string]int)
	for _, link := range chapterLinks {
		degree[link.FromChapterID]++
		degree[link.ToChapterID]++
	}

	graph := Graph{Nodes: []GraphNode{}, Edges: []GraphEdge{}}
	for _, chapter := range chapters {
		d := degree[chapter.ID]
		graph.Nodes = append(graph.Nodes, GraphNode{
			ID:            chapter.ID,
			Label:         chapter.Title,
			ChapterNumber: chapter.ChapterNumber,
			Importance:    minInt(100, 30+d*15),
			Size:          minInt(35, 12+d*4),
		})
	}
	sort.SliceStable(graph.Nodes, func(i, j int) bool {
		return graph.Nodes[i].ChapterNumber < graph.Nodes[j].ChapterNumber
	})

	for _, link := range chapterLinks {
		graph.Edges = append(graph.Edges, GraphEdge{
			ID:       link.ID,
			From:     link.FromChapterID,
			To:       link.ToChapterID,
			LinkType: link.LinkType,
			Strength: link.Strength,
			Label:    link.LinkType,
		})
	}
	return graph
}

// ChapterImportance scores one chapter from its link structure: incoming
// links weigh 12, outgoing 10, special-typed links another 8, on a base of
// 50, capped at 100.
func ChapterImportance(chapterID string, chapterLinks []store.ChapterLink) int {
	in, out, special := 0, 0, 0
	for _, link := range chapterLinks {
		touches := false
		if link.ToChapterID == chapterID {
			in++
			touches = true
		}
		if link.FromChapterID == chapterID {
			out++
			touches = true
		}
		if touches && specialLinkTypes[link.LinkType] {
			special++
		}
	}
	return minInt(100, 50+in*12+out*10+special*8)
}
