package links

import "inkwell/api/internal/store"

type Stats struct {
	TotalLinks    int            `json:"totalLinks"`
	ByType        map[string]int `json:"byType"`
	StrongLinks   int            `json:"strongLinks"`
	MediumLinks   int            `json:"mediumLinks"`
	WeakLinks     int            `json:"weakLinks"`
	Density       float64        `json:"density"`
	CoverageScore float64        `json:"coverageScore"`
}

// ComputeStats summarizes a project's link structure. Importance buckets
// split at 80 and 50; density is links per chapter and coverage saturates at
// a density of 2.
func ComputeStats(chapterLinks []store.ChapterLink, chapterCount int) Stats {
	stats := Stats{
		TotalLinks: len(chapterLinks),
		ByType:     make(map[string]int),
	}
	for _, link := range chapterLinks {
		stats.ByType[link.LinkType]++
		switch {
		case link.ImportanceScore >= 80:
			stats.StrongLinks++
		case link.ImportanceScore >= 50:
			stats.MediumLinks++
		default:
			stats.WeakLinks++
		}
	}
	if chapterCount > 0 {
		stats.Density = float64(len(chapterLinks)) / float64(chapterCount)
		stats.CoverageScore = min64(1, stats.Density/2)
	}
	return stats
}
