package links

import "inkwell/api/internal/store"

const (
	defaultMaxHops = 3
	hardMaxHops    = 5
)

// FindPaths returns every simple directed path from one chapter to another
// using at most maxHops links. maxHops is clamped to [1, 5]; zero or
// negative values use the default of 3.
func FindPaths(chapterLinks []store.ChapterLink, fromID, toID string, maxHops int) [][]string {
	if maxHops <= 0 {
		maxHops = defaultMaxHops
	}
	if maxHops > hardMaxHops {
		maxHops = hardMaxHops
	}
	if fromID == toID {
		return nil
	}

	adjacent := make(map[string][]string)
	for _, link := range chapterLinks {
		adjacent[link.FromChapterID] = append(adjacent[link.FromChapterID], link.ToChapterID)
	}

	var paths [][]string
	visited := map[string]bool{fromID: true}

	var walk func(node string, path []string)
	walk = func(node string, path []string) {
		if len(path)-1 >= maxHops {
			return
		}
		for _, next := range adjacent[node] {
			if next == toID {
				found := make([]string, len(path)+1)
				copy(found, path)
				found[len(path)] = next
				paths = append(paths, found)
				continue
			}
			if visited[next] {
				continue
			}
			visited[next] = true
			walk(next, append(path, next))
			visited[next] = false
		}
	}
	walk(fromID, []string{fromID})

	return paths
}
