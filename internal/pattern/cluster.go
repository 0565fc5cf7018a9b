package pattern

import "sort"

const (
	clusterMinSize       = 2
	clusterMergeSim      = 0.7
	clusterMergeMaxCount = 50
	maxClusterExamples   = 3
)

// Cluster is a group of sentences sharing one structural template.
type Cluster struct {
	Template  string   `json:"template"`
	Count     int      `json:"count"`
	Examples  []string `json:"examples"`
	Sentences []int    `json:"sentenceIndexes"`
}

// ClusterSentences groups sentences by exact template, then merges similar
// templates with a union-find pass. The merge pass is quadratic in cluster
// count and is skipped above 50 clusters.
func ClusterSentences(sentences []string) []Cluster {
	byTemplate := make(map[string][]int)
	templates := make([]string, len(sentences))
	for i, sentence := range sentences {
		tpl := Template(sentence)
		if tpl == "" {
			continue
		}
		templates[i] = tpl
		byTemplate[tpl] = append(byTemplate[tpl], i)
	}

	var clusters []Cluster
	for tpl, indexes := range byTemplate {
		if len(indexes) < clusterMinSize {
			continue
		}
		clusters = append(clusters, Cluster{Template: tpl, Sentences: indexes})
	}
	sort.SliceStable(clusters, func(i, j int) bool {
		if len(clusters[i].Sentences) != len(clusters[j].Sentences) {
			return len(clusters[i].Sentences) > len(clusters[j].Sentences)
		}
		return clusters[i].Template < clusters[j].Template
	})

	if len(clusters) > 1 && len(clusters) <= clusterMergeMaxCount {
		clusters = mergeClusters(clusters)
	}

	for i := range clusters {
		sort.Ints(clusters[i].Sentences)
		clusters[i].Count = len(clusters[i].Sentences)
		for _, idx := range clusters[i].Sentences {
			if len(clusters[i].Examples) == maxClusterExamples {
				break
			}
			clusters[i].Examples = append(clusters[i].Examples, sentences[idx])
		}
	}
	sort.SliceStable(clusters, func(i, j int) bool { return clusters[i].Count > clusters[j].Count })
	return clusters
}

func mergeClusters(clusters []Cluster) []Cluster {
	parent := make([]int, len(clusters))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}

	for i := 0; i < len(clusters); i++ {
		for j := i + 1; j < len(clusters); j++ {
			if TemplateSimilarity(clusters[i].Template, clusters[j].Template) >= clusterMergeSim {
				parent[find(j)] = find(i)
			}
		}
	}

	merged := make(map[int]*Cluster)
	var order []int
	for i := range clusters {
		root := find(i)
		if c, ok := merged[root]; ok {
			c.Sentences = append(c.Sentences, clusters[i].Sentences...)
		} else {
			c := clusters[i]
			merged[root] = &c
			order = append(order, root)
		}
	}

	out := make([]Cluster, 0, len(order))
	for _, root := range order {
		out = append(out, *merged[root])
	}
	return out
}
