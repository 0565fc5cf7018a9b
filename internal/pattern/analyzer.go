// Package pattern measures structural repetition in chapter prose: sentence
// templates, chapter openings, emotional range and rhythm n-grams.
package pattern

import (
	"crypto/md5"
	"encoding/hex"
	"regexp"
	"sort"
	"strings"
)

// Version invalidates cached analyses when the algorithm changes.
const Version = "3"

const (
	openingDominanceLimit = 0.6

	maxPatternPenalty = 30
	maxOpeningPenalty = 20
	maxEmotionPenalty = 20
	maxNGramPenalty   = 30

	emotionFlagConcentration = 0.7
	emotionFlagMinUses       = 5
)

// Report is the per-chapter analysis. Opening class and emotion counts feed
// the project aggregate; clusters and n-grams are scored per chapter too.
type Report struct {
	SentenceCount  int                       `json:"sentenceCount"`
	Clusters       []Cluster                 `json:"clusters"`
	DiversityScore int                       `json:"diversityScore"`
	OpeningClass   string                    `json:"openingClass"`
	EmotionCounts  map[string]map[string]int `json:"emotionCounts"`
	NGrams         []NGram                   `json:"ngrams"`
	OverallScore   int                       `json:"overallScore"`
}

var sentenceSplit = regexp.MustCompile(`[^.!?]+[.!?]*`)

// Opening keyword lists. The window sizes bound how far into the first
// sentence a cue may sit before the opening reads as something else.
var (
	timeOpenings = []string{
		"morning", "dawn", "daybreak", "sunrise", "noon", "afternoon",
		"evening", "dusk", "sunset", "night", "midnight",
		"next day", "days later", "week later", "month later", "hours later",
	}
	weatherOpenings = []string{
		"sun", "rain", "snow", "wind", "storm", "cloud", "fog", "mist",
		"thunder", "lightning", "moonlight", "starlight", "drizzle",
	}
	actionOpenings = []string{
		"walked", "pushed", "opened", "closed", "stood", "sat", "ran",
		"rushed", "stepped", "burst", "climbed", "grabbed",
	}
)

const (
	timeWindow    = 40
	weatherWindow = 60
	actionWindow  = 30
)

// Five emotion groups, each with the stock expressions prose reaches for.
// Counting expression reuse exposes a narrow emotional register.
var emotionVocabulary = map[string][]string{
	"happy": {
		"smiled", "laughed", "grinned", "beamed", "chuckled",
		"delight", "joy", "cheerful", "lit up",
	},
	"sad": {
		"sighed", "wept", "tears", "sobbed", "mourned",
		"sorrow", "grief", "downcast",
	},
	"angry": {
		"snarled", "growled", "fumed", "glared",
		"rage", "furious", "scowled", "snapped",
	},
	"fear": {
		"trembled", "shivered", "shuddered", "dread",
		"terrified", "panicked", "afraid", "flinched",
	},
	"surprise": {
		"gasped", "startled", "stunned", "astonished",
		"eyes widened", "speechless", "froze",
	},
}

// Analyze runs the full structural analysis over one chapter's prose.
func Analyze(content string) Report {
	sentences := splitSentences(content)
	report := Report{
		SentenceCount: len(sentences),
		EmotionCounts: countEmotions(content),
	}
	if len(sentences) == 0 {
		report.OverallScore = 100
		report.DiversityScore = 100
		return report
	}

	report.Clusters = ClusterSentences(sentences)
	report.DiversityScore = diversityScore(sentences)
	report.OpeningClass = ClassifyOpening(sentences[0])

	kinds := make([]string, len(sentences))
	for i, s := range sentences {
		kinds[i] = ClassifySentence(s)
	}
	report.NGrams = RepeatedNGrams(kinds)

	report.OverallScore = chapterScore(report)
	return report
}

// ContentHash keys the analysis cache; unchanged content with an unchanged
// analyzer version is served from the cache.
func ContentHash(content string) string {
	sum := md5.Sum([]byte(content))
	return hex.EncodeToString(sum[:])
}

func splitSentences(content string) []string {
	raw := sentenceSplit.FindAllString(content, -1)
	var sentences []string
	for _, s := range raw {
		if trimmed := strings.TrimSpace(s); trimmed != "" {
			sentences = append(sentences, trimmed)
		}
	}
	return sentences
}

// diversityScore rewards distinct sentence shapes: unique/total templates,
// scaled so half-unique already scores 100.
func diversityScore(sentences []string) int {
	unique := make(map[string]bool, len(sentences))
	for _, s := range sentences {
		unique[Template(s)] = true
	}
	score := int(float64(len(unique)) / float64(len(sentences)) * 200)
	if score > 100 {
		score = 100
	}
	return score
}

// ClassifyOpening labels a chapter's first sentence as time, weather, action,
// dialogue or other. Keywords only count near the start of the sentence.
func ClassifyOpening(sentence string) string {
	trimmed := strings.TrimSpace(sentence)
	if trimmed == "" {
		return "other"
	}
	switch trimmed[0] {
	case '"', '\'':
		return "dialogue"
	}
	if strings.HasPrefix(trimmed, "“") || strings.HasPrefix(trimmed, "‘") {
		return "dialogue"
	}

	lower := strings.ToLower(trimmed)
	if containsAnyWithin(lower, timeOpenings, timeWindow) {
		return "time"
	}
	if containsAnyWithin(lower, weatherOpenings, weatherWindow) {
		return "weather"
	}
	if containsAnyWithin(lower, actionOpenings, actionWindow) {
		return "action"
	}
	return "other"
}

func containsAnyWithin(text string, keywords []string, window int) bool {
	if len(text) > window {
		text = text[:window]
	}
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// countEmotions tallies stock expressions per emotion group. Counts merge
// across chapters at the project aggregate.
func countEmotions(content string) map[string]map[string]int {
	lower := strings.ToLower(content)
	counts := make(map[string]map[string]int)
	for group, expressions := range emotionVocabulary {
		for _, expr := range expressions {
			n := strings.Count(lower, expr)
			if n == 0 {
				continue
			}
			if counts[group] == nil {
				counts[group] = make(map[string]int)
			}
			counts[group][expr] = n
		}
	}
	return counts
}

// chapterScore deducts capped penalties from 100 for the two per-chapter
// dimensions: repeated templates up to 30 and repeated rhythm n-grams up to
// 30. Openings and emotional range are judged across the whole project.
func chapterScore(report Report) int {
	patternPenalty := 0
	for _, c := range report.Clusters {
		if c.Count >= 3 {
			patternPenalty += (c.Count - 2) * 5
		}
	}
	patternPenalty = capInt(patternPenalty, maxPatternPenalty)

	ngramPenalty := 0
	for _, g := range report.NGrams {
		ngramPenalty += (g.Count - 2) * 3
	}
	ngramPenalty = capInt(ngramPenalty, maxNGramPenalty)

	score := 100 - patternPenalty - ngramPenalty
	if score < 0 {
		score = 0
	}
	return score
}

// OpeningReport summarizes how chapters open across the project.
type OpeningReport struct {
	Total         int            `json:"total"`
	Categories    map[string]int `json:"categories"`
	Dominant      string         `json:"dominant"`
	DominantRatio float64        `json:"dominantRatio"`
	Monotonous    bool           `json:"monotonous"`
}

// EmotionGroup is one emotion's usage profile across the project.
type EmotionGroup struct {
	Total         int     `json:"total"`
	Unique        int     `json:"unique"`
	Concentration float64 `json:"concentration"`
	TopExpression string  `json:"topExpression"`
	TopCount      int     `json:"topCount"`
}

// EmotionReport is the project-wide emotional diversity result.
type EmotionReport struct {
	Groups           map[string]EmotionGroup `json:"groups"`
	DiversityScore   int                     `json:"diversityScore"`
	TotalExpressions int                     `json:"totalExpressions"`
	TotalUnique      int                     `json:"totalUnique"`
	MostConcentrated string                  `json:"mostConcentrated"`
}

// TemplateCount is a sentence template's total use across chapters.
type TemplateCount struct {
	Template string `json:"template"`
	Count    int    `json:"count"`
}

// ProjectReport is the project aggregate assembled from per-chapter reports.
type ProjectReport struct {
	ChapterCount int             `json:"chapterCount"`
	TopTemplates []TemplateCount `json:"topTemplates"`
	Openings     OpeningReport   `json:"openings"`
	Emotions     EmotionReport   `json:"emotions"`
	Score        int             `json:"score"`
	Level        string          `json:"level"`
}

// AggregateProject folds per-chapter reports into the project view: opening
// monotony, emotional diversity and the overall 0 to 100 score.
func AggregateProject(reports []Report) ProjectReport {
	project := ProjectReport{ChapterCount: len(reports)}
	project.TopTemplates = mergeTemplates(reports)
	project.Openings = aggregateOpenings(reports)
	project.Emotions = aggregateEmotions(reports)
	project.Score = projectScore(project, reports)
	project.Level = levelFor(project.Score)
	return project
}

func mergeTemplates(reports []Report) []TemplateCount {
	totals := make(map[string]int)
	for _, r := range reports {
		for _, c := range r.Clusters {
			totals[c.Template] += c.Count
		}
	}
	merged := make([]TemplateCount, 0, len(totals))
	for tpl, count := range totals {
		if count >= 3 {
			merged = append(merged, TemplateCount{Template: tpl, Count: count})
		}
	}
	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Count != merged[j].Count {
			return merged[i].Count > merged[j].Count
		}
		return merged[i].Template < merged[j].Template
	})
	if len(merged) > 10 {
		merged = merged[:10]
	}
	return merged
}

func aggregateOpenings(reports []Report) OpeningReport {
	openings := OpeningReport{Categories: make(map[string]int)}
	for _, r := range reports {
		if r.OpeningClass == "" {
			continue
		}
		openings.Categories[r.OpeningClass]++
		openings.Total++
	}
	for class, count := range openings.Categories {
		if count > openings.Categories[openings.Dominant] ||
			(count == openings.Categories[openings.Dominant] && class < openings.Dominant) ||
			openings.Dominant == "" {
			openings.Dominant = class
		}
	}
	if openings.Total > 0 {
		openings.DominantRatio = float64(openings.Categories[openings.Dominant]) / float64(openings.Total)
		openings.Monotonous = openings.DominantRatio > openingDominanceLimit
	}
	return openings
}

func aggregateEmotions(reports []Report) EmotionReport {
	totals := make(map[string]map[string]int)
	for _, r := range reports {
		for group, exprs := range r.EmotionCounts {
			if totals[group] == nil {
				totals[group] = make(map[string]int)
			}
			for expr, n := range exprs {
				totals[group][expr] += n
			}
		}
	}

	emotions := EmotionReport{Groups: make(map[string]EmotionGroup)}
	maxConcentration := 0.0
	for group, exprs := range totals {
		g := EmotionGroup{Unique: len(exprs)}
		for expr, n := range exprs {
			g.Total += n
			if n > g.TopCount || (n == g.TopCount && expr < g.TopExpression) {
				g.TopCount = n
				g.TopExpression = expr
			}
		}
		if g.Total > 0 {
			g.Concentration = float64(g.TopCount) / float64(g.Total)
		}
		emotions.Groups[group] = g
		emotions.TotalExpressions += g.Total
		emotions.TotalUnique += g.Unique

		if g.Concentration > maxConcentration && g.Total >= emotionFlagMinUses {
			maxConcentration = g.Concentration
			if g.Concentration > emotionFlagConcentration {
				emotions.MostConcentrated = group
			}
		}
	}

	switch {
	case emotions.TotalExpressions == 0:
		emotions.DiversityScore = 50
	case emotions.TotalExpressions < 10:
		emotions.DiversityScore = 60
	default:
		ratio := float64(emotions.TotalUnique) / float64(emotions.TotalExpressions)
		score := int(ratio*200) + capInt(emotions.TotalUnique*3, 30)
		if score > 100 {
			score = 100
		}
		emotions.DiversityScore = score
	}
	return emotions
}

// projectScore deducts capped penalties per dimension from 100: repeated
// templates up to 30, monotonous openings up to 20, narrow emotional range up
// to 20, repeated rhythm n-grams up to 30.
func projectScore(project ProjectReport, reports []Report) int {
	score := 100

	patternPenalty := 0
	chapters := project.ChapterCount
	if chapters == 0 {
		chapters = 1
	}
	for _, tpl := range project.TopTemplates {
		ratio := float64(tpl.Count) / float64(chapters)
		switch {
		case ratio > 0.5:
			patternPenalty += 5
		case ratio > 0.3:
			patternPenalty += 3
		case ratio > 0.2:
			patternPenalty += 2
		default:
			patternPenalty++
		}
	}
	score -= capInt(patternPenalty, maxPatternPenalty)

	if project.Openings.Monotonous {
		if project.Openings.DominantRatio > 0.8 {
			score -= maxOpeningPenalty
		} else {
			score -= 12
		}
	}

	switch diversity := project.Emotions.DiversityScore; {
	case diversity < 40:
		score -= maxEmotionPenalty
	case diversity < 60:
		score -= 12
	case diversity < 80:
		score -= 6
	}

	ngramPenalty := 0
	bigrams, trigrams := mergedNGramCounts(reports)
	switch {
	case bigrams > 5:
		ngramPenalty += 8
	case bigrams > 3:
		ngramPenalty += 5
	case bigrams > 1:
		ngramPenalty += 2
	}
	switch {
	case trigrams > 3:
		ngramPenalty += 7
	case trigrams > 1:
		ngramPenalty += 3
	}
	score -= capInt(ngramPenalty, maxNGramPenalty)

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// mergedNGramCounts counts distinct repeated bigram and trigram rhythm
// sequences across all chapters.
func mergedNGramCounts(reports []Report) (bigrams, trigrams int) {
	seen := make(map[string]bool)
	for _, r := range reports {
		for _, g := range r.NGrams {
			if seen[g.Sequence] {
				continue
			}
			seen[g.Sequence] = true
			if strings.Count(g.Sequence, "-") == 1 {
				bigrams++
			} else {
				trigrams++
			}
		}
	}
	return bigrams, trigrams
}

func levelFor(score int) string {
	switch {
	case score >= 80:
		return "rich"
	case score >= 60:
		return "varied"
	case score >= 40:
		return "patterned"
	default:
		return "formulaic"
	}
}

func capInt(v, max int) int {
	if v > max {
		return max
	}
	return v
}
