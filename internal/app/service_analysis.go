package app

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"inkwell/api/internal/cache"
	"inkwell/api/internal/pattern"
	"inkwell/api/internal/store"
	"inkwell/api/internal/tone"
	"inkwell/api/internal/util"
)

type VocabularyInput struct {
	Word         string   `json:"word"`
	Category     string   `json:"category"`
	Severity     string   `json:"severity"`
	Alternatives []string `json:"alternatives"`
}

type ReplaceWordsInput struct {
	Replacements []struct {
		Position int    `json:"position"`
		Word     string `json:"word"`
		With     string `json:"with"`
	} `json:"replacements"`
}

const patternAggregateTTL = 10 * time.Minute

// AnalyzeTone scores a chapter against the vocabulary watchlist and persists
// the result, replacing any previous analysis for the chapter.
func (s *Service) AnalyzeTone(ctx context.Context, chapterID, ownerID string) (map[string]any, error) {
	chapter, _, err := s.chapterForOwner(ctx, chapterID, ownerID)
	if err != nil {
		return nil, err
	}
	vocabulary, err := s.store.ListVocabularyWords(ctx)
	if err != nil {
		return nil, err
	}

	report := tone.Analyze(chapter.Content, vocabulary)

	issues, err := json.Marshal(report.Issues)
	if err != nil {
		return nil, err
	}
	hits, err := json.Marshal(report.WordHits)
	if err != nil {
		return nil, err
	}
	analysis := store.ToneAnalysis{
		ID:        util.NewID("ton"),
		ChapterID: chapterID,
		ProjectID: chapter.ProjectID,
		Score:     report.Score,
		Level:     report.Level,
		Issues:    issues,
		WordHits:  hits,
	}
	if err := s.store.UpsertToneAnalysis(ctx, analysis); err != nil {
		return nil, err
	}

	if len(report.WordHits) > 0 {
		seen := make(map[string]bool)
		var words []string
		for _, hit := range report.WordHits {
			lower := strings.ToLower(hit.Word)
			if !seen[lower] {
				seen[lower] = true
				words = append(words, lower)
			}
		}
		if err := s.store.BumpVocabularyUsage(ctx, words); err != nil {
			log.Printf("tone: bump vocabulary usage failed: %v", err)
		}
	}

	return toneReportPayload(chapterID, report), nil
}

// GetTone returns the stored analysis for a chapter.
func (s *Service) GetTone(ctx context.Context, chapterID, ownerID string) (map[string]any, error) {
	if _, _, err := s.chapterForOwner(ctx, chapterID, ownerID); err != nil {
		return nil, err
	}
	analysis, err := s.store.GetToneAnalysis(ctx, chapterID)
	if err != nil {
		return nil, err
	}
	var issues []tone.Issue
	var hits []tone.WordHit
	_ = json.Unmarshal(analysis.Issues, &issues)
	_ = json.Unmarshal(analysis.WordHits, &hits)
	if issues == nil {
		issues = []tone.Issue{}
	}
	if hits == nil {
		hits = []tone.WordHit{}
	}
	return map[string]any{
		"chapterId":  chapterID,
		"score":      analysis.Score,
		"level":      analysis.Level,
		"issues":     issues,
		"wordHits":   hits,
		"analyzedAt": formatTime(analysis.AnalyzedAt),
	}, nil
}

// ReplaceToneWords applies positional word replacements to a chapter and saves
// the result through the normal chapter update path.
func (s *Service) ReplaceToneWords(ctx context.Context, chapterID, ownerID, ownerName string, input ReplaceWordsInput) (map[string]any, error) {
	chapter, _, err := s.chapterForOwner(ctx, chapterID, ownerID)
	if err != nil {
		return nil, err
	}
	if len(input.Replacements) == 0 {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "replacements are required", nil)
	}

	replacements := make([]tone.Replacement, 0, len(input.Replacements))
	for _, r := range input.Replacements {
		replacements = append(replacements, tone.Replacement{
			Position: r.Position,
			Word:     r.Word,
			With:     r.With,
		})
	}
	updated := tone.ApplyReplacements(chapter.Content, replacements)

	chapter.Content = updated
	chapter.WordCount = wordCount(updated)
	if err := s.store.UpdateChapter(ctx, chapter); err != nil {
		return nil, err
	}
	if err := s.recordChapterVersion(ctx, chapter, "mix", ownerName); err != nil {
		return nil, err
	}
	s.commitChapter(chapter.ProjectID, chapter, ownerName, "Apply vocabulary replacements: "+chapter.Title)
	s.indexChapter(chapter, ownerID)
	return chapterPayload(chapter, false), nil
}

func (s *Service) ListVocabulary(ctx context.Context) ([]map[string]any, error) {
	words, err := s.store.ListVocabularyWords(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(words))
	for _, word := range words {
		items = append(items, vocabularyPayload(word))
	}
	return items, nil
}

func (s *Service) CreateVocabularyWord(ctx context.Context, input VocabularyInput) (map[string]any, error) {
	word := strings.ToLower(strings.TrimSpace(input.Word))
	if word == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "word is required", nil)
	}
	entry := store.VocabularyWord{
		ID:           util.NewID("voc"),
		Word:         word,
		Category:     orBlank(input.Category, "warning"),
		Severity:     orBlank(input.Severity, "medium"),
		Alternatives: input.Alternatives,
	}
	if err := s.store.InsertVocabularyWord(ctx, entry); err != nil {
		return nil, err
	}
	return vocabularyPayload(entry), nil
}

func (s *Service) UpdateVocabularyWord(ctx context.Context, wordID string, input VocabularyInput) (map[string]any, error) {
	existing, err := s.findVocabularyWord(ctx, wordID)
	if err != nil {
		return nil, err
	}
	if existing.IsSystem {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "system vocabulary words cannot be edited", nil)
	}
	if word := strings.ToLower(strings.TrimSpace(input.Word)); word != "" {
		existing.Word = word
	}
	if input.Category != "" {
		existing.Category = input.Category
	}
	if input.Severity != "" {
		existing.Severity = input.Severity
	}
	existing.Alternatives = input.Alternatives
	if err := s.store.UpdateVocabularyWord(ctx, existing); err != nil {
		return nil, err
	}
	return vocabularyPayload(existing), nil
}

func (s *Service) DeleteVocabularyWord(ctx context.Context, wordID string) error {
	existing, err := s.findVocabularyWord(ctx, wordID)
	if err != nil {
		return err
	}
	if existing.IsSystem {
		return domainError(http.StatusForbidden, "FORBIDDEN", "system vocabulary words cannot be deleted", nil)
	}
	return s.store.DeleteVocabularyWord(ctx, wordID)
}

func (s *Service) findVocabularyWord(ctx context.Context, wordID string) (store.VocabularyWord, error) {
	words, err := s.store.ListVocabularyWords(ctx)
	if err != nil {
		return store.VocabularyWord{}, err
	}
	for _, word := range words {
		if word.ID == wordID {
			return word, nil
		}
	}
	return store.VocabularyWord{}, domainError(http.StatusNotFound, "NOT_FOUND", "vocabulary word not found", nil)
}

// AnalyzePatterns computes per-chapter repetition reports, reusing the stored
// cache for chapters whose content hash has not changed, and assembles the
// project aggregate.
func (s *Service) AnalyzePatterns(ctx context.Context, projectID, ownerID string) (map[string]any, error) {
	if _, err := s.projectForOwner(ctx, projectID, ownerID); err != nil {
		return nil, err
	}
	chapters, err := s.store.ListChapters(ctx, projectID)
	if err != nil {
		return nil, err
	}
	caches, err := s.store.ListPatternCaches(ctx, projectID)
	if err != nil {
		return nil, err
	}
	cached := make(map[string]store.PatternCache, len(caches))
	for _, entry := range caches {
		cached[entry.ChapterID] = entry
	}

	reports := make([]map[string]any, 0, len(chapters))
	chapterReports := make([]pattern.Report, 0, len(chapters))
	reused, analyzed := 0, 0
	totalScore := 0
	for _, chapter := range chapters {
		hash := pattern.ContentHash(chapter.Content)
		var report pattern.Report
		if entry, ok := cached[chapter.ID]; ok && entry.ContentHash == hash && entry.AnalysisVersion == pattern.Version {
			if err := json.Unmarshal(entry.Payload, &report); err == nil {
				reused++
				totalScore += report.OverallScore
				chapterReports = append(chapterReports, report)
				reports = append(reports, patternChapterPayload(chapter, report))
				continue
			}
		}

		report = pattern.Analyze(chapter.Content)
		payload, err := json.Marshal(report)
		if err != nil {
			return nil, err
		}
		if err := s.store.UpsertPatternCache(ctx, store.PatternCache{
			ID:              util.NewID("pat"),
			ChapterID:       chapter.ID,
			ProjectID:       projectID,
			ContentHash:     hash,
			AnalysisVersion: pattern.Version,
			Payload:         payload,
		}); err != nil {
			return nil, err
		}
		analyzed++
		totalScore += report.OverallScore
		chapterReports = append(chapterReports, report)
		reports = append(reports, patternChapterPayload(chapter, report))
	}

	average := 0
	if len(reports) > 0 {
		average = totalScore / len(reports)
	}
	project := pattern.AggregateProject(chapterReports)
	aggregate := map[string]any{
		"projectId":        projectID,
		"chapterCount":     len(chapters),
		"chaptersAnalyzed": analyzed,
		"chaptersReused":   reused,
		"averageScore":     average,
		"score":            project.Score,
		"level":            project.Level,
		"openings":         project.Openings,
		"emotions":         project.Emotions,
		"topTemplates":     project.TopTemplates,
		"chapters":         reports,
	}
	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, patternCacheKey(projectID), aggregate, patternAggregateTTL); err != nil {
			log.Printf("pattern: cache aggregate failed: %v", err)
		}
	}
	return aggregate, nil
}

// GetPatterns serves the project aggregate, from the hot cache when present.
func (s *Service) GetPatterns(ctx context.Context, projectID, ownerID string) (map[string]any, error) {
	if _, err := s.projectForOwner(ctx, projectID, ownerID); err != nil {
		return nil, err
	}
	if s.cache != nil {
		var aggregate map[string]any
		err := s.cache.GetJSON(ctx, patternCacheKey(projectID), &aggregate)
		if err == nil {
			return aggregate, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			log.Printf("pattern: cache read failed: %v", err)
		}
	}
	return s.AnalyzePatterns(ctx, projectID, ownerID)
}

func patternCacheKey(projectID string) string {
	return "patterns:" + projectID
}

func patternChapterPayload(chapter store.Chapter, report pattern.Report) map[string]any {
	return map[string]any{
		"chapterId":     chapter.ID,
		"chapterNumber": chapter.ChapterNumber,
		"title":         chapter.Title,
		"report":        report,
	}
}

func toneReportPayload(chapterID string, report tone.Report) map[string]any {
	hits := report.WordHits
	if hits == nil {
		hits = []tone.WordHit{}
	}
	issues := report.Issues
	if issues == nil {
		issues = []tone.Issue{}
	}
	return map[string]any{
		"chapterId":         chapterID,
		"score":             report.Score,
		"level":             report.Level,
		"wordHits":          hits,
		"issues":            issues,
		"sentenceCount":     report.SentenceCount,
		"avgSentenceLength": report.AvgSentence,
		"sentenceStats":     report.Sentences,
	}
}

func vocabularyPayload(word store.VocabularyWord) map[string]any {
	alternatives := word.Alternatives
	if alternatives == nil {
		alternatives = []string{}
	}
	return map[string]any{
		"id":           word.ID,
		"word":         word.Word,
		"category":     word.Category,
		"severity":     word.Severity,
		"alternatives": alternatives,
		"usageCount":   word.UsageCount,
		"isSystem":     word.IsSystem,
	}
}
