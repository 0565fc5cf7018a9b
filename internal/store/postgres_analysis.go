package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// --- vocabulary words ---

func (s *PostgresStore) InsertVocabularyWord(ctx context.Context, word VocabularyWord) error {
	alternatives, err := json.Marshal(orEmpty(word.Alternatives))
	if err != nil {
		return fmt.Errorf("marshal alternatives: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO vocabulary_words (id, word, category, severity, alternatives, is_system)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6)
		ON CONFLICT (word) DO NOTHING
	`, word.ID, word.Word, word.Category, word.Severity, string(alternatives), word.IsSystem)
	if err != nil {
		return fmt.Errorf("insert vocabulary word: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListVocabularyWords(ctx context.Context) ([]VocabularyWord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, word, category, severity, alternatives, usage_count, is_system, created_at
		FROM vocabulary_words
		ORDER BY word ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list vocabulary words: %w", err)
	}
	defer rows.Close()

	words := make([]VocabularyWord, 0)
	for rows.Next() {
		var w VocabularyWord
		var alternativesRaw []byte
		if err := rows.Scan(&w.ID, &w.Word, &w.Category, &w.Severity, &alternativesRaw, &w.UsageCount, &w.IsSystem, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan vocabulary word: %w", err)
		}
		_ = json.Unmarshal(alternativesRaw, &w.Alternatives)
		words = append(words, w)
	}
	return words, rows.Err()
}

func (s *PostgresStore) UpdateVocabularyWord(ctx context.Context, word VocabularyWord) error {
	alternatives, err := json.Marshal(orEmpty(word.Alternatives))
	if err != nil {
		return fmt.Errorf("marshal alternatives: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE vocabulary_words SET category=$2, severity=$3, alternatives=$4::jsonb
		WHERE id=$1 AND is_system=FALSE
	`, word.ID, word.Category, word.Severity, string(alternatives))
	if err != nil {
		return fmt.Errorf("update vocabulary word: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) DeleteVocabularyWord(ctx context.Context, wordID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM vocabulary_words WHERE id=$1 AND is_system=FALSE`, wordID)
	if err != nil {
		return fmt.Errorf("delete vocabulary word: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) BumpVocabularyUsage(ctx context.Context, words []string) error {
	if len(words) == 0 {
		return nil
	}
	encoded, err := json.Marshal(words)
	if err != nil {
		return fmt.Errorf("marshal usage words: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE vocabulary_words SET usage_count = usage_count + 1
		WHERE word IN (SELECT jsonb_array_elements_text($1::jsonb))
	`, string(encoded))
	if err != nil {
		return fmt.Errorf("bump vocabulary usage: %w", err)
	}
	return nil
}

// --- tone analyses ---

func (s *PostgresStore) UpsertToneAnalysis(ctx context.Context, analysis ToneAnalysis) error {
	issues := analysis.Issues
	if len(issues) == 0 {
		issues = []byte("[]")
	}
	hits := analysis.WordHits
	if len(hits) == 0 {
		hits = []byte("[]")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tone_analyses (id, chapter_id, project_id, score, level, issues, word_hits, analyzed_at)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7::jsonb, NOW())
		ON CONFLICT (chapter_id) DO UPDATE SET
			score=EXCLUDED.score, level=EXCLUDED.level, issues=EXCLUDED.issues,
			word_hits=EXCLUDED.word_hits, analyzed_at=NOW()
	`, analysis.ID, analysis.ChapterID, analysis.ProjectID, analysis.Score, analysis.Level, string(issues), string(hits))
	if err != nil {
		return fmt.Errorf("upsert tone analysis: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetToneAnalysis(ctx context.Context, chapterID string) (ToneAnalysis, error) {
	var a ToneAnalysis
	err := s.db.QueryRowContext(ctx, `
		SELECT id, chapter_id, project_id, score, level, issues, word_hits, analyzed_at
		FROM tone_analyses WHERE chapter_id=$1
	`, chapterID).Scan(&a.ID, &a.ChapterID, &a.ProjectID, &a.Score, &a.Level, &a.Issues, &a.WordHits, &a.AnalyzedAt)
	if err != nil {
		return ToneAnalysis{}, err
	}
	return a, nil
}

// --- pattern caches ---

func (s *PostgresStore) UpsertPatternCache(ctx context.Context, cache PatternCache) error {
	payload := cache.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pattern_caches (id, chapter_id, project_id, content_hash, analysis_version, payload, analyzed_at)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, NOW())
		ON CONFLICT (chapter_id) DO UPDATE SET
			content_hash=EXCLUDED.content_hash, analysis_version=EXCLUDED.analysis_version,
			payload=EXCLUDED.payload, analyzed_at=NOW()
	`, cache.ID, cache.ChapterID, cache.ProjectID, cache.ContentHash, cache.AnalysisVersion, string(payload))
	if err != nil {
		return fmt.Errorf("upsert pattern cache: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListPatternCaches(ctx context.Context, projectID string) ([]PatternCache, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, chapter_id, project_id, content_hash, analysis_version, payload, analyzed_at
		FROM pattern_caches WHERE project_id=$1
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list pattern caches: %w", err)
	}
	defer rows.Close()

	caches := make([]PatternCache, 0)
	for rows.Next() {
		var c PatternCache
		if err := rows.Scan(&c.ID, &c.ChapterID, &c.ProjectID, &c.ContentHash, &c.AnalysisVersion, &c.Payload, &c.AnalyzedAt); err != nil {
			return nil, fmt.Errorf("scan pattern cache: %w", err)
		}
		caches = append(caches, c)
	}
	return caches, rows.Err()
}
