package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// --- chapter links ---

// InsertLink writes a link unless one already exists for the same
// from/to/type triple. Returns true when the row was inserted.
func (s *PostgresStore) InsertLink(ctx context.Context, link ChapterLink) (bool, error) {
	reasoning := link.ReasoningChain
	if len(reasoning) == 0 {
		reasoning = []byte("[]")
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO chapter_links (
			id, project_id, from_chapter_id, from_chapter_title, to_chapter_id, to_chapter_title,
			link_type, description, from_element, to_element, reasoning_chain,
			strength, importance_score, confidence, time_gap, is_confirmed
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::jsonb, $12, $13, $14, $15, $16)
		ON CONFLICT (from_chapter_id, to_chapter_id, link_type) DO NOTHING
	`, link.ID, link.ProjectID, link.FromChapterID, link.FromChapterTitle, link.ToChapterID, link.ToChapterTitle,
		link.LinkType, link.Description, link.FromElement, link.ToElement, string(reasoning),
		link.Strength, link.ImportanceScore, link.Confidence, link.TimeGap, link.IsConfirmed)
	if err != nil {
		return false, fmt.Errorf("insert link: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert link rows affected: %w", err)
	}
	return affected > 0, nil
}

const linkColumns = `
	id, project_id, from_chapter_id, from_chapter_title, to_chapter_id, to_chapter_title,
	link_type, description, from_element, to_element, reasoning_chain,
	strength, importance_score, confidence, time_gap, is_confirmed, created_at
`

func scanLink(scanner interface{ Scan(...any) error }) (ChapterLink, error) {
	var l ChapterLink
	err := scanner.Scan(
		&l.ID, &l.ProjectID, &l.FromChapterID, &l.FromChapterTitle, &l.ToChapterID, &l.ToChapterTitle,
		&l.LinkType, &l.Description, &l.FromElement, &l.ToElement, &l.ReasoningChain,
		&l.Strength, &l.ImportanceScore, &l.Confidence, &l.TimeGap, &l.IsConfirmed, &l.CreatedAt,
	)
	if err != nil {
		return ChapterLink{}, err
	}
	return l, nil
}

type LinkFilter struct {
	LinkType      string
	ChapterID     string
	MinImportance int
	Limit         int
}

func (s *PostgresStore) ListLinks(ctx context.Context, projectID string, filter LinkFilter) ([]ChapterLink, error) {
	where := []string{"project_id=$1"}
	args := []any{projectID}
	if filter.LinkType != "" {
		args = append(args, filter.LinkType)
		where = append(where, fmt.Sprintf("link_type=$%d", len(args)))
	}
	if filter.ChapterID != "" {
		args = append(args, filter.ChapterID)
		where = append(where, fmt.Sprintf("(from_chapter_id=$%d OR to_chapter_id=$%d)", len(args), len(args)))
	}
	if filter.MinImportance > 0 {
		args = append(args, filter.MinImportance)
		where = append(where, fmt.Sprintf("importance_score>=$%d", len(args)))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s
		FROM chapter_links WHERE %s
		ORDER BY importance_score DESC, created_at DESC
		LIMIT %d
	`, linkColumns, strings.Join(where, " AND "), limit), args...)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	defer rows.Close()

	links := make([]ChapterLink, 0)
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("scan link: %w", err)
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

func (s *PostgresStore) DeleteProjectLinks(ctx context.Context, projectID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chapter_links WHERE project_id=$1`, projectID); err != nil {
		return fmt.Errorf("delete links: %w", err)
	}
	return nil
}

// --- thinking chains ---

func (s *PostgresStore) InsertThinkingChain(ctx context.Context, chain ThinkingChain) error {
	steps := chain.ReasoningSteps
	if len(steps) == 0 {
		steps = []byte("[]")
	}
	snapshotIDs, err := json.Marshal(orEmpty(chain.SnapshotIDs))
	if err != nil {
		return fmt.Errorf("marshal chain snapshot ids: %w", err)
	}
	conflictIDs, err := json.Marshal(orEmpty(chain.ConflictIDs))
	if err != nil {
		return fmt.Errorf("marshal chain conflict ids: %w", err)
	}
	linkIDs, err := json.Marshal(orEmpty(chain.LinkIDs))
	if err != nil {
		return fmt.Errorf("marshal chain link ids: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO thinking_chains (
			id, project_id, chapter_id, chain_type, reasoning_steps, conclusion, evidence,
			snapshot_ids, conflict_ids, link_ids, ai_model, temperature, prompt_tokens, completion_tokens
		)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7, $8::jsonb, $9::jsonb, $10::jsonb, $11, $12, $13, $14)
	`, chain.ID, chain.ProjectID, chain.ChapterID, chain.ChainType, string(steps), chain.Conclusion, chain.Evidence,
		string(snapshotIDs), string(conflictIDs), string(linkIDs), chain.AIModel, chain.Temperature, chain.PromptTokens, chain.CompletionTokens)
	if err != nil {
		return fmt.Errorf("insert thinking chain: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListThinkingChains(ctx context.Context, projectID, chapterID, chainType string) ([]ThinkingChain, error) {
	where := []string{"project_id=$1", "chapter_id=$2"}
	args := []any{projectID, chapterID}
	if chainType != "" {
		args = append(args, chainType)
		where = append(where, fmt.Sprintf("chain_type=$%d", len(args)))
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, chapter_id, chain_type, reasoning_steps, conclusion, evidence,
			snapshot_ids, conflict_ids, link_ids, ai_model, temperature, prompt_tokens, completion_tokens, created_at
		FROM thinking_chains WHERE `+strings.Join(where, " AND ")+`
		ORDER BY created_at DESC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("list thinking chains: %w", err)
	}
	defer rows.Close()

	chains := make([]ThinkingChain, 0)
	for rows.Next() {
		var c ThinkingChain
		var snapshotIDs, conflictIDs, linkIDs []byte
		err := rows.Scan(
			&c.ID, &c.ProjectID, &c.ChapterID, &c.ChainType, &c.ReasoningSteps, &c.Conclusion, &c.Evidence,
			&snapshotIDs, &conflictIDs, &linkIDs, &c.AIModel, &c.Temperature, &c.PromptTokens, &c.CompletionTokens, &c.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan thinking chain: %w", err)
		}
		_ = json.Unmarshal(snapshotIDs, &c.SnapshotIDs)
		_ = json.Unmarshal(conflictIDs, &c.ConflictIDs)
		_ = json.Unmarshal(linkIDs, &c.LinkIDs)
		chains = append(chains, c)
	}
	return chains, rows.Err()
}
