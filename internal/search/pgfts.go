package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true: if Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// buildSearchSQL assembles the UNION ALL query across chapters, characters
// and terms. Every sub-query joins projects and filters on owner_id so one
// user's text never matches another user's query.
func buildSearchSQL(q Query, limit, offset int) (countSQL, dataSQL string, args []any) {
	tsQuery := "plainto_tsquery('english', $1)"
	args = []any{q.Text, q.OwnerID}
	ownerArg := "$2"
	argN := 3

	projectFilter := func(alias string) string {
		where := fmt.Sprintf("p.owner_id = %s", ownerArg)
		if q.FilterProjectID != "" {
			where += fmt.Sprintf(" AND %s.project_id = $%d", alias, argN)
			args = append(args, q.FilterProjectID)
			argN++
		}
		return where
	}

	var subQueries []string

	if q.FilterType == "" || q.FilterType == ResultChapter {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'chapter'::text AS type, c.id, c.title,
				ts_headline('english', coalesce(c.content, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				c.project_id,
				ts_rank(c.fts, %s) AS rank
			FROM chapters c
			JOIN projects p ON p.id = c.project_id
			WHERE c.fts @@ %s AND %s`, tsQuery, tsQuery, tsQuery, projectFilter("c")))
	}

	if q.FilterType == "" || q.FilterType == ResultCharacter {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'character'::text AS type, ch.id, ch.name AS title,
				ts_headline('english', coalesce(ch.description, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				ch.project_id,
				ts_rank(ch.fts, %s) AS rank
			FROM characters ch
			JOIN projects p ON p.id = ch.project_id
			WHERE ch.fts @@ %s AND %s`, tsQuery, tsQuery, tsQuery, projectFilter("ch")))
	}

	if q.FilterType == "" || q.FilterType == ResultTerm {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'term'::text AS type, t.id, t.name AS title,
				ts_headline('english', coalesce(t.description, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				t.project_id,
				ts_rank(t.fts, %s) AS rank
			FROM terms t
			JOIN projects p ON p.id = t.project_id
			WHERE t.fts @@ %s AND %s`, tsQuery, tsQuery, tsQuery, projectFilter("t")))
	}

	if len(subQueries) == 0 {
		return "", "", nil
	}

	union := strings.Join(subQueries, " UNION ALL ")
	countSQL = fmt.Sprintf("SELECT count(*) FROM (%s) sub", union)
	dataSQL = fmt.Sprintf(`SELECT type, id, title, snippet, project_id
		FROM (%s) sub
		ORDER BY rank DESC
		LIMIT %d OFFSET %d`, union, limit, offset)
	return countSQL, dataSQL, args
}

// Search executes a UNION ALL query across chapters, characters, and terms
// using plainto_tsquery and ts_rank, with ts_headline for snippets.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" || q.OwnerID == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	countSQL, dataSQL, args := buildSearchSQL(q, limit, offset)
	if countSQL == "" {
		return nil, 0, nil
	}

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var typ string
		if err := rows.Scan(&typ, &r.ID, &r.Title, &r.Snippet, &r.ProjectID); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns all searchable records for full reindexing. The
// owning user rides along on every record so the index can filter per owner.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]ChapterRecord, []CharacterRecord, []TermRecord, error) {
	chapterRows, err := p.db.QueryContext(ctx, `
		SELECT c.id, c.title, c.content, c.project_id, p.owner_id, c.status, c.chapter_number
		FROM chapters c
		JOIN projects p ON p.id = c.project_id
	`)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load chapters: %w", err)
	}
	defer chapterRows.Close()

	chapters := make([]ChapterRecord, 0)
	for chapterRows.Next() {
		var c ChapterRecord
		if err := chapterRows.Scan(&c.ID, &c.Title, &c.Content, &c.ProjectID, &c.OwnerID, &c.Status, &c.ChapterNumber); err != nil {
			return nil, nil, nil, fmt.Errorf("scan chapter: %w", err)
		}
		chapters = append(chapters, c)
	}
	if err := chapterRows.Err(); err != nil {
		return nil, nil, nil, fmt.Errorf("iterate chapters: %w", err)
	}

	characterRows, err := p.db.QueryContext(ctx, `
		SELECT ch.id, ch.name, ch.description, ch.project_id, p.owner_id
		FROM characters ch
		JOIN projects p ON p.id = ch.project_id
	`)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load characters: %w", err)
	}
	defer characterRows.Close()

	characters := make([]CharacterRecord, 0)
	for characterRows.Next() {
		var c CharacterRecord
		if err := characterRows.Scan(&c.ID, &c.Name, &c.Description, &c.ProjectID, &c.OwnerID); err != nil {
			return nil, nil, nil, fmt.Errorf("scan character: %w", err)
		}
		characters = append(characters, c)
	}
	if err := characterRows.Err(); err != nil {
		return nil, nil, nil, fmt.Errorf("iterate characters: %w", err)
	}

	termRows, err := p.db.QueryContext(ctx, `
		SELECT t.id, t.name, t.description, t.project_id, p.owner_id
		FROM terms t
		JOIN projects p ON p.id = t.project_id
	`)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load terms: %w", err)
	}
	defer termRows.Close()

	terms := make([]TermRecord, 0)
	for termRows.Next() {
		var t TermRecord
		if err := termRows.Scan(&t.ID, &t.Name, &t.Description, &t.ProjectID, &t.OwnerID); err != nil {
			return nil, nil, nil, fmt.Errorf("scan term: %w", err)
		}
		terms = append(terms, t)
	}
	if err := termRows.Err(); err != nil {
		return nil, nil, nil, fmt.Errorf("iterate terms: %w", err)
	}

	return chapters, characters, terms, nil
}
