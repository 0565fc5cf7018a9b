package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"inkwell/api/internal/util"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// --- users ---

func (s *PostgresStore) CreateUser(ctx context.Context, email, displayName, passwordHash string) (User, error) {
	user := User{
		ID:           util.NewID("usr"),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: passwordHash,
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (id, email, display_name, password_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`, user.ID, user.Email, user.DisplayName, user.PasswordHash).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, display_name, password_hash, created_at, updated_at
		FROM users WHERE email=$1
	`, email).Scan(&user.ID, &user.Email, &user.DisplayName, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, display_name, password_hash, created_at, updated_at
		FROM users WHERE id=$1
	`, userID).Scan(&user.ID, &user.Email, &user.DisplayName, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// --- refresh sessions (fallback when Redis is not configured) ---

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash string, user User, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET user_id=EXCLUDED.user_id, expires_at=EXCLUDED.expires_at
	`, tokenHash, user.ID, expiresAt)
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupRefreshSession(ctx context.Context, tokenHash string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT u.id, u.email, u.display_name, u.password_hash, u.created_at, u.updated_at
		FROM refresh_sessions rs
		JOIN users u ON u.id = rs.user_id
		WHERE rs.token_hash = $1 AND rs.expires_at > NOW()
	`, tokenHash).Scan(&user.ID, &user.Email, &user.DisplayName, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM refresh_sessions WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

// --- projects ---

func (s *PostgresStore) CreateProject(ctx context.Context, project Project) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (id, owner_id, title, description, genre)
		VALUES ($1, $2, $3, $4, $5)
	`, project.ID, project.OwnerID, project.Title, project.Description, project.Genre)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

// GetProject scopes the lookup to the owner. A project owned by someone else
// reads the same as a missing one.
func (s *PostgresStore) GetProject(ctx context.Context, projectID, ownerID string) (Project, error) {
	var p Project
	err := s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, title, description, genre, created_at, updated_at
		FROM projects WHERE id=$1 AND owner_id=$2
	`, projectID, ownerID).Scan(&p.ID, &p.OwnerID, &p.Title, &p.Description, &p.Genre, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Project{}, err
	}
	return p, nil
}

func (s *PostgresStore) ListProjects(ctx context.Context, ownerID string) ([]Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, title, description, genre, created_at, updated_at
		FROM projects WHERE owner_id=$1
		ORDER BY updated_at DESC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	projects := make([]Project, 0)
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.Title, &p.Description, &p.Genre, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (s *PostgresStore) UpdateProject(ctx context.Context, project Project) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE projects SET title=$3, description=$4, genre=$5, updated_at=NOW()
		WHERE id=$1 AND owner_id=$2
	`, project.ID, project.OwnerID, project.Title, project.Description, project.Genre)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) DeleteProject(ctx context.Context, projectID, ownerID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id=$1 AND owner_id=$2`, projectID, ownerID)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return requireRow(res)
}

// --- chapters ---

func (s *PostgresStore) CreateChapter(ctx context.Context, chapter Chapter) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chapters (id, project_id, chapter_number, title, content, word_count, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, chapter.ID, chapter.ProjectID, chapter.ChapterNumber, chapter.Title, chapter.Content, chapter.WordCount, chapter.Status)
	if err != nil {
		return fmt.Errorf("insert chapter: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetChapter(ctx context.Context, chapterID string) (Chapter, error) {
	var c Chapter
	err := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, chapter_number, title, content, word_count, status, created_at, updated_at
		FROM chapters WHERE id=$1
	`, chapterID).Scan(&c.ID, &c.ProjectID, &c.ChapterNumber, &c.Title, &c.Content, &c.WordCount, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return Chapter{}, err
	}
	return c, nil
}

func (s *PostgresStore) ListChapters(ctx context.Context, projectID string) ([]Chapter, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, chapter_number, title, content, word_count, status, created_at, updated_at
		FROM chapters WHERE project_id=$1
		ORDER BY chapter_number ASC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list chapters: %w", err)
	}
	defer rows.Close()

	chapters := make([]Chapter, 0)
	for rows.Next() {
		var c Chapter
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.ChapterNumber, &c.Title, &c.Content, &c.WordCount, &c.Status, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan chapter: %w", err)
		}
		chapters = append(chapters, c)
	}
	return chapters, rows.Err()
}

func (s *PostgresStore) UpdateChapter(ctx context.Context, chapter Chapter) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE chapters SET chapter_number=$2, title=$3, content=$4, word_count=$5, status=$6, updated_at=NOW()
		WHERE id=$1
	`, chapter.ID, chapter.ChapterNumber, chapter.Title, chapter.Content, chapter.WordCount, chapter.Status)
	if err != nil {
		return fmt.Errorf("update chapter: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) DeleteChapter(ctx context.Context, chapterID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chapters WHERE id=$1`, chapterID)
	if err != nil {
		return fmt.Errorf("delete chapter: %w", err)
	}
	return requireRow(res)
}

// ChapterNumbers returns the chapter_number for every chapter in the project,
// keyed by chapter id. Detection orders snapshots with this map.
func (s *PostgresStore) ChapterNumbers(ctx context.Context, projectID string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, chapter_number FROM chapters WHERE project_id=$1`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list chapter numbers: %w", err)
	}
	defer rows.Close()

	numbers := make(map[string]int)
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("scan chapter number: %w", err)
		}
		numbers[id] = n
	}
	return numbers, rows.Err()
}

// --- chapter versions ---

func (s *PostgresStore) CountChapterVersions(ctx context.Context, chapterID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chapter_versions WHERE chapter_id=$1`, chapterID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count chapter versions: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) InsertChapterVersion(ctx context.Context, version ChapterVersion) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chapter_versions (id, chapter_id, version_number, title, content, word_count, source, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, version.ID, version.ChapterID, version.VersionNumber, version.Title, version.Content, version.WordCount, version.Source, version.CreatedBy)
	if err != nil {
		return fmt.Errorf("insert chapter version: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetChapterVersion(ctx context.Context, chapterID string, versionNumber int) (ChapterVersion, error) {
	var v ChapterVersion
	err := s.db.QueryRowContext(ctx, `
		SELECT id, chapter_id, version_number, title, content, word_count, source, created_by, created_at
		FROM chapter_versions WHERE chapter_id=$1 AND version_number=$2
	`, chapterID, versionNumber).Scan(&v.ID, &v.ChapterID, &v.VersionNumber, &v.Title, &v.Content, &v.WordCount, &v.Source, &v.CreatedBy, &v.CreatedAt)
	if err != nil {
		return ChapterVersion{}, err
	}
	return v, nil
}

func (s *PostgresStore) ListChapterVersions(ctx context.Context, chapterID string) ([]ChapterVersion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, chapter_id, version_number, title, LEFT(content, 200), word_count, source, created_by, created_at
		FROM chapter_versions WHERE chapter_id=$1
		ORDER BY version_number DESC
	`, chapterID)
	if err != nil {
		return nil, fmt.Errorf("list chapter versions: %w", err)
	}
	defer rows.Close()

	versions := make([]ChapterVersion, 0)
	for rows.Next() {
		var v ChapterVersion
		if err := rows.Scan(&v.ID, &v.ChapterID, &v.VersionNumber, &v.Title, &v.Content, &v.WordCount, &v.Source, &v.CreatedBy, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chapter version: %w", err)
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// --- characters ---

func (s *PostgresStore) CreateCharacter(ctx context.Context, character Character) error {
	aliases, err := json.Marshal(orEmpty(character.Aliases))
	if err != nil {
		return fmt.Errorf("marshal aliases: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO characters (id, project_id, name, aliases, description)
		VALUES ($1, $2, $3, $4::jsonb, $5)
	`, character.ID, character.ProjectID, character.Name, string(aliases), character.Description)
	if err != nil {
		return fmt.Errorf("insert character: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetCharacter(ctx context.Context, characterID string) (Character, error) {
	var c Character
	var aliasesRaw []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, name, aliases, description, created_at, updated_at
		FROM characters WHERE id=$1
	`, characterID).Scan(&c.ID, &c.ProjectID, &c.Name, &aliasesRaw, &c.Description, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return Character{}, err
	}
	_ = json.Unmarshal(aliasesRaw, &c.Aliases)
	return c, nil
}

func (s *PostgresStore) ListCharacters(ctx context.Context, projectID string) ([]Character, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, name, aliases, description, created_at, updated_at
		FROM characters WHERE project_id=$1
		ORDER BY name ASC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list characters: %w", err)
	}
	defer rows.Close()

	characters := make([]Character, 0)
	for rows.Next() {
		var c Character
		var aliasesRaw []byte
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.Name, &aliasesRaw, &c.Description, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan character: %w", err)
		}
		_ = json.Unmarshal(aliasesRaw, &c.Aliases)
		characters = append(characters, c)
	}
	return characters, rows.Err()
}

func (s *PostgresStore) UpdateCharacter(ctx context.Context, character Character) error {
	aliases, err := json.Marshal(orEmpty(character.Aliases))
	if err != nil {
		return fmt.Errorf("marshal aliases: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE characters SET name=$2, aliases=$3::jsonb, description=$4, updated_at=NOW()
		WHERE id=$1
	`, character.ID, character.Name, string(aliases), character.Description)
	if err != nil {
		return fmt.Errorf("update character: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) DeleteCharacter(ctx context.Context, characterID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM characters WHERE id=$1`, characterID)
	if err != nil {
		return fmt.Errorf("delete character: %w", err)
	}
	return requireRow(res)
}

// --- outlines ---

func (s *PostgresStore) CreateOutline(ctx context.Context, outline Outline) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO outlines (id, project_id, position, title, summary, from_chapter, to_chapter)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, outline.ID, outline.ProjectID, outline.Position, outline.Title, outline.Summary, outline.FromChapter, outline.ToChapter)
	if err != nil {
		return fmt.Errorf("insert outline: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListOutlines(ctx context.Context, projectID string) ([]Outline, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, position, title, summary, from_chapter, to_chapter, created_at, updated_at
		FROM outlines WHERE project_id=$1
		ORDER BY position ASC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list outlines: %w", err)
	}
	defer rows.Close()

	outlines := make([]Outline, 0)
	for rows.Next() {
		var o Outline
		if err := rows.Scan(&o.ID, &o.ProjectID, &o.Position, &o.Title, &o.Summary, &o.FromChapter, &o.ToChapter, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan outline: %w", err)
		}
		outlines = append(outlines, o)
	}
	return outlines, rows.Err()
}

func (s *PostgresStore) UpdateOutline(ctx context.Context, outline Outline) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE outlines SET position=$2, title=$3, summary=$4, from_chapter=$5, to_chapter=$6, updated_at=NOW()
		WHERE id=$1
	`, outline.ID, outline.Position, outline.Title, outline.Summary, outline.FromChapter, outline.ToChapter)
	if err != nil {
		return fmt.Errorf("update outline: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) DeleteOutline(ctx context.Context, outlineID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM outlines WHERE id=$1`, outlineID)
	if err != nil {
		return fmt.Errorf("delete outline: %w", err)
	}
	return requireRow(res)
}

// --- terms ---

func (s *PostgresStore) CreateTerm(ctx context.Context, term Term) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO terms (id, project_id, name, description)
		VALUES ($1, $2, $3, $4)
	`, term.ID, term.ProjectID, term.Name, term.Description)
	if err != nil {
		return fmt.Errorf("insert term: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListTerms(ctx context.Context, projectID string) ([]Term, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, name, description, created_at, updated_at
		FROM terms WHERE project_id=$1
		ORDER BY name ASC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list terms: %w", err)
	}
	defer rows.Close()

	terms := make([]Term, 0)
	for rows.Next() {
		var t Term
		if err := rows.Scan(&t.ID, &t.ProjectID, &t.Name, &t.Description, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan term: %w", err)
		}
		terms = append(terms, t)
	}
	return terms, rows.Err()
}

func (s *PostgresStore) UpdateTerm(ctx context.Context, term Term) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE terms SET name=$2, description=$3, updated_at=NOW()
		WHERE id=$1
	`, term.ID, term.Name, term.Description)
	if err != nil {
		return fmt.Errorf("update term: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) DeleteTerm(ctx context.Context, termID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM terms WHERE id=$1`, termID)
	if err != nil {
		return fmt.Errorf("delete term: %w", err)
	}
	return requireRow(res)
}

// requireRow converts a zero-row UPDATE/DELETE into sql.ErrNoRows so callers
// surface 404 instead of silent success.
func requireRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func orEmpty(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
