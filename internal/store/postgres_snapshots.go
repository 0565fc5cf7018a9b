package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// --- entity snapshots ---

func (s *PostgresStore) InsertSnapshot(ctx context.Context, snapshot EntitySnapshot) error {
	tags, err := json.Marshal(orEmpty(snapshot.Tags))
	if err != nil {
		return fmt.Errorf("marshal snapshot tags: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO entity_snapshots (
			id, project_id, entity_type, entity_id, entity_name,
			property_name, property_value, property_type, layer, source_type,
			source_chapter_id, source_quote, source_context, confidence,
			ai_model, extraction_version, is_confirmed, tags
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18::jsonb)
	`, snapshot.ID, snapshot.ProjectID, snapshot.EntityType, snapshot.EntityID, snapshot.EntityName,
		snapshot.PropertyName, snapshot.PropertyValue, snapshot.PropertyType, snapshot.Layer, snapshot.SourceType,
		snapshot.SourceChapterID, snapshot.SourceQuote, snapshot.SourceContext, snapshot.Confidence,
		snapshot.AIModel, snapshot.ExtractionVersion, snapshot.IsConfirmed, string(tags))
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

const snapshotColumns = `
	id, project_id, entity_type, entity_id, entity_name,
	property_name, property_value, property_type, layer, source_type,
	source_chapter_id, source_quote, source_context, confidence,
	ai_model, extraction_version, is_confirmed, tags, created_at
`

func scanSnapshot(scanner interface{ Scan(...any) error }) (EntitySnapshot, error) {
	var snap EntitySnapshot
	var tagsRaw []byte
	err := scanner.Scan(
		&snap.ID, &snap.ProjectID, &snap.EntityType, &snap.EntityID, &snap.EntityName,
		&snap.PropertyName, &snap.PropertyValue, &snap.PropertyType, &snap.Layer, &snap.SourceType,
		&snap.SourceChapterID, &snap.SourceQuote, &snap.SourceContext, &snap.Confidence,
		&snap.AIModel, &snap.ExtractionVersion, &snap.IsConfirmed, &tagsRaw, &snap.CreatedAt,
	)
	if err != nil {
		return EntitySnapshot{}, err
	}
	_ = json.Unmarshal(tagsRaw, &snap.Tags)
	return snap, nil
}

func (s *PostgresStore) ListSnapshots(ctx context.Context, projectID string) ([]EntitySnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+snapshotColumns+`
		FROM entity_snapshots WHERE project_id=$1
		ORDER BY created_at ASC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := make([]EntitySnapshot, 0)
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, rows.Err()
}

func (s *PostgresStore) ListEntitySnapshots(ctx context.Context, projectID, entityID string) ([]EntitySnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+snapshotColumns+`
		FROM entity_snapshots WHERE project_id=$1 AND entity_id=$2
		ORDER BY property_name ASC, created_at ASC
	`, projectID, entityID)
	if err != nil {
		return nil, fmt.Errorf("list entity snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := make([]EntitySnapshot, 0)
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entity snapshot: %w", err)
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, rows.Err()
}

// ChapterIDsWithSnapshots returns the chapter ids that already have snapshots,
// so incremental extraction can skip them.
func (s *PostgresStore) ChapterIDsWithSnapshots(ctx context.Context, projectID string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT source_chapter_id FROM entity_snapshots WHERE project_id=$1
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list extracted chapters: %w", err)
	}
	defer rows.Close()

	extracted := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan extracted chapter: %w", err)
		}
		extracted[id] = true
	}
	return extracted, rows.Err()
}

// DeleteProjectSnapshots clears a project's snapshots. Conflicts reference
// snapshots, so callers delete conflicts first.
func (s *PostgresStore) DeleteProjectSnapshots(ctx context.Context, projectID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM entity_snapshots WHERE project_id=$1`, projectID); err != nil {
		return fmt.Errorf("delete snapshots: %w", err)
	}
	return nil
}

// --- conflicts ---

// InsertConflict writes a conflict unless one already exists for the same
// unordered snapshot pair. Returns true when the row was inserted.
func (s *PostgresStore) InsertConflict(ctx context.Context, conflict Conflict) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO conflicts (
			id, project_id, entity_type, entity_id, entity_name, property_name,
			snapshot_a_id, snapshot_a_value, snapshot_a_chapter_id,
			snapshot_b_id, snapshot_b_value, snapshot_b_chapter_id,
			conflict_type, severity, status, confidence, ai_suggestion, pair_key
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (project_id, pair_key) DO NOTHING
	`, conflict.ID, conflict.ProjectID, conflict.EntityType, conflict.EntityID, conflict.EntityName, conflict.PropertyName,
		conflict.SnapshotAID, conflict.SnapshotAValue, conflict.SnapshotAChapterID,
		conflict.SnapshotBID, conflict.SnapshotBValue, conflict.SnapshotBChapterID,
		conflict.ConflictType, conflict.Severity, conflict.Status, conflict.Confidence, conflict.AISuggestion, conflict.PairKey)
	if err != nil {
		return false, fmt.Errorf("insert conflict: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert conflict rows affected: %w", err)
	}
	return affected > 0, nil
}

const conflictColumns = `
	id, project_id, entity_type, entity_id, entity_name, property_name,
	snapshot_a_id, snapshot_a_value, snapshot_a_chapter_id,
	snapshot_b_id, snapshot_b_value, snapshot_b_chapter_id,
	conflict_type, severity, status, resolution, resolved_by, resolved_at,
	confidence, ai_suggestion, pair_key, created_at
`

func scanConflict(scanner interface{ Scan(...any) error }) (Conflict, error) {
	var c Conflict
	err := scanner.Scan(
		&c.ID, &c.ProjectID, &c.EntityType, &c.EntityID, &c.EntityName, &c.PropertyName,
		&c.SnapshotAID, &c.SnapshotAValue, &c.SnapshotAChapterID,
		&c.SnapshotBID, &c.SnapshotBValue, &c.SnapshotBChapterID,
		&c.ConflictType, &c.Severity, &c.Status, &c.Resolution, &c.ResolvedBy, &c.ResolvedAt,
		&c.Confidence, &c.AISuggestion, &c.PairKey, &c.CreatedAt,
	)
	if err != nil {
		return Conflict{}, err
	}
	return c, nil
}

type ConflictFilter struct {
	Severity string
	Status   string
	EntityID string
}

func (s *PostgresStore) ListConflicts(ctx context.Context, projectID string, filter ConflictFilter) ([]Conflict, error) {
	where := []string{"project_id=$1"}
	args := []any{projectID}
	if filter.Severity != "" {
		args = append(args, filter.Severity)
		where = append(where, fmt.Sprintf("severity=$%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status=$%d", len(args)))
	}
	if filter.EntityID != "" {
		args = append(args, filter.EntityID)
		where = append(where, fmt.Sprintf("entity_id=$%d", len(args)))
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+conflictColumns+`
		FROM conflicts WHERE `+strings.Join(where, " AND ")+`
		ORDER BY created_at DESC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("list conflicts: %w", err)
	}
	defer rows.Close()

	conflicts := make([]Conflict, 0)
	for rows.Next() {
		c, err := scanConflict(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conflict: %w", err)
		}
		conflicts = append(conflicts, c)
	}
	return conflicts, rows.Err()
}

func (s *PostgresStore) GetConflict(ctx context.Context, conflictID string) (Conflict, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+conflictColumns+`
		FROM conflicts WHERE id=$1
	`, conflictID)
	return scanConflict(row)
}

func (s *PostgresStore) GetConflictDetail(ctx context.Context, conflictID string) (ConflictDetail, error) {
	var d ConflictDetail
	row := s.db.QueryRowContext(ctx, `
		SELECT c.id, c.project_id, c.entity_type, c.entity_id, c.entity_name, c.property_name,
			c.snapshot_a_id, c.snapshot_a_value, c.snapshot_a_chapter_id,
			c.snapshot_b_id, c.snapshot_b_value, c.snapshot_b_chapter_id,
			c.conflict_type, c.severity, c.status, c.resolution, c.resolved_by, c.resolved_at,
			c.confidence, c.ai_suggestion, c.pair_key, c.created_at,
			sa.source_quote, sa.source_context, ca.chapter_number,
			sb.source_quote, sb.source_context, cb.chapter_number
		FROM conflicts c
		JOIN entity_snapshots sa ON sa.id = c.snapshot_a_id
		JOIN entity_snapshots sb ON sb.id = c.snapshot_b_id
		JOIN chapters ca ON ca.id = sa.source_chapter_id
		JOIN chapters cb ON cb.id = sb.source_chapter_id
		WHERE c.id=$1
	`, conflictID)
	err := row.Scan(
		&d.ID, &d.ProjectID, &d.EntityType, &d.EntityID, &d.EntityName, &d.PropertyName,
		&d.SnapshotAID, &d.SnapshotAValue, &d.SnapshotAChapterID,
		&d.SnapshotBID, &d.SnapshotBValue, &d.SnapshotBChapterID,
		&d.ConflictType, &d.Severity, &d.Status, &d.Resolution, &d.ResolvedBy, &d.ResolvedAt,
		&d.Confidence, &d.AISuggestion, &d.PairKey, &d.CreatedAt,
		&d.SnapshotAQuote, &d.SnapshotAContext, &d.SnapshotAChapterNo,
		&d.SnapshotBQuote, &d.SnapshotBContext, &d.SnapshotBChapterNo,
	)
	if err != nil {
		return ConflictDetail{}, err
	}
	return d, nil
}

func (s *PostgresStore) ResolveConflict(ctx context.Context, conflictID, resolution, resolvedBy string, resolvedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE conflicts SET status='resolved', resolution=$2, resolved_by=$3, resolved_at=$4
		WHERE id=$1
	`, conflictID, resolution, resolvedBy, resolvedAt)
	if err != nil {
		return fmt.Errorf("resolve conflict: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) IgnoreConflict(ctx context.Context, conflictID string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE conflicts SET status='ignored' WHERE id=$1`, conflictID)
	if err != nil {
		return fmt.Errorf("ignore conflict: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) DeleteProjectConflicts(ctx context.Context, projectID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM conflicts WHERE project_id=$1`, projectID); err != nil {
		return fmt.Errorf("delete conflicts: %w", err)
	}
	return nil
}

// ConflictedSnapshotIDs returns ids of snapshots that participate in at least
// one unresolved conflict, for the hasConflict flag on entity timelines.
func (s *PostgresStore) ConflictedSnapshotIDs(ctx context.Context, projectID, entityID string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT snapshot_a_id, snapshot_b_id
		FROM conflicts
		WHERE project_id=$1 AND entity_id=$2 AND status IN ('detected', 'verified')
	`, projectID, entityID)
	if err != nil {
		return nil, fmt.Errorf("list conflicted snapshots: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]bool)
	for rows.Next() {
		var a, b string
		if err := rows.Scan(&a, &b); err != nil {
			return nil, fmt.Errorf("scan conflicted snapshot ids: %w", err)
		}
		ids[a] = true
		ids[b] = true
	}
	return ids, rows.Err()
}
