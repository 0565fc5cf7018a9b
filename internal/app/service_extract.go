package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strings"
	"time"

	"inkwell/api/internal/ai"
	"inkwell/api/internal/detect"
	"inkwell/api/internal/extract"
	"inkwell/api/internal/store"
	"inkwell/api/internal/util"
)

type ExtractInput struct {
	Mode  string `json:"mode"`
	UseAI bool   `json:"useAi"`
}

type DetectInput struct {
	ClearExisting bool `json:"clearExisting"`
	UseAI         bool `json:"useAi"`
	AutoSave      bool `json:"autoSave"`
}

type ResolveConflictInput struct {
	Resolution string `json:"resolution"`
}

// aiVerifier asks the AI client to double-check a candidate conflict.
type aiVerifier struct {
	client ai.Client
}

const verifySystemPrompt = `You verify whether two assertions about the same entity property contradict.
Reply with JSON only: {"conflict":true|false,"suggestion":"one-sentence fix or empty"}`

func (v *aiVerifier) VerifyConflict(ctx context.Context, a, b store.EntitySnapshot) (bool, string, error) {
	user := fmt.Sprintf("Entity: %s\nProperty: %s\nAssertion A (chapter %s): %q\nAssertion B (chapter %s): %q",
		a.EntityName, a.PropertyName, a.SourceChapterID, a.PropertyValue, b.SourceChapterID, b.PropertyValue)
	result, err := v.client.Complete(ctx, verifySystemPrompt, user)
	if err != nil {
		return false, "", err
	}
	var verdict struct {
		Conflict   bool   `json:"conflict"`
		Suggestion string `json:"suggestion"`
	}
	reply := strings.TrimSpace(result.Text)
	if start := strings.Index(reply, "{"); start >= 0 {
		if end := strings.LastIndex(reply, "}"); end > start {
			reply = reply[start : end+1]
		}
	}
	if err := json.Unmarshal([]byte(reply), &verdict); err != nil {
		return false, "", fmt.Errorf("parse verification reply: %w", err)
	}
	return verdict.Conflict, verdict.Suggestion, nil
}

// ExtractProject runs snapshot extraction over a project's chapters.
// mode "incremental" skips chapters that already have snapshots; "full" wipes
// the project's conflicts and snapshots first.
func (s *Service) ExtractProject(ctx context.Context, projectID, ownerID string, input ExtractInput) (map[string]any, error) {
	if _, err := s.projectForOwner(ctx, projectID, ownerID); err != nil {
		return nil, err
	}
	mode := strings.ToLower(strings.TrimSpace(input.Mode))
	if mode == "" {
		mode = "incremental"
	}
	if mode != "incremental" && mode != "full" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "mode must be 'incremental' or 'full'", nil)
	}

	if mode == "full" {
		if err := s.store.DeleteProjectConflicts(ctx, projectID); err != nil {
			return nil, err
		}
		if err := s.store.DeleteProjectSnapshots(ctx, projectID); err != nil {
			return nil, err
		}
	}

	chapters, err := s.store.ListChapters(ctx, projectID)
	if err != nil {
		return nil, err
	}
	characters, err := s.store.ListCharacters(ctx, projectID)
	if err != nil {
		return nil, err
	}

	var skip map[string]bool
	if mode == "incremental" {
		skip, err = s.store.ChapterIDsWithSnapshots(ctx, projectID)
		if err != nil {
			return nil, err
		}
	}

	seen := make(map[string]bool)
	processed, skipped, created := 0, 0, 0
	for _, chapter := range chapters {
		if skip[chapter.ID] {
			skipped++
			continue
		}
		snapshots, usage, err := s.extractor.Extract(ctx, chapter, characters, input.UseAI)
		if err != nil {
			return nil, err
		}
		processed++

		var snapshotIDs []string
		for _, snapshot := range snapshots {
			key := extract.BatchKey(snapshot)
			if seen[key] {
				continue
			}
			seen[key] = true
			if err := s.store.InsertSnapshot(ctx, snapshot); err != nil {
				return nil, err
			}
			snapshotIDs = append(snapshotIDs, snapshot.ID)
			created++
		}
		if usage.Model != "" {
			s.recordThinkingChain(ctx, thinkingChainInput{
				projectID:  projectID,
				chapterID:  chapter.ID,
				chainType:  "analysis",
				conclusion: fmt.Sprintf("extracted %d snapshot(s) from chapter %d", len(snapshotIDs), chapter.ChapterNumber),
				steps: []string{
					"sent chapter text and known characters to the model",
					"parsed the JSON assertion list",
					"resolved entity names against the character roster",
				},
				snapshotIDs: snapshotIDs,
				usage:       usage,
			})
		}
	}

	return map[string]any{
		"mode":              mode,
		"chaptersProcessed": processed,
		"chaptersSkipped":   skipped,
		"snapshotsCreated":  created,
	}, nil
}

// DetectConflicts runs pairwise contradiction detection over a project's
// snapshots.
func (s *Service) DetectConflicts(ctx context.Context, projectID, ownerID string, input DetectInput) (map[string]any, error) {
	project, err := s.projectForOwner(ctx, projectID, ownerID)
	if err != nil {
		return nil, err
	}
	if input.ClearExisting {
		if err := s.store.DeleteProjectConflicts(ctx, projectID); err != nil {
			return nil, err
		}
	}

	snapshots, err := s.store.ListSnapshots(ctx, projectID)
	if err != nil {
		return nil, err
	}
	chapterNumbers, err := s.store.ChapterNumbers(ctx, projectID)
	if err != nil {
		return nil, err
	}

	detector := s.detector
	if !input.UseAI {
		detector = detect.New(nil)
	}
	conflicts, err := detector.Detect(ctx, projectID, snapshots, chapterNumbers)
	if err != nil {
		return nil, err
	}

	saved := 0
	critical := 0
	var savedCriticals []store.Conflict
	var conflictIDs []string
	if input.AutoSave {
		for _, conflict := range conflicts {
			inserted, err := s.store.InsertConflict(ctx, conflict)
			if err != nil {
				return nil, err
			}
			if !inserted {
				continue
			}
			saved++
			conflictIDs = append(conflictIDs, conflict.ID)
			if conflict.Severity == "critical" {
				savedCriticals = append(savedCriticals, conflict)
			}
		}
	}
	for _, conflict := range conflicts {
		if conflict.Severity == "critical" {
			critical++
		}
	}

	if input.AutoSave && len(conflictIDs) > 0 {
		s.recordThinkingChain(ctx, thinkingChainInput{
			projectID:   projectID,
			chainType:   "detection",
			conclusion:  fmt.Sprintf("saved %d conflict(s), %d critical", saved, len(savedCriticals)),
			steps:       []string{"grouped snapshots by entity and property", "compared value pairs in chapter order", "kept candidates past similarity and tolerance checks"},
			conflictIDs: conflictIDs,
		})
	}
	if len(savedCriticals) > 0 {
		s.notifyCriticalConflicts(ownerID, project.Title, savedCriticals)
	}

	items := make([]map[string]any, 0, len(conflicts))
	for _, conflict := range conflicts {
		items = append(items, conflictPayload(conflict))
	}
	return map[string]any{
		"conflictsFound": len(conflicts),
		"conflictsSaved": saved,
		"criticalCount":  critical,
		"conflicts":      items,
	}, nil
}

func (s *Service) notifyCriticalConflicts(ownerID, projectTitle string, conflicts []store.Conflict) {
	if !s.SMTPConfigured() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		owner, err := s.store.GetUserByID(ctx, ownerID)
		if err != nil {
			log.Printf("email: owner lookup for digest failed: %v", err)
			return
		}
		if err := s.email.SendConflictDigest(owner.Email, owner.DisplayName, projectTitle, conflicts); err != nil {
			log.Printf("email: conflict digest failed: %v", err)
		}
	}()
}

func (s *Service) ListConflicts(ctx context.Context, projectID, ownerID string, filter store.ConflictFilter) ([]map[string]any, error) {
	if _, err := s.projectForOwner(ctx, projectID, ownerID); err != nil {
		return nil, err
	}
	conflicts, err := s.store.ListConflicts(ctx, projectID, filter)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(conflicts))
	for _, conflict := range conflicts {
		items = append(items, conflictPayload(conflict))
	}
	return items, nil
}

func (s *Service) GetConflictDetail(ctx context.Context, conflictID, ownerID string) (map[string]any, error) {
	detail, err := s.store.GetConflictDetail(ctx, conflictID)
	if err != nil {
		return nil, err
	}
	if _, err := s.projectForOwner(ctx, detail.ProjectID, ownerID); err != nil {
		return nil, err
	}
	payload := conflictPayload(detail.Conflict)
	payload["snapshotA"] = map[string]any{
		"id":            detail.SnapshotAID,
		"value":         detail.SnapshotAValue,
		"chapterId":     detail.SnapshotAChapterID,
		"chapterNumber": detail.SnapshotAChapterNo,
		"quote":         detail.SnapshotAQuote,
		"context":       detail.SnapshotAContext,
	}
	payload["snapshotB"] = map[string]any{
		"id":            detail.SnapshotBID,
		"value":         detail.SnapshotBValue,
		"chapterId":     detail.SnapshotBChapterID,
		"chapterNumber": detail.SnapshotBChapterNo,
		"quote":         detail.SnapshotBQuote,
		"context":       detail.SnapshotBContext,
	}
	return payload, nil
}

func (s *Service) ResolveConflict(ctx context.Context, conflictID, ownerID, resolvedBy string, input ResolveConflictInput) (map[string]any, error) {
	conflict, err := s.store.GetConflict(ctx, conflictID)
	if err != nil {
		return nil, err
	}
	if _, err := s.projectForOwner(ctx, conflict.ProjectID, ownerID); err != nil {
		return nil, err
	}
	resolution := strings.TrimSpace(input.Resolution)
	if resolution == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "resolution is required", nil)
	}
	if err := s.store.ResolveConflict(ctx, conflictID, resolution, resolvedBy, time.Now()); err != nil {
		return nil, err
	}
	updated, err := s.store.GetConflict(ctx, conflictID)
	if err != nil {
		return nil, err
	}
	return conflictPayload(updated), nil
}

func (s *Service) IgnoreConflict(ctx context.Context, conflictID, ownerID string) (map[string]any, error) {
	conflict, err := s.store.GetConflict(ctx, conflictID)
	if err != nil {
		return nil, err
	}
	if _, err := s.projectForOwner(ctx, conflict.ProjectID, ownerID); err != nil {
		return nil, err
	}
	if err := s.store.IgnoreConflict(ctx, conflictID); err != nil {
		return nil, err
	}
	updated, err := s.store.GetConflict(ctx, conflictID)
	if err != nil {
		return nil, err
	}
	return conflictPayload(updated), nil
}

// EntitySnapshots returns one entity's snapshot lineage grouped by property,
// flagging snapshots that participate in a conflict.
func (s *Service) EntitySnapshots(ctx context.Context, projectID, entityID, ownerID string) (map[string]any, error) {
	if _, err := s.projectForOwner(ctx, projectID, ownerID); err != nil {
		return nil, err
	}
	snapshots, err := s.store.ListEntitySnapshots(ctx, projectID, entityID)
	if err != nil {
		return nil, err
	}
	conflicted, err := s.store.ConflictedSnapshotIDs(ctx, projectID, entityID)
	if err != nil {
		return nil, err
	}

	byProperty := make(map[string][]map[string]any)
	entityName := ""
	for _, snapshot := range snapshots {
		if entityName == "" {
			entityName = snapshot.EntityName
		}
		byProperty[snapshot.PropertyName] = append(byProperty[snapshot.PropertyName], snapshotPayload(snapshot, conflicted[snapshot.ID]))
	}

	properties := make([]string, 0, len(byProperty))
	for property := range byProperty {
		properties = append(properties, property)
	}
	sort.Strings(properties)

	groups := make([]map[string]any, 0, len(properties))
	for _, property := range properties {
		groups = append(groups, map[string]any{
			"property":  property,
			"snapshots": byProperty[property],
		})
	}
	return map[string]any{
		"entityId":   entityID,
		"entityName": entityName,
		"properties": groups,
	}, nil
}

type thinkingChainInput struct {
	projectID   string
	chapterID   string
	chainType   string
	conclusion  string
	steps       []string
	snapshotIDs []string
	conflictIDs []string
	linkIDs     []string
	usage       extract.Usage
}

func (s *Service) recordThinkingChain(ctx context.Context, input thinkingChainInput) {
	steps, err := json.Marshal(input.steps)
	if err != nil {
		steps = []byte("[]")
	}
	chain := store.ThinkingChain{
		ID:               util.NewID("thk"),
		ProjectID:        input.projectID,
		ChapterID:        input.chapterID,
		ChainType:        input.chainType,
		ReasoningSteps:   steps,
		Conclusion:       input.conclusion,
		SnapshotIDs:      input.snapshotIDs,
		ConflictIDs:      input.conflictIDs,
		LinkIDs:          input.linkIDs,
		AIModel:          input.usage.Model,
		Temperature:      input.usage.Temperature,
		PromptTokens:     input.usage.PromptTokens,
		CompletionTokens: input.usage.CompletionTokens,
	}
	if err := s.store.InsertThinkingChain(ctx, chain); err != nil {
		log.Printf("detect: record thinking chain failed: %v", err)
	}
}

func conflictPayload(conflict store.Conflict) map[string]any {
	return map[string]any{
		"id":                 conflict.ID,
		"projectId":          conflict.ProjectID,
		"entityType":         conflict.EntityType,
		"entityId":           conflict.EntityID,
		"entityName":         conflict.EntityName,
		"propertyName":       conflict.PropertyName,
		"snapshotAId":        conflict.SnapshotAID,
		"snapshotAValue":     conflict.SnapshotAValue,
		"snapshotAChapterId": conflict.SnapshotAChapterID,
		"snapshotBId":        conflict.SnapshotBID,
		"snapshotBValue":     conflict.SnapshotBValue,
		"snapshotBChapterId": conflict.SnapshotBChapterID,
		"conflictType":       conflict.ConflictType,
		"severity":           conflict.Severity,
		"status":             conflict.Status,
		"resolution":         conflict.Resolution,
		"resolvedBy":         conflict.ResolvedBy,
		"confidence":         conflict.Confidence,
		"aiSuggestion":       conflict.AISuggestion,
		"createdAt":          formatTime(conflict.CreatedAt),
	}
}

func snapshotPayload(snapshot store.EntitySnapshot, hasConflict bool) map[string]any {
	tags := snapshot.Tags
	if tags == nil {
		tags = []string{}
	}
	return map[string]any{
		"id":                snapshot.ID,
		"entityType":        snapshot.EntityType,
		"entityId":          snapshot.EntityID,
		"entityName":        snapshot.EntityName,
		"propertyName":      snapshot.PropertyName,
		"propertyValue":     snapshot.PropertyValue,
		"propertyType":      snapshot.PropertyType,
		"layer":             snapshot.Layer,
		"sourceType":        snapshot.SourceType,
		"sourceChapterId":   snapshot.SourceChapterID,
		"sourceQuote":       snapshot.SourceQuote,
		"sourceContext":     snapshot.SourceContext,
		"confidence":        snapshot.Confidence,
		"aiModel":           snapshot.AIModel,
		"extractionVersion": snapshot.ExtractionVersion,
		"isConfirmed":       snapshot.IsConfirmed,
		"hasConflict":       hasConflict,
		"tags":              tags,
		"createdAt":         formatTime(snapshot.CreatedAt),
	}
}
