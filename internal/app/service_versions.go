package app

import (
	"context"
	"strconv"

	"inkwell/api/internal/store"
)

func (s *Service) ListChapterVersions(ctx context.Context, chapterID, ownerID string) ([]map[string]any, error) {
	if _, _, err := s.chapterForOwner(ctx, chapterID, ownerID); err != nil {
		return nil, err
	}
	versions, err := s.store.ListChapterVersions(ctx, chapterID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(versions))
	for _, version := range versions {
		items = append(items, versionPayload(version, true))
	}
	return items, nil
}

func (s *Service) GetChapterVersion(ctx context.Context, chapterID string, versionNumber int, ownerID string) (map[string]any, error) {
	if _, _, err := s.chapterForOwner(ctx, chapterID, ownerID); err != nil {
		return nil, err
	}
	version, err := s.store.GetChapterVersion(ctx, chapterID, versionNumber)
	if err != nil {
		return nil, err
	}
	return versionPayload(version, false), nil
}

// SnapshotChapterVersion records the chapter's current state as a manual
// version without changing the chapter.
func (s *Service) SnapshotChapterVersion(ctx context.Context, chapterID, ownerID, ownerName string) (map[string]any, error) {
	chapter, _, err := s.chapterForOwner(ctx, chapterID, ownerID)
	if err != nil {
		return nil, err
	}
	if err := s.recordChapterVersion(ctx, chapter, "snapshot", ownerName); err != nil {
		return nil, err
	}
	count, err := s.store.CountChapterVersions(ctx, chapterID)
	if err != nil {
		return nil, err
	}
	version, err := s.store.GetChapterVersion(ctx, chapterID, count)
	if err != nil {
		return nil, err
	}
	return versionPayload(version, false), nil
}

// RestoreChapterVersion copies a stored version back onto the chapter and
// records the restore as a new version.
func (s *Service) RestoreChapterVersion(ctx context.Context, chapterID string, versionNumber int, ownerID, ownerName string) (map[string]any, error) {
	chapter, _, err := s.chapterForOwner(ctx, chapterID, ownerID)
	if err != nil {
		return nil, err
	}
	version, err := s.store.GetChapterVersion(ctx, chapterID, versionNumber)
	if err != nil {
		return nil, err
	}

	chapter.Title = version.Title
	chapter.Content = version.Content
	chapter.WordCount = version.WordCount
	if err := s.store.UpdateChapter(ctx, chapter); err != nil {
		return nil, err
	}
	if err := s.recordChapterVersion(ctx, chapter, "restore", ownerName); err != nil {
		return nil, err
	}
	s.commitChapter(chapter.ProjectID, chapter, ownerName, "Restore chapter to version "+strconv.Itoa(versionNumber))
	s.indexChapter(chapter, ownerID)
	return chapterPayload(chapter, false), nil
}

// ChapterHistory lists the manuscript archive commits touching a chapter.
func (s *Service) ChapterHistory(ctx context.Context, chapterID, ownerID string, limit int) ([]map[string]any, error) {
	chapter, _, err := s.chapterForOwner(ctx, chapterID, ownerID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	commits, err := s.archive.History(chapter.ProjectID, chapterID, limit)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(commits))
	for _, commit := range commits {
		items = append(items, map[string]any{
			"hash":      commit.Hash,
			"message":   commit.Message,
			"author":    commit.Author,
			"createdAt": formatTime(commit.CreatedAt),
		})
	}
	return items, nil
}

// ChapterAtCommit returns the chapter text as of an archive commit.
func (s *Service) ChapterAtCommit(ctx context.Context, chapterID, hash, ownerID string) (map[string]any, error) {
	chapter, _, err := s.chapterForOwner(ctx, chapterID, ownerID)
	if err != nil {
		return nil, err
	}
	content, err := s.archive.ChapterAtCommit(chapter.ProjectID, chapterID, hash)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"chapterId": chapterID,
		"hash":      hash,
		"content":   content,
	}, nil
}

func versionPayload(version store.ChapterVersion, preview bool) map[string]any {
	payload := map[string]any{
		"id":            version.ID,
		"chapterId":     version.ChapterID,
		"versionNumber": version.VersionNumber,
		"title":         version.Title,
		"wordCount":     version.WordCount,
		"source":        version.Source,
		"createdBy":     version.CreatedBy,
		"createdAt":     formatTime(version.CreatedAt),
	}
	if preview {
		payload["contentPreview"] = previewOf(version.Content, 200)
	} else {
		payload["content"] = version.Content
	}
	return payload
}
