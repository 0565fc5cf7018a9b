package app

import (
	"context"
	"net/http"
	"strings"

	"inkwell/api/internal/export"
	"inkwell/api/internal/search"
)

type ExportInput struct {
	Format          string   `json:"format"`
	ChapterIDs      []string `json:"chapterIds"`
	IncludeSynopsis bool     `json:"includeSynopsis"`
	Upload          bool     `json:"upload"`
}

// exportSource adapts the data store to the export service for one request.
// Ownership is checked before export starts, so lookups here are plain reads.
type exportSource struct {
	store   dataStore
	ownerID string
	author  string
}

func (e *exportSource) GetProjectInfo(ctx context.Context, projectID string) (export.ProjectInfo, error) {
	project, err := e.store.GetProject(ctx, projectID, e.ownerID)
	if err != nil {
		return export.ProjectInfo{}, err
	}
	return export.ProjectInfo{
		ID:          project.ID,
		Title:       project.Title,
		Author:      e.author,
		Description: project.Description,
		UpdatedAt:   project.UpdatedAt,
	}, nil
}

func (e *exportSource) ListChapterInfo(ctx context.Context, projectID string) ([]export.ChapterInfo, error) {
	chapters, err := e.store.ListChapters(ctx, projectID)
	if err != nil {
		return nil, err
	}
	infos := make([]export.ChapterInfo, 0, len(chapters))
	for _, chapter := range chapters {
		infos = append(infos, export.ChapterInfo{
			ID:            chapter.ID,
			ChapterNumber: chapter.ChapterNumber,
			Title:         chapter.Title,
			Content:       chapter.Content,
		})
	}
	return infos, nil
}

// ExportProject renders the manuscript. When upload is requested and object
// storage is configured, the artifact is stored and a download URL returned;
// the caller streams the bytes inline otherwise.
func (s *Service) ExportProject(ctx context.Context, projectID, ownerID, ownerName string, input ExportInput) (*export.Result, string, error) {
	if _, err := s.projectForOwner(ctx, projectID, ownerID); err != nil {
		return nil, "", err
	}

	format := export.Format(strings.ToLower(strings.TrimSpace(input.Format)))
	if format != export.FormatPDF && format != export.FormatDOCX {
		return nil, "", domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "format must be 'pdf' or 'docx'", nil)
	}

	exporter := export.NewService(&exportSource{store: s.store, ownerID: ownerID, author: ownerName})
	result, err := exporter.Export(ctx, export.Request{
		ProjectID:       projectID,
		ChapterIDs:      input.ChapterIDs,
		Format:          format,
		IncludeSynopsis: input.IncludeSynopsis,
	})
	if err != nil {
		return nil, "", err
	}

	if input.Upload && s.storage != nil {
		url, err := s.storage.Upload(ctx, projectID, result)
		if err != nil {
			return nil, "", err
		}
		return result, url, nil
	}
	return result, "", nil
}

// Search runs full-text search. Every query is scoped to the caller's own
// projects; a projectId filter additionally requires the caller to own it.
func (s *Service) Search(ctx context.Context, q, filterType, projectID, ownerID string, limit, offset int) (search.Response, error) {
	if projectID != "" {
		if _, err := s.projectForOwner(ctx, projectID, ownerID); err != nil {
			return search.Response{}, err
		}
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.search.Search(search.Query{
		Text:            q,
		OwnerID:         ownerID,
		FilterType:      search.ResultType(filterType),
		FilterProjectID: projectID,
		Limit:           limit,
		Offset:          offset,
	}), nil
}

// ReindexSearch rebuilds the Meilisearch indexes from Postgres.
func (s *Service) ReindexSearch(ctx context.Context) {
	s.search.ReindexAllFromPG(ctx)
}
