package export

import (
	"context"
	"fmt"
	"html/template"
	"sort"
)

// DataStore defines the interface for data access
type DataStore interface {
	GetProjectInfo(ctx context.Context, projectID string) (ProjectInfo, error)
	ListChapterInfo(ctx context.Context, projectID string) ([]ChapterInfo, error)
}

// Service provides manuscript export functionality
type Service struct {
	store DataStore
}

// NewService creates a new export service
func NewService(store DataStore) *Service {
	return &Service{store: store}
}

// Export generates an export in the requested format
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	project, err := s.store.GetProjectInfo(ctx, req.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}

	chapters, err := s.store.ListChapterInfo(ctx, req.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("list chapters: %w", err)
	}
	chapters = filterChapters(chapters, req.ChapterIDs)
	if len(chapters) == 0 {
		return nil, ErrContentUnavailable
	}
	sort.SliceStable(chapters, func(i, j int) bool {
		return chapters[i].ChapterNumber < chapters[j].ChapterNumber
	})

	data := TemplateData{
		Title:       project.Title,
		Author:      project.Author,
		GeneratedAt: project.UpdatedAt,
		Chapters:    make([]TemplateChapter, 0, len(chapters)),
	}
	if req.IncludeSynopsis {
		data.Description = project.Description
	}
	for _, c := range chapters {
		data.Chapters = append(data.Chapters, TemplateChapter{
			Number:      c.ChapterNumber,
			Title:       c.Title,
			ContentHTML: template.HTML(TextToHTML(c.Content)),
		})
	}

	html, err := RenderManuscriptHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	switch req.Format {
	case FormatPDF:
		return exportPDF(ctx, html, project.Title)
	case FormatDOCX:
		return exportDOCX(ctx, html, project.Title)
	default:
		return nil, fmt.Errorf("unsupported format: %s", req.Format)
	}
}

func filterChapters(chapters []ChapterInfo, ids []string) []ChapterInfo {
	if len(ids) == 0 {
		return chapters
	}
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	filtered := make([]ChapterInfo, 0, len(ids))
	for _, c := range chapters {
		if wanted[c.ID] {
			filtered = append(filtered, c)
		}
	}
	return filtered
}
