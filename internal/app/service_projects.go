package app

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"inkwell/api/internal/search"
	"inkwell/api/internal/store"
	"inkwell/api/internal/util"
)

type ProjectInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Genre       string `json:"genre"`
}

type ChapterInput struct {
	ChapterNumber int    `json:"chapterNumber"`
	Title         string `json:"title"`
	Content       string `json:"content"`
	Status        string `json:"status"`
}

type CharacterInput struct {
	Name        string   `json:"name"`
	Aliases     []string `json:"aliases"`
	Description string   `json:"description"`
}

type OutlineInput struct {
	Position    int    `json:"position"`
	Title       string `json:"title"`
	Summary     string `json:"summary"`
	FromChapter *int   `json:"fromChapter"`
	ToChapter   *int   `json:"toChapter"`
}

type TermInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// projectForOwner loads a project scoped to its owner. Projects owned by other
// users read as not found.
func (s *Service) projectForOwner(ctx context.Context, projectID, ownerID string) (store.Project, error) {
	return s.store.GetProject(ctx, projectID, ownerID)
}

// chapterForOwner resolves a chapter and verifies the owning project.
func (s *Service) chapterForOwner(ctx context.Context, chapterID, ownerID string) (store.Chapter, store.Project, error) {
	chapter, err := s.store.GetChapter(ctx, chapterID)
	if err != nil {
		return store.Chapter{}, store.Project{}, err
	}
	project, err := s.store.GetProject(ctx, chapter.ProjectID, ownerID)
	if err != nil {
		return store.Chapter{}, store.Project{}, err
	}
	return chapter, project, nil
}

func (s *Service) CreateProject(ctx context.Context, ownerID, ownerName string, input ProjectInput) (map[string]any, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required", nil)
	}
	project := store.Project{
		ID:          util.NewID("prj"),
		OwnerID:     ownerID,
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		Genre:       strings.TrimSpace(input.Genre),
	}
	if err := s.store.CreateProject(ctx, project); err != nil {
		return nil, err
	}
	if err := s.archive.EnsureProjectRepo(project.ID, project.Title, ownerName); err != nil {
		log.Printf("archive: ensure repo for %s failed: %v", project.ID, err)
	}
	return projectPayload(project), nil
}

func (s *Service) ListProjects(ctx context.Context, ownerID string) ([]map[string]any, error) {
	projects, err := s.store.ListProjects(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(projects))
	for _, project := range projects {
		items = append(items, projectPayload(project))
	}
	return items, nil
}

func (s *Service) GetProject(ctx context.Context, projectID, ownerID string) (map[string]any, error) {
	project, err := s.projectForOwner(ctx, projectID, ownerID)
	if err != nil {
		return nil, err
	}
	return projectPayload(project), nil
}

func (s *Service) UpdateProject(ctx context.Context, projectID, ownerID string, input ProjectInput) (map[string]any, error) {
	project, err := s.projectForOwner(ctx, projectID, ownerID)
	if err != nil {
		return nil, err
	}
	if title := strings.TrimSpace(input.Title); title != "" {
		project.Title = title
	}
	project.Description = strings.TrimSpace(input.Description)
	project.Genre = strings.TrimSpace(input.Genre)
	if err := s.store.UpdateProject(ctx, project); err != nil {
		return nil, err
	}
	return projectPayload(project), nil
}

func (s *Service) DeleteProject(ctx context.Context, projectID, ownerID string) error {
	if _, err := s.projectForOwner(ctx, projectID, ownerID); err != nil {
		return err
	}
	return s.store.DeleteProject(ctx, projectID, ownerID)
}

func (s *Service) CreateChapter(ctx context.Context, projectID, ownerID, ownerName string, input ChapterInput) (map[string]any, error) {
	if _, err := s.projectForOwner(ctx, projectID, ownerID); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required", nil)
	}
	chapter := store.Chapter{
		ID:            util.NewID("chp"),
		ProjectID:     projectID,
		ChapterNumber: input.ChapterNumber,
		Title:         title,
		Content:       input.Content,
		WordCount:     wordCount(input.Content),
		Status:        orBlank(input.Status, "draft"),
	}
	if err := s.store.CreateChapter(ctx, chapter); err != nil {
		return nil, err
	}
	if err := s.recordChapterVersion(ctx, chapter, "user", ownerName); err != nil {
		return nil, err
	}
	s.commitChapter(projectID, chapter, ownerName, "Add chapter: "+chapter.Title)
	s.indexChapter(chapter, ownerID)
	return chapterPayload(chapter, false), nil
}

func (s *Service) ListChapters(ctx context.Context, projectID, ownerID string) ([]map[string]any, error) {
	if _, err := s.projectForOwner(ctx, projectID, ownerID); err != nil {
		return nil, err
	}
	chapters, err := s.store.ListChapters(ctx, projectID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(chapters))
	for _, chapter := range chapters {
		items = append(items, chapterPayload(chapter, true))
	}
	return items, nil
}

func (s *Service) GetChapterPayload(ctx context.Context, chapterID, ownerID string) (map[string]any, error) {
	chapter, _, err := s.chapterForOwner(ctx, chapterID, ownerID)
	if err != nil {
		return nil, err
	}
	return chapterPayload(chapter, false), nil
}

func (s *Service) UpdateChapter(ctx context.Context, chapterID, ownerID, ownerName string, input ChapterInput) (map[string]any, error) {
	chapter, _, err := s.chapterForOwner(ctx, chapterID, ownerID)
	if err != nil {
		return nil, err
	}
	if title := strings.TrimSpace(input.Title); title != "" {
		chapter.Title = title
	}
	if input.ChapterNumber > 0 {
		chapter.ChapterNumber = input.ChapterNumber
	}
	if input.Status != "" {
		chapter.Status = input.Status
	}
	chapter.Content = input.Content
	chapter.WordCount = wordCount(input.Content)
	if err := s.store.UpdateChapter(ctx, chapter); err != nil {
		return nil, err
	}
	if err := s.recordChapterVersion(ctx, chapter, "user", ownerName); err != nil {
		return nil, err
	}
	s.commitChapter(chapter.ProjectID, chapter, ownerName, "Update chapter: "+chapter.Title)
	s.indexChapter(chapter, ownerID)
	return chapterPayload(chapter, false), nil
}

func (s *Service) DeleteChapter(ctx context.Context, chapterID, ownerID, ownerName string) error {
	chapter, _, err := s.chapterForOwner(ctx, chapterID, ownerID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteChapter(ctx, chapterID); err != nil {
		return err
	}
	if err := s.archive.RemoveChapter(chapter.ProjectID, chapterID, ownerName); err != nil {
		log.Printf("archive: remove chapter %s failed: %v", chapterID, err)
	}
	if s.search != nil {
		s.search.DeleteChapter(chapterID)
	}
	return nil
}

func (s *Service) CreateCharacter(ctx context.Context, projectID, ownerID string, input CharacterInput) (map[string]any, error) {
	if _, err := s.projectForOwner(ctx, projectID, ownerID); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}
	character := store.Character{
		ID:          util.NewID("chr"),
		ProjectID:   projectID,
		Name:        name,
		Aliases:     input.Aliases,
		Description: strings.TrimSpace(input.Description),
	}
	if err := s.store.CreateCharacter(ctx, character); err != nil {
		return nil, err
	}
	s.indexCharacter(character, ownerID)
	return characterPayload(character), nil
}

func (s *Service) ListCharacters(ctx context.Context, projectID, ownerID string) ([]map[string]any, error) {
	if _, err := s.projectForOwner(ctx, projectID, ownerID); err != nil {
		return nil, err
	}
	characters, err := s.store.ListCharacters(ctx, projectID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(characters))
	for _, character := range characters {
		items = append(items, characterPayload(character))
	}
	return items, nil
}

func (s *Service) UpdateCharacter(ctx context.Context, characterID, ownerID string, input CharacterInput) (map[string]any, error) {
	character, err := s.store.GetCharacter(ctx, characterID)
	if err != nil {
		return nil, err
	}
	if _, err := s.projectForOwner(ctx, character.ProjectID, ownerID); err != nil {
		return nil, err
	}
	if name := strings.TrimSpace(input.Name); name != "" {
		character.Name = name
	}
	character.Aliases = input.Aliases
	character.Description = strings.TrimSpace(input.Description)
	if err := s.store.UpdateCharacter(ctx, character); err != nil {
		return nil, err
	}
	s.indexCharacter(character, ownerID)
	return characterPayload(character), nil
}

func (s *Service) DeleteCharacter(ctx context.Context, characterID, ownerID string) error {
	character, err := s.store.GetCharacter(ctx, characterID)
	if err != nil {
		return err
	}
	if _, err := s.projectForOwner(ctx, character.ProjectID, ownerID); err != nil {
		return err
	}
	if err := s.store.DeleteCharacter(ctx, characterID); err != nil {
		return err
	}
	if s.search != nil {
		s.search.DeleteCharacter(characterID)
	}
	return nil
}

func (s *Service) CreateOutline(ctx context.Context, projectID, ownerID string, input OutlineInput) (map[string]any, error) {
	if _, err := s.projectForOwner(ctx, projectID, ownerID); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required", nil)
	}
	outline := store.Outline{
		ID:          util.NewID("out"),
		ProjectID:   projectID,
		Position:    input.Position,
		Title:       title,
		Summary:     strings.TrimSpace(input.Summary),
		FromChapter: input.FromChapter,
		ToChapter:   input.ToChapter,
	}
	if err := s.store.CreateOutline(ctx, outline); err != nil {
		return nil, err
	}
	return outlinePayload(outline), nil
}

func (s *Service) ListOutlines(ctx context.Context, projectID, ownerID string) ([]map[string]any, error) {
	if _, err := s.projectForOwner(ctx, projectID, ownerID); err != nil {
		return nil, err
	}
	outlines, err := s.store.ListOutlines(ctx, projectID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(outlines))
	for _, outline := range outlines {
		items = append(items, outlinePayload(outline))
	}
	return items, nil
}

func (s *Service) UpdateOutline(ctx context.Context, outlineID, projectID, ownerID string, input OutlineInput) (map[string]any, error) {
	if _, err := s.projectForOwner(ctx, projectID, ownerID); err != nil {
		return nil, err
	}
	outline := store.Outline{
		ID:          outlineID,
		ProjectID:   projectID,
		Position:    input.Position,
		Title:       strings.TrimSpace(input.Title),
		Summary:     strings.TrimSpace(input.Summary),
		FromChapter: input.FromChapter,
		ToChapter:   input.ToChapter,
	}
	if err := s.store.UpdateOutline(ctx, outline); err != nil {
		return nil, err
	}
	return outlinePayload(outline), nil
}

func (s *Service) DeleteOutline(ctx context.Context, outlineID, projectID, ownerID string) error {
	if _, err := s.projectForOwner(ctx, projectID, ownerID); err != nil {
		return err
	}
	return s.store.DeleteOutline(ctx, outlineID)
}

func (s *Service) CreateTerm(ctx context.Context, projectID, ownerID string, input TermInput) (map[string]any, error) {
	if _, err := s.projectForOwner(ctx, projectID, ownerID); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}
	term := store.Term{
		ID:          util.NewID("trm"),
		ProjectID:   projectID,
		Name:        name,
		Description: strings.TrimSpace(input.Description),
	}
	if err := s.store.CreateTerm(ctx, term); err != nil {
		return nil, err
	}
	s.indexTerm(term, ownerID)
	return termPayload(term), nil
}

func (s *Service) ListTerms(ctx context.Context, projectID, ownerID string) ([]map[string]any, error) {
	if _, err := s.projectForOwner(ctx, projectID, ownerID); err != nil {
		return nil, err
	}
	terms, err := s.store.ListTerms(ctx, projectID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(terms))
	for _, term := range terms {
		items = append(items, termPayload(term))
	}
	return items, nil
}

func (s *Service) UpdateTerm(ctx context.Context, termID, projectID, ownerID string, input TermInput) (map[string]any, error) {
	if _, err := s.projectForOwner(ctx, projectID, ownerID); err != nil {
		return nil, err
	}
	term := store.Term{
		ID:          termID,
		ProjectID:   projectID,
		Name:        strings.TrimSpace(input.Name),
		Description: strings.TrimSpace(input.Description),
	}
	if err := s.store.UpdateTerm(ctx, term); err != nil {
		return nil, err
	}
	s.indexTerm(term, ownerID)
	return termPayload(term), nil
}

func (s *Service) DeleteTerm(ctx context.Context, termID, projectID, ownerID string) error {
	if _, err := s.projectForOwner(ctx, projectID, ownerID); err != nil {
		return err
	}
	if err := s.store.DeleteTerm(ctx, termID); err != nil {
		return err
	}
	if s.search != nil {
		s.search.DeleteTerm(termID)
	}
	return nil
}

func (s *Service) recordChapterVersion(ctx context.Context, chapter store.Chapter, source, createdBy string) error {
	count, err := s.store.CountChapterVersions(ctx, chapter.ID)
	if err != nil {
		return err
	}
	return s.store.InsertChapterVersion(ctx, store.ChapterVersion{
		ID:            util.NewID("ver"),
		ChapterID:     chapter.ID,
		VersionNumber: count + 1,
		Title:         chapter.Title,
		Content:       chapter.Content,
		WordCount:     chapter.WordCount,
		Source:        source,
		CreatedBy:     createdBy,
	})
}

func (s *Service) commitChapter(projectID string, chapter store.Chapter, author, message string) {
	if _, err := s.archive.CommitChapter(projectID, chapter, author, message); err != nil {
		log.Printf("archive: commit chapter %s failed: %v", chapter.ID, err)
	}
}

func (s *Service) indexChapter(chapter store.Chapter, ownerID string) {
	if s.search == nil {
		return
	}
	s.search.IndexChapter(search.ChapterRecord{
		ID:            chapter.ID,
		Title:         chapter.Title,
		Content:       chapter.Content,
		ProjectID:     chapter.ProjectID,
		OwnerID:       ownerID,
		Status:        chapter.Status,
		ChapterNumber: chapter.ChapterNumber,
	})
}

func (s *Service) indexCharacter(character store.Character, ownerID string) {
	if s.search == nil {
		return
	}
	s.search.IndexCharacter(search.CharacterRecord{
		ID:          character.ID,
		Name:        character.Name,
		Description: character.Description,
		ProjectID:   character.ProjectID,
		OwnerID:     ownerID,
	})
}

func (s *Service) indexTerm(term store.Term, ownerID string) {
	if s.search == nil {
		return
	}
	s.search.IndexTerm(search.TermRecord{
		ID:          term.ID,
		Name:        term.Name,
		Description: term.Description,
		ProjectID:   term.ProjectID,
		OwnerID:     ownerID,
	})
}

func projectPayload(project store.Project) map[string]any {
	return map[string]any{
		"id":          project.ID,
		"title":       project.Title,
		"description": project.Description,
		"genre":       project.Genre,
		"createdAt":   formatTime(project.CreatedAt),
		"updatedAt":   formatTime(project.UpdatedAt),
	}
}

func chapterPayload(chapter store.Chapter, preview bool) map[string]any {
	payload := map[string]any{
		"id":            chapter.ID,
		"projectId":     chapter.ProjectID,
		"chapterNumber": chapter.ChapterNumber,
		"title":         chapter.Title,
		"wordCount":     chapter.WordCount,
		"status":        chapter.Status,
		"createdAt":     formatTime(chapter.CreatedAt),
		"updatedAt":     formatTime(chapter.UpdatedAt),
	}
	if preview {
		payload["contentPreview"] = previewOf(chapter.Content, 200)
	} else {
		payload["content"] = chapter.Content
	}
	return payload
}

func characterPayload(character store.Character) map[string]any {
	aliases := character.Aliases
	if aliases == nil {
		aliases = []string{}
	}
	return map[string]any{
		"id":          character.ID,
		"projectId":   character.ProjectID,
		"name":        character.Name,
		"aliases":     aliases,
		"description": character.Description,
	}
}

func outlinePayload(outline store.Outline) map[string]any {
	return map[string]any{
		"id":          outline.ID,
		"projectId":   outline.ProjectID,
		"position":    outline.Position,
		"title":       outline.Title,
		"summary":     outline.Summary,
		"fromChapter": outline.FromChapter,
		"toChapter":   outline.ToChapter,
	}
}

func termPayload(term store.Term) map[string]any {
	return map[string]any{
		"id":          term.ID,
		"projectId":   term.ProjectID,
		"name":        term.Name,
		"description": term.Description,
	}
}

func wordCount(content string) int {
	return len(strings.Fields(content))
}

func previewOf(content string, limit int) string {
	runes := []rune(content)
	if len(runes) <= limit {
		return content
	}
	return string(runes[:limit]) + "..."
}

func orBlank(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
