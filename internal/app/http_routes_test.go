package app

import (
	"context"
	"database/sql"
	"net/http"
	"testing"
	"time"

	"inkwell/api/internal/store"
)

// authedHandler builds a handler plus a live bearer token backed by the
// given fake store.
func authedHandler(t *testing.T, fs *fakeStore) (http.Handler, string) {
	t.Helper()
	base := userBackedStore()
	fs.CreateUserFn = base.CreateUserFn
	fs.GetUserByEmailFn = base.GetUserByEmailFn
	fs.GetUserByIDFn = base.GetUserByIDFn

	svc, _ := newTestService(fs)
	handler := NewHTTPServer(svc, "*").Handler()
	token, _ := signUp(t, handler, "mara@example.com")
	return handler, token
}

func TestProjectRoutes(t *testing.T) {
	projects := map[string]store.Project{}
	fs := &fakeStore{
		CreateProjectFn: func(ctx context.Context, project store.Project) error {
			projects[project.ID] = project
			return nil
		},
		GetProjectFn: func(ctx context.Context, projectID, ownerID string) (store.Project, error) {
			project, ok := projects[projectID]
			if !ok || project.OwnerID != ownerID {
				return store.Project{}, sql.ErrNoRows
			}
			return project, nil
		},
		ListProjectsFn: func(ctx context.Context, ownerID string) ([]store.Project, error) {
			var out []store.Project
			for _, project := range projects {
				if project.OwnerID == ownerID {
					out = append(out, project)
				}
			}
			return out, nil
		},
	}
	handler, token := authedHandler(t, fs)

	rec, body := doJSON(t, handler, http.MethodPost, "/api/projects", token, map[string]any{
		"title": "The Hollow Crown",
		"genre": "fantasy",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}
	projectID, _ := body["id"].(string)
	if projectID == "" {
		t.Fatalf("create returned no id")
	}

	rec, body = doJSON(t, handler, http.MethodGet, "/api/projects", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	items, _ := body["projects"].([]any)
	if len(items) != 1 {
		t.Errorf("listed %d projects", len(items))
	}

	rec, _ = doJSON(t, handler, http.MethodGet, "/api/projects/"+projectID, token, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("get status = %d", rec.Code)
	}

	rec, body = doJSON(t, handler, http.MethodGet, "/api/projects/prj_unknown", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown project status = %d", rec.Code)
	}
	if body["code"] != "NOT_FOUND" {
		t.Errorf("error code = %v", body["code"])
	}

	rec, _ = doJSON(t, handler, http.MethodPost, "/api/projects", token, map[string]any{"title": ""})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("empty title status = %d", rec.Code)
	}

	rec, _ = doJSON(t, handler, http.MethodPatch, "/api/projects", token, nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("patch status = %d", rec.Code)
	}
}

func TestSearchRouteValidatesLimit(t *testing.T) {
	handler, token := authedHandler(t, &fakeStore{})

	rec, body := doJSON(t, handler, http.MethodGet, "/api/search?q=gate&limit=ten", token, nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", rec.Code)
	}
	if body["code"] != "VALIDATION_ERROR" {
		t.Errorf("error code = %v", body["code"])
	}
}

func TestConflictRoutes(t *testing.T) {
	resolved := false
	fs := &fakeStore{
		GetProjectFn: func(ctx context.Context, projectID, ownerID string) (store.Project, error) {
			if projectID == "prj_1" {
				return store.Project{ID: projectID, OwnerID: ownerID}, nil
			}
			return store.Project{}, sql.ErrNoRows
		},
		GetConflictFn: func(ctx context.Context, conflictID string) (store.Conflict, error) {
			if conflictID != "cfl_1" {
				return store.Conflict{}, sql.ErrNoRows
			}
			status := "open"
			if resolved {
				status = "resolved"
			}
			return store.Conflict{ID: conflictID, ProjectID: "prj_1", Status: status}, nil
		},
		GetConflictDetailFn: func(ctx context.Context, conflictID string) (store.ConflictDetail, error) {
			if conflictID != "cfl_1" {
				return store.ConflictDetail{}, sql.ErrNoRows
			}
			return store.ConflictDetail{
				Conflict:           store.Conflict{ID: conflictID, ProjectID: "prj_1", Status: "open", EntityName: "Mara"},
				SnapshotAChapterNo: 1,
				SnapshotBChapterNo: 3,
			}, nil
		},
	}
	fs.ResolveConflictFn = func(ctx context.Context, conflictID, resolution, resolvedBy string, _ time.Time) error {
		resolved = true
		return nil
	}
	handler, token := authedHandler(t, fs)

	rec, body := doJSON(t, handler, http.MethodGet, "/api/conflicts/cfl_1", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("detail status = %d, body %s", rec.Code, rec.Body.String())
	}
	if body["snapshotA"] == nil || body["snapshotB"] == nil {
		t.Errorf("detail missing snapshots: %v", body)
	}

	rec, _ = doJSON(t, handler, http.MethodPost, "/api/conflicts/cfl_1/resolve", token, map[string]any{})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("empty resolution status = %d", rec.Code)
	}

	rec, body = doJSON(t, handler, http.MethodPost, "/api/conflicts/cfl_1/resolve", token, map[string]any{
		"resolution": "Chapter 3 is a flashback",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("resolve status = %d, body %s", rec.Code, rec.Body.String())
	}
	if body["status"] != "resolved" {
		t.Errorf("status = %v", body["status"])
	}

	rec, _ = doJSON(t, handler, http.MethodGet, "/api/conflicts/cfl_missing", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing conflict status = %d", rec.Code)
	}
}

func TestVocabularyRoutes(t *testing.T) {
	words := map[string]store.VocabularyWord{}
	fs := &fakeStore{
		InsertVocabularyWordFn: func(ctx context.Context, word store.VocabularyWord) error {
			words[word.ID] = word
			return nil
		},
		ListVocabularyWordsFn: func(ctx context.Context) ([]store.VocabularyWord, error) {
			var out []store.VocabularyWord
			for _, word := range words {
				out = append(out, word)
			}
			return out, nil
		},
	}
	handler, token := authedHandler(t, fs)

	rec, body := doJSON(t, handler, http.MethodPost, "/api/vocabulary", token, map[string]any{
		"word":         "Utterly",
		"alternatives": []string{"completely"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}
	if body["word"] != "utterly" {
		t.Errorf("word was not lowercased: %v", body["word"])
	}
	if body["category"] != "warning" || body["severity"] != "medium" {
		t.Errorf("defaults not applied: %v", body)
	}

	rec, body = doJSON(t, handler, http.MethodGet, "/api/vocabulary", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	items, _ := body["words"].([]any)
	if len(items) != 1 {
		t.Errorf("listed %d words", len(items))
	}

	rec, _ = doJSON(t, handler, http.MethodDelete, "/api/vocabulary/voc_missing", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing word status = %d", rec.Code)
	}
}

func TestChapterHistoryRoute(t *testing.T) {
	fs := &fakeStore{
		GetProjectFn: func(ctx context.Context, projectID, ownerID string) (store.Project, error) {
			return store.Project{ID: projectID, OwnerID: ownerID}, nil
		},
		GetChapterFn: func(ctx context.Context, chapterID string) (store.Chapter, error) {
			return store.Chapter{ID: chapterID, ProjectID: "prj_1", Title: "The Gate"}, nil
		},
	}
	handler, token := authedHandler(t, fs)

	rec, body := doJSON(t, handler, http.MethodGet, "/api/chapters/chp_1/history", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("history status = %d, body %s", rec.Code, rec.Body.String())
	}
	if _, ok := body["commits"]; !ok {
		t.Errorf("history body = %v", body)
	}

	rec, body = doJSON(t, handler, http.MethodGet, "/api/chapters/chp_1/history/abc123", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("at-commit status = %d", rec.Code)
	}
	if body["hash"] != "abc123" {
		t.Errorf("at-commit body = %v", body)
	}
}
