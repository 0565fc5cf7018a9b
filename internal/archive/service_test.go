package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"inkwell/api/internal/store"
)

func testChapter(id, title, content string) store.Chapter {
	return store.Chapter{ID: id, Title: title, Content: content}
}

func TestProjectArchiveLifecycle(t *testing.T) {
	tempDir := t.TempDir()
	svc := New(tempDir)

	if err := svc.EnsureProjectRepo("prj-1", "River Saga", "Avery"); err != nil {
		t.Fatalf("EnsureProjectRepo() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(tempDir, "prj-1")); err != nil {
		t.Fatalf("repo directory missing: %v", err)
	}
	// Idempotent.
	if err := svc.EnsureProjectRepo("prj-1", "River Saga", "Avery"); err != nil {
		t.Fatalf("second EnsureProjectRepo() error = %v", err)
	}

	commit, err := svc.CommitChapter("prj-1", testChapter("chp-1", "The Crossing", "The river ran high."), "Avery", "Save chapter 1")
	if err != nil {
		t.Fatalf("CommitChapter() error = %v", err)
	}
	if commit.Hash == "" {
		t.Fatal("expected commit hash")
	}

	_, err = svc.CommitChapter("prj-1", testChapter("chp-1", "The Crossing", "The river ran higher still."), "Avery", "Revise chapter 1")
	if err != nil {
		t.Fatalf("second CommitChapter() error = %v", err)
	}

	history, err := svc.History("prj-1", "chp-1", 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 chapter commits, got %d", len(history))
	}

	content, err := svc.ChapterAtCommit("prj-1", "chp-1", commit.Hash)
	if err != nil {
		t.Fatalf("ChapterAtCommit() error = %v", err)
	}
	if !strings.Contains(content, "The river ran high.") {
		t.Fatalf("unexpected content at first commit: %q", content)
	}
}

func TestHistoryFiltersByChapter(t *testing.T) {
	tempDir := t.TempDir()
	svc := New(tempDir)

	if err := svc.EnsureProjectRepo("prj-1", "River Saga", "Avery"); err != nil {
		t.Fatalf("EnsureProjectRepo() error = %v", err)
	}
	if _, err := svc.CommitChapter("prj-1", testChapter("chp-1", "One", "a"), "Avery", "Save 1"); err != nil {
		t.Fatalf("CommitChapter() error = %v", err)
	}
	if _, err := svc.CommitChapter("prj-1", testChapter("chp-2", "Two", "b"), "Avery", "Save 2"); err != nil {
		t.Fatalf("CommitChapter() error = %v", err)
	}

	history, err := svc.History("prj-1", "chp-2", 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 commit touching chp-2, got %d", len(history))
	}

	all, err := svc.History("prj-1", "", 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 commits total (init + 2 saves), got %d", len(all))
	}
}

func TestRemoveChapter(t *testing.T) {
	tempDir := t.TempDir()
	svc := New(tempDir)

	if err := svc.EnsureProjectRepo("prj-1", "River Saga", "Avery"); err != nil {
		t.Fatalf("EnsureProjectRepo() error = %v", err)
	}
	if _, err := svc.CommitChapter("prj-1", testChapter("chp-1", "One", "a"), "Avery", "Save 1"); err != nil {
		t.Fatalf("CommitChapter() error = %v", err)
	}
	if err := svc.RemoveChapter("prj-1", "chp-1", "Avery"); err != nil {
		t.Fatalf("RemoveChapter() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(tempDir, "prj-1", "chapters", "chp-1.md")); !os.IsNotExist(err) {
		t.Fatalf("chapter file should be gone, stat err = %v", err)
	}
}

func TestConcurrentChapterCommits(t *testing.T) {
	tempDir := t.TempDir()
	svc := New(tempDir)

	if err := svc.EnsureProjectRepo("prj-1", "River Saga", "Avery"); err != nil {
		t.Fatalf("EnsureProjectRepo() error = %v", err)
	}

	const writers = 12
	var wg sync.WaitGroup
	errCh := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			chapter := testChapter("chp-1", "One", fmt.Sprintf("draft %02d", idx))
			if _, err := svc.CommitChapter("prj-1", chapter, "Avery", fmt.Sprintf("Commit %02d", idx)); err != nil {
				errCh <- err
			}
		}(i)
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		if err != nil {
			t.Fatalf("CommitChapter() concurrent error = %v", err)
		}
	}

	history, err := svc.History("prj-1", "chp-1", 100)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) < writers {
		t.Fatalf("expected at least %d commits, got %d", writers, len(history))
	}
}
