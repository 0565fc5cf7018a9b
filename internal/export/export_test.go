package export

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestTextToHTML(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", ""},
		{"single paragraph", "The river ran high.", "<p>The river ran high.</p>\n"},
		{"two paragraphs", "One.\n\nTwo.", "<p>One.</p>\n<p>Two.</p>\n"},
		{"soft break", "One line\nnext line.", "<p>One line<br>\nnext line.</p>\n"},
		{"escapes markup", "a < b & c", "<p>a &lt; b &amp; c</p>\n"},
		{"windows newlines", "One.\r\n\r\nTwo.", "<p>One.</p>\n<p>Two.</p>\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TextToHTML(tt.input); got != tt.expected {
				t.Errorf("TextToHTML(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Hello World", "Hello-World"},
		{"My Novel v1.2", "My-Novel-v12"},
		{"Special!@#$%Chars", "SpecialChars"},
		{"", "document"},
		{"Very Long Title That Exceeds Fifty Characters Limit", "Very-Long-Title-That-Exceeds-Fifty-Characters-Limi"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := sanitizeFilename(tt.input)
			if result != tt.expected {
				t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestPercentEncodeForDataURL(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"hello world", "hello%20world"},       // Spaces encoded as %20, not +
		{"test+sign", "test%2Bsign"},           // + signs are encoded
		{"special<>", "special%3C%3E"},         // Special chars encoded
		{"normal-text.txt", "normal-text.txt"}, // Unreserved chars pass through
		{"café", "caf%C3%A9"},             // Multibyte runes encode per UTF-8 byte
		{"", ""},                               // Empty string
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := percentEncodeForDataURL(tt.input)
			if result != tt.expected {
				t.Errorf("percentEncodeForDataURL(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestRenderManuscriptHTML(t *testing.T) {
	data := TemplateData{
		Title:       "River Saga",
		Author:      "A. Writer",
		Description: "A story about a river.",
		GeneratedAt: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		Chapters: []TemplateChapter{
			{Number: 1, Title: "The Crossing", ContentHTML: "<p>The river ran high.</p>"},
		},
	}

	html, err := RenderManuscriptHTML(data)
	if err != nil {
		t.Fatalf("RenderManuscriptHTML() error = %v", err)
	}

	if !strings.Contains(html, "River Saga") {
		t.Error("HTML missing title")
	}
	if !strings.Contains(html, "A. Writer") {
		t.Error("HTML missing author")
	}
	if !strings.Contains(html, "Chapter 1") {
		t.Error("HTML missing chapter heading")
	}
	// Chapter content must land unescaped.
	if !strings.Contains(html, "<p>The river ran high.</p>") {
		t.Error("chapter HTML should be rendered raw")
	}
	if strings.Contains(html, "&lt;p&gt;") {
		t.Error("chapter HTML was escaped")
	}
}

type fakeExportStore struct {
	project  ProjectInfo
	chapters []ChapterInfo
	err      error
}

func (f *fakeExportStore) GetProjectInfo(ctx context.Context, projectID string) (ProjectInfo, error) {
	return f.project, f.err
}

func (f *fakeExportStore) ListChapterInfo(ctx context.Context, projectID string) ([]ChapterInfo, error) {
	return f.chapters, f.err
}

func TestExportNoChapters(t *testing.T) {
	svc := NewService(&fakeExportStore{project: ProjectInfo{ID: "prj", Title: "Empty"}})
	_, err := svc.Export(context.Background(), Request{ProjectID: "prj", Format: FormatPDF})
	if !errors.Is(err, ErrContentUnavailable) {
		t.Fatalf("expected ErrContentUnavailable, got %v", err)
	}
}

func TestExportUnsupportedFormat(t *testing.T) {
	svc := NewService(&fakeExportStore{
		project:  ProjectInfo{ID: "prj", Title: "Saga"},
		chapters: []ChapterInfo{{ID: "c1", ChapterNumber: 1, Title: "One", Content: "text"}},
	})
	_, err := svc.Export(context.Background(), Request{ProjectID: "prj", Format: Format("epub")})
	if err == nil || !strings.Contains(err.Error(), "unsupported format") {
		t.Fatalf("expected unsupported format error, got %v", err)
	}
}

func TestFilterChapters(t *testing.T) {
	chapters := []ChapterInfo{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	got := filterChapters(chapters, []string{"c", "a"})
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "c" {
		t.Fatalf("unexpected filter result: %+v", got)
	}
	if len(filterChapters(chapters, nil)) != 3 {
		t.Fatal("empty filter must keep all chapters")
	}
}
