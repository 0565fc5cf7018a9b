package extract

import (
	"context"
	"errors"
	"testing"

	"inkwell/api/internal/ai"
	"inkwell/api/internal/store"
)

type fakeAI struct {
	reply string
	err   error
	calls int
}

func (f *fakeAI) Complete(ctx context.Context, system, user string) (ai.Result, error) {
	f.calls++
	if f.err != nil {
		return ai.Result{}, f.err
	}
	return ai.Result{Text: f.reply, Model: "test-model", PromptTokens: 10, CompletionTokens: 5}, nil
}

func (f *fakeAI) Model() string { return "test-model" }

func chapter(content string) store.Chapter {
	return store.Chapter{
		ID:            "chp_1",
		ProjectID:     "prj_1",
		ChapterNumber: 3,
		Title:         "The Crossing",
		Content:       content,
	}
}

var mara = store.Character{ID: "chr_mara", Name: "Mara", Aliases: []string{"the Gray Fox"}}

func findSnapshot(snapshots []store.EntitySnapshot, property string) (store.EntitySnapshot, bool) {
	for _, s := range snapshots {
		if s.PropertyName == property {
			return s, true
		}
	}
	return store.EntitySnapshot{}, false
}

func TestExtractRulesAge(t *testing.T) {
	e := New(nil)
	snapshots, _, err := e.Extract(context.Background(), chapter("Mara was 17 years old when the war began."), []store.Character{mara}, false)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	snap, ok := findSnapshot(snapshots, "age")
	if !ok {
		t.Fatal("no age snapshot extracted")
	}
	if snap.PropertyValue != "17" {
		t.Errorf("age = %q, want 17", snap.PropertyValue)
	}
	if snap.Confidence != 0.8 {
		t.Errorf("exact age should score 0.8, got %v", snap.Confidence)
	}
	if snap.EntityID != "chr_mara" {
		t.Errorf("name should resolve to the known character, got %s", snap.EntityID)
	}
	if snap.ExtractionVersion != Version {
		t.Errorf("snapshot not stamped with extractor version: %s", snap.ExtractionVersion)
	}
}

func TestExtractRulesFuzzyAgeLowersConfidence(t *testing.T) {
	e := New(nil)
	snapshots, _, err := e.Extract(context.Background(), chapter("Mara was about 25 years old."), []store.Character{mara}, false)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	snap, ok := findSnapshot(snapshots, "age")
	if !ok {
		t.Fatal("no age snapshot extracted")
	}
	if snap.Confidence != 0.5 {
		t.Errorf("fuzzy age qualifier should score 0.5, got %v", snap.Confidence)
	}
}

func TestExtractRulesGender(t *testing.T) {
	e := New(nil)
	snapshots, _, err := e.Extract(context.Background(), chapter("Everyone knew Mara was a woman of her word."), []store.Character{mara}, false)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	snap, ok := findSnapshot(snapshots, "gender")
	if !ok {
		t.Fatal("no gender snapshot extracted")
	}
	if snap.PropertyValue != "female" {
		t.Errorf("gender = %q, want female", snap.PropertyValue)
	}
	if snap.Confidence != 0.7 {
		t.Errorf("gender rule should score 0.7, got %v", snap.Confidence)
	}
}

func TestExtractRulesLocationAndWorldRule(t *testing.T) {
	e := New(nil)
	content := "They reached Ashford Village by dusk. No one can cross the river after nightfall."
	snapshots, _, err := e.Extract(context.Background(), chapter(content), nil, false)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	loc, ok := findSnapshot(snapshots, "category")
	if !ok {
		t.Fatal("no location snapshot extracted")
	}
	if loc.EntityType != "location" || loc.EntityName != "Ashford Village" {
		t.Errorf("unexpected location snapshot: %+v", loc)
	}
	if loc.Confidence != 0.6 {
		t.Errorf("location rule should score 0.6, got %v", loc.Confidence)
	}

	rule, ok := findSnapshot(snapshots, "rule")
	if !ok {
		t.Fatal("no world rule snapshot extracted")
	}
	if rule.EntityType != "rule" || rule.Confidence != 0.5 {
		t.Errorf("unexpected rule snapshot: %+v", rule)
	}
}

func TestExtractAIPath(t *testing.T) {
	client := &fakeAI{reply: `[{"entityType":"character","entityName":"the Gray Fox","propertyName":"title","propertyValue":"Captain","quote":"the Gray Fox, their captain","confidence":0.85}]`}
	e := New(client)
	snapshots, usage, err := e.Extract(context.Background(), chapter("..."), []store.Character{mara}, true)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if client.calls != 1 {
		t.Fatalf("AI client should be called once, got %d", client.calls)
	}
	if len(snapshots) != 1 {
		t.Fatalf("expected 1 snapshot, got %d", len(snapshots))
	}
	s := snapshots[0]
	if s.EntityID != "chr_mara" || s.EntityName != "Mara" {
		t.Errorf("alias should resolve to the known character, got %s/%s", s.EntityID, s.EntityName)
	}
	if s.AIModel != "test-model" {
		t.Errorf("snapshot should record the model, got %q", s.AIModel)
	}
	if usage.PromptTokens != 10 || usage.CompletionTokens != 5 {
		t.Errorf("unexpected usage: %+v", usage)
	}
}

func TestExtractAIFailureFallsBackToRules(t *testing.T) {
	client := &fakeAI{err: errors.New("rate limited")}
	e := New(client)
	snapshots, usage, err := e.Extract(context.Background(), chapter("Mara was 17 years old."), []store.Character{mara}, true)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if _, ok := findSnapshot(snapshots, "age"); !ok {
		t.Fatal("rule fallback did not run")
	}
	if usage.Model != "" {
		t.Errorf("rule-only usage should be zero, got %+v", usage)
	}
}

func TestExtractSubstringNameMatch(t *testing.T) {
	long := store.Character{ID: "chr_long", Name: "Aldric Veyne"}
	id, name := matchEntity("character", "Aldric", []store.Character{long})
	if id != "chr_long" || name != "Aldric Veyne" {
		t.Errorf("substring match failed: %s/%s", id, name)
	}

	id, _ = matchEntity("character", "Unknown", nil)
	if id != "character:unknown" {
		t.Errorf("unmatched entity id = %s", id)
	}
}

func TestBatchKey(t *testing.T) {
	a := store.EntitySnapshot{EntityID: "chr_1", PropertyName: "age", SourceChapterID: "chp_1"}
	b := store.EntitySnapshot{ID: "other", EntityID: "chr_1", PropertyName: "age", SourceChapterID: "chp_1"}
	if BatchKey(a) != BatchKey(b) {
		t.Fatal("same entity/property/chapter must share a batch key")
	}
}
