package detect

import (
	"context"
	"errors"
	"testing"

	"inkwell/api/internal/store"
)

func snap(id, entityID, prop, value, chapterID string, confidence float64) store.EntitySnapshot {
	return store.EntitySnapshot{
		ID:              id,
		EntityType:      "character",
		EntityID:        entityID,
		EntityName:      "Mara",
		PropertyName:    prop,
		PropertyValue:   value,
		SourceChapterID: chapterID,
		Confidence:      confidence,
	}
}

var chapterOrder = map[string]int{"ch1": 1, "ch2": 2, "ch3": 3}

func TestDetectGenderContradiction(t *testing.T) {
	d := New(nil)
	conflicts, err := d.Detect(context.Background(), "prj", []store.EntitySnapshot{
		snap("s1", "mara", "gender", "female", "ch1", 0.9),
		snap("s2", "mara", "gender", "male", "ch3", 0.8),
	}, chapterOrder)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(conflicts) != 1 {
		t.Fatalf("expected 1 conflict, got %d", len(conflicts))
	}
	c := conflicts[0]
	if c.ConflictType != "contradiction" {
		t.Errorf("expected contradiction, got %s", c.ConflictType)
	}
	if c.Severity != "critical" {
		t.Errorf("mutually exclusive values must be critical, got %s", c.Severity)
	}
	if c.Confidence != 0.8 {
		t.Errorf("confidence must be the pair minimum, got %v", c.Confidence)
	}
	if c.PairKey != "s1:s2" {
		t.Errorf("unexpected pair key %s", c.PairKey)
	}
}

func TestDetectSkipsLowConfidence(t *testing.T) {
	d := New(nil)
	conflicts, err := d.Detect(context.Background(), "prj", []store.EntitySnapshot{
		snap("s1", "mara", "gender", "female", "ch1", 0.9),
		snap("s2", "mara", "gender", "male", "ch2", 0.5),
	}, chapterOrder)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(conflicts) != 0 {
		t.Fatalf("snapshots below the confidence floor must be ignored, got %d conflicts", len(conflicts))
	}
}

func TestDetectSkipsIgnoredAndUncheckableProps(t *testing.T) {
	d := New(nil)
	conflicts, err := d.Detect(context.Background(), "prj", []store.EntitySnapshot{
		snap("s1", "mara", "mood", "angry", "ch1", 0.9),
		snap("s2", "mara", "mood", "calm", "ch2", 0.9),
		snap("s3", "mara", "favorite_color", "red", "ch1", 0.9),
		snap("s4", "mara", "favorite_color", "blue", "ch2", 0.9),
	}, chapterOrder)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(conflicts) != 0 {
		t.Fatalf("expected no conflicts for ignored/unchecked properties, got %d", len(conflicts))
	}
}

func TestDetectAgeMayGrow(t *testing.T) {
	d := New(nil)
	conflicts, err := d.Detect(context.Background(), "prj", []store.EntitySnapshot{
		snap("s1", "mara", "age", "17", "ch1", 0.9),
		snap("s2", "mara", "age", "19", "ch3", 0.9),
	}, chapterOrder)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(conflicts) != 0 {
		t.Fatalf("age increasing with chapter order is not a conflict, got %d", len(conflicts))
	}
}

func TestDetectAgeShrinkBeyondTolerance(t *testing.T) {
	d := New(nil)
	conflicts, err := d.Detect(context.Background(), "prj", []store.EntitySnapshot{
		snap("s1", "mara", "age", "25", "ch1", 0.9),
		snap("s2", "mara", "age", "18", "ch3", 0.9),
	}, chapterOrder)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(conflicts) != 1 {
		t.Fatalf("expected 1 conflict for shrinking age, got %d", len(conflicts))
	}
	if conflicts[0].Severity != "warning" {
		t.Errorf("numeric inconsistency is a warning, got %s", conflicts[0].Severity)
	}
	if conflicts[0].ConflictType != "inconsistency" {
		t.Errorf("expected inconsistency, got %s", conflicts[0].ConflictType)
	}
}

func TestDetectHeightWithinTolerance(t *testing.T) {
	d := New(nil)
	conflicts, err := d.Detect(context.Background(), "prj", []store.EntitySnapshot{
		snap("s1", "mara", "height", "180 cm", "ch1", 0.9),
		snap("s2", "mara", "height", "175 cm", "ch2", 0.9),
	}, chapterOrder)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	// 5/180 < 10% relative tolerance.
	if len(conflicts) != 0 {
		t.Fatalf("expected no conflict inside tolerance, got %d", len(conflicts))
	}
}

func TestDetectDedupesEqualValues(t *testing.T) {
	d := New(nil)
	conflicts, err := d.Detect(context.Background(), "prj", []store.EntitySnapshot{
		snap("s1", "mara", "gender", "Female", "ch1", 0.9),
		snap("s2", "mara", "gender", "female.", "ch2", 0.9),
		snap("s3", "mara", "gender", "male", "ch3", 0.9),
	}, chapterOrder)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	// s1 and s2 normalize to the same value; only the s1/s3 pair remains.
	if len(conflicts) != 1 {
		t.Fatalf("expected 1 conflict after value dedupe, got %d", len(conflicts))
	}
	if conflicts[0].SnapshotAID != "s1" || conflicts[0].SnapshotBID != "s3" {
		t.Errorf("unexpected pair: %s vs %s", conflicts[0].SnapshotAID, conflicts[0].SnapshotBID)
	}
}

func TestDetectSimilarValuesNoConflict(t *testing.T) {
	d := New(nil)
	conflicts, err := d.Detect(context.Background(), "prj", []store.EntitySnapshot{
		snap("s1", "mara", "title", "Captain of the Guard", "ch1", 0.9),
		snap("s2", "mara", "title", "Guard Captain", "ch2", 0.9),
	}, chapterOrder)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(conflicts) != 0 {
		t.Fatalf("similar non-exclusive titles must not conflict, got %d", len(conflicts))
	}
}

type fakeVerifier struct {
	ok         bool
	suggestion string
	err        error
	calls      int
}

func (f *fakeVerifier) VerifyConflict(ctx context.Context, a, b store.EntitySnapshot) (bool, string, error) {
	f.calls++
	return f.ok, f.suggestion, f.err
}

func TestDetectVerifierDropsCandidate(t *testing.T) {
	v := &fakeVerifier{ok: false}
	d := New(v)
	conflicts, err := d.Detect(context.Background(), "prj", []store.EntitySnapshot{
		snap("s1", "mara", "faction", "iron legion", "ch1", 0.9),
		snap("s2", "mara", "faction", "sea wardens", "ch2", 0.9),
	}, chapterOrder)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if v.calls != 1 {
		t.Fatalf("verifier should be consulted once, got %d", v.calls)
	}
	if len(conflicts) != 0 {
		t.Fatalf("verifier rejection must drop the candidate, got %d", len(conflicts))
	}
}

func TestDetectVerifierAttachesSuggestion(t *testing.T) {
	v := &fakeVerifier{ok: true, suggestion: "check chapter 3"}
	d := New(v)
	conflicts, err := d.Detect(context.Background(), "prj", []store.EntitySnapshot{
		snap("s1", "mara", "faction", "iron legion", "ch1", 0.9),
		snap("s2", "mara", "faction", "sea wardens", "ch2", 0.9),
	}, chapterOrder)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(conflicts) != 1 {
		t.Fatalf("expected 1 conflict, got %d", len(conflicts))
	}
	if conflicts[0].AISuggestion == nil || *conflicts[0].AISuggestion != "check chapter 3" {
		t.Errorf("suggestion not attached: %+v", conflicts[0].AISuggestion)
	}
}

func TestDetectVerifierErrorKeepsRuleResult(t *testing.T) {
	v := &fakeVerifier{err: errors.New("service down")}
	d := New(v)
	conflicts, err := d.Detect(context.Background(), "prj", []store.EntitySnapshot{
		snap("s1", "mara", "faction", "iron legion", "ch1", 0.9),
		snap("s2", "mara", "faction", "sea wardens", "ch2", 0.9),
	}, chapterOrder)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(conflicts) != 1 {
		t.Fatalf("verifier failure must not drop the rule result, got %d", len(conflicts))
	}
}

func TestDetectExclusivePairSkipsVerifier(t *testing.T) {
	v := &fakeVerifier{ok: false}
	d := New(v)
	conflicts, err := d.Detect(context.Background(), "prj", []store.EntitySnapshot{
		snap("s1", "mara", "gender", "female", "ch1", 0.9),
		snap("s2", "mara", "gender", "male", "ch2", 0.9),
	}, chapterOrder)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if v.calls != 0 {
		t.Fatalf("exclusive values must not be second-guessed, verifier called %d times", v.calls)
	}
	if len(conflicts) != 1 {
		t.Fatalf("expected the exclusive pair to survive, got %d conflicts", len(conflicts))
	}
	if conflicts[0].Severity != "critical" || conflicts[0].ConflictType != "contradiction" {
		t.Errorf("exclusive pair = %s/%s, want critical contradiction", conflicts[0].Severity, conflicts[0].ConflictType)
	}
}

func TestPairKeyIsOrderIndependent(t *testing.T) {
	if PairKey("b", "a") != PairKey("a", "b") {
		t.Fatal("pair key must be unordered")
	}
}
