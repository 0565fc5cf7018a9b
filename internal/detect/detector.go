// Package detect finds contradictions between entity snapshots.
package detect

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"

	"inkwell/api/internal/store"
	"inkwell/api/internal/util"
)

// Properties objective enough to compare across chapters.
var checkableProps = map[string]struct{}{
	"gender":    {},
	"species":   {},
	"bloodline": {},
	"age":       {},
	"height":    {},
	"weight":    {},
	"identity":  {},
	"title":     {},
	"faction":   {},
}

// Subjective or transient properties that never produce conflicts.
var ignoreProps = map[string]struct{}{
	"description": {},
	"personality": {},
	"appearance":  {},
	"ability":     {},
	"status":      {},
	"location":    {},
	"mood":        {},
	"thought":     {},
	"attitude":    {},
}

// Numeric properties compared with tolerances instead of string similarity.
var numericProps = map[string]struct{}{
	"age":    {},
	"height": {},
	"weight": {},
	"level":  {},
}

// Value sets where any two distinct members contradict each other.
var mutuallyExclusive = [][]string{
	{"male", "female"},
	{"dead", "alive"},
	{"good", "evil"},
	{"enemy", "ally"},
}

const (
	minSnapshotConfidence = 0.75
	sameValueThreshold    = 0.7
	looseMatchThreshold   = 0.4
	ageTolerance          = 2.0
	numericTolerance      = 0.10
)

// Verifier double-checks a candidate conflict, typically against an AI
// service. ok=false drops the candidate; suggestion is attached when kept.
type Verifier interface {
	VerifyConflict(ctx context.Context, a, b store.EntitySnapshot) (ok bool, suggestion string, err error)
}

type Detector struct {
	verifier Verifier
}

// New creates a detector. verifier may be nil for rule-only detection.
func New(verifier Verifier) *Detector {
	return &Detector{verifier: verifier}
}

// Detect compares snapshots pairwise within each entity/property group and
// returns candidate conflicts. chapterNumbers orders snapshots by narrative
// position; snapshots from unknown chapters sort last.
func (d *Detector) Detect(ctx context.Context, projectID string, snapshots []store.EntitySnapshot, chapterNumbers map[string]int) ([]store.Conflict, error) {
	groups := groupSnapshots(snapshots)

	var conflicts []store.Conflict
	for _, group := range groups {
		sort.SliceStable(group, func(i, j int) bool {
			return chapterNumber(chapterNumbers, group[i]) < chapterNumber(chapterNumbers, group[j])
		})
		group = dedupeValues(group)

		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				conflict, found, err := d.compare(ctx, projectID, group[i], group[j], chapterNumbers)
				if err != nil {
					return nil, err
				}
				if found {
					conflicts = append(conflicts, conflict)
				}
			}
		}
	}
	return conflicts, nil
}

// compare decides whether two snapshots of the same property contradict.
// Exclusivity is checked before the similarity shortcuts: "male" is a
// substring of "female", so containment scores must not mask that pair.
func (d *Detector) compare(ctx context.Context, projectID string, a, b store.EntitySnapshot, chapterNumbers map[string]int) (store.Conflict, bool, error) {
	if isMutuallyExclusive(a.PropertyValue, b.PropertyValue) {
		return d.build(ctx, projectID, a, b, true)
	}

	sim := Similarity(a.PropertyValue, b.PropertyValue)
	if sim > sameValueThreshold {
		return store.Conflict{}, false, nil
	}

	if _, numeric := numericProps[a.PropertyName]; numeric {
		if compatible, decided := numericCompatible(a, b, chapterNumbers); decided {
			if compatible {
				return store.Conflict{}, false, nil
			}
			return d.build(ctx, projectID, a, b, false)
		}
	}

	if sim > looseMatchThreshold {
		return store.Conflict{}, false, nil
	}

	return d.build(ctx, projectID, a, b, false)
}

func (d *Detector) build(ctx context.Context, projectID string, a, b store.EntitySnapshot, exclusive bool) (store.Conflict, bool, error) {
	var suggestion *string
	// Mutually exclusive values are contradictions by definition; only the
	// fuzzier remaining candidates go through verification.
	if d.verifier != nil && !exclusive {
		ok, hint, err := d.verifier.VerifyConflict(ctx, a, b)
		if err != nil {
			// Verification is best-effort; keep the rule-based result.
			log.Printf("detect: verify conflict for %s.%s: %v", a.EntityName, a.PropertyName, err)
		} else if !ok {
			return store.Conflict{}, false, nil
		} else if hint != "" {
			suggestion = &hint
		}
	}

	conflictType := "inconsistency"
	severity := "warning"
	if exclusive {
		conflictType = "contradiction"
		severity = "critical"
	}

	return store.Conflict{
		ID:                 util.NewID("cfl"),
		ProjectID:          projectID,
		EntityType:         a.EntityType,
		EntityID:           a.EntityID,
		EntityName:         a.EntityName,
		PropertyName:       a.PropertyName,
		SnapshotAID:        a.ID,
		SnapshotAValue:     a.PropertyValue,
		SnapshotAChapterID: a.SourceChapterID,
		SnapshotBID:        b.ID,
		SnapshotBValue:     b.PropertyValue,
		SnapshotBChapterID: b.SourceChapterID,
		ConflictType:       conflictType,
		Severity:           severity,
		Status:             "detected",
		Confidence:         math.Min(a.Confidence, b.Confidence),
		AISuggestion:       suggestion,
		PairKey:            PairKey(a.ID, b.ID),
	}, true, nil
}

// numericCompatible compares numeric property values. The second return is
// false when either value has no parseable number, in which case the caller
// falls back to string comparison.
func numericCompatible(a, b store.EntitySnapshot, chapterNumbers map[string]int) (compatible, decided bool) {
	na, okA := parseNumber(a.PropertyValue)
	nb, okB := parseNumber(b.PropertyValue)
	if !okA || !okB {
		return false, false
	}

	if a.PropertyName == "age" {
		// Characters age as the story advances; only shrinking ages beyond
		// tolerance are contradictions.
		earlier, later := na, nb
		if chapterNumber(chapterNumbers, a) > chapterNumber(chapterNumbers, b) {
			earlier, later = nb, na
		}
		if later >= earlier {
			return true, true
		}
		return earlier-later <= ageTolerance, true
	}

	larger := math.Max(math.Abs(na), math.Abs(nb))
	if larger == 0 {
		return na == nb, true
	}
	return math.Abs(na-nb)/larger <= numericTolerance, true
}

func isMutuallyExclusive(a, b string) bool {
	na := normalizeValue(a)
	nb := normalizeValue(b)
	if na == nb {
		return false
	}
	for _, set := range mutuallyExclusive {
		foundA, foundB := false, false
		for _, value := range set {
			if value == na {
				foundA = true
			}
			if value == nb {
				foundB = true
			}
		}
		if foundA && foundB {
			return true
		}
	}
	return false
}

// groupSnapshots buckets checkable, confident snapshots by entity+property.
func groupSnapshots(snapshots []store.EntitySnapshot) map[string][]store.EntitySnapshot {
	groups := make(map[string][]store.EntitySnapshot)
	for _, snap := range snapshots {
		prop := strings.ToLower(snap.PropertyName)
		if _, ignored := ignoreProps[prop]; ignored {
			continue
		}
		if _, checkable := checkableProps[prop]; !checkable {
			continue
		}
		if snap.Confidence < minSnapshotConfidence {
			continue
		}
		key := snap.EntityID + ":" + prop
		groups[key] = append(groups[key], snap)
	}
	return groups
}

// dedupeValues drops later snapshots whose normalized value already appeared.
func dedupeValues(group []store.EntitySnapshot) []store.EntitySnapshot {
	seen := make(map[string]bool, len(group))
	result := group[:0:0]
	for _, snap := range group {
		key := normalizeValue(snap.PropertyValue)
		if seen[key] {
			continue
		}
		seen[key] = true
		result = append(result, snap)
	}
	return result
}

func chapterNumber(chapterNumbers map[string]int, snap store.EntitySnapshot) int {
	if n, ok := chapterNumbers[snap.SourceChapterID]; ok {
		return n
	}
	return int(^uint(0) >> 1)
}

// PairKey builds the unordered snapshot-pair dedupe key.
func PairKey(aID, bID string) string {
	if aID > bID {
		aID, bID = bID, aID
	}
	return fmt.Sprintf("%s:%s", aID, bID)
}
