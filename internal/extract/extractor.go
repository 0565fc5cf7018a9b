// Package extract pulls typed entity property snapshots out of chapter text.
// An AI pass runs first when available; a regex rule pass covers the rest.
package extract

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"

	"inkwell/api/internal/ai"
	"inkwell/api/internal/store"
	"inkwell/api/internal/util"
)

// Version tags snapshots with the extractor revision that produced them.
const Version = "2"

type Extractor struct {
	client ai.Client
}

// New creates an extractor. client may be nil for rule-only extraction.
func New(client ai.Client) *Extractor {
	return &Extractor{client: client}
}

// Usage reports AI spend for one extraction, zero for rule-only runs.
type Usage struct {
	Model            string
	Temperature      float64
	PromptTokens     int
	CompletionTokens int
}

// Extract returns snapshots found in the chapter. useAI selects the AI pass;
// when the AI pass fails or is disabled, rule extraction runs instead.
func (e *Extractor) Extract(ctx context.Context, chapter store.Chapter, characters []store.Character, useAI bool) ([]store.EntitySnapshot, Usage, error) {
	if useAI && e.client != nil {
		snapshots, usage, err := e.extractAI(ctx, chapter, characters)
		if err == nil {
			return snapshots, usage, nil
		}
		if ctx.Err() != nil {
			return nil, Usage{}, ctx.Err()
		}
		log.Printf("extract: ai extraction for chapter %s failed, falling back to rules: %v", chapter.ID, err)
	}
	return e.extractRules(chapter, characters), Usage{}, nil
}

const extractSystemPrompt = `You extract factual assertions about narrative entities from fiction text.
Reply with a JSON array only. Each element:
{"entityType":"character|location|item|rule","entityName":"...","propertyName":"...",
"propertyValue":"...","propertyType":"string|number|boolean|list|json",
"layer":"intrinsic|appearance|evaluation","sourceType":"narrator|character",
"quote":"the sentence the fact comes from","confidence":0.0}`

func (e *Extractor) extractAI(ctx context.Context, chapter store.Chapter, characters []store.Character) ([]store.EntitySnapshot, Usage, error) {
	names := make([]string, 0, len(characters))
	for _, c := range characters {
		names = append(names, c.Name)
	}

	user := fmt.Sprintf("Known characters: %s\n\nChapter %d (%s):\n%s",
		strings.Join(names, ", "), chapter.ChapterNumber, chapter.Title, chapter.Content)

	result, err := e.client.Complete(ctx, extractSystemPrompt, user)
	if err != nil {
		return nil, Usage{}, err
	}

	items, err := parseAssertions(result.Text)
	if err != nil {
		return nil, Usage{}, err
	}

	snapshots := make([]store.EntitySnapshot, 0, len(items))
	for _, item := range items {
		if item.EntityName == "" || item.PropertyName == "" || item.PropertyValue == "" {
			continue
		}
		snap := newSnapshot(chapter, characters, item.EntityType, item.EntityName, item.PropertyName, item.PropertyValue, item.Quote, item.Confidence)
		snap.PropertyType = orDefault(item.PropertyType, "string")
		snap.Layer = orDefault(item.Layer, "intrinsic")
		snap.SourceType = orDefault(item.SourceType, "narrator")
		snap.AIModel = result.Model
		snapshots = append(snapshots, snap)
	}

	usage := Usage{
		Model:            result.Model,
		Temperature:      result.Temperature,
		PromptTokens:     result.PromptTokens,
		CompletionTokens: result.CompletionTokens,
	}
	return snapshots, usage, nil
}

var (
	agePattern = regexp.MustCompile(`\b([A-Z][a-z]+)\s+(?:was|is|turned|had just turned)\s+(about |around |nearly |almost |barely )?(\d{1,3})(?:\s*years?\s*old|\s*winters|\s*summers)?\b`)
	ageOf      = regexp.MustCompile(`\b([A-Z][a-z]+),?\s+(?:at the age of|aged)\s+(\d{1,3})\b`)

	genderPattern = regexp.MustCompile(`\b([A-Z][a-z]+)\s+(?:was|is)\s+(?:a|the)\s+(man|woman|boy|girl)\b`)

	locationPattern = regexp.MustCompile(`\b((?:[A-Z][a-z]+\s)?[A-Z][a-z]+)\s(City|Village|Keep|Tower|Forest|Harbor|Mountain|Temple|Inn|Valley)\b`)

	rulePattern = regexp.MustCompile(`(?i)([^.!?]*\b(?:no one can|nobody can|it is forbidden to|magic cannot|the law of [a-z]+ (?:states|demands)|none may)\b[^.!?]*[.!?])`)
)

var genderByNoun = map[string]string{
	"man":   "male",
	"boy":   "male",
	"woman": "female",
	"girl":  "female",
}

// extractRules runs the deterministic extractors. Confidence values are
// fixed per rule: fuzzy age qualifiers drop 0.8 to 0.5, gender nouns score
// 0.7, place suffixes 0.6, world rules 0.5.
func (e *Extractor) extractRules(chapter store.Chapter, characters []store.Character) []store.EntitySnapshot {
	var snapshots []store.EntitySnapshot
	content := chapter.Content

	for _, m := range agePattern.FindAllStringSubmatch(content, -1) {
		confidence := 0.8
		if m[2] != "" {
			confidence = 0.5
		}
		snapshots = append(snapshots, newSnapshot(chapter, characters, "character", m[1], "age", m[3], m[0], confidence))
	}
	for _, m := range ageOf.FindAllStringSubmatch(content, -1) {
		snapshots = append(snapshots, newSnapshot(chapter, characters, "character", m[1], "age", m[2], m[0], 0.8))
	}
	for _, m := range genderPattern.FindAllStringSubmatch(content, -1) {
		snapshots = append(snapshots, newSnapshot(chapter, characters, "character", m[1], "gender", genderByNoun[m[2]], m[0], 0.7))
	}
	for _, m := range locationPattern.FindAllStringSubmatch(content, -1) {
		name := m[1] + " " + m[2]
		snapshots = append(snapshots, newSnapshot(chapter, characters, "location", name, "category", strings.ToLower(m[2]), m[0], 0.6))
	}
	for _, m := range rulePattern.FindAllStringSubmatch(content, -1) {
		sentence := strings.TrimSpace(m[1])
		snapshots = append(snapshots, newSnapshot(chapter, characters, "rule", "world", "rule", sentence, sentence, 0.5))
	}

	return snapshots
}

func newSnapshot(chapter store.Chapter, characters []store.Character, entityType, entityName, property, value, quote string, confidence float64) store.EntitySnapshot {
	entityID, matchedName := matchEntity(entityType, entityName, characters)
	return store.EntitySnapshot{
		ID:                util.NewID("snp"),
		ProjectID:         chapter.ProjectID,
		EntityType:        entityType,
		EntityID:          entityID,
		EntityName:        matchedName,
		PropertyName:      strings.ToLower(strings.TrimSpace(property)),
		PropertyValue:     strings.TrimSpace(value),
		PropertyType:      "string",
		Layer:             "intrinsic",
		SourceType:        "narrator",
		SourceChapterID:   chapter.ID,
		SourceQuote:       quote,
		SourceContext:     surrounding(chapter.Content, quote),
		Confidence:        confidence,
		ExtractionVersion: Version,
	}
}

// matchEntity resolves an extracted name against the project's characters:
// exact name or alias first, then substring for names of length >= 2.
// Unmatched entities get a stable name-derived id so the same entity groups
// across chapters.
func matchEntity(entityType, name string, characters []store.Character) (id, matchedName string) {
	trimmed := strings.TrimSpace(name)
	if entityType == "character" {
		lower := strings.ToLower(trimmed)
		for _, c := range characters {
			if strings.EqualFold(c.Name, trimmed) {
				return c.ID, c.Name
			}
			for _, alias := range c.Aliases {
				if strings.EqualFold(alias, trimmed) {
					return c.ID, c.Name
				}
			}
		}
		if len(trimmed) >= 2 {
			for _, c := range characters {
				cl := strings.ToLower(c.Name)
				if strings.Contains(cl, lower) || strings.Contains(lower, cl) {
					return c.ID, c.Name
				}
			}
		}
	}
	return entityType + ":" + strings.ToLower(trimmed), trimmed
}

// surrounding returns the quote with up to 30 characters of context on each
// side.
func surrounding(content, quote string) string {
	idx := strings.Index(content, quote)
	if idx < 0 {
		return quote
	}
	start := idx - 30
	if start < 0 {
		start = 0
	}
	end := idx + len(quote) + 30
	if end > len(content) {
		end = len(content)
	}
	return content[start:end]
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

// BatchKey dedupes snapshots within one extraction run.
func BatchKey(snap store.EntitySnapshot) string {
	return snap.EntityID + ":" + snap.PropertyName + ":" + snap.SourceChapterID
}
