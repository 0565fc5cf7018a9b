package pattern

import (
	"strings"
	"testing"
)

func TestTemplateReplacesTokens(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"pronoun and verb group", "She whispered a warning.", "[pron] [speech] a warning."},
		{"name mid-sentence", "Then Mara looked away.", "then [name] [vision] away."},
		{"name at start", "Mara ran home.", "[name] [motion] home."},
		{"number", "He was 17 then.", "[pron] was [num] then."},
		{"quote", `"Run," she said.`, "[quote] [pron] [speech]."},
		{"common starter stays literal", "The door opened.", "the door opened."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Template(tc.in); got != tc.want {
				t.Errorf("Template(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestTemplateSynonymousVerbsCollapse(t *testing.T) {
	a := Template("She whispered a warning.")
	b := Template("She shouted a warning.")
	if a != b {
		t.Errorf("synonymous verbs should share a template: %q vs %q", a, b)
	}
}

func TestTemplateVerbGroups(t *testing.T) {
	cases := map[string]string{
		"She stared at the sea.":        "[vision]",
		"She whispered to the dark.":    "[speech]",
		"She hurried down the stairs.":  "[motion]",
		"She grabbed the rope.":         "[manual]",
		"She wept at the news.":         "[emotion]",
		"She wondered about the light.": "[thought]",
		"She knelt by the fire.":        "[posture]",
		"She frowned at the map.":       "[expression]",
	}
	for sentence, group := range cases {
		if tpl := Template(sentence); !strings.Contains(tpl, group) {
			t.Errorf("Template(%q) = %q, want %s tag", sentence, tpl, group)
		}
	}
}

func TestTemplateSimilarity(t *testing.T) {
	if got := TemplateSimilarity("[pron] [speech] a warning.", "[pron] [speech] a warning."); got != 1.0 {
		t.Errorf("identical templates = %v, want 1.0", got)
	}
	// One substitution in four tokens: 1 - 1/4.
	if got := TemplateSimilarity("[pron] [speech] a warning.", "[pron] [speech] a promise."); got != 0.75 {
		t.Errorf("single substitution = %v, want 0.75", got)
	}
	// Insertions count as edits, not positional misalignment.
	if got := TemplateSimilarity("[pron] [speech] a warning.", "[pron] quietly [speech] a warning."); got != 0.8 {
		t.Errorf("single insertion = %v, want 0.8", got)
	}
	// Length gap beyond half the longer template short-circuits.
	if got := TemplateSimilarity("[pron] [speech].", "[pron] [speech] a very long warning about the river."); got != 0.0 {
		t.Errorf("large length gap = %v, want 0.0", got)
	}
}

func TestLRUCacheEviction(t *testing.T) {
	c := newLRUCache(2)
	c.put("a", "1")
	c.put("b", "2")
	if _, ok := c.get("a"); !ok {
		t.Fatal("a should still be cached")
	}
	c.put("c", "3")
	// b was least recently used.
	if _, ok := c.get("b"); ok {
		t.Fatal("b should have been evicted")
	}
	if v, ok := c.get("a"); !ok || v != "1" {
		t.Fatal("a should survive eviction")
	}
	if v, ok := c.get("c"); !ok || v != "3" {
		t.Fatal("c should be cached")
	}
}
