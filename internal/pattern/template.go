package pattern

import (
	"regexp"
	"strings"
	"sync"
)

// Verb groups collapse synonymous verbs so "said" and "whispered" produce the
// same template. Eight semantic groups cover the verbs prose leans on.
var verbGroups = map[string]string{
	"looked": "vision", "stared": "vision", "glanced": "vision", "gazed": "vision",
	"watched": "vision", "peered": "vision", "observed": "vision", "studied": "vision",
	"surveyed": "vision", "squinted": "vision",

	"said": "speech", "asked": "speech", "replied": "speech", "whispered": "speech",
	"shouted": "speech", "answered": "speech", "muttered": "speech", "murmured": "speech",
	"called": "speech", "yelled": "speech", "snapped": "speech",

	"walked": "motion", "ran": "motion", "moved": "motion", "stepped": "motion",
	"hurried": "motion", "strode": "motion", "crept": "motion", "rushed": "motion",
	"climbed": "motion", "wandered": "motion", "paced": "motion",

	"grabbed": "manual", "held": "manual", "lifted": "manual", "dropped": "manual",
	"pushed": "manual", "pulled": "manual", "touched": "manual", "reached": "manual",
	"handed": "manual", "clutched": "manual", "gripped": "manual",

	"laughed": "emotion", "cried": "emotion", "wept": "emotion", "sighed": "emotion",
	"trembled": "emotion", "felt": "emotion", "feared": "emotion", "loved": "emotion",
	"hated": "emotion", "hoped": "emotion",

	"thought": "thought", "wondered": "thought", "realized": "thought",
	"remembered": "thought", "knew": "thought", "understood": "thought",
	"considered": "thought", "imagined": "thought",

	"stood": "posture", "sat": "posture", "leaned": "posture", "knelt": "posture",
	"crouched": "posture", "slumped": "posture", "straightened": "posture",

	"smiled": "expression", "frowned": "expression", "grimaced": "expression",
	"winced": "expression", "smirked": "expression", "blinked": "expression",
	"scowled": "expression", "grinned": "expression", "nodded": "expression",
}

// Sentence-initial capitalization is ambiguous; these words stay literal at
// position zero instead of becoming [name].
var commonStarters = map[string]bool{
	"the": true, "a": true, "an": true, "it": true, "there": true,
	"then": true, "but": true, "and": true, "when": true, "as": true,
	"in": true, "on": true, "at": true, "after": true, "before": true,
	"now": true, "this": true, "that": true, "with": true, "suddenly": true,
	"meanwhile": true, "however": true, "once": true, "if": true, "what": true,
}

var pronouns = map[string]bool{
	"he": true, "she": true, "they": true, "i": true, "we": true,
	"him": true, "her": true, "them": true, "his": true, "their": true, "its": true,
}

var (
	quotedText  = regexp.MustCompile(`"[^"]*"|“[^”]*”`)
	numberToken = regexp.MustCompile(`\b\d+(?:\.\d+)?\b`)
	wordToken   = regexp.MustCompile(`[A-Za-z']+|[^\sA-Za-z']`)
	capitalized = regexp.MustCompile(`^[A-Z][a-z]+$`)
)

var templateCache = struct {
	sync.Mutex
	*lruCache
}{lruCache: newLRUCache(4096)}

// Template reduces a sentence to its structural shape: quotes, numbers,
// proper names and pronouns become placeholders and known verbs collapse to
// their semantic group.
func Template(sentence string) string {
	trimmed := strings.TrimSpace(sentence)
	if trimmed == "" {
		return ""
	}

	templateCache.Lock()
	cached, ok := templateCache.get(trimmed)
	templateCache.Unlock()
	if ok {
		return cached
	}

	s := quotedText.ReplaceAllString(trimmed, "[quote]")
	s = numberToken.ReplaceAllString(s, "[num]")

	tokens := wordToken.FindAllString(s, -1)
	out := make([]string, 0, len(tokens))
	for i, token := range tokens {
		lower := strings.ToLower(token)
		switch {
		case token == "[" || token == "]":
			// Placeholder brackets split into separate tokens; rejoin below.
			out = append(out, token)
		case pronouns[lower]:
			out = append(out, "[pron]")
		case verbGroups[lower] != "":
			out = append(out, "["+verbGroups[lower]+"]")
		case capitalized.MatchString(token) && (i > 0 || !commonStarters[lower]):
			out = append(out, "[name]")
		default:
			out = append(out, lower)
		}
	}

	result := rejoinPlaceholders(out)

	templateCache.Lock()
	templateCache.put(trimmed, result)
	templateCache.Unlock()
	return result
}

// rejoinPlaceholders repairs "[", "quote", "]" token runs produced by the
// tokenizer and joins words with single spaces.
func rejoinPlaceholders(tokens []string) string {
	var sb strings.Builder
	for i := 0; i < len(tokens); i++ {
		if tokens[i] == "[" && i+2 < len(tokens) && tokens[i+2] == "]" {
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString("[" + tokens[i+1] + "]")
			i += 2
			continue
		}
		if isPunct(tokens[i]) {
			sb.WriteString(tokens[i])
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(tokens[i])
	}
	return sb.String()
}

func isPunct(token string) bool {
	return len(token) == 1 && !('a' <= token[0] && token[0] <= 'z') &&
		!('A' <= token[0] && token[0] <= 'Z') && token[0] != '['
}

// TemplateSimilarity compares two templates by token edit distance; it is the
// cluster merge criterion. A length gap beyond half the longer template
// short-circuits to zero before the quadratic pass.
func TemplateSimilarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	ta := strings.Fields(a)
	tb := strings.Fields(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0.0
	}
	longer := len(ta)
	if len(tb) > longer {
		longer = len(tb)
	}
	diff := len(ta) - len(tb)
	if diff < 0 {
		diff = -diff
	}
	if float64(diff) > float64(longer)*0.5 {
		return 0.0
	}

	return 1.0 - float64(editDistance(ta, tb))/float64(longer)
}

// editDistance is token-level Levenshtein with two rows.
func editDistance(a, b []string) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
