package pattern

import (
	"sort"
	"strings"
)

// Sentence kinds for rhythm n-grams: D dialogue, T thought, E emotion,
// A action, N narration.
const (
	kindDialogue  = "D"
	kindThought   = "T"
	kindEmotion   = "E"
	kindAction    = "A"
	kindNarration = "N"
)

var thoughtCues = []string{"thought", "wondered", "realized", "remembered", "knew", "imagined"}
var emotionCues = []string{"felt", "feared", "loved", "hated", "wept", "trembled", "rejoiced", "despaired"}
var actionCues = []string{"ran", "walked", "grabbed", "struck", "jumped", "climbed", "drew", "threw", "rushed", "fought"}

// ClassifySentence assigns one of the five rhythm kinds.
func ClassifySentence(sentence string) string {
	if strings.ContainsAny(sentence, `"“”`) {
		return kindDialogue
	}
	lower := strings.ToLower(sentence)
	for _, cue := range thoughtCues {
		if strings.Contains(lower, cue) {
			return kindThought
		}
	}
	for _, cue := range emotionCues {
		if strings.Contains(lower, cue) {
			return kindEmotion
		}
	}
	for _, cue := range actionCues {
		if strings.Contains(lower, cue) {
			return kindAction
		}
	}
	return kindNarration
}

// NGram is a repeated run of sentence kinds, e.g. "D-N-D".
type NGram struct {
	Sequence string `json:"sequence"`
	Count    int    `json:"count"`
	Examples []int  `json:"exampleIndexes"`
}

const (
	ngramMinCount    = 3
	ngramTopN        = 10
	maxNGramExamples = 3
)

// RepeatedNGrams finds sentence-kind bigrams and trigrams appearing at least
// three times, the ten most frequent first.
func RepeatedNGrams(kinds []string) []NGram {
	found := make(map[string]*NGram)
	for _, n := range []int{2, 3} {
		for i := 0; i+n <= len(kinds); i++ {
			seq := strings.Join(kinds[i:i+n], "-")
			g, ok := found[seq]
			if !ok {
				g = &NGram{Sequence: seq}
				found[seq] = g
			}
			g.Count++
			if len(g.Examples) < maxNGramExamples {
				g.Examples = append(g.Examples, i)
			}
		}
	}

	var repeated []NGram
	for _, g := range found {
		if g.Count >= ngramMinCount {
			repeated = append(repeated, *g)
		}
	}
	sort.SliceStable(repeated, func(i, j int) bool {
		if repeated[i].Count != repeated[j].Count {
			return repeated[i].Count > repeated[j].Count
		}
		return repeated[i].Sequence < repeated[j].Sequence
	})
	if len(repeated) > ngramTopN {
		repeated = repeated[:ngramTopN]
	}
	return repeated
}
