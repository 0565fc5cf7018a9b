package detect

import (
	"regexp"
	"strconv"
	"strings"
)

var punctPattern = regexp.MustCompile(`[\p{P}\p{S}\s]+`)

// normalizeValue strips punctuation and whitespace and lowercases, so that
// "Blue." and "blue" compare equal.
func normalizeValue(value string) string {
	return strings.ToLower(punctPattern.ReplaceAllString(value, ""))
}

// Similarity scores two property values in [0, 1]. Equal normalized values
// score 1.0, containment scores 0.9, everything else falls back to a
// longest-common-subsequence ratio.
func Similarity(a, b string) float64 {
	na := normalizeValue(a)
	nb := normalizeValue(b)
	if na == "" || nb == "" {
		if na == nb {
			return 1.0
		}
		return 0.0
	}
	if na == nb {
		return 1.0
	}
	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		return 0.9
	}
	return lcsRatio(na, nb)
}

// lcsRatio returns 2*LCS(a,b) / (len(a)+len(b)), computed over runes.
func lcsRatio(a, b string) float64 {
	ra := []rune(a)
	rb := []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0.0
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			if ra[i-1] == rb[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	lcs := prev[len(rb)]
	return 2.0 * float64(lcs) / float64(len(ra)+len(rb))
}

var numberPattern = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// parseNumber extracts the first numeric token from a property value.
func parseNumber(value string) (float64, bool) {
	match := numberPattern.FindString(value)
	if match == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
