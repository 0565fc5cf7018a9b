package extract

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

type assertion struct {
	EntityType    string  `json:"entityType"`
	EntityName    string  `json:"entityName"`
	PropertyName  string  `json:"propertyName"`
	PropertyValue string  `json:"propertyValue"`
	PropertyType  string  `json:"propertyType"`
	Layer         string  `json:"layer"`
	SourceType    string  `json:"sourceType"`
	Quote         string  `json:"quote"`
	Confidence    float64 `json:"confidence"`
}

var errNoJSON = errors.New("reply contains no JSON array")

var fencedBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(\\[.*?\\])\\s*```")

// parseAssertions decodes the model reply. Models wrap JSON inconsistently,
// so three forms are accepted: the raw reply, a fenced code block, and a
// bare array embedded in prose.
func parseAssertions(reply string) ([]assertion, error) {
	trimmed := strings.TrimSpace(reply)

	var items []assertion
	if err := json.Unmarshal([]byte(trimmed), &items); err == nil {
		return items, nil
	}

	if m := fencedBlock.FindStringSubmatch(trimmed); m != nil {
		if err := json.Unmarshal([]byte(m[1]), &items); err == nil {
			return items, nil
		}
	}

	start := strings.Index(trimmed, "[")
	end := strings.LastIndex(trimmed, "]")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(trimmed[start:end+1]), &items); err == nil {
			return items, nil
		}
	}

	return nil, errNoJSON
}
