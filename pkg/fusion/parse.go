package fusion

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Strategy is one way of extracting a JSON object from raw generator output.
type Strategy struct {
	Name  string
	Parse func(text string) (map[string]any, bool)
}

// DefaultStrategies are tried in order until one succeeds.
var DefaultStrategies = []Strategy{
	{Name: "direct", Parse: parseDirect},
	{Name: "fenced", Parse: parseFenced},
	{Name: "braces", Parse: parseBraces},
	{Name: "braces_repaired", Parse: parseBracesRepaired},
	{Name: "key_value", Parse: parseKeyValue},
}

// Parse runs strategies over text and returns the first object found with the name of the
// strategy that produced it.
func Parse(text string, strategies []Strategy) (map[string]any, string, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, "", false
	}
	for _, s := range strategies {
		if obj, ok := s.Parse(text); ok {
			return obj, s.Name, true
		}
	}
	return nil, "", false
}

var (
	fencedRe         = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")
	trailingObjectRe = regexp.MustCompile(`,\s*}`)
	trailingArrayRe  = regexp.MustCompile(`,\s*]`)
	decisionRe       = regexp.MustCompile(`(?i)"decision"\s*:\s*"([^"]+)"`)
	rationaleRe      = regexp.MustCompile(`(?i)"rationale"\s*:\s*"([^"]+)"`)
	looseRationaleRe = regexp.MustCompile(`(?is)"rationale"\s*:\s*(.+?)\s*[,}]`)
)

func unmarshalObject(s string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

func parseDirect(text string) (map[string]any, bool) {
	return unmarshalObject(text)
}

func parseFenced(text string) (map[string]any, bool) {
	m := fencedRe.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}
	return unmarshalObject(m[1])
}

// firstBalancedObject returns the substring from the first '{' to its matching '}'.
func firstBalancedObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	for i := start; i < len(text); i++ {
		switch text[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

func parseBraces(text string) (map[string]any, bool) {
	candidate, ok := firstBalancedObject(text)
	if !ok {
		return nil, false
	}
	return unmarshalObject(candidate)
}

func parseBracesRepaired(text string) (map[string]any, bool) {
	candidate, ok := firstBalancedObject(text)
	if !ok {
		return nil, false
	}
	candidate = trailingObjectRe.ReplaceAllString(candidate, "}")
	candidate = trailingArrayRe.ReplaceAllString(candidate, "]")
	return unmarshalObject(candidate)
}

func parseKeyValue(text string) (map[string]any, bool) {
	m := decisionRe.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}
	obj := map[string]any{"decision": m[1]}
	if r := rationaleRe.FindStringSubmatch(text); r != nil {
		obj["rationale"] = r[1]
	} else if r := looseRationaleRe.FindStringSubmatch(text); r != nil {
		obj["rationale"] = strings.Trim(strings.TrimSpace(r[1]), `"'`)
	}
	return obj, true
}
