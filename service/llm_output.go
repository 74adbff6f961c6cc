package service

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseOutcome tags how model output was interpreted
type ParseOutcome int

const (
	// ParseEmpty means nothing usable could be recovered
	ParseEmpty ParseOutcome = iota
	// ParseStrict means the whole output was valid JSON of the expected shape
	ParseStrict
	// ParseExtracted means JSON was recovered from a bracketed substring
	ParseExtracted
)

func (o ParseOutcome) String() string {
	switch o {
	case ParseStrict:
		return "strict"
	case ParseExtracted:
		return "extracted"
	default:
		return "empty"
	}
}

// Parsed reports whether any structured data was recovered
func (o ParseOutcome) Parsed() bool {
	return o != ParseEmpty
}

// CaseSummary holds the fields the summarization prompt asks for
type CaseSummary struct {
	Facts          string
	LegalIssues    string
	Judgment       string
	RatioDecidendi string
	KeyPrinciples  []string
}

// EmbeddingText is the text embedded for a case: every summary field and
// every principle, space separated.
func (s CaseSummary) EmbeddingText() string {
	parts := []string{s.Facts, s.LegalIssues, s.Judgment, s.RatioDecidendi}
	parts = append(parts, s.KeyPrinciples...)
	return strings.Join(parts, " ")
}

// ParseSummary reads a summary object from model output.
// Fields of the wrong type are ignored rather than failing the parse.
func ParseSummary(raw string) (CaseSummary, ParseOutcome) {
	var obj map[string]interface{}
	outcome := ParseStrict
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &obj); err != nil || obj == nil {
		obj = nil
		outcome = ParseExtracted
		if fragment, ok := bracketed(stripCodeFence(raw), "{", "}"); ok {
			if err := json.Unmarshal([]byte(fragment), &obj); err != nil {
				obj = nil
			}
		}
	}
	if obj == nil {
		return CaseSummary{}, ParseEmpty
	}

	summary := CaseSummary{
		Facts:          stringField(obj, "facts"),
		LegalIssues:    stringField(obj, "legal_issues"),
		Judgment:       stringField(obj, "judgment"),
		RatioDecidendi: stringField(obj, "ratio_decidendi"),
	}
	if list, ok := obj["key_principles"].([]interface{}); ok {
		summary.KeyPrinciples = stringItems(list)
	}
	return summary, outcome
}

// ParseTopicList reads topic names from model output. Accepted shapes are a
// JSON array, an object with a "topics" array, or an array embedded in prose.
func ParseTopicList(raw string) ([]string, ParseOutcome) {
	var parsed interface{}
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &parsed); err == nil {
		switch v := parsed.(type) {
		case []interface{}:
			return stringItems(v), ParseStrict
		case map[string]interface{}:
			if list, ok := v["topics"].([]interface{}); ok {
				return stringItems(list), ParseStrict
			}
		}
	}

	if fragment, ok := bracketed(stripCodeFence(raw), "[", "]"); ok {
		var list []interface{}
		if err := json.Unmarshal([]byte(fragment), &list); err == nil {
			return stringItems(list), ParseExtracted
		}
	}
	return nil, ParseEmpty
}

// stripCodeFence keeps only the body of a markdown code block when present
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	var body []string
	inBlock := false
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inBlock = !inBlock
			continue
		}
		if inBlock {
			body = append(body, line)
		}
	}
	return strings.Join(body, "\n")
}

// bracketed returns the substring from the first open to the last close delimiter
func bracketed(text, open, close string) (string, bool) {
	start := strings.Index(text, open)
	end := strings.LastIndex(text, close)
	if start == -1 || end == -1 || start >= end {
		return "", false
	}
	return text[start : end+1], true
}

func stringField(obj map[string]interface{}, key string) string {
	s, _ := obj[key].(string)
	return strings.TrimSpace(s)
}

func stringItems(list []interface{}) []string {
	out := make([]string, 0, len(list))
	for _, item := range list {
		var s string
		switch v := item.(type) {
		case nil:
			continue
		case string:
			s = v
		default:
			s = fmt.Sprint(v)
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
