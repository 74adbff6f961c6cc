package models

import (
	"database/sql/driver"
	"encoding/json"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"
)

// SnippetLength is the character budget for case summary excerpts
const SnippetLength = 150

// KeyPrinciples is the ordered list of short principle strings stored as JSONB
type KeyPrinciples []string

// Value implements driver.Valuer for JSONB
func (k KeyPrinciples) Value() (driver.Value, error) {
	if k == nil {
		return json.Marshal([]string{})
	}
	return json.Marshal([]string(k))
}

// Scan implements sql.Scanner for JSONB
func (k *KeyPrinciples) Scan(value interface{}) error {
	if value == nil {
		*k = make(KeyPrinciples, 0)
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		*k = make(KeyPrinciples, 0)
		return nil
	}

	if len(bytes) == 0 {
		*k = make(KeyPrinciples, 0)
		return nil
	}

	return json.Unmarshal(bytes, (*[]string)(k))
}

// Case represents a legal case record
type Case struct {
	ID             int64         `json:"id"`
	CaseName       string        `json:"case_name"`
	Citation       string        `json:"citation"`
	Year           int           `json:"year"`
	Bench          *string       `json:"bench"`
	FullText       *string       `json:"-"`
	Facts          *string       `json:"facts"`
	LegalIssues    *string       `json:"legal_issues"`
	Judgment       *string       `json:"judgment"`
	RatioDecidendi *string       `json:"ratio_decidendi"`
	KeyPrinciples  KeyPrinciples `json:"key_principles"`
	SourceURL      *string       `json:"source_url"`

	// Embedding is nil for cases that never went through the AI pipeline.
	// Such cases are browsable but never ranked.
	Embedding *pgvector.Vector `json:"-"`

	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// HasEmbedding reports whether the case can take part in similarity ranking
func (c *Case) HasEmbedding() bool {
	return c.Embedding != nil && len(c.Embedding.Slice()) > 0
}

// Snippet returns the short excerpt shown in case listings
func (c *Case) Snippet() *string {
	return FirstNonEmpty(SnippetLength, c.RatioDecidendi, c.Facts, c.Judgment)
}

// CaseHit is a case returned by a search together with its similarity.
// Similarity is nil in browse mode.
type CaseHit struct {
	Case       *Case
	Similarity *float64
}

// FirstNonEmpty returns the first non-blank field truncated to maxLen characters,
// with "..." appended only when truncation happened.
func FirstNonEmpty(maxLen int, fields ...*string) *string {
	for _, field := range fields {
		if field == nil || strings.TrimSpace(*field) == "" {
			continue
		}
		excerpt := Truncate(*field, maxLen)
		return &excerpt
	}
	return nil
}

// Truncate cuts text to maxLen characters and marks the cut with "..."
func Truncate(text string, maxLen int) string {
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	return string(runes[:maxLen]) + "..."
}
