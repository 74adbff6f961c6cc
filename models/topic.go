package models

import (
	"regexp"
	"strings"
)

// TopicSource records where a case-topic association came from
type TopicSource string

const (
	TopicSourceManual      TopicSource = "manual"
	TopicSourceAISuggested TopicSource = "ai_suggested"
)

// Topic represents a topic label
type Topic struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// CaseTopic links a case to a topic
type CaseTopic struct {
	CaseID     int64       `json:"case_id"`
	TopicID    int64       `json:"topic_id"`
	SourceType TopicSource `json:"source_type"`
}

// TopicLink is a topic as seen from one case
type TopicLink struct {
	Topic
	SourceType TopicSource `json:"source_type"`
}

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify derives the URL-safe topic slug from a display name.
// "Right to Privacy (2017)" becomes "right-to-privacy-2017".
func Slugify(name string) string {
	slug := nonAlphanumeric.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(slug, "-")
}
