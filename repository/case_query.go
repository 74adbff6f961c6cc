package repository

import (
	"fmt"
	"strings"

	"github.com/pgvector/pgvector-go"
)

// CaseQuery describes one filtered, ordered and paginated case lookup.
//
// With a Vector the query runs in semantic mode: only cases with an
// embedding are eligible, ordered by ascending cosine distance with the id
// as tiebreak, and similarity = 1 - distance is returned per row. Without a
// Vector it runs in browse mode: all cases, newest year first, similarity NULL.
type CaseQuery struct {
	Vector    *pgvector.Vector
	TopicIDs  []int64 // match cases linked to at least one
	YearFrom  *int    // inclusive
	YearTo    *int    // inclusive
	ExcludeID *int64
	Limit     int
	Offset    int
}

// Semantic reports whether the query ranks by vector distance
func (q CaseQuery) Semantic() bool {
	return q.Vector != nil
}

const caseSummaryColumns = `c.id, c.case_name, c.citation, c.year, c.bench,
			c.facts, c.legal_issues, c.judgment, c.ratio_decidendi, c.key_principles,
			c.source_url, c.processed_at, c.created_at, c.updated_at`

// buildCaseQuery renders q into SQL with positional arguments.
// Every filter lands in the WHERE clause so LIMIT/OFFSET only ever page
// over the fully filtered, fully ordered set.
func buildCaseQuery(q CaseQuery) (string, []interface{}) {
	var (
		conditions []string
		args       []interface{}
	)
	bind := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	similarity := "NULL::float8"
	orderBy := "c.year DESC, c.id"
	if q.Vector != nil {
		vec := bind(*q.Vector)
		similarity = fmt.Sprintf("1 - (c.embedding <=> %s::vector)", vec)
		orderBy = fmt.Sprintf("c.embedding <=> %s::vector, c.id", vec)
		conditions = append(conditions, "c.embedding IS NOT NULL")
	}

	if len(q.TopicIDs) > 0 {
		// EXISTS keeps one row per case however many of its topics match
		conditions = append(conditions, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM case_topics ct WHERE ct.case_id = c.id AND ct.topic_id = ANY(%s))",
			bind(q.TopicIDs)))
	}
	if q.YearFrom != nil {
		conditions = append(conditions, "c.year >= "+bind(*q.YearFrom))
	}
	if q.YearTo != nil {
		conditions = append(conditions, "c.year <= "+bind(*q.YearTo))
	}
	if q.ExcludeID != nil {
		conditions = append(conditions, "c.id <> "+bind(*q.ExcludeID))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, `
		SELECT
			%s,
			%s AS similarity
		FROM cases c`, caseSummaryColumns, similarity)
	if len(conditions) > 0 {
		sb.WriteString("\n\t\tWHERE ")
		sb.WriteString(strings.Join(conditions, "\n\t\t\tAND "))
	}
	sb.WriteString("\n\t\tORDER BY " + orderBy)
	if q.Limit > 0 {
		sb.WriteString("\n\t\tLIMIT " + bind(q.Limit))
	}
	if q.Offset > 0 {
		sb.WriteString("\n\t\tOFFSET " + bind(q.Offset))
	}

	return sb.String(), args
}
