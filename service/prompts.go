package service

import "fmt"

// Excerpt budgets for the summarization prompts, in characters
const (
	fullTextExcerptLength = 6000
	summaryExcerptLength  = 1500
)

const summarySystemPrompt = `You are an expert legal summarizer for Indian Supreme Court judgments.
Respond with a single valid JSON value only. Do not use markdown or code fences and do not add commentary.`

func buildSummaryPrompt(caseName, citation string, year int, fullTextExcerpt string) string {
	if fullTextExcerpt == "" {
		fullTextExcerpt = "Not available"
	}
	return fmt.Sprintf(`Summarize the following Indian Supreme Court case as one JSON object with exactly these keys:

{
  "facts": "factual background in 2-4 sentences",
  "legal_issues": "the legal questions raised in 2-4 sentences",
  "judgment": "the decision and outcome in 2-4 sentences",
  "ratio_decidendi": "the legal principle the decision rests on in 2-4 sentences",
  "key_principles": ["short principle", "short principle", "short principle"]
}

Case name: %s
Citation: %s
Year: %d

Full text (excerpt):
%s
`, caseName, citation, year, fullTextExcerpt)
}

func buildTopicsPrompt(caseName, summaryExcerpt string) string {
	return fmt.Sprintf(`Suggest 3-5 legal topic labels for the Indian Supreme Court case below.
Respond with a JSON array of topic names only, for example:
["Constitutional Law", "Right to Privacy", "Fundamental Rights"]

Case: %s
Summary excerpt: %s
`, caseName, summaryExcerpt)
}
