package service

import "strings"

// UncategorizedName is the display placeholder when a category lookup fails.
const UncategorizedName = "Uncategorized"

// BuildEmbeddingText assembles the canonical embedding input for a capstone:
// three labeled lines (Title, Category, Abstract) joined by newlines and
// trimmed. The exact same structure is used when indexing a record and when
// embedding a proposal being checked; diverging the two would compare
// different semantic fields and silently degrade match quality.
func BuildEmbeddingText(title, categoryName, abstract string) string {
	lines := []string{
		"Title: " + strings.TrimSpace(title),
		"Category: " + strings.TrimSpace(categoryName),
		"Abstract: " + strings.TrimSpace(abstract),
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
