package generation

import (
	"fmt"
	"regexp"
	"strings"

	"travel-diary-backend/internal/apperr"
)

// Entry is a generated diary
type Entry struct {
	Title string
	Body  string
}

var (
	// Stripped from the title line, in order:
	//   leading markdown heading marks ("#", "##", ...)
	//   surrounding bold markers ("**")
	//   a "제목", "Title" or "title" label followed by ":" or "："
	headingPrefix = regexp.MustCompile(`^#+\s*`)
	titleLabel    = regexp.MustCompile(`(?i)^(제목|title)\s*[:：]\s*`)
	bodyLabel     = regexp.MustCompile(`(?i)^(#+\s*)?(\*\*)?(본문|body)\s*[:：]\s*(\*\*)?\s*`)
)

// NormalizeTitle strips the documented labels and markup from a title line
func NormalizeTitle(line string) string {
	title := strings.TrimSpace(line)
	title = headingPrefix.ReplaceAllString(title, "")
	title = strings.TrimSpace(strings.Trim(title, "*"))
	title = titleLabel.ReplaceAllString(title, "")
	title = strings.TrimSpace(strings.Trim(title, "*"))
	return title
}

// ParseEntry splits a response on its first newline into title and body.
// A response without a newline, or with an empty title or body after
// normalization, is outside the response contract.
func ParseEntry(text string) (Entry, error) {
	text = strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n"))
	if text == "" {
		return Entry{}, fmt.Errorf("%w: empty response", apperr.ErrGeneration)
	}

	first, rest, found := strings.Cut(text, "\n")
	if !found {
		return Entry{}, fmt.Errorf("%w: response has no body", apperr.ErrGeneration)
	}

	title := NormalizeTitle(first)
	if title == "" {
		return Entry{}, fmt.Errorf("%w: response has an empty title", apperr.ErrGeneration)
	}

	body := strings.TrimSpace(bodyLabel.ReplaceAllString(strings.TrimSpace(rest), ""))
	if body == "" {
		return Entry{}, fmt.Errorf("%w: response has an empty body", apperr.ErrGeneration)
	}

	return Entry{Title: title, Body: body}, nil
}
