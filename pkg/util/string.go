package util

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// NormalizeText lowercases a string and collapses all runs of whitespace
// to single spaces. Used for stable content fingerprints.
func NormalizeText(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return whitespaceRe.ReplaceAllString(s, " ")
}

// Truncate shortens a string to at most n runes.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

// TitleFromText derives an article working title from free request text.
func TitleFromText(text string) string {
	title := strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
	if title == "" {
		return "Untitled article"
	}
	return Truncate(title, 120)
}

// ParseTags parses a loosely formatted tag string into a clean slice.
func ParseTags(tagStr string) []string {
	if tagStr == "" {
		return []string{}
	}

	// Remove brackets if present
	tagStr = strings.Trim(tagStr, "[]")

	// Split by comma and clean up
	tags := strings.Split(tagStr, ",")
	var cleanTags []string

	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		tag = strings.Trim(tag, "\"'") // Remove quotes
		if tag != "" {
			cleanTags = append(cleanTags, tag)
		}
	}

	return cleanTags
}
