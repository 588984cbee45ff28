package service

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var (
	sqlKeywordPattern   = regexp.MustCompile(`(?i)\b(SELECT|INSERT|UPDATE|DELETE|DROP|ALTER)\b`)
	sqlCommentPattern   = regexp.MustCompile(`(--|#|/\*|\*/)`)
	sqlTautologyPattern = regexp.MustCompile(`(?i)\b(AND|OR)\b\s*\d+\s*[=<>]`)
	closingBracePattern = regexp.MustCompile(`^[^{}]*}`)
)

// suspiciousFields returns one message per checkout field whose value looks
// like an SQL injection attempt, in field name order.
func suspiciousFields(fields map[string]string) []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var messages []string
	for _, name := range names {
		if looksLikeSQLInjection(fields[name]) {
			messages = append(messages, fmt.Sprintf("Please enter a valid %q.", fieldLabel(name)))
		}
	}
	return messages
}

func looksLikeSQLInjection(value string) bool {
	for _, loc := range sqlKeywordPattern.FindAllStringIndex(value, -1) {
		// A keyword inside a {...} template placeholder is allowed.
		if !closingBracePattern.MatchString(value[loc[1]:]) {
			return true
		}
	}
	return sqlCommentPattern.MatchString(value) || sqlTautologyPattern.MatchString(value)
}

func fieldLabel(name string) string {
	label := strings.ReplaceAll(name, "_", " ")
	if label == "" {
		return label
	}
	return strings.ToUpper(label[:1]) + label[1:]
}
