// Package utils provides utility functions for the application.
package utils

import (
	"context"
	"regexp"
	"strings"
)

func ToPtr[T any](v T) *T {
	return &v
}

// NormalizeUsername trims whitespace and a single leading "@"
func NormalizeUsername(raw string) string {
	u := strings.TrimSpace(raw)
	u = strings.TrimPrefix(u, "@")
	return strings.TrimSpace(u)
}

// UsernameKey is the case-insensitive identity of a username
func UsernameKey(username string) string {
	return strings.ToLower(NormalizeUsername(username))
}

var usernamePlaceholder = regexp.MustCompile(`\{\{\s*username\s*\}\}`)

// RenderTemplate substitutes every {{username}} placeholder
func RenderTemplate(template, username string) string {
	return usernamePlaceholder.ReplaceAllLiteralString(template, username)
}

// RequestIDFrom returns the request id stored in ctx, if any
func RequestIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(RequestIDKey).(string); ok {
		return v
	}
	return ""
}
