package fsx

import (
	"path"
	"strings"
)

// Clean normalizes a relative object path and rejects paths that would
// escape the backend root.
func Clean(p string) (string, error) {
	p = strings.TrimSpace(strings.ReplaceAll(p, "\\", "/"))
	if p == "" || strings.HasPrefix(p, "/") {
		return "", ErrInvalidPath().WithDetail("path", p)
	}
	cleaned := path.Clean(p)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", ErrInvalidPath().WithDetail("path", p)
	}
	return cleaned, nil
}

// Join builds an object path from segments.
func Join(elem ...string) string {
	return path.Join(elem...)
}
