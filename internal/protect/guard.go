// Package protect decides which paths the file-writing tools must leave alone.
package protect

import (
	"path/filepath"
	"strings"
	"sync"
)

// DefaultPatterns are glob patterns for paths that are never modified.
// "**" matches any number of path segments.
var DefaultPatterns = []string{
	"**/.git/**",
	"**/.ssh/**",
	"**/.gnupg/**",
	"**/secrets/**",
	"**/credentials/**",
	"**/.env",
	"**/.env.*",
}

// DefaultFileTypes are extensions of key and certificate material.
var DefaultFileTypes = []string{
	".pem",
	".key",
	".p12",
	".pfx",
	".jks",
	".keystore",
}

// Guard checks paths against protected patterns and file types.
// A nil Guard protects nothing.
type Guard struct {
	mu        sync.RWMutex
	patterns  []string
	fileTypes []string
}

// New creates a guard with the defaults plus extra rules. An extra rule that
// looks like a bare extension (".sql") protects that file type; anything else
// is a glob pattern.
func New(extra ...string) *Guard {
	g := &Guard{
		patterns:  append([]string{}, DefaultPatterns...),
		fileTypes: append([]string{}, DefaultFileTypes...),
	}
	for _, rule := range extra {
		g.Add(rule)
	}
	return g
}

// Add registers another rule, see New.
func (g *Guard) Add(rule string) {
	rule = strings.TrimSpace(rule)
	if rule == "" {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if isFileType(rule) {
		g.fileTypes = append(g.fileTypes, strings.ToLower(rule))
		return
	}
	g.patterns = append(g.patterns, filepath.ToSlash(rule))
}

func isFileType(rule string) bool {
	return strings.HasPrefix(rule, ".") && len(rule) > 1 &&
		!strings.ContainsAny(rule[1:], "./*?[")
}

// Check reports whether path is protected and, if so, which rule matched.
// Paths are matched as given, so callers should pass them relative to the
// directory the tools work in.
func (g *Guard) Check(path string) (bool, string) {
	if g == nil {
		return false, ""
	}
	normalized := strings.TrimPrefix(filepath.ToSlash(filepath.Clean(path)), "./")

	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, pattern := range g.patterns {
		if Match(normalized, pattern) {
			return true, "matches " + pattern
		}
	}
	ext := strings.ToLower(filepath.Ext(normalized))
	for _, ft := range g.fileTypes {
		if ext == ft {
			return true, "file type " + ft
		}
	}
	return false, ""
}

// IsProtected is Check without the reason.
func (g *Guard) IsProtected(path string) bool {
	protected, _ := g.Check(path)
	return protected
}
