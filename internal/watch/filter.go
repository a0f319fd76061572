package watch

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/moby/patternmatcher"
)

// PathFilter applies a target's include/exclude patterns to event paths.
// Patterns use dockerignore-style globs matched against the target-relative
// path; a pattern without a separator also matches at any depth.
type PathFilter struct {
	root    string
	include *patternmatcher.PatternMatcher
	exclude *patternmatcher.PatternMatcher
}

// NewPathFilter compiles include/exclude patterns for paths under root.
func NewPathFilter(root string, include, exclude []string) (*PathFilter, error) {
	f := &PathFilter{root: root}
	if len(include) > 0 {
		pm, err := patternmatcher.New(ExpandPatterns(include))
		if err != nil {
			return nil, fmt.Errorf("include patterns: %w", err)
		}
		f.include = pm
	}
	if len(exclude) > 0 {
		pm, err := patternmatcher.New(ExpandPatterns(exclude))
		if err != nil {
			return nil, fmt.Errorf("exclude patterns: %w", err)
		}
		f.exclude = pm
	}
	return f, nil
}

// ExpandPatterns widens separator-free patterns so "*.tmp" matches nested
// paths the way users read it, not just the top level.
func ExpandPatterns(patterns []string) []string {
	out := make([]string, 0, len(patterns)*2)
	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		out = append(out, pattern)
		if !strings.Contains(pattern, "/") {
			out = append(out, "**/"+pattern)
		}
	}
	return out
}

// Allows reports whether an event for path passes the filter. The target
// root itself always passes so resync markers survive filtering.
func (f *PathFilter) Allows(path string) bool {
	rel, ok := f.relative(path)
	if !ok {
		return false
	}
	if rel == "." {
		return true
	}
	if f.exclude != nil {
		if matched, err := f.exclude.MatchesOrParentMatches(rel); err == nil && matched {
			return false
		}
	}
	if f.include != nil {
		matched, err := f.include.MatchesOrParentMatches(rel)
		if err != nil || !matched {
			return false
		}
	}
	return true
}

// SkipsDir reports whether a directory should be pruned from recursive
// walks. Only exclude patterns prune; include patterns describe files and
// must not stop descent.
func (f *PathFilter) SkipsDir(path string) bool {
	if f.exclude == nil {
		return false
	}
	rel, ok := f.relative(path)
	if !ok || rel == "." {
		return false
	}
	matched, err := f.exclude.MatchesOrParentMatches(rel)
	return err == nil && matched
}

func (f *PathFilter) relative(path string) (string, bool) {
	rel, err := filepath.Rel(f.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(rel), true
}
