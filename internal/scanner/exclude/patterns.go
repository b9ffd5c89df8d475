package exclude

import (
	"path"
	"strings"
)

// Matcher reports whether a path relative to the scan root is excluded
type Matcher struct {
	patterns []string
}

// DefaultPatterns lists workspace noise that is never a real workbook:
// Excel owner/lock files, VCS metadata and macOS resource forks.
func DefaultPatterns() []string {
	return []string{
		"~$*",
		".git/",
		".svn/",
		".DS_Store",
		"._*",
	}
}

// New builds a matcher from user patterns. Blank patterns are dropped.
// Pass DefaultPatterns() explicitly to include them.
func New(patterns ...[]string) *Matcher {
	merged := []string{}
	for _, group := range patterns {
		for _, p := range group {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			merged = append(merged, p)
		}
	}
	return &Matcher{patterns: merged}
}

// Empty reports whether the matcher has no patterns
func (m *Matcher) Empty() bool {
	return m == nil || len(m.patterns) == 0
}

// IsExcluded matches relPath (slash separated) against every pattern.
// A trailing "/" restricts a pattern to directories and their contents;
// glob patterns match either the full relative path or its base name.
func (m *Matcher) IsExcluded(relPath string, isDir bool) bool {
	if m.Empty() {
		return false
	}
	relPath = strings.TrimPrefix(relPath, "./")
	for _, p := range m.patterns {
		if strings.HasSuffix(p, "/") {
			dirPattern := strings.TrimSuffix(p, "/")
			if relPath == dirPattern || strings.HasPrefix(relPath, dirPattern+"/") {
				return true
			}
			if isDir && path.Base(relPath) == dirPattern {
				return true
			}
			continue
		}
		if strings.ContainsAny(p, "*?[]") {
			if ok, _ := path.Match(p, relPath); ok {
				return true
			}
			if ok, _ := path.Match(p, path.Base(relPath)); ok {
				return true
			}
			continue
		}
		if relPath == p || strings.HasPrefix(relPath, p+"/") {
			return true
		}
		if !isDir && path.Base(relPath) == p {
			return true
		}
	}
	return false
}
