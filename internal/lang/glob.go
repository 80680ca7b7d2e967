package lang

import (
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// MatchesGlobs reports whether a root-relative path matches any glob.
// Invalid globs are treated as non-matching.
func MatchesGlobs(globs []string, relPath string) bool {
	relPath = filepath.ToSlash(relPath)
	for _, g := range globs {
		ok, err := doublestar.Match(g, relPath)
		if err != nil {
			continue
		}
		if ok {
			return true
		}
	}
	return false
}

// IsTestFile reports whether a root-relative path matches a rule's test-file
// globs.
func IsTestFile(rule Rule, relPath string) bool {
	return MatchesGlobs(rule.TestFileGlobs, relPath)
}
