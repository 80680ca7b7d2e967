// Package drift classifies disagreements between documentation and
// implementation into severity-ranked findings.
//
// Three analyzers live here: the test-case analyzer (documented ids versus
// proximity-tagged implementations), the feature analyzer (file-granularity
// feature references plus feature-to-test-case cross-referencing), and the
// comprehensive detector (a set of independent secondary heuristics). All of
// them are stateless functions of their inputs: identical scan output yields
// identical findings.
package drift

import (
	"sort"

	"github.com/specdrift/specdrift/internal/docs"
	"github.com/specdrift/specdrift/internal/lang"
	"github.com/specdrift/specdrift/internal/scan"
)

// TCResult is the test-case drift report section.
type TCResult struct {
	// Unimplemented are documented test cases with no tagged implementation.
	Unimplemented []docs.TestCase `json:"unimplemented"`

	// OrphanedIDs are test-case ids found near implementations but never
	// documented, sorted.
	OrphanedIDs []string `json:"orphaned_ids"`

	// Untagged are implementations carrying no documentation identifier.
	Untagged []scan.TestFunction `json:"untagged_implementations"`

	// TotalTestCases and TotalTestFunctions are the input sizes.
	TotalTestCases     int `json:"total_test_cases"`
	TotalTestFunctions int `json:"total_test_functions"`

	// DetectedLanguages are the languages seen in the scan, sorted.
	DetectedLanguages []string `json:"detected_languages"`
}

// AnalyzeTestCases cross-references documented test cases with scanned
// implementations. Deterministic and idempotent for identical inputs.
func AnalyzeTestCases(testCases []docs.TestCase, impls []scan.TestFunction, tcPrefix string) TCResult {
	byID := make(map[string]docs.TestCase, len(testCases))
	for _, tc := range testCases {
		byID[tc.ID] = tc
	}

	// Inverted index over each implementation's identifier set.
	implsByID := make(map[string][]scan.TestFunction)
	languages := make(map[lang.Language]bool)
	var untagged []scan.TestFunction

	for _, impl := range impls {
		languages[impl.Language] = true

		tagged := false
		for _, id := range impl.Identifiers {
			if matchesPrefix(id, tcPrefix) {
				implsByID[id] = append(implsByID[id], impl)
				tagged = true
			}
		}
		if !tagged {
			untagged = append(untagged, impl)
		}
	}

	var unimplemented []docs.TestCase
	for _, tc := range testCases {
		if _, ok := implsByID[tc.ID]; !ok {
			unimplemented = append(unimplemented, tc)
		}
	}

	var orphaned []string
	for id := range implsByID {
		if _, ok := byID[id]; !ok {
			orphaned = append(orphaned, id)
		}
	}
	sort.Strings(orphaned)

	return TCResult{
		Unimplemented:      unimplemented,
		OrphanedIDs:        orphaned,
		Untagged:           untagged,
		TotalTestCases:     len(testCases),
		TotalTestFunctions: len(impls),
		DetectedLanguages:  languageNames(languages),
	}
}

func matchesPrefix(id, prefix string) bool {
	return len(id) >= len(prefix) && id[:len(prefix)] == prefix
}

func languageNames(set map[lang.Language]bool) []string {
	names := make([]string, 0, len(set))
	for l := range set {
		names = append(names, string(l))
	}
	sort.Strings(names)
	return names
}
