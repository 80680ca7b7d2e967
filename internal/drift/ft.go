package drift

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/specdrift/specdrift/internal/docs"
	"github.com/specdrift/specdrift/internal/scan"
)

// FeatureTestMapping links one feature to its test-case references.
type FeatureTestMapping struct {
	FeatureID    string `json:"feature_id"`
	FeatureTitle string `json:"feature_title"`

	// MatchedTestCaseIDs are referenced ids that exist in the parsed
	// test-case set.
	MatchedTestCaseIDs []string `json:"matched_test_case_ids"`

	// MissingTestCaseIDs are referenced ids that are not defined anywhere.
	MissingTestCaseIDs []string `json:"missing_test_case_ids"`

	// Issues describe mapping problems in prose.
	Issues []string `json:"issues,omitempty"`
}

// FTResult is the feature drift report section.
type FTResult struct {
	// FeaturesWithoutTests are features whose id appears in no test file.
	FeaturesWithoutTests []docs.Feature `json:"features_without_tests"`

	// TestsWithoutFeatureReference are test functions whose file mentions
	// no documented feature id.
	TestsWithoutFeatureReference []scan.TestFunction `json:"tests_without_feature_reference"`

	// OrphanedFeatureIDs are feature ids found in code but never
	// documented, sorted.
	OrphanedFeatureIDs []string `json:"orphaned_feature_ids"`

	// Mappings are the per-feature test-case cross-references.
	Mappings []FeatureTestMapping `json:"mappings,omitempty"`

	TotalFeatures int `json:"total_features"`
}

// FTAnalyzer cross-references features with implementations and test cases.
type FTAnalyzer struct {
	root   string
	logger *slog.Logger
}

// NewFTAnalyzer creates a feature drift analyzer for one project root.
func NewFTAnalyzer(root string, logger *slog.Logger) *FTAnalyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &FTAnalyzer{root: root, logger: logger}
}

// MapFeaturesToTests checks, at file granularity, which features are
// referenced from test code. Feature references typically live in comments or
// docstrings, so this is deliberately coarser than test-case proximity
// matching: a test function references a feature if the feature's literal id
// occurs anywhere in the function's source file.
func (a *FTAnalyzer) MapFeaturesToTests(features []docs.Feature, testFunctions []scan.TestFunction, ftPermissive *regexp.Regexp) FTResult {
	declared := make(map[string]bool, len(features))
	for _, ft := range features {
		declared[ft.ID] = true
	}

	// Read each test file once.
	fileContents := make(map[string]string)
	for _, fn := range testFunctions {
		if _, ok := fileContents[fn.File]; ok {
			continue
		}
		data, err := os.ReadFile(filepath.Join(a.root, fn.File))
		if err != nil {
			a.logger.Warn("skipping unreadable test file", "path", fn.File, "error", err)
			fileContents[fn.File] = ""
			continue
		}
		fileContents[fn.File] = string(data)
	}

	referenced := make(map[string]bool)
	fileHasFeatureRef := make(map[string]bool)
	orphanSet := make(map[string]bool)

	for file, content := range fileContents {
		for _, id := range ftPermissive.FindAllString(content, -1) {
			if declared[id] {
				referenced[id] = true
				fileHasFeatureRef[file] = true
			} else {
				orphanSet[id] = true
				fileHasFeatureRef[file] = true
			}
		}
	}

	var withoutTests []docs.Feature
	for _, ft := range features {
		if !referenced[ft.ID] {
			withoutTests = append(withoutTests, ft)
		}
	}

	var withoutFeatureRef []scan.TestFunction
	for _, fn := range testFunctions {
		if !fileHasFeatureRef[fn.File] {
			withoutFeatureRef = append(withoutFeatureRef, fn)
		}
	}

	orphaned := make([]string, 0, len(orphanSet))
	for id := range orphanSet {
		orphaned = append(orphaned, id)
	}
	sort.Strings(orphaned)

	return FTResult{
		FeaturesWithoutTests:         withoutTests,
		TestsWithoutFeatureReference: withoutFeatureRef,
		OrphanedFeatureIDs:           orphaned,
		TotalFeatures:                len(features),
	}
}

// CrossReferenceFeatureTestCases validates the test-case ids each feature
// references, in its description and criteria text and in its window-derived
// TestCaseIDs, against the parsed test-case set.
func CrossReferenceFeatureTestCases(features []docs.Feature, testCases []docs.TestCase, tcPermissive *regexp.Regexp) []FeatureTestMapping {
	defined := make(map[string]bool, len(testCases))
	for _, tc := range testCases {
		defined[tc.ID] = true
	}

	mappings := make([]FeatureTestMapping, 0, len(features))
	for _, ft := range features {
		m := FeatureTestMapping{
			FeatureID:    ft.ID,
			FeatureTitle: ft.Title,
		}

		text := ft.Description + "\n" + ft.Criteria
		referenced := tcPermissive.FindAllString(text, -1)
		referenced = append(referenced, ft.TestCaseIDs...)

		seen := make(map[string]bool)
		for _, id := range referenced {
			if seen[id] {
				continue
			}
			seen[id] = true

			if defined[id] {
				m.MatchedTestCaseIDs = append(m.MatchedTestCaseIDs, id)
			} else {
				m.MissingTestCaseIDs = append(m.MissingTestCaseIDs, id)
				m.Issues = append(m.Issues,
					fmt.Sprintf("references undefined test case %s", id))
			}
		}

		if len(m.MatchedTestCaseIDs) == 0 && len(m.MissingTestCaseIDs) == 0 {
			m.Issues = append(m.Issues, "no test-case reference found")
		}

		mappings = append(mappings, m)
	}

	return mappings
}

// MappingIssueCount totals the mapping issues across features, used by the
// feature-impl severity classification.
func MappingIssueCount(mappings []FeatureTestMapping) int {
	n := 0
	for _, m := range mappings {
		n += len(m.Issues)
	}
	return n
}
