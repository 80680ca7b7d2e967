// Package coverage finds production functions lacking a discoverable or
// content-matching test.
//
// This is static analysis of test-file presence and naming, not runtime
// coverage. For each production function the analyzer first looks for a
// conventionally-named test file; if one exists, it checks whether any test
// function scanned from it names the source function (case-insensitively, via
// a small set of naming variants).
package coverage

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/specdrift/specdrift/internal/lang"
	"github.com/specdrift/specdrift/internal/scan"
)

// IssueType classifies a coverage issue.
type IssueType string

const (
	// IssueMissingTestFile means no conventionally-named test file exists.
	IssueMissingTestFile IssueType = "missing_test_file"
	// IssueMissingTest means the test file exists but no test in it names
	// the function.
	IssueMissingTest IssueType = "missing_test"
	// IssueUntestedFunction means no test anywhere in the scan names the
	// function, even outside its conventional test file.
	IssueUntestedFunction IssueType = "untested_function"
	// IssueOrphanedTest means a test file has no corresponding source file.
	IssueOrphanedTest IssueType = "orphaned_test"
)

// Severity ranks a coverage issue.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Issue is one coverage finding.
type Issue struct {
	File     string    `json:"file"`
	Function string    `json:"function,omitempty"`
	Line     int       `json:"line,omitempty"`
	Type     IssueType `json:"type"`
	Severity Severity  `json:"severity"`
	Detail   string    `json:"detail,omitempty"`
}

// SourceFile is one discovered production file.
type SourceFile struct {
	RelPath  string
	Language lang.Language
}

// Function is one extracted production function.
type Function struct {
	Name string
	Line int
}

// Stats summarizes a coverage pass for the report metadata.
type Stats struct {
	TotalFunctions  int
	TestedFunctions int
}

// Percent returns the covered share as a percentage; an empty project counts
// as fully covered.
func (s Stats) Percent() float64 {
	if s.TotalFunctions == 0 {
		return 100.0
	}
	return float64(s.TestedFunctions) / float64(s.TotalFunctions) * 100.0
}

// Analyzer scans production source files for coverage gaps.
type Analyzer struct {
	root     string
	registry *lang.Registry
	logger   *slog.Logger
}

// NewAnalyzer creates a coverage analyzer for one project root.
func NewAnalyzer(root string, registry *lang.Registry, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{root: root, registry: registry, logger: logger}
}

// FindSourceFiles walks the tree for production candidates: files matching a
// language's source globs but not its test-file heuristic.
func (a *Analyzer) FindSourceFiles() []SourceFile {
	skip := make(map[string]bool, len(scan.DefaultSkipDirs))
	for _, d := range scan.DefaultSkipDirs {
		skip[d] = true
	}

	var files []SourceFile
	_ = filepath.WalkDir(a.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != a.root && (skip[d.Name()] || strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(a.root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		language, ok := a.registry.DetectLanguage(rel)
		if !ok {
			return nil
		}
		rule, ok := a.registry.RulesFor(language)
		if !ok {
			return nil
		}
		if !lang.MatchesGlobs(rule.SourceFileGlobs, rel) {
			return nil
		}
		if lang.IsTestFile(rule, rel) {
			return nil
		}

		files = append(files, SourceFile{RelPath: rel, Language: language})
		return nil
	})

	return files
}

// ExtractFunctions pulls candidate public functions from one source file.
func (a *Analyzer) ExtractFunctions(relPath string, language lang.Language) []Function {
	rule, ok := a.registry.RulesFor(language)
	if !ok || rule.FunctionPattern == nil {
		return nil
	}

	data, err := os.ReadFile(filepath.Join(a.root, relPath))
	if err != nil {
		a.logger.Warn("skipping unreadable source file", "path", relPath, "error", err)
		return nil
	}
	content := string(data)

	var fns []Function
	for _, m := range rule.FunctionPattern.FindAllStringSubmatchIndex(content, -1) {
		name := content[m[2]:m[3]]
		if !lang.IsPublicName(name, rule.PublicStyle) {
			continue
		}
		fns = append(fns, Function{
			Name: name,
			Line: strings.Count(content[:m[0]], "\n") + 1,
		})
	}
	return fns
}

// FindCorrespondingTestFile returns the first existing conventionally-named
// test file for a source file.
func (a *Analyzer) FindCorrespondingTestFile(relPath string, language lang.Language) (string, bool) {
	rule, ok := a.registry.RulesFor(language)
	if !ok {
		return "", false
	}

	for _, candidate := range lang.ExpandTestFileTemplates(rule, relPath) {
		if _, err := os.Stat(filepath.Join(a.root, candidate)); err == nil {
			return filepath.ToSlash(candidate), true
		}
	}
	return "", false
}

// ScanCoverageIssues cross-references production functions against the
// scanned test functions and reports the gaps.
func (a *Analyzer) ScanCoverageIssues(testFunctions []scan.TestFunction) ([]Issue, Stats) {
	testsByFile := make(map[string][]scan.TestFunction)
	for _, fn := range testFunctions {
		testsByFile[fn.File] = append(testsByFile[fn.File], fn)
	}

	var (
		out   []Issue
		stats Stats
	)

	sources := a.FindSourceFiles()
	sourceSet := make(map[string]bool, len(sources))
	for _, src := range sources {
		sourceSet[src.RelPath] = true
	}

	for _, src := range sources {
		fns := a.ExtractFunctions(src.RelPath, src.Language)
		if len(fns) == 0 {
			continue
		}

		testFile, hasTestFile := a.FindCorrespondingTestFile(src.RelPath, src.Language)

		for _, fn := range fns {
			stats.TotalFunctions++

			if !hasTestFile {
				out = append(out, Issue{
					File:     src.RelPath,
					Function: fn.Name,
					Line:     fn.Line,
					Type:     IssueMissingTestFile,
					Severity: SeverityHigh,
					Detail:   "no test file found under any naming convention",
				})
				continue
			}

			if anyTestMatches(testsByFile[testFile], fn.Name) {
				stats.TestedFunctions++
				continue
			}

			if anyTestMatches(testFunctions, fn.Name) {
				// Named elsewhere than its conventional test file;
				// still counted as covered, flagged softly.
				stats.TestedFunctions++
				out = append(out, Issue{
					File:     src.RelPath,
					Function: fn.Name,
					Line:     fn.Line,
					Type:     IssueUntestedFunction,
					Severity: SeverityLow,
					Detail:   "tested outside its conventional test file " + testFile,
				})
				continue
			}

			out = append(out, Issue{
				File:     src.RelPath,
				Function: fn.Name,
				Line:     fn.Line,
				Type:     IssueMissingTest,
				Severity: SeverityMedium,
				Detail:   "no matching test in " + testFile,
			})
		}
	}

	// Test files whose mirrored source never existed.
	out = append(out, a.orphanedTests(testsByFile, sourceSet)...)

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].File != out[j].File {
			return out[i].File < out[j].File
		}
		return out[i].Line < out[j].Line
	})

	return out, stats
}

// anyTestMatches checks the naming-variant heuristic: a test covers a
// function when its lowercased name contains the function name or one of the
// conventional variants.
func anyTestMatches(tests []scan.TestFunction, funcName string) bool {
	lower := strings.ToLower(funcName)
	variants := []string{
		lower,
		"test_" + lower,
		"test" + lower,
	}

	for _, test := range tests {
		testName := strings.ToLower(test.Name)
		for _, v := range variants {
			if strings.Contains(testName, v) {
				return true
			}
		}
	}
	return false
}

// orphanedTests flags test files that do not correspond to any source file.
func (a *Analyzer) orphanedTests(testsByFile map[string][]scan.TestFunction, sourceSet map[string]bool) []Issue {
	var out []Issue
	for testFile := range testsByFile {
		language, ok := a.registry.DetectLanguage(testFile)
		if !ok {
			continue
		}
		rule, ok := a.registry.RulesFor(language)
		if !ok {
			continue
		}

		if hasSourceCandidate(testFile, rule, sourceSet) {
			continue
		}
		out = append(out, Issue{
			File:     testFile,
			Type:     IssueOrphanedTest,
			Severity: SeverityLow,
			Detail:   "test file has no corresponding source file",
		})
	}
	return out
}

// hasSourceCandidate reports whether any source file's conventional test
// names would produce this test file.
func hasSourceCandidate(testFile string, rule lang.Rule, sourceSet map[string]bool) bool {
	for src := range sourceSet {
		for _, candidate := range lang.ExpandTestFileTemplates(rule, src) {
			if filepath.ToSlash(candidate) == testFile {
				return true
			}
		}
	}
	return false
}
