// Package analyzer is the multi-mode façade over the scanning and drift
// components. One Analyzer instance serves one project root; pattern
// configuration is loaded at construction and immutable afterwards, so an
// instance must not be shared across goroutines.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/specdrift/specdrift/internal/changeset"
	"github.com/specdrift/specdrift/internal/coverage"
	"github.com/specdrift/specdrift/internal/docs"
	"github.com/specdrift/specdrift/internal/drift"
	"github.com/specdrift/specdrift/internal/lang"
	"github.com/specdrift/specdrift/internal/patterns"
	"github.com/specdrift/specdrift/internal/scan"
	"github.com/specdrift/specdrift/internal/search"
)

// Mode selects which analyzers run.
type Mode string

const (
	ModeTCMapping    Mode = "tc-mapping"
	ModeFTMapping    Mode = "ft-mapping"
	ModeFTTCMapping  Mode = "ft-tc-mapping"
	ModeCodeCoverage Mode = "code-coverage"
	ModeFeatureImpl  Mode = "feature-impl"
	ModeAll          Mode = "all"
)

// Modes lists every recognized mode in display order.
var Modes = []Mode{
	ModeTCMapping,
	ModeFTMapping,
	ModeFTTCMapping,
	ModeCodeCoverage,
	ModeFeatureImpl,
	ModeAll,
}

var (
	// ErrUnknownMode aborts the invocation before any scanning happens.
	ErrUnknownMode = errors.New("unknown analysis mode")

	// ErrMissingDocumentation means a documentation file the requested mode
	// depends on could not be read.
	ErrMissingDocumentation = errors.New("required documentation missing")
)

// Metadata describes one analysis invocation.
type Metadata struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`
	Version     string    `json:"version"`
	DurationMS  int64     `json:"duration_ms"`

	TotalTestCases     int      `json:"total_test_cases"`
	TotalTestFunctions int      `json:"total_test_functions"`
	TotalFeatures      int      `json:"total_features"`
	ScanErrors         int      `json:"scan_errors"`
	DetectedLanguages  []string `json:"detected_languages"`

	// CoveragePercent is set when the coverage analyzer ran.
	CoveragePercent *float64 `json:"coverage_percent,omitempty"`

	// SeverityCounts is populated in all mode only.
	SeverityCounts map[string]int `json:"severity_counts,omitempty"`
}

// CoverageSection bundles the coverage analyzer's output.
type CoverageSection struct {
	Issues          []coverage.Issue `json:"issues"`
	TotalFunctions  int              `json:"total_functions"`
	TestedFunctions int              `json:"tested_functions"`
	Percent         float64          `json:"percent"`
}

// Report is the aggregate analysis result. It is constructed once per
// invocation and never mutated afterwards.
type Report struct {
	Mode     Mode     `json:"mode"`
	Root     string   `json:"root"`
	Metadata Metadata `json:"metadata"`

	TestCases *drift.TCResult            `json:"test_case_mapping,omitempty"`
	Features  *drift.FTResult            `json:"feature_mapping,omitempty"`
	Mappings  []drift.FeatureTestMapping `json:"feature_test_mappings,omitempty"`
	Coverage  *CoverageSection           `json:"coverage,omitempty"`
	Drift     []drift.Issue              `json:"drift_issues,omitempty"`
}

// Options tune one Analyzer instance.
type Options struct {
	// TestCasesFile and FeaturesFile override the configured documentation
	// locations when non-empty. Relative to the project root.
	TestCasesFile string
	FeaturesFile  string

	// Searcher, when set, prioritizes file scanning order.
	Searcher search.Searcher

	// Version is stamped into report metadata.
	Version string

	Logger *slog.Logger
}

// Analyzer wires the engine components for one project root.
type Analyzer struct {
	root     string
	provider *patterns.Provider
	registry *lang.Registry
	parser   *docs.Parser
	scanner  *scan.Scanner
	coverage *coverage.Analyzer
	features *drift.FTAnalyzer
	detector *drift.Detector
	logger   *slog.Logger
	opts     Options
}

// New builds an analyzer rooted at rootPath. Configuration problems degrade
// to defaults and never fail construction.
func New(rootPath string, opts Options) *Analyzer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}

	provider := patterns.Load(rootPath, logger)
	registry := lang.NewRegistry()

	return &Analyzer{
		root:     rootPath,
		provider: provider,
		registry: registry,
		parser:   docs.NewParser(logger),
		scanner:  scan.NewScanner(rootPath, registry, provider, opts.Searcher, logger),
		coverage: coverage.NewAnalyzer(rootPath, registry, logger),
		features: drift.NewFTAnalyzer(rootPath, logger),
		detector: drift.NewDetector(rootPath, provider, logger),
		logger:   logger,
		opts:     opts,
	}
}

// Analyze runs the requested mode over the root, optionally restricted to a
// changeset (nil means scan everything). An unknown mode or missing required
// documentation aborts with no report.
func (a *Analyzer) Analyze(ctx context.Context, mode Mode, cs changeset.ChangeSet) (*Report, error) {
	start := time.Now()

	if !knownMode(mode) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}

	needTC := mode == ModeTCMapping || mode == ModeFTTCMapping || mode == ModeAll
	needFT := mode == ModeFTMapping || mode == ModeFTTCMapping ||
		mode == ModeFeatureImpl || mode == ModeAll

	testCases, err := a.loadTestCases(needTC)
	if err != nil {
		return nil, err
	}
	features, err := a.loadFeatures(needFT)
	if err != nil {
		return nil, err
	}

	testFiles, discoverErrs := a.scanner.Discover(ctx, cs)
	testFns, scanErrs := a.scanner.ScanFiles(ctx, testFiles)
	scanErrs = append(discoverErrs, scanErrs...)
	if combined := scan.Combined(scanErrs); combined != nil {
		a.logger.Warn("scan completed with file errors",
			"count", len(scanErrs), "error", combined)
	}

	report := &Report{
		Mode: mode,
		Root: a.root,
		Metadata: Metadata{
			RunID:              uuid.NewString(),
			GeneratedAt:        start.UTC(),
			Version:            a.opts.Version,
			TotalTestCases:     len(testCases),
			TotalTestFunctions: len(testFns),
			TotalFeatures:      len(features),
			ScanErrors:         len(scanErrs),
			DetectedLanguages:  detectedLanguages(testFns),
		},
	}

	if mode == ModeTCMapping || mode == ModeFTTCMapping || mode == ModeAll {
		tc := drift.AnalyzeTestCases(testCases, testFns, "TC-")
		report.TestCases = &tc
	}

	if mode == ModeFTMapping || mode == ModeFTTCMapping || mode == ModeAll {
		ft := a.features.MapFeaturesToTests(
			features, testFns, a.provider.PatternFor("FT-", false))
		report.Features = &ft
	}

	if mode == ModeFTTCMapping || mode == ModeFeatureImpl || mode == ModeAll {
		report.Mappings = drift.CrossReferenceFeatureTestCases(
			features, testCases, a.provider.PatternFor("TC-", false))
	}

	if mode == ModeCodeCoverage || mode == ModeAll {
		issues, stats := a.coverage.ScanCoverageIssues(testFns)
		pct := stats.Percent()
		report.Coverage = &CoverageSection{
			Issues:          issues,
			TotalFunctions:  stats.TotalFunctions,
			TestedFunctions: stats.TestedFunctions,
			Percent:         pct,
		}
		report.Metadata.CoveragePercent = &pct
	}

	if mode == ModeAll {
		report.Drift = a.detector.Detect(testFiles, a.detector.DocumentationFiles())
		report.Metadata.SeverityCounts = severityCounts(report)
	}

	report.Metadata.DurationMS = time.Since(start).Milliseconds()

	a.logger.Info("analysis complete",
		"mode", mode,
		"run_id", report.Metadata.RunID,
		"test_cases", report.Metadata.TotalTestCases,
		"test_functions", report.Metadata.TotalTestFunctions,
		"duration_ms", report.Metadata.DurationMS)

	return report, nil
}

// loadTestCases parses the test-case document. A missing file is fatal only
// when the mode requires it; otherwise the run continues with an empty set.
func (a *Analyzer) loadTestCases(required bool) ([]docs.TestCase, error) {
	path := a.opts.TestCasesFile
	if path == "" {
		path = primaryFile(a.provider, "TC-", "docs/test-cases.md")
	}

	cases, err := a.parser.ParseTestCasesFile(filepath.Join(a.root, path))
	if err != nil {
		if required {
			return nil, fmt.Errorf("%w: %s: %v", ErrMissingDocumentation, path, err)
		}
		a.logger.Warn("test-case document unreadable, continuing without it",
			"path", path, "error", err)
		return nil, nil
	}
	return cases, nil
}

// loadFeatures parses the feature document and attaches the window-derived
// test-case references each feature carries in the raw text.
func (a *Analyzer) loadFeatures(required bool) ([]docs.Feature, error) {
	path := a.opts.FeaturesFile
	if path == "" {
		path = primaryFile(a.provider, "FT-", "docs/features.md")
	}

	raw, err := os.ReadFile(filepath.Join(a.root, path))
	if err != nil {
		if required {
			return nil, fmt.Errorf("%w: %s: %v", ErrMissingDocumentation, path, err)
		}
		a.logger.Warn("feature document unreadable, continuing without it",
			"path", path, "error", err)
		return nil, nil
	}

	features := a.parser.ParseFeatures(string(raw))
	docs.AttachTestCaseRefs(features, string(raw), docs.DefaultRefWindow,
		a.provider.PatternFor("FT-", false), a.provider.PatternFor("TC-", false))
	return features, nil
}

func primaryFile(provider *patterns.Provider, prefix, fallback string) string {
	if pat, ok := provider.Get(prefix); ok && len(pat.PrimaryFiles) > 0 {
		return pat.PrimaryFiles[0]
	}
	return fallback
}

func knownMode(mode Mode) bool {
	for _, m := range Modes {
		if m == mode {
			return true
		}
	}
	return false
}

func detectedLanguages(fns []scan.TestFunction) []string {
	set := make(map[string]bool)
	for _, fn := range fns {
		set[string(fn.Language)] = true
	}
	names := make([]string, 0, len(set))
	for n := range set {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// severityCounts totals issues by severity label across the coverage and
// generic drift collections.
func severityCounts(r *Report) map[string]int {
	counts := make(map[string]int)
	if r.Coverage != nil {
		for _, issue := range r.Coverage.Issues {
			counts[string(issue.Severity)]++
		}
	}
	for _, issue := range r.Drift {
		counts[string(issue.Severity)]++
	}
	return counts
}
