// Package report persists analysis results and derives their severity
// classification.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"

	"github.com/specdrift/specdrift/internal/analyzer"
	"github.com/specdrift/specdrift/internal/drift"
)

// OutputLocationConfig names where report artifacts land. Explicit config
// instead of ambient process-wide directories so tests and multi-root runs
// can isolate their output.
type OutputLocationConfig struct {
	// ReportPath is the JSON document destination. Empty means no file is
	// written.
	ReportPath string

	// SummaryWriter receives the human-readable summary. Nil means stdout.
	SummaryWriter io.Writer

	// Quiet suppresses the human-readable summary entirely.
	Quiet bool
}

// Emitter serializes reports and prints summaries.
type Emitter struct {
	cfg    OutputLocationConfig
	logger *slog.Logger
}

// NewEmitter builds an emitter with the given output locations.
func NewEmitter(cfg OutputLocationConfig, logger *slog.Logger) *Emitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Emitter{cfg: cfg, logger: logger}
}

// Emit writes the JSON document (when a path is configured) and the summary
// (unless quiet), returning the report's severity classification.
func (e *Emitter) Emit(r *analyzer.Report) (int, error) {
	severity := Severity(r)

	if e.cfg.ReportPath != "" {
		if err := e.writeJSON(r); err != nil {
			return severity, err
		}
		e.logger.Info("report written",
			"path", e.cfg.ReportPath, "mode", r.Mode, "severity", severity)
	}

	if !e.cfg.Quiet {
		e.writeSummary(r, severity)
	}

	return severity, nil
}

func (e *Emitter) writeJSON(r *analyzer.Report) error {
	if dir := filepath.Dir(e.cfg.ReportPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating report directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("serializing report: %w", err)
	}
	if err := os.WriteFile(e.cfg.ReportPath, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}

func (e *Emitter) writeSummary(r *analyzer.Report, severity int) {
	w := e.cfg.SummaryWriter
	if w == nil {
		w = os.Stdout
	}

	bold := color.New(color.Bold).SprintFunc()

	fmt.Fprintf(w, "%s  mode=%s  %s\n",
		bold("drift analysis"), r.Mode,
		r.Metadata.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "  test cases: %d  test functions: %d  features: %d  languages: %v\n",
		r.Metadata.TotalTestCases, r.Metadata.TotalTestFunctions,
		r.Metadata.TotalFeatures, r.Metadata.DetectedLanguages)

	if r.TestCases != nil {
		fmt.Fprintf(w, "  unimplemented: %d  orphaned ids: %d  untagged: %d\n",
			len(r.TestCases.Unimplemented), len(r.TestCases.OrphanedIDs),
			len(r.TestCases.Untagged))
	}
	if r.Features != nil {
		fmt.Fprintf(w, "  features without tests: %d  orphaned feature ids: %d\n",
			len(r.Features.FeaturesWithoutTests), len(r.Features.OrphanedFeatureIDs))
	}
	if len(r.Mappings) > 0 {
		fmt.Fprintf(w, "  feature/test-case mapping issues: %d\n",
			drift.MappingIssueCount(r.Mappings))
	}
	if r.Coverage != nil {
		fmt.Fprintf(w, "  coverage: %.1f%% (%d/%d functions)  issues: %d\n",
			r.Coverage.Percent, r.Coverage.TestedFunctions,
			r.Coverage.TotalFunctions, len(r.Coverage.Issues))
	}
	if len(r.Drift) > 0 {
		fmt.Fprintf(w, "  drift issues: %d\n", len(r.Drift))
	}
	if r.Metadata.ScanErrors > 0 {
		fmt.Fprintf(w, "  %s %d file(s) skipped due to read errors\n",
			color.YellowString("warning:"), r.Metadata.ScanErrors)
	}

	fmt.Fprintf(w, "  severity: %s\n", severityLabel(severity))
}

func severityLabel(severity int) string {
	switch severity {
	case 0:
		return color.GreenString("0 (ok)")
	case 1:
		return color.YellowString("1 (moderate)")
	default:
		return color.RedString("2 (severe)")
	}
}

// Severity classifies a report as 0 (ok), 1 (moderate), or 2 (severe).
//
// tc-mapping rates the share of unimplemented plus untagged entries against
// total test cases plus test functions; code-coverage rates the coverage
// percentage; feature-impl rates the mapping issue count; all takes the
// maximum of whichever sections are present.
func Severity(r *analyzer.Report) int {
	severity := 0

	if r.TestCases != nil {
		if s := tcSeverity(r); s > severity {
			severity = s
		}
	}
	if r.Coverage != nil {
		if s := coverageSeverity(r.Coverage.Percent); s > severity {
			severity = s
		}
	}
	if r.Mappings != nil {
		if s := featureImplSeverity(drift.MappingIssueCount(r.Mappings)); s > severity {
			severity = s
		}
	}

	return severity
}

func tcSeverity(r *analyzer.Report) int {
	total := r.TestCases.TotalTestCases + r.TestCases.TotalTestFunctions
	if total == 0 {
		return 0
	}

	gap := len(r.TestCases.Unimplemented) + len(r.TestCases.Untagged)
	ratio := float64(gap) / float64(total)

	switch {
	case ratio > 0.25:
		return 2
	case ratio > 0.10:
		return 1
	default:
		return 0
	}
}

func coverageSeverity(percent float64) int {
	switch {
	case percent >= 80.0:
		return 0
	case percent >= 60.0:
		return 1
	default:
		return 2
	}
}

func featureImplSeverity(issueCount int) int {
	switch {
	case issueCount == 0:
		return 0
	case issueCount <= 3:
		return 1
	default:
		return 2
	}
}
