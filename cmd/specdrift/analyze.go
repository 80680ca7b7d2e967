package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/specdrift/specdrift/internal/analyzer"
	"github.com/specdrift/specdrift/internal/changeset"
	"github.com/specdrift/specdrift/internal/report"
)

var (
	analyzeMode   string
	testCasesFile string
	featuresFile  string
	outputPath    string
	quiet         bool
	changedOnly   bool
	changedSince  string
	prDiffBase    string
	recentDays    int
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [root...]",
	Short: "Run drift analysis over one or more project roots",
	Long: `Analyze cross-references documentation with test code and reports drift.

Modes:
  tc-mapping     documented test cases vs tagged implementations
  ft-mapping     documented features vs test-file references
  ft-tc-mapping  both of the above
  code-coverage  production functions vs discoverable tests
  feature-impl   feature criteria vs declared test cases
  all            everything, plus secondary drift heuristics

With no root argument the current directory is analyzed. Several roots run
concurrently, each with its own analyzer; the exit code is the maximum
severity across roots.

Examples:
  specdrift analyze
  specdrift analyze --mode tc-mapping ~/src/shop
  specdrift analyze --mode all --output drift-report.json
  specdrift analyze --changed-since HEAD~5
  specdrift analyze --pr-diff main --mode tc-mapping`,
	Args: cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		roots := args
		if len(roots) == 0 {
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			roots = []string{cwd}
		}

		maxSeverity, err := analyzeRoots(cmd.Context(), roots)
		if err != nil {
			return err
		}

		// The severity is the exit code; cobra would treat a plain error
		// as a hard failure, so exit directly.
		os.Exit(maxSeverity)
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeMode, "mode", "m", string(analyzer.ModeAll),
		"analysis mode (tc-mapping, ft-mapping, ft-tc-mapping, code-coverage, feature-impl, all)")
	analyzeCmd.Flags().StringVar(&testCasesFile, "test-cases", "",
		"test-case document path, relative to the root (overrides configuration)")
	analyzeCmd.Flags().StringVar(&featuresFile, "features", "",
		"feature document path, relative to the root (overrides configuration)")
	analyzeCmd.Flags().StringVarP(&outputPath, "output", "o", "",
		"JSON report destination (a directory when several roots are given)")
	analyzeCmd.Flags().BoolVarP(&quiet, "quiet", "q", false,
		"suppress the human-readable summary")
	analyzeCmd.Flags().BoolVar(&changedOnly, "changed-only", false,
		"restrict scanning to files changed, staged, or untracked in git")
	analyzeCmd.Flags().StringVar(&changedSince, "changed-since", "",
		"restrict scanning to files changed since the given git ref")
	analyzeCmd.Flags().StringVar(&prDiffBase, "pr-diff", "",
		"restrict scanning to files changed vs the merge base with the given branch")
	analyzeCmd.Flags().IntVar(&recentDays, "recent-days", 0,
		"restrict scanning to files changed in the last N days")

	rootCmd.AddCommand(analyzeCmd)
}

// analyzeRoots fans out one analyzer per root and returns the maximum
// severity. A hard failure in any root aborts the whole invocation.
func analyzeRoots(ctx context.Context, roots []string) (int, error) {
	var (
		mu          sync.Mutex
		maxSeverity int
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, root := range roots {
		root := root
		g.Go(func() error {
			severity, err := analyzeOne(gctx, root, len(roots) > 1)
			if err != nil {
				return fmt.Errorf("%s: %w", root, err)
			}
			mu.Lock()
			if severity > maxSeverity {
				maxSeverity = severity
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return maxSeverity, nil
}

func analyzeOne(ctx context.Context, root string, multiRoot bool) (int, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return 0, err
	}

	cs, err := resolveChangeSet(ctx, abs)
	if err != nil {
		return 0, err
	}

	a := analyzer.New(abs, analyzer.Options{
		TestCasesFile: testCasesFile,
		FeaturesFile:  featuresFile,
		Version:       Version,
		Logger:        slog.Default(),
	})

	rep, err := a.Analyze(ctx, analyzer.Mode(analyzeMode), cs)
	if err != nil {
		return 0, err
	}

	emitter := report.NewEmitter(report.OutputLocationConfig{
		ReportPath: reportPathFor(abs, multiRoot),
		Quiet:      quiet,
	}, slog.Default())

	return emitter.Emit(rep)
}

// reportPathFor maps --output to a concrete file path. With several roots the
// flag names a directory and each root gets its own file in it.
func reportPathFor(root string, multiRoot bool) string {
	if outputPath == "" {
		return ""
	}
	if !multiRoot {
		return outputPath
	}
	return filepath.Join(outputPath, filepath.Base(root)+"-drift-report.json")
}

// resolveChangeSet builds the optional changed-file restriction from the
// incremental-scan flags. Git being unavailable degrades to a full scan.
func resolveChangeSet(ctx context.Context, root string) (changeset.ChangeSet, error) {
	if !changedOnly && changedSince == "" && prDiffBase == "" && recentDays == 0 {
		return nil, nil
	}

	resolver := changeset.NewResolver(ctx, root, slog.Default())
	if resolver.Degraded() {
		slog.Warn("git unavailable, scanning everything", "root", root)
		return nil, nil
	}

	var (
		cs  changeset.ChangeSet
		err error
	)
	switch {
	case changedSince != "":
		cs, err = resolver.ChangedSince(ctx, changedSince)
	case prDiffBase != "":
		cs, err = resolver.ChangedVsBaseBranch(ctx, prDiffBase)
	case recentDays > 0:
		cs, err = resolver.ChangedInLastNDays(ctx, recentDays)
	default:
		cs, err = resolver.ChangedAndStaged(ctx)
		if err == nil {
			var untracked changeset.ChangeSet
			untracked, err = resolver.Untracked(ctx)
			for path := range untracked {
				if cs == nil {
					cs = make(changeset.ChangeSet)
				}
				cs[path] = struct{}{}
			}
		}
	}
	if err != nil {
		slog.Warn("changeset resolution failed, scanning everything",
			"root", root, "error", err)
		return nil, nil
	}
	return cs, nil
}
