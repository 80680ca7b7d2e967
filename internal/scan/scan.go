// Package scan discovers test files and extracts test-function records with
// any nearby documentation identifiers.
//
// Discovery walks the project tree once, matching each file against its
// language's test-file globs. Each discovered file is read and run through the
// language's ordered construct detectors; a symmetric character window around
// each construct is then searched for strict identifier matches. Failures are
// isolated per file and per construct: one unreadable or bizarre file never
// aborts the scan. Output order is stable (file-discovery order, then
// construct-discovery order) so reports are deterministic.
package scan

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/specdrift/specdrift/internal/changeset"
	"github.com/specdrift/specdrift/internal/lang"
	"github.com/specdrift/specdrift/internal/patterns"
	"github.com/specdrift/specdrift/internal/search"
)

// DefaultSkipDirs are directory names never descended into.
var DefaultSkipDirs = []string{
	".git",
	"node_modules",
	"vendor",
	"dist",
	"build",
	"target",
	"__pycache__",
	".venv",
	"venv",
	"bin",
	"obj",
}

// TestFunction is one scanned test construct.
type TestFunction struct {
	// File is the root-relative path of the test file.
	File string `json:"file"`

	// Name is the test function, method, or literal test-case name.
	Name string `json:"name"`

	// QualifiedName is File plus owner type plus Name.
	QualifiedName string `json:"qualified_name"`

	// Kind classifies the construct declaration style.
	Kind lang.ConstructKind `json:"kind"`

	// OwnerType is the containing class or suite name, if any.
	OwnerType string `json:"owner_type,omitempty"`

	// Identifiers are documentation ids found within the proximity window,
	// sorted. May be empty: an implementation without any documentation tag.
	Identifiers []string `json:"identifiers,omitempty"`

	// Line is the 1-based line number of the construct.
	Line int `json:"line"`

	// Language is the language that produced this record.
	Language lang.Language `json:"language"`
}

// ScanError records a non-fatal failure during scanning.
type ScanError struct {
	Path  string
	Phase string // "discovery" or "read" or "scan"
	Err   error
}

// Error implements the error interface.
func (e ScanError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("[%s] %v", e.Phase, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %v", e.Phase, e.Path, e.Err)
}

// Combined folds scan errors into a single error value, or nil when empty.
func Combined(errs []ScanError) error {
	var merr *multierror.Error
	for _, e := range errs {
		merr = multierror.Append(merr, e)
	}
	return merr.ErrorOrNil()
}

// Scanner applies the language rule registry to a project's test files.
// A Scanner is bound to one root and one loaded pattern set; it is not safe
// for concurrent use.
type Scanner struct {
	root     string
	registry *lang.Registry
	provider *patterns.Provider
	searcher search.Searcher
	logger   *slog.Logger
}

// NewScanner creates a scanner for the project rooted at root.
// searcher may be nil; discovery then stays in walk order.
func NewScanner(root string, registry *lang.Registry, provider *patterns.Provider, searcher search.Searcher, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{
		root:     root,
		registry: registry,
		provider: provider,
		searcher: searcher,
		logger:   logger,
	}
}

// FileEntry is one discovered test file.
type FileEntry struct {
	RelPath  string
	Language lang.Language
}

// ScanAll discovers and scans every test file, optionally restricted to a
// changeset. A nil changeset scans everything.
func (s *Scanner) ScanAll(ctx context.Context, cs changeset.ChangeSet) ([]TestFunction, []ScanError) {
	files, errs := s.Discover(ctx, cs)
	fns, scanErrs := s.ScanFiles(ctx, files)
	return fns, append(errs, scanErrs...)
}

// Discover returns the prioritized test files, optionally restricted to a
// changeset. A nil changeset keeps everything.
func (s *Scanner) Discover(ctx context.Context, cs changeset.ChangeSet) ([]FileEntry, []ScanError) {
	files, errs := s.DiscoverTestFiles(ctx)

	if cs != nil {
		filtered := files[:0]
		for _, f := range files {
			if cs.Contains(f.RelPath) {
				filtered = append(filtered, f)
			}
		}
		files = filtered
	}

	return s.prioritize(ctx, files), errs
}

// ScanFiles extracts test functions from already-discovered files.
func (s *Scanner) ScanFiles(ctx context.Context, files []FileEntry) ([]TestFunction, []ScanError) {
	strictPatterns := s.strictPatterns()

	var (
		fns  []TestFunction
		errs []ScanError
	)
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			errs = append(errs, ScanError{Phase: "scan", Err: err})
			break
		}

		rule, ok := s.registry.RulesFor(f.Language)
		if !ok {
			continue
		}

		data, err := os.ReadFile(filepath.Join(s.root, f.RelPath))
		if err != nil {
			s.logger.Warn("skipping unreadable test file", "path", f.RelPath, "error", err)
			errs = append(errs, ScanError{Path: f.RelPath, Phase: "read", Err: err})
			continue
		}

		fns = append(fns, scanContent(string(data), f.RelPath, rule, strictPatterns)...)
	}

	return fns, errs
}

// DiscoverTestFiles walks the project tree for test-file candidates.
// Order is the walk's lexical order, which keeps reports deterministic.
func (s *Scanner) DiscoverTestFiles(ctx context.Context) ([]FileEntry, []ScanError) {
	skip := make(map[string]bool, len(DefaultSkipDirs))
	for _, d := range DefaultSkipDirs {
		skip[d] = true
	}

	var (
		files []FileEntry
		errs  []ScanError
	)

	walkErr := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			errs = append(errs, ScanError{Path: path, Phase: "discovery", Err: err})
			return nil
		}

		if d.IsDir() {
			if path != s.root && (skip[d.Name()] || strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		language, ok := s.registry.DetectLanguage(rel)
		if !ok {
			return nil
		}
		rule, ok := s.registry.RulesFor(language)
		if !ok {
			return nil
		}
		if !lang.IsTestFile(rule, rel) {
			return nil
		}

		files = append(files, FileEntry{RelPath: rel, Language: language})
		return nil
	})
	if walkErr != nil && walkErr != context.Canceled {
		errs = append(errs, ScanError{Phase: "discovery", Err: walkErr})
	}

	return files, errs
}

// prioritize reorders files via the optional semantic-search collaborator.
func (s *Scanner) prioritize(ctx context.Context, files []FileEntry) []FileEntry {
	if s.searcher == nil || len(files) == 0 {
		return files
	}

	paths := make([]string, len(files))
	byPath := make(map[string]FileEntry, len(files))
	for i, f := range files {
		paths[i] = f.RelPath
		byPath[f.RelPath] = f
	}

	ranked := search.Rank(ctx, s.searcher, "test files referencing documentation identifiers", paths)

	out := make([]FileEntry, 0, len(files))
	for _, p := range ranked {
		out = append(out, byPath[p])
	}
	return out
}

// strictPatterns collects the strict pattern of every enabled prefix.
func (s *Scanner) strictPatterns() []PatternRef {
	return StrictPatternsFor(s.provider)
}

// PatternRef pairs a prefix with its compiled strict pattern.
type PatternRef struct {
	Prefix  string
	Pattern *regexp.Regexp
}

// scanContent runs a language's ordered construct detectors over file content.
// An offset claimed by an earlier detector is not re-claimed by a later one.
func scanContent(content, relPath string, rule lang.Rule, strict []PatternRef) []TestFunction {
	var fns []TestFunction
	claimed := make(map[int]bool)

	emit := func(kind lang.ConstructKind, owner, name string, offset int) {
		if claimed[offset] {
			return
		}
		claimed[offset] = true

		qualified := relPath + "::" + name
		if owner != "" {
			qualified = relPath + "::" + owner + "." + name
		}

		fns = append(fns, TestFunction{
			File:          relPath,
			Name:          name,
			QualifiedName: qualified,
			Kind:          kind,
			OwnerType:     owner,
			Identifiers:   IdentifiersNear(content, offset, rule.ProximityWindow, strict),
			Line:          lineAt(content, offset),
			Language:      rule.Language,
		})
	}

	for _, cp := range rule.Constructs {
		if cp.Container != nil {
			containers := cp.Container.FindAllStringSubmatchIndex(content, -1)
			for i, c := range containers {
				regionStart := c[0]
				regionEnd := len(content)
				if i+1 < len(containers) {
					regionEnd = containers[i+1][0]
				}
				owner := content[c[2]:c[3]]

				region := content[regionStart:regionEnd]
				for _, m := range cp.Member.FindAllStringSubmatchIndex(region, -1) {
					emit(cp.Kind, owner, region[m[2]:m[3]], regionStart+m[0])
				}
			}
			continue
		}

		for _, m := range cp.Member.FindAllStringSubmatchIndex(content, -1) {
			emit(cp.Kind, "", content[m[2]:m[3]], m[0])
		}
	}

	return fns
}

// IdentifiersNear returns the sorted, de-duplicated identifiers matching any
// strict pattern within a symmetric window around offset. It is a pure
// function of its inputs, independent of file I/O.
func IdentifiersNear(content string, offset, window int, strict []PatternRef) []string {
	start := offset - window
	if start < 0 {
		start = 0
	}
	end := offset + window
	if end > len(content) {
		end = len(content)
	}
	region := content[start:end]

	set := make(map[string]bool)
	for _, ref := range strict {
		for _, id := range ref.Pattern.FindAllString(region, -1) {
			set[id] = true
		}
	}

	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// StrictPatternsFor builds pattern refs from a provider. With no explicit
// prefixes it covers every enabled prefix.
func StrictPatternsFor(provider *patterns.Provider, prefixes ...string) []PatternRef {
	if len(prefixes) == 0 {
		prefixes = provider.EnabledPrefixes()
	}
	refs := make([]PatternRef, 0, len(prefixes))
	for _, prefix := range prefixes {
		refs = append(refs, PatternRef{Prefix: prefix, Pattern: provider.PatternFor(prefix, true)})
	}
	return refs
}

// lineAt converts a byte offset to a 1-based line number.
func lineAt(content string, offset int) int {
	if offset > len(content) {
		offset = len(content)
	}
	return strings.Count(content[:offset], "\n") + 1
}
