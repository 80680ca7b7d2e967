package drift

import (
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/specdrift/specdrift/internal/lang"
	"github.com/specdrift/specdrift/internal/patterns"
	"github.com/specdrift/specdrift/internal/scan"
)

// IssueSeverity ranks a generic drift issue.
type IssueSeverity string

const (
	SeverityCritical IssueSeverity = "critical"
	SeverityWarning  IssueSeverity = "warning"
	SeverityInfo     IssueSeverity = "info"
)

// Issue is one generic drift finding from a secondary heuristic strategy.
type Issue struct {
	// Strategy names the heuristic that produced this issue.
	Strategy string `json:"strategy"`

	// Type is the drift classification within the strategy.
	Type string `json:"type"`

	Severity    IssueSeverity `json:"severity"`
	Description string        `json:"description"`
	Location    string        `json:"location,omitempty"`
	Expected    string        `json:"expected,omitempty"`
	Actual      string        `json:"actual,omitempty"`
	Suggestion  string        `json:"suggestion,omitempty"`

	File string `json:"file,omitempty"`
	Line int    `json:"line,omitempty"`
}

// DefaultExtraPrefixes are the identifier families checked by the prefix
// drift strategy beyond TC/FT.
var DefaultExtraPrefixes = []string{"REQ-", "US-", "BUG-", "AC-"}

// staleAssertions maps legacy assertion call forms to suggested replacements.
var staleAssertions = map[string]string{
	"assertEquals(":    "assertEqual(",
	"assertNotEquals(": "assertNotEqual(",
	"failUnless(":      "assertTrue(",
	"failIf(":          "assertFalse(",
	"assert_(":         "assertTrue(",
}

// Detector runs the secondary drift heuristics. Each strategy is independent
// and tolerates per-file failures by skipping the file.
type Detector struct {
	root     string
	provider *patterns.Provider
	logger   *slog.Logger

	// ExtraPrefixes overrides DefaultExtraPrefixes when non-nil.
	ExtraPrefixes []string
}

// NewDetector creates a comprehensive drift detector for one project root.
func NewDetector(root string, provider *patterns.Provider, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{
		root:     root,
		provider: provider,
		logger:   logger,
	}
}

// Detect runs every strategy and returns the combined findings.
func (d *Detector) Detect(testFiles []scan.FileEntry, docFiles []string) []Issue {
	var issues []Issue
	issues = append(issues, d.PrefixDrift(testFiles, docFiles)...)
	issues = append(issues, d.UnusedImports(testFiles)...)
	issues = append(issues, d.StaleAssertions(testFiles)...)
	issues = append(issues, d.BuildConfigPaths()...)
	return issues
}

// PrefixDrift computes, for each extra identifier prefix, the symmetric
// difference between ids found in test files and ids found in documentation.
// Doc-only ids are critical (documented behavior with no trace in code);
// code-only ids are warnings.
func (d *Detector) PrefixDrift(testFiles []scan.FileEntry, docFiles []string) []Issue {
	prefixes := d.ExtraPrefixes
	if prefixes == nil {
		prefixes = DefaultExtraPrefixes
	}

	codeText := d.concatFiles(filePaths(testFiles))
	docText := d.concatFiles(docFiles)

	var issues []Issue
	for _, prefix := range prefixes {
		re := d.provider.PatternFor(prefix, false)

		inCode := stringSet(re.FindAllString(codeText, -1))
		inDocs := stringSet(re.FindAllString(docText, -1))

		for _, id := range sortedKeys(inDocs) {
			if inCode[id] {
				continue
			}
			issues = append(issues, Issue{
				Strategy:    "prefix-drift",
				Type:        "documented_not_implemented",
				Severity:    SeverityCritical,
				Description: id + " is documented but never referenced from test code",
				Expected:    id + " referenced in at least one test file",
				Actual:      "no occurrence in test files",
				Suggestion:  "implement or tag a test for " + id + ", or retire the entry",
			})
		}
		for _, id := range sortedKeys(inCode) {
			if inDocs[id] {
				continue
			}
			issues = append(issues, Issue{
				Strategy:    "prefix-drift",
				Type:        "implemented_not_documented",
				Severity:    SeverityWarning,
				Description: id + " appears in test code but is not documented",
				Expected:    id + " declared in a documentation file",
				Actual:      "no occurrence in documentation",
				Suggestion:  "add " + id + " to its documentation file or remove the stale tag",
			})
		}
	}
	return issues
}

// importPatterns extract imported-symbol names per language family; capture
// group 1 is the symbol.
var importPatterns = map[lang.Language][]*regexp.Regexp{
	lang.Python: {
		regexp.MustCompile(`(?m)^import\s+(\w+)`),
		regexp.MustCompile(`(?m)^from\s+[\w.]+\s+import\s+(\w+)`),
	},
	lang.JavaScript: {
		regexp.MustCompile(`(?m)^import\s+(\w+)\s+from`),
		regexp.MustCompile(`(?m)^const\s+(\w+)\s*=\s*require\(`),
	},
	lang.TypeScript: {
		regexp.MustCompile(`(?m)^import\s+(\w+)\s+from`),
	},
	lang.Go: {
		regexp.MustCompile(`(?m)^\t"[\w./-]*/(\w+)"$`),
	},
}

// UnusedImports flags imported symbols never referenced outside their own
// import statement. Informational only: lightweight text matching cannot see
// every use form.
func (d *Detector) UnusedImports(testFiles []scan.FileEntry) []Issue {
	var issues []Issue

	for _, f := range testFiles {
		pats, ok := importPatterns[f.Language]
		if !ok {
			continue
		}

		content, err := d.readFile(f.RelPath)
		if err != nil {
			continue
		}

		for _, pat := range pats {
			for _, m := range pat.FindAllStringSubmatchIndex(content, -1) {
				symbol := content[m[2]:m[3]]

				// Count references outside the import statement itself.
				rest := content[:m[0]] + content[m[1]:]
				wordRe, err := regexp.Compile(`\b` + regexp.QuoteMeta(symbol) + `\b`)
				if err != nil {
					continue
				}
				if wordRe.MatchString(rest) {
					continue
				}

				issues = append(issues, Issue{
					Strategy:    "unused-import",
					Type:        "unused_import",
					Severity:    SeverityInfo,
					Description: "imported symbol " + symbol + " is never referenced",
					File:        f.RelPath,
					Line:        lineOf(content, m[0]),
					Actual:      symbol + " imported but unused",
					Suggestion:  "remove the import of " + symbol,
				})
			}
		}
	}
	return issues
}

// StaleAssertions flags occurrences of legacy assertion call forms.
func (d *Detector) StaleAssertions(testFiles []scan.FileEntry) []Issue {
	var issues []Issue

	// Fixed iteration order keeps reports deterministic.
	forms := sortedKeys(toBoolMap(staleAssertions))

	for _, f := range testFiles {
		content, err := d.readFile(f.RelPath)
		if err != nil {
			continue
		}

		for _, form := range forms {
			suggestion := staleAssertions[form]
			for idx := strings.Index(content, form); idx >= 0; {
				issues = append(issues, Issue{
					Strategy:    "stale-assertion",
					Type:        "stale_assertion_pattern",
					Severity:    SeverityWarning,
					Description: "legacy assertion form " + strings.TrimSuffix(form, "(") + " in use",
					File:        f.RelPath,
					Line:        lineOf(content, idx),
					Expected:    suggestion,
					Actual:      form,
					Suggestion:  "replace " + strings.TrimSuffix(form, "(") + " with " + strings.TrimSuffix(suggestion, "("),
				})

				next := strings.Index(content[idx+len(form):], form)
				if next < 0 {
					break
				}
				idx += len(form) + next
			}
		}
	}
	return issues
}

// pyprojectConfig is the subset of pyproject.toml the path strategy reads.
type pyprojectConfig struct {
	Tool struct {
		Pytest struct {
			IniOptions struct {
				Testpaths []string `toml:"testpaths"`
			} `toml:"ini_options"`
		} `toml:"pytest"`
	} `toml:"tool"`
}

// BuildConfigPaths flags declared test-path entries that do not correspond to
// an existing directory.
func (d *Detector) BuildConfigPaths() []Issue {
	configPath := filepath.Join(d.root, "pyproject.toml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil
	}

	var cfg pyprojectConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		d.logger.Warn("build config unparseable, skipping path drift",
			"path", configPath, "error", err)
		return nil
	}

	var issues []Issue
	for _, p := range cfg.Tool.Pytest.IniOptions.Testpaths {
		info, err := os.Stat(filepath.Join(d.root, p))
		if err == nil && info.IsDir() {
			continue
		}
		issues = append(issues, Issue{
			Strategy:    "build-config-path",
			Type:        "missing_test_path",
			Severity:    SeverityWarning,
			Description: "declared test path " + p + " does not exist",
			File:        "pyproject.toml",
			Expected:    p + " is a directory",
			Actual:      "path missing",
			Suggestion:  "create " + p + " or update testpaths",
		})
	}
	return issues
}

// DocumentationFiles resolves the documentation files consulted by the
// prefix-drift strategy: every configured primary file that exists, plus all
// markdown under docs/.
func (d *Detector) DocumentationFiles() []string {
	seen := make(map[string]bool)
	var files []string

	add := func(rel string) {
		rel = filepath.ToSlash(rel)
		if seen[rel] {
			return
		}
		if _, err := os.Stat(filepath.Join(d.root, rel)); err != nil {
			return
		}
		seen[rel] = true
		files = append(files, rel)
	}

	for _, prefix := range d.provider.EnabledPrefixes() {
		if pat, ok := d.provider.Get(prefix); ok {
			for _, f := range pat.PrimaryFiles {
				add(f)
			}
		}
	}

	entries, err := os.ReadDir(filepath.Join(d.root, "docs"))
	if err == nil {
		for _, e := range entries {
			if !e.IsDir() && strings.HasSuffix(e.Name(), ".md") {
				add("docs/" + e.Name())
			}
		}
	}

	sort.Strings(files)
	return files
}

func (d *Detector) readFile(rel string) (string, error) {
	data, err := os.ReadFile(filepath.Join(d.root, rel))
	if err != nil {
		d.logger.Warn("skipping unreadable file", "path", rel, "error", err)
		return "", err
	}
	return string(data), nil
}

func (d *Detector) concatFiles(paths []string) string {
	var sb strings.Builder
	for _, p := range paths {
		content, err := d.readFile(p)
		if err != nil {
			continue
		}
		sb.WriteString(content)
		sb.WriteByte('\n')
	}
	return sb.String()
}

func filePaths(files []scan.FileEntry) []string {
	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.RelPath
	}
	return paths
}

func stringSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, s := range items {
		set[s] = true
	}
	return set
}

func toBoolMap(m map[string]string) map[string]bool {
	out := make(map[string]bool, len(m))
	for k := range m {
		out[k] = true
	}
	return out
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func lineOf(content string, offset int) int {
	return strings.Count(content[:offset], "\n") + 1
}
