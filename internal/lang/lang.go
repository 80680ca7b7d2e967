// Package lang holds the per-language scanning rules.
//
// Per-language behavior is modeled as data: each language gets one Rule record
// describing where its test files live, how its test constructs look, and how
// its production surface and test naming conventions work. Scanning logic
// never branches on a language name; it only interprets Rule fields, so adding
// a language means adding a table entry.
package lang

import (
	"path/filepath"
	"regexp"
	"strings"
)

// Language tags a supported language family.
type Language string

const (
	Python     Language = "python"
	JavaScript Language = "javascript"
	TypeScript Language = "typescript"
	Java       Language = "java"
	Go         Language = "go"
	Rust       Language = "rust"
	CSharp     Language = "csharp"
)

// ConstructKind classifies how a test construct is declared.
type ConstructKind string

const (
	// KindClassMethod is a test method nested in a class-style container.
	KindClassMethod ConstructKind = "class-method"
	// KindStandalone is a prefix-named top-level test function.
	KindStandalone ConstructKind = "standalone"
	// KindBlockDeclared is a call-expression test case with a literal name,
	// optionally nested in a suite call expression.
	KindBlockDeclared ConstructKind = "block-declared"
	// KindAnnotated is an annotation- or attribute-marked test method.
	KindAnnotated ConstructKind = "annotated"
)

// ConstructPattern is one ordered construct detector.
// Detectors run in rule order; an offset claimed by an earlier detector is not
// re-claimed by a later one.
type ConstructPattern struct {
	Kind ConstructKind

	// Container matches a grouping construct (test class, describe suite).
	// Capture group 1 is the container name. Nil for flat patterns.
	Container *regexp.Regexp

	// Member matches the test construct itself. Capture group 1 is the test
	// name (an identifier, or the string literal for block-declared tests).
	Member *regexp.Regexp
}

// PublicNameStyle selects the public-surface heuristic for a language.
type PublicNameStyle int

const (
	// PublicAll treats every extracted function as public surface.
	PublicAll PublicNameStyle = iota
	// PublicNoUnderscorePrefix excludes names with a leading underscore.
	PublicNoUnderscorePrefix
	// PublicUpperInitial requires an initial uppercase letter.
	PublicUpperInitial
)

// Rule is the declarative ruleset for one language.
type Rule struct {
	Language Language

	// Extensions are the file extensions owned by this language,
	// including the leading dot.
	Extensions []string

	// TestFileGlobs match test files, relative to the project root.
	TestFileGlobs []string

	// SourceFileGlobs match production candidates; anything also matching
	// TestFileGlobs is excluded by the coverage analyzer.
	SourceFileGlobs []string

	// Constructs are the ordered construct detectors. First structural
	// match wins.
	Constructs []ConstructPattern

	// ProximityWindow is the symmetric character window, around a construct
	// offset, searched for documentation identifiers.
	ProximityWindow int

	// FunctionPattern extracts production function declarations.
	// Capture group 1 is the function name.
	FunctionPattern *regexp.Regexp

	// PublicStyle is the public-surface heuristic for extracted functions.
	PublicStyle PublicNameStyle

	// TestFileTemplates name the conventional test files for a source file.
	// Placeholders: {dir}, {base} (file name without extension), {ext}.
	TestFileTemplates []string
}

// Registry maps extensions to languages and languages to rules.
type Registry struct {
	rules  map[Language]Rule
	byExt  map[string]Language
	sorted []Language
}

// NewRegistry builds the built-in registry.
func NewRegistry() *Registry {
	r := &Registry{
		rules: make(map[Language]Rule),
		byExt: make(map[string]Language),
	}
	for _, rule := range builtinRules() {
		r.rules[rule.Language] = rule
		for _, ext := range rule.Extensions {
			r.byExt[ext] = rule.Language
		}
		r.sorted = append(r.sorted, rule.Language)
	}
	return r
}

// DetectLanguage returns the language owning a file path, if any.
func (r *Registry) DetectLanguage(path string) (Language, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	language, ok := r.byExt[ext]
	return language, ok
}

// RulesFor returns the ruleset for a language.
func (r *Registry) RulesFor(language Language) (Rule, bool) {
	rule, ok := r.rules[language]
	return rule, ok
}

// Languages returns every registered language in registration order.
func (r *Registry) Languages() []Language {
	return r.sorted
}

func builtinRules() []Rule {
	jsConstructs := []ConstructPattern{
		{
			Kind:      KindBlockDeclared,
			Container: regexp.MustCompile(`(?m)\bdescribe\s*\(\s*['"` + "`" + `]([^'"` + "`" + `]+)['"` + "`" + `]`),
			Member:    regexp.MustCompile(`(?m)\b(?:it|test)(?:\.(?:each|only|skip)\([^)]*\))?\s*\(\s*['"` + "`" + `]([^'"` + "`" + `]+)['"` + "`" + `]`),
		},
		{
			Kind:   KindBlockDeclared,
			Member: regexp.MustCompile(`(?m)\b(?:it|test)\s*\(\s*['"` + "`" + `]([^'"` + "`" + `]+)['"` + "`" + `]`),
		},
	}

	return []Rule{
		{
			Language:   Python,
			Extensions: []string{".py"},
			TestFileGlobs: []string{
				"**/test_*.py",
				"**/*_test.py",
				"**/tests/**/*.py",
			},
			SourceFileGlobs: []string{"**/*.py"},
			Constructs: []ConstructPattern{
				{
					Kind:      KindClassMethod,
					Container: regexp.MustCompile(`(?m)^class\s+(\w*Test\w*)\s*[(:]`),
					Member:    regexp.MustCompile(`(?m)^[ \t]+def\s+(test_\w+)\s*\(`),
				},
				{
					Kind:   KindStandalone,
					Member: regexp.MustCompile(`(?m)^def\s+(test_\w+)\s*\(`),
				},
			},
			ProximityWindow: 500,
			FunctionPattern: regexp.MustCompile(`(?m)^def\s+([A-Za-z_]\w*)\s*\(`),
			PublicStyle:     PublicNoUnderscorePrefix,
			TestFileTemplates: []string{
				"{dir}/test_{base}{ext}",
				"{dir}/{base}_test{ext}",
				"{dir}/tests/test_{base}{ext}",
				"tests/test_{base}{ext}",
			},
		},
		{
			Language:   JavaScript,
			Extensions: []string{".js", ".jsx", ".mjs", ".cjs"},
			TestFileGlobs: []string{
				"**/*.test.js",
				"**/*.spec.js",
				"**/*.test.jsx",
				"**/*.spec.jsx",
				"**/__tests__/**/*.js",
				"**/__tests__/**/*.jsx",
			},
			SourceFileGlobs: []string{"**/*.js", "**/*.jsx"},
			Constructs:      jsConstructs,
			ProximityWindow: 400,
			FunctionPattern: regexp.MustCompile(`(?m)^(?:export\s+)?(?:async\s+)?function\s+([A-Za-z_$][\w$]*)\s*\(`),
			PublicStyle:     PublicNoUnderscorePrefix,
			TestFileTemplates: []string{
				"{dir}/{base}.test{ext}",
				"{dir}/{base}.spec{ext}",
				"{dir}/__tests__/{base}.test{ext}",
			},
		},
		{
			Language:   TypeScript,
			Extensions: []string{".ts", ".tsx"},
			TestFileGlobs: []string{
				"**/*.test.ts",
				"**/*.spec.ts",
				"**/*.test.tsx",
				"**/*.spec.tsx",
				"**/__tests__/**/*.ts",
				"**/__tests__/**/*.tsx",
			},
			SourceFileGlobs: []string{"**/*.ts", "**/*.tsx"},
			Constructs:      jsConstructs,
			ProximityWindow: 400,
			FunctionPattern: regexp.MustCompile(`(?m)^(?:export\s+)?(?:async\s+)?function\s+([A-Za-z_$][\w$]*)\s*\(`),
			PublicStyle:     PublicNoUnderscorePrefix,
			TestFileTemplates: []string{
				"{dir}/{base}.test{ext}",
				"{dir}/{base}.spec{ext}",
				"{dir}/__tests__/{base}.test{ext}",
			},
		},
		{
			Language:   Java,
			Extensions: []string{".java"},
			TestFileGlobs: []string{
				"**/src/test/**/*.java",
				"**/*Test.java",
				"**/*Tests.java",
			},
			SourceFileGlobs: []string{"**/src/main/**/*.java", "**/*.java"},
			Constructs: []ConstructPattern{
				{
					Kind:      KindAnnotated,
					Container: regexp.MustCompile(`(?m)\bclass\s+(\w+)`),
					Member:    regexp.MustCompile(`(?m)@(?:Test|ParameterizedTest|RepeatedTest)\b[^{]*?\b(?:void|public\s+void)\s+(\w+)\s*\(`),
				},
			},
			ProximityWindow: 600,
			FunctionPattern: regexp.MustCompile(`(?m)^\s*public\s+(?:static\s+)?(?:final\s+)?[\w<>\[\],\s]+\s+(\w+)\s*\([^)]*\)\s*\{`),
			PublicStyle:     PublicAll,
			TestFileTemplates: []string{
				"{dir}/{base}Test{ext}",
				"{dir}/{base}Tests{ext}",
			},
		},
		{
			Language:        Go,
			Extensions:      []string{".go"},
			TestFileGlobs:   []string{"**/*_test.go"},
			SourceFileGlobs: []string{"**/*.go"},
			Constructs: []ConstructPattern{
				{
					Kind:   KindStandalone,
					Member: regexp.MustCompile(`(?m)^func\s+(Test\w+)\s*\(`),
				},
			},
			ProximityWindow: 500,
			FunctionPattern: regexp.MustCompile(`(?m)^func\s+(?:\([^)]+\)\s+)?(\w+)\s*\(`),
			PublicStyle:     PublicUpperInitial,
			TestFileTemplates: []string{
				"{dir}/{base}_test{ext}",
			},
		},
		{
			Language:   Rust,
			Extensions: []string{".rs"},
			TestFileGlobs: []string{
				"**/tests/**/*.rs",
				"**/*_test.rs",
			},
			SourceFileGlobs: []string{"**/src/**/*.rs"},
			Constructs: []ConstructPattern{
				{
					Kind:   KindAnnotated,
					Member: regexp.MustCompile(`(?m)#\[(?:\w+::)?test\]\s*(?:async\s+)?fn\s+(\w+)`),
				},
			},
			ProximityWindow: 500,
			FunctionPattern: regexp.MustCompile(`(?m)^\s*pub\s+(?:async\s+)?fn\s+(\w+)\s*[(<]`),
			PublicStyle:     PublicAll,
			TestFileTemplates: []string{
				"{dir}/{base}_test{ext}",
				"tests/{base}{ext}",
			},
		},
		{
			Language:   CSharp,
			Extensions: []string{".cs"},
			TestFileGlobs: []string{
				"**/*Test.cs",
				"**/*Tests.cs",
				"**/test/**/*.cs",
				"**/tests/**/*.cs",
			},
			SourceFileGlobs: []string{"**/*.cs"},
			Constructs: []ConstructPattern{
				{
					Kind:   KindAnnotated,
					Member: regexp.MustCompile(`(?m)\[(?:Fact|Theory|Test|TestMethod)[^\]]*\]\s*(?:\[[^\]]*\]\s*)*public\s+(?:async\s+)?[\w<>.\[\]]+\s+(\w+)\s*\(`),
				},
			},
			ProximityWindow: 600,
			FunctionPattern: regexp.MustCompile(`(?m)^\s*public\s+(?:static\s+)?(?:async\s+)?[\w<>.\[\]]+\s+(\w+)\s*\([^)]*\)`),
			PublicStyle:     PublicUpperInitial,
			TestFileTemplates: []string{
				"{dir}/{base}Test{ext}",
				"{dir}/{base}Tests{ext}",
			},
		},
	}
}

// IsPublicName applies a language's public-surface heuristic to a name.
func IsPublicName(name string, style PublicNameStyle) bool {
	if name == "" {
		return false
	}
	switch style {
	case PublicNoUnderscorePrefix:
		return !strings.HasPrefix(name, "_")
	case PublicUpperInitial:
		first := name[0]
		return first >= 'A' && first <= 'Z'
	default:
		return true
	}
}

// ExpandTestFileTemplates fills a language's test-file templates for one
// source path, returning candidate test paths relative to the project root.
func ExpandTestFileTemplates(rule Rule, sourcePath string) []string {
	dir := filepath.ToSlash(filepath.Dir(sourcePath))
	ext := filepath.Ext(sourcePath)
	base := strings.TrimSuffix(filepath.Base(sourcePath), ext)

	candidates := make([]string, 0, len(rule.TestFileTemplates))
	for _, tmpl := range rule.TestFileTemplates {
		path := strings.NewReplacer(
			"{dir}", dir,
			"{base}", base,
			"{ext}", ext,
		).Replace(tmpl)
		candidates = append(candidates, filepath.Clean(path))
	}
	return candidates
}
