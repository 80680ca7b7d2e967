// Package patterns loads and validates identifier-pattern definitions.
//
// An identifier pattern describes one documentation prefix family (TC-, FT-,
// REQ-, ...): how its ids look in strict and permissive form, which
// documentation files declare them, and which other prefixes they may
// reference. Patterns are loaded once from .specdrift.yaml at the project root
// and are immutable for the lifetime of an analysis run. A missing or
// malformed config file falls back to built-in defaults; a single malformed
// entry is dropped, never fatal.
package patterns

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"gopkg.in/yaml.v3"
)

// ConfigFileName is the per-project pattern configuration file.
const ConfigFileName = ".specdrift.yaml"

// IdentifierPattern describes one identifier prefix family.
type IdentifierPattern struct {
	// Prefix is the literal id prefix, including the trailing dash.
	// Example: "TC-"
	Prefix string

	// Name is the human-readable name for this family.
	// Example: "Test Case"
	Name string

	// Strict is the compiled strict pattern. Strict matches are used for
	// proximity-window association, where false positives are expensive.
	Strict *regexp.Regexp

	// Permissive is the compiled permissive pattern, used where recall
	// matters more than precision (e.g. orphan detection in prose).
	Permissive *regexp.Regexp

	// PrimaryFiles are the documentation files that declare ids of this
	// family, relative to the project root.
	PrimaryFiles []string

	// RelationshipTargets are prefixes this family is allowed to reference.
	RelationshipTargets []string

	// Deprecated marks a family that is still scanned but no longer primary.
	Deprecated bool
}

// configFile is the YAML structure of .specdrift.yaml.
type configFile struct {
	Patterns map[string]patternEntry `yaml:"patterns"`

	Validation struct {
		Relationships *bool `yaml:"relationships"`
	} `yaml:"validation"`
}

type patternEntry struct {
	Name                string   `yaml:"name"`
	Pattern             string   `yaml:"pattern"`
	FlexiblePattern     string   `yaml:"flexible_pattern"`
	PrimaryFiles        []string `yaml:"primary_files"`
	RelationshipTargets []string `yaml:"relationship_targets"`
	Deprecated          bool     `yaml:"deprecated"`
	Enabled             *bool    `yaml:"enabled"`
}

// Provider owns the loaded pattern set for one analysis run.
// It is safe for concurrent reads after Load returns; it is never mutated.
type Provider struct {
	byPrefix              map[string]IdentifierPattern
	validateRelationships bool
	logger                *slog.Logger
}

// Load reads the pattern configuration for the project rooted at rootPath.
//
// Load never fails: a missing or unparseable config file logs a warning and
// yields the built-in defaults, and a malformed individual entry (bad regex,
// empty prefix) is dropped while the remaining entries survive.
func Load(rootPath string, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}

	p := &Provider{
		byPrefix:              defaultPatterns(),
		validateRelationships: true,
		logger:                logger,
	}

	configPath := filepath.Join(rootPath, ConfigFileName)
	data, err := os.ReadFile(configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("pattern config unreadable, using defaults",
				"path", configPath, "error", err)
		}
		return p
	}

	var cf configFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		logger.Warn("pattern config malformed, using defaults",
			"path", configPath, "error", err)
		return p
	}

	if cf.Validation.Relationships != nil {
		p.validateRelationships = *cf.Validation.Relationships
	}

	if len(cf.Patterns) == 0 {
		return p
	}

	loaded := make(map[string]IdentifierPattern, len(cf.Patterns))
	for prefix, entry := range cf.Patterns {
		pat, err := compileEntry(prefix, entry)
		if err != nil {
			logger.Warn("dropping malformed pattern entry",
				"prefix", prefix, "error", err)
			continue
		}
		if entry.Enabled != nil && !*entry.Enabled {
			continue
		}
		loaded[prefix] = pat
	}

	if len(loaded) > 0 {
		p.byPrefix = loaded
	}
	return p
}

// compileEntry validates one config entry and compiles its patterns.
func compileEntry(prefix string, entry patternEntry) (IdentifierPattern, error) {
	if prefix == "" {
		return IdentifierPattern{}, fmt.Errorf("empty prefix")
	}

	strictSrc := entry.Pattern
	if strictSrc == "" {
		strictSrc = genericPattern(prefix)
	}
	strict, err := regexp.Compile(strictSrc)
	if err != nil {
		return IdentifierPattern{}, fmt.Errorf("strict pattern: %w", err)
	}

	permissiveSrc := entry.FlexiblePattern
	if permissiveSrc == "" {
		permissiveSrc = genericPattern(prefix)
	}
	permissive, err := regexp.Compile(permissiveSrc)
	if err != nil {
		return IdentifierPattern{}, fmt.Errorf("flexible pattern: %w", err)
	}

	name := entry.Name
	if name == "" {
		name = prefix
	}

	return IdentifierPattern{
		Prefix:              prefix,
		Name:                name,
		Strict:              strict,
		Permissive:          permissive,
		PrimaryFiles:        entry.PrimaryFiles,
		RelationshipTargets: entry.RelationshipTargets,
		Deprecated:          entry.Deprecated,
	}, nil
}

// Get returns the pattern for a prefix, if configured.
func (p *Provider) Get(prefix string) (IdentifierPattern, bool) {
	pat, ok := p.byPrefix[prefix]
	return pat, ok
}

// EnabledPrefixes returns every configured prefix, sorted.
func (p *Provider) EnabledPrefixes() []string {
	prefixes := make([]string, 0, len(p.byPrefix))
	for prefix := range p.byPrefix {
		prefixes = append(prefixes, prefix)
	}
	sort.Strings(prefixes)
	return prefixes
}

// PrimaryPrefixes returns the non-deprecated prefixes, sorted.
func (p *Provider) PrimaryPrefixes() []string {
	prefixes := make([]string, 0, len(p.byPrefix))
	for prefix, pat := range p.byPrefix {
		if !pat.Deprecated {
			prefixes = append(prefixes, prefix)
		}
	}
	sort.Strings(prefixes)
	return prefixes
}

// ValidateRelationships reports whether relationship-target validation is on.
func (p *Provider) ValidateRelationships() bool {
	return p.validateRelationships
}

// PatternFor returns the strict or permissive pattern for a prefix.
// An unconfigured prefix falls back to a generic prefix-plus-alphanumeric
// pattern so callers can always scan for arbitrary prefixes.
func (p *Provider) PatternFor(prefix string, strict bool) *regexp.Regexp {
	if pat, ok := p.byPrefix[prefix]; ok {
		if strict {
			return pat.Strict
		}
		return pat.Permissive
	}
	return regexp.MustCompile(genericPattern(prefix))
}

// genericPattern builds the fallback pattern for an arbitrary prefix.
func genericPattern(prefix string) string {
	return regexp.QuoteMeta(prefix) + `[A-Za-z0-9][A-Za-z0-9-]*`
}

// defaultPatterns is the built-in pattern set used when no config is present.
func defaultPatterns() map[string]IdentifierPattern {
	return map[string]IdentifierPattern{
		"TC-": {
			Prefix:              "TC-",
			Name:                "Test Case",
			Strict:              regexp.MustCompile(`TC-[A-Z][A-Z0-9]*-\d{3,}`),
			Permissive:          regexp.MustCompile(`TC-[A-Za-z0-9][A-Za-z0-9-]*`),
			PrimaryFiles:        []string{"docs/test-cases.md"},
			RelationshipTargets: []string{"FT-", "REQ-"},
		},
		"FT-": {
			Prefix:              "FT-",
			Name:                "Feature",
			Strict:              regexp.MustCompile(`FT-[A-Z][A-Z0-9]*-\d{3,}`),
			Permissive:          regexp.MustCompile(`FT-[A-Za-z0-9][A-Za-z0-9-]*`),
			PrimaryFiles:        []string{"docs/features.md"},
			RelationshipTargets: []string{"TC-", "REQ-"},
		},
		"REQ-": {
			Prefix:              "REQ-",
			Name:                "Requirement",
			Strict:              regexp.MustCompile(`REQ-[A-Z][A-Z0-9]*-\d{3,}`),
			Permissive:          regexp.MustCompile(`REQ-[A-Za-z0-9][A-Za-z0-9-]*`),
			PrimaryFiles:        []string{"docs/requirements.md"},
			RelationshipTargets: []string{"FT-"},
		},
	}
}
