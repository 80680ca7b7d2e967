package patterns

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(content), 0644))
}

func TestLoadDefaultsWhenMissing(t *testing.T) {
	dir := t.TempDir()

	p := Load(dir, nil)

	assert.Equal(t, []string{"FT-", "REQ-", "TC-"}, p.EnabledPrefixes())
	assert.True(t, p.ValidateRelationships())

	tc, ok := p.Get("TC-")
	require.True(t, ok)
	assert.Equal(t, "Test Case", tc.Name)
	assert.True(t, tc.Strict.MatchString("TC-CORE-001"))
	assert.False(t, tc.Strict.MatchString("TC-core-1"))
	assert.True(t, tc.Permissive.MatchString("TC-core-1"))
}

func TestLoadDefaultsWhenMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "patterns: [not a map")

	p := Load(dir, nil)

	assert.Equal(t, []string{"FT-", "REQ-", "TC-"}, p.EnabledPrefixes())
}

func TestLoadCustomPatterns(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
patterns:
  TC-:
    name: Test Case
    pattern: 'TC-\d{4}'
    flexible_pattern: 'TC-[0-9-]+'
    primary_files: [spec/tests.md]
    relationship_targets: [FT-]
  US-:
    name: User Story
    pattern: 'US-\d+'
validation:
  relationships: false
`)

	p := Load(dir, nil)

	assert.Equal(t, []string{"TC-", "US-"}, p.EnabledPrefixes())
	assert.False(t, p.ValidateRelationships())

	tc, ok := p.Get("TC-")
	require.True(t, ok)
	assert.True(t, tc.Strict.MatchString("TC-1234"))
	assert.False(t, tc.Strict.MatchString("TC-CORE-001"))
	assert.Equal(t, []string{"spec/tests.md"}, tc.PrimaryFiles)
}

func TestLoadDropsMalformedEntryKeepsRest(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
patterns:
  TC-:
    name: Test Case
    pattern: 'TC-\d+'
  BAD-:
    name: Broken
    pattern: '['
`)

	p := Load(dir, nil)

	assert.Equal(t, []string{"TC-"}, p.EnabledPrefixes())
	_, ok := p.Get("BAD-")
	assert.False(t, ok)
}

func TestDeprecatedExcludedFromPrimary(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
patterns:
  TC-:
    name: Test Case
  LEGACY-:
    name: Legacy Id
    deprecated: true
`)

	p := Load(dir, nil)

	assert.Equal(t, []string{"LEGACY-", "TC-"}, p.EnabledPrefixes())
	assert.Equal(t, []string{"TC-"}, p.PrimaryPrefixes())
}

func TestPatternForUnconfiguredPrefixFallsBack(t *testing.T) {
	p := Load(t.TempDir(), nil)

	re := p.PatternFor("BUG-", true)
	assert.True(t, re.MatchString("BUG-1234"))
	assert.True(t, re.MatchString("BUG-login-42"))
}

func TestDisabledEntrySkipped(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
patterns:
  TC-:
    name: Test Case
  FT-:
    name: Feature
    enabled: false
`)

	p := Load(dir, nil)

	assert.Equal(t, []string{"TC-"}, p.EnabledPrefixes())
}
