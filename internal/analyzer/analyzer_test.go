package analyzer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specdrift/specdrift/internal/changeset"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

// newProject lays out a small repo with one documented-but-unimplemented test
// case, one implemented-but-undocumented id, and one matching pair.
func newProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	writeFile(t, root, "docs/test-cases.md", `# Test Cases

- [x] **TC-CORE-001** - Basic add (Automated, High)
- [ ] **TC-CORE-003** - Basic remove (Automated, Medium)
`)
	writeFile(t, root, "docs/features.md", `# Features

- [x] **FT-API-001** REST endpoints - CRUD over HTTP (Criteria: TC-API-001 verified)
- [ ] **FT-API-002** Webhooks - push notifications (Criteria: manual check)
`)
	writeFile(t, root, "tests/test_core.py", `# TC-CORE-003: removal behavior
# TC-CORE-002: undocumented
# FT-API-001
def test_remove():
    pass

def test_undocumented():
    pass
`)
	writeFile(t, root, "billing/payments.py", "def process_payment():\n    pass\n")

	return root
}

func TestAnalyzeUnknownMode(t *testing.T) {
	a := New(newProject(t), Options{})

	report, err := a.Analyze(context.Background(), "coverage-ish", nil)
	require.ErrorIs(t, err, ErrUnknownMode)
	assert.Nil(t, report)
}

func TestAnalyzeMissingRequiredDocumentation(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "tests/test_x.py", "def test_x():\n    pass\n")

	a := New(root, Options{})

	_, err := a.Analyze(context.Background(), ModeTCMapping, nil)
	require.ErrorIs(t, err, ErrMissingDocumentation)

	_, err = a.Analyze(context.Background(), ModeFeatureImpl, nil)
	require.ErrorIs(t, err, ErrMissingDocumentation)
}

func TestAnalyzeCoverageModeNeedsNoDocs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "billing/payments.py", "def process_payment():\n    pass\n")

	a := New(root, Options{})

	report, err := a.Analyze(context.Background(), ModeCodeCoverage, nil)
	require.NoError(t, err)
	require.NotNil(t, report.Coverage)
	assert.Nil(t, report.TestCases)

	require.Len(t, report.Coverage.Issues, 1)
	assert.Equal(t, 1, report.Coverage.TotalFunctions)
	require.NotNil(t, report.Metadata.CoveragePercent)
	assert.InDelta(t, 0.0, *report.Metadata.CoveragePercent, 0.01)
}

func TestAnalyzeTCMapping(t *testing.T) {
	a := New(newProject(t), Options{})

	report, err := a.Analyze(context.Background(), ModeTCMapping, nil)
	require.NoError(t, err)
	require.NotNil(t, report.TestCases)

	ids := make([]string, 0, len(report.TestCases.Unimplemented))
	for _, tc := range report.TestCases.Unimplemented {
		ids = append(ids, tc.ID)
	}
	assert.Equal(t, []string{"TC-CORE-001"}, ids)
	assert.Equal(t, []string{"TC-CORE-002"}, report.TestCases.OrphanedIDs)

	assert.Equal(t, ModeTCMapping, report.Mode)
	assert.Equal(t, 2, report.Metadata.TotalTestCases)
	assert.Equal(t, []string{"python"}, report.Metadata.DetectedLanguages)
	assert.NotEmpty(t, report.Metadata.RunID)

	assert.Nil(t, report.Features)
	assert.Nil(t, report.Coverage)
}

func TestAnalyzeIdempotent(t *testing.T) {
	a := New(newProject(t), Options{})

	first, err := a.Analyze(context.Background(), ModeTCMapping, nil)
	require.NoError(t, err)
	second, err := a.Analyze(context.Background(), ModeTCMapping, nil)
	require.NoError(t, err)

	assert.Equal(t, first.TestCases.Unimplemented, second.TestCases.Unimplemented)
	assert.Equal(t, first.TestCases.OrphanedIDs, second.TestCases.OrphanedIDs)
	assert.NotEqual(t, first.Metadata.RunID, second.Metadata.RunID)
}

func TestAnalyzeFeatureImpl(t *testing.T) {
	a := New(newProject(t), Options{})

	report, err := a.Analyze(context.Background(), ModeFeatureImpl, nil)
	require.NoError(t, err)
	require.Len(t, report.Mappings, 2)

	first := report.Mappings[0]
	assert.Equal(t, "FT-API-001", first.FeatureID)
	// TC-API-001 is referenced in criteria but never declared.
	assert.Equal(t, []string{"TC-API-001"}, first.MissingTestCaseIDs)
}

func TestAnalyzeFTMapping(t *testing.T) {
	a := New(newProject(t), Options{})

	report, err := a.Analyze(context.Background(), ModeFTMapping, nil)
	require.NoError(t, err)
	require.NotNil(t, report.Features)

	assert.Equal(t, 2, report.Features.TotalFeatures)
	require.Len(t, report.Features.FeaturesWithoutTests, 1)
	assert.Equal(t, "FT-API-002", report.Features.FeaturesWithoutTests[0].ID)
}

func TestAnalyzeAllMode(t *testing.T) {
	a := New(newProject(t), Options{})

	report, err := a.Analyze(context.Background(), ModeAll, nil)
	require.NoError(t, err)

	assert.NotNil(t, report.TestCases)
	assert.NotNil(t, report.Features)
	assert.NotEmpty(t, report.Mappings)
	assert.NotNil(t, report.Coverage)
	assert.NotNil(t, report.Metadata.SeverityCounts)
}

func TestAnalyzeAllModeHonorsChangeset(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "docs/test-cases.md", "- [x] **TC-CORE-001** - Basic add (Automated, High)\n")
	writeFile(t, root, "docs/features.md", "- [x] **FT-API-001** API - CRUD (Criteria: manual)\n")
	writeFile(t, root, "tests/test_a.py", "# TC-CORE-001\ndef test_a():\n    pass\n")
	writeFile(t, root, "tests/test_b.py", "import unittest\nself.assertEquals(1, 1)\ndef test_b():\n    pass\n")

	a := New(root, Options{})

	cs := changeset.ChangeSet{"tests/test_a.py": {}}
	report, err := a.Analyze(context.Background(), ModeAll, cs)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Metadata.TotalTestFunctions)
	for _, issue := range report.Drift {
		assert.NotEqual(t, "tests/test_b.py", issue.File,
			"excluded file must not produce drift issues")
	}
}

func TestAnalyzeFeatureWindowRefs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "docs/test-cases.md", "- [x] **TC-SHOP-001** - Add item (Automated, High)\n")
	writeFile(t, root, "docs/features.md", `# Features

- [ ] **FT-SHOP-001** Cart - Holds items (Criteria: manual)
  Verified by TC-SHOP-001 and TC-SHOP-099.
`)

	a := New(root, Options{})

	report, err := a.Analyze(context.Background(), ModeFeatureImpl, nil)
	require.NoError(t, err)
	require.Len(t, report.Mappings, 1)

	m := report.Mappings[0]
	assert.Equal(t, []string{"TC-SHOP-001"}, m.MatchedTestCaseIDs)
	assert.Equal(t, []string{"TC-SHOP-099"}, m.MissingTestCaseIDs)
}

func TestAnalyzeEmptyDocumentation(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "docs/test-cases.md", "")
	writeFile(t, root, "billing/payments.py", "def process_payment():\n    pass\n")

	a := New(root, Options{})

	report, err := a.Analyze(context.Background(), ModeTCMapping, nil)
	require.NoError(t, err)
	assert.Empty(t, report.TestCases.Unimplemented)
	assert.Equal(t, 0, report.Metadata.TotalTestCases)

	covReport, err := a.Analyze(context.Background(), ModeCodeCoverage, nil)
	require.NoError(t, err)
	require.NotNil(t, covReport.Coverage)
	assert.Len(t, covReport.Coverage.Issues, 1)
}

func TestAnalyzeDocumentationOverride(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "planning/cases.md", "- [x] **TC-ALT-001** - Alt case (Automated, Low)\n")

	a := New(root, Options{TestCasesFile: "planning/cases.md"})

	report, err := a.Analyze(context.Background(), ModeTCMapping, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Metadata.TotalTestCases)
}
