package scan

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specdrift/specdrift/internal/changeset"
	"github.com/specdrift/specdrift/internal/lang"
	"github.com/specdrift/specdrift/internal/patterns"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func newTestScanner(t *testing.T, root string) *Scanner {
	t.Helper()
	return NewScanner(root, lang.NewRegistry(), patterns.Load(root, nil), nil, nil)
}

const pythonTestFile = `import unittest

class TestPayments(unittest.TestCase):
    # TC-PAY-001
    def test_refund(self):
        assert refund(10) == 10

    def test_charge(self):
        """Covers TC-PAY-002."""
        assert charge(5) == 5

# TC-CORE-001: standalone addition check
def test_add():
    assert add(1, 2) == 3

def test_untagged():
    assert True
`

func TestScanAllPython(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "tests/test_payments.py", pythonTestFile)

	fns, errs := newTestScanner(t, root).ScanAll(context.Background(), nil)
	require.Empty(t, errs)
	require.Len(t, fns, 4)

	byName := map[string]TestFunction{}
	for _, fn := range fns {
		byName[fn.Name] = fn
	}

	refund := byName["test_refund"]
	assert.Equal(t, lang.KindClassMethod, refund.Kind)
	assert.Equal(t, "TestPayments", refund.OwnerType)
	assert.Equal(t, "tests/test_payments.py::TestPayments.test_refund", refund.QualifiedName)
	assert.Contains(t, refund.Identifiers, "TC-PAY-001")
	assert.Equal(t, 5, refund.Line)

	charge := byName["test_charge"]
	assert.Contains(t, charge.Identifiers, "TC-PAY-002")

	add := byName["test_add"]
	assert.Equal(t, lang.KindStandalone, add.Kind)
	assert.Empty(t, add.OwnerType)
	assert.Contains(t, add.Identifiers, "TC-CORE-001")

	// Untagged implementations are still recorded.
	_, hasUntagged := byName["test_untagged"]
	assert.True(t, hasUntagged)
}

func TestScanAllEmptyIdentifierSet(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "test_alone.py", "def test_alone():\n    pass\n")

	fns, errs := newTestScanner(t, root).ScanAll(context.Background(), nil)
	require.Empty(t, errs)
	require.Len(t, fns, 1)
	assert.Empty(t, fns[0].Identifiers)
}

func TestScanAllJavaScriptSuites(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/cart.test.js", `
test('standalone total', () => {}); // TC-CART-002

describe('cart', () => {
  // TC-CART-001
  it('adds an item', () => {});
  it('removes an item', () => {});
});
`)

	fns, errs := newTestScanner(t, root).ScanAll(context.Background(), nil)
	require.Empty(t, errs)
	require.Len(t, fns, 3)

	assert.Equal(t, "adds an item", fns[0].Name)
	assert.Equal(t, "cart", fns[0].OwnerType)
	assert.Equal(t, lang.KindBlockDeclared, fns[0].Kind)
	assert.Contains(t, fns[0].Identifiers, "TC-CART-001")

	assert.Equal(t, "standalone total", fns[2].Name)
	assert.Empty(t, fns[2].OwnerType)
	assert.Contains(t, fns[2].Identifiers, "TC-CART-002")
}

func TestScanAllChangesetFilter(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "test_a.py", "def test_a():\n    pass\n")
	writeFile(t, root, "test_b.py", "def test_b():\n    pass\n")

	s := newTestScanner(t, root)

	// Restricting to file A excludes functions from file B even though B
	// matches the same language glob.
	cs := changeset.ChangeSet{"test_a.py": {}}
	fns, errs := s.ScanAll(context.Background(), cs)
	require.Empty(t, errs)
	require.Len(t, fns, 1)
	assert.Equal(t, "test_a.py", fns[0].File)

	// Nil changeset scans everything.
	fns, _ = s.ScanAll(context.Background(), nil)
	assert.Len(t, fns, 2)
}

func TestScanAllSkipsVendorDirs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "node_modules/pkg/test_dep.py", "def test_dep():\n    pass\n")
	writeFile(t, root, "test_real.py", "def test_real():\n    pass\n")

	fns, _ := newTestScanner(t, root).ScanAll(context.Background(), nil)
	require.Len(t, fns, 1)
	assert.Equal(t, "test_real.py", fns[0].File)
}

func TestScanAllDeterministicOrder(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "b/test_two.py", "def test_two():\n    pass\n")
	writeFile(t, root, "a/test_one.py", "def test_one():\n    pass\n")

	s := newTestScanner(t, root)
	first, _ := s.ScanAll(context.Background(), nil)
	second, _ := s.ScanAll(context.Background(), nil)
	assert.Equal(t, first, second)
	require.Len(t, first, 2)
	assert.Equal(t, "a/test_one.py", first[0].File)
}

func TestIdentifiersNear(t *testing.T) {
	provider := patterns.Load(t.TempDir(), nil)
	strict := StrictPatternsFor(provider, "TC-")

	content := "padding TC-AAA-001 more padding MARKER trailing TC-BBB-002 tail TC-BBB-002"
	offset := 32 // at MARKER

	ids := IdentifiersNear(content, offset, 30, strict)
	assert.Equal(t, []string{"TC-AAA-001", "TC-BBB-002"}, ids)

	// Narrow window catches nothing.
	assert.Empty(t, IdentifiersNear(content, offset, 3, strict))

	// Window clamps at content bounds.
	assert.NotPanics(t, func() {
		IdentifiersNear(content, 0, 10000, strict)
		IdentifiersNear(content, len(content), 10000, strict)
	})
}

func TestCombined(t *testing.T) {
	assert.NoError(t, Combined(nil))

	err := Combined([]ScanError{
		{Path: "a.py", Phase: "read", Err: os.ErrPermission},
		{Phase: "discovery", Err: os.ErrNotExist},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a.py")
}
