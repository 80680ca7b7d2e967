package changeset

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// initRepo creates a git repository with one committed file.
func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	run := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, "git %v: %s", args, out)
	}

	run("init")
	run("config", "user.name", "Test User")
	run("config", "user.email", "test@example.com")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "committed.txt"), []byte("base\n"), 0644))
	run("add", "-A")
	run("commit", "-m", "initial")

	return dir
}

func TestChangedAndStaged(t *testing.T) {
	ctx := context.Background()
	dir := initRepo(t)
	r := NewResolver(ctx, dir, nil)
	require.False(t, r.Degraded())

	// Unstaged modification to a tracked file.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "committed.txt"), []byte("changed\n"), 0644))

	cs, err := r.ChangedAndStaged(ctx)
	require.NoError(t, err)
	assert.True(t, cs.Contains("committed.txt"))
}

func TestUntracked(t *testing.T) {
	ctx := context.Background()
	dir := initRepo(t)
	r := NewResolver(ctx, dir, nil)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "new.txt"), []byte("new\n"), 0644))

	cs, err := r.Untracked(ctx)
	require.NoError(t, err)
	assert.True(t, cs.Contains("new.txt"))
	assert.False(t, cs.Contains("committed.txt"))
}

func TestChangedSince(t *testing.T) {
	ctx := context.Background()
	dir := initRepo(t)
	r := NewResolver(ctx, dir, nil)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "committed.txt"), []byte("v2\n"), 0644))
	add := exec.Command("git", "add", "-A")
	add.Dir = dir
	require.NoError(t, add.Run())
	commit := exec.Command("git", "commit", "-m", "second")
	commit.Dir = dir
	require.NoError(t, commit.Run())

	cs, err := r.ChangedSince(ctx, "HEAD~1")
	require.NoError(t, err)
	assert.True(t, cs.Contains("committed.txt"))
}

func TestChangedInLastNDays(t *testing.T) {
	ctx := context.Background()
	dir := initRepo(t)
	r := NewResolver(ctx, dir, nil)

	cs, err := r.ChangedInLastNDays(ctx, 7)
	require.NoError(t, err)
	assert.True(t, cs.Contains("committed.txt"))
}

func TestDegradedOutsideRepository(t *testing.T) {
	ctx := context.Background()
	r := NewResolver(ctx, t.TempDir(), nil)
	assert.True(t, r.Degraded())

	cs, err := r.ChangedAndStaged(ctx)
	require.NoError(t, err)
	assert.Empty(t, cs)

	cs, err = r.Untracked(ctx)
	require.NoError(t, err)
	assert.Empty(t, cs)
}

func TestFilterByChangeSet(t *testing.T) {
	files := []string{"a.py", "b.py", "sub/c.py"}

	// Nil changeset means no filtering.
	assert.Equal(t, files, FilterByChangeSet(files, nil))

	cs := ChangeSet{"a.py": {}, "sub/c.py": {}}
	assert.Equal(t, []string{"a.py", "sub/c.py"}, FilterByChangeSet(files, cs))

	// Empty but non-nil changeset filters everything out.
	assert.Empty(t, FilterByChangeSet(files, ChangeSet{}))
}
