// Package changeset computes changed-file sets from version-control history
// for incremental scans.
//
// The resolver shells out to the git CLI. When the working tree is not under
// version control (or git is missing entirely) every accessor returns an empty
// set and logs a warning; callers treat a nil or empty changeset as "do not
// filter" and scan everything. That degradation is a deliberate convention,
// not an error.
package changeset

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
)

// ChangeSet is a set of file paths, relative to the repository root, that are
// considered changed for an incremental scan. A nil ChangeSet means
// "unfiltered".
type ChangeSet map[string]struct{}

// Contains reports whether a path is in the set.
func (cs ChangeSet) Contains(path string) bool {
	_, ok := cs[filepath.ToSlash(path)]
	return ok
}

// Paths returns the member paths in unspecified order.
func (cs ChangeSet) Paths() []string {
	paths := make([]string, 0, len(cs))
	for p := range cs {
		paths = append(paths, p)
	}
	return paths
}

// Resolver wraps git diff operations for one repository root.
type Resolver struct {
	gitPath  string
	repoPath string
	logger   *slog.Logger

	// degraded is set when the root is not a git repository or git is not
	// installed. All accessors then return empty sets.
	degraded bool
}

// NewResolver creates a resolver for the repository at repoPath.
// It never fails: an unusable git setup produces a degraded resolver.
func NewResolver(ctx context.Context, repoPath string, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}

	r := &Resolver{repoPath: repoPath, logger: logger}

	gitPath, err := exec.LookPath("git")
	if err != nil {
		logger.Warn("git not found in PATH, incremental scans disabled", "error", err)
		r.degraded = true
		return r
	}
	r.gitPath = gitPath

	cmd := exec.CommandContext(ctx, gitPath, "-C", repoPath, "rev-parse", "--is-inside-work-tree")
	if err := cmd.Run(); err != nil {
		logger.Warn("not a git repository, incremental scans disabled",
			"path", repoPath, "error", err)
		r.degraded = true
	}

	return r
}

// Degraded reports whether version control is unavailable for this root.
func (r *Resolver) Degraded() bool {
	return r.degraded
}

// ChangedSince returns files changed between ref and the working tree.
func (r *Resolver) ChangedSince(ctx context.Context, ref string) (ChangeSet, error) {
	return r.nameOnly(ctx, "diff", "--name-only", ref)
}

// ChangedAndStaged returns files with unstaged or staged modifications.
func (r *Resolver) ChangedAndStaged(ctx context.Context) (ChangeSet, error) {
	unstaged, err := r.nameOnly(ctx, "diff", "--name-only")
	if err != nil {
		return nil, err
	}
	staged, err := r.nameOnly(ctx, "diff", "--name-only", "--staged")
	if err != nil {
		return nil, err
	}
	return union(unstaged, staged), nil
}

// Untracked returns files unknown to git, honoring ignore rules.
func (r *Resolver) Untracked(ctx context.Context) (ChangeSet, error) {
	return r.nameOnly(ctx, "ls-files", "--others", "--exclude-standard")
}

// ChangedInLastNDays returns files touched by any commit in the last n days.
func (r *Resolver) ChangedInLastNDays(ctx context.Context, n int) (ChangeSet, error) {
	since := fmt.Sprintf("%d.days.ago", n)
	return r.nameOnly(ctx, "log", "--since", since, "--name-only", "--pretty=format:")
}

// ChangedVsBaseBranch returns files changed relative to the merge base with
// the given branch, the set a pull-request diff would show.
func (r *Resolver) ChangedVsBaseBranch(ctx context.Context, branch string) (ChangeSet, error) {
	if r.degraded {
		return ChangeSet{}, nil
	}

	baseCmd := exec.CommandContext(ctx, r.gitPath, "-C", r.repoPath, "merge-base", "HEAD", branch)
	baseOut, err := baseCmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git merge-base HEAD %s failed in %s: %w", branch, r.repoPath, err)
	}
	base := strings.TrimSpace(string(baseOut))

	return r.nameOnly(ctx, "diff", "--name-only", base)
}

// FilterByChangeSet intersects file paths with a changeset.
// A nil changeset returns the input unchanged; paths are compared after
// normalizing to slash-separated, root-relative form.
func FilterByChangeSet(allFiles []string, cs ChangeSet) []string {
	if cs == nil {
		return allFiles
	}

	filtered := make([]string, 0, len(allFiles))
	for _, f := range allFiles {
		if cs.Contains(f) {
			filtered = append(filtered, f)
		}
	}
	return filtered
}

// nameOnly runs a git subcommand and collects its output lines into a set.
func (r *Resolver) nameOnly(ctx context.Context, args ...string) (ChangeSet, error) {
	if r.degraded {
		return ChangeSet{}, nil
	}

	fullArgs := append([]string{"-C", r.repoPath}, args...)
	cmd := exec.CommandContext(ctx, r.gitPath, fullArgs...)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git %s failed in %s: %w", strings.Join(args, " "), r.repoPath, err)
	}

	cs := ChangeSet{}
	scanner := bufio.NewScanner(strings.NewReader(string(output)))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		cs[filepath.ToSlash(line)] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to parse git output: %w", err)
	}

	return cs, nil
}

func union(a, b ChangeSet) ChangeSet {
	out := ChangeSet{}
	for p := range a {
		out[p] = struct{}{}
	}
	for p := range b {
		out[p] = struct{}{}
	}
	return out
}
