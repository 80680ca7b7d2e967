package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeSearcher struct {
	results []Result
	err     error
}

func (f *fakeSearcher) Search(_ context.Context, _ string, _ Filters) ([]Result, error) {
	return f.results, f.err
}

func TestRankNilSearcherKeepsOrder(t *testing.T) {
	paths := []string{"a.py", "b.py"}
	assert.Equal(t, paths, Rank(context.Background(), nil, "query", paths))
}

func TestRankPrioritizesMatches(t *testing.T) {
	s := &fakeSearcher{results: []Result{
		{Path: "c.py", Score: 0.9},
		{Path: "a.py", Score: 0.5},
		{Path: "unknown.py", Score: 0.4},
	}}

	got := Rank(context.Background(), s, "query", []string{"a.py", "b.py", "c.py"})
	assert.Equal(t, []string{"c.py", "a.py", "b.py"}, got)
}

func TestRankFailureKeepsOrder(t *testing.T) {
	s := &fakeSearcher{err: errors.New("index unavailable")}
	paths := []string{"a.py", "b.py"}
	assert.Equal(t, paths, Rank(context.Background(), s, "query", paths))
}
