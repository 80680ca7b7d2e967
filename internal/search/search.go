// Package search defines the optional semantic-search collaborator.
//
// The engine never owns a search index. When a Searcher is supplied, the
// implementation scanner uses its ranking only to prioritize discovered files;
// absence degrades discovery to exhaustive glob order with no change in
// correctness.
package search

import "context"

// Filters narrows a search to a subset of the project.
type Filters struct {
	// Languages restricts results to files of these language tags.
	Languages []string

	// PathPrefix restricts results to files under this root-relative prefix.
	PathPrefix string

	// Limit caps the number of results; zero means no cap.
	Limit int
}

// Result is one ranked file.
type Result struct {
	// Path is root-relative.
	Path string

	// Score is the ranking score, higher is more relevant.
	Score float64
}

// Searcher is the capability shape consumed from an external index.
type Searcher interface {
	Search(ctx context.Context, query string, filters Filters) ([]Result, error)
}

// Rank reorders paths so that those ranked by the searcher come first, in
// rank order, followed by the remainder in their original order. A nil
// searcher or a search failure leaves the order untouched.
func Rank(ctx context.Context, s Searcher, query string, paths []string) []string {
	if s == nil || len(paths) == 0 {
		return paths
	}

	results, err := s.Search(ctx, query, Filters{Limit: len(paths)})
	if err != nil || len(results) == 0 {
		return paths
	}

	inInput := make(map[string]bool, len(paths))
	for _, p := range paths {
		inInput[p] = true
	}

	ranked := make([]string, 0, len(paths))
	taken := make(map[string]bool, len(results))
	for _, r := range results {
		if inInput[r.Path] && !taken[r.Path] {
			ranked = append(ranked, r.Path)
			taken[r.Path] = true
		}
	}
	for _, p := range paths {
		if !taken[p] {
			ranked = append(ranked, p)
		}
	}
	return ranked
}
