package vector

import (
	"fmt"
	"sort"

	"github.com/hyperjump/roomfinder/internal/errs"
)

// DefaultTieTolerance is the score difference under which two results count as tied.
const DefaultTieTolerance = 1e-9

// Candidate is a stored vector to rank against a query.
type Candidate struct {
	ID     string
	Vector []float32
}

// VectorResult is a single ranked hit.
type VectorResult struct {
	ID    string
	Score float64 // cosine similarity in [-1, 1]
}

// RankOptions controls ordering and filtering.
type RankOptions struct {
	// TieTolerance groups scores closer than this as equal; ties are ordered by ID ascending.
	TieTolerance float64
	// MinScore drops results below it when set.
	MinScore *float64
	// Limit caps the number of results; 0 keeps all.
	Limit int
}

// Rank scores every candidate against query by cosine similarity and returns them ordered by
// descending score, ties broken by ascending ID. The output depends only on the inputs.
func Rank(query []float32, candidates []Candidate, opts RankOptions) ([]*VectorResult, error) {
	tol := opts.TieTolerance
	if tol <= 0 {
		tol = DefaultTieTolerance
	}
	results := make([]*VectorResult, 0, len(candidates))
	for _, c := range candidates {
		if len(c.Vector) != len(query) {
			return nil, fmt.Errorf("%w: room %s has %d dimensions, query has %d",
				errs.ErrDimensionMismatch, c.ID, len(c.Vector), len(query))
		}
		score := CosineSimilarity(query, c.Vector)
		if opts.MinScore != nil && score < *opts.MinScore {
			continue
		}
		results = append(results, &VectorResult{ID: c.ID, Score: score})
	}
	sortResults(results, tol)
	if opts.Limit > 0 && opts.Limit < len(results) {
		results = results[:opts.Limit]
	}
	return results, nil
}

// sortResults orders results by descending score, then sorts each run of scores within tol
// of the run's first score by ID. Runs are anchored at their head so a chain of near scores
// never lets a result move above one that scores more than tol higher.
func sortResults(results []*VectorResult, tol float64) {
	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.ID < b.ID
	})
	for start := 0; start < len(results); {
		end := start + 1
		for end < len(results) && results[start].Score-results[end].Score <= tol {
			end++
		}
		run := results[start:end]
		sort.Slice(run, func(i, j int) bool { return run[i].ID < run[j].ID })
		start = end
	}
}
