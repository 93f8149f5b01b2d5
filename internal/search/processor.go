package search

import (
	"fmt"
	"math"

	"github.com/hyperjump/roomfinder/internal/errs"
	"github.com/hyperjump/roomfinder/internal/models"
)

// ProcessQuery validates the query and clamps its limit to maxLimit.
func ProcessQuery(query *models.SearchQuery, maxLimit int) error {
	if query == nil {
		return fmt.Errorf("%w: query is required", errs.ErrInvalidInput)
	}
	if m := query.MinScore; m != nil && (math.IsNaN(*m) || *m < -1 || *m > 1) {
		return fmt.Errorf("%w: min_score must be within [-1, 1]", errs.ErrInvalidInput)
	}
	query.Normalize(maxLimit)
	return nil
}
