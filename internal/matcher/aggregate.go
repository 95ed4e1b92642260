package matcher

import (
	"slices"

	"github.com/andresmejia3/itemwatch/internal/types"
)

// UniqueIDs reduces a batch of detections to the sorted set of template ids.
func UniqueIDs(results []types.MatchResult) []uint32 {
	ids := make([]uint32, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.TemplateID)
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}
