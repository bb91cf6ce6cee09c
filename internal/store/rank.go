package store

import (
	"fmt"
	"sort"

	"few-shots/internal/embeddings"
	"few-shots/internal/shot"
)

type candidate struct {
	shot   shot.Shot
	vector embeddings.Vector
	order  int64
}

// rank scores every candidate against query with an exact linear scan and
// returns the closest limit, ties broken by insertion order.
func rank(query embeddings.Vector, cands []candidate, distance DistanceFunc, limit int) ([]shot.ScoredShot, error) {
	if limit <= 0 || len(cands) == 0 {
		return []shot.ScoredShot{}, nil
	}
	type scored struct {
		distance float64
		order    int64
		shot     shot.Shot
	}
	all := make([]scored, len(cands))
	for i, c := range cands {
		if len(c.vector) != len(query) {
			return nil, fmt.Errorf("%w: query has %d dimensions, stored vector %q has %d",
				ErrSchema, len(query), c.shot.ID, len(c.vector))
		}
		all[i] = scored{distance: distance(query, c.vector), order: c.order, shot: c.shot}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].distance != all[j].distance {
			return all[i].distance < all[j].distance
		}
		return all[i].order < all[j].order
	})
	if len(all) > limit {
		all = all[:limit]
	}
	out := make([]shot.ScoredShot, len(all))
	for i, s := range all {
		out[i] = shot.ScoredShot{Distance: s.distance, Shot: s.shot}
	}
	return out, nil
}
