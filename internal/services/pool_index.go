package services

import (
	"math/rand"
	"sort"

	"github.com/examforge/variation-engine/internal/models"
)

// PoolIndex is the in-memory candidate view for one generation run.
// Pools are keyed by difficulty and ordered by ascending usage count,
// then newest first, with a per-run random tiebreak so equally-used
// questions rotate between runs.
type PoolIndex struct {
	pools map[models.DifficultyLevel][]*models.Question
}

// NewPoolIndex builds the index from the loaded per-difficulty pools.
// rng supplies the per-run permutation; it is applied once here, never
// per variation.
func NewPoolIndex(pools map[models.DifficultyLevel][]*models.Question, rng *rand.Rand) *PoolIndex {
	indexed := make(map[models.DifficultyLevel][]*models.Question, len(pools))

	for level, pool := range pools {
		ordered := make([]*models.Question, len(pool))
		copy(ordered, pool)

		tiebreak := make(map[uint]int, len(ordered))
		for _, q := range ordered {
			tiebreak[q.ID] = rng.Int()
		}

		sort.SliceStable(ordered, func(i, j int) bool {
			a, b := ordered[i], ordered[j]
			if a.TimesUsed != b.TimesUsed {
				return a.TimesUsed < b.TimesUsed
			}
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return tiebreak[a.ID] < tiebreak[b.ID]
		})

		indexed[level] = ordered
	}

	return &PoolIndex{pools: indexed}
}

// Pool returns the ordered candidate pool for a difficulty
func (p *PoolIndex) Pool(level models.DifficultyLevel) []*models.Question {
	return p.pools[level]
}

// Size returns the pool size for a difficulty
func (p *PoolIndex) Size(level models.DifficultyLevel) int {
	return len(p.pools[level])
}

// Satisfies reports whether every difficulty pool covers the distribution
func (p *PoolIndex) Satisfies(distribution models.Distribution) bool {
	for _, level := range models.Difficulties {
		if p.Size(level) < distribution.Count(level) {
			return false
		}
	}
	return true
}
