package services

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"github.com/examforge/variation-engine/internal/models"
)

const (
	// maxSelectionAttempts bounds the signature retry loop per variation
	maxSelectionAttempts = 10

	// replacementRatio is the share of picks swapped for random pool
	// members when the pool is comfortably larger than the request
	replacementRatio = 0.3
)

// selector picks difficulty-balanced question sets per variation index,
// avoiding combination repeats across variations on a best-effort basis.
type selector struct {
	rng            *rand.Rand
	usedSignatures map[string]bool
}

// newSelector creates a selector for one generation run. The signature
// set spans the whole run: variation i+1 sees everything i accepted.
func newSelector(rng *rand.Rand) *selector {
	return &selector{
		rng:            rng,
		usedSignatures: make(map[string]bool),
	}
}

// pickResult is one difficulty bucket's selection outcome
type pickResult struct {
	questions []*models.Question
	fallback  bool // signature retry exhausted, duplicate accepted
	attempts  int
}

// Select returns the full question set for variation index i, built per
// difficulty bucket and concatenated in canonical order (easy, medium,
// hard). fallback reports whether any bucket kept a duplicate signature.
func (s *selector) Select(i int, index *PoolIndex, distribution models.Distribution) (questions []*models.Question, fallback bool, attempts int) {
	for _, level := range models.Difficulties {
		result := s.selectBucket(i, index.Pool(level), distribution.Count(level))
		questions = append(questions, result.questions...)
		if result.fallback {
			fallback = true
		}
		if result.attempts > attempts {
			attempts = result.attempts
		}
	}
	return questions, fallback, attempts
}

// selectBucket runs the rotation + bounded-retry + partial-randomization
// algorithm for one difficulty pool.
//
// Rotation by i*count spreads picks across the pool as the variation
// count grows; the retry offset of count/2 shifts the window between
// attempts; random replacement keeps variations from being trivial
// rotations of each other.
func (s *selector) selectBucket(i int, pool []*models.Question, count int) pickResult {
	poolSize := len(pool)
	if count == 0 || poolSize == 0 {
		return pickResult{}
	}

	baseOffset := (i * count) % poolSize

	var lastPick []*models.Question
	for attempt := 0; attempt < maxSelectionAttempts; attempt++ {
		attemptOffset := (attempt * (count / 2)) % poolSize
		start := (baseOffset + attemptOffset) % poolSize

		pick := s.walkForward(pool, start, count)

		if poolSize > 2*count {
			s.randomizePartial(pool, pick, count)
		}

		signature := combinationSignature(pick)
		if !s.usedSignatures[signature] {
			s.usedSignatures[signature] = true
			return pickResult{questions: pick, attempts: attempt + 1}
		}

		lastPick = pick
	}

	// Exhausted: duplication across variations is a soft constraint,
	// keep the last pick and let the caller surface it.
	s.usedSignatures[combinationSignature(lastPick)] = true
	return pickResult{questions: lastPick, fallback: true, attempts: maxSelectionAttempts}
}

// walkForward collects count distinct indices starting at start, wrapping
// around the pool. The walk visits each index at most once, bounding the
// scan to poolSize steps.
func (s *selector) walkForward(pool []*models.Question, start, count int) []*models.Question {
	poolSize := len(pool)
	chosen := make(map[int]bool, count)
	pick := make([]*models.Question, 0, count)

	for step := 0; step < poolSize && len(pick) < count; step++ {
		idx := (start + step) % poolSize
		if chosen[idx] {
			continue
		}
		chosen[idx] = true
		pick = append(pick, pool[idx])
	}

	return pick
}

// randomizePartial swaps roughly 30% of the picks for random pool members,
// skipping any replacement that would duplicate a question within the pick.
func (s *selector) randomizePartial(pool []*models.Question, pick []*models.Question, count int) {
	replacements := int(float64(count) * replacementRatio)
	if replacements == 0 {
		return
	}

	inPick := make(map[uint]bool, len(pick))
	for _, q := range pick {
		inPick[q.ID] = true
	}

	for r := 0; r < replacements; r++ {
		slot := s.rng.Intn(len(pick))
		candidate := pool[s.rng.Intn(len(pool))]
		if inPick[candidate.ID] {
			continue
		}
		delete(inPick, pick[slot].ID)
		inPick[candidate.ID] = true
		pick[slot] = candidate
	}
}

// combinationSignature canonicalizes a pick as its sorted question ids
// joined by a separator, so reordered picks compare equal.
func combinationSignature(pick []*models.Question) string {
	ids := make([]uint, len(pick))
	for i, q := range pick {
		ids[i] = q.ID
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return strings.Join(parts, "-")
}

// shuffleQuestions applies a uniform Fisher-Yates shuffle in place
func shuffleQuestions(rng *rand.Rand, questions []*models.Question) {
	for i := len(questions) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		questions[i], questions[j] = questions[j], questions[i]
	}
}
