package services

import (
	"math/rand"
	"testing"
	"time"

	"github.com/examforge/variation-engine/internal/models"
)

func makePool(level models.DifficultyLevel, startID uint, size int) []*models.Question {
	pool := make([]*models.Question, size)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < size; i++ {
		pool[i] = &models.Question{
			ID:         startID + uint(i),
			Difficulty: level,
			Active:     true,
			CreatedBy:  "teacher-1",
			CreatedAt:  base.Add(time.Duration(i) * time.Hour),
		}
	}
	return pool
}

func makeIndex(rng *rand.Rand, easy, medium, hard int) *PoolIndex {
	pools := map[models.DifficultyLevel][]*models.Question{
		models.DifficultyEasy:   makePool(models.DifficultyEasy, 1, easy),
		models.DifficultyMedium: makePool(models.DifficultyMedium, 1000, medium),
		models.DifficultyHard:   makePool(models.DifficultyHard, 2000, hard),
	}
	return NewPoolIndex(pools, rng)
}

func TestSelector_DistributionInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	index := makeIndex(rng, 20, 20, 20)
	distribution := models.Distribution{Easy: 3, Medium: 4, Hard: 3}
	sel := newSelector(rng)

	for i := 0; i < 10; i++ {
		picked, _, _ := sel.Select(i, index, distribution)

		if len(picked) != distribution.Total() {
			t.Fatalf("variation %d: expected %d questions, got %d", i, distribution.Total(), len(picked))
		}

		counts := map[models.DifficultyLevel]int{}
		seen := map[uint]bool{}
		for _, q := range picked {
			counts[q.Difficulty]++
			if seen[q.ID] {
				t.Fatalf("variation %d: question %d picked twice", i, q.ID)
			}
			seen[q.ID] = true
		}

		for _, level := range models.Difficulties {
			if counts[level] != distribution.Count(level) {
				t.Errorf("variation %d: %s count = %d, want %d", i, level, counts[level], distribution.Count(level))
			}
		}
	}
}

func TestSelector_DistinctSignatures(t *testing.T) {
	// Pool is 3x the per-variation demand, so near-total distinctness
	// is expected across 10 variations.
	rng := rand.New(rand.NewSource(7))
	index := makeIndex(rng, 30, 30, 30)
	distribution := models.Distribution{Easy: 4, Medium: 3, Hard: 3}
	sel := newSelector(rng)

	signatures := map[string]bool{}
	variations := 10
	for i := 0; i < variations; i++ {
		picked, _, _ := sel.Select(i, index, distribution)
		signatures[combinationSignature(picked)] = true
	}

	if len(signatures) < variations*9/10 {
		t.Errorf("expected at least 90%% distinct combinations, got %d of %d", len(signatures), variations)
	}
}

func TestSelector_FallbackOnExhaustedPool(t *testing.T) {
	// Pool size equals the per-variation demand: every variation must
	// pick the same set, and every variation after the first keeps a
	// duplicate instead of failing.
	rng := rand.New(rand.NewSource(1))
	pools := map[models.DifficultyLevel][]*models.Question{
		models.DifficultyEasy: makePool(models.DifficultyEasy, 1, 5),
	}
	index := NewPoolIndex(pools, rng)
	distribution := models.Distribution{Easy: 5}
	sel := newSelector(rng)

	first, fallback, _ := sel.Select(0, index, distribution)
	if fallback {
		t.Fatal("first variation should not fall back")
	}
	if len(first) != 5 {
		t.Fatalf("expected 5 questions, got %d", len(first))
	}

	second, fallback, attempts := sel.Select(1, index, distribution)
	if !fallback {
		t.Error("second variation over an exhausted pool should fall back")
	}
	if attempts != maxSelectionAttempts {
		t.Errorf("expected %d attempts before fallback, got %d", maxSelectionAttempts, attempts)
	}
	if len(second) != 5 {
		t.Fatalf("fallback must still deliver a full pick, got %d questions", len(second))
	}
	if combinationSignature(first) != combinationSignature(second) {
		t.Error("exhausted pool should produce the same combination")
	}
}

func TestSelector_Deterministic(t *testing.T) {
	run := func(seed int64) []string {
		rng := rand.New(rand.NewSource(seed))
		index := makeIndex(rng, 25, 25, 25)
		sel := newSelector(rng)
		distribution := models.Distribution{Easy: 3, Medium: 3, Hard: 2}

		var signatures []string
		for i := 0; i < 8; i++ {
			picked, _, _ := sel.Select(i, index, distribution)
			signatures = append(signatures, combinationSignature(picked))
		}
		return signatures
	}

	a := run(99)
	b := run(99)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("variation %d differs across identical seeds: %s vs %s", i, a[i], b[i])
		}
	}
}

func TestCombinationSignature_OrderIndependent(t *testing.T) {
	q1 := &models.Question{ID: 3}
	q2 := &models.Question{ID: 11}
	q3 := &models.Question{ID: 7}

	a := combinationSignature([]*models.Question{q1, q2, q3})
	b := combinationSignature([]*models.Question{q3, q1, q2})
	if a != b {
		t.Errorf("signatures differ for reordered picks: %s vs %s", a, b)
	}
	if a != "3-7-11" {
		t.Errorf("expected canonical signature 3-7-11, got %s", a)
	}
}

func TestShuffleQuestions_PreservesSet(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	questions := makePool(models.DifficultyEasy, 1, 10)

	before := map[uint]bool{}
	for _, q := range questions {
		before[q.ID] = true
	}

	shuffleQuestions(rng, questions)

	if len(questions) != 10 {
		t.Fatalf("shuffle changed length: %d", len(questions))
	}
	for _, q := range questions {
		if !before[q.ID] {
			t.Errorf("shuffle introduced unknown question %d", q.ID)
		}
	}
}

func TestPoolIndex_Ordering(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	older := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(24 * time.Hour)

	pools := map[models.DifficultyLevel][]*models.Question{
		models.DifficultyEasy: {
			{ID: 1, TimesUsed: 5, CreatedAt: newer},
			{ID: 2, TimesUsed: 0, CreatedAt: older},
			{ID: 3, TimesUsed: 0, CreatedAt: newer},
			{ID: 4, TimesUsed: 2, CreatedAt: older},
		},
	}

	index := NewPoolIndex(pools, rng)
	ordered := index.Pool(models.DifficultyEasy)

	if ordered[0].ID != 3 {
		t.Errorf("expected least-used newest question first, got %d", ordered[0].ID)
	}
	if ordered[1].ID != 2 {
		t.Errorf("expected least-used older question second, got %d", ordered[1].ID)
	}
	if ordered[2].ID != 4 || ordered[3].ID != 1 {
		t.Errorf("expected usage-ascending tail [4 1], got [%d %d]", ordered[2].ID, ordered[3].ID)
	}
}

func TestPoolIndex_Satisfies(t *testing.T) {
	rng := rand.New(rand.NewSource(8))
	index := makeIndex(rng, 5, 5, 5)

	if !index.Satisfies(models.Distribution{Easy: 5, Medium: 5, Hard: 5}) {
		t.Error("exact coverage should satisfy")
	}
	if index.Satisfies(models.Distribution{Easy: 6, Medium: 5, Hard: 5}) {
		t.Error("shortfall in one pool should not satisfy")
	}
}
