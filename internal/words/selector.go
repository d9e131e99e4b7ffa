package words

import "sort"

// SelectorConfig tunes the priority score.
type SelectorConfig struct {
	// MaxCorrect caps correctCount; words at or above it share the lowest score.
	MaxCorrect int

	// Weight scales the score.
	Weight int
}

// DefaultSelectorConfig returns the standard scoring constants.
func DefaultSelectorConfig() SelectorConfig {
	return SelectorConfig{MaxCorrect: 5, Weight: 10}
}

// Selector ranks a vocabulary pool for drilling.
type Selector struct {
	cfg SelectorConfig
}

// NewSelector creates a Selector. Non-positive constants fall back to defaults.
func NewSelector(cfg SelectorConfig) *Selector {
	def := DefaultSelectorConfig()
	if cfg.MaxCorrect <= 0 {
		cfg.MaxCorrect = def.MaxCorrect
	}
	if cfg.Weight <= 0 {
		cfg.Weight = def.Weight
	}
	return &Selector{cfg: cfg}
}

// Score returns the drilling priority of w. Less-mastered words score higher.
func (s *Selector) Score(w Word) int {
	c := w.CorrectCount
	if c < 0 {
		c = 0
	}
	if c > s.cfg.MaxCorrect {
		c = s.cfg.MaxCorrect
	}
	return (s.cfg.MaxCorrect - c) * s.cfg.Weight
}

// Rank returns pool deduplicated by key and ordered by priority: score
// descending, then least recently practiced, then key. The input is not modified.
func (s *Selector) Rank(pool []Word) []Word {
	seen := make(map[string]bool, len(pool))
	ranked := make([]Word, 0, len(pool))
	for _, w := range pool {
		k := w.Key()
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		ranked = append(ranked, w)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		si, sj := s.Score(ranked[i]), s.Score(ranked[j])
		if si != sj {
			return si > sj
		}
		if !ranked[i].UpdatedAt.Equal(ranked[j].UpdatedAt) {
			return ranked[i].UpdatedAt.Before(ranked[j].UpdatedAt)
		}
		return ranked[i].Key() < ranked[j].Key()
	})
	return ranked
}

// Select returns up to count words from pool by priority, skipping keys in
// excluding. An empty pool yields an empty result, never an error.
func (s *Selector) Select(pool []Word, count int, excluding map[string]bool) []Word {
	if count <= 0 || len(pool) == 0 {
		return []Word{}
	}
	out := make([]Word, 0, min(count, len(pool)))
	for _, w := range s.Rank(pool) {
		if len(out) == count {
			break
		}
		if excluding[w.Key()] {
			continue
		}
		out = append(out, w)
	}
	return out
}

// Backfill puts primary first (deduplicated, truncated to count) and tops the
// result up from pool by priority. With an empty primary it is Select.
func (s *Selector) Backfill(primary, pool []Word, count int) []Word {
	if count <= 0 {
		return []Word{}
	}
	out := make([]Word, 0, count)
	taken := make(map[string]bool, count)
	for _, w := range primary {
		if len(out) == count {
			return out
		}
		k := w.Key()
		if k == "" || taken[k] {
			continue
		}
		taken[k] = true
		out = append(out, w)
	}
	return append(out, s.Select(pool, count-len(out), taken)...)
}
