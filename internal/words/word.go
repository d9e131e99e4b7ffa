package words

import (
	"strings"
	"time"
)

// Word is a vocabulary entry owned by the vocabulary store. The drilling core
// only reads it; correctness increments go back through the store.
type Word struct {
	ID           int64
	Profile      string
	Word         string
	Translation  string
	CorrectCount int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Key returns the identity used for deduplication across stages.
func (w Word) Key() string {
	return NormalizeKey(w.Word)
}

// NormalizeKey folds case and surrounding whitespace.
func NormalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Keys returns the keys of ws in order.
func Keys(ws []Word) []string {
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = w.Key()
	}
	return out
}

// KeySet builds a membership set from ws.
func KeySet(ws []Word) map[string]bool {
	set := make(map[string]bool, len(ws))
	for _, w := range ws {
		set[w.Key()] = true
	}
	return set
}
