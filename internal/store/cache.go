package store

import (
	"context"
	"fmt"
	"slices"

	"github.com/abhisek/smartrepeat/internal/words"
	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedVocabulary keeps recently listed word pools in memory. Every write
// through it invalidates the affected profile.
type CachedVocabulary struct {
	inner VocabRepo
	pools *lru.Cache[string, []words.Word]
}

var _ VocabRepo = (*CachedVocabulary)(nil)

// NewCachedVocabulary wraps inner with an LRU of up to size profiles.
func NewCachedVocabulary(inner VocabRepo, size int) (*CachedVocabulary, error) {
	if size <= 0 {
		size = 256
	}
	pools, err := lru.New[string, []words.Word](size)
	if err != nil {
		return nil, fmt.Errorf("create vocabulary cache: %w", err)
	}
	return &CachedVocabulary{inner: inner, pools: pools}, nil
}

func (c *CachedVocabulary) ListWords(ctx context.Context, profile string) ([]words.Word, error) {
	if pool, ok := c.pools.Get(profile); ok {
		return slices.Clone(pool), nil
	}
	pool, err := c.inner.ListWords(ctx, profile)
	if err != nil {
		return nil, err
	}
	c.pools.Add(profile, slices.Clone(pool))
	return pool, nil
}

func (c *CachedVocabulary) IncrementCorrect(ctx context.Context, w words.Word) error {
	defer c.pools.Remove(w.Profile)
	return c.inner.IncrementCorrect(ctx, w)
}

func (c *CachedVocabulary) UpsertWord(ctx context.Context, profile, word, translation string) error {
	defer c.pools.Remove(profile)
	return c.inner.UpsertWord(ctx, profile, word, translation)
}

func (c *CachedVocabulary) DeleteWord(ctx context.Context, profile, word string) error {
	defer c.pools.Remove(profile)
	return c.inner.DeleteWord(ctx, profile, word)
}

// Cached reports how many profiles are currently held.
func (c *CachedVocabulary) Cached() int {
	return c.pools.Len()
}
