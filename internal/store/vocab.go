package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/abhisek/smartrepeat/internal/words"
)

var wordSelectColumns = []string{
	"id", "profile", "word", "translation", "correct_count", "created_at", "updated_at",
}

// vocabRepo implements VocabRepo.
type vocabRepo struct {
	db  *sql.DB
	now func() time.Time
}

func (r *vocabRepo) ListWords(ctx context.Context, profile string) ([]words.Word, error) {
	stmt := builder().Select(wordSelectColumns...).
		From(entsql.Table(tableWords)).
		Where(entsql.EQ("profile", profile)).
		OrderBy("id")
	rows, err := queryStmt(ctx, r.db, stmt)
	if err != nil {
		return nil, fmt.Errorf("query words: %w", err)
	}
	defer rows.Close()

	var out []words.Word
	for rows.Next() {
		var w words.Word
		if err := rows.Scan(&w.ID, &w.Profile, &w.Word, &w.Translation,
			&w.CorrectCount, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan word: %w", err)
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate words: %w", err)
	}
	return out, nil
}

func (r *vocabRepo) IncrementCorrect(ctx context.Context, w words.Word) error {
	stmt := builder().Update(tableWords).
		Add("correct_count", 1).
		Set("updated_at", r.now()).
		Where(entsql.And(
			entsql.EQ("profile", w.Profile),
			entsql.EQ("word_key", w.Key()),
		))
	res, err := execStmt(ctx, r.db, stmt)
	if err != nil {
		return fmt.Errorf("increment %q: %w", w.Word, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("increment %q in %q: %w", w.Word, w.Profile, ErrNotFound)
	}
	return nil
}

func (r *vocabRepo) UpsertWord(ctx context.Context, profile, word, translation string) error {
	word = strings.TrimSpace(word)
	key := words.NormalizeKey(word)
	if key == "" {
		return fmt.Errorf("upsert word: empty word")
	}
	now := r.now()
	stmt := builder().Insert(tableWords).
		Columns("profile", "word", "word_key", "translation", "correct_count", "created_at", "updated_at").
		Values(profile, word, key, strings.TrimSpace(translation), 0, now, now).
		OnConflict(
			entsql.ConflictColumns("profile", "word_key"),
			entsql.ResolveWith(func(u *entsql.UpdateSet) {
				u.SetExcluded("word")
				u.SetExcluded("translation")
				u.SetExcluded("updated_at")
			}),
		)
	if _, err := execStmt(ctx, r.db, stmt); err != nil {
		return fmt.Errorf("upsert %q: %w", word, err)
	}
	return nil
}

func (r *vocabRepo) DeleteWord(ctx context.Context, profile, word string) error {
	stmt := builder().Delete(tableWords).
		Where(entsql.And(
			entsql.EQ("profile", profile),
			entsql.EQ("word_key", words.NormalizeKey(word)),
		))
	res, err := execStmt(ctx, r.db, stmt)
	if err != nil {
		return fmt.Errorf("delete %q: %w", word, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("delete %q in %q: %w", word, profile, ErrNotFound)
	}
	return nil
}
