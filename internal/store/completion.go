package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
)

const (
	// CompletionXP is awarded for every finished pass.
	CompletionXP = 50

	// XPPerLevel is the XP needed to gain one level.
	XPPerLevel = 100

	// DateLayout is the format of DateLocal values.
	DateLayout = "2006-01-02"
)

// completionRepo implements CompletionRepo.
type completionRepo struct {
	db  *sql.DB
	seq *sequenceCounter
	now func() time.Time
}

func (r *completionRepo) RecordCompletion(ctx context.Context, userID, dateLocal string) error {
	if _, err := time.Parse(DateLayout, dateLocal); err != nil {
		return fmt.Errorf("record completion: bad date %q: %w", dateLocal, err)
	}

	// The sequence is taken outside the transaction so the counter's own
	// write does not contend with the ledger write.
	seqNum, err := r.seq.Next(ctx)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin completion: %w", err)
	}
	defer tx.Rollback()

	now := r.now()
	p, err := latestProfile(ctx, tx, userID)
	if err != nil {
		return err
	}
	if p == nil {
		if err := ensureProfile(ctx, tx, userID, userID, now); err != nil {
			return err
		}
		if p, err = getProfile(ctx, tx, userID, userID); err != nil {
			return err
		}
		if p == nil {
			return fmt.Errorf("record completion for %q: %w", userID, ErrNotFound)
		}
	}

	streak := NextStreak(p.LastSmartRepeatDate, p.Streak, dateLocal)
	xp := p.XP + CompletionXP
	longest := max(p.LongestStreak, streak)

	ins := builder().Insert(tableCompletions).
		Columns("id", "sequence", "timestamp", "user_id", "profile", "date_local", "xp_awarded", "streak").
		Values(uuid.NewString(), seqNum, now, userID, p.Name, dateLocal, CompletionXP, streak)
	if _, err := execStmt(ctx, tx, ins); err != nil {
		return fmt.Errorf("append completion: %w", err)
	}

	upd := builder().Update(tableProfiles).
		Set("xp", xp).
		Set("level", LevelFor(xp)).
		Set("streak", streak).
		Set("longest_streak", longest).
		Set("last_smart_repeat_date", dateLocal).
		Set("in_progress_stage", "").
		Set("updated_at", now).
		Where(entsql.EQ("id", p.ID))
	if _, err := execStmt(ctx, tx, upd); err != nil {
		return fmt.Errorf("update profile after completion: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit completion: %w", err)
	}
	return nil
}

func (r *completionRepo) ListCompletions(ctx context.Context, userID string, limit int) ([]Completion, error) {
	stmt := builder().Select("id", "sequence", "timestamp", "user_id", "profile", "date_local", "xp_awarded", "streak").
		From(entsql.Table(tableCompletions)).
		Where(entsql.EQ("user_id", userID)).
		OrderBy(entsql.Desc("sequence"))
	if limit > 0 {
		stmt.Limit(limit)
	}
	rows, err := queryStmt(ctx, r.db, stmt)
	if err != nil {
		return nil, fmt.Errorf("query completions: %w", err)
	}
	defer rows.Close()

	var out []Completion
	for rows.Next() {
		var c Completion
		if err := rows.Scan(&c.ID, &c.Sequence, &c.Timestamp, &c.UserID, &c.Profile,
			&c.DateLocal, &c.XPAwarded, &c.Streak); err != nil {
			return nil, fmt.Errorf("scan completion: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// NextStreak returns the daily streak after a completion on today, given
// the previous completion date and streak. Repeating a day keeps the
// streak, the following day extends it, and any gap restarts it at 1.
func NextStreak(last string, streak int, today string) int {
	if streak < 1 || last == "" {
		return 1
	}
	if last == today {
		return streak
	}
	l, err1 := time.Parse(DateLayout, last)
	t, err2 := time.Parse(DateLayout, today)
	if err1 != nil || err2 != nil {
		return 1
	}
	switch {
	case l.AddDate(0, 0, 1).Equal(t):
		return streak + 1
	case t.Before(l):
		// Clock moved backwards; keep what was earned.
		return streak
	default:
		return 1
	}
}

// LevelFor maps total XP to a level starting at 1.
func LevelFor(xp int) int {
	if xp < 0 {
		xp = 0
	}
	return xp/XPPerLevel + 1
}
