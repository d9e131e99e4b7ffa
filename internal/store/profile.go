package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

var profileSelectColumns = []string{
	"id", "user_id", "name", "xp", "level", "streak", "longest_streak",
	"last_smart_repeat_date", "in_progress_stage", "created_at", "updated_at",
}

// profileRepo implements ProfileRepo.
type profileRepo struct {
	db  *sql.DB
	now func() time.Time
}

func (r *profileRepo) EnsureProfile(ctx context.Context, userID, name string) (*Profile, error) {
	if err := ensureProfile(ctx, r.db, userID, name, r.now()); err != nil {
		return nil, err
	}
	return getProfile(ctx, r.db, userID, name)
}

func (r *profileRepo) LatestProfile(ctx context.Context, userID string) (*Profile, error) {
	return latestProfile(ctx, r.db, userID)
}

func (r *profileRepo) ListProfiles(ctx context.Context, userID string) ([]Profile, error) {
	stmt := builder().Select(profileSelectColumns...).
		From(entsql.Table(tableProfiles)).
		Where(entsql.EQ("user_id", userID)).
		OrderBy(entsql.Desc("updated_at"), entsql.Desc("id"))
	return queryProfiles(ctx, r.db, stmt)
}

func (r *profileRepo) SaveStage(ctx context.Context, userID, name, stage string) error {
	now := r.now()
	stmt := builder().Insert(tableProfiles).
		Columns("user_id", "name", "in_progress_stage", "created_at", "updated_at").
		Values(userID, name, stage, now, now).
		OnConflict(
			entsql.ConflictColumns("user_id", "name"),
			entsql.ResolveWith(func(u *entsql.UpdateSet) {
				u.SetExcluded("in_progress_stage")
				u.SetExcluded("updated_at")
			}),
		)
	if _, err := execStmt(ctx, r.db, stmt); err != nil {
		return fmt.Errorf("save stage for %q: %w", userID, err)
	}
	return nil
}

// ensureProfile inserts the profile or bumps its updated_at.
func ensureProfile(ctx context.Context, q querier, userID, name string, now time.Time) error {
	stmt := builder().Insert(tableProfiles).
		Columns("user_id", "name", "created_at", "updated_at").
		Values(userID, name, now, now).
		OnConflict(
			entsql.ConflictColumns("user_id", "name"),
			entsql.ResolveWith(func(u *entsql.UpdateSet) {
				u.SetExcluded("updated_at")
			}),
		)
	if _, err := execStmt(ctx, q, stmt); err != nil {
		return fmt.Errorf("ensure profile %q/%q: %w", userID, name, err)
	}
	return nil
}

func getProfile(ctx context.Context, q querier, userID, name string) (*Profile, error) {
	stmt := builder().Select(profileSelectColumns...).
		From(entsql.Table(tableProfiles)).
		Where(entsql.And(
			entsql.EQ("user_id", userID),
			entsql.EQ("name", name),
		)).
		Limit(1)
	ps, err := queryProfiles(ctx, q, stmt)
	if err != nil || len(ps) == 0 {
		return nil, err
	}
	return &ps[0], nil
}

func latestProfile(ctx context.Context, q querier, userID string) (*Profile, error) {
	stmt := builder().Select(profileSelectColumns...).
		From(entsql.Table(tableProfiles)).
		Where(entsql.EQ("user_id", userID)).
		OrderBy(entsql.Desc("updated_at"), entsql.Desc("id")).
		Limit(1)
	ps, err := queryProfiles(ctx, q, stmt)
	if err != nil || len(ps) == 0 {
		return nil, err
	}
	return &ps[0], nil
}

func queryProfiles(ctx context.Context, q querier, stmt entsql.Querier) ([]Profile, error) {
	rows, err := queryStmt(ctx, q, stmt)
	if err != nil {
		return nil, fmt.Errorf("query profiles: %w", err)
	}
	defer rows.Close()

	var out []Profile
	for rows.Next() {
		var p Profile
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &p.XP, &p.Level, &p.Streak,
			&p.LongestStreak, &p.LastSmartRepeatDate, &p.InProgressStage,
			&p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profiles: %w", err)
	}
	return out, nil
}
