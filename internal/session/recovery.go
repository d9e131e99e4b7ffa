package session

import (
	"context"
	"fmt"
	"time"

	"github.com/abhisek/smartrepeat/internal/stage"
	"github.com/abhisek/smartrepeat/internal/store"
	"go.uber.org/zap"
)

// ProfileSource reads persisted profile snapshots.
type ProfileSource interface {
	// LatestProfile returns the user's most recently updated profile, or
	// nil if the user has none.
	LatestProfile(ctx context.Context, userID string) (*store.Profile, error)
}

// ResumeStage maps the stage recorded on a snapshot to the stage a rebuilt
// session restarts at. Generated payloads are never persisted, so stages
// that depend on one resume at the stage that produces it.
func ResumeStage(persisted stage.Stage) (stage.Stage, bool) {
	switch persisted {
	case stage.Quiz:
		return stage.Quiz, true
	case stage.KnowDontKnow:
		return stage.KnowDontKnow, true
	case stage.WritingTask, stage.WritingAnalysis:
		return stage.WritingTask, true
	case stage.TextDrill, stage.VocabConsolidation:
		return stage.TextDrill, true
	}
	return 0, false
}

// Recovery rebuilds sessions from profile snapshots.
type Recovery struct {
	profiles ProfileSource
	now      func() time.Time
	logger   *zap.Logger
}

// NewRecovery creates a Recovery. A nil clock uses time.Now.
func NewRecovery(profiles ProfileSource, now func() time.Time, logger *zap.Logger) *Recovery {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recovery{profiles: profiles, now: now, logger: logger.Named("recovery")}
}

// Recover returns a minimal session pinned to a safe stage, or nil if the
// user has no snapshot or no pass in progress. The session carries no
// candidates or difficult words; the caller enters its stage.
func (r *Recovery) Recover(ctx context.Context, userID string) (*Session, error) {
	if r == nil || r.profiles == nil {
		return nil, nil
	}
	p, err := r.profiles.LatestProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load profile snapshot: %w", err)
	}
	if p == nil || p.InProgressStage == "" {
		return nil, nil
	}
	persisted, ok := stage.Parse(p.InProgressStage)
	if !ok {
		r.logger.Warn("unknown persisted stage", zap.String("user", userID), zap.String("stage", p.InProgressStage))
		return nil, nil
	}
	resume, ok := ResumeStage(persisted)
	if !ok {
		return nil, nil
	}

	sess, err := New(userID, p.Name, resume, r.now())
	if err != nil {
		return nil, err
	}
	sess.Recovered = true
	r.logger.Info("session recovered",
		zap.String("user", userID),
		zap.String("profile", p.Name),
		zap.Stringer("persisted", persisted),
		zap.Stringer("resume", resume),
	)
	return sess, nil
}
