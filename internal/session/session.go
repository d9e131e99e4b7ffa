// Package session holds live Smart Repeat sessions: the per-user record of
// pipeline position, its owner goroutine, the idle sweep and recovery from
// persisted profile snapshots.
package session

import (
	"fmt"
	"slices"
	"time"

	"github.com/abhisek/smartrepeat/internal/generation"
	"github.com/abhisek/smartrepeat/internal/stage"
	"github.com/abhisek/smartrepeat/internal/words"
	"github.com/google/uuid"
)

// QuizItem is one prepared multiple-choice quiz question.
type QuizItem struct {
	Options []string
	Answer  int
}

// Scratch holds the large stage payloads. It is released on stage exit and
// on expiry.
type Scratch struct {
	Quiz     []QuizItem
	Essay    string
	Analysis *generation.WritingAnalysis
	Drill    *generation.TextDrill
	Bonus    []generation.BonusWord
}

// Release drops every payload.
func (sc *Scratch) Release() {
	*sc = Scratch{}
}

// Empty reports whether nothing is held.
func (sc *Scratch) Empty() bool {
	return len(sc.Quiz) == 0 && sc.Essay == "" && sc.Analysis == nil && sc.Drill == nil && len(sc.Bonus) == 0
}

func (sc Scratch) clone() Scratch {
	out := Scratch{Essay: sc.Essay, Bonus: slices.Clone(sc.Bonus)}
	if sc.Quiz != nil {
		out.Quiz = make([]QuizItem, len(sc.Quiz))
		for i, q := range sc.Quiz {
			out.Quiz[i] = QuizItem{Options: slices.Clone(q.Options), Answer: q.Answer}
		}
	}
	if sc.Analysis != nil {
		a := *sc.Analysis
		a.Corrections = slices.Clone(a.Corrections)
		out.Analysis = &a
	}
	if sc.Drill != nil {
		d := *sc.Drill
		d.Questions = make([]generation.Question, len(sc.Drill.Questions))
		for i, q := range sc.Drill.Questions {
			q.Options = slices.Clone(q.Options)
			d.Questions[i] = q
		}
		d.BonusVocabulary = slices.Clone(d.BonusVocabulary)
		out.Drill = &d
	}
	return out
}

// Stats counts outcomes over one pass for the closing summary.
type Stats struct {
	QuizCorrect   int
	QuizWrong     int
	Known         int
	Unknown       int
	WritingScore  int
	WritingScored bool // score came from the service, not a stand-in
	Written       bool
	DrillCorrect  int
	DrillWrong    int
	WordsAdded    int
	StagesSkipped int
}

// Session is one user's live pass through the pipeline.
type Session struct {
	ID      uuid.UUID
	UserID  string
	Profile string
	State   stage.State

	// Candidates are the words of the active stage, consumed in order
	// through Cursor.
	Candidates []words.Word
	Cursor     int

	// Difficult accumulates wrong answers across stages. Wrong collects the
	// active stage's misses until the stage is left.
	Difficult *words.DifficultSet
	Wrong     []words.Word

	Scratch Scratch
	Stats   Stats

	// Recovered is set on sessions rebuilt from a profile snapshot.
	Recovered bool

	CreatedAt    time.Time
	LastActivity time.Time
}

// New creates a session at the entry state of st.
func New(userID, profile string, st stage.Stage, now time.Time) (*Session, error) {
	state, err := stage.Enter(st)
	if err != nil {
		return nil, err
	}
	return &Session{
		ID:           uuid.New(),
		UserID:       userID,
		Profile:      profile,
		State:        state,
		Difficult:    words.NewDifficultSet(),
		CreatedAt:    now,
		LastActivity: now,
	}, nil
}

// Token identifies the prompt currently shown. Actions echo it back so
// answers to an earlier prompt can be told apart.
func (s *Session) Token() string {
	return fmt.Sprintf("%s:%s:%d", s.ID.String()[:8], s.State.Stage(), s.Cursor)
}

// Current returns the candidate under the cursor.
func (s *Session) Current() (words.Word, bool) {
	if s.Cursor < 0 || s.Cursor >= len(s.Candidates) {
		return words.Word{}, false
	}
	return s.Candidates[s.Cursor], true
}

// Remaining is the number of candidates not yet consumed.
func (s *Session) Remaining() int {
	return max(len(s.Candidates)-s.Cursor, 0)
}

// Idle returns how long the session has gone without activity.
func (s *Session) Idle(now time.Time) time.Duration {
	return now.Sub(s.LastActivity)
}

// Clone returns a deep copy. Sessions never leave the store by reference.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Candidates = slices.Clone(s.Candidates)
	c.Wrong = slices.Clone(s.Wrong)
	c.Difficult = s.Difficult.Clone()
	c.Scratch = s.Scratch.clone()
	return &c
}
