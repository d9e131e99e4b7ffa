package store

import (
	"context"
	"errors"
	"time"

	"github.com/abhisek/smartrepeat/internal/words"
)

// ErrNotFound is returned when an update targets a row that does not exist.
var ErrNotFound = errors.New("store: not found")

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit   int       // max results (0 = unlimited)
	After   int64     // sequence > After
	Before  int64     // sequence < Before
	From    time.Time // timestamp >= From
	To      time.Time // timestamp <= To
	Purpose string    // exact purpose match when set
	Success *bool     // outcome match when set
}

// VocabRepo is the vocabulary store. Words are namespaced by profile name.
type VocabRepo interface {
	// ListWords returns every word of the profile ordered by id.
	ListWords(ctx context.Context, profile string) ([]words.Word, error)

	// IncrementCorrect bumps correct_count for the word's key within its
	// profile. Returns ErrNotFound if the word is not stored.
	IncrementCorrect(ctx context.Context, w words.Word) error

	// UpsertWord inserts the word or replaces its spelling and translation.
	UpsertWord(ctx context.Context, profile, word, translation string) error

	// DeleteWord removes the word with the given key.
	DeleteWord(ctx context.Context, profile, word string) error
}

// Profile is the persisted per-user snapshot read by session recovery and
// written by the completion ledger.
type Profile struct {
	ID                  int64
	UserID              string
	Name                string
	XP                  int
	Level               int
	Streak              int
	LongestStreak       int
	LastSmartRepeatDate string // YYYY-MM-DD in the user's timezone, "" if never
	InProgressStage     string // stage name, "" when no pass is running
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// ProfileRepo manages profile snapshots.
type ProfileRepo interface {
	// EnsureProfile creates the profile if missing and marks it as the
	// user's most recently used one.
	EnsureProfile(ctx context.Context, userID, name string) (*Profile, error)

	// LatestProfile returns the user's most recently updated profile, or
	// nil if the user has none.
	LatestProfile(ctx context.Context, userID string) (*Profile, error)

	// ListProfiles returns all profiles of the user, newest first.
	ListProfiles(ctx context.Context, userID string) ([]Profile, error)

	// SaveStage records the stage a running pass is in. An empty stage
	// clears it.
	SaveStage(ctx context.Context, userID, name, stage string) error
}

// Completion is one finished Smart Repeat pass.
type Completion struct {
	ID        string
	Sequence  int64
	Timestamp time.Time
	UserID    string
	Profile   string
	DateLocal string
	XPAwarded int
	Streak    int
}

// CompletionRepo is the completion ledger.
type CompletionRepo interface {
	// RecordCompletion appends a ledger row for the user's latest profile
	// and updates its XP, level and streak.
	RecordCompletion(ctx context.Context, userID, dateLocal string) error

	// ListCompletions returns the user's completions, newest first.
	ListCompletions(ctx context.Context, userID string, limit int) ([]Completion, error)
}

// GenerationEventData captures the data for a single generation call.
type GenerationEventData struct {
	Provider     string
	Model        string
	Purpose      string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
	RequestBody  string
	ResponseBody string
}

// GenerationEvent is a stored GenerationEventData.
type GenerationEvent struct {
	ID        int64
	Sequence  int64
	Timestamp time.Time
	GenerationEventData
}

// PurposeUsage aggregates generation calls by purpose.
type PurposeUsage struct {
	Purpose      string
	Calls        int
	InputTokens  int
	OutputTokens int
	AvgLatencyMs int64
}

// ModelUsage aggregates generation calls by model.
type ModelUsage struct {
	Model        string
	Calls        int
	InputTokens  int
	OutputTokens int
}

// EventRepo provides append and query access to generation events.
type EventRepo interface {
	AppendGenerationEvent(ctx context.Context, data GenerationEventData) error
	QueryGenerationEvents(ctx context.Context, opts QueryOpts) ([]GenerationEvent, error)

	// GetGenerationEvent returns nil if no event has the given id.
	GetGenerationEvent(ctx context.Context, id int64) (*GenerationEvent, error)

	UsageByPurpose(ctx context.Context) ([]PurposeUsage, error)
	UsageByModel(ctx context.Context) ([]ModelUsage, error)
}
