// Package smartrepeat drives a user through the Smart Repeat pipeline:
// quiz, know/don't-know, writing with analysis, a generated text drill and
// vocabulary consolidation.
package smartrepeat

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/abhisek/smartrepeat/internal/generation"
	"github.com/abhisek/smartrepeat/internal/session"
	"github.com/abhisek/smartrepeat/internal/stage"
	"github.com/abhisek/smartrepeat/internal/words"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultProfile is used when an action names no profile.
const DefaultProfile = "default"

// Vocabulary is the external word store.
type Vocabulary interface {
	ListWords(ctx context.Context, profile string) ([]words.Word, error)
	IncrementCorrect(ctx context.Context, w words.Word) error
	UpsertWord(ctx context.Context, profile, word, translation string) error
}

// ProgressRecorder persists the stage a running pass is in, so the pass
// can be recovered after the live session is lost.
type ProgressRecorder interface {
	SaveStage(ctx context.Context, userID, profile, stage string) error
}

// CompletionRecorder is told once about every finished pass.
type CompletionRecorder interface {
	RecordCompletion(ctx context.Context, userID, dateLocal string) error
}

// Generator produces the generated stage payloads.
type Generator interface {
	TextDrill(ctx context.Context, ws []words.Word) (generation.Result[generation.TextDrill], error)
	WritingAnalysis(ctx context.Context, task []words.Word, essay string) (generation.Result[generation.WritingAnalysis], error)
}

// Config sizes the stages.
type Config struct {
	QuizSize         int
	KnowSize         int
	WritingWords     int
	TextDrillFloor   int
	ConsolidationMax int
	QuizOptions      int

	Selector words.SelectorConfig

	// Location is the user's timezone for completion dates.
	Location *time.Location
}

// DefaultConfig returns the standard stage sizes.
func DefaultConfig() Config {
	return Config{
		QuizSize:         10,
		KnowSize:         10,
		WritingWords:     5,
		TextDrillFloor:   10,
		ConsolidationMax: 8,
		QuizOptions:      4,
		Selector:         words.DefaultSelectorConfig(),
		Location:         time.Local,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	fill := func(v *int, d int) {
		if *v <= 0 {
			*v = d
		}
	}
	fill(&c.QuizSize, def.QuizSize)
	fill(&c.KnowSize, def.KnowSize)
	fill(&c.WritingWords, def.WritingWords)
	fill(&c.TextDrillFloor, def.TextDrillFloor)
	fill(&c.ConsolidationMax, def.ConsolidationMax)
	fill(&c.QuizOptions, def.QuizOptions)
	if c.QuizOptions < 2 {
		c.QuizOptions = 2
	}
	if c.Location == nil {
		c.Location = def.Location
	}
	return c
}

// Deps are the engine's collaborators. Sessions, Vocabulary and Generator
// are required.
type Deps struct {
	Sessions    *session.Store
	Recovery    *session.Recovery
	Vocabulary  Vocabulary
	Progress    ProgressRecorder
	Completions CompletionRecorder
	Generator   Generator
	Logger      *zap.Logger

	// Rand shuffles quiz options. Nil uses a randomly seeded source.
	Rand *rand.Rand
}

// Engine is the Smart Repeat stage machine.
type Engine struct {
	cfg         Config
	selector    *words.Selector
	sessions    *session.Store
	recovery    *session.Recovery
	vocab       Vocabulary
	progress    ProgressRecorder
	completions CompletionRecorder
	gen         Generator
	logger      *zap.Logger

	rngMu sync.Mutex
	rng   *rand.Rand

	// inFlight holds the sessions with a generation call running.
	flightMu sync.Mutex
	inFlight map[uuid.UUID]bool
}

// New creates an Engine.
func New(cfg Config, deps Deps) *Engine {
	cfg = cfg.withDefaults()
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	rng := deps.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Engine{
		cfg:         cfg,
		selector:    words.NewSelector(cfg.Selector),
		sessions:    deps.Sessions,
		recovery:    deps.Recovery,
		vocab:       deps.Vocabulary,
		progress:    deps.Progress,
		completions: deps.Completions,
		gen:         deps.Generator,
		logger:      logger.Named("smartrepeat"),
		rng:         rng,
		inFlight:    map[uuid.UUID]bool{},
	}
}

// Handle applies one action and returns the replies to show. Every failure
// is turned into a reply; Handle never reports an error.
func (e *Engine) Handle(ctx context.Context, a Action) []Reply {
	a.UserID = strings.TrimSpace(a.UserID)
	if a.UserID == "" {
		return []Reply{{Kind: ReplyInvalid, Text: "Missing user."}}
	}
	switch a.Kind {
	case ActionStart:
		return e.start(ctx, a)
	case ActionRestart:
		return e.restart(ctx, a)
	}
	return e.act(ctx, a)
}

func (e *Engine) start(ctx context.Context, a Action) []Reply {
	sess, err := e.sessions.Get(ctx, a.UserID)
	switch {
	case err == nil:
		if err := e.sessions.Touch(ctx, a.UserID); err != nil && !errors.Is(err, session.ErrNotFound) {
			e.logger.Warn("touch session", zap.String("user", a.UserID), zap.Error(err))
		}
		lead := []Reply{info(sess.State.Stage(), "You already have a Smart Repeat in progress.")}
		if fx, ok := e.stalled(sess); ok {
			return e.settle(ctx, sess, outcome{replies: lead, fx: fx})
		}
		return append(lead, resend(sess)...)
	case !errors.Is(err, session.ErrNotFound):
		return e.unavailable(err)
	}

	if rec, replies, ok := e.tryRecover(ctx, a.UserID); ok {
		return e.resume(ctx, rec, replies)
	}
	return e.begin(ctx, a.UserID, a.Profile)
}

func (e *Engine) restart(ctx context.Context, a Action) []Reply {
	if _, err := e.sessions.Delete(ctx, a.UserID, uuid.Nil); err != nil {
		return e.unavailable(err)
	}
	e.logger.Info("session restarted", zap.String("user", a.UserID))
	return e.begin(ctx, a.UserID, a.Profile)
}

// begin creates a fresh session at the first stage.
func (e *Engine) begin(ctx context.Context, userID, profile string) []Reply {
	profile = strings.TrimSpace(profile)
	if profile == "" {
		profile = DefaultProfile
	}
	pool, err := e.vocab.ListWords(ctx, profile)
	if err != nil {
		return e.unavailable(err)
	}
	if len(pool) == 0 {
		e.logger.Info("cannot drill an empty vocabulary", zap.String("user", userID), zap.String("profile", profile))
		return []Reply{{Kind: ReplyNoWords, Text: "Your vocabulary is empty. Add some words first."}}
	}

	sess, err := session.New(userID, profile, stage.Quiz, e.now())
	if err != nil {
		return e.unavailable(err)
	}
	var out outcome
	e.enter(sess, stage.Quiz, pool, &out)
	if err := e.sessions.Create(ctx, sess); err != nil {
		if errors.Is(err, session.ErrExists) {
			// Another start for the same user won the race.
			return e.start(ctx, Action{UserID: userID, Kind: ActionStart, Profile: profile})
		}
		return e.unavailable(err)
	}
	e.logger.Info("session created",
		zap.String("user", userID),
		zap.String("profile", profile),
		zap.Stringer("session", sess.ID),
		zap.Int("pool", len(pool)),
	)
	return e.settle(ctx, sess, out)
}

// tryRecover rebuilds a session from the user's profile snapshot.
func (e *Engine) tryRecover(ctx context.Context, userID string) (*session.Session, []Reply, bool) {
	if e.recovery == nil {
		return nil, nil, false
	}
	rec, err := e.recovery.Recover(ctx, userID)
	if err != nil {
		e.logger.Warn("recovery failed", zap.String("user", userID), zap.Error(err))
		return nil, nil, false
	}
	if rec == nil {
		return nil, nil, false
	}
	msg := info(rec.State.Stage(), "Picking up your Smart Repeat where it was interrupted.")
	return rec, []Reply{msg}, true
}

// resume enters the recovered session's stage and stores it.
func (e *Engine) resume(ctx context.Context, sess *session.Session, lead []Reply) []Reply {
	pool, err := e.vocab.ListWords(ctx, sess.Profile)
	if err != nil {
		return e.unavailable(err)
	}
	if len(pool) == 0 {
		return []Reply{{Kind: ReplyNoWords, Text: "Your vocabulary is empty. Add some words first."}}
	}
	sess.LastActivity = e.now()
	out := outcome{replies: lead}
	e.enter(sess, sess.State.Stage(), pool, &out)
	if err := e.sessions.Create(ctx, sess); err != nil {
		if errors.Is(err, session.ErrExists) {
			return e.start(ctx, Action{UserID: sess.UserID, Kind: ActionStart})
		}
		return e.unavailable(err)
	}
	return e.settle(ctx, sess, out)
}

// act applies an in-pipeline action to the live session.
func (e *Engine) act(ctx context.Context, a Action) []Reply {
	sess, err := e.sessions.Get(ctx, a.UserID)
	if errors.Is(err, session.ErrNotFound) {
		if rec, replies, ok := e.tryRecover(ctx, a.UserID); ok {
			return e.resume(ctx, rec, replies)
		}
		e.logger.Debug("action without session", zap.String("user", a.UserID), zap.Stringer("action", a.Kind), zap.Error(ErrSessionMissing))
		return []Reply{{Kind: ReplyRestartRequired, Text: "There is no Smart Repeat in progress. Start a new one."}}
	}
	if err != nil {
		return e.unavailable(err)
	}
	if fx, ok := e.stalled(sess); ok {
		return e.settle(ctx, sess, outcome{fx: fx})
	}

	pool, err := e.vocab.ListWords(ctx, sess.Profile)
	if err != nil {
		return e.unavailable(err)
	}

	var out outcome
	updated, err := e.sessions.Update(ctx, a.UserID, sess.ID, func(s *session.Session) error {
		if s.Token() != a.Token {
			return ErrStaleAction
		}
		out = outcome{}
		if err := e.step(s, a, pool, &out); err != nil {
			return err
		}
		s.LastActivity = e.now()
		return nil
	})
	switch {
	case err == nil:
		return e.settle(ctx, updated, out)
	case errors.Is(err, ErrStaleAction):
		e.logger.Debug("stale action", zap.String("user", a.UserID), zap.String("token", a.Token), zap.Stringer("action", a.Kind))
		return []Reply{{Kind: ReplyStale, Stage: sess.State.Stage(), Text: "That answer belongs to an earlier question."}}
	case errors.Is(err, errInvalidAction):
		return []Reply{{Kind: ReplyInvalid, Stage: sess.State.Stage(), Token: sess.Token(), Text: "That does not answer the current question."}}
	case errors.Is(err, session.ErrNotFound):
		return []Reply{{Kind: ReplyRestartRequired, Text: "Your Smart Repeat has expired. Start a new one."}}
	}
	return e.unavailable(err)
}

// settle runs the side effects of an accepted transition, including any
// generation call it started, until the session is waiting on the user.
func (e *Engine) settle(ctx context.Context, sess *session.Session, out outcome) []Reply {
	replies := out.replies
	fx := out.fx
	for {
		e.runEffects(ctx, sess.UserID, sess.Profile, fx)
		if fx.complete {
			e.complete(ctx, sess)
			return replies
		}
		if fx.generate == genNone {
			return replies
		}
		next, err := e.generate(ctx, sess, fx)
		if errors.Is(err, errGenerationPending) {
			return append(replies, info(sess.State.Stage(), "Still preparing, one moment..."))
		}
		if err != nil {
			e.logger.Info("generation result discarded",
				zap.String("user", sess.UserID),
				zap.Stringer("session", sess.ID),
				zap.Error(err),
			)
			return replies
		}
		replies = append(replies, next.replies...)
		fx = next.fx
	}
}

func (e *Engine) runEffects(ctx context.Context, userID, profile string, fx effects) {
	for _, w := range fx.increment {
		if err := e.vocab.IncrementCorrect(ctx, w); err != nil {
			e.logger.Warn("increment correct count", zap.String("word", w.Word), zap.Error(err))
		}
	}
	for _, b := range fx.upsert {
		if err := e.vocab.UpsertWord(ctx, profile, b.Word, b.Translation); err != nil {
			e.logger.Warn("add word", zap.String("word", b.Word), zap.Error(err))
		}
	}
	if fx.saveStage != 0 && e.progress != nil {
		if err := e.progress.SaveStage(ctx, userID, profile, fx.saveStage.String()); err != nil {
			e.logger.Warn("save stage", zap.String("user", userID), zap.Stringer("stage", fx.saveStage), zap.Error(err))
		}
	}
}

// generate makes the generation call the transition asked for and applies
// the result if the session is still waiting for it.
func (e *Engine) generate(ctx context.Context, sess *session.Session, fx effects) (outcome, error) {
	if !e.claim(sess.ID) {
		return outcome{}, errGenerationPending
	}
	defer e.release(sess.ID)

	var (
		apply func(s *session.Session, pool []words.Word, out *outcome)
		want  stage.State
	)
	switch fx.generate {
	case genAnalysis:
		res, genErr := e.gen.WritingAnalysis(ctx, fx.genWords, fx.essay)
		want = stage.MustEnter(stage.WritingAnalysis)
		apply = func(s *session.Session, pool []words.Word, out *outcome) {
			e.applyAnalysis(s, res, genErr, pool, out)
		}
	case genDrill:
		res, genErr := e.gen.TextDrill(ctx, fx.genWords)
		want = stage.MustEnter(stage.TextDrill)
		apply = func(s *session.Session, pool []words.Word, out *outcome) {
			e.applyDrill(s, res, genErr, pool, out)
		}
	default:
		return outcome{}, nil
	}

	// The result is applied even if the caller gave up waiting. Only a
	// session that expired or was replaced may drop it.
	ctx = context.WithoutCancel(ctx)
	pool, err := e.vocab.ListWords(ctx, sess.Profile)
	if err != nil {
		e.logger.Warn("list words after generation", zap.Error(err))
	}

	var out outcome
	_, err = e.sessions.Update(ctx, sess.UserID, sess.ID, func(s *session.Session) error {
		if s.State != want {
			return ErrSessionExpiredMidCall
		}
		out = outcome{}
		apply(s, pool, &out)
		return nil
	})
	if errors.Is(err, session.ErrNotFound) {
		return outcome{}, ErrSessionExpiredMidCall
	}
	if err != nil {
		return outcome{}, err
	}
	return out, nil
}

// stalled reports whether sess sits in a generating step with no call
// running for it, and returns the effects that restart the call.
func (e *Engine) stalled(sess *session.Session) (effects, bool) {
	if e.running(sess.ID) {
		return effects{}, false
	}
	switch sess.State {
	case stage.MustEnter(stage.WritingAnalysis):
		return effects{generate: genAnalysis, genWords: sess.Candidates, essay: sess.Scratch.Essay}, true
	case stage.MustEnter(stage.TextDrill):
		return effects{generate: genDrill, genWords: sess.Candidates}, true
	}
	return effects{}, false
}

// claim marks a generation call as running for id. It reports false if
// one already is.
func (e *Engine) claim(id uuid.UUID) bool {
	e.flightMu.Lock()
	defer e.flightMu.Unlock()
	if e.inFlight[id] {
		return false
	}
	e.inFlight[id] = true
	return true
}

func (e *Engine) release(id uuid.UUID) {
	e.flightMu.Lock()
	defer e.flightMu.Unlock()
	delete(e.inFlight, id)
}

func (e *Engine) running(id uuid.UUID) bool {
	e.flightMu.Lock()
	defer e.flightMu.Unlock()
	return e.inFlight[id]
}

// complete records the finished pass and removes the session.
func (e *Engine) complete(ctx context.Context, sess *session.Session) {
	if e.completions != nil {
		date := e.now().In(e.cfg.Location).Format(time.DateOnly)
		if err := e.completions.RecordCompletion(ctx, sess.UserID, date); err != nil {
			e.logger.Error("record completion", zap.String("user", sess.UserID), zap.Error(err))
		}
	}
	if _, err := e.sessions.Delete(ctx, sess.UserID, sess.ID); err != nil {
		e.logger.Warn("delete finished session", zap.String("user", sess.UserID), zap.Error(err))
	}
	e.logger.Info("session completed", zap.String("user", sess.UserID), zap.Stringer("session", sess.ID))
}

func (e *Engine) unavailable(err error) []Reply {
	e.logger.Error("smart repeat unavailable", zap.Error(err))
	return []Reply{{Kind: ReplyUnavailable, Text: "Something went wrong. Please try again in a moment."}}
}

func (e *Engine) now() time.Time {
	return e.sessions.Now()
}

// shuffle permutes n elements with the engine's source.
func (e *Engine) shuffle(n int, swap func(i, j int)) {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	e.rng.Shuffle(n, swap)
}
