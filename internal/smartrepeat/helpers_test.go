package smartrepeat

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/abhisek/smartrepeat/internal/generation"
	"github.com/abhisek/smartrepeat/internal/llm"
	"github.com/abhisek/smartrepeat/internal/session"
	"github.com/abhisek/smartrepeat/internal/stage"
	"github.com/abhisek/smartrepeat/internal/store"
	"github.com/abhisek/smartrepeat/internal/words"
)

const testUser = "u1"

// memVocab is an in-memory Vocabulary.
type memVocab struct {
	mu         sync.Mutex
	words      map[string][]words.Word
	increments map[string]int
	upserts    []string
	listErr    error
}

func newMemVocab(pool []words.Word) *memVocab {
	v := &memVocab{words: map[string][]words.Word{}, increments: map[string]int{}}
	for _, w := range pool {
		if w.Profile == "" {
			w.Profile = DefaultProfile
		}
		v.words[w.Profile] = append(v.words[w.Profile], w)
	}
	return v
}

func (v *memVocab) ListWords(_ context.Context, profile string) ([]words.Word, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.listErr != nil {
		return nil, v.listErr
	}
	return slices.Clone(v.words[profile]), nil
}

func (v *memVocab) IncrementCorrect(_ context.Context, w words.Word) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	list := v.words[w.Profile]
	for i := range list {
		if list[i].Key() == w.Key() {
			list[i].CorrectCount++
			v.increments[w.Key()]++
			return nil
		}
	}
	return fmt.Errorf("word %q: %w", w.Word, store.ErrNotFound)
}

func (v *memVocab) UpsertWord(_ context.Context, profile, word, translation string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.upserts = append(v.upserts, word)
	v.words[profile] = append(v.words[profile], words.Word{Profile: profile, Word: word, Translation: translation})
	return nil
}

func (v *memVocab) incrementsOf(key string) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.increments[key]
}

// fakeLedger records progress and completions and serves them back as
// profile snapshots.
type fakeLedger struct {
	mu          sync.Mutex
	inProgress  map[string]string
	profiles    map[string]string
	saved       []string
	completions []string
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{inProgress: map[string]string{}, profiles: map[string]string{}}
}

func (l *fakeLedger) SaveStage(_ context.Context, userID, profile, st string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inProgress[userID] = st
	l.profiles[userID] = profile
	l.saved = append(l.saved, st)
	return nil
}

func (l *fakeLedger) RecordCompletion(_ context.Context, userID, dateLocal string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.completions = append(l.completions, userID+"@"+dateLocal)
	l.inProgress[userID] = ""
	return nil
}

func (l *fakeLedger) LatestProfile(_ context.Context, userID string) (*store.Profile, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	name, ok := l.profiles[userID]
	if !ok {
		return nil, nil
	}
	return &store.Profile{UserID: userID, Name: name, InProgressStage: l.inProgress[userID]}, nil
}

func (l *fakeLedger) completionCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.completions)
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type harness struct {
	t      *testing.T
	engine *Engine
	store  *session.Store
	vocab  *memVocab
	ledger *fakeLedger
	mock   *llm.MockProvider
	clock  *fakeClock
}

type harnessOpt func(*Config, *Deps)

func withGenerator(wrap func(Generator) Generator) harnessOpt {
	return func(_ *Config, d *Deps) { d.Generator = wrap(d.Generator) }
}

func withConfig(fn func(*Config)) harnessOpt {
	return func(c *Config, _ *Deps) { fn(c) }
}

func newHarness(t *testing.T, pool []words.Word, opts ...harnessOpt) *harness {
	t.Helper()
	clock := &fakeClock{t: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
	st := session.NewStore(nil, clock.Now)
	t.Cleanup(st.Close)

	h := &harness{
		t:      t,
		store:  st,
		vocab:  newMemVocab(pool),
		ledger: newFakeLedger(),
		mock:   llm.NewMockProvider(),
		clock:  clock,
	}
	cfg := DefaultConfig()
	cfg.Location = time.UTC
	deps := Deps{
		Sessions:    st,
		Recovery:    session.NewRecovery(h.ledger, clock.Now, nil),
		Vocabulary:  h.vocab,
		Progress:    h.ledger,
		Completions: h.ledger,
		Generator:   generation.New(h.mock, generation.DefaultConfig(), nil),
		Rand:        rand.New(rand.NewPCG(1, 2)),
	}
	for _, o := range opts {
		o(&cfg, &deps)
	}
	h.engine = New(cfg, deps)
	return h
}

// session returns the live session, or nil.
func (h *harness) session() *session.Session {
	h.t.Helper()
	s, err := h.store.Get(context.Background(), testUser)
	if errors.Is(err, session.ErrNotFound) {
		return nil
	}
	if err != nil {
		h.t.Fatalf("Get: %v", err)
	}
	return s
}

func (h *harness) start() []Reply {
	return h.engine.Handle(context.Background(), Action{UserID: testUser, Kind: ActionStart})
}

// send answers the current prompt.
func (h *harness) send(kind ActionKind, choice int, text string) []Reply {
	h.t.Helper()
	s := h.session()
	if s == nil {
		h.t.Fatal("no live session")
	}
	return h.engine.Handle(context.Background(), Action{
		UserID: testUser,
		Kind:   kind,
		Token:  s.Token(),
		Choice: choice,
		Text:   text,
	})
}

// finish answers every prompt correctly until the pass is over.
func (h *harness) finish() []Reply {
	h.t.Helper()
	var last []Reply
	for range 200 {
		s := h.session()
		if s == nil {
			return last
		}
		switch s.State.Step() {
		case stage.StepAwaitingChoice:
			last = h.send(ActionAnswer, s.Scratch.Quiz[s.Cursor].Answer, "")
		case stage.StepAwaitingVerdict:
			last = h.send(ActionKnow, 0, "")
		case stage.StepAwaitingText:
			last = h.send(ActionSubmitText, 0, "Eu como pão com manteiga.")
		case stage.StepShowingAnalysis:
			last = h.send(ActionContinue, 0, "")
		case stage.StepAwaitingAnswer:
			q := s.Scratch.Drill.Questions[s.Cursor]
			last = h.send(ActionAnswer, q.Answer, "")
		case stage.StepAwaitingTriage:
			last = h.send(ActionAddWord, 0, "")
		default:
			h.t.Fatalf("stuck at %v", s.State)
		}
	}
	h.t.Fatal("pipeline did not finish")
	return nil
}

// advanceTo answers correctly until the session reaches st.
func (h *harness) advanceTo(st stage.Stage) *session.Session {
	h.t.Helper()
	for range 200 {
		s := h.session()
		if s == nil {
			h.t.Fatalf("session ended before %v", st)
		}
		if s.State.Stage() == st {
			return s
		}
		switch s.State.Step() {
		case stage.StepAwaitingChoice:
			h.send(ActionAnswer, s.Scratch.Quiz[s.Cursor].Answer, "")
		case stage.StepAwaitingVerdict:
			h.send(ActionKnow, 0, "")
		case stage.StepAwaitingText:
			h.send(ActionSubmitText, 0, "Eu como pão com manteiga.")
		case stage.StepShowingAnalysis:
			h.send(ActionContinue, 0, "")
		case stage.StepAwaitingAnswer:
			h.send(ActionAnswer, s.Scratch.Drill.Questions[s.Cursor].Answer, "")
		case stage.StepAwaitingTriage:
			h.send(ActionSkipWord, 0, "")
		default:
			h.t.Fatalf("stuck at %v", s.State)
		}
	}
	h.t.Fatalf("never reached %v", st)
	return nil
}

func makePool(n int) []words.Word {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	pool := make([]words.Word, n)
	for i := range pool {
		pool[i] = words.Word{
			ID:          int64(i + 1),
			Profile:     DefaultProfile,
			Word:        fmt.Sprintf("w%02d", i),
			Translation: fmt.Sprintf("t%02d", i),
			CreatedAt:   base,
			UpdatedAt:   base.Add(time.Duration(i) * time.Minute),
		}
	}
	return pool
}

func fruitPool() []words.Word {
	return []words.Word{
		{Profile: DefaultProfile, Word: "apple", Translation: "maçã"},
		{Profile: DefaultProfile, Word: "bread", Translation: "pão"},
		{Profile: DefaultProfile, Word: "milk", Translation: "leite"},
	}
}

func kinds(rs []Reply) []ReplyKind {
	out := make([]ReplyKind, len(rs))
	for i, r := range rs {
		out[i] = r.Kind
	}
	return out
}

func hasKind(rs []Reply, k ReplyKind) bool {
	return slices.Contains(kinds(rs), k)
}

// recordingGen remembers the words every text drill was asked for.
type recordingGen struct {
	Generator
	mu     sync.Mutex
	drills [][]words.Word
}

func (r *recordingGen) TextDrill(ctx context.Context, ws []words.Word) (generation.Result[generation.TextDrill], error) {
	r.mu.Lock()
	r.drills = append(r.drills, slices.Clone(ws))
	r.mu.Unlock()
	return r.Generator.TextDrill(ctx, ws)
}

// blockingGen holds writing analyses until released.
type blockingGen struct {
	Generator
	started chan struct{}
	release chan struct{}
}

func (b *blockingGen) WritingAnalysis(ctx context.Context, task []words.Word, essay string) (generation.Result[generation.WritingAnalysis], error) {
	b.started <- struct{}{}
	<-b.release
	return b.Generator.WritingAnalysis(ctx, task, essay)
}

// cancellingGen cancels the action's context while a writing analysis is
// being generated, as a caller that gives up waiting would.
type cancellingGen struct {
	Generator
	cancel context.CancelFunc
}

func (c *cancellingGen) WritingAnalysis(ctx context.Context, task []words.Word, essay string) (generation.Result[generation.WritingAnalysis], error) {
	c.cancel()
	return c.Generator.WritingAnalysis(ctx, task, essay)
}
