package smartrepeat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/abhisek/smartrepeat/internal/llm"
	"github.com/abhisek/smartrepeat/internal/session"
	"github.com/abhisek/smartrepeat/internal/stage"
	"github.com/abhisek/smartrepeat/internal/words"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	analysisJSON = `{"score":80,"feedback":"Good work.","corrections":[{"original":"Eu como pao","corrected":"Eu como pão","explanation":"Accent."}],"improved_text":"Eu como pão com manteiga."}`
	drillJSON    = `{"title":"No mercado","text":"Ana compra pão e leite.","questions":[{"question":"O que Ana compra?","options":["Pão","Carro"],"answer":0}],"bonus_vocabulary":[{"word":"mercado","translation":"market"},{"word":"Apple","translation":"maçã"}]}`
)

func smallStages(c *Config) {
	c.QuizSize = 3
	c.KnowSize = 3
	c.WritingWords = 2
	c.TextDrillFloor = 3
}

func TestStart_EmptyVocabulary(t *testing.T) {
	h := newHarness(t, nil)

	replies := h.start()
	require.Len(t, replies, 1)
	assert.Equal(t, ReplyNoWords, replies[0].Kind)
	assert.Nil(t, h.session())
}

func TestStart_VocabularyUnavailable(t *testing.T) {
	h := newHarness(t, fruitPool())
	h.vocab.listErr = errors.New("database is locked")

	replies := h.start()
	require.Len(t, replies, 1)
	assert.Equal(t, ReplyUnavailable, replies[0].Kind)
	assert.Nil(t, h.session())
}

func TestStart_OpensQuiz(t *testing.T) {
	h := newHarness(t, fruitPool())

	replies := h.start()
	require.Equal(t, []ReplyKind{ReplyInfo, ReplyPrompt}, kinds(replies))

	s := h.session()
	require.NotNil(t, s)
	assert.Equal(t, stage.Quiz, s.State.Stage())
	assert.Equal(t, stage.StepAwaitingChoice, s.State.Step())
	assert.Len(t, s.Candidates, 3)
	assert.Equal(t, s.Token(), replies[1].Token)
	assert.Len(t, replies[1].Options, 3)
	assert.True(t, replies[1].Accepting(ActionAnswer))
	assert.Equal(t, []string{stage.Quiz.String()}, h.ledger.saved)
}

func TestStart_QuizNeedsTwoTranslations(t *testing.T) {
	tests := []struct {
		name string
		pool []words.Word
	}{
		{name: "single word", pool: []words.Word{{Word: "casa", Translation: "house"}}},
		{name: "shared translation", pool: []words.Word{
			{Word: "casa", Translation: "house"},
			{Word: "lar", Translation: " House"},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.pool)

			replies := h.start()
			require.True(t, hasKind(replies, ReplyPrompt))

			s := h.session()
			require.NotNil(t, s)
			assert.Equal(t, stage.KnowDontKnow, s.State.Stage())
			assert.Equal(t, 1, s.Stats.StagesSkipped)
		})
	}
}

func TestStart_QuizItemsAlwaysHaveADistractor(t *testing.T) {
	h := newHarness(t, []words.Word{
		{Word: "casa", Translation: "house"},
		{Word: "gato", Translation: "cat"},
	})
	h.start()

	s := h.session()
	require.NotNil(t, s)
	require.Equal(t, stage.Quiz, s.State.Stage())
	for i, item := range s.Scratch.Quiz {
		assert.Len(t, item.Options, 2, "item %d", i)
		assert.Equal(t, s.Candidates[i].Translation, item.Options[item.Answer])
	}
}

func TestStart_ResendsRunningSession(t *testing.T) {
	h := newHarness(t, fruitPool())
	h.start()
	first := h.session()

	replies := h.start()
	require.Equal(t, []ReplyKind{ReplyInfo, ReplyPrompt}, kinds(replies))
	assert.Equal(t, first.Token(), replies[1].Token)

	n, err := h.store.Len(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, first.ID, h.session().ID)
}

func TestRestart_ReplacesSession(t *testing.T) {
	h := newHarness(t, fruitPool())
	h.start()
	h.send(ActionAnswer, 0, "")
	old := h.session()
	require.Equal(t, 1, old.Cursor)

	replies := h.engine.Handle(context.Background(), Action{UserID: testUser, Kind: ActionRestart})
	assert.True(t, hasKind(replies, ReplyPrompt))

	s := h.session()
	assert.NotEqual(t, old.ID, s.ID)
	assert.Equal(t, stage.Quiz, s.State.Stage())
	assert.Equal(t, 0, s.Cursor)
}

func TestHandle_MissingUser(t *testing.T) {
	h := newHarness(t, fruitPool())
	replies := h.engine.Handle(context.Background(), Action{UserID: "  ", Kind: ActionStart})
	require.Len(t, replies, 1)
	assert.Equal(t, ReplyInvalid, replies[0].Kind)
}

func TestAct_WithoutSession(t *testing.T) {
	h := newHarness(t, fruitPool())
	replies := h.engine.Handle(context.Background(), Action{UserID: testUser, Kind: ActionAnswer, Token: "x"})
	require.Len(t, replies, 1)
	assert.Equal(t, ReplyRestartRequired, replies[0].Kind)
}

func TestAct_StaleToken(t *testing.T) {
	h := newHarness(t, fruitPool())
	h.start()
	old := h.session().Token()
	h.send(ActionAnswer, 0, "")

	replies := h.engine.Handle(context.Background(), Action{UserID: testUser, Kind: ActionAnswer, Token: old})
	require.Len(t, replies, 1)
	assert.Equal(t, ReplyStale, replies[0].Kind)

	s := h.session()
	assert.Equal(t, 1, s.Cursor)
	assert.Equal(t, 1, s.Stats.QuizCorrect+s.Stats.QuizWrong)
}

func TestAct_ConcurrentSameToken(t *testing.T) {
	h := newHarness(t, makePool(10), withConfig(func(c *Config) { c.QuizSize = 5 }))
	h.start()
	tok := h.session().Token()

	const n = 16
	results := make([][]Reply, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = h.engine.Handle(context.Background(), Action{UserID: testUser, Kind: ActionAnswer, Token: tok})
		}()
	}
	wg.Wait()

	stale := 0
	for _, rs := range results {
		if hasKind(rs, ReplyStale) {
			stale++
		}
	}
	assert.Equal(t, n-1, stale)

	s := h.session()
	assert.Equal(t, 1, s.Cursor)
	assert.Equal(t, 1, s.Stats.QuizCorrect+s.Stats.QuizWrong)
}

func TestAct_InvalidActions(t *testing.T) {
	h := newHarness(t, fruitPool(), withConfig(smallStages))
	h.start()
	before := h.session()

	for _, a := range []struct {
		kind   ActionKind
		choice int
	}{
		{ActionKnow, 0},
		{ActionContinue, 0},
		{ActionAnswer, 99},
		{ActionAnswer, -1},
	} {
		replies := h.send(a.kind, a.choice, "")
		require.Len(t, replies, 1, a.kind.String())
		assert.Equal(t, ReplyInvalid, replies[0].Kind, a.kind.String())
		assert.Equal(t, before.Token(), replies[0].Token)
	}
	assert.Equal(t, before.State, h.session().State)
	assert.Equal(t, 0, h.session().Cursor)

	h.advanceTo(stage.WritingTask)
	replies := h.send(ActionSubmitText, 0, "   ")
	require.Len(t, replies, 1)
	assert.Equal(t, ReplyInvalid, replies[0].Kind)
	assert.Equal(t, stage.WritingTask, h.session().State.Stage())
}

// A word missed in both the quiz and know/don't-know stages is recorded once,
// tagged with the quiz.
func TestPipeline_DifficultWordRecordedOnce(t *testing.T) {
	rec := &recordingGen{}
	h := newHarness(t, fruitPool(), withConfig(smallStages), withGenerator(func(g Generator) Generator {
		rec.Generator = g
		return rec
	}))
	h.start()

	for range 3 {
		s := h.session()
		require.Equal(t, stage.Quiz, s.State.Stage())
		w, _ := s.Current()
		item := s.Scratch.Quiz[s.Cursor]
		choice := item.Answer
		if w.Word == "apple" {
			choice = (item.Answer + 1) % len(item.Options)
		}
		h.send(ActionAnswer, choice, "")
	}
	for range 3 {
		s := h.session()
		require.Equal(t, stage.KnowDontKnow, s.State.Stage())
		w, _ := s.Current()
		kind := ActionKnow
		if w.Word == "apple" {
			kind = ActionDontKnow
		}
		h.send(kind, 0, "")
	}

	s := h.session()
	require.Equal(t, stage.WritingTask, s.State.Stage())
	entries := s.Difficult.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "apple", entries[0].Word.Word)
	assert.Equal(t, stage.Quiz, entries[0].Source)
	assert.Equal(t, 1, s.Stats.QuizWrong)
	assert.Equal(t, 1, s.Stats.Unknown)

	assert.Equal(t, 0, h.vocab.incrementsOf("apple"))
	assert.Equal(t, 2, h.vocab.incrementsOf("bread"))
	assert.Equal(t, 2, h.vocab.incrementsOf("milk"))

	h.advanceTo(stage.TextDrill)
	require.Len(t, rec.drills, 1)
	keys := words.Keys(rec.drills[0])
	assert.Len(t, keys, 3)
	assert.Equal(t, "apple", keys[0])
}

// Three difficult words in a fifty-word pool are topped up to the drill floor.
func TestPipeline_DrillBackfillsToFloor(t *testing.T) {
	rec := &recordingGen{}
	h := newHarness(t, makePool(50), withGenerator(func(g Generator) Generator {
		rec.Generator = g
		return rec
	}), withConfig(func(c *Config) {
		c.QuizSize = 3
		c.KnowSize = 3
		c.WritingWords = 2
		c.TextDrillFloor = 10
	}))
	h.start()

	for range 3 {
		item := h.session().Scratch.Quiz[h.session().Cursor]
		h.send(ActionAnswer, (item.Answer+1)%len(item.Options), "")
	}
	s := h.advanceTo(stage.TextDrill)
	assert.Equal(t, 3, s.Difficult.Len())

	require.Len(t, rec.drills, 1)
	keys := words.Keys(rec.drills[0])
	assert.Equal(t, []string{"w00", "w01", "w02", "w03", "w04", "w05", "w06", "w07", "w08", "w09"}, keys)

	assert.Equal(t, stage.StepAwaitingAnswer, s.State.Step())
	require.NotNil(t, s.Scratch.Drill)
	assert.NotEmpty(t, s.Scratch.Drill.Questions)
}

// An empty generation response still yields usable stages and the pass
// finishes.
func TestPipeline_EmptyGenerationAdvances(t *testing.T) {
	h := newHarness(t, fruitPool(), withConfig(smallStages))
	h.mock.AddResponse(llm.MockResponse{Text: ""})
	h.mock.AddResponse(llm.MockResponse{Text: ""})
	h.start()
	h.advanceTo(stage.WritingTask)

	replies := h.send(ActionSubmitText, 0, "Eu como pão.")
	require.Equal(t, []ReplyKind{ReplyInfo, ReplyPrompt}, kinds(replies))
	assert.Equal(t, stage.WritingAnalysis, replies[1].Stage)
	assert.True(t, replies[1].Accepting(ActionContinue))

	replies = h.send(ActionContinue, 0, "")
	require.True(t, hasKind(replies, ReplyPrompt))
	last := replies[len(replies)-1]
	assert.Equal(t, stage.TextDrill, last.Stage)
	assert.True(t, last.Accepting(ActionAnswer))

	done := h.finish()
	assert.True(t, hasKind(done, ReplyDone))
	assert.Equal(t, 1, h.ledger.completionCount())
	assert.Equal(t, 2, h.mock.CallCount())
}

func TestPipeline_FallbackAnalysisHidesScore(t *testing.T) {
	h := newHarness(t, fruitPool(), withConfig(smallStages))
	h.start()
	h.advanceTo(stage.WritingTask)

	replies := h.send(ActionSubmitText, 0, "Eu como pão.")
	require.True(t, hasKind(replies, ReplyPrompt))
	analysis := replies[len(replies)-1]
	assert.Equal(t, stage.WritingAnalysis, analysis.Stage)
	assert.NotContains(t, analysis.Text, "Score:")

	s := h.session()
	require.NotNil(t, s)
	assert.False(t, s.Stats.WritingScored)

	done := h.finish()
	require.NotEmpty(t, done)
	last := done[len(done)-1]
	require.Equal(t, ReplyDone, last.Kind)
	assert.NotContains(t, last.Text, "Writing score")
}

func TestPipeline_CompletesOnce(t *testing.T) {
	h := newHarness(t, fruitPool())
	h.start()

	replies := h.finish()
	require.NotEmpty(t, replies)
	done := replies[len(replies)-1]
	assert.Equal(t, ReplyDone, done.Kind)
	assert.Contains(t, done.Text, "Quiz: 3 correct, 0 wrong")

	assert.Nil(t, h.session())
	assert.Equal(t, []string{testUser + "@2025-03-10"}, h.ledger.completions)

	p, err := h.ledger.LatestProfile(context.Background(), testUser)
	require.NoError(t, err)
	assert.Empty(t, p.InProgressStage)

	// The finished pass can no longer be acted on.
	again := h.engine.Handle(context.Background(), Action{UserID: testUser, Kind: ActionAnswer, Token: "x"})
	require.Len(t, again, 1)
	assert.Equal(t, ReplyRestartRequired, again[0].Kind)
	assert.Equal(t, 1, h.ledger.completionCount())
}

func TestPipeline_CompletionDateUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC-10", -10*60*60)
	h := newHarness(t, fruitPool(), withConfig(func(c *Config) { c.Location = loc }))
	h.start()
	h.finish()

	// 09:00 UTC is still the previous day ten hours west.
	assert.Equal(t, []string{testUser + "@2025-03-09"}, h.ledger.completions)
}

func TestPipeline_ConsolidationAddsNewWords(t *testing.T) {
	h := newHarness(t, fruitPool(), withConfig(smallStages))
	h.mock.AddResponse(llm.MockResponse{Text: analysisJSON})
	h.mock.AddResponse(llm.MockResponse{Text: drillJSON})
	h.start()

	s := h.advanceTo(stage.VocabConsolidation)
	assert.Equal(t, 80, s.Stats.WritingScore)
	require.Len(t, s.Scratch.Bonus, 1)
	assert.Equal(t, "mercado", s.Scratch.Bonus[0].Word)

	replies := h.finish()
	done := replies[len(replies)-1]
	require.Equal(t, ReplyDone, done.Kind)
	assert.Contains(t, done.Text, "Writing score: 80/100")
	assert.Contains(t, done.Text, "New words added: 1")
	assert.Equal(t, []string{"mercado"}, h.vocab.upserts)
}

func TestRecovery_ResumesOnAction(t *testing.T) {
	h := newHarness(t, makePool(12))
	require.NoError(t, h.ledger.SaveStage(context.Background(), testUser, DefaultProfile, stage.VocabConsolidation.String()))

	replies := h.engine.Handle(context.Background(), Action{UserID: testUser, Kind: ActionAnswer, Token: "lost"})
	require.NotEmpty(t, replies)
	assert.Equal(t, ReplyInfo, replies[0].Kind)
	assert.True(t, strings.HasPrefix(replies[0].Text, "Picking up"))

	s := h.session()
	require.NotNil(t, s)
	assert.True(t, s.Recovered)
	assert.Equal(t, stage.TextDrill, s.State.Stage())
	assert.Equal(t, stage.StepAwaitingAnswer, s.State.Step())
	assert.Len(t, s.Candidates, 10)
}

func TestRecovery_NonResumableStageRestarts(t *testing.T) {
	h := newHarness(t, makePool(12))
	require.NoError(t, h.ledger.SaveStage(context.Background(), testUser, DefaultProfile, stage.Done.String()))

	replies := h.engine.Handle(context.Background(), Action{UserID: testUser, Kind: ActionAnswer, Token: "lost"})
	require.Len(t, replies, 1)
	assert.Equal(t, ReplyRestartRequired, replies[0].Kind)
	assert.Nil(t, h.session())
}

func TestGeneration_SessionExpiresMidCall(t *testing.T) {
	bg := &blockingGen{started: make(chan struct{}, 1), release: make(chan struct{})}
	h := newHarness(t, fruitPool(), withConfig(smallStages), withGenerator(func(g Generator) Generator {
		bg.Generator = g
		return bg
	}))
	h.start()
	tok := h.advanceTo(stage.WritingTask).Token()

	done := make(chan []Reply, 1)
	go func() {
		done <- h.engine.Handle(context.Background(), Action{UserID: testUser, Kind: ActionSubmitText, Token: tok, Text: "Eu como pão."})
	}()
	<-bg.started

	h.clock.Advance(3 * time.Hour)
	expired, err := session.NewMonitor(h.store, session.DefaultPolicy(), time.Minute, nil).SweepOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, stage.WritingAnalysis, expired[0].Stage)

	close(bg.release)
	replies := <-done
	assert.False(t, hasKind(replies, ReplyPrompt))
	assert.Nil(t, h.session())
	assert.Zero(t, h.ledger.completionCount())
}

func TestGeneration_ResultForReplacedSessionDiscarded(t *testing.T) {
	bg := &blockingGen{started: make(chan struct{}, 1), release: make(chan struct{})}
	h := newHarness(t, fruitPool(), withConfig(smallStages), withGenerator(func(g Generator) Generator {
		bg.Generator = g
		return bg
	}))
	h.start()
	tok := h.advanceTo(stage.WritingTask).Token()

	done := make(chan []Reply, 1)
	go func() {
		done <- h.engine.Handle(context.Background(), Action{UserID: testUser, Kind: ActionSubmitText, Token: tok, Text: "Eu como pão."})
	}()
	<-bg.started

	h.engine.Handle(context.Background(), Action{UserID: testUser, Kind: ActionRestart})
	fresh := h.session()
	require.Equal(t, stage.Quiz, fresh.State.Stage())

	close(bg.release)
	replies := <-done
	assert.False(t, hasKind(replies, ReplyPrompt))

	s := h.session()
	assert.Equal(t, fresh.ID, s.ID)
	assert.Equal(t, fresh.State, s.State)
	assert.Nil(t, s.Scratch.Analysis)
}

func TestGeneration_AppliedAfterCallerGivesUp(t *testing.T) {
	cg := &cancellingGen{}
	h := newHarness(t, fruitPool(), withConfig(smallStages), withGenerator(func(g Generator) Generator {
		cg.Generator = g
		return cg
	}))
	h.mock.AddResponse(llm.MockResponse{Text: analysisJSON})
	h.start()
	tok := h.advanceTo(stage.WritingTask).Token()

	for range 20 {
		ctx, cancel := context.WithCancel(context.Background())
		cg.cancel = cancel
		h.engine.Handle(ctx, Action{UserID: testUser, Kind: ActionSubmitText, Token: tok, Text: "Eu como pão."})
		cancel()

		s := h.session()
		require.NotNil(t, s)
		require.Equal(t, stage.WritingAnalysis, s.State.Stage())
		require.Equal(t, stage.StepShowingAnalysis, s.State.Step())
		require.NotNil(t, s.Scratch.Analysis)

		// Put the session back at the writing task for the next round.
		_, err := h.store.Update(context.Background(), testUser, s.ID, func(s *session.Session) error {
			s.State = stage.MustEnter(stage.WritingTask)
			s.Scratch.Release()
			return nil
		})
		require.NoError(t, err)
		tok = h.session().Token()
	}
}

// park leaves the live session in the entry state of st as if its
// generation call had been lost.
func park(t *testing.T, h *harness, st stage.Stage) {
	t.Helper()
	s := h.session()
	require.NotNil(t, s)
	_, err := h.store.Update(context.Background(), testUser, s.ID, func(s *session.Session) error {
		s.State = stage.MustEnter(st)
		s.Cursor = 0
		s.Scratch.Release()
		if st == stage.WritingAnalysis {
			s.Scratch.Essay = "Eu como pão."
		}
		return nil
	})
	require.NoError(t, err)
}

func TestGeneration_LostCallReissued(t *testing.T) {
	tests := []struct {
		name  string
		stage stage.Stage
		send  func(h *harness) []Reply
		want  stage.Step
	}{
		{name: "analysis on start", stage: stage.WritingAnalysis, send: (*harness).start, want: stage.StepShowingAnalysis},
		{name: "drill on start", stage: stage.TextDrill, send: (*harness).start, want: stage.StepAwaitingAnswer},
		{
			name:  "analysis on action",
			stage: stage.WritingAnalysis,
			send:  func(h *harness) []Reply { return h.send(ActionContinue, 0, "") },
			want:  stage.StepShowingAnalysis,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, fruitPool(), withConfig(smallStages))
			h.start()
			h.advanceTo(stage.WritingTask)
			park(t, h, tt.stage)
			calls := h.mock.CallCount()

			replies := tt.send(h)
			require.True(t, hasKind(replies, ReplyPrompt), "replies: %v", kinds(replies))

			s := h.session()
			require.NotNil(t, s)
			assert.Equal(t, tt.stage, s.State.Stage())
			assert.Equal(t, tt.want, s.State.Step())
			assert.Equal(t, calls+1, h.mock.CallCount())
		})
	}
}

func TestGeneration_RunningCallNotReissued(t *testing.T) {
	bg := &blockingGen{started: make(chan struct{}, 1), release: make(chan struct{})}
	h := newHarness(t, fruitPool(), withConfig(smallStages), withGenerator(func(g Generator) Generator {
		bg.Generator = g
		return bg
	}))
	h.start()
	tok := h.advanceTo(stage.WritingTask).Token()

	done := make(chan []Reply, 1)
	go func() {
		done <- h.engine.Handle(context.Background(), Action{UserID: testUser, Kind: ActionSubmitText, Token: tok, Text: "Eu como pão."})
	}()
	<-bg.started

	replies := h.start()
	require.NotEmpty(t, replies)
	assert.Equal(t, "Still preparing, one moment...", replies[len(replies)-1].Text)
	select {
	case <-bg.started:
		t.Fatal("a second analysis was started")
	default:
	}

	close(bg.release)
	<-done
	assert.Equal(t, stage.StepShowingAnalysis, h.session().State.Step())
}
