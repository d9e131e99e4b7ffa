package smartrepeat

import (
	"strings"

	"github.com/abhisek/smartrepeat/internal/generation"
	"github.com/abhisek/smartrepeat/internal/session"
	"github.com/abhisek/smartrepeat/internal/stage"
	"github.com/abhisek/smartrepeat/internal/words"
	"go.uber.org/zap"
)

type genKind int

const (
	genNone genKind = iota
	genAnalysis
	genDrill
)

// effects are the side effects of one transition. They run after the store
// has accepted the transition, never on the store's goroutine.
type effects struct {
	increment []words.Word
	upsert    []generation.BonusWord
	saveStage stage.Stage

	generate genKind
	genWords []words.Word
	essay    string

	complete bool
}

// outcome is what a transition produced: replies to show and effects to run.
type outcome struct {
	replies []Reply
	fx      effects
}

func (o *outcome) reply(r Reply) {
	o.replies = append(o.replies, r)
}

// The functions below run inside Store.Update and must stay free of I/O.

// enter moves s into st and prepares it. A stage with nothing to do is
// skipped, so entering always ends at a stage waiting on the user, at a
// pending generation call, or at Done.
func (e *Engine) enter(s *session.Session, st stage.Stage, pool []words.Word, out *outcome) {
	for {
		s.State = stage.MustEnter(st)
		s.Cursor = 0
		out.fx.saveStage = st
		if st == stage.Done {
			out.fx.saveStage = 0
		}
		if e.prepare(s, pool, out) {
			return
		}
		e.logger.Debug("stage skipped", zap.String("user", s.UserID), zap.Stringer("stage", st))
		s.Stats.StagesSkipped++
		s.Scratch.Release()
		s.Candidates = nil
		next, ok := st.Next()
		if !ok {
			return
		}
		st = next
	}
}

// leave closes the current stage. Misses of the quiz and know/don't-know
// stages go into the difficult set here, tagged with the stage.
func (e *Engine) leave(s *session.Session) {
	switch st := s.State.Stage(); st {
	case stage.Quiz, stage.KnowDontKnow:
		s.Difficult.RecordAll(s.Wrong, st)
	}
	s.Wrong = nil
	s.Candidates = nil
	s.Cursor = 0
	s.Scratch.Release()
}

// advance leaves the current stage and enters the following one.
func (e *Engine) advance(s *session.Session, pool []words.Word, out *outcome) {
	next, ok := s.State.Stage().Next()
	if !ok {
		return
	}
	e.leave(s)
	e.enter(s, next, pool, out)
}

// prepare runs the entry action of the current stage. It reports false if
// the stage has nothing to do.
func (e *Engine) prepare(s *session.Session, pool []words.Word, out *outcome) bool {
	switch st := s.State.Stage(); st {
	case stage.Quiz:
		translated := make([]words.Word, 0, len(pool))
		distinct := map[string]bool{}
		for _, w := range pool {
			if k := words.NormalizeKey(w.Translation); k != "" {
				translated = append(translated, w)
				distinct[k] = true
			}
		}
		// Every item needs at least one wrong option.
		if len(distinct) < 2 {
			return false
		}
		s.Candidates = e.pick(s, st, translated, e.cfg.QuizSize)
		if len(s.Candidates) == 0 {
			return false
		}
		s.Scratch.Quiz = make([]session.QuizItem, len(s.Candidates))
		for i, w := range s.Candidates {
			s.Scratch.Quiz[i] = e.quizItem(w, translated)
		}
		out.reply(info(st, "Quiz: pick the right translation."))
		out.reply(prompt(s))
		return true

	case stage.KnowDontKnow:
		s.Candidates = e.pick(s, st, pool, e.cfg.KnowSize)
		if len(s.Candidates) == 0 {
			return false
		}
		out.reply(info(st, "Do you know these words?"))
		out.reply(prompt(s))
		return true

	case stage.WritingTask:
		s.Candidates = e.pick(s, st, pool, e.cfg.WritingWords)
		if len(s.Candidates) == 0 {
			return false
		}
		out.reply(prompt(s))
		return true

	case stage.WritingAnalysis:
		// Only reached without a submitted text, when the writing task was
		// skipped.
		return false

	case stage.TextDrill:
		s.Candidates = e.drillWords(s, pool)
		if len(s.Candidates) == 0 {
			return false
		}
		out.fx.generate = genDrill
		out.fx.genWords = s.Candidates
		out.reply(info(st, "Writing a short text with your words..."))
		return true

	case stage.VocabConsolidation:
		known := words.KeySet(pool)
		var bonus []generation.BonusWord
		for _, b := range s.Scratch.Bonus {
			if len(bonus) == e.cfg.ConsolidationMax {
				break
			}
			if k := words.NormalizeKey(b.Word); k != "" && !known[k] {
				known[k] = true
				bonus = append(bonus, b)
			}
		}
		s.Scratch.Bonus = bonus
		if len(bonus) == 0 {
			return false
		}
		s.Candidates = make([]words.Word, len(bonus))
		for i, b := range bonus {
			s.Candidates[i] = words.Word{Profile: s.Profile, Word: b.Word, Translation: b.Translation}
		}
		out.reply(info(st, "New words from the text. Add them to your vocabulary?"))
		out.reply(prompt(s))
		return true

	case stage.Done:
		s.Difficult.Reset()
		out.fx.complete = true
		out.reply(summary(s))
		return true
	}
	return false
}

// pick selects up to n words by priority, logging a short pool.
func (e *Engine) pick(s *session.Session, st stage.Stage, pool []words.Word, n int) []words.Word {
	got := e.selector.Select(pool, n, nil)
	if len(got) < n {
		e.logger.Debug("short selection",
			zap.String("user", s.UserID),
			zap.Stringer("stage", st),
			zap.Int("want", n),
			zap.Int("got", len(got)),
			zap.Error(ErrPoolExhausted),
		)
	}
	return got
}

// drillWords is where the two difficult-word sources meet: the misses of
// the quiz and the know/don't-know stages come first, topped up by
// priority to the floor. Without misses it is a plain priority selection.
func (e *Engine) drillWords(s *session.Session, pool []words.Word) []words.Word {
	difficult := s.Difficult.All()
	if len(difficult) == 0 {
		return e.pick(s, stage.TextDrill, pool, e.cfg.TextDrillFloor)
	}
	n := max(e.cfg.TextDrillFloor, len(difficult))
	got := e.selector.Backfill(difficult, pool, n)
	if len(got) < n {
		e.logger.Debug("short drill selection", zap.String("user", s.UserID), zap.Int("got", len(got)), zap.Error(ErrPoolExhausted))
	}
	return got
}

// quizItem builds the options for w: its translation and distractors
// drawn from other translations in pool.
func (e *Engine) quizItem(w words.Word, pool []words.Word) session.QuizItem {
	correct := strings.TrimSpace(w.Translation)
	opts := []string{correct}
	seen := map[string]bool{words.NormalizeKey(correct): true}

	idx := make([]int, len(pool))
	for i := range idx {
		idx[i] = i
	}
	e.shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
	for _, i := range idx {
		if len(opts) == e.cfg.QuizOptions {
			break
		}
		t := strings.TrimSpace(pool[i].Translation)
		if k := words.NormalizeKey(t); k != "" && !seen[k] {
			seen[k] = true
			opts = append(opts, t)
		}
	}

	e.shuffle(len(opts), func(i, j int) { opts[i], opts[j] = opts[j], opts[i] })
	answer := 0
	for i, o := range opts {
		if o == correct {
			answer = i
			break
		}
	}
	return session.QuizItem{Options: opts, Answer: answer}
}

// step applies a token-checked action to s.
func (e *Engine) step(s *session.Session, a Action, pool []words.Word, out *outcome) error {
	st, sp := s.State.Stage(), s.State.Step()
	switch {
	case st == stage.Quiz && sp == stage.StepAwaitingChoice && a.Kind == ActionAnswer:
		w, ok := s.Current()
		if !ok || s.Cursor >= len(s.Scratch.Quiz) {
			return errInvalidAction
		}
		item := s.Scratch.Quiz[s.Cursor]
		if a.Choice < 0 || a.Choice >= len(item.Options) {
			return errInvalidAction
		}
		if a.Choice == item.Answer {
			s.Stats.QuizCorrect++
			out.fx.increment = append(out.fx.increment, w)
			out.reply(feedback(st, true, w))
		} else {
			s.Stats.QuizWrong++
			s.Wrong = append(s.Wrong, w)
			out.reply(feedback(st, false, w))
		}
		return e.next(s, stage.StepAwaitingChoice, pool, out)

	case st == stage.KnowDontKnow && sp == stage.StepAwaitingVerdict && (a.Kind == ActionKnow || a.Kind == ActionDontKnow):
		w, ok := s.Current()
		if !ok {
			return errInvalidAction
		}
		if a.Kind == ActionKnow {
			s.Stats.Known++
			out.fx.increment = append(out.fx.increment, w)
		} else {
			s.Stats.Unknown++
			s.Wrong = append(s.Wrong, w)
			out.reply(feedback(st, false, w))
		}
		return e.next(s, stage.StepAwaitingVerdict, pool, out)

	case st == stage.WritingTask && sp == stage.StepAwaitingText && a.Kind == ActionSubmitText:
		essay := strings.TrimSpace(a.Text)
		if essay == "" {
			return errInvalidAction
		}
		task := s.Candidates
		e.leave(s)
		s.State = stage.MustEnter(stage.WritingAnalysis)
		s.Candidates = task
		s.Scratch.Essay = essay
		s.Stats.Written = true
		out.fx.saveStage = stage.WritingAnalysis
		out.fx.generate = genAnalysis
		out.fx.genWords = task
		out.fx.essay = essay
		out.reply(info(stage.WritingAnalysis, "Checking your text..."))
		return nil

	case st == stage.WritingAnalysis && sp == stage.StepShowingAnalysis && a.Kind == ActionContinue:
		e.advance(s, pool, out)
		return nil

	case st == stage.TextDrill && sp == stage.StepAwaitingAnswer && a.Kind == ActionAnswer:
		d := s.Scratch.Drill
		if d == nil || s.Cursor >= len(d.Questions) {
			return errInvalidAction
		}
		q := d.Questions[s.Cursor]
		if a.Choice < 0 || a.Choice >= len(q.Options) {
			return errInvalidAction
		}
		if a.Choice == q.Answer {
			s.Stats.DrillCorrect++
			out.reply(Reply{Kind: ReplyFeedback, Stage: st, Text: "Correct!"})
		} else {
			s.Stats.DrillWrong++
			out.reply(Reply{Kind: ReplyFeedback, Stage: st, Text: "Not quite. The answer is: " + q.Options[q.Answer]})
		}
		s.Cursor++
		if s.Cursor < len(d.Questions) {
			out.reply(prompt(s))
			return nil
		}
		bonus := d.BonusVocabulary
		e.leave(s)
		s.Scratch.Bonus = bonus
		e.enter(s, stage.VocabConsolidation, pool, out)
		return nil

	case st == stage.VocabConsolidation && sp == stage.StepAwaitingTriage && (a.Kind == ActionAddWord || a.Kind == ActionSkipWord):
		if s.Cursor >= len(s.Scratch.Bonus) {
			return errInvalidAction
		}
		b := s.Scratch.Bonus[s.Cursor]
		if a.Kind == ActionAddWord {
			s.Stats.WordsAdded++
			out.fx.upsert = append(out.fx.upsert, b)
			out.reply(Reply{Kind: ReplyFeedback, Stage: st, Text: "Added " + b.Word + "."})
		}
		return e.next(s, stage.StepAwaitingTriage, pool, out)
	}
	return errInvalidAction
}

// next moves the cursor on within a word-by-word stage and advances the
// stage once every candidate has been handled.
func (e *Engine) next(s *session.Session, self stage.Step, pool []words.Word, out *outcome) error {
	s.Cursor++
	if s.Cursor < len(s.Candidates) {
		state, err := s.State.Advance(self)
		if err != nil {
			return err
		}
		s.State = state
		out.reply(prompt(s))
		return nil
	}
	e.advance(s, pool, out)
	return nil
}

// applyAnalysis stores a finished writing analysis. Without a payload the
// analysis is skipped.
func (e *Engine) applyAnalysis(s *session.Session, res generation.Result[generation.WritingAnalysis], err error, pool []words.Word, out *outcome) {
	if err != nil {
		e.logger.Warn("writing analysis unavailable", zap.String("user", s.UserID), zap.Error(err))
		out.reply(info(stage.WritingAnalysis, "The analysis is not available right now."))
		e.advance(s, pool, out)
		return
	}
	a := res.Payload
	s.Scratch.Analysis = &a
	s.Stats.WritingScored = !res.Degraded()
	if s.Stats.WritingScored {
		s.Stats.WritingScore = a.Score
	}
	if state, err := s.State.Advance(stage.StepShowingAnalysis); err == nil {
		s.State = state
	}
	out.reply(prompt(s))
}

// applyDrill stores a generated text drill and asks its first question.
// Without a payload the drill is skipped.
func (e *Engine) applyDrill(s *session.Session, res generation.Result[generation.TextDrill], err error, pool []words.Word, out *outcome) {
	if err != nil || len(res.Payload.Questions) == 0 {
		e.logger.Warn("text drill unavailable", zap.String("user", s.UserID), zap.Error(err))
		out.reply(info(stage.TextDrill, "The text drill is not available right now."))
		e.advance(s, pool, out)
		return
	}
	d := res.Payload
	s.Scratch.Drill = &d
	s.Cursor = 0
	if state, err := s.State.Advance(stage.StepAwaitingAnswer); err == nil {
		s.State = state
	}
	e.logger.Debug("text drill ready", zap.String("user", s.UserID), zap.Stringer("tier", res.Tier))
	out.reply(drillText(d))
	out.reply(prompt(s))
}
