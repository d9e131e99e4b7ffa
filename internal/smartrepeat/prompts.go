package smartrepeat

import (
	"fmt"
	"slices"
	"strings"

	"github.com/abhisek/smartrepeat/internal/generation"
	"github.com/abhisek/smartrepeat/internal/session"
	"github.com/abhisek/smartrepeat/internal/stage"
	"github.com/abhisek/smartrepeat/internal/words"
)

func info(st stage.Stage, text string) Reply {
	return Reply{Kind: ReplyInfo, Stage: st, Text: text}
}

func feedback(st stage.Stage, correct bool, w words.Word) Reply {
	if correct {
		return Reply{Kind: ReplyFeedback, Stage: st, Text: "Correct!"}
	}
	return Reply{Kind: ReplyFeedback, Stage: st, Text: fmt.Sprintf("%s means %q.", w.Word, w.Translation)}
}

// prompt asks for the action the session is waiting on.
func prompt(s *session.Session) Reply {
	st := s.State.Stage()
	r := Reply{Kind: ReplyPrompt, Stage: st, Token: s.Token()}
	progress := fmt.Sprintf("(%d/%d)", s.Cursor+1, len(s.Candidates))

	switch s.State.Step() {
	case stage.StepAwaitingChoice:
		w, _ := s.Current()
		r.Text = fmt.Sprintf("%s What does %q mean?", progress, w.Word)
		if s.Cursor < len(s.Scratch.Quiz) {
			r.Options = slices.Clone(s.Scratch.Quiz[s.Cursor].Options)
		}
		r.Accepts = []ActionKind{ActionAnswer}

	case stage.StepAwaitingVerdict:
		w, _ := s.Current()
		r.Text = fmt.Sprintf("%s Do you know %q?", progress, w.Word)
		r.Options = []string{"Know", "Don't know"}
		r.Accepts = []ActionKind{ActionKnow, ActionDontKnow}

	case stage.StepAwaitingText:
		r.Text = "Write a few sentences using these words: " + strings.Join(wordsOf(s.Candidates), ", ")
		r.Accepts = []ActionKind{ActionSubmitText}

	case stage.StepShowingAnalysis:
		r.Text = analysisText(s.Scratch.Analysis, s.Stats.WritingScored)
		r.Options = []string{"Continue"}
		r.Accepts = []ActionKind{ActionContinue}

	case stage.StepAwaitingAnswer:
		d := s.Scratch.Drill
		if d == nil || s.Cursor >= len(d.Questions) {
			return info(st, "The text drill is not ready yet.")
		}
		q := d.Questions[s.Cursor]
		r.Text = fmt.Sprintf("(%d/%d) %s", s.Cursor+1, len(d.Questions), q.Question)
		r.Options = slices.Clone(q.Options)
		r.Accepts = []ActionKind{ActionAnswer}

	case stage.StepAwaitingTriage:
		w, _ := s.Current()
		r.Text = fmt.Sprintf("%s %s: %s", progress, w.Word, w.Translation)
		r.Options = []string{"Add", "Skip"}
		r.Accepts = []ActionKind{ActionAddWord, ActionSkipWord}

	default:
		return info(st, "Still preparing, one moment...")
	}
	return r
}

// resend repeats what the user needs to see to carry on.
func resend(s *session.Session) []Reply {
	if s.State.Step() == stage.StepAwaitingAnswer && s.Scratch.Drill != nil {
		return []Reply{drillText(*s.Scratch.Drill), prompt(s)}
	}
	return []Reply{prompt(s)}
}

func drillText(d generation.TextDrill) Reply {
	return info(stage.TextDrill, d.Title+"\n\n"+d.Text)
}

// analysisText renders a writing analysis. The score is left out when it
// was not produced by the service.
func analysisText(a *generation.WritingAnalysis, scored bool) string {
	if a == nil {
		return "No analysis available."
	}
	var b strings.Builder
	if scored {
		fmt.Fprintf(&b, "Score: %d/100\n", a.Score)
	}
	b.WriteString(a.Feedback)
	for _, c := range a.Corrections {
		fmt.Fprintf(&b, "\n- %s -> %s", c.Original, c.Corrected)
		if c.Explanation != "" {
			fmt.Fprintf(&b, " (%s)", c.Explanation)
		}
	}
	if a.ImprovedText != "" {
		fmt.Fprintf(&b, "\n\nImproved version:\n%s", a.ImprovedText)
	}
	return b.String()
}

func summary(s *session.Session) Reply {
	st := s.Stats
	var b strings.Builder
	b.WriteString("Smart Repeat complete!")
	fmt.Fprintf(&b, "\nQuiz: %d correct, %d wrong", st.QuizCorrect, st.QuizWrong)
	fmt.Fprintf(&b, "\nKnown: %d, to review: %d", st.Known, st.Unknown)
	if st.Written && st.WritingScored {
		fmt.Fprintf(&b, "\nWriting score: %d/100", st.WritingScore)
	}
	fmt.Fprintf(&b, "\nText drill: %d correct, %d wrong", st.DrillCorrect, st.DrillWrong)
	if st.WordsAdded > 0 {
		fmt.Fprintf(&b, "\nNew words added: %d", st.WordsAdded)
	}
	return Reply{Kind: ReplyDone, Stage: stage.Done, Text: b.String()}
}

func wordsOf(ws []words.Word) []string {
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = w.Word
	}
	return out
}
