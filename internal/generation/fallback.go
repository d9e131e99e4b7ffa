package generation

import (
	"fmt"
	"strings"

	"github.com/abhisek/smartrepeat/internal/words"
)

const (
	fallbackTitle        = "Word review"
	maxFallbackQuestions = 5
	maxOptions           = 4
)

// fallbackTextDrill builds a drill from the caller's words alone: one line
// per word and a translation question for each.
func fallbackTextDrill(h Hints) (TextDrill, error) {
	ws := usableWords(h.Words)
	d := TextDrill{Title: fallbackTitle}

	if len(ws) == 0 {
		d.Text = Placeholder("text")
	} else {
		lines := make([]string, 0, len(ws))
		for _, w := range ws {
			if w.Translation != "" {
				lines = append(lines, fmt.Sprintf("%s: %s.", w.Word, w.Translation))
			} else {
				lines = append(lines, w.Word+".")
			}
		}
		d.Text = strings.Join(lines, "\n")
	}
	d.Questions = fallbackQuestions(ws, maxFallbackQuestions)
	d.BonusVocabulary = []BonusWord{}
	return d, nil
}

// fallbackWritingAnalysis returns the learner's own text unchanged with a
// marked feedback line.
func fallbackWritingAnalysis(h Hints) (WritingAnalysis, error) {
	a := WritingAnalysis{Feedback: Placeholder("feedback")}
	completeWritingAnalysis(&a, h)
	return a, nil
}

// fallbackQuestions asks for the translation of up to n words, drawing
// distractors from the other words' translations. Without any usable word
// it returns a single placeholder question.
func fallbackQuestions(ws []words.Word, n int) []Question {
	ws = usableWords(ws)
	var qs []Question
	for i, w := range ws {
		if len(qs) == n {
			break
		}
		if w.Translation == "" {
			continue
		}
		opts := []string{w.Translation}
		seen := map[string]bool{words.NormalizeKey(w.Translation): true}
		for j := 1; j < len(ws) && len(opts) < maxOptions; j++ {
			o := ws[(i+j)%len(ws)].Translation
			if k := words.NormalizeKey(o); k != "" && !seen[k] {
				seen[k] = true
				opts = append(opts, o)
			}
		}
		if len(opts) < 2 {
			opts = append(opts, Placeholder("option"))
		}

		// Rotate so the right answer is not always first.
		shift := i % len(opts)
		rotated := make([]string, 0, len(opts))
		rotated = append(rotated, opts[shift:]...)
		rotated = append(rotated, opts[:shift]...)

		qs = append(qs, Question{
			Question: fmt.Sprintf("What does %q mean?", w.Word),
			Options:  rotated,
			Answer:   (len(opts) - shift) % len(opts),
		})
	}
	if len(qs) == 0 {
		qs = []Question{{
			Question: Placeholder("question"),
			Options:  []string{Placeholder("option") + " (a)", Placeholder("option") + " (b)"},
			Answer:   0,
		}}
	}
	return qs
}

// usableWords drops blank and repeated words, keeping order.
func usableWords(ws []words.Word) []words.Word {
	seen := make(map[string]bool, len(ws))
	out := make([]words.Word, 0, len(ws))
	for _, w := range ws {
		k := w.Key()
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		w.Word = strings.TrimSpace(w.Word)
		w.Translation = strings.TrimSpace(w.Translation)
		out = append(out, w)
	}
	return out
}
