package generation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/abhisek/smartrepeat/internal/llm"
	"github.com/abhisek/smartrepeat/internal/words"
)

// PlaceholderPrefix marks every string the gateway invents because the
// generated payload lacked it.
const PlaceholderPrefix = "[placeholder]"

// Placeholder returns the marked stand-in for a missing field.
func Placeholder(field string) string {
	return PlaceholderPrefix + " " + field + " unavailable"
}

// IsPlaceholder reports whether s was produced by Placeholder.
func IsPlaceholder(s string) bool {
	return strings.HasPrefix(s, PlaceholderPrefix)
}

// Question is one multiple-choice comprehension question.
type Question struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Answer   int      `json:"answer"` // index into Options
}

// BonusWord is vocabulary from the generated text offered for consolidation.
type BonusWord struct {
	Word        string `json:"word"`
	Translation string `json:"translation"`
}

// TextDrill is a generated narrative with comprehension questions.
type TextDrill struct {
	Title           string      `json:"title"`
	Text            string      `json:"text"`
	Questions       []Question  `json:"questions"`
	BonusVocabulary []BonusWord `json:"bonus_vocabulary"`
}

// Correction is one fix suggested for the learner's writing.
type Correction struct {
	Original    string `json:"original"`
	Corrected   string `json:"corrected"`
	Explanation string `json:"explanation"`
}

// WritingAnalysis is the assessment of a learner's free text.
type WritingAnalysis struct {
	Score        int          `json:"score"` // 0-100
	Feedback     string       `json:"feedback"`
	Corrections  []Correction `json:"corrections"`
	ImprovedText string       `json:"improved_text"`
}

// TextDrillSchema is the JSON schema a text drill payload must satisfy.
var TextDrillSchema = &llm.Schema{
	Name:        "text-drill",
	Description: "A short narrative using the target words, with comprehension questions",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title": map[string]any{"type": "string", "minLength": 1},
			"text":  map[string]any{"type": "string", "minLength": 1},
			"questions": map[string]any{
				"type":     "array",
				"minItems": 1,
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"question": map[string]any{"type": "string", "minLength": 1},
						"options": map[string]any{
							"type":     "array",
							"minItems": 2,
							"items":    map[string]any{"type": "string", "minLength": 1},
						},
						"answer": map[string]any{"type": "integer", "minimum": 0},
					},
					"required": []any{"question", "options", "answer"},
				},
			},
			"bonus_vocabulary": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"word":        map[string]any{"type": "string"},
						"translation": map[string]any{"type": "string"},
					},
					"required": []any{"word", "translation"},
				},
			},
		},
		"required": []any{"title", "text", "questions"},
	},
}

// WritingAnalysisSchema is the JSON schema a writing analysis must satisfy.
var WritingAnalysisSchema = &llm.Schema{
	Name:        "writing-analysis",
	Description: "Assessment of a learner's short text",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"score":    map[string]any{"type": "integer", "minimum": 0, "maximum": 100},
			"feedback": map[string]any{"type": "string", "minLength": 1},
			"corrections": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"original":    map[string]any{"type": "string"},
						"corrected":   map[string]any{"type": "string"},
						"explanation": map[string]any{"type": "string"},
					},
					"required": []any{"original", "corrected"},
				},
			},
			"improved_text": map[string]any{"type": "string", "minLength": 1},
		},
		"required": []any{"score", "feedback", "improved_text"},
	},
}

var (
	errNoQuestions = errors.New("no questions")
	errNoText      = errors.New("no text")
	errNoFeedback  = errors.New("no feedback")
)

// checkTextDrill enforces what the schema cannot express.
func checkTextDrill(d TextDrill) error {
	if strings.TrimSpace(d.Text) == "" {
		return errNoText
	}
	if len(d.Questions) == 0 {
		return errNoQuestions
	}
	for i, q := range d.Questions {
		if err := checkQuestion(q); err != nil {
			return fmt.Errorf("question %d: %w", i+1, err)
		}
	}
	return nil
}

func checkQuestion(q Question) error {
	if strings.TrimSpace(q.Question) == "" {
		return errors.New("empty question")
	}
	if len(q.Options) < 2 {
		return fmt.Errorf("%d options, need at least 2", len(q.Options))
	}
	if q.Answer < 0 || q.Answer >= len(q.Options) {
		return fmt.Errorf("answer index %d out of range", q.Answer)
	}
	seen := make(map[string]bool, len(q.Options))
	for _, o := range q.Options {
		k := words.NormalizeKey(o)
		if k == "" {
			return errors.New("empty option")
		}
		if seen[k] {
			return fmt.Errorf("duplicate option %q", o)
		}
		seen[k] = true
	}
	return nil
}

func checkWritingAnalysis(a WritingAnalysis) error {
	if strings.TrimSpace(a.Feedback) == "" {
		return errNoFeedback
	}
	if a.Score < 0 || a.Score > 100 {
		return fmt.Errorf("score %d out of range", a.Score)
	}
	return nil
}

// completeTextDrill drops unusable parts and fills required fields that are
// still missing with placeholders. hints supply stand-in questions.
func completeTextDrill(d *TextDrill, h Hints) {
	if strings.TrimSpace(d.Title) == "" {
		d.Title = Placeholder("title")
	}
	if strings.TrimSpace(d.Text) == "" {
		d.Text = Placeholder("text")
	}

	kept := d.Questions[:0]
	for _, q := range d.Questions {
		if checkQuestion(q) == nil {
			kept = append(kept, q)
		}
	}
	d.Questions = kept
	if len(d.Questions) == 0 {
		d.Questions = fallbackQuestions(h.Words, 1)
	}

	d.BonusVocabulary = cleanBonus(d.BonusVocabulary)
}

func completeWritingAnalysis(a *WritingAnalysis, h Hints) {
	if strings.TrimSpace(a.Feedback) == "" {
		a.Feedback = Placeholder("feedback")
	}
	if strings.TrimSpace(a.ImprovedText) == "" {
		if essay := strings.TrimSpace(h.Essay); essay != "" {
			a.ImprovedText = essay
		} else {
			a.ImprovedText = Placeholder("improved text")
		}
	}
	a.Score = min(max(a.Score, 0), 100)
	kept := make([]Correction, 0, len(a.Corrections))
	for _, c := range a.Corrections {
		if strings.TrimSpace(c.Original) != "" || strings.TrimSpace(c.Corrected) != "" {
			kept = append(kept, c)
		}
	}
	a.Corrections = kept
}

// cleanBonus trims entries and drops blanks and repeats.
func cleanBonus(in []BonusWord) []BonusWord {
	seen := make(map[string]bool, len(in))
	out := make([]BonusWord, 0, len(in))
	for _, b := range in {
		b.Word = strings.TrimSpace(b.Word)
		b.Translation = strings.TrimSpace(b.Translation)
		k := words.NormalizeKey(b.Word)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, b)
	}
	return out
}
