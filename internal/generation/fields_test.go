package generation

import (
	"testing"

	"github.com/abhisek/smartrepeat/internal/words"
	"github.com/tidwall/gjson"
)

func TestTextDrillFields_KeyAliases(t *testing.T) {
	raw := `Here: {"heading": "x", "story": "Ana bebe café todas as manhãs.", "questions": [` +
		`{"question": "O que Ana bebe?", "options": ["chá", "café"], "answer": "café"}`
	d, err := textDrillFields(raw, Hints{})
	if err != nil {
		t.Fatalf("textDrillFields: %v", err)
	}
	if d.Text != "Ana bebe café todas as manhãs." {
		t.Errorf("text = %q", d.Text)
	}
	if len(d.Questions) != 1 || d.Questions[0].Answer != 1 {
		t.Fatalf("questions = %+v", d.Questions)
	}
}

func TestTextDrillFields_MissingText(t *testing.T) {
	for _, raw := range []string{"", "too short", `{"title": "only a title"}`} {
		if _, err := textDrillFields(raw, Hints{}); err == nil {
			t.Errorf("textDrillFields(%q): expected error", raw)
		}
	}
}

func TestWritingAnalysisFields_ProseFeedback(t *testing.T) {
	a, err := writingAnalysisFields("Good work overall, but check your verb endings.", Hints{})
	if err != nil {
		t.Fatalf("writingAnalysisFields: %v", err)
	}
	if a.Feedback != "Good work overall, but check your verb endings." {
		t.Errorf("feedback = %q", a.Feedback)
	}
}

func TestAnswerIndex(t *testing.T) {
	opts := []string{"red", "Blue"}
	tests := []struct {
		js   string
		want int
	}{
		{`{"a": 1}`, 1},
		{`{"a": "0"}`, 0},
		{`{"a": "blue"}`, 1},
		{`{"a": "green"}`, -1},
		{`{}`, -1},
	}
	for _, tt := range tests {
		if got := answerIndex(gjson.Get(tt.js, "a"), opts); got != tt.want {
			t.Errorf("answerIndex(%s) = %d, want %d", tt.js, got, tt.want)
		}
	}
}

func TestFallbackQuestions(t *testing.T) {
	ws := []words.Word{
		{Word: "gato", Translation: "cat"},
		{Word: "cão", Translation: "dog"},
		{Word: "GATO", Translation: "cat"},
		{Word: "casa"},
		{Word: "peixe", Translation: "fish"},
	}
	qs := fallbackQuestions(ws, 5)
	if len(qs) != 3 {
		t.Fatalf("questions = %d, want 3 (duplicates and untranslated skipped)", len(qs))
	}
	want := []string{"cat", "dog", "fish"}
	for i, q := range qs {
		if err := checkQuestion(q); err != nil {
			t.Errorf("question %d invalid: %v", i, err)
		}
		if q.Options[q.Answer] != want[i] {
			t.Errorf("question %d answer = %q, want %q", i, q.Options[q.Answer], want[i])
		}
	}

	single := fallbackQuestions([]words.Word{{Word: "sol", Translation: "sun"}}, 5)
	if len(single) != 1 || len(single[0].Options) != 2 || !IsPlaceholder(single[0].Options[1]) {
		t.Errorf("single word question = %+v", single)
	}

	if qs := fallbackQuestions(nil, 5); len(qs) != 1 || !IsPlaceholder(qs[0].Question) {
		t.Errorf("no words: %+v", qs)
	}
}
