package generation

import (
	"fmt"
	"strings"

	"github.com/abhisek/smartrepeat/internal/llm"
	"github.com/abhisek/smartrepeat/internal/words"
)

const textDrillSystemPrompt = `You are a language tutor writing reading practice for a learner.

Rules:
- Write a short, coherent story (120-200 words) in the target language that naturally uses every listed word.
- Then write 3 to 5 multiple-choice comprehension questions about the story.
- Each question has 3 or 4 options; "answer" is the zero-based index of the correct option.
- Finally list up to 8 other useful words from the story that are NOT in the given list, with translations.
- Reply with a single JSON object and nothing else:
  {"title": "...", "text": "...", "questions": [{"question": "...", "options": ["..."], "answer": 0}],
   "bonus_vocabulary": [{"word": "...", "translation": "..."}]}`

const writingAnalysisSystemPrompt = `You are a language tutor reviewing a learner's short text.

Rules:
- Score the text from 0 to 100 for grammar, vocabulary and correct use of the target words.
- Give brief, encouraging feedback (2-4 sentences).
- List concrete corrections: the original fragment, the corrected fragment and a short explanation.
- Provide an improved version of the whole text that keeps the learner's meaning.
- Reply with a single JSON object and nothing else:
  {"score": 0, "feedback": "...", "corrections": [{"original": "...", "corrected": "...", "explanation": "..."}],
   "improved_text": "..."}`

// BuildTextDrillRequest asks for a story built around ws.
func BuildTextDrillRequest(ws []words.Word) llm.Request {
	var b strings.Builder
	b.WriteString("Target words:\n")
	b.WriteString(wordList(ws))
	return llm.Request{
		System:   textDrillSystemPrompt,
		Messages: []llm.Message{{Role: llm.RoleUser, Content: b.String()}},
	}
}

// BuildWritingAnalysisRequest asks for an assessment of essay, written as
// an exercise on task.
func BuildWritingAnalysisRequest(task []words.Word, essay string) llm.Request {
	var b strings.Builder
	b.WriteString("The learner was asked to use these words:\n")
	b.WriteString(wordList(task))
	b.WriteString("\nLearner's text:\n")
	b.WriteString(strings.TrimSpace(essay))
	return llm.Request{
		System:   writingAnalysisSystemPrompt,
		Messages: []llm.Message{{Role: llm.RoleUser, Content: b.String()}},
	}
}

func wordList(ws []words.Word) string {
	ws = usableWords(ws)
	if len(ws) == 0 {
		return "None\n"
	}
	var b strings.Builder
	for _, w := range ws {
		if w.Translation != "" {
			fmt.Fprintf(&b, "- %s (%s)\n", w.Word, w.Translation)
		} else {
			fmt.Fprintf(&b, "- %s\n", w.Word)
		}
	}
	return b.String()
}
