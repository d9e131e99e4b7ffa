package console

import (
	"fmt"
	"strings"

	"github.com/abhisek/smartrepeat/internal/smartrepeat"
	"github.com/abhisek/smartrepeat/internal/stage"
)

var stageTitles = map[stage.Stage]string{
	stage.Quiz:               "Quiz",
	stage.KnowDontKnow:       "Know / Don't know",
	stage.WritingTask:        "Writing",
	stage.WritingAnalysis:    "Writing analysis",
	stage.TextDrill:          "Text drill",
	stage.VocabConsolidation: "New words",
}

// Render formats one reply for the terminal.
func Render(r smartrepeat.Reply) string {
	switch r.Kind {
	case smartrepeat.ReplyPrompt:
		return renderPrompt(r)
	case smartrepeat.ReplyFeedback:
		if strings.HasPrefix(r.Text, "Correct") || strings.HasPrefix(r.Text, "Added") {
			return correctStyle.Render(r.Text)
		}
		return incorrectStyle.Render(r.Text)
	case smartrepeat.ReplyInfo:
		return infoStyle.Render(r.Text)
	case smartrepeat.ReplyDone:
		return summaryStyle.Render(r.Text)
	case smartrepeat.ReplyStale, smartrepeat.ReplyInvalid:
		return warnStyle.Render(r.Text)
	}
	return hintStyle.Render(r.Text)
}

func renderPrompt(r smartrepeat.Reply) string {
	var b strings.Builder
	if title, ok := stageTitles[r.Stage]; ok {
		b.WriteString(stageStyle.Render("[" + title + "]"))
		b.WriteString(" ")
	}
	b.WriteString(promptStyle.Render(r.Text))
	for i, opt := range r.Options {
		fmt.Fprintf(&b, "\n  %s %s", optionKeyStyle.Render(fmt.Sprintf("%d)", i+1)), optionStyle.Render(opt))
	}
	if h := hint(r); h != "" {
		b.WriteString("\n")
		b.WriteString(hintStyle.Render(h))
	}
	return b.String()
}

// hint tells the user what input the prompt takes.
func hint(r smartrepeat.Reply) string {
	switch {
	case r.Accepting(smartrepeat.ActionSubmitText):
		return "Type your text on one line."
	case r.Accepting(smartrepeat.ActionAnswer):
		return fmt.Sprintf("Enter 1-%d.", len(r.Options))
	case r.Accepting(smartrepeat.ActionKnow):
		return "Enter 1 (know) or 2 (don't know)."
	case r.Accepting(smartrepeat.ActionAddWord):
		return "Enter 1 (add) or 2 (skip)."
	case r.Accepting(smartrepeat.ActionContinue):
		return "Press enter to continue."
	}
	return ""
}
