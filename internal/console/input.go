package console

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/abhisek/smartrepeat/internal/smartrepeat"
)

var errNothingToAnswer = errors.New("nothing to answer; type start, restart or quit")

// ParseInput maps a line typed at prompt to an action. The returned action
// carries the prompt's token but no user. A nil prompt only accepts start
// and restart.
func ParseInput(line string, prompt *smartrepeat.Reply) (smartrepeat.Action, error) {
	raw := strings.TrimSpace(line)
	word := strings.ToLower(raw)
	switch word {
	case "start":
		return smartrepeat.Action{Kind: smartrepeat.ActionStart}, nil
	case "restart":
		return smartrepeat.Action{Kind: smartrepeat.ActionRestart}, nil
	}
	if prompt == nil {
		return smartrepeat.Action{}, errNothingToAnswer
	}

	a := smartrepeat.Action{Token: prompt.Token}
	switch {
	case prompt.Accepting(smartrepeat.ActionSubmitText):
		if raw == "" {
			return a, errors.New("write something first")
		}
		a.Kind = smartrepeat.ActionSubmitText
		a.Text = raw

	case prompt.Accepting(smartrepeat.ActionAnswer):
		n, err := choice(word, len(prompt.Options))
		if err != nil {
			return a, err
		}
		a.Kind = smartrepeat.ActionAnswer
		a.Choice = n

	case prompt.Accepting(smartrepeat.ActionKnow):
		switch word {
		case "1", "y", "yes", "k", "know":
			a.Kind = smartrepeat.ActionKnow
		case "2", "n", "no", "d", "dont know", "don't know":
			a.Kind = smartrepeat.ActionDontKnow
		default:
			return a, errors.New("enter 1 (know) or 2 (don't know)")
		}

	case prompt.Accepting(smartrepeat.ActionAddWord):
		switch word {
		case "1", "y", "yes", "a", "add":
			a.Kind = smartrepeat.ActionAddWord
		case "2", "n", "no", "s", "skip":
			a.Kind = smartrepeat.ActionSkipWord
		default:
			return a, errors.New("enter 1 (add) or 2 (skip)")
		}

	case prompt.Accepting(smartrepeat.ActionContinue):
		a.Kind = smartrepeat.ActionContinue

	default:
		return a, errNothingToAnswer
	}
	return a, nil
}

// choice accepts a 1-based number or a letter.
func choice(word string, n int) (int, error) {
	bad := fmt.Errorf("enter a number from 1 to %d", n)
	if len(word) == 1 && word[0] >= 'a' && word[0] <= 'z' {
		i := int(word[0] - 'a')
		if i < n {
			return i, nil
		}
		return 0, bad
	}
	i, err := strconv.Atoi(word)
	if err != nil || i < 1 || i > n {
		return 0, bad
	}
	return i - 1, nil
}
