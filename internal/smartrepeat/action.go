package smartrepeat

import (
	"errors"
	"slices"

	"github.com/abhisek/smartrepeat/internal/stage"
)

var (
	// ErrPoolExhausted means fewer words were available than a stage asked
	// for. The stage runs with what there is, or is skipped when empty.
	ErrPoolExhausted = errors.New("word pool exhausted")

	// ErrStaleAction means an action answered a prompt the session has
	// already moved past.
	ErrStaleAction = errors.New("stale action")

	// ErrSessionMissing means there is no live session and none could be
	// recovered.
	ErrSessionMissing = errors.New("no live or recoverable session")

	// ErrSessionExpiredMidCall means a generation result arrived for a
	// session that no longer exists.
	ErrSessionExpiredMidCall = errors.New("session expired during generation")

	errInvalidAction     = errors.New("action not accepted at this step")
	errGenerationPending = errors.New("generation already running")
)

// ActionKind is what the user did.
type ActionKind int

const (
	ActionStart ActionKind = iota + 1
	ActionRestart
	ActionAnswer     // pick an option by index
	ActionKnow       // "I know this word"
	ActionDontKnow   // "I don't know this word"
	ActionSubmitText // free-text submission
	ActionContinue
	ActionAddWord
	ActionSkipWord
)

var actionNames = map[ActionKind]string{
	ActionStart:      "start",
	ActionRestart:    "restart",
	ActionAnswer:     "answer",
	ActionKnow:       "know",
	ActionDontKnow:   "dont_know",
	ActionSubmitText: "submit_text",
	ActionContinue:   "continue",
	ActionAddWord:    "add_word",
	ActionSkipWord:   "skip_word",
}

func (k ActionKind) String() string {
	if n, ok := actionNames[k]; ok {
		return n
	}
	return "unknown"
}

// Action is one user input delivered by the transport.
type Action struct {
	UserID string
	Kind   ActionKind

	// Profile selects the vocabulary for start and restart. Empty means
	// DefaultProfile.
	Profile string

	// Token must echo the token of the prompt being answered. Start and
	// restart ignore it.
	Token string

	Choice int    // ActionAnswer
	Text   string // ActionSubmitText
}

// ReplyKind classifies a reply.
type ReplyKind int

const (
	// ReplyPrompt asks for an action; it carries a token.
	ReplyPrompt ReplyKind = iota + 1
	// ReplyFeedback reports the outcome of the previous answer.
	ReplyFeedback
	// ReplyInfo is a message that needs no response.
	ReplyInfo
	// ReplyStale rejects an action addressed to an earlier prompt.
	ReplyStale
	// ReplyInvalid rejects an action the current prompt does not accept.
	ReplyInvalid
	// ReplyRestartRequired means there is nothing to continue.
	ReplyRestartRequired
	// ReplyNoWords means the vocabulary is empty.
	ReplyNoWords
	// ReplyUnavailable means a collaborator failed and nothing changed.
	ReplyUnavailable
	// ReplyDone closes a finished pass.
	ReplyDone
)

// Reply is one message for the transport to render.
type Reply struct {
	Kind    ReplyKind
	Stage   stage.Stage
	Token   string
	Text    string
	Options []string
	Accepts []ActionKind
}

// Accepting reports whether the reply accepts k.
func (r Reply) Accepting(k ActionKind) bool {
	return slices.Contains(r.Accepts, k)
}
