// Package llm talks to text generation services. Providers return the
// model's raw text; callers decide how to parse and validate it.
package llm

import "context"

// Provider sends one request to a generation service.
type Provider interface {
	// Generate returns the model's reply. A reply cut off by the token
	// limit comes back as an *Error of KindTruncated carrying the partial
	// text.
	Generate(ctx context.Context, req Request) (*Response, error)

	// Name is the backend name, e.g. "anthropic".
	Name() string

	// ModelID is the model requests are sent to.
	ModelID() string
}

// Request is a single-turn or short multi-turn prompt.
type Request struct {
	System   string
	Messages []Message

	// JSON asks the service to answer with a JSON object where it has a
	// native switch for that. The reply is still not validated.
	JSON bool

	// Schema, when set, is passed to the vendor's structured output mode
	// and implies JSON. The reply is still not validated.
	Schema *Schema

	MaxTokens   int
	Temperature float64 // 0 leaves the service default
}

// Message is one conversation turn.
type Message struct {
	Role    Role
	Content string
}

// Role is the message sender role.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// StopReason says why the model stopped.
type StopReason string

const (
	StopEnd       StopReason = "end"
	StopMaxTokens StopReason = "max_tokens"
)

// Response is the model's reply.
type Response struct {
	Text       string
	Usage      Usage
	Model      string // model that served the request
	StopReason StopReason
}

// Usage is the token count of one request.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Total is input plus output tokens.
func (u Usage) Total() int { return u.InputTokens + u.OutputTokens }

// UserPrompt is a request holding a single user message.
func UserPrompt(system, prompt string) Request {
	return Request{System: system, Messages: []Message{{Role: RoleUser, Content: prompt}}}
}
