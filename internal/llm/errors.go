package llm

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies provider failures.
type Kind int

const (
	KindUnavailable Kind = iota
	KindRateLimited
	KindTruncated
	KindInvalid
)

// Sentinels matched by errors.Is against an *Error of the same kind.
var (
	ErrUnavailable = errors.New("provider unavailable")
	ErrRateLimited = errors.New("rate limited")
	ErrTruncated   = errors.New("response truncated at the token limit")
	ErrInvalid     = errors.New("invalid response")
)

func (k Kind) sentinel() error {
	switch k {
	case KindRateLimited:
		return ErrRateLimited
	case KindTruncated:
		return ErrTruncated
	case KindInvalid:
		return ErrInvalid
	default:
		return ErrUnavailable
	}
}

func (k Kind) String() string { return k.sentinel().Error() }

// Error is a classified provider failure.
type Error struct {
	Kind     Kind
	Provider string
	Status   int    // HTTP status, when the service sent one
	Partial  string // text received before truncation
	Err      error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Provider != "" {
		msg = e.Provider + ": " + msg
	}
	if e.Status != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind.sentinel()}
	}
	return []error{e.Kind.sentinel(), e.Err}
}

// classify turns an SDK failure into an *Error. status is 0 when the
// request never got an HTTP response.
func classify(provider string, status int, err error) *Error {
	kind := KindUnavailable
	if status == http.StatusTooManyRequests {
		kind = KindRateLimited
	}
	return &Error{Kind: kind, Provider: provider, Status: status, Err: err}
}

func truncated(provider, partial string) *Error {
	return &Error{Kind: KindTruncated, Provider: provider, Partial: partial}
}
