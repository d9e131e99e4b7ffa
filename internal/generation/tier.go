package generation

import (
	"errors"
	"fmt"
)

// Tier identifies the parse strategy that produced a payload.
type Tier int

const (
	TierStrict   Tier = iota + 1 // whole response is the payload
	TierExtract                  // payload embedded in prose
	TierRepair                   // damaged payload repaired
	TierFields                   // required fields recovered one by one
	TierFallback                 // deterministic payload from known words
)

func (t Tier) String() string {
	switch t {
	case TierStrict:
		return "strict"
	case TierExtract:
		return "extract"
	case TierRepair:
		return "repair"
	case TierFields:
		return "fields"
	case TierFallback:
		return "fallback"
	}
	return fmt.Sprintf("tier(%d)", int(t))
}

// Kind classifies why a tier failed.
type Kind string

const (
	KindEmpty     Kind = "empty"     // nothing usable in the response
	KindMalformed Kind = "malformed" // not parseable as structured data
	KindSchema    Kind = "schema"    // parsed, but not a valid payload
	KindProvider  Kind = "provider"  // the generation service call failed
)

// TierError records the failure of one tier.
type TierError struct {
	Tier Tier
	Kind Kind
	Err  error
}

func (e *TierError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s tier: %s", e.Tier, e.Kind)
	}
	return fmt.Sprintf("%s tier: %s: %v", e.Tier, e.Kind, e.Err)
}

func (e *TierError) Unwrap() error { return e.Err }

// ErrExhausted is returned only when even the fallback tier could not build
// a valid payload.
var ErrExhausted = errors.New("generation: every tier failed")

func tierErr(t Tier, k Kind, err error) *TierError {
	return &TierError{Tier: t, Kind: k, Err: err}
}
