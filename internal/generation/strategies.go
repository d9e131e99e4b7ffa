package generation

import (
	"encoding/json"
	"errors"
	"strings"
)

// parseFunc turns raw model output into candidate JSON. On failure it
// reports the Kind of damage it found.
type parseFunc func(raw string) (json.RawMessage, Kind, error)

// strategy pairs a parse tier with its implementation. The strategies run
// in order; the first whose output decodes into a valid payload wins.
type strategy struct {
	tier  Tier
	parse parseFunc
}

var strategies = []strategy{
	{TierStrict, parseStrict},
	{TierExtract, parseExtract},
	{TierRepair, parseRepair},
}

var (
	errEmptyResponse = errors.New("empty response")
	errNotJSON       = errors.New("response is not JSON")
	errNoObject      = errors.New("no JSON object in response")
	errUnrepairable  = errors.New("repair did not produce valid JSON")
)

// parseStrict accepts the response only if it is JSON as a whole.
func parseStrict(raw string) (json.RawMessage, Kind, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, KindEmpty, errEmptyResponse
	}
	if !json.Valid([]byte(s)) {
		return nil, KindMalformed, errNotJSON
	}
	return json.RawMessage(s), "", nil
}

// parseExtract finds the first balanced {...} substring that is valid JSON,
// skipping any prose or code fences around it.
func parseExtract(raw string) (json.RawMessage, Kind, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, KindEmpty, errEmptyResponse
	}
	for i := 0; i < len(s); i++ {
		if s[i] != '{' {
			continue
		}
		end := balancedEnd(s, i)
		if end < 0 {
			// Only fragments of a truncated object remain; leave it to repair.
			break
		}
		if cand := s[i : end+1]; json.Valid([]byte(cand)) {
			return json.RawMessage(cand), "", nil
		}
	}
	return nil, KindMalformed, errNoObject
}

// parseRepair starts at the first '{' and rewrites what follows into valid
// JSON: dropping repeated and trailing separators, quoting bare keys,
// closing truncated strings and balancing brackets.
func parseRepair(raw string) (json.RawMessage, Kind, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, KindEmpty, errEmptyResponse
	}
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return nil, KindMalformed, errNoObject
	}
	fixed := repairJSON(s[start:])
	if !json.Valid([]byte(fixed)) {
		return nil, KindMalformed, errUnrepairable
	}
	return json.RawMessage(fixed), "", nil
}

// balancedEnd returns the index of the bracket closing the one at start, or
// -1 if the input ends first.
func balancedEnd(s string, start int) int {
	depth := 0
	inStr, esc := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inStr {
			switch {
			case esc:
				esc = false
			case c == '\\':
				esc = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return i
			}
			if depth < 0 {
				return -1
			}
		}
	}
	return -1
}

type frame struct {
	obj       bool
	expectKey bool // objects only: the next string is a key
}

// repairer holds the state of one repairJSON pass.
type repairer struct {
	out        []byte
	stack      []frame
	keyPending bool // a key was written and its ':' has not been seen
	litStart   int  // start of the bare literal being written, or -1
}

func repairJSON(s string) string {
	r := &repairer{out: make([]byte, 0, len(s)+8), litStart: -1}
	inStr, esc := false, false

scan:
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inStr {
			switch {
			case esc:
				esc = false
				r.out = append(r.out, c)
			case c == '\\':
				esc = true
				r.out = append(r.out, c)
			case c == '"':
				inStr = false
				r.out = append(r.out, c)
				r.closedString()
			case c == '\n':
				r.out = append(r.out, '\\', 'n')
			case c == '\t':
				r.out = append(r.out, '\\', 't')
			case c < 0x20:
				// Other control characters are not allowed in strings.
			default:
				r.out = append(r.out, c)
			}
			continue
		}

		if isLiteralByte(c) {
			if r.litStart < 0 {
				r.separate()
				r.litStart = len(r.out)
			}
			r.out = append(r.out, c)
			continue
		}
		r.flushLiteral()

		switch c {
		case ' ', '\t', '\n', '\r':
			r.out = append(r.out, c)
		case '"':
			r.separate()
			inStr = true
			r.out = append(r.out, c)
		case '{':
			r.separate()
			r.stack = append(r.stack, frame{obj: true, expectKey: true})
			r.out = append(r.out, c)
		case '[':
			r.separate()
			r.stack = append(r.stack, frame{})
			r.out = append(r.out, c)
		case '}', ']':
			if len(r.stack) == 0 {
				break scan
			}
			r.closeTop()
			if len(r.stack) == 0 {
				break scan
			}
		case ',':
			switch r.last() {
			case ',', '{', '[', 0:
				continue
			case ':':
				r.out = append(r.out, "null"...)
			}
			r.finishKey()
			r.out = append(r.out, ',')
			if top := r.top(); top != nil && top.obj {
				top.expectKey = true
			}
		case ':':
			r.keyPending = false
			if top := r.top(); top != nil && top.obj {
				top.expectKey = false
			}
			r.out = append(r.out, ':')
		default:
			// Stray prose between tokens.
		}
	}

	if inStr {
		if esc {
			r.out = r.out[:len(r.out)-1]
		}
		r.out = append(r.out, '"')
		r.closedString()
	}
	r.flushLiteral()
	for len(r.stack) > 0 {
		r.closeTop()
	}
	return string(r.out)
}

func (r *repairer) top() *frame {
	if len(r.stack) == 0 {
		return nil
	}
	return &r.stack[len(r.stack)-1]
}

// last returns the last non-space byte written, or 0.
func (r *repairer) last() byte {
	for i := len(r.out) - 1; i >= 0; i-- {
		switch c := r.out[i]; c {
		case ' ', '\t', '\n', '\r':
		default:
			return c
		}
	}
	return 0
}

func (r *repairer) closedString() {
	if top := r.top(); top != nil && top.obj && top.expectKey {
		r.keyPending = true
	}
}

// finishKey gives a dangling key a null value.
func (r *repairer) finishKey() {
	if r.keyPending {
		r.out = append(r.out, ":null"...)
		r.keyPending = false
		if top := r.top(); top != nil && top.obj {
			top.expectKey = false
		}
	}
}

// separate inserts a missing comma between two adjacent values.
func (r *repairer) separate() {
	top := r.top()
	if top == nil || r.keyPending {
		return
	}
	switch c := r.last(); {
	case c == '"', c == '}', c == ']', isLiteralByte(c):
		r.out = append(r.out, ',')
		if top.obj {
			top.expectKey = true
		}
	}
}

// closeTop closes the innermost open container, whichever closer the input
// used.
func (r *repairer) closeTop() {
	r.finishKey()
	switch r.last() {
	case ',':
		i := len(r.out) - 1
		for r.out[i] != ',' {
			i--
		}
		r.out = r.out[:i]
	case ':':
		r.out = append(r.out, "null"...)
	}
	if r.top().obj {
		r.out = append(r.out, '}')
	} else {
		r.out = append(r.out, ']')
	}
	r.stack = r.stack[:len(r.stack)-1]
}

// flushLiteral validates the bare literal just written. Bare keys are
// quoted, Python-style constants are mapped, anything else invalid is
// dropped.
func (r *repairer) flushLiteral() {
	if r.litStart < 0 {
		return
	}
	lit := string(r.out[r.litStart:])
	r.out = r.out[:r.litStart]
	r.litStart = -1

	if top := r.top(); top != nil && top.obj && top.expectKey && !r.keyPending {
		r.out = append(r.out, '"')
		r.out = append(r.out, lit...)
		r.out = append(r.out, '"')
		r.keyPending = true
		return
	}
	switch lit {
	case "True":
		lit = "true"
	case "False":
		lit = "false"
	case "None":
		lit = "null"
	}
	if json.Valid([]byte(lit)) {
		r.out = append(r.out, lit...)
	}
}

func isLiteralByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' ||
		c == '-' || c == '+' || c == '.' || c == '_'
}
