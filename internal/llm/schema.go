package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Schema is a named JSON Schema a payload is checked against.
type Schema struct {
	Name        string // kebab-case, e.g. "text-drill"
	Description string
	Definition  map[string]any

	once     sync.Once
	compiled *jsonschema.Schema
	err      error
}

func (s *Schema) compile() (*jsonschema.Schema, error) {
	s.once.Do(func() {
		def, err := json.Marshal(s.Definition)
		if err != nil {
			s.err = fmt.Errorf("marshal schema %q: %w", s.Name, err)
			return
		}
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(def))
		if err != nil {
			s.err = fmt.Errorf("parse schema %q: %w", s.Name, err)
			return
		}
		url := "mem://" + s.Name + ".json"
		c := jsonschema.NewCompiler()
		if err := c.AddResource(url, doc); err != nil {
			s.err = fmt.Errorf("add schema %q: %w", s.Name, err)
			return
		}
		s.compiled, s.err = c.Compile(url)
	})
	return s.compiled, s.err
}

// wireKeywords are the schema keywords the vendors' structured output modes
// accept.
var wireKeywords = map[string]bool{
	"type":        true,
	"description": true,
	"properties":  true,
	"required":    true,
	"items":       true,
	"enum":        true,
}

// Wire returns the shape of the schema as sent to a vendor: structural
// keywords only, with every object closed. Value constraints such as
// minLength are left to Validate.
func (s *Schema) Wire() map[string]any {
	return wireCopy(s.Definition)
}

func wireCopy(def map[string]any) map[string]any {
	out := make(map[string]any, len(def)+1)
	for k, v := range def {
		if !wireKeywords[k] {
			continue
		}
		switch k {
		case "properties":
			props, _ := v.(map[string]any)
			cp := make(map[string]any, len(props))
			for name, p := range props {
				if pm, ok := p.(map[string]any); ok {
					cp[name] = wireCopy(pm)
				}
			}
			out[k] = cp
		case "items":
			if im, ok := v.(map[string]any); ok {
				out[k] = wireCopy(im)
			}
		default:
			out[k] = v
		}
	}
	if out["type"] == "object" {
		out["additionalProperties"] = false
	}
	return out
}

// Validate checks raw against schema. A nil schema accepts anything. Any
// failure is an *Error of KindInvalid.
func Validate(schema *Schema, raw []byte) error {
	if schema == nil {
		return nil
	}
	compiled, err := schema.compile()
	if err != nil {
		return &Error{Kind: KindInvalid, Err: err}
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return &Error{Kind: KindInvalid, Err: fmt.Errorf("not JSON: %w", err)}
	}
	if err := compiled.Validate(doc); err != nil {
		return &Error{Kind: KindInvalid, Err: fmt.Errorf("%s: %w", schema.Name, err)}
	}
	return nil
}
