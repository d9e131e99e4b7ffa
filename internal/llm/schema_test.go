package llm

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func cardSchema() *Schema {
	return &Schema{
		Name: "vocab-card",
		Definition: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"word":           map[string]any{"type": "string", "minLength": 1},
				"correct":        map[string]any{"type": "integer", "minimum": 0},
				"part_of_speech": map[string]any{"type": "string", "enum": []any{"noun", "verb", "adjective"}},
				"examples": map[string]any{
					"type":  "array",
					"items": map[string]any{"type": "string"},
				},
			},
			"required": []any{"word", "correct"},
		},
	}
}

func TestValidate(t *testing.T) {
	schema := cardSchema()
	tests := []struct {
		name  string
		raw   string
		valid bool
	}{
		{"complete", `{"word":"apple","correct":3,"part_of_speech":"noun","examples":["an apple"]}`, true},
		{"optional omitted", `{"word":"run","correct":0}`, true},
		{"missing required", `{"word":"pear"}`, false},
		{"wrong type", `{"word":"fig","correct":"three"}`, false},
		{"bad enum", `{"word":"slowly","correct":1,"part_of_speech":"adverb"}`, false},
		{"blank word", `{"word":"","correct":1}`, false},
		{"bad item", `{"word":"bread","correct":1,"examples":[1]}`, false},
		{"not json", `{not json}`, false},
		{"empty", ``, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(schema, []byte(tt.raw))
			if tt.valid {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("err = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestValidate_NilSchemaAcceptsAnything(t *testing.T) {
	if err := Validate(nil, []byte(`not even json`)); err != nil {
		t.Fatalf("Validate(nil) = %v", err)
	}
}

func TestValidate_BrokenSchema(t *testing.T) {
	broken := &Schema{Name: "broken", Definition: map[string]any{"type": 42}}
	err := Validate(broken, []byte(`{}`))
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("err = %v, want ErrInvalid", err)
	}
	// The compile error is remembered.
	if again := Validate(broken, []byte(`{}`)); again == nil {
		t.Fatal("second Validate passed")
	}
}

func TestSchemaWire(t *testing.T) {
	schema := cardSchema()
	want := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []any{"word", "correct"},
		"properties": map[string]any{
			"word":           map[string]any{"type": "string"},
			"correct":        map[string]any{"type": "integer"},
			"part_of_speech": map[string]any{"type": "string", "enum": []any{"noun", "verb", "adjective"}},
			"examples": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
		},
	}
	if diff := cmp.Diff(want, schema.Wire()); diff != "" {
		t.Errorf("Wire() mismatch (-want +got):\n%s", diff)
	}

	word := schema.Definition["properties"].(map[string]any)["word"].(map[string]any)
	if word["minLength"] != 1 {
		t.Error("Wire must not modify the definition")
	}
}
