// Package llm defines the text-generation contract used for intent
// classification, parameter extraction and conversational replies.
package llm

import (
	"context"
	"encoding/json"
	"strings"

	clierr "github.com/ggonzalez94/defai/internal/errors"
)

type Type string

const (
	TypeObject Type = "object"
	TypeString Type = "string"
	TypeNumber Type = "number"
)

// Schema constrains a structured response. Backends that cannot enforce it
// still receive it as a hint.
type Schema struct {
	Type        Type
	Description string
	Properties  map[string]*Schema
	Required    []string
	Enum        []string
}

// Image is inline binary input sent alongside the prompt.
type Image struct {
	MIMEType string
	Data     []byte
}

type Request struct {
	System string
	Prompt string
	Images []Image
	// Schema, when set, asks for a JSON response matching it.
	Schema      *Schema
	Temperature *float32
}

type Client interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// DecodeJSON parses a model response, tolerating markdown code fences around
// the payload.
func DecodeJSON(raw string, out any) error {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), out); err != nil {
		return clierr.Wrap(clierr.CodeValidation, "model returned malformed JSON", err)
	}
	return nil
}
