// Package gemini implements llm.Client on the Gemini API.
package gemini

import (
	"context"
	"strings"

	"google.golang.org/genai"

	clierr "github.com/ggonzalez94/defai/internal/errors"
	"github.com/ggonzalez94/defai/internal/llm"
)

const DefaultModel = "gemini-2.0-flash"

type Client struct {
	models *genai.Models
	model  string
}

func New(ctx context.Context, apiKey, model string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, clierr.New(clierr.CodeAuth, "gemini api key is required (set GEMINI_API_KEY or llm.api_key)")
	}
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUnavailable, "create gemini client", err)
	}
	return &Client{models: client.Models, model: model}, nil
}

func (c *Client) Generate(ctx context.Context, req llm.Request) (string, error) {
	cfg := &genai.GenerateContentConfig{Temperature: req.Temperature}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.Schema != nil {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseSchema = toSchema(req.Schema)
	}
	resp, err := c.models.GenerateContent(ctx, c.model, contents(req), cfg)
	if err != nil {
		return "", clierr.Wrap(clierr.CodeUnavailable, "gemini generate content", err)
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", clierr.New(clierr.CodeUnavailable, "gemini returned an empty response")
	}
	return text, nil
}

func contents(req llm.Request) []*genai.Content {
	if len(req.Images) == 0 {
		return genai.Text(req.Prompt)
	}
	parts := []*genai.Part{genai.NewPartFromText(req.Prompt)}
	for _, img := range req.Images {
		parts = append(parts, genai.NewPartFromBytes(img.Data, img.MIMEType))
	}
	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
}

func toSchema(s *llm.Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Description: s.Description,
		Required:    s.Required,
		Enum:        s.Enum,
	}
	switch s.Type {
	case llm.TypeObject:
		out.Type = genai.TypeObject
	case llm.TypeNumber:
		out.Type = genai.TypeNumber
	default:
		out.Type = genai.TypeString
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = toSchema(prop)
		}
	}
	return out
}
