package gemini

import (
	"context"
	"testing"

	"google.golang.org/genai"

	clierr "github.com/ggonzalez94/defai/internal/errors"
	"github.com/ggonzalez94/defai/internal/llm"
)

func TestToSchema(t *testing.T) {
	got := toSchema(&llm.Schema{
		Type: llm.TypeObject,
		Properties: map[string]*llm.Schema{
			"category": {Type: llm.TypeString, Enum: []string{"SEND_TOKEN", "CONVERSATIONAL"}},
			"amount":   {Type: llm.TypeNumber},
		},
		Required: []string{"category"},
	})
	if got.Type != genai.TypeObject || len(got.Required) != 1 {
		t.Fatalf("unexpected root schema: %+v", got)
	}
	if got.Properties["category"].Type != genai.TypeString || len(got.Properties["category"].Enum) != 2 {
		t.Fatalf("unexpected category schema: %+v", got.Properties["category"])
	}
	if got.Properties["amount"].Type != genai.TypeNumber {
		t.Fatalf("unexpected amount schema: %+v", got.Properties["amount"])
	}
}

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := New(context.Background(), " ", ""); !clierr.Is(err, clierr.CodeAuth) {
		t.Fatalf("expected auth error, got %v", err)
	}
}

func TestContentsCarriesImages(t *testing.T) {
	plain := contents(llm.Request{Prompt: "hi"})
	if len(plain) != 1 || len(plain[0].Parts) != 1 || plain[0].Parts[0].Text != "hi" {
		t.Fatalf("unexpected text-only contents: %+v", plain)
	}

	got := contents(llm.Request{
		Prompt: "rate this",
		Images: []llm.Image{{MIMEType: "image/png", Data: []byte{0x89, 0x50}}},
	})
	if len(got) != 1 || got[0].Role != string(genai.RoleUser) || len(got[0].Parts) != 2 {
		t.Fatalf("unexpected contents: %+v", got)
	}
	blob := got[0].Parts[1].InlineData
	if blob == nil || blob.MIMEType != "image/png" || len(blob.Data) != 2 {
		t.Fatalf("image part missing: %+v", got[0].Parts[1])
	}
}
