package policy

import (
	"testing"

	clierr "github.com/ggonzalez94/defai/internal/errors"
)

func TestCheckCommandAllowed(t *testing.T) {
	if err := CheckCommandAllowed(nil, "ask"); err != nil {
		t.Fatalf("unexpected error with empty allowlist: %v", err)
	}
	if err := CheckCommandAllowed([]string{"pending show"}, "Pending  Show"); err != nil {
		t.Fatalf("expected command to be allowed: %v", err)
	}
	if err := CheckCommandAllowed([]string{"stake"}, "stake build"); err != nil {
		t.Fatalf("parent entry should allow subcommands: %v", err)
	}
	if err := CheckCommandAllowed([]string{"stake"}, "staker"); err == nil {
		t.Fatal("prefix match must respect word boundaries")
	}
	err := CheckCommandAllowed([]string{"networks list"}, "ask")
	if !clierr.Is(err, clierr.CodeBlocked) {
		t.Fatalf("expected blocked error, got %v", err)
	}
}
