package policy

import (
	"strings"

	clierr "github.com/ggonzalez94/defai/internal/errors"
)

// CheckCommandAllowed enforces --enable-commands. An entry allows the exact
// command path and every subcommand under it ("stake" allows "stake build").
func CheckCommandAllowed(allowlist []string, commandPath string) error {
	if len(allowlist) == 0 {
		return nil
	}
	normPath := normalize(commandPath)
	for _, allowed := range allowlist {
		entry := normalize(allowed)
		if entry == "" {
			continue
		}
		if entry == normPath || strings.HasPrefix(normPath, entry+" ") {
			return nil
		}
	}
	return clierr.New(clierr.CodeBlocked, "command blocked by --enable-commands policy")
}

func normalize(v string) string {
	parts := strings.Fields(strings.ToLower(strings.TrimSpace(v)))
	return strings.Join(parts, " ")
}
