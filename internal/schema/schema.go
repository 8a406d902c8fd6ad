// Package schema describes the command tree for agents driving the CLI.
package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	clierr "github.com/ggonzalez94/defai/internal/errors"
)

// AnnotationInteractive marks commands that read stdin and print free text
// instead of an envelope.
const AnnotationInteractive = "defai/interactive"

type CommandSchema struct {
	Path        string          `json:"path"`
	Use         string          `json:"use"`
	Short       string          `json:"short"`
	Long        string          `json:"long,omitempty"`
	Args        []ArgSchema     `json:"args,omitempty"`
	Interactive bool            `json:"interactive,omitempty"`
	Flags       []FlagSchema    `json:"flags,omitempty"`
	GlobalFlags []FlagSchema    `json:"global_flags,omitempty"`
	Subcommands []CommandSchema `json:"subcommands,omitempty"`
}

type ArgSchema struct {
	Name     string `json:"name"`
	Required bool   `json:"required"`
}

type FlagSchema struct {
	Name      string `json:"name"`
	Shorthand string `json:"shorthand,omitempty"`
	Type      string `json:"type"`
	Usage     string `json:"usage"`
	Default   string `json:"default,omitempty"`
	Required  bool   `json:"required,omitempty"`
}

// Build serializes the command at commandPath (space separated, relative to
// root). Global flags are reported once, on the root.
func Build(root *cobra.Command, commandPath string) (CommandSchema, error) {
	cmd := root
	for _, part := range strings.Fields(commandPath) {
		next := findChild(cmd, part)
		if next == nil {
			return CommandSchema{}, clierr.New(clierr.CodeUsage, fmt.Sprintf("command not found: %s", commandPath))
		}
		cmd = next
	}
	s := serialize(cmd)
	if cmd == root {
		s.GlobalFlags = flagSchemas(root.PersistentFlags())
	}
	return s, nil
}

func findChild(cmd *cobra.Command, name string) *cobra.Command {
	for _, c := range cmd.Commands() {
		if c.Name() == name || c.HasAlias(name) {
			return c
		}
	}
	return nil
}

func serialize(cmd *cobra.Command) CommandSchema {
	s := CommandSchema{
		Path:        strings.TrimSpace(cmd.CommandPath()),
		Use:         cmd.Use,
		Short:       cmd.Short,
		Long:        cmd.Long,
		Args:        parseArgs(cmd.Use),
		Interactive: cmd.Annotations[AnnotationInteractive] == "true",
		Flags:       flagSchemas(cmd.LocalNonPersistentFlags()),
	}
	for _, sub := range cmd.Commands() {
		if !sub.IsAvailableCommand() || sub.Name() == "completion" {
			continue
		}
		s.Subcommands = append(s.Subcommands, serialize(sub))
	}
	return s
}

// parseArgs reads positional arguments from a usage line: <x> is required,
// [x] optional.
func parseArgs(use string) []ArgSchema {
	fields := strings.Fields(use)
	if len(fields) < 2 {
		return nil
	}
	var out []ArgSchema
	for _, field := range fields[1:] {
		switch {
		case strings.HasPrefix(field, "<") && strings.HasSuffix(field, ">"):
			out = append(out, ArgSchema{Name: strings.Trim(field, "<>"), Required: true})
		case strings.HasPrefix(field, "[") && strings.HasSuffix(field, "]"):
			out = append(out, ArgSchema{Name: strings.Trim(field, "[]")})
		}
	}
	return out
}

func flagSchemas(set *pflag.FlagSet) []FlagSchema {
	items := []FlagSchema{}
	set.VisitAll(func(f *pflag.Flag) {
		if f.Hidden || f.Name == "help" {
			return
		}
		_, required := f.Annotations[cobra.BashCompOneRequiredFlag]
		items = append(items, FlagSchema{
			Name:      f.Name,
			Shorthand: f.Shorthand,
			Type:      f.Value.Type(),
			Usage:     f.Usage,
			Default:   f.DefValue,
			Required:  required,
		})
	})
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items
}
