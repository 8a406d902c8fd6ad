package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ggonzalez94/defai/internal/cache"
	"github.com/ggonzalez94/defai/internal/chain"
	"github.com/ggonzalez94/defai/internal/config"
	clierr "github.com/ggonzalez94/defai/internal/errors"
	"github.com/ggonzalez94/defai/internal/logger"
	"github.com/ggonzalez94/defai/internal/model"
	"github.com/ggonzalez94/defai/internal/orchestrator"
	"github.com/ggonzalez94/defai/internal/out"
	"github.com/ggonzalez94/defai/internal/pending"
	"github.com/ggonzalez94/defai/internal/policy"
	"github.com/ggonzalez94/defai/internal/registry"
	"github.com/ggonzalez94/defai/internal/schema"
	"github.com/ggonzalez94/defai/internal/version"
)

type Runner struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	now    func() time.Time
}

func NewRunner() *Runner {
	r := NewRunnerWithWriters(os.Stdout, os.Stderr)
	r.stdin = os.Stdin
	return r
}

func NewRunnerWithWriters(stdout, stderr io.Writer) *Runner {
	return &Runner{
		stdin:  strings.NewReader(""),
		stdout: stdout,
		stderr: stderr,
		now:    time.Now,
	}
}

// WithInput sets the reader the chat REPL consumes.
func (r *Runner) WithInput(in io.Reader) *Runner {
	r.stdin = in
	return r
}

type runtimeState struct {
	runner       *Runner
	flags        config.GlobalFlags
	settings     config.Settings
	network      registry.Network
	root         *cobra.Command
	lastCommand  string
	lastSession  string
	lastWarnings []string

	cache     *cache.Store
	queue     pending.Queue
	reader    *chain.Client
	submitter *chain.Client
	orch      *orchestrator.Orchestrator
}

func (r *Runner) Run(args []string) int {
	state := &runtimeState{runner: r}
	defer state.close()

	root := state.newRootCommand()
	state.root = root
	root.SetArgs(args)
	root.SetIn(r.stdin)
	root.SetOut(r.stdout)
	root.SetErr(r.stderr)
	root.SilenceUsage = true
	root.SilenceErrors = true

	if err := normalizeRunError(root.ExecuteContext(context.Background())); err != nil {
		state.renderError("", err, state.lastWarnings)
		return clierr.ExitCode(err)
	}
	return 0
}

func (s *runtimeState) close() {
	if s.queue != nil {
		_ = s.queue.Close()
	}
	if s.cache != nil {
		_ = s.cache.Close()
	}
	if s.reader != nil {
		s.reader.Close()
	}
	if s.submitter != nil {
		s.submitter.Close()
	}
	logger.Close()
}

func (s *runtimeState) newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   version.CLIName,
		Short: "Conversational DeFi assistant for the Flare network",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			settings, err := config.Load(s.flags)
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "load configuration", err)
			}
			s.settings = settings

			path := trimRootPath(cmd.CommandPath())
			s.lastCommand = path
			if err := policy.CheckCommandAllowed(settings.EnableCommands, path); err != nil {
				return err
			}

			network, err := registry.LookupNetwork(settings.Network)
			if err != nil {
				return err
			}
			s.network = network

			if err := logger.Init(logger.Config{
				Level:       settings.LogLevel,
				Format:      settings.LogFormat,
				OutputPaths: settings.LogPaths,
			}); err != nil {
				return clierr.Wrap(clierr.CodeUsage, "configure logging", err)
			}
			return nil
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return clierr.Wrap(clierr.CodeUsage, "parse flags", err)
	})
	s.bindGlobalFlags(cmd.PersistentFlags())

	cmd.AddCommand(s.newChatCommand())
	cmd.AddCommand(s.newAskCommand())
	cmd.AddCommand(s.newPendingCommand())
	cmd.AddCommand(s.newNetworksCommand())
	cmd.AddCommand(s.newQuoteCommand())
	cmd.AddCommand(s.newStakeCommand())
	cmd.AddCommand(s.newPortfolioCommand())
	cmd.AddCommand(s.newSchemaCommand())
	cmd.AddCommand(newVersionCommand())

	return cmd
}

func (s *runtimeState) bindGlobalFlags(fs *pflag.FlagSet) {
	f := &s.flags
	fs.BoolVar(&f.JSON, "json", false, "Print the JSON envelope (default)")
	fs.BoolVar(&f.Plain, "plain", false, "Print plain text")
	fs.StringVar(&f.Select, "select", "", "Comma-separated data fields to keep; dotted paths reach nested fields")
	fs.BoolVar(&f.ResultsOnly, "results-only", false, "Print only the data payload")
	fs.StringVar(&f.EnableCommands, "enable-commands", "", "Comma-separated allowlist of command paths")
	fs.StringVar(&f.Timeout, "timeout", "", "Timeout for RPC, bridge and model calls")
	fs.StringVar(&f.ConfigPath, "config", "", "Config file path")
	fs.StringVar(&f.Network, "network", "", "Network to build transactions on (flare, coston2)")
	fs.StringVar(&f.RPCURL, "rpc-url", "", "RPC endpoint override")
	fs.StringVar(&f.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&f.QueueBackend, "queue", "", "Pending transaction store (memory, sqlite, redis)")
	fs.BoolVar(&f.NoCache, "no-cache", false, "Skip the classification cache")
}

func newVersionCommand() *cobra.Command {
	var long bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the CLI version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			text := version.CLIVersion
			if long {
				text = version.Long()
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), text)
			return err
		},
	}
	cmd.Flags().BoolVar(&long, "long", false, "Include commit and build date")
	return cmd
}

func (s *runtimeState) newSchemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schema [command path]",
		Short: "Describe commands, arguments and flags as JSON",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := schema.Build(s.root, strings.Join(args, " "))
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), data, nil)
		},
	}
}

func (s *runtimeState) meta(commandPath string) model.EnvelopeMeta {
	if strings.TrimSpace(commandPath) == "" {
		commandPath = s.lastCommand
	}
	if commandPath == "" {
		commandPath = version.CLIName
	}
	return model.EnvelopeMeta{
		RequestID: strings.ReplaceAll(uuid.NewString(), "-", ""),
		Timestamp: s.runner.now().UTC(),
		Command:   commandPath,
		Network:   s.network.Slug,
		Session:   s.lastSession,
	}
}

func (s *runtimeState) emitSuccess(commandPath string, data any, warnings []string) error {
	env := model.Envelope{
		Version:  model.EnvelopeVersion,
		Success:  true,
		Data:     data,
		Warnings: append(append([]string(nil), s.lastWarnings...), warnings...),
		Meta:     s.meta(commandPath),
	}
	return out.Render(s.runner.stdout, env, s.settings)
}

// renderError always writes a full envelope to stderr, whatever --select or
// --results-only asked for.
func (s *runtimeState) renderError(commandPath string, err error, warnings []string) {
	body := &model.ErrorBody{
		Code:    clierr.ExitCode(err),
		Type:    clierr.TypeName(clierr.CodeInternal),
		Message: err.Error(),
	}
	if cErr, ok := clierr.As(err); ok {
		body.Type = clierr.TypeName(cErr.Code)
	}
	settings := s.settings
	if settings.OutputMode == "" {
		settings.OutputMode = "json"
	}
	settings.ResultsOnly = false
	settings.SelectFields = nil
	env := model.Envelope{
		Version:  model.EnvelopeVersion,
		Data:     []any{},
		Error:    body,
		Warnings: warnings,
		Meta:     s.meta(commandPath),
	}
	_ = out.Render(s.runner.stderr, env, settings)
}

func (s *runtimeState) warn(msg string) {
	s.lastWarnings = append(s.lastWarnings, msg)
}

func trimRootPath(path string) string {
	if _, rest, ok := strings.Cut(strings.TrimSpace(path), " "); ok {
		return strings.Join(strings.Fields(rest), " ")
	}
	return path
}

// cobra reports argument and flag mistakes as plain errors.
var usageErrorMarkers = []string{
	"unknown command",
	"unknown flag",
	"unknown shorthand flag",
	"required flag(s)",
	"flag needs an argument",
	"requires at least",
	"requires exactly",
	"accepts ",
	"invalid argument",
	"invalid args",
}

func normalizeRunError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := clierr.As(err); ok {
		return err
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range usageErrorMarkers {
		if strings.Contains(msg, marker) {
			return clierr.Wrap(clierr.CodeUsage, "invalid command input", err)
		}
	}
	return clierr.Wrap(clierr.CodeInternal, "execute command", err)
}
