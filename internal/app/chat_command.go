package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	clierr "github.com/ggonzalez94/defai/internal/errors"
	"github.com/ggonzalez94/defai/internal/id"
	"github.com/ggonzalez94/defai/internal/model"
	"github.com/ggonzalez94/defai/internal/orchestrator"
	"github.com/ggonzalez94/defai/internal/schema"
)

var (
	promptColor = color.New(color.FgCyan, color.Bold)
	replyColor  = color.New(color.FgGreen, color.Bold)
	warnColor   = color.New(color.FgYellow)
)

func (s *runtimeState) newChatCommand() *cobra.Command {
	var wallet, sessionID string
	cmd := &cobra.Command{
		Use:         "chat",
		Short:       "Start an interactive session",
		Long:        "Start an interactive session. Type CONFIRM to submit a staged transaction, /wallet <address> to connect a wallet, /reset to clear state and exit to leave.",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{schema.AnnotationInteractive: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, err := s.buildOrchestrator(cmd.Context())
			if err != nil {
				return err
			}
			session := orchestrator.NewSession(wallet)
			if strings.TrimSpace(sessionID) != "" {
				session.ID = strings.TrimSpace(sessionID)
			}
			s.lastSession = session.ID
			return s.repl(cmd.Context(), orch, session, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&wallet, "wallet", "", "Connected wallet address")
	cmd.Flags().StringVar(&sessionID, "session", "", "Resume a session id")
	return cmd
}

func (s *runtimeState) repl(ctx context.Context, orch *orchestrator.Orchestrator, session *orchestrator.Session, in io.Reader, w io.Writer) error {
	for _, warning := range s.lastWarnings {
		_, _ = warnColor.Fprintf(w, "warning: %s\n", warning)
	}
	_, _ = fmt.Fprintf(w, "session %s on %s\n", session.ID, s.network.Name)

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		_, _ = promptColor.Fprint(w, "you> ")
		if !scanner.Scan() {
			_, _ = fmt.Fprintln(w)
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case strings.EqualFold(line, "exit"), strings.EqualFold(line, "quit"):
			return nil
		}
		msgCtx, cancel := context.WithTimeout(ctx, s.messageTimeout())
		text, ok := connectWallet(msgCtx, orch, session, line)
		if !ok {
			text = orch.Handle(msgCtx, session, line).Text
		}
		cancel()
		_, _ = replyColor.Fprint(w, "defai> ")
		_, _ = fmt.Fprintf(w, "%s\n\n", text)
	}
	if err := scanner.Err(); err != nil {
		return clierr.Wrap(clierr.CodeInternal, "read input", err)
	}
	return nil
}

// connectWallet handles the REPL-only "/wallet <address>" command.
func connectWallet(ctx context.Context, orch *orchestrator.Orchestrator, session *orchestrator.Session, line string) (string, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 || !strings.EqualFold(fields[0], "/wallet") {
		return "", false
	}
	if len(fields) != 2 || !id.IsAddress(fields[1]) {
		return "Usage: /wallet <0x address>", true
	}
	return orch.ConnectWallet(ctx, session, fields[1]).Text, true
}

func (s *runtimeState) newAskCommand() *cobra.Command {
	var wallet, sessionID string
	cmd := &cobra.Command{
		Use:   "ask <message>",
		Short: "Send one message and print the reply",
		Long:  "Send one message and print the reply. Staged transactions persist in the pending queue, so a later `ask CONFIRM` with the same session submits them.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			message := strings.TrimSpace(strings.Join(args, " "))
			if message == "" {
				return clierr.New(clierr.CodeUsage, "message is required")
			}
			orch, err := s.buildOrchestrator(cmd.Context())
			if err != nil {
				return err
			}
			session := &orchestrator.Session{ID: askSessionID(sessionID, wallet), Wallet: strings.TrimSpace(wallet)}
			s.lastSession = session.ID

			ctx, cancel := context.WithTimeout(cmd.Context(), s.messageTimeout())
			defer cancel()
			reply := orch.Handle(ctx, session, message)

			data := model.ChatReply{
				Session: session.ID,
				Text:    reply.Text,
				Intent:  reply.Intent,
				TxHash:  reply.TxHash,
			}
			if reply.Staged != nil {
				data.Staged = reply.Staged
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), data, nil)
		},
	}
	cmd.Flags().StringVar(&wallet, "wallet", "", "Connected wallet address")
	cmd.Flags().StringVar(&sessionID, "session", "", "Session id (defaults to one derived from --wallet)")
	return cmd
}

// askSessionID keeps one-shot invocations for the same wallet on the same
// pending slot.
func askSessionID(explicit, wallet string) string {
	if v := strings.TrimSpace(explicit); v != "" {
		return v
	}
	if id.IsAddress(wallet) {
		return "wallet-" + strings.ToLower(strings.TrimSpace(wallet))
	}
	return "default"
}

// messageTimeout bounds the whole pipeline for one message.
func (s *runtimeState) messageTimeout() time.Duration {
	return 4 * s.settings.Timeout
}
