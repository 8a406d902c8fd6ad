package app

import (
	"github.com/spf13/cobra"

	"github.com/ggonzalez94/defai/internal/model"
)

func (s *runtimeState) newPendingCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "pending",
		Short: "Inspect or clear a session's staged transaction",
	}

	var showSession, showWallet string
	show := &cobra.Command{
		Use:   "show",
		Short: "Show the staged transaction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			queue, err := s.openQueue(cmd.Context())
			if err != nil {
				return err
			}
			session := askSessionID(showSession, showWallet)
			s.lastSession = session
			slot := model.PendingSlot{Session: session}
			tx, ok, err := queue.Take(cmd.Context(), session)
			if err != nil {
				return err
			}
			if ok {
				slot.Staged = tx
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), slot, nil)
		},
	}
	show.Flags().StringVar(&showSession, "session", "", "Session id")
	show.Flags().StringVar(&showWallet, "wallet", "", "Wallet whose one-shot session to inspect")

	var clearSession, clearWallet string
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Discard the staged transaction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			queue, err := s.openQueue(cmd.Context())
			if err != nil {
				return err
			}
			session := askSessionID(clearSession, clearWallet)
			s.lastSession = session
			if err := queue.Clear(cmd.Context(), session); err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), model.PendingSlot{Session: session, Cleared: true}, nil)
		},
	}
	clearCmd.Flags().StringVar(&clearSession, "session", "", "Session id")
	clearCmd.Flags().StringVar(&clearWallet, "wallet", "", "Wallet whose one-shot session to clear")

	root.AddCommand(show)
	root.AddCommand(clearCmd)
	return root
}
