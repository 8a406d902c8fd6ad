package app

import (
	"context"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	clierr "github.com/ggonzalez94/defai/internal/errors"
)

func (s *runtimeState) newPortfolioCommand() *cobra.Command {
	var mimeType string
	cmd := &cobra.Command{
		Use:   "portfolio <image>",
		Short: "Rate the risk of a portfolio screenshot",
		Long:  "Send a portfolio screenshot to the model backend and print a 1-10 risk score with suggestions. Without a model backend the reply is a moderate default.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			image, err := os.ReadFile(args[0])
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "read portfolio image", err)
			}
			if len(image) == 0 {
				return clierr.New(clierr.CodeUsage, "portfolio image is empty")
			}
			if strings.TrimSpace(mimeType) == "" {
				mimeType = http.DetectContentType(image)
			}
			if !strings.HasPrefix(mimeType, "image/") {
				return clierr.New(clierr.CodeUsage, "portfolio file is not an image ("+mimeType+")")
			}
			orch, err := s.buildOrchestrator(cmd.Context())
			if err != nil {
				return err
			}
			if s.settings.LLMProvider == "keyword" {
				s.warn("portfolio analysis needs a model backend; returning the default score")
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), s.messageTimeout())
			defer cancel()
			analysis := orch.AnalyzePortfolio(ctx, image, mimeType)
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), analysis, nil)
		},
	}
	cmd.Flags().StringVar(&mimeType, "mime-type", "", "Image MIME type (detected from content when empty)")
	return cmd
}
