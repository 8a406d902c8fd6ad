package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ggonzalez94/defai/internal/llm"
)

const (
	fallbackRiskScore = 5.0
	PortfolioFallback = "Sorry, I was unable to properly analyze the portfolio image. Please try again."
)

const portfolioPrompt = `Analyze the investment portfolio shown in the image.
Rate its overall risk from 1 (very conservative) to 10 (very speculative) and
explain the rating in a few sentences, including how the holdings could move
to Flare ecosystem assets such as FLR, sFLR or USDC.e.
Respond with JSON: {"risk_score": <number 1-10>, "text": "<analysis>"}`

type PortfolioAnalysis struct {
	RiskScore float64 `json:"risk_score"`
	Text      string  `json:"text"`
}

// AnalyzePortfolio rates a portfolio screenshot. Any backend or parse
// failure yields a moderate score with an apology.
func (o *Orchestrator) AnalyzePortfolio(ctx context.Context, image []byte, mimeType string) PortfolioAnalysis {
	fallback := PortfolioAnalysis{RiskScore: fallbackRiskScore, Text: PortfolioFallback}
	if o.chat == nil || len(image) == 0 {
		return fallback
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	raw, err := o.chat.Generate(ctx, llm.Request{
		System: portfolioSystem,
		Prompt: portfolioPrompt,
		Images: []llm.Image{{MIMEType: mimeType, Data: image}},
	})
	if err != nil {
		o.log.Error("portfolio analysis failed", "error", err)
		return fallback
	}
	analysis, err := parsePortfolio(raw)
	if err != nil {
		o.log.Error("portfolio analysis failed", "error", err)
		return fallback
	}
	return analysis
}

const portfolioSystem = "You are a DeFi assistant on the Flare network."

// parsePortfolio reads the outermost JSON object in a model reply.
func parsePortfolio(raw string) (PortfolioAnalysis, error) {
	start, end := strings.Index(raw, "{"), strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return PortfolioAnalysis{}, fmt.Errorf("no JSON object in response")
	}
	var wire struct {
		RiskScore *float64 `json:"risk_score"`
		Text      *string  `json:"text"`
	}
	if err := json.Unmarshal([]byte(raw[start:end+1]), &wire); err != nil {
		return PortfolioAnalysis{}, fmt.Errorf("decode analysis: %w", err)
	}
	if wire.RiskScore == nil || wire.Text == nil {
		return PortfolioAnalysis{}, fmt.Errorf("analysis is missing risk_score or text")
	}
	if *wire.RiskScore < 1 || *wire.RiskScore > 10 {
		return PortfolioAnalysis{}, fmt.Errorf("risk score %v outside 1-10", *wire.RiskScore)
	}
	return PortfolioAnalysis{RiskScore: *wire.RiskScore, Text: strings.TrimSpace(*wire.Text)}, nil
}
