// Package advisor implements the decision-source port against any
// OpenAI-compatible chat-completions API (OpenAI, DeepSeek, and friends).
package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"aiTraderBot/internal/domain"
	"aiTraderBot/internal/ports"
)

const systemPrompt = `You are an expert quantitative trader and portfolio manager.
You analyze market data, technical indicators and sentiment to make informed trading decisions.

Your goals:
1. Preserve capital (risk management is paramount)
2. Generate consistent returns
3. Follow disciplined entry/exit rules

Always respond in this EXACT JSON format (no extra text):
{
    "action": "BUY" or "SELL" or "HOLD",
    "symbol": "SYMBOL",
    "confidence": 0.0-1.0,
    "reasoning": "Your detailed reasoning here",
    "stop_loss_pct": 2.0,
    "take_profit_pct": 6.0,
    "position_size_pct": 10.0
}

Key principles:
- Only trade when you have high confidence (>0.7)
- Always set stop losses (typically 2-3%)
- Target 2:1 or better risk/reward
- Consider the market regime`

// Client implements ports.Advisor over an OpenAI-compatible HTTP API.
type Client struct {
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
	logger      ports.Logger
}

// Config holds configuration for the advisor client.
type Config struct {
	APIKey      string
	BaseURL     string // e.g. https://api.deepseek.com/v1
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	Logger      ports.Logger
}

// New creates an advisor client.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for advisor client")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: advisor API key is empty", ports.ErrConfigurationError)
	}
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1000
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		apiKey:      cfg.APIKey,
		baseURL:     baseURL,
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   maxTokens,
		httpClient:  &http.Client{Timeout: timeout},
		logger:      cfg.Logger,
	}, nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Recommend queries the model and returns a validated recommendation.
// Any schema violation in the reply is reported as an error so the engine
// can substitute its HOLD fallback.
func (c *Client) Recommend(ctx context.Context, snapshot *domain.MarketSnapshot, portfolio *domain.PortfolioSummary) (*domain.Recommendation, error) {
	content, err := c.complete(ctx, buildPrompt(snapshot, portfolio))
	if err != nil {
		return nil, err
	}

	rec, err := parseRecommendation(content)
	if err != nil {
		c.logger.Warn(ctx, "Advisor reply failed validation", map[string]interface{}{"error": err.Error()})
		return nil, err
	}
	return rec, nil
}

func (c *Client) complete(ctx context.Context, userPrompt string) (string, error) {
	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("encode advisor request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build advisor request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ports.ErrAdvisorUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read reply: %v", ports.ErrAdvisorUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: HTTP %d: %s", ports.ErrAdvisorUnavailable, resp.StatusCode, truncate(string(body), 200))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("%w: decode reply: %v", ports.ErrAdvisorUnavailable, err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("%w: %s", ports.ErrAdvisorUnavailable, parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%w: reply contains no choices", ports.ErrAdvisorUnavailable)
	}
	return parsed.Choices[0].Message.Content, nil
}

// wireRecommendation is the JSON shape the model is instructed to produce.
// Percentage fields arrive as percent points (2.0 = 2%) and are converted to
// fractions at this boundary.
type wireRecommendation struct {
	Action          string   `json:"action"`
	Symbol          string   `json:"symbol"`
	Confidence      *float64 `json:"confidence"`
	Reasoning       string   `json:"reasoning"`
	StopLossPct     float64  `json:"stop_loss_pct"`
	TakeProfitPct   float64  `json:"take_profit_pct"`
	PositionSizePct float64  `json:"position_size_pct"`
}

// parseRecommendation extracts the JSON object from the model's reply text
// (models sometimes wrap it in prose) and validates it structurally.
func parseRecommendation(content string) (*domain.Recommendation, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end <= start {
		return nil, fmt.Errorf("%w: no JSON object in reply", ports.ErrMalformedRecommendation)
	}

	var wire wireRecommendation
	if err := json.Unmarshal([]byte(content[start:end+1]), &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrMalformedRecommendation, err)
	}
	if wire.Action == "" {
		return nil, fmt.Errorf("%w: missing action", ports.ErrMalformedRecommendation)
	}
	if wire.Confidence == nil {
		return nil, fmt.Errorf("%w: missing confidence", ports.ErrMalformedRecommendation)
	}

	rec := &domain.Recommendation{
		Action:          domain.Action(strings.ToUpper(wire.Action)),
		Symbol:          wire.Symbol,
		Confidence:      *wire.Confidence,
		StopLossPct:     wire.StopLossPct / 100,
		TakeProfitPct:   wire.TakeProfitPct / 100,
		PositionSizePct: wire.PositionSizePct / 100,
		Rationale:       wire.Reasoning,
	}
	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrMalformedRecommendation, err)
	}
	return rec, nil
}

func buildPrompt(snapshot *domain.MarketSnapshot, portfolio *domain.PortfolioSummary) string {
	var sb strings.Builder

	sb.WriteString("CURRENT MARKET ANALYSIS REQUEST\n\nPortfolio State:\n")
	fmt.Fprintf(&sb, "- Cash Available: $%.2f\n", portfolio.Cash)
	fmt.Fprintf(&sb, "- Positions: %d\n", len(portfolio.Positions))
	fmt.Fprintf(&sb, "- Total Value: $%.2f\n", portfolio.TotalValue)
	fmt.Fprintf(&sb, "- Today's P&L: %.2f%%\n\n", portfolio.DailyPnLPct)

	for _, pos := range portfolio.Positions {
		fmt.Fprintf(&sb, "Held: %s qty=%.0f entry=$%.2f mark=$%.2f stop=$%.2f target=$%.2f\n",
			pos.Symbol, pos.Quantity, pos.EntryPrice, pos.CurrentPrice, pos.StopLoss, pos.TakeProfit)
	}

	fmt.Fprintf(&sb, "\nMarket Regime: %s\n\n", snapshot.Regime)
	for _, sym := range snapshot.Symbols {
		fmt.Fprintf(&sb, "Symbol: %s\n", sym.Symbol)
		fmt.Fprintf(&sb, "Current Price: $%.2f\n", sym.Price)
		fmt.Fprintf(&sb, "Price Change (1D): %.2f%%\n", sym.Change1D*100)
		fmt.Fprintf(&sb, "Price Change (5D): %.2f%%\n", sym.Change5D*100)
		fmt.Fprintf(&sb, "RSI: %.1f\n", sym.RSI)
		fmt.Fprintf(&sb, "SMA 20: $%.2f\n", sym.SMA20)
		fmt.Fprintf(&sb, "SMA 50: $%.2f\n\n", sym.SMA50)
	}

	sb.WriteString("Based on this analysis, what is your trading decision?\n")
	sb.WriteString("Respond ONLY with the JSON format specified in your system instructions.\n")
	return sb.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
