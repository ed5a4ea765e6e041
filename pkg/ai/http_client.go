package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ATR1285/Procure/pkg/config"
)

var jsonFence = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// HTTPAnalyzer calls a chat-completion endpoint and parses the model's
// JSON answer into a Result.
type HTTPAnalyzer struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
	logger  *zap.Logger
}

func NewHTTPAnalyzer(cfg *config.AIConfig, logger *zap.Logger) *HTTPAnalyzer {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPAnalyzer{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (a *HTTPAnalyzer) AnalyzeInvoice(ctx context.Context, req Request) (*Result, error) {
	if a.baseURL == "" {
		return nil, fmt.Errorf("ai analyzer: no endpoint configured")
	}

	body, err := json.Marshal(chatRequest{
		Model: a.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemInstruction},
			{Role: "user", Content: buildPrompt(req)},
		},
		Temperature: 0.3,
		MaxTokens:   500,
	})
	if err != nil {
		return nil, fmt.Errorf("ai analyzer: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ai analyzer: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if a.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ai analyzer: call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ai analyzer: unexpected status %d", resp.StatusCode)
	}

	var chat chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return nil, fmt.Errorf("ai analyzer: decode response: %w", err)
	}
	if len(chat.Choices) == 0 {
		return nil, fmt.Errorf("ai analyzer: empty response")
	}

	result, err := parseResult(chat.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	a.logger.Debug("ai analysis complete",
		zap.String("raw_vendor", req.RawVendor),
		zap.Int("confidence", result.Confidence),
	)
	return result, nil
}

const systemInstruction = "You are a procurement assistant specializing in invoice analysis " +
	"and vendor matching. Always return valid JSON with no markdown fences or explanations."

func buildPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Match the raw vendor name %q to one of these known vendors:\n", req.RawVendor)
	for _, c := range req.Candidates {
		fmt.Fprintf(&b, "- ID %d: %s\n", c.ID, c.Name)
	}
	fmt.Fprintf(&b, "\nInitial invoice amount: %.2f\n", req.Amount)
	if req.RawText != "" {
		fmt.Fprintf(&b, "\nRAW DOCUMENT TEXT:\n%s\n\nVerify or extract the correct vendor name and total amount from the text.\n", req.RawText)
	}
	b.WriteString("\nReturn ONLY a JSON object: " +
		`{"best_match_id": int or null, "extracted_vendor": "string", ` +
		`"extracted_amount": float, "confidence": 0-100, "reasoning": "string"}`)
	return b.String()
}

// parseResult accepts either bare JSON or JSON wrapped in markdown
// fences, which some models emit despite instructions.
func parseResult(content string) (*Result, error) {
	var result Result
	if err := json.Unmarshal([]byte(content), &result); err == nil {
		return &result, nil
	}
	if m := jsonFence.FindStringSubmatch(content); m != nil {
		if err := json.Unmarshal([]byte(m[1]), &result); err == nil {
			return &result, nil
		}
	}
	return nil, fmt.Errorf("ai analyzer: unparseable response")
}
