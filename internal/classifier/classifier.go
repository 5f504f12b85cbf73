// Package classifier talks to an OpenAI-compatible chat completion
// endpoint (LM Studio) to obtain triage verdicts and instruction
// improvement suggestions.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/daviddao/mailsift/internal/types"
)

const (
	analyzeSystem = "You are an expert email categorization assistant. Always respond with valid JSON in the specified format."
	suggestSystem = "You are a prompt engineering expert focused on improving email classification systems."
)

// Client is an LM Studio API client.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client

	temperature        float64
	maxTokens          int
	suggestTemperature float64
	suggestMaxTokens   int

	// Warnings collects sanitization notices (clamped confidence,
	// coerced recommendations) for the caller to surface.
	Warnings []string
}

// Options configures a Client.
type Options struct {
	BaseURL            string
	APIKey             string
	Model              string
	Temperature        float64
	MaxTokens          int
	SuggestTemperature float64
	SuggestMaxTokens   int
	Timeout            time.Duration
}

// New creates a classifier client. Zero option fields get the same
// defaults the config package uses.
func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = "http://localhost:1234"
	}
	if opts.Model == "" {
		opts.Model = "mistral"
	}
	if opts.Temperature == 0 {
		opts.Temperature = 0.3
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = 500
	}
	if opts.SuggestTemperature == 0 {
		opts.SuggestTemperature = 0.7
	}
	if opts.SuggestMaxTokens == 0 {
		opts.SuggestMaxTokens = 800
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Client{
		baseURL:            strings.TrimRight(opts.BaseURL, "/"),
		apiKey:             opts.APIKey,
		model:              opts.Model,
		http:               &http.Client{Timeout: opts.Timeout},
		temperature:        opts.Temperature,
		maxTokens:          opts.MaxTokens,
		suggestTemperature: opts.SuggestTemperature,
		suggestMaxTokens:   opts.SuggestMaxTokens,
	}
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// BaseURL returns the configured endpoint.
func (c *Client) BaseURL() string {
	return c.baseURL
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
	Stream      bool          `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Ping checks that the endpoint is reachable via GET /v1/models.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/models", nil)
	if err != nil {
		return err
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("reach classifier: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("classifier models probe: status %d", resp.StatusCode)
	}
	return nil
}

// rawVerdict is the classifier's wire shape before sanitization.
type rawVerdict struct {
	Recommendation *string  `json:"recommendation"`
	Category       *string  `json:"category"`
	Confidence     *float64 `json:"confidence"`
	Reasoning      *string  `json:"reasoning"`
	KeyFactors     []string `json:"key_factors"`
	RedFlags       []string `json:"red_flags"`
}

// Analyze sends the content plus the instruction text and returns a
// sanitized message-scope verdict. A missing required field, transport
// error, or unparsable response is a failure (non-nil error).
func (c *Client) Analyze(ctx context.Context, content, instruction string) (*types.Verdict, error) {
	prompt := instruction + "\n\n## Email to Analyze:\n\n" + content
	out, err := c.chat(ctx, analyzeSystem, prompt, c.temperature, c.maxTokens)
	if err != nil {
		return nil, err
	}

	var raw rawVerdict
	if err := json.Unmarshal([]byte(extractJSON(out)), &raw); err != nil {
		return nil, fmt.Errorf("parse verdict JSON: %w", err)
	}
	if raw.Recommendation == nil || raw.Category == nil || raw.Confidence == nil || raw.Reasoning == nil {
		return nil, fmt.Errorf("verdict missing required fields")
	}

	rec, ok := types.ParseRecommendation(*raw.Recommendation)
	if !ok {
		c.warnf("unrecognized recommendation %q, defaulting to KEEP", *raw.Recommendation)
	}
	conf := *raw.Confidence
	if conf < 0 || conf > 1 {
		c.warnf("confidence %.2f out of range, defaulting to 0.5", conf)
		conf = 0.5
	}

	return &types.Verdict{
		Recommendation: rec,
		Category:       *raw.Category,
		Confidence:     conf,
		Reasoning:      *raw.Reasoning,
		KeyFactors:     raw.KeyFactors,
		RedFlags:       raw.RedFlags,
		Model:          c.model,
		AnalyzedAt:     types.Now(),
	}, nil
}

// rawThreadVerdict is the thread-scope wire shape.
type rawThreadVerdict struct {
	Recommendation *string  `json:"thread_recommendation"`
	Confidence     *float64 `json:"thread_confidence"`
	Reasoning      *string  `json:"thread_reasoning"`
	KeyFactors     []string `json:"key_thread_factors"`
	Conversation   string   `json:"conversation_type"`
}

// AnalyzeThread sends a whole-thread context and returns a sanitized
// thread-scope verdict.
func (c *Client) AnalyzeThread(ctx context.Context, content, instruction string) (*types.ThreadVerdict, error) {
	prompt := instruction + "\n\n## Email to Analyze:\n\n" + content
	out, err := c.chat(ctx, analyzeSystem, prompt, c.temperature, c.maxTokens)
	if err != nil {
		return nil, err
	}

	var raw rawThreadVerdict
	if err := json.Unmarshal([]byte(extractJSON(out)), &raw); err != nil {
		return nil, fmt.Errorf("parse thread verdict JSON: %w", err)
	}
	if raw.Recommendation == nil || raw.Confidence == nil || raw.Reasoning == nil {
		return nil, fmt.Errorf("thread verdict missing required fields")
	}

	rec, ok := types.ParseThreadRecommendation(*raw.Recommendation)
	if !ok {
		c.warnf("unrecognized thread recommendation %q, defaulting to MIXED", *raw.Recommendation)
	}
	conf := *raw.Confidence
	if conf < 0 || conf > 1 {
		c.warnf("thread confidence %.2f out of range, defaulting to 0.5", conf)
		conf = 0.5
	}

	return &types.ThreadVerdict{
		Recommendation: rec,
		Confidence:     conf,
		Reasoning:      *raw.Reasoning,
		KeyFactors:     raw.KeyFactors,
		Conversation:   raw.Conversation,
	}, nil
}

// SuggestUpdate asks the model for a general improvement to the
// instruction text based on a human correction.
func (c *Client) SuggestUpdate(ctx context.Context, currentInstruction, feedback, exampleContent string) (string, error) {
	prompt := fmt.Sprintf(`You are a prompt engineering expert. A user has provided feedback on an email classification.

## Current Prompt Template:
%s

## Email Content:
%s

## User Feedback:
%s

## Task:
The user disagreed with the AI classification and provided their reasoning. Based on this feedback, suggest GENERAL improvements to the prompt template that would help the AI make better classifications for similar emails in the future.

IMPORTANT:
- Suggest general improvements, not overfitting to this specific email
- Focus on improving categorization criteria or adding new considerations
- Keep the same JSON response format
- Don't suggest changes based on sender names or specific content - focus on patterns and categories

Respond with ONLY the improved section(s) of the prompt that should be updated, not the entire prompt. Be specific about what to add or modify.
`, currentInstruction, exampleContent, feedback)

	out, err := c.chat(ctx, suggestSystem, prompt, c.suggestTemperature, c.suggestMaxTokens)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (c *Client) chat(ctx context.Context, system, user string, temperature float64, maxTokens int) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("classifier request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("classifier status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", fmt.Errorf("decode classifier response: %w", err)
	}
	if len(cr.Choices) == 0 {
		return "", fmt.Errorf("classifier returned no choices")
	}
	return cr.Choices[0].Message.Content, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func (c *Client) warnf(format string, args ...any) {
	c.Warnings = append(c.Warnings, fmt.Sprintf(format, args...))
}

// extractJSON strips a markdown code fence around the model's JSON
// payload, if present.
func extractJSON(s string) string {
	if i := strings.Index(s, "```json"); i >= 0 {
		rest := s[i+len("```json"):]
		if j := strings.Index(rest, "```"); j >= 0 {
			return strings.TrimSpace(rest[:j])
		}
		return strings.TrimSpace(rest)
	}
	if i := strings.Index(s, "```"); i >= 0 {
		rest := s[i+3:]
		if j := strings.Index(rest, "```"); j >= 0 {
			return strings.TrimSpace(rest[:j])
		}
		return strings.TrimSpace(rest)
	}
	return strings.TrimSpace(s)
}
