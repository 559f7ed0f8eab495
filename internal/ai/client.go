// Package ai proxies summarization requests to an OpenAI compatible chat
// completion backend.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"gopkg.in/yaml.v3"

	"github.com/MrSnakeDoc/sigdesk/internal/apperr"
	"github.com/MrSnakeDoc/sigdesk/internal/logger"
	"github.com/MrSnakeDoc/sigdesk/internal/metrics"
	"github.com/MrSnakeDoc/sigdesk/internal/telemetry"
	"github.com/MrSnakeDoc/sigdesk/internal/utils"
)

// Config points the client at a backend.
type Config struct {
	ChatURL             string            `yaml:"chat_url"`
	Model               string            `yaml:"model_name"`
	MaxTokens           int               `yaml:"max_tokens"`
	Headers             map[string]string `yaml:"headers"`
	Options             map[string]any    `yaml:"options"` // merged into every request body
	ReportSystemMessage string            `yaml:"report_system_message"`
	CodeSystemMessage   string            `yaml:"code_system_message"`
	Timeout             time.Duration     `yaml:"timeout"`
}

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// Client calls the chat completion endpoint.
type Client struct {
	cfg  Config
	http *http.Client
	log  logger.Logger
}

// NewClient creates a client. A zero timeout means 60s.
func NewClient(cfg Config, log logger.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: timeout},
		log:  log.Named("ai"),
	}
}

// Enabled reports whether a backend is configured.
func (c *Client) Enabled() bool { return c.cfg.ChatURL != "" }

// Complete sends one system and one user message and returns the first
// answer, or "" when the backend returned none. action names the request in
// error messages.
func (c *Client) Complete(ctx context.Context, system, user, action string) (string, error) {
	if !c.Enabled() {
		return "", apperr.Errorf(apperr.ErrUpstream, "The AI backend is not configured on this server.")
	}

	ctx, span := telemetry.Tracer("ai").Start(ctx, "Complete")
	defer span.End()
	span.SetAttributes(attribute.String("ai.action", action), attribute.String("ai.model", c.cfg.Model))

	body := map[string]any{
		"max_tokens": c.cfg.MaxTokens,
		"messages": []Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		"model":  c.cfg.Model,
		"stream": false,
	}
	for k, v := range c.cfg.Options {
		body[k] = v
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encode chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.ChatURL, bytes.NewReader(payload))
	if err != nil {
		return "", c.transportError(action, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", c.transportError(action, err)
	}
	defer utils.Close(resp.Body)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return "", c.transportError(action, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.AIRequests.WithLabelValues(action, "denied").Inc()
		msg := upstreamMessage(raw)
		c.log.Warn("ai backend denied request",
			logger.String("action", action),
			logger.Int("status", resp.StatusCode),
			logger.String("message", msg))
		return "", apperr.Errorf(apperr.ErrUpstream,
			"The AI API denied the request to %s with the following message: %s", action, msg)
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", c.transportError(action, fmt.Errorf("decode response: %w", err))
	}
	metrics.AIRequests.WithLabelValues(action, "ok").Inc()
	if len(out.Choices) == 0 {
		return "", nil
	}
	return out.Choices[0].Message.Content, nil
}

func (c *Client) transportError(action string, err error) error {
	metrics.AIRequests.WithLabelValues(action, "error").Inc()
	c.log.Warn("ai backend unreachable", logger.String("action", action), logger.Error(err))
	return apperr.Errorf(apperr.ErrUpstream,
		"An exception occured while trying to %s with AI on server %s. [%v]", action, c.cfg.ChatURL, err)
}

// upstreamMessage extracts error.message from an error body, falling back to
// the raw body.
func upstreamMessage(raw []byte) string {
	var body struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Error.Message != "" {
		return body.Error.Message
	}
	return strings.TrimSpace(string(raw))
}

// SummarizeReport asks for a summary of an analysis report, sent as YAML.
func (c *Client) SummarizeReport(ctx context.Context, report any) (string, error) {
	doc, err := yaml.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}
	return c.Complete(ctx, c.cfg.ReportSystemMessage, string(doc), "summarize the AL report")
}

// SummarizeCode asks for an explanation of a code snippet. Invalid UTF-8 is
// replaced before sending.
func (c *Client) SummarizeCode(ctx context.Context, code string) (string, error) {
	if strings.TrimSpace(code) == "" {
		return "", apperr.Errorf(apperr.ErrEmptyInput, "There is no code to summarize.")
	}
	return c.Complete(ctx, c.cfg.CodeSystemMessage, strings.ToValidUTF8(code, "�"), "summarize code snippet")
}
