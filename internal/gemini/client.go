// Package gemini implements the intake parser and advisor on the Gemini API.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"finbot/internal/core"
	"finbot/internal/intake"
	"finbot/internal/log"
)

const DefaultModel = "gemini-2.5-flash"

var ErrMissingAPIKey = errors.New("missing Gemini API key")

type Config struct {
	APIKey string
	Model  string
}

// generator is the slice of *genai.Models the client calls.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client implements intake.Parser and intake.Advisor.
type Client struct {
	models generator
	model  string
	logger *log.Logger
}

var (
	_ intake.Parser  = (*Client)(nil)
	_ intake.Advisor = (*Client)(nil)
)

// New creates a Gemini client for the developer API.
func New(ctx context.Context, cfg Config, logger *log.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return newClient(client.Models, cfg.Model, logger), nil
}

func newClient(models generator, model string, logger *log.Logger) *Client {
	if model == "" {
		model = DefaultModel
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Client{
		models: models,
		model:  model,
		logger: logger.WithComponent(log.ComponentGemini),
	}
}

// Parse sends the submission with the history context and decodes the
// structured answer. An empty or unreadable answer yields a nil result and no
// error; only transport failures are returned as errors.
func (c *Client) Parse(ctx context.Context, in intake.Input, history []core.Transaction, today core.Date) (*intake.Result, error) {
	contents := []*genai.Content{{Role: "user", Parts: inputParts(in)}}
	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: systemInstruction(today, history)}}},
		ResponseMIMEType:  "application/json",
		ResponseSchema:    responseSchema(),
	}

	resp, err := c.models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}

	raw := resp.Text()
	if strings.TrimSpace(raw) == "" {
		c.logger.WarnContext(ctx, "Empty parser response", log.FieldOperation, log.OpParse)
		return nil, nil
	}

	var result intake.Result
	if err := json.Unmarshal([]byte(cleanModelJSON(raw)), &result); err != nil {
		c.logger.WarnContext(ctx, "Unreadable parser response",
			log.FieldOperation, log.OpParse, log.FieldError, err)
		return nil, nil
	}
	c.logger.DebugContext(ctx, "Parser response decoded",
		log.FieldCount, len(result.Transactions),
		"has_answer", result.AnalysisAnswer != "")
	return &result, nil
}

// Advise asks for a short spending analysis in Vietnamese.
func (c *Client) Advise(ctx context.Context, history []core.Transaction) (string, error) {
	contents := []*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: advicePrompt(history)}}}}
	resp, err := c.models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("generate advice: %w", err)
	}
	return strings.TrimSpace(resp.Text()), nil
}
