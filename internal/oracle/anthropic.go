package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const anthropicMaxTokens = 4096

// Anthropic talks to the Messages API. Typed mode is emulated by putting the
// schema in the prompt.
type Anthropic struct {
	client      anthropic.Client
	model       string
	temperature float64
}

func NewAnthropic(apiKey, baseURL, model string, temperature float64) *Anthropic {
	// Retries are handled by Guarded.
	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &Anthropic{client: anthropic.NewClient(opts...), model: model, temperature: temperature}
}

func (a *Anthropic) Complete(ctx context.Context, req Request) (string, error) {
	temp := a.temperature
	if req.Temperature != nil {
		temp = *req.Temperature
	}
	prompt := req.Prompt
	if req.Schema != nil {
		if b, err := json.Marshal(req.Schema.Definition); err == nil {
			prompt += "\n\nRespond with a single JSON object that matches this JSON schema and nothing else:\n" + string(b)
		}
	}

	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(a.model),
		MaxTokens:   anthropicMaxTokens,
		Temperature: anthropic.Float(temp),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", classifyStatus(apiErr.StatusCode, err)
		}
		return "", err
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String(), nil
}
