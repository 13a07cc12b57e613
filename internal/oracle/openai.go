package oracle

import (
	"context"
	"errors"

	"github.com/sashabaranov/go-openai"
)

// OpenAI talks to the Chat Completions API or any compatible server.
type OpenAI struct {
	client      *openai.Client
	model       string
	temperature float64
}

func NewOpenAI(apiKey, baseURL, model string, temperature float64) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAI{client: openai.NewClientWithConfig(cfg), model: model, temperature: temperature}
}

func (o *OpenAI) Complete(ctx context.Context, req Request) (string, error) {
	temp := o.temperature
	if req.Temperature != nil {
		temp = *req.Temperature
	}
	r := openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: float32(temp),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
	}
	if req.Schema != nil {
		r.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   req.Schema.Name,
				Schema: req.Schema.Definition,
			},
		}
	}

	resp, err := o.client.CreateChatCompletion(ctx, r)
	if err != nil {
		return "", classifyOpenAI(err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

func classifyOpenAI(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.HTTPStatusCode, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return classifyStatus(reqErr.HTTPStatusCode, err)
	}
	return err
}
