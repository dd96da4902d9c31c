package translate

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
)

// OpenAITranslator asks a chat model for a translation.
type OpenAITranslator struct {
	Client *openai.Client
	Model  string
	Source string
}

func NewOpenAITranslator(apiKey, baseURL, model, source string) (*OpenAITranslator, error) {
	if apiKey == "" {
		return nil, ErrMissingCredential
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAITranslator{
		Client: openai.NewClientWithConfig(cfg),
		Model:  model,
		Source: source,
	}, nil
}

func (c *OpenAITranslator) Translate(ctx context.Context, text, target string) (string, error) {
	instructions := fmt.Sprintf(
		"Translate the user's %s text into the language with ISO code %q. Reply with the translation only.",
		c.Source, target)

	resp, err := c.Client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: instructions},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
	})
	if err != nil {
		return "", errors.Wrap(err, "chat completion")
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
