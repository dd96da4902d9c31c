package stt

import (
	"bytes"
	"context"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
)

// OpenAIRecognizer transcribes chunks with the Whisper transcription API.
type OpenAIRecognizer struct {
	Client   *openai.Client
	Model    string
	Language string
	FileName string // tells the API which container the bytes are in
}

// NewOpenAIRecognizer initializes a Whisper recognizer. baseURL may be empty.
func NewOpenAIRecognizer(apiKey, baseURL, language string) (*OpenAIRecognizer, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIRecognizer{
		Client:   openai.NewClientWithConfig(cfg),
		Model:    openai.Whisper1,
		Language: language,
		FileName: "chunk.webm",
	}, nil
}

func (r *OpenAIRecognizer) Recognize(ctx context.Context, audio []byte) (string, error) {
	resp, err := r.Client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    r.Model,
		Reader:   bytes.NewReader(audio),
		FilePath: r.FileName,
		Language: r.Language,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", errors.Wrap(err, "whisper transcription")
	}
	return resp.Text, nil
}
