package tts

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
)

// OpenAISynthesizer uses the OpenAI speech endpoint with a fixed voice.
type OpenAISynthesizer struct {
	Client *openai.Client
	Model  openai.SpeechModel
	Voice  openai.SpeechVoice
	Format openai.SpeechResponseFormat
}

func NewOpenAISynthesizer(apiKey, baseURL, voice string) (*OpenAISynthesizer, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if voice == "" {
		voice = string(openai.VoiceAlloy)
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAISynthesizer{
		Client: openai.NewClientWithConfig(cfg),
		Model:  openai.TTSModel1,
		Voice:  openai.SpeechVoice(voice),
		Format: openai.SpeechResponseFormatWav,
	}, nil
}

func (s *OpenAISynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	resp, err := s.Client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          s.Model,
		Input:          text,
		Voice:          s.Voice,
		ResponseFormat: s.Format,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create speech")
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, errors.Wrap(err, "read speech")
	}
	return audio, nil
}
