package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
)

const elevenLabsBaseURL = "https://api.elevenlabs.io"

type ElevenLabsClient struct {
	APIKey       string
	VoiceId      string
	ModelId      string
	OutputFormat string
	BaseURL      string
	HTTPClient   *http.Client
}

func NewElevenLabsClient(apiKey string, voiceId string, modelId string) (*ElevenLabsClient, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if voiceId == "" {
		return nil, fmt.Errorf("voice id is required")
	}
	if modelId == "" {
		modelId = "eleven_multilingual_v2"
	}
	return &ElevenLabsClient{
		APIKey:       apiKey,
		VoiceId:      voiceId,
		ModelId:      modelId,
		OutputFormat: "mp3_44100_128",
		BaseURL:      elevenLabsBaseURL,
		HTTPClient:   &http.Client{Timeout: 60 * time.Second},
	}, nil
}

// Synthesize returns the full encoded clip for text.
func (client *ElevenLabsClient) Synthesize(ctx context.Context, text string) ([]byte, error) {
	base, err := url.Parse(fmt.Sprintf("%s/v1/text-to-speech/%s", client.BaseURL, client.VoiceId))
	if err != nil {
		return nil, errors.Wrap(err, "parse elevenlabs url")
	}
	q := base.Query()
	q.Set("output_format", client.OutputFormat)
	base.RawQuery = q.Encode()

	payload := map[string]interface{}{
		"text":     text,
		"model_id": client.ModelId,
		"voice_settings": map[string]float64{
			"stability":        0.75,
			"similarity_boost": 0.7,
		},
	}
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "marshal payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base.String(), bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("xi-api-key", client.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.HTTPClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "elevenlabs request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("elevenlabs: bad status %s", resp.Status)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read audio")
	}
	return audio, nil
}
