package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
)

const deepgramEndpoint = "https://api.deepgram.com/v1/listen"

// DeepgramClient sends each chunk to the pre-recorded listen endpoint.
type DeepgramClient struct {
	APIKey      string
	Endpoint    string
	Model       string
	Language    string
	ContentType string
	HTTPClient  *http.Client
}

// TranscriptionMessage represents the JSON response from Deepgram.
type TranscriptionMessage struct {
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// NewDeepgramClient initializes a new DeepgramClient. endpoint may be empty.
func NewDeepgramClient(apiKey, endpoint, language string) (*DeepgramClient, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if endpoint == "" {
		endpoint = deepgramEndpoint
	}
	return &DeepgramClient{
		APIKey:      apiKey,
		Endpoint:    endpoint,
		Model:       "nova-2",
		Language:    language,
		ContentType: "audio/webm",
		HTTPClient:  &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (dg *DeepgramClient) Recognize(ctx context.Context, audio []byte) (string, error) {
	base, err := url.Parse(dg.Endpoint)
	if err != nil {
		return "", errors.Wrap(err, "parse deepgram endpoint")
	}
	q := base.Query()
	q.Set("model", dg.Model)
	q.Set("language", dg.Language)
	q.Set("punctuate", "true")
	q.Set("smart_format", "true")
	base.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base.String(), bytes.NewReader(audio))
	if err != nil {
		return "", errors.Wrap(err, "build deepgram request")
	}
	req.Header.Set("Authorization", fmt.Sprintf("Token %s", dg.APIKey))
	req.Header.Set("Content-Type", dg.ContentType)

	resp, err := dg.HTTPClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "deepgram request")
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return "", errors.Errorf("deepgram: bad status %s", resp.Status)
	}

	var msg TranscriptionMessage
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		return "", errors.Wrap(err, "decode deepgram response")
	}
	if len(msg.Results.Channels) == 0 || len(msg.Results.Channels[0].Alternatives) == 0 {
		return "", nil
	}
	return msg.Results.Channels[0].Alternatives[0].Transcript, nil
}
