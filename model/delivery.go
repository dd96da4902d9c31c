package model

import (
	"encoding/base64"
	"encoding/json"
)

// Delivery is the text frame sent to every listener of a channel.
type Delivery struct {
	ClientID       string `json:"client_id"`
	TranslatedText string `json:"translated_text"`
	AudioBase64    string `json:"audio_bytes_b64"`
}

// NewDelivery encodes a synthesized response for the wire.
func NewDelivery(resp SynthesizedAudioResponse) Delivery {
	return Delivery{
		ClientID:       resp.ClientID,
		TranslatedText: resp.Text,
		AudioBase64:    base64.StdEncoding.EncodeToString(resp.Audio),
	}
}

// Bytes returns the JSON form of d.
func (d Delivery) Bytes() ([]byte, error) {
	return json.Marshal(d)
}
