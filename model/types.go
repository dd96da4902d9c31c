package model

import "time"

// AudioChunk represents a chunk of audio data.
type AudioChunk []byte

// AudioChunkRequest is one binary frame received from a speaking client.
type AudioChunkRequest struct {
	ItemID     string
	ClientID   string
	Channel    string
	Audio      AudioChunk
	ReceivedAt time.Time
}

// TranscriptEvent carries recognized text for a chunk.
type TranscriptEvent struct {
	ItemID   string
	ClientID string
	Channel  string
	Text     string
}

// TranslatedTextEvent carries text translated into the channel language.
type TranslatedTextEvent struct {
	ItemID   string
	ClientID string
	Channel  string
	Text     string
}

// SynthesizedAudioResponse is the final pipeline product for one chunk.
// ClientID names the originating speaker and is informational only.
type SynthesizedAudioResponse struct {
	ItemID   string
	ClientID string
	Channel  string
	Text     string
	Audio    []byte
}

// Transcript builds the recognition output for r.
func (r AudioChunkRequest) Transcript(text string) TranscriptEvent {
	return TranscriptEvent{ItemID: r.ItemID, ClientID: r.ClientID, Channel: r.Channel, Text: text}
}

// Translated builds the translation output for e.
func (e TranscriptEvent) Translated(text string) TranslatedTextEvent {
	return TranslatedTextEvent{ItemID: e.ItemID, ClientID: e.ClientID, Channel: e.Channel, Text: text}
}

// Synthesized builds the synthesis output for e.
func (e TranslatedTextEvent) Synthesized(audio []byte) SynthesizedAudioResponse {
	return SynthesizedAudioResponse{ItemID: e.ItemID, ClientID: e.ClientID, Channel: e.Channel, Text: e.Text, Audio: audio}
}
