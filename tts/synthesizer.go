// Package tts holds the speech synthesis backends and the fixed mapping
// from channel to backend.
package tts

import (
	"context"
	"errors"
	"sort"
)

// Synthesizer renders text as encoded audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

var (
	ErrUnsupportedChannel = errors.New("tts: unsupported channel")
	ErrMissingAPIKey      = errors.New("tts: api key is required")
)

// Voices maps a channel to the backend that speaks its language. It is
// populated once at startup and only read afterwards.
type Voices map[string]Synthesizer

// Lookup returns the backend for channel.
func (v Voices) Lookup(channel string) (Synthesizer, error) {
	s, ok := v[channel]
	if !ok || s == nil {
		return nil, ErrUnsupportedChannel
	}
	return s, nil
}

// Channels returns the supported channels in sorted order.
func (v Voices) Channels() []string {
	out := make([]string, 0, len(v))
	for ch := range v {
		out = append(out, ch)
	}
	sort.Strings(out)
	return out
}
