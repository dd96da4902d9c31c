// Package stt holds the speech recognition backends.
package stt

import (
	"context"
	"errors"
)

// Recognizer turns one audio chunk into text. Implementations are not assumed
// to be safe for concurrent use.
type Recognizer interface {
	Recognize(ctx context.Context, audio []byte) (string, error)
}

// ErrMissingAPIKey is returned by constructors when no credential is set.
var ErrMissingAPIKey = errors.New("stt: api key is required")
