// Package translate holds the text translation backends.
package translate

import (
	"context"
	"errors"
)

// Translator converts text from the configured source language into target.
type Translator interface {
	Translate(ctx context.Context, text, target string) (string, error)
}

// ErrMissingCredential is returned when a translator is built without its
// API key. It is a configuration error, not a per-item failure.
var ErrMissingCredential = errors.New("translate: credential is not set")
