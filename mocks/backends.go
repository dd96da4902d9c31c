package mocks

import "context"

//go:generate mockgen -source=backends.go -destination=mock_backends.go -package=mocks

// The interfaces below mirror registry.Conn, stt.Recognizer,
// translate.Translator and tts.Synthesizer so the mocks satisfy them
// without importing those packages.

type Conn interface {
	SendText(payload []byte) error
}

type Recognizer interface {
	Recognize(ctx context.Context, audio []byte) (string, error)
}

type Translator interface {
	Translate(ctx context.Context, text, target string) (string, error)
}

type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}
