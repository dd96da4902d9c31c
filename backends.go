package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/mrsingh-rishi/voice-relay/config"
	"github.com/mrsingh-rishi/voice-relay/pipeline"
	"github.com/mrsingh-rishi/voice-relay/stt"
	"github.com/mrsingh-rishi/voice-relay/translate"
	"github.com/mrsingh-rishi/voice-relay/tts"
)

// buildBackends creates one instance of each selected provider. They are
// shared by the stages for the life of the process.
func buildBackends(ctx context.Context, cfg *config.Config) (pipeline.Backends, error) {
	var b pipeline.Backends

	switch cfg.STTProvider {
	case config.ProviderDeepgram:
		client, err := stt.NewDeepgramClient(cfg.DeepgramAPIKey, "", cfg.SourceLang)
		if err != nil {
			return b, errors.Wrap(err, "deepgram")
		}
		b.Recognizer = client
	case config.ProviderTriton:
		client, err := stt.NewTritonRecognizer(cfg.TritonURL, cfg.TritonModel)
		if err != nil {
			return b, errors.Wrap(err, "triton")
		}
		b.Recognizer = client
	default:
		client, err := stt.NewOpenAIRecognizer(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.SourceLang)
		if err != nil {
			return b, errors.Wrap(err, "openai recognizer")
		}
		b.Recognizer = client
	}

	switch cfg.TranslateProvider {
	case config.ProviderOpenAI:
		client, err := translate.NewOpenAITranslator(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.TranslateModel, cfg.SourceLang)
		if err != nil {
			return b, errors.Wrap(err, "openai translator")
		}
		b.Translator = client
	default:
		client, err := translate.NewGoogleTranslator(ctx, cfg.GoogleTranslationAPIKey, cfg.SourceLang, cfg.GoogleTranslationEndpoint)
		if err != nil {
			return b, errors.Wrap(err, "google translator")
		}
		b.Translator = client
	}

	b.Voices = make(tts.Voices, len(cfg.Voices))
	for _, vs := range cfg.Voices {
		var (
			synth tts.Synthesizer
			err   error
		)
		switch vs.Provider {
		case config.ProviderElevenLabs:
			synth, err = tts.NewElevenLabsClient(cfg.ElevenLabsAPIKey, vs.Voice, cfg.ElevenLabsModel)
		default:
			synth, err = tts.NewOpenAISynthesizer(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, vs.Voice)
		}
		if err != nil {
			return b, errors.Wrapf(err, "voice for channel %s", vs.Channel)
		}
		b.Voices[vs.Channel] = synth
	}
	return b, nil
}
