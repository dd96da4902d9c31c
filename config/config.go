package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	ProviderOpenAI     = "openai"
	ProviderDeepgram   = "deepgram"
	ProviderTriton     = "triton"
	ProviderGoogle     = "google"
	ProviderElevenLabs = "elevenlabs"
)

// VoiceSpec binds a channel to a synthesis provider and voice.
type VoiceSpec struct {
	Channel  string
	Provider string
	Voice    string
}

type Config struct {
	Addr      string
	LogLevel  string
	LogFormat string

	SourceLang        string
	STTProvider       string
	TranslateProvider string
	TranslateModel    string
	Voices            []VoiceSpec

	OpenAIAPIKey              string
	OpenAIBaseURL             string
	DeepgramAPIKey            string
	TritonURL                 string
	TritonModel               string
	GoogleTranslationAPIKey   string
	GoogleTranslationEndpoint string
	ElevenLabsAPIKey          string
	ElevenLabsModel           string

	QueueCapacity     int
	StageCapacity     int
	TranslateAttempts int
	TranslateTimeout  time.Duration
	TranslateBackoff  time.Duration
	ShutdownGrace     time.Duration
}

// SetDefaults registers every key with its default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("ADDR", ":8000")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("SOURCE_LANG", "ko")
	v.SetDefault("STT_PROVIDER", ProviderOpenAI)
	v.SetDefault("TRANSLATE_PROVIDER", ProviderGoogle)
	v.SetDefault("TRANSLATE_MODEL", "")
	v.SetDefault("TTS_CHANNELS", "en=openai:alloy,es=openai:nova")
	v.SetDefault("OPENAI_API_KEY", "")
	v.SetDefault("OPENAI_BASE_URL", "")
	v.SetDefault("DEEPGRAM_API_KEY", "")
	v.SetDefault("TRITON_URL", "")
	v.SetDefault("TRITON_MODEL", "")
	v.SetDefault("GOOGLE_TRANSLATION_API_KEY", "")
	v.SetDefault("GOOGLE_TRANSLATION_ENDPOINT", "")
	v.SetDefault("ELEVEN_LABS_API_KEY", "")
	v.SetDefault("ELEVEN_LABS_MODEL", "eleven_multilingual_v2")
	v.SetDefault("QUEUE_CAPACITY", 0)
	v.SetDefault("STAGE_CAPACITY", 1)
	v.SetDefault("TRANSLATE_ATTEMPTS", 3)
	v.SetDefault("TRANSLATE_TIMEOUT", 5*time.Second)
	v.SetDefault("TRANSLATE_BACKOFF", 500*time.Millisecond)
	v.SetDefault("SHUTDOWN_GRACE", 10*time.Second)
}

// Load reads the configuration from v, which should already have
// defaults, flags and the environment bound.
func Load(v *viper.Viper) (*Config, error) {
	voices, err := ParseVoices(v.GetString("TTS_CHANNELS"))
	if err != nil {
		return nil, err
	}
	cfg := &Config{
		Addr:      v.GetString("ADDR"),
		LogLevel:  v.GetString("LOG_LEVEL"),
		LogFormat: v.GetString("LOG_FORMAT"),

		SourceLang:        v.GetString("SOURCE_LANG"),
		STTProvider:       strings.ToLower(v.GetString("STT_PROVIDER")),
		TranslateProvider: strings.ToLower(v.GetString("TRANSLATE_PROVIDER")),
		TranslateModel:    v.GetString("TRANSLATE_MODEL"),
		Voices:            voices,

		OpenAIAPIKey:              v.GetString("OPENAI_API_KEY"),
		OpenAIBaseURL:             v.GetString("OPENAI_BASE_URL"),
		DeepgramAPIKey:            v.GetString("DEEPGRAM_API_KEY"),
		TritonURL:                 v.GetString("TRITON_URL"),
		TritonModel:               v.GetString("TRITON_MODEL"),
		GoogleTranslationAPIKey:   v.GetString("GOOGLE_TRANSLATION_API_KEY"),
		GoogleTranslationEndpoint: v.GetString("GOOGLE_TRANSLATION_ENDPOINT"),
		ElevenLabsAPIKey:          v.GetString("ELEVEN_LABS_API_KEY"),
		ElevenLabsModel:           v.GetString("ELEVEN_LABS_MODEL"),

		QueueCapacity:     v.GetInt("QUEUE_CAPACITY"),
		StageCapacity:     v.GetInt("STAGE_CAPACITY"),
		TranslateAttempts: v.GetInt("TRANSLATE_ATTEMPTS"),
		TranslateTimeout:  v.GetDuration("TRANSLATE_TIMEOUT"),
		TranslateBackoff:  v.GetDuration("TRANSLATE_BACKOFF"),
		ShutdownGrace:     v.GetDuration("SHUTDOWN_GRACE"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseVoices parses "en=openai:alloy,es=elevenlabs:<voice id>".
func ParseVoices(raw string) ([]VoiceSpec, error) {
	var out []VoiceSpec
	seen := make(map[string]bool)
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		channel, rest, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, errors.Errorf("TTS_CHANNELS entry %q: want channel=provider:voice", entry)
		}
		provider, voice, _ := strings.Cut(rest, ":")
		spec := VoiceSpec{
			Channel:  strings.TrimSpace(channel),
			Provider: strings.ToLower(strings.TrimSpace(provider)),
			Voice:    strings.TrimSpace(voice),
		}
		if spec.Channel == "" || spec.Provider == "" {
			return nil, errors.Errorf("TTS_CHANNELS entry %q: channel and provider are required", entry)
		}
		if seen[spec.Channel] {
			return nil, errors.Errorf("TTS_CHANNELS: channel %q listed twice", spec.Channel)
		}
		seen[spec.Channel] = true
		out = append(out, spec)
	}
	return out, nil
}

// Validate checks that every selected provider has its credential.
func (c *Config) Validate() error {
	switch c.STTProvider {
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return errors.New("OPENAI_API_KEY is required for STT_PROVIDER=openai")
		}
	case ProviderDeepgram:
		if c.DeepgramAPIKey == "" {
			return errors.New("DEEPGRAM_API_KEY is required for STT_PROVIDER=deepgram")
		}
	case ProviderTriton:
		if c.TritonURL == "" || c.TritonModel == "" {
			return errors.New("TRITON_URL and TRITON_MODEL are required for STT_PROVIDER=triton")
		}
	default:
		return errors.Errorf("unknown STT_PROVIDER %q", c.STTProvider)
	}

	switch c.TranslateProvider {
	case ProviderGoogle:
		if c.GoogleTranslationAPIKey == "" {
			return errors.New("GOOGLE_TRANSLATION_API_KEY is required for TRANSLATE_PROVIDER=google")
		}
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return errors.New("OPENAI_API_KEY is required for TRANSLATE_PROVIDER=openai")
		}
	default:
		return errors.Errorf("unknown TRANSLATE_PROVIDER %q", c.TranslateProvider)
	}

	if len(c.Voices) == 0 {
		return errors.New("TTS_CHANNELS must name at least one channel")
	}
	for _, vs := range c.Voices {
		switch vs.Provider {
		case ProviderOpenAI:
			if c.OpenAIAPIKey == "" {
				return errors.Errorf("OPENAI_API_KEY is required for channel %q", vs.Channel)
			}
		case ProviderElevenLabs:
			if c.ElevenLabsAPIKey == "" {
				return errors.Errorf("ELEVEN_LABS_API_KEY is required for channel %q", vs.Channel)
			}
			if vs.Voice == "" {
				return errors.Errorf("channel %q: elevenlabs needs a voice id", vs.Channel)
			}
		default:
			return errors.Errorf("channel %q: unknown tts provider %q", vs.Channel, vs.Provider)
		}
	}

	if c.TranslateAttempts < 1 {
		return errors.New("TRANSLATE_ATTEMPTS must be at least 1")
	}
	if c.TranslateTimeout <= 0 {
		return errors.New("TRANSLATE_TIMEOUT must be positive")
	}
	if c.StageCapacity < 1 {
		return errors.New("STAGE_CAPACITY must be at least 1")
	}
	if c.QueueCapacity < 0 {
		return errors.New("QUEUE_CAPACITY must not be negative")
	}
	return nil
}
