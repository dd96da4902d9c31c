package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func newViper(values map[string]interface{}) *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	for k, val := range values {
		v.Set(k, val)
	}
	return v
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(newViper(map[string]interface{}{
		"OPENAI_API_KEY":             "sk",
		"GOOGLE_TRANSLATION_API_KEY": "g",
	}))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":8000" || cfg.SourceLang != "ko" {
		t.Errorf("Addr = %q SourceLang = %q", cfg.Addr, cfg.SourceLang)
	}
	if cfg.TranslateAttempts != 3 || cfg.TranslateTimeout != 5*time.Second || cfg.TranslateBackoff != 500*time.Millisecond {
		t.Errorf("retry = %d %v %v", cfg.TranslateAttempts, cfg.TranslateTimeout, cfg.TranslateBackoff)
	}
	if cfg.StageCapacity != 1 || cfg.QueueCapacity != 0 || cfg.ShutdownGrace != 10*time.Second {
		t.Errorf("capacity = %d/%d grace = %v", cfg.StageCapacity, cfg.QueueCapacity, cfg.ShutdownGrace)
	}
	if len(cfg.Voices) != 2 || cfg.Voices[0].Channel != "en" || cfg.Voices[1].Channel != "es" {
		t.Errorf("voices = %+v", cfg.Voices)
	}
}

func TestLoadReadsDurationsFromStrings(t *testing.T) {
	cfg, err := Load(newViper(map[string]interface{}{
		"OPENAI_API_KEY":             "sk",
		"GOOGLE_TRANSLATION_API_KEY": "g",
		"TRANSLATE_TIMEOUT":          "2s",
		"SHUTDOWN_GRACE":             "250ms",
	}))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TranslateTimeout != 2*time.Second || cfg.ShutdownGrace != 250*time.Millisecond {
		t.Errorf("TranslateTimeout = %v ShutdownGrace = %v", cfg.TranslateTimeout, cfg.ShutdownGrace)
	}
}

func TestParseVoices(t *testing.T) {
	got, err := ParseVoices(" en=openai:alloy , es=ElevenLabs:abc123,")
	if err != nil {
		t.Fatalf("ParseVoices: %v", err)
	}
	want := []VoiceSpec{
		{Channel: "en", Provider: "openai", Voice: "alloy"},
		{Channel: "es", Provider: "elevenlabs", Voice: "abc123"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("voice %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestParseVoicesErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"missing equals", "en"},
		{"missing provider", "en=:alloy"},
		{"duplicate channel", "en=openai,en=openai:nova"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseVoices(tt.raw); err == nil {
				t.Errorf("ParseVoices(%q) should fail", tt.raw)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		values  map[string]interface{}
		wantErr string
	}{
		{
			name:    "missing google key",
			values:  map[string]interface{}{"OPENAI_API_KEY": "sk"},
			wantErr: "GOOGLE_TRANSLATION_API_KEY",
		},
		{
			name: "deepgram without key",
			values: map[string]interface{}{
				"OPENAI_API_KEY": "sk", "GOOGLE_TRANSLATION_API_KEY": "g", "STT_PROVIDER": "deepgram",
			},
			wantErr: "DEEPGRAM_API_KEY",
		},
		{
			name: "triton without model",
			values: map[string]interface{}{
				"OPENAI_API_KEY": "sk", "GOOGLE_TRANSLATION_API_KEY": "g",
				"STT_PROVIDER": "triton", "TRITON_URL": "localhost:8000",
			},
			wantErr: "TRITON_MODEL",
		},
		{
			name: "triton",
			values: map[string]interface{}{
				"OPENAI_API_KEY": "sk", "GOOGLE_TRANSLATION_API_KEY": "g",
				"STT_PROVIDER": "triton", "TRITON_URL": "localhost:8000", "TRITON_MODEL": "whisper",
			},
		},
		{
			name: "elevenlabs without key",
			values: map[string]interface{}{
				"OPENAI_API_KEY": "sk", "GOOGLE_TRANSLATION_API_KEY": "g", "TTS_CHANNELS": "es=elevenlabs:v1",
			},
			wantErr: "ELEVEN_LABS_API_KEY",
		},
		{
			name: "unknown translate provider",
			values: map[string]interface{}{
				"OPENAI_API_KEY": "sk", "TRANSLATE_PROVIDER": "deepl",
			},
			wantErr: "TRANSLATE_PROVIDER",
		},
		{
			name: "zero attempts",
			values: map[string]interface{}{
				"OPENAI_API_KEY": "sk", "GOOGLE_TRANSLATION_API_KEY": "g", "TRANSLATE_ATTEMPTS": 0,
			},
			wantErr: "TRANSLATE_ATTEMPTS",
		},
		{
			name: "openai everywhere",
			values: map[string]interface{}{
				"OPENAI_API_KEY": "sk", "TRANSLATE_PROVIDER": "openai",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(newViper(tt.values))
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Load: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}
