package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/golang/mock/gomock"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mrsingh-rishi/voice-relay/metrics"
	"github.com/mrsingh-rishi/voice-relay/mocks"
	"github.com/mrsingh-rishi/voice-relay/pipeline"
	"github.com/mrsingh-rishi/voice-relay/tts"
	"github.com/mrsingh-rishi/voice-relay/workers"
)

var quiet = log.New(io.Discard)

func newTestPipeline(t *testing.T, ctrl *gomock.Controller, reg *prometheus.Registry) (*pipeline.Supervisor, *mocks.MockRecognizer) {
	t.Helper()
	rec := mocks.NewMockRecognizer(ctrl)
	tr := mocks.NewMockTranslator(ctrl)
	synth := mocks.NewMockSynthesizer(ctrl)

	tr.EXPECT().Translate(gomock.Any(), "안녕하세요", "en").Return("Hello", nil).AnyTimes()
	synth.EXPECT().Synthesize(gomock.Any(), "Hello").Return([]byte{0x00, 0x01}, nil).AnyTimes()

	cfg := pipeline.DefaultConfig()
	cfg.Retry = workers.RetryPolicy{Attempts: 3, Timeout: time.Second, Backoff: 10 * time.Millisecond}
	sup, err := pipeline.New(cfg, pipeline.Backends{
		Recognizer: rec,
		Translator: tr,
		Voices:     tts.Voices{"en": synth, "es": synth},
	}, quiet, metrics.New(reg))
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	if err := sup.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { sup.Stop(context.Background()) })
	return sup, rec
}

func dial(t *testing.T, port, channel, clientID string) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial("ws://localhost:"+port+"/api/v1/ws/"+channel+"/"+clientID, nil)
	if err != nil {
		t.Fatalf("WebSocket dial error: %v", err)
	}
	return ws
}

func TestHealthCheck(t *testing.T) {
	ctrl := gomock.NewController(t)
	sup, _ := newTestPipeline(t, ctrl, prometheus.NewRegistry())
	srv := New(sup.Gateway, sup.Channels(), nil, quiet)

	resp, err := srv.App().Test(httptest.NewRequest("GET", "/", nil))
	if err != nil {
		t.Fatalf("Test: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != 200 || string(body) != "OK" {
		t.Errorf("GET / = %d %q", resp.StatusCode, body)
	}
}

func TestStreamRequiresUpgrade(t *testing.T) {
	ctrl := gomock.NewController(t)
	sup, _ := newTestPipeline(t, ctrl, prometheus.NewRegistry())
	srv := New(sup.Gateway, sup.Channels(), nil, quiet)

	resp, err := srv.App().Test(httptest.NewRequest("GET", "/api/v1/ws/en/c1", nil))
	if err != nil {
		t.Fatalf("Test: %v", err)
	}
	if resp.StatusCode != 426 {
		t.Errorf("status = %d, want 426", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ctrl := gomock.NewController(t)
	reg := prometheus.NewRegistry()
	sup, _ := newTestPipeline(t, ctrl, reg)
	srv := New(sup.Gateway, sup.Channels(), reg, quiet)

	sup.Gateway.Close()
	sup.Gateway.Accept(context.Background(), "en", "c1", []byte("x"))

	resp, err := srv.App().Test(httptest.NewRequest("GET", "/metrics", nil))
	if err != nil {
		t.Fatalf("Test: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "relay_chunks_rejected_total 1") {
		t.Errorf("metrics output missing rejected counter:\n%s", body)
	}
}

func TestEndToEndOverWebSocket(t *testing.T) {
	ctrl := gomock.NewController(t)
	sup, rec := newTestPipeline(t, ctrl, prometheus.NewRegistry())
	rec.EXPECT().Recognize(gomock.Any(), []byte{0xAA, 0xBB}).Return("안녕하세요", nil).Times(1)

	srv := New(sup.Gateway, sup.Channels(), nil, quiet)
	go srv.Listen(":18090")
	defer srv.Shutdown(context.Background())
	time.Sleep(100 * time.Millisecond)

	speaker := dial(t, "18090", "en", "c1")
	defer speaker.Close()
	listener := dial(t, "18090", "en", "c2")
	defer listener.Close()
	other := dial(t, "18090", "es", "c3")
	defer other.Close()

	// Wait for registration
	time.Sleep(50 * time.Millisecond)

	// Text and empty frames are not audio.
	speaker.WriteMessage(websocket.TextMessage, []byte("hello"))
	speaker.WriteMessage(websocket.BinaryMessage, []byte{})
	if err := speaker.WriteMessage(websocket.BinaryMessage, []byte{0xAA, 0xBB}); err != nil {
		t.Fatalf("write: %v", err)
	}

	want := `{"client_id":"c1","translated_text":"Hello","audio_bytes_b64":"AAE="}`
	for name, ws := range map[string]*websocket.Conn{"c1": speaker, "c2": listener} {
		ws.SetReadDeadline(time.Now().Add(2 * time.Second))
		messageType, data, err := ws.ReadMessage()
		if err != nil {
			t.Fatalf("%s read error: %v", name, err)
		}
		if messageType != websocket.TextMessage || string(data) != want {
			t.Errorf("%s received %d %s", name, messageType, data)
		}
	}

	other.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, data, err := other.ReadMessage(); err == nil {
		t.Errorf("es listener received %s", data)
	}
}

func TestDisconnectDeregisters(t *testing.T) {
	ctrl := gomock.NewController(t)
	sup, _ := newTestPipeline(t, ctrl, prometheus.NewRegistry())

	srv := New(sup.Gateway, sup.Channels(), nil, quiet)
	go srv.Listen(":18091")
	defer srv.Shutdown(context.Background())
	time.Sleep(100 * time.Millisecond)

	ws := dial(t, "18091", "en", "c1")
	time.Sleep(50 * time.Millisecond)

	resp, _ := srv.App().Test(httptest.NewRequest("GET", "/api/v1/channels", nil))
	var body struct {
		Supported []string       `json:"supported"`
		Listeners map[string]int `json:"listeners"`
	}
	json.NewDecoder(resp.Body).Decode(&body)
	if body.Listeners["en"] != 1 {
		t.Errorf("listeners = %v, want en:1", body.Listeners)
	}
	if strings.Join(body.Supported, ",") != "en,es" {
		t.Errorf("supported = %v", body.Supported)
	}

	ws.Close()
	time.Sleep(100 * time.Millisecond)

	if n := sup.Registry.Count("en"); n != 0 {
		t.Errorf("Count = %d, want 0 after disconnect", n)
	}
}
