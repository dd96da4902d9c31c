// Package pipeline wires the stage queues, the listener registry and the
// stage workers into one running relay.
package pipeline

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"

	"github.com/mrsingh-rishi/voice-relay/metrics"
	"github.com/mrsingh-rishi/voice-relay/model"
	"github.com/mrsingh-rishi/voice-relay/queue"
	"github.com/mrsingh-rishi/voice-relay/registry"
	"github.com/mrsingh-rishi/voice-relay/stt"
	"github.com/mrsingh-rishi/voice-relay/translate"
	"github.com/mrsingh-rishi/voice-relay/tts"
	"github.com/mrsingh-rishi/voice-relay/workers"
)

// ErrShutdownTimeout is returned by Stop when in-flight items had to be
// aborted.
var ErrShutdownTimeout = errors.New("shutdown grace period expired")

type Config struct {
	// QueueCapacity bounds every stage queue; 0 leaves them unbounded.
	QueueCapacity int
	// StageCapacity is the number of items each inference stage handles
	// at once.
	StageCapacity int
	Retry         workers.RetryPolicy
	ShutdownGrace time.Duration
}

func DefaultConfig() Config {
	return Config{
		StageCapacity: 1,
		Retry:         workers.DefaultRetryPolicy,
		ShutdownGrace: 10 * time.Second,
	}
}

// Backends are the external capabilities the stages call. They are loaded
// once and shared for the life of the supervisor.
type Backends struct {
	Recognizer stt.Recognizer
	Translator translate.Translator
	Voices     tts.Voices
}

func (b Backends) validate() error {
	if b.Recognizer == nil {
		return errors.New("recognition backend is not configured")
	}
	if b.Translator == nil {
		return errors.Wrap(translate.ErrMissingCredential, "translation backend is not configured")
	}
	if len(b.Voices) == 0 {
		return errors.New("no synthesis voices are configured")
	}
	return nil
}

type worker interface {
	Start()
	Stop()
	Abort()
	Done() <-chan struct{}
}

// link is one stage together with the call that ends its input.
type link struct {
	name       string
	w          worker
	closeInput func()
}

type Supervisor struct {
	Registry *registry.Registry
	Gateway  *Gateway

	audio       *queue.Queue[model.AudioChunkRequest]
	transcripts *queue.Queue[model.TranscriptEvent]
	translated  *queue.Queue[model.TranslatedTextEvent]
	synthesized *queue.Queue[model.SynthesizedAudioResponse]

	// upstream first
	stages []link

	backends Backends
	cfg      Config
	log      *log.Logger
	metrics  *metrics.Metrics

	mu      sync.Mutex
	started bool
	stopped bool
}

// New builds the queues, the registry and one worker per stage. Backend
// problems are reported here so nothing starts with a broken stage.
func New(cfg Config, backends Backends, logger *log.Logger, m *metrics.Metrics) (*Supervisor, error) {
	if logger == nil {
		logger = log.Default()
	}
	if err := backends.validate(); err != nil {
		return nil, err
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = DefaultConfig().ShutdownGrace
	}

	s := &Supervisor{
		audio:       queue.New[model.AudioChunkRequest](cfg.QueueCapacity),
		transcripts: queue.New[model.TranscriptEvent](cfg.QueueCapacity),
		translated:  queue.New[model.TranslatedTextEvent](cfg.QueueCapacity),
		synthesized: queue.New[model.SynthesizedAudioResponse](cfg.QueueCapacity),
		backends:    backends,
		cfg:         cfg,
		log:         logger.WithPrefix("pipeline"),
		metrics:     m,
	}

	s.Registry = registry.New(logger)
	s.Registry.OnChange = m.SetListeners
	s.Gateway = newGateway(s.audio, s.Registry, logger, m)

	opts := workers.Options{Logger: logger, Metrics: m, Capacity: cfg.StageCapacity}

	broadcaster, err := workers.NewBroadcaster(s.Registry, s.synthesized, opts)
	if err != nil {
		return nil, errors.Wrap(err, "broadcaster")
	}
	synthesis, err := workers.NewSynthesisWorker(backends.Voices, s.translated, s.synthesized, opts)
	if err != nil {
		return nil, errors.Wrap(err, "synthesis stage")
	}
	translation, err := workers.NewTranslationWorker(backends.Translator, s.transcripts, s.translated, cfg.Retry, opts)
	if err != nil {
		return nil, errors.Wrap(err, "translation stage")
	}
	recognition, err := workers.NewRecognitionWorker(backends.Recognizer, s.audio, s.transcripts, opts)
	if err != nil {
		return nil, errors.Wrap(err, "recognition stage")
	}
	s.stages = []link{
		// Ingest is already closed by the time recognition is drained, so
		// stopping it only drops audio that never reached a backend.
		{name: "recognition", w: recognition, closeInput: recognition.Stop},
		{name: "translation", w: translation, closeInput: s.transcripts.Close},
		{name: "synthesis", w: synthesis, closeInput: s.translated.Close},
		{name: "broadcast", w: broadcaster, closeInput: s.synthesized.Close},
	}
	return s, nil
}

// Start launches every stage, consumers before producers.
func (s *Supervisor) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return errors.New("pipeline already stopped")
	}
	if s.started {
		return nil
	}
	s.started = true
	for i := len(s.stages) - 1; i >= 0; i-- {
		s.stages[i].w.Start()
	}
	s.log.Info("pipeline started", "channels", s.backends.Voices.Channels(), "stage_capacity", s.cfg.StageCapacity)
	return nil
}

// Channels returns the channels a listener can subscribe to.
func (s *Supervisor) Channels() []string {
	return s.backends.Voices.Channels()
}

// Stop closes ingest and drains the stages upstream first: once a stage
// has exited, the queue it feeds is closed so the next stage finishes what
// it holds and exits on its own. Audio still waiting for recognition is
// dropped. Anything left when the grace period expires is aborted.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	started := s.started
	s.mu.Unlock()

	s.Gateway.Close()

	var result error
	if started {
		grace, cancel := context.WithTimeout(ctx, s.cfg.ShutdownGrace)
		defer cancel()
		if !s.drain(grace) {
			s.log.Warn("grace period expired, aborting in-flight items")
			for _, st := range s.stages {
				st.w.Abort()
				st.closeInput()
			}
			for _, st := range s.stages {
				<-st.w.Done()
			}
			result = ErrShutdownTimeout
		}

		s.log.Info("stages stopped",
			"pending_audio", s.audio.Len(),
			"pending_transcripts", s.transcripts.Len(),
			"pending_translations", s.translated.Len(),
			"pending_responses", s.synthesized.Len(),
		)
	}

	s.transcripts.Close()
	s.translated.Close()
	s.synthesized.Close()

	if err := s.closeBackends(); err != nil && result == nil {
		result = err
	}
	s.log.Info("pipeline stopped")
	return result
}

// drain ends each stage's input in turn and waits for the stage to exit.
// It reports false if ctx ends first.
func (s *Supervisor) drain(ctx context.Context) bool {
	for _, st := range s.stages {
		st.closeInput()
		select {
		case <-st.w.Done():
			s.log.Debug("stage drained", "stage", st.name)
		case <-ctx.Done():
			s.log.Warn("stage did not drain in time", "stage", st.name)
			return false
		}
	}
	return true
}

// closeBackends closes each backend that holds resources, once.
func (s *Supervisor) closeBackends() error {
	seen := make(map[io.Closer]bool)
	var closers []io.Closer
	add := func(v interface{}) {
		if c, ok := v.(io.Closer); ok && !seen[c] {
			seen[c] = true
			closers = append(closers, c)
		}
	}
	add(s.backends.Recognizer)
	add(s.backends.Translator)
	for _, ch := range s.backends.Voices.Channels() {
		add(s.backends.Voices[ch])
	}

	var first error
	for _, c := range closers {
		if err := c.Close(); err != nil {
			s.log.Error("closing backend", "err", err)
			if first == nil {
				first = errors.Wrap(err, "close backend")
			}
		}
	}
	return first
}
