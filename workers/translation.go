package workers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mrsingh-rishi/voice-relay/model"
	"github.com/mrsingh-rishi/voice-relay/queue"
	"github.com/mrsingh-rishi/voice-relay/translate"
)

// RetryPolicy controls how a transcript is retried against the translator.
// Before attempt n (n > 1) the worker waits Backoff*(n-1).
type RetryPolicy struct {
	Attempts int
	Timeout  time.Duration
	Backoff  time.Duration
}

var DefaultRetryPolicy = RetryPolicy{
	Attempts: 3,
	Timeout:  5 * time.Second,
	Backoff:  500 * time.Millisecond,
}

type TranslationWorker struct {
	*stage
	Translator translate.Translator
	Input      *queue.Queue[model.TranscriptEvent]
	Output     *queue.Queue[model.TranslatedTextEvent]
	Retry      RetryPolicy
	capacity   int
}

func NewTranslationWorker(translator translate.Translator, input *queue.Queue[model.TranscriptEvent], output *queue.Queue[model.TranslatedTextEvent], retry RetryPolicy, opts Options) (*TranslationWorker, error) {
	if translator == nil {
		return nil, fmt.Errorf("translator is required")
	}
	if input == nil {
		return nil, fmt.Errorf("transcript input queue is required")
	}
	if output == nil {
		return nil, fmt.Errorf("translated output queue is required")
	}
	if retry.Attempts < 1 {
		return nil, fmt.Errorf("retry attempts must be at least 1, got %d", retry.Attempts)
	}
	if retry.Timeout <= 0 {
		return nil, fmt.Errorf("retry timeout must be positive")
	}
	return &TranslationWorker{
		stage:      newStage("translate", opts),
		Translator: translator,
		Input:      input,
		Output:     output,
		Retry:      retry,
		capacity:   opts.capacity(),
	}, nil
}

func (tw *TranslationWorker) Start() {
	run(tw.stage, tw.capacity, tw.Input, "transcript", tw.process)
}

func (tw *TranslationWorker) process(ev model.TranscriptEvent) {
	started := time.Now()
	text, ok := tw.translate(ev)
	if !ok {
		tw.drop("exhausted", "item_id", ev.ItemID, "client_id", ev.ClientID, "channel", ev.Channel)
		return
	}
	tw.log.Debug("translated", "item_id", ev.ItemID, "channel", ev.Channel, "text", text)
	forward(tw.stage, tw.Output, ev.Translated(text), started)
}

// translate returns the first non-empty translation, or false once every
// attempt has failed.
func (tw *TranslationWorker) translate(ev model.TranscriptEvent) (string, bool) {
	for attempt := 1; attempt <= tw.Retry.Attempts; attempt++ {
		if attempt > 1 {
			tw.metrics.RecordTranslateRetry()
			if !sleep(tw.callCtx, time.Duration(attempt-1)*tw.Retry.Backoff) {
				return "", false
			}
		}

		ctx, cancel := context.WithTimeout(tw.callCtx, tw.Retry.Timeout)
		text, err := safely(ctx, func(ctx context.Context) (string, error) {
			return tw.Translator.Translate(ctx, ev.Text, ev.Channel)
		})
		cancel()

		if err != nil {
			tw.log.Warn("translation attempt failed", "item_id", ev.ItemID, "attempt", attempt, "err", err)
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			return text, true
		}
		tw.log.Warn("translation attempt returned empty text", "item_id", ev.ItemID, "attempt", attempt)
	}
	return "", false
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
