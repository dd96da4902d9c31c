package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/mrsingh-rishi/voice-relay/model"
	"github.com/mrsingh-rishi/voice-relay/queue"
	"github.com/mrsingh-rishi/voice-relay/tts"
)

type SynthesisWorker struct {
	*stage
	Voices   tts.Voices
	Input    *queue.Queue[model.TranslatedTextEvent]
	Output   *queue.Queue[model.SynthesizedAudioResponse]
	pool     *Pool
	capacity int
}

func NewSynthesisWorker(voices tts.Voices, input *queue.Queue[model.TranslatedTextEvent], output *queue.Queue[model.SynthesizedAudioResponse], opts Options) (*SynthesisWorker, error) {
	if len(voices) == 0 {
		return nil, fmt.Errorf("at least one synthesis voice is required")
	}
	for channel, s := range voices {
		if s == nil {
			return nil, fmt.Errorf("synthesizer for channel %q is nil", channel)
		}
	}
	if input == nil {
		return nil, fmt.Errorf("translated input queue is required")
	}
	if output == nil {
		return nil, fmt.Errorf("audio output queue is required")
	}
	return &SynthesisWorker{
		stage:    newStage("synthesize", opts),
		Voices:   voices,
		Input:    input,
		Output:   output,
		pool:     NewPool(opts.capacity()),
		capacity: opts.capacity(),
	}, nil
}

func (sw *SynthesisWorker) Start() {
	run(sw.stage, sw.capacity, sw.Input, "translated", sw.process)
}

func (sw *SynthesisWorker) process(ev model.TranslatedTextEvent) {
	started := time.Now()
	synth, err := sw.Voices.Lookup(ev.Channel)
	if err != nil {
		sw.drop("unsupported_channel", "item_id", ev.ItemID, "channel", ev.Channel)
		return
	}

	audio, err := Submit(sw.callCtx, sw.pool, func(ctx context.Context) ([]byte, error) {
		return synth.Synthesize(ctx, ev.Text)
	})
	if err != nil {
		sw.drop("synthesis_failed", "item_id", ev.ItemID, "channel", ev.Channel, "err", err)
		return
	}
	if len(audio) == 0 {
		sw.drop("empty", "item_id", ev.ItemID, "channel", ev.Channel)
		return
	}
	sw.log.Debug("synthesized", "item_id", ev.ItemID, "channel", ev.Channel, "bytes", len(audio))
	forward(sw.stage, sw.Output, ev.Synthesized(audio), started)
}
