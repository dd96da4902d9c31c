package workers

import (
	"fmt"
	"time"

	"github.com/mrsingh-rishi/voice-relay/model"
	"github.com/mrsingh-rishi/voice-relay/queue"
)

// Publisher fans a payload out to every listener on a channel.
// *registry.Registry satisfies it.
type Publisher interface {
	Broadcast(channel string, payload []byte) (delivered, failed int)
}

// Broadcaster delivers synthesized audio to every listener on the
// response's channel, not only the client that spoke.
type Broadcaster struct {
	*stage
	Publisher Publisher
	Input     *queue.Queue[model.SynthesizedAudioResponse]
}

func NewBroadcaster(publisher Publisher, input *queue.Queue[model.SynthesizedAudioResponse], opts Options) (*Broadcaster, error) {
	if publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if input == nil {
		return nil, fmt.Errorf("audio input queue is required")
	}
	return &Broadcaster{
		stage:     newStage("broadcast", opts),
		Publisher: publisher,
		Input:     input,
	}, nil
}

// Start runs a single delivery loop. Sends are ordered per channel.
func (b *Broadcaster) Start() {
	run(b.stage, 1, b.Input, "synthesized", b.process)
}

func (b *Broadcaster) process(resp model.SynthesizedAudioResponse) {
	started := time.Now()
	payload, err := model.NewDelivery(resp).Bytes()
	if err != nil {
		b.drop("encode_failed", "item_id", resp.ItemID, "err", err)
		return
	}
	delivered, failed := b.Publisher.Broadcast(resp.Channel, payload)
	b.metrics.RecordBroadcast(resp.Channel, delivered, failed)
	b.metrics.RecordProcessed(b.name, time.Since(started).Seconds())
	b.log.Debug("broadcast", "item_id", resp.ItemID, "client_id", resp.ClientID, "channel", resp.Channel, "delivered", delivered, "failed", failed)
}
