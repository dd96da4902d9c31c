package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/mrsingh-rishi/voice-relay/metrics"
	"github.com/mrsingh-rishi/voice-relay/model"
	"github.com/mrsingh-rishi/voice-relay/queue"
	"github.com/mrsingh-rishi/voice-relay/registry"
)

var (
	// ErrNotAccepting is returned by Accept once shutdown has begun.
	ErrNotAccepting = errors.New("pipeline is not accepting audio")
	ErrEmptyChunk   = errors.New("audio chunk is empty")
)

// Gateway is the ingest side of the pipeline used by connection handlers:
// it registers listeners and turns inbound audio into queued requests.
type Gateway struct {
	closed   atomic.Bool
	audio    *queue.Queue[model.AudioChunkRequest]
	registry *registry.Registry
	log      *log.Logger
	metrics  *metrics.Metrics
}

func newGateway(audio *queue.Queue[model.AudioChunkRequest], reg *registry.Registry, logger *log.Logger, m *metrics.Metrics) *Gateway {
	return &Gateway{
		audio:    audio,
		registry: reg,
		log:      logger.WithPrefix("gateway"),
		metrics:  m,
	}
}

// Connect registers conn as the listener for (channel, clientID).
func (g *Gateway) Connect(channel, clientID string, conn registry.Conn) {
	g.registry.Register(channel, clientID, conn)
}

// Disconnect removes conn. If the key has since been taken over by a newer
// connection, that connection stays registered.
func (g *Gateway) Disconnect(channel, clientID string, conn registry.Conn) {
	g.registry.DeregisterConn(channel, clientID, conn)
}

// Accept queues one audio chunk from clientID for translation into channel
// and returns the item id assigned to it.
func (g *Gateway) Accept(ctx context.Context, channel, clientID string, audio []byte) (string, error) {
	if len(audio) == 0 {
		return "", ErrEmptyChunk
	}

	if g.closed.Load() {
		g.metrics.RecordChunkRejected()
		return "", ErrNotAccepting
	}

	req := model.AudioChunkRequest{
		ItemID:     uuid.NewString(),
		ClientID:   clientID,
		Channel:    channel,
		Audio:      model.AudioChunk(audio),
		ReceivedAt: time.Now(),
	}
	if err := g.audio.Enqueue(ctx, req); err != nil {
		if errors.Is(err, queue.ErrClosed) {
			g.metrics.RecordChunkRejected()
			return "", ErrNotAccepting
		}
		return "", err
	}
	g.metrics.RecordChunkAccepted()
	g.metrics.SetQueueDepth("audio", g.audio.Len())
	g.log.Debug("chunk accepted", "item_id", req.ItemID, "client_id", clientID, "channel", channel, "bytes", len(audio))
	return req.ItemID, nil
}

// Close stops accepting audio and releases producers blocked on a full
// queue. Listener registration is unaffected.
func (g *Gateway) Close() {
	if g.closed.Swap(true) {
		return
	}
	g.audio.Close()
}

// Listeners returns the listener count of every active channel.
func (g *Gateway) Listeners() map[string]int {
	return g.registry.Channels()
}
