// Package workers implements the pipeline stages. Each stage consumes one
// queue and, on success, produces into the next.
package workers

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mrsingh-rishi/voice-relay/metrics"
	"github.com/mrsingh-rishi/voice-relay/queue"
)

// Options are shared by every stage constructor.
type Options struct {
	Logger  *log.Logger
	Metrics *metrics.Metrics
	// Capacity is the number of items a stage works on at once. Default 1.
	Capacity int
}

func (o Options) capacity() int {
	if o.Capacity < 1 {
		return 1
	}
	return o.Capacity
}

// stage carries the lifecycle shared by all workers. ctx ends the consume
// loop between items; callCtx ends calls already in flight.
type stage struct {
	name    string
	ctx     context.Context
	cancel  context.CancelFunc
	callCtx context.Context
	abort   context.CancelFunc
	once    sync.Once
	done    chan struct{}
	log     *log.Logger
	metrics *metrics.Metrics
}

func newStage(name string, opts Options) *stage {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	callCtx, abort := context.WithCancel(context.Background())
	return &stage{
		name:    name,
		ctx:     ctx,
		cancel:  cancel,
		callCtx: callCtx,
		abort:   abort,
		done:    make(chan struct{}),
		log:     logger.WithPrefix(name),
		metrics: opts.Metrics,
	}
}

// Stop asks the stage to exit before its next item. An item in progress
// is allowed to finish.
func (s *stage) Stop() {
	s.cancel()
}

// Abort stops the stage and cancels any call in progress.
func (s *stage) Abort() {
	s.cancel()
	s.abort()
}

// Done is closed once every loop of the stage has returned.
func (s *stage) Done() <-chan struct{} {
	return s.done
}

// run starts n loops that feed items from in to handle.
func run[T any](s *stage, n int, in *queue.Queue[T], queueName string, handle func(T)) {
	s.once.Do(func() {
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				consume(s, in, queueName, handle)
			}()
		}
		go func() {
			wg.Wait()
			close(s.done)
		}()
	})
}

func consume[T any](s *stage, in *queue.Queue[T], queueName string, handle func(T)) {
	for {
		if s.ctx.Err() != nil {
			return
		}
		item, err := in.Dequeue(s.ctx)
		if err != nil {
			if errors.Is(err, queue.ErrClosed) {
				s.log.Info("input queue closed")
			}
			return
		}
		s.metrics.SetQueueDepth(queueName, in.Len())
		handleSafely(s, item, handle)
	}
}

// handleSafely keeps a panicking item from taking the loop down with it.
func handleSafely[T any](s *stage, item T, handle func(T)) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("item handler panicked", "panic", r)
			s.metrics.RecordDropped(s.name, "panic")
		}
	}()
	handle(item)
}

// forward enqueues v downstream, giving up only if the stage is aborted.
func forward[T any](s *stage, out *queue.Queue[T], v T, started time.Time) bool {
	if err := out.Enqueue(s.callCtx, v); err != nil {
		s.log.Warn("could not forward item", "err", err)
		s.metrics.RecordDropped(s.name, "forward")
		return false
	}
	s.metrics.RecordProcessed(s.name, time.Since(started).Seconds())
	return true
}

func (s *stage) drop(reason string, keyvals ...interface{}) {
	s.log.Warn("dropping item", append([]interface{}{"reason", reason}, keyvals...)...)
	s.metrics.RecordDropped(s.name, reason)
}
