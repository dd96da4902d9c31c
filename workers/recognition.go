package workers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mrsingh-rishi/voice-relay/model"
	"github.com/mrsingh-rishi/voice-relay/queue"
	"github.com/mrsingh-rishi/voice-relay/stt"
)

type RecognitionWorker struct {
	*stage
	Recognizer stt.Recognizer
	Input      *queue.Queue[model.AudioChunkRequest]
	Output     *queue.Queue[model.TranscriptEvent]
	pool       *Pool
	capacity   int
}

func NewRecognitionWorker(recognizer stt.Recognizer, input *queue.Queue[model.AudioChunkRequest], output *queue.Queue[model.TranscriptEvent], opts Options) (*RecognitionWorker, error) {
	// Params Validation
	if recognizer == nil {
		return nil, fmt.Errorf("recognizer is required")
	}
	if input == nil {
		return nil, fmt.Errorf("audio input queue is required")
	}
	if output == nil {
		return nil, fmt.Errorf("transcript output queue is required")
	}
	return &RecognitionWorker{
		stage:      newStage("recognize", opts),
		Recognizer: recognizer,
		Input:      input,
		Output:     output,
		pool:       NewPool(opts.capacity()),
		capacity:   opts.capacity(),
	}, nil
}

func (rw *RecognitionWorker) Start() {
	run(rw.stage, rw.capacity, rw.Input, "audio", rw.process)
}

func (rw *RecognitionWorker) process(req model.AudioChunkRequest) {
	started := time.Now()
	text, err := Submit(rw.callCtx, rw.pool, func(ctx context.Context) (string, error) {
		return rw.Recognizer.Recognize(ctx, req.Audio)
	})
	if err != nil {
		rw.drop("recognition_failed", "item_id", req.ItemID, "client_id", req.ClientID, "err", err)
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		rw.drop("empty", "item_id", req.ItemID, "client_id", req.ClientID)
		return
	}
	rw.log.Debug("transcribed", "item_id", req.ItemID, "client_id", req.ClientID, "text", text)
	forward(rw.stage, rw.Output, req.Transcript(text), started)
}
