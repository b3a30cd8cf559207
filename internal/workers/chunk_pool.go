package workers

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/thevijaykgupta/VaaniYantra/internal/stream"
)

// ChunkWorkerPool executes chunk pipelines off the websocket read path, so
// slow inference for one room never stalls frame handling for another.
type ChunkWorkerPool struct {
	Pipeline   *stream.Pipeline
	NumWorkers int
	QueueSize  int
	Logger     *logrus.Logger

	jobs chan chunkJob
}

type chunkJob struct {
	chunk []byte
	sess  *stream.Session
}

func (p *ChunkWorkerPool) Start(ctx context.Context) error {
	if p.Pipeline == nil {
		return errors.New("ChunkWorkerPool missing dependency: Pipeline must be set")
	}
	if p.NumWorkers <= 0 {
		p.NumWorkers = 5
	}
	if p.QueueSize <= 0 {
		p.QueueSize = 32
	}
	if p.Logger == nil {
		p.Logger = logrus.New()
	}

	p.jobs = make(chan chunkJob, p.QueueSize)
	for i := 0; i < p.NumWorkers; i++ {
		go p.run(ctx)
	}
	return nil
}

// Dispatch reserves the room's work slot, then queues the chunk. Because the
// slot is taken before enqueueing, at most one chunk per room is ever in the
// queue or executing, which preserves strict arrival order within a room.
// The blocking acquire is the backpressure path: a producer streaming faster
// than its room transcribes stalls here, in its own read goroutine.
func (p *ChunkWorkerPool) Dispatch(ctx context.Context, roomID string, chunk []byte) {
	sess := p.Pipeline.Sessions.Get(roomID)
	sess.AcquireWork()

	select {
	case p.jobs <- chunkJob{chunk: chunk, sess: sess}:
	case <-ctx.Done():
		sess.ReleaseWork()
	}
}

func (p *ChunkWorkerPool) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-p.jobs:
			// the job carries its session so a chunk dequeued after its
			// room was evicted cannot recreate the store entry
			p.Pipeline.Process(ctx, job.sess, job.chunk)
			job.sess.ReleaseWork()
		}
	}
}
