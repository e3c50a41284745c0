package tts

import (
	"context"
	"fmt"
	"sync"

	"github.com/MatheusMDi/ia-video-generate/internal/core"
)

// DefaultPoolSize is the pool sizing used when configuration supplies none.
const DefaultPoolSize = 4

type synthesisJob struct {
	ctx     context.Context
	text    string
	voiceID string
	result  chan synthesisResult
}

type synthesisResult struct {
	artifact *core.AudioArtifact
	err      error
}

// Pool adapts a blocking SpeechSynthesizer so that callers get the same
// suspend-until-ready contract as the cooperative variant. Each call is
// dispatched onto one of a fixed number of dedicated workers; the caller
// parks on the result channel instead of occupying its own thread for the
// blocking call. Submission order is FIFO and the pool is never resized
// mid-run.
type Pool struct {
	inner     core.SpeechSynthesizer
	jobs      chan *synthesisJob
	waitGroup sync.WaitGroup
	closeOnce sync.Once
}

// NewPool wraps a blocking synthesizer with a fixed-size worker pool. A size
// below one falls back to DefaultPoolSize.
func NewPool(inner core.SpeechSynthesizer, size int) *Pool {
	if size < 1 {
		size = DefaultPoolSize
	}

	pool := &Pool{
		inner:     inner,
		jobs:      make(chan *synthesisJob),
		waitGroup: sync.WaitGroup{},
		closeOnce: sync.Once{},
	}

	for workerIndex := 0; workerIndex < size; workerIndex++ {
		pool.waitGroup.Add(1)

		go pool.work()
	}

	return pool
}

// Synthesize dispatches one synthesis call onto a pool worker and waits for
// its completion. The caller observes the identical contract as for the
// cooperative variant: the artifact, a classified synthesis error, or the
// context's error if the wait is cancelled.
func (p *Pool) Synthesize(ctx context.Context, text, voiceID string) (*core.AudioArtifact, error) {
	job := &synthesisJob{
		ctx:     ctx,
		text:    text,
		voiceID: voiceID,
		result:  make(chan synthesisResult, 1),
	}

	select {
	case p.jobs <- job:
	case <-ctx.Done():
		return nil, fmt.Errorf("synthesis dispatch cancelled: %w", ctx.Err())
	}

	select {
	case result := <-job.result:
		return result.artifact, result.err
	case <-ctx.Done():
		// The worker still finishes the in-flight call; its result is
		// dropped through the buffered channel.
		return nil, fmt.Errorf("synthesis wait cancelled: %w", ctx.Err())
	}
}

// Close stops the workers after in-flight calls complete. Synthesize must not
// be called after Close.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.jobs)
	})
	p.waitGroup.Wait()
}

func (p *Pool) work() {
	defer p.waitGroup.Done()

	for job := range p.jobs {
		if job.ctx.Err() != nil {
			job.result <- synthesisResult{
				artifact: nil,
				err:      fmt.Errorf("synthesis cancelled before dispatch: %w", job.ctx.Err()),
			}

			continue
		}

		artifact, err := p.inner.Synthesize(job.ctx, job.text, job.voiceID)
		job.result <- synthesisResult{artifact: artifact, err: err}
	}
}
