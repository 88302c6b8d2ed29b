package decode

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"
)

type result struct {
	img image.Image
	err error
}

type job struct {
	blob   []byte
	result chan<- result
}

// Pool runs decodes on a fixed number of workers so a burst of uploads
// cannot decode an unbounded number of images at once.
type Pool struct {
	config    Config
	logger    *slog.Logger
	jobs      chan job
	done      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewPool initializes a pool. Call Start before decoding.
func NewPool(cfg Config, logger *slog.Logger) *Pool {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		config: cfg,
		logger: logger,
		jobs:   make(chan job),
		done:   make(chan struct{}),
	}
}

// Start launches the workers.
func (p *Pool) Start() {
	p.startOnce.Do(func() {
		p.logger.Info("starting image decode pool", slog.Int("workers", p.config.Workers))
		for range p.config.Workers {
			p.wg.Add(1)
			go p.worker()
		}
	})
}

// Stop shuts the workers down and waits for in-flight decodes to finish.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		p.logger.Info("shutting down image decode pool")
		close(p.done)
		p.wg.Wait()
	})
}

// Decode decodes blob on a worker. It blocks until a worker is free and the
// decode finishes, the context is canceled or the configured timeout passes.
func (p *Pool) Decode(ctx context.Context, blob []byte) (image.Image, error) {
	if p.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.Timeout)
		defer cancel()
	}

	// Buffered so a worker never blocks on an abandoned request.
	res := make(chan result, 1)
	select {
	case p.jobs <- job{blob: blob, result: res}:
	case <-p.done:
		return nil, ErrPoolClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case r := <-res:
		return r.img, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// worker decodes jobs until the pool is stopped.
func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.done:
			return
		case j := <-p.jobs:
			start := time.Now()
			img, err := p.decode(j.blob)
			if err != nil {
				p.logger.Warn("image decode failed",
					slog.Int("bytes", len(j.blob)),
					slog.String("error", err.Error()),
				)
			} else {
				p.logger.Debug("image decoded",
					slog.Int("bytes", len(j.blob)),
					slog.Duration("duration", time.Since(start)),
				)
			}
			j.result <- result{img: img, err: err}
		}
	}
}

// decode shields the worker from decoder panics on hostile input.
func (p *Pool) decode(blob []byte) (img image.Image, err error) {
	defer func() {
		if r := recover(); r != nil {
			img, err = nil, fmt.Errorf("%w: decoder panic: %v", ErrUnsupported, r)
		}
	}()
	return DecodeImage(blob, p.config.MaxPixels)
}
