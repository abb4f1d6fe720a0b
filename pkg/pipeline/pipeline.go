package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("pkg", "pipeline")

// StageError reports which processor stopped the pipe.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Pipe runs processors in order and stops at the first error.
type Pipe[T any] struct {
	processors []*ProcessorInfo[T]
}

func New[T any](processors ...*ProcessorInfo[T]) *Pipe[T] {
	return &Pipe[T]{
		processors: processors,
	}
}

func (p *Pipe[T]) AddProcessors(processors ...*ProcessorInfo[T]) {
	p.processors = append(p.processors, processors...)
}

func (p *Pipe[T]) Process(ctx context.Context, item T) (T, error) {
	current := item
	for _, processor := range p.processors {
		if err := ctx.Err(); err != nil {
			return current, &StageError{Stage: processor.name, Err: err}
		}
		next, err := p.process(ctx, processor, current)
		if err != nil {
			return current, &StageError{Stage: processor.name, Err: err}
		}
		current = next
	}
	return current, nil
}

func (p *Pipe[T]) process(ctx context.Context, tp *ProcessorInfo[T], item T) (T, error) {
	start := time.Now()
	if tp.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, tp.timeout)
		defer cancel()
	}
	defer func() {
		tp.logger.Debugf("processor executed in %v", time.Since(start).Round(time.Millisecond))
	}()
	return tp.processor.Process(ctx, tp.logger, item)
}
