package pipeline

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

type Processor[T any] interface {
	Process(ctx context.Context, log *logrus.Entry, item T) (T, error)
}

// ProcessorFunc adapts a plain function to Processor.
type ProcessorFunc[T any] func(ctx context.Context, log *logrus.Entry, item T) (T, error)

func (f ProcessorFunc[T]) Process(ctx context.Context, log *logrus.Entry, item T) (T, error) {
	return f(ctx, log, item)
}

type ProcessorInfo[T any] struct {
	name      string
	processor Processor[T]
	logger    *logrus.Entry
	timeout   time.Duration
}

type ProcessorOption[T any] func(*ProcessorInfo[T])

func NewProcessorInfo[T any](name string, processor Processor[T], options ...ProcessorOption[T]) *ProcessorInfo[T] {
	pro := &ProcessorInfo[T]{
		name:      name,
		processor: processor,
		logger:    logger.WithField("processor", name),
	}
	for _, option := range options {
		option(pro)
	}
	return pro
}

// WithTimeout bounds a single execution of the processor. Zero means no bound.
func WithTimeout[T any](timeout time.Duration) ProcessorOption[T] {
	return func(pi *ProcessorInfo[T]) {
		if timeout >= 0 {
			pi.timeout = timeout
		} else {
			pi.logger.Warnf("invalid specified timeout %v for processor %s, ignored", timeout, pi.name)
		}
	}
}

func WithLogger[T any](logger *logrus.Entry) ProcessorOption[T] {
	return func(pi *ProcessorInfo[T]) {
		pi.logger = logger.WithField("processor", pi.name)
	}
}
