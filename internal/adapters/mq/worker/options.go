package worker

import (
	"github.com/okian/stylewars/pkg/logger"
)

// Option configures an InMemoryWorker. Options passed to NewPool apply to
// every worker of the pool.
type Option func(*InMemoryWorker)

// WithName sets the worker name used in logs.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets the worker logger.
func WithLogger(l logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithPublisher notifies p about every board a worker changes.
func WithPublisher(p Publisher) Option {
	return func(w *InMemoryWorker) {
		if p != nil {
			w.publisher = p
		}
	}
}
