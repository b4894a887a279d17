package stream

import "github.com/okian/stylewars/pkg/logger"

// Option configures a Hub.
type Option func(*Hub)

// WithTopN sets how many rows each snapshot carries.
func WithTopN(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.topN = n
		}
	}
}

// WithLogger sets the hub logger.
func WithLogger(l logger.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}
