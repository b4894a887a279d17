package repository

import "time"

// Option configures a TreapStore.
type Option func(*TreapStore)

// WithMetricsUpdateInterval sets how often the board size gauge is
// refreshed.
func WithMetricsUpdateInterval(interval time.Duration) Option {
	return func(s *TreapStore) {
		if interval > 0 {
			s.metricsUpdateInterval = interval
		}
	}
}

// WithName labels the board in metrics.
func WithName(name string) Option {
	return func(s *TreapStore) {
		if name != "" {
			s.name = name
		}
	}
}
