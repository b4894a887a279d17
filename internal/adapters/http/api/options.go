package api

import (
	"github.com/julienschmidt/httprouter"

	"github.com/okian/stylewars/pkg/logger"
)

// Option configures a Server.
type Option func(*Server)

// WithMaxLimit caps GET /leaderboard?limit.
func WithMaxLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxLimit = n
		}
	}
}

// WithPublicURL sets the base URL share links point at. Without it links
// are derived from the request.
func WithPublicURL(u string) Option {
	return func(s *Server) {
		s.publicURL = u
	}
}

// WithMaxBodyBytes bounds request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBody = n
		}
	}
}

// WithStream mounts a live leaderboard handler at /ws/leaderboard/:board.
func WithStream(h httprouter.Handle) Option {
	return func(s *Server) {
		s.stream = h
	}
}

// WithLogger sets the logger for request failures.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}
