package pool

import (
	"time"

	"github.com/coachpo/reusable/internal/observability"
)

type settings struct {
	clock  func() time.Time
	logger observability.Logger
}

// Option configures a Pool at construction.
type Option func(*settings)

// WithClock overrides the clock used to stamp saturation events, primarily for testing.
func WithClock(clock func() time.Time) Option {
	return func(s *settings) {
		if clock == nil {
			s.clock = time.Now
			return
		}
		s.clock = clock
	}
}

// WithLogger routes the pool's diagnostics to logger instead of the global one.
func WithLogger(logger observability.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}
