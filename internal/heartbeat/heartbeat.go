package heartbeat

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultDelay is the pause before each element of a stream.
const DefaultDelay = time.Second

// Service produces greeting streams. Each subscriber gets its own stream
// starting at its own subscription time.
type Service struct {
	clock clockwork.Clock
	delay time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces the wall clock, e.g. with a clockwork.FakeClock.
func WithClock(c clockwork.Clock) Option {
	return func(s *Service) {
		s.clock = c
	}
}

// WithDelay sets the delay between elements.
func WithDelay(d time.Duration) Option {
	return func(s *Service) {
		s.delay = d
	}
}

// New creates a Service.
func New(opts ...Option) *Service {
	s := &Service{
		clock: clockwork.NewRealClock(),
		delay: DefaultDelay,
	}
	for _, f := range opts {
		f(s)
	}
	return s
}

// Greeting formats one element of the stream.
func Greeting(t time.Time) string {
	return fmt.Sprintf("Hello @ %s!", t.UTC().Format(time.RFC3339Nano))
}

// Subscribe returns an unbounded stream of greetings. The delay is applied
// after the previous element has been taken, so jitter accumulates. The
// channel is closed once ctx is done and the pending timer is stopped.
func (s *Service) Subscribe(ctx context.Context) <-chan string {
	out := make(chan string)

	go func() {
		defer close(out)

		for {
			timer := s.clock.NewTimer(s.delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.Chan():
			}

			select {
			case <-ctx.Done():
				return
			case out <- Greeting(s.clock.Now()):
			}
		}
	}()

	return out
}
