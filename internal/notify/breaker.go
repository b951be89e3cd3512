package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

// ErrAnnounceSuspended is returned by a guarded transport while its breaker
// is open. The local write has already happened; only the notice is skipped.
var ErrAnnounceSuspended = errors.New("announce suspended")

// BreakerConfig controls when a guarded transport stops announcing.
type BreakerConfig struct {
	Name string
	// Trips after this many announces fail in a row.
	ConsecutiveFailures uint32
	// How long announces are skipped before one probe is let through.
	Cooldown time.Duration
}

func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{Name: name, ConsecutiveFailures: 3, Cooldown: 30 * time.Second}
}

// GuardedTransport puts a circuit breaker in front of Announce so a broker
// outage costs one fast error per write instead of a network timeout.
// Listen and Close go straight to the wrapped transport.
type GuardedTransport struct {
	Transport
	cb *gobreaker.CircuitBreaker[struct{}]
}

// Guard wraps t. State changes are logged at warn level.
func Guard(t Transport, cfg BreakerConfig, logger *slog.Logger) *GuardedTransport {
	limit := max(cfg.ConsecutiveFailures, 1)
	return &GuardedTransport{
		Transport: t,
		cb: gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
			Name:        cfg.Name,
			MaxRequests: 1,
			Timeout:     cfg.Cooldown,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= limit
			},
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, context.Canceled)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("cart sync breaker changed state",
					slog.String("transport", name),
					slog.String("from", from.String()),
					slog.String("to", to.String()),
				)
			},
		}),
	}
}

func (g *GuardedTransport) Announce(ctx context.Context, c Change) error {
	_, err := g.cb.Execute(func() (struct{}, error) {
		return struct{}{}, g.Transport.Announce(ctx, c)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %s breaker is %s", ErrAnnounceSuspended, g.cb.Name(), g.cb.State())
	}
	return err
}

// State reports the breaker state.
func (g *GuardedTransport) State() gobreaker.State {
	return g.cb.State()
}
