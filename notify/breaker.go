package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/MrEthical07/accesshub"
)

// BreakerConfig holds configuration for [NewBreakerMailer].
type BreakerConfig struct {
	// Name identifies this breaker in logs.
	Name string

	// MaxRequests is the maximum number of requests allowed in the half-open state.
	MaxRequests uint32

	// Interval is the cyclic period of the closed state for clearing counts.
	Interval time.Duration

	// Timeout is how long the breaker stays open before moving to half-open.
	Timeout time.Duration

	// FailureRatio trips the breaker once MinRequests have been seen.
	FailureRatio float64
	MinRequests  uint32
}

// DefaultBreakerConfig returns sensible defaults for a delivery breaker.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:         name,
		MaxRequests:  1,
		Interval:     60 * time.Second,
		Timeout:      30 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  5,
	}
}

// ErrCircuitOpen is returned while the breaker rejects deliveries.
var ErrCircuitOpen = gobreaker.ErrOpenState

// BreakerMailer wraps a Mailer with circuit breaker protection.
type BreakerMailer struct {
	next    accesshub.Mailer
	breaker *gobreaker.CircuitBreaker[struct{}]
}

var _ accesshub.Mailer = (*BreakerMailer)(nil)

func NewBreakerMailer(next accesshub.Mailer, cfg BreakerConfig, logger *slog.Logger) *BreakerMailer {
	if logger == nil {
		logger = slog.Default()
	}
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	}
	return &BreakerMailer{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker[struct{}](settings),
	}
}

func (m *BreakerMailer) SendOTP(ctx context.Context, address, code string) error {
	_, err := m.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, m.next.SendOTP(ctx, address, code)
	})
	return err
}

// State returns the current breaker state.
func (m *BreakerMailer) State() gobreaker.State {
	return m.breaker.State()
}
