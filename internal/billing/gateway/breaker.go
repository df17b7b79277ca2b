package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// breakerGateway shields the card processor behind a circuit breaker. When
// the breaker is open the call fails fast with ErrGatewayUnavailable so the
// billing workflow can deny instead of piling up in-flight requests against
// a dead processor.
type breakerGateway struct {
	next    Gateway
	breaker *gobreaker.CircuitBreaker[*Result]
}

func WithBreaker(next Gateway, logger *zap.Logger) Gateway {
	settings := gobreaker.Settings{
		Name:        "card-gateway",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Gateway circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}
	return &breakerGateway{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker[*Result](settings),
	}
}

func (g *breakerGateway) Authorize(ctx context.Context, card Card, amount float64) (*Result, error) {
	return g.execute(func() (*Result, error) {
		return g.next.Authorize(ctx, card, amount)
	})
}

func (g *breakerGateway) Capture(ctx context.Context, ref string, amount float64) (*Result, error) {
	return g.execute(func() (*Result, error) {
		return g.next.Capture(ctx, ref, amount)
	})
}

func (g *breakerGateway) Cancel(ctx context.Context, ref string) (*Result, error) {
	return g.execute(func() (*Result, error) {
		return g.next.Cancel(ctx, ref)
	})
}

func (g *breakerGateway) execute(fn func() (*Result, error)) (*Result, error) {
	result, err := g.breaker.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
		}
		return nil, err
	}
	return result, nil
}
