package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/sipeed/picomind/pkg/logger"
)

// BreakerConfig controls when a provider's circuit opens.
type BreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:      1,
		Interval:         60 * time.Second,
		Timeout:          5 * time.Minute,
		FailureThreshold: 0.6,
		MinRequests:      3,
	}
}

// Breaker stops calling a provider that keeps failing.
type Breaker struct {
	provider Provider
	cb       *gobreaker.CircuitBreaker
}

func NewBreaker(p Provider, cfg BreakerConfig) *Breaker {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        p.Name(),
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WarnCF("search", fmt.Sprintf("Circuit breaker '%s' changed from %v to %v", name, from, to), nil)
		},
		IsSuccessful: func(err error) bool {
			// a cancelled query says nothing about provider health
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	return &Breaker{provider: p, cb: cb}
}

func (b *Breaker) Name() string {
	return b.provider.Name()
}

// State reports the breaker state as "closed", "half-open" or "open".
func (b *Breaker) State() string {
	return b.cb.State().String()
}

func (b *Breaker) Search(ctx context.Context, query string) ([]Result, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.provider.Search(ctx, query)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%s: %w", b.provider.Name(), err)
		}
		return nil, err
	}
	results, _ := out.([]Result)
	return results, nil
}
