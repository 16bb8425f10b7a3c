// Package middleware decorates core models with cross-cutting behavior.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/Borahm/modelfusion/core"
)

// Default circuit breaker settings.
const (
	defaultCBMaxFailures uint32        = 5
	defaultCBTimeout     time.Duration = 30 * time.Second
	defaultCBInterval    time.Duration = 60 * time.Second
)

// ErrCircuitOpen matches errors returned while a breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit open")

// CircuitBreakerConfig configures the circuit breaker behavior.
type CircuitBreakerConfig struct {
	// MaxFailures is the number of consecutive failures before the circuit opens.
	MaxFailures uint32 `yaml:"max_failures"`
	// Timeout is how long the circuit stays open before transitioning to half-open.
	Timeout time.Duration `yaml:"timeout"`
	// Interval is the cyclic period of the closed state for clearing failure counts.
	Interval time.Duration `yaml:"interval"`
}

// Breaker guards backend calls. One Breaker may be shared by several
// models that reach the same backend.
type Breaker struct {
	name string
	cb   *gobreaker.CircuitBreaker[struct{}]
}

// NewBreaker creates a breaker. Zero config fields use defaults; a nil
// logger uses slog.Default().
func NewBreaker(name string, cfg CircuitBreakerConfig, logger *slog.Logger) *Breaker {
	if logger == nil {
		logger = slog.Default()
	}
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultCBMaxFailures
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultCBTimeout
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultCBInterval
	}

	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1, // one probe while half-open
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		// Cancellation says nothing about backend health.
		IsSuccessful: func(err error) bool {
			var ce *cancelledCall
			return err == nil || core.IsAbort(err) || errors.As(err, &ce)
		},
	})

	return &Breaker{name: name, cb: cb}
}

// State returns the current circuit breaker state for monitoring.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

// Counts returns the current circuit breaker failure/success counts.
func (b *Breaker) Counts() gobreaker.Counts {
	return b.cb.Counts()
}

// cancelledCall marks a failure that happened after the caller's context
// was done.
type cancelledCall struct{ err error }

func (c *cancelledCall) Error() string { return c.err.Error() }
func (c *cancelledCall) Unwrap() error { return c.err }

// do runs fn through the breaker. Rejections are permanent errors matching
// both ErrCircuitOpen and the gobreaker sentinel.
func (b *Breaker) do(ctx context.Context, fn func() error) error {
	_, err := b.cb.Execute(func() (struct{}, error) {
		err := fn()
		if err != nil && ctx.Err() != nil {
			return struct{}{}, &cancelledCall{err: err}
		}
		return struct{}{}, err
	})
	var ce *cancelledCall
	if errors.As(err, &ce) {
		return ce.err
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return core.Permanent(fmt.Errorf("%s: %w: %w", b.name, ErrCircuitOpen, err))
	}
	return err
}

// CircuitBreakerStreaming guards stream setup of m with b. Errors after the
// stream is open do not count against the breaker.
func CircuitBreakerStreaming[P, D any](m core.TextStreamingModel[P, D], b *Breaker) core.TextStreamingModel[P, D] {
	return &streamingBreaker[P, D]{inner: m, breaker: b}
}

type streamingBreaker[P, D any] struct {
	inner   core.TextStreamingModel[P, D]
	breaker *Breaker
}

func (s *streamingBreaker[P, D]) ModelInformation() core.ModelInformation {
	return s.inner.ModelInformation()
}

func (s *streamingBreaker[P, D]) Settings() core.Settings { return s.inner.Settings() }

func (s *streamingBreaker[P, D]) WithSettings(settings core.Settings) core.TextStreamingModel[P, D] {
	return &streamingBreaker[P, D]{inner: s.inner.WithSettings(settings), breaker: s.breaker}
}

func (s *streamingBreaker[P, D]) GenerateDeltaStreamResponse(ctx context.Context, prompt P, opts core.CallOptions) (core.DeltaStream[D], error) {
	var stream core.DeltaStream[D]
	err := s.breaker.do(ctx, func() error {
		var err error
		stream, err = s.inner.GenerateDeltaStreamResponse(ctx, prompt, opts)
		return err
	})
	if err != nil {
		return nil, err
	}
	return stream, nil
}

func (s *streamingBreaker[P, D]) ExtractTextDelta(fullDelta D) (string, bool) {
	return s.inner.ExtractTextDelta(fullDelta)
}

// CircuitBreakerGeneration guards every call of m with b.
func CircuitBreakerGeneration[P, R any](m core.TextGenerationModel[P, R], b *Breaker) core.TextGenerationModel[P, R] {
	return &generationBreaker[P, R]{inner: m, breaker: b}
}

type generationBreaker[P, R any] struct {
	inner   core.TextGenerationModel[P, R]
	breaker *Breaker
}

func (g *generationBreaker[P, R]) ModelInformation() core.ModelInformation {
	return g.inner.ModelInformation()
}

func (g *generationBreaker[P, R]) Settings() core.Settings { return g.inner.Settings() }

func (g *generationBreaker[P, R]) WithSettings(settings core.Settings) core.TextGenerationModel[P, R] {
	return &generationBreaker[P, R]{inner: g.inner.WithSettings(settings), breaker: g.breaker}
}

func (g *generationBreaker[P, R]) GenerateTextResponse(ctx context.Context, prompt P, opts core.CallOptions) (R, error) {
	var resp R
	err := g.breaker.do(ctx, func() error {
		var err error
		resp, err = g.inner.GenerateTextResponse(ctx, prompt, opts)
		return err
	})
	return resp, err
}

func (g *generationBreaker[P, R]) ExtractText(response R) (string, error) {
	return g.inner.ExtractText(response)
}
