package oracle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/Korbielowski/AutoApply/internal/logger"
	"github.com/Korbielowski/AutoApply/internal/metrics"
	"github.com/Korbielowski/AutoApply/internal/retry"
)

type GuardOptions struct {
	Provider string
	// Policy defaults to 3 retries, 20s apart, on rate limits and transient
	// failures.
	Policy retry.Policy
	Sleep  retry.Sleeper
	// RequestsPerMinute paces calls client side; 0 disables pacing.
	RequestsPerMinute int
	Timeout           time.Duration
	// BreakAfter consecutive failures opens the circuit; 0 disables it.
	BreakAfter  uint32
	BreakerWait time.Duration
}

// Guarded wraps a provider with pacing, a circuit breaker and retries.
type Guarded struct {
	next     Client
	opts     GuardOptions
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker
	log      logger.Logger
	provider string
}

func Retryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTransient)
}

func DefaultPolicy(delay time.Duration, maxRetries int) retry.Policy {
	return retry.Fixed{Delay: delay, MaxRetries: maxRetries, Retryable: Retryable}
}

func NewGuarded(next Client, opts GuardOptions, log logger.Logger) *Guarded {
	if opts.Policy == nil {
		opts.Policy = DefaultPolicy(20*time.Second, 3)
	}
	g := &Guarded{
		next:     next,
		opts:     opts,
		log:      logger.OrNop(log).With(logger.Component("oracle"), logger.String("provider", opts.Provider)),
		provider: opts.Provider,
	}
	if opts.RequestsPerMinute > 0 {
		g.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RequestsPerMinute)), 1)
	}
	if opts.BreakAfter > 0 {
		wait := opts.BreakerWait
		if wait <= 0 {
			wait = time.Minute
		}
		g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "oracle-" + opts.Provider,
			Timeout: wait,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= opts.BreakAfter
			},
			// A rate limit means the service is up.
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, ErrRateLimited) || errors.Is(err, context.Canceled)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				g.log.Warn("circuit breaker state change",
					logger.String("from", from.String()), logger.String("to", to.String()))
			},
		})
	}
	return g
}

func (g *Guarded) Complete(ctx context.Context, req Request) (string, error) {
	var out string
	err := retry.Do(ctx, g.opts.Policy, g.opts.Sleep, func(ctx context.Context) error {
		res, err := g.once(ctx, req)
		if err != nil {
			if Retryable(err) {
				g.log.Warn("oracle call failed, will retry if allowed", logger.Error(err))
			}
			return err
		}
		out = res
		return nil
	})
	if err != nil {
		return "", err
	}
	return out, nil
}

func (g *Guarded) once(ctx context.Context, req Request) (string, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}
	if g.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	call := func() (any, error) { return g.next.Complete(ctx, req) }

	var res any
	var err error
	if g.breaker != nil {
		res, err = g.breaker.Execute(call)
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	} else {
		res, err = call()
	}
	metrics.OracleLatency.WithLabelValues(g.provider).Observe(time.Since(start).Seconds())
	metrics.OracleRequests.WithLabelValues(g.provider, outcome(err)).Inc()

	if err != nil {
		return "", err
	}
	s, _ := res.(string)
	return s, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrUnavailable):
		return "circuit_open"
	case errors.Is(err, ErrTransient):
		return "transient"
	default:
		return "error"
	}
}

// New builds the guarded client for a provider name.
func New(provider, apiKey, baseURL, model string, temperature float64, opts GuardOptions, log logger.Logger) (Client, error) {
	var c Client
	switch provider {
	case "openai", "":
		c = NewOpenAI(apiKey, baseURL, model, temperature)
	case "anthropic":
		c = NewAnthropic(apiKey, baseURL, model, temperature)
	default:
		return nil, fmt.Errorf("unknown oracle provider %q", provider)
	}
	if apiKey == "" {
		logger.OrNop(log).Warn("oracle api key is empty", logger.String("provider", provider))
	}
	opts.Provider = provider
	return NewGuarded(c, opts, log), nil
}
