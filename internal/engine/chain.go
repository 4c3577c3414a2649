package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrChainExhausted means every model in a fallback chain failed.
var ErrChainExhausted = errors.New("all models failed")

// Chain walks an ordered list of models until one call succeeds. Each call
// is bounded by the chain's timeout and a failing model is retried before
// the next one is tried.
type Chain struct {
	models  []string
	retries int
	timeout time.Duration
	// newBackOff builds the retry schedule for one model.
	newBackOff func() backoff.BackOff
}

// ChainOption configures a Chain.
type ChainOption func(*Chain)

// WithChainRetries sets how many extra attempts a failing model gets.
func WithChainRetries(n int) ChainOption {
	return func(c *Chain) { c.retries = n }
}

// WithChainTimeout bounds each call. Zero means no limit.
func WithChainTimeout(d time.Duration) ChainOption {
	return func(c *Chain) { c.timeout = d }
}

// WithChainBackOff overrides the retry schedule between attempts on one model.
func WithChainBackOff(fn func() backoff.BackOff) ChainOption {
	return func(c *Chain) { c.newBackOff = fn }
}

// NewChain creates a chain over models.
func NewChain(models []string, opts ...ChainOption) *Chain {
	c := &Chain{models: models}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Models returns the chain's models in fallback order.
func (c *Chain) Models() []string {
	return c.models
}

// WithModels returns a chain over models that keeps c's retry and timeout
// settings.
func (c *Chain) WithModels(models ...string) *Chain {
	cp := *c
	cp.models = models
	return &cp
}

// Permanent marks an error that retrying the same model will not fix, such
// as an unusable response. The chain moves straight to the next model.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	return b
}

// Run tries each model in order. It returns ctx.Err() if the caller cancels
// and ErrChainExhausted if every model fails. A panicking call counts as a
// failed attempt.
func (c *Chain) Run(ctx context.Context, label string, call func(ctx context.Context, model string) (string, error)) (string, error) {
	newBackOff := c.newBackOff
	if newBackOff == nil {
		newBackOff = defaultBackOff
	}

	for _, model := range c.models {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		var out string
		op := func() error {
			callCtx := ctx
			if c.timeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(ctx, c.timeout)
				defer cancel()
			}
			text, err := safeCall(callCtx, model, call)
			if err != nil {
				if ctx.Err() != nil {
					return backoff.Permanent(ctx.Err())
				}
				return err
			}
			out = text
			return nil
		}

		policy := backoff.WithContext(backoff.WithMaxRetries(newBackOff(), uint64(max(c.retries, 0))), ctx)
		err := backoff.Retry(op, policy)
		if err == nil {
			return out, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}

		var pe *ProviderError
		if errors.As(err, &pe) {
			debugLog("[%s] model %s failed: %v, trying fallback...", label, model, pe.Err)
		} else {
			debugLog("[%s] error with model %s: %v, trying fallback...", label, model, err)
		}
	}
	return "", ErrChainExhausted
}

// safeCall turns a panicking backend call into an error.
func safeCall(ctx context.Context, model string, call func(ctx context.Context, model string) (string, error)) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("backend panic: %v", r)
		}
	}()
	return call(ctx, model)
}
