package application

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sirupsen/logrus"
)

// retry runs op up to maxRetries times, waiting unit*base^attempt between tries.
func (w *Writer) retry(ctx context.Context, op string, fn func(context.Context) error) error {
	policy := &backoff.ExponentialBackOff{
		InitialInterval:     w.retryUnit,
		RandomizationFactor: 0,
		Multiplier:          w.registry.RetryDelayBase(),
		MaxInterval:         time.Hour,
	}
	tries := w.registry.MaxRetries()
	if tries < 1 {
		tries = 1
	}

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		callCtx, cancel := context.WithTimeout(ctx, w.timeout)
		defer cancel()
		return struct{}{}, fn(callCtx)
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(tries)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			w.logger.WithError(err).WithFields(logrus.Fields{
				"op":      op,
				"attempt": attempt,
				"wait":    wait,
			}).Warn("store call failed, retrying")
		}),
	)
	return err
}
