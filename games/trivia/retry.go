/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package trivia

import (
	"context"
	"fmt"

	"github.com/cenkalti/backoff/v4"
)

// retry calls op until it succeeds, the retry budget is spent, or ctx is
// done. Each attempt gets its own OracleTimeout.
func retry[T any](ctx context.Context, s Settings, op func(context.Context) (T, error)) (T, error) {
	var out T

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.OracleBackoff
	b.MaxInterval = 8 * s.OracleBackoff
	b.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.OracleRetries)), ctx)

	err := backoff.Retry(func() error {
		callCtx, cancel := ctx, context.CancelFunc(func() {})
		if s.OracleTimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, s.OracleTimeout)
		}
		defer cancel()

		v, err := op(callCtx)
		if err != nil {
			return err
		}
		out = v

		return nil
	}, policy)
	if err != nil {
		return out, fmt.Errorf("%w: %v", ErrOracleUnavailable, err)
	}

	return out, nil
}
