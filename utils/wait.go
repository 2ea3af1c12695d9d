package utils

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// ErrWaitTimeout is returned by WaitFor when the condition never became true
// within the bound. Distinct from other failures so callers can decide to
// retry.
var ErrWaitTimeout = errors.New("wait timed out")

const waitPollInterval = 100 * time.Millisecond

// WaitFor polls check until it reports true or timeout elapses. A resource
// that never appears fails with ErrWaitTimeout instead of hanging the caller.
func WaitFor(ctx context.Context, check func() bool, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(waitPollInterval)
	defer ticker.Stop()

	for {
		if check() {
			return nil
		}
		if time.Now().After(deadline) {
			return errors.Wrapf(ErrWaitTimeout, "after %v", timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
