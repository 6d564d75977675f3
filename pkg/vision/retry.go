package vision

import (
	"context"
	"time"
)

// Infer runs up to maxAttempts attempts. Permanent failures return at once;
// transient ones wait baseDelay * 2^(n-1), capped at maxDelay, before the
// next attempt. Cancellation of ctx returns ctx.Err().
func (c *client) Infer(ctx context.Context, image []byte, format string, prompt string) (string, error) {
	body, err := c.buildRequest(image, format, prompt)
	if err != nil {
		return "", permanent(0, "", err)
	}

	var last *InferenceError

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			delay := c.backoff(attempt-1, last.retryAfter)

			c.logger.WarnContext(
				ctx, "retrying inference",
				"attempt", attempt,
				"delay", delay,
				"error", last,
			)

			if err := c.sleep(ctx, delay); err != nil {
				return "", err
			}
		}

		if err := ctx.Err(); err != nil {
			return "", err
		}

		content, ierr := c.attempt(ctx, body)
		if ierr == nil {
			return content, nil
		}

		if err := ctx.Err(); err != nil {
			return "", err
		}

		ierr.Attempts = attempt
		last = ierr

		if !ierr.Transient {
			return "", ierr
		}
	}

	return "", last
}

// backoff returns the wait before retry n (1-based). A server-provided
// Retry-After longer than the computed delay wins, within maxDelay.
func (c *client) backoff(n int, retryAfter time.Duration) time.Duration {
	delay := c.baseDelay
	for i := 1; i < n; i++ {
		delay *= 2
		if delay >= c.maxDelay {
			break
		}
	}

	delay = max(delay, retryAfter)
	if c.maxDelay > 0 && delay > c.maxDelay {
		delay = c.maxDelay
	}
	return delay
}
