// Package bwlimit implements a token-bucket bandwidth limiter that
// throttles the transport writer (spec.md's "supporting, non-core"
// bandwidth limiter: a token bucket shared across all outbound writes,
// with acquisition bounded by a wait when the bucket is empty).
package bwlimit

import (
	"context"
	"io"

	"golang.org/x/time/rate"

	"github.com/pkg/errors"
)

// Unlimited disables throttling entirely: writes pass straight through.
const Unlimited = 0

// Limiter is a shared token bucket measured in bytes per second. The
// zero value is not usable; construct one with NewLimiter.
type Limiter struct {
	limiter *rate.Limiter
}

// NewLimiter constructs a Limiter allowing bytesPerSecond sustained
// throughput with a burst of burstBytes. A bytesPerSecond of Unlimited
// returns a Limiter that never throttles. burstBytes of 0 defaults to
// bytesPerSecond (a one-second burst).
func NewLimiter(bytesPerSecond, burstBytes int) *Limiter {
	if bytesPerSecond <= Unlimited {
		return &Limiter{}
	}
	if burstBytes <= 0 {
		burstBytes = bytesPerSecond
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(bytesPerSecond), burstBytes)}
}

// WaitN blocks until n bytes' worth of tokens are available, or ctx is
// done. It is a no-op on an unlimited Limiter or for n <= 0.
func (l *Limiter) WaitN(ctx context.Context, n int) error {
	if l == nil || l.limiter == nil || n <= 0 {
		return nil
	}
	burst := l.limiter.Burst()
	for n > burst {
		if err := l.limiter.WaitN(ctx, burst); err != nil {
			return errors.Wrap(err, "bandwidth limiter wait failed")
		}
		n -= burst
	}
	if err := l.limiter.WaitN(ctx, n); err != nil {
		return errors.Wrap(err, "bandwidth limiter wait failed")
	}
	return nil
}

// NewWriter wraps w so that every Write call first acquires enough
// tokens from l to cover the bytes about to be written, throttling
// outbound traffic to l's configured rate. A nil or unlimited l yields
// w unmodified.
func NewWriter(ctx context.Context, w io.Writer, l *Limiter) io.Writer {
	if l == nil || l.limiter == nil {
		return w
	}
	return &limitedWriter{ctx: ctx, writer: w, limiter: l}
}

type limitedWriter struct {
	ctx     context.Context
	writer  io.Writer
	limiter *Limiter
}

// Write implements io.Writer.Write, chunking large writes against the
// limiter's burst size so a single oversized write can't starve other
// writers sharing the same Limiter for an unbounded stretch.
func (w *limitedWriter) Write(data []byte) (int, error) {
	burst := w.limiter.limiter.Burst()
	var written int
	for len(data) > 0 {
		chunk := data
		if burst > 0 && len(chunk) > burst {
			chunk = chunk[:burst]
		}
		if err := w.limiter.limiter.WaitN(w.ctx, len(chunk)); err != nil {
			return written, errors.Wrap(err, "bandwidth limiter wait failed")
		}
		n, err := w.writer.Write(chunk)
		written += n
		if err != nil {
			return written, err
		}
		data = data[len(chunk):]
	}
	return written, nil
}
