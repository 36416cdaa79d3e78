package executor

import "time"

// #region backoff
// BackoffPolicy yields the delay before retry number n (1-based).
type BackoffPolicy interface {
	Delay(retry int) time.Duration
}

// ExponentialBackoff doubles the base delay per retry up to a cap.
type ExponentialBackoff struct {
	Base time.Duration
	Max  time.Duration
}

// DefaultBackoff returns the standard transient-failure schedule:
// 500ms, 1s, 2s, ... capped at 8s.
func DefaultBackoff() ExponentialBackoff {
	return ExponentialBackoff{Base: 500 * time.Millisecond, Max: 8 * time.Second}
}

func (b ExponentialBackoff) Delay(retry int) time.Duration {
	if retry < 1 {
		retry = 1
	}
	d := b.Base
	for i := 1; i < retry; i++ {
		d *= 2
		if d >= b.Max {
			return b.Max
		}
	}
	if d > b.Max {
		return b.Max
	}
	return d
}

// #endregion backoff
