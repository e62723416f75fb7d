package ws

import (
	"math"
	"math/rand"
	"time"
)

// backoff computes reconnect delays. Delays grow exponentially with
// jitter up to a cap; a connection that held for over a minute resets
// the attempt counter so a later blip starts cheap again.
type backoff struct {
	base        time.Duration
	max         time.Duration
	attempt     int
	connectedAt time.Time
}

func newBackoff(base, max time.Duration) *backoff {
	return &backoff{base: base, max: max}
}

func (b *backoff) markConnected() {
	b.connectedAt = time.Now()
}

func (b *backoff) nextDelay() time.Duration {
	if !b.connectedAt.IsZero() && time.Since(b.connectedAt) > 60*time.Second {
		b.attempt = 0
	}
	jitter := time.Duration(rand.Float64() * float64(b.base) * 0.5)
	delay := time.Duration(math.Min(
		float64(b.base)*math.Pow(2, float64(b.attempt))+float64(jitter),
		float64(b.max),
	))
	b.attempt++
	return delay
}
