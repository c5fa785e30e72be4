package testutil

import (
	"testing"
	"time"
)

// SettleTimeout bounds how long Settle waits for background work.
const SettleTimeout = 5 * time.Second

// Drainer is the consumer side of a task dispatcher.
type Drainer interface {
	Drain() int
	Outstanding() int
	Ready() int
}

// Settle drains d until no task is running or queued, so a test can step the
// async pipeline to quiescence. Callbacks may submit more work; Settle keeps
// draining until that work is done too. Returns the number of callbacks run.
func Settle(t testing.TB, d Drainer) int {
	t.Helper()

	deadline := time.Now().Add(SettleTimeout)
	total := 0
	for {
		for d.Outstanding() > 0 {
			if time.Now().After(deadline) {
				t.Fatalf("background work did not settle in %v (outstanding=%d)", SettleTimeout, d.Outstanding())
			}
			time.Sleep(time.Millisecond)
		}
		n := d.Drain()
		total += n
		if n == 0 && d.Outstanding() == 0 && d.Ready() == 0 {
			return total
		}
	}
}

// DrainOnce waits for running work to finish and performs a single drain,
// leaving follow-up completions queued.
func DrainOnce(t testing.TB, d Drainer) int {
	t.Helper()

	deadline := time.Now().Add(SettleTimeout)
	for d.Outstanding() > 0 {
		if time.Now().After(deadline) {
			t.Fatalf("background work did not finish in %v", SettleTimeout)
		}
		time.Sleep(time.Millisecond)
	}
	return d.Drain()
}
