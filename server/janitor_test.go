package server

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type countingSweeper struct {
	calls atomic.Int64
	err   error
}

func (c *countingSweeper) DeleteExpired(context.Context) (int64, error) {
	c.calls.Add(1)
	return 1, c.err
}

func TestSweepContinuesPastFailures(t *testing.T) {
	failing := &countingSweeper{err: errors.New("store down")}
	ok := &countingSweeper{}

	sweep(context.Background(), map[string]Sweeper{"sessions": failing, "codes": ok})

	require.EqualValues(t, 1, failing.calls.Load())
	require.EqualValues(t, 1, ok.calls.Load())
}

func TestRunJanitorStopsWithContext(t *testing.T) {
	sw := &countingSweeper{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		RunJanitor(ctx, 5*time.Millisecond, map[string]Sweeper{"sessions": sw})
		close(done)
	}()

	require.Eventually(t, func() bool { return sw.calls.Load() >= 2 }, time.Second, time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}

func TestRunJanitorDisabled(t *testing.T) {
	// Returns immediately instead of blocking.
	RunJanitor(context.Background(), 0, map[string]Sweeper{"sessions": &countingSweeper{}})
}
