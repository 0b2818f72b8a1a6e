package chat

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// emitOnce источник, который сигналит ready прямо перед единственным emit
func emitOnce(ready chan<- struct{}, finished chan<- struct{}) source[int] {
	return func(ctx context.Context, opened func(), emit func(int)) error {
		defer close(finished)
		opened()
		close(ready)
		emit(1)
		<-ctx.Done()
		return nil
	}
}

func TestReleaseRacingEmitNeverFiresLate(t *testing.T) {
	for i := 0; i < 2000; i++ {
		ready := make(chan struct{})
		finished := make(chan struct{})
		var released atomic.Bool
		var late atomic.Int32

		sub := newSubscription[int](context.Background(), "race", zerolog.Nop(), emitOnce(ready, finished), func(int) {
			if released.Load() {
				late.Add(1)
			}
		}, subscribeOptions{})
		sub.start()

		<-ready
		sub.Release()
		released.Store(true)

		select {
		case <-finished:
		case <-time.After(2 * time.Second):
			t.Fatal("source did not stop after release")
		}
		require.Zero(t, late.Load(), "callback fired after Release returned (iteration %d)", i)
	}
}

func TestReleaseWaitsForRunningCallback(t *testing.T) {
	ready := make(chan struct{})
	finished := make(chan struct{})
	entered := make(chan struct{})
	unblock := make(chan struct{})

	sub := newSubscription[int](context.Background(), "slow", zerolog.Nop(), emitOnce(ready, finished), func(int) {
		close(entered)
		<-unblock
	}, subscribeOptions{})
	sub.start()
	<-entered

	returned := make(chan struct{})
	go func() {
		sub.Release()
		close(returned)
	}()

	require.Eventually(t, func() bool { return sub.State() == StateClosed }, time.Second, 5*time.Millisecond)
	assert.Never(t, func() bool {
		select {
		case <-returned:
			return true
		default:
			return false
		}
	}, 50*time.Millisecond, 5*time.Millisecond)

	close(unblock)
	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("Release did not return after the callback finished")
	}
	<-finished
}
