package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal_AcquireRelease(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	release, err := l.Acquire(ctx, "withdraw:1", time.Second)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "withdraw:1", time.Second)
	assert.ErrorIs(t, err, ErrBusy)

	other, err := l.Acquire(ctx, "withdraw:2", time.Second)
	require.NoError(t, err)
	other()

	release()
	release() // second call is a no-op

	again, err := l.Acquire(ctx, "withdraw:1", time.Second)
	require.NoError(t, err)
	again()
}

func TestLocal_OnlyOneConcurrentHolder(t *testing.T) {
	l := NewLocal()
	var (
		wg      sync.WaitGroup
		winners atomic.Int32
		start   = make(chan struct{})
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, err := l.Acquire(context.Background(), "k", time.Second); err == nil {
				winners.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()
	assert.Equal(t, int32(1), winners.Load())
}

func TestRedis_KeyNamespace(t *testing.T) {
	cases := map[string]string{
		"reservation:lock":  "reservation:lock:withdraw:7",
		"reservation:lock:": "reservation:lock:withdraw:7",
		"":                  "withdraw:7",
	}
	for prefix, want := range cases {
		assert.Equal(t, want, NewRedis(nil, prefix, nil).key("withdraw:7"), "prefix %q", prefix)
	}
}
