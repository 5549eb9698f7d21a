package pool_test

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swoopdl/swoop/internal/pool"
)

func TestSubmitAndExecute(t *testing.T) {
	p := pool.New(4, 16)
	defer p.Shutdown(true)

	var executed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		err := p.Submit(func() error {
			defer wg.Done()
			executed.Add(1)
			return nil
		})
		require.NoError(t, err)
	}
	wg.Wait()
	assert.Equal(t, int32(10), executed.Load())
}

func TestTaskErrorDoesNotKillWorker(t *testing.T) {
	p := pool.New(1, 8)
	defer p.Shutdown(true)

	var wg sync.WaitGroup
	wg.Add(2)
	require.NoError(t, p.Submit(func() error {
		defer wg.Done()
		return errors.New("task failed")
	}))

	var ran atomic.Bool
	require.NoError(t, p.Submit(func() error {
		defer wg.Done()
		ran.Store(true)
		return nil
	}))
	wg.Wait()
	assert.True(t, ran.Load(), "worker must survive a failing task")
}

func TestTaskPanicRecovered(t *testing.T) {
	p := pool.New(1, 8)
	defer p.Shutdown(true)

	var wg sync.WaitGroup
	wg.Add(2)
	require.NoError(t, p.Submit(func() error {
		defer wg.Done()
		panic("boom")
	}))

	var ran atomic.Bool
	require.NoError(t, p.Submit(func() error {
		defer wg.Done()
		ran.Store(true)
		return nil
	}))
	wg.Wait()
	assert.True(t, ran.Load(), "worker must survive a panicking task")
}

func TestSubmitAfterShutdown(t *testing.T) {
	p := pool.New(2, 8)
	p.Shutdown(false)

	err := p.Submit(func() error { return nil })
	assert.ErrorIs(t, err, pool.ErrShuttingDown)

	// repeated shutdown is harmless
	p.Shutdown(true)
}

func TestShutdownWaitDrainsQueue(t *testing.T) {
	p := pool.New(2, 16)

	var executed atomic.Int32
	for i := 0; i < 8; i++ {
		require.NoError(t, p.Submit(func() error {
			time.Sleep(10 * time.Millisecond)
			executed.Add(1)
			return nil
		}))
	}
	p.Shutdown(true)
	assert.Equal(t, int32(8), executed.Load(), "queued tasks must finish before Shutdown(wait) returns")
}

func TestSubmitQueueFull(t *testing.T) {
	p := pool.New(1, 1)
	defer p.Shutdown(true)

	gate := make(chan struct{})
	defer close(gate)
	require.NoError(t, p.Submit(func() error {
		<-gate
		return nil
	}))

	// one task blocks the worker; fill the queue, then overflow
	var err error
	for i := 0; i < 4; i++ {
		err = p.Submit(func() error { return nil })
		if err != nil {
			break
		}
	}
	assert.ErrorIs(t, err, pool.ErrQueueFull)
}
