package guard

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuard_AcquireRelease(t *testing.T) {
	var drops int
	g := New(func() { drops++ })

	assert.Equal(t, Idle, g.State())
	require.True(t, g.TryAcquire())
	assert.Equal(t, Executing, g.State())

	assert.False(t, g.TryAcquire())
	assert.Equal(t, uint64(1), g.Dropped())
	assert.Equal(t, 1, drops)
	assert.Equal(t, Executing, g.State(), "a rejected attempt leaves the state alone")

	g.Release()
	assert.Equal(t, Idle, g.State())
	assert.True(t, g.TryAcquire())
}

func TestGuard_ReleaseIdlePanics(t *testing.T) {
	g := New(nil)
	assert.Panics(t, g.Release)
}

func TestGuard_GoReleasesWhenDone(t *testing.T) {
	g := New(nil)
	release := make(chan struct{})

	require.True(t, g.Go(func() { <-release }))
	assert.Equal(t, Executing, g.State())
	assert.False(t, g.Go(func() { t.Error("admitted while executing") }))

	close(release)
	require.Eventually(t, func() bool { return g.State() == Idle }, time.Second, time.Millisecond)
}

func TestGuard_DropHasNoSideEffects(t *testing.T) {
	g := New(nil)
	var calls atomic.Int32

	require.True(t, g.TryAcquire())
	assert.False(t, g.Go(func() { calls.Add(1) }))
	assert.Zero(t, calls.Load())
	g.Release()

	done := make(chan struct{})
	require.True(t, g.Go(func() {
		calls.Add(1)
		close(done)
	}))
	<-done
	assert.Equal(t, int32(1), calls.Load())
}

func TestGuard_Concurrent(t *testing.T) {
	const workers = 64
	g := New(nil)

	var (
		active    atomic.Int32
		maxActive atomic.Int32
		admitted  atomic.Int32
		start     = make(chan struct{})
		wg        sync.WaitGroup
		runs      sync.WaitGroup
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			runs.Add(1)
			ok := g.Go(func() {
				defer runs.Done()
				admitted.Add(1)
				n := active.Add(1)
				for {
					m := maxActive.Load()
					if n <= m || maxActive.CompareAndSwap(m, n) {
						break
					}
				}
				active.Add(-1)
			})
			if !ok {
				runs.Done()
			}
		}()
	}
	close(start)
	wg.Wait()
	runs.Wait()

	assert.Equal(t, int32(1), maxActive.Load(), "at most one pipeline may run at a time")
	assert.Equal(t, uint64(workers), uint64(admitted.Load())+g.Dropped())
	require.Eventually(t, func() bool { return g.State() == Idle }, time.Second, time.Millisecond)
}
