package actor

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_PutGetErase(t *testing.T) {
	sys := newTestSystem(t)
	reg := sys.Registry()
	h := spawnSquarer(sys)

	require.NoError(t, reg.Put("sq", h))
	got, ok := reg.Get("sq")
	require.True(t, ok)
	require.Equal(t, h, got)
	require.Equal(t, []string{"sq"}, reg.Names())

	reg.Erase("sq")
	_, ok = reg.Get("sq")
	require.False(t, ok)

	require.ErrorIs(t, reg.Put("", h), ErrInvalidRequest)
	require.ErrorIs(t, reg.Put("nil", Handle{}), ErrInvalidRequest)
}

func TestRegistry_DropsTerminated(t *testing.T) {
	sys := newTestSystem(t)
	reg := sys.Registry()
	h := spawnSquarer(sys)
	require.NoError(t, reg.Put("sq", h))

	Kill(h, nil)
	waitDone(t, h)
	_, ok := reg.Get("sq")
	require.False(t, ok)
	require.Empty(t, reg.Names())
}

func TestRegistry_GetOrSpawnOnce(t *testing.T) {
	sys := newTestSystem(t)
	reg := sys.Registry()
	var spawned atomic.Int32

	var wg sync.WaitGroup
	handles := make([]Handle, 20)
	for i := range handles {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := reg.GetOrSpawn("sq", func() Handle {
				spawned.Add(1)
				time.Sleep(10 * time.Millisecond)
				return spawnSquarer(sys)
			})
			assert.NoError(t, err)
			handles[i] = h
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), spawned.Load())
	for _, h := range handles {
		require.Equal(t, handles[0], h)
	}
}
