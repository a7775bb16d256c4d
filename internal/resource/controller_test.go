package resource

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_Memory(t *testing.T) {
	c := NewController(Config{MemoryLimitBytes: 100})

	assert.True(t, c.Reserve(60))
	assert.True(t, c.Reserve(30))
	assert.Equal(t, int64(90), c.Reserved())

	assert.False(t, c.Reserve(20))
	assert.Equal(t, int64(90), c.Reserved())

	c.Release(60)
	assert.True(t, c.Reserve(20))
	assert.Equal(t, int64(50), c.Reserved())
}

func TestController_UnlimitedMemory(t *testing.T) {
	c := NewController(Config{})

	assert.True(t, c.Reserve(1<<40))
	assert.Equal(t, int64(1<<40), c.Reserved())
	assert.Equal(t, 1, c.Workers())
}

func TestController_Workers(t *testing.T) {
	c := NewController(Config{Workers: 2})

	require.NoError(t, c.AcquireWorker(t.Context()))
	require.NoError(t, c.AcquireWorker(t.Context()))

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.AcquireWorker(ctx), context.DeadlineExceeded)

	c.ReleaseWorker()
	require.NoError(t, c.AcquireWorker(t.Context()))
}

func TestController_NilIsUnlimited(t *testing.T) {
	var c *Controller

	assert.True(t, c.Reserve(1))
	c.Release(1)
	assert.Zero(t, c.Reserved())
	require.NoError(t, c.AcquireWorker(t.Context()))
	c.ReleaseWorker()
	require.NoError(t, c.WaitIO(t.Context(), 1<<30))
	assert.Equal(t, 1, c.Workers())
}

func TestWriter_LargeWriteIsChunked(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1 << 20})
	var buf bytes.Buffer

	w := NewWriter(t.Context(), &buf, c)
	payload := make([]byte, 3<<19) // exceeds the burst
	n, err := w.Write(payload)
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)
	assert.Equal(t, len(payload), buf.Len())
}

func TestWriter_Passthrough(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(t.Context(), &buf, nil)
	assert.Same(t, &buf, w)
}
