package resource

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_Buffer(t *testing.T) {
	c := NewController(Config{BufferLimitBytes: 100})

	require.NoError(t, c.AcquireBuffer(context.Background(), 50))
	require.NoError(t, c.AcquireBuffer(context.Background(), 40))
	assert.Equal(t, int64(90), c.BufferUsage())

	assert.False(t, c.TryAcquireBuffer(20))
	assert.Equal(t, int64(90), c.BufferUsage())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.AcquireBuffer(ctx, 20), context.DeadlineExceeded)

	c.ReleaseBuffer(50)
	assert.Equal(t, int64(40), c.BufferUsage())
	require.NoError(t, c.AcquireBuffer(context.Background(), 20))
	assert.Equal(t, int64(60), c.BufferUsage())
}

func TestController_OversizedBufferIsClamped(t *testing.T) {
	c := NewController(Config{BufferLimitBytes: 10})

	require.NoError(t, c.AcquireBuffer(context.Background(), 1000))
	assert.Equal(t, int64(1000), c.BufferUsage())
	assert.False(t, c.TryAcquireBuffer(1))

	c.ReleaseBuffer(1000)
	assert.True(t, c.TryAcquireBuffer(1))
}

func TestController_Workers(t *testing.T) {
	c := NewController(Config{MaxWorkers: 2})

	require.NoError(t, c.AcquireWorker(context.Background()))
	require.NoError(t, c.AcquireWorker(context.Background()))
	assert.False(t, c.TryAcquireWorker())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.AcquireWorker(ctx), context.DeadlineExceeded)

	c.ReleaseWorker()
	assert.True(t, c.TryAcquireWorker())
}

func TestController_Defaults(t *testing.T) {
	c := NewController(Config{})
	assert.Equal(t, int64(4), c.Config().MaxWorkers)
	require.NoError(t, c.AcquireBuffer(context.Background(), 1<<30))
	require.NoError(t, c.WaitIO(context.Background(), 1<<30))
}

func TestController_Nil(t *testing.T) {
	var c *Controller
	ctx := context.Background()
	require.NoError(t, c.AcquireWorker(ctx))
	c.ReleaseWorker()
	require.NoError(t, c.AcquireBuffer(ctx, 10))
	c.ReleaseBuffer(10)
	require.NoError(t, c.WaitIO(ctx, 10))
	assert.Zero(t, c.BufferUsage())
}

func TestController_WaitIOChunksLargeRequests(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1 << 20})

	// Larger than the burst; must not fail with "exceeds burst".
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.WaitIO(ctx, (1<<20)+10))
}

func TestReaderWriter(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1 << 20})
	ctx := context.Background()

	var buf bytes.Buffer
	w := NewWriter(ctx, &buf, c)
	_, err := io.Copy(w, strings.NewReader("kick snare hat"))
	require.NoError(t, err)

	out, err := io.ReadAll(NewReader(ctx, &buf, c))
	require.NoError(t, err)
	assert.Equal(t, "kick snare hat", string(out))

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	_, err = NewWriter(cctx, io.Discard, c).Write([]byte("x"))
	assert.ErrorIs(t, err, context.Canceled)
}
