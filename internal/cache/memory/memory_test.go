package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	c := New()
	ctx := context.Background()

	ok, err := c.Exists(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Write(ctx, "a", []byte("payload")))
	ok, err = c.Exists(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := c.Read(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)

	require.NoError(t, c.Delete(ctx, "a"))
	assert.Equal(t, 0, c.Len())
}

func TestRead_MissingEntry(t *testing.T) {
	c := New()
	_, err := c.Read(context.Background(), "missing")
	assert.Error(t, err)
}

func TestRead_ReturnsCopy(t *testing.T) {
	c := New()
	ctx := context.Background()
	require.NoError(t, c.Write(ctx, "a", []byte("abc")))

	got, err := c.Read(ctx, "a")
	require.NoError(t, err)
	got[0] = 'X'

	again, err := c.Read(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), again)
}

func TestConcurrentAccess(t *testing.T) {
	c := New()
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := string(rune('a' + n%26))
			_ = c.Write(ctx, id, []byte{byte(n)})
			_, _ = c.Exists(ctx, id)
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 26)
}
