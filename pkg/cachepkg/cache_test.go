package cachepkg

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestValue(t *testing.T) {
	c := New[string](50 * time.Millisecond)

	_, ok := c.Get()
	require.False(t, ok)

	c.Set("latest")

	got, ok := c.Get()
	require.True(t, ok)
	require.Equal(t, "latest", got)

	time.Sleep(60 * time.Millisecond)

	_, ok = c.Get()
	require.False(t, ok)

	c.Set("fresh")
	c.Invalidate()

	_, ok = c.Get()
	require.False(t, ok)
}
