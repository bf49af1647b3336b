package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanupRunsOnceWhenUnreachable(t *testing.T) {
	rt := newRuntime(t)

	var got []any
	cleaner := func(data any, length int) {
		got = append(got, data)
		assert.Equal(t, 3, length)
	}

	_, err := rt.InFrame(func() (*Handle, error) {
		_, err := rt.Handle("abc", 3, cleaner)
		return nil, err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, rt.Stats().PendingCleanups)

	assert.Equal(t, 1, rt.Recycle())
	assert.Equal(t, []any{"abc"}, got)
	assert.Equal(t, 0, rt.Recycle())
	assert.Len(t, got, 1)
	assert.Equal(t, 0, rt.Stats().PendingCleanups)
}

func TestCleanupRoots(t *testing.T) {
	rt := newRuntime(t)
	calls := 0
	cleaner := func(any, int) { calls++ }

	t.Run("live handle", func(t *testing.T) {
		h, err := rt.Handle(1, 0, cleaner)
		require.NoError(t, err)
		assert.Equal(t, 0, rt.Recycle())
		_, err = rt.Manage(h)
		require.NoError(t, err)
		assert.Equal(t, 0, rt.Recycle())
	})

	t.Run("word context", func(t *testing.T) {
		_, err := rt.InFrame(func() (*Handle, error) {
			h, err := rt.Handle(2, 0, cleaner)
			if err != nil {
				return nil, err
			}
			return nil, rt.Elide(S("keep: reduce ["), V(h), S("]"))
		})
		require.NoError(t, err)
		assert.Equal(t, 0, rt.Recycle(), "reachable through keep")

		require.NoError(t, rt.Elide(S("keep: 0")))
		assert.Equal(t, 1, rt.Recycle())
	})

	assert.Equal(t, 1, calls)
}

func TestShutdownCleanups(t *testing.T) {
	t.Run("clean shutdown runs pending cleanups", func(t *testing.T) {
		rt := newRuntime(t)
		calls := 0
		_, err := rt.Handle(nil, 0, func(any, int) { calls++ })
		require.NoError(t, err)

		require.NoError(t, rt.Shutdown(true))
		assert.Equal(t, 1, calls)
	})

	t.Run("fast shutdown skips them", func(t *testing.T) {
		rt := newRuntime(t)
		calls := 0
		_, err := rt.Handle(nil, 0, func(any, int) { calls++ })
		require.NoError(t, err)

		require.NoError(t, rt.Shutdown(false))
		assert.Equal(t, 0, calls)
	})

	t.Run("handles without a cleaner are not tracked", func(t *testing.T) {
		rt := newRuntime(t)
		_, err := rt.Handle("x", 1, nil)
		require.NoError(t, err)
		assert.Equal(t, 0, rt.Stats().PendingCleanups)
	})
}
