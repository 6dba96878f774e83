package batch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunChunking(t *testing.T) {
	t.Parallel()

	items := []int{1, 2, 3, 4, 5}
	var chunks [][]int
	err := Run(context.Background(), items, 2, func(_ context.Context, chunk []int) error {
		chunks = append(chunks, append([]int(nil), chunk...))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, [][]int{{1, 2}, {3, 4}, {5}}, chunks)
}

func TestRunExactMultiple(t *testing.T) {
	t.Parallel()

	var calls int
	err := Run(context.Background(), []string{"a", "b", "c", "d"}, 2, func(_ context.Context, chunk []string) error {
		calls++
		assert.Len(t, chunk, 2)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestRunEmptyItems(t *testing.T) {
	t.Parallel()

	err := Run(context.Background(), nil, 3, func(_ context.Context, _ []int) error {
		t.Fatal("worker must not run for empty input")
		return nil
	})
	assert.NoError(t, err)
}

func TestRunRejectsNonPositiveSize(t *testing.T) {
	t.Parallel()

	err := Run(context.Background(), []int{1}, 0, func(_ context.Context, _ []int) error { return nil })
	assert.Error(t, err)

	err = Run(context.Background(), []int{1}, -1, func(_ context.Context, _ []int) error { return nil })
	assert.Error(t, err)
}

func TestRunContinuesAfterFailedChunk(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	var chunks [][]int
	err := Run(context.Background(), []int{1, 2, 3, 4}, 2, func(_ context.Context, chunk []int) error {
		chunks = append(chunks, append([]int(nil), chunk...))
		if chunk[0] == 1 {
			return boom
		}
		return nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, [][]int{{1, 2}, {3, 4}}, chunks, "later chunks still run after a failure")
}

func TestRunStopsOnCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	err := Run(ctx, []int{1, 2, 3, 4}, 2, func(_ context.Context, _ []int) error {
		calls++
		cancel()
		return nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestCount(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, Count(0, 10))
	assert.Equal(t, 1, Count(1, 10))
	assert.Equal(t, 1, Count(10, 10))
	assert.Equal(t, 2, Count(11, 10))
	assert.Equal(t, 3, Count(5, 2))
	assert.Equal(t, 0, Count(5, 0))
}
