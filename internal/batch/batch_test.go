package batch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunSequentialRunsEveryRep(t *testing.T) {
	var seen []int
	results, err := RunSequential(context.Background(), 3, func(_ context.Context, rep int) error {
		seen = append(seen, rep)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, seen)
	assert.Len(t, results, 3)
}

func TestRunSequentialStopsOnFirstError(t *testing.T) {
	var seen []int
	_, err := RunSequential(context.Background(), 5, func(_ context.Context, rep int) error {
		seen = append(seen, rep)
		if rep == 1 {
			return errors.New("boom")
		}
		return nil
	})
	require.Error(t, err)
	assert.Equal(t, []int{0, 1}, seen)
}
