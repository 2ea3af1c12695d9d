package utils

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitForImmediateSuccess(t *testing.T) {
	err := WaitFor(context.Background(), func() bool { return true }, time.Second)
	assert.NoError(t, err)
}

func TestWaitForEventualSuccess(t *testing.T) {
	calls := 0
	err := WaitFor(context.Background(), func() bool {
		calls++
		return calls >= 3
	}, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWaitForTimeout(t *testing.T) {
	err := WaitFor(context.Background(), func() bool { return false }, 150*time.Millisecond)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrWaitTimeout))
}

func TestWaitForContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WaitFor(ctx, func() bool { return false }, time.Minute)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrWaitTimeout))
	assert.Equal(t, context.Canceled, err)
}
