package feed

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rnr-capital/feedengine/remote"
)

func countingFactory(cancelled *int) SubscriptionFactory {
	return func() (remote.Cancel, error) {
		return func() { *cancelled++ }, nil
	}
}

func TestReplaceCancelsPrevious(t *testing.T) {
	m := NewSubscriptionManager()
	first, second := 0, 0

	require.NoError(t, m.Replace("feed", countingFactory(&first)))
	assert.Equal(t, 1, m.Active())

	require.NoError(t, m.Replace("feed", countingFactory(&second)))
	assert.Equal(t, 1, m.Active(), "one subscription per key")
	assert.Equal(t, 1, first, "previous holder torn down")
	assert.Equal(t, 0, second)
}

func TestReplaceFactoryFailureLeavesKeyEmpty(t *testing.T) {
	m := NewSubscriptionManager()
	first := 0
	require.NoError(t, m.Replace("feed", countingFactory(&first)))

	err := m.Replace("feed", func() (remote.Cancel, error) {
		return nil, errors.New("subscribe rejected")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, first, "old subscription already cancelled")
	assert.Equal(t, 0, m.Active())
}

func TestCancelIsScopedToKey(t *testing.T) {
	m := NewSubscriptionManager()
	feed, comments := 0, 0
	require.NoError(t, m.Replace("feed", countingFactory(&feed)))
	require.NoError(t, m.Replace("comments", countingFactory(&comments)))

	m.Cancel("feed")
	assert.Equal(t, 1, feed)
	assert.Equal(t, 0, comments)
	assert.Equal(t, 1, m.Active())

	// Cancelling an absent key is a no-op.
	m.Cancel("feed")
	assert.Equal(t, 1, feed)
}

func TestCancelAll(t *testing.T) {
	m := NewSubscriptionManager()
	feed, comments := 0, 0
	require.NoError(t, m.Replace("feed", countingFactory(&feed)))
	require.NoError(t, m.Replace("comments", countingFactory(&comments)))

	m.CancelAll()
	assert.Equal(t, 1, feed)
	assert.Equal(t, 1, comments)
	assert.Equal(t, 0, m.Active())
}
