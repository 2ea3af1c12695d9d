package memsource

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rnr-capital/feedengine/model"
	"github.com/rnr-capital/feedengine/remote"
)

func TestQueryPostsOrderingAndLimit(t *testing.T) {
	s := New()
	base := time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		s.SeedPost(&model.Post{
			Id:        fmt.Sprintf("p%d", i),
			AuthorId:  "a",
			CreatedAt: base.Add(-time.Duration(i) * time.Hour),
		})
	}

	posts, err := s.QueryPosts(context.Background(), remote.PostFilter{Limit: 3})
	require.NoError(t, err)
	require.Len(t, posts, 3)
	assert.Equal(t, "p0", posts[0].Id)
	assert.Equal(t, "p1", posts[1].Id)
	assert.Equal(t, "p2", posts[2].Id)
}

func TestQueryPostsBeforeIsStrict(t *testing.T) {
	s := New()
	base := time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)
	s.SeedPost(&model.Post{Id: "at", AuthorId: "a", CreatedAt: base})
	s.SeedPost(&model.Post{Id: "older", AuthorId: "a", CreatedAt: base.Add(-time.Hour)})

	posts, err := s.QueryPosts(context.Background(), remote.PostFilter{Before: base})
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "older", posts[0].Id)
}

func TestQueryPostsAuthorCap(t *testing.T) {
	s := New()
	authors := make([]string, remote.MaxAuthorIn+1)
	for i := range authors {
		authors[i] = fmt.Sprintf("a%d", i)
	}
	_, err := s.QueryPosts(context.Background(), remote.PostFilter{AuthorIn: authors})
	assert.Equal(t, remote.ErrTooManyAuthors, err)
}

func TestGetUserNotFound(t *testing.T) {
	s := New()
	_, err := s.GetUser(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, remote.IsNotFound(err))
}

func TestFailureInjectionMarksRemoteErrors(t *testing.T) {
	s := New()
	s.FailNextWith(errors.New("backend down"))

	_, err := s.QueryPosts(context.Background(), remote.PostFilter{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, remote.ErrRemote))

	s.FailNextWith(nil)
	_, err = s.QueryPosts(context.Background(), remote.PostFilter{})
	assert.NoError(t, err)
}

func TestSubscribeReceivesFilteredEvents(t *testing.T) {
	s := New()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	events, stop, err := s.Subscribe(ctx, remote.PostFilter{AuthorIn: []string{"followed"}})
	require.NoError(t, err)
	defer stop()

	require.NoError(t, s.CreatePost(&model.Post{Id: "skip", AuthorId: "stranger", CreatedAt: time.Now()}))
	require.NoError(t, s.CreatePost(&model.Post{Id: "take", AuthorId: "followed", CreatedAt: time.Now()}))

	select {
	case ev := <-events:
		assert.Equal(t, remote.ChangeAdded, ev.Type)
		require.NotNil(t, ev.Post)
		assert.Equal(t, "take", ev.Post.Id)
	case <-ctx.Done():
		t.Fatal("no event before timeout")
	}
}

func TestSubscribeCancelClosesChannel(t *testing.T) {
	s := New()
	events, stop, err := s.Subscribe(context.Background(), remote.PostFilter{})
	require.NoError(t, err)

	stop()
	assert.Eventually(t, func() bool {
		select {
		case _, open := <-events:
			return !open
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
}
