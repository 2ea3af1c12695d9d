package memsource

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/pkg/errors"

	"github.com/rnr-capital/feedengine/model"
	"github.com/rnr-capital/feedengine/remote"
)

const changeTopic = "post_changes"

// Source is an in-memory remote.Source. It backs unit tests and the feedsim
// binary, and is the reference implementation of the query semantics the
// hosted backend provides: newest-first ordering, the authorIn cap, and
// realtime change events.
type Source struct {
	mu    sync.RWMutex
	posts map[string]*model.Post
	users map[string]*model.UserProfile

	// next remote call fails with this error when set, used to exercise
	// the fallback chains
	failWith error

	bus *gochannel.GoChannel
}

func New() *Source {
	return &Source{
		posts: map[string]*model.Post{},
		users: map[string]*model.UserProfile{},
		bus:   gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{}),
	}
}

// FailNextWith makes every remote call fail until cleared with nil.
func (s *Source) FailNextWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = err
}

func (s *Source) checkFailure() error {
	if s.failWith != nil {
		return remote.WrapRemote(s.failWith, "memsource")
	}
	return nil
}

func (s *Source) QueryPosts(ctx context.Context, filter remote.PostFilter) ([]*model.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkFailure(); err != nil {
		return nil, err
	}
	if len(filter.AuthorIn) > remote.MaxAuthorIn {
		return nil, remote.ErrTooManyAuthors
	}

	var authorSet map[string]bool
	if len(filter.AuthorIn) > 0 {
		authorSet = make(map[string]bool, len(filter.AuthorIn))
		for _, id := range filter.AuthorIn {
			authorSet[id] = true
		}
	}

	results := []*model.Post{}
	for _, p := range s.posts {
		if authorSet != nil && !authorSet[p.AuthorId] {
			continue
		}
		if !filter.Before.IsZero() && !p.CreatedAt.Before(filter.Before) {
			continue
		}
		copied := *p
		results = append(results, model.NormalizePost(&copied))
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].CreatedAt.Equal(results[j].CreatedAt) {
			return results[i].Id < results[j].Id
		}
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})
	if filter.Limit > 0 && len(results) > filter.Limit {
		results = results[:filter.Limit]
	}
	return results, nil
}

func (s *Source) QueryUsers(ctx context.Context, filter remote.UserFilter) ([]*model.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkFailure(); err != nil {
		return nil, err
	}

	results := []*model.UserProfile{}
	for _, u := range s.users {
		if !filter.ActiveSince.IsZero() && u.LastSeen.Before(filter.ActiveSince) {
			continue
		}
		copied := *u
		results = append(results, model.NormalizeUser(&copied))
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].LastSeen.Equal(results[j].LastSeen) {
			return results[i].Id < results[j].Id
		}
		return results[i].LastSeen.After(results[j].LastSeen)
	})
	if filter.Limit > 0 && len(results) > filter.Limit {
		results = results[:filter.Limit]
	}
	return results, nil
}

func (s *Source) GetUser(ctx context.Context, id string) (*model.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkFailure(); err != nil {
		return nil, err
	}
	u, ok := s.users[id]
	if !ok {
		return nil, errors.Wrapf(remote.ErrNotFound, "user %s", id)
	}
	copied := *u
	return model.NormalizeUser(&copied), nil
}

func (s *Source) Subscribe(ctx context.Context, filter remote.PostFilter) (<-chan remote.ChangeEvent, remote.Cancel, error) {
	s.mu.RLock()
	failed := s.checkFailure()
	s.mu.RUnlock()
	if failed != nil {
		return nil, nil, failed
	}

	subCtx, cancel := context.WithCancel(ctx)
	msgs, err := s.bus.Subscribe(subCtx, changeTopic)
	if err != nil {
		cancel()
		return nil, nil, remote.WrapRemote(err, "subscribe")
	}

	var authorSet map[string]bool
	if len(filter.AuthorIn) > 0 {
		authorSet = make(map[string]bool, len(filter.AuthorIn))
		for _, id := range filter.AuthorIn {
			authorSet[id] = true
		}
	}

	events := make(chan remote.ChangeEvent)
	go func() {
		defer close(events)
		for msg := range msgs {
			var ev remote.ChangeEvent
			if err := json.Unmarshal(msg.Payload, &ev); err != nil {
				msg.Ack()
				continue
			}
			msg.Ack()
			if authorSet != nil && (ev.Post == nil || !authorSet[ev.Post.AuthorId]) {
				continue
			}
			select {
			case events <- ev:
			case <-subCtx.Done():
				return
			}
		}
	}()
	return events, remote.Cancel(cancel), nil
}

// SeedUser and SeedPost load fixtures without emitting change events.
func (s *Source) SeedUser(u *model.UserProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.Id] = model.NormalizeUser(u)
}

func (s *Source) SeedPost(p *model.Post) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts[p.Id] = model.NormalizePost(p)
}

// CreatePost stores a post and fans out an added event to subscribers.
func (s *Source) CreatePost(p *model.Post) error {
	s.mu.Lock()
	s.posts[p.Id] = model.NormalizePost(p)
	s.mu.Unlock()
	return s.publish(remote.ChangeEvent{Type: remote.ChangeAdded, Post: p})
}

func (s *Source) UpdatePost(p *model.Post) error {
	s.mu.Lock()
	if _, ok := s.posts[p.Id]; !ok {
		s.mu.Unlock()
		return errors.Wrapf(remote.ErrNotFound, "post %s", p.Id)
	}
	s.posts[p.Id] = model.NormalizePost(p)
	s.mu.Unlock()
	return s.publish(remote.ChangeEvent{Type: remote.ChangeModified, Post: p})
}

func (s *Source) DeletePost(id string) error {
	s.mu.Lock()
	p, ok := s.posts[id]
	if !ok {
		s.mu.Unlock()
		return errors.Wrapf(remote.ErrNotFound, "post %s", id)
	}
	delete(s.posts, id)
	s.mu.Unlock()
	return s.publish(remote.ChangeEvent{Type: remote.ChangeRemoved, Post: p})
}

func (s *Source) publish(ev remote.ChangeEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return s.bus.Publish(changeTopic, message.NewMessage(watermill.NewUUID(), payload))
}

var _ remote.Source = (*Source)(nil)
