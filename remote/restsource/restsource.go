package restsource

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/rnr-capital/feedengine/model"
	"github.com/rnr-capital/feedengine/remote"
	Logger "github.com/rnr-capital/feedengine/utils/log"
)

const defaultRequestTimeout = 10 * time.Second

// Source talks to the hosted backend's REST surface. Documents come back
// duck-typed (timestamps as RFC3339 strings or epoch millis depending on the
// write path), so every read runs through decodeRawPost/decodeRawUser before
// anything downstream sees it.
type Source struct {
	base   string
	client *resty.Client
	dialer *websocket.Dialer
}

func New(baseURL string) *Source {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(defaultRequestTimeout).
		SetHeader("Accept", "application/json")
	return &Source{
		base:   strings.TrimRight(baseURL, "/"),
		client: client,
		dialer: websocket.DefaultDialer,
	}
}

type rawDoc map[string]interface{}

func (s *Source) QueryPosts(ctx context.Context, filter remote.PostFilter) ([]*model.Post, error) {
	if len(filter.AuthorIn) > remote.MaxAuthorIn {
		return nil, remote.ErrTooManyAuthors
	}

	req := s.client.R().SetContext(ctx)
	if len(filter.AuthorIn) > 0 {
		req.SetQueryParam("authorIn", strings.Join(filter.AuthorIn, ","))
	}
	if !filter.Before.IsZero() {
		req.SetQueryParam("before", filter.Before.UTC().Format(time.RFC3339Nano))
	}
	if filter.Limit > 0 {
		req.SetQueryParam("limit", strconv.Itoa(filter.Limit))
	}

	resp, err := req.Get("/posts")
	if err != nil {
		return nil, remote.WrapRemote(err, "query posts")
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, remote.WrapRemote(fmt.Errorf("status %d", resp.StatusCode()), "query posts")
	}

	var docs []rawDoc
	if err := json.Unmarshal(resp.Body(), &docs); err != nil {
		return nil, remote.WrapRemote(err, "decode posts")
	}
	posts := make([]*model.Post, 0, len(docs))
	for _, doc := range docs {
		posts = append(posts, decodeRawPost(doc))
	}
	return posts, nil
}

func (s *Source) QueryUsers(ctx context.Context, filter remote.UserFilter) ([]*model.UserProfile, error) {
	req := s.client.R().SetContext(ctx)
	if !filter.ActiveSince.IsZero() {
		req.SetQueryParam("activeSince", filter.ActiveSince.UTC().Format(time.RFC3339Nano))
	}
	if filter.Limit > 0 {
		req.SetQueryParam("limit", strconv.Itoa(filter.Limit))
	}

	resp, err := req.Get("/users")
	if err != nil {
		return nil, remote.WrapRemote(err, "query users")
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, remote.WrapRemote(fmt.Errorf("status %d", resp.StatusCode()), "query users")
	}

	var docs []rawDoc
	if err := json.Unmarshal(resp.Body(), &docs); err != nil {
		return nil, remote.WrapRemote(err, "decode users")
	}
	users := make([]*model.UserProfile, 0, len(docs))
	for _, doc := range docs {
		users = append(users, decodeRawUser(doc))
	}
	return users, nil
}

func (s *Source) GetUser(ctx context.Context, id string) (*model.UserProfile, error) {
	resp, err := s.client.R().SetContext(ctx).Get("/users/" + url.PathEscape(id))
	if err != nil {
		return nil, remote.WrapRemote(err, "get user")
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, errors.Wrapf(remote.ErrNotFound, "user %s", id)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, remote.WrapRemote(fmt.Errorf("status %d", resp.StatusCode()), "get user")
	}

	var doc rawDoc
	if err := json.Unmarshal(resp.Body(), &doc); err != nil {
		return nil, remote.WrapRemote(err, "decode user")
	}
	return decodeRawUser(doc), nil
}

// Subscribe opens the backend's websocket change stream. The returned cancel
// closes the socket, after which the event channel drains and closes.
func (s *Source) Subscribe(ctx context.Context, filter remote.PostFilter) (<-chan remote.ChangeEvent, remote.Cancel, error) {
	if len(filter.AuthorIn) > remote.MaxAuthorIn {
		return nil, nil, remote.ErrTooManyAuthors
	}

	wsURL := strings.Replace(s.base, "http", "ws", 1) + "/subscribe"
	if len(filter.AuthorIn) > 0 {
		wsURL += "?authorIn=" + url.QueryEscape(strings.Join(filter.AuthorIn, ","))
	}

	conn, _, err := s.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, nil, remote.WrapRemote(err, "subscribe dial")
	}

	events := make(chan remote.ChangeEvent)
	done := make(chan struct{})
	go func() {
		defer close(events)
		for {
			var raw struct {
				Type string `json:"type"`
				Post rawDoc `json:"post"`
			}
			if err := conn.ReadJSON(&raw); err != nil {
				select {
				case <-done:
				default:
					Logger.LogV2.Errorf("subscription stream closed:", err)
				}
				return
			}
			ev := remote.ChangeEvent{
				Type: remote.ChangeType(raw.Type),
				Post: decodeRawPost(raw.Post),
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	cancel := func() {
		select {
		case <-done:
			return
		default:
			close(done)
		}
		_ = conn.Close()
	}
	return events, cancel, nil
}

func decodeRawPost(doc rawDoc) *model.Post {
	p := &model.Post{
		Id:              str(doc["id"]),
		AuthorId:        str(doc["userId"]),
		AuthorName:      str(doc["userName"]),
		Content:         str(doc["content"]),
		BackgroundColor: str(doc["backgroundColor"]),
		CreatedAt:       model.ParseRemoteTime(doc["createdAt"]),
		UpdatedAt:       model.ParseRemoteTime(doc["updatedAt"]),
	}
	if likes, ok := doc["likes"].([]interface{}); ok {
		for _, l := range likes {
			p.Likes = append(p.Likes, str(l))
		}
	}
	if n, ok := doc["commentsCount"].(float64); ok {
		p.CommentsCount = int(n)
	}
	return model.NormalizePost(p)
}

func decodeRawUser(doc rawDoc) *model.UserProfile {
	u := &model.UserProfile{
		Id:        str(doc["id"]),
		Name:      str(doc["name"]),
		AvatarUrl: str(doc["avatarUrl"]),
		LastSeen:  model.ParseRemoteTime(doc["lastSeen"]),
	}
	if following, ok := doc["following"].([]interface{}); ok {
		for _, f := range following {
			u.Following = append(u.Following, str(f))
		}
	}
	return model.NormalizeUser(u)
}

func str(v interface{}) string {
	s, _ := v.(string)
	return s
}

var _ remote.Source = (*Source)(nil)
