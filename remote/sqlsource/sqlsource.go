package sqlsource

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/rnr-capital/feedengine/model"
	"github.com/rnr-capital/feedengine/remote"
	Logger "github.com/rnr-capital/feedengine/utils/log"
)

// Source reads a self-hosted SQL mirror of the backend's documents. Useful
// when the vendor export lands in Postgres and the engine runs against the
// mirror instead of the live store. The mirror has no push channel, so
// Subscribe is implemented as a short-interval poll.
type Source struct {
	db           *gorm.DB
	pollInterval time.Duration
}

type postRow struct {
	Id              string `gorm:"primaryKey"`
	AuthorId        string
	AuthorName      string
	Content         string
	BackgroundColor string
	CommentsCount   int
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Likes           []likeRow `gorm:"foreignKey:PostId"`
}

func (postRow) TableName() string { return "posts" }

type likeRow struct {
	PostId    string `gorm:"primaryKey"`
	UserId    string `gorm:"primaryKey"`
	CreatedAt time.Time
}

func (likeRow) TableName() string { return "post_likes" }

type userRow struct {
	Id        string `gorm:"primaryKey"`
	Name      string
	AvatarUrl string
	LastSeen  time.Time
	Following []followRow `gorm:"foreignKey:UserId"`
}

func (userRow) TableName() string { return "users" }

type followRow struct {
	UserId      string `gorm:"primaryKey"`
	FollowingId string `gorm:"primaryKey"`
}

func (followRow) TableName() string { return "user_followings" }

func New(dsn string) (*Source, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, errors.Wrap(err, "open sql mirror")
	}
	return NewWithDB(db), nil
}

func NewWithDB(db *gorm.DB) *Source {
	return &Source{db: db, pollInterval: 5 * time.Second}
}

func (s *Source) QueryPosts(ctx context.Context, filter remote.PostFilter) ([]*model.Post, error) {
	if len(filter.AuthorIn) > remote.MaxAuthorIn {
		return nil, remote.ErrTooManyAuthors
	}

	query := s.db.WithContext(ctx).Model(&postRow{}).Preload("Likes", func(db *gorm.DB) *gorm.DB {
		// Keep the append-only like ordering.
		return db.Order("post_likes.created_at ASC")
	})
	if len(filter.AuthorIn) > 0 {
		query = query.Where("author_id IN ?", filter.AuthorIn)
	}
	if !filter.Before.IsZero() {
		query = query.Where("created_at < ?", filter.Before)
	}
	query = query.Order("created_at desc")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var rows []postRow
	if err := query.Find(&rows).Error; err != nil {
		return nil, remote.WrapRemote(err, "query posts")
	}
	posts := make([]*model.Post, 0, len(rows))
	for i := range rows {
		posts = append(posts, rowToPost(&rows[i]))
	}
	return posts, nil
}

func (s *Source) QueryUsers(ctx context.Context, filter remote.UserFilter) ([]*model.UserProfile, error) {
	query := s.db.WithContext(ctx).Model(&userRow{}).Preload("Following")
	if !filter.ActiveSince.IsZero() {
		query = query.Where("last_seen >= ?", filter.ActiveSince)
	}
	query = query.Order("last_seen desc")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var rows []userRow
	if err := query.Find(&rows).Error; err != nil {
		return nil, remote.WrapRemote(err, "query users")
	}
	users := make([]*model.UserProfile, 0, len(rows))
	for i := range rows {
		users = append(users, rowToUser(&rows[i]))
	}
	return users, nil
}

func (s *Source) GetUser(ctx context.Context, id string) (*model.UserProfile, error) {
	var row userRow
	result := s.db.WithContext(ctx).Preload("Following").Where("id = ?", id).First(&row)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(remote.ErrNotFound, "user %s", id)
	}
	if result.Error != nil {
		return nil, remote.WrapRemote(result.Error, "get user")
	}
	return rowToUser(&row), nil
}

// Subscribe polls the mirror for posts newer than the subscription start and
// emits them as added events. Modified/removed detection is out of scope for
// the mirror path.
func (s *Source) Subscribe(ctx context.Context, filter remote.PostFilter) (<-chan remote.ChangeEvent, remote.Cancel, error) {
	if len(filter.AuthorIn) > remote.MaxAuthorIn {
		return nil, nil, remote.ErrTooManyAuthors
	}

	subCtx, cancel := context.WithCancel(ctx)
	events := make(chan remote.ChangeEvent)
	lastSeen := time.Now()

	go func() {
		defer close(events)
		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-subCtx.Done():
				return
			case <-ticker.C:
			}
			posts, err := s.QueryPosts(subCtx, remote.PostFilter{AuthorIn: filter.AuthorIn, Limit: 20})
			if err != nil {
				Logger.LogV2.Errorf("mirror poll failed:", err)
				continue
			}
			for i := len(posts) - 1; i >= 0; i-- {
				p := posts[i]
				if !p.CreatedAt.After(lastSeen) {
					continue
				}
				lastSeen = p.CreatedAt
				select {
				case events <- remote.ChangeEvent{Type: remote.ChangeAdded, Post: p}:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()
	return events, remote.Cancel(cancel), nil
}

func rowToPost(row *postRow) *model.Post {
	p := &model.Post{
		Id:              row.Id,
		AuthorId:        row.AuthorId,
		AuthorName:      row.AuthorName,
		Content:         row.Content,
		BackgroundColor: row.BackgroundColor,
		CommentsCount:   row.CommentsCount,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}
	for _, like := range row.Likes {
		p.Likes = append(p.Likes, like.UserId)
	}
	return model.NormalizePost(p)
}

func rowToUser(row *userRow) *model.UserProfile {
	u := &model.UserProfile{
		Id:        row.Id,
		Name:      row.Name,
		AvatarUrl: row.AvatarUrl,
		LastSeen:  row.LastSeen,
	}
	for _, f := range row.Following {
		u.Following = append(u.Following, f.FollowingId)
	}
	return model.NormalizeUser(u)
}

var _ remote.Source = (*Source)(nil)
