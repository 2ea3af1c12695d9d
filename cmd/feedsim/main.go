package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rnr-capital/feedengine/config"
	"github.com/rnr-capital/feedengine/feed"
	"github.com/rnr-capital/feedengine/localstore"
	"github.com/rnr-capital/feedengine/model"
	"github.com/rnr-capital/feedengine/remote/memsource"
	"github.com/rnr-capital/feedengine/utils/dotenv"
	. "github.com/rnr-capital/feedengine/utils/flag"
	. "github.com/rnr-capital/feedengine/utils/log"
)

// feedsim runs one feed session against a seeded in-memory source and
// prints the ordered pages, for eyeballing strategy and ranking behavior
// without the hosted backend.

type stdoutRenderer struct{}

func (stdoutRenderer) RenderBatch(posts []*model.Post, firstBatch bool) {
	if firstBatch {
		fmt.Println("---- feed ----")
	} else {
		fmt.Println("---- more ----")
	}
	for _, p := range posts {
		fmt.Printf("%s  %-12s  likes=%d comments=%d  %s\n",
			p.CreatedAt.Format("15:04"), p.AuthorName, p.LikeCount(), p.CommentsCount, p.Content)
	}
}

func (stdoutRenderer) ShowCaughtUp(followingCount int) {
	if followingCount == 0 {
		fmt.Println("[welcome: follow some users to see their posts]")
		return
	}
	fmt.Println("[you're all caught up]")
}

func (stdoutRenderer) ShowNoMorePosts() {
	fmt.Println("[no more posts to show]")
}

func (stdoutRenderer) ShowNewPostsAvailable(count int) {
	fmt.Printf("[%d new posts available]\n", count)
}

func (stdoutRenderer) ShowError(err error) {
	fmt.Printf("[feed failed: %v, tap to retry]\n", err)
}

func seed(source *memsource.Source, viewerId string) {
	now := time.Now()

	authors := []*model.UserProfile{
		{Id: viewerId, Name: "you", LastSeen: now},
		{Id: "ada", Name: "Ada", LastSeen: now.Add(-2 * time.Hour)},
		{Id: "lin", Name: "Lin", LastSeen: now.Add(-26 * time.Hour)},
		{Id: "sam", Name: "Sam", LastSeen: now.Add(-3 * 24 * time.Hour)},
	}
	for _, u := range authors {
		source.SeedUser(u)
	}

	contents := []string{
		"Anyone tried the new compiler release?",
		"Shipping the rewrite today",
		"Weekend project: a tiny raytracer",
		"What is your favorite debugging story?",
		"Hot take: fewer meetings, more naps",
	}
	for i, content := range contents {
		for _, author := range []string{"ada", "lin", "sam"} {
			source.SeedPost(&model.Post{
				Id:            uuid.New().String(),
				AuthorId:      author,
				AuthorName:    author,
				Content:       content,
				Likes:         make([]string, i*2),
				CommentsCount: i,
				CreatedAt:     now.Add(-time.Duration(i+1) * time.Hour),
			})
		}
	}
}

func main() {
	ParseFlags()
	if err := dotenv.LoadDotEnvs(); err != nil {
		panic(err)
	}

	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	viewerId := "viewer"
	source := memsource.New()
	seed(source, viewerId)

	// Follow two authors so the light-user blend runs.
	source.SeedUser(&model.UserProfile{
		Id: viewerId, Name: "you", LastSeen: time.Now(),
		Following: []string{"ada", "lin"},
	})

	session := feed.NewSession(cfg, source, localstore.NewMemStore(), stdoutRenderer{}, viewerId)
	defer session.Close()

	ctx := context.Background()
	if err := session.LoadFeed(ctx); err != nil {
		LogV2.Errorf("initial load failed:", err)
		return
	}
	for i := 0; i < 3; i++ {
		if err := session.TriggerLoadMore(ctx); err != nil {
			break
		}
		if session.State() == feed.StateExhausted {
			break
		}
	}
}
