package model

import (
	"time"
)

/*

Post is a data model for a single user-authored post

Id: primary key, use to identify a post
AuthorId: user who authored this post, owner of all edits and the delete
AuthorName: denormalized display name of the author, may lag profile renames
Content: textual body of the post
BackgroundColor: optional background tag picked at compose time, "" when unset
Likes: ids of users who liked this post, append-only ordering
CommentsCount: number of comments, maintained by subcollection writes remotely
CreatedAt: server-assigned creation time, used for all recency ordering
UpdatedAt: server-assigned time of the last edit

*/
type Post struct {
	Id              string    `json:"id"`
	AuthorId        string    `json:"userId"`
	AuthorName      string    `json:"userName"`
	Content         string    `json:"content"`
	BackgroundColor string    `json:"backgroundColor,omitempty"`
	Likes           []string  `json:"likes"`
	CommentsCount   int       `json:"commentsCount"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func (p *Post) LikeCount() int {
	return len(p.Likes)
}

func (p *Post) IsLikedBy(userId string) bool {
	for _, id := range p.Likes {
		if id == userId {
			return true
		}
	}
	return false
}

/*

Comment is a data model for a single comment under a post

Comments live in a per-post subcollection remotely, this engine only reads
them for the comment cache region.

*/
type Comment struct {
	Id        string    `json:"id"`
	PostId    string    `json:"postId"`
	AuthorId  string    `json:"userId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}
