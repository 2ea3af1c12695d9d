package model

import (
	"time"

	"github.com/araddon/dateparse"
)

// Remote documents are duck-typed and optional-field-heavy. Every read passes
// through exactly one of these normalizers so downstream logic never has to
// re-check for missing fields.

const defaultAuthorName = "Anonymous"

func NormalizePost(p *Post) *Post {
	if p.Likes == nil {
		p.Likes = []string{}
	}
	if p.CommentsCount < 0 {
		p.CommentsCount = 0
	}
	if p.AuthorName == "" {
		p.AuthorName = defaultAuthorName
	}
	if p.BackgroundColor == "transparent" {
		p.BackgroundColor = ""
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
	return p
}

func NormalizeUser(u *UserProfile) *UserProfile {
	if u.Following == nil {
		u.Following = []string{}
	}
	if u.Name == "" {
		u.Name = defaultAuthorName
	}
	return u
}

// ParseRemoteTime turns the loosely-typed timestamps the remote store hands
// back (RFC3339 strings, epoch millis as float, native time) into time.Time.
// Unparseable values collapse to the zero time, which sorts last.
func ParseRemoteTime(v interface{}) time.Time {
	switch t := v.(type) {
	case nil:
		return time.Time{}
	case time.Time:
		return t
	case string:
		parsed, err := dateparse.ParseAny(t)
		if err != nil {
			return time.Time{}
		}
		return parsed
	case float64:
		return time.Unix(0, int64(t)*int64(time.Millisecond))
	case int64:
		return time.Unix(0, t*int64(time.Millisecond))
	default:
		return time.Time{}
	}
}
