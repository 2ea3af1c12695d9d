package ranking

import (
	"sort"
	"strings"
	"time"

	"github.com/rnr-capital/feedengine/model"
)

// Tie-break rules are strictly ordered: the viewer's own posts first, then
// followed authors, then engagement, then recency. Engagement only decides
// when the gap is wide enough that it is not noise; below the threshold
// recency wins, so micro-differences never override freshness.
const EngagementDecisiveGap = 10.0

// EngagementScore is likes plus double-weighted comments, normalized by the
// post's age in hours (floored at one hour so fresh posts aren't divided by
// a near-zero age).
func EngagementScore(p *model.Post, now time.Time) float64 {
	hoursOld := now.Sub(p.CreatedAt).Hours()
	if hoursOld < 1 {
		hoursOld = 1
	}
	return (float64(p.LikeCount()) + float64(p.CommentsCount)*2) / hoursOld
}

// Less reports whether a ranks strictly above b for the viewer.
func Less(a, b *model.Post, viewer *model.ViewerContext, now time.Time) bool {
	aSelf, bSelf := viewer.IsSelf(a.AuthorId), viewer.IsSelf(b.AuthorId)
	if aSelf != bSelf {
		return aSelf
	}

	aFollowed, bFollowed := viewer.IsFollowing(a.AuthorId), viewer.IsFollowing(b.AuthorId)
	if aFollowed != bFollowed {
		return aFollowed
	}

	aScore, bScore := EngagementScore(a, now), EngagementScore(b, now)
	diff := aScore - bScore
	if diff > EngagementDecisiveGap || diff < -EngagementDecisiveGap {
		return aScore > bScore
	}

	return a.CreatedAt.After(b.CreatedAt)
}

// Sort orders candidates in place by the tie-break rules. Stable so equal
// posts keep retrieval order, which pins down a total order for tests.
func Sort(posts []*model.Post, viewer *model.ViewerContext, now time.Time) {
	sort.SliceStable(posts, func(i, j int) bool {
		return Less(posts[i], posts[j], viewer, now)
	})
}

// Score is the fuller additive 0-100 relevance used by the personalized
// retrieval mode.
//
// recency:      up to 40 pts, decaying 1.67/hour, floored at 0
// engagement:   up to 35 pts from engagement-per-hour
// relationship: 25 self / 20 followed / 5 stranger
// quality:      +5 for a 10-300 word body, +3 when it asks a question
func Score(p *model.Post, viewer *model.ViewerContext, now time.Time) float64 {
	hoursOld := 24.0
	if !p.CreatedAt.IsZero() {
		hoursOld = now.Sub(p.CreatedAt).Hours()
	}

	score := 0.0

	recency := 40 - hoursOld*1.67
	if recency < 0 {
		recency = 0
	}
	score += recency

	rate := (float64(p.LikeCount()) + float64(p.CommentsCount)*2) / (hoursOld + 1)
	engagement := rate * 5
	if engagement > 35 {
		engagement = 35
	}
	score += engagement

	switch {
	case viewer.IsSelf(p.AuthorId):
		score += 25
	case viewer.IsFollowing(p.AuthorId):
		score += 20
	default:
		score += 5
	}

	words := len(strings.Fields(p.Content))
	if words > 10 && words < 300 {
		score += 5
	}
	if strings.Contains(p.Content, "?") {
		score += 3
	}

	return score
}

// RankByScore sorts descending by Score and truncates to limit.
func RankByScore(posts []*model.Post, viewer *model.ViewerContext, now time.Time, limit int) []*model.Post {
	type scored struct {
		post  *model.Post
		score float64
	}
	scoredPosts := make([]scored, 0, len(posts))
	for _, p := range posts {
		scoredPosts = append(scoredPosts, scored{post: p, score: Score(p, viewer, now)})
	}
	sort.SliceStable(scoredPosts, func(i, j int) bool {
		return scoredPosts[i].score > scoredPosts[j].score
	})
	if limit > 0 && len(scoredPosts) > limit {
		scoredPosts = scoredPosts[:limit]
	}
	result := make([]*model.Post, 0, len(scoredPosts))
	for _, s := range scoredPosts {
		result = append(result, s.post)
	}
	return result
}
