package analytics

import (
	"fmt"
	"sort"
	"unicode/utf8"

	"github.com/maysaraadmin/moodle-analytics/internal/domain"
)

const stageForum = "forum"

// ForumResult is a forum post with its reply features
type ForumResult struct {
	domain.ForumPost

	PostLength        int      `json:"post_length"`
	IsReply           bool     `json:"is_reply"`
	HoursToFirstReply *float64 `json:"hours_to_first_reply"`
	ThreadDepth       int      `json:"thread_depth"`
}

// ProcessForum derives reply latency and thread depth for every post and
// builds the reply graph between authors. Parents are resolved against the
// full post set, not only the post's own discussion.
func ProcessForum(posts []domain.ForumPost, rep *Report) ([]ForumResult, *ForumGraph) {
	graph := NewForumGraph()
	if len(posts) == 0 {
		rep.Add(stageForum, AnomalyEmptyTable, "posts")
		return []ForumResult{}, graph
	}

	byID := make(map[int64]*domain.ForumPost, len(posts))
	firstChild := make(map[int64]int64, len(posts))
	for i := range posts {
		p := &posts[i]
		if _, dup := byID[p.PostID]; !dup {
			byID[p.PostID] = p
		}
		if p.ParentID == 0 {
			continue
		}
		if c, ok := firstChild[p.ParentID]; !ok || p.Created < c {
			firstChild[p.ParentID] = p.Created
		}
	}

	out := make([]ForumResult, len(posts))
	for i, p := range posts {
		r := ForumResult{
			ForumPost:  p,
			PostLength: utf8.RuneCountInString(p.Message),
			IsReply:    p.ParentID > 0,
		}
		graph.AddUser(p.UserID)

		if r.IsReply {
			parent, ok := byID[p.ParentID]
			if ok {
				r.HoursToFirstReply = floatPtr(float64(p.Created-parent.Created) / 3600)
				graph.AddReply(p.UserID, parent.UserID)
			} else {
				rep.Add(stageForum, AnomalyUnresolvedParent, fmt.Sprintf("post %d parent %d", p.PostID, p.ParentID))
			}
		} else if c, ok := firstChild[p.PostID]; ok {
			r.HoursToFirstReply = floatPtr(float64(c-p.Created) / 3600)
		}

		r.ThreadDepth = threadDepth(p, byID, rep)
		out[i] = r
	}
	return out, graph
}

// threadDepth counts parent hops until a root or an unresolved parent
func threadDepth(p domain.ForumPost, byID map[int64]*domain.ForumPost, rep *Report) int {
	depth := 0
	visited := map[int64]bool{p.PostID: true}
	for current := p; current.ParentID != 0; {
		parent, ok := byID[current.ParentID]
		if !ok {
			break
		}
		if visited[parent.PostID] {
			rep.Add(stageForum, AnomalyThreadCycle, fmt.Sprintf("post %d", p.PostID))
			break
		}
		visited[parent.PostID] = true
		depth++
		current = *parent
	}
	return depth
}

// DiscussionSummary aggregates one discussion thread
type DiscussionSummary struct {
	DiscussionID            int64    `json:"discussion_id"`
	CourseID                string   `json:"course_id"`
	Posts                   int      `json:"posts"`
	Replies                 int      `json:"replies"`
	Participants            int      `json:"participants"`
	MaxDepth                int      `json:"max_depth"`
	MedianHoursToFirstReply *float64 `json:"median_hours_to_first_reply"`
}

// SummarizeDiscussions groups forum results by discussion, ordered by id.
// The median latency only considers replies.
func SummarizeDiscussions(results []ForumResult) []DiscussionSummary {
	type acc struct {
		summary      DiscussionSummary
		participants map[int64]struct{}
		latencies    []float64
	}
	groups := make(map[int64]*acc)
	var ids []int64
	for _, r := range results {
		a, ok := groups[r.DiscussionID]
		if !ok {
			a = &acc{
				summary:      DiscussionSummary{DiscussionID: r.DiscussionID, CourseID: r.CourseID},
				participants: make(map[int64]struct{}),
			}
			groups[r.DiscussionID] = a
			ids = append(ids, r.DiscussionID)
		}
		a.summary.Posts++
		a.participants[r.UserID] = struct{}{}
		if r.ThreadDepth > a.summary.MaxDepth {
			a.summary.MaxDepth = r.ThreadDepth
		}
		if r.IsReply {
			a.summary.Replies++
			if r.HoursToFirstReply != nil {
				a.latencies = append(a.latencies, *r.HoursToFirstReply)
			}
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]DiscussionSummary, 0, len(ids))
	for _, id := range ids {
		a := groups[id]
		a.summary.Participants = len(a.participants)
		if len(a.latencies) > 0 {
			a.summary.MedianHoursToFirstReply = floatPtr(median(a.latencies))
		}
		out = append(out, a.summary)
	}
	return out
}
