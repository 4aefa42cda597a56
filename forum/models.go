// forum/models.go
package forum

import (
	"time"
)

// Topic status values. Deleted topics stay as rows only when the deletion
// is a side effect of account removal; author-initiated deletion removes
// the row outright.
const (
	TopicOpen    = "open"
	TopicClosed  = "closed"
	TopicDeleted = "deleted"
)

// Post status values. Posts are never hard-deleted on their own; soft
// deletion preserves the reply tree for other participants.
const (
	PostVisible = "visible"
	PostDeleted = "deleted"
)

// DeletedContent replaces the body of posts removed by account deletion.
const DeletedContent = "[deleted]"

type Topic struct {
	ID                 int64     `json:"id"`
	Title              string    `json:"title"`
	AuthorID           int64     `json:"author_id"`
	CategoryID         int64     `json:"category_id"`
	Status             string    `json:"status"`
	LikeCount          int       `json:"like_count"`
	CreatedAt          time.Time `json:"created_at"`
	LastActivityAt     time.Time `json:"last_activity_at"`
	LastActivityUserID int64     `json:"last_activity_user_id"`
}

type Post struct {
	ID           int64     `json:"id"`
	TopicID      int64     `json:"topic_id"`
	ParentPostID *int64    `json:"parent_post_id"`
	AuthorID     int64     `json:"author_id"`
	Content      string    `json:"content"`
	Status       string    `json:"status"`
	LikeCount    int       `json:"like_count"`
	CreatedAt    time.Time `json:"created_at"`

	// UserLiked is a per-viewer annotation, false for anonymous reads.
	UserLiked bool `json:"user_liked"`
}

type Tag struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Slug         string `json:"slug"`
	ColorClasses string `json:"color_classes"`
}

type Category struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
}

// TopicView is the detail projection: the topic row plus everything the
// reader derives live from the store. InitialPost is nil for a topic in
// the degraded zero-initial-post state.
type TopicView struct {
	Topic       Topic `json:"topic"`
	InitialPost *Post `json:"initial_post"`
	ReplyCount  int   `json:"reply_count"`
	Tags        []Tag `json:"tags"`
}

// TopicSummary is one row of the topic-list projection.
type TopicSummary struct {
	Topic      Topic  `json:"topic"`
	ReplyCount int    `json:"reply_count"`
	Tags       []Tag  `json:"tags"`
	Snippet    string `json:"snippet"`
	UserLiked  bool   `json:"user_liked"`
}

// CreateTopicInput carries everything a new topic needs; the initial post
// and tag set are created in the same transaction as the topic row.
type CreateTopicInput struct {
	AuthorID   int64
	CategoryID int64
	Title      string
	Content    string
	TagIDs     []int64
}

type CreateReplyInput struct {
	TopicID      int64
	AuthorID     int64
	Content      string
	ParentPostID *int64
}

// snippetLen bounds the leading-content preview in topic listings.
const snippetLen = 200

func snippet(content string) string {
	runes := []rune(content)
	if len(runes) <= snippetLen {
		return content
	}
	return string(runes[:snippetLen]) + "…"
}
