// forum/threads.go
package forum

import (
	"context"
	"fmt"
)

// The reader never trusts a denormalized reply counter: counts and the
// initial-post projection are derived from forum_posts on every read.

const postColumns = `id, topic_id, parent_post_id, author_id, content, status, like_count, created_at`

// Sort keys accepted by ListTopics. Every ordering carries the id
// tiebreaker so identical requests page identically under concurrent
// inserts.
var topicSortKeys = map[string]string{
	"latest":     "t.last_activity_at DESC, t.id DESC",
	"newest":     "t.created_at DESC, t.id DESC",
	"most_liked": "t.like_count DESC, t.id DESC",
}

// TopicFilter narrows ListTopics. Zero values mean "no constraint";
// deleted topics are always excluded.
type TopicFilter struct {
	CategoryID int64
	TagID      int64
	Status     string
}

// FindInitialPost returns the topic's root post: the earliest-created row
// with a null parent, id as tiebreaker. An existing topic without one is
// a degraded but tolerated state, reported as (nil, nil); a missing or
// deleted topic is NotFound so callers can tell the two apart.
func (d *Database) FindInitialPost(ctx context.Context, topicID int64) (*Post, error) {
	ctx, cancel := d.opCtx(ctx)
	defer cancel()
	if err := topicVisible(ctx, d.pool, topicID); err != nil {
		return nil, err
	}
	return findInitialPost(ctx, d.pool, topicID)
}

func findInitialPost(ctx context.Context, q querier, topicID int64) (*Post, error) {
	query := `SELECT ` + postColumns + ` FROM forum_posts
	          WHERE topic_id = $1 AND parent_post_id IS NULL
	          ORDER BY created_at ASC, id ASC
	          LIMIT 1`
	post, err := scanPost(q.QueryRow(ctx, query, topicID))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, storeErr(err, "failed to load initial post")
	}
	return post, nil
}

// ReplyCount counts the visible posts under a topic, excluding the
// initial post when one exists. In the degraded zero-initial-post state
// every visible post counts.
func (d *Database) ReplyCount(ctx context.Context, topicID int64) (int, error) {
	ctx, cancel := d.opCtx(ctx)
	defer cancel()
	if err := topicVisible(ctx, d.pool, topicID); err != nil {
		return 0, err
	}
	return replyCount(ctx, d.pool, topicID)
}

func replyCount(ctx context.Context, q querier, topicID int64) (int, error) {
	initial, err := findInitialPost(ctx, q, topicID)
	if err != nil {
		return 0, err
	}
	var initialID int64 = -1
	if initial != nil {
		initialID = initial.ID
	}
	var count int
	query := `SELECT COUNT(*) FROM forum_posts
	          WHERE topic_id = $1 AND status = 'visible' AND id <> $2`
	if err := q.QueryRow(ctx, query, topicID, initialID).Scan(&count); err != nil {
		return 0, storeErr(err, "failed to count replies")
	}
	return count, nil
}

// ListReplies returns one page of a topic's visible, non-initial posts in
// creation order, annotated with the viewer's like state. viewerID 0
// means anonymous and never matches a like row.
func (d *Database) ListReplies(ctx context.Context, topicID int64, window PageWindow, viewerID int64) ([]Post, PaginationData, error) {
	ctx, cancel := d.opCtx(ctx)
	defer cancel()

	if err := topicVisible(ctx, d.pool, topicID); err != nil {
		return nil, PaginationData{}, err
	}
	initial, err := findInitialPost(ctx, d.pool, topicID)
	if err != nil {
		return nil, PaginationData{}, err
	}
	var initialID int64 = -1
	if initial != nil {
		initialID = initial.ID
	}

	// The count query reuses the page query's predicate verbatim; the two
	// drifting apart is how page totals go wrong.
	predicate := `topic_id = $1 AND status = 'visible' AND id <> $2`

	var total int
	if err := d.pool.QueryRow(ctx, `SELECT COUNT(*) FROM forum_posts WHERE `+predicate,
		topicID, initialID).Scan(&total); err != nil {
		return nil, PaginationData{}, storeErr(err, "failed to count replies")
	}

	query := `SELECT ` + postColumns + `,
	            EXISTS (SELECT 1 FROM forum_post_likes l
	                    WHERE l.post_id = forum_posts.id AND l.user_id = $3) AS user_liked
	          FROM forum_posts
	          WHERE ` + predicate + `
	          ORDER BY created_at ASC, id ASC
	          LIMIT $4 OFFSET $5`
	rows, err := d.pool.Query(ctx, query, topicID, initialID, viewerID, window.Limit, window.Offset)
	if err != nil {
		return nil, PaginationData{}, storeErr(err, "failed to list replies")
	}
	defer rows.Close()

	var posts []Post
	for rows.Next() {
		var p Post
		if err := rows.Scan(&p.ID, &p.TopicID, &p.ParentPostID, &p.AuthorID, &p.Content,
			&p.Status, &p.LikeCount, &p.CreatedAt, &p.UserLiked); err != nil {
			return nil, PaginationData{}, storeErr(err, "failed to scan reply")
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, PaginationData{}, storeErr(err, "failed to read replies")
	}
	return posts, window.Pagination(total), nil
}

// ListTopics pages topics matching the filter. Reply counts, tags and the
// content snippet are computed per row with the same projection the
// detail view uses, so the two never disagree.
func (d *Database) ListTopics(ctx context.Context, filter TopicFilter, sort string, window PageWindow, viewerID int64) ([]TopicSummary, PaginationData, error) {
	orderBy, err := topicOrder(sort)
	if err != nil {
		return nil, PaginationData{}, err
	}
	where, args, err := topicPredicate(filter)
	if err != nil {
		return nil, PaginationData{}, err
	}

	ctx, cancel := d.opCtx(ctx)
	defer cancel()

	var total int
	countQuery := `SELECT COUNT(*) FROM topics t WHERE ` + where
	if err := d.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, PaginationData{}, storeErr(err, "failed to count topics")
	}

	query := fmt.Sprintf(`SELECT t.id, t.title, t.author_id, t.category_id, t.status,
	            t.like_count, t.created_at, t.last_activity_at, t.last_activity_user_id
	          FROM topics t
	          WHERE %s
	          ORDER BY %s
	          LIMIT $%d OFFSET $%d`, where, orderBy, len(args)+1, len(args)+2)
	args = append(args, window.Limit, window.Offset)

	rows, err := d.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, PaginationData{}, storeErr(err, "failed to list topics")
	}
	defer rows.Close()

	var topics []Topic
	for rows.Next() {
		var t Topic
		if err := rows.Scan(&t.ID, &t.Title, &t.AuthorID, &t.CategoryID, &t.Status,
			&t.LikeCount, &t.CreatedAt, &t.LastActivityAt, &t.LastActivityUserID); err != nil {
			return nil, PaginationData{}, storeErr(err, "failed to scan topic")
		}
		topics = append(topics, t)
	}
	if err := rows.Err(); err != nil {
		return nil, PaginationData{}, storeErr(err, "failed to read topics")
	}

	summaries := make([]TopicSummary, 0, len(topics))
	for _, t := range topics {
		summary, err := d.summarize(ctx, t, viewerID)
		if err != nil {
			return nil, PaginationData{}, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, window.Pagination(total), nil
}

func (d *Database) summarize(ctx context.Context, t Topic, viewerID int64) (TopicSummary, error) {
	summary := TopicSummary{Topic: t}

	initial, err := findInitialPost(ctx, d.pool, t.ID)
	if err != nil {
		return TopicSummary{}, err
	}
	count, err := replyCount(ctx, d.pool, t.ID)
	if err != nil {
		return TopicSummary{}, err
	}
	summary.ReplyCount = count

	tags, err := topicTags(ctx, d.pool, t.ID)
	if err != nil {
		return TopicSummary{}, err
	}
	summary.Tags = tags

	if initial != nil {
		summary.Snippet = snippet(initial.Content)
		if viewerID != 0 {
			liked, err := userLiked(ctx, d.pool, viewerID, initial.ID)
			if err != nil {
				return TopicSummary{}, err
			}
			summary.UserLiked = liked
		}
	}
	return summary, nil
}

// GetTopic is the detail projection: topic row, initial post (viewer
// annotated), live reply count, and the tag set.
func (d *Database) GetTopic(ctx context.Context, topicID, viewerID int64) (*TopicView, error) {
	ctx, cancel := d.opCtx(ctx)
	defer cancel()

	var t Topic
	query := `SELECT id, title, author_id, category_id, status, like_count,
	            created_at, last_activity_at, last_activity_user_id
	          FROM topics WHERE id = $1 AND status <> 'deleted'`
	err := d.pool.QueryRow(ctx, query, topicID).Scan(&t.ID, &t.Title, &t.AuthorID,
		&t.CategoryID, &t.Status, &t.LikeCount, &t.CreatedAt, &t.LastActivityAt, &t.LastActivityUserID)
	if err != nil {
		if isNoRows(err) {
			return nil, NewNotFound("topic not found")
		}
		return nil, storeErr(err, "failed to load topic")
	}

	view := &TopicView{Topic: t}

	initial, err := findInitialPost(ctx, d.pool, topicID)
	if err != nil {
		return nil, err
	}
	if initial != nil && viewerID != 0 {
		liked, err := userLiked(ctx, d.pool, viewerID, initial.ID)
		if err != nil {
			return nil, err
		}
		initial.UserLiked = liked
	}
	view.InitialPost = initial

	count, err := replyCount(ctx, d.pool, topicID)
	if err != nil {
		return nil, err
	}
	view.ReplyCount = count

	tags, err := topicTags(ctx, d.pool, topicID)
	if err != nil {
		return nil, err
	}
	view.Tags = tags

	return view, nil
}

func topicOrder(sort string) (string, error) {
	if sort == "" {
		sort = "latest"
	}
	orderBy, ok := topicSortKeys[sort]
	if !ok {
		return "", NewValidation(fmt.Sprintf("unknown sort key %q", sort))
	}
	return orderBy, nil
}

// topicPredicate builds the WHERE clause shared by the count and page
// queries of ListTopics.
func topicPredicate(filter TopicFilter) (string, []any, error) {
	where := `t.status <> 'deleted'`
	args := []any{}
	if filter.Status != "" {
		if filter.Status != TopicOpen && filter.Status != TopicClosed {
			return "", nil, NewValidation(fmt.Sprintf("unknown status filter %q", filter.Status))
		}
		args = append(args, filter.Status)
		where += fmt.Sprintf(" AND t.status = $%d", len(args))
	}
	if filter.CategoryID > 0 {
		args = append(args, filter.CategoryID)
		where += fmt.Sprintf(" AND t.category_id = $%d", len(args))
	}
	if filter.TagID > 0 {
		args = append(args, filter.TagID)
		where += fmt.Sprintf(" AND EXISTS (SELECT 1 FROM forum_topic_tags tt WHERE tt.topic_id = t.id AND tt.tag_id = $%d)", len(args))
	}
	return where, args, nil
}

// topicVisible fails with NotFound unless the topic exists and is not
// soft-deleted.
func topicVisible(ctx context.Context, q querier, topicID int64) error {
	var status string
	err := q.QueryRow(ctx, `SELECT status FROM topics WHERE id = $1`, topicID).Scan(&status)
	if err != nil {
		if isNoRows(err) {
			return NewNotFound("topic not found")
		}
		return storeErr(err, "failed to load topic")
	}
	if status == TopicDeleted {
		return NewNotFound("topic not found")
	}
	return nil
}

func userLiked(ctx context.Context, q querier, userID, postID int64) (bool, error) {
	var liked bool
	query := `SELECT EXISTS (SELECT 1 FROM forum_post_likes WHERE user_id = $1 AND post_id = $2)`
	if err := q.QueryRow(ctx, query, userID, postID).Scan(&liked); err != nil {
		return false, storeErr(err, "failed to check like state")
	}
	return liked, nil
}

func scanPost(row interface{ Scan(dest ...any) error }) (*Post, error) {
	var p Post
	err := row.Scan(&p.ID, &p.TopicID, &p.ParentPostID, &p.AuthorID, &p.Content,
		&p.Status, &p.LikeCount, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
