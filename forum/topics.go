// forum/topics.go
package forum

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// CreateTopic inserts the topic row, its initial post, and the tag set as
// one transaction. The topic never becomes visible without its body.
func (d *Database) CreateTopic(ctx context.Context, in CreateTopicInput) (*Topic, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Content = strings.TrimSpace(in.Content)
	if in.Title == "" {
		return nil, NewValidation("title is required")
	}
	if in.Content == "" {
		return nil, NewValidation("content is required")
	}
	if in.CategoryID <= 0 {
		return nil, NewValidation("category is required")
	}

	var topic Topic
	err := d.withTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var exists bool
		err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM forum_categories WHERE id = $1)`,
			in.CategoryID).Scan(&exists)
		if err != nil {
			return storeErr(err, "failed to check category")
		}
		if !exists {
			return NewNotFound("category not found")
		}

		topic = Topic{
			Title:              in.Title,
			AuthorID:           in.AuthorID,
			CategoryID:         in.CategoryID,
			Status:             TopicOpen,
			LastActivityUserID: in.AuthorID,
		}
		query := `INSERT INTO topics (title, author_id, category_id, status, last_activity_user_id)
		          VALUES ($1, $2, $3, $4, $5)
		          RETURNING id, created_at, last_activity_at`
		err = tx.QueryRow(ctx, query, topic.Title, topic.AuthorID, topic.CategoryID,
			topic.Status, topic.LastActivityUserID).Scan(&topic.ID, &topic.CreatedAt, &topic.LastActivityAt)
		if err != nil {
			return storeErr(err, "failed to create topic")
		}

		_, err = tx.Exec(ctx, `INSERT INTO forum_posts (topic_id, author_id, content, status)
		                       VALUES ($1, $2, $3, $4)`,
			topic.ID, in.AuthorID, in.Content, PostVisible)
		if err != nil {
			return storeErr(err, "failed to create initial post")
		}

		return replaceTags(ctx, tx, topic.ID, in.TagIDs)
	})
	if err != nil {
		return nil, err
	}
	return &topic, nil
}

// CreateReply appends a post to an open topic and bumps the topic's
// activity marker in the same transaction. Replying to a closed topic is
// Forbidden; a missing or deleted topic (or parent post) is NotFound.
func (d *Database) CreateReply(ctx context.Context, in CreateReplyInput) (*Post, error) {
	in.Content = strings.TrimSpace(in.Content)
	if in.Content == "" {
		return nil, NewValidation("content is required")
	}

	var post Post
	err := d.withTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var status string
		err := tx.QueryRow(ctx, `SELECT status FROM topics WHERE id = $1 FOR UPDATE`,
			in.TopicID).Scan(&status)
		if err != nil {
			if isNoRows(err) {
				return NewNotFound("topic not found")
			}
			return storeErr(err, "failed to load topic")
		}
		switch status {
		case TopicDeleted:
			return NewNotFound("topic not found")
		case TopicClosed:
			return NewForbidden("topic is closed")
		}

		if in.ParentPostID != nil {
			var parentTopic int64
			var parentStatus string
			err := tx.QueryRow(ctx, `SELECT topic_id, status FROM forum_posts WHERE id = $1`,
				*in.ParentPostID).Scan(&parentTopic, &parentStatus)
			if err != nil {
				if isNoRows(err) {
					return NewNotFound("parent post not found")
				}
				return storeErr(err, "failed to load parent post")
			}
			if parentTopic != in.TopicID || parentStatus != PostVisible {
				return NewNotFound("parent post not found")
			}
		}

		post = Post{
			TopicID:      in.TopicID,
			ParentPostID: in.ParentPostID,
			AuthorID:     in.AuthorID,
			Content:      in.Content,
			Status:       PostVisible,
		}
		query := `INSERT INTO forum_posts (topic_id, parent_post_id, author_id, content, status)
		          VALUES ($1, $2, $3, $4, $5)
		          RETURNING id, created_at`
		err = tx.QueryRow(ctx, query, post.TopicID, post.ParentPostID, post.AuthorID,
			post.Content, post.Status).Scan(&post.ID, &post.CreatedAt)
		if err != nil {
			return storeErr(err, "failed to create reply")
		}

		_, err = tx.Exec(ctx, `UPDATE topics
		                       SET last_activity_at = NOW(), last_activity_user_id = $2
		                       WHERE id = $1`, in.TopicID, in.AuthorID)
		if err != nil {
			return storeErr(err, "failed to update topic activity")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// CloseTopic flips an open topic to closed (moderation path). Only the
// author may close their topic here.
func (d *Database) CloseTopic(ctx context.Context, topicID, requesterID int64) error {
	ctx, cancel := d.opCtx(ctx)
	defer cancel()

	var authorID int64
	var status string
	err := d.pool.QueryRow(ctx, `SELECT author_id, status FROM topics WHERE id = $1`,
		topicID).Scan(&authorID, &status)
	if err != nil {
		if isNoRows(err) {
			return NewNotFound("topic not found")
		}
		return storeErr(err, "failed to load topic")
	}
	if status == TopicDeleted {
		return NewNotFound("topic not found")
	}
	if authorID != requesterID {
		return NewForbidden("only the author can close a topic")
	}

	_, err = d.pool.Exec(ctx, `UPDATE topics SET status = $2 WHERE id = $1`, topicID, TopicClosed)
	if err != nil {
		return storeErr(err, "failed to close topic")
	}
	return nil
}

// CreateCategory adds reference data; duplicate names or slugs are a
// Conflict.
func (d *Database) CreateCategory(ctx context.Context, name, description string) (*Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, NewValidation("category name is required")
	}

	ctx, cancel := d.opCtx(ctx)
	defer cancel()

	slug := Slugify(name)
	if slug == "" {
		// Nothing survived transliteration (e.g. a fully CJK name).
		slug = fmt.Sprintf("category-%d", time.Now().Unix())
	}
	cat := Category{Name: name, Slug: slug, Description: strings.TrimSpace(description)}
	query := `INSERT INTO forum_categories (name, slug, description)
	          VALUES ($1, $2, $3) RETURNING id`
	if err := d.pool.QueryRow(ctx, query, cat.Name, cat.Slug, cat.Description).Scan(&cat.ID); err != nil {
		if isUniqueViolation(err) {
			return nil, NewConflict("category name already exists")
		}
		return nil, storeErr(err, "failed to create category")
	}
	return &cat, nil
}

func (d *Database) ListCategories(ctx context.Context) ([]Category, error) {
	ctx, cancel := d.opCtx(ctx)
	defer cancel()

	rows, err := d.pool.Query(ctx, `SELECT id, name, slug, description
	                                FROM forum_categories ORDER BY name ASC`)
	if err != nil {
		return nil, storeErr(err, "failed to list categories")
	}
	defer rows.Close()

	var categories []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.Description); err != nil {
			return nil, storeErr(err, "failed to scan category")
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err, "failed to read categories")
	}
	return categories, nil
}
