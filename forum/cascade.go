// forum/cascade.go
package forum

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// DeleteTopic hard-deletes a topic and everything hanging off it, children
// before parents, in one transaction. Only the author may delete their
// topic. A failure at any step leaves the prior state untouched.
func (d *Database) DeleteTopic(ctx context.Context, topicID, requesterID int64) error {
	return d.withTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var authorID int64
		var status string
		err := tx.QueryRow(ctx, `SELECT author_id, status FROM topics WHERE id = $1 FOR UPDATE`,
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
			return NewForbidden("only the author can delete a topic")
		}

		steps := []struct {
			desc  string
			query string
		}{
			{"delete post likes", `DELETE FROM forum_post_likes
			   WHERE post_id IN (SELECT id FROM forum_posts WHERE topic_id = $1)`},
			{"delete posts", `DELETE FROM forum_posts WHERE topic_id = $1`},
			{"delete topic tags", `DELETE FROM forum_topic_tags WHERE topic_id = $1`},
			{"delete topic", `DELETE FROM topics WHERE id = $1`},
		}
		for _, step := range steps {
			if _, err := tx.Exec(ctx, step.query, topicID); err != nil {
				return storeErr(err, "failed to "+step.desc)
			}
		}
		return nil
	})
}

// DeleteUserContent is the account-removal cascade. The user's posts are
// soft-deleted with placeholder content so other participants' reply
// trees keep their shape; their topics flip to the deleted status; like
// rows disappear in both directions with every affected counter brought
// back in line with the live forum_post_likes table. Runs as one
// transaction; a foreign-key block on the final user delete surfaces as a
// Conflict instead of a silent retry.
func (d *Database) DeleteUserContent(ctx context.Context, userID int64) error {
	return d.withTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		// Soft-delete the user's posts, keeping rows for referential
		// integrity of nested replies.
		_, err := tx.Exec(ctx, `UPDATE forum_posts
		                        SET status = $2, content = $3
		                        WHERE author_id = $1 AND status = $4`,
			userID, PostDeleted, DeletedContent, PostVisible)
		if err != nil {
			return storeErr(err, "failed to soft-delete posts")
		}

		// Likes the user gave: decrement the liked posts (and the topics
		// mirroring an initial post) before dropping the rows.
		_, err = tx.Exec(ctx, `UPDATE forum_posts
		                       SET like_count = GREATEST(like_count - 1, 0)
		                       WHERE id IN (SELECT post_id FROM forum_post_likes WHERE user_id = $1)`,
			userID)
		if err != nil {
			return storeErr(err, "failed to decrement liked posts")
		}
		_, err = tx.Exec(ctx, `UPDATE topics
		                       SET like_count = GREATEST(like_count - 1, 0)
		                       WHERE id IN (SELECT p.topic_id FROM forum_posts p
		                                    JOIN forum_post_likes l ON l.post_id = p.id
		                                    WHERE l.user_id = $1 AND p.parent_post_id IS NULL)`,
			userID)
		if err != nil {
			return storeErr(err, "failed to decrement liked topics")
		}
		_, err = tx.Exec(ctx, `DELETE FROM forum_post_likes WHERE user_id = $1`, userID)
		if err != nil {
			return storeErr(err, "failed to delete likes by user")
		}

		// Likes on the user's posts: drop the rows, then recompute those
		// posts' counters from the live table so nothing drifts.
		_, err = tx.Exec(ctx, `DELETE FROM forum_post_likes
		                       WHERE post_id IN (SELECT id FROM forum_posts WHERE author_id = $1)`,
			userID)
		if err != nil {
			return storeErr(err, "failed to delete likes on user's posts")
		}
		_, err = tx.Exec(ctx, `UPDATE forum_posts
		                       SET like_count = (SELECT COUNT(*) FROM forum_post_likes l
		                                         WHERE l.post_id = forum_posts.id)
		                       WHERE author_id = $1`, userID)
		if err != nil {
			return storeErr(err, "failed to recompute post like counts")
		}
		_, err = tx.Exec(ctx, `UPDATE topics t
		                       SET like_count = p.like_count
		                       FROM forum_posts p
		                       WHERE p.topic_id = t.id
		                         AND p.parent_post_id IS NULL
		                         AND p.author_id = $1`, userID)
		if err != nil {
			return storeErr(err, "failed to recompute topic like counts")
		}

		// The user's authored topics survive as soft-deleted rows.
		_, err = tx.Exec(ctx, `UPDATE topics SET status = $2 WHERE author_id = $1`,
			userID, TopicDeleted)
		if err != nil {
			return storeErr(err, "failed to soft-delete topics")
		}

		if _, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID); err != nil {
			if isForeignKeyViolation(err) {
				// A dependency the cascade missed; surface it, do not retry.
				return &Error{Kind: KindConflict, Message: "user still referenced", cause: err}
			}
			return storeErr(err, "failed to delete user")
		}
		return nil
	})
}
