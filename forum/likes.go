// forum/likes.go
package forum

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// Like records userID's like on postID and returns the post's new like
// count. Repeats are a successful no-op: the unique (user_id, post_id)
// constraint arbitrates concurrent calls, and the counter moves only when
// the row insert actually lands, in the same transaction.
func (d *Database) Like(ctx context.Context, userID, postID int64) (int, error) {
	var count int
	err := d.withTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		topicID, isInitial, err := lockVisiblePost(ctx, tx, postID)
		if err != nil {
			return err
		}

		tag, err := tx.Exec(ctx, `INSERT INTO forum_post_likes (user_id, post_id)
		                          VALUES ($1, $2)
		                          ON CONFLICT (user_id, post_id) DO NOTHING`, userID, postID)
		if err != nil {
			return storeErr(err, "failed to insert like")
		}
		if tag.RowsAffected() == 0 {
			// Already liked; report the current count unchanged.
			if err := tx.QueryRow(ctx, `SELECT like_count FROM forum_posts WHERE id = $1`,
				postID).Scan(&count); err != nil {
				return storeErr(err, "failed to read like count")
			}
			return nil
		}

		err = tx.QueryRow(ctx, `UPDATE forum_posts SET like_count = like_count + 1
		                        WHERE id = $1 RETURNING like_count`, postID).Scan(&count)
		if err != nil {
			return storeErr(err, "failed to increment like count")
		}
		if isInitial {
			return mirrorTopicLikeCount(ctx, tx, topicID, count)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Unlike removes the like row if present and decrements the counter,
// clamped at zero. Unliking something never liked is a successful no-op.
func (d *Database) Unlike(ctx context.Context, userID, postID int64) (int, error) {
	var count int
	err := d.withTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		topicID, isInitial, err := lockVisiblePost(ctx, tx, postID)
		if err != nil {
			return err
		}

		tag, err := tx.Exec(ctx, `DELETE FROM forum_post_likes
		                          WHERE user_id = $1 AND post_id = $2`, userID, postID)
		if err != nil {
			return storeErr(err, "failed to delete like")
		}
		if tag.RowsAffected() == 0 {
			if err := tx.QueryRow(ctx, `SELECT like_count FROM forum_posts WHERE id = $1`,
				postID).Scan(&count); err != nil {
				return storeErr(err, "failed to read like count")
			}
			return nil
		}

		err = tx.QueryRow(ctx, `UPDATE forum_posts
		                        SET like_count = GREATEST(like_count - 1, 0)
		                        WHERE id = $1 RETURNING like_count`, postID).Scan(&count)
		if err != nil {
			return storeErr(err, "failed to decrement like count")
		}
		if isInitial {
			return mirrorTopicLikeCount(ctx, tx, topicID, count)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// lockVisiblePost row-locks the target post so concurrent toggles on the
// same post serialize, and reports whether it is its topic's initial post.
func lockVisiblePost(ctx context.Context, tx pgx.Tx, postID int64) (topicID int64, isInitial bool, err error) {
	var status string
	var parent *int64
	err = tx.QueryRow(ctx, `SELECT topic_id, parent_post_id, status
	                        FROM forum_posts WHERE id = $1 FOR UPDATE`,
		postID).Scan(&topicID, &parent, &status)
	if err != nil {
		if isNoRows(err) {
			return 0, false, NewNotFound("post not found")
		}
		return 0, false, storeErr(err, "failed to load post")
	}
	if status != PostVisible {
		return 0, false, NewNotFound("post not found")
	}
	if parent != nil {
		return topicID, false, nil
	}
	// More than one root post can exist in a degraded topic; only the
	// canonical one (earliest created, lowest id) drives the topic mirror.
	root, err := findInitialPost(ctx, tx, topicID)
	if err != nil {
		return 0, false, err
	}
	return topicID, root != nil && root.ID == postID, nil
}

// The topic row mirrors its initial post's like count for cheap listing.
func mirrorTopicLikeCount(ctx context.Context, tx pgx.Tx, topicID int64, count int) error {
	_, err := tx.Exec(ctx, `UPDATE topics SET like_count = $2 WHERE id = $1`, topicID, count)
	if err != nil {
		return storeErr(err, "failed to update topic like count")
	}
	return nil
}
