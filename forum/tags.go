// forum/tags.go
package forum

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/jackc/pgx/v5"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// SetTopicTags replaces the topic's whole tag set in one transaction:
// delete everything, insert the distinct new ids. An empty list means
// "no tags". A failed insert rolls back to the pre-update set.
func (d *Database) SetTopicTags(ctx context.Context, topicID int64, tagIDs []int64) error {
	return d.withTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := topicVisible(ctx, tx, topicID); err != nil {
			return err
		}
		return replaceTags(ctx, tx, topicID, tagIDs)
	})
}

func replaceTags(ctx context.Context, tx pgx.Tx, topicID int64, tagIDs []int64) error {
	if _, err := tx.Exec(ctx, `DELETE FROM forum_topic_tags WHERE topic_id = $1`, topicID); err != nil {
		return storeErr(err, "failed to clear topic tags")
	}
	seen := make(map[int64]bool, len(tagIDs))
	for _, tagID := range tagIDs {
		if seen[tagID] {
			continue
		}
		seen[tagID] = true
		_, err := tx.Exec(ctx, `INSERT INTO forum_topic_tags (topic_id, tag_id) VALUES ($1, $2)`,
			topicID, tagID)
		if err != nil {
			if isForeignKeyViolation(err) {
				return NewNotFound(fmt.Sprintf("tag %d not found", tagID))
			}
			return storeErr(err, "failed to associate tag")
		}
	}
	return nil
}

// CreateTag registers a tag with a derived URL-safe slug. Name and slug
// collisions are both a Conflict.
func (d *Database) CreateTag(ctx context.Context, name, colorClasses string) (*Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, NewValidation("tag name is required")
	}

	slug := Slugify(name)
	if slug == "" {
		// Nothing survived transliteration (e.g. a fully CJK name).
		slug = fmt.Sprintf("tag-%d", time.Now().Unix())
	}

	ctx, cancel := d.opCtx(ctx)
	defer cancel()

	tag := Tag{Name: name, Slug: slug, ColorClasses: colorClasses}
	query := `INSERT INTO forum_tags (name, slug, color_classes)
	          VALUES ($1, $2, $3) RETURNING id`
	if err := d.pool.QueryRow(ctx, query, tag.Name, tag.Slug, tag.ColorClasses).Scan(&tag.ID); err != nil {
		if isUniqueViolation(err) {
			return nil, NewConflict("tag name or slug already exists")
		}
		return nil, storeErr(err, "failed to create tag")
	}
	return &tag, nil
}

func (d *Database) ListTags(ctx context.Context) ([]Tag, error) {
	ctx, cancel := d.opCtx(ctx)
	defer cancel()

	rows, err := d.pool.Query(ctx, `SELECT id, name, slug, color_classes
	                                FROM forum_tags ORDER BY name ASC`)
	if err != nil {
		return nil, storeErr(err, "failed to list tags")
	}
	defer rows.Close()

	var tags []Tag
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.Slug, &t.ColorClasses); err != nil {
			return nil, storeErr(err, "failed to scan tag")
		}
		tags = append(tags, t)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err, "failed to read tags")
	}
	return tags, nil
}

func topicTags(ctx context.Context, q querier, topicID int64) ([]Tag, error) {
	query := `SELECT t.id, t.name, t.slug, t.color_classes
	          FROM forum_tags t
	          JOIN forum_topic_tags tt ON tt.tag_id = t.id
	          WHERE tt.topic_id = $1
	          ORDER BY t.name ASC`
	rows, err := q.Query(ctx, query, topicID)
	if err != nil {
		return nil, storeErr(err, "failed to load topic tags")
	}
	defer rows.Close()

	var tags []Tag
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.Slug, &t.ColorClasses); err != nil {
			return nil, storeErr(err, "failed to scan tag")
		}
		tags = append(tags, t)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err, "failed to read topic tags")
	}
	return tags, nil
}

// stripMarks drops combining marks after NFD decomposition, so "café"
// transliterates to "cafe".
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slugify lowercases, transliterates accented Latin to ASCII, and keeps
// [a-z0-9] with single dashes between words. Input that yields nothing
// returns "" and the caller picks a fallback.
func Slugify(name string) string {
	ascii, _, err := transform.String(stripMarks, name)
	if err != nil {
		ascii = name
	}
	ascii = strings.ToLower(ascii)

	var b strings.Builder
	lastDash := true // suppress a leading dash
	for _, r := range ascii {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}
