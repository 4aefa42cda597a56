package forum

import (
	"context"
	"fmt"
	"os"
	"testing"
)

// Store tests need a real Postgres; they skip unless TEST_DATABASE_URL is
// set. Each call hands back a freshly truncated schema.
func testDB(t *testing.T) *Database {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := NewDatabase(dsn)
	if err != nil {
		t.Fatalf("NewDatabase failed: %v", err)
	}
	t.Cleanup(db.Close)

	ctx := context.Background()
	if err := db.CreateTables(ctx); err != nil {
		t.Fatalf("CreateTables failed: %v", err)
	}
	_, err = db.pool.Exec(ctx, `TRUNCATE forum_post_likes, forum_topic_tags, forum_posts,
	                            topics, forum_tags, forum_categories, users
	                            RESTART IDENTITY CASCADE`)
	if err != nil {
		t.Fatalf("truncate failed: %v", err)
	}
	return db
}

func testUser(t *testing.T, db *Database, name string) *User {
	t.Helper()
	user, err := db.RegisterUser(context.Background(), name, name+"@example.com", "hunter2!")
	if err != nil {
		t.Fatalf("RegisterUser(%s) failed: %v", name, err)
	}
	return user
}

func testCategory(t *testing.T, db *Database, name string) *Category {
	t.Helper()
	cat, err := db.CreateCategory(context.Background(), name, "")
	if err != nil {
		t.Fatalf("CreateCategory(%s) failed: %v", name, err)
	}
	return cat
}

func testTag(t *testing.T, db *Database, name string) *Tag {
	t.Helper()
	tag, err := db.CreateTag(context.Background(), name, "bg-blue-100")
	if err != nil {
		t.Fatalf("CreateTag(%s) failed: %v", name, err)
	}
	return tag
}

func testTopic(t *testing.T, db *Database, authorID, categoryID int64, title string, tagIDs ...int64) *Topic {
	t.Helper()
	topic, err := db.CreateTopic(context.Background(), CreateTopicInput{
		AuthorID:   authorID,
		CategoryID: categoryID,
		Title:      title,
		Content:    "body of " + title,
		TagIDs:     tagIDs,
	})
	if err != nil {
		t.Fatalf("CreateTopic(%s) failed: %v", title, err)
	}
	return topic
}

func testReply(t *testing.T, db *Database, topicID, authorID int64, content string) *Post {
	t.Helper()
	post, err := db.CreateReply(context.Background(), CreateReplyInput{
		TopicID:  topicID,
		AuthorID: authorID,
		Content:  content,
	})
	if err != nil {
		t.Fatalf("CreateReply failed: %v", err)
	}
	return post
}

// rowCount is a raw probe used by the cascade tests to look for orphans.
func rowCount(t *testing.T, db *Database, table, where string, args ...any) int {
	t.Helper()
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", table)
	if where != "" {
		query += " WHERE " + where
	}
	var n int
	if err := db.pool.QueryRow(context.Background(), query, args...).Scan(&n); err != nil {
		t.Fatalf("counting %s failed: %v", table, err)
	}
	return n
}
