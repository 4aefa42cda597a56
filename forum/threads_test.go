package forum

import (
	"context"
	"testing"
	"time"
)

func TestInitialPostAndReplyCount(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	author := testUser(t, db, "alice")
	cat := testCategory(t, db, "general")
	topic := testTopic(t, db, author.ID, cat.ID, "hello world")

	initial, err := db.FindInitialPost(ctx, topic.ID)
	if err != nil {
		t.Fatalf("FindInitialPost failed: %v", err)
	}
	if initial == nil {
		t.Fatal("expected an initial post")
	}
	if initial.ParentPostID != nil {
		t.Error("initial post must have a nil parent")
	}
	if initial.Content != "body of hello world" {
		t.Errorf("unexpected initial content %q", initial.Content)
	}

	count, err := db.ReplyCount(ctx, topic.ID)
	if err != nil {
		t.Fatalf("ReplyCount failed: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 replies, got %d", count)
	}

	reply := testReply(t, db, topic.ID, author.ID, "first reply")
	count, err = db.ReplyCount(ctx, topic.ID)
	if err != nil {
		t.Fatalf("ReplyCount failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 reply, got %d", count)
	}

	replies, pagination, err := db.ListReplies(ctx, topic.ID, NewPageWindow(1, 10), 0)
	if err != nil {
		t.Fatalf("ListReplies failed: %v", err)
	}
	if len(replies) != 1 || replies[0].ID != reply.ID {
		t.Fatalf("expected just the reply, got %+v", replies)
	}
	if pagination.TotalCount != 1 {
		t.Errorf("expected total 1, got %d", pagination.TotalCount)
	}
	for _, p := range replies {
		if p.ID == initial.ID {
			t.Error("reply listing must never include the initial post")
		}
	}
}

func TestFindInitialPostPicksEarliest(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	author := testUser(t, db, "alice")
	cat := testCategory(t, db, "general")
	topic := testTopic(t, db, author.ID, cat.ID, "doubled root")

	// The schema does not enforce exactly one null-parent post; plant an
	// older second root directly and make sure the reader picks it.
	older := time.Now().Add(-time.Hour)
	var plantedID int64
	err := db.pool.QueryRow(ctx, `INSERT INTO forum_posts
	        (topic_id, author_id, content, status, created_at)
	        VALUES ($1, $2, 'older root', 'visible', $3) RETURNING id`,
		topic.ID, author.ID, older).Scan(&plantedID)
	if err != nil {
		t.Fatalf("planting second root failed: %v", err)
	}

	initial, err := db.FindInitialPost(ctx, topic.ID)
	if err != nil {
		t.Fatalf("FindInitialPost failed: %v", err)
	}
	if initial == nil || initial.ID != plantedID {
		t.Fatalf("expected earliest root %d, got %+v", plantedID, initial)
	}
}

func TestDegradedTopicWithoutInitialPost(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	author := testUser(t, db, "alice")
	cat := testCategory(t, db, "general")
	topic := testTopic(t, db, author.ID, cat.ID, "headless")
	testReply(t, db, topic.ID, author.ID, "orphan reply")

	// Remove the root out of band; the read paths must degrade, not fail.
	_, err := db.pool.Exec(ctx, `DELETE FROM forum_posts
	        WHERE topic_id = $1 AND parent_post_id IS NULL`, topic.ID)
	if err != nil {
		t.Fatalf("removing root failed: %v", err)
	}

	initial, err := db.FindInitialPost(ctx, topic.ID)
	if err != nil {
		t.Fatalf("FindInitialPost failed: %v", err)
	}
	if initial != nil {
		t.Fatalf("expected no initial post, got %+v", initial)
	}

	// With no root, every visible post counts.
	count, err := db.ReplyCount(ctx, topic.ID)
	if err != nil {
		t.Fatalf("ReplyCount failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1, got %d", count)
	}

	view, err := db.GetTopic(ctx, topic.ID, 0)
	if err != nil {
		t.Fatalf("GetTopic on degraded topic failed: %v", err)
	}
	if view.InitialPost != nil {
		t.Error("expected nil initial post in the view")
	}
	if view.ReplyCount != 1 {
		t.Errorf("expected view reply count 1, got %d", view.ReplyCount)
	}
}

func TestListTopicsPaginationConsistency(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	author := testUser(t, db, "alice")
	cat := testCategory(t, db, "general")
	other := testCategory(t, db, "offtopic")

	for i := 0; i < 7; i++ {
		testTopic(t, db, author.ID, cat.ID, "topic "+string(rune('a'+i)))
	}
	testTopic(t, db, author.ID, other.ID, "elsewhere")

	filter := TopicFilter{CategoryID: cat.ID}
	seen := map[int64]bool{}
	total := 0
	for page := 1; ; page++ {
		items, pagination, err := db.ListTopics(ctx, filter, "newest", NewPageWindow(page, 3), 0)
		if err != nil {
			t.Fatalf("ListTopics page %d failed: %v", page, err)
		}
		if pagination.TotalCount != 7 {
			t.Fatalf("expected total 7, got %d", pagination.TotalCount)
		}
		for _, item := range items {
			if seen[item.Topic.ID] {
				t.Errorf("topic %d appeared on two pages", item.Topic.ID)
			}
			seen[item.Topic.ID] = true
		}
		total += len(items)
		if !pagination.HasNext {
			break
		}
	}
	if total != 7 {
		t.Errorf("page sizes sum to %d, want the total count 7", total)
	}

	// Same request twice with no writes in between: identical pages.
	first, _, err := db.ListTopics(ctx, filter, "newest", NewPageWindow(2, 3), 0)
	if err != nil {
		t.Fatalf("ListTopics failed: %v", err)
	}
	second, _, err := db.ListTopics(ctx, filter, "newest", NewPageWindow(2, 3), 0)
	if err != nil {
		t.Fatalf("ListTopics failed: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("page sizes differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Topic.ID != second[i].Topic.ID {
			t.Errorf("position %d differs: %d vs %d", i, first[i].Topic.ID, second[i].Topic.ID)
		}
	}
}

func TestListTopicsRejectsUnknownSort(t *testing.T) {
	db := testDB(t)
	_, _, err := db.ListTopics(context.Background(), TopicFilter{}, "sneaky; DROP TABLE topics", NewPageWindow(1, 10), 0)
	if KindOf(err) != KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestListTopicsSummaries(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	author := testUser(t, db, "alice")
	cat := testCategory(t, db, "general")
	tag := testTag(t, db, "golang")
	topic := testTopic(t, db, author.ID, cat.ID, "tagged", tag.ID)
	testReply(t, db, topic.ID, author.ID, "a reply")

	items, _, err := db.ListTopics(ctx, TopicFilter{TagID: tag.ID}, "", NewPageWindow(1, 10), 0)
	if err != nil {
		t.Fatalf("ListTopics failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 topic for tag filter, got %d", len(items))
	}
	item := items[0]
	if item.ReplyCount != 1 {
		t.Errorf("expected reply count 1, got %d", item.ReplyCount)
	}
	if len(item.Tags) != 1 || item.Tags[0].ID != tag.ID {
		t.Errorf("expected tag %d on summary, got %+v", tag.ID, item.Tags)
	}
	if item.Snippet == "" {
		t.Error("expected a content snippet")
	}
}
