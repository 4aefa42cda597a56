package forum

import (
	"context"
	"strings"
	"testing"
)

func TestSlugify(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Go", "go"},
		{"Solana Blinks", "solana-blinks"},
		{"  spaced   out  ", "spaced-out"},
		{"Café au Lait", "cafe-au-lait"},
		{"C++ & Rust!", "c-rust"},
		{"--already-sluggy--", "already-sluggy"},
		{"测试", ""},
	}
	for _, tc := range cases {
		if got := Slugify(tc.in); got != tc.want {
			t.Errorf("Slugify(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCreateTagFallbackSlug(t *testing.T) {
	db := testDB(t)
	tag, err := db.CreateTag(context.Background(), "测试", "")
	if err != nil {
		t.Fatalf("CreateTag failed: %v", err)
	}
	if !strings.HasPrefix(tag.Slug, "tag-") {
		t.Errorf("expected time-based fallback slug, got %q", tag.Slug)
	}
}

func TestCreateTagConflict(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	if _, err := db.CreateTag(ctx, "golang", ""); err != nil {
		t.Fatalf("CreateTag failed: %v", err)
	}
	if _, err := db.CreateTag(ctx, "golang", ""); KindOf(err) != KindConflict {
		t.Errorf("expected Conflict on duplicate name, got %v", err)
	}
	// Different name, same derived slug.
	if _, err := db.CreateTag(ctx, "GOLANG ", ""); KindOf(err) != KindConflict {
		t.Errorf("expected Conflict on duplicate slug, got %v", err)
	}
}

func topicTagIDs(t *testing.T, db *Database, topicID int64) []int64 {
	t.Helper()
	tags, err := topicTags(context.Background(), db.pool, topicID)
	if err != nil {
		t.Fatalf("topicTags failed: %v", err)
	}
	ids := make([]int64, len(tags))
	for i, tag := range tags {
		ids[i] = tag.ID
	}
	return ids
}

func TestSetTopicTagsReplaceAll(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	alice := testUser(t, db, "alice")
	cat := testCategory(t, db, "general")
	a := testTag(t, db, "alpha")
	b := testTag(t, db, "beta")
	c := testTag(t, db, "gamma")
	topic := testTopic(t, db, alice.ID, cat.ID, "tagged", a.ID, b.ID)

	// Replacing with one tag leaves exactly that tag, no residue.
	if err := db.SetTopicTags(ctx, topic.ID, []int64{c.ID}); err != nil {
		t.Fatalf("SetTopicTags failed: %v", err)
	}
	if ids := topicTagIDs(t, db, topic.ID); len(ids) != 1 || ids[0] != c.ID {
		t.Fatalf("expected exactly {gamma}, got %v", ids)
	}

	// Duplicates in the input collapse.
	if err := db.SetTopicTags(ctx, topic.ID, []int64{a.ID, a.ID, b.ID}); err != nil {
		t.Fatalf("SetTopicTags failed: %v", err)
	}
	if ids := topicTagIDs(t, db, topic.ID); len(ids) != 2 {
		t.Fatalf("expected {alpha, beta}, got %v", ids)
	}

	// Empty list means "no tags".
	if err := db.SetTopicTags(ctx, topic.ID, nil); err != nil {
		t.Fatalf("SetTopicTags(empty) failed: %v", err)
	}
	if ids := topicTagIDs(t, db, topic.ID); len(ids) != 0 {
		t.Fatalf("expected no tags, got %v", ids)
	}
}

func TestSetTopicTagsRollsBackOnBadTag(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	alice := testUser(t, db, "alice")
	cat := testCategory(t, db, "general")
	a := testTag(t, db, "alpha")
	topic := testTopic(t, db, alice.ID, cat.ID, "tagged", a.ID)

	err := db.SetTopicTags(ctx, topic.ID, []int64{a.ID, 424242})
	if KindOf(err) != KindNotFound {
		t.Fatalf("expected NotFound for unknown tag, got %v", err)
	}
	// The pre-update set survives the rollback.
	if ids := topicTagIDs(t, db, topic.ID); len(ids) != 1 || ids[0] != a.ID {
		t.Fatalf("expected {alpha} after rollback, got %v", ids)
	}
}

func TestSetTopicTagsMissingTopic(t *testing.T) {
	db := testDB(t)
	if err := db.SetTopicTags(context.Background(), 999999, nil); KindOf(err) != KindNotFound {
		t.Errorf("expected NotFound, got %v", err)
	}
}
