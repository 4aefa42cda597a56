// forum/database.go
package forum

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is the read/write surface shared by the pool and an open
// transaction, so the same row helpers serve both paths.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// The cascade paths own their own deletion order, so none of the
// forum_* foreign keys declare ON DELETE CASCADE.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id BIGSERIAL PRIMARY KEY,
    username TEXT NOT NULL UNIQUE,
    email TEXT NOT NULL UNIQUE,
    password_hash BYTEA NOT NULL,
    api_key TEXT NOT NULL UNIQUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS forum_categories (
    id BIGSERIAL PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    slug TEXT NOT NULL UNIQUE,
    description TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS forum_tags (
    id BIGSERIAL PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    slug TEXT NOT NULL UNIQUE,
    color_classes TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS topics (
    id BIGSERIAL PRIMARY KEY,
    title TEXT NOT NULL,
    author_id BIGINT NOT NULL,
    category_id BIGINT NOT NULL REFERENCES forum_categories(id),
    status TEXT NOT NULL DEFAULT 'open' CHECK (status IN ('open','closed','deleted')),
    like_count INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    last_activity_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    last_activity_user_id BIGINT NOT NULL
);
CREATE TABLE IF NOT EXISTS forum_posts (
    id BIGSERIAL PRIMARY KEY,
    topic_id BIGINT NOT NULL REFERENCES topics(id),
    parent_post_id BIGINT REFERENCES forum_posts(id),
    author_id BIGINT NOT NULL,
    content TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'visible' CHECK (status IN ('visible','deleted')),
    like_count INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS forum_topic_tags (
    topic_id BIGINT NOT NULL REFERENCES topics(id),
    tag_id BIGINT NOT NULL REFERENCES forum_tags(id),
    PRIMARY KEY (topic_id, tag_id)
);
CREATE TABLE IF NOT EXISTS forum_post_likes (
    user_id BIGINT NOT NULL,
    post_id BIGINT NOT NULL REFERENCES forum_posts(id),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (user_id, post_id)
);
CREATE INDEX IF NOT EXISTS idx_posts_on_topic_id ON forum_posts(topic_id);
CREATE INDEX IF NOT EXISTS idx_posts_on_author_id ON forum_posts(author_id);
CREATE INDEX IF NOT EXISTS idx_likes_on_post_id ON forum_post_likes(post_id);
CREATE INDEX IF NOT EXISTS idx_topics_on_activity ON topics(last_activity_at, id);
`

// DefaultOpTimeout bounds every store round trip; callers that need a
// different bound set Database.Timeout after construction.
const DefaultOpTimeout = 5 * time.Second

type Database struct {
	pool    *pgxpool.Pool
	Timeout time.Duration
}

func NewDatabase(connectionString string) (*Database, error) {
	pool, err := pgxpool.New(context.Background(), connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Database{pool: pool, Timeout: DefaultOpTimeout}, nil
}

func (d *Database) CreateTables(ctx context.Context) error {
	_, err := d.pool.Exec(ctx, schema)
	return err
}

func (d *Database) Close() {
	d.pool.Close()
}

// opCtx derives the bounded context used for every store call.
func (d *Database) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = DefaultOpTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

// withTx runs fn inside one transaction under the operation timeout. Any
// error out of fn rolls the whole transaction back; fn's *Error values
// pass through untouched so callers keep the taxonomy.
func (d *Database) withTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	ctx, cancel := d.opCtx(ctx)
	defer cancel()

	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return storeErr(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return storeErr(err, "failed to commit transaction")
	}
	return nil
}
