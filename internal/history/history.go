// Package history archives published posts and reactions in SQLite, mainly
// so the post generator can see what it already wrote and avoid repeating
// itself.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Post is one published wall post.
type Post struct {
	TID         string
	Topic       string
	Content     string
	ImageCount  int
	PublishedAt time.Time
}

// Reaction is one like/comment/reply the bot performed on somebody's feed.
type Reaction struct {
	ItemKey   string
	AuthorQQ  string
	Kind      string // "like", "comment" or "reply"
	Content   string
	CreatedAt time.Time
}

// Archive handles all database operations.
type Archive struct {
	db *sql.DB
}

// Open creates the archive at dbPath, creating the schema if needed.
func Open(dbPath string) (*Archive, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	a := &Archive{db: db}
	if err := a.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

// Close closes the database connection.
func (a *Archive) Close() error {
	return a.db.Close()
}

func (a *Archive) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS posts (
		tid TEXT PRIMARY KEY,
		topic TEXT,
		content TEXT NOT NULL,
		image_count INTEGER,
		published_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS reactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		item_key TEXT NOT NULL,
		author_qq TEXT,
		kind TEXT NOT NULL,
		content TEXT,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_posts_published_at ON posts(published_at);
	CREATE INDEX IF NOT EXISTS idx_reactions_created_at ON reactions(created_at);
	CREATE INDEX IF NOT EXISTS idx_reactions_item_key ON reactions(item_key);
	`

	if _, err := a.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// RecordPost archives a published post.
func (a *Archive) RecordPost(ctx context.Context, p *Post) error {
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO posts (tid, topic, content, image_count, published_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(tid) DO NOTHING
	`, p.TID, p.Topic, p.Content, p.ImageCount, p.PublishedAt)
	return err
}

// RecordReaction archives one reaction.
func (a *Archive) RecordReaction(ctx context.Context, r *Reaction) error {
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO reactions (item_key, author_qq, kind, content, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, r.ItemKey, r.AuthorQQ, r.Kind, r.Content, r.CreatedAt)
	return err
}

// RecentPosts returns the latest published posts, newest first.
func (a *Archive) RecentPosts(ctx context.Context, limit int) ([]*Post, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT tid, topic, content, image_count, published_at
		FROM posts
		ORDER BY published_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []*Post
	for rows.Next() {
		p := &Post{}
		if err := rows.Scan(&p.TID, &p.Topic, &p.Content, &p.ImageCount, &p.PublishedAt); err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// Prune deletes archive rows older than the cutoff and returns how many
// went away.
func (a *Archive) Prune(ctx context.Context, before time.Time) (int64, error) {
	var total int64
	for _, q := range []string{
		`DELETE FROM posts WHERE published_at < ?`,
		`DELETE FROM reactions WHERE created_at < ?`,
	} {
		res, err := a.db.ExecContext(ctx, q, before)
		if err != nil {
			return total, err
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}
