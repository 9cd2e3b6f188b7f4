package history

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

func openTestArchive(t *testing.T) *Archive {
	t.Helper()
	a, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestRecordAndRecentPosts(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()

	base := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)
	for i, content := range []string{"第一条", "第二条", "第三条"} {
		err := a.RecordPost(ctx, &Post{
			TID:         fmt.Sprintf("t%d", i),
			Content:     content,
			ImageCount:  i,
			PublishedAt: base.Add(time.Duration(i) * time.Hour),
		})
		if err != nil {
			t.Fatalf("RecordPost: %v", err)
		}
	}

	recent, err := a.RecentPosts(ctx, 2)
	if err != nil {
		t.Fatalf("RecentPosts: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("got %d posts, want 2", len(recent))
	}
	// Newest first.
	if recent[0].Content != "第三条" || recent[1].Content != "第二条" {
		t.Errorf("order = %q, %q", recent[0].Content, recent[1].Content)
	}
}

func TestRecordPostIdempotent(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()

	p := &Post{TID: "t1", Content: "内容", PublishedAt: time.Now().UTC()}
	if err := a.RecordPost(ctx, p); err != nil {
		t.Fatalf("RecordPost: %v", err)
	}
	// Same tid again is a no-op, not an error.
	if err := a.RecordPost(ctx, p); err != nil {
		t.Fatalf("duplicate RecordPost: %v", err)
	}

	recent, err := a.RecentPosts(ctx, 10)
	if err != nil {
		t.Fatalf("RecentPosts: %v", err)
	}
	if len(recent) != 1 {
		t.Errorf("got %d posts, want 1", len(recent))
	}
}

func TestPrune(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()

	old := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	fresh := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)

	a.RecordPost(ctx, &Post{TID: "old", Content: "旧的", PublishedAt: old})
	a.RecordPost(ctx, &Post{TID: "new", Content: "新的", PublishedAt: fresh})
	a.RecordReaction(ctx, &Reaction{ItemKey: "k1", Kind: "like", CreatedAt: old})
	a.RecordReaction(ctx, &Reaction{ItemKey: "k2", Kind: "comment", CreatedAt: fresh})

	n, err := a.Prune(ctx, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if n != 2 {
		t.Errorf("pruned %d rows, want 2", n)
	}

	recent, err := a.RecentPosts(ctx, 10)
	if err != nil {
		t.Fatalf("RecentPosts: %v", err)
	}
	if len(recent) != 1 || recent[0].TID != "new" {
		t.Errorf("surviving posts = %+v", recent)
	}
}
