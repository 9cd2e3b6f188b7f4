// Package reactor walks the wall feed and decides, item by item, whether to
// like, comment or reply.
package reactor

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"github.com/internetsb/Maizone/internal/dedup"
	"github.com/internetsb/Maizone/internal/generator"
	"github.com/internetsb/Maizone/internal/history"
	"github.com/internetsb/Maizone/internal/policy"
	"github.com/internetsb/Maizone/internal/qzone"
)

// Client is the slice of the protocol client the reactor needs.
type Client interface {
	ListWall(ctx context.Context, count int) ([]qzone.FeedItem, error)
	ListFeed(ctx context.Context, targetQQ string, count int) ([]qzone.FeedItem, error)
	Like(ctx context.Context, itemID, authorQQ string) error
	Comment(ctx context.Context, itemID, authorQQ, content string) error
	Reply(ctx context.Context, itemID, authorQQ, authorName, commentID, content string) error
}

// Options configures a Reactor.
type Options struct {
	// UIN is the bot's own QQ number; items it authored get replies
	// instead of comments.
	UIN string
	// ScanCount is how many wall items one cycle inspects.
	ScanCount int
	// LikeProbability and CommentProbability are the per-item chances of
	// liking and commenting on a friend's post, rolled independently.
	LikeProbability    float64
	CommentProbability float64
}

// Reactor ties the protocol client, generator, dedup store and reaction
// policy into one scan cycle.
type Reactor struct {
	opts    Options
	store   *dedup.Store
	gen     *generator.Generator
	policy  *policy.Policy
	archive *history.Archive

	// newClient builds a protocol client with fresh credentials. A new
	// client per cycle keeps cookie refresh out of the reactor's way.
	newClient func(ctx context.Context) (Client, error)

	now  func() time.Time
	rand *rand.Rand
	// pause waits between consecutive reactions so the account doesn't
	// write at machine speed.
	pause func(ctx context.Context, d time.Duration)
}

// New creates a reactor. The archive may be nil to skip history recording.
func New(opts Options, store *dedup.Store, gen *generator.Generator, pol *policy.Policy, archive *history.Archive, newClient func(ctx context.Context) (Client, error)) *Reactor {
	if opts.ScanCount <= 0 {
		opts.ScanCount = 10
	}
	return &Reactor{
		opts:      opts,
		store:     store,
		gen:       gen,
		policy:    pol,
		archive:   archive,
		newClient: newClient,
		now:       time.Now,
		rand:      rand.New(rand.NewSource(time.Now().UnixNano())),
		pause:     sleep,
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// itemDelay spaces out items within a scan, replyDelay spaces out replies
// under one post. Replies wait longer since they land on the same thread.
func (r *Reactor) itemDelay() time.Duration {
	return 3*time.Second + time.Duration(r.rand.Float64()*float64(time.Second))
}

func (r *Reactor) replyDelay() time.Duration {
	return 10*time.Second + time.Duration(r.rand.Float64()*10*float64(time.Second))
}

// RunCycle scans the wall once. Items the bot authored get replies to new
// comments; everyone else's items get at most one comment-and-like bundle.
// An item is marked processed only after its reaction succeeds, and the
// mark is written before the next item is touched.
func (r *Reactor) RunCycle(ctx context.Context) error {
	client, err := r.newClient(ctx)
	if err != nil {
		return fmt.Errorf("failed to build client: %w", err)
	}

	items, err := client.ListWall(ctx, r.opts.ScanCount)
	if err != nil {
		return fmt.Errorf("failed to list wall: %w", err)
	}
	log.Printf("[reactor] scanning %d wall items", len(items))

	for i := range items {
		item := &items[i]
		r.pause(ctx, r.itemDelay())
		if err := ctx.Err(); err != nil {
			return err
		}
		if item.AuthorID == r.opts.UIN {
			if err := r.handleOwnItem(ctx, client, item); err != nil {
				log.Printf("[reactor] item %s: %v", item.ID, err)
			}
			continue
		}
		if err := r.handleFriendItem(ctx, client, item); err != nil {
			log.Printf("[reactor] item %s: %v", item.ID, err)
		}
	}
	return nil
}

// handleOwnItem answers unanswered comments under the bot's own post. The
// item itself is never marked processed, so comments arriving later still
// get replies in future cycles.
func (r *Reactor) handleOwnItem(ctx context.Context, client Client, item *qzone.FeedItem) error {
	for _, c := range item.TopLevel() {
		if c.AuthorID == r.opts.UIN {
			continue
		}
		key := fmt.Sprintf("%s_%s", item.ID, c.ID)
		if r.store.IsCommentReplied(key) {
			continue
		}
		if r.alreadyAnswered(item, c) {
			// Answered in a life before this ledger existed; backfill
			// the mark so the check is cheap next time.
			if err := r.store.MarkCommentReplied(key, ""); err != nil {
				return err
			}
			continue
		}
		if !r.policy.AllowComment(r.now()) {
			log.Printf("[reactor] silent window, holding reply to comment %s", c.ID)
			continue
		}

		reply, err := r.gen.Generate(ctx, buildReplyPrompt(item, c))
		if err != nil {
			return fmt.Errorf("failed to generate reply: %w", err)
		}
		reply = strings.TrimSpace(reply)
		if err := client.Reply(ctx, item.ID, c.AuthorID, c.AuthorName, c.ID, reply); err != nil {
			return fmt.Errorf("failed to reply to comment %s: %w", c.ID, err)
		}
		if err := r.store.MarkCommentReplied(key, reply); err != nil {
			return fmt.Errorf("failed to persist reply mark: %w", err)
		}
		r.record(ctx, key, c.AuthorID, "reply", reply)
		log.Printf("[reactor] replied to %s on item %s", c.AuthorName, item.ID)
		r.pause(ctx, r.replyDelay())
	}
	return nil
}

// alreadyAnswered checks the comment thread itself: if the bot already has
// a sub-comment under c, the reply happened even if the ledger forgot.
func (r *Reactor) alreadyAnswered(item *qzone.FeedItem, c qzone.Comment) bool {
	for _, sub := range item.Comments {
		if sub.ParentID == c.ID && sub.AuthorID == r.opts.UIN {
			return true
		}
	}
	return false
}

// handleFriendItem reacts to somebody else's post. The comment and the
// like each pass their own probability roll and silent-window gate.
func (r *Reactor) handleFriendItem(ctx context.Context, client Client, item *qzone.FeedItem) error {
	key := fmt.Sprintf("%s_%s", item.AuthorID, item.ID)
	if r.store.IsProcessed(key) {
		return nil
	}

	now := r.now()
	doComment := r.policy.AllowComment(now) && r.rand.Float64() < r.opts.CommentProbability
	doLike := r.policy.AllowLike(now) && r.rand.Float64() < r.opts.LikeProbability
	if !doComment && !doLike {
		// Skipped, not processed: the item gets another chance in a
		// later cycle.
		return nil
	}

	var reacted bool
	var comment string
	if doComment {
		text, err := r.gen.Generate(ctx, buildCommentPrompt(item))
		if err != nil {
			return fmt.Errorf("failed to generate comment: %w", err)
		}
		comment = strings.TrimSpace(text)
		if err := client.Comment(ctx, item.ID, item.AuthorID, comment); err != nil {
			return fmt.Errorf("failed to comment: %w", err)
		}
		reacted = true
	}
	if doLike {
		if err := client.Like(ctx, item.ID, item.AuthorID); err != nil {
			if !reacted {
				return fmt.Errorf("failed to like: %w", err)
			}
			// The comment went through, so the item still counts as
			// handled.
			log.Printf("[reactor] like failed on item %s: %v", item.ID, err)
		} else {
			reacted = true
		}
	}
	if !reacted {
		return nil
	}

	if err := r.store.MarkProcessed(key, item.CreatedAt); err != nil {
		return fmt.Errorf("failed to persist processed mark: %w", err)
	}
	kind := "comment"
	if comment == "" {
		kind = "like"
	}
	r.record(ctx, key, item.AuthorID, kind, comment)
	log.Printf("[reactor] reacted to item %s by %s", item.ID, item.AuthorID)
	return nil
}

// ReadFriend is the one-shot "go read this friend's zone" operation: list
// their recent feed and react to everything not yet handled. The comment
// and like probability rolls apply here too; the silent-window policy does
// not, since the operator asked for the visit directly.
func (r *Reactor) ReadFriend(ctx context.Context, friendQQ string, count int) error {
	client, err := r.newClient(ctx)
	if err != nil {
		return fmt.Errorf("failed to build client: %w", err)
	}

	items, err := client.ListFeed(ctx, friendQQ, count)
	if err != nil {
		return fmt.Errorf("failed to list feed of %s: %w", friendQQ, err)
	}

	for i := range items {
		item := &items[i]
		r.pause(ctx, r.itemDelay())
		if err := ctx.Err(); err != nil {
			return err
		}
		key := fmt.Sprintf("%s_%s", item.AuthorID, item.ID)
		if r.store.IsProcessed(key) {
			continue
		}

		doComment := r.rand.Float64() < r.opts.CommentProbability
		doLike := r.rand.Float64() < r.opts.LikeProbability
		if !doComment && !doLike {
			continue
		}

		var reacted bool
		var comment string
		if doComment {
			text, err := r.gen.Generate(ctx, buildCommentPrompt(item))
			if err != nil {
				return fmt.Errorf("failed to generate comment: %w", err)
			}
			comment = strings.TrimSpace(text)
			if err := client.Comment(ctx, item.ID, item.AuthorID, comment); err != nil {
				return fmt.Errorf("failed to comment on item %s: %w", item.ID, err)
			}
			reacted = true
		}
		if doLike {
			if err := client.Like(ctx, item.ID, item.AuthorID); err != nil {
				if !reacted {
					return fmt.Errorf("failed to like item %s: %w", item.ID, err)
				}
				log.Printf("[reactor] like failed on item %s: %v", item.ID, err)
			} else {
				reacted = true
			}
		}
		if !reacted {
			continue
		}
		if err := r.store.MarkProcessed(key, item.CreatedAt); err != nil {
			return fmt.Errorf("failed to persist processed mark: %w", err)
		}
		kind := "comment"
		if comment == "" {
			kind = "like"
		}
		r.record(ctx, key, item.AuthorID, kind, comment)
		log.Printf("[reactor] read item %s by %s", item.ID, item.AuthorID)
	}
	return nil
}

func (r *Reactor) record(ctx context.Context, itemKey, authorQQ, kind, content string) {
	if r.archive == nil {
		return
	}
	err := r.archive.RecordReaction(ctx, &history.Reaction{
		ItemKey:   itemKey,
		AuthorQQ:  authorQQ,
		Kind:      kind,
		Content:   content,
		CreatedAt: r.now(),
	})
	if err != nil {
		log.Printf("[reactor] failed to archive reaction: %v", err)
	}
}
