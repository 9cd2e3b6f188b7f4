// Package app wires the bot together and owns its lifecycle.
package app

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/internetsb/Maizone/internal/auth"
	"github.com/internetsb/Maizone/internal/config"
	"github.com/internetsb/Maizone/internal/dedup"
	"github.com/internetsb/Maizone/internal/generator"
	"github.com/internetsb/Maizone/internal/generator/providers"
	"github.com/internetsb/Maizone/internal/history"
	"github.com/internetsb/Maizone/internal/images"
	"github.com/internetsb/Maizone/internal/policy"
	"github.com/internetsb/Maizone/internal/qzone"
	"github.com/internetsb/Maizone/internal/reactor"
	"github.com/internetsb/Maizone/internal/schedule"
)

// App assembles the credential store, protocol client factory, reactor and
// schedulers from config.
type App struct {
	cfg *config.Config

	creds    *auth.Store
	dedup    *dedup.Store
	archive  *history.Archive
	gen      *generator.Generator
	images   images.Provider
	reactor  *reactor.Reactor
	poller   *schedule.Poller
	planner  *schedule.PostPlanner
	maint    *schedule.Maintenance
	imgCount int
}

// New builds the application from config.
func New(cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dataDir, err := cfg.DataDir()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data dir: %w", err)
	}

	a := &App{cfg: cfg}

	a.creds, err = buildCredentialStore(cfg, dataDir)
	if err != nil {
		return nil, err
	}

	a.dedup, err = dedup.Open(dataDir, cfg.Monitor.DedupCapacity)
	if err != nil {
		return nil, fmt.Errorf("failed to open dedup store: %w", err)
	}

	if cfg.History.Enabled {
		a.archive, err = history.Open(filepath.Join(dataDir, "maizone.db"))
		if err != nil {
			return nil, fmt.Errorf("failed to open history archive: %w", err)
		}
	}

	provider := providers.NewAnthropicProvider(cfg.Generator.APIKey, cfg.Generator.Model)
	a.gen = generator.New(provider)

	if cfg.Images.Enabled {
		a.images = images.NewSiliconFlowProvider(cfg.Images.APIKey, cfg.Images.Model)
		a.imgCount = cfg.Images.Count
	}

	pol, err := policy.New(cfg.Monitor.SilentWindows)
	if err != nil {
		return nil, err
	}
	pol.LikeInSilent = cfg.Monitor.LikeInSilent
	pol.CommentInSilent = cfg.Monitor.CommentInSilent

	a.reactor = reactor.New(reactor.Options{
		UIN:                cfg.Account.UIN,
		ScanCount:          cfg.Monitor.ScanCount,
		LikeProbability:    cfg.Monitor.LikeProbability,
		CommentProbability: cfg.Monitor.CommentProbability,
	}, a.dedup, a.gen, pol, a.archive, a.newClient)

	if cfg.Monitor.Enabled {
		interval := time.Duration(cfg.Monitor.PollIntervalMinutes) * time.Minute
		a.poller = schedule.NewPoller("wall scan", interval, 0, a.reactor.RunCycle)
	}

	if cfg.Schedule.Enabled {
		a.planner, err = schedule.NewPostPlanner(
			cfg.Schedule.PostTimes,
			time.Duration(cfg.Schedule.JitterMinutes)*time.Minute,
			cfg.Schedule.PostProbability,
			func(ctx context.Context) error { return a.SendPost(ctx, "") },
		)
		if err != nil {
			return nil, err
		}
	}

	a.maint, err = schedule.NewMaintenance(cfg.Schedule.Timezone)
	if err != nil {
		return nil, err
	}
	if err := a.maint.AddJob("credential refresh", "30 4 * * *", func(ctx context.Context) error {
		_, err := a.creds.EnsureFresh(ctx, true)
		return err
	}); err != nil {
		return nil, err
	}
	if a.archive != nil && cfg.History.RetentionDays > 0 {
		retention := time.Duration(cfg.History.RetentionDays) * 24 * time.Hour
		if err := a.maint.AddJob("archive prune", "0 5 * * *", func(ctx context.Context) error {
			n, err := a.archive.Prune(ctx, time.Now().Add(-retention))
			if n > 0 {
				log.Printf("[app] pruned %d archive rows", n)
			}
			return err
		}); err != nil {
			return nil, err
		}
	}

	return a, nil
}

func buildCredentialStore(cfg *config.Config, dataDir string) (*auth.Store, error) {
	var strategies []auth.Strategy
	for _, name := range cfg.Auth.Strategies {
		switch name {
		case "napcat":
			if !cfg.Napcat.Enabled {
				continue
			}
			strategies = append(strategies, &auth.NapcatStrategy{
				Host:   cfg.Napcat.Host,
				Port:   strconv.Itoa(cfg.Napcat.Port),
				Token:  cfg.Napcat.Token,
				Domain: "user.qzone.qq.com",
			})
		case "clientkey":
			strategies = append(strategies, &auth.ClientkeyStrategy{UIN: cfg.Account.UIN})
		case "browser":
			strategies = append(strategies, &auth.BrowserStrategy{UIN: cfg.Account.UIN})
		default:
			return nil, fmt.Errorf("unknown auth strategy %q", name)
		}
	}
	if len(strategies) == 0 {
		return nil, fmt.Errorf("no auth strategies configured")
	}

	opts := []auth.Option{
		auth.WithMinRefresh(time.Duration(cfg.Auth.MinRefreshMinutes) * time.Minute),
		auth.WithInteractiveCooldown(time.Duration(cfg.Auth.BrowserCooldownHours) * time.Hour),
		auth.WithDiskFallback(cfg.Auth.FallbackToDisk),
	}
	return auth.NewStore(auth.FilePath(dataDir, cfg.Account.UIN), strategies, opts...), nil
}

// newClient builds a protocol client on freshly ensured credentials.
func (a *App) newClient(ctx context.Context) (reactor.Client, error) {
	return a.client(ctx)
}

func (a *App) client(ctx context.Context) (*qzone.Client, error) {
	cookies, err := a.creds.EnsureFresh(ctx, false)
	if err != nil {
		return nil, err
	}
	var describer qzone.ImageDescriber
	if a.cfg.Generator.DescribeImages {
		describer = a.gen
	}
	return qzone.NewClient(a.cfg.Account.UIN, cookies, describer), nil
}

// Start launches the poll loop, the post planner and the maintenance jobs.
func (a *App) Start(ctx context.Context) {
	if a.poller != nil {
		a.poller.Start(ctx)
	}
	if a.planner != nil {
		a.planner.Start(ctx)
	}
	a.maint.Start()
	log.Printf("[app] started for account %s", a.cfg.Account.UIN)
}

// Stop shuts everything down and waits for in-flight work.
func (a *App) Stop() {
	if a.poller != nil {
		a.poller.Stop()
	}
	if a.planner != nil {
		a.planner.Stop()
	}
	a.maint.Stop()
	if a.archive != nil {
		a.archive.Close()
	}
	log.Printf("[app] stopped")
}

// SendPost generates and publishes one wall post. An empty topic lets the
// model pick its own subject. Image synthesis failure degrades to a
// text-only post rather than aborting.
func (a *App) SendPost(ctx context.Context, topic string) error {
	client, err := a.client(ctx)
	if err != nil {
		return err
	}

	prompt, err := a.buildPostPrompt(ctx, client, topic)
	if err != nil {
		return err
	}

	content, err := a.gen.Generate(ctx, prompt)
	if err != nil {
		return fmt.Errorf("failed to generate post: %w", err)
	}
	content = strings.TrimSpace(content)

	var pics [][]byte
	if a.images != nil {
		// A separate model pass distills the post into an image prompt;
		// if that fails the raw post text serves.
		imgPrompt, err := a.gen.ImagePrompt(ctx, content)
		if err != nil {
			log.Printf("[app] image prompt generation failed, using post text: %v", err)
			imgPrompt = content
		}
		pics, err = a.images.Synthesize(ctx, imgPrompt, a.imgCount)
		if err != nil {
			log.Printf("[app] image synthesis failed, posting text only: %v", err)
			pics = nil
		}
	}

	tid, err := client.Publish(ctx, content, pics)
	if err != nil {
		return fmt.Errorf("failed to publish: %w", err)
	}
	log.Printf("[app] published post %s (%d images)", tid, len(pics))

	if a.archive != nil {
		err := a.archive.RecordPost(ctx, &history.Post{
			TID:         tid,
			Topic:       topic,
			Content:     content,
			ImageCount:  len(pics),
			PublishedAt: time.Now(),
		})
		if err != nil {
			log.Printf("[app] failed to archive post: %v", err)
		}
	}
	return nil
}

// buildPostPrompt assembles the post-writing prompt, including recent
// posts so the model doesn't repeat itself. The archive is the preferred
// history source; with history disabled, the account's own feed serves.
func (a *App) buildPostPrompt(ctx context.Context, client *qzone.Client, topic string) (string, error) {
	var b strings.Builder
	b.WriteString("你是一个活跃在QQ空间的年轻人，说话自然、口语化，偶尔带点幽默。\n\n")
	if topic != "" {
		fmt.Fprintf(&b, "请围绕主题「%s」写一条说说。\n", topic)
	} else {
		b.WriteString("请写一条分享日常或心情的说说，主题自选。\n")
	}
	b.WriteString("长度在100字以内，只输出说说内容本身，不要加引号。\n")

	switch {
	case a.archive != nil && a.cfg.History.ContextPosts > 0:
		recent, err := a.archive.RecentPosts(ctx, a.cfg.History.ContextPosts)
		if err != nil {
			return "", fmt.Errorf("failed to load post history: %w", err)
		}
		if len(recent) > 0 {
			b.WriteString("\n你最近发过的说说（不要重复类似的内容）：\n")
			for _, p := range recent {
				fmt.Fprintf(&b, "- [%s] %s\n", p.PublishedAt.Format("01-02"), p.Content)
			}
		}
	case a.cfg.History.ContextPosts > 0:
		block, err := client.SendHistory(ctx, a.cfg.History.ContextPosts)
		if err != nil {
			// An unreadable own feed should not block posting.
			log.Printf("[app] could not load feed history: %v", err)
		} else {
			b.WriteString("\n你最近发过的说说（不要重复类似的内容）：\n")
			b.WriteString(block)
			b.WriteString("\n")
		}
	}
	return b.String(), nil
}

// ReadFriend reacts to a friend's recent feed right now, outside the poll
// loop.
func (a *App) ReadFriend(ctx context.Context, friendQQ string, count int) error {
	return a.reactor.ReadFriend(ctx, friendQQ, count)
}

// Login forces a credential refresh, walking the strategy chain.
func (a *App) Login(ctx context.Context) error {
	_, err := a.creds.EnsureFresh(ctx, true)
	return err
}
