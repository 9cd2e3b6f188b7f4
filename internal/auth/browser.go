package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"

	"github.com/internetsb/Maizone/internal/browser"
)

const qzoneLoginURL = "https://qzone.qq.com/"

// BrowserStrategy opens a visible browser on the qzone login page and waits
// for the user to scan the QR code. It is the strategy of last resort: it
// needs a human in front of the machine, so the credential store rations it
// with a cooldown.
type BrowserStrategy struct {
	UIN string

	// LoginTimeout bounds how long the QR code stays up. Zero means five
	// minutes.
	LoginTimeout time.Duration
}

// Name implements Strategy.
func (b *BrowserStrategy) Name() string { return "browser" }

// Interactive implements Strategy.
func (b *BrowserStrategy) Interactive() bool { return true }

// Acquire implements Strategy.
func (b *BrowserStrategy) Acquire(ctx context.Context) (Bundle, error) {
	timeout := b.LoginTimeout
	if timeout == 0 {
		timeout = 5 * time.Minute
	}

	allocCtx, cancel := chromedp.NewExecAllocator(ctx, browser.Options(false)...)
	defer cancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	if err := chromedp.Run(browserCtx, chromedp.Navigate(qzoneLoginURL)); err != nil {
		return nil, fmt.Errorf("failed to open login page: %w", err)
	}

	return b.waitForLogin(browserCtx, timeout)
}

// waitForLogin polls the browser's cookies until the qzone session cookies
// show up, which is the reliable signal that the QR scan went through.
func (b *BrowserStrategy) waitForLogin(ctx context.Context, timeout time.Duration) (Bundle, error) {
	deadline := time.After(timeout)
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-deadline:
			return nil, fmt.Errorf("login timed out after %s", timeout)
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			bundle, err := b.extractCookies(ctx)
			if err != nil {
				continue
			}
			if bundle["p_skey"] != "" && bundle["skey"] != "" {
				return bundle, nil
			}
		}
	}
}

// extractCookies snapshots the browser's qq.com cookies into a bundle.
func (b *BrowserStrategy) extractCookies(ctx context.Context) (Bundle, error) {
	bundle := make(Bundle)
	err := chromedp.Run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			cookies, err := storage.GetCookies().Do(ctx)
			if err != nil {
				return err
			}
			for _, c := range cookies {
				if strings.HasSuffix(c.Domain, "qq.com") && c.Value != "" {
					bundle[c.Name] = c.Value
				}
			}
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}
	return bundle, nil
}
