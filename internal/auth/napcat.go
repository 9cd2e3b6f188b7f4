package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/internetsb/Maizone/internal/retry"
)

// NapcatStrategy fetches cookies from a local OneBot/Napcat HTTP sidecar,
// which holds a live QQ session and can mint qzone cookies on demand. This
// is the cheapest strategy and runs first.
type NapcatStrategy struct {
	Host   string
	Port   string
	Token  string // optional bearer token
	Domain string // cookie domain to request, e.g. user.qzone.qq.com

	HTTPClient *http.Client
}

// Name implements Strategy.
func (n *NapcatStrategy) Name() string { return "napcat" }

// Interactive implements Strategy.
func (n *NapcatStrategy) Interactive() bool { return false }

// Acquire implements Strategy. The sidecar is occasionally mid-restart, so
// the call retries once with a doubling delay before giving up.
func (n *NapcatStrategy) Acquire(ctx context.Context) (Bundle, error) {
	return retry.Do(ctx, retry.Options{Attempts: 2, Delay: time.Second}, n.fetch)
}

func (n *NapcatStrategy) fetch(ctx context.Context) (Bundle, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	domain := n.Domain
	if domain == "" {
		domain = "user.qzone.qq.com"
	}
	payload, err := json.Marshal(map[string]string{"domain": domain})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("http://%s:%s/get_cookies", n.Host, n.Port)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if n.Token != "" {
		req.Header.Set("Authorization", "Bearer "+n.Token)
	}

	client := n.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	res, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("napcat unreachable at %s: %w", url, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		if res.StatusCode == http.StatusForbidden {
			return nil, fmt.Errorf("napcat returned %d (token rejected)", res.StatusCode)
		}
		return nil, fmt.Errorf("napcat returned %d", res.StatusCode)
	}

	var body struct {
		Status string `json:"status"`
		Data   struct {
			Cookies string `json:"cookies"`
		} `json:"data"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode napcat response: %w", err)
	}
	if body.Status != "ok" || body.Data.Cookies == "" {
		return nil, fmt.Errorf("napcat reported status %q without cookies", body.Status)
	}
	return ParseCookieString(body.Data.Cookies), nil
}
