package auth

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"time"
)

// ptlogin chain URLs. The pt_get_st endpoint resolves to the loopback
// interface and is answered by a locally running QQ client, which is what
// makes this strategy work without any interaction.
const (
	xloginURL = "https://xui.ptlogin2.qq.com/cgi-bin/xlogin?s_url=https%3A%2F%2Fhuifu.qq.com%2Findex.html" +
		"&style=20&appid=715021417&proxy_url=https%3A%2F%2Fhuifu.qq.com%2Fproxy.html"
	getSTURL = "https://localhost.ptlogin2.qq.com:4301/pt_get_st"
	jumpURL  = "https://ssl.ptlogin2.qq.com/jump"
)

// ClientkeyStrategy derives qzone cookies from a locally logged-in QQ
// client via the ptlogin clientkey redirect chain: fetch a local token,
// exchange it for a clientkey, then follow the login jump to collect the
// session cookies.
type ClientkeyStrategy struct {
	UIN string

	HTTPClient *http.Client
}

// Name implements Strategy.
func (c *ClientkeyStrategy) Name() string { return "clientkey" }

// Interactive implements Strategy.
func (c *ClientkeyStrategy) Interactive() bool { return false }

// Acquire implements Strategy.
func (c *ClientkeyStrategy) Acquire(ctx context.Context) (Bundle, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	client := c.HTTPClient
	if client == nil {
		// Redirects are followed manually so each hop's Set-Cookie
		// headers can be harvested.
		client = &http.Client{
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}

	jar := make(Bundle)

	res, err := c.get(ctx, client, jar, xloginURL, "")
	if err != nil {
		return nil, fmt.Errorf("xlogin: %w", err)
	}
	res.Body.Close()
	harvest(res, jar)
	localToken, ok := jar["pt_local_token"]
	if !ok {
		return nil, fmt.Errorf("xlogin response carries no pt_local_token")
	}

	stURL := fmt.Sprintf("%s?clientuin=%s&callback=ptui_getst_CB&r=%.16f&pt_local_tk=%s",
		getSTURL, c.UIN, rand.Float64(), localToken)
	res, err = c.get(ctx, client, jar, stURL, "https://ssl.xui.ptlogin2.qq.com/")
	if err != nil {
		return nil, fmt.Errorf("pt_get_st: %w", err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusBadRequest {
		return nil, fmt.Errorf("pt_get_st rejected the request (no local QQ client?)")
	}
	harvest(res, jar)
	clientkey, ok := jar["clientkey"]
	if !ok {
		return nil, fmt.Errorf("pt_get_st yielded no clientkey")
	}

	login := fmt.Sprintf("%s?ptlang=1033&clientuin=%s&clientkey=%s"+
		"&u1=https%%3A%%2F%%2Fuser.qzone.qq.com%%2F%s%%2Finfocenter&keyindex=19",
		jumpURL, c.UIN, clientkey, c.UIN)
	res, err = c.get(ctx, client, jar, login, "")
	if err != nil {
		return nil, fmt.Errorf("login jump: %w", err)
	}
	res.Body.Close()
	harvest(res, jar)

	location := res.Header.Get("Location")
	if location == "" {
		return nil, fmt.Errorf("login jump returned no redirect")
	}
	res, err = c.get(ctx, client, jar, location, "https://ssl.ptlogin2.qq.com/")
	if err != nil {
		return nil, fmt.Errorf("login redirect: %w", err)
	}
	res.Body.Close()
	harvest(res, jar)

	if jar["p_skey"] == "" {
		return nil, fmt.Errorf("login chain completed without a p_skey cookie")
	}
	return jar, nil
}

func (c *ClientkeyStrategy) get(ctx context.Context, client *http.Client, jar Bundle, url, referer string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/139.0.0.0 Safari/537.36")
	if referer != "" {
		req.Header.Set("Referer", referer)
	}
	for name, value := range jar {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}
	return client.Do(req)
}

// harvest folds a response's Set-Cookie headers into the bundle. Deleted
// cookies (empty values) are ignored; the chain only ever adds state.
func harvest(res *http.Response, jar Bundle) {
	for _, cookie := range res.Cookies() {
		if cookie.Value != "" {
			jar[cookie.Name] = cookie.Value
		}
	}
}
