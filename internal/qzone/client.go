// Package qzone drives the reverse-engineered Qzone CGI surface: publishing
// posts, liking, commenting, replying, and reading feeds. Responses come back
// as JSON, JSONP or script-wrapped HTML depending on the endpoint, so each
// operation carries its own parser.
package qzone

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Default per-call timeouts. Image uploads carry megabytes of base64 and get
// a much longer budget than the ordinary CGI calls.
const (
	callTimeout   = 10 * time.Second
	uploadTimeout = 60 * time.Second
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/139.0.0.0 Safari/537.36"

// endpoints holds the CGI URLs. They are fields rather than constants so
// tests can point the client at a local server.
type endpoints struct {
	uploadImage string
	publish     string
	like        string
	comment     string
	reply       string
	feedList    string
	wall        string
}

func defaultEndpoints() endpoints {
	return endpoints{
		uploadImage: "https://up.qzone.qq.com/cgi-bin/upload/cgi_upload_image",
		publish:     "https://user.qzone.qq.com/proxy/domain/taotao.qzone.qq.com/cgi-bin/emotion_cgi_publish_v6",
		like:        "https://user.qzone.qq.com/proxy/domain/w.qzone.qq.com/cgi-bin/likes/internal_dolike_app",
		comment:     "https://user.qzone.qq.com/proxy/domain/taotao.qzone.qq.com/cgi-bin/emotion_cgi_re_feeds",
		reply:       "https://h5.qzone.qq.com/proxy/domain/taotao.qzone.qq.com/cgi-bin/emotion_cgi_re_feeds",
		feedList:    "https://user.qzone.qq.com/proxy/domain/taotao.qq.com/cgi-bin/emotion_cgi_msglist_v6",
		wall:        "https://user.qzone.qq.com/proxy/domain/ic2.qzone.qq.com/cgi-bin/feeds/feeds3_html_more",
	}
}

// ImageDescriber turns an image URL into a short textual description so
// generated comments can reference what a post shows. Implementations may
// download the image and run it through a vision model.
type ImageDescriber interface {
	Describe(ctx context.Context, imageURL string) (string, error)
}

// Client executes protocol operations as a single account. It holds the
// credential bundle the calls authenticate with and the signing token
// derived from it; build a fresh Client whenever the bundle changes.
type Client struct {
	uin       string
	cookies   map[string]string
	gtk       string
	nickname  string
	describer ImageDescriber

	httpClient *http.Client
	endpoints  endpoints
}

// NewClient builds a protocol client for the given account (uin) and
// credential bundle. The signing token is derived from the bundle's p_skey
// field. The describer is optional; without one, feed items carry raw image
// URLs but no descriptions.
func NewClient(uin string, cookies map[string]string, describer ImageDescriber) *Client {
	return &Client{
		uin:        uin,
		cookies:    cookies,
		gtk:        gtkString(cookies["p_skey"]),
		describer:  describer,
		httpClient: &http.Client{},
		endpoints:  defaultEndpoints(),
	}
}

// UIN returns the acting account identifier.
func (c *Client) UIN() string { return c.uin }

// Nickname returns the account's display name as last reported by the
// remote (learned from ListFeed's logininfo). Empty until a feed has been
// listed.
func (c *Client) Nickname() string { return c.nickname }

// do issues one authenticated request and returns the response body. Every
// call gets its own timeout; redirects are followed with cookies intact.
func (c *Client) do(ctx context.Context, op, method, rawURL string, params, form url.Values, headers map[string]string, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	u := rawURL
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return "", &TransportError{Op: op, Err: err}
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("User-Agent", userAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	for name, value := range c.cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return "", &TransportError{Op: op, Err: err}
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return "", &TransportError{Op: op, Err: err}
	}
	if res.StatusCode != http.StatusOK {
		return "", &TransportError{Op: op, StatusCode: res.StatusCode}
	}
	return string(data), nil
}

// refererHeaders are the headers qzone expects on write operations.
func (c *Client) refererHeaders() map[string]string {
	return map[string]string{
		"Referer": "https://user.qzone.qq.com/" + c.uin,
		"Origin":  "https://user.qzone.qq.com",
	}
}
