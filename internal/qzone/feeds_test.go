package qzone

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const msglistPayload = `_preloadCallback({
	"code": 0,
	"message": "",
	"logininfo": {"name": "小麦"},
	"msglist": [
		{
			"tid": "feed100",
			"created_time": 1756684800,
			"content": "第一条动态",
			"pic": [{"url1": "http://p.qpic.cn/a.jpg", "pic_id": "", "smallurl": ""}],
			"commentlist": [{"content": "路过", "uin": 999, "name": "小麦", "createTime": 1756684900}]
		},
		{
			"tid": "feed101",
			"created_time": 1756688400,
			"content": "第二条动态",
			"rt_con": {"content": "被转发的内容"},
			"video": [{"url1": "", "pic_url": "http://p.qpic.cn/cover.jpg", "url3": "http://v.qq.com/x.m3u8"}],
			"commentlist": []
		}
	]
});`

func TestListFeedFiltersAlreadyCommented(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("uin"); got != "777" {
			t.Errorf("target uin = %q, want 777", got)
		}
		w.Write([]byte(msglistPayload))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	// The nickname is learned from the same response that gets filtered,
	// so the first call sees it too.
	items, err := c.ListFeed(context.Background(), "777", 5)
	if err != nil {
		t.Fatalf("ListFeed: %v", err)
	}
	if c.Nickname() != "小麦" {
		t.Errorf("nickname = %q, want 小麦", c.Nickname())
	}

	// feed100 carries a comment by the account's own display name and must
	// be dropped; feed101 survives.
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}
	item := items[0]
	if item.ID != "feed101" {
		t.Errorf("item.ID = %q, want feed101", item.ID)
	}
	if item.AuthorID != "777" {
		t.Errorf("item.AuthorID = %q", item.AuthorID)
	}
	if item.CreatedAt == "" {
		t.Error("item.CreatedAt empty, want formatted timestamp")
	}
	if item.ForwardedContent != "被转发的内容" {
		t.Errorf("forwarded = %q", item.ForwardedContent)
	}
	// Video cover doubles as an image, the stream ref is kept apart.
	if len(item.ImageURLs) != 1 || item.ImageURLs[0] != "http://p.qpic.cn/cover.jpg" {
		t.Errorf("images = %v", item.ImageURLs)
	}
	if len(item.VideoRefs) != 1 || item.VideoRefs[0] != "http://v.qq.com/x.m3u8" {
		t.Errorf("videos = %v", item.VideoRefs)
	}
}

func TestListFeedOwnPostsNotFiltered(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(msglistPayload))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	// Reading the account's own feed keeps items it commented on.
	items, err := c.ListFeed(context.Background(), c.UIN(), 5)
	if err != nil {
		t.Fatalf("ListFeed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
}

func TestListFeedRemoteStatus(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{
			name:     "restricted visibility",
			body:     `_preloadCallback({"code": -4001, "message": "没有权限", "msglist": null});`,
			wantCode: -4001,
		},
		{
			name:     "empty feed",
			body:     `_preloadCallback({"code": 0, "message": "", "logininfo": {"name": "小麦"}, "msglist": []});`,
			wantCode: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := newTestClient(srv.URL)
			_, err := c.ListFeed(context.Background(), "777", 5)
			var serr *RemoteStatusError
			if !errors.As(err, &serr) {
				t.Fatalf("err = %v, want *RemoteStatusError", err)
			}
			if serr.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", serr.Code, tt.wantCode)
			}
		})
	}
}

func TestListFeedGarbageBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>login required</html>"))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.ListFeed(context.Background(), "777", 5)
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v, want *ParseError", err)
	}
}

func TestSendHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(msglistPayload))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	block, err := c.SendHistory(context.Background(), 5)
	if err != nil {
		t.Fatalf("SendHistory: %v", err)
	}
	for _, want := range []string{"第一条动态", "被转发的内容", "==================="} {
		if !strings.Contains(block, want) {
			t.Errorf("history block missing %q:\n%s", want, block)
		}
	}
}

func TestStripJSONP(t *testing.T) {
	wrapped := fmt.Sprintf("%s({\"code\":0});", preloadCallback)
	if got := stripJSONP(wrapped, preloadCallback); got != `{"code":0}` {
		t.Errorf("stripJSONP(wrapped) = %q", got)
	}
	bare := `{"code":0}`
	if got := stripJSONP(bare, preloadCallback); got != bare {
		t.Errorf("stripJSONP(bare) = %q", got)
	}
}
