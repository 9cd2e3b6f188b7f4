package qzone

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// wallFragment renders a minimal server-side wall entry. liked toggles the
// like button's data-islike attribute.
func wallFragment(content, liked string) string {
	return `<div>
		<div class="f-info">` + content + `</div>
		<div class="img-box"><img src="http://b11.photo.store.qq.com/pic1.jpg"/></div>
		<div class="img-box"><img src="http://qzonestyle.gtimg.cn/em/e100.gif"/></div>
		<a class="qz_like_btn_v3" data-islike="` + liked + `" href="#">赞</a>
		<div class="comments">
			<ul>
				<li class="comments-item bor3" data-tid="c1" data-uin="555" data-nick="阿强">
					<div class="comments-content">不错不错<div class="comments-op"><a>回复</a></div></div>
					<div class="mod-comments-sub">
						<ul>
							<li class="comments-item bor3" data-tid="c2" data-uin="123456" data-nick="小麦">
								<div class="comments-content">谢谢！</div>
							</li>
						</ul>
					</div>
				</li>
			</ul>
		</div>
	</div>`
}

func wallEnvelope(entries string) string {
	return `_Callback({"code":0,"data":{"data":[` + entries + `,undefined]}});`
}

func TestListWall(t *testing.T) {
	entries := `
		{"appid":311,"uin":777,"key":"friend1","html":` + jsonString(wallFragment("朋友的动态", "0")) + `},
		{"appid":311,"uin":"888","key":"friend2","html":` + jsonString(wallFragment("已读的动态", "1")) + `},
		{"appid":311,"uin":"123456","key":"own1","html":` + jsonString(wallFragment("我自己的动态", "1")) + `},
		{"appid":202,"uin":"999","key":"ad1","html":` + jsonString("<div>广告</div>") + `}`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(wallEnvelope(entries)))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	items, err := c.ListWall(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListWall: %v", err)
	}

	// friend1 is unread and kept; friend2 is liked (= read) and skipped;
	// own1 is liked but the account's own posts are always rescanned;
	// ad1 is not appid 311.
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2: %+v", len(items), items)
	}

	friend := items[0]
	if friend.ID != "friend1" || friend.AuthorID != "777" {
		t.Errorf("first item = %s by %s", friend.ID, friend.AuthorID)
	}
	if friend.Content != "朋友的动态" {
		t.Errorf("content = %q", friend.Content)
	}
	// The emoticon sprite from qzonestyle is not post media.
	if len(friend.ImageURLs) != 1 || friend.ImageURLs[0] != "http://b11.photo.store.qq.com/pic1.jpg" {
		t.Errorf("images = %v", friend.ImageURLs)
	}

	own := items[1]
	if own.ID != "own1" || own.AuthorID != "123456" {
		t.Errorf("second item = %s by %s", own.ID, own.AuthorID)
	}
	if len(own.Comments) != 2 {
		t.Fatalf("own comments = %d, want 2", len(own.Comments))
	}
	top := own.Comments[0]
	if top.ID != "c1" || top.AuthorID != "555" || top.AuthorName != "阿强" || top.ParentID != "" {
		t.Errorf("top comment = %+v", top)
	}
	if top.Content != "不错不错" {
		t.Errorf("top comment content = %q (op buttons must be stripped)", top.Content)
	}
	sub := own.Comments[1]
	if sub.ID != "c2" || sub.ParentID != "c1" || sub.AuthorID != "123456" {
		t.Errorf("sub comment = %+v", sub)
	}

	// TopLevel filters the threaded replies out.
	tops := own.TopLevel()
	if len(tops) != 1 || tops[0].ID != "c1" {
		t.Errorf("TopLevel = %+v", tops)
	}
}

func TestParseWallEnvelopeMalformed(t *testing.T) {
	if _, err := parseWallEnvelope("<html>not json</html>"); err == nil {
		t.Fatal("want error for non-JSON body")
	}
}

// jsonString JSON-encodes a fragment for embedding in the envelope.
func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
