package qzone

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// newTestClient points every endpoint at the test server.
func newTestClient(serverURL string) *Client {
	c := NewClient("123456", map[string]string{"p_skey": "testkey", "skey": "@sk"}, nil)
	c.endpoints = endpoints{
		uploadImage: serverURL + "/upload",
		publish:     serverURL + "/publish",
		like:        serverURL + "/like",
		comment:     serverURL + "/comment",
		reply:       serverURL + "/reply",
		feedList:    serverURL + "/msglist",
		wall:        serverURL + "/wall",
	}
	return c
}

func TestPublishTextOnly(t *testing.T) {
	var gotForm map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/publish" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		r.ParseForm()
		gotForm = map[string]string{
			"con":     r.PostForm.Get("con"),
			"hostuin": r.PostForm.Get("hostuin"),
		}
		w.Write([]byte(`{"tid":"feed789","t1_source":1}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	tid, err := c.Publish(context.Background(), "今天天气不错", nil)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if tid != "feed789" {
		t.Errorf("tid = %q, want feed789", tid)
	}
	if gotForm["con"] != "今天天气不错" {
		t.Errorf("posted content = %q", gotForm["con"])
	}
	if gotForm["hostuin"] != "123456" {
		t.Errorf("hostuin = %q", gotForm["hostuin"])
	}
}

func TestPublishMissingTid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Status 200 but no tid: the post did not land.
		w.Write([]byte(`{"code":-3000,"message":"操作失败"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Publish(context.Background(), "x", nil)
	var perr *PublishError
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v, want *PublishError", err)
	}
}

func TestPublishWithImages(t *testing.T) {
	// The upload CGI wraps the object in a script shell, allows trailing
	// commas, and buries the bo token in the url query string.
	uploadBody := `frameElement.callback({
		"ret": 0,
		"data": {
			"url": "http://photo.qzone.qq.com/preview?x=1&bo=abcdef123",
			"albumid": "a1", "lloc": "l1", "sloc": "s1", "type": 1,
			"height": 600, "width": 800,
		},
	});`

	var publishForm map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/upload":
			w.Write([]byte(uploadBody))
		case "/publish":
			r.ParseForm()
			publishForm = map[string]string{
				"pic_bo":   r.PostForm.Get("pic_bo"),
				"richtype": r.PostForm.Get("richtype"),
				"richval":  r.PostForm.Get("richval"),
			}
			w.Write([]byte(`{"tid":"withpics"}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	tid, err := c.Publish(context.Background(), "图片动态", [][]byte{{0xFF, 0xD8}})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if tid != "withpics" {
		t.Errorf("tid = %q", tid)
	}
	if publishForm["pic_bo"] != "abcdef123" {
		t.Errorf("pic_bo = %q, want abcdef123", publishForm["pic_bo"])
	}
	if publishForm["richtype"] != "1" {
		t.Errorf("richtype = %q", publishForm["richtype"])
	}
	want := ",a1,l1,s1,1,600,800,,600,800"
	if publishForm["richval"] != want {
		t.Errorf("richval = %q, want %q", publishForm["richval"], want)
	}
}

func TestPublishUploadRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/upload" {
			w.Write([]byte(`{"ret": -4001, "msg": "upload denied"}`))
			return
		}
		t.Errorf("publish must not run after a failed upload, got %s", r.URL.Path)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Publish(context.Background(), "x", [][]byte{{1}})
	var aerr *ApplicationError
	if !errors.As(err, &aerr) {
		t.Fatalf("err = %v, want *ApplicationError", err)
	}
	if aerr.Code != -4001 {
		t.Errorf("code = %d, want -4001", aerr.Code)
	}
}

func TestLikeAndComment(t *testing.T) {
	var likeForm, commentForm map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		switch r.URL.Path {
		case "/like":
			likeForm = map[string]string{
				"unikey": r.PostForm.Get("unikey"),
				"curkey": r.PostForm.Get("curkey"),
				"appid":  r.PostForm.Get("appid"),
			}
		case "/comment":
			commentForm = map[string]string{
				"topicId": r.PostForm.Get("topicId"),
				"hostUin": r.PostForm.Get("hostUin"),
				"content": r.PostForm.Get("content"),
			}
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	if err := c.Like(context.Background(), "tid001", "777"); err != nil {
		t.Fatalf("Like: %v", err)
	}
	wantKey := "http://user.qzone.qq.com/777/mood/tid001"
	if likeForm["unikey"] != wantKey || likeForm["curkey"] != wantKey {
		t.Errorf("unikey/curkey = %q/%q, want %q", likeForm["unikey"], likeForm["curkey"], wantKey)
	}
	if likeForm["appid"] != "311" {
		t.Errorf("appid = %q, want 311", likeForm["appid"])
	}

	if err := c.Comment(context.Background(), "tid001", "777", "写得真好"); err != nil {
		t.Fatalf("Comment: %v", err)
	}
	if commentForm["topicId"] != "777_tid001__1" {
		t.Errorf("topicId = %q", commentForm["topicId"])
	}
	if commentForm["hostUin"] != "777" {
		t.Errorf("hostUin = %q", commentForm["hostUin"])
	}
	if commentForm["content"] != "写得真好" {
		t.Errorf("content = %q", commentForm["content"])
	}
}

func TestLikeTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend down", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	err := c.Like(context.Background(), "t", "777")
	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("err = %v, want *TransportError", err)
	}
	if terr.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", terr.StatusCode)
	}
}

func TestReply(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr func(error) bool
	}{
		{
			name:    "success",
			body:    `<html><script>if(frameElement) {frameElement.callback({"code":0,"message":""});}</script></html>`,
			wantErr: func(err error) bool { return err == nil },
		},
		{
			name: "embedded failure code",
			body: `<script>frameElement.callback({"code":-3000,"message":"参数错误"});</script>`,
			wantErr: func(err error) bool {
				var aerr *ApplicationError
				return errors.As(err, &aerr) && aerr.Code == -3000
			},
		},
		{
			name: "no callback at all",
			body: `<html><body>maintenance</body></html>`,
			wantErr: func(err error) bool {
				var perr *ParseError
				return errors.As(err, &perr)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var form map[string]string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				r.ParseForm()
				form = map[string]string{
					"topicId":  r.PostForm.Get("topicId"),
					"content":  r.PostForm.Get("content"),
					"paramstr": r.PostForm.Get("paramstr"),
				}
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := newTestClient(srv.URL)
			err := c.Reply(context.Background(), "tid9", "888", "小明", "cmt5", "谢谢支持")
			if !tt.wantErr(err) {
				t.Fatalf("Reply err = %v", err)
			}
			if form["topicId"] != "123456_tid9__1" {
				t.Errorf("topicId = %q", form["topicId"])
			}
			if form["content"] != "回复@小明：谢谢支持" {
				t.Errorf("content = %q", form["content"])
			}
			if form["paramstr"] != "@小明" {
				t.Errorf("paramstr = %q", form["paramstr"])
			}
		})
	}
}
