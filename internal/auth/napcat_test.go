package auth

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func napcatFromServer(t *testing.T, srv *httptest.Server, token string) *NapcatStrategy {
	t.Helper()
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse server url: %v", err)
	}
	host, port, err := net.SplitHostPort(u.Host)
	if err != nil {
		t.Fatalf("split host: %v", err)
	}
	return &NapcatStrategy{Host: host, Port: port, Token: token, HTTPClient: srv.Client()}
}

func TestNapcatAcquire(t *testing.T) {
	var gotAuth, gotDomain string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/get_cookies" {
			t.Errorf("path = %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		var req struct {
			Domain string `json:"domain"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		gotDomain = req.Domain
		w.Write([]byte(`{"status":"ok","retcode":0,"data":{"cookies":"uin=o0123456; skey=@abc; p_skey=xyz"}}`))
	}))
	defer srv.Close()

	n := napcatFromServer(t, srv, "secret")
	bundle, err := n.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if gotDomain != "user.qzone.qq.com" {
		t.Errorf("domain = %q", gotDomain)
	}
	if bundle["p_skey"] != "xyz" || bundle["skey"] != "@abc" {
		t.Errorf("bundle = %v", bundle)
	}
}

func TestNapcatAcquireRetriesThenSucceeds(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, "starting up", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"status":"ok","data":{"cookies":"p_skey=later"}}`))
	}))
	defer srv.Close()

	n := napcatFromServer(t, srv, "")
	bundle, err := n.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	if bundle["p_skey"] != "later" {
		t.Errorf("bundle = %v", bundle)
	}
}

func TestNapcatAcquireBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"failed","data":{}}`))
	}))
	defer srv.Close()

	n := napcatFromServer(t, srv, "")
	if _, err := n.Acquire(context.Background()); err == nil {
		t.Fatal("want error for failed status")
	}
}
