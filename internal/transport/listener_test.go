package transport

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	errs "endpointd/internal/errors"
	"endpointd/internal/slogutil"
	"endpointd/pkg/service"
)

func TestPathMatches(t *testing.T) {
	tests := []struct {
		prefix string
		path   string
		want   bool
	}{
		{"/", "/", true},
		{"/", "/anything", true},
		{"/img", "/img", true},
		{"/img", "/img/a.png", true},
		{"/img", "/imgs", false},
		{"/img/", "/img/a", true},
		{"/img/", "/img", false},
		{"/a/b", "/a", false},
	}

	for _, tt := range tests {
		t.Run(tt.prefix+" "+tt.path, func(t *testing.T) {
			if got := pathMatches(tt.prefix, tt.path); got != tt.want {
				t.Errorf("pathMatches(%q, %q) = %v, want %v", tt.prefix, tt.path, got, tt.want)
			}
		})
	}
}

func echoContextPath() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, service.ContextPathFrom(r.Context()))
	})
}

func TestListener_LongestPrefixWins(t *testing.T) {
	l := &Listener{routes: map[string]http.Handler{}}
	l.Bind("/", echoContextPath())
	l.Bind("/api", echoContextPath())
	l.Bind("/api/v2", echoContextPath())

	tests := []struct {
		path string
		want string
	}{
		{"/", "/"},
		{"/other", "/"},
		{"/api", "/api"},
		{"/api/v1/x", "/api"},
		{"/api/v2/x", "/api/v2"},
		{"/apiary", "/"},
	}

	for _, tt := range tests {
		w := httptest.NewRecorder()
		l.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if w.Body.String() != tt.want {
			t.Errorf("%s routed to %q, want %q", tt.path, w.Body.String(), tt.want)
		}
	}
}

func TestListener_NoContext(t *testing.T) {
	l := &Listener{routes: map[string]http.Handler{}}
	l.Bind("/only", echoContextPath())
	l.Unbind("/only")

	w := httptest.NewRecorder()
	l.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/only", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
	if len(l.Routes()) != 0 {
		t.Errorf("Routes() = %v, want empty", l.Routes())
	}
}

func TestListen_ServeAndClose(t *testing.T) {
	l, err := Listen(0, Options{Host: "127.0.0.1", Logger: slogutil.NewDiscardLogger()})
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	if l.Port() == 0 {
		t.Fatal("Port() = 0 after ephemeral bind")
	}
	l.Bind("/hello", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "hi")
	}))

	client := &http.Client{Timeout: 5 * time.Second, Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get(fmt.Sprintf("http://127.0.0.1:%d/hello", l.Port()))
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if string(body) != "hi" {
		t.Errorf("body = %q, want hi", body)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}

	if err := l.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if _, err := client.Get(fmt.Sprintf("http://127.0.0.1:%d/hello", l.Port())); err == nil {
		t.Error("GET after Close succeeded")
	}
}

func TestListen_BindFailure(t *testing.T) {
	first, err := Listen(0, Options{Host: "127.0.0.1"})
	if err != nil {
		t.Fatal(err)
	}
	defer first.Close()

	_, err = Listen(first.Port(), Options{Host: "127.0.0.1"})
	if errs.CodeOf(err) != errs.BindFailed {
		t.Errorf("second Listen() error = %v, want BIND_FAILED", err)
	}

	if _, err := Listen(70000, Options{}); errs.CodeOf(err) != errs.BindFailed {
		t.Errorf("Listen(70000) error = %v, want BIND_FAILED", err)
	}
}
