package service

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	errs "endpointd/internal/errors"
)

func newTestExchange(t *testing.T, method, target, body string) (*Exchange, *httptest.ResponseRecorder) {
	t.Helper()
	r := httptest.NewRequest(method, target, strings.NewReader(body))
	r = r.WithContext(WithContextPath(r.Context(), "/ctx"))
	w := httptest.NewRecorder()
	return NewExchange(w, r), w
}

func TestExchange_Accessors(t *testing.T) {
	ex, _ := newTestExchange(t, http.MethodPost, "/ctx/a/b?q=1", "payload")
	ex.r.Header.Set("X-Test", "yes")

	if ex.Method() != http.MethodPost {
		t.Errorf("Method() = %q", ex.Method())
	}
	if ex.URI().Path != "/ctx/a/b" || ex.URI().RawQuery != "q=1" {
		t.Errorf("URI() = %v", ex.URI())
	}
	if ex.ContextPath() != "/ctx" {
		t.Errorf("ContextPath() = %q, want /ctx", ex.ContextPath())
	}
	if got := FirstValue(ex.RequestHeaders(), "x-test"); got != "yes" {
		t.Errorf("request header = %q, want yes", got)
	}
	body, err := io.ReadAll(ex.RequestBody())
	if err != nil || string(body) != "payload" {
		t.Errorf("RequestBody() = %q, %v", body, err)
	}
	if got := RelativePath(ex); got != "/a/b" {
		t.Errorf("RelativePath() = %q, want /a/b", got)
	}
}

func TestExchange_SendResponseOnce(t *testing.T) {
	ex, w := newTestExchange(t, http.MethodGet, "/ctx", "")
	ex.ResponseHeaders().Add("Content-Type", "text/plain")

	if err := ex.SendResponse(http.StatusOK, 5); err != nil {
		t.Fatalf("first SendResponse: %v", err)
	}
	if _, err := ex.ResponseBody().Write([]byte("hello")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	err := ex.SendResponse(http.StatusTeapot, 0)
	if !errors.Is(err, ErrResponseAlreadySent) {
		t.Fatalf("second SendResponse error = %v, want ErrResponseAlreadySent", err)
	}

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want first call's 200", w.Code)
	}
	if w.Header().Get("Content-Length") != "5" {
		t.Errorf("Content-Length = %q, want 5", w.Header().Get("Content-Length"))
	}
	if w.Body.String() != "hello" {
		t.Errorf("body = %q, want hello", w.Body.String())
	}
	if ex.Status() != http.StatusOK || !ex.Complete() {
		t.Errorf("Status() = %d, Complete() = %v", ex.Status(), ex.Complete())
	}
	if !w.Flushed {
		t.Error("SendResponse should commit the status line")
	}
}

func TestExchange_InformationalStatusErrorCode(t *testing.T) {
	ex, _ := newTestExchange(t, http.MethodGet, "/ctx", "")
	err := ex.SendResponse(http.StatusEarlyHints, 0)

	var e *errs.EndpointError
	if !errors.As(err, &e) || e.Code != errs.InvalidStatus {
		t.Fatalf("SendResponse(103) error = %v, want %s", err, errs.InvalidStatus)
	}
}

func TestExchange_WriteBeforeSend(t *testing.T) {
	ex, _ := newTestExchange(t, http.MethodGet, "/ctx", "")
	if _, err := ex.ResponseBody().Write([]byte("x")); !errors.Is(err, ErrResponseNotSent) {
		t.Errorf("Write before send error = %v, want ErrResponseNotSent", err)
	}
}

func TestExchange_WritePastDeclaredLength(t *testing.T) {
	ex, w := newTestExchange(t, http.MethodGet, "/ctx", "")
	if err := ex.SendResponse(http.StatusOK, 3); err != nil {
		t.Fatal(err)
	}
	if _, err := ex.ResponseBody().Write([]byte("abcd")); !errors.Is(err, ErrBodyTooLong) {
		t.Errorf("overflow error = %v, want ErrBodyTooLong", err)
	}
	if _, err := ex.ResponseBody().Write([]byte("abc")); err != nil {
		t.Errorf("write within limit: %v", err)
	}
	if w.Body.String() != "abc" || ex.BytesWritten() != 3 {
		t.Errorf("body = %q, written = %d", w.Body.String(), ex.BytesWritten())
	}
}

func TestExchange_InvalidArgumentsKeepState(t *testing.T) {
	tests := []struct {
		name   string
		status int
		length int64
	}{
		{"status too low", 42, 0},
		{"status too high", 1000, 0},
		{"informational status", http.StatusContinue, 0},
		{"switching protocols", http.StatusSwitchingProtocols, 0},
		{"negative length", http.StatusOK, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex, _ := newTestExchange(t, http.MethodGet, "/ctx", "")
			if err := ex.SendResponse(tt.status, tt.length); err == nil {
				t.Fatal("expected an error")
			}
			if ex.ResponseSent() {
				t.Fatal("invalid arguments must not mark the response as sent")
			}
			if err := ex.SendResponse(http.StatusOK, 0); err != nil {
				t.Errorf("valid SendResponse after rejected one: %v", err)
			}
		})
	}
}

func TestExchange_NoContentOmitsLength(t *testing.T) {
	ex, w := newTestExchange(t, http.MethodDelete, "/ctx", "")
	if err := ex.SendResponse(http.StatusNoContent, 0); err != nil {
		t.Fatal(err)
	}
	if w.Header().Get("Content-Length") != "" {
		t.Errorf("Content-Length should be omitted for 204, got %q", w.Header().Get("Content-Length"))
	}
}

func TestRespond(t *testing.T) {
	ex, w := newTestExchange(t, http.MethodGet, "/ctx", "")
	if err := RespondText(ex, http.StatusNotFound, "missing"); err != nil {
		t.Fatal(err)
	}
	if w.Code != http.StatusNotFound || w.Body.String() != "missing" {
		t.Errorf("got %d %q", w.Code, w.Body.String())
	}
	if !strings.HasPrefix(w.Header().Get("Content-Type"), "text/plain") {
		t.Errorf("Content-Type = %q", w.Header().Get("Content-Type"))
	}
}

func TestRespond_HeadSkipsBody(t *testing.T) {
	ex, w := newTestExchange(t, http.MethodHead, "/ctx", "")
	if err := Respond(ex, http.StatusOK, "application/json", []byte(`{"a":1}`)); err != nil {
		t.Fatal(err)
	}
	if w.Body.Len() != 0 {
		t.Errorf("HEAD body = %q, want empty", w.Body.String())
	}
	if w.Header().Get("Content-Length") != "7" {
		t.Errorf("Content-Length = %q, want 7", w.Header().Get("Content-Length"))
	}
}

func TestRespondJSON(t *testing.T) {
	ex, w := newTestExchange(t, http.MethodGet, "/ctx", "")
	if err := RespondJSON(ex, http.StatusOK, map[string]int{"n": 1}); err != nil {
		t.Fatal(err)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if w.Body.String() != "{\n  \"n\": 1\n}\n" {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestInstanceIdentity(t *testing.T) {
	svc := Func(func(req Request) error { return RespondText(req, http.StatusOK, "ok") })
	a := NewInstance("same", svc)
	b := NewInstance("same", svc)

	if a == b {
		t.Error("distinct NewInstance calls must produce distinct identities")
	}
	if a.Name() != "same" || a.Service() == nil {
		t.Errorf("Name() = %q, Service() = %v", a.Name(), a.Service())
	}
}
