package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	errs "endpointd/internal/errors"
)

var (
	// ErrResponseAlreadySent is returned by a second SendResponse on one exchange.
	// It marks a defect in the calling service and must not be retried.
	ErrResponseAlreadySent = errs.New(errs.ResponseAlreadySent, "response already sent")
	// ErrResponseNotSent is returned when the body is written before SendResponse.
	ErrResponseNotSent = errs.New(errs.ResponseNotSent, "response headers not sent")
	// ErrBodyTooLong is returned when more bytes are written than were declared.
	ErrBodyTooLong = errs.New(errs.BodyTooLong, "response body exceeds declared length")
)

// Request is the per-exchange surface handed to a Service.
type Request interface {
	URI() *url.URL
	Method() string
	// ContextPath is the registered path that matched this request.
	ContextPath() string
	RequestHeaders() Headers
	ResponseHeaders() Headers
	RequestBody() io.Reader
	ResponseBody() io.Writer
	// SendResponse writes the status line and headers with a fixed
	// Content-Length of bodyLength. It may be called once per exchange.
	// Informational (1xx) statuses are rejected.
	SendResponse(status int, bodyLength int64) error
	Context() context.Context
}

// Exchange is the Request implementation over one net/http exchange.
type Exchange struct {
	w           http.ResponseWriter
	r           *http.Request
	contextPath string
	reqHeaders  *HeaderMap
	respHeaders *HeaderMap
	body        responseBody

	mu      sync.Mutex
	sent    bool
	status  int
	length  int64
	written int64
}

// NewExchange wraps w and r. The context path is taken from r's context
// (see WithContextPath).
func NewExchange(w http.ResponseWriter, r *http.Request) *Exchange {
	ex := &Exchange{
		w:           w,
		r:           r,
		contextPath: ContextPathFrom(r.Context()),
		reqHeaders:  WrapHeader(r.Header),
		respHeaders: WrapHeader(w.Header()),
	}
	ex.body = responseBody{ex: ex}
	return ex
}

func (e *Exchange) URI() *url.URL { return e.r.URL }
func (e *Exchange) Method() string { return e.r.Method }
func (e *Exchange) ContextPath() string { return e.contextPath }
func (e *Exchange) RequestHeaders() Headers { return e.reqHeaders }
func (e *Exchange) ResponseHeaders() Headers { return e.respHeaders }
func (e *Exchange) Context() context.Context { return e.r.Context() }
func (e *Exchange) ResponseBody() io.Writer { return &e.body }
func (e *Exchange) RequestBody() io.Reader {
	if e.r.Body == nil {
		return http.NoBody
	}
	return e.r.Body
}

func (e *Exchange) SendResponse(status int, bodyLength int64) error {
	if status < 200 || status > 999 {
		return errs.New(errs.InvalidStatus, fmt.Sprintf("status %d out of range", status))
	}
	if bodyLength < 0 {
		return errs.New(errs.InvalidBodyLength, fmt.Sprintf("body length %d is negative", bodyLength))
	}

	e.mu.Lock()
	if e.sent {
		e.mu.Unlock()
		return ErrResponseAlreadySent
	}
	e.sent = true
	e.status = status
	e.length = bodyLength
	e.mu.Unlock()

	if bodyAllowed(status) {
		e.w.Header().Set("Content-Length", strconv.FormatInt(bodyLength, 10))
	}
	e.w.WriteHeader(status)
	// Commit the status line so a later abort cannot discard it.
	if err := http.NewResponseController(e.w).Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	return nil
}

// ResponseSent reports whether SendResponse has succeeded.
func (e *Exchange) ResponseSent() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sent
}

// Status returns the sent status, or 0 before SendResponse.
func (e *Exchange) Status() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// BytesWritten returns the number of body bytes accepted so far.
func (e *Exchange) BytesWritten() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.written
}

// Complete reports whether the declared body has been fully written.
func (e *Exchange) Complete() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sent && e.written >= e.length
}

type responseBody struct {
	ex *Exchange
}

func (b *responseBody) Write(p []byte) (int, error) {
	e := b.ex
	e.mu.Lock()
	if !e.sent {
		e.mu.Unlock()
		return 0, ErrResponseNotSent
	}
	if e.written+int64(len(p)) > e.length {
		e.mu.Unlock()
		return 0, ErrBodyTooLong
	}
	e.mu.Unlock()

	n, err := e.w.Write(p)

	e.mu.Lock()
	e.written += int64(n)
	e.mu.Unlock()
	return n, err
}

func bodyAllowed(status int) bool {
	switch {
	case status == http.StatusNoContent, status == http.StatusNotModified:
		return false
	}
	return true
}

type contextKey string

const contextPathKey contextKey = "contextPath"

// WithContextPath records the matched context path on ctx.
func WithContextPath(ctx context.Context, path string) context.Context {
	return context.WithValue(ctx, contextPathKey, path)
}

// ContextPathFrom returns the context path recorded by WithContextPath.
func ContextPathFrom(ctx context.Context) string {
	if p, ok := ctx.Value(contextPathKey).(string); ok {
		return p
	}
	return ""
}

// RelativePath returns the request path below the matched context path,
// always starting with "/".
func RelativePath(req Request) string {
	rel := strings.TrimPrefix(req.URI().Path, strings.TrimRight(req.ContextPath(), "/"))
	if !strings.HasPrefix(rel, "/") {
		rel = "/" + rel
	}
	return rel
}
