// Package transport is the net/http engine underneath the endpoint
// registry. A Listener owns one TCP socket and a table of context paths;
// requests are routed to the longest bound path that prefixes the request
// path on a segment boundary.
package transport

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	errs "endpointd/internal/errors"
	"endpointd/internal/slogutil"
	"endpointd/pkg/service"
)

// Options configures a Listener.
type Options struct {
	// Host is the interface to bind; empty binds all interfaces.
	Host              string
	ReadHeaderTimeout time.Duration
	IdleTimeout       time.Duration
	Logger            *slog.Logger
}

// Listener is a running HTTP listener with a mutable route table.
type Listener struct {
	server *http.Server
	ln     net.Listener
	logger *slog.Logger
	done   chan struct{}

	mu     sync.RWMutex
	routes map[string]http.Handler
}

// Listen binds port and starts serving in a background goroutine.
// Port 0 picks an ephemeral port; see Port.
func Listen(port int, opts Options) (*Listener, error) {
	if port < 0 || port > 65535 {
		return nil, errs.New(errs.BindFailed, fmt.Sprintf("port %d out of range", port))
	}
	if opts.ReadHeaderTimeout == 0 {
		opts.ReadHeaderTimeout = 10 * time.Second
	}
	if opts.IdleTimeout == 0 {
		opts.IdleTimeout = 60 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slogutil.NewDiscardLogger()
	}

	addr := net.JoinHostPort(opts.Host, strconv.Itoa(port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errs.Wrap(errs.BindFailed, "listen on "+addr, err)
	}

	l := &Listener{
		ln:     ln,
		logger: opts.Logger,
		done:   make(chan struct{}),
		routes: make(map[string]http.Handler),
	}
	l.server = &http.Server{
		Handler:           l.applyMiddleware(l),
		ReadHeaderTimeout: opts.ReadHeaderTimeout,
		IdleTimeout:       opts.IdleTimeout,
		ErrorLog:          slog.NewLogLogger(opts.Logger.Handler(), slog.LevelWarn),
	}

	go l.serve()
	return l, nil
}

func (l *Listener) serve() {
	defer close(l.done)
	if err := l.server.Serve(l.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		l.logger.Error("Listener stopped unexpectedly", "addr", l.Addr(), "error", err)
	}
}

// applyMiddleware wraps the handler with middleware in the correct order
func (l *Listener) applyMiddleware(handler http.Handler) http.Handler {
	// Apply middleware in reverse order (last one wraps first)
	handler = RecoveryMiddleware(l.logger)(handler)
	handler = LoggingMiddleware(l.logger)(handler)
	handler = RequestIDMiddleware()(handler)
	return handler
}

// Bind routes path to h, replacing any previous handler for path.
func (l *Listener) Bind(path string, h http.Handler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.routes[path] = h
}

// Unbind removes path. New requests for it stop matching immediately;
// requests already dispatched run to completion.
func (l *Listener) Unbind(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.routes, path)
}

// Routes returns the bound context paths, sorted.
func (l *Listener) Routes() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	paths := make([]string, 0, len(l.routes))
	for p := range l.routes {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Port returns the bound TCP port.
func (l *Listener) Port() int {
	if tcp, ok := l.ln.Addr().(*net.TCPAddr); ok {
		return tcp.Port
	}
	return 0
}

// Addr returns the bound address.
func (l *Listener) Addr() string {
	return l.ln.Addr().String()
}

// Close stops the listener at once and closes every active connection.
// There is no drain period: in-flight exchanges are aborted.
func (l *Listener) Close() error {
	err := l.server.Close()
	<-l.done
	return err
}

// ServeHTTP dispatches to the longest matching context path.
func (l *Listener) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path, h := l.match(r.URL.Path)
	if h == nil {
		http.Error(w, "No context found for request", http.StatusNotFound)
		return
	}
	h.ServeHTTP(w, r.WithContext(service.WithContextPath(r.Context(), path)))
}

func (l *Listener) match(requestPath string) (string, http.Handler) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var (
		best    string
		handler http.Handler
	)
	for prefix, h := range l.routes {
		if handler != nil && len(prefix) <= len(best) {
			continue
		}
		if pathMatches(prefix, requestPath) {
			best, handler = prefix, h
		}
	}
	return best, handler
}

// pathMatches reports whether prefix covers requestPath on a segment
// boundary: "/img" matches "/img" and "/img/a" but not "/imgs".
func pathMatches(prefix, requestPath string) bool {
	if !strings.HasPrefix(requestPath, prefix) {
		return false
	}
	if len(requestPath) == len(prefix) || strings.HasSuffix(prefix, "/") {
		return true
	}
	return requestPath[len(prefix)] == '/'
}
