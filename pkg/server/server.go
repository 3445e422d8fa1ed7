// Package server is the endpoint registry: a set of context-path → service
// bindings that outlives any single HTTP listener, and the lifecycle that
// starts, stops and restarts that listener.
//
// All administrative operations are serialized under one mutex. Request
// dispatch never takes it; it only runs the cached adapters the listener
// already holds.
package server

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	errs "endpointd/internal/errors"
	"endpointd/internal/slogutil"
	"endpointd/pkg/service"
)

var (
	ErrNotRunning         = errs.New(errs.NotRunning, "server is not running")
	ErrAlreadyRegistered  = errs.New(errs.AlreadyRegistered, "context path already registered")
	ErrNotRegistered      = errs.New(errs.NotRegistered, "context path not registered")
	ErrInvalidContextPath = errs.New(errs.InvalidContextPath, "context path must start with /")
)

// State is the lifecycle state of a Server.
type State int

const (
	Stopped State = iota
	Running
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Running:
		return "running"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MarshalText renders the state name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Options configures a Server. The zero value is usable.
type Options struct {
	Logger *slog.Logger

	// Host, ReadHeaderTimeout and IdleTimeout configure the default
	// transport and are ignored when Transport is set.
	Host              string
	ReadHeaderTimeout time.Duration
	IdleTimeout       time.Duration

	Transport Transport
	Observer  Observer
}

// Server owns the listener, the registry and the wrapper cache.
type Server struct {
	logger    *slog.Logger
	transport Transport
	observer  Observer

	mu       sync.Mutex
	state    State
	port     int
	listener Listener
	registry map[string]*service.Instance
	wrappers *wrapperCache
}

// New creates a stopped Server with an empty registry.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slogutil.NewDiscardLogger()
	}
	if opts.Transport == nil {
		opts.Transport = defaultTransport(opts)
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}

	s := &Server{
		logger:    opts.Logger,
		transport: opts.Transport,
		observer:  opts.Observer,
		registry:  make(map[string]*service.Instance),
	}
	s.wrappers = newWrapperCache(func(inst *service.Instance) *adapter {
		return &adapter{inst: inst, logger: s.logger, observer: s.observer}
	})
	return s
}

// Start binds a listener on port and replays the registry into it. If the
// server is already running it is fully stopped first, which clears the
// registry. On bind failure the server stays stopped.
func (s *Server) Start(port int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Running {
		s.logger.Info("Server already running, stopping before rebind", "port", s.port)
		s.stopLocked(true)
	}
	return s.startLocked(port)
}

// Stop closes the listener without a grace period and clears the registry
// and the wrapper cache. It returns ErrNotRunning if the server is stopped.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Running {
		s.logger.Info("Stop requested but server is not running")
		return ErrNotRunning
	}
	s.stopLocked(true)
	return nil
}

// Restart replaces the listener with a new one on port. The registry and
// the cached adapters survive, so every registered path is served again by
// the same adapter once the new listener is up.
func (s *Server) Restart(port int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Running {
		s.stopLocked(false)
	}
	return s.startLocked(port)
}

func (s *Server) startLocked(port int) error {
	l, err := s.transport.Listen(port)
	if err != nil {
		if errs.CodeOf(err) != errs.BindFailed {
			err = errs.Wrap(errs.BindFailed, fmt.Sprintf("listen on port %d", port), err)
		}
		s.logger.Error("Failed to start server", "port", port, "error", err)
		return err
	}

	s.listener = l
	s.port = l.Port()
	s.state = Running

	for _, path := range s.pathsLocked() {
		inst := s.registry[path]
		a, ok := s.wrappers.lookup(inst)
		if !ok {
			a = s.wrappers.acquire(inst)
		}
		l.Bind(path, a)
	}
	s.observer.BindingsChanged(len(s.registry))

	s.logger.Info("Server started", "port", s.port, "bindings", len(s.registry))
	return nil
}

func (s *Server) stopLocked(wipe bool) {
	if err := s.listener.Close(); err != nil {
		s.logger.Warn("Error closing listener", "port", s.port, "error", err)
	}
	s.logger.Info("Server stopped", "port", s.port, "preserveRegistry", !wipe)

	s.listener = nil
	s.port = 0
	s.state = Stopped
	if wipe {
		s.registry = make(map[string]*service.Instance)
		s.wrappers.clear()
	}
	s.observer.BindingsChanged(0)
}

// Register maps path to inst. An existing mapping is never replaced:
// registering a taken path logs and returns ErrAlreadyRegistered. When the
// server is running the path is bound in the live listener immediately.
func (s *Server) Register(path string, inst *service.Instance) error {
	if err := validatePath(path); err != nil {
		s.logger.Warn("Rejected context path", "path", path, "error", err)
		return err
	}
	if inst == nil {
		return errs.New(errs.UnknownInstance, "nil service instance for "+path)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.registry[path]; ok {
		s.logger.Info("Context path already registered", "path", path, "instance", existing.Name())
		return ErrAlreadyRegistered
	}

	s.registry[path] = inst
	a := s.wrappers.acquire(inst)
	if s.state == Running {
		s.listener.Bind(path, a)
		s.observer.BindingsChanged(len(s.registry))
	}

	s.logger.Info("Service registered", "path", path, "instance", inst.Name(), "refs", s.wrappers.refs(inst))
	return nil
}

// Unregister removes path, detaches it from the live listener and releases
// the instance's cached adapter, evicting it when no path uses it anymore.
func (s *Server) Unregister(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inst, ok := s.registry[path]
	if !ok {
		s.logger.Info("Context path not registered", "path", path)
		return ErrNotRegistered
	}

	delete(s.registry, path)
	if s.state == Running {
		s.listener.Unbind(path)
		s.observer.BindingsChanged(len(s.registry))
	}
	evicted := s.wrappers.release(inst)

	s.logger.Info("Service unregistered", "path", path, "instance", inst.Name(), "evicted", evicted)
	return nil
}

// StartServer is Start reporting success as a bool; failures are logged.
func (s *Server) StartServer(port int) bool {
	return s.Start(port) == nil
}

// StopServer reports whether a running listener was stopped.
func (s *Server) StopServer() bool {
	return s.Stop() == nil
}

// RestartServer is Restart reporting success as a bool.
func (s *Server) RestartServer(port int) bool {
	return s.Restart(port) == nil
}

// RegisterService is Register with the outcome reported only in the log.
func (s *Server) RegisterService(path string, inst *service.Instance) {
	_ = s.Register(path, inst)
}

// UnregisterService is Unregister with the outcome reported only in the log.
func (s *Server) UnregisterService(path string) {
	_ = s.Unregister(path)
}

// State returns the current lifecycle state.
func (s *Server) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Port returns the bound port, or 0 when stopped.
func (s *Server) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

// Lookup returns the instance registered at path.
func (s *Server) Lookup(path string) (*service.Instance, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.registry[path]
	return inst, ok
}

// Binding is one registry entry.
type Binding struct {
	Path     string `json:"path"`
	Instance string `json:"instance"`
}

// Snapshot is a point-in-time copy of the server's administrative state.
type Snapshot struct {
	State    State         `json:"state"`
	Port     int           `json:"port,omitempty"`
	Bindings []Binding     `json:"bindings"`
	Adapters []AdapterInfo `json:"adapters"`
}

// Snapshot copies the registry and wrapper cache.
func (s *Server) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	paths := s.pathsLocked()
	bindings := make([]Binding, 0, len(paths))
	for _, p := range paths {
		bindings = append(bindings, Binding{Path: p, Instance: s.registry[p].Name()})
	}
	return Snapshot{
		State:    s.state,
		Port:     s.port,
		Bindings: bindings,
		Adapters: s.wrappers.snapshot(),
	}
}

func (s *Server) pathsLocked() []string {
	paths := make([]string, 0, len(s.registry))
	for p := range s.registry {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func validatePath(path string) error {
	if !strings.HasPrefix(path, "/") {
		return ErrInvalidContextPath
	}
	return nil
}
