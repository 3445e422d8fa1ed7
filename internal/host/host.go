// Package host turns a manifest into live service instances and registers
// them with a server.
package host

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"sort"
	"sync"

	"endpointd/internal/config"
	errs "endpointd/internal/errors"
	"endpointd/internal/metrics"
	"endpointd/internal/paths"
	"endpointd/internal/slogutil"
	"endpointd/pkg/server"
	"endpointd/pkg/service"
)

// Options configure a Host.
type Options struct {
	Server  *server.Server
	Metrics *metrics.Metrics
	Logger  *slog.Logger
	// BaseDir anchors relative paths in instance options.
	BaseDir string
	// DataDir holds per-instance databases when none is configured.
	DataDir string
}

// Host owns the instances built from a manifest.
type Host struct {
	server  *server.Server
	metrics *metrics.Metrics
	logger  *slog.Logger
	baseDir string
	dataDir string

	mu        sync.Mutex
	manifest  *config.Manifest
	instances map[string]*service.Instance
	building  map[string]bool
	closers   []io.Closer
}

// New creates an empty host around opts.Server.
func New(opts Options) *Host {
	logger := opts.Logger
	if logger == nil {
		logger = slogutil.NewDiscardLogger()
	}
	dataDir := opts.DataDir
	if dataDir == "" {
		dataDir = opts.BaseDir
	}
	return &Host{
		server:    opts.Server,
		metrics:   opts.Metrics,
		logger:    logger,
		baseDir:   opts.BaseDir,
		dataDir:   dataDir,
		instances: make(map[string]*service.Instance),
	}
}

// Server returns the server instances are registered with.
func (h *Host) Server() *server.Server {
	return h.server
}

// Load builds every instance in m, then registers every binding. On error
// no path of m stays registered and resources opened by this call are
// closed; an earlier manifest's state is left as it was.
func (h *Host) Load(m *config.Manifest) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := m.Validate(); err != nil {
		return err
	}

	prev, prevInstances, mark := h.manifest, maps.Clone(h.instances), len(h.closers)
	rollback := func(bound []string) {
		for i := len(bound) - 1; i >= 0; i-- {
			_ = h.server.Unregister(bound[i])
		}
		h.closeFrom(mark)
		h.manifest, h.instances = prev, prevInstances
	}

	h.manifest = m
	h.building = make(map[string]bool)
	defer func() { h.building = nil }()

	for _, name := range m.InstanceNames() {
		if _, err := h.build(name); err != nil {
			rollback(nil)
			return err
		}
	}

	bound := make([]string, 0, len(m.Bindings))
	for _, b := range m.Bindings {
		if err := h.server.Register(b.Path, h.instances[b.Instance]); err != nil {
			rollback(bound)
			return fmt.Errorf("bind %s: %w", b.Path, err)
		}
		bound = append(bound, b.Path)
	}

	h.logger.Info("Manifest loaded",
		"instances", len(h.instances),
		"bindings", len(m.Bindings),
	)
	return nil
}

// build returns the named instance, constructing it and its dependencies on
// first use.
func (h *Host) build(name string) (*service.Instance, error) {
	if inst, ok := h.instances[name]; ok {
		return inst, nil
	}
	spec, ok := h.manifest.Instances[name]
	if !ok {
		return nil, errs.New(errs.UnknownInstance, fmt.Sprintf("unknown instance %q", name))
	}
	if h.building[name] {
		return nil, errs.New(errs.InvalidManifest, fmt.Sprintf("instance %q depends on itself", name))
	}
	h.building[name] = true

	newService, ok := factoryFor(Kind(spec.Kind))
	if !ok {
		return nil, errs.New(errs.UnknownServiceKind, fmt.Sprintf("instance %q: unknown kind %q", name, spec.Kind)).
			WithDetails(map[string]interface{}{"kinds": Kinds()})
	}
	svc, err := newService(h, name, spec.Options)
	if err != nil {
		if errs.CodeOf(err) == errs.InternalError {
			return nil, errs.Wrap(errs.InvalidManifest, fmt.Sprintf("instance %q", name), err)
		}
		return nil, err
	}

	inst := service.NewInstance(name, svc)
	h.instances[name] = inst
	h.logger.Debug("Instance built", "instance", name, "kind", spec.Kind)
	return inst, nil
}

// Instance returns the named instance.
func (h *Host) Instance(name string) (*service.Instance, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	inst, ok := h.instances[name]
	return inst, ok
}

// InstanceInfo describes one built instance.
type InstanceInfo struct {
	Name  string   `json:"name"`
	Kind  string   `json:"kind"`
	Paths []string `json:"paths"`
}

// Instances describes every instance with the paths it is currently
// registered under, sorted by name.
func (h *Host) Instances() []InstanceInfo {
	h.mu.Lock()
	defer h.mu.Unlock()

	paths := make(map[*service.Instance][]string)
	for _, b := range h.server.Snapshot().Bindings {
		if inst, ok := h.server.Lookup(b.Path); ok {
			paths[inst] = append(paths[inst], b.Path)
		}
	}

	out := make([]InstanceInfo, 0, len(h.instances))
	for name, inst := range h.instances {
		info := InstanceInfo{Name: name, Paths: paths[inst]}
		if h.manifest != nil {
			info.Kind = h.manifest.Instances[name].Kind
		}
		if info.Paths == nil {
			info.Paths = []string{}
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Close stops the server if it is running and releases instance resources.
func (h *Host) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var stopErr error
	if err := h.server.Stop(); err != nil && !errors.Is(err, server.ErrNotRunning) {
		stopErr = err
	}
	return errors.Join(stopErr, h.closeLocked())
}

func (h *Host) closeLocked() error {
	return h.closeFrom(0)
}

// closeFrom closes the closers opened at or after index mark, newest first.
func (h *Host) closeFrom(mark int) error {
	var closeErrs []error
	for i := len(h.closers) - 1; i >= mark; i-- {
		if err := h.closers[i].Close(); err != nil {
			closeErrs = append(closeErrs, err)
		}
	}
	h.closers = h.closers[:mark]
	return errors.Join(closeErrs...)
}

func (h *Host) resolve(p string) string {
	return paths.ResolveRelative(h.baseDir, p)
}
