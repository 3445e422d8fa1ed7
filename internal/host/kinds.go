package host

import (
	"fmt"
	"path/filepath"

	"endpointd/internal/auth"
	"endpointd/internal/config"
	errs "endpointd/internal/errors"
	"endpointd/internal/services/basicauth"
	"endpointd/internal/services/blobstore"
	"endpointd/internal/services/echo"
	"endpointd/internal/services/gradient"
	"endpointd/internal/services/promtext"
	"endpointd/internal/services/static"
	"endpointd/internal/services/status"
	"endpointd/internal/storage"
	"endpointd/pkg/service"
)

// Kind names a built-in service type in the manifest.
type Kind string

const (
	// KindGradient is the generated PNG gradient.
	KindGradient Kind = "gradient"
	// KindStatic serves a directory.
	KindStatic Kind = "static"
	// KindBlobstore is the SQLite object store.
	KindBlobstore Kind = "blobstore"
	// KindEcho describes requests back as JSON.
	KindEcho Kind = "echo"
	// KindStatus reports the registry and adapter cache.
	KindStatus Kind = "status"
	// KindMetrics exposes Prometheus metrics.
	KindMetrics Kind = "metrics"
	// KindBasicAuth guards another instance.
	KindBasicAuth Kind = "basicauth"
)

// factory builds the Service for one manifest instance.
type factory func(h *Host, name string, opts config.Options) (service.Service, error)

func factoryFor(kind Kind) (factory, bool) {
	switch kind {
	case KindGradient:
		return newGradient, true
	case KindStatic:
		return newStatic, true
	case KindBlobstore:
		return newBlobstore, true
	case KindEcho:
		return newEcho, true
	case KindStatus:
		return newStatus, true
	case KindMetrics:
		return newMetrics, true
	case KindBasicAuth:
		return newBasicAuth, true
	}
	return nil, false
}

// Kinds lists the supported kinds.
func Kinds() []Kind {
	return []Kind{KindBasicAuth, KindBlobstore, KindEcho, KindGradient, KindMetrics, KindStatic, KindStatus}
}

func newGradient(_ *Host, _ string, opts config.Options) (service.Service, error) {
	width, err := opts.GetInt("width", gradient.DefaultSize)
	if err != nil {
		return nil, err
	}
	height, err := opts.GetInt("height", gradient.DefaultSize)
	if err != nil {
		return nil, err
	}
	if width > gradient.MaxSize || height > gradient.MaxSize {
		return nil, errs.New(errs.InvalidManifest,
			fmt.Sprintf("gradient %dx%d exceeds %dx%d", width, height, gradient.MaxSize, gradient.MaxSize))
	}
	return gradient.New(width, height), nil
}

func newStatic(h *Host, name string, opts config.Options) (service.Service, error) {
	root, err := opts.GetString("root", "")
	if err != nil {
		return nil, err
	}
	if root == "" {
		return nil, fmt.Errorf("instance %q: option root is required", name)
	}
	index, err := opts.GetString("index", static.DefaultIndex)
	if err != nil {
		return nil, err
	}
	gzipMin, err := opts.GetBytes("gzipMin", static.DefaultGzipMin)
	if err != nil {
		return nil, err
	}
	gzipOn, err := opts.GetBool("gzip", true)
	if err != nil {
		return nil, err
	}
	if !gzipOn {
		gzipMin = -1
	}
	maxFile, err := opts.GetBytes("maxFileSize", 0)
	if err != nil {
		return nil, err
	}
	return static.New(h.resolve(root), static.Options{Index: index, GzipMin: gzipMin, MaxFileSize: maxFile})
}

func newBlobstore(h *Host, name string, opts config.Options) (service.Service, error) {
	path, err := opts.GetString("database", filepath.Join(h.dataDir, name+".db"))
	if err != nil {
		return nil, err
	}
	if path != storage.MemoryPath {
		path = h.resolve(path)
	}
	maxSize, err := opts.GetBytes("maxSize", blobstore.DefaultMaxSize)
	if err != nil {
		return nil, err
	}

	db, err := storage.Open(path, h.logger.With("instance", name))
	if err != nil {
		return nil, err
	}
	h.closers = append(h.closers, db)
	return blobstore.New(db, maxSize), nil
}

func newEcho(_ *Host, _ string, opts config.Options) (service.Service, error) {
	maxBody, err := opts.GetBytes("maxBody", echo.DefaultMaxBody)
	if err != nil {
		return nil, err
	}
	return echo.New(maxBody), nil
}

func newStatus(h *Host, _ string, _ config.Options) (service.Service, error) {
	return status.New(h.server), nil
}

func newMetrics(h *Host, name string, _ config.Options) (service.Service, error) {
	if h.metrics == nil {
		return nil, fmt.Errorf("instance %q: metrics are not enabled", name)
	}
	return promtext.New(h.metrics.Gatherer()), nil
}

func newBasicAuth(h *Host, name string, opts config.Options) (service.Service, error) {
	target, err := opts.GetString("target", "")
	if err != nil {
		return nil, err
	}
	if target == "" {
		return nil, fmt.Errorf("instance %q: option target is required", name)
	}
	inner, err := h.build(target)
	if err != nil {
		return nil, err
	}

	realm, err := opts.GetString("realm", basicauth.DefaultRealm)
	if err != nil {
		return nil, err
	}
	users, err := opts.GetStringMap("users")
	if err != nil {
		return nil, err
	}
	perMinute, err := opts.GetInt("failuresPerMinute", 10)
	if err != nil {
		return nil, err
	}
	burst, err := opts.GetInt("failureBurst", 5)
	if err != nil {
		return nil, err
	}

	return basicauth.New(inner.Service(), basicauth.Options{
		Realm:   realm,
		Users:   users,
		Limiter: auth.NewLimiter(perMinute, burst),
		Logger:  h.logger.With("instance", name),
	})
}
