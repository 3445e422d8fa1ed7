// Package static serves files from a directory tree.
package static

import (
	"bytes"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"

	"endpointd/pkg/service"
)

// Defaults for Options.
const (
	DefaultIndex   = "index.html"
	DefaultGzipMin = 1024
)

// Options configure a Service.
type Options struct {
	// Index is served for directory requests.
	Index string
	// GzipMin is the smallest file compressed for clients that accept gzip.
	// Negative disables compression.
	GzipMin int64
	// MaxFileSize caps the files served; 0 means no cap.
	MaxFileSize int64
}

// Service serves files below root. Request paths are taken relative to the
// matched context path and never resolve outside root.
type Service struct {
	root string
	opts Options
}

// New returns a static file service rooted at dir, which must exist.
func New(dir string, opts Options) (*Service, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	root, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root %s is not a directory", dir)
	}
	if opts.Index == "" {
		opts.Index = DefaultIndex
	}
	if opts.GzipMin == 0 {
		opts.GzipMin = DefaultGzipMin
	}
	return &Service{root: root, opts: opts}, nil
}

// Root returns the resolved root directory.
func (s *Service) Root() string {
	return s.root
}

// Handle implements service.Service.
func (s *Service) Handle(req service.Request) error {
	switch req.Method() {
	case http.MethodGet, http.MethodHead:
	default:
		req.ResponseHeaders().Set("Allow", []string{"GET, HEAD"})
		return service.RespondText(req, http.StatusMethodNotAllowed, "method not allowed")
	}

	rel := service.RelativePath(req)
	if strings.ContainsRune(rel, 0) {
		return service.RespondText(req, http.StatusBadRequest, "bad path")
	}

	name, ok := s.resolve(rel)
	if !ok {
		return service.RespondText(req, http.StatusNotFound, "not found")
	}

	data, err := os.ReadFile(name)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}

	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	req.ResponseHeaders().Add("Vary", "Accept-Encoding")
	if s.shouldCompress(req, int64(len(data))) {
		compressed, err := gzipBytes(data)
		if err != nil {
			return err
		}
		req.ResponseHeaders().Set("Content-Encoding", []string{"gzip"})
		data = compressed
	}
	return service.Respond(req, http.StatusOK, contentType, data)
}

// resolve maps a request path to a regular file under root, following the
// index file for directories.
func (s *Service) resolve(rel string) (string, bool) {
	clean := path.Clean("/" + rel)
	name := filepath.Join(s.root, filepath.FromSlash(clean))

	info, err := os.Stat(name)
	if err != nil {
		return "", false
	}
	if info.IsDir() {
		name = filepath.Join(name, s.opts.Index)
		if info, err = os.Stat(name); err != nil || info.IsDir() {
			return "", false
		}
	}
	if !info.Mode().IsRegular() {
		return "", false
	}
	if s.opts.MaxFileSize > 0 && info.Size() > s.opts.MaxFileSize {
		return "", false
	}

	// A symlink may still point outside the tree.
	target, err := filepath.EvalSymlinks(name)
	if err != nil || !within(s.root, target) {
		return "", false
	}
	return target, true
}

func (s *Service) shouldCompress(req service.Request, size int64) bool {
	if s.opts.GzipMin < 0 || size < s.opts.GzipMin {
		return false
	}
	for _, value := range req.RequestHeaders().Get("Accept-Encoding") {
		for _, part := range strings.Split(value, ",") {
			coding, params, _ := strings.Cut(strings.TrimSpace(part), ";")
			if strings.EqualFold(strings.TrimSpace(coding), "gzip") {
				return quality(params) > 0
			}
		}
	}
	return false
}

// quality returns the q parameter of an Accept-Encoding entry, 1 when absent.
func quality(params string) float64 {
	for _, p := range strings.Split(params, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(p), "=")
		if ok && strings.EqualFold(k, "q") {
			q, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return 0
			}
			return q
		}
	}
	return 1
}

func gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, gzip.DefaultCompression)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(data); err != nil {
		return nil, fmt.Errorf("gzip: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("gzip: %w", err)
	}
	return buf.Bytes(), nil
}

func within(root, name string) bool {
	rel, err := filepath.Rel(root, name)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
