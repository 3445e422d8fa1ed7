// Package blobstore is a key/value object service over the SQLite store.
// The key is the request path below the context path; a path ending in "/"
// lists the keys under it.
package blobstore

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"endpointd/internal/storage"
	"endpointd/pkg/service"
)

// DefaultMaxSize bounds PUT bodies when no limit is configured.
const DefaultMaxSize = 4 << 20

// Service serves GET, HEAD, PUT and DELETE on blobs.
type Service struct {
	db      *storage.DB
	maxSize int64
}

// New returns a blob service over db. maxSize <= 0 selects DefaultMaxSize.
func New(db *storage.DB, maxSize int64) *Service {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Service{db: db, maxSize: maxSize}
}

// Handle implements service.Service.
func (s *Service) Handle(req service.Request) error {
	key := strings.TrimPrefix(service.RelativePath(req), "/")

	switch req.Method() {
	case http.MethodGet, http.MethodHead:
		if key == "" || strings.HasSuffix(key, "/") {
			return s.list(req, key)
		}
		return s.get(req, key)
	case http.MethodPut:
		return s.put(req, key)
	case http.MethodDelete:
		return s.delete(req, key)
	default:
		req.ResponseHeaders().Set("Allow", []string{"GET, HEAD, PUT, DELETE"})
		return service.RespondText(req, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Service) list(req service.Request, prefix string) error {
	infos, err := s.db.ListBlobs(req.Context(), prefix)
	if err != nil {
		return err
	}
	return service.RespondJSON(req, http.StatusOK, map[string]interface{}{
		"prefix": prefix,
		"blobs":  infos,
	})
}

func (s *Service) get(req service.Request, key string) error {
	blob, err := s.db.GetBlob(req.Context(), key)
	if errors.Is(err, storage.ErrNotFound) {
		return service.RespondText(req, http.StatusNotFound, "no such blob")
	}
	if err != nil {
		return err
	}
	req.ResponseHeaders().Set("Last-Modified", []string{blob.UpdatedAt.UTC().Format(http.TimeFormat)})
	return service.Respond(req, http.StatusOK, blob.ContentType, blob.Data)
}

func (s *Service) put(req service.Request, key string) error {
	if key == "" || strings.HasSuffix(key, "/") {
		return service.RespondText(req, http.StatusBadRequest, "blob key must not be empty or end in /")
	}

	data, err := io.ReadAll(io.LimitReader(req.RequestBody(), s.maxSize+1))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > s.maxSize {
		return service.RespondText(req, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("blob exceeds %s", humanize.IBytes(uint64(s.maxSize))))
	}

	contentType := service.FirstValue(req.RequestHeaders(), "Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	created, err := s.db.PutBlob(req.Context(), key, contentType, data)
	if err != nil {
		return err
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return service.RespondJSON(req, status, storage.BlobInfo{
		Key:         key,
		ContentType: contentType,
		Size:        int64(len(data)),
		UpdatedAt:   time.Now().UTC(),
	})
}

func (s *Service) delete(req service.Request, key string) error {
	existed, err := s.db.DeleteBlob(req.Context(), key)
	if err != nil {
		return err
	}
	if !existed {
		return service.RespondText(req, http.StatusNotFound, "no such blob")
	}
	return req.SendResponse(http.StatusNoContent, 0)
}
