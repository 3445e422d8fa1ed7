// Package status reports the server's registry and adapter cache as JSON.
package status

import (
	"net/http"
	"time"

	"endpointd/internal/version"
	"endpointd/pkg/server"
	"endpointd/pkg/service"
)

// Source provides snapshots. *server.Server satisfies it.
type Source interface {
	Snapshot() server.Snapshot
}

// Report is the response document.
type Report struct {
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
	server.Snapshot
}

// Service serves a Report on GET and HEAD.
type Service struct {
	src     Source
	started time.Time
	now     func() time.Time
}

// New returns a status service over src.
func New(src Source) *Service {
	return &Service{src: src, started: time.Now(), now: time.Now}
}

// Handle implements service.Service.
func (s *Service) Handle(req service.Request) error {
	switch req.Method() {
	case http.MethodGet, http.MethodHead:
	default:
		req.ResponseHeaders().Set("Allow", []string{"GET, HEAD"})
		return service.RespondText(req, http.StatusMethodNotAllowed, "method not allowed")
	}

	req.ResponseHeaders().Set("Cache-Control", []string{"no-store"})
	return service.RespondJSON(req, http.StatusOK, Report{
		Version:  version.Version,
		Uptime:   s.now().Sub(s.started).Truncate(time.Second).String(),
		Snapshot: s.src.Snapshot(),
	})
}
