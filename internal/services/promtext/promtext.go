// Package promtext serves a Prometheus gatherer in the text exposition format.
package promtext

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"endpointd/pkg/service"
)

// Service gathers on every GET and encodes the families as text.
type Service struct {
	gatherer prometheus.Gatherer
	format   expfmt.Format
}

// New returns a scrape endpoint for g.
func New(g prometheus.Gatherer) *Service {
	return &Service{gatherer: g, format: expfmt.NewFormat(expfmt.TypeTextPlain)}
}

// Handle implements service.Service.
func (s *Service) Handle(req service.Request) error {
	switch req.Method() {
	case http.MethodGet, http.MethodHead:
	default:
		req.ResponseHeaders().Set("Allow", []string{"GET, HEAD"})
		return service.RespondText(req, http.StatusMethodNotAllowed, "method not allowed")
	}

	families, err := s.gatherer.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}

	var buf bytes.Buffer
	enc := expfmt.NewEncoder(&buf, s.format)
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("encode %s: %w", mf.GetName(), err)
		}
	}
	return service.Respond(req, http.StatusOK, string(s.format), buf.Bytes())
}
