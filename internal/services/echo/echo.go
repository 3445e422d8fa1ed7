// Package echo describes each request back to the caller as JSON.
package echo

import (
	"fmt"
	"io"
	"net/http"

	"endpointd/pkg/service"
)

// DefaultMaxBody is the most request body bytes read, and counted, per request.
const DefaultMaxBody = 1 << 20

// Reply is the response document.
type Reply struct {
	Method       string              `json:"method"`
	URI          string              `json:"uri"`
	ContextPath  string              `json:"contextPath"`
	RelativePath string              `json:"relativePath"`
	Headers      map[string][]string `json:"headers"`
	BodySize     int64               `json:"bodySize"`
	Truncated    bool                `json:"truncated,omitempty"`
}

// Service answers every method with a Reply.
type Service struct {
	maxBody int64
}

// New returns an echo service that reads at most maxBody request bytes.
func New(maxBody int64) *Service {
	if maxBody <= 0 {
		maxBody = DefaultMaxBody
	}
	return &Service{maxBody: maxBody}
}

// Handle implements service.Service.
func (s *Service) Handle(req service.Request) error {
	n, err := io.Copy(io.Discard, io.LimitReader(req.RequestBody(), s.maxBody+1))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	reply := Reply{
		Method:       req.Method(),
		URI:          req.URI().RequestURI(),
		ContextPath:  req.ContextPath(),
		RelativePath: service.RelativePath(req),
		Headers:      make(map[string][]string),
		BodySize:     n,
	}
	if n > s.maxBody {
		reply.BodySize = s.maxBody
		reply.Truncated = true
	}
	headers := req.RequestHeaders()
	for _, name := range headers.Names() {
		reply.Headers[name] = headers.Get(name)
	}
	return service.RespondJSON(req, http.StatusOK, reply)
}
