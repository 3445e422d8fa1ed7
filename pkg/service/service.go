package service

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Service handles one exchange. Before returning it must either call
// SendResponse and write the declared number of body bytes, or return an
// error. Services are invoked concurrently and must not assume exclusive
// access to anything they do not own.
type Service interface {
	Handle(req Request) error
}

// Func adapts a function to the Service interface.
type Func func(req Request) error

// Handle calls f(req).
func (f Func) Handle(req Request) error {
	return f(req)
}

// Instance is the identity under which a Service is registered. Two
// instances are the same registration target only if they are the same
// pointer, regardless of the Service they wrap.
type Instance struct {
	name string
	svc  Service
}

// NewInstance wraps svc under a display name.
func NewInstance(name string, svc Service) *Instance {
	if svc == nil {
		panic("service.NewInstance: svc is nil")
	}
	return &Instance{name: name, svc: svc}
}

// Name returns the display name.
func (i *Instance) Name() string {
	return i.name
}

// Service returns the wrapped Service.
func (i *Instance) Service() Service {
	return i.svc
}

func (i *Instance) String() string {
	return fmt.Sprintf("%s@%p", i.name, i)
}

// Respond sets Content-Type, sends status with len(body) and writes body.
func Respond(req Request, status int, contentType string, body []byte) error {
	if contentType != "" {
		req.ResponseHeaders().Set("Content-Type", []string{contentType})
	}
	if err := req.SendResponse(status, int64(len(body))); err != nil {
		return err
	}
	if len(body) == 0 || req.Method() == http.MethodHead {
		return nil
	}
	_, err := req.ResponseBody().Write(body)
	return err
}

// RespondText sends a plain-text body.
func RespondText(req Request, status int, text string) error {
	return Respond(req, status, "text/plain; charset=utf-8", []byte(text))
}

// RespondJSON encodes v as indented JSON and sends it with status.
func RespondJSON(req Request, status int, v interface{}) error {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	return Respond(req, status, "application/json", append(body, '\n'))
}
