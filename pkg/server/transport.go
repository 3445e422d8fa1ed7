package server

import (
	"net/http"
	"time"

	"endpointd/internal/transport"
)

// Listener is one bound HTTP listener generation.
type Listener interface {
	// Bind routes requests under path to h, replacing any existing binding.
	Bind(path string, h http.Handler)
	// Unbind detaches path. Exchanges already dispatched are not affected.
	Unbind(path string)
	// Port reports the bound TCP port.
	Port() int
	// Close terminates the listener and every open connection at once.
	Close() error
}

// Transport binds listeners. It is the swappable HTTP engine underneath a
// Server.
type Transport interface {
	Listen(port int) (Listener, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(port int) (Listener, error)

// Listen calls f(port).
func (f TransportFunc) Listen(port int) (Listener, error) {
	return f(port)
}

// Observer receives data-plane and binding notifications. Implementations
// must be safe for concurrent use and must not block.
type Observer interface {
	ExchangeCompleted(contextPath, method string, status int, elapsed time.Duration)
	BindingsChanged(count int)
}

type nopObserver struct{}

func (nopObserver) ExchangeCompleted(string, string, int, time.Duration) {}
func (nopObserver) BindingsChanged(int)                                  {}

func defaultTransport(opts Options) Transport {
	topts := transport.Options{
		Host:              opts.Host,
		ReadHeaderTimeout: opts.ReadHeaderTimeout,
		IdleTimeout:       opts.IdleTimeout,
		Logger:            opts.Logger,
	}
	return TransportFunc(func(port int) (Listener, error) {
		l, err := transport.Listen(port, topts)
		if err != nil {
			return nil, err
		}
		return l, nil
	})
}
