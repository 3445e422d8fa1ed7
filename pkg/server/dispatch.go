package server

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"endpointd/internal/transport"
	"endpointd/pkg/service"
)

// adapter bridges a raw net/http exchange to one service instance. A single
// adapter is shared by every context path the instance is bound under.
type adapter struct {
	inst     *service.Instance
	logger   *slog.Logger
	observer Observer
}

func (a *adapter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ex := service.NewExchange(w, r)

	err := a.inst.Service().Handle(ex)

	status := ex.Status()
	logger := a.logger.With(
		"instance", a.inst.Name(),
		"path", r.URL.Path,
		"requestID", transport.GetRequestID(r.Context()),
	)

	switch {
	case err != nil && !ex.ResponseSent():
		logger.Warn("Service failed before sending a response", "error", err)
		status = http.StatusInternalServerError
		http.Error(w, "Internal server error", status)

	case errors.Is(err, service.ErrResponseAlreadySent) && (ex.Complete() || r.Method == http.MethodHead):
		// The first response is already on the wire and whole.
		logger.Error("Service sent its response twice", "status", status)

	case err != nil:
		if errors.Is(err, service.ErrResponseAlreadySent) {
			logger.Error("Service sent its response twice", "status", status, "written", ex.BytesWritten())
		} else {
			logger.Warn("Service failed after sending its response", "status", status, "error", err)
		}
		a.observer.ExchangeCompleted(ex.ContextPath(), r.Method, status, time.Since(start))
		panic(http.ErrAbortHandler)

	case !ex.ResponseSent():
		logger.Error("Service returned without sending a response")
		status = http.StatusInternalServerError
		http.Error(w, "Internal server error", status)

	case !ex.Complete() && r.Method != http.MethodHead:
		logger.Warn("Service wrote fewer bytes than declared", "written", ex.BytesWritten())
	}

	a.observer.ExchangeCompleted(ex.ContextPath(), r.Method, status, time.Since(start))
}
