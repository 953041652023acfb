// Package server exposes the converter over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	url2pdf "github.com/alnah/go-url2pdf"
)

// Public error messages. Internal details stay in the logs.
const (
	msgOverloaded   = "server busy, retry later"
	msgTimedOut     = "rendering timed out"
	msgUnavailable  = "server is shutting down"
	msgInternal     = "internal server error"
	msgRenderFailed = "rendering failed"
)

// DefaultRetryAfter is advertised on 429 responses when Config leaves it unset.
const DefaultRetryAfter = 5 * time.Second

// Converter is the part of url2pdf.Converter the handler needs.
type Converter interface {
	Convert(ctx context.Context, req *url2pdf.Request) (*url2pdf.Artifact, error)
	Stats() url2pdf.Stats
}

// Config tunes the handler.
type Config struct {
	RetryAfter time.Duration       // Retry-After on 429, whole seconds
	Gatherer   prometheus.Gatherer // nil disables /metrics
	Logger     *zap.Logger         // nil = no logging
}

// errorResponse is the body of every non-2xx response.
type errorResponse struct {
	Error string `json:"error"`
}

// healthResponse is the body of GET /healthz.
type healthResponse struct {
	Status  string `json:"status"`
	Running int    `json:"running"`
	Queued  int    `json:"queued"`
}

type handler struct {
	conv       Converter
	logger     *zap.Logger
	retryAfter string
}

// New returns the service's HTTP handler with its middleware chain
// (recovery, request ID, access log) applied.
func New(conv Converter, cfg Config) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	retry := cfg.RetryAfter
	if retry < time.Second {
		retry = DefaultRetryAfter
	}

	h := &handler{
		conv:       conv,
		logger:     logger,
		retryAfter: strconv.Itoa(int(retry / time.Second)),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /pdf", h.handlePDF)
	mux.HandleFunc("GET /pdf/{url}/{name}", h.handleLegacyPDF)
	mux.HandleFunc("GET /healthz", h.handleHealth)
	if cfg.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	return Chain(mux, Recovery(logger), WithRequestID, Logging(logger))
}

// handlePDF serves GET /pdf?url=<url>&name=<name>.
func (h *handler) handlePDF(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	h.convert(w, r, q.Get("url"), q.Get("name"))
}

// handleLegacyPDF serves GET /pdf/{url}/{name} with a percent-encoded URL
// segment.
func (h *handler) handleLegacyPDF(w http.ResponseWriter, r *http.Request) {
	h.convert(w, r, r.PathValue("url"), r.PathValue("name"))
}

func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats := h.conv.Stats()
	writeJSON(w, http.StatusOK, healthResponse{
		Status:  "ok",
		Running: stats.Running,
		Queued:  stats.Queued,
	})
}

func (h *handler) convert(w http.ResponseWriter, r *http.Request, rawURL, name string) {
	ctx := r.Context()
	reqID := RequestID(ctx)

	req, err := url2pdf.NewRequest(rawURL, name)
	if err != nil {
		h.logger.Info("rejected request",
			zap.String("request_id", reqID),
			zap.Error(err),
		)
		h.writeError(w, r, err)
		return
	}

	h.logger.Debug("conversion requested",
		zap.String("request_id", reqID),
		zap.String("job_id", req.ID),
		zap.String("url", req.SourceURL.Redacted()),
	)

	artifact, err := h.conv.Convert(ctx, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	defer func() {
		if err := artifact.Release(); err != nil {
			h.logger.Warn("releasing artifact failed",
				zap.String("request_id", reqID),
				zap.String("job_id", req.ID),
				zap.Error(err),
			)
		}
	}()

	if err := h.stream(w, req, artifact); err != nil {
		h.logger.Info("streaming aborted",
			zap.String("request_id", reqID),
			zap.String("job_id", req.ID),
			zap.Error(err),
		)
	}
}

// stream writes the artifact as the response body. Once headers are sent
// an error can only be logged.
func (h *handler) stream(w http.ResponseWriter, req *url2pdf.Request, artifact *url2pdf.Artifact) error {
	f, err := artifact.Open()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: msgInternal})
		return err
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: msgInternal})
		return err
	}

	hdr := w.Header()
	hdr.Set("Content-Type", "application/pdf")
	hdr.Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", req.Filename()))
	hdr.Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	hdr.Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)

	_, err = io.Copy(w, f)
	return err
}

// writeError maps err to a status and JSON body. Nothing is written when
// the caller has already gone away.
func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, url2pdf.ErrCanceled) && r.Context().Err() != nil {
		h.logger.Info("client closed request",
			zap.String("request_id", RequestID(r.Context())),
		)
		return
	}

	status, msg := statusFor(err)
	if status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", h.retryAfter)
	}
	if status >= http.StatusInternalServerError {
		h.logger.Warn("conversion failed",
			zap.String("request_id", RequestID(r.Context())),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

// statusFor classifies err into an HTTP status and a public message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, url2pdf.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, url2pdf.ErrOverloaded):
		return http.StatusTooManyRequests, msgOverloaded
	case errors.Is(err, url2pdf.ErrRenderTimedOut):
		return http.StatusGatewayTimeout, msgTimedOut
	case errors.Is(err, url2pdf.ErrSchedulerClosed), errors.Is(err, url2pdf.ErrCanceled):
		return http.StatusServiceUnavailable, msgUnavailable
	case errors.Is(err, url2pdf.ErrRenderFailed):
		return http.StatusInternalServerError, msgRenderFailed
	default:
		return http.StatusInternalServerError, msgInternal
	}
}
