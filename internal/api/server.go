// Package api serves plate recognition over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/gatepass/internal/capture"
	"github.com/banshee-data/gatepass/internal/config"
	"github.com/banshee-data/gatepass/internal/httputil"
	"github.com/banshee-data/gatepass/internal/monitoring"
	"github.com/banshee-data/gatepass/internal/plate/normalize"
	"github.com/banshee-data/gatepass/internal/plate/pipeline"
	"github.com/banshee-data/gatepass/internal/plate/preprocess"
	"github.com/banshee-data/gatepass/internal/raster"
	"github.com/banshee-data/gatepass/internal/version"
)

// DefaultMaxUploadBytes caps uploaded frames.
const DefaultMaxUploadBytes = 16 << 20

// Server exposes a Pipeline over HTTP.
type Server struct {
	pipeline *pipeline.Pipeline
	cfg      *config.PipelineConfig

	// MaxUploadBytes bounds request bodies on the recognize endpoint.
	MaxUploadBytes int64
}

// NewServer wraps p. cfg supplies the default frame settings and is echoed by
// /api/config.
func NewServer(p *pipeline.Pipeline, cfg *config.PipelineConfig) *Server {
	if cfg == nil {
		cfg = config.EmptyPipelineConfig()
	}
	return &Server{pipeline: p, cfg: cfg, MaxUploadBytes: DefaultMaxUploadBytes}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware logs method, path, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	log := monitoring.Component("http")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		ev := log.Info()
		if lrw.statusCode >= 500 {
			ev = log.Error()
		}
		ev.Str("method", r.Method).
			Str("uri", r.RequestURI).
			Int("status", lrw.statusCode).
			Float64("ms", float64(time.Since(start).Nanoseconds())/1e6).
			Msg("request")
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.healthz)
	mux.HandleFunc("/api/config", s.showConfig)
	mux.HandleFunc("/api/plate/recognize", s.recognizePlate)
	mux.HandleFunc("/api/plate/normalize", s.normalizePlate)
	return mux
}

// Handler is ServeMux wrapped in LoggingMiddleware.
func (s *Server) Handler() http.Handler {
	return LoggingMiddleware(s.ServeMux())
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down with
// a five second grace period.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
		close(errc)
	}()
	monitoring.Logf("listening on %s", addr)

	select {
	case err := <-errc:
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}
	monitoring.Logf("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown: %w", err)
	}
	return nil
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, map[string]interface{}{
		"status":  "ok",
		"version": version.Get(),
	})
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, s.cfg.Resolved())
}

// recognizePlate accepts a frame either as the "image" field of a multipart
// form or as the raw request body. Frame settings default to the config and
// may be overridden by form or query values of the same name.
func (s *Server) recognizePlate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.MaxUploadBytes)

	body, err := s.frameReader(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	defer body.Close()

	settings, err := frameSettings(r, s.cfg.FrameSettings())
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	img, err := capture.NewReaderSource(body).AcquireFrame(r.Context())
	if err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid image: %v", err))
		return
	}

	res, err := s.pipeline.WithLanguage(settings.Language).RecognizeAdjusted(r.Context(), img, capture.Prepare(img, settings))
	var failure *pipeline.RecognitionFailure
	switch {
	case err == nil:
	case errors.As(err, &failure):
		httputil.Unprocessable(w, "no plate detected", failure.Reason)
		return
	case errors.Is(err, raster.ErrMalformed):
		httputil.BadRequest(w, err.Error())
		return
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, err.Error())
		return
	default:
		httputil.InternalServerError(w, err.Error())
		return
	}

	if r.URL.Query().Get("candidates") == "false" {
		res.Candidates = nil
	}
	httputil.WriteJSONOK(w, res)
}

func (s *Server) frameReader(r *http.Request) (io.ReadCloser, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return r.Body, nil
	}
	if err := r.ParseMultipartForm(s.MaxUploadBytes); err != nil {
		return nil, fmt.Errorf("invalid multipart form: %v", err)
	}
	f, _, err := r.FormFile("image")
	if err != nil {
		return nil, fmt.Errorf("missing image field: %v", err)
	}
	return f, nil
}

// frameSettings overlays request values on base. Multipart values take
// precedence over the query string.
func frameSettings(r *http.Request, base preprocess.Settings) (preprocess.Settings, error) {
	get := func(key string) string {
		if r.MultipartForm != nil {
			if v := r.MultipartForm.Value[key]; len(v) > 0 {
				return v[0]
			}
		}
		return r.URL.Query().Get(key)
	}

	s := base
	for key, dst := range map[string]*float64{"contrast": &s.Contrast, "brightness": &s.Brightness} {
		if v := get(key); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil || f <= 0 {
				return base, fmt.Errorf("invalid %s %q", key, v)
			}
			*dst = f
		}
	}
	for key, dst := range map[string]*bool{"sharpen": &s.Sharpen, "auto_crop": &s.AutoCrop} {
		if v := get(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return base, fmt.Errorf("invalid %s %q", key, v)
			}
			*dst = b
		}
	}
	if v := strings.TrimSpace(get("language")); v != "" {
		s.Language = v
	}
	return s, nil
}

type normalizeRequest struct {
	Text string `json:"text"`
}

// normalizePlate formats text read by an external plate-recognition service.
func (s *Server) normalizePlate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	var req normalizeRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 4096)).Decode(&req); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if normalize.Clean(req.Text) == "" {
		httputil.BadRequest(w, "text is required")
		return
	}
	httputil.WriteJSONOK(w, pipeline.FromExternal(req.Text, nil))
}
