// Package server exposes the profiling pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/KaramelBytes/dataprof/internal/dataset"
	"github.com/KaramelBytes/dataprof/internal/logging"
	"github.com/KaramelBytes/dataprof/internal/pipeline"
	"github.com/KaramelBytes/dataprof/internal/storage"
)

const defaultMaxUpload = 32 << 20

// Config wires the server.
type Config struct {
	Pipeline       *pipeline.Pipeline
	Store          storage.Store // optional; enables artifact downloads
	Logger         *logrus.Logger
	MaxUploadBytes int64
	AllowedOrigins []string
}

// Server holds the HTTP handlers.
type Server struct {
	pipe      *pipeline.Pipeline
	store     storage.Store
	log       *logrus.Logger
	maxUpload int64
	origins   []string
}

// New returns a Server. A nil Pipeline gets a default one without
// collaborators.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	if cfg.Pipeline == nil {
		cfg.Pipeline = pipeline.New(pipeline.Config{Logger: cfg.Logger})
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUpload
	}
	return &Server{
		pipe:      cfg.Pipeline,
		store:     cfg.Store,
		log:       cfg.Logger,
		maxUpload: cfg.MaxUploadBytes,
		origins:   cfg.AllowedOrigins,
	}
}

// Handler returns the routed handler with CORS and request logging applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /api/profile", s.handleProfile)
	mux.HandleFunc("POST /api/profile/{$}", s.handleProfile)
	mux.HandleFunc("POST /api/quality", s.handleQuality)
	mux.HandleFunc("POST /api/quality/{$}", s.handleQuality)
	mux.HandleFunc("POST /api/quality/fix", s.handleQualityFix)
	mux.HandleFunc("GET /api/datasets/{id}/{artifact}", s.handleArtifact)
	return s.withLogging(s.withCORS(mux))
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.log.WithField("addr", ln.Addr().String()).Info("server listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		s.log.Info("server stopped")
		return nil
	}
}

type errorBody struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorBody{Detail: detail})
}

// fail maps a pipeline error to a response. Input problems are reported to
// the client; anything else is logged and hidden behind a generic 500.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	if pipeline.IsInputError(err) {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	s.log.WithFields(logrus.Fields{"path": r.URL.Path}).WithError(err).Error("request failed")
	writeDetail(w, http.StatusInternalServerError, "internal error")
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// upload extracts the multipart "file" field. It writes the error response
// itself and returns ok=false when the request is unusable.
func (s *Server) upload(w http.ResponseWriter, r *http.Request) (multipart.File, string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeDetail(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", s.maxUpload))
			return nil, "", false
		}
		writeDetail(w, http.StatusBadRequest, "expected multipart/form-data with a file field")
		return nil, "", false
	}
	f, hdr, err := r.FormFile("file")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "missing file field")
		return nil, "", false
	}
	if !strings.HasSuffix(hdr.Filename, ".csv") {
		_ = f.Close()
		writeDetail(w, http.StatusBadRequest, "File must be a CSV")
		return nil, "", false
	}
	return f, hdr.Filename, true
}

func boolQuery(r *http.Request, name string) (bool, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s=%q", name, v)
	}
	return b, nil
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	fix, err := boolQuery(r, "fix")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	withMeta, err := boolQuery(r, "metadata")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	f, name, ok := s.upload(w, r)
	if !ok {
		return
	}
	defer f.Close()

	res, err := s.pipe.Run(r.Context(), f, pipeline.Options{Name: name, Fix: fix, Metadata: withMeta, Persist: true})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if res.Stored {
		w.Header().Set("X-Dataset-ID", res.DatasetID)
	}
	if withMeta {
		writeJSON(w, http.StatusOK, struct {
			Profile  any `json:"profile"`
			Metadata any `json:"metadata"`
		}{res.Profile, res.Metadata})
		return
	}
	writeJSON(w, http.StatusOK, res.Profile)
}

func (s *Server) handleQuality(w http.ResponseWriter, r *http.Request) {
	f, name, ok := s.upload(w, r)
	if !ok {
		return
	}
	defer f.Close()
	res, err := s.pipe.Run(r.Context(), f, pipeline.Options{Name: name, SkipProfile: true})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res.Quality)
}

func (s *Server) handleQualityFix(w http.ResponseWriter, r *http.Request) {
	f, name, ok := s.upload(w, r)
	if !ok {
		return
	}
	defer f.Close()
	res, err := s.pipe.Run(r.Context(), f, pipeline.Options{Name: name, Fix: true, SkipProfile: true})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "cleaned_"+name))
	if err := dataset.WriteCSV(w, res.Cleaned); err != nil {
		s.log.WithError(err).Error("write cleaned csv")
	}
}

var artifacts = map[string]bool{
	storage.OriginalCSV:  true,
	storage.CleanedCSV:   true,
	storage.ProfileJSON:  true,
	storage.MetadataJSON: true,
}

func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	id, name := r.PathValue("id"), r.PathValue("artifact")
	if s.store == nil {
		writeDetail(w, http.StatusNotFound, "storage not configured")
		return
	}
	if _, err := uuid.Parse(id); err != nil || !artifacts[name] {
		writeDetail(w, http.StatusNotFound, "not found")
		return
	}
	obj, err := s.store.Get(r.Context(), storage.Key(id, name))
	if errors.Is(err, storage.ErrNotFound) {
		writeDetail(w, http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", obj.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(obj.Data)))
	_, _ = w.Write(obj.Data)
}

// withCORS answers preflight requests and sets the allow headers for
// configured origins. "*" allows any origin.
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowed := s.allowOrigin(origin); allowed != "" {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", allowed)
			if allowed != "*" {
				h.Add("Vary", "Origin")
			}
			h.Set("Access-Control-Expose-Headers", "X-Dataset-ID")
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Content-Type")
				h.Set("Access-Control-Max-Age", "600")
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) allowOrigin(origin string) string {
	if origin == "" {
		return ""
	}
	for _, o := range s.origins {
		if o == "*" {
			return "*"
		}
		if strings.EqualFold(o, origin) {
			return origin
		}
	}
	return ""
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"bytes":    rec.bytes,
			"duration": time.Since(start).String(),
		}).Info("http request")
	})
}
