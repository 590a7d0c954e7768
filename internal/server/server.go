// Package server exposes audits over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gnolang/moveaudit/internal/orchestrator"
	"github.com/gnolang/moveaudit/internal/sink"
	tt "github.com/gnolang/moveaudit/internal/types"
)

const (
	// DefaultMaxUpload bounds the size of an uploaded file.
	DefaultMaxUpload = 8 << 20

	msgNoFile       = "No file provided"
	msgInvalidType  = "Invalid file type. Only .move files are accepted"
	msgEmptyFile    = "Empty file"
	msgTooLarge     = "File too large"
	msgProcessError = "Failed to process the audit request"
)

// Auditor produces a report for one source file.
type Auditor interface {
	Audit(ctx context.Context, filename string, source []byte) (*tt.Report, error)
}

// Publisher stores finished reports.
type Publisher interface {
	Save(ctx context.Context, report *tt.Report) (*sink.SaveResult, error)
}

// Server handles audit uploads.
type Server struct {
	auditor   Auditor
	publisher Publisher
	logger    *zap.Logger
	maxUpload int64
}

// Option configures a Server.
type Option func(*Server)

// WithPublisher stores every successful report.
func WithPublisher(p Publisher) Option {
	return func(s *Server) { s.publisher = p }
}

// WithMaxUpload changes the upload size limit.
func WithMaxUpload(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUpload = n
		}
	}
}

// New creates a server running audits through a.
func New(a Auditor, logger *zap.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{auditor: a, logger: logger, maxUpload: DefaultMaxUpload}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/audit", s.handleAudit)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return mux
}

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.logger.Info("listening", zap.String("addr", addr))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

type errorBody struct {
	Error       string          `json:"error"`
	Kind        string          `json:"kind,omitempty"`
	Diagnostics []tt.Diagnostic `json:"diagnostics,omitempty"`
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: msgTooLarge})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: msgNoFile})
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if !strings.HasSuffix(name, ".move") {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: msgInvalidType})
		return
	}

	source, err := io.ReadAll(file)
	if err != nil {
		s.logger.Error("failed to read upload", zap.String("file", name), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: msgProcessError})
		return
	}
	if len(strings.TrimSpace(string(source))) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: msgEmptyFile})
		return
	}

	report, err := s.auditor.Audit(r.Context(), name, source)
	if err != nil {
		var f *orchestrator.Failure
		if errors.As(err, &f) && f.Kind != orchestrator.FailureInternal {
			writeJSON(w, http.StatusUnprocessableEntity, errorBody{
				Error:       f.Message,
				Kind:        string(f.Kind),
				Diagnostics: f.Diagnostics,
			})
			return
		}
		s.logger.Error("error processing audit request", zap.String("file", name), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: msgProcessError})
		return
	}

	if s.publisher != nil {
		if _, err := s.publisher.Save(r.Context(), report); err != nil {
			s.logger.Warn("failed to publish report", zap.String("file", name), zap.Error(err))
		}
	}
	writeJSON(w, http.StatusOK, report)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
