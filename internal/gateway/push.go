package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"signald/internal/event"
	"signald/internal/logging"
	"signald/internal/tools"
)

// PushServer is the plain HTTP ingest endpoint for producers that do not
// speak the structured call protocol. POST /events runs the full pipeline
// synchronously; GET /health reports liveness.
type PushServer struct {
	registry  *tools.Registry
	addr      string
	connected func() bool // upstream session state reported by /health
	srv       *http.Server
}

// NewPushServer creates the push endpoint on addr. connected reports
// whether the structured session this endpoint fronts is up; pass nil when
// the pipeline runs in-process.
func NewPushServer(registry *tools.Registry, addr string, connected func() bool) *PushServer {
	if connected == nil {
		connected = func() bool { return true }
	}
	s := &PushServer{registry: registry, addr: addr, connected: connected}

	mux := http.NewServeMux()
	mux.HandleFunc("/events", s.handleEvents)
	mux.HandleFunc("/health", s.handleHealth)

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	return s
}

// ListenAndServe runs the push endpoint until the context is canceled.
func (s *PushServer) ListenAndServe(ctx context.Context) error {
	log := logging.Get(logging.CategoryTransport)
	log.Info("push endpoint listening", zap.String("addr", s.addr))

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Handler returns the underlying handler, for tests.
func (s *PushServer) Handler() http.Handler {
	return s.srv.Handler
}

func (s *PushServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	log := logging.Get(logging.CategoryTransport).With(zap.String("request_id", uuid.NewString()))

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to read body"})
		return
	}

	var args map[string]any
	if err := json.Unmarshal(body, &args); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON"})
		return
	}

	result, err := s.registry.Call(r.Context(), tools.ToolClassifyFailureEvent, args)
	if err != nil {
		var vErr *event.ValidationError
		if errors.As(err, &vErr) {
			log.Warn("rejected event", zap.String("kind", vErr.Kind), zap.String("field", vErr.Field))
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		log.Error("event processing failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":              "processed",
		"event_id":            result["event_id"],
		"classification":      result["classification"],
		"calculated_severity": result["calculated_severity"],
		"recommendation":      result["recommendation"],
	})
}

func (s *PushServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "healthy",
		"service":       tools.ServiceName,
		"listening":     true,
		"mcp_connected": s.connected(),
	})
}
