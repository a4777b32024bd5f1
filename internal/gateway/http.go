package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"signald/internal/logging"
	"signald/internal/tools"
)

// HTTPServer exposes the tool set at POST /mcp. Each request is an
// independent JSON-RPC exchange from a possibly distinct client; the only
// shared mutable state behind the handlers is the event store.
type HTTPServer struct {
	core *Core
	addr string
	srv  *http.Server
}

// NewHTTPServer creates the streamable binding listening on addr.
func NewHTTPServer(registry *tools.Registry, addr string) *HTTPServer {
	s := &HTTPServer{
		// Stateless binding: a fresh client may call tools without having
		// initialized on this connection.
		core: NewCore(registry, false),
		addr: addr,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/mcp", s.handleRPC)

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	return s
}

// ListenAndServe runs the server until the context is canceled.
func (s *HTTPServer) ListenAndServe(ctx context.Context) error {
	log := logging.Get(logging.CategoryTransport)
	log.Info("streamable binding listening", zap.String("addr", s.addr))

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
func (s *HTTPServer) Handler() http.Handler {
	return s.srv.Handler
}

func (s *HTTPServer) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	log := logging.Get(logging.CategoryTransport).With(zap.String("request_id", uuid.NewString()))

	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("unparseable request body", zap.Error(err))
		writeJSON(w, http.StatusOK, newErrorResponse(nil, codeParseError, "parse error: "+err.Error(), nil))
		return
	}

	log.Debug("dispatching", zap.String("method", req.Method))

	// One exchange per request; handshake state does not span requests.
	resp := s.core.handle(r.Context(), &session{}, &req)
	if resp == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
