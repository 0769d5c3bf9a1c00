package rpc

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/tolelom/tolstake/internal/logging"
)

var logger = logging.Logger("rpc")

// Server is a JSON-RPC 2.0 HTTP server. POST / carries JSON-RPC; GET /health
// and, when configured, GET /metrics sit beside it.
type Server struct {
	handler   *Handler
	addr      string
	authToken string // empty → no auth required
	router    *mux.Router
	srv       *http.Server
}

// NewServer creates a Server on addr. If authToken is non-empty, every
// JSON-RPC request must carry a matching "Authorization: Bearer <token>"
// header. metrics may be nil.
func NewServer(addr string, handler *Handler, authToken string, metrics http.Handler) *Server {
	s := &Server{handler: handler, addr: addr, authToken: authToken}

	router := mux.NewRouter()
	router.Path("/").Methods(http.MethodPost).HandlerFunc(s.serveRPC)
	router.Path("/health").Methods(http.MethodGet).HandlerFunc(s.serveHealth)
	if metrics != nil {
		router.Path("/metrics").Methods(http.MethodGet).Handler(metrics)
	}
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	})
	s.router = router

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Router exposes the request router.
func (s *Server) Router() http.Handler { return s.router }

// Start binds the port synchronously (so callers know immediately if binding
// fails) then serves requests in a background goroutine.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("server error")
		}
	}()
	return nil
}

// Stop gracefully shuts down the HTTP server, waiting up to 5 seconds for
// in-flight requests to complete.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

func (s *Server) serveHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]any{"status": "ok", "height": s.handler.bc.Height()})
}

func (s *Server) serveRPC(w http.ResponseWriter, r *http.Request) {
	if s.authToken != "" {
		if r.Header.Get("Authorization") != "Bearer "+s.authToken {
			writeJSON(w, errResponse(nil, CodeUnauthorized, "unauthorized"))
			return
		}
	}

	// Limit request body to 1 MB to prevent memory exhaustion.
	r.Body = http.MaxBytesReader(w, r.Body, 1*1024*1024)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, errResponse(nil, CodeParseError, err.Error()))
		return
	}
	if req.JSONRPC != "2.0" {
		writeJSON(w, errResponse(req.ID, CodeInvalidRequest, "jsonrpc must be '2.0'"))
		return
	}

	resp := s.handler.Dispatch(req)
	if resp.Error != nil {
		logger.Debug().Str("method", req.Method).Int("code", resp.Error.Code).Msg(resp.Error.Message)
	}
	writeJSON(w, resp)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
