package peerbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/clusterjoin/tokenbroker-go/pkg/peerbus"
)

// HandlerFunc is a bus function implementation. The returned payload is
// opaque to the bus; conventionally it is JSON produced by the function.
type HandlerFunc func(ctx context.Context, req peerbus.Request) ([]byte, error)

// Server is the responder side of the HTTP peer bus. It authenticates
// incoming publishes, checks the selector against this node's own identity,
// and dispatches matching requests to registered functions.
type Server struct {
	mu       sync.RWMutex
	config   *Config
	auth     *BusAuth
	registry map[string]HandlerFunc

	listener net.Listener
	server   *http.Server
	started  bool
	closed   bool
}

// NewServer creates a new bus responder with the given configuration
func NewServer(config *Config) (*Server, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	// Make a copy and set defaults
	configCopy := *config
	configCopy.SetDefaults()

	s := &Server{
		config:   &configCopy,
		auth:     NewBusAuth(configCopy.SecretKey, configCopy.TokenValidity),
		registry: make(map[string]HandlerFunc),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/publish", s.handlePublish)
	mux.HandleFunc("/api/v1/health", s.handleHealth)

	s.server = &http.Server{
		Handler:        s.logging(mux),
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	return s, nil
}

// Handle registers a bus function under the given name. Registering the same
// name twice replaces the previous handler.
func (s *Server) Handle(name string, fn HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registry[name] = fn
}

// Functions returns the names of all registered bus functions, sorted.
func (s *Server) Functions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.registry))
	for name := range s.registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Start begins listening and serving bus requests. It returns once the
// listener is bound; serving continues in the background until Stop or Close.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("cannot start closed bus server")
	}
	if s.started {
		return nil // Already started, idempotent
	}

	listener, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddress, err)
	}
	s.listener = listener
	s.started = true

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Printf("bus server error: %v", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the server
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil // Not started, idempotent
	}
	s.started = false
	return s.server.Shutdown(ctx)
}

// Close closes the server and releases all resources
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil // Already closed, safe to call multiple times
	}
	s.closed = true
	if s.started {
		s.started = false
		return s.server.Close()
	}
	return nil
}

// Addr returns the bound listener address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// handlePublish authenticates, self-matches, and dispatches a publish.
func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	claims, err := s.auth.ValidateToken(r.Header.Get("Authorization"))
	if err != nil {
		s.writeError(w, "invalid bus token: "+err.Error(), http.StatusUnauthorized)
		return
	}

	var wireReq publishRequest
	if err := json.NewDecoder(r.Body).Decode(&wireReq); err != nil {
		s.writeError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if wireReq.Function == "" {
		s.writeError(w, "function cannot be empty", http.StatusBadRequest)
		return
	}

	matchType, err := peerbus.ParseMatchType(wireReq.Selector.MatchType)
	if err != nil {
		s.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	sel := peerbus.Selector{Target: wireReq.Selector.Target, MatchType: matchType}
	if err := sel.Validate(); err != nil {
		s.writeError(w, "invalid selector: "+err.Error(), http.StatusBadRequest)
		return
	}

	// The responder re-checks the selector against its own identity; the
	// publisher's roster may be stale.
	if !sel.Matches(s.config.NodeID, s.config.Grains) {
		s.writeJSON(w, http.StatusOK, publishResponse{
			NodeID:  s.config.NodeID,
			Matched: false,
		})
		return
	}

	s.mu.RLock()
	fn, ok := s.registry[wireReq.Function]
	s.mu.RUnlock()
	if !ok {
		s.writeError(w, fmt.Sprintf("unknown function %q", wireReq.Function), http.StatusNotFound)
		return
	}

	req := peerbus.Request{
		Function:   wireReq.Function,
		Args:       wireReq.Args,
		SourceNode: wireReq.SourceNode,
	}
	if req.SourceNode == "" {
		req.SourceNode = claims.NodeID
	}

	log.Printf("bus: %s requested %s on %s", claims.NodeID, req.Function, s.config.NodeID)

	payload, err := fn(r.Context(), req)
	if err != nil {
		s.writeError(w, fmt.Sprintf("function %s failed: %v", req.Function, err), http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, http.StatusOK, publishResponse{
		NodeID:  s.config.NodeID,
		Matched: true,
		Payload: payload,
	})
}

// handleHealth reports liveness and the registered function names.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		NodeID:    s.config.NodeID,
		Functions: s.Functions(),
	})
}

// logging logs bus requests with timing
func (s *Server) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("bus: %s %s from %s (%v)", r.Method, r.URL.Path, r.RemoteAddr, time.Since(start))
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("bus: failed to encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, message string, status int) {
	s.writeJSON(w, status, errorResponse{Error: message})
}
