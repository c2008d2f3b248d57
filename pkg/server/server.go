package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	gql "github.com/mnohosten/laura-db/pkg/graphql"
	"github.com/mnohosten/laura-db/pkg/index"
	"github.com/mnohosten/laura-db/pkg/metrics"
	"github.com/mnohosten/laura-db/pkg/server/handlers"
	"github.com/mnohosten/laura-db/pkg/storage"
)

// Server represents the HTTP server fronting a storage.Store and its
// extendible hash index.
type Server struct {
	config           *Config
	store            *storage.Store
	table            *index.HashTable[uint64, uint64]
	router           *chi.Mux
	httpSrv          *http.Server
	startTime        time.Time
	metricsCollector *metrics.MetricsCollector
	promExporter     *metrics.PrometheusExporter
	statsStream      *handlers.StatsStreamManager
}

// New creates a new HTTP server instance.
func New(config *Config) (*Server, error) {
	if config.EnableTLS {
		if config.TLSCertFile == "" || config.TLSKeyFile == "" {
			return nil, fmt.Errorf("TLS enabled but certificate or key file not specified")
		}
		if _, err := os.Stat(config.TLSCertFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("TLS certificate file not found: %s", config.TLSCertFile)
		}
		if _, err := os.Stat(config.TLSKeyFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("TLS key file not found: %s", config.TLSKeyFile)
		}
	}

	storeConfig := &storage.Config{
		DataDir:          config.DataDir,
		PoolSizePerShard: config.PoolSizePerShard,
		NumShards:        config.NumShards,
	}
	store, err := storage.Open(storeConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	table, err := index.NewHashTable[uint64, uint64](store.BufferPool, index.Uint64Codec{}, index.Uint64Comparator, index.Uint64Hash)
	if err != nil {
		return nil, fmt.Errorf("failed to create hash index: %w", err)
	}

	metricsCollector := metrics.NewMetricsCollector()
	promExporter := metrics.NewPrometheusExporter(metricsCollector)

	srv := &Server{
		config:           config,
		store:            store,
		table:            table,
		router:           chi.NewRouter(),
		startTime:        time.Now(),
		metricsCollector: metricsCollector,
		promExporter:     promExporter,
	}

	srv.setupMiddleware()
	srv.setupRoutes()

	if config.EnableGraphQL {
		if err := srv.setupGraphQLRoutes(); err != nil {
			return nil, fmt.Errorf("failed to setup GraphQL routes: %w", err)
		}
	}

	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)
	srv.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      srv.router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return srv, nil
}

// setupMiddleware configures the HTTP middleware stack.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)

	if s.config.EnableLogging {
		s.router.Use(middleware.Logger)
	}

	if s.config.EnableCORS {
		s.router.Use(s.corsMiddleware)
	}

	s.router.Use(s.requestSizeLimitMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))
}

// setupRoutes configures HTTP routes.
func (s *Server) setupRoutes() {
	h := handlers.New(s.store, s.table, s.metricsCollector)

	s.statsStream = handlers.SetupWebSocketRoutes(s.router, h)

	s.router.Get("/_health", s.jsonContentType(h.Health(s.startTime)))
	s.router.Get("/_stats", s.jsonContentType(h.GetStats))
	s.router.Get("/_metrics", s.handlePrometheusMetrics)

	s.router.Post("/lookup", h.Lookup)
	s.router.Post("/insert", h.Insert)
	s.router.Post("/remove", h.Remove)

	s.router.Get("/_pages/{id}/export", h.ExportPage)
}

// setupGraphQLRoutes configures GraphQL routes.
func (s *Server) setupGraphQLRoutes() error {
	graphqlHandler, err := gql.NewHandler(s.table, s.metricsCollector)
	if err != nil {
		return fmt.Errorf("failed to create GraphQL handler: %w", err)
	}

	s.router.Post("/graphql", graphqlHandler.ServeHTTP)
	s.router.Get("/graphiql", gql.GraphiQLHandler())

	fmt.Println("GraphQL API enabled: /graphql, playground at /graphiql")

	return nil
}

// jsonContentType wraps a handler to set the JSON content type.
func (s *Server) jsonContentType(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next(w, r)
	}
}

// corsMiddleware handles CORS headers.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := "*"
		if len(s.config.AllowedOrigins) > 0 {
			origin = s.config.AllowedOrigins[0]
		}

		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// requestSizeLimitMiddleware limits request body size.
func (s *Server) requestSizeLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxRequestSize)
		next.ServeHTTP(w, r)
	})
}

// handlePrometheusMetrics serves the /_metrics endpoint in Prometheus
// text exposition format.
func (s *Server) handlePrometheusMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	if err := s.promExporter.WriteMetrics(w); err != nil {
		http.Error(w, fmt.Sprintf("error writing metrics: %v", err), http.StatusInternalServerError)
		return
	}
}

// Start starts the HTTP server and blocks until it shuts down.
func (s *Server) Start() error {
	protocol := "http"
	if s.config.EnableTLS {
		protocol = "https"
		fmt.Printf("TLS/SSL enabled, certificate: %s\n", s.config.TLSCertFile)
	}
	fmt.Printf("laura-db server starting on %s://%s:%d\n", protocol, s.config.Host, s.config.Port)
	fmt.Printf("data directory: %s\n", s.config.DataDir)
	fmt.Printf("buffer pool: %d shard(s) x %d frames\n", s.config.NumShards, s.config.PoolSizePerShard)
	fmt.Printf("live stats stream: ws://%s:%d/_ws/stats\n", s.config.Host, s.config.Port)

	errChan := make(chan error, 1)
	go func() {
		var err error
		if s.config.EnableTLS {
			err = s.httpSrv.ListenAndServeTLS(s.config.TLSCertFile, s.config.TLSKeyFile)
		} else {
			err = s.httpSrv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		fmt.Printf("\nreceived signal: %v\n", sig)
		return s.Shutdown()
	}
}

// GetStore returns the underlying storage.Store.
func (s *Server) GetStore() *storage.Store {
	return s.store
}

// GetHashTable returns the underlying hash index.
func (s *Server) GetHashTable() *index.HashTable[uint64, uint64] {
	return s.table
}

// GetMetricsCollector returns the metrics collector.
func (s *Server) GetMetricsCollector() *metrics.MetricsCollector {
	return s.metricsCollector
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	fmt.Println("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpSrv.Shutdown(ctx); err != nil {
		fmt.Printf("server shutdown error: %v\n", err)
	}

	if s.statsStream != nil {
		if err := s.statsStream.Close(); err != nil {
			fmt.Printf("warning: error closing stats stream manager: %v\n", err)
		}
	}

	if err := s.store.Close(); err != nil {
		fmt.Printf("store close error: %v\n", err)
		return err
	}

	fmt.Println("server shutdown complete")
	return nil
}

// WriteJSON writes a JSON response.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		fmt.Printf("error encoding JSON response: %v\n", err)
	}
}

// WriteError writes an error response.
func WriteError(w http.ResponseWriter, statusCode int, errorType, message string) {
	response := map[string]interface{}{
		"ok":      false,
		"error":   errorType,
		"message": message,
		"code":    statusCode,
	}
	WriteJSON(w, statusCode, response)
}

// WriteSuccess writes a success response.
func WriteSuccess(w http.ResponseWriter, result interface{}) {
	response := map[string]interface{}{
		"ok":     true,
		"result": result,
	}
	WriteJSON(w, http.StatusOK, response)
}
