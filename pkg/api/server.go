// Package api exposes the REST surface over the mobility knowledge graph:
// entity listing and CRUD, raw SPARQL execution, the natural-language
// query endpoint, login and image upload.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/smart-mobility/smartcity-go/pkg/answer"
	"github.com/smart-mobility/smartcity-go/pkg/auth"
	"github.com/smart-mobility/smartcity-go/pkg/config"
	"github.com/smart-mobility/smartcity-go/pkg/images"
	"github.com/smart-mobility/smartcity-go/pkg/metrics"
	"github.com/smart-mobility/smartcity-go/pkg/nlq"
	"github.com/smart-mobility/smartcity-go/pkg/rdf"
	"github.com/smart-mobility/smartcity-go/pkg/rewrite"
	"github.com/smart-mobility/smartcity-go/pkg/smartcity"
)

// Deps carries the collaborators the server wires into its handlers.
// Auth and Uploader may be nil, disabling their endpoints.
type Deps struct {
	Config     *config.Config
	Store      *rdf.Store
	Service    *smartcity.Service
	Rewriter   *rewrite.Rewriter
	Controller *answer.Controller
	Bridge     *nlq.Bridge
	Auth       *auth.Store
	Uploader   *images.Client
	Logger     *zap.Logger
}

// Server is the HTTP server over the knowledge graph.
type Server struct {
	router     *mux.Router
	config     *config.Config
	store      *rdf.Store
	service    *smartcity.Service
	rewriter   *rewrite.Rewriter
	controller *answer.Controller
	bridge     *nlq.Bridge
	auth       *auth.Store
	uploader   *images.Client
	logger     *zap.Logger
	httpServer *http.Server
}

// NewServer creates the server and registers all routes.
func NewServer(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		router:     mux.NewRouter(),
		config:     deps.Config,
		store:      deps.Store,
		service:    deps.Service,
		rewriter:   deps.Rewriter,
		controller: deps.Controller,
		bridge:     deps.Bridge,
		auth:       deps.Auth,
		uploader:   deps.Uploader,
		logger:     logger,
	}
	s.registerRoutes()
	return s
}

// Router exposes the configured router, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.Use(s.recoveryMiddleware, s.loggingMiddleware, s.corsMiddleware)

	s.router.HandleFunc("/api/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/api/stats", s.handleStats).Methods(http.MethodGet)
	s.router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	s.router.HandleFunc("/api/query", s.handleQuery).Methods(http.MethodPost)
	s.router.HandleFunc("/api/search", s.handleSearch).Methods(http.MethodGet)

	s.router.HandleFunc("/api/ai/natural-query", s.handleNaturalQuery).Methods(http.MethodPost)
	s.router.HandleFunc("/api/ai/suggestions", s.handleAISuggestions).Methods(http.MethodGet)
	s.router.HandleFunc("/api/ai/insights", s.handleAIInsights).Methods(http.MethodGet)
	s.router.HandleFunc("/api/ai/related-queries", s.handleRelatedQueries).Methods(http.MethodPost)

	s.router.HandleFunc("/api/transports", s.handleListTransports).Methods(http.MethodGet)
	s.router.HandleFunc("/api/transports", s.handleCreateTransport).Methods(http.MethodPost)
	s.router.HandleFunc("/api/transports/{id}", s.handleUpdateTransport).Methods(http.MethodPut)
	s.router.HandleFunc("/api/transports/{id}", s.handleDeleteTransport).Methods(http.MethodDelete)

	s.router.HandleFunc("/api/users", s.handleListUsers).Methods(http.MethodGet)
	s.router.HandleFunc("/api/users", s.handleCreateUser).Methods(http.MethodPost)
	s.router.HandleFunc("/api/users/{id}", s.handleUpdateUser).Methods(http.MethodPut)
	s.router.HandleFunc("/api/users/{id}", s.handleDeleteUser).Methods(http.MethodDelete)
	s.router.HandleFunc("/api/users/{id}/image", s.handleUploadUserImage).Methods(http.MethodPost)

	s.router.HandleFunc("/api/stations", s.handleListStations).Methods(http.MethodGet)
	s.router.HandleFunc("/api/stations", s.handleCreateStation).Methods(http.MethodPost)
	s.router.HandleFunc("/api/stations/{id}", s.handleUpdateStation).Methods(http.MethodPut)
	s.router.HandleFunc("/api/stations/{id}", s.handleDeleteStation).Methods(http.MethodDelete)
	s.router.HandleFunc("/api/stations/{id}/image", s.handleUploadStationImage).Methods(http.MethodPost)

	s.router.HandleFunc("/api/events", s.handleListEvents).Methods(http.MethodGet)
	s.router.HandleFunc("/api/events", s.handleCreateEvent).Methods(http.MethodPost)
	s.router.HandleFunc("/api/events/{id}", s.handleUpdateEvent).Methods(http.MethodPut)
	s.router.HandleFunc("/api/events/{id}", s.handleDeleteEvent).Methods(http.MethodDelete)

	s.router.HandleFunc("/api/trajets", s.handleListTrajets).Methods(http.MethodGet)
	s.router.HandleFunc("/api/zones", s.handleListZones).Methods(http.MethodGet)

	s.router.HandleFunc("/api/auth/login", s.handleLogin).Methods(http.MethodPost)

	// Preflight requests must match a route for the CORS middleware to run.
	s.router.PathPrefix("/api/").Methods(http.MethodOptions).HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {})
}

// Start runs the HTTP server until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.config.Addr(),
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.Server.WriteTimeout) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", zap.String("addr", s.httpServer.Addr))
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"triples": s.store.Len(),
	})
}
