// Command server exposes the data-quality engine over HTTP: metadata
// validation, check application with optional valid/invalid splitting, and
// CRUD on stored check definitions. Check definitions live in PostgreSQL
// when DATABASE_URL is set, otherwise in memory.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"

	"github.com/dqfoundry/dqengine/dataset"
	"github.com/dqfoundry/dqengine/engine"
	"github.com/dqfoundry/dqengine/internal/logger"
	"github.com/dqfoundry/dqengine/storage"
)

type Server struct {
	store  storage.CheckStore
	engine *engine.Engine
	db     *sql.DB
	router *chi.Mux
}

// NewServer wires the engine and a check store into an HTTP handler. db may
// be nil when the store is not database-backed.
func NewServer(store storage.CheckStore, db *sql.DB) (*Server, error) {
	eng, err := engine.New()
	if err != nil {
		return nil, err
	}

	s := &Server{
		store:  store,
		engine: eng,
		db:     db,
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/api/v1/health", s.handleHealth)
	r.Post("/api/v1/apply", s.handleApply)

	r.Route("/api/v1/checks", func(r chi.Router) {
		r.Post("/validate", s.handleValidate)
		r.Get("/", s.handleListChecks)
		r.Post("/", s.handleCreateCheck)
		r.Get("/{checkId}", s.handleGetCheck)
		r.Put("/{checkId}", s.handleUpdateCheck)
		r.Delete("/{checkId}", s.handleDeleteCheck)
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.Ping(); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// handleValidate runs metadata validation and reports every problem found,
// without building or applying anything.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	status := engine.ValidateChecks(req.Checks, nil)
	respondJSON(w, http.StatusOK, ValidateResponse{
		Valid:  !status.HasErrors(),
		Errors: status.Errors(),
	})
}

// handleApply applies checks to the submitted records. Checks come inline
// with the request, or from the store when omitted. With split=true the
// response carries the valid and invalid partitions instead of one
// annotated record set.
func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	var req ApplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Records == nil {
		respondError(w, http.StatusBadRequest, "records are required", nil)
		return
	}

	specs := req.Checks
	if len(specs) == 0 {
		stored, err := s.store.List()
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to load stored checks", err)
			return
		}
		specs = storage.Specs(stored)
	}

	ds := dataset.FromRecords(req.Columns, req.Records)
	start := time.Now()

	if req.Split {
		valid, invalid, err := s.engine.ApplyByMetadataAndSplit(ds, specs, nil)
		if err != nil {
			respondError(w, http.StatusBadRequest, "failed to apply checks", err)
			return
		}
		respondJSON(w, http.StatusOK, ApplySplitResponse{
			Valid:          valid.Records(),
			Invalid:        invalid.Records(),
			EvaluationTime: time.Since(start).String(),
		})
		return
	}

	annotated, err := s.engine.ApplyByMetadata(ds, specs, nil)
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to apply checks", err)
		return
	}
	respondJSON(w, http.StatusOK, ApplyResponse{
		Records:        annotated.Records(),
		EvaluationTime: time.Since(start).String(),
	})
}

func (s *Server) handleCreateCheck(w http.ResponseWriter, r *http.Request) {
	var spec engine.CheckSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if status := engine.ValidateChecks([]engine.CheckSpec{spec}, nil); status.HasErrors() {
		respondJSON(w, http.StatusBadRequest, ValidateResponse{Valid: false, Errors: status.Errors()})
		return
	}

	check := &storage.Check{Spec: spec}
	if err := s.store.Add(check); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to store check", err)
		return
	}

	respondJSON(w, http.StatusCreated, toCheckResponse(check))
}

func (s *Server) handleListChecks(w http.ResponseWriter, r *http.Request) {
	stored, err := s.store.List()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list checks", err)
		return
	}

	out := make([]CheckResponse, len(stored))
	for i, check := range stored {
		out[i] = toCheckResponse(check)
	}
	respondJSON(w, http.StatusOK, ChecksListResponse{Checks: out})
}

func (s *Server) handleGetCheck(w http.ResponseWriter, r *http.Request) {
	check, err := s.store.Get(chi.URLParam(r, "checkId"))
	if err != nil {
		respondError(w, http.StatusNotFound, "check not found", err)
		return
	}
	respondJSON(w, http.StatusOK, toCheckResponse(check))
}

func (s *Server) handleUpdateCheck(w http.ResponseWriter, r *http.Request) {
	var spec engine.CheckSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if status := engine.ValidateChecks([]engine.CheckSpec{spec}, nil); status.HasErrors() {
		respondJSON(w, http.StatusBadRequest, ValidateResponse{Valid: false, Errors: status.Errors()})
		return
	}

	check := &storage.Check{ID: chi.URLParam(r, "checkId"), Spec: spec}
	if err := s.store.Update(check); err != nil {
		respondError(w, http.StatusNotFound, "failed to update check", err)
		return
	}
	respondJSON(w, http.StatusOK, toCheckResponse(check))
}

func (s *Server) handleDeleteCheck(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(chi.URLParam(r, "checkId")); err != nil {
		respondError(w, http.StatusNotFound, "check not found", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := map[string]string{"error": message}
	if err != nil {
		response["details"] = err.Error()
	}
	respondJSON(w, status, response)
}

func main() {
	log := logger.Setup()

	var db *sql.DB
	var store storage.CheckStore

	if databaseURL := os.Getenv("DATABASE_URL"); databaseURL != "" {
		var err error
		db, err = sql.Open("postgres", databaseURL)
		if err != nil {
			log.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		if err := db.Ping(); err != nil {
			log.Error("failed to ping database", "error", err)
			os.Exit(1)
		}
		store = storage.NewPostgresCheckStore(db)
		log.Info("using postgres check store")
	} else {
		store = storage.NewInMemoryCheckStore()
		log.Info("using in-memory check store")
	}

	server, err := NewServer(store, db)
	if err != nil {
		log.Error("failed to create server", "error", err)
		os.Exit(1)
	}
	if db != nil {
		defer db.Close()
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      server,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error("server shutdown error", "error", err)
	}
	log.Info("server stopped")
}
