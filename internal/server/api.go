// Copyright 2025 Arion Yau
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"loaner/internal/inventory"
	"loaner/internal/logger"
)

// APIServer serves read-only status over HTTP
type APIServer struct {
	server  *Server
	metrics *Metrics
	logger  zerolog.Logger
	http    *http.Server
}

// NewAPIServer creates a new API server
func NewAPIServer(srv *Server, metrics *Metrics) *APIServer {
	return &APIServer{
		server:  srv,
		metrics: metrics,
		logger:  logger.GetLogger("api"),
	}
}

// Router builds the route table
func (api *APIServer) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(api.loggingMiddleware)

	apiRouter := router.PathPrefix("/api/v1").Subrouter()
	apiRouter.HandleFunc("/health", api.handleHealth).Methods("GET")
	apiRouter.HandleFunc("/status", api.handleStatus).Methods("GET")
	apiRouter.HandleFunc("/queues/{class}", api.handleQueue).Methods("GET")

	router.Handle("/metrics", api.metrics.Handler()).Methods("GET")
	return router
}

// Start serves on address until Stop is called
func (api *APIServer) Start(address string) error {
	api.http = &http.Server{
		Addr:         address,
		Handler:      api.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	api.logger.Info().
		Str("address", address).
		Msg("Starting API server")

	err := api.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop stops the API server
func (api *APIServer) Stop(ctx context.Context) error {
	if api.http != nil {
		return api.http.Shutdown(ctx)
	}
	return nil
}

func (api *APIServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		api.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("API request")
	})
}

func (api *APIServer) sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (api *APIServer) sendError(w http.ResponseWriter, status int, message string) {
	api.sendJSON(w, status, map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (api *APIServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	overall, database := "healthy", "healthy"
	status := http.StatusOK
	if err := api.server.Engine().Ping(r.Context()); err != nil {
		overall, database = "degraded", err.Error()
		status = http.StatusServiceUnavailable
	}

	api.sendJSON(w, status, map[string]interface{}{
		"status":    overall,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"components": map[string]string{
			"database": database,
		},
	})
}

func (api *APIServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := api.server.Status(r.Context())
	if err != nil {
		api.sendError(w, http.StatusInternalServerError, err.Error())
		return
	}
	api.sendJSON(w, http.StatusOK, status)
}

func (api *APIServer) handleQueue(w http.ResponseWriter, r *http.Request) {
	class, err := inventory.ParsePerformanceClass(mux.Vars(r)["class"])
	if err != nil {
		api.sendError(w, http.StatusBadRequest, err.Error())
		return
	}
	entries, err := api.server.Engine().Queue(r.Context(), class)
	if err != nil {
		api.sendError(w, http.StatusInternalServerError, err.Error())
		return
	}
	api.sendJSON(w, http.StatusOK, map[string]interface{}{
		"class":   class,
		"entries": entries,
	})
}
