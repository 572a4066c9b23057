package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cuemby/hardwared/pkg/metrics"
	"github.com/cuemby/hardwared/pkg/runtime"
	"github.com/cuemby/hardwared/pkg/storage"
)

// HealthServer provides HTTP health/readiness/metrics endpoints, separate
// from the /v1/hardware REST surface so they can be bound to a different
// listener (e.g. an unauthenticated localhost port for probes).
type HealthServer struct {
	rt  *runtime.Runtime
	mux *http.ServeMux
}

// NewHealthServer creates a new health check HTTP server bound to rt.
func NewHealthServer(rt *runtime.Runtime) *HealthServer {
	mux := http.NewServeMux()
	hs := &HealthServer{
		rt:  rt,
		mux: mux,
	}

	mux.HandleFunc("/health", hs.healthHandler)
	mux.HandleFunc("/ready", hs.readyHandler)
	mux.Handle("/metrics", metrics.Handler())

	return hs
}

// Start starts the health check HTTP server.
func (hs *HealthServer) Start(addr string) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      hs.mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server.ListenAndServe()
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version,omitempty"`
}

// ReadyResponse represents the readiness check response.
type ReadyResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
	Message   string            `json:"message,omitempty"`
}

// healthHandler implements the /health endpoint: a simple liveness check,
// returns 200 if the process is alive.
func (hs *HealthServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}

// readyHandler implements the /ready endpoint: checks that the Store is
// reachable and that at least one hardware type is loaded, recording both
// observations on the shared metrics.HealthChecker (registered as "store"
// and "api", the two names metrics.GetReadiness treats as critical) so
// that checker's aggregation is the actual source of the ready/not-ready
// verdict rather than a second, parallel copy of the same logic.
func (hs *HealthServer) readyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	storeHealthy := false
	storeMsg := "not initialized"
	if hs.rt != nil && hs.rt.Store != nil {
		if _, err := hs.rt.Store.ListHardware(storage.ListOptions{Limit: 1, AllProjects: true}); err != nil {
			storeMsg = fmt.Sprintf("error: %v", err)
		} else {
			storeHealthy = true
			storeMsg = "ok"
		}
	}
	metrics.RegisterComponent("store", storeHealthy, storeMsg)

	driversHealthy := hs.rt != nil && len(hs.rt.EnabledHardwareTypes()) > 0
	driversMsg := "loaded"
	if !driversHealthy {
		driversMsg = "not loaded"
	}
	metrics.RegisterComponent("api", driversHealthy, driversMsg)

	readiness := metrics.GetReadiness()

	status := "ready"
	statusCode := http.StatusOK
	if readiness.Status != "ready" {
		status = "not ready"
		statusCode = http.StatusServiceUnavailable
	}

	checks := map[string]string{
		"store":   readiness.Components["store"],
		"drivers": readiness.Components["api"],
	}

	response := ReadyResponse{
		Status:    status,
		Timestamp: readiness.Timestamp,
		Checks:    checks,
		Message:   readiness.Message,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}

// GetHandler returns the HTTP handler for embedding in other servers.
func (hs *HealthServer) GetHandler() http.Handler {
	return hs.mux
}
