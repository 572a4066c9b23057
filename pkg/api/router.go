package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/cuemby/hardwared/pkg/runtime"
)

// NewRouter builds the /v1/hardware REST router (spec §6), wiring
// RequestLoggingMiddleware and RequestMetricsMiddleware around every route
// and gating every route but Export behind AuthMiddleware, mirroring the
// teacher's pattern of layering cross-cutting interceptors around
// method-specific handlers.
func NewRouter(rt *runtime.Runtime, resolve TokenResolver) (*mux.Router, error) {
	api, err := New(rt)
	if err != nil {
		return nil, err
	}
	auth := AuthMiddleware(resolve)
	protect := func(h http.HandlerFunc) http.Handler { return auth(h) }

	r := mux.NewRouter()
	r.Use(RequestLoggingMiddleware)
	r.Use(RequestMetricsMiddleware)

	r.HandleFunc("/v1/hardware/export", api.Export).Methods("GET")

	r.Handle("/v1/hardware", protect(api.List)).Methods("GET")
	r.Handle("/v1/hardware", protect(api.Enroll)).Methods("POST")
	r.Handle("/v1/hardware/{uuid}", protect(api.Get)).Methods("GET")
	r.Handle("/v1/hardware/{uuid}", protect(api.Patch)).Methods("PATCH")
	r.Handle("/v1/hardware/{uuid}", protect(api.Destroy)).Methods("DELETE")
	r.Handle("/v1/hardware/{uuid}/sync", protect(api.Sync)).Methods("POST")
	r.Handle("/v1/hardware/{uuid}/availability", protect(api.Availability)).Methods("GET")

	return r, nil
}
