package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// apiPrefix is where the index API is mounted.
const apiPrefix = "/api/index"

// RegisterRoutes adds the health, version, and index API routes to r.
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/healthz", h.HealthCheck).Methods(http.MethodGet).Name("healthz")
	r.HandleFunc("/livez", h.LivenessCheck).Methods(http.MethodGet, http.MethodHead).Name("livez")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods(http.MethodGet).Name("readyz")
	r.HandleFunc("/version", h.GetVersion).Methods(http.MethodGet).Name("version")

	// Full paths on the root router so a method mismatch answers 405.
	r.HandleFunc(apiPrefix+"/stats", h.GetStats).Methods(http.MethodGet)
	r.HandleFunc(apiPrefix+"/search", h.Search).Methods(http.MethodGet)
	r.HandleFunc(apiPrefix+"/children", h.ListChildren).Methods(http.MethodGet)
	r.HandleFunc(apiPrefix+"/media", h.FindMedia).Methods(http.MethodGet)
	r.HandleFunc(apiPrefix+"/random", h.RandomImage).Methods(http.MethodGet)
	r.HandleFunc(apiPrefix+"/entry", h.GetEntry).Methods(http.MethodGet)
	r.HandleFunc(apiPrefix+"/entry", h.RecordEntry).Methods(http.MethodPut)
	r.HandleFunc(apiPrefix+"/entry", h.DeleteEntry).Methods(http.MethodDelete)
	r.HandleFunc(apiPrefix+"/entries", h.SaveEntries).Methods(http.MethodPost)
	r.HandleFunc(apiPrefix+"/export", h.Export).Methods(http.MethodGet)
	r.HandleFunc(apiPrefix+"/build", h.TriggerBuild).Methods(http.MethodPost)
}
