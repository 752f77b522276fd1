package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/profitlens/profitlens/internal/cache"
	"github.com/profitlens/profitlens/internal/config"
	"github.com/profitlens/profitlens/internal/database"
	"github.com/profitlens/profitlens/internal/middleware"
	"github.com/profitlens/profitlens/internal/models"
	"github.com/profitlens/profitlens/internal/services/square"
)

// InventoryCache is the read/reset surface of the inventory cache store
type InventoryCache interface {
	GetSyncStatus() cache.SyncStatus
	GetCachedInventory() ([]models.CachedVariation, error)
	GetCachedMerchant() *models.MerchantCache
	ClearCache() bool
}

// CostOverrides is the manual cost price override store
type CostOverrides interface {
	Read() map[string]float64
	Set(id string, cost float64) error
	Remove(id string) error
}

// Syncer triggers inventory syncs
type Syncer interface {
	TriggerSync(ctx context.Context) (square.SyncResult, bool)
	IsRunning() bool
}

// Router wraps the mux router and the service dependencies
type Router struct {
	*mux.Router
	db     *database.DB
	cfg    *config.Config
	cache  InventoryCache
	costs  CostOverrides
	syncer Syncer
}

// NewRouter creates a new HTTP router with all routes
func NewRouter(db *database.DB, cfg *config.Config, cacheStore InventoryCache, costStore CostOverrides, syncer Syncer) *Router {
	r := &Router{
		Router: mux.NewRouter(),
		db:     db,
		cfg:    cfg,
		cache:  cacheStore,
		costs:  costStore,
		syncer: syncer,
	}

	// Health check endpoint
	r.HandleFunc("/health", r.healthCheck).Methods("GET")

	// Auth routes
	r.HandleFunc("/auth/login", r.login).Methods("POST")

	// API routes (protected)
	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.Auth(cfg.JWTSecret))
	api.HandleFunc("/inventory", r.getInventory).Methods("GET")
	api.HandleFunc("/inventory/sync", r.triggerSync).Methods("POST")
	api.HandleFunc("/sync/status", r.getSyncStatus).Methods("GET")
	api.HandleFunc("/cost-overrides", r.getCostOverrides).Methods("GET")
	api.HandleFunc("/cost-overrides", r.setCostOverride).Methods("POST")
	api.HandleFunc("/cost-overrides", r.deleteCostOverride).Methods("DELETE")
	api.HandleFunc("/cache/clear", r.clearCache).Methods("POST")

	return r
}

// healthCheck returns the health status of the API
func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
