package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/profitlens/profitlens/internal/middleware"
	"github.com/shopspring/decimal"
)

// getInventory serves the cached inventory with cost overrides merged in.
// An empty cache triggers one blocking initial sync before serving.
func (r *Router) getInventory(w http.ResponseWriter, req *http.Request) {
	status := r.cache.GetSyncStatus()

	if !status.IsCached {
		log.Println("[INVENTORY] Cache empty, performing initial sync...")
		result, ran := r.syncer.TriggerSync(req.Context())
		if !ran {
			// Another sync is filling the cache right now
			respondError(w, http.StatusServiceUnavailable, "Sync in progress, try again shortly")
			return
		}
		if !result.Success {
			respondError(w, http.StatusInternalServerError, result.Error)
			return
		}
	}

	items, err := r.cache.GetCachedInventory()
	if err != nil {
		log.Printf("[INVENTORY] Error: %v", err)
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Manual overrides take precedence over the synced cost price
	overrides := r.costs.Read()
	for i := range items {
		if cost, ok := overrides[items[i].ID]; ok {
			overridden := decimal.NewFromFloat(cost)
			items[i].CostPrice = &overridden
		}
	}

	merchant := r.cache.GetCachedMerchant()
	lastSync := r.cache.GetSyncStatus().LastSync

	log.Printf("[INVENTORY] Serving %d cached items", len(items))

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"merchant": merchant,
		"items":    items,
		"cached":   true,
		"lastSync": lastSync,
	})
}

// triggerSync runs a manual refresh. Admin only.
func (r *Router) triggerSync(w http.ResponseWriter, req *http.Request) {
	if !middleware.IsAdmin(req) {
		respondError(w, http.StatusForbidden, "Forbidden - Admin access required")
		return
	}

	claims := middleware.ClaimsFrom(req)
	log.Printf("[SYNC] Manual sync triggered by %v", claims["email"])

	result, ran := r.syncer.TriggerSync(req.Context())
	if !ran {
		respondError(w, http.StatusConflict, "Sync already in progress")
		return
	}

	if !result.Success {
		respondJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"success": false,
			"error":   result.Error,
		})
		return
	}

	status := r.cache.GetSyncStatus()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"message":   "Sync completed",
		"itemCount": result.ItemCount,
		"duration":  result.Duration,
		"lastSync":  status.LastSync,
	})
}

// getSyncStatus reports cache freshness and scheduler state
func (r *Router) getSyncStatus(w http.ResponseWriter, req *http.Request) {
	status := r.cache.GetSyncStatus()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"lastSync":    status.LastSync,
		"itemCount":   status.ItemCount,
		"hasMerchant": status.HasMerchant,
		"isCached":    status.IsCached,
		"isRunning":   r.syncer.IsRunning(),
	})
}

// getCostOverrides returns all manual cost overrides
func (r *Router) getCostOverrides(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, r.costs.Read())
}

// setCostOverride stores or removes one override. A null cost removes it.
func (r *Router) setCostOverride(w http.ResponseWriter, req *http.Request) {
	var body struct {
		ID   string   `json:"id"`
		Cost *float64 `json:"cost"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.ID == "" {
		respondError(w, http.StatusBadRequest, "Missing item id")
		return
	}

	var err error
	if body.Cost == nil {
		err = r.costs.Remove(body.ID)
	} else {
		err = r.costs.Set(body.ID, *body.Cost)
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to save cost override")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"overrides": r.costs.Read(),
	})
}

// deleteCostOverride removes one override
func (r *Router) deleteCostOverride(w http.ResponseWriter, req *http.Request) {
	var body struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.ID == "" {
		respondError(w, http.StatusBadRequest, "Missing item id")
		return
	}

	if err := r.costs.Remove(body.ID); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to delete cost override")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"overrides": r.costs.Read(),
	})
}

// clearCache wipes the local cache. Admin only; the next scheduled or
// manual sync repopulates it.
func (r *Router) clearCache(w http.ResponseWriter, req *http.Request) {
	if !middleware.IsAdmin(req) {
		respondError(w, http.StatusForbidden, "Forbidden - Admin access required")
		return
	}

	if !r.cache.ClearCache() {
		respondError(w, http.StatusInternalServerError, "Failed to clear cache")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
	})
}
