package square

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync/atomic"
	"time"

	"github.com/profitlens/profitlens/internal/cache"
	"github.com/profitlens/profitlens/internal/config"
	"github.com/profitlens/profitlens/internal/models"
)

// Wait after process start before the first scheduler activation so the
// sync does not race application initialization
const startupDelay = 5 * time.Second

// CatalogSource is the slice of the POS API the reconciler consumes
type CatalogSource interface {
	ListCatalogObjects(ctx context.Context) ([]CatalogObject, error)
	ListLocations(ctx context.Context) []string
	GetInventoryCounts(ctx context.Context, variationIDs, locationIDs []string) map[string]int
	GetLastSoldDates(ctx context.Context, variationIDs []string) map[string]time.Time
	GetMerchantInfo(ctx context.Context) Merchant
}

// CacheStore is the persistence surface the sync writes to
type CacheStore interface {
	GetSyncStatus() cache.SyncStatus
	UpdateInventoryCache(records []models.CachedVariation, merchant *models.MerchantCache) bool
}

// SourceFactory builds a catalog source for one sync attempt. Credentials
// are resolved per attempt so token rotation needs no restart.
type SourceFactory func() (CatalogSource, error)

// EnvSource reads POS credentials from the environment and returns a
// client for the configured environment.
func EnvSource() (CatalogSource, error) {
	squareCfg, err := config.LoadSquare()
	if err != nil {
		return nil, err
	}
	return NewClient(squareCfg.AccessToken, squareCfg.IsProduction), nil
}

// SyncResult is the structured outcome of one sync attempt
type SyncResult struct {
	Success   bool    `json:"success"`
	ItemCount int     `json:"itemCount"`
	Duration  float64 `json:"duration,omitempty"`
	Error     string  `json:"error,omitempty"`
}

// SyncService owns the periodic inventory refresh. One service instance is
// created at startup and shared by the scheduler and the HTTP handlers.
// At most one sync runs at a time: the in-flight gate covers both the
// timer and manual triggers.
type SyncService struct {
	store     CacheStore
	newSource SourceFactory
	interval  time.Duration
	stop      chan struct{}
	inFlight  atomic.Bool
}

// NewSyncService creates the sync service
func NewSyncService(store CacheStore, newSource SourceFactory, interval time.Duration) *SyncService {
	return &SyncService{
		store:     store,
		newSource: newSource,
		interval:  interval,
		stop:      make(chan struct{}),
	}
}

// Start begins the background synchronization loop
func (s *SyncService) Start() {
	go func() {
		log.Printf("[BACKGROUND-SYNC] Started (interval: %v)", s.interval)

		select {
		case <-time.After(startupDelay):
		case <-s.stop:
			return
		}

		status := s.store.GetSyncStatus()
		if !status.IsCached {
			log.Println("[BACKGROUND-SYNC] No cache found, performing initial sync...")
			s.runScheduled()
		} else {
			log.Printf("[BACKGROUND-SYNC] Cache exists (%d items)", status.ItemCount)
		}

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.runScheduled()
			case <-s.stop:
				log.Println("[BACKGROUND-SYNC] Stopped")
				return
			}
		}
	}()
}

// Stop halts the background loop
func (s *SyncService) Stop() {
	close(s.stop)
}

// IsRunning reports whether a sync is currently in flight
func (s *SyncService) IsRunning() bool {
	return s.inFlight.Load()
}

// TriggerSync runs a sync unless one is already in flight. The second
// return value is false when the trigger lost the single-flight race.
func (s *SyncService) TriggerSync(ctx context.Context) (SyncResult, bool) {
	if !s.inFlight.CompareAndSwap(false, true) {
		return SyncResult{}, false
	}
	defer s.inFlight.Store(false)

	return s.RunSync(ctx), true
}

func (s *SyncService) runScheduled() {
	result, ran := s.TriggerSync(context.Background())
	if !ran {
		log.Println("[BACKGROUND-SYNC] Sync already in progress, skipping...")
		return
	}
	if result.Success {
		log.Printf("[BACKGROUND-SYNC] ✓ Synced %d items in %.2fs", result.ItemCount, result.Duration)
	} else {
		log.Printf("[BACKGROUND-SYNC] ✗ Sync failed: %s", result.Error)
	}
}

// RunSync performs one full fetch-reconcile-replace cycle. All failures
// come back as a structured result; nothing escapes as a panic. The cache
// is only touched by the final atomic replace, so a failed attempt leaves
// the previous snapshot serving.
func (s *SyncService) RunSync(ctx context.Context) SyncResult {
	start := time.Now()

	source, err := s.newSource()
	if err != nil {
		log.Printf("[SYNC] Error: %v", err)
		return SyncResult{Success: false, Error: err.Error()}
	}

	log.Println("[SYNC] Starting inventory sync...")

	// Non-fatal: degrades to a sentinel merchant
	merchant := source.GetMerchantInfo(ctx)

	objects, err := source.ListCatalogObjects(ctx)
	if err != nil {
		log.Printf("[SYNC] Error: %v", err)
		return SyncResult{Success: false, Error: err.Error()}
	}

	items, taxes := partitionCatalog(objects)
	log.Printf("[SYNC] Found %d items and %d taxes", len(items), len(taxes))

	taxLookup := buildTaxLookup(taxes)
	variationIDs := collectVariationIDs(items)
	log.Printf("[SYNC] Found %d variations", len(variationIDs))

	locationIDs := source.ListLocations(ctx)
	counts := source.GetInventoryCounts(ctx, variationIDs, locationIDs)
	lastSold := source.GetLastSoldDates(ctx, variationIDs)

	records := buildRecords(items, taxLookup, counts, lastSold)

	merchantRow := &models.MerchantCache{
		Name:       merchant.Name,
		MerchantID: merchant.ID,
		Country:    merchant.Country,
	}
	if !s.store.UpdateInventoryCache(records, merchantRow) {
		err := fmt.Errorf("failed to update inventory cache")
		log.Printf("[SYNC] Error: %v", err)
		return SyncResult{Success: false, Error: err.Error()}
	}

	duration := math.Round(time.Since(start).Seconds()*100) / 100
	log.Printf("[SYNC] ✓ Synced %d items in %.2fs", len(records), duration)

	return SyncResult{
		Success:   true,
		ItemCount: len(records),
		Duration:  duration,
	}
}
