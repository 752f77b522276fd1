package cache

import (
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/profitlens/profitlens/internal/database"
	"github.com/profitlens/profitlens/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const lastSyncKey = "last_sync"

// SyncStatus summarizes the state of the local inventory cache.
// LastSync is unix milliseconds, nil when no sync has ever succeeded.
type SyncStatus struct {
	LastSync    *int64 `json:"lastSync"`
	ItemCount   int    `json:"itemCount"`
	HasMerchant bool   `json:"hasMerchant"`
	IsCached    bool   `json:"isCached"`
}

// Store is the durable inventory cache. Reads go straight to the database;
// the replace-all write path is serialized by a mutex and committed as a
// single transaction so readers never observe a torn snapshot.
type Store struct {
	db *database.DB
	mu sync.Mutex
}

// NewStore creates a cache store over an open database handle
func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

// GetLastSyncTime returns the last successful sync as unix milliseconds
func (s *Store) GetLastSyncTime() *int64 {
	var meta models.SyncMetadata
	if err := s.db.Where("key = ?", lastSyncKey).First(&meta).Error; err != nil {
		return nil
	}
	return parseMillis(meta.Value)
}

// GetSyncStatus returns the cache bookkeeping summary
func (s *Store) GetSyncStatus() SyncStatus {
	var itemCount, merchantCount int64
	if err := s.db.Model(&models.CachedVariation{}).Count(&itemCount).Error; err != nil {
		log.Printf("[CACHE] Error counting cached items: %v", err)
	}
	if err := s.db.Model(&models.MerchantCache{}).Count(&merchantCount).Error; err != nil {
		log.Printf("[CACHE] Error counting cached merchant: %v", err)
	}

	return SyncStatus{
		LastSync:    s.GetLastSyncTime(),
		ItemCount:   int(itemCount),
		HasMerchant: merchantCount > 0,
		IsCached:    itemCount > 0,
	}
}

// GetCachedInventory returns all cached variations
func (s *Store) GetCachedInventory() ([]models.CachedVariation, error) {
	var items []models.CachedVariation
	if err := s.db.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// GetCachedMerchant returns the cached merchant, or nil if none is cached
func (s *Store) GetCachedMerchant() *models.MerchantCache {
	var merchant models.MerchantCache
	if err := s.db.First(&merchant).Error; err != nil {
		return nil
	}
	return &merchant
}

// UpdateInventoryCache replaces the entire cache contents in one
// transaction: delete all rows, insert the merchant and the new record
// set, and bump the last-sync timestamp. Returns false and leaves the
// previous snapshot intact if any step fails.
func (s *Store) UpdateInventoryCache(records []models.CachedVariation, merchant *models.MerchantCache) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.CachedVariation{}).Error; err != nil {
			return err
		}
		if err := tx.Where("1 = 1").Delete(&models.MerchantCache{}).Error; err != nil {
			return err
		}

		if merchant != nil {
			merchant.ID = "default"
			merchant.UpdatedAt = now
			if err := tx.Create(merchant).Error; err != nil {
				return err
			}
		}

		for i := range records {
			records[i].UpdatedAt = now
		}
		if len(records) > 0 {
			if err := tx.CreateInBatches(records, 500).Error; err != nil {
				return err
			}
		}

		meta := models.SyncMetadata{
			Key:       lastSyncKey,
			Value:     strconv.FormatInt(now.UnixMilli(), 10),
			UpdatedAt: now,
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			UpdateAll: true,
		}).Create(&meta).Error
	})

	if err != nil {
		log.Printf("[CACHE] Error updating inventory cache: %v", err)
		return false
	}

	log.Printf("[CACHE] ✓ Cached %d items", len(records))
	return true
}

// ClearCache wipes records, merchant and sync metadata. Operational reset
// only; the sync path never calls this.
func (s *Store) ClearCache() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.CachedVariation{}).Error; err != nil {
			return err
		}
		if err := tx.Where("1 = 1").Delete(&models.MerchantCache{}).Error; err != nil {
			return err
		}
		return tx.Where("1 = 1").Delete(&models.SyncMetadata{}).Error
	})

	if err != nil {
		log.Printf("[CACHE] Error clearing cache: %v", err)
		return false
	}

	log.Println("[CACHE] ✓ Cache cleared")
	return true
}

// parseMillis converts a stored millisecond timestamp, nil on bad input
func parseMillis(value string) *int64 {
	millis, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return nil
	}
	return &millis
}
