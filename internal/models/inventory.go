package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// TaxInfo is one tax definition resolved onto a cached variation.
type TaxInfo struct {
	Name       string `json:"name"`
	Percentage string `json:"percentage"`
	Enabled    bool   `json:"enabled"`
}

// CachedVariation is one sellable variation in the local inventory cache.
// The whole table is replaced on every successful sync; rows are never
// mutated in place.
type CachedVariation struct {
	ID             string           `gorm:"primaryKey" json:"id"`
	ItemID         string           `gorm:"index" json:"itemId"`
	Name           string           `gorm:"index" json:"name"`
	VariationName  string           `json:"variationName"`
	FullName       string           `json:"fullName"`
	Price          decimal.Decimal  `gorm:"type:numeric(12,2)" json:"price"`
	CostPrice      *decimal.Decimal `gorm:"type:numeric(12,2)" json:"costPrice"`
	SKU            string           `gorm:"index" json:"sku"`
	StockCount     int              `json:"stockCount"`
	LastSoldAt     *time.Time       `json:"lastSoldAt"`
	IsTaxable      bool             `json:"isTaxable"`
	TaxInfo        datatypes.JSON   `gorm:"type:jsonb" json:"taxInfo"`
	TrackInventory bool             `json:"trackInventory"`
	UpdatedAt      time.Time        `json:"updatedAt"`
}

func (CachedVariation) TableName() string { return "inventory_cache" }

// MerchantCache holds the single cached merchant row (key "default")
type MerchantCache struct {
	ID         string    `gorm:"primaryKey" json:"-"`
	Name       string    `json:"name"`
	MerchantID string    `json:"id"`
	Country    string    `json:"country"`
	UpdatedAt  time.Time `json:"-"`
}

func (MerchantCache) TableName() string { return "merchant_cache" }

// SyncMetadata is a key-value row for sync bookkeeping
type SyncMetadata struct {
	Key       string    `gorm:"primaryKey" json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (SyncMetadata) TableName() string { return "sync_metadata" }
