package square

import (
	"encoding/json"
	"time"

	"github.com/profitlens/profitlens/internal/models"
	"github.com/shopspring/decimal"
)

// Reconciliation: pure in-memory merge of catalog, tax, inventory-count
// and last-sold data into flat per-variation cache records. All derivations
// use defensive defaults so malformed upstream data never aborts a sync.

// defaultVariationName is what an empty variation name normalizes to
const defaultVariationName = "Regular"

// partitionCatalog splits raw catalog objects into items and taxes
func partitionCatalog(objects []CatalogObject) (items, taxes []CatalogObject) {
	for _, obj := range objects {
		switch obj.Type {
		case "ITEM":
			items = append(items, obj)
		case "TAX":
			taxes = append(taxes, obj)
		}
	}
	return items, taxes
}

// buildTaxLookup maps tax id to its resolved display info. Enabled
// defaults to true unless the upstream explicitly says false.
func buildTaxLookup(taxes []CatalogObject) map[string]models.TaxInfo {
	lookup := make(map[string]models.TaxInfo, len(taxes))
	for _, tax := range taxes {
		info := models.TaxInfo{Name: "Unknown Tax", Percentage: "0", Enabled: true}
		if tax.TaxData != nil {
			if tax.TaxData.Name != "" {
				info.Name = tax.TaxData.Name
			}
			if tax.TaxData.Percentage != "" {
				info.Percentage = tax.TaxData.Percentage
			}
			if tax.TaxData.Enabled != nil {
				info.Enabled = *tax.TaxData.Enabled
			}
		}
		lookup[tax.ID] = info
	}
	return lookup
}

// collectVariationIDs gathers variation ids across all non-archived items
func collectVariationIDs(items []CatalogObject) []string {
	var ids []string
	for _, item := range items {
		if item.ItemData == nil || item.ItemData.IsArchived {
			continue
		}
		for _, variation := range item.ItemData.Variations {
			ids = append(ids, variation.ID)
		}
	}
	return ids
}

// buildRecords flattens non-archived items into one cache record per
// variation, joining in tax, stock and last-sold data.
func buildRecords(
	items []CatalogObject,
	taxLookup map[string]models.TaxInfo,
	counts map[string]int,
	lastSold map[string]time.Time,
) []models.CachedVariation {
	var records []models.CachedVariation

	for _, item := range items {
		if item.ItemData == nil || item.ItemData.IsArchived {
			continue
		}

		// Unknown tax ids are dropped, not surfaced as placeholders
		taxInfo := make([]models.TaxInfo, 0, len(item.ItemData.TaxIDs))
		for _, taxID := range item.ItemData.TaxIDs {
			if info, ok := taxLookup[taxID]; ok {
				taxInfo = append(taxInfo, info)
			}
		}
		taxJSON, err := json.Marshal(taxInfo)
		if err != nil {
			taxJSON = []byte("[]")
		}

		for _, variation := range item.ItemData.Variations {
			records = append(records, buildRecord(item, variation, taxJSON, counts, lastSold))
		}
	}

	return records
}

func buildRecord(
	item CatalogObject,
	variation CatalogObject,
	taxJSON []byte,
	counts map[string]int,
	lastSold map[string]time.Time,
) models.CachedVariation {
	varData := variation.ItemVariationData
	if varData == nil {
		varData = &ItemVariationData{}
	}

	price := decimal.Zero
	if varData.PriceMoney != nil {
		price = decimal.New(varData.PriceMoney.Amount, -2)
	}

	// Declared unit cost wins; first vendor quote is the fallback
	var costPrice *decimal.Decimal
	if varData.DefaultUnitCost != nil && varData.DefaultUnitCost.Amount != 0 {
		cost := decimal.New(varData.DefaultUnitCost.Amount, -2)
		costPrice = &cost
	} else if len(varData.VendorInfos) > 0 {
		vendor := varData.VendorInfos[0]
		if vendor.Data != nil && vendor.Data.PriceMoney != nil && vendor.Data.PriceMoney.Amount != 0 {
			cost := decimal.New(vendor.Data.PriceMoney.Amount, -2)
			costPrice = &cost
		}
	}

	variationName := varData.Name
	if variationName == "" {
		variationName = defaultVariationName
	}

	fullName := item.ItemData.Name
	if variationName != defaultVariationName {
		fullName = item.ItemData.Name + " - " + variationName
	}

	var lastSoldAt *time.Time
	if soldAt, ok := lastSold[variation.ID]; ok {
		lastSoldAt = &soldAt
	}

	return models.CachedVariation{
		ID:             variation.ID,
		ItemID:         item.ID,
		Name:           item.ItemData.Name,
		VariationName:  variationName,
		FullName:       fullName,
		Price:          price,
		CostPrice:      costPrice,
		SKU:            varData.SKU,
		StockCount:     counts[variation.ID],
		LastSoldAt:     lastSoldAt,
		IsTaxable:      item.ItemData.IsTaxable,
		TaxInfo:        taxJSON,
		TrackInventory: varData.TrackInventory,
	}
}
