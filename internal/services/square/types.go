package square

// Wire types for the POS catalog API. Only the fields the sync reads are
// declared; everything else in the upstream payload is ignored.

// Money is an amount in minor currency units
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// CatalogObject is one entry from the catalog list endpoint. Type selects
// which of the nested data blocks is populated.
type CatalogObject struct {
	Type              string             `json:"type"`
	ID                string             `json:"id"`
	ItemData          *ItemData          `json:"item_data,omitempty"`
	TaxData           *TaxData           `json:"tax_data,omitempty"`
	ItemVariationData *ItemVariationData `json:"item_variation_data,omitempty"`
}

// ItemData is the payload of a catalog object of type ITEM
type ItemData struct {
	Name       string          `json:"name"`
	IsArchived bool            `json:"is_archived"`
	IsTaxable  bool            `json:"is_taxable"`
	TaxIDs     []string        `json:"tax_ids"`
	Variations []CatalogObject `json:"variations"`
}

// TaxData is the payload of a catalog object of type TAX. Enabled is a
// pointer because the upstream omits it when the tax is enabled.
type TaxData struct {
	Name       string `json:"name"`
	Percentage string `json:"percentage"`
	Enabled    *bool  `json:"enabled"`
}

// ItemVariationData is the payload of a variation nested under an item
type ItemVariationData struct {
	Name            string       `json:"name"`
	SKU             string       `json:"sku"`
	PriceMoney      *Money       `json:"price_money"`
	DefaultUnitCost *Money       `json:"default_unit_cost"`
	TrackInventory  bool         `json:"track_inventory"`
	VendorInfos     []VendorInfo `json:"item_variation_vendor_infos"`
}

// VendorInfo wraps a vendor-quoted cost for a variation
type VendorInfo struct {
	Data *VendorInfoData `json:"item_variation_vendor_info_data"`
}

// VendorInfoData carries the vendor's quoted price
type VendorInfoData struct {
	PriceMoney *Money `json:"price_money"`
}

// Merchant is the normalized merchant summary
type Merchant struct {
	Name    string `json:"name"`
	ID      string `json:"id"`
	Country string `json:"country"`
}
