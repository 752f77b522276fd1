package square

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/profitlens/profitlens/internal/cache"
	"github.com/profitlens/profitlens/internal/models"
	"github.com/shopspring/decimal"
)

func mustDecimal(t *testing.T, value string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(value)
	if err != nil {
		t.Fatalf("Bad decimal literal %q: %v", value, err)
	}
	return d
}

type fakeSource struct {
	objects   []CatalogObject
	listErr   error
	locations []string
	counts    map[string]int
	lastSold  map[string]time.Time
	merchant  Merchant

	countsIDs []string
	soldIDs   []string
	listGate  chan struct{}
}

func (f *fakeSource) ListCatalogObjects(ctx context.Context) ([]CatalogObject, error) {
	if f.listGate != nil {
		<-f.listGate
	}
	return f.objects, f.listErr
}

func (f *fakeSource) ListLocations(ctx context.Context) []string { return f.locations }

func (f *fakeSource) GetInventoryCounts(ctx context.Context, variationIDs, locationIDs []string) map[string]int {
	f.countsIDs = variationIDs
	return f.counts
}

func (f *fakeSource) GetLastSoldDates(ctx context.Context, variationIDs []string) map[string]time.Time {
	f.soldIDs = variationIDs
	return f.lastSold
}

func (f *fakeSource) GetMerchantInfo(ctx context.Context) Merchant { return f.merchant }

type fakeStore struct {
	status    cache.SyncStatus
	failWrite bool

	records  []models.CachedVariation
	merchant *models.MerchantCache
	writes   int
}

func (f *fakeStore) GetSyncStatus() cache.SyncStatus { return f.status }

func (f *fakeStore) UpdateInventoryCache(records []models.CachedVariation, merchant *models.MerchantCache) bool {
	if f.failWrite {
		return false
	}
	f.records = records
	f.merchant = merchant
	f.writes++
	return true
}

func newTestService(source CatalogSource, store CacheStore) *SyncService {
	return NewSyncService(store, func() (CatalogSource, error) { return source, nil }, time.Minute)
}

func variationObj(id, name string, priceCents int64) CatalogObject {
	return CatalogObject{
		ID: id,
		ItemVariationData: &ItemVariationData{
			Name:       name,
			PriceMoney: &Money{Amount: priceCents, Currency: "USD"},
		},
	}
}

func itemObj(id, name string, archived bool, variations ...CatalogObject) CatalogObject {
	return CatalogObject{
		Type: "ITEM",
		ID:   id,
		ItemData: &ItemData{
			Name:       name,
			IsArchived: archived,
			Variations: variations,
		},
	}
}

func TestRunSync_RecordPerVariation(t *testing.T) {
	source := &fakeSource{
		objects: []CatalogObject{
			itemObj("i1", "T-Shirt", false,
				variationObj("v1", "Small", 1000),
				variationObj("v2", "Large", 1200),
			),
			itemObj("i2", "Mug", false, variationObj("v3", "", 800)),
		},
		merchant: Merchant{Name: "Corner Shop", ID: "M1", Country: "US"},
	}
	store := &fakeStore{}

	result := newTestService(source, store).RunSync(context.Background())

	if !result.Success {
		t.Fatalf("Expected success, got error %q", result.Error)
	}
	if result.ItemCount != 3 {
		t.Errorf("Expected 3 records (one per variation), got %d", result.ItemCount)
	}
	if len(store.records) != 3 {
		t.Fatalf("Expected 3 records written, got %d", len(store.records))
	}
	if store.merchant == nil || store.merchant.Name != "Corner Shop" {
		t.Errorf("Expected merchant written, got %+v", store.merchant)
	}

	// Variation ids from non-archived items feed the batch fetches
	if !reflect.DeepEqual(source.countsIDs, []string{"v1", "v2", "v3"}) {
		t.Errorf("Unexpected variation ids for counts: %v", source.countsIDs)
	}
}

func TestRunSync_FullNameRules(t *testing.T) {
	source := &fakeSource{
		objects: []CatalogObject{
			itemObj("i1", "Widget", false,
				variationObj("v1", "", 100),
				variationObj("v2", "Large", 100),
				variationObj("v3", "Regular", 100),
			),
		},
	}
	store := &fakeStore{}

	newTestService(source, store).RunSync(context.Background())

	byID := map[string]models.CachedVariation{}
	for _, rec := range store.records {
		byID[rec.ID] = rec
	}

	if byID["v1"].VariationName != "Regular" || byID["v1"].FullName != "Widget" {
		t.Errorf("Empty variation name should normalize to Regular/Widget, got %q/%q",
			byID["v1"].VariationName, byID["v1"].FullName)
	}
	if byID["v2"].FullName != "Widget - Large" {
		t.Errorf("Expected 'Widget - Large', got %q", byID["v2"].FullName)
	}
	if byID["v3"].FullName != "Widget" {
		t.Errorf("Explicit Regular should not be appended, got %q", byID["v3"].FullName)
	}
}

func TestBuildRecords_CostPriceFallback(t *testing.T) {
	declared := CatalogObject{ID: "v1", ItemVariationData: &ItemVariationData{
		DefaultUnitCost: &Money{Amount: 300},
		VendorInfos: []VendorInfo{
			{Data: &VendorInfoData{PriceMoney: &Money{Amount: 999}}},
		},
	}}
	vendorOnly := CatalogObject{ID: "v2", ItemVariationData: &ItemVariationData{
		VendorInfos: []VendorInfo{
			{Data: &VendorInfoData{PriceMoney: &Money{Amount: 450}}},
		},
	}}
	neither := CatalogObject{ID: "v3", ItemVariationData: &ItemVariationData{}}

	items := []CatalogObject{itemObj("i1", "Widget", false, declared, vendorOnly, neither)}
	records := buildRecords(items, nil, nil, nil)

	byID := map[string]models.CachedVariation{}
	for _, rec := range records {
		byID[rec.ID] = rec
	}

	if got := byID["v1"].CostPrice; got == nil || !got.Equal(mustDecimal(t, "3")) {
		t.Errorf("Declared unit cost should win, got %v", got)
	}
	if got := byID["v2"].CostPrice; got == nil || !got.Equal(mustDecimal(t, "4.5")) {
		t.Errorf("Vendor price should be the fallback, got %v", got)
	}
	if byID["v3"].CostPrice != nil {
		t.Errorf("Expected nil cost price, got %v", byID["v3"].CostPrice)
	}
}

func TestBuildRecords_ArchivedExcluded(t *testing.T) {
	items := []CatalogObject{
		itemObj("i1", "Live", false, variationObj("v1", "", 100)),
		itemObj("i2", "Gone", true,
			variationObj("v2", "", 100),
			variationObj("v3", "", 100),
		),
	}

	records := buildRecords(items, nil, nil, nil)

	if len(records) != 1 || records[0].ID != "v1" {
		t.Errorf("Archived items should contribute zero records, got %v", records)
	}
}

func TestBuildRecords_StockAndLastSoldDefaults(t *testing.T) {
	items := []CatalogObject{
		itemObj("i1", "Widget", false,
			variationObj("v1", "", 100),
			variationObj("v2", "", 100),
		),
	}
	soldAt := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	records := buildRecords(items,
		nil,
		map[string]int{"v1": 5},
		map[string]time.Time{"v1": soldAt},
	)

	byID := map[string]models.CachedVariation{}
	for _, rec := range records {
		byID[rec.ID] = rec
	}

	if byID["v1"].StockCount != 5 {
		t.Errorf("Expected stock 5, got %d", byID["v1"].StockCount)
	}
	if byID["v1"].LastSoldAt == nil || !byID["v1"].LastSoldAt.Equal(soldAt) {
		t.Errorf("Expected last sold %v, got %v", soldAt, byID["v1"].LastSoldAt)
	}
	if byID["v2"].StockCount != 0 {
		t.Errorf("Missing count should default to 0, got %d", byID["v2"].StockCount)
	}
	if byID["v2"].LastSoldAt != nil {
		t.Errorf("Missing last-sold should stay nil, got %v", byID["v2"].LastSoldAt)
	}
}

func TestBuildTaxLookup(t *testing.T) {
	disabled := false
	taxes := []CatalogObject{
		{Type: "TAX", ID: "t1", TaxData: &TaxData{Name: "VAT", Percentage: "19", Enabled: &disabled}},
		{Type: "TAX", ID: "t2", TaxData: &TaxData{Name: "GST", Percentage: "5"}},
		{Type: "TAX", ID: "t3"},
	}

	lookup := buildTaxLookup(taxes)

	if lookup["t1"].Enabled {
		t.Error("Explicit enabled=false should be honored")
	}
	if !lookup["t2"].Enabled {
		t.Error("Missing enabled flag should default to true")
	}
	if lookup["t3"].Name != "Unknown Tax" || lookup["t3"].Percentage != "0" {
		t.Errorf("Missing tax data should use defaults, got %+v", lookup["t3"])
	}
}

func TestBuildRecords_UnknownTaxDropped(t *testing.T) {
	item := itemObj("i1", "Widget", false, variationObj("v1", "", 100))
	item.ItemData.IsTaxable = true
	item.ItemData.TaxIDs = []string{"t1", "t-missing"}

	lookup := map[string]models.TaxInfo{
		"t1": {Name: "VAT", Percentage: "19", Enabled: true},
	}

	records := buildRecords([]CatalogObject{item}, lookup, nil, nil)

	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records))
	}
	if !records[0].IsTaxable {
		t.Error("Expected taxable flag carried over")
	}
	if string(records[0].TaxInfo) != `[{"name":"VAT","percentage":"19","enabled":true}]` {
		t.Errorf("Unknown tax ids should be dropped, got %s", records[0].TaxInfo)
	}
}

func TestRunSync_ConfigError(t *testing.T) {
	store := &fakeStore{}
	service := NewSyncService(store, func() (CatalogSource, error) {
		return nil, errors.New("missing SQUARE_ACCESS_TOKEN")
	}, time.Minute)

	result := service.RunSync(context.Background())

	if result.Success {
		t.Error("Expected failure on configuration error")
	}
	if result.Error != "missing SQUARE_ACCESS_TOKEN" {
		t.Errorf("Expected configuration error surfaced, got %q", result.Error)
	}
	if store.writes != 0 {
		t.Error("Cache must stay untouched on configuration error")
	}
}

func TestRunSync_CatalogFailureIsFatal(t *testing.T) {
	source := &fakeSource{listErr: &APIError{StatusCode: 500, Body: "boom"}}
	store := &fakeStore{}

	result := newTestService(source, store).RunSync(context.Background())

	if result.Success {
		t.Error("Catalog listing failure must fail the sync")
	}
	if store.writes != 0 {
		t.Error("Cache must stay untouched when the catalog fetch fails")
	}
}

func TestRunSync_SecondaryFailuresDegrade(t *testing.T) {
	// Locations, counts, last-sold and merchant all unavailable
	source := &fakeSource{
		objects:  []CatalogObject{itemObj("i1", "Widget", false, variationObj("v1", "", 100))},
		merchant: Merchant{Name: "Unknown Business"},
	}
	store := &fakeStore{}

	result := newTestService(source, store).RunSync(context.Background())

	if !result.Success {
		t.Fatalf("Secondary failures must not abort the sync: %q", result.Error)
	}
	if store.records[0].StockCount != 0 || store.records[0].LastSoldAt != nil {
		t.Errorf("Expected degraded defaults, got %+v", store.records[0])
	}
	if store.merchant.Name != "Unknown Business" {
		t.Errorf("Expected sentinel merchant cached, got %+v", store.merchant)
	}
}

func TestRunSync_CacheWriteFailure(t *testing.T) {
	source := &fakeSource{
		objects: []CatalogObject{itemObj("i1", "Widget", false, variationObj("v1", "", 100))},
	}
	store := &fakeStore{failWrite: true}

	result := newTestService(source, store).RunSync(context.Background())

	if result.Success {
		t.Error("Expected failure when the cache write fails")
	}
	if result.Error == "" {
		t.Error("Expected an error message on cache write failure")
	}
}

func TestRunSync_Idempotent(t *testing.T) {
	source := &fakeSource{
		objects: []CatalogObject{
			itemObj("i1", "T-Shirt", false,
				variationObj("v1", "Small", 1000),
				variationObj("v2", "Large", 1200),
			),
		},
		counts: map[string]int{"v1": 3},
	}
	store := &fakeStore{}
	service := newTestService(source, store)

	service.RunSync(context.Background())
	first := store.records

	service.RunSync(context.Background())
	second := store.records

	if !reflect.DeepEqual(first, second) {
		t.Errorf("Unchanged upstream data must produce an identical record set:\n%v\n%v", first, second)
	}
}

func TestTriggerSync_SingleFlight(t *testing.T) {
	gate := make(chan struct{})
	source := &fakeSource{listGate: gate}
	store := &fakeStore{}
	service := newTestService(source, store)

	done := make(chan SyncResult, 1)
	go func() {
		result, _ := service.TriggerSync(context.Background())
		done <- result
	}()

	// Wait for the first sync to take the gate
	for i := 0; i < 100 && !service.IsRunning(); i++ {
		time.Sleep(5 * time.Millisecond)
	}
	if !service.IsRunning() {
		t.Fatal("First sync never started")
	}

	if _, ran := service.TriggerSync(context.Background()); ran {
		t.Error("Second trigger must lose the single-flight race")
	}

	close(gate)
	result := <-done

	if !result.Success {
		t.Errorf("First sync should complete successfully, got %q", result.Error)
	}
	if _, ran := service.TriggerSync(context.Background()); !ran {
		t.Error("Gate must be released after the sync finishes")
	}
}

func TestBatchingBoundaryIDs(t *testing.T) {
	// 250 variations spread over several items reach the batch fetches intact
	var variations []CatalogObject
	for i := 0; i < 250; i++ {
		variations = append(variations, variationObj(fmt.Sprintf("v%d", i), "", 100))
	}
	source := &fakeSource{objects: []CatalogObject{itemObj("i1", "Bulk", false, variations...)}}
	store := &fakeStore{}

	newTestService(source, store).RunSync(context.Background())

	if len(source.countsIDs) != 250 || len(source.soldIDs) != 250 {
		t.Errorf("Expected all 250 variation ids passed through, got %d/%d",
			len(source.countsIDs), len(source.soldIDs))
	}
	if got := batches(source.countsIDs, batchSize); len(got) != 3 {
		t.Errorf("Expected 250 ids to split into 3 batches, got %d", len(got))
	}
}
