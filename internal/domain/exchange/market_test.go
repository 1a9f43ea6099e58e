package exchange_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/pharma-exchange/internal/domain/exchange"
	"github.com/example/pharma-exchange/internal/domain/stock"
	"github.com/example/pharma-exchange/internal/infrastructure/store"
)

type marketFixture struct {
	market *exchange.Market
	ledger *stock.Ledger
	mem    *store.Memory
	drugID string
	itemID string
}

func newMarketFixture(t *testing.T, amount int) *marketFixture {
	t.Helper()
	ctx := context.Background()

	mem := store.NewMemory()
	ledger := stock.NewLedger(mem, nil, nil)
	market := exchange.NewMarket(mem, nil, nil)

	company, err := mem.CreateCompany(ctx, "Roche", "#0000ff")
	require.NoError(t, err)
	pharmacy, err := mem.CreatePharmacy(ctx, "East Side Pharmacy", "2 Elm St")
	require.NoError(t, err)
	drug, err := mem.CreateDrug(ctx, "Valium", company.ID, "sedative")
	require.NoError(t, err)

	item, err := ledger.CreateItem(ctx, stock.CreateItemParams{
		DrugID:     drug.ID,
		CompanyID:  company.ID,
		PharmacyID: pharmacy.ID,
		Amount:     amount,
		Price:      2500,
		Expiration: time.Now().AddDate(1, 0, 0),
	})
	require.NoError(t, err)

	return &marketFixture{
		market: market,
		ledger: ledger,
		mem:    mem,
		drugID: drug.ID,
		itemID: item.ID,
	}
}

func TestMarket_List(t *testing.T) {
	f := newMarketFixture(t, 20)
	ctx := context.Background()

	listing, err := f.market.List(ctx, f.itemID, 8, 3000)
	require.NoError(t, err)
	assert.Equal(t, f.itemID, listing.ItemID)
	assert.Equal(t, 8, listing.ListedAmount)
	assert.Equal(t, 3000, listing.UnitPrice)

	// Listed quantity leaves the item's own pool.
	item, err := f.ledger.Item(ctx, f.itemID)
	require.NoError(t, err)
	assert.Equal(t, 12, item.TotalAmount)
}

func TestMarket_List_InvalidAmount(t *testing.T) {
	f := newMarketFixture(t, 20)
	ctx := context.Background()

	for _, amount := range []int{0, -3} {
		_, err := f.market.List(ctx, f.itemID, amount, 3000)
		assert.ErrorIs(t, err, stock.ErrInvalidQuantity)
	}
}

func TestMarket_List_InsufficientStock(t *testing.T) {
	f := newMarketFixture(t, 5)
	ctx := context.Background()

	_, err := f.market.List(ctx, f.itemID, 6, 3000)
	assert.ErrorIs(t, err, stock.ErrInsufficientStock)

	// The failed transfer leaves both sides untouched.
	item, err := f.ledger.Item(ctx, f.itemID)
	require.NoError(t, err)
	assert.Equal(t, 5, item.TotalAmount)

	listings, err := f.market.ListingsByDrug(ctx, f.drugID)
	require.NoError(t, err)
	assert.Empty(t, listings)
}

func TestMarket_List_LockedStockStaysPut(t *testing.T) {
	f := newMarketFixture(t, 10)
	ctx := context.Background()

	require.NoError(t, f.ledger.LockAmount(ctx, f.itemID, 7))

	_, err := f.market.List(ctx, f.itemID, 5, 3000)
	assert.ErrorIs(t, err, stock.ErrInsufficientUnlockedStock)

	item, err := f.ledger.Item(ctx, f.itemID)
	require.NoError(t, err)
	assert.Equal(t, 10, item.TotalAmount)
	assert.Equal(t, 7, item.LockedAmount)
}

func TestMarket_List_AddsToExistingListing(t *testing.T) {
	f := newMarketFixture(t, 20)
	ctx := context.Background()

	first, err := f.market.List(ctx, f.itemID, 5, 3000)
	require.NoError(t, err)

	// A later listing of the same item tops up the existing listing; the
	// original price stands.
	second, err := f.market.List(ctx, f.itemID, 3, 9999)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 8, second.ListedAmount)
	assert.Equal(t, 3000, second.UnitPrice)

	item, err := f.ledger.Item(ctx, f.itemID)
	require.NoError(t, err)
	assert.Equal(t, 12, item.TotalAmount)
}

func TestMarket_List_UnknownItem(t *testing.T) {
	f := newMarketFixture(t, 20)

	_, err := f.market.List(context.Background(), "missing", 1, 100)
	assert.ErrorIs(t, err, stock.ErrItemNotFound)
}

func TestMarket_Delist(t *testing.T) {
	f := newMarketFixture(t, 20)
	ctx := context.Background()

	listing, err := f.market.List(ctx, f.itemID, 8, 3000)
	require.NoError(t, err)

	require.NoError(t, f.market.Delist(ctx, listing.ID))

	// The full listed amount returns to the item.
	item, err := f.ledger.Item(ctx, f.itemID)
	require.NoError(t, err)
	assert.Equal(t, 20, item.TotalAmount)

	_, err = f.market.Listing(ctx, listing.ID)
	assert.ErrorIs(t, err, exchange.ErrListingNotFound)
}

func TestMarket_Delist_Twice(t *testing.T) {
	f := newMarketFixture(t, 20)
	ctx := context.Background()

	listing, err := f.market.List(ctx, f.itemID, 8, 3000)
	require.NoError(t, err)

	require.NoError(t, f.market.Delist(ctx, listing.ID))

	err = f.market.Delist(ctx, listing.ID)
	assert.ErrorIs(t, err, exchange.ErrListingNotFound)

	// The second attempt must not double-credit the item.
	item, err := f.ledger.Item(ctx, f.itemID)
	require.NoError(t, err)
	assert.Equal(t, 20, item.TotalAmount)
}

func TestMarket_Delist_UnknownListing(t *testing.T) {
	f := newMarketFixture(t, 20)

	err := f.market.Delist(context.Background(), "missing")
	assert.ErrorIs(t, err, exchange.ErrListingNotFound)
}

func TestMarket_ListingsByDrug(t *testing.T) {
	f := newMarketFixture(t, 20)
	ctx := context.Background()

	_, err := f.market.List(ctx, f.itemID, 5, 3000)
	require.NoError(t, err)

	listings, err := f.market.ListingsByDrug(ctx, f.drugID)
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, f.itemID, listings[0].ItemID)

	none, err := f.market.ListingsByDrug(ctx, "other-drug")
	require.NoError(t, err)
	assert.Empty(t, none)
}

// Concurrent single-unit listings must never move more stock onto the
// exchange than the item holds.
func TestMarket_ConcurrentList_Oversubscribed(t *testing.T) {
	const total = 10
	const contenders = 25

	f := newMarketFixture(t, total)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, contenders)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.market.List(ctx, f.itemID, 1, 3000)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
		}
	}
	assert.Equal(t, total, succeeded)

	item, err := f.ledger.Item(ctx, f.itemID)
	require.NoError(t, err)
	assert.Equal(t, 0, item.TotalAmount)

	listings, err := f.market.ListingsByDrug(ctx, f.drugID)
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, total, listings[0].ListedAmount)
}
