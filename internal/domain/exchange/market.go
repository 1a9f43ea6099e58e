package exchange

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/pharma-exchange/internal/domain/stock"
)

// Tx is the serialized store view a market operation runs in. It spans
// both the stock item and its listing, so a transfer between them
// commits entirely or not at all.
type Tx interface {
	ItemForUpdate(ctx context.Context, id string) (*stock.Item, error)
	SaveItemAmounts(ctx context.Context, item *stock.Item) error

	// ListingForUpdateByItem returns (nil, nil) when the item has no
	// active listing.
	ListingForUpdateByItem(ctx context.Context, itemID string) (*Listing, error)
	ListingForUpdate(ctx context.Context, id string) (*Listing, error)
	InsertListing(ctx context.Context, l *Listing) error
	SaveListingAmount(ctx context.Context, l *Listing) error
	DeleteListing(ctx context.Context, id string) error
}

// Store persists exchange listings.
type Store interface {
	ExchangeTx(ctx context.Context, fn func(Tx) error) error

	Listing(ctx context.Context, id string) (*Listing, error)
	ListingsByDrug(ctx context.Context, drugID string) ([]Listing, error)
}

// Publisher emits movement records after a successful transfer.
type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// Market moves quantity between a stock item's own pool and its exchange
// listing as one atomic transfer.
//
// Listing draws from the item's total amount, not its locked pool; the
// lock mechanism only covers local reservations. The two mechanisms are
// deliberately kept separate to match the established contract.
type Market struct {
	store     Store
	publisher Publisher
	logger    *zap.Logger
}

func NewMarket(store Store, publisher Publisher, logger *zap.Logger) *Market {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Market{
		store:     store,
		publisher: publisher,
		logger:    logger,
	}
}

// List moves amount units from the item's total onto the exchange,
// creating the listing on first use. The price only applies to a newly
// created listing; additions keep the original price.
func (m *Market) List(ctx context.Context, itemID string, amount, price int) (*Listing, error) {
	if amount <= 0 {
		return nil, stock.ErrInvalidQuantity
	}

	var listing *Listing
	err := m.store.ExchangeTx(ctx, func(tx Tx) error {
		item, err := tx.ItemForUpdate(ctx, itemID)
		if err != nil {
			return err
		}
		if err := item.Adjust(-amount); err != nil {
			return err
		}
		if err := tx.SaveItemAmounts(ctx, item); err != nil {
			return err
		}

		listing, err = tx.ListingForUpdateByItem(ctx, itemID)
		if err != nil {
			return err
		}
		if listing == nil {
			listing = &Listing{
				ID:        uuid.New().String(),
				ItemID:    itemID,
				UnitPrice: price,
				CreatedAt: time.Now(),
			}
			if err := tx.InsertListing(ctx, listing); err != nil {
				return err
			}
		}
		if err := listing.Add(amount); err != nil {
			return err
		}
		return tx.SaveListingAmount(ctx, listing)
	})
	if err != nil {
		return nil, err
	}

	m.publish(ctx, itemID, EventStockListed, StockListed{
		ItemID:       itemID,
		ListingID:    listing.ID,
		Quantity:     amount,
		ListedAmount: listing.ListedAmount,
		UnitPrice:    listing.UnitPrice,
		ListedAt:     time.Now(),
	})
	m.logger.Info("stock listed on exchange",
		zap.String("item_id", itemID),
		zap.String("listing_id", listing.ID),
		zap.Int("quantity", amount),
		zap.Int("listed_amount", listing.ListedAmount))
	return listing, nil
}

// Delist returns the listing's entire amount to the owning item and
// deletes the listing. Partial delisting is not supported by the
// contract.
func (m *Market) Delist(ctx context.Context, listingID string) error {
	var (
		itemID   string
		quantity int
	)
	err := m.store.ExchangeTx(ctx, func(tx Tx) error {
		listing, err := tx.ListingForUpdate(ctx, listingID)
		if err != nil {
			return err
		}
		item, err := tx.ItemForUpdate(ctx, listing.ItemID)
		if err != nil {
			return err
		}
		if err := item.Adjust(listing.ListedAmount); err != nil {
			return err
		}
		if err := tx.SaveItemAmounts(ctx, item); err != nil {
			return err
		}
		itemID, quantity = listing.ItemID, listing.ListedAmount
		return tx.DeleteListing(ctx, listing.ID)
	})
	if err != nil {
		return err
	}

	m.publish(ctx, itemID, EventStockDelisted, StockDelisted{
		ItemID:     itemID,
		ListingID:  listingID,
		Quantity:   quantity,
		DelistedAt: time.Now(),
	})
	m.logger.Info("stock delisted from exchange",
		zap.String("item_id", itemID),
		zap.String("listing_id", listingID),
		zap.Int("quantity", quantity))
	return nil
}

func (m *Market) Listing(ctx context.Context, id string) (*Listing, error) {
	return m.store.Listing(ctx, id)
}

func (m *Market) ListingsByDrug(ctx context.Context, drugID string) ([]Listing, error) {
	return m.store.ListingsByDrug(ctx, drugID)
}

func (m *Market) publish(ctx context.Context, itemID, eventType string, data any) {
	if m.publisher == nil {
		return
	}
	rec, err := stock.NewMovement(itemID, eventType, data)
	if err != nil {
		m.logger.Warn("failed to build movement record", zap.Error(err))
		return
	}
	if err := m.publisher.Publish(ctx, itemID, rec); err != nil {
		m.logger.Warn("failed to publish movement record",
			zap.String("item_id", itemID),
			zap.String("event_type", eventType),
			zap.Error(err))
	}
}
