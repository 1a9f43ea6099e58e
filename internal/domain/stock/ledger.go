package stock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Ledger is the only path by which an item's total and locked amounts
// change. Every operation runs its read-validate-write inside a store
// transaction, so concurrent calls against the same item serialize and
// the amount invariants survive races.
type Ledger struct {
	store     Store
	publisher Publisher
	logger    *zap.Logger
}

func NewLedger(store Store, publisher Publisher, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		store:     store,
		publisher: publisher,
		logger:    logger,
	}
}

// CreateItemParams describes a new stock item for a drug already in the
// catalog.
type CreateItemParams struct {
	DrugID     string
	CompanyID  string
	PharmacyID string
	Amount     int
	Price      int
	Expiration time.Time
	Note       string
}

func (l *Ledger) CreateItem(ctx context.Context, p CreateItemParams) (*Item, error) {
	if p.Amount < 0 {
		return nil, ErrInvalidQuantity
	}

	item := &Item{
		ID:          uuid.New().String(),
		DrugID:      p.DrugID,
		CompanyID:   p.CompanyID,
		PharmacyID:  p.PharmacyID,
		TotalAmount: p.Amount,
		Price:       p.Price,
		Expiration:  p.Expiration,
		Note:        p.Note,
		CreatedAt:   time.Now(),
	}

	err := l.store.StockTx(ctx, func(tx Tx) error {
		if err := requireEntity(ctx, tx.DrugExists, "drug", p.DrugID); err != nil {
			return err
		}
		if err := requireEntity(ctx, tx.CompanyExists, "company", p.CompanyID); err != nil {
			return err
		}
		if err := requireEntity(ctx, tx.PharmacyExists, "pharmacy", p.PharmacyID); err != nil {
			return err
		}
		return tx.InsertItem(ctx, item)
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("stock item created",
		zap.String("item_id", item.ID),
		zap.String("pharmacy_id", item.PharmacyID),
		zap.Int("amount", item.TotalAmount))
	return item, nil
}

// IntakeParams describes a stock receipt by drug name; the drug record
// is created on first intake of that name for the company.
type IntakeParams struct {
	DrugName    string
	Explanation string
	CompanyID   string
	PharmacyID  string
	Amount      int
	Price       int
	Expiration  time.Time
	Note        string
}

// Intake records receipt of stock, creating the drug record when the
// pharmacy has never stocked it before.
func (l *Ledger) Intake(ctx context.Context, p IntakeParams) (*Item, error) {
	if p.Amount < 0 {
		return nil, ErrInvalidQuantity
	}

	item := &Item{
		ID:          uuid.New().String(),
		CompanyID:   p.CompanyID,
		PharmacyID:  p.PharmacyID,
		TotalAmount: p.Amount,
		Price:       p.Price,
		Expiration:  p.Expiration,
		Note:        p.Note,
		CreatedAt:   time.Now(),
	}

	err := l.store.StockTx(ctx, func(tx Tx) error {
		if err := requireEntity(ctx, tx.CompanyExists, "company", p.CompanyID); err != nil {
			return err
		}
		if err := requireEntity(ctx, tx.PharmacyExists, "pharmacy", p.PharmacyID); err != nil {
			return err
		}
		drugID, err := tx.EnsureDrug(ctx, p.DrugName, p.CompanyID, p.Explanation)
		if err != nil {
			return err
		}
		item.DrugID = drugID
		return tx.InsertItem(ctx, item)
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("stock intake recorded",
		zap.String("item_id", item.ID),
		zap.String("drug", p.DrugName),
		zap.Int("amount", item.TotalAmount))
	return item, nil
}

// AdjustAmount adds delta (signed) to the item's total and returns the
// new total. Fails without mutation when the result would go negative or
// eat into locked stock.
func (l *Ledger) AdjustAmount(ctx context.Context, itemID string, delta int) (int, error) {
	var total int
	err := l.store.StockTx(ctx, func(tx Tx) error {
		item, err := tx.ItemForUpdate(ctx, itemID)
		if err != nil {
			return err
		}
		if err := item.Adjust(delta); err != nil {
			return err
		}
		if err := tx.SaveItemAmounts(ctx, item); err != nil {
			return err
		}
		total = item.TotalAmount
		return nil
	})
	if err != nil {
		return 0, err
	}

	l.publish(ctx, itemID, EventStockAdjusted, StockAdjusted{
		ItemID:      itemID,
		Delta:       delta,
		TotalAmount: total,
		AdjustedAt:  time.Now(),
	})
	l.logger.Info("stock adjusted",
		zap.String("item_id", itemID),
		zap.Int("delta", delta),
		zap.Int("total_amount", total))
	return total, nil
}

// LockAmount reserves amount units of the item's unlocked stock.
func (l *Ledger) LockAmount(ctx context.Context, itemID string, amount int) error {
	var locked int
	err := l.store.StockTx(ctx, func(tx Tx) error {
		item, err := tx.ItemForUpdate(ctx, itemID)
		if err != nil {
			return err
		}
		if err := item.Lock(amount); err != nil {
			return err
		}
		if err := tx.SaveItemAmounts(ctx, item); err != nil {
			return err
		}
		locked = item.LockedAmount
		return nil
	})
	if err != nil {
		return err
	}

	l.publish(ctx, itemID, EventStockLocked, StockLocked{
		ItemID:       itemID,
		Quantity:     amount,
		LockedAmount: locked,
		LockedAt:     time.Now(),
	})
	l.logger.Info("stock locked",
		zap.String("item_id", itemID),
		zap.Int("quantity", amount),
		zap.Int("locked_amount", locked))
	return nil
}

// UnlockAmount releases amount units of the item's locked stock.
func (l *Ledger) UnlockAmount(ctx context.Context, itemID string, amount int) error {
	var locked int
	err := l.store.StockTx(ctx, func(tx Tx) error {
		item, err := tx.ItemForUpdate(ctx, itemID)
		if err != nil {
			return err
		}
		if err := item.Unlock(amount); err != nil {
			return err
		}
		if err := tx.SaveItemAmounts(ctx, item); err != nil {
			return err
		}
		locked = item.LockedAmount
		return nil
	})
	if err != nil {
		return err
	}

	l.publish(ctx, itemID, EventStockUnlocked, StockUnlocked{
		ItemID:       itemID,
		Quantity:     amount,
		LockedAmount: locked,
		UnlockedAt:   time.Now(),
	})
	l.logger.Info("stock unlocked",
		zap.String("item_id", itemID),
		zap.Int("quantity", amount),
		zap.Int("locked_amount", locked))
	return nil
}

func (l *Ledger) Item(ctx context.Context, id string) (*Item, error) {
	return l.store.Item(ctx, id)
}

func (l *Ledger) ItemsByPharmacy(ctx context.Context, pharmacyID string) ([]Item, error) {
	return l.store.ItemsByPharmacy(ctx, pharmacyID)
}

func (l *Ledger) ItemsByDrug(ctx context.Context, drugID string) ([]Item, error) {
	return l.store.ItemsByDrug(ctx, drugID)
}

func (l *Ledger) ItemsByCompany(ctx context.Context, companyID string) ([]Item, error) {
	return l.store.ItemsByCompany(ctx, companyID)
}

// publish emits a movement record; delivery is best-effort and never
// fails a committed operation.
func (l *Ledger) publish(ctx context.Context, itemID, eventType string, data any) {
	if l.publisher == nil {
		return
	}
	m, err := NewMovement(itemID, eventType, data)
	if err != nil {
		l.logger.Warn("failed to build movement record", zap.Error(err))
		return
	}
	if err := l.publisher.Publish(ctx, itemID, m); err != nil {
		l.logger.Warn("failed to publish movement record",
			zap.String("item_id", itemID),
			zap.String("event_type", eventType),
			zap.Error(err))
	}
}

func requireEntity(ctx context.Context, exists func(context.Context, string) (bool, error), kind, id string) error {
	ok, err := exists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return nil
}
