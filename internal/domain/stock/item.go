package stock

import (
	"errors"
	"time"
)

var (
	ErrInsufficientStock         = errors.New("insufficient stock")
	ErrInsufficientUnlockedStock = errors.New("insufficient unlocked stock")
	ErrInsufficientLockedStock   = errors.New("insufficient locked stock")
	ErrInvalidQuantity           = errors.New("quantity must not be negative")
	ErrItemNotFound              = errors.New("stock item not found")
	ErrNotFound                  = errors.New("referenced entity not found")
)

// Item is a quantity of one drug, from one manufacturer, held at one
// pharmacy. TotalAmount counts everything the pharmacy holds;
// LockedAmount is the part of the total reserved against pending local
// transactions. Amounts only change through Ledger operations, which run
// the Item methods inside a store transaction.
type Item struct {
	ID           string    `json:"id"`
	DrugID       string    `json:"drug_id"`
	CompanyID    string    `json:"company_id"`
	PharmacyID   string    `json:"pharmacy_id"`
	TotalAmount  int       `json:"total_amount"`
	LockedAmount int       `json:"locked_amount"`
	Price        int       `json:"price"`
	Expiration   time.Time `json:"expiration"`
	Note         string    `json:"note"`
	CreatedAt    time.Time `json:"created_at"`
}

// Available returns the part of the total not reserved by a lock.
func (i *Item) Available() int {
	return i.TotalAmount - i.LockedAmount
}

// Adjust adds delta (signed) to the total amount. A negative delta may
// only consume unlocked stock, so 0 <= LockedAmount <= TotalAmount holds
// after every call.
func (i *Item) Adjust(delta int) error {
	if i.TotalAmount+delta < 0 {
		return ErrInsufficientStock
	}
	if i.TotalAmount+delta < i.LockedAmount {
		return ErrInsufficientUnlockedStock
	}
	i.TotalAmount += delta
	return nil
}

// Lock reserves amount units out of the unlocked part of the total.
func (i *Item) Lock(amount int) error {
	if amount < 0 {
		return ErrInvalidQuantity
	}
	if i.Available() < amount {
		return ErrInsufficientUnlockedStock
	}
	i.LockedAmount += amount
	return nil
}

// Unlock releases amount units back to the unlocked pool.
func (i *Item) Unlock(amount int) error {
	if amount < 0 {
		return ErrInvalidQuantity
	}
	if i.LockedAmount < amount {
		return ErrInsufficientLockedStock
	}
	i.LockedAmount -= amount
	return nil
}
