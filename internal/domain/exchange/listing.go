package exchange

import (
	"errors"
	"time"
)

var (
	ErrListingNotFound      = errors.New("exchange listing not found")
	ErrNegativeListedAmount = errors.New("listed amount cannot be negative")
)

// Listing is a quantity of one stock item offered to other pharmacies at
// a price. At most one active listing exists per item; repeat listings
// add to it and keep the original price. Every listed unit was removed
// from the owning item's total at the moment it was listed, so stock is
// never available at the pharmacy and on the exchange at once.
type Listing struct {
	ID           string    `json:"id"`
	ItemID       string    `json:"item_id"`
	ListedAmount int       `json:"listed_amount"`
	UnitPrice    int       `json:"unit_price"`
	CreatedAt    time.Time `json:"created_at"`
}

// Add moves delta (signed) units on or off the listing.
func (l *Listing) Add(delta int) error {
	if l.ListedAmount+delta < 0 {
		return ErrNegativeListedAmount
	}
	l.ListedAmount += delta
	return nil
}
