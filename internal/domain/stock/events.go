package stock

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	EventStockAdjusted = "StockAdjusted"
	EventStockLocked   = "StockLocked"
	EventStockUnlocked = "StockUnlocked"
)

type StockAdjusted struct {
	ItemID      string    `json:"item_id"`
	Delta       int       `json:"delta"`
	TotalAmount int       `json:"total_amount"`
	AdjustedAt  time.Time `json:"adjusted_at"`
}

type StockLocked struct {
	ItemID       string    `json:"item_id"`
	Quantity     int       `json:"quantity"`
	LockedAmount int       `json:"locked_amount"`
	LockedAt     time.Time `json:"locked_at"`
}

type StockUnlocked struct {
	ItemID       string    `json:"item_id"`
	Quantity     int       `json:"quantity"`
	LockedAmount int       `json:"locked_amount"`
	UnlockedAt   time.Time `json:"unlocked_at"`
}

// Movement is the envelope published for every committed stock or
// exchange mutation, keyed by the item it touched.
type Movement struct {
	ID         string          `json:"id"`
	ItemID     string          `json:"item_id"`
	EventType  string          `json:"event_type"`
	Data       json.RawMessage `json:"data"`
	OccurredAt time.Time       `json:"occurred_at"`
}

func NewMovement(itemID, eventType string, data any) (*Movement, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Movement{
		ID:         uuid.New().String(),
		ItemID:     itemID,
		EventType:  eventType,
		Data:       raw,
		OccurredAt: time.Now(),
	}, nil
}
