package exchange

import "time"

const (
	EventStockListed   = "StockListed"
	EventStockDelisted = "StockDelisted"
)

type StockListed struct {
	ItemID       string    `json:"item_id"`
	ListingID    string    `json:"listing_id"`
	Quantity     int       `json:"quantity"`
	ListedAmount int       `json:"listed_amount"`
	UnitPrice    int       `json:"unit_price"`
	ListedAt     time.Time `json:"listed_at"`
}

type StockDelisted struct {
	ItemID     string    `json:"item_id"`
	ListingID  string    `json:"listing_id"`
	Quantity   int       `json:"quantity"`
	DelistedAt time.Time `json:"delisted_at"`
}
