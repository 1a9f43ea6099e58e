package stock

import "context"

// Tx is the serialized view of the store a single ledger operation runs
// in. Implementations hold a row lock on every item returned by
// ItemForUpdate until the transaction ends, and commit all writes
// atomically or not at all.
type Tx interface {
	ItemForUpdate(ctx context.Context, id string) (*Item, error)
	SaveItemAmounts(ctx context.Context, item *Item) error
	InsertItem(ctx context.Context, item *Item) error

	DrugExists(ctx context.Context, id string) (bool, error)
	CompanyExists(ctx context.Context, id string) (bool, error)
	PharmacyExists(ctx context.Context, id string) (bool, error)
	// EnsureDrug finds the drug with the given name and company, creating
	// it when absent, and returns its id.
	EnsureDrug(ctx context.Context, name, companyID, explanation string) (string, error)
}

// Store persists stock items.
type Store interface {
	// StockTx runs fn inside one atomic transaction.
	StockTx(ctx context.Context, fn func(Tx) error) error

	Item(ctx context.Context, id string) (*Item, error)
	ItemsByPharmacy(ctx context.Context, pharmacyID string) ([]Item, error)
	ItemsByDrug(ctx context.Context, drugID string) ([]Item, error)
	ItemsByCompany(ctx context.Context, companyID string) ([]Item, error)
}

// Publisher emits movement records after a successful mutation.
type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}
