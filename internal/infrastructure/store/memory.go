package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/pharma-exchange/internal/access"
	"github.com/example/pharma-exchange/internal/domain/catalog"
	"github.com/example/pharma-exchange/internal/domain/exchange"
	"github.com/example/pharma-exchange/internal/domain/stock"
)

// Memory is an in-memory store used in tests and local development. One
// mutex serializes whole transactions, which gives the same per-item
// serializability the Postgres store gets from row locks. Writes are
// staged per transaction and applied on commit, so a failed operation
// leaves nothing mutated.
type Memory struct {
	mu sync.Mutex

	items         map[string]*stock.Item
	listings      map[string]*exchange.Listing
	listingByItem map[string]string

	drugs      map[string]*catalog.Drug
	companies  map[string]*catalog.Company
	pharmacies map[string]*catalog.Pharmacy
	insurers   map[string]*catalog.InsuranceCompany

	users          map[string]*access.User
	userByUsername map[string]string
}

func NewMemory() *Memory {
	return &Memory{
		items:          make(map[string]*stock.Item),
		listings:       make(map[string]*exchange.Listing),
		listingByItem:  make(map[string]string),
		drugs:          make(map[string]*catalog.Drug),
		companies:      make(map[string]*catalog.Company),
		pharmacies:     make(map[string]*catalog.Pharmacy),
		insurers:       make(map[string]*catalog.InsuranceCompany),
		users:          make(map[string]*access.User),
		userByUsername: make(map[string]string),
	}
}

// StockTx runs fn with the store mutex held and commits staged writes
// only when fn succeeds.
func (m *Memory) StockTx(ctx context.Context, fn func(stock.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := newMemTx(m)
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (m *Memory) ExchangeTx(ctx context.Context, fn func(exchange.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := newMemTx(m)
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (m *Memory) Item(ctx context.Context, id string) (*stock.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[id]
	if !ok {
		return nil, stock.ErrItemNotFound
	}
	cp := *item
	return &cp, nil
}

func (m *Memory) ItemsByPharmacy(ctx context.Context, pharmacyID string) ([]stock.Item, error) {
	return m.filterItems(func(i *stock.Item) bool { return i.PharmacyID == pharmacyID })
}

func (m *Memory) ItemsByDrug(ctx context.Context, drugID string) ([]stock.Item, error) {
	return m.filterItems(func(i *stock.Item) bool { return i.DrugID == drugID })
}

func (m *Memory) ItemsByCompany(ctx context.Context, companyID string) ([]stock.Item, error) {
	return m.filterItems(func(i *stock.Item) bool { return i.CompanyID == companyID })
}

func (m *Memory) ItemsExpiringBefore(ctx context.Context, cutoff time.Time) ([]stock.Item, error) {
	return m.filterItems(func(i *stock.Item) bool {
		return i.TotalAmount > 0 && i.Expiration.Before(cutoff)
	})
}

func (m *Memory) filterItems(keep func(*stock.Item) bool) ([]stock.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []stock.Item
	for _, item := range m.items {
		if keep(item) {
			out = append(out, *item)
		}
	}
	return out, nil
}

func (m *Memory) Listing(ctx context.Context, id string) (*exchange.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	listing, ok := m.listings[id]
	if !ok {
		return nil, exchange.ErrListingNotFound
	}
	cp := *listing
	return &cp, nil
}

func (m *Memory) ListingsByDrug(ctx context.Context, drugID string) ([]exchange.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []exchange.Listing
	for _, listing := range m.listings {
		item, ok := m.items[listing.ItemID]
		if ok && item.DrugID == drugID {
			out = append(out, *listing)
		}
	}
	return out, nil
}

// Catalog records.

func (m *Memory) CreateCompany(ctx context.Context, name, color string) (*catalog.Company, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := &catalog.Company{ID: uuid.New().String(), Name: name, Color: color}
	m.companies[c.ID] = c
	return c, nil
}

func (m *Memory) CreatePharmacy(ctx context.Context, name, address string) (*catalog.Pharmacy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := &catalog.Pharmacy{ID: uuid.New().String(), Name: name, Address: address}
	m.pharmacies[p.ID] = p
	return p, nil
}

func (m *Memory) CreateDrug(ctx context.Context, name, companyID, explanation string) (*catalog.Drug, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d := &catalog.Drug{ID: uuid.New().String(), Name: name, CompanyID: companyID, Explanation: explanation}
	m.drugs[d.ID] = d
	return d, nil
}

func (m *Memory) CreateInsuranceCompany(ctx context.Context, name string) (*catalog.InsuranceCompany, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ic := &catalog.InsuranceCompany{ID: uuid.New().String(), Name: name}
	m.insurers[ic.ID] = ic
	return ic, nil
}

// Users.

func (m *Memory) CreateUser(ctx context.Context, u *access.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.userByUsername[u.Username]; taken {
		return fmt.Errorf("username %q already registered", u.Username)
	}
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	cp := *u
	m.users[cp.ID] = &cp
	m.userByUsername[cp.Username] = cp.ID
	return nil
}

func (m *Memory) UserByID(ctx context.Context, id string) (*access.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (m *Memory) UserByUsername(ctx context.Context, username string) (*access.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.userByUsername[username]
	if !ok {
		return nil, nil
	}
	cp := *m.users[id]
	return &cp, nil
}

// memTx stages all writes of one transaction; commit applies them to the
// owning Memory under the mutex already held by StockTx/ExchangeTx.
type memTx struct {
	m *Memory

	items    map[string]*stock.Item
	listings map[string]*exchange.Listing

	insertedItems    []*stock.Item
	insertedListings []*exchange.Listing
	insertedDrugs    []*catalog.Drug
	deletedListings  map[string]struct{}
}

func newMemTx(m *Memory) *memTx {
	return &memTx{
		m:               m,
		items:           make(map[string]*stock.Item),
		listings:        make(map[string]*exchange.Listing),
		deletedListings: make(map[string]struct{}),
	}
}

func (t *memTx) ItemForUpdate(ctx context.Context, id string) (*stock.Item, error) {
	if item, ok := t.items[id]; ok {
		return item, nil
	}
	orig, ok := t.m.items[id]
	if !ok {
		return nil, stock.ErrItemNotFound
	}
	cp := *orig
	t.items[id] = &cp
	return &cp, nil
}

func (t *memTx) SaveItemAmounts(ctx context.Context, item *stock.Item) error {
	t.items[item.ID] = item
	return nil
}

func (t *memTx) InsertItem(ctx context.Context, item *stock.Item) error {
	cp := *item
	t.insertedItems = append(t.insertedItems, &cp)
	return nil
}

func (t *memTx) DrugExists(ctx context.Context, id string) (bool, error) {
	_, ok := t.m.drugs[id]
	return ok, nil
}

func (t *memTx) CompanyExists(ctx context.Context, id string) (bool, error) {
	_, ok := t.m.companies[id]
	return ok, nil
}

func (t *memTx) PharmacyExists(ctx context.Context, id string) (bool, error) {
	_, ok := t.m.pharmacies[id]
	return ok, nil
}

func (t *memTx) EnsureDrug(ctx context.Context, name, companyID, explanation string) (string, error) {
	for _, d := range t.m.drugs {
		if d.Name == name && d.CompanyID == companyID {
			return d.ID, nil
		}
	}
	for _, d := range t.insertedDrugs {
		if d.Name == name && d.CompanyID == companyID {
			return d.ID, nil
		}
	}
	d := &catalog.Drug{ID: uuid.New().String(), Name: name, CompanyID: companyID, Explanation: explanation}
	t.insertedDrugs = append(t.insertedDrugs, d)
	return d.ID, nil
}

func (t *memTx) ListingForUpdateByItem(ctx context.Context, itemID string) (*exchange.Listing, error) {
	for _, l := range t.listings {
		if l.ItemID == itemID {
			return l, nil
		}
	}
	id, ok := t.m.listingByItem[itemID]
	if !ok {
		return nil, nil
	}
	if _, deleted := t.deletedListings[id]; deleted {
		return nil, nil
	}
	cp := *t.m.listings[id]
	t.listings[id] = &cp
	return &cp, nil
}

func (t *memTx) ListingForUpdate(ctx context.Context, id string) (*exchange.Listing, error) {
	if _, deleted := t.deletedListings[id]; deleted {
		return nil, exchange.ErrListingNotFound
	}
	if l, ok := t.listings[id]; ok {
		return l, nil
	}
	orig, ok := t.m.listings[id]
	if !ok {
		return nil, exchange.ErrListingNotFound
	}
	cp := *orig
	t.listings[id] = &cp
	return &cp, nil
}

func (t *memTx) InsertListing(ctx context.Context, l *exchange.Listing) error {
	t.insertedListings = append(t.insertedListings, l)
	t.listings[l.ID] = l
	return nil
}

func (t *memTx) SaveListingAmount(ctx context.Context, l *exchange.Listing) error {
	t.listings[l.ID] = l
	return nil
}

func (t *memTx) DeleteListing(ctx context.Context, id string) error {
	t.deletedListings[id] = struct{}{}
	delete(t.listings, id)
	return nil
}

func (t *memTx) commit() {
	for _, d := range t.insertedDrugs {
		t.m.drugs[d.ID] = d
	}
	for _, item := range t.insertedItems {
		t.m.items[item.ID] = item
	}
	for id, item := range t.items {
		cp := *item
		t.m.items[id] = &cp
	}
	for id, listing := range t.listings {
		cp := *listing
		t.m.listings[id] = &cp
		t.m.listingByItem[cp.ItemID] = id
	}
	for id := range t.deletedListings {
		if l, ok := t.m.listings[id]; ok {
			delete(t.m.listingByItem, l.ItemID)
			delete(t.m.listings, id)
		}
	}
}
