package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/example/pharma-exchange/internal/access"
	"github.com/example/pharma-exchange/internal/domain/catalog"
	"github.com/example/pharma-exchange/internal/domain/exchange"
	"github.com/example/pharma-exchange/internal/domain/stock"
)

// ConnectPostgres establishes a connection to PostgreSQL.
func ConnectPostgres(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, err
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

// Postgres persists catalog, stock, exchange and user records. Ledger
// and market operations run inside a transaction that takes FOR UPDATE
// row locks, which serializes concurrent callers per stock item.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// InitSchema creates the tables when they do not exist yet. The UNIQUE
// constraint on exchange_listings.item_id enforces the one-active-
// listing-per-item rule at the storage level.
func (p *Postgres) InitSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS pharma_companies (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			color TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS insurance_companies (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS pharmacies (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			address TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS drugs (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			explanation TEXT NOT NULL DEFAULT '',
			company_id TEXT NOT NULL REFERENCES pharma_companies(id) ON DELETE CASCADE,
			UNIQUE (name, company_id)
		)`,
		`CREATE TABLE IF NOT EXISTS stock_items (
			id TEXT PRIMARY KEY,
			drug_id TEXT NOT NULL REFERENCES drugs(id) ON DELETE CASCADE,
			company_id TEXT NOT NULL REFERENCES pharma_companies(id) ON DELETE CASCADE,
			pharmacy_id TEXT NOT NULL REFERENCES pharmacies(id) ON DELETE CASCADE,
			total_amount INTEGER NOT NULL CHECK (total_amount >= 0),
			locked_amount INTEGER NOT NULL DEFAULT 0 CHECK (locked_amount >= 0 AND locked_amount <= total_amount),
			price INTEGER NOT NULL DEFAULT 0,
			expiration TIMESTAMPTZ NOT NULL,
			note TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS exchange_listings (
			id TEXT PRIMARY KEY,
			item_id TEXT NOT NULL UNIQUE REFERENCES stock_items(id) ON DELETE CASCADE,
			listed_amount INTEGER NOT NULL CHECK (listed_amount >= 0),
			unit_price INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL DEFAULT '',
			password_hash TEXT NOT NULL,
			role TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}

	for _, stmt := range stmts {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (p *Postgres) StockTx(ctx context.Context, fn func(stock.Tx) error) error {
	return p.withTx(ctx, func(tx *sql.Tx) error {
		return fn(&pgTx{tx: tx})
	})
}

func (p *Postgres) ExchangeTx(ctx context.Context, fn func(exchange.Tx) error) error {
	return p.withTx(ctx, func(tx *sql.Tx) error {
		return fn(&pgTx{tx: tx})
	})
}

func (p *Postgres) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

const itemColumns = "id, drug_id, company_id, pharmacy_id, total_amount, locked_amount, price, expiration, note, created_at"

func scanItem(row *sql.Row) (*stock.Item, error) {
	var item stock.Item
	err := row.Scan(&item.ID, &item.DrugID, &item.CompanyID, &item.PharmacyID,
		&item.TotalAmount, &item.LockedAmount, &item.Price, &item.Expiration, &item.Note, &item.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (p *Postgres) Item(ctx context.Context, id string) (*stock.Item, error) {
	row := p.db.QueryRowContext(ctx,
		"SELECT "+itemColumns+" FROM stock_items WHERE id = $1", id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, stock.ErrItemNotFound
	}
	return item, err
}

func (p *Postgres) ItemsByPharmacy(ctx context.Context, pharmacyID string) ([]stock.Item, error) {
	return p.queryItems(ctx,
		"SELECT "+itemColumns+" FROM stock_items WHERE pharmacy_id = $1 ORDER BY created_at", pharmacyID)
}

func (p *Postgres) ItemsByDrug(ctx context.Context, drugID string) ([]stock.Item, error) {
	return p.queryItems(ctx,
		"SELECT "+itemColumns+" FROM stock_items WHERE drug_id = $1 ORDER BY created_at", drugID)
}

func (p *Postgres) ItemsByCompany(ctx context.Context, companyID string) ([]stock.Item, error) {
	return p.queryItems(ctx,
		"SELECT "+itemColumns+" FROM stock_items WHERE company_id = $1 ORDER BY created_at", companyID)
}

func (p *Postgres) ItemsExpiringBefore(ctx context.Context, cutoff time.Time) ([]stock.Item, error) {
	return p.queryItems(ctx,
		"SELECT "+itemColumns+" FROM stock_items WHERE total_amount > 0 AND expiration < $1 ORDER BY expiration", cutoff)
}

func (p *Postgres) queryItems(ctx context.Context, query string, args ...any) ([]stock.Item, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []stock.Item
	for rows.Next() {
		var item stock.Item
		if err := rows.Scan(&item.ID, &item.DrugID, &item.CompanyID, &item.PharmacyID,
			&item.TotalAmount, &item.LockedAmount, &item.Price, &item.Expiration, &item.Note, &item.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

const listingColumns = "id, item_id, listed_amount, unit_price, created_at"

func (p *Postgres) Listing(ctx context.Context, id string) (*exchange.Listing, error) {
	var l exchange.Listing
	err := p.db.QueryRowContext(ctx,
		"SELECT "+listingColumns+" FROM exchange_listings WHERE id = $1", id).
		Scan(&l.ID, &l.ItemID, &l.ListedAmount, &l.UnitPrice, &l.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, exchange.ErrListingNotFound
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (p *Postgres) ListingsByDrug(ctx context.Context, drugID string) ([]exchange.Listing, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT l.id, l.item_id, l.listed_amount, l.unit_price, l.created_at
		 FROM exchange_listings l
		 JOIN stock_items i ON i.id = l.item_id
		 WHERE i.drug_id = $1
		 ORDER BY l.created_at`, drugID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listings []exchange.Listing
	for rows.Next() {
		var l exchange.Listing
		if err := rows.Scan(&l.ID, &l.ItemID, &l.ListedAmount, &l.UnitPrice, &l.CreatedAt); err != nil {
			return nil, err
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

// Catalog records.

func (p *Postgres) CreateCompany(ctx context.Context, name, color string) (*catalog.Company, error) {
	c := &catalog.Company{ID: uuid.New().String(), Name: name, Color: color}
	_, err := p.db.ExecContext(ctx,
		"INSERT INTO pharma_companies (id, name, color) VALUES ($1, $2, $3)", c.ID, c.Name, c.Color)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (p *Postgres) CreatePharmacy(ctx context.Context, name, address string) (*catalog.Pharmacy, error) {
	ph := &catalog.Pharmacy{ID: uuid.New().String(), Name: name, Address: address}
	_, err := p.db.ExecContext(ctx,
		"INSERT INTO pharmacies (id, name, address) VALUES ($1, $2, $3)", ph.ID, ph.Name, ph.Address)
	if err != nil {
		return nil, err
	}
	return ph, nil
}

func (p *Postgres) CreateDrug(ctx context.Context, name, companyID, explanation string) (*catalog.Drug, error) {
	d := &catalog.Drug{ID: uuid.New().String(), Name: name, CompanyID: companyID, Explanation: explanation}
	_, err := p.db.ExecContext(ctx,
		"INSERT INTO drugs (id, name, company_id, explanation) VALUES ($1, $2, $3, $4)",
		d.ID, d.Name, d.CompanyID, d.Explanation)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (p *Postgres) CreateInsuranceCompany(ctx context.Context, name string) (*catalog.InsuranceCompany, error) {
	ic := &catalog.InsuranceCompany{ID: uuid.New().String(), Name: name}
	_, err := p.db.ExecContext(ctx,
		"INSERT INTO insurance_companies (id, name) VALUES ($1, $2)", ic.ID, ic.Name)
	if err != nil {
		return nil, err
	}
	return ic, nil
}

// Users.

func (p *Postgres) CreateUser(ctx context.Context, u *access.User) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO users (id, username, name, password_hash, role, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID, u.Username, u.Name, u.PasswordHash, string(u.Role), u.CreatedAt)
	return err
}

func (p *Postgres) UserByID(ctx context.Context, id string) (*access.User, error) {
	return p.queryUser(ctx, "SELECT id, username, name, password_hash, role, created_at FROM users WHERE id = $1", id)
}

func (p *Postgres) UserByUsername(ctx context.Context, username string) (*access.User, error) {
	return p.queryUser(ctx, "SELECT id, username, name, password_hash, role, created_at FROM users WHERE username = $1", username)
}

func (p *Postgres) queryUser(ctx context.Context, query string, arg any) (*access.User, error) {
	var (
		u    access.User
		role string
	)
	err := p.db.QueryRowContext(ctx, query, arg).
		Scan(&u.ID, &u.Username, &u.Name, &u.PasswordHash, &role, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u.Role = access.Role(role)
	return &u, nil
}

// pgTx implements the stock and exchange transaction views over one
// sql.Tx.
type pgTx struct {
	tx *sql.Tx
}

func (t *pgTx) ItemForUpdate(ctx context.Context, id string) (*stock.Item, error) {
	row := t.tx.QueryRowContext(ctx,
		"SELECT "+itemColumns+" FROM stock_items WHERE id = $1 FOR UPDATE", id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, stock.ErrItemNotFound
	}
	return item, err
}

func (t *pgTx) SaveItemAmounts(ctx context.Context, item *stock.Item) error {
	_, err := t.tx.ExecContext(ctx,
		"UPDATE stock_items SET total_amount = $2, locked_amount = $3 WHERE id = $1",
		item.ID, item.TotalAmount, item.LockedAmount)
	return err
}

func (t *pgTx) InsertItem(ctx context.Context, item *stock.Item) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO stock_items (id, drug_id, company_id, pharmacy_id, total_amount, locked_amount, price, expiration, note, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		item.ID, item.DrugID, item.CompanyID, item.PharmacyID,
		item.TotalAmount, item.LockedAmount, item.Price, item.Expiration, item.Note, item.CreatedAt)
	return err
}

func (t *pgTx) DrugExists(ctx context.Context, id string) (bool, error) {
	return t.exists(ctx, "SELECT EXISTS (SELECT 1 FROM drugs WHERE id = $1)", id)
}

func (t *pgTx) CompanyExists(ctx context.Context, id string) (bool, error) {
	return t.exists(ctx, "SELECT EXISTS (SELECT 1 FROM pharma_companies WHERE id = $1)", id)
}

func (t *pgTx) PharmacyExists(ctx context.Context, id string) (bool, error) {
	return t.exists(ctx, "SELECT EXISTS (SELECT 1 FROM pharmacies WHERE id = $1)", id)
}

func (t *pgTx) exists(ctx context.Context, query, id string) (bool, error) {
	var ok bool
	if err := t.tx.QueryRowContext(ctx, query, id).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

func (t *pgTx) EnsureDrug(ctx context.Context, name, companyID, explanation string) (string, error) {
	var id string
	err := t.tx.QueryRowContext(ctx,
		"SELECT id FROM drugs WHERE name = $1 AND company_id = $2", name, companyID).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", err
	}

	id = uuid.New().String()
	_, err = t.tx.ExecContext(ctx,
		"INSERT INTO drugs (id, name, company_id, explanation) VALUES ($1, $2, $3, $4)",
		id, name, companyID, explanation)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (t *pgTx) ListingForUpdateByItem(ctx context.Context, itemID string) (*exchange.Listing, error) {
	l, err := t.queryListing(ctx,
		"SELECT "+listingColumns+" FROM exchange_listings WHERE item_id = $1 FOR UPDATE", itemID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return l, err
}

func (t *pgTx) ListingForUpdate(ctx context.Context, id string) (*exchange.Listing, error) {
	l, err := t.queryListing(ctx,
		"SELECT "+listingColumns+" FROM exchange_listings WHERE id = $1 FOR UPDATE", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, exchange.ErrListingNotFound
	}
	return l, err
}

func (t *pgTx) queryListing(ctx context.Context, query string, arg any) (*exchange.Listing, error) {
	var l exchange.Listing
	err := t.tx.QueryRowContext(ctx, query, arg).
		Scan(&l.ID, &l.ItemID, &l.ListedAmount, &l.UnitPrice, &l.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (t *pgTx) InsertListing(ctx context.Context, l *exchange.Listing) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO exchange_listings (id, item_id, listed_amount, unit_price, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		l.ID, l.ItemID, l.ListedAmount, l.UnitPrice, l.CreatedAt)
	return err
}

func (t *pgTx) SaveListingAmount(ctx context.Context, l *exchange.Listing) error {
	_, err := t.tx.ExecContext(ctx,
		"UPDATE exchange_listings SET listed_amount = $2 WHERE id = $1", l.ID, l.ListedAmount)
	return err
}

func (t *pgTx) DeleteListing(ctx context.Context, id string) error {
	_, err := t.tx.ExecContext(ctx, "DELETE FROM exchange_listings WHERE id = $1", id)
	return err
}
