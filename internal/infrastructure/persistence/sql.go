package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/primerjalnik/backend/internal/domain"
)

// Supported SQL drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// schema is valid for both PostgreSQL and SQLite. Timestamps are unix
// nanoseconds and booleans are 0/1 integers to keep scanning portable.
const schema = `
CREATE TABLE IF NOT EXISTS canonical_products (
	id             TEXT PRIMARY KEY,
	canonical_name TEXT   NOT NULL,
	unit           TEXT   NOT NULL DEFAULT '',
	image_url      TEXT   NOT NULL DEFAULT '',
	source_names   TEXT   NOT NULL DEFAULT '[]',
	created_at     BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS retailer_prices (
	product_id     TEXT    NOT NULL,
	retailer_id    TEXT    NOT NULL,
	price          DOUBLE PRECISION NOT NULL,
	original_price DOUBLE PRECISION,
	on_sale        INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (product_id, retailer_id)
);

CREATE TABLE IF NOT EXISTS raw_listings (
	id            TEXT PRIMARY KEY,
	retailer_id   TEXT    NOT NULL,
	raw_name      TEXT    NOT NULL,
	regular_price DOUBLE PRECISION NOT NULL,
	sale_price    DOUBLE PRECISION,
	image_url     TEXT    NOT NULL DEFAULT '',
	product_id    TEXT,
	status        TEXT    NOT NULL,
	attempts      INTEGER NOT NULL DEFAULT 0,
	last_error    TEXT    NOT NULL DEFAULT '',
	created_at    BIGINT  NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_raw_listings_pending ON raw_listings(status, attempts, created_at);
CREATE INDEX IF NOT EXISTS idx_raw_listings_product ON raw_listings(product_id);
`

// SQLStore is a CatalogStore on PostgreSQL (lib/pq) or SQLite (go-sqlite3).
// Every mutating method runs in a single transaction.
type SQLStore struct {
	db     *sql.DB
	driver string
}

// OpenSQLStore connects, retries the ping while the database starts up, and
// migrates the schema.
func OpenSQLStore(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: open: %w", driver, err)
	}
	if driver == DriverSQLite {
		// one writer; also keeps ":memory:" databases on a single connection
		db.SetMaxOpenConns(1)
	}

	for i := 0; i < 10; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		select {
		case <-ctx.Done():
			db.Close()
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: ping failed after retries: %w", driver, err)
	}

	s := &SQLStore{db: db, driver: driver}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: migrate: %w", driver, err)
	}
	return s, nil
}

// Close releases the connection pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders into $n for PostgreSQL.
func (s *SQLStore) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// inTx runs fn in a transaction and commits when it returns nil.
func (s *SQLStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *SQLStore) SaveListings(ctx context.Context, listings []domain.RawListing) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, s.rebind(`
			INSERT INTO raw_listings
				(id, retailer_id, raw_name, regular_price, sale_price, image_url, product_id, status, attempts, last_error, created_at)
			VALUES (?, ?, ?, ?, ?, ?, NULL, ?, 0, '', ?)`))
		if err != nil {
			return fmt.Errorf("prepare listing insert: %w", err)
		}
		defer stmt.Close()

		for _, l := range listings {
			if _, err := stmt.ExecContext(ctx,
				l.ID, l.RetailerID, l.RawName, l.RegularPrice, nullFloat(l.SalePrice), l.ImageURL,
				string(domain.StatusUnresolved), l.CreatedAt.UnixNano(),
			); err != nil {
				return fmt.Errorf("insert listing %s: %w", l.ID, err)
			}
		}
		return nil
	})
}

const listingColumns = `id, retailer_id, raw_name, regular_price, sale_price, image_url, product_id, status, attempts, last_error, created_at`

func (s *SQLStore) PendingListings(ctx context.Context, limit int) ([]domain.RawListing, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT `+listingColumns+` FROM raw_listings
		WHERE status = ?
		ORDER BY attempts, created_at, id
		LIMIT ?`), string(domain.StatusUnresolved), limit)
	if err != nil {
		return nil, fmt.Errorf("query pending listings: %w", err)
	}
	return scanListings(rows)
}

func (s *SQLStore) ListListings(ctx context.Context) ([]domain.RawListing, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+listingColumns+` FROM raw_listings ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query listings: %w", err)
	}
	return scanListings(rows)
}

func (s *SQLStore) MarkFailed(ctx context.Context, listingID, reason string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE raw_listings SET attempts = attempts + 1, last_error = ? WHERE id = ?`), reason, listingID)
	if err != nil {
		return fmt.Errorf("mark listing failed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrListingNotFound
	}
	return nil
}

func (s *SQLStore) GetProduct(ctx context.Context, id string) (*domain.CanonicalProduct, error) {
	return s.reload(ctx, s.db, id)
}

func (s *SQLStore) ListProducts(ctx context.Context) ([]domain.CanonicalProduct, error) {
	return s.loadProducts(ctx, s.db, ``)
}

func (s *SQLStore) SingleRetailerProducts(ctx context.Context, afterID string, limit int) ([]domain.CanonicalProduct, error) {
	return s.loadProducts(ctx, s.db, `
		WHERE id > ?
		AND (SELECT COUNT(*) FROM retailer_prices r WHERE r.product_id = canonical_products.id) = 1
		ORDER BY id LIMIT ?`, afterID, limit)
}

func (s *SQLStore) CreateProduct(ctx context.Context, product domain.CanonicalProduct, listing domain.RawListing) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.checkUnresolved(ctx, tx, listing.ID); err != nil {
			return err
		}
		product = product.Clone()
		product.Absorb(listing)

		if err := s.insertProduct(ctx, tx, product); err != nil {
			return err
		}
		return s.resolveListing(ctx, tx, listing, product.ID)
	})
}

func (s *SQLStore) AttachListing(ctx context.Context, productID string, listing domain.RawListing, absorb domain.AbsorbFunc) (*domain.CanonicalProduct, error) {
	var out *domain.CanonicalProduct
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.lockProducts(ctx, tx, productID); err != nil {
			return err
		}
		products, err := s.loadProducts(ctx, tx, `WHERE id = ?`, productID)
		if err != nil {
			return err
		}
		if len(products) == 0 {
			return domain.ErrProductNotFound
		}
		if err := s.checkUnresolved(ctx, tx, listing.ID); err != nil {
			return err
		}

		if err := s.replaceProduct(ctx, tx, applyAbsorb(products[0], listing, absorb)); err != nil {
			return err
		}
		if err := s.resolveListing(ctx, tx, listing, productID); err != nil {
			return err
		}
		out, err = s.reload(ctx, tx, productID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLStore) MergeProducts(ctx context.Context, idA, idB string, merge domain.MergeFunc) (*domain.CanonicalProduct, error) {
	if idA == idB {
		return nil, fmt.Errorf("%w: cannot merge %s into itself", domain.ErrInvalidRequest, idA)
	}

	var out *domain.CanonicalProduct
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.lockProducts(ctx, tx, idA, idB); err != nil {
			return err
		}
		products, err := s.loadProducts(ctx, tx, `WHERE id = ? OR id = ? ORDER BY id`, idA, idB)
		if err != nil {
			return err
		}
		if len(products) != 2 {
			return domain.ErrProductNotFound
		}
		a, b := products[0], products[1]
		if a.ID != idA {
			a, b = b, a
		}

		keeper, loserID, err := applyMerge(a, b, merge)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, s.rebind(`UPDATE raw_listings SET product_id = ? WHERE product_id = ?`), keeper.ID, loserID); err != nil {
			return fmt.Errorf("repoint listings: %w", err)
		}
		if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM retailer_prices WHERE product_id = ?`), loserID); err != nil {
			return fmt.Errorf("delete loser prices: %w", err)
		}
		if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM canonical_products WHERE id = ?`), loserID); err != nil {
			return fmt.Errorf("delete loser: %w", err)
		}
		if err := s.replaceProduct(ctx, tx, keeper); err != nil {
			return err
		}
		out, err = s.reload(ctx, tx, keeper.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// lockProducts row-locks the given products until the transaction ends. On
// SQLite the database lock already serializes writers.
func (s *SQLStore) lockProducts(ctx context.Context, tx *sql.Tx, ids ...string) error {
	if s.driver != DriverPostgres {
		return nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	rows, err := tx.QueryContext(ctx, s.rebind(`
		SELECT id FROM canonical_products WHERE id IN (`+strings.Join(placeholders, ", ")+`)
		ORDER BY id FOR UPDATE`), args...)
	if err != nil {
		return fmt.Errorf("lock products: %w", err)
	}
	return rows.Close()
}

func (s *SQLStore) reload(ctx context.Context, q queryer, id string) (*domain.CanonicalProduct, error) {
	products, err := s.loadProducts(ctx, q, `WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, domain.ErrProductNotFound
	}
	return &products[0], nil
}

func (s *SQLStore) checkUnresolved(ctx context.Context, q queryer, listingID string) error {
	var productID sql.NullString
	err := q.QueryRowContext(ctx, s.rebind(`SELECT product_id FROM raw_listings WHERE id = ?`), listingID).Scan(&productID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrListingNotFound
	}
	if err != nil {
		return fmt.Errorf("load listing %s: %w", listingID, err)
	}
	if productID.Valid && productID.String != "" {
		return fmt.Errorf("%w: %s belongs to %s", domain.ErrListingResolved, listingID, productID.String)
	}
	return nil
}

func (s *SQLStore) resolveListing(ctx context.Context, q queryer, listing domain.RawListing, productID string) error {
	status := listing.Status
	if status == "" || status == domain.StatusUnresolved {
		status = domain.StatusStandalone
	}
	_, err := q.ExecContext(ctx, s.rebind(`
		UPDATE raw_listings SET product_id = ?, status = ?, last_error = '' WHERE id = ?`),
		productID, string(status), listing.ID)
	if err != nil {
		return fmt.Errorf("resolve listing %s: %w", listing.ID, err)
	}
	return nil
}

func (s *SQLStore) insertProduct(ctx context.Context, q queryer, p domain.CanonicalProduct) error {
	names, err := json.Marshal(p.SourceNames)
	if err != nil {
		return err
	}
	if _, err := q.ExecContext(ctx, s.rebind(`
		INSERT INTO canonical_products (id, canonical_name, unit, image_url, source_names, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`),
		p.ID, p.CanonicalName, p.Unit, p.ImageURL, string(names), p.CreatedAt.UnixNano(),
	); err != nil {
		return fmt.Errorf("insert product %s: %w", p.ID, err)
	}
	return s.writePrices(ctx, q, p)
}

// replaceProduct overwrites the product row and its full price map.
func (s *SQLStore) replaceProduct(ctx context.Context, q queryer, p domain.CanonicalProduct) error {
	names, err := json.Marshal(p.SourceNames)
	if err != nil {
		return err
	}
	if _, err := q.ExecContext(ctx, s.rebind(`
		UPDATE canonical_products SET canonical_name = ?, unit = ?, image_url = ?, source_names = ? WHERE id = ?`),
		p.CanonicalName, p.Unit, p.ImageURL, string(names), p.ID,
	); err != nil {
		return fmt.Errorf("update product %s: %w", p.ID, err)
	}
	if _, err := q.ExecContext(ctx, s.rebind(`DELETE FROM retailer_prices WHERE product_id = ?`), p.ID); err != nil {
		return fmt.Errorf("clear prices of %s: %w", p.ID, err)
	}
	return s.writePrices(ctx, q, p)
}

func (s *SQLStore) writePrices(ctx context.Context, q queryer, p domain.CanonicalProduct) error {
	for _, retailer := range p.Retailers() {
		price := p.PerRetailerPrices[retailer]
		onSale := 0
		if price.OnSale {
			onSale = 1
		}
		if _, err := q.ExecContext(ctx, s.rebind(`
			INSERT INTO retailer_prices (product_id, retailer_id, price, original_price, on_sale)
			VALUES (?, ?, ?, ?, ?)`),
			p.ID, retailer, price.Price, nullFloat(price.OriginalPrice), onSale,
		); err != nil {
			return fmt.Errorf("insert price %s/%s: %w", p.ID, retailer, err)
		}
	}
	return nil
}

// loadProducts selects products by a trailing WHERE/ORDER clause and fills
// in their prices and listing ids.
func (s *SQLStore) loadProducts(ctx context.Context, q queryer, clause string, args ...any) ([]domain.CanonicalProduct, error) {
	if clause == "" {
		clause = `ORDER BY id`
	}
	rows, err := q.QueryContext(ctx, s.rebind(`
		SELECT id, canonical_name, unit, image_url, source_names, created_at
		FROM canonical_products `+clause), args...)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}

	var products []domain.CanonicalProduct
	index := make(map[string]int)
	for rows.Next() {
		var (
			p       domain.CanonicalProduct
			names   string
			created int64
		)
		if err := rows.Scan(&p.ID, &p.CanonicalName, &p.Unit, &p.ImageURL, &names, &created); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan product: %w", err)
		}
		if err := json.Unmarshal([]byte(names), &p.SourceNames); err != nil {
			rows.Close()
			return nil, fmt.Errorf("decode source names of %s: %w", p.ID, err)
		}
		p.CreatedAt = time.Unix(0, created).UTC()
		p.PerRetailerPrices = make(map[string]domain.RetailerPrice)
		index[p.ID] = len(products)
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if len(products) == 0 {
		return products, nil
	}
	if err := s.fillPrices(ctx, q, products, index); err != nil {
		return nil, err
	}
	if err := s.fillListingIDs(ctx, q, products, index); err != nil {
		return nil, err
	}
	return products, nil
}

// fillPrices loads prices for every product in one query when the set is
// large and per product when it is small.
func (s *SQLStore) fillPrices(ctx context.Context, q queryer, products []domain.CanonicalProduct, index map[string]int) error {
	query, args := s.forProducts(`SELECT product_id, retailer_id, price, original_price, on_sale FROM retailer_prices`, products)
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query prices: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			productID, retailer string
			price               float64
			original            sql.NullFloat64
			onSale              int
		)
		if err := rows.Scan(&productID, &retailer, &price, &original, &onSale); err != nil {
			return fmt.Errorf("scan price: %w", err)
		}
		i, ok := index[productID]
		if !ok {
			continue
		}
		rp := domain.RetailerPrice{Price: price, OnSale: onSale != 0}
		if original.Valid {
			v := original.Float64
			rp.OriginalPrice = &v
		}
		products[i].PerRetailerPrices[retailer] = rp
	}
	return rows.Err()
}

func (s *SQLStore) fillListingIDs(ctx context.Context, q queryer, products []domain.CanonicalProduct, index map[string]int) error {
	query, args := s.forProducts(`SELECT product_id, id FROM raw_listings`, products)
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query listing ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var productID sql.NullString
		var id string
		if err := rows.Scan(&productID, &id); err != nil {
			return fmt.Errorf("scan listing id: %w", err)
		}
		if i, ok := index[productID.String]; ok && productID.Valid {
			products[i].ListingIDs = append(products[i].ListingIDs, id)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for i := range products {
		sort.Strings(products[i].ListingIDs)
	}
	return nil
}

// forProducts restricts a product_id keyed query to the given products, or
// reads the whole table when there are too many ids for an IN list.
func (s *SQLStore) forProducts(base string, products []domain.CanonicalProduct) (string, []any) {
	const maxInList = 500
	if len(products) > maxInList {
		return base + ` WHERE product_id IS NOT NULL`, nil
	}
	placeholders := make([]string, len(products))
	args := make([]any, len(products))
	for i, p := range products {
		placeholders[i] = "?"
		args[i] = p.ID
	}
	return s.rebind(base + ` WHERE product_id IN (` + strings.Join(placeholders, ", ") + `)`), args
}

func scanListings(rows *sql.Rows) ([]domain.RawListing, error) {
	defer rows.Close()

	var out []domain.RawListing
	for rows.Next() {
		var (
			l         domain.RawListing
			sale      sql.NullFloat64
			productID sql.NullString
			status    string
			created   int64
		)
		if err := rows.Scan(&l.ID, &l.RetailerID, &l.RawName, &l.RegularPrice, &sale, &l.ImageURL,
			&productID, &status, &l.Attempts, &l.LastError, &created); err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		if sale.Valid {
			v := sale.Float64
			l.SalePrice = &v
		}
		l.ProductID = productID.String
		l.Status = domain.ListingStatus(status)
		l.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, l)
	}
	return out, rows.Err()
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
