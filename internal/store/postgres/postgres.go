package postgres

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"salepoint/backend/internal/domain"
	"salepoint/backend/internal/store"
	"salepoint/backend/internal/xid"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(s.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, sku, name, price_minor, cost_minor, available_qty, active, created_at, updated_at
		FROM products
		WHERE active = true
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.PriceMinor, &p.CostMinor, &p.AvailableQty, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return products, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.SKU == "" || product.Name == "" || product.PriceMinor < 1 || product.AvailableQty < 0 {
		return nil, store.ErrConstraint
	}
	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	now := time.Now().UTC()
	product.Active = true
	product.CreatedAt = now
	product.UpdatedAt = now

	_, err := s.pool.Exec(ctx, `
		INSERT INTO products (id, sku, name, price_minor, cost_minor, available_qty, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, product.ID, product.SKU, product.Name, product.PriceMinor, product.CostMinor, product.AvailableQty, product.Active, product.CreatedAt, product.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConstraint
		}
		return nil, fmt.Errorf("insert product: %w", err)
	}

	created := product
	return &created, nil
}

func (s *Store) GetProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	if len(ids) == 0 {
		return map[string]domain.Product{}, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, sku, name, price_minor, cost_minor, available_qty, active, created_at, updated_at
		FROM products
		WHERE active = true AND id = ANY($1)
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("select products by ids: %w", err)
	}
	defer rows.Close()

	result := make(map[string]domain.Product, len(ids))
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.PriceMinor, &p.CostMinor, &p.AvailableQty, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		result[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return result, nil
}

// GetStockLevels is the advisory read used by the stock-check endpoint. It
// takes no locks; commit-time verification happens under FOR UPDATE in
// CommitSale.
func (s *Store) GetStockLevels(ctx context.Context, productIDs []string) (map[string]int, error) {
	if len(productIDs) == 0 {
		return map[string]int{}, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, available_qty
		FROM products
		WHERE active = true AND id = ANY($1)
	`, productIDs)
	if err != nil {
		return nil, fmt.Errorf("select stock levels: %w", err)
	}
	defer rows.Close()

	levels := make(map[string]int, len(productIDs))
	for rows.Next() {
		var id string
		var qty int
		if err := rows.Scan(&id, &qty); err != nil {
			return nil, fmt.Errorf("scan stock level: %w", err)
		}
		levels[id] = qty
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return levels, nil
}

// CommitSale is the transaction boundary for a sale. Ordering inside the
// transaction: lock and decrement stock for every line, insert the sale row
// and its lines, decrement the committing user's drawer for change given.
// Any failure rolls back all of it.
func (s *Store) CommitSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if len(sale.Lines) == 0 || sale.UserID == "" {
		return nil, store.ErrInvalidSale
	}
	if sale.TotalMinor != sale.SubtotalMinor+sale.TaxMinor+sale.ShippingMinor {
		return nil, store.ErrInvalidSale
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	ids := make([]string, 0, len(sale.Lines))
	for _, line := range sale.Lines {
		if line.Quantity < 1 {
			return nil, store.ErrInvalidSale
		}
		ids = append(ids, line.ProductID)
	}

	// Lock-then-verify-then-write. The advisory check alone cannot prevent
	// oversell under concurrent commits against the same product.
	rows, err := tx.Query(ctx, `
		SELECT id, available_qty
		FROM products
		WHERE active = true AND id = ANY($1)
		ORDER BY id
		FOR UPDATE
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("lock products: %w", err)
	}
	locked := make(map[string]int, len(ids))
	for rows.Next() {
		var id string
		var qty int
		if err := rows.Scan(&id, &qty); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan locked product: %w", err)
		}
		locked[id] = qty
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("rows error: %w", err)
	}
	rows.Close()

	shortfalls := make([]domain.StockShortfall, 0, 2)
	for _, line := range sale.Lines {
		available, ok := locked[line.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: product %s unavailable", store.ErrConstraint, line.ProductID)
		}
		if available < line.Quantity {
			shortfalls = append(shortfalls, domain.StockShortfall{
				ProductID: line.ProductID,
				Requested: line.Quantity,
				Available: available,
			})
		}
	}
	if len(shortfalls) > 0 {
		return nil, &store.InsufficientStockError{Shortfalls: shortfalls}
	}

	for _, line := range sale.Lines {
		if _, err := tx.Exec(ctx, `
			UPDATE products
			SET available_qty = available_qty - $1, updated_at = now()
			WHERE id = $2
		`, line.Quantity, line.ProductID); err != nil {
			return nil, fmt.Errorf("decrement stock: %w", err)
		}
	}

	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}
	if sale.PaymentStatus == "" {
		sale.PaymentStatus = domain.SaleStatusPaid
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO sales (
			id, user_id, customer_id, subtotal_minor, tax_minor, shipping_minor,
			total_minor, payment_method, payment_status, cash_tendered_minor,
			change_given_minor, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, sale.ID, sale.UserID, nullIfEmpty(sale.CustomerID), sale.SubtotalMinor, sale.TaxMinor,
		sale.ShippingMinor, sale.TotalMinor, sale.PaymentMethod, sale.PaymentStatus,
		sale.CashTenderedMinor, sale.ChangeGivenMinor, sale.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert sale: %w", err)
	}

	for i := range sale.Lines {
		sale.Lines[i].SaleID = sale.ID
		line := sale.Lines[i]
		if _, err := tx.Exec(ctx, `
			INSERT INTO sale_lines (sale_id, product_id, product_name, sku, quantity, unit_price_minor, line_subtotal_minor)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, line.SaleID, line.ProductID, line.ProductName, line.SKU, line.Quantity, line.UnitPriceMinor, line.LineSubtotalMinor); err != nil {
			return nil, fmt.Errorf("insert sale line: %w", err)
		}
	}

	if sale.ChangeGivenMinor > 0 && (sale.PaymentMethod == domain.PaymentCash || sale.PaymentMethod == domain.PaymentSplit) {
		if _, err := tx.Exec(ctx, `
			INSERT INTO cash_drawers (user_id, balance_minor, updated_at)
			VALUES ($1, 0, now())
			ON CONFLICT (user_id) DO NOTHING
		`, sale.UserID); err != nil {
			return nil, fmt.Errorf("ensure drawer row: %w", err)
		}
		var dummy int64
		if err := tx.QueryRow(ctx, `
			SELECT balance_minor FROM cash_drawers WHERE user_id = $1 FOR UPDATE
		`, sale.UserID).Scan(&dummy); err != nil {
			return nil, fmt.Errorf("lock drawer: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			UPDATE cash_drawers
			SET balance_minor = balance_minor - $1, updated_at = now()
			WHERE user_id = $2
		`, sale.ChangeGivenMinor, sale.UserID); err != nil {
			return nil, fmt.Errorf("decrement drawer: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	committed := sale
	return &committed, nil
}

func (s *Store) GetSale(ctx context.Context, saleID string) (*domain.Sale, error) {
	var sale domain.Sale
	var customerID *string
	err := s.pool.QueryRow(ctx, `
		SELECT id, user_id, customer_id, subtotal_minor, tax_minor, shipping_minor,
		       total_minor, payment_method, payment_status, cash_tendered_minor,
		       change_given_minor, created_at
		FROM sales
		WHERE id = $1
	`, saleID).Scan(&sale.ID, &sale.UserID, &customerID, &sale.SubtotalMinor, &sale.TaxMinor,
		&sale.ShippingMinor, &sale.TotalMinor, &sale.PaymentMethod, &sale.PaymentStatus,
		&sale.CashTenderedMinor, &sale.ChangeGivenMinor, &sale.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("select sale: %w", err)
	}
	if customerID != nil {
		sale.CustomerID = *customerID
	}

	rows, err := s.pool.Query(ctx, `
		SELECT sale_id, product_id, product_name, sku, quantity, unit_price_minor, line_subtotal_minor
		FROM sale_lines
		WHERE sale_id = $1
	`, saleID)
	if err != nil {
		return nil, fmt.Errorf("select sale lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var line domain.SaleLine
		if err := rows.Scan(&line.SaleID, &line.ProductID, &line.ProductName, &line.SKU, &line.Quantity, &line.UnitPriceMinor, &line.LineSubtotalMinor); err != nil {
			return nil, fmt.Errorf("scan sale line: %w", err)
		}
		sale.Lines = append(sale.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return &sale, nil
}

func (s *Store) SaveDraft(ctx context.Context, draft domain.DraftOrder) (*domain.DraftOrder, error) {
	if draft.OwnerUserID == "" || len(draft.Lines) == 0 {
		return nil, store.ErrConstraint
	}

	lines, err := json.Marshal(draft.Lines)
	if err != nil {
		return nil, fmt.Errorf("marshal draft lines: %w", err)
	}

	now := time.Now().UTC()
	if draft.ID == "" {
		draft.ID = xid.New("draft")
		draft.CreatedAt = now
		draft.UpdatedAt = now
		_, err = s.pool.Exec(ctx, `
			INSERT INTO draft_orders (id, owner_user_id, customer_id, name, shipping_minor, lines, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`, draft.ID, draft.OwnerUserID, nullIfEmpty(draft.CustomerID), nullIfEmpty(draft.Name), draft.ShippingMinor, lines, draft.CreatedAt, draft.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("insert draft: %w", err)
		}
		saved := draft
		return &saved, nil
	}

	draft.UpdatedAt = now
	tag, err := s.pool.Exec(ctx, `
		UPDATE draft_orders
		SET customer_id = $2, name = $3, shipping_minor = $4, lines = $5, updated_at = $6
		WHERE id = $1
	`, draft.ID, nullIfEmpty(draft.CustomerID), nullIfEmpty(draft.Name), draft.ShippingMinor, lines, draft.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("update draft: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, store.ErrNotFound
	}

	return s.GetDraft(ctx, draft.ID)
}

func (s *Store) GetDraft(ctx context.Context, draftID string) (*domain.DraftOrder, error) {
	var draft domain.DraftOrder
	var customerID, name *string
	var lines []byte
	err := s.pool.QueryRow(ctx, `
		SELECT id, owner_user_id, customer_id, name, shipping_minor, lines, created_at, updated_at
		FROM draft_orders
		WHERE id = $1
	`, draftID).Scan(&draft.ID, &draft.OwnerUserID, &customerID, &name, &draft.ShippingMinor, &lines, &draft.CreatedAt, &draft.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("select draft: %w", err)
	}
	if customerID != nil {
		draft.CustomerID = *customerID
	}
	if name != nil {
		draft.Name = *name
	}
	if err := json.Unmarshal(lines, &draft.Lines); err != nil {
		return nil, fmt.Errorf("unmarshal draft lines: %w", err)
	}
	return &draft, nil
}

func (s *Store) ListDrafts(ctx context.Context, ownerUserID string, role string) ([]domain.DraftOrder, error) {
	query := `
		SELECT id, owner_user_id, customer_id, name, shipping_minor, lines, created_at, updated_at
		FROM draft_orders
		ORDER BY updated_at DESC
	`
	args := []any{}
	if role == domain.RoleCustomer {
		query = `
			SELECT id, owner_user_id, customer_id, name, shipping_minor, lines, created_at, updated_at
			FROM draft_orders
			WHERE owner_user_id = $1
			ORDER BY updated_at DESC
		`
		args = append(args, ownerUserID)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select drafts: %w", err)
	}
	defer rows.Close()

	drafts := make([]domain.DraftOrder, 0, 32)
	for rows.Next() {
		var draft domain.DraftOrder
		var customerID, name *string
		var lines []byte
		if err := rows.Scan(&draft.ID, &draft.OwnerUserID, &customerID, &name, &draft.ShippingMinor, &lines, &draft.CreatedAt, &draft.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan draft: %w", err)
		}
		if customerID != nil {
			draft.CustomerID = *customerID
		}
		if name != nil {
			draft.Name = *name
		}
		if err := json.Unmarshal(lines, &draft.Lines); err != nil {
			return nil, fmt.Errorf("unmarshal draft lines: %w", err)
		}
		drafts = append(drafts, draft)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return drafts, nil
}

// DeleteDraft is idempotent by contract: zero rows affected is success.
func (s *Store) DeleteDraft(ctx context.Context, draftID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM draft_orders WHERE id = $1`, draftID); err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}

func (s *Store) GetCashDrawer(ctx context.Context, userID string) (*domain.CashDrawerBalance, error) {
	var drawer domain.CashDrawerBalance
	err := s.pool.QueryRow(ctx, `
		SELECT user_id, balance_minor, updated_at
		FROM cash_drawers
		WHERE user_id = $1
	`, userID).Scan(&drawer.UserID, &drawer.BalanceMinor, &drawer.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &domain.CashDrawerBalance{UserID: userID, BalanceMinor: 0, UpdatedAt: time.Now().UTC()}, nil
		}
		return nil, fmt.Errorf("select drawer: %w", err)
	}
	return &drawer, nil
}

// AdjustCashDrawer overrides the drawer balance and appends the audit record
// in the same transaction. The old balance is read under a row lock so
// concurrent adjustments serialize and the audit trail stays consistent.
func (s *Store) AdjustCashDrawer(ctx context.Context, adj domain.CashAdjustment) (*domain.CashDrawerBalance, error) {
	if adj.UserID == "" || adj.AdminID == "" {
		return nil, store.ErrConstraint
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO cash_drawers (user_id, balance_minor, updated_at)
		VALUES ($1, 0, now())
		ON CONFLICT (user_id) DO NOTHING
	`, adj.UserID); err != nil {
		return nil, fmt.Errorf("ensure drawer row: %w", err)
	}

	var oldBalance int64
	if err := tx.QueryRow(ctx, `
		SELECT balance_minor FROM cash_drawers WHERE user_id = $1 FOR UPDATE
	`, adj.UserID).Scan(&oldBalance); err != nil {
		return nil, fmt.Errorf("lock drawer: %w", err)
	}

	now := time.Now().UTC()
	adj.OldAmountMinor = oldBalance
	if adj.ID == "" {
		adj.ID = xid.New("cadj")
	}
	adj.CreatedAt = now

	if _, err := tx.Exec(ctx, `
		UPDATE cash_drawers SET balance_minor = $1, updated_at = $2 WHERE user_id = $3
	`, adj.NewAmountMinor, now, adj.UserID); err != nil {
		return nil, fmt.Errorf("update drawer: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO cash_adjustments (id, user_id, admin_id, old_amount_minor, new_amount_minor, reason, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, adj.ID, adj.UserID, adj.AdminID, adj.OldAmountMinor, adj.NewAmountMinor, nullIfEmpty(adj.Reason), adj.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert adjustment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &domain.CashDrawerBalance{UserID: adj.UserID, BalanceMinor: adj.NewAmountMinor, UpdatedAt: now}, nil
}

func (s *Store) ListCashAdjustments(ctx context.Context, userID string, limit int) ([]domain.CashAdjustment, error) {
	if limit < 1 {
		limit = 100
	}

	query := `
		SELECT id, user_id, admin_id, old_amount_minor, new_amount_minor, reason, created_at
		FROM cash_adjustments
		ORDER BY created_at DESC
		LIMIT $1
	`
	args := []any{limit}
	if userID != "" {
		query = `
			SELECT id, user_id, admin_id, old_amount_minor, new_amount_minor, reason, created_at
			FROM cash_adjustments
			WHERE user_id = $2
			ORDER BY created_at DESC
			LIMIT $1
		`
		args = append(args, userID)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select adjustments: %w", err)
	}
	defer rows.Close()

	result := make([]domain.CashAdjustment, 0, limit)
	for rows.Next() {
		var adj domain.CashAdjustment
		var reason *string
		if err := rows.Scan(&adj.ID, &adj.UserID, &adj.AdminID, &adj.OldAmountMinor, &adj.NewAmountMinor, &reason, &adj.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan adjustment: %w", err)
		}
		if reason != nil {
			adj.Reason = *reason
		}
		result = append(result, adj)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return result, nil
}

func (s *Store) GetTaxConfig(ctx context.Context) (domain.TaxConfig, error) {
	var cfg domain.TaxConfig
	err := s.pool.QueryRow(ctx, `
		SELECT rate_percent, inclusive FROM tax_settings WHERE id = 1
	`).Scan(&cfg.RatePercent, &cfg.Inclusive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.TaxConfig{}, nil
		}
		return domain.TaxConfig{}, fmt.Errorf("select tax settings: %w", err)
	}
	return cfg, nil
}

func (s *Store) UpdateTaxConfig(ctx context.Context, cfg domain.TaxConfig) error {
	if cfg.RatePercent < 0 || cfg.RatePercent > 100 {
		return store.ErrConstraint
	}
	if _, err := s.pool.Exec(ctx, `
		INSERT INTO tax_settings (id, rate_percent, inclusive)
		VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET rate_percent = EXCLUDED.rate_percent, inclusive = EXCLUDED.inclusive
	`, cfg.RatePercent, cfg.Inclusive); err != nil {
		return fmt.Errorf("upsert tax settings: %w", err)
	}
	return nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	if user.Username == "" {
		return store.ErrConstraint
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (username, password, role, active, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrConstraint
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT username, password, role, active, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, fmt.Errorf("select users: %w", err)
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var u domain.UserAccount
		if err := rows.Scan(&u.Username, &u.Password, &u.Role, &u.Active, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET password = $2 WHERE username = $1
	`, username, password)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

func nullIfEmpty(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
