package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"salepoint/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidSale       = errors.New("invalid sale")
	ErrConstraint        = errors.New("constraint violation")
)

// InsufficientStockError carries the per-line shortfalls detected inside the
// commit transaction. errors.Is(err, ErrInsufficientStock) matches it.
type InsufficientStockError struct {
	Shortfalls []domain.StockShortfall
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, 0, len(e.Shortfalls))
	for _, s := range e.Shortfalls {
		parts = append(parts, fmt.Sprintf("%s requested=%d available=%d", s.ProductID, s.Requested, s.Available))
	}
	return "insufficient stock: " + strings.Join(parts, ", ")
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// Repository is the backing-store contract. CommitSale is the single
// transaction boundary for turning a cart into a durable sale: stock
// decrement, sale + line insertion, and the cash-drawer change decrement all
// succeed or fail as one unit; no partial writes are ever visible.
type Repository interface {
	// Catalog.
	ListProducts(ctx context.Context) ([]domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error)

	// Stock ledger. GetStockLevels is advisory only: a plain read with no
	// side effect, allowed to go stale between check and commit.
	GetStockLevels(ctx context.Context, productIDs []string) (map[string]int, error)

	// Sale commit. The sale's totals must already satisfy
	// Total = Subtotal + Tax + Shipping; the store re-verifies and rejects
	// with ErrInvalidSale otherwise. Returns *InsufficientStockError when any
	// line cannot be covered.
	CommitSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	GetSale(ctx context.Context, saleID string) (*domain.Sale, error)

	// Draft orders. SaveDraft upserts in place when the draft already has an
	// id; DeleteDraft is idempotent.
	SaveDraft(ctx context.Context, draft domain.DraftOrder) (*domain.DraftOrder, error)
	GetDraft(ctx context.Context, draftID string) (*domain.DraftOrder, error)
	ListDrafts(ctx context.Context, ownerUserID string, role string) ([]domain.DraftOrder, error)
	DeleteDraft(ctx context.Context, draftID string) error

	// Cash drawer. AdjustCashDrawer writes the balance and its audit record
	// in the same unit of work; the audit write is never best-effort.
	GetCashDrawer(ctx context.Context, userID string) (*domain.CashDrawerBalance, error)
	AdjustCashDrawer(ctx context.Context, adj domain.CashAdjustment) (*domain.CashDrawerBalance, error)
	ListCashAdjustments(ctx context.Context, userID string, limit int) ([]domain.CashAdjustment, error)

	// Tax settings, read fresh per commit attempt.
	GetTaxConfig(ctx context.Context) (domain.TaxConfig, error)
	UpdateTaxConfig(ctx context.Context, cfg domain.TaxConfig) error

	// Auth accounts.
	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
