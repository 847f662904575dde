package memory

import (
	"context"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"salepoint/backend/internal/domain"
	"salepoint/backend/internal/store"
	"salepoint/backend/internal/xid"
)

// Store is an in-memory Repository used for dev mode and tests. It mirrors
// the transactional semantics of the postgres store under a single mutex:
// CommitSale either applies every write or none of them.
type Store struct {
	mu              sync.RWMutex
	products        map[string]domain.Product
	salesByID       map[string]*domain.Sale
	draftsByID      map[string]domain.DraftOrder
	drawers         map[string]domain.CashDrawerBalance
	cashAdjustments []domain.CashAdjustment
	taxConfig       domain.TaxConfig
	usersByUsername map[string]domain.UserAccount
}

// seedUsers builds the initial accounts for dev/demo mode. Credentials come
// from SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD; hardcoded dev defaults
// are used with a warning when unset.
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, domain.RoleAdmin},
		{"cashier", cashierPwd, domain.RoleCashier},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	now := time.Now().UTC()
	products := []domain.Product{
		{ID: "prod-noodles", SKU: "SKU-NOODLES-01", Name: "Instant Noodles", PriceMinor: 3500, CostMinor: 2700, AvailableQty: 120},
		{ID: "prod-eggs", SKU: "SKU-EGGS-01", Name: "Eggs 10pc", PriceMinor: 26500, CostMinor: 23000, AvailableQty: 80},
		{ID: "prod-milk", SKU: "SKU-MILK-01", Name: "UHT Milk 1L", PriceMinor: 18900, CostMinor: 13600, AvailableQty: 60},
		{ID: "prod-bread", SKU: "SKU-BREAD-01", Name: "White Bread", PriceMinor: 17800, CostMinor: 12400, AvailableQty: 45},
		{ID: "prod-coffee", SKU: "SKU-COFFEE-01", Name: "Coffee Sachet", PriceMinor: 2600, CostMinor: 1700, AvailableQty: 200},
		{ID: "prod-sugar", SKU: "SKU-SUGAR-01", Name: "Sugar 1kg", PriceMinor: 17400, CostMinor: 15300, AvailableQty: 70},
		{ID: "prod-water", SKU: "SKU-WATER-01", Name: "Mineral Water 600ml", PriceMinor: 3900, CostMinor: 3200, AvailableQty: 300},
		{ID: "prod-soap", SKU: "SKU-SOAP-01", Name: "Bath Soap", PriceMinor: 7400, CostMinor: 5000, AvailableQty: 90},
	}

	productMap := make(map[string]domain.Product, len(products))
	for _, p := range products {
		p.Active = true
		p.CreatedAt = now
		p.UpdatedAt = now
		productMap[p.ID] = p
	}

	return &Store{
		products:        productMap,
		salesByID:       make(map[string]*domain.Sale),
		draftsByID:      make(map[string]domain.DraftOrder),
		drawers:         make(map[string]domain.CashDrawerBalance),
		cashAdjustments: make([]domain.CashAdjustment, 0, 32),
		taxConfig:       domain.TaxConfig{RatePercent: 11, Inclusive: false},
		usersByUsername: seedUsers(),
	}
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if !p.Active {
			continue
		}
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		return strings.Compare(a.Name, b.Name)
	})
	return products, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if product.SKU == "" || product.Name == "" || product.PriceMinor < 1 || product.AvailableQty < 0 {
		return nil, store.ErrConstraint
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.products {
		if existing.SKU == product.SKU {
			return nil, store.ErrConstraint
		}
	}
	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	now := time.Now().UTC()
	product.Active = true
	product.CreatedAt = now
	product.UpdatedAt = now
	s.products[product.ID] = product
	created := product
	return &created, nil
}

func (s *Store) GetProductsByIDs(_ context.Context, ids []string) (map[string]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok && p.Active {
			result[id] = p
		}
	}
	return result, nil
}

func (s *Store) GetStockLevels(_ context.Context, productIDs []string) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	levels := make(map[string]int, len(productIDs))
	for _, id := range productIDs {
		if p, ok := s.products[id]; ok && p.Active {
			levels[id] = p.AvailableQty
		}
	}
	return levels, nil
}

// CommitSale applies the all-or-nothing commit: verify and decrement stock
// for every line, insert the sale with its lines, decrement the drawer for
// change given. Shortfalls are collected across all lines before anything is
// written.
func (s *Store) CommitSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	if len(sale.Lines) == 0 {
		return nil, store.ErrInvalidSale
	}
	if sale.TotalMinor != sale.SubtotalMinor+sale.TaxMinor+sale.ShippingMinor {
		return nil, store.ErrInvalidSale
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	shortfalls := make([]domain.StockShortfall, 0, 2)
	for _, line := range sale.Lines {
		product, ok := s.products[line.ProductID]
		if !ok || !product.Active {
			return nil, store.ErrConstraint
		}
		if product.AvailableQty < line.Quantity {
			shortfalls = append(shortfalls, domain.StockShortfall{
				ProductID: line.ProductID,
				Requested: line.Quantity,
				Available: product.AvailableQty,
			})
		}
	}
	if len(shortfalls) > 0 {
		return nil, &store.InsufficientStockError{Shortfalls: shortfalls}
	}

	for _, line := range sale.Lines {
		product := s.products[line.ProductID]
		product.AvailableQty -= line.Quantity
		product.UpdatedAt = time.Now().UTC()
		s.products[line.ProductID] = product
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
	for i := range sale.Lines {
		sale.Lines[i].SaleID = sale.ID
	}

	if sale.ChangeGivenMinor > 0 && (sale.PaymentMethod == domain.PaymentCash || sale.PaymentMethod == domain.PaymentSplit) {
		drawer := s.drawers[sale.UserID]
		drawer.UserID = sale.UserID
		drawer.BalanceMinor -= sale.ChangeGivenMinor
		drawer.UpdatedAt = time.Now().UTC()
		s.drawers[sale.UserID] = drawer
	}

	stored := sale
	s.salesByID[sale.ID] = &stored
	result := stored
	return &result, nil
}

func (s *Store) GetSale(_ context.Context, saleID string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.salesByID[saleID]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *sale
	copied.Lines = slices.Clone(sale.Lines)
	return &copied, nil
}

func (s *Store) SaveDraft(_ context.Context, draft domain.DraftOrder) (*domain.DraftOrder, error) {
	if draft.OwnerUserID == "" || len(draft.Lines) == 0 {
		return nil, store.ErrConstraint
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if draft.ID == "" {
		draft.ID = xid.New("draft")
		draft.CreatedAt = now
	} else {
		existing, ok := s.draftsByID[draft.ID]
		if !ok {
			return nil, store.ErrNotFound
		}
		draft.CreatedAt = existing.CreatedAt
		// Ownership is fixed at creation; an update by another role must not
		// move the draft out of the owner's scoped view.
		draft.OwnerUserID = existing.OwnerUserID
	}
	draft.UpdatedAt = now
	draft.Lines = slices.Clone(draft.Lines)
	s.draftsByID[draft.ID] = draft
	saved := draft
	return &saved, nil
}

func (s *Store) GetDraft(_ context.Context, draftID string) (*domain.DraftOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	draft, ok := s.draftsByID[draftID]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := draft
	copied.Lines = slices.Clone(draft.Lines)
	return &copied, nil
}

func (s *Store) ListDrafts(_ context.Context, ownerUserID string, role string) ([]domain.DraftOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	drafts := make([]domain.DraftOrder, 0, len(s.draftsByID))
	for _, draft := range s.draftsByID {
		if role == domain.RoleCustomer && draft.OwnerUserID != ownerUserID {
			continue
		}
		copied := draft
		copied.Lines = slices.Clone(draft.Lines)
		drafts = append(drafts, copied)
	}
	slices.SortFunc(drafts, func(a, b domain.DraftOrder) int {
		return b.UpdatedAt.Compare(a.UpdatedAt)
	})
	return drafts, nil
}

// DeleteDraft is idempotent: deleting an absent draft is not an error.
func (s *Store) DeleteDraft(_ context.Context, draftID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.draftsByID, draftID)
	return nil
}

func (s *Store) GetCashDrawer(_ context.Context, userID string) (*domain.CashDrawerBalance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	drawer, ok := s.drawers[userID]
	if !ok {
		drawer = domain.CashDrawerBalance{UserID: userID, BalanceMinor: 0, UpdatedAt: time.Now().UTC()}
	}
	copied := drawer
	return &copied, nil
}

func (s *Store) AdjustCashDrawer(_ context.Context, adj domain.CashAdjustment) (*domain.CashDrawerBalance, error) {
	if adj.UserID == "" || adj.AdminID == "" {
		return nil, store.ErrConstraint
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	drawer := s.drawers[adj.UserID]
	adj.OldAmountMinor = drawer.BalanceMinor
	if adj.ID == "" {
		adj.ID = xid.New("cadj")
	}
	adj.CreatedAt = now

	drawer.UserID = adj.UserID
	drawer.BalanceMinor = adj.NewAmountMinor
	drawer.UpdatedAt = now
	s.drawers[adj.UserID] = drawer
	s.cashAdjustments = append(s.cashAdjustments, adj)

	copied := drawer
	return &copied, nil
}

func (s *Store) ListCashAdjustments(_ context.Context, userID string, limit int) ([]domain.CashAdjustment, error) {
	if limit < 1 {
		limit = 100
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.CashAdjustment, 0, limit)
	for i := len(s.cashAdjustments) - 1; i >= 0 && len(result) < limit; i-- {
		adj := s.cashAdjustments[i]
		if userID != "" && adj.UserID != userID {
			continue
		}
		result = append(result, adj)
	}
	return result, nil
}

func (s *Store) GetTaxConfig(_ context.Context) (domain.TaxConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.taxConfig, nil
}

func (s *Store) UpdateTaxConfig(_ context.Context, cfg domain.TaxConfig) error {
	if cfg.RatePercent < 0 || cfg.RatePercent > 100 {
		return store.ErrConstraint
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.taxConfig = cfg
	return nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" {
		return store.ErrConstraint
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrConstraint
	}
	user.Username = username
	s.usersByUsername[username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.usersByUsername[username]
	if !ok {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}
