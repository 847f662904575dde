package service

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"salepoint/backend/internal/cache"
	"salepoint/backend/internal/domain"
	"salepoint/backend/internal/money"
	"salepoint/backend/internal/store"
	"salepoint/backend/internal/xid"
)

type actorKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(domain.Actor)
	return actor, ok
}

var (
	// ErrPermissionDenied covers role failures: customers confirming sales,
	// non-admins adjusting drawers.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrInvalidPayment covers payment-input failures: short cash tender,
	// split portions outside (0, total).
	ErrInvalidPayment = errors.New("invalid payment input")
	// ErrUnknownProduct is returned when a cart references a product that is
	// missing or inactive.
	ErrUnknownProduct = errors.New("unknown product")
)

// Options carries the policy knobs the orchestrator runs under. Zero values
// fall back to the defaults below.
type Options struct {
	GuardWindow      time.Duration
	StockCheckTTL    time.Duration
	RetryAttempts    uint64
	RetryBaseBackoff time.Duration
}

func (o Options) withDefaults() Options {
	if o.GuardWindow <= 0 {
		o.GuardWindow = 500 * time.Millisecond
	}
	if o.StockCheckTTL <= 0 {
		o.StockCheckTTL = 3 * time.Second
	}
	if o.RetryAttempts == 0 {
		o.RetryAttempts = 2
	}
	if o.RetryBaseBackoff <= 0 {
		o.RetryBaseBackoff = 50 * time.Millisecond
	}
	return o
}

// Service is the sale commit orchestrator plus the surrounding lifecycle
// operations (stock checks, drafts, drawer, catalog, receipts).
type Service struct {
	repo  store.Repository
	cache cache.StockCache
	guard *CommitGuard
	log   *zap.SugaredLogger
	opts  Options
}

func New(repo store.Repository, stockCache cache.StockCache, log *zap.SugaredLogger, opts Options) *Service {
	opts = opts.withDefaults()
	if stockCache == nil {
		stockCache = cache.NoopStockCache{}
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Service{
		repo:  repo,
		cache: stockCache,
		guard: NewCommitGuard(opts.GuardWindow),
		log:   log,
		opts:  opts,
	}
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Product{}, ErrPermissionDenied
	}

	created, err := s.repo.CreateProduct(ctx, domain.Product{
		SKU:          strings.TrimSpace(req.SKU),
		Name:         strings.TrimSpace(req.Name),
		PriceMinor:   req.PriceMinor,
		CostMinor:    req.CostMinor,
		AvailableQty: req.InitialStock,
	})
	if err != nil {
		return domain.Product{}, err
	}
	return *created, nil
}

// CheckStock answers the advisory pre-commit question "would this cart clear
// right now". The answer may go stale immediately; only CommitSale decides.
func (s *Service) CheckStock(ctx context.Context, req domain.StockCheckRequest) (domain.StockCheckResponse, error) {
	items, err := normalizeStockRequests(req.Items)
	if err != nil {
		return domain.StockCheckResponse{}, err
	}

	key := stockCheckKey(items)
	if cached, hit, err := s.cache.Get(ctx, key); err == nil && hit {
		return *cached, nil
	} else if err != nil {
		s.log.Warnw("stock cache read failed", "error", err)
	}

	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}

	var levels map[string]int
	err = s.retryDo(ctx, func(ctx context.Context) error {
		var innerErr error
		levels, innerErr = s.repo.GetStockLevels(ctx, ids)
		return innerErr
	})
	if err != nil {
		return domain.StockCheckResponse{}, fmt.Errorf("read stock levels: %w", err)
	}

	resp := domain.StockCheckResponse{OK: true}
	for _, item := range items {
		available, found := levels[item.ProductID]
		if !found {
			resp.OK = false
			resp.Shortfalls = append(resp.Shortfalls, domain.StockShortfall{
				ProductID: item.ProductID,
				Requested: item.Quantity,
				Available: 0,
			})
			continue
		}
		if available < item.Quantity {
			resp.OK = false
			resp.Shortfalls = append(resp.Shortfalls, domain.StockShortfall{
				ProductID: item.ProductID,
				Requested: item.Quantity,
				Available: available,
			})
		}
	}

	if err := s.cache.Set(ctx, key, &resp, s.opts.StockCheckTTL); err != nil {
		s.log.Warnw("stock cache write failed", "error", err)
	}
	return resp, nil
}

// CommitSale turns a confirmed cart into a durable sale. One attempt per
// session at a time; the store transaction itself is never retried.
func (s *Service) CommitSale(ctx context.Context, req domain.SaleCommitRequest) (domain.CommitResult, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.CommitResult{}, ErrPermissionDenied
	}
	if actor.Role == domain.RoleCustomer {
		return domain.CommitResult{}, fmt.Errorf("%w: role %s may only save drafts", ErrPermissionDenied, actor.Role)
	}

	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = actor.Username
	}

	if err := s.guard.TryAcquire(sessionID, time.Now()); err != nil {
		s.log.Infow("commit trigger rejected by guard", "session", sessionID)
		return domain.CommitResult{}, err
	}
	outcome := StateFailed
	defer func() { s.guard.Release(sessionID, outcome) }()

	result, err := s.commitLocked(ctx, actor, req, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrInsufficientStock) || errors.Is(err, ErrInvalidPayment) {
			outcome = StateRejected
		}
		return domain.CommitResult{}, err
	}
	outcome = StateCommitted
	return result, nil
}

func (s *Service) commitLocked(ctx context.Context, actor domain.Actor, req domain.SaleCommitRequest, sessionID string) (domain.CommitResult, error) {
	items, err := normalizeStockRequests(req.Lines)
	if err != nil {
		return domain.CommitResult{}, err
	}
	if req.ShippingMinor < 0 {
		return domain.CommitResult{}, fmt.Errorf("%w: negative shipping", ErrInvalidPayment)
	}

	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}

	var products map[string]domain.Product
	err = s.retryDo(ctx, func(ctx context.Context) error {
		var innerErr error
		products, innerErr = s.repo.GetProductsByIDs(ctx, ids)
		return innerErr
	})
	if err != nil {
		return domain.CommitResult{}, fmt.Errorf("resolve cart products: %w", err)
	}

	// Advisory availability pass over the fresh product read. Fast feedback
	// only; the authoritative check runs under row locks inside CommitSale.
	shortfalls := make([]domain.StockShortfall, 0, 2)
	for _, item := range items {
		product, found := products[item.ProductID]
		if !found {
			return domain.CommitResult{}, fmt.Errorf("%w: %s", ErrUnknownProduct, item.ProductID)
		}
		if product.AvailableQty < item.Quantity {
			shortfalls = append(shortfalls, domain.StockShortfall{
				ProductID: item.ProductID,
				Requested: item.Quantity,
				Available: product.AvailableQty,
			})
		}
	}
	if len(shortfalls) > 0 {
		return domain.CommitResult{}, &store.InsufficientStockError{Shortfalls: shortfalls}
	}

	lines := make([]domain.SaleLine, 0, len(items))
	var gross int64
	for _, item := range items {
		product := products[item.ProductID]
		lineSubtotal := product.PriceMinor * int64(item.Quantity)
		gross += lineSubtotal
		lines = append(lines, domain.SaleLine{
			ProductID:         product.ID,
			ProductName:       product.Name,
			SKU:               product.SKU,
			Quantity:          item.Quantity,
			UnitPriceMinor:    product.PriceMinor,
			LineSubtotalMinor: lineSubtotal,
		})
	}

	// Tax configuration is read fresh on every attempt; a stale rate must
	// never price a sale.
	taxCfg, err := s.repo.GetTaxConfig(ctx)
	if err != nil {
		return domain.CommitResult{}, fmt.Errorf("read tax config: %w", err)
	}

	tax := money.Tax(gross, taxCfg.RatePercent, taxCfg.Inclusive)
	subtotal := gross
	if taxCfg.Inclusive {
		subtotal = gross - tax
	}
	total := subtotal + tax + req.ShippingMinor

	var cashTendered, changeGiven, cashPortion, cardPortion int64
	switch req.PaymentMethod {
	case domain.PaymentCash:
		cashTendered = req.CashTenderedMinor
		changeGiven = money.Change(cashTendered, total)
		if changeGiven < 0 {
			return domain.CommitResult{}, fmt.Errorf("%w: tendered %s below total %s",
				ErrInvalidPayment, money.Format(cashTendered), money.Format(total))
		}
	case domain.PaymentCard:
		// Card settles externally; the sale record still commits atomically.
	case domain.PaymentSplit:
		cashPortion = req.CashPortionMinor
		if cashPortion <= 0 || cashPortion >= total {
			return domain.CommitResult{}, fmt.Errorf("%w: split cash portion must be within (0, total)", ErrInvalidPayment)
		}
		cardPortion = money.CardPortion(total, cashPortion)
		cashTendered = cashPortion
	default:
		return domain.CommitResult{}, fmt.Errorf("%w: unsupported payment method %q", ErrInvalidPayment, req.PaymentMethod)
	}

	s.guard.MarkCommitting(sessionID)

	sale := domain.Sale{
		ID:                xid.New("sale"),
		UserID:            actor.Username,
		CustomerID:        strings.TrimSpace(req.CustomerID),
		SubtotalMinor:     subtotal,
		TaxMinor:          tax,
		ShippingMinor:     req.ShippingMinor,
		TotalMinor:        total,
		PaymentMethod:     req.PaymentMethod,
		PaymentStatus:     domain.SaleStatusPaid,
		CashTenderedMinor: cashTendered,
		ChangeGivenMinor:  changeGiven,
		CreatedAt:         time.Now().UTC(),
		Lines:             lines,
	}

	committed, err := s.repo.CommitSale(ctx, sale)
	if err != nil {
		var stockErr *store.InsufficientStockError
		if errors.As(err, &stockErr) {
			s.log.Infow("commit rejected on stock", "session", sessionID, "shortfalls", len(stockErr.Shortfalls))
			return domain.CommitResult{}, err
		}
		s.log.Errorw("sale commit failed", "session", sessionID, "error", err)
		return domain.CommitResult{}, err
	}

	if draftID := strings.TrimSpace(req.DraftID); draftID != "" {
		if err := s.retryDo(ctx, func(ctx context.Context) error {
			return s.repo.DeleteDraft(ctx, draftID)
		}); err != nil {
			// The sale is durable; a stale draft is recoverable noise.
			s.log.Warnw("source draft cleanup failed", "draft", draftID, "sale", committed.ID, "error", err)
		}
	}

	if err := s.cache.Invalidate(ctx, stockCheckKey(items)); err != nil {
		s.log.Warnw("stock cache invalidation failed", "error", err)
	}

	var drawerBalance *int64
	if drawer, err := s.repo.GetCashDrawer(ctx, actor.Username); err != nil {
		// The sale is durable; leave the balance out rather than report a
		// zero nobody measured.
		s.log.Warnw("drawer balance read failed after commit", "user", actor.Username, "error", err)
	} else {
		drawerBalance = &drawer.BalanceMinor
	}

	s.log.Infow("sale committed",
		"sale", committed.ID,
		"session", sessionID,
		"total", committed.TotalMinor,
		"payment", committed.PaymentMethod,
		"change", committed.ChangeGivenMinor,
	)

	return domain.CommitResult{
		SaleID:             committed.ID,
		SubtotalMinor:      committed.SubtotalMinor,
		TaxMinor:           committed.TaxMinor,
		ShippingMinor:      committed.ShippingMinor,
		TotalMinor:         committed.TotalMinor,
		PaymentMethod:      committed.PaymentMethod,
		CashTenderedMinor:  committed.CashTenderedMinor,
		ChangeGivenMinor:   committed.ChangeGivenMinor,
		CashPortionMinor:   cashPortion,
		CardPortionMinor:   cardPortion,
		DrawerBalanceMinor: drawerBalance,
		Lines:              committed.Lines,
		CashierID:          committed.UserID,
		CustomerID:         committed.CustomerID,
		CreatedAt:          committed.CreatedAt.Format(time.RFC3339),
	}, nil
}

func (s *Service) GetSale(ctx context.Context, saleID string) (domain.Sale, error) {
	sale, err := s.repo.GetSale(ctx, strings.TrimSpace(saleID))
	if err != nil {
		return domain.Sale{}, err
	}
	return *sale, nil
}

// SaveDraft persists an in-progress cart. Any authenticated role may save;
// prices and stock snapshots are refreshed from the catalog at save time.
func (s *Service) SaveDraft(ctx context.Context, req domain.DraftSaveRequest) (domain.DraftOrder, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.DraftOrder{}, ErrPermissionDenied
	}
	if len(req.Lines) == 0 {
		return domain.DraftOrder{}, store.ErrConstraint
	}
	if req.ShippingMinor < 0 {
		return domain.DraftOrder{}, store.ErrConstraint
	}

	ids := make([]string, 0, len(req.Lines))
	for _, line := range req.Lines {
		if line.Quantity < 1 {
			return domain.DraftOrder{}, store.ErrConstraint
		}
		ids = append(ids, line.ProductID)
	}
	products, err := s.repo.GetProductsByIDs(ctx, ids)
	if err != nil {
		return domain.DraftOrder{}, fmt.Errorf("resolve draft products: %w", err)
	}

	lines := make([]domain.CartLine, 0, len(req.Lines))
	for _, line := range req.Lines {
		product, found := products[line.ProductID]
		if !found {
			return domain.DraftOrder{}, fmt.Errorf("%w: %s", ErrUnknownProduct, line.ProductID)
		}
		lines = append(lines, domain.CartLine{
			ProductID:      product.ID,
			UnitPriceMinor: product.PriceMinor,
			Quantity:       line.Quantity,
			SnapshotStock:  product.AvailableQty,
		})
	}

	owner := actor.Username
	if req.DraftID != "" {
		existing, err := s.repo.GetDraft(ctx, req.DraftID)
		if err != nil {
			return domain.DraftOrder{}, err
		}
		if existing.OwnerUserID != actor.Username && actor.Role == domain.RoleCustomer {
			return domain.DraftOrder{}, ErrPermissionDenied
		}
		// Updates edit the draft in place; they never reassign its owner.
		owner = existing.OwnerUserID
	}

	var saved *domain.DraftOrder
	err = s.retryDo(ctx, func(ctx context.Context) error {
		var innerErr error
		saved, innerErr = s.repo.SaveDraft(ctx, domain.DraftOrder{
			ID:            req.DraftID,
			OwnerUserID:   owner,
			CustomerID:    strings.TrimSpace(req.CustomerID),
			Name:          strings.TrimSpace(req.Name),
			ShippingMinor: req.ShippingMinor,
			Lines:         lines,
		})
		return innerErr
	})
	if err != nil {
		return domain.DraftOrder{}, err
	}
	return *saved, nil
}

// LoadDraft hydrates a saved draft back into a commit-ready cart. Lines whose
// product has vanished are dropped, quantities are clamped down to current
// availability, and unit prices are refreshed. Loading never fails on stock.
func (s *Service) LoadDraft(ctx context.Context, draftID string) (domain.Cart, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.Cart{}, ErrPermissionDenied
	}

	draft, err := s.repo.GetDraft(ctx, strings.TrimSpace(draftID))
	if err != nil {
		return domain.Cart{}, err
	}
	if actor.Role == domain.RoleCustomer && draft.OwnerUserID != actor.Username {
		return domain.Cart{}, store.ErrNotFound
	}

	ids := make([]string, 0, len(draft.Lines))
	for _, line := range draft.Lines {
		ids = append(ids, line.ProductID)
	}
	products, err := s.repo.GetProductsByIDs(ctx, ids)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("resolve draft products: %w", err)
	}

	lines := make([]domain.CartLine, 0, len(draft.Lines))
	for _, line := range draft.Lines {
		product, found := products[line.ProductID]
		if !found {
			s.log.Infow("draft line dropped, product gone", "draft", draft.ID, "product", line.ProductID)
			continue
		}
		qty := line.Quantity
		if qty > product.AvailableQty {
			s.log.Infow("draft line clamped to stock", "draft", draft.ID, "product", line.ProductID,
				"requested", qty, "available", product.AvailableQty)
			qty = product.AvailableQty
		}
		if qty < 1 {
			continue
		}
		lines = append(lines, domain.CartLine{
			ProductID:      product.ID,
			UnitPriceMinor: product.PriceMinor,
			Quantity:       qty,
			SnapshotStock:  product.AvailableQty,
		})
	}

	return domain.Cart{
		DraftID:       draft.ID,
		OwnerUserID:   draft.OwnerUserID,
		CustomerID:    draft.CustomerID,
		Lines:         lines,
		ShippingMinor: draft.ShippingMinor,
		Name:          draft.Name,
	}, nil
}

func (s *Service) ListDrafts(ctx context.Context) ([]domain.DraftOrder, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return nil, ErrPermissionDenied
	}
	return s.repo.ListDrafts(ctx, actor.Username, actor.Role)
}

// DeleteDraft discards a draft. Deleting an absent draft succeeds.
func (s *Service) DeleteDraft(ctx context.Context, draftID string) error {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return ErrPermissionDenied
	}

	draftID = strings.TrimSpace(draftID)
	draft, err := s.repo.GetDraft(ctx, draftID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	if actor.Role == domain.RoleCustomer && draft.OwnerUserID != actor.Username {
		return store.ErrNotFound
	}

	return s.retryDo(ctx, func(ctx context.Context) error {
		return s.repo.DeleteDraft(ctx, draftID)
	})
}

func (s *Service) GetCashDrawer(ctx context.Context, userID string) (domain.CashDrawerBalance, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.CashDrawerBalance{}, ErrPermissionDenied
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		userID = actor.Username
	}
	if userID != actor.Username && actor.Role != domain.RoleAdmin {
		return domain.CashDrawerBalance{}, ErrPermissionDenied
	}

	drawer, err := s.repo.GetCashDrawer(ctx, userID)
	if err != nil {
		return domain.CashDrawerBalance{}, err
	}
	return *drawer, nil
}

// AdjustCashDrawer overrides a drawer balance. Admin only; the audit record
// is written by the store in the same unit of work as the balance change.
func (s *Service) AdjustCashDrawer(ctx context.Context, req domain.CashDrawerAdjustRequest) (domain.CashDrawerBalance, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.CashDrawerBalance{}, ErrPermissionDenied
	}

	drawer, err := s.repo.AdjustCashDrawer(ctx, domain.CashAdjustment{
		UserID:         strings.TrimSpace(req.UserID),
		AdminID:        actor.Username,
		NewAmountMinor: req.NewBalanceMinor,
		Reason:         strings.TrimSpace(req.Reason),
	})
	if err != nil {
		return domain.CashDrawerBalance{}, err
	}

	s.log.Infow("cash drawer adjusted", "user", req.UserID, "admin", actor.Username, "new_balance", req.NewBalanceMinor)
	return *drawer, nil
}

func (s *Service) ListCashAdjustments(ctx context.Context, userID string, limit int) ([]domain.CashAdjustment, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return nil, ErrPermissionDenied
	}
	return s.repo.ListCashAdjustments(ctx, strings.TrimSpace(userID), limit)
}

func (s *Service) GetTaxConfig(ctx context.Context) (domain.TaxConfig, error) {
	return s.repo.GetTaxConfig(ctx)
}

func (s *Service) UpdateTaxConfig(ctx context.Context, cfg domain.TaxConfig) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return ErrPermissionDenied
	}
	if err := s.repo.UpdateTaxConfig(ctx, cfg); err != nil {
		return err
	}
	s.log.Infow("tax config updated", "rate", cfg.RatePercent, "inclusive", cfg.Inclusive, "admin", actor.Username)
	return nil
}

// BuildReceipt renders a committed sale as an ESC/POS byte stream plus a
// plain-text preview. Pure read; safe to call any number of times.
func (s *Service) BuildReceipt(ctx context.Context, saleID string) (domain.ReceiptResponse, error) {
	sale, err := s.repo.GetSale(ctx, strings.TrimSpace(saleID))
	if err != nil {
		return domain.ReceiptResponse{}, err
	}

	lines := []string{
		"SalePoint",
		"========================",
		"Sale: " + sale.ID,
		"Cashier: " + sale.UserID,
		"Date: " + sale.CreatedAt.Format("2006-01-02 15:04:05"),
		"------------------------",
	}
	for _, item := range sale.Lines {
		lines = append(lines, fmt.Sprintf("%s x%d", item.ProductName, item.Quantity))
		lines = append(lines, fmt.Sprintf("  %s", money.Format(item.LineSubtotalMinor)))
	}
	lines = append(lines,
		"------------------------",
		fmt.Sprintf("Subtotal : %s", money.Format(sale.SubtotalMinor)),
		fmt.Sprintf("Tax      : %s", money.Format(sale.TaxMinor)),
		fmt.Sprintf("Shipping : %s", money.Format(sale.ShippingMinor)),
		fmt.Sprintf("Total    : %s", money.Format(sale.TotalMinor)),
	)
	if sale.PaymentMethod == domain.PaymentCash {
		lines = append(lines,
			fmt.Sprintf("Tendered : %s", money.Format(sale.CashTenderedMinor)),
			fmt.Sprintf("Change   : %s", money.Format(sale.ChangeGivenMinor)),
		)
	} else {
		lines = append(lines, "Payment  : "+sale.PaymentMethod)
	}
	lines = append(lines,
		"========================",
		"Thank you",
		"",
	)

	escpos := []byte{0x1b, 0x40}
	for _, line := range lines {
		escpos = append(escpos, []byte(line)...)
		escpos = append(escpos, '\n')
	}
	escpos = append(escpos, []byte{0x1d, 0x56, 0x41, 0x10}...)

	return domain.ReceiptResponse{
		SaleID:       sale.ID,
		EscposBase64: base64.StdEncoding.EncodeToString(escpos),
		PreviewText:  strings.Join(lines, "\n"),
		FileName:     fmt.Sprintf("receipt-%s.bin", sale.ID),
	}, nil
}

// retryDo wraps repository reads and draft writes in a bounded exponential
// retry. The CommitSale transaction never goes through here.
func (s *Service) retryDo(ctx context.Context, fn func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(s.opts.RetryAttempts, retry.NewExponential(s.opts.RetryBaseBackoff))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrConstraint) {
			return err
		}
		return retry.RetryableError(err)
	})
}

// normalizeStockRequests merges duplicate product lines and validates
// quantities.
func normalizeStockRequests(items []domain.StockRequest) ([]domain.StockRequest, error) {
	if len(items) == 0 {
		return nil, store.ErrInvalidSale
	}

	merged := make(map[string]int, len(items))
	order := make([]string, 0, len(items))
	for _, item := range items {
		id := strings.TrimSpace(item.ProductID)
		if id == "" || item.Quantity < 1 {
			return nil, store.ErrInvalidSale
		}
		if _, seen := merged[id]; !seen {
			order = append(order, id)
		}
		merged[id] += item.Quantity
	}

	result := make([]domain.StockRequest, 0, len(order))
	for _, id := range order {
		result = append(result, domain.StockRequest{ProductID: id, Quantity: merged[id]})
	}
	return result, nil
}

// stockCheckKey fingerprints a normalized cart for the advisory cache.
func stockCheckKey(items []domain.StockRequest) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, fmt.Sprintf("%s:%d", item.ProductID, item.Quantity))
	}
	sort.Strings(parts)
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return "stockcheck:" + hex.EncodeToString(sum[:8])
}
