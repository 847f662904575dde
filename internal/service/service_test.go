package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"salepoint/backend/internal/cache"
	"salepoint/backend/internal/domain"
	"salepoint/backend/internal/store"
	"salepoint/backend/internal/store/memory"
)

func newTestService() *Service {
	repo := memory.NewSeeded()
	// A nanosecond window keeps sequential test commits from debouncing
	// each other; guard behavior has its own tests.
	return New(repo, cache.NoopStockCache{}, nil, Options{GuardWindow: time.Nanosecond})
}

func adminCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "admin", Role: domain.RoleAdmin})
}

func cashierCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "cashier", Role: domain.RoleCashier})
}

func customerCtx(username string) context.Context {
	return WithActor(context.Background(), domain.Actor{Username: username, Role: domain.RoleCustomer})
}

func mustCreateProduct(t *testing.T, svc *Service, sku string, priceMinor int64, stock int) domain.Product {
	t.Helper()
	product, err := svc.CreateProduct(adminCtx(), domain.ProductCreateRequest{
		SKU:          sku,
		Name:         sku,
		PriceMinor:   priceMinor,
		CostMinor:    priceMinor / 2,
		InitialStock: stock,
	})
	if err != nil {
		t.Fatalf("create product %s: %v", sku, err)
	}
	return product
}

func mustSetTax(t *testing.T, svc *Service, rate float64, inclusive bool) {
	t.Helper()
	if err := svc.UpdateTaxConfig(adminCtx(), domain.TaxConfig{RatePercent: rate, Inclusive: inclusive}); err != nil {
		t.Fatalf("set tax config: %v", err)
	}
}

func TestCommitCashComputesChangeAndDecrementsDrawer(t *testing.T) {
	svc := newTestService()
	mustSetTax(t, svc, 0, false)
	product := mustCreateProduct(t, svc, "SKU-CHANGE", 1500, 10)

	result, err := svc.CommitSale(cashierCtx(), domain.SaleCommitRequest{
		SessionID:         "sess-cash",
		Lines:             []domain.StockRequest{{ProductID: product.ID, Quantity: 1}},
		PaymentMethod:     domain.PaymentCash,
		CashTenderedMinor: 2000,
	})
	if err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if result.TotalMinor != 1500 {
		t.Fatalf("expected total 1500, got %d", result.TotalMinor)
	}
	if result.ChangeGivenMinor != 500 {
		t.Fatalf("expected change 500, got %d", result.ChangeGivenMinor)
	}
	if result.DrawerBalanceMinor == nil || *result.DrawerBalanceMinor != -500 {
		t.Fatalf("expected drawer balance -500, got %v", result.DrawerBalanceMinor)
	}

	drawer, err := svc.GetCashDrawer(cashierCtx(), "")
	if err != nil {
		t.Fatalf("get drawer: %v", err)
	}
	if drawer.BalanceMinor != -500 {
		t.Fatalf("expected persisted drawer balance -500, got %d", drawer.BalanceMinor)
	}
}

func TestCommitRejectsShortCashTender(t *testing.T) {
	svc := newTestService()
	mustSetTax(t, svc, 0, false)
	product := mustCreateProduct(t, svc, "SKU-SHORT", 1500, 10)

	_, err := svc.CommitSale(cashierCtx(), domain.SaleCommitRequest{
		SessionID:         "sess-short",
		Lines:             []domain.StockRequest{{ProductID: product.ID, Quantity: 1}},
		PaymentMethod:     domain.PaymentCash,
		CashTenderedMinor: 1499,
	})
	if !errors.Is(err, ErrInvalidPayment) {
		t.Fatalf("expected invalid payment, got %v", err)
	}

	// The rejected attempt must not have touched stock.
	levels, err := svc.repo.GetStockLevels(context.Background(), []string{product.ID})
	if err != nil {
		t.Fatalf("get stock levels: %v", err)
	}
	if levels[product.ID] != 10 {
		t.Fatalf("expected stock 10 after rejection, got %d", levels[product.ID])
	}
}

func TestSplitPaymentPortions(t *testing.T) {
	svc := newTestService()
	mustSetTax(t, svc, 0, false)
	product := mustCreateProduct(t, svc, "SKU-SPLIT", 1500, 10)

	result, err := svc.CommitSale(cashierCtx(), domain.SaleCommitRequest{
		SessionID:        "sess-split",
		Lines:            []domain.StockRequest{{ProductID: product.ID, Quantity: 1}},
		PaymentMethod:    domain.PaymentSplit,
		CashPortionMinor: 600,
	})
	if err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if result.CashPortionMinor != 600 || result.CardPortionMinor != 900 {
		t.Fatalf("expected split 600/900, got %d/%d", result.CashPortionMinor, result.CardPortionMinor)
	}
	if result.ChangeGivenMinor != 0 {
		t.Fatalf("split payment must never produce change, got %d", result.ChangeGivenMinor)
	}

	for _, cashPortion := range []int64{0, -100, 1500, 2000} {
		_, err := svc.CommitSale(cashierCtx(), domain.SaleCommitRequest{
			SessionID:        "sess-split-bad",
			Lines:            []domain.StockRequest{{ProductID: product.ID, Quantity: 1}},
			PaymentMethod:    domain.PaymentSplit,
			CashPortionMinor: cashPortion,
		})
		if !errors.Is(err, ErrInvalidPayment) {
			t.Fatalf("cash portion %d: expected invalid payment, got %v", cashPortion, err)
		}
	}
}

func TestCustomerCannotCommit(t *testing.T) {
	svc := newTestService()
	product := mustCreateProduct(t, svc, "SKU-CUST", 1000, 5)

	_, err := svc.CommitSale(customerCtx("buyer"), domain.SaleCommitRequest{
		SessionID:     "sess-cust",
		Lines:         []domain.StockRequest{{ProductID: product.ID, Quantity: 1}},
		PaymentMethod: domain.PaymentCard,
	})
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}
}

func TestConcurrentCommitsNeverOversell(t *testing.T) {
	svc := newTestService()
	mustSetTax(t, svc, 0, false)
	product := mustCreateProduct(t, svc, "SKU-RACE", 1000, 3)

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = svc.CommitSale(cashierCtx(), domain.SaleCommitRequest{
				SessionID:     "sess-race-" + string(rune('a'+i)),
				Lines:         []domain.StockRequest{{ProductID: product.ID, Quantity: 2}},
				PaymentMethod: domain.PaymentCard,
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
		} else if !errors.Is(err, store.ErrInsufficientStock) {
			t.Fatalf("unexpected failure mode: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly one commit to succeed, got %d", succeeded)
	}

	levels, err := svc.repo.GetStockLevels(context.Background(), []string{product.ID})
	if err != nil {
		t.Fatalf("get stock levels: %v", err)
	}
	if levels[product.ID] != 1 {
		t.Fatalf("expected remaining stock 1, got %d", levels[product.ID])
	}
}

func TestGuardBlocksRapidDoubleTrigger(t *testing.T) {
	repo := memory.NewSeeded()
	svc := New(repo, cache.NoopStockCache{}, nil, Options{GuardWindow: 500 * time.Millisecond})
	mustSetTax(t, svc, 0, false)
	product := mustCreateProduct(t, svc, "SKU-DOUBLE", 1000, 10)

	req := domain.SaleCommitRequest{
		SessionID:     "sess-double",
		Lines:         []domain.StockRequest{{ProductID: product.ID, Quantity: 1}},
		PaymentMethod: domain.PaymentCard,
	}

	if _, err := svc.CommitSale(cashierCtx(), req); err != nil {
		t.Fatalf("first trigger failed: %v", err)
	}
	// Second click ~immediately after: inside the debounce window.
	if _, err := svc.CommitSale(cashierCtx(), req); !errors.Is(err, ErrCommitInFlight) {
		t.Fatalf("expected guard rejection, got %v", err)
	}

	levels, err := repo.GetStockLevels(context.Background(), []string{product.ID})
	if err != nil {
		t.Fatalf("get stock levels: %v", err)
	}
	if levels[product.ID] != 9 {
		t.Fatalf("expected exactly one unit sold, remaining stock %d", levels[product.ID])
	}
}

func TestFailedCommitLeavesEverythingUnchanged(t *testing.T) {
	svc := newTestService()
	mustSetTax(t, svc, 0, false)
	okProduct := mustCreateProduct(t, svc, "SKU-OK", 1000, 10)
	lowProduct := mustCreateProduct(t, svc, "SKU-LOW", 1000, 1)

	_, err := svc.CommitSale(cashierCtx(), domain.SaleCommitRequest{
		SessionID: "sess-atomic",
		Lines: []domain.StockRequest{
			{ProductID: okProduct.ID, Quantity: 2},
			{ProductID: lowProduct.ID, Quantity: 5},
		},
		PaymentMethod: domain.PaymentCard,
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	var stockErr *store.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected typed shortfall error, got %T", err)
	}
	if len(stockErr.Shortfalls) != 1 || stockErr.Shortfalls[0].ProductID != lowProduct.ID {
		t.Fatalf("unexpected shortfalls: %+v", stockErr.Shortfalls)
	}

	levels, err := svc.repo.GetStockLevels(context.Background(), []string{okProduct.ID, lowProduct.ID})
	if err != nil {
		t.Fatalf("get stock levels: %v", err)
	}
	if levels[okProduct.ID] != 10 || levels[lowProduct.ID] != 1 {
		t.Fatalf("expected stock untouched, got %v", levels)
	}

	drawer, err := svc.GetCashDrawer(cashierCtx(), "")
	if err != nil {
		t.Fatalf("get drawer: %v", err)
	}
	if drawer.BalanceMinor != 0 {
		t.Fatalf("expected drawer untouched, got %d", drawer.BalanceMinor)
	}
}

func TestExclusiveTaxScenario(t *testing.T) {
	svc := newTestService()
	mustSetTax(t, svc, 8.25, false)
	product := mustCreateProduct(t, svc, "SKU-TAX", 999, 10)

	result, err := svc.CommitSale(cashierCtx(), domain.SaleCommitRequest{
		SessionID:         "sess-tax",
		Lines:             []domain.StockRequest{{ProductID: product.ID, Quantity: 1}},
		PaymentMethod:     domain.PaymentCash,
		CashTenderedMinor: 1100,
	})
	if err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if result.SubtotalMinor != 999 || result.TaxMinor != 82 || result.TotalMinor != 1081 {
		t.Fatalf("expected 999/82/1081, got %d/%d/%d", result.SubtotalMinor, result.TaxMinor, result.TotalMinor)
	}
	if result.ChangeGivenMinor != 19 {
		t.Fatalf("expected change 19, got %d", result.ChangeGivenMinor)
	}
}

func TestInclusiveTaxKeepsTotalInvariant(t *testing.T) {
	svc := newTestService()
	mustSetTax(t, svc, 11, true)
	product := mustCreateProduct(t, svc, "SKU-INCL", 11100, 10)

	result, err := svc.CommitSale(cashierCtx(), domain.SaleCommitRequest{
		SessionID:     "sess-incl",
		Lines:         []domain.StockRequest{{ProductID: product.ID, Quantity: 1}},
		ShippingMinor: 250,
		PaymentMethod: domain.PaymentCard,
	})
	if err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if result.TaxMinor != 1100 {
		t.Fatalf("expected extracted tax 1100, got %d", result.TaxMinor)
	}
	if result.SubtotalMinor+result.TaxMinor+result.ShippingMinor != result.TotalMinor {
		t.Fatalf("total invariant broken: %d + %d + %d != %d",
			result.SubtotalMinor, result.TaxMinor, result.ShippingMinor, result.TotalMinor)
	}
	if result.TotalMinor != 11350 {
		t.Fatalf("inclusive pricing must not change the shelf total, got %d", result.TotalMinor)
	}
}

func TestDraftRoundTrip(t *testing.T) {
	svc := newTestService()
	product := mustCreateProduct(t, svc, "SKU-DRAFT", 2500, 20)

	saved, err := svc.SaveDraft(cashierCtx(), domain.DraftSaveRequest{
		Name:          "counter 2",
		ShippingMinor: 100,
		Lines:         []domain.CartLine{{ProductID: product.ID, Quantity: 3}},
	})
	if err != nil {
		t.Fatalf("save draft: %v", err)
	}
	if saved.ID == "" {
		t.Fatalf("expected assigned draft id")
	}

	// Saving again with the id updates in place instead of duplicating.
	updated, err := svc.SaveDraft(cashierCtx(), domain.DraftSaveRequest{
		DraftID: saved.ID,
		Lines:   []domain.CartLine{{ProductID: product.ID, Quantity: 5}},
	})
	if err != nil {
		t.Fatalf("update draft: %v", err)
	}
	if updated.ID != saved.ID {
		t.Fatalf("expected same draft id, got %s and %s", saved.ID, updated.ID)
	}

	cart, err := svc.LoadDraft(cashierCtx(), saved.ID)
	if err != nil {
		t.Fatalf("load draft: %v", err)
	}
	if len(cart.Lines) != 1 || cart.Lines[0].Quantity != 5 {
		t.Fatalf("unexpected cart lines: %+v", cart.Lines)
	}
	if cart.Lines[0].UnitPriceMinor != 2500 {
		t.Fatalf("expected refreshed unit price 2500, got %d", cart.Lines[0].UnitPriceMinor)
	}

	drafts, err := svc.ListDrafts(cashierCtx())
	if err != nil {
		t.Fatalf("list drafts: %v", err)
	}
	if len(drafts) != 1 {
		t.Fatalf("expected one draft, got %d", len(drafts))
	}
}

func TestDraftLoadClampsToLiveStock(t *testing.T) {
	svc := newTestService()
	mustSetTax(t, svc, 0, false)
	product := mustCreateProduct(t, svc, "SKU-CLAMP", 1000, 5)

	saved, err := svc.SaveDraft(cashierCtx(), domain.DraftSaveRequest{
		Lines: []domain.CartLine{{ProductID: product.ID, Quantity: 5}},
	})
	if err != nil {
		t.Fatalf("save draft: %v", err)
	}

	// Someone else sells 3 units while the draft sits.
	if _, err := svc.CommitSale(cashierCtx(), domain.SaleCommitRequest{
		SessionID:     "sess-clamp-other",
		Lines:         []domain.StockRequest{{ProductID: product.ID, Quantity: 3}},
		PaymentMethod: domain.PaymentCard,
	}); err != nil {
		t.Fatalf("interleaved commit: %v", err)
	}

	cart, err := svc.LoadDraft(cashierCtx(), saved.ID)
	if err != nil {
		t.Fatalf("load draft: %v", err)
	}
	if len(cart.Lines) != 1 || cart.Lines[0].Quantity != 2 {
		t.Fatalf("expected quantity clamped to 2, got %+v", cart.Lines)
	}
}

func TestDraftLoadDropsExhaustedLines(t *testing.T) {
	svc := newTestService()
	mustSetTax(t, svc, 0, false)
	gone := mustCreateProduct(t, svc, "SKU-GONE", 1000, 2)
	kept := mustCreateProduct(t, svc, "SKU-KEPT", 1000, 10)

	saved, err := svc.SaveDraft(cashierCtx(), domain.DraftSaveRequest{
		Lines: []domain.CartLine{
			{ProductID: gone.ID, Quantity: 2},
			{ProductID: kept.ID, Quantity: 1},
		},
	})
	if err != nil {
		t.Fatalf("save draft: %v", err)
	}

	if _, err := svc.CommitSale(cashierCtx(), domain.SaleCommitRequest{
		SessionID:     "sess-drain",
		Lines:         []domain.StockRequest{{ProductID: gone.ID, Quantity: 2}},
		PaymentMethod: domain.PaymentCard,
	}); err != nil {
		t.Fatalf("draining commit: %v", err)
	}

	cart, err := svc.LoadDraft(cashierCtx(), saved.ID)
	if err != nil {
		t.Fatalf("load draft: %v", err)
	}
	if len(cart.Lines) != 1 || cart.Lines[0].ProductID != kept.ID {
		t.Fatalf("expected only the in-stock line to survive, got %+v", cart.Lines)
	}
}

func TestDraftDeletedAfterCommit(t *testing.T) {
	svc := newTestService()
	mustSetTax(t, svc, 0, false)
	product := mustCreateProduct(t, svc, "SKU-DCOMMIT", 1000, 10)

	saved, err := svc.SaveDraft(cashierCtx(), domain.DraftSaveRequest{
		Lines: []domain.CartLine{{ProductID: product.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("save draft: %v", err)
	}

	if _, err := svc.CommitSale(cashierCtx(), domain.SaleCommitRequest{
		SessionID:     "sess-dcommit",
		DraftID:       saved.ID,
		Lines:         []domain.StockRequest{{ProductID: product.ID, Quantity: 1}},
		PaymentMethod: domain.PaymentCard,
	}); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	if _, err := svc.LoadDraft(cashierCtx(), saved.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected committed draft to be gone, got %v", err)
	}
}

func TestDeleteDraftIsIdempotent(t *testing.T) {
	svc := newTestService()
	product := mustCreateProduct(t, svc, "SKU-DEL", 1000, 10)

	saved, err := svc.SaveDraft(cashierCtx(), domain.DraftSaveRequest{
		Lines: []domain.CartLine{{ProductID: product.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("save draft: %v", err)
	}

	if err := svc.DeleteDraft(cashierCtx(), saved.ID); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if err := svc.DeleteDraft(cashierCtx(), saved.ID); err != nil {
		t.Fatalf("second delete must succeed, got %v", err)
	}
}

func TestCustomerSeesOnlyOwnDrafts(t *testing.T) {
	svc := newTestService()
	product := mustCreateProduct(t, svc, "SKU-VIS", 1000, 10)

	if _, err := svc.SaveDraft(cashierCtx(), domain.DraftSaveRequest{
		Lines: []domain.CartLine{{ProductID: product.ID, Quantity: 1}},
	}); err != nil {
		t.Fatalf("cashier draft: %v", err)
	}
	mine, err := svc.SaveDraft(customerCtx("buyer"), domain.DraftSaveRequest{
		Lines: []domain.CartLine{{ProductID: product.ID, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("customer draft: %v", err)
	}

	drafts, err := svc.ListDrafts(customerCtx("buyer"))
	if err != nil {
		t.Fatalf("list drafts: %v", err)
	}
	if len(drafts) != 1 || drafts[0].ID != mine.ID {
		t.Fatalf("customer must only see own drafts, got %+v", drafts)
	}

	// Other roles see everything.
	all, err := svc.ListDrafts(cashierCtx())
	if err != nil {
		t.Fatalf("list drafts as cashier: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected two drafts for cashier, got %d", len(all))
	}
}

func TestDraftUpdateKeepsOriginalOwner(t *testing.T) {
	svc := newTestService()
	product := mustCreateProduct(t, svc, "SKU-OWNER", 1000, 10)

	saved, err := svc.SaveDraft(customerCtx("buyer"), domain.DraftSaveRequest{
		Name:  "pickup order",
		Lines: []domain.CartLine{{ProductID: product.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("customer draft: %v", err)
	}

	// A cashier touching the draft must not take it over.
	updated, err := svc.SaveDraft(cashierCtx(), domain.DraftSaveRequest{
		DraftID: saved.ID,
		Lines:   []domain.CartLine{{ProductID: product.ID, Quantity: 3}},
	})
	if err != nil {
		t.Fatalf("cashier update: %v", err)
	}
	if updated.OwnerUserID != "buyer" {
		t.Fatalf("expected owner buyer after update, got %q", updated.OwnerUserID)
	}

	// The draft stays in the customer's scoped view.
	drafts, err := svc.ListDrafts(customerCtx("buyer"))
	if err != nil {
		t.Fatalf("list drafts: %v", err)
	}
	if len(drafts) != 1 || drafts[0].ID != saved.ID {
		t.Fatalf("expected customer to still see the draft, got %+v", drafts)
	}
	if drafts[0].Lines[0].Quantity != 3 {
		t.Fatalf("expected updated quantity 3, got %d", drafts[0].Lines[0].Quantity)
	}
}

// drawerReadFailRepo simulates a store whose post-commit drawer read breaks.
type drawerReadFailRepo struct {
	store.Repository
}

func (r drawerReadFailRepo) GetCashDrawer(ctx context.Context, userID string) (*domain.CashDrawerBalance, error) {
	return nil, errors.New("drawer read unavailable")
}

func TestCommitOmitsDrawerBalanceWhenReadFails(t *testing.T) {
	repo := drawerReadFailRepo{Repository: memory.NewSeeded()}
	svc := New(repo, cache.NoopStockCache{}, nil, Options{GuardWindow: time.Nanosecond})
	mustSetTax(t, svc, 0, false)
	product := mustCreateProduct(t, svc, "SKU-NODRW", 1500, 10)

	result, err := svc.CommitSale(cashierCtx(), domain.SaleCommitRequest{
		SessionID:         "sess-nodrw",
		Lines:             []domain.StockRequest{{ProductID: product.ID, Quantity: 1}},
		PaymentMethod:     domain.PaymentCash,
		CashTenderedMinor: 2000,
	})
	if err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if result.DrawerBalanceMinor != nil {
		t.Fatalf("expected no drawer balance when the read fails, got %d", *result.DrawerBalanceMinor)
	}
	if result.ChangeGivenMinor != 500 {
		t.Fatalf("expected change 500, got %d", result.ChangeGivenMinor)
	}
}

func TestAdjustCashDrawerRequiresAdminAndWritesAudit(t *testing.T) {
	svc := newTestService()

	if _, err := svc.AdjustCashDrawer(cashierCtx(), domain.CashDrawerAdjustRequest{
		UserID:          "cashier",
		NewBalanceMinor: 10000,
	}); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}

	drawer, err := svc.AdjustCashDrawer(adminCtx(), domain.CashDrawerAdjustRequest{
		UserID:          "cashier",
		NewBalanceMinor: 10000,
		Reason:          "opening float",
	})
	if err != nil {
		t.Fatalf("adjust drawer: %v", err)
	}
	if drawer.BalanceMinor != 10000 {
		t.Fatalf("expected balance 10000, got %d", drawer.BalanceMinor)
	}

	adjustments, err := svc.ListCashAdjustments(adminCtx(), "cashier", 10)
	if err != nil {
		t.Fatalf("list adjustments: %v", err)
	}
	if len(adjustments) != 1 {
		t.Fatalf("expected one audit record, got %d", len(adjustments))
	}
	audit := adjustments[0]
	if audit.OldAmountMinor != 0 || audit.NewAmountMinor != 10000 || audit.AdminID != "admin" {
		t.Fatalf("unexpected audit record: %+v", audit)
	}
}

func TestCheckStockReportsShortfalls(t *testing.T) {
	svc := newTestService()
	product := mustCreateProduct(t, svc, "SKU-CHECK", 1000, 2)

	resp, err := svc.CheckStock(context.Background(), domain.StockCheckRequest{
		Items: []domain.StockRequest{
			{ProductID: product.ID, Quantity: 5},
			{ProductID: "prod-missing", Quantity: 1},
		},
	})
	if err != nil {
		t.Fatalf("check stock: %v", err)
	}
	if resp.OK {
		t.Fatalf("expected shortfall response")
	}
	if len(resp.Shortfalls) != 2 {
		t.Fatalf("expected two shortfalls, got %+v", resp.Shortfalls)
	}

	ok, err := svc.CheckStock(context.Background(), domain.StockCheckRequest{
		Items: []domain.StockRequest{{ProductID: product.ID, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("check stock: %v", err)
	}
	if !ok.OK {
		t.Fatalf("expected cart to clear, got %+v", ok.Shortfalls)
	}
}

func TestReceiptRendersCommittedSale(t *testing.T) {
	svc := newTestService()
	mustSetTax(t, svc, 0, false)
	product := mustCreateProduct(t, svc, "SKU-RCPT", 1500, 10)

	result, err := svc.CommitSale(cashierCtx(), domain.SaleCommitRequest{
		SessionID:         "sess-rcpt",
		Lines:             []domain.StockRequest{{ProductID: product.ID, Quantity: 2}},
		PaymentMethod:     domain.PaymentCash,
		CashTenderedMinor: 5000,
	})
	if err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	receipt, err := svc.BuildReceipt(context.Background(), result.SaleID)
	if err != nil {
		t.Fatalf("build receipt: %v", err)
	}
	if receipt.SaleID != result.SaleID || receipt.EscposBase64 == "" {
		t.Fatalf("unexpected receipt: %+v", receipt)
	}
}
