package orders

import (
	"errors"
	"math"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stocksim/stocksim-api/internal/database"
	"github.com/stocksim/stocksim-api/internal/funds"
	"github.com/stocksim/stocksim-api/internal/portfolio"
	"github.com/stocksim/stocksim-api/internal/types"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db, err := database.NewTestDatabase(filepath.Join(t.TempDir(), "orders.db"))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	return NewService(db), db
}

func seedFunds(t *testing.T, db *gorm.DB, userID string) {
	t.Helper()
	if _, err := funds.CreateInitial(db, userID); err != nil {
		t.Fatalf("Failed to seed funds: %v", err)
	}
}

func boolPtr(b bool) *bool { return &b }

func TestPlaceOrderBuyExecutesImmediately(t *testing.T) {
	service, db := newTestService(t)
	seedFunds(t, db, "user-1")

	resp, err := service.PlaceOrder(types.PlaceOrderRequest{
		UserID: "user-1",
		Name:   "INFY",
		Qty:    10,
		Price:  1500,
		Mode:   types.ModeBuy,
	})
	if err != nil {
		t.Fatalf("PlaceOrder failed: %v", err)
	}

	if resp.Status != types.StatusExecuted {
		t.Errorf("status = %q, want executed", resp.Status)
	}
	if resp.Order.ExecutedAt == nil {
		t.Error("executed order has no execution time")
	}
	if resp.UpdatedFunds.AvailableFunds != 85000 || resp.UpdatedFunds.UsedFunds != 15000 {
		t.Errorf("funds after buy = %v/%v, want 85000/15000",
			resp.UpdatedFunds.AvailableFunds, resp.UpdatedFunds.UsedFunds)
	}

	var h types.Holding
	if err := db.Where("user_id = ? AND name = ?", "user-1", "INFY").First(&h).Error; err != nil {
		t.Fatalf("holding not created: %v", err)
	}
	if h.Qty != 10 || h.Avg != 1500 {
		t.Errorf("holding got qty=%d avg=%v, want 10/1500", h.Qty, h.Avg)
	}

	var p types.Position
	if err := db.Where("user_id = ? AND name = ? AND product = ?", "user-1", "INFY", types.DefaultProduct).First(&p).Error; err != nil {
		t.Fatalf("position not created under default product: %v", err)
	}
}

// TestPlaceOrderRoundTrip buys and sells the same lot and checks the sell
// proceeds land back in available funds.
func TestPlaceOrderRoundTrip(t *testing.T) {
	service, db := newTestService(t)
	seedFunds(t, db, "user-2")

	if _, err := service.PlaceOrder(types.PlaceOrderRequest{
		UserID: "user-2", Name: "TCS", Qty: 5, Price: 3000, Mode: types.ModeBuy,
	}); err != nil {
		t.Fatalf("buy failed: %v", err)
	}

	resp, err := service.PlaceOrder(types.PlaceOrderRequest{
		UserID: "user-2", Name: "TCS", Qty: 5, Price: 3200, Mode: types.ModeSell,
	})
	if err != nil {
		t.Fatalf("sell failed: %v", err)
	}

	// 100000 - 15000 + 16000
	if math.Abs(resp.UpdatedFunds.AvailableFunds-101000) > 1e-9 {
		t.Errorf("available after round trip = %v, want 101000", resp.UpdatedFunds.AvailableFunds)
	}
	if resp.UpdatedFunds.UsedFunds != 0 {
		t.Errorf("used after round trip = %v, want 0", resp.UpdatedFunds.UsedFunds)
	}

	// Selling the whole lot removes the holding and the position.
	var count int64
	db.Model(&types.Holding{}).Where("user_id = ? AND name = ?", "user-2", "TCS").Count(&count)
	if count != 0 {
		t.Errorf("holding still present after selling out")
	}
	db.Model(&types.Position{}).Where("user_id = ? AND name = ?", "user-2", "TCS").Count(&count)
	if count != 0 {
		t.Errorf("position still present after selling out")
	}
}

// TestPlaceOrderInsufficientFundsRollsBack checks that a rejected buy leaves
// no partial state behind and is logged as a rejected order.
func TestPlaceOrderInsufficientFundsRollsBack(t *testing.T) {
	service, db := newTestService(t)
	seedFunds(t, db, "user-3")

	_, err := service.PlaceOrder(types.PlaceOrderRequest{
		UserID: "user-3", Name: "RELIANCE", Qty: 100, Price: 2000, Mode: types.ModeBuy,
	})
	if !errors.Is(err, funds.ErrInsufficientFunds) {
		t.Fatalf("PlaceOrder returned %v, want ErrInsufficientFunds", err)
	}

	f, err := funds.Get(db, "user-3")
	if err != nil {
		t.Fatalf("Get funds failed: %v", err)
	}
	if f.AvailableFunds != types.DefaultAvailableFunds || f.UsedFunds != 0 {
		t.Errorf("funds mutated by rejected order: %v/%v", f.AvailableFunds, f.UsedFunds)
	}

	var count int64
	db.Model(&types.Holding{}).Where("user_id = ?", "user-3").Count(&count)
	if count != 0 {
		t.Errorf("rejected order created a holding")
	}

	var rejected types.Order
	if err := db.Where("user_id = ? AND status = ?", "user-3", types.StatusRejected).First(&rejected).Error; err != nil {
		t.Fatalf("no rejected order recorded: %v", err)
	}
	if rejected.Reason == "" {
		t.Error("rejected order has no reason")
	}
}

func TestPlaceOrderSellWithoutHoldings(t *testing.T) {
	service, db := newTestService(t)
	seedFunds(t, db, "user-4")

	_, err := service.PlaceOrder(types.PlaceOrderRequest{
		UserID: "user-4", Name: "SBIN", Qty: 5, Price: 400, Mode: types.ModeSell,
	})
	if !errors.Is(err, portfolio.ErrNoHoldingFound) {
		t.Fatalf("PlaceOrder returned %v, want ErrNoHoldingFound", err)
	}

	f, _ := funds.Get(db, "user-4")
	if f.AvailableFunds != types.DefaultAvailableFunds {
		t.Errorf("funds mutated by rejected sell: %v", f.AvailableFunds)
	}
}

func TestPlaceOrderWithoutFunds(t *testing.T) {
	service, _ := newTestService(t)

	_, err := service.PlaceOrder(types.PlaceOrderRequest{
		UserID: "nobody", Name: "INFY", Qty: 1, Price: 100, Mode: types.ModeBuy,
	})
	if !errors.Is(err, funds.ErrFundsNotFound) {
		t.Fatalf("PlaceOrder returned %v, want ErrFundsNotFound", err)
	}
}

// TestPlaceOrderDeferredBuy checks that a non-immediate buy reserves funds
// but leaves the portfolio untouched until execution.
func TestPlaceOrderDeferredBuy(t *testing.T) {
	service, db := newTestService(t)
	seedFunds(t, db, "user-5")

	resp, err := service.PlaceOrder(types.PlaceOrderRequest{
		UserID:             "user-5",
		Name:               "HDFCBANK",
		Qty:                2,
		Price:              1500,
		Mode:               types.ModeBuy,
		ExecuteImmediately: boolPtr(false),
	})
	if err != nil {
		t.Fatalf("PlaceOrder failed: %v", err)
	}

	if resp.Status != types.StatusOpen {
		t.Errorf("status = %q, want open", resp.Status)
	}
	if resp.Order.ExecutedAt != nil {
		t.Error("open order has an execution time")
	}
	// Funds are still reserved for an open buy.
	if resp.UpdatedFunds.AvailableFunds != 97000 || resp.UpdatedFunds.UsedFunds != 3000 {
		t.Errorf("funds after open buy = %v/%v, want 97000/3000",
			resp.UpdatedFunds.AvailableFunds, resp.UpdatedFunds.UsedFunds)
	}

	var count int64
	db.Model(&types.Holding{}).Where("user_id = ?", "user-5").Count(&count)
	if count != 0 {
		t.Errorf("open buy created a holding")
	}
}

func TestPlaceOrderDeferredSellTouchesNothing(t *testing.T) {
	service, db := newTestService(t)
	seedFunds(t, db, "user-6")

	resp, err := service.PlaceOrder(types.PlaceOrderRequest{
		UserID:             "user-6",
		Name:               "SBIN",
		Qty:                3,
		Price:              400,
		Mode:               types.ModeSell,
		ExecuteImmediately: boolPtr(false),
	})
	if err != nil {
		t.Fatalf("PlaceOrder failed: %v", err)
	}

	if resp.Status != types.StatusOpen {
		t.Errorf("status = %q, want open", resp.Status)
	}
	// An open sell succeeds without a holding and moves no money.
	if resp.UpdatedFunds.AvailableFunds != types.DefaultAvailableFunds || resp.UpdatedFunds.UsedFunds != 0 {
		t.Errorf("open sell moved funds: %v/%v",
			resp.UpdatedFunds.AvailableFunds, resp.UpdatedFunds.UsedFunds)
	}

	var count int64
	db.Model(&types.Order{}).Where("user_id = ?", "user-6").Count(&count)
	if count != 1 {
		t.Errorf("order count = %d, want 1", count)
	}
}

// TestGetUserOrders checks the order book partition: open and executed
// orders land in their buckets, rejected attempts stay out of both.
func TestGetUserOrders(t *testing.T) {
	service, db := newTestService(t)
	seedFunds(t, db, "user-7")

	if _, err := service.PlaceOrder(types.PlaceOrderRequest{
		UserID: "user-7", Name: "INFY", Qty: 2, Price: 1500, Mode: types.ModeBuy,
	}); err != nil {
		t.Fatalf("executed buy failed: %v", err)
	}
	if _, err := service.PlaceOrder(types.PlaceOrderRequest{
		UserID: "user-7", Name: "TCS", Qty: 1, Price: 3000, Mode: types.ModeBuy,
		ExecuteImmediately: boolPtr(false),
	}); err != nil {
		t.Fatalf("open buy failed: %v", err)
	}
	if _, err := service.PlaceOrder(types.PlaceOrderRequest{
		UserID: "user-7", Name: "INFY", Qty: 500, Price: 1500, Mode: types.ModeBuy,
	}); !errors.Is(err, funds.ErrInsufficientFunds) {
		t.Fatalf("oversized buy returned %v, want ErrInsufficientFunds", err)
	}

	book, err := service.GetUserOrders("user-7")
	if err != nil {
		t.Fatalf("GetUserOrders failed: %v", err)
	}
	if len(book.Open) != 1 {
		t.Errorf("open bucket has %d orders, want 1", len(book.Open))
	}
	if len(book.Executed) != 1 {
		t.Errorf("executed bucket has %d orders, want 1", len(book.Executed))
	}

	// The rejected attempt is still on the audit log.
	var count int64
	db.Model(&types.Order{}).Where("user_id = ? AND status = ?", "user-7", types.StatusRejected).Count(&count)
	if count != 1 {
		t.Errorf("rejected order count = %d, want 1", count)
	}
}

func TestGetUserOrdersEmptyBook(t *testing.T) {
	service, _ := newTestService(t)

	book, err := service.GetUserOrders("nobody")
	if err != nil {
		t.Fatalf("GetUserOrders failed: %v", err)
	}
	if book.Open == nil || book.Executed == nil {
		t.Error("empty book buckets must be non-nil for JSON clients")
	}
	if len(book.Open) != 0 || len(book.Executed) != 0 {
		t.Errorf("empty book has entries: %+v", book)
	}
}

// TestPlaceOrderConcurrentSameUser fires many placements for one user at
// once and checks none of the funds updates is lost: every debit must land,
// and the holding must aggregate every lot.
func TestPlaceOrderConcurrentSameUser(t *testing.T) {
	service, db := newTestService(t)
	seedFunds(t, db, "user-9")

	const workers = 20
	const price = 100.0

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.PlaceOrder(types.PlaceOrderRequest{
				UserID: "user-9", Name: "INFY", Qty: 1, Price: price, Mode: types.ModeBuy,
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent PlaceOrder failed: %v", err)
		}
	}

	f, err := funds.Get(db, "user-9")
	if err != nil {
		t.Fatalf("Get funds failed: %v", err)
	}
	wantAvailable := types.DefaultAvailableFunds - workers*price
	if math.Abs(f.AvailableFunds-wantAvailable) > 1e-9 {
		t.Errorf("available = %v, want %v", f.AvailableFunds, wantAvailable)
	}
	if math.Abs(f.UsedFunds-workers*price) > 1e-9 {
		t.Errorf("used = %v, want %v", f.UsedFunds, workers*price)
	}

	var h types.Holding
	if err := db.Where("user_id = ? AND name = ?", "user-9", "INFY").First(&h).Error; err != nil {
		t.Fatalf("holding lookup failed: %v", err)
	}
	if h.Qty != workers {
		t.Errorf("holding qty = %d, want %d", h.Qty, workers)
	}

	var count int64
	db.Model(&types.Order{}).Where("user_id = ? AND status = ?", "user-9", types.StatusExecuted).Count(&count)
	if count != workers {
		t.Errorf("executed order count = %d, want %d", count, workers)
	}
}

func TestRecordOrder(t *testing.T) {
	service, _ := newTestService(t)

	order, err := service.RecordOrder(types.NewOrderRequest{
		UserID: "user-8", Name: "INFY", Qty: 1, Price: 1500, Mode: types.ModeBuy,
	})
	if err != nil {
		t.Fatalf("RecordOrder failed: %v", err)
	}
	if order.Status != types.StatusOpen {
		t.Errorf("status = %q, want open", order.Status)
	}
	if order.OrderID == "" {
		t.Error("order has no ID")
	}
}
