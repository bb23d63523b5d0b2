package book

import (
	"testing"

	"github.com/uhyunpark/hyperclob/pkg/num"
)

func newTestManager(t *testing.T) *OrderBookManager {
	t.Helper()
	m := NewOrderBookManager()
	m.RegisterBook(GlobalBook)
	return m
}

func TestOrderBookManager_AddOrderThenBestPrices(t *testing.T) {
	m := newTestManager(t)

	bidOid, _ := m.NextOrderId()
	if err := m.AddOrder(GlobalBook, bidOid, num.FromUint64(10), NewPrice(num.FromUint64(1400), true)); err != nil {
		t.Fatalf("AddOrder(bid): %v", err)
	}
	askOid, _ := m.NextOrderId()
	if err := m.AddOrder(GlobalBook, askOid, num.FromUint64(10), NewPrice(num.FromUint64(1600), false)); err != nil {
		t.Fatalf("AddOrder(ask): %v", err)
	}

	bestBid, ok := m.BestBid(GlobalBook)
	if !ok || bestBid.Cmp(num.FromUint64(1400)) != 0 {
		t.Fatalf("BestBid = %v, %v; want 1400, true", bestBid, ok)
	}
	bestAsk, ok := m.BestAsk(GlobalBook)
	if !ok || bestAsk.Cmp(num.FromUint64(1600)) != 0 {
		t.Fatalf("BestAsk = %v, %v; want 1600, true", bestAsk, ok)
	}
}

func TestOrderBookManager_UnknownBook(t *testing.T) {
	m := NewOrderBookManager()
	oid, _ := m.NextOrderId()
	if err := m.AddOrder(BookId(99), oid, num.FromUint64(1), NewPrice(num.FromUint64(1), true)); err != ErrUnknownBook {
		t.Fatalf("AddOrder on unregistered book: got %v, want ErrUnknownBook", err)
	}
}

// Round-trip: add_order followed by remove restores pre-state.
func TestOrderBookManager_AddRemoveRoundTrip(t *testing.T) {
	m := newTestManager(t)

	oid, _ := m.NextOrderId()
	price := NewPrice(num.FromUint64(1500), true)
	if err := m.AddOrder(GlobalBook, oid, num.FromUint64(25), price); err != nil {
		t.Fatalf("AddOrder: %v", err)
	}
	if err := m.RemoveOrder(GlobalBook, oid); err != nil {
		t.Fatalf("RemoveOrder: %v", err)
	}

	if _, ok := m.BestBid(GlobalBook); ok {
		t.Fatalf("BestBid should be empty after round-trip remove")
	}
	if _, ok := m.QtyOf(oid); ok {
		t.Fatalf("QtyOf(oid) should be absent after remove")
	}
	if levels := m.BidLevels(GlobalBook); len(levels) != 0 {
		t.Fatalf("BidLevels = %v, want empty (empty levels must be absent)", levels)
	}
}

func TestOrderBookManager_RemoveOrderNotFound(t *testing.T) {
	m := newTestManager(t)
	if err := m.RemoveOrder(GlobalBook, OrderId(999)); err != ErrOrderNotFound {
		t.Fatalf("RemoveOrder(missing oid) = %v, want ErrOrderNotFound", err)
	}
}

// ReplaceOrder resets time priority: the new oid goes to the tail of its
// level's FIFO even if the old order was at the head.
func TestOrderBookManager_ReplaceOrderResetsTimePriority(t *testing.T) {
	m := newTestManager(t)
	price := NewPrice(num.FromUint64(1500), false)

	first, _ := m.NextOrderId()
	m.AddOrder(GlobalBook, first, num.FromUint64(10), price)
	second, _ := m.NextOrderId()
	m.AddOrder(GlobalBook, second, num.FromUint64(10), price)

	replacement, _ := m.NextOrderId()
	if err := m.ReplaceOrder(GlobalBook, first, replacement, num.FromUint64(15), price); err != nil {
		t.Fatalf("ReplaceOrder: %v", err)
	}

	fifo := m.ordersAtLevel(GlobalBook, num.FromUint64(1500), false)
	want := []OrderId{second, replacement}
	if len(fifo) != len(want) || fifo[0] != want[0] || fifo[1] != want[1] {
		t.Fatalf("FIFO after replace = %v, want %v", fifo, want)
	}
}

// Levels aggregate resting orders: Σ qty of members == level.Size, and an
// empty level disappears from the book entirely.
func TestOrderBookManager_LevelSizeInvariant(t *testing.T) {
	m := newTestManager(t)
	price := NewPrice(num.FromUint64(2000), true)

	a, _ := m.NextOrderId()
	m.AddOrder(GlobalBook, a, num.FromUint64(5), price)
	b, _ := m.NextOrderId()
	m.AddOrder(GlobalBook, b, num.FromUint64(7), price)

	levels := m.BidLevels(GlobalBook)
	if len(levels) != 1 {
		t.Fatalf("BidLevels len = %d, want 1", len(levels))
	}
	if levels[0].Size.Cmp(num.FromUint64(12)) != 0 {
		t.Fatalf("level size = %v, want 12", levels[0].Size)
	}

	m.ExecuteOrder(GlobalBook, a, num.FromUint64(5))
	m.ExecuteOrder(GlobalBook, b, num.FromUint64(7))

	if levels := m.BidLevels(GlobalBook); len(levels) != 0 {
		t.Fatalf("BidLevels after full execution = %v, want empty", levels)
	}
}

func TestOrderBookManager_BidAndAskLevelsOrdering(t *testing.T) {
	m := newTestManager(t)

	for _, p := range []uint64{1400, 1450, 1500} {
		oid, _ := m.NextOrderId()
		m.AddOrder(GlobalBook, oid, num.FromUint64(1), NewPrice(num.FromUint64(p), true))
	}
	for _, p := range []uint64{1600, 1550} {
		oid, _ := m.NextOrderId()
		m.AddOrder(GlobalBook, oid, num.FromUint64(1), NewPrice(num.FromUint64(p), false))
	}

	bidLevels := m.BidLevels(GlobalBook)
	wantBid := []uint64{1500, 1450, 1400}
	for i, want := range wantBid {
		if bidLevels[i].Price.Cmp(num.FromUint64(want)) != 0 {
			t.Fatalf("BidLevels[%d] = %v, want %d", i, bidLevels[i].Price, want)
		}
	}

	askLevels := m.AskLevels(GlobalBook)
	wantAsk := []uint64{1550, 1600}
	for i, want := range wantAsk {
		if askLevels[i].Price.Cmp(num.FromUint64(want)) != 0 {
			t.Fatalf("AskLevels[%d] = %v, want %d", i, askLevels[i].Price, want)
		}
	}
}
