package book

import (
	"testing"

	"github.com/uhyunpark/hyperclob/pkg/num"
)

// Scenario 1: simple cross, no residue. Resting ask 1500/100 is
// fully cleared by an incoming bid of the same price and size.
func TestMatchOrder_SimpleCrossNoResidue(t *testing.T) {
	m := newTestManager(t)
	askOid, _ := m.NextOrderId()
	m.AddOrder(GlobalBook, askOid, num.FromUint64(100), NewPrice(num.FromUint64(1500), false))

	result, err := m.MatchOrder(GlobalBook, NewPrice(num.FromUint64(1500), true), num.FromUint64(100))
	if err != nil {
		t.Fatalf("MatchOrder: %v", err)
	}

	if result.QtyFilled.Cmp(num.FromUint64(100)) != 0 {
		t.Errorf("QtyFilled = %v, want 100", result.QtyFilled)
	}
	if result.Volume.Cmp(num.FromUint64(150000)) != 0 {
		t.Errorf("Volume = %v, want 150000", result.Volume)
	}
	if result.NewRestingOID != nil {
		t.Errorf("NewRestingOID = %v, want nil", *result.NewRestingOID)
	}
	if result.PartialFill != nil {
		t.Errorf("PartialFill = %v, want nil", *result.PartialFill)
	}
	if len(result.FilledOrders) != 1 || result.FilledOrders[0].OID != askOid {
		t.Errorf("FilledOrders = %v, want [{%d,1500}]", result.FilledOrders, askOid)
	}
	if _, ok := m.BestAsk(GlobalBook); ok {
		t.Errorf("book should be empty after the cross")
	}
}

// Scenario 2: partial fill with residue. Two asks are fully
// cleared, and the incoming bid rests a residue of 20 at its own price.
func TestMatchOrder_PartialFillWithResidue(t *testing.T) {
	m := newTestManager(t)
	first, _ := m.NextOrderId()
	m.AddOrder(GlobalBook, first, num.FromUint64(30), NewPrice(num.FromUint64(1500), false))
	second, _ := m.NextOrderId()
	m.AddOrder(GlobalBook, second, num.FromUint64(50), NewPrice(num.FromUint64(1501), false))

	result, err := m.MatchOrder(GlobalBook, NewPrice(num.FromUint64(1502), true), num.FromUint64(100))
	if err != nil {
		t.Fatalf("MatchOrder: %v", err)
	}

	firstLeg, _ := num.FromUint64(30).CheckedMul(num.FromUint64(1500))
	secondLeg, _ := num.FromUint64(50).CheckedMul(num.FromUint64(1501))
	wantVolume := firstLeg.Add(secondLeg)
	if result.Volume.Cmp(wantVolume) != 0 {
		t.Errorf("Volume = %v, want %v", result.Volume, wantVolume)
	}
	if result.QtyFilled.Cmp(num.FromUint64(80)) != 0 {
		t.Errorf("QtyFilled = %v, want 80", result.QtyFilled)
	}
	if result.PartialFill != nil {
		t.Errorf("PartialFill = %v, want nil", *result.PartialFill)
	}
	if len(result.FilledOrders) != 2 || result.FilledOrders[0].OID != first || result.FilledOrders[1].OID != second {
		t.Errorf("FilledOrders = %v, want [{%d,1500},{%d,1501}]", result.FilledOrders, first, second)
	}
	if result.NewRestingOID == nil {
		t.Fatalf("NewRestingOID = nil, want a residue order")
	}
	residueQty, ok := m.QtyOf(*result.NewRestingOID)
	if !ok || residueQty.Cmp(num.FromUint64(20)) != 0 {
		t.Errorf("residue qty = %v, %v; want 20, true", residueQty, ok)
	}
	residuePrice, _ := m.PriceOf(*result.NewRestingOID)
	if residuePrice.Magnitude.Cmp(num.FromUint64(1502)) != 0 || !residuePrice.IsBid {
		t.Errorf("residue price = %+v, want {1502, bid}", residuePrice)
	}
}

// Scenario 3: partial fill at the last touched level. The
// resting ask is only partly consumed and remains on the book.
func TestMatchOrder_PartialAtLastTouchedLevel(t *testing.T) {
	m := newTestManager(t)
	askOid, _ := m.NextOrderId()
	m.AddOrder(GlobalBook, askOid, num.FromUint64(70), NewPrice(num.FromUint64(1500), false))

	result, err := m.MatchOrder(GlobalBook, NewPrice(num.FromUint64(1500), true), num.FromUint64(50))
	if err != nil {
		t.Fatalf("MatchOrder: %v", err)
	}

	if result.QtyFilled.Cmp(num.FromUint64(50)) != 0 {
		t.Errorf("QtyFilled = %v, want 50", result.QtyFilled)
	}
	if len(result.FilledOrders) != 0 {
		t.Errorf("FilledOrders = %v, want empty", result.FilledOrders)
	}
	if result.PartialFill == nil || result.PartialFill.OID != askOid {
		t.Fatalf("PartialFill = %v, want {%d,1500}", result.PartialFill, askOid)
	}
	if result.PartialFill.RemainingQty.Cmp(num.FromUint64(20)) != 0 {
		t.Errorf("PartialFill.RemainingQty = %v, want 20", result.PartialFill.RemainingQty)
	}
	if result.NewRestingOID != nil {
		t.Errorf("NewRestingOID = %v, want nil (no residue)", *result.NewRestingOID)
	}
	remaining, ok := m.QtyOf(askOid)
	if !ok || remaining.Cmp(num.FromUint64(20)) != 0 {
		t.Errorf("remaining ask qty = %v, %v; want 20, true", remaining, ok)
	}
}

// Boundary: an order priced strictly worse than best opposite
// produces zero fills and rests entirely.
func TestMatchOrder_NoCrossRestsWholeOrder(t *testing.T) {
	m := newTestManager(t)
	askOid, _ := m.NextOrderId()
	m.AddOrder(GlobalBook, askOid, num.FromUint64(10), NewPrice(num.FromUint64(1600), false))

	result, err := m.MatchOrder(GlobalBook, NewPrice(num.FromUint64(1500), true), num.FromUint64(10))
	if err != nil {
		t.Fatalf("MatchOrder: %v", err)
	}

	if !result.QtyFilled.IsZero() {
		t.Errorf("QtyFilled = %v, want 0", result.QtyFilled)
	}
	if len(result.FilledOrders) != 0 || result.PartialFill != nil {
		t.Errorf("expected zero fills, got %+v", result)
	}
	if result.NewRestingOID == nil {
		t.Fatalf("expected the whole incoming order to rest")
	}
	restingQty, _ := m.QtyOf(*result.NewRestingOID)
	if restingQty.Cmp(num.FromUint64(10)) != 0 {
		t.Errorf("resting qty = %v, want 10", restingQty)
	}
	if askOid == *result.NewRestingOID {
		t.Fatalf("resting ask must be untouched")
	}
}

func TestMatchOrder_UnknownBook(t *testing.T) {
	m := NewOrderBookManager()
	_, err := m.MatchOrder(BookId(7), NewPrice(num.FromUint64(1), true), num.FromUint64(1))
	if err != ErrUnknownBook {
		t.Fatalf("MatchOrder(unregistered book) = %v, want ErrUnknownBook", err)
	}
}
