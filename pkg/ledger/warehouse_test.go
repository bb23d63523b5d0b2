package ledger

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/uhyunpark/hyperclob/pkg/book"
	"github.com/uhyunpark/hyperclob/pkg/num"
)

var testOwner = common.HexToAddress("0x00000000000000000000000000000000000001")

// AddOrder followed by RemoveBid/RemoveAsk with the same parameters
// restores the pre-state liability.
func TestWarehouse_AddRemoveRoundTrip_Bid(t *testing.T) {
	w := NewWarehouse()
	price := book.NewPrice(num.FromUint64(1500), true)

	w.AddOrder(book.OrderId(1), testOwner, num.FromUint64(10), price)
	inv, _ := w.Inventory(testOwner)
	if inv.UsdcLiabilities.Cmp(num.FromUint64(15000)) != 0 {
		t.Fatalf("UsdcLiabilities after add = %v, want 15000", inv.UsdcLiabilities)
	}

	if _, err := w.RemoveBid(book.OrderId(1), num.FromUint64(10), price); err != nil {
		t.Fatalf("RemoveBid: %v", err)
	}
	if !inv.UsdcLiabilities.IsZero() {
		t.Errorf("UsdcLiabilities after round-trip = %v, want 0", inv.UsdcLiabilities)
	}
	if _, ok := w.OwnerOf(book.OrderId(1)); ok {
		t.Errorf("OwnerOf(oid) should be absent after remove")
	}
}

func TestWarehouse_AddRemoveRoundTrip_Ask(t *testing.T) {
	w := NewWarehouse()
	price := book.NewPrice(num.FromUint64(1500), false)

	w.AddOrder(book.OrderId(1), testOwner, num.FromUint64(10), price)
	inv, _ := w.Inventory(testOwner)
	if inv.EthLiabilities.Cmp(num.FromUint64(10)) != 0 {
		t.Fatalf("EthLiabilities after add = %v, want 10", inv.EthLiabilities)
	}

	if _, err := w.RemoveAsk(book.OrderId(1), num.FromUint64(10)); err != nil {
		t.Fatalf("RemoveAsk: %v", err)
	}
	if !inv.EthLiabilities.IsZero() {
		t.Errorf("EthLiabilities after round-trip = %v, want 0", inv.EthLiabilities)
	}
}

// After fill_bid(o,p): delta eth_balance=+qty, delta usdc_balance=-qty*p,
// delta usdc_liabilities=-qty*p.
func TestWarehouse_FillBid_Deltas(t *testing.T) {
	w := NewWarehouse()
	price := book.NewPrice(num.FromUint64(1500), true)
	w.AddOrder(book.OrderId(1), testOwner, num.FromUint64(100), price)

	inv, _ := w.Inventory(testOwner)
	inv.UsdcBalance = num.FromUint64(200000)

	if _, err := w.FillBid(book.OrderId(1), num.FromUint64(100), price); err != nil {
		t.Fatalf("FillBid: %v", err)
	}

	if inv.EthBalance.Cmp(num.FromUint64(100)) != 0 {
		t.Errorf("EthBalance = %v, want +100", inv.EthBalance)
	}
	if inv.UsdcBalance.Cmp(num.FromUint64(50000)) != 0 {
		t.Errorf("UsdcBalance = %v, want 200000-150000=50000", inv.UsdcBalance)
	}
	if !inv.UsdcLiabilities.IsZero() {
		t.Errorf("UsdcLiabilities = %v, want 0", inv.UsdcLiabilities)
	}
}

// Scenario 1, ledger side: A (ask) loses ETH and gains USDC; B
// (bid) gains ETH and loses USDC, symmetric to the matcher-level test in
// pkg/book.
func TestWarehouse_SimpleCross_BothSidesSettle(t *testing.T) {
	w := NewWarehouse()
	askOwner := common.HexToAddress("0x00000000000000000000000000000000000002")
	bidOwner := testOwner

	askPrice := book.NewPrice(num.FromUint64(1500), false)
	bidPrice := book.NewPrice(num.FromUint64(1500), true)
	w.AddOrder(book.OrderId(1), askOwner, num.FromUint64(100), askPrice)
	w.AddOrder(book.OrderId(2), bidOwner, num.FromUint64(100), bidPrice)

	bidderInv, _ := w.Inventory(bidOwner)
	bidderInv.UsdcBalance = num.FromUint64(150000)
	askerInv, _ := w.Inventory(askOwner)
	askerInv.EthBalance = num.FromUint64(100)

	if _, err := w.FillAsk(book.OrderId(1), num.FromUint64(100), askPrice); err != nil {
		t.Fatalf("FillAsk: %v", err)
	}
	if _, err := w.FillBid(book.OrderId(2), num.FromUint64(100), bidPrice); err != nil {
		t.Fatalf("FillBid: %v", err)
	}

	if !askerInv.EthBalance.IsZero() {
		t.Errorf("asker EthBalance = %v, want 0", askerInv.EthBalance)
	}
	if askerInv.UsdcBalance.Cmp(num.FromUint64(150000)) != 0 {
		t.Errorf("asker UsdcBalance = %v, want 150000", askerInv.UsdcBalance)
	}
	if bidderInv.EthBalance.Cmp(num.FromUint64(100)) != 0 {
		t.Errorf("bidder EthBalance = %v, want 100", bidderInv.EthBalance)
	}
	if !bidderInv.UsdcBalance.IsZero() {
		t.Errorf("bidder UsdcBalance = %v, want 0", bidderInv.UsdcBalance)
	}
}

func TestWarehouse_RemoveUnknownOrder(t *testing.T) {
	w := NewWarehouse()
	price := book.NewPrice(num.FromUint64(1500), true)
	if _, err := w.RemoveBid(book.OrderId(99), num.FromUint64(1), price); err != ErrOrderNotOwned {
		t.Fatalf("RemoveBid(unknown) = %v, want ErrOrderNotOwned", err)
	}
}

func TestWarehouse_IsTaker_DefaultsFalse(t *testing.T) {
	w := NewWarehouse()
	if w.IsTaker(testOwner) {
		t.Fatalf("IsTaker on unknown address = true, want false")
	}
}

func TestWarehouse_PartiallyFillOrder(t *testing.T) {
	w := NewWarehouse()
	price := book.NewPrice(num.FromUint64(1500), false)
	w.AddOrder(book.OrderId(3), testOwner, num.FromUint64(70), price)

	inv, _ := w.Inventory(testOwner)
	inv.EthBalance = num.FromUint64(70)

	if err := w.PartiallyFillOrder(book.OrderId(3), num.FromUint64(50), num.FromUint64(20), price); err != nil {
		t.Fatalf("PartiallyFillOrder: %v", err)
	}

	if inv.EthBalance.Cmp(num.FromUint64(20)) != 0 {
		t.Errorf("EthBalance after partial fill = %v, want 20", inv.EthBalance)
	}
	if inv.UsdcBalance.Cmp(num.FromUint64(75000)) != 0 {
		t.Errorf("UsdcBalance after partial fill = %v, want 75000", inv.UsdcBalance)
	}
	if inv.EthLiabilities.Cmp(num.FromUint64(20)) != 0 {
		t.Errorf("EthLiabilities after partial fill = %v, want 20 (residual reservation)", inv.EthLiabilities)
	}
}

func TestEncodeDecodeInventory_RoundTrip(t *testing.T) {
	inv := &Inventory{
		Address: testOwner,
		EthBalance: num.FromUint64(1234),
		EthLiabilities: num.FromUint64(56),
		UsdcBalance: num.FromUint64(987654),
		UsdcLiabilities: num.FromUint64(100),
		DepositNonce: 7,
		IsTaker: true,
	}

	record := EncodeInventory(inv)
	if len(record) != InventoryRecordSize {
		t.Fatalf("record length = %d, want %d", len(record), InventoryRecordSize)
	}

	decoded, err := DecodeInventory(record[:])
	if err != nil {
		t.Fatalf("DecodeInventory: %v", err)
	}
	if decoded.Address != inv.Address {
		t.Errorf("Address = %v, want %v", decoded.Address, inv.Address)
	}
	if decoded.EthBalance.Cmp(inv.EthBalance) != 0 {
		t.Errorf("EthBalance = %v, want %v", decoded.EthBalance, inv.EthBalance)
	}
	if decoded.DepositNonce != inv.DepositNonce {
		t.Errorf("DepositNonce = %v, want %v", decoded.DepositNonce, inv.DepositNonce)
	}
	if decoded.IsTaker != inv.IsTaker {
		t.Errorf("IsTaker = %v, want %v", decoded.IsTaker, inv.IsTaker)
	}
}

func TestDecodeInventory_ShortRecord(t *testing.T) {
	if _, err := DecodeInventory(make([]byte, 10)); err != ErrShortRecord {
		t.Fatalf("DecodeInventory(short) = %v, want ErrShortRecord", err)
	}
}
