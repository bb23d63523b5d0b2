package enclave

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/uhyunpark/hyperclob/pkg/book"
	"github.com/uhyunpark/hyperclob/pkg/crypto"
	"github.com/uhyunpark/hyperclob/pkg/ledger"
	"github.com/uhyunpark/hyperclob/pkg/num"
)

// fixedClock pins Now so order timestamps in tests never drift past
// the acceptance window.
type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }
func (c fixedClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

func newTestService(t *testing.T) (*Service, *crypto.Signer, time.Time) {
	t.Helper()
	warehouse := ledger.NewWarehouse()
	books := book.NewOrderBookManager()
	books.RegisterBook(book.GlobalBook)

	domain := crypto.CLOBDomain(common.Address{})
	logger := zap.NewNop()
	now := time.UnixMilli(1_700_000_000_000)
	clock := fixedClock{now: now}

	svc := NewService(warehouse, books, domain, clock, logger)
	signer, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	return svc, signer, now
}

func signOrder(t *testing.T, signer *crypto.Signer, o *crypto.OrderEnvelope) []byte {
	t.Helper()
	eip712 := crypto.NewEIP712Signer(crypto.CLOBDomain(common.Address{}))
	hash, err := eip712.HashOrder(o)
	if err != nil {
		t.Fatalf("HashOrder: %v", err)
	}
	sig, err := signer.Sign(hash)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	return sig
}

func signCancel(t *testing.T, signer *crypto.Signer, c *crypto.CancelEnvelope) []byte {
	t.Helper()
	eip712 := crypto.NewEIP712Signer(crypto.CLOBDomain(common.Address{}))
	hash, err := eip712.HashCancel(c)
	if err != nil {
		t.Fatalf("HashCancel: %v", err)
	}
	sig, err := signer.Sign(hash)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	return sig
}

// A bid with insufficient USDC is rejected before any state mutation.
func TestService_SendOrder_InsufficientBalance(t *testing.T) {
	svc, signer, now := newTestService(t)

	order := &crypto.OrderEnvelope{
		Price: "1500",
		Qty: "100",
		IsBid: true,
		Timestamp: uint64(now.UnixMilli()),
		Owner: signer.Address(),
	}
	sig := signOrder(t, signer, order)

	_, err := svc.SendOrder(order, sig)
	enclaveErr, ok := err.(*Error)
	if !ok || enclaveErr.Kind != KindInsufficientBalance || enclaveErr.Token != "USDC" {
		t.Fatalf("SendOrder error = %v, want InsufficientBalance{USDC}", err)
	}

	if _, found := svc.warehouse.Inventory(signer.Address()); found {
		t.Errorf("inventory should not exist after rejected order")
	}
}

// A taker is exempt from the on-book solvency check.
func TestService_SendOrder_TakerBypassesSolvency(t *testing.T) {
	svc, signer, now := newTestService(t)
	addr := signer.Address()

	svc.warehouse.CreditDeposit(addr, num.Zero(), num.Zero())
	if inv, ok := svc.warehouse.Inventory(addr); ok {
		inv.IsTaker = true
	}

	order := &crypto.OrderEnvelope{
		Price: "1500",
		Qty: "100",
		IsBid: true,
		Timestamp: uint64(now.UnixMilli()),
		Owner: addr,
	}
	sig := signOrder(t, signer, order)

	result, err := svc.SendOrder(order, sig)
	if err != nil {
		t.Fatalf("SendOrder: %v", err)
	}
	if result.NewRestingOID == nil {
		t.Fatalf("expected the bid to rest with no opposite liquidity")
	}
}

// Scenario 1 end-to-end through the service layer: a resting ask is
// cleared by a same-priced bid and both sides settle.
func TestService_SendOrder_SimpleCross(t *testing.T) {
	svc, makerSigner, now := newTestService(t)
	maker := makerSigner.Address()
	takerSigner, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	taker := takerSigner.Address()

	svc.warehouse.CreditDeposit(maker, num.FromUint64(100), num.Zero())
	svc.warehouse.CreditDeposit(taker, num.Zero(), num.FromUint64(150000))

	ask := &crypto.OrderEnvelope{Price: "1500", Qty: "100", IsBid: false, Timestamp: uint64(now.UnixMilli()), Owner: maker}
	askSig := signOrder(t, makerSigner, ask)
	if _, err := svc.SendOrder(ask, askSig); err != nil {
		t.Fatalf("SendOrder(ask): %v", err)
	}

	bid := &crypto.OrderEnvelope{Price: "1500", Qty: "100", IsBid: true, Timestamp: uint64(now.UnixMilli()), Owner: taker}
	bidSig := signOrder(t, takerSigner, bid)

	result, err := svc.SendOrder(bid, bidSig)
	if err != nil {
		t.Fatalf("SendOrder(bid): %v", err)
	}
	if result.ExecutedQty.Cmp(num.FromUint64(100)) != 0 {
		t.Errorf("ExecutedQty = %v, want 100", result.ExecutedQty)
	}
	if result.Volume.Cmp(num.FromUint64(150000)) != 0 {
		t.Errorf("Volume = %v, want 150000", result.Volume)
	}
	if result.NewRestingOID != nil {
		t.Errorf("NewRestingOID = %v, want nil", *result.NewRestingOID)
	}

	makerInv, _ := svc.warehouse.Inventory(maker)
	if !makerInv.EthBalance.IsZero() {
		t.Errorf("maker EthBalance = %v, want 0", makerInv.EthBalance)
	}
	if makerInv.UsdcBalance.Cmp(num.FromUint64(150000)) != 0 {
		t.Errorf("maker UsdcBalance = %v, want 150000", makerInv.UsdcBalance)
	}
	takerInv, _ := svc.warehouse.Inventory(taker)
	if takerInv.EthBalance.Cmp(num.FromUint64(100)) != 0 {
		t.Errorf("taker EthBalance = %v, want 100", takerInv.EthBalance)
	}
	if !takerInv.UsdcBalance.IsZero() {
		t.Errorf("taker UsdcBalance = %v, want 0", takerInv.UsdcBalance)
	}
}

// Cancel by a non-owner is rejected and the order remains.
func TestService_CancelOrder_Unauthorized(t *testing.T) {
	svc, ownerSigner, now := newTestService(t)
	owner := ownerSigner.Address()
	svc.warehouse.CreditDeposit(owner, num.FromUint64(10), num.Zero())

	order := &crypto.OrderEnvelope{Price: "1500", Qty: "10", IsBid: false, Timestamp: uint64(now.UnixMilli()), Owner: owner}
	sig := signOrder(t, ownerSigner, order)
	if _, err := svc.SendOrder(order, sig); err != nil {
		t.Fatalf("SendOrder: %v", err)
	}

	oids := svc.warehouse.OrdersByOwner(owner)
	if len(oids) != 1 {
		t.Fatalf("expected exactly one resting order, got %d", len(oids))
	}
	oid := oids[0]

	intruder, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	cancel := &crypto.CancelEnvelope{OID: uint32(oid), Timestamp: uint64(now.UnixMilli()), Owner: intruder.Address()}
	cancelSig := signCancel(t, intruder, cancel)

	err = svc.CancelOrder(cancel, cancelSig)
	enclaveErr, ok := err.(*Error)
	if !ok || enclaveErr.Kind != KindUnauthorized {
		t.Fatalf("CancelOrder error = %v, want Unauthorized", err)
	}

	if _, ok := svc.books.QtyOf(oid); !ok {
		t.Errorf("order should still be resting after a rejected cancel")
	}
}

func TestService_SendOrder_RejectsStaleTimestamp(t *testing.T) {
	svc, signer, now := newTestService(t)
	order := &crypto.OrderEnvelope{
		Price: "1500",
		Qty: "10",
		IsBid: false,
		Timestamp: uint64(now.Add(-2 * time.Minute).UnixMilli()),
		Owner: signer.Address(),
	}
	sig := signOrder(t, signer, order)

	_, err := svc.SendOrder(order, sig)
	enclaveErr, ok := err.(*Error)
	if !ok || enclaveErr.Kind != KindInvalidTimestamp {
		t.Fatalf("SendOrder error = %v, want InvalidTimestamp", err)
	}
}

func TestService_SendOrder_RejectsBadSignature(t *testing.T) {
	svc, signer, now := newTestService(t)
	other, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	order := &crypto.OrderEnvelope{
		Price: "1500",
		Qty: "10",
		IsBid: false,
		Timestamp: uint64(now.UnixMilli()),
		Owner: signer.Address(),
	}
	sig := signOrder(t, other, order) // signed by the wrong key

	_, err = svc.SendOrder(order, sig)
	enclaveErr, ok := err.(*Error)
	if !ok || enclaveErr.Kind != KindInvalidSignature {
		t.Fatalf("SendOrder error = %v, want InvalidSignature", err)
	}
}
