package enclave

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/uhyunpark/hyperclob/pkg/book"
	"github.com/uhyunpark/hyperclob/pkg/crypto"
	"github.com/uhyunpark/hyperclob/pkg/ledger"
	"github.com/uhyunpark/hyperclob/pkg/num"
	"github.com/uhyunpark/hyperclob/pkg/util"
)

// timestampLowerBound/timestampSkew bound the acceptable window for
// order/cancel/user-request timestamps: no earlier than now minus the
// lower bound, no later than now plus the skew.
const timestampLowerBound = 60 * time.Second
const timestampSkew = 5 * time.Second

// Service is the request layer: send-order, cancel-order, modify-order,
// get-orders, get-inventory. It owns the single RW-lock over the
// Warehouse + OrderBookManager pair.
//
// Authorization is anchored on the EIP-712 recovered signer, carried as
// the Owner field of each envelope - not on a caller-supplied address -
// so every mutating call first verifies the signature, then uses
// envelope.Owner as the acting identity.
//
// Each mutating operation follows a decode -> verify -> mutate under
// lock -> log idiom.
type Service struct {
	mu sync.RWMutex

	warehouse *ledger.Warehouse
	books *book.OrderBookManager

	clobSigner *crypto.EIP712Signer
	clock util.Clock
	logger *zap.Logger
}

// NewService wires a Service over an existing warehouse/book pair.
func NewService(warehouse *ledger.Warehouse, books *book.OrderBookManager, clobDomain crypto.EIP712Domain, clock util.Clock, logger *zap.Logger) *Service {
	return &Service{
		warehouse: warehouse,
		books: books,
		clobSigner: crypto.NewEIP712Signer(clobDomain),
		clock: clock,
		logger: logger,
	}
}

func (s *Service) validateTimestamp(ts uint64) error {
	now := s.clock.Now()
	min := now.Add(-timestampLowerBound)
	max := now.Add(timestampSkew)
	t := time.UnixMilli(int64(ts))
	if t.Before(min) || t.After(max) {
		return New(KindInvalidTimestamp)
	}
	return nil
}

// SendOrder validates and admits a new order, matches it against the
// opposite side of the book, and settles the resulting fills against the
// warehouse.
func (s *Service) SendOrder(envelope *crypto.OrderEnvelope, signature []byte) (*OrderResult, error) {
	valid, err := s.clobSigner.VerifyOrderSignature(envelope, signature)
	if err != nil {
		return nil, New(KindSignatureRecovery)
	}
	if !valid {
		return nil, New(KindInvalidSignature)
	}
	if err := s.validateTimestamp(envelope.Timestamp); err != nil {
		return nil, err
	}

	price, ok := parsePrice(envelope.Price, envelope.IsBid)
	if !ok {
		return nil, New(KindInvalidOrderParams)
	}
	qty, ok := parseQty(envelope.Qty)
	if !ok || qty.IsZero() {
		return nil, New(KindInvalidOrderParams)
	}
	owner := envelope.Owner

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.warehouse.IsTaker(owner) {
		if err := s.checkSolvency(owner, envelope.IsBid, qty, price); err != nil {
			return nil, err
		}
	}

	result, err := s.books.MatchOrder(book.GlobalBook, price, qty)
	if err != nil {
		return nil, New(KindInvalidBook)
	}

	if !result.QtyFilled.IsZero() {
		s.warehouse.SettleSubmitter(owner, envelope.IsBid, result.QtyFilled, result.Volume)
	}

	if result.NewRestingOID != nil {
		residual := qty.SatSub(result.QtyFilled)
		s.warehouse.AddOrder(*result.NewRestingOID, owner, residual, price)
	}

	// Resting counter-orders sit on the opposite side of the incoming
	// order.
	restingIsBid := !envelope.IsBid

	for _, filled := range result.FilledOrders {
		restingPrice := book.NewPrice(filled.Price, restingIsBid)
		if envelope.IsBid {
			if _, err := s.warehouse.FillAsk(filled.OID, filled.Qty, restingPrice); err != nil {
				s.logger.Warn("fill settlement for unknown ask", zap.Uint32("oid", uint32(filled.OID)))
			}
		} else {
			if _, err := s.warehouse.FillBid(filled.OID, filled.Qty, restingPrice); err != nil {
				s.logger.Warn("fill settlement for unknown bid", zap.Uint32("oid", uint32(filled.OID)))
			}
		}
	}
	if result.PartialFill != nil {
		pf := result.PartialFill
		restingPrice := book.NewPrice(pf.Price, restingIsBid)
		if err := s.warehouse.PartiallyFillOrder(pf.OID, pf.ExecutedQty, pf.RemainingQty, restingPrice); err != nil {
			s.logger.Warn("partial fill settlement for unknown order", zap.Uint32("oid", uint32(pf.OID)))
		}
	}

	s.logger.Info("order admitted",
		zap.String("owner", owner.Hex()),
		zap.Bool("is_bid", envelope.IsBid),
		zap.String("executed_qty", result.QtyFilled.String()),
		zap.String("volume", result.Volume.String()),
	)

	return &OrderResult{
		ExecutedQty: result.QtyFilled,
		Volume: result.Volume,
		NewRestingOID: result.NewRestingOID,
	}, nil
}

// CancelOrder validates ownership and removes a resting order entirely.
func (s *Service) CancelOrder(envelope *crypto.CancelEnvelope, signature []byte) error {
	valid, err := s.clobSigner.VerifyCancelSignature(envelope, signature)
	if err != nil {
		return New(KindSignatureRecovery)
	}
	if !valid {
		return New(KindInvalidSignature)
	}
	if err := s.validateTimestamp(envelope.Timestamp); err != nil {
		return err
	}

	oid := book.OrderId(envelope.OID)

	s.mu.Lock()
	defer s.mu.Unlock()

	price, ok := s.books.PriceOf(oid)
	if !ok {
		return New(KindOrderNotFound)
	}
	qty, ok := s.books.QtyOf(oid)
	if !ok {
		return New(KindOrderNotFound)
	}

	owner, ok := s.warehouse.OwnerOf(oid)
	if !ok {
		return New(KindOrderNotFound)
	}
	if owner != envelope.Owner {
		return New(KindUnauthorized)
	}

	if price.IsBid {
		if _, err := s.warehouse.RemoveBid(oid, qty, price); err != nil {
			return New(KindOrderNotFound)
		}
	} else {
		if _, err := s.warehouse.RemoveAsk(oid, qty); err != nil {
			return New(KindOrderNotFound)
		}
	}
	if err := s.books.RemoveOrder(book.GlobalBook, oid); err != nil {
		return New(KindOrderNotFound)
	}

	s.logger.Info("order cancelled", zap.String("owner", owner.Hex()), zap.Uint32("oid", uint32(oid)))
	return nil
}

// ModifyOrder cancels oid and re-admits the new price/qty at the tail of
// its level's FIFO, re-running the solvency check.
func (s *Service) ModifyOrder(envelope *crypto.OrderEnvelope, signature []byte, oid book.OrderId) (book.OrderId, error) {
	valid, err := s.clobSigner.VerifyOrderSignature(envelope, signature)
	if err != nil {
		return 0, New(KindSignatureRecovery)
	}
	if !valid {
		return 0, New(KindInvalidSignature)
	}
	if err := s.validateTimestamp(envelope.Timestamp); err != nil {
		return 0, err
	}

	price, ok := parsePrice(envelope.Price, envelope.IsBid)
	if !ok {
		return 0, New(KindInvalidOrderParams)
	}
	qty, ok := parseQty(envelope.Qty)
	if !ok || qty.IsZero() {
		return 0, New(KindInvalidOrderParams)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	owner, ok := s.warehouse.OwnerOf(oid)
	if !ok {
		return 0, New(KindOrderNotFound)
	}
	if owner != envelope.Owner {
		return 0, New(KindUnauthorized)
	}

	oldQty, ok := s.books.QtyOf(oid)
	if !ok {
		return 0, New(KindOrderNotFound)
	}

	newOid, err := s.books.NextOrderId()
	if err != nil {
		return 0, New(KindInvalidOrderParams)
	}

	inv, err := s.warehouse.ReplaceOrder(oid, newOid, oldQty, qty, price)
	if err != nil {
		return 0, New(KindOrderNotFound)
	}

	if !inv.IsTaker {
		if inv.EthLiabilities.Cmp(inv.EthBalance) > 0 || inv.UsdcLiabilities.Cmp(inv.UsdcBalance) > 0 {
			return 0, Insufficient("ETH_OR_USDC")
		}
	}

	if err := s.books.ReplaceOrder(book.GlobalBook, oid, newOid, qty, price); err != nil {
		return 0, New(KindOrderNotFound)
	}

	s.logger.Info("order modified", zap.String("owner", owner.Hex()), zap.Uint32("old_oid", uint32(oid)), zap.Uint32("new_oid", uint32(newOid)))
	return newOid, nil
}

// GetOrders lists the signer's resting orders.
func (s *Service) GetOrders(envelope *crypto.UserRequestEnvelope, signature []byte) ([]OrderView, error) {
	valid, err := s.clobSigner.VerifyUserRequestSignature(envelope, signature)
	if err != nil {
		return nil, New(KindSignatureRecovery)
	}
	if !valid {
		return nil, New(KindInvalidSignature)
	}
	if err := s.validateTimestamp(envelope.Timestamp); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	oids := s.warehouse.OrdersByOwner(envelope.Owner)
	views := make([]OrderView, 0, len(oids))
	for _, oid := range oids {
		price, hasPrice := s.books.PriceOf(oid)
		qty, hasQty := s.books.QtyOf(oid)
		if !hasPrice || !hasQty {
			continue
		}
		views = append(views, OrderView{OID: oid, Price: price.Magnitude, IsBid: price.IsBid, Qty: qty})
	}

	if len(views) == 0 {
		return nil, New(KindNoOrdersFound)
	}
	return views, nil
}

// GetInventory returns the signer's inventory.
func (s *Service) GetInventory(envelope *crypto.UserRequestEnvelope, signature []byte) (*ledger.Inventory, error) {
	valid, err := s.clobSigner.VerifyUserRequestSignature(envelope, signature)
	if err != nil {
		return nil, New(KindSignatureRecovery)
	}
	if !valid {
		return nil, New(KindInvalidSignature)
	}
	if err := s.validateTimestamp(envelope.Timestamp); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, ok := s.warehouse.Inventory(envelope.Owner)
	if !ok {
		return ledger.NewInventory(envelope.Owner), nil
	}
	return inv, nil
}

// Warehouse exposes the underlying ledger for sibling components
// (checkpoint, deposits) that must mutate it under the same lock
// discipline.
func (s *Service) Warehouse() *ledger.Warehouse { return s.warehouse }

// Books exposes the underlying order book manager.
func (s *Service) Books() *book.OrderBookManager { return s.books }

// Lock/Unlock/RLock/RUnlock let sibling components join the same critical
// section rather than each holding their own lock, preserving the single-lock design.
func (s *Service) Lock()    { s.mu.Lock() }
func (s *Service) Unlock()  { s.mu.Unlock() }
func (s *Service) RLock()   { s.mu.RLock() }
func (s *Service) RUnlock() { s.mu.RUnlock() }

// checkSolvency mirrors orderhere.rs's non-taker check: a bid must be
// covered by net USDC at the order's notional, an ask by net ETH at its
// quantity.
func (s *Service) checkSolvency(owner common.Address, isBid bool, qty num.U256, price book.Price) error {
	inv, _ := s.warehouse.Inventory(owner)
	if inv == nil {
		inv = ledger.NewInventory(owner)
	}

	if isBid {
		notional, ok := qty.CheckedMul(price.Magnitude)
		if !ok {
			return New(KindInvalidOrderParams)
		}
		if notional.Cmp(inv.NetUSDC()) > 0 {
			return Insufficient("USDC")
		}
		return nil
	}

	if qty.Cmp(inv.NetETH()) > 0 {
		return Insufficient("ETH")
	}
	return nil
}
