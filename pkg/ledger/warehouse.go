package ledger

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/uhyunpark/hyperclob/pkg/book"
	"github.com/uhyunpark/hyperclob/pkg/num"
)

// ErrOrderNotOwned signals an order id present in the book but missing
// from the owning inventory's own order set; callers are guaranteed by
// the matching engine to only pass oids that were actually admitted, so
// this indicates a bookkeeping bug rather than a caller error.
var ErrOrderNotOwned = errors.New("order not owned by any inventory")

// SettlementOrder is the outbox entry type; defined in settlement.go
// and referenced here only by the outbox append/clear operations.
type SettlementOrder interface{}

// Warehouse is the inventory ledger aggregate. It holds no reference
// back into the order book - only owner_by_order, a flat
// OrderId -> Address map - cyclic-structure avoidance.
//
// Warehouse carries no lock of its own. The enclave service layer holds a
// single RW-lock over Warehouse and book.OrderBookManager together.
type Warehouse struct {
	inventories map[common.Address]*Inventory
	ownerByOrder map[book.OrderId]common.Address
	settlementOrders []SettlementOrder

	DepositContractAddress string
	CheckpointerAddress string
	RPCAPIKey string
}

// NewWarehouse returns an empty ledger.
func NewWarehouse() *Warehouse {
	return &Warehouse{
		inventories: make(map[common.Address]*Inventory),
		ownerByOrder: make(map[book.OrderId]common.Address),
	}
}

// inventoryFor returns the inventory for address, creating a zeroed one on
// first reference (mirrors Rust's entry.or_default).
func (w *Warehouse) inventoryFor(address common.Address) *Inventory {
	inv, ok := w.inventories[address]
	if !ok {
		inv = NewInventory(address)
		w.inventories[address] = inv
	}
	return inv
}

// Inventory returns the inventory for address without creating one; used
// by get-inventory and by solvency checks ahead of order admission.
func (w *Warehouse) Inventory(address common.Address) (*Inventory, bool) {
	inv, ok := w.inventories[address]
	return inv, ok
}

// IsTaker reports whether address trades on margin via the external
// settlement path. Addresses with no inventory on file
// default to false.
func (w *Warehouse) IsTaker(address common.Address) bool {
	inv, ok := w.inventories[address]
	if !ok {
		return false
	}
	return inv.IsTaker
}

// OwnerOf resolves an OrderId to its owning address, for cancel/modify
// ownership checks.
func (w *Warehouse) OwnerOf(oid book.OrderId) (common.Address, bool) {
	addr, ok := w.ownerByOrder[oid]
	return addr, ok
}

// AddOrder reserves liabilities for a new resting order and records its
// owner. Bids reserve usdc_liabilities += qty*price; asks reserve
// eth_liabilities += qty.
func (w *Warehouse) AddOrder(oid book.OrderId, address common.Address, qty num.U256, price book.Price) *Inventory {
	inv := w.inventoryFor(address)
	w.ownerByOrder[oid] = address

	if price.IsBid {
		cost, _ := qty.CheckedMul(price.Magnitude)
		inv.UsdcLiabilities = inv.UsdcLiabilities.Add(cost)
	} else {
		inv.EthLiabilities = inv.EthLiabilities.Add(qty)
	}
	return inv
}

// RemoveBid releases a bid's reserved usdc_liabilities without touching
// balances - used for plain cancellation. Does not validate ownership;
// callers must have already authorized the request.
func (w *Warehouse) RemoveBid(oid book.OrderId, qty num.U256, price book.Price) (*Inventory, error) {
	address, ok := w.ownerByOrder[oid]
	if !ok {
		return nil, ErrOrderNotOwned
	}
	delete(w.ownerByOrder, oid)

	inv := w.inventoryFor(address)
	cost, _ := qty.CheckedMul(price.Magnitude)
	inv.UsdcLiabilities = inv.UsdcLiabilities.SatSub(cost)
	return inv, nil
}

// RemoveAsk releases a ask's reserved eth_liabilities without touching
// balances.
func (w *Warehouse) RemoveAsk(oid book.OrderId, qty num.U256) (*Inventory, error) {
	address, ok := w.ownerByOrder[oid]
	if !ok {
		return nil, ErrOrderNotOwned
	}
	delete(w.ownerByOrder, oid)

	inv := w.inventoryFor(address)
	inv.EthLiabilities = inv.EthLiabilities.SatSub(qty)
	return inv, nil
}

// FillBid settles a fully-executed bid: releases the usdc liability,
// credits ETH, debits USDC at the traded price.
func (w *Warehouse) FillBid(oid book.OrderId, qty num.U256, price book.Price) (*Inventory, error) {
	inv, err := w.RemoveBid(oid, qty, price)
	if err != nil {
		return nil, err
	}
	cost, _ := qty.CheckedMul(price.Magnitude)
	inv.EthBalance = inv.EthBalance.Add(qty)
	inv.UsdcBalance = inv.UsdcBalance.SatSub(cost)
	return inv, nil
}

// FillAsk settles a fully-executed ask: releases the eth liability, debits
// ETH, credits USDC at the traded price.
func (w *Warehouse) FillAsk(oid book.OrderId, qty num.U256, price book.Price) (*Inventory, error) {
	inv, err := w.RemoveAsk(oid, qty)
	if err != nil {
		return nil, err
	}
	cost, _ := qty.CheckedMul(price.Magnitude)
	inv.EthBalance = inv.EthBalance.SatSub(qty)
	inv.UsdcBalance = inv.UsdcBalance.Add(cost)
	return inv, nil
}

// SettleSubmitter applies the submitter-side balance delta for an
// incoming order that just matched: a bid credits ETH and debits USDC
// by the executed amount, an ask debits ETH and credits USDC. Unlike
// FillBid/FillAsk this never touches liabilities or owner_by_order -
// the submitter was never resting, so it has no reservation to release.
func (w *Warehouse) SettleSubmitter(owner common.Address, isBid bool, qtyFilled, volume num.U256) *Inventory {
	inv := w.inventoryFor(owner)
	if isBid {
		inv.EthBalance = inv.EthBalance.Add(qtyFilled)
		inv.UsdcBalance = inv.UsdcBalance.SatSub(volume)
	} else {
		inv.EthBalance = inv.EthBalance.SatSub(qtyFilled)
		inv.UsdcBalance = inv.UsdcBalance.Add(volume)
	}
	return inv
}

// ReplaceOrder releases oid's reservation and re-reserves newOid at its
// new price/qty, re-using the same owner. Time priority resets on the
// book side (book.OrderBookManager.ReplaceOrder); this only moves the
// ledger reservation.
func (w *Warehouse) ReplaceOrder(oid, newOid book.OrderId, oldQty, newQty num.U256, price book.Price) (*Inventory, error) {
	var address common.Address
	var err error
	if price.IsBid {
		var inv *Inventory
		inv, err = w.RemoveBid(oid, oldQty, price)
		if inv != nil {
			address = inv.Address
		}
	} else {
		var inv *Inventory
		inv, err = w.RemoveAsk(oid, oldQty)
		if inv != nil {
			address = inv.Address
		}
	}
	if err != nil {
		return nil, err
	}
	return w.AddOrder(newOid, address, newQty, price), nil
}

// PartiallyFillOrder settles the executed slice of a resting order at
// price and re-reserves the remainder at oid, keeping the same price and
// owner.
func (w *Warehouse) PartiallyFillOrder(oid book.OrderId, executedQty, remainingQty num.U256, price book.Price) error {
	address, ok := w.ownerByOrder[oid]
	if !ok {
		return ErrOrderNotOwned
	}
	inv := w.inventoryFor(address)
	cost, _ := executedQty.CheckedMul(price.Magnitude)
	reserved := executedQty.Add(remainingQty)
	reservedCost, _ := reserved.CheckedMul(price.Magnitude)

	if price.IsBid {
		inv.UsdcLiabilities = inv.UsdcLiabilities.SatSub(reservedCost)
		inv.EthBalance = inv.EthBalance.Add(executedQty)
		inv.UsdcBalance = inv.UsdcBalance.SatSub(cost)
	} else {
		inv.EthLiabilities = inv.EthLiabilities.SatSub(reserved)
		inv.EthBalance = inv.EthBalance.SatSub(executedQty)
		inv.UsdcBalance = inv.UsdcBalance.Add(cost)
	}

	remainingCost, _ := remainingQty.CheckedMul(price.Magnitude)
	if price.IsBid {
		inv.UsdcLiabilities = inv.UsdcLiabilities.Add(remainingCost)
	} else {
		inv.EthLiabilities = inv.EthLiabilities.Add(remainingQty)
	}
	w.ownerByOrder[oid] = address
	return nil
}

// AddSettlementOrder appends order to the outbox that the next checkpoint
// will flush.
func (w *Warehouse) AddSettlementOrder(order SettlementOrder) {
	w.settlementOrders = append(w.settlementOrders, order)
}

// SettlementOrders returns the current outbox contents without clearing
// it.
func (w *Warehouse) SettlementOrders() []SettlementOrder {
	return w.settlementOrders
}

// ClearSettlementOrders empties the outbox; called once the checkpoint
// transaction has been sent without error (its receipt is not awaited).
func (w *Warehouse) ClearSettlementOrders() {
	w.settlementOrders = nil
}

// CreditDeposit adds ethDelta/usdcDelta to address's balances and
// advances its deposit nonce by one, used when gulping confirmed
// on-chain deposits.
func (w *Warehouse) CreditDeposit(address common.Address, ethDelta, usdcDelta num.U256) *Inventory {
	inv := w.inventoryFor(address)
	inv.EthBalance = inv.EthBalance.Add(ethDelta)
	inv.UsdcBalance = inv.UsdcBalance.Add(usdcDelta)
	inv.DepositNonce++
	return inv
}

// DepositNonce returns address's current deposit nonce, 0 if unknown.
func (w *Warehouse) DepositNonce(address common.Address) uint32 {
	inv, ok := w.inventories[address]
	if !ok {
		return 0
	}
	return inv.DepositNonce
}

// OrdersByOwner returns every oid currently reserved for owner. Order is
// not guaranteed; callers needing a stable order should sort.
//
// This scans ownerByOrder rather than keeping a per-owner oid set, unlike
// the qty-keyed orders_by_owner map the original ledger model uses - qty
// is recovered from the book (PriceOf/QtyOf) by the caller instead of
// being carried here. Fine at the expected order-book cardinality; would
// need revisiting if per-owner order counts grow large enough to make an
// O(n) scan over every resting order the hot path.
func (w *Warehouse) OrdersByOwner(owner common.Address) []book.OrderId {
	var out []book.OrderId
	for oid, addr := range w.ownerByOrder {
		if addr == owner {
			out = append(out, oid)
		}
	}
	return out
}

// Inventories returns every known inventory, for checkpoint serialization.
func (w *Warehouse) Inventories() []*Inventory {
	out := make([]*Inventory, 0, len(w.inventories))
	for _, inv := range w.inventories {
		out = append(out, inv)
	}
	return out
}

// RestoreInventory seeds inv into the ledger directly, bypassing the
// normal order-admission bookkeeping. For volume-load hydration at
// startup only; inv.Address must be unique across the restore set.
func (w *Warehouse) RestoreInventory(inv *Inventory) {
	w.inventories[inv.Address] = inv
}
