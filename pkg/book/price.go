// Package book implements the single-symbol order book and the matching
// engine: price levels with per-level FIFO queues, O(log n) insertion
// via a heap, O(1) best-price inspection, and the crossing walk that
// produces fills.
package book

import "github.com/uhyunpark/hyperclob/pkg/num"

// BookId identifies an order book. This version registers exactly one
// (BookId(0)) but the type is carried rather than hardcoded, since
// multiple symbols are a natural future extension.
type BookId uint32

// GlobalBook is the single book this version matches against.
const GlobalBook BookId = 0

// OrderId identifies a resting or historical order. A 32-bit monotonic
// counter - callers must guard against saturation by refusing new
// orders once exhausted.
type OrderId uint32

// Price is stored as (absolute magnitude, side). Comparisons
// within a side use the raw magnitude.
type Price struct {
	Magnitude num.U256
	IsBid bool
}

// NewPrice constructs a Price from a magnitude and side.
func NewPrice(magnitude num.U256, isBid bool) Price {
	return Price{Magnitude: magnitude, IsBid: isBid}
}

// Crosses reports whether a resting level at this price crosses an
// incoming order at incomingPrice for incomingIsBid: a level crosses iff
// level.price <= incoming.price (incoming is bid, level is an ask) or
// level.price >= incoming.price (incoming is ask, level is a bid).
func (p Price) Crosses(incoming num.U256, incomingIsBid bool) bool {
	if incomingIsBid {
		return p.Magnitude.Cmp(incoming) <= 0
	}
	return p.Magnitude.Cmp(incoming) >= 0
}
