package book

import "github.com/uhyunpark/hyperclob/pkg/num"

// levelID identifies a PriceLevel within level_pool/level_orders. Distinct
// from OrderId and from the price itself so a level can be looked up by id
// from oid_map without re-deriving its price.
type levelID uint64

// PriceLevel aggregates all resting orders at one price.
// Invariant: Size == sum of qty of all members in Orders.
type PriceLevel struct {
	ID levelID
	Price num.U256
	Size num.U256
	Orders []OrderId // FIFO: index 0 is the head (earliest arrival)
}

// oidEntry is the oid_map value: which level an order rests on, and its
// remaining qty.
type oidEntry struct {
	level levelID
	qty num.U256
	isBid bool
}
