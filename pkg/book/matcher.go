package book

import "github.com/uhyunpark/hyperclob/pkg/num"

// FilledOrder records a resting order fully cleared by a match: its id,
// the price it executed at, and the quantity it traded (always its whole
// resting quantity, since it is fully filled).
type FilledOrder struct {
	OID OrderId
	Price num.U256
	Qty num.U256
}

// PartialFill records the one resting order, if any, that absorbed the
// remainder of an incoming order without being fully cleared.
// RemainingQty is what is left resting at oid after this match.
type PartialFill struct {
	OID OrderId
	Price num.U256
	ExecutedQty num.U256
	RemainingQty num.U256
}

// MatchResult is the return shape of MatchOrder:
//
//	match_order(book_id, incoming_price, incoming_qty, is_bid) ->
//	 (volume_quote, qty_filled, new_resting_oid?, filled_orders, partial_fill?)
//
// This carries a richer tuple than a flat list of order IDs, so callers
// can distinguish fully-filled orders from the one partially-filled order
// left resting.
type MatchResult struct {
	Volume num.U256
	QtyFilled num.U256
	NewRestingOID *OrderId
	FilledOrders []FilledOrder
	PartialFill *PartialFill
}

// MatchOrder crosses an incoming order against the opposite side of book
// bid, then rests any residual qty as a new order at incomingPrice.
// Walks crossed levels price by price, consuming each level's FIFO queue
// head-first until either the incoming order is exhausted or the best
// opposing price no longer crosses.
func (m *OrderBookManager) MatchOrder(bid BookId, incomingPrice Price, incomingQty num.U256) (MatchResult, error) {
	if _, ok := m.books[bid]; !ok {
		return MatchResult{}, ErrUnknownBook
	}

	remaining := incomingQty
	result := MatchResult{Volume: num.Zero(), QtyFilled: num.Zero()}
	oppositeIsBid := !incomingPrice.IsBid

	for !remaining.IsZero() {
		var levelPrice num.U256
		var ok bool
		if oppositeIsBid {
			levelPrice, ok = m.BestBid(bid)
		} else {
			levelPrice, ok = m.BestAsk(bid)
		}
		if !ok {
			break // no more resting liquidity on the opposite side
		}

		level := Price{Magnitude: levelPrice, IsBid: oppositeIsBid}
		if !level.Crosses(incomingPrice.Magnitude, incomingPrice.IsBid) {
			break // best remaining level no longer crosses
		}

		orders := m.ordersAtLevel(bid, levelPrice, oppositeIsBid)
		for _, oid := range orders {
			if remaining.IsZero() {
				break
			}
			orderQty, ok := m.QtyOf(oid)
			if !ok {
				continue
			}

			if orderQty.Cmp(remaining) <= 0 {
				// order qty <= remaining_qty: execute this order fully.
				if err := m.ExecuteOrder(bid, oid, orderQty); err != nil {
					return MatchResult{}, err
				}
				result.Volume = result.Volume.Add(mulAtPrice(orderQty, levelPrice))
				result.QtyFilled = result.QtyFilled.Add(orderQty)
				remaining = remaining.SatSub(orderQty)
				result.FilledOrders = append(result.FilledOrders, FilledOrder{OID: oid, Price: levelPrice, Qty: orderQty})
				continue
			}

			// order qty > remaining_qty: this order absorbs the rest and
			// is reported as the partial fill.
			executed := remaining
			if err := m.ExecuteOrder(bid, oid, executed); err != nil {
				return MatchResult{}, err
			}
			result.Volume = result.Volume.Add(mulAtPrice(executed, levelPrice))
			result.QtyFilled = result.QtyFilled.Add(executed)
			result.PartialFill = &PartialFill{
				OID: oid,
				Price: levelPrice,
				ExecutedQty: executed,
				RemainingQty: orderQty.SatSub(executed),
			}
			remaining = num.Zero()
		}
	}

	if !remaining.IsZero() {
		oid, err := m.NextOrderId()
		if err != nil {
			return MatchResult{}, err
		}
		if err := m.AddOrder(bid, oid, remaining, incomingPrice); err != nil {
			return MatchResult{}, err
		}
		result.NewRestingOID = &oid
	}

	return result, nil
}

// mulAtPrice multiplies a qty by a price magnitude. Overflow is guarded
// upstream by admission;
// by the time an order reaches the matching engine it has already been
// accepted, so the product is trusted here.
func mulAtPrice(qty, price num.U256) num.U256 {
	product, _ := qty.CheckedMul(price)
	return product
}
