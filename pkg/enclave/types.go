package enclave

import (
	"github.com/uhyunpark/hyperclob/pkg/book"
	"github.com/uhyunpark/hyperclob/pkg/num"
)

// OrderResult is the send-order response shape:
// (executed_qty, volume, new_oid?).
type OrderResult struct {
	ExecutedQty num.U256
	Volume num.U256
	NewRestingOID *book.OrderId
}

// OrderView is a read-only projection of one resting order, for
// get-orders responses.
type OrderView struct {
	OID book.OrderId
	Price num.U256
	IsBid bool
	Qty num.U256
}

// parsePrice parses a decimal magnitude string into a book.Price carrying
// isBid.
func parsePrice(s string, isBid bool) (book.Price, bool) {
	magnitude, ok := num.FromString(s)
	if !ok {
		return book.Price{}, false
	}
	return book.NewPrice(magnitude, isBid), true
}

// parseQty parses a decimal quantity string into num.U256.
func parseQty(s string) (num.U256, bool) {
	return num.FromString(s)
}
