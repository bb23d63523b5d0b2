package book

import (
	"container/heap"
	"errors"

	"github.com/uhyunpark/hyperclob/pkg/num"
)

// ErrOrderNotFound is returned when an OrderId has no entry in oid_map.
var ErrOrderNotFound = errors.New("order not found")

// ErrUnknownBook is returned for an unregistered BookId.
var ErrUnknownBook = errors.New("unknown book")

// ErrOidSpaceExhausted guards the 32-bit oid_map counter against overflow.
var ErrOidSpaceExhausted = errors.New("order id space exhausted")

// book holds one side-pair of price levels for a single BookId, using
// heap-based best-price tracking generalized from int64 price/qty to
// num.U256 and from a package-level singleton to a per-BookId instance
// managed by OrderBookManager.
type book struct {
	bidHeap MaxPriceHeap
	askHeap MinPriceHeap

	bidLevels map[num.U256]levelID // price magnitude -> level
	askLevels map[num.U256]levelID

	levelPool map[levelID]*PriceLevel
	nextLevel levelID
}

func newBook() *book {
	return &book{
		bidLevels: make(map[num.U256]levelID),
		askLevels: make(map[num.U256]levelID),
		levelPool: make(map[levelID]*PriceLevel),
	}
}

// OrderBookManager owns all order books, keyed by BookId. It holds only
// OrderIds, never Inventory references - the Warehouse <-> OrderBook
// back-pointer warns against is avoided entirely here.
type OrderBookManager struct {
	books map[BookId]*book
	oidMap map[OrderId]oidEntry
	nextID uint64
}

// NewOrderBookManager constructs a manager with no books registered yet.
func NewOrderBookManager() *OrderBookManager {
	return &OrderBookManager{
		books: make(map[BookId]*book),
		oidMap: make(map[OrderId]oidEntry),
	}
}

// RegisterBook makes id available for orders. This version only ever
// registers GlobalBook, but the method is generic.
func (m *OrderBookManager) RegisterBook(id BookId) {
	if _, ok := m.books[id]; ok {
		return
	}
	m.books[id] = newBook()
}

// NextOrderId allocates the next OrderId, failing closed at saturation.
func (m *OrderBookManager) NextOrderId() (OrderId, error) {
	if m.nextID >= (1<<32)-1 {
		return 0, ErrOidSpaceExhausted
	}
	m.nextID++
	return OrderId(m.nextID), nil
}

func (m *OrderBookManager) levelsFor(b *book, isBid bool) map[num.U256]levelID {
	if isBid {
		return b.bidLevels
	}
	return b.askLevels
}

// AddOrder places a new resting order: locates or creates the price level,
// appends the OrderId to its FIFO tail, and increments level size.
func (m *OrderBookManager) AddOrder(bid BookId, oid OrderId, qty num.U256, price Price) error {
	b, ok := m.books[bid]
	if !ok {
		return ErrUnknownBook
	}

	levels := m.levelsFor(b, price.IsBid)
	lid, exists := levels[price.Magnitude]
	if !exists {
		lid = b.nextLevel
		b.nextLevel++
		b.levelPool[lid] = &PriceLevel{ID: lid, Price: price.Magnitude}
		levels[price.Magnitude] = lid
		if price.IsBid {
			heap.Push(&b.bidHeap, price.Magnitude)
		} else {
			heap.Push(&b.askHeap, price.Magnitude)
		}
	}

	level := b.levelPool[lid]
	level.Orders = append(level.Orders, oid)
	level.Size = level.Size.Add(qty)

	m.oidMap[oid] = oidEntry{level: lid, qty: qty, isBid: price.IsBid}
	return nil
}

// ExecuteOrder decrements a resting order's qty by executed, removing it
// from the FIFO head and dropping it from oid_map once it reaches zero; the
// level is reaped once its size reaches zero.
func (m *OrderBookManager) ExecuteOrder(bid BookId, oid OrderId, executed num.U256) error {
	b, ok := m.books[bid]
	if !ok {
		return ErrUnknownBook
	}
	entry, ok := m.oidMap[oid]
	if !ok {
		return ErrOrderNotFound
	}
	level := b.levelPool[entry.level]

	entry.qty = entry.qty.SatSub(executed)
	level.Size = level.Size.SatSub(executed)

	if entry.qty.IsZero() {
		m.popFIFOHead(level, oid)
		delete(m.oidMap, oid)
	} else {
		m.oidMap[oid] = entry
	}

	if level.Size.IsZero() {
		m.dropLevel(b, level, entry.isBid)
	}
	return nil
}

func (m *OrderBookManager) popFIFOHead(level *PriceLevel, oid OrderId) {
	for i, id := range level.Orders {
		if id == oid {
			level.Orders = append(level.Orders[:i], level.Orders[i+1:]...)
			return
		}
	}
}

func (m *OrderBookManager) dropLevel(b *book, level *PriceLevel, isBid bool) {
	levels := m.levelsFor(b, isBid)
	delete(levels, level.Price)
	delete(b.levelPool, level.ID)
	if isBid {
		removePriceFromHeap(&b.bidHeap, level.Price)
	} else {
		removePriceFromHeap(&b.askHeap, level.Price)
	}
}

func removePriceFromHeap(h heap.Interface, price num.U256) {
	switch typed := h.(type) {
	case *MaxPriceHeap:
		for i, p := range *typed {
			if p == price {
				heap.Remove(typed, i)
				return
			}
		}
	case *MinPriceHeap:
		for i, p := range *typed {
			if p == price {
				heap.Remove(typed, i)
				return
			}
		}
	}
}

// RemoveOrder fully cancels a resting order.
func (m *OrderBookManager) RemoveOrder(bid BookId, oid OrderId) error {
	b, ok := m.books[bid]
	if !ok {
		return ErrUnknownBook
	}
	entry, ok := m.oidMap[oid]
	if !ok {
		return ErrOrderNotFound
	}
	level := b.levelPool[entry.level]
	level.Size = level.Size.SatSub(entry.qty)
	m.popFIFOHead(level, oid)
	delete(m.oidMap, oid)

	if level.Size.IsZero() {
		m.dropLevel(b, level, entry.isBid)
	}
	return nil
}

// ReplaceOrder cancels oid and inserts newOid at the tail of its new price
// level - time priority resets on modify, intentionally.
func (m *OrderBookManager) ReplaceOrder(bid BookId, oid, newOid OrderId, newQty num.U256, price Price) error {
	if err := m.RemoveOrder(bid, oid); err != nil {
		return err
	}
	return m.AddOrder(bid, newOid, newQty, price)
}

// PriceOf returns the resting price and side for oid, used by cancel-order
// to resolve OrderId -> level -> price before the ownership check.
func (m *OrderBookManager) PriceOf(oid OrderId) (Price, bool) {
	entry, ok := m.oidMap[oid]
	if !ok {
		return Price{}, false
	}
	for _, b := range m.books {
		if level, ok := b.levelPool[entry.level]; ok {
			return Price{Magnitude: level.Price, IsBid: entry.isBid}, true
		}
	}
	return Price{}, false
}

// QtyOf returns the remaining qty of a resting order.
func (m *OrderBookManager) QtyOf(oid OrderId) (num.U256, bool) {
	entry, ok := m.oidMap[oid]
	if !ok {
		return num.Zero(), false
	}
	return entry.qty, true
}

// BestBid returns the highest resting bid price, if any.
func (m *OrderBookManager) BestBid(bid BookId) (num.U256, bool) {
	b, ok := m.books[bid]
	if !ok {
		return num.Zero(), false
	}
	return b.bidHeap.Peek()
}

// BestAsk returns the lowest resting ask price, if any.
func (m *OrderBookManager) BestAsk(bid BookId) (num.U256, bool) {
	b, ok := m.books[bid]
	if !ok {
		return num.Zero(), false
	}
	return b.askHeap.Peek()
}

// LevelView is a read-only projection of one price level, for API
// responses.
type LevelView struct {
	Price num.U256
	Size num.U256
}

// BidLevels returns resting bid levels best-price-first.
func (m *OrderBookManager) BidLevels(bid BookId) []LevelView {
	b, ok := m.books[bid]
	if !ok {
		return nil
	}
	return sortedLevels(b.levelPool, b.bidLevels, true)
}

// AskLevels returns resting ask levels best-price-first.
func (m *OrderBookManager) AskLevels(bid BookId) []LevelView {
	b, ok := m.books[bid]
	if !ok {
		return nil
	}
	return sortedLevels(b.levelPool, b.askLevels, false)
}

func sortedLevels(pool map[levelID]*PriceLevel, index map[num.U256]levelID, descending bool) []LevelView {
	out := make([]LevelView, 0, len(index))
	for price, lid := range index {
		level := pool[lid]
		out = append(out, LevelView{Price: price, Size: level.Size})
	}
	// simple insertion sort - level counts are small and this runs only on
	// read endpoints, never on the matching hot path.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0; j-- {
			less := out[j].Price.Cmp(out[j-1].Price) < 0
			if descending {
				less = out[j].Price.Cmp(out[j-1].Price) > 0
			}
			if less {
				out[j], out[j-1] = out[j-1], out[j]
			} else {
				break
			}
		}
	}
	return out
}

// ordersAtLevel returns the FIFO of OrderIds resting at a given level,
// looked up by price and side. Used by the matching engine to walk a
// crossed level in arrival order.
func (m *OrderBookManager) ordersAtLevel(bid BookId, price num.U256, isBid bool) []OrderId {
	b, ok := m.books[bid]
	if !ok {
		return nil
	}
	levels := m.levelsFor(b, isBid)
	lid, ok := levels[price]
	if !ok {
		return nil
	}
	return append([]OrderId(nil), b.levelPool[lid].Orders...)
}
