package book

import "github.com/uhyunpark/hyperclob/pkg/num"

// MaxPriceHeap implements heap.Interface over price magnitudes for the bid
// side (highest price on top), generalized from int64 to num.U256.
// Use container/heap (Init, Push, Pop, Remove) to manipulate it.
type MaxPriceHeap []num.U256

func (h MaxPriceHeap) Len() int           { return len(h) }
func (h MaxPriceHeap) Less(i, j int) bool { return h[i].Cmp(h[j]) > 0 }
func (h MaxPriceHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *MaxPriceHeap) Push(x interface{}) {
	*h = append(*h, x.(num.U256))
}

func (h *MaxPriceHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// Peek returns the top element without removing it.
func (h MaxPriceHeap) Peek() (num.U256, bool) {
	if len(h) == 0 {
		return num.Zero(), false
	}
	return h[0], true
}

// MinPriceHeap implements heap.Interface over price magnitudes for the ask
// side (lowest price on top).
type MinPriceHeap []num.U256

func (h MinPriceHeap) Len() int           { return len(h) }
func (h MinPriceHeap) Less(i, j int) bool { return h[i].Cmp(h[j]) < 0 }
func (h MinPriceHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *MinPriceHeap) Push(x interface{}) {
	*h = append(*h, x.(num.U256))
}

func (h *MinPriceHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// Peek returns the top element without removing it.
func (h MinPriceHeap) Peek() (num.U256, bool) {
	if len(h) == 0 {
		return num.Zero(), false
	}
	return h[0], true
}
