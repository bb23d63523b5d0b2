// Package num provides the fixed-width 256-bit unsigned arithmetic used for
// prices, quantities, and balances throughout the enclave. Values never go
// negative at this layer; signed deltas are handled by callers.
package num

import "github.com/holiman/uint256"

// U256 wraps uint256.Int with the specific operation set the ledger and
// matching engine need: add, saturating-sub, checked-mul, compare, and a
// fixed 32-byte little-endian encoding for checkpoint serialization.
type U256 struct {
	v uint256.Int
}

// Zero returns the zero value.
func Zero() U256 { return U256{} }

// FromUint64 builds a U256 from a uint64.
func FromUint64(x uint64) U256 {
	var u U256
	u.v.SetUint64(x)
	return u
}

// FromString builds a U256 from a decimal string. Returns false on parse
// error or on a value that does not fit in 256 bits.
func FromString(s string) (U256, bool) {
	var u U256
	_, ok := u.v.SetString(s)
	return u, ok == nil
}

// FromBytes32LE decodes a 32-byte little-endian encoding, as used by the
// checkpoint's fixed-width inventory record.
func FromBytes32LE(b [32]byte) U256 {
	var u U256
	u.v.SetBytes(reverse(b[:]))
	return u
}

func reverse(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		out[len(b)-1-i] = c
	}
	return out
}

// String renders the decimal representation.
func (u U256) String() string { return u.v.Dec() }

// IsZero reports whether the value is zero.
func (u U256) IsZero() bool { return u.v.IsZero() }

// Cmp compares u to other: -1, 0, 1.
func (u U256) Cmp(other U256) int { return u.v.Cmp(&other.v) }

// Add returns u + other. Callers are responsible for ensuring the upstream
// qty cap keeps this from overflowing; Add does not saturate or check.
func (u U256) Add(other U256) U256 {
	var out U256
	out.v.Add(&u.v, &other.v)
	return out
}

// SatSub returns u - other, saturating at zero instead of wrapping.
func (u U256) SatSub(other U256) U256 {
	var out U256
	if u.v.Lt(&other.v) {
		return out // zero
	}
	out.v.Sub(&u.v, &other.v)
	return out
}

// Sub returns u - other without saturating. Panics-free: if other > u the
// result wraps per uint256 semantics. Only used where the caller has
// already established other <= u (e.g. removing a known-reserved liability).
func (u U256) Sub(other U256) U256 {
	var out U256
	out.v.Sub(&u.v, &other.v)
	return out
}

// CheckedMul returns u * other and a bool that is true when the product
// fits in 256 bits and false on overflow. This is the enforcement point for
// "qty x price must fit 256 bits", exercised by upstream order admission
// before a value ever reaches the ledger.
func (u U256) CheckedMul(other U256) (U256, bool) {
	var out U256
	_, overflow := out.v.MulOverflow(&u.v, &other.v)
	return out, !overflow
}

// LittleEndianBytes32 encodes u as a fixed 32-byte little-endian array, as
// required by the checkpoint's inventory record layout.
func (u U256) LittleEndianBytes32() [32]byte {
	be := u.v.Bytes32() // big-endian, left-padded
	var le [32]byte
	for i, b := range be {
		le[31-i] = b
	}
	return le
}

// Uint64 returns the low 64 bits, truncating. Used only where a caller has
// already bounded the value (e.g. deposit amounts arriving from chain logs
// that are known to fit in a uint64).
func (u U256) Uint64() uint64 { return u.v.Uint64() }
