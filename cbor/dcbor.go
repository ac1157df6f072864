// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package cbor

import "math"

// NormalizeNumber rewrites a numeric item into its minimal exact
// representation, the classification preferred serialization (dCBOR) uses for
// numbers:
//
//   - whole-number floats within int64 range become TypeInt64
//   - whole-number floats above int64 but within uint64 range become
//     TypeUint64
//   - all other floats, including NaN and infinities, pass through unchanged
//   - native integers pass through unchanged
//   - a 65-bit negative whose value -(magnitude + 1) fits int64 becomes
//     TypeInt64; one with the maximum magnitude becomes the float64
//     -18446744073709551616.0 exactly, the one value whose magnitude cannot
//     be incremented in a uint64; anything between becomes the float64
//     -(magnitude + 1)
//
// Non-numeric items fail with ErrUnexpectedType.
func NormalizeNumber(item Item) (Item, error) {
	switch item.Type {
	case TypeInt64, TypeUint64:
		return item, nil

	case TypeFloat32, TypeFloat64:
		f := item.Float
		if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
			// NaN never equals itself, so it lands here with non-wholes
			return item, nil
		}
		if f >= int64MinFloat && f < int64MaxBound {
			return Item{Type: TypeInt64, Offset: item.Offset, Int: int64(f)}, nil
		}
		// only values above int64 range; a whole float below it must stay a
		// float, and converting one to uint64 is undefined behavior
		if f >= int64MaxBound && f < uint64MaxBound {
			return Item{Type: TypeUint64, Offset: item.Offset, Uint: uint64(f)}, nil
		}
		return item, nil

	case TypeNegUint64:
		if item.Uint < negInt64MinMagnitude {
			// -(n + 1) fits: n at MaxInt64 lands exactly on MinInt64
			return Item{Type: TypeInt64, Offset: item.Offset, Int: -int64(item.Uint) - 1}, nil
		}
		if item.Uint == maxUint64 {
			return Item{Type: TypeFloat64, Offset: item.Offset, Float: uint64MaxNegated}, nil
		}
		// magnitude+1 cannot overflow here and the value cannot fit int64,
		// so float64 is the only exact-width home left
		return Item{Type: TypeFloat64, Offset: item.Offset, Float: -float64(item.Uint + 1)}, nil

	default:
		return Item{}, ErrUnexpectedType
	}
}

// ReadNumber decodes the next item and normalizes it per NormalizeNumber.
// Errors latch on the Reader.
func (r *Reader) ReadNumber() (Item, error) {
	if r.err != nil {
		return Item{}, r.err
	}
	item, err := r.Next()
	if err != nil {
		return Item{}, err
	}
	norm, err := NormalizeNumber(item)
	if err != nil {
		r.err = err
		return Item{}, err
	}
	return norm, nil
}
