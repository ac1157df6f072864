// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package cbor

import "math/big"

// ItemType discriminates the value stored in an Item.
type ItemType uint8

// Item types produced by [Reader.Next].
const (
	TypeNone ItemType = iota

	// TypeInt64 is any integer, positive or negative, that fits an int64.
	TypeInt64
	// TypeUint64 is a positive integer greater than math.MaxInt64.
	TypeUint64
	// TypeNegUint64 is a negative integer below math.MinInt64. The Uint
	// field holds the magnitude n and the value represented is -n - 1.
	TypeNegUint64
	// TypeFloat32 is a single-precision float (or a half-precision float
	// widened on decode). The value is in the Float field, widened exactly.
	TypeFloat32
	// TypeFloat64 is a double-precision float in the Float field.
	TypeFloat64
	// TypeBignumPos is a tag 2 big number. Bytes holds the big-endian
	// magnitude as stored.
	TypeBignumPos
	// TypeBignumNeg is a tag 3 big number. Bytes holds the big-endian stored
	// magnitude n; the value represented is -(n + 1). The offset of one is
	// NOT applied to Bytes.
	TypeBignumNeg
	// TypeByteString is an untyped byte string. If sign matters, it is the
	// caller's to supply.
	TypeByteString
	TypeTextString
	// TypeDecimalFraction is a tag 4 [exponent, mantissa] pair representing
	// mantissa * 10^exponent.
	TypeDecimalFraction
	// TypeBigFloat is a tag 5 [exponent, mantissa] pair representing
	// mantissa * 2^exponent.
	TypeBigFloat
	// TypeArray is an array head. Len holds the element count; the elements
	// follow as separate items.
	TypeArray
	// TypeMap is a map head. Len holds the key-value pair count.
	TypeMap
	// TypeTag is a tag head with a number this package does not interpret.
	// TagNum holds the number; the tag content follows as the next item.
	TypeTag
	TypeBool
	TypeNull
	TypeUndefined
)

var itemTypeNames = map[ItemType]string{
	TypeNone:            "none",
	TypeInt64:           "int64",
	TypeUint64:          "uint64",
	TypeNegUint64:       "negative uint64",
	TypeFloat32:         "float32",
	TypeFloat64:         "float64",
	TypeBignumPos:       "positive bignum",
	TypeBignumNeg:       "negative bignum",
	TypeByteString:      "byte string",
	TypeTextString:      "text string",
	TypeDecimalFraction: "decimal fraction",
	TypeBigFloat:        "bigfloat",
	TypeArray:           "array",
	TypeMap:             "map",
	TypeTag:             "tag",
	TypeBool:            "bool",
	TypeNull:            "null",
	TypeUndefined:       "undefined",
}

func (t ItemType) String() string {
	if s, ok := itemTypeNames[t]; ok {
		return s
	}
	return "invalid"
}

// Mantissa is the mantissa of a decimal fraction or bigfloat. Type is one of
// TypeInt64, TypeUint64, TypeBignumPos, or TypeBignumNeg and selects which
// field carries the value, following the same rules as Item.
type Mantissa struct {
	Type  ItemType
	Int   int64
	Uint  uint64
	Bytes []byte
}

// Item is a single decoded CBOR data item. Type selects which fields are
// meaningful; all others are zero. Items are plain values and remain valid
// after further Reader calls, except that Bytes aliases the Reader's input
// buffer and must not be modified.
type Item struct {
	Type ItemType

	// Offset is the byte offset of the item's head in the input.
	Offset int

	Int      int64   // TypeInt64
	Uint     uint64  // TypeUint64; magnitude for TypeNegUint64
	Float    float64 // TypeFloat32 (widened exactly), TypeFloat64
	Bytes    []byte  // strings and bignum magnitudes; aliases the input
	Len      int     // TypeArray element count; TypeMap pair count
	TagNum   uint64  // TypeTag
	Exponent int64   // TypeDecimalFraction, TypeBigFloat
	Mantissa Mantissa
	Bool     bool // TypeBool
}

// BigInt returns the item's value as a new big.Int, with the negative bignum
// offset of one applied. It accepts both native integer and bignum items.
// This is the allocating convenience path; use BigNumBytes to extract into a
// caller-owned buffer instead.
func (item Item) BigInt() (*big.Int, error) {
	switch item.Type {
	case TypeInt64:
		return big.NewInt(item.Int), nil
	case TypeUint64:
		return new(big.Int).SetUint64(item.Uint), nil
	case TypeNegUint64:
		// -(n + 1)
		n := new(big.Int).SetUint64(item.Uint)
		n.Add(n, big.NewInt(1))
		return n.Neg(n), nil
	case TypeBignumPos:
		return new(big.Int).SetBytes(item.Bytes), nil
	case TypeBignumNeg:
		n := new(big.Int).SetBytes(item.Bytes)
		n.Add(n, big.NewInt(1))
		return n.Neg(n), nil
	default:
		return nil, ErrUnexpectedType
	}
}

// BigNumBytes writes the item's magnitude into dst as a minimal big-endian
// big number and reports whether the value is negative. For negative bignums
// the offset of one is applied, so dst must be sized at least one byte longer
// than the stored magnitude to allow for carry. On failure a
// BufferTooSmallError reports the required length and dst is untouched.
func (item Item) BigNumBytes(dst []byte) (mag []byte, negative bool, err error) {
	switch item.Type {
	case TypeInt64:
		if item.Int >= 0 {
			mag, err = Uint64ToBigNum(uint64(item.Int), dst)
			return mag, false, err
		}
		mag, err = Uint64ToBigNum(negativeMagnitude(item.Int), dst)
		return mag, true, err
	case TypeUint64:
		mag, err = Uint64ToBigNum(item.Uint, dst)
		return mag, false, err
	case TypeNegUint64:
		// value is -(n + 1), so the magnitude is n + 1 which may carry past
		// 64 bits when n is the maximum uint64
		if item.Uint == maxUint64 {
			if len(dst) < 9 {
				return nil, false, BufferTooSmallError{Required: 9}
			}
			dst[0] = 0x01
			for i := 1; i < 9; i++ {
				dst[i] = 0x00
			}
			return dst[:9], true, nil
		}
		mag, err = Uint64ToBigNum(item.Uint+1, dst)
		return mag, true, err
	case TypeBignumPos:
		b := trimBigNum(item.Bytes)
		if len(dst) < len(b) {
			return nil, false, BufferTooSmallError{Required: len(b)}
		}
		return dst[:copy(dst, b)], false, nil
	case TypeBignumNeg:
		mag, err = BigNumAddOne(trimBigNum(item.Bytes), dst)
		return mag, true, err
	default:
		return nil, false, ErrUnexpectedType
	}
}
