// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package cbor

import (
	"errors"
	"math"
)

// Convert is a bitmask naming the source item types a numeric conversion is
// willing to convert from. A source type whose bit is not set is rejected
// with ErrUnexpectedType even when the conversion would succeed, so callers
// can bound how much conversion code runs.
type Convert uint

const (
	// ConvertInts enables native int64, uint64, and 65-bit negative sources.
	ConvertInts Convert = 1 << iota
	// ConvertFloats enables float sources, converted by rounding to nearest
	// with ties away from zero.
	ConvertFloats
	// ConvertBignum enables tag 2 and 3 big number sources.
	ConvertBignum
	// ConvertDecimalFraction enables tag 4 sources.
	ConvertDecimalFraction
	// ConvertBigFloat enables tag 5 sources.
	ConvertBigFloat

	// ConvertNone rejects everything; useful as an explicit zero.
	ConvertNone Convert = 0

	// ConvertAll enables every source type.
	ConvertAll = ConvertInts | ConvertFloats | ConvertBignum | ConvertDecimalFraction | ConvertBigFloat
)

// Exact float64 bounds for integer ranges. The maximum int64/uint64 are not
// representable as float64, so the upper comparisons are exclusive against
// the next power of two, which is.
const (
	int64MinFloat    = -9223372036854775808.0 // -2^63, exact
	int64MaxBound    = 9223372036854775808.0  // 2^63
	uint64MaxBound   = 18446744073709551616.0 // 2^64
	uint64MaxNegated = -18446744073709551616.0
)

// Int64 converts the item to an int64 under the given conversion set.
//
// Native integer and float items convert directly. When the item is a big
// number, decimal fraction, or bigfloat, conversion goes through the big
// number and exponentiation routines; that second tier is attempted only when
// the first rejects the item's type, never to recover from a range or sign
// error.
func (item Item) Int64(conv Convert) (int64, error) {
	v, err := basicInt64(item, conv)
	if !errors.Is(err, ErrUnexpectedType) {
		return v, err
	}
	return extendedInt64(item, conv)
}

// Uint64 converts the item to a uint64 under the given conversion set.
// Negative sources of any type fail with ErrSignConversion.
func (item Item) Uint64(conv Convert) (uint64, error) {
	v, err := basicUint64(item, conv)
	if !errors.Is(err, ErrUnexpectedType) {
		return v, err
	}
	return extendedUint64(item, conv)
}

// Float64 converts the item to a float64 under the given conversion set.
// Integer sources above 2^53 lose precision; big numbers beyond float64
// range saturate to infinity.
func (item Item) Float64(conv Convert) (float64, error) {
	v, err := basicFloat64(item, conv)
	if !errors.Is(err, ErrUnexpectedType) {
		return v, err
	}
	return extendedFloat64(item, conv)
}

func basicInt64(item Item, conv Convert) (int64, error) {
	switch item.Type {
	case TypeInt64:
		if conv&ConvertInts == 0 {
			return 0, ErrUnexpectedType
		}
		return item.Int, nil
	case TypeUint64:
		if conv&ConvertInts == 0 {
			return 0, ErrUnexpectedType
		}
		if item.Uint < math.MaxInt64 {
			return int64(item.Uint), nil
		}
		return 0, ErrConversionRange
	case TypeNegUint64:
		if conv&ConvertInts == 0 {
			return 0, ErrUnexpectedType
		}
		// -(n + 1) with n > MaxInt64 never fits
		return 0, ErrConversionRange
	case TypeFloat32, TypeFloat64:
		if conv&ConvertFloats == 0 {
			return 0, ErrUnexpectedType
		}
		return float64ToInt64(item.Float)
	default:
		return 0, ErrUnexpectedType
	}
}

func basicUint64(item Item, conv Convert) (uint64, error) {
	switch item.Type {
	case TypeInt64:
		if conv&ConvertInts == 0 {
			return 0, ErrUnexpectedType
		}
		if item.Int < 0 {
			return 0, ErrSignConversion
		}
		return uint64(item.Int), nil
	case TypeUint64:
		if conv&ConvertInts == 0 {
			return 0, ErrUnexpectedType
		}
		return item.Uint, nil
	case TypeNegUint64:
		if conv&ConvertInts == 0 {
			return 0, ErrUnexpectedType
		}
		return 0, ErrSignConversion
	case TypeFloat32, TypeFloat64:
		if conv&ConvertFloats == 0 {
			return 0, ErrUnexpectedType
		}
		return float64ToUint64(item.Float)
	default:
		return 0, ErrUnexpectedType
	}
}

func basicFloat64(item Item, conv Convert) (float64, error) {
	switch item.Type {
	case TypeInt64:
		if conv&ConvertInts == 0 {
			return 0, ErrUnexpectedType
		}
		return float64(item.Int), nil
	case TypeUint64:
		if conv&ConvertInts == 0 {
			return 0, ErrUnexpectedType
		}
		return float64(item.Uint), nil
	case TypeNegUint64:
		if conv&ConvertInts == 0 {
			return 0, ErrUnexpectedType
		}
		// -(n + 1); n+1 overflows uint64 only at the maximum magnitude,
		// whose exact value happens to be a representable float64
		if item.Uint == maxUint64 {
			return uint64MaxNegated, nil
		}
		return -float64(item.Uint) - 1, nil
	case TypeFloat32, TypeFloat64:
		if conv&ConvertFloats == 0 {
			return 0, ErrUnexpectedType
		}
		return item.Float, nil
	default:
		return 0, ErrUnexpectedType
	}
}

func extendedInt64(item Item, conv Convert) (int64, error) {
	switch item.Type {
	case TypeBignumPos:
		if conv&ConvertBignum == 0 {
			return 0, ErrUnexpectedType
		}
		n, err := BigNumToUint64(item.Bytes, math.MaxInt64)
		if err != nil {
			return 0, err
		}
		return int64(n), nil
	case TypeBignumNeg:
		if conv&ConvertBignum == 0 {
			return 0, ErrUnexpectedType
		}
		// value is -(n + 1), in range iff n <= MaxInt64
		n, err := BigNumToUint64(item.Bytes, math.MaxInt64)
		if err != nil {
			return 0, err
		}
		return -int64(n) - 1, nil
	case TypeDecimalFraction:
		if conv&ConvertDecimalFraction == 0 {
			return 0, ErrUnexpectedType
		}
		return expMantInt64(item, base10)
	case TypeBigFloat:
		if conv&ConvertBigFloat == 0 {
			return 0, ErrUnexpectedType
		}
		return expMantInt64(item, base2)
	default:
		return 0, ErrUnexpectedType
	}
}

func extendedUint64(item Item, conv Convert) (uint64, error) {
	switch item.Type {
	case TypeBignumPos:
		if conv&ConvertBignum == 0 {
			return 0, ErrUnexpectedType
		}
		return BigNumToUint64(item.Bytes, math.MaxUint64)
	case TypeBignumNeg:
		if conv&ConvertBignum == 0 {
			return 0, ErrUnexpectedType
		}
		return 0, ErrSignConversion
	case TypeDecimalFraction:
		if conv&ConvertDecimalFraction == 0 {
			return 0, ErrUnexpectedType
		}
		return expMantUint64(item, base10)
	case TypeBigFloat:
		if conv&ConvertBigFloat == 0 {
			return 0, ErrUnexpectedType
		}
		return expMantUint64(item, base2)
	default:
		return 0, ErrUnexpectedType
	}
}

func extendedFloat64(item Item, conv Convert) (float64, error) {
	switch item.Type {
	case TypeBignumPos:
		if conv&ConvertBignum == 0 {
			return 0, ErrUnexpectedType
		}
		return BigNumToFloat64(item.Bytes), nil
	case TypeBignumNeg:
		if conv&ConvertBignum == 0 {
			return 0, ErrUnexpectedType
		}
		return -1 - BigNumToFloat64(item.Bytes), nil
	case TypeDecimalFraction:
		if conv&ConvertDecimalFraction == 0 {
			return 0, ErrUnexpectedType
		}
		return expMantFloat64(item, base10)
	case TypeBigFloat:
		if conv&ConvertBigFloat == 0 {
			return 0, ErrUnexpectedType
		}
		return expMantFloat64(item, base2)
	default:
		return 0, ErrUnexpectedType
	}
}

// float64ToInt64 rounds to the nearest integer with ties away from zero. NaN
// is a float exception; out-of-range results, including infinities, are range
// errors.
func float64ToInt64(f float64) (int64, error) {
	if math.IsNaN(f) {
		return 0, ErrFloatException
	}
	f = math.Round(f)
	if f >= int64MinFloat && f < int64MaxBound {
		return int64(f), nil
	}
	return 0, ErrConversionRange
}

func float64ToUint64(f float64) (uint64, error) {
	if math.IsNaN(f) {
		return 0, ErrFloatException
	}
	f = math.Round(f)
	if f < 0 {
		return 0, ErrSignConversion
	}
	if f < uint64MaxBound {
		return uint64(f), nil
	}
	return 0, ErrConversionRange
}

// ReadInt64 decodes the next item and converts it to an int64. Errors latch
// on the Reader.
func (r *Reader) ReadInt64(conv Convert) (int64, error) {
	if r.err != nil {
		return 0, r.err
	}
	item, err := r.Next()
	if err != nil {
		return 0, err
	}
	v, err := item.Int64(conv)
	if err != nil {
		r.err = err
		return 0, err
	}
	return v, nil
}

// ReadUint64 decodes the next item and converts it to a uint64. Errors latch
// on the Reader.
func (r *Reader) ReadUint64(conv Convert) (uint64, error) {
	if r.err != nil {
		return 0, r.err
	}
	item, err := r.Next()
	if err != nil {
		return 0, err
	}
	v, err := item.Uint64(conv)
	if err != nil {
		r.err = err
		return 0, err
	}
	return v, nil
}

// ReadFloat64 decodes the next item and converts it to a float64. Errors
// latch on the Reader.
func (r *Reader) ReadFloat64(conv Convert) (float64, error) {
	if r.err != nil {
		return 0, r.err
	}
	item, err := r.Next()
	if err != nil {
		return 0, err
	}
	v, err := item.Float64(conv)
	if err != nil {
		r.err = err
		return 0, err
	}
	return v, nil
}
