// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package cbor

import "math"

// ExpMant is a decimal fraction or bigfloat unpacked at full precision: the
// value is Mantissa * base^Exponent, negated when Negative is set. Mantissa
// is a big-endian magnitude with no leading zero bytes.
type ExpMant struct {
	Exponent int64
	Mantissa []byte
	Negative bool
}

// DecimalFractionBigNum unpacks a decimal fraction at full precision. The
// mantissa magnitude is written into dst with the negative big number offset
// of one applied, so dst must allow one byte beyond the stored mantissa
// length for carry.
func (item Item) DecimalFractionBigNum(dst []byte) (ExpMant, error) {
	return item.expMantBigNum(TypeDecimalFraction, dst, true)
}

// DecimalFractionBigNumRaw is DecimalFractionBigNum without the offset of
// one applied to negative mantissas: the returned magnitude n of a negative
// mantissa represents -(n + 1) and the caller must add the one itself. This
// keeps the big number increment code out of the call path.
func (item Item) DecimalFractionBigNumRaw(dst []byte) (ExpMant, error) {
	return item.expMantBigNum(TypeDecimalFraction, dst, false)
}

// BigFloatBigNum unpacks a bigfloat at full precision, with the negative
// mantissa offset of one applied. See DecimalFractionBigNum.
func (item Item) BigFloatBigNum(dst []byte) (ExpMant, error) {
	return item.expMantBigNum(TypeBigFloat, dst, true)
}

// BigFloatBigNumRaw is BigFloatBigNum without the offset of one applied to
// negative mantissas. See DecimalFractionBigNumRaw.
func (item Item) BigFloatBigNumRaw(dst []byte) (ExpMant, error) {
	return item.expMantBigNum(TypeBigFloat, dst, false)
}

func (item Item) expMantBigNum(want ItemType, dst []byte, applyOffset bool) (ExpMant, error) {
	if item.Type != want {
		return ExpMant{}, ErrUnexpectedType
	}
	out := ExpMant{Exponent: item.Exponent}

	var mag []byte
	var err error
	switch m := item.Mantissa; m.Type {
	case TypeInt64:
		if m.Int >= 0 {
			mag, err = Uint64ToBigNum(uint64(m.Int), dst)
			break
		}
		out.Negative = true
		if applyOffset {
			mag, err = Uint64ToBigNum(negativeMagnitude(m.Int), dst)
		} else {
			// stored form: magnitude n represents -(n + 1)
			mag, err = Uint64ToBigNum(negativeMagnitude(m.Int)-1, dst)
		}
	case TypeUint64:
		mag, err = Uint64ToBigNum(m.Uint, dst)
	case TypeBignumPos:
		b := trimBigNum(m.Bytes)
		if len(dst) < len(b) {
			return ExpMant{}, BufferTooSmallError{Required: len(b)}
		}
		mag = dst[:copy(dst, b)]
	case TypeBignumNeg:
		out.Negative = true
		b := trimBigNum(m.Bytes)
		if applyOffset {
			mag, err = BigNumAddOne(b, dst)
			break
		}
		if len(dst) < len(b) {
			return ExpMant{}, BufferTooSmallError{Required: len(b)}
		}
		mag = dst[:copy(dst, b)]
	default:
		return ExpMant{}, ErrBadExpMantissa
	}
	if err != nil {
		return ExpMant{}, err
	}

	out.Mantissa = mag
	return out, nil
}

// expMantInt64 collapses an [exponent, mantissa] item to an int64, routing
// the mantissa through the big number codec when needed. The sign of the
// result always follows the mantissa; the exponent's sign only selects
// between multiplying and dividing.
func expMantInt64(item Item, base expBase) (int64, error) {
	switch m := item.Mantissa; m.Type {
	case TypeInt64:
		return exponentiateSigned(m.Int, item.Exponent, base)
	case TypeUint64:
		mag, err := exponentiate(m.Uint, item.Exponent, base)
		if err != nil {
			return 0, err
		}
		if mag > math.MaxInt64 {
			return 0, ErrConversionRange
		}
		return int64(mag), nil
	case TypeBignumPos:
		n, err := BigNumToUint64(m.Bytes, math.MaxInt64)
		if err != nil {
			return 0, err
		}
		mag, err := exponentiate(n, item.Exponent, base)
		if err != nil {
			return 0, err
		}
		if mag > math.MaxInt64 {
			return 0, ErrConversionRange
		}
		return int64(mag), nil
	case TypeBignumNeg:
		// mantissa is -(n + 1); bounding n at MaxInt64 keeps the magnitude
		// n+1 within the signed range, whose minimum has magnitude 2^63
		n, err := BigNumToUint64(m.Bytes, math.MaxInt64)
		if err != nil {
			return 0, err
		}
		mag, err := exponentiate(n+1, item.Exponent, base)
		if err != nil {
			return 0, err
		}
		if mag > negInt64MinMagnitude {
			return 0, ErrConversionRange
		}
		if mag == negInt64MinMagnitude {
			return math.MinInt64, nil
		}
		return -int64(mag), nil
	default:
		return 0, ErrBadExpMantissa
	}
}

func expMantUint64(item Item, base expBase) (uint64, error) {
	switch m := item.Mantissa; m.Type {
	case TypeInt64:
		return exponentiateUnsigned(m.Int, item.Exponent, base)
	case TypeUint64:
		return exponentiate(m.Uint, item.Exponent, base)
	case TypeBignumPos:
		n, err := BigNumToUint64(m.Bytes, math.MaxUint64)
		if err != nil {
			return 0, err
		}
		return exponentiate(n, item.Exponent, base)
	case TypeBignumNeg:
		return 0, ErrSignConversion
	default:
		return 0, ErrBadExpMantissa
	}
}

func expMantFloat64(item Item, base expBase) (float64, error) {
	var mant float64
	switch m := item.Mantissa; m.Type {
	case TypeInt64:
		mant = float64(m.Int)
	case TypeUint64:
		mant = float64(m.Uint)
	case TypeBignumPos:
		mant = BigNumToFloat64(m.Bytes)
	case TypeBignumNeg:
		mant = -1 - BigNumToFloat64(m.Bytes)
	default:
		return 0, ErrBadExpMantissa
	}

	switch base {
	case base2:
		// Ldexp is exact: bigfloats are binary-scaled
		return scaleByPowerOfTwo(mant, item.Exponent), nil
	default:
		// Small powers of ten are exact float64 values, so dividing by one
		// stays correctly rounded where multiplying by its inexact
		// reciprocal would not (27315 * 10^-2 must come out as 273.15).
		if e := item.Exponent; e < 0 {
			return mant / math.Pow(10, -float64(e)), nil
		}
		return mant * math.Pow(10, float64(item.Exponent)), nil
	}
}

// scaleByPowerOfTwo applies Ldexp with the int64 exponent clamped to a range
// where the result has already saturated to zero or infinity.
func scaleByPowerOfTwo(mant float64, exp int64) float64 {
	const clamp = 1 << 12 // far past float64's exponent range
	if exp > clamp {
		exp = clamp
	}
	if exp < -clamp {
		exp = -clamp
	}
	return math.Ldexp(mant, int(exp))
}
