// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package cbor

import "math"

// negInt64MinMagnitude is the magnitude of math.MinInt64. It cannot be
// produced by negating an int64, so the absolute-value paths below
// special-case it instead of relying on two's-complement negation.
const negInt64MinMagnitude = uint64(math.MaxInt64) + 1

// expBase selects the exponent base for decimal fractions (10) and bigfloats
// (2). A closed two-case switch at each use site avoids indirect dispatch.
type expBase int

const (
	base10 expBase = 10
	base2  expBase = 2
)

// exponentiate computes mantissa * base^exponent over uint64 with overflow
// detection. Each multiply (or shift) is preceded by a range check so
// overflow aborts before any wrap-around. A negative exponent divides; if the
// accumulator hits zero with exponent remaining, the value underflowed and is
// reported as ErrConversionRange. A zero mantissa short-circuits to zero for
// any exponent.
func exponentiate(mantissa uint64, exponent int64, base expBase) (uint64, error) {
	if mantissa == 0 {
		return 0, nil
	}

	acc := mantissa
	switch {
	case exponent > 0:
		for i := int64(0); i < exponent; i++ {
			switch base {
			case base10:
				if acc > math.MaxUint64/10 {
					return 0, ErrConversionRange
				}
				acc *= 10
			case base2:
				if acc > math.MaxUint64>>1 {
					return 0, ErrConversionRange
				}
				acc <<= 1
			}
		}
	case exponent < 0:
		for i := int64(0); i < -exponent; i++ {
			switch base {
			case base10:
				acc /= 10
			case base2:
				acc >>= 1
			}
			if acc == 0 {
				// distinguishes "underflowed to zero" from an actual zero
				// mantissa, which returned early above
				return 0, ErrConversionRange
			}
		}
	}
	return acc, nil
}

// exponentiateSigned computes mantissa * base^exponent over int64. The
// mantissa's magnitude runs through the unsigned engine and the sign is
// reapplied afterward, rejecting results whose magnitude exceeds the signed
// range. math.MinInt64 is handled via its named magnitude constant.
func exponentiateSigned(mantissa int64, exponent int64, base expBase) (int64, error) {
	mag, err := exponentiate(negativeMagnitudeOrValue(mantissa), exponent, base)
	if err != nil {
		return 0, err
	}

	if mantissa >= 0 {
		if mag > math.MaxInt64 {
			return 0, ErrConversionRange
		}
		return int64(mag), nil
	}
	if mag > negInt64MinMagnitude {
		return 0, ErrConversionRange
	}
	if mag == negInt64MinMagnitude {
		return math.MinInt64, nil
	}
	return -int64(mag), nil
}

// exponentiateUnsigned is exponentiate restricted to non-negative mantissas;
// a negative mantissa is a sign conversion error, not an overflow.
func exponentiateUnsigned(mantissa int64, exponent int64, base expBase) (uint64, error) {
	if mantissa < 0 {
		return 0, ErrSignConversion
	}
	return exponentiate(uint64(mantissa), exponent, base)
}

// negativeMagnitude returns the magnitude of a negative int64 without
// overflow at math.MinInt64.
func negativeMagnitude(v int64) uint64 {
	if v == math.MinInt64 {
		return negInt64MinMagnitude
	}
	return uint64(-v)
}

func negativeMagnitudeOrValue(v int64) uint64 {
	if v >= 0 {
		return uint64(v)
	}
	return negativeMagnitude(v)
}
