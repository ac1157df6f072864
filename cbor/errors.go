// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package cbor

import (
	"errors"
	"fmt"
)

// Errors reported by the item reader and the numeric conversion routines.
// Conversion getters latch the first error on the Reader they were called
// through, so the error observed at the end of a call sequence is always the
// first one that occurred.
var (
	// ErrUnexpectedType means the item's type cannot be converted to the
	// requested type, or the conversion is possible but was excluded by the
	// caller's conversion set.
	ErrUnexpectedType = errors.New("unexpected type for requested conversion")

	// ErrConversionRange means the value is a valid number but does not fit
	// the destination type.
	ErrConversionRange = errors.New("value out of range for destination type")

	// ErrSignConversion means a negative value was requested as an unsigned
	// type. It is reported instead of ErrConversionRange so that callers can
	// tell "too big" from "wrong sign".
	ErrSignConversion = errors.New("negative value cannot be converted to unsigned type")

	// ErrFloatException means a conversion encountered NaN or produced a
	// result that is not exactly representable, where rounding is not
	// allowed.
	ErrFloatException = errors.New("floating-point exception during conversion")

	// ErrBadExpMantissa means the content of a decimal fraction or bigfloat
	// tag is not a well-formed [exponent, mantissa] array, or the exponent
	// does not fit an int64.
	ErrBadExpMantissa = errors.New("malformed exponent and mantissa tag content")

	// ErrHalfPrecisionDisabled is returned when a half-precision float is
	// encountered and DisableHalfPrecision was set.
	ErrHalfPrecisionDisabled = errors.New("half-precision float support disabled")

	// ErrFloatDisabled is returned when any float is encountered and
	// DisableFloats was set.
	ErrFloatDisabled = errors.New("float support disabled")
)

// BufferTooSmallError is returned when a caller-supplied output buffer cannot
// hold the result. Required is the buffer length that would have succeeded.
// The output buffer is left unmodified; no partial result is ever written.
type BufferTooSmallError struct {
	Required int
}

func (e BufferTooSmallError) Error() string {
	return fmt.Sprintf("output buffer too small: %d bytes required", e.Required)
}
