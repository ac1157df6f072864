// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package cbor

import "math"

const maxUint64 = math.MaxUint64

// The big number routines operate on big-endian unsigned magnitudes per RFC
// 8949 §3.4.3. They never allocate: every writing routine takes a caller-owned
// destination buffer and fails with BufferTooSmallError (reporting the
// required length, writing nothing) when it does not fit. Sign is always the
// caller's concern here; typed bignum items carry it in their discriminant.

// BigNumToUint64 accumulates a big-endian magnitude into a uint64, rejecting
// any value greater than max with ErrConversionRange. The overflow check runs
// before each shift so arbitrarily long inputs fail cleanly instead of
// wrapping. Leading zero bytes are permitted.
func BigNumToUint64(b []byte, max uint64) (uint64, error) {
	var acc uint64
	for _, c := range b {
		if acc > max>>8 {
			return 0, ErrConversionRange
		}
		acc = acc<<8 + uint64(c)
	}
	if acc > max {
		return 0, ErrConversionRange
	}
	return acc, nil
}

// Uint64ToBigNum writes the minimal big-endian encoding of v into dst and
// returns the written prefix. Zero encodes as a single zero byte; leading
// zero bytes are never emitted otherwise.
func Uint64ToBigNum(v uint64, dst []byte) ([]byte, error) {
	n := 1
	for x := v; x > 0xff; x >>= 8 {
		n++
	}
	if len(dst) < n {
		return nil, BufferTooSmallError{Required: n}
	}
	for i := n - 1; i >= 0; i-- {
		dst[i] = byte(v)
		v >>= 8
	}
	return dst[:n], nil
}

// BigNumAddOne copies src incremented by one into dst, propagating the carry
// from the least significant byte. If the carry passes the most significant
// byte the result is one byte longer than src, so dst must be sized at
// len(src)+1 to be safe for all inputs.
func BigNumAddOne(src, dst []byte) ([]byte, error) {
	carry := true
	for i := len(src) - 1; i >= 0; i-- {
		if src[i] != 0xff {
			carry = false
			break
		}
	}
	n := len(src)
	if carry {
		n++
	}
	if len(dst) < n {
		return nil, BufferTooSmallError{Required: n}
	}

	out := dst[:n]
	j := n - 1
	add := byte(1)
	for i := len(src) - 1; i >= 0; i-- {
		sum := src[i] + add
		if sum >= src[i] {
			add = 0
		}
		out[j] = sum
		j--
	}
	if carry {
		out[0] = 0x01
	}
	return out, nil
}

// BigNumToFloat64 converts a big-endian magnitude to a float64. Magnitudes
// beyond float64 range saturate to +Inf; the result is never NaN.
func BigNumToFloat64(b []byte) float64 {
	var acc float64
	for _, c := range b {
		acc = acc*256 + float64(c)
	}
	return acc
}

// trimBigNum strips leading zero bytes, leaving at least one byte so that
// zero remains a valid single-byte magnitude.
func trimBigNum(b []byte) []byte {
	for len(b) > 1 && b[0] == 0x00 {
		b = b[1:]
	}
	return b
}
