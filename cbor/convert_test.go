// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package cbor_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fido-device-onboard/go-cbor/cbor"
)

func TestConvertCapabilityGating(t *testing.T) {
	// 4([-2, 27315]) is 273.15
	decfrac := []byte{0xc4, 0x82, 0x21, 0x19, 0x6a, 0xb3}

	t.Run("source type bit required", func(t *testing.T) {
		item, err := cbor.NewReader(decfrac).Next()
		require.NoError(t, err)

		_, err = item.Int64(cbor.ConvertInts)
		assert.ErrorIs(t, err, cbor.ErrUnexpectedType)

		v, err := item.Int64(cbor.ConvertInts | cbor.ConvertDecimalFraction)
		require.NoError(t, err)
		assert.Equal(t, int64(273), v)

		v, err = item.Int64(cbor.ConvertAll)
		require.NoError(t, err)
		assert.Equal(t, int64(273), v)
	})

	t.Run("none rejects native ints", func(t *testing.T) {
		item, err := cbor.NewReader([]byte{0x05}).Next()
		require.NoError(t, err)
		_, err = item.Int64(cbor.ConvertNone)
		assert.ErrorIs(t, err, cbor.ErrUnexpectedType)
	})

	t.Run("floats gated separately from ints", func(t *testing.T) {
		item, err := cbor.NewReader([]byte{0xf9, 0x3e, 0x00}).Next()
		require.NoError(t, err)
		_, err = item.Int64(cbor.ConvertInts)
		assert.ErrorIs(t, err, cbor.ErrUnexpectedType)

		v, err := item.Int64(cbor.ConvertInts | cbor.ConvertFloats)
		require.NoError(t, err)
		assert.Equal(t, int64(2), v) // 1.5 rounds away from zero
	})
}

func TestConvertFloatRounding(t *testing.T) {
	for _, test := range []struct {
		f      float64
		expect int64
	}{
		{f: 2.5, expect: 3},
		{f: -2.5, expect: -3},
		{f: 2.4, expect: 2},
		{f: -2.4, expect: -2},
		{f: 0.5, expect: 1},
	} {
		item := cbor.Item{Type: cbor.TypeFloat64, Float: test.f}
		v, err := item.Int64(cbor.ConvertFloats)
		require.NoError(t, err)
		assert.Equal(t, test.expect, v, "rounding %v", test.f)
	}

	t.Run("exceptions and range", func(t *testing.T) {
		item := cbor.Item{Type: cbor.TypeFloat64, Float: math.NaN()}
		_, err := item.Int64(cbor.ConvertFloats)
		assert.ErrorIs(t, err, cbor.ErrFloatException)
		_, err = item.Uint64(cbor.ConvertFloats)
		assert.ErrorIs(t, err, cbor.ErrFloatException)

		item = cbor.Item{Type: cbor.TypeFloat64, Float: math.Inf(1)}
		_, err = item.Int64(cbor.ConvertFloats)
		assert.ErrorIs(t, err, cbor.ErrConversionRange)

		// rounds to -1, which has no unsigned home
		item = cbor.Item{Type: cbor.TypeFloat64, Float: -0.7}
		_, err = item.Uint64(cbor.ConvertFloats)
		assert.ErrorIs(t, err, cbor.ErrSignConversion)

		// 2^63 is exactly representable and exactly one past int64 range
		item = cbor.Item{Type: cbor.TypeFloat64, Float: 9223372036854775808.0}
		_, err = item.Int64(cbor.ConvertFloats)
		assert.ErrorIs(t, err, cbor.ErrConversionRange)
		u, err := item.Uint64(cbor.ConvertFloats)
		require.NoError(t, err)
		assert.Equal(t, uint64(1)<<63, u)
	})
}

func TestConvertIntRanges(t *testing.T) {
	t.Run("uint64 to int64", func(t *testing.T) {
		item := cbor.Item{Type: cbor.TypeUint64, Uint: math.MaxInt64 - 1}
		v, err := item.Int64(cbor.ConvertInts)
		require.NoError(t, err)
		assert.Equal(t, int64(math.MaxInt64-1), v)

		item = cbor.Item{Type: cbor.TypeUint64, Uint: math.MaxUint64}
		_, err = item.Int64(cbor.ConvertInts)
		assert.ErrorIs(t, err, cbor.ErrConversionRange)

		// the signed bound itself is treated as out of range
		item = cbor.Item{Type: cbor.TypeUint64, Uint: math.MaxInt64}
		_, err = item.Int64(cbor.ConvertInts)
		assert.ErrorIs(t, err, cbor.ErrConversionRange)
	})

	t.Run("65-bit negative", func(t *testing.T) {
		item := cbor.Item{Type: cbor.TypeNegUint64, Uint: math.MaxInt64 + 1}
		_, err := item.Int64(cbor.ConvertInts)
		assert.ErrorIs(t, err, cbor.ErrConversionRange)
		_, err = item.Uint64(cbor.ConvertInts)
		assert.ErrorIs(t, err, cbor.ErrSignConversion)

		// the exact value -(2^63 + 1) rounds to -2^63
		f, err := item.Float64(cbor.ConvertInts)
		require.NoError(t, err)
		assert.Equal(t, -9223372036854775808.0, f)

		item.Uint = math.MaxUint64
		f, err = item.Float64(cbor.ConvertInts)
		require.NoError(t, err)
		assert.Equal(t, -18446744073709551616.0, f)
	})

	t.Run("negative int64 to uint64", func(t *testing.T) {
		item := cbor.Item{Type: cbor.TypeInt64, Int: -1}
		_, err := item.Uint64(cbor.ConvertInts)
		assert.ErrorIs(t, err, cbor.ErrSignConversion)
	})
}

func TestConvertBignumTier(t *testing.T) {
	t.Run("positive bignum bounds", func(t *testing.T) {
		// 2(h'010000000000000000') is 2^64
		item, err := cbor.NewReader([]byte{0xc2, 0x49, 0x01, 0, 0, 0, 0, 0, 0, 0, 0}).Next()
		require.NoError(t, err)

		_, err = item.Uint64(cbor.ConvertBignum)
		assert.ErrorIs(t, err, cbor.ErrConversionRange)
		_, err = item.Int64(cbor.ConvertBignum)
		assert.ErrorIs(t, err, cbor.ErrConversionRange)

		f, err := item.Float64(cbor.ConvertBignum)
		require.NoError(t, err)
		assert.Equal(t, 18446744073709551616.0, f)
	})

	t.Run("negative bignum", func(t *testing.T) {
		// 3(h'00') is -1
		item, err := cbor.NewReader([]byte{0xc3, 0x41, 0x00}).Next()
		require.NoError(t, err)

		v, err := item.Int64(cbor.ConvertBignum)
		require.NoError(t, err)
		assert.Equal(t, int64(-1), v)

		_, err = item.Uint64(cbor.ConvertBignum)
		assert.ErrorIs(t, err, cbor.ErrSignConversion)

		f, err := item.Float64(cbor.ConvertBignum)
		require.NoError(t, err)
		assert.Equal(t, -1.0, f)
	})

	t.Run("bigfloat", func(t *testing.T) {
		// 5([-1, 3]) is 1.5
		item, err := cbor.NewReader([]byte{0xc5, 0x82, 0x20, 0x03}).Next()
		require.NoError(t, err)

		f, err := item.Float64(cbor.ConvertBigFloat)
		require.NoError(t, err)
		assert.Equal(t, 1.5, f)

		// integer conversion truncates the fraction
		v, err := item.Int64(cbor.ConvertAll)
		require.NoError(t, err)
		assert.Equal(t, int64(1), v)
	})
}

func TestConvertReadLatching(t *testing.T) {
	// "a" then 7
	r := cbor.NewReader([]byte{0x61, 0x61, 0x07})
	_, err := r.ReadInt64(cbor.ConvertAll)
	require.ErrorIs(t, err, cbor.ErrUnexpectedType)

	_, err = r.ReadFloat64(cbor.ConvertAll)
	assert.ErrorIs(t, err, cbor.ErrUnexpectedType, "error stays latched")
	assert.ErrorIs(t, r.Err(), cbor.ErrUnexpectedType)
}
