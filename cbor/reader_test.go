// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package cbor_test

import (
	"bytes"
	"errors"
	"math"
	"math/big"
	"testing"

	"github.com/fido-device-onboard/go-cbor/cbor"
)

func TestReaderNext(t *testing.T) {
	t.Run("integers", func(t *testing.T) {
		for _, test := range []struct {
			input      []byte
			expectType cbor.ItemType
			expectInt  int64
			expectUint uint64
		}{
			{input: []byte{0x00}, expectType: cbor.TypeInt64, expectInt: 0},
			{input: []byte{0x19, 0x03, 0xe7}, expectType: cbor.TypeInt64, expectInt: 999},
			{input: []byte{0x20}, expectType: cbor.TypeInt64, expectInt: -1},
			{input: []byte{0x3b, 0x7f, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, expectType: cbor.TypeInt64, expectInt: math.MinInt64},
			{input: []byte{0x1b, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, expectType: cbor.TypeUint64, expectUint: math.MaxUint64},
			{input: []byte{0x3b, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, expectType: cbor.TypeNegUint64, expectUint: math.MaxUint64},
		} {
			item, err := cbor.NewReader(test.input).Next()
			if err != nil {
				t.Errorf("error decoding % x: %v", test.input, err)
				continue
			}
			if item.Type != test.expectType || item.Int != test.expectInt || item.Uint != test.expectUint {
				t.Errorf("decoding % x: expected {%s %d %d}, got {%s %d %d}",
					test.input, test.expectType, test.expectInt, test.expectUint, item.Type, item.Int, item.Uint)
			}
		}
	})

	t.Run("floats", func(t *testing.T) {
		item, err := cbor.NewReader([]byte{0xf9, 0x3e, 0x00}).Next()
		if err != nil {
			t.Fatal(err)
		}
		if item.Type != cbor.TypeFloat32 || item.Float != 1.5 {
			t.Fatalf("expected half-precision 1.5 widened to float, got %s %v", item.Type, item.Float)
		}

		item, err = cbor.NewReader([]byte{0xfb, 0x40, 0x09, 0x21, 0xfb, 0x54, 0x44, 0x2d, 0x18}).Next()
		if err != nil {
			t.Fatal(err)
		}
		if item.Type != cbor.TypeFloat64 || item.Float != 3.141592653589793 {
			t.Fatalf("expected double-precision pi, got %s %v", item.Type, item.Float)
		}
	})

	t.Run("float options", func(t *testing.T) {
		half := []byte{0xf9, 0x3e, 0x00}
		r := cbor.NewReaderWithOptions(half, cbor.DecodeOptions{DisableHalfPrecision: true})
		if _, err := r.Next(); !errors.Is(err, cbor.ErrHalfPrecisionDisabled) {
			t.Errorf("expected half-precision error, got %v", err)
		}

		double := []byte{0xfb, 0x3f, 0xf8, 0, 0, 0, 0, 0, 0}
		r = cbor.NewReaderWithOptions(double, cbor.DecodeOptions{DisableFloats: true})
		if _, err := r.Next(); !errors.Is(err, cbor.ErrFloatDisabled) {
			t.Errorf("expected float disabled error, got %v", err)
		}

		// Full precision stays usable when only half precision is off
		r = cbor.NewReaderWithOptions(double, cbor.DecodeOptions{DisableHalfPrecision: true})
		if item, err := r.Next(); err != nil || item.Float != 1.5 {
			t.Errorf("expected 1.5, got %v, %v", item.Float, err)
		}
	})

	t.Run("strings alias input", func(t *testing.T) {
		input := []byte{0x45, 0x68, 0x65, 0x6c, 0x6c, 0x6f}
		item, err := cbor.NewReader(input).Next()
		if err != nil {
			t.Fatal(err)
		}
		if item.Type != cbor.TypeByteString || !bytes.Equal(item.Bytes, []byte("hello")) {
			t.Fatalf("expected byte string hello, got %s % x", item.Type, item.Bytes)
		}
	})

	t.Run("aggregate heads", func(t *testing.T) {
		item, err := cbor.NewReader([]byte{0x82, 0x01, 0x02}).Next()
		if err != nil {
			t.Fatal(err)
		}
		if item.Type != cbor.TypeArray || item.Len != 2 {
			t.Fatalf("expected array of 2, got %s %d", item.Type, item.Len)
		}

		item, err = cbor.NewReader([]byte{0xa1, 0x01, 0x02}).Next()
		if err != nil {
			t.Fatal(err)
		}
		if item.Type != cbor.TypeMap || item.Len != 1 {
			t.Fatalf("expected map of 1 pair, got %s %d", item.Type, item.Len)
		}
	})

	t.Run("uninterpreted tag", func(t *testing.T) {
		r := cbor.NewReader([]byte{0xd8, 0x2a, 0x01})
		item, err := r.Next()
		if err != nil {
			t.Fatal(err)
		}
		if item.Type != cbor.TypeTag || item.TagNum != 42 {
			t.Fatalf("expected tag 42 head, got %s %d", item.Type, item.TagNum)
		}
		item, err = r.Next()
		if err != nil {
			t.Fatal(err)
		}
		if item.Type != cbor.TypeInt64 || item.Int != 1 {
			t.Fatalf("expected tag content 1, got %s %d", item.Type, item.Int)
		}
	})

	t.Run("malformed input", func(t *testing.T) {
		for _, input := range [][]byte{
			{0x1c},       // reserved additional info
			{0x19, 0x01}, // truncated argument
			{0x45, 0x68}, // truncated string
			{0xc2, 0x01}, // bignum content not a byte string
			{0xc4, 0x01}, // decimal fraction content not an array
			{0xf8, 0x10}, // unsupported simple value
		} {
			if _, err := cbor.NewReader(input).Next(); err == nil {
				t.Errorf("expected error decoding % x", input)
			}
		}
	})
}

func TestReaderBignum(t *testing.T) {
	t.Run("negative bignum end to end", func(t *testing.T) {
		// 3(h'01') is -2
		item, err := cbor.NewReader([]byte{0xc3, 0x41, 0x01}).Next()
		if err != nil {
			t.Fatal(err)
		}
		if item.Type != cbor.TypeBignumNeg {
			t.Fatalf("expected negative bignum, got %s", item.Type)
		}

		if v, err := item.Int64(cbor.ConvertBignum); err != nil || v != -2 {
			t.Errorf("Int64: expected -2, got %d, %v", v, err)
		}

		bi, err := item.BigInt()
		if err != nil {
			t.Fatal(err)
		}
		if bi.Cmp(big.NewInt(-2)) != 0 {
			t.Errorf("BigInt: expected -2, got %s", bi)
		}

		var buf [2]byte
		mag, negative, err := item.BigNumBytes(buf[:])
		if err != nil {
			t.Fatal(err)
		}
		if !negative || !bytes.Equal(mag, []byte{0x02}) {
			t.Errorf("BigNumBytes: expected magnitude 02 negative, got % x %v", mag, negative)
		}
	})

	t.Run("positive bignum above uint64", func(t *testing.T) {
		// 2(h'010000000000000000') is 2^64
		input := []byte{0xc2, 0x49, 0x01, 0, 0, 0, 0, 0, 0, 0, 0}
		item, err := cbor.NewReader(input).Next()
		if err != nil {
			t.Fatal(err)
		}
		if _, err := item.Uint64(cbor.ConvertBignum); !errors.Is(err, cbor.ErrConversionRange) {
			t.Errorf("expected range error, got %v", err)
		}
		if f, err := item.Float64(cbor.ConvertBignum); err != nil || f != 18446744073709551616.0 {
			t.Errorf("expected 2^64 as float, got %v, %v", f, err)
		}
	})

	t.Run("maximum 65-bit negative magnitude", func(t *testing.T) {
		item, err := cbor.NewReader([]byte{0x3b, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}).Next()
		if err != nil {
			t.Fatal(err)
		}

		// the magnitude n+1 carries into a ninth byte
		var small [8]byte
		if _, _, err := item.BigNumBytes(small[:]); err == nil {
			t.Error("expected buffer too small for 9-byte magnitude")
		}
		var buf [9]byte
		mag, negative, err := item.BigNumBytes(buf[:])
		if err != nil {
			t.Fatal(err)
		}
		if !negative || !bytes.Equal(mag, []byte{0x01, 0, 0, 0, 0, 0, 0, 0, 0}) {
			t.Errorf("expected 9-byte magnitude 2^64, got % x %v", mag, negative)
		}
	})
}

func TestReaderExpMantissa(t *testing.T) {
	t.Run("decimal fraction", func(t *testing.T) {
		// 4([-2, 27315]) is 273.15
		input := []byte{0xc4, 0x82, 0x21, 0x19, 0x6a, 0xb3}
		item, err := cbor.NewReader(input).Next()
		if err != nil {
			t.Fatal(err)
		}
		if item.Type != cbor.TypeDecimalFraction || item.Exponent != -2 {
			t.Fatalf("expected decimal fraction with exponent -2, got %s %d", item.Type, item.Exponent)
		}
		if item.Mantissa.Type != cbor.TypeInt64 || item.Mantissa.Int != 27315 {
			t.Fatalf("expected mantissa 27315, got %s %d", item.Mantissa.Type, item.Mantissa.Int)
		}

		if f, err := item.Float64(cbor.ConvertDecimalFraction); err != nil || f != 273.15 {
			t.Errorf("Float64: expected 273.15, got %v, %v", f, err)
		}
		if v, err := item.Int64(cbor.ConvertDecimalFraction); err != nil || v != 273 {
			t.Errorf("Int64: expected 273, got %d, %v", v, err)
		}
	})

	t.Run("bigfloat", func(t *testing.T) {
		// 5([-1, 3]) is 1.5
		input := []byte{0xc5, 0x82, 0x20, 0x03}
		item, err := cbor.NewReader(input).Next()
		if err != nil {
			t.Fatal(err)
		}
		if item.Type != cbor.TypeBigFloat || item.Exponent != -1 {
			t.Fatalf("expected bigfloat with exponent -1, got %s %d", item.Type, item.Exponent)
		}
		if f, err := item.Float64(cbor.ConvertBigFloat); err != nil || f != 1.5 {
			t.Errorf("Float64: expected 1.5, got %v, %v", f, err)
		}
	})

	t.Run("bignum mantissa", func(t *testing.T) {
		// 4([1, 3(h'0f')]) is -160
		input := []byte{0xc4, 0x82, 0x01, 0xc3, 0x41, 0x0f}
		item, err := cbor.NewReader(input).Next()
		if err != nil {
			t.Fatal(err)
		}
		if v, err := item.Int64(cbor.ConvertDecimalFraction); err != nil || v != -160 {
			t.Errorf("Int64: expected -160, got %d, %v", v, err)
		}

		var buf [2]byte
		em, err := item.DecimalFractionBigNum(buf[:])
		if err != nil {
			t.Fatal(err)
		}
		if !em.Negative || em.Exponent != 1 || !bytes.Equal(em.Mantissa, []byte{0x10}) {
			t.Errorf("expected negative mantissa 10 exponent 1, got %+v", em)
		}

		emRaw, err := item.DecimalFractionBigNumRaw(buf[:])
		if err != nil {
			t.Fatal(err)
		}
		if !emRaw.Negative || !bytes.Equal(emRaw.Mantissa, []byte{0x0f}) {
			t.Errorf("expected raw stored mantissa 0f, got %+v", emRaw)
		}
	})

	t.Run("malformed pair", func(t *testing.T) {
		for _, input := range [][]byte{
			{0xc4, 0x81, 0x01},                   // one element
			{0xc4, 0x83, 0x01, 0x02, 0x03},       // three elements
			{0xc4, 0x82, 0x61, 0x61, 0x01},       // exponent not an integer
			{0xc4, 0x82, 0x01, 0x61, 0x61},       // mantissa not numeric
			{0xc5, 0x82, 0x1b, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x01}, // exponent above int64
		} {
			if _, err := cbor.NewReader(input).Next(); !errors.Is(err, cbor.ErrBadExpMantissa) {
				t.Errorf("decoding % x: expected bad exponent/mantissa error, got %v", input, err)
			}
		}
	})
}

func TestReaderStickyError(t *testing.T) {
	// int 1 followed by -1
	r := cbor.NewReader([]byte{0x01, 0x20})

	sentinel, err := r.ReadUint64(cbor.ConvertNone)
	if !errors.Is(err, cbor.ErrUnexpectedType) {
		t.Fatalf("expected unexpected type error, got %v", err)
	}
	if sentinel != 0 {
		t.Fatalf("expected zero output on error, got %d", sentinel)
	}

	// The latched error reports on every later call and no input is consumed
	offset := r.Offset()
	if _, err := r.ReadInt64(cbor.ConvertAll); !errors.Is(err, cbor.ErrUnexpectedType) {
		t.Fatalf("expected latched error, got %v", err)
	}
	if _, err := r.Next(); !errors.Is(err, cbor.ErrUnexpectedType) {
		t.Fatalf("expected latched error from Next, got %v", err)
	}
	if err := r.Skip(); !errors.Is(err, cbor.ErrUnexpectedType) {
		t.Fatalf("expected latched error from Skip, got %v", err)
	}
	if r.Offset() != offset {
		t.Fatalf("expected no input consumed after latch, offset moved %d -> %d", offset, r.Offset())
	}
	if !errors.Is(r.Err(), cbor.ErrUnexpectedType) {
		t.Fatalf("expected latched error from Err, got %v", r.Err())
	}
}

func TestReaderSkipAndRemaining(t *testing.T) {
	// [[1, 2], {3: 4}] followed by "IETF"
	input := []byte{
		0x82, 0x82, 0x01, 0x02, 0xa1, 0x03, 0x04,
		0x64, 0x49, 0x45, 0x54, 0x46,
	}
	r := cbor.NewReader(input)
	if err := r.Skip(); err != nil {
		t.Fatal(err)
	}
	item, err := r.Next()
	if err != nil {
		t.Fatal(err)
	}
	if item.Type != cbor.TypeTextString || string(item.Bytes) != "IETF" {
		t.Fatalf("expected text IETF after skip, got %s %q", item.Type, item.Bytes)
	}
	if r.Remaining() {
		t.Fatal("expected input to be exhausted")
	}
}

func TestReaderMapLookup(t *testing.T) {
	// {1: "a", 2: [1, 2], 3: 5}
	input := []byte{
		0xa3,
		0x01, 0x61, 0x61,
		0x02, 0x82, 0x01, 0x02,
		0x03, 0x05,
	}

	t.Run("int label", func(t *testing.T) {
		r := cbor.NewReader(input)
		item, err := r.MapItemInt64(3)
		if err != nil {
			t.Fatal(err)
		}
		if item.Type != cbor.TypeInt64 || item.Int != 5 {
			t.Fatalf("expected 5, got %s %d", item.Type, item.Int)
		}
		if r.Remaining() {
			t.Fatal("expected whole map to be consumed")
		}
	})

	t.Run("aggregate value stays aligned", func(t *testing.T) {
		// matching an entry whose value is an array must not desync the scan
		r := cbor.NewReader(input)
		item, err := r.MapItemInt64(2)
		if err != nil {
			t.Fatal(err)
		}
		if item.Type != cbor.TypeArray || item.Len != 2 {
			t.Fatalf("expected array of 2, got %s %d", item.Type, item.Len)
		}
		if r.Remaining() {
			t.Fatal("expected whole map to be consumed")
		}
	})

	t.Run("text label", func(t *testing.T) {
		// {"k": 7}
		r := cbor.NewReader([]byte{0xa1, 0x61, 0x6b, 0x07})
		item, err := r.MapItemText("k")
		if err != nil {
			t.Fatal(err)
		}
		if item.Int != 7 {
			t.Fatalf("expected 7, got %d", item.Int)
		}
	})

	t.Run("missing label", func(t *testing.T) {
		r := cbor.NewReader(input)
		if _, err := r.MapItemInt64(9); !errors.Is(err, cbor.ErrLabelNotFound) {
			t.Fatalf("expected label not found, got %v", err)
		}
	})

	t.Run("not a map", func(t *testing.T) {
		r := cbor.NewReader([]byte{0x82, 0x01, 0x02})
		if _, err := r.MapItemInt64(1); !errors.Is(err, cbor.ErrUnexpectedType) {
			t.Fatalf("expected unexpected type, got %v", err)
		}
	})
}
