// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package cbor_test

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/fido-device-onboard/go-cbor/cbor"
)

func TestBigNumToUint64(t *testing.T) {
	t.Run("accumulates big-endian", func(t *testing.T) {
		for _, test := range []struct {
			input  []byte
			expect uint64
		}{
			{input: []byte{0x00}, expect: 0},
			{input: []byte{0x01}, expect: 1},
			{input: []byte{0x01, 0x00}, expect: 256},
			{input: []byte{0x00, 0x00, 0x05}, expect: 5},
			{input: []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, expect: math.MaxUint64},
		} {
			got, err := cbor.BigNumToUint64(test.input, math.MaxUint64)
			if err != nil {
				t.Errorf("error converting % x: %v", test.input, err)
				continue
			}
			if got != test.expect {
				t.Errorf("converting % x: expected %d, got %d", test.input, test.expect, got)
			}
		}
	})

	t.Run("rejects values above max", func(t *testing.T) {
		nineByte := []byte{0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
		if _, err := cbor.BigNumToUint64(nineByte, math.MaxUint64); !errors.Is(err, cbor.ErrConversionRange) {
			t.Errorf("expected range error for 2^64, got %v", err)
		}

		// 2^63 exceeds a signed bound
		if _, err := cbor.BigNumToUint64([]byte{0x80, 0, 0, 0, 0, 0, 0, 0}, math.MaxInt64); !errors.Is(err, cbor.ErrConversionRange) {
			t.Errorf("expected range error for 2^63 bounded at MaxInt64, got %v", err)
		}
		if got, err := cbor.BigNumToUint64([]byte{0x7f, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, math.MaxInt64); err != nil || got != math.MaxInt64 {
			t.Errorf("expected MaxInt64, got %d, %v", got, err)
		}
	})
}

func TestUint64ToBigNum(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		var buf [8]byte
		for _, input := range [][]byte{
			{0x00},
			{0x01},
			{0x01, 0x00},
			{0xab, 0xcd, 0xef},
			{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
		} {
			v, err := cbor.BigNumToUint64(input, math.MaxUint64)
			if err != nil {
				t.Fatalf("error converting % x: %v", input, err)
			}
			got, err := cbor.Uint64ToBigNum(v, buf[:])
			if err != nil {
				t.Fatalf("error encoding %d: %v", v, err)
			}
			if !bytes.Equal(got, input) {
				t.Errorf("round trip of % x: got % x", input, got)
			}
		}
	})

	t.Run("buffer too small", func(t *testing.T) {
		var buf [1]byte
		_, err := cbor.Uint64ToBigNum(256, buf[:])
		var tooSmall cbor.BufferTooSmallError
		if !errors.As(err, &tooSmall) {
			t.Fatalf("expected BufferTooSmallError, got %v", err)
		}
		if tooSmall.Required != 2 {
			t.Errorf("expected required length 2, got %d", tooSmall.Required)
		}
	})
}

func TestBigNumAddOne(t *testing.T) {
	t.Run("increments", func(t *testing.T) {
		var buf [4]byte
		for _, test := range []struct {
			input  []byte
			expect []byte
		}{
			{input: []byte{0x00}, expect: []byte{0x01}},
			{input: []byte{0x01}, expect: []byte{0x02}},
			{input: []byte{0x01, 0xff}, expect: []byte{0x02, 0x00}},
			{input: []byte{0xfe, 0xff}, expect: []byte{0xff, 0x00}},
		} {
			got, err := cbor.BigNumAddOne(test.input, buf[:])
			if err != nil {
				t.Errorf("error incrementing % x: %v", test.input, err)
				continue
			}
			if !bytes.Equal(got, test.expect) {
				t.Errorf("incrementing % x: expected % x, got % x", test.input, test.expect, got)
			}
		}
	})

	t.Run("carry grows length", func(t *testing.T) {
		var buf [2]byte
		got, err := cbor.BigNumAddOne([]byte{0xff}, buf[:])
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, []byte{0x01, 0x00}) {
			t.Errorf("expected 01 00, got % x", got)
		}

		var small [1]byte
		_, err = cbor.BigNumAddOne([]byte{0xff}, small[:])
		var tooSmall cbor.BufferTooSmallError
		if !errors.As(err, &tooSmall) {
			t.Fatalf("expected BufferTooSmallError, got %v", err)
		}
		if tooSmall.Required != 2 {
			t.Errorf("expected required length 2, got %d", tooSmall.Required)
		}
	})
}

func TestBigNumToFloat64(t *testing.T) {
	for _, test := range []struct {
		input  []byte
		expect float64
	}{
		{input: []byte{0x00}, expect: 0},
		{input: []byte{0x01, 0x00}, expect: 256},
		{input: []byte{0x01, 0, 0, 0, 0, 0, 0, 0, 0}, expect: 18446744073709551616.0},
	} {
		if got := cbor.BigNumToFloat64(test.input); got != test.expect {
			t.Errorf("converting % x: expected %v, got %v", test.input, test.expect, got)
		}
	}
}
