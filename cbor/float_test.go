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

func TestEncodeFloat(t *testing.T) {
	t.Run("preferred serialization", func(t *testing.T) {
		for _, test := range []struct {
			input  float64
			expect []byte
		}{
			{input: 0.0, expect: []byte{0xf9, 0x00, 0x00}},
			{input: 1.0, expect: []byte{0xf9, 0x3c, 0x00}},
			{input: 1.5, expect: []byte{0xf9, 0x3e, 0x00}},
			{input: 65504.0, expect: []byte{0xf9, 0x7b, 0xff}},
			{input: 5.960464477539063e-8, expect: []byte{0xf9, 0x00, 0x01}},
			{input: 100000.0, expect: []byte{0xfa, 0x47, 0xc3, 0x50, 0x00}},
			{input: 3.4028234663852886e+38, expect: []byte{0xfa, 0x7f, 0x7f, 0xff, 0xff}},
			{input: 1.1, expect: []byte{0xfb, 0x3f, 0xf1, 0x99, 0x99, 0x99, 0x99, 0x99, 0x9a}},
			{input: -4.1, expect: []byte{0xfb, 0xc0, 0x10, 0x66, 0x66, 0x66, 0x66, 0x66, 0x66}},
			{input: math.Inf(1), expect: []byte{0xf9, 0x7c, 0x00}},
			{input: math.Inf(-1), expect: []byte{0xf9, 0xfc, 0x00}},
		} {
			if got, err := cbor.Marshal(test.input); err != nil {
				t.Errorf("error marshaling %v: %v", test.input, err)
			} else if !bytes.Equal(got, test.expect) {
				t.Errorf("marshaling %v; expected % x, got % x", test.input, test.expect, got)
			}
		}
	})

	t.Run("float32", func(t *testing.T) {
		input := float32(1.5)
		expect := []byte{0xf9, 0x3e, 0x00}

		if got, err := cbor.Marshal(input); err != nil {
			t.Errorf("error marshaling %v: %v", input, err)
		} else if !bytes.Equal(got, expect) {
			t.Errorf("marshaling %v; expected % x, got % x", input, expect, got)
		}
	})

	t.Run("NaN is canonical", func(t *testing.T) {
		expect := []byte{0xf9, 0x7e, 0x00}
		// every NaN payload collapses to the quiet half-precision NaN
		for _, input := range []float64{
			math.NaN(),
			math.Float64frombits(0x7ff8000000000001),
		} {
			if got, err := cbor.Marshal(input); err != nil {
				t.Errorf("error marshaling NaN: %v", err)
			} else if !bytes.Equal(got, expect) {
				t.Errorf("marshaling NaN; expected % x, got % x", expect, got)
			}
		}
	})
}

func TestDecodeFloat(t *testing.T) {
	t.Run("float64", func(t *testing.T) {
		for _, test := range []struct {
			input  []byte
			expect float64
		}{
			{input: []byte{0xf9, 0x3e, 0x00}, expect: 1.5},
			{input: []byte{0xf9, 0x7b, 0xff}, expect: 65504.0},
			{input: []byte{0xfa, 0x47, 0xc3, 0x50, 0x00}, expect: 100000.0},
			{input: []byte{0xfb, 0x3f, 0xf1, 0x99, 0x99, 0x99, 0x99, 0x99, 0x9a}, expect: 1.1},
			{input: []byte{0xf9, 0x7c, 0x00}, expect: math.Inf(1)},
			{input: []byte{0xf9, 0xfc, 0x00}, expect: math.Inf(-1)},
		} {
			var got float64
			if err := cbor.Unmarshal(test.input, &got); err != nil {
				t.Errorf("error unmarshaling % x: %v", test.input, err)
			} else if got != test.expect {
				t.Errorf("unmarshaling % x; expected %v, got %v", test.input, test.expect, got)
			}
		}

		var got float64
		if err := cbor.Unmarshal([]byte{0xf9, 0x7e, 0x00}, &got); err != nil {
			t.Errorf("error unmarshaling NaN: %v", err)
		} else if !math.IsNaN(got) {
			t.Errorf("unmarshaling NaN; got %v", got)
		}
	})

	t.Run("float32", func(t *testing.T) {
		var got float32
		if err := cbor.Unmarshal([]byte{0xfa, 0x47, 0xc3, 0x50, 0x00}, &got); err != nil {
			t.Errorf("error unmarshaling: %v", err)
		} else if got != 100000.0 {
			t.Errorf("expected 100000, got %v", got)
		}

		// 1.1 does not narrow exactly
		if err := cbor.Unmarshal([]byte{0xfb, 0x3f, 0xf1, 0x99, 0x99, 0x99, 0x99, 0x99, 0x9a}, &got); err == nil {
			t.Error("expected narrowing error unmarshaling 1.1 into float32")
		}
	})

	t.Run("interface", func(t *testing.T) {
		var got any
		if err := cbor.Unmarshal([]byte{0xf9, 0x3e, 0x00}, &got); err != nil {
			t.Errorf("error unmarshaling: %v", err)
		} else if f, ok := got.(float64); !ok || f != 1.5 {
			t.Errorf("expected float64 1.5, got %T %v", got, got)
		}
	})

	t.Run("decoder options", func(t *testing.T) {
		dec := cbor.NewDecoder(bytes.NewReader([]byte{0xf9, 0x3e, 0x00}))
		dec.DisableHalfPrecision = true
		var got float64
		if err := dec.Decode(&got); !errors.Is(err, cbor.ErrHalfPrecisionDisabled) {
			t.Errorf("expected half-precision error, got %v", err)
		}

		dec = cbor.NewDecoder(bytes.NewReader([]byte{0xfb, 0x3f, 0xf8, 0, 0, 0, 0, 0, 0}))
		dec.DisableFloats = true
		if err := dec.Decode(&got); !errors.Is(err, cbor.ErrFloatDisabled) {
			t.Errorf("expected float disabled error, got %v", err)
		}
	})
}
