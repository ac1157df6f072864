// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package cbor

import (
	"encoding/binary"
	"fmt"
	"math"
	"reflect"

	"github.com/x448/float16"
)

// decodeFloat decodes a half, single, or double precision float into a
// float32, float64, or interface value.
func (d *Decoder) decodeFloat(rv reflect.Value, lowFiveBits byte, additional []byte) error {
	if d.DisableFloats {
		return ErrFloatDisabled
	}

	var f64 float64
	switch lowFiveBits {
	case halfFloat:
		if d.DisableHalfPrecision {
			return ErrHalfPrecisionDisabled
		}
		f64 = float64(float16.Frombits(uint16(toU64(additional))).Float32())
	case singleFloat:
		f64 = float64(math.Float32frombits(uint32(toU64(additional))))
	case doubleFloat:
		f64 = math.Float64frombits(toU64(additional))
	}

	kind := rv.Kind()
	if kind == reflect.Interface && !rv.IsNil() {
		kind = rv.Elem().Kind()
	}
	switch kind {
	case reflect.Float32:
		if f := float32(f64); float64(f) != f64 && !math.IsNaN(f64) {
			return fmt.Errorf("%w: value not exactly representable",
				ErrUnsupportedType{typeName: rv.Type().String()})
		}
	case reflect.Float64:
	default:
		return fmt.Errorf("%w: only float32 and float64 supported",
			ErrUnsupportedType{typeName: rv.Type().String()})
	}

	// Note that setting cannot be done with reflect.Value.SetXXX because the
	// reflect.Value may be an interface and its Elem() is not settable.
	newVal := reflect.ValueOf(f64)
	if rv.Kind() == reflect.Interface {
		newVal = newVal.Convert(rv.Elem().Type())
	}
	rv.Set(newVal.Convert(rv.Type()))
	return nil
}

// encodeFloat writes f using preferred serialization: the smallest of half,
// single, and double precision that represents the value exactly. NaN always
// encodes as the canonical half-precision quiet NaN.
func (e *Encoder) encodeFloat(f float64) error {
	return e.write(appendFloat(nil, f))
}

func appendFloat(dst []byte, f float64) []byte {
	if math.IsNaN(f) {
		return append(dst, (simpleMajorType<<5)|halfFloat, 0x7e, 0x00)
	}
	if f32 := float32(f); float64(f32) == f {
		if f16 := float16.Fromfloat32(f32); f16.Float32() == f32 {
			dst = append(dst, (simpleMajorType<<5)|halfFloat)
			return binary.BigEndian.AppendUint16(dst, f16.Bits())
		}
		dst = append(dst, (simpleMajorType<<5)|singleFloat)
		return binary.BigEndian.AppendUint32(dst, math.Float32bits(f32))
	}
	dst = append(dst, (simpleMajorType<<5)|doubleFloat)
	return binary.BigEndian.AppendUint64(dst, math.Float64bits(f))
}
