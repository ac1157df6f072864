// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package cbor

import (
	"math/big"
	"reflect"
)

// encodeBigInt writes a big.Int with preferred serialization: values that
// fit a native integer encode as one, everything larger as a tag 2 or tag 3
// big number with minimal-length magnitude.
func (e *Encoder) encodeBigInt(i *big.Int) error {
	if i.IsInt64() {
		return e.encodeNumber(reflect.ValueOf(i.Int64()))
	}
	if i.IsUint64() {
		return e.encodeNumber(reflect.ValueOf(i.Uint64()))
	}

	tagNum := bignumPosTagNum
	mag := i
	if i.Sign() < 0 {
		tagNum = bignumNegTagNum
		// stored magnitude n encodes the value -(n + 1)
		mag = new(big.Int).Abs(i)
		mag.Sub(mag, big.NewInt(1))
	}
	if err := e.write(additionalInfo(tagMajorType, u64Bytes(tagNum))); err != nil {
		return err
	}
	return e.encodeTextOrBinary(reflect.ValueOf(mag.Bytes()))
}

// decodeBigInt parses a single item that must be a native integer or a
// tagged big number and stores its value, offset of one applied, into bi.
func decodeBigInt(data []byte, bi *big.Int) error {
	item, err := NewReader(data).Next()
	if err != nil {
		return err
	}
	v, err := item.BigInt()
	if err != nil {
		return err
	}
	bi.Set(v)
	return nil
}
