// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package cbor

import (
	"fmt"
	"io"
	"math"

	"github.com/x448/float16"
)

// Well-known tag numbers interpreted by the Reader.
const (
	bignumPosTagNum       uint64 = 2
	bignumNegTagNum       uint64 = 3
	decimalFractionTagNum uint64 = 4
	bigFloatTagNum        uint64 = 5
)

// maxNestingDepth bounds recursion while interpreting tag content and
// skipping nested items.
const maxNestingDepth = 32

// DecodeOptions configure a Reader. The zero value enables all features.
type DecodeOptions struct {
	// DisableHalfPrecision causes half-precision (16-bit) floats to fail
	// with ErrHalfPrecisionDisabled.
	DisableHalfPrecision bool

	// DisableFloats causes all floats to fail with ErrFloatDisabled.
	DisableFloats bool
}

// Reader is a cursor over a single CBOR input, producing one Item per data
// item in encoded order. It is not safe for concurrent use; decode
// independent messages on independent Readers.
//
// The first error latches: once any call fails, every later call returns the
// same error without reading further, so a sequence of reads can be written
// without per-call checks as long as the final error is examined.
type Reader struct {
	data []byte
	pos  int
	opts DecodeOptions
	err  error
}

// NewReader returns a Reader over data with default options. The input is not
// copied.
func NewReader(data []byte) *Reader { return &Reader{data: data} }

// NewReaderWithOptions returns a Reader over data with the given options.
func NewReaderWithOptions(data []byte, opts DecodeOptions) *Reader {
	return &Reader{data: data, opts: opts}
}

// Err returns the latched error, if any.
func (r *Reader) Err() error { return r.err }

// Offset returns the byte offset of the next item to decode.
func (r *Reader) Offset() int { return r.pos }

// Remaining reports whether any input is left to decode.
func (r *Reader) Remaining() bool { return r.err == nil && r.pos < len(r.data) }

// Next decodes the next data item. Tags 2 and 3 (big numbers) and tags 4 and
// 5 (decimal fractions and bigfloats) are interpreted, including their
// content; other tags produce a TypeTag head followed by the tag content as
// the next item.
func (r *Reader) Next() (Item, error) {
	if r.err != nil {
		return Item{}, r.err
	}
	item, err := r.next(0)
	if err != nil {
		r.err = err
		return Item{}, err
	}
	return item, nil
}

func (r *Reader) next(depth int) (Item, error) {
	if depth > maxNestingDepth {
		return Item{}, fmt.Errorf("tag nesting exceeds depth limit %d", maxNestingDepth)
	}

	offset := r.pos
	major, info, arg, err := r.head()
	if err != nil {
		return Item{}, err
	}
	item := Item{Offset: offset}

	switch major {
	case unsignedIntMajorType:
		if arg > math.MaxInt64 {
			item.Type = TypeUint64
			item.Uint = arg
		} else {
			item.Type = TypeInt64
			item.Int = int64(arg)
		}

	case negativeIntMajorType:
		// argument n encodes the value -(n + 1)
		if arg > math.MaxInt64 {
			item.Type = TypeNegUint64
			item.Uint = arg
		} else {
			item.Type = TypeInt64
			item.Int = -int64(arg) - 1
		}

	case byteStringMajorType, textStringMajorType:
		b, err := r.take(arg)
		if err != nil {
			return Item{}, err
		}
		item.Type = TypeByteString
		if major == textStringMajorType {
			item.Type = TypeTextString
		}
		item.Bytes = b

	case arrayMajorType, mapMajorType:
		if arg >= MaxArrayDecodeLength {
			return Item{}, fmt.Errorf("array/map length exceeds max size: %d", arg)
		}
		item.Type = TypeArray
		if major == mapMajorType {
			item.Type = TypeMap
		}
		item.Len = int(arg)

	case tagMajorType:
		return r.nextTag(arg, offset, depth)

	case simpleMajorType:
		return r.nextSimple(info, arg, offset)
	}

	return item, nil
}

func (r *Reader) nextTag(num uint64, offset int, depth int) (Item, error) {
	switch num {
	case bignumPosTagNum, bignumNegTagNum:
		content, err := r.next(depth + 1)
		if err != nil {
			return Item{}, err
		}
		if content.Type != TypeByteString {
			return Item{}, fmt.Errorf("tag %d content must be a byte string, got %s", num, content.Type)
		}
		item := Item{Type: TypeBignumPos, Offset: offset, Bytes: content.Bytes}
		if num == bignumNegTagNum {
			item.Type = TypeBignumNeg
		}
		return item, nil

	case decimalFractionTagNum, bigFloatTagNum:
		return r.nextExpMantissa(num, offset, depth)

	default:
		return Item{Type: TypeTag, Offset: offset, TagNum: num}, nil
	}
}

// nextSimple handles major type 7: simple values and floats.
func (r *Reader) nextSimple(info byte, arg uint64, offset int) (Item, error) {
	item := Item{Offset: offset}
	switch info {
	case falseVal, trueVal:
		item.Type = TypeBool
		item.Bool = info == trueVal
	case nullVal:
		item.Type = TypeNull
	case undefinedVal:
		item.Type = TypeUndefined
	case halfFloat:
		if r.opts.DisableFloats {
			return Item{}, ErrFloatDisabled
		}
		if r.opts.DisableHalfPrecision {
			return Item{}, ErrHalfPrecisionDisabled
		}
		item.Type = TypeFloat32
		item.Float = float64(float16.Frombits(uint16(arg)).Float32())
	case singleFloat:
		if r.opts.DisableFloats {
			return Item{}, ErrFloatDisabled
		}
		item.Type = TypeFloat32
		item.Float = float64(math.Float32frombits(uint32(arg)))
	case doubleFloat:
		if r.opts.DisableFloats {
			return Item{}, ErrFloatDisabled
		}
		item.Type = TypeFloat64
		item.Float = math.Float64frombits(arg)
	default:
		return Item{}, fmt.Errorf("unsupported simple value %d", info)
	}
	return item, nil
}

// nextExpMantissa interprets the two-element [exponent, mantissa] array of a
// decimal fraction or bigfloat tag.
func (r *Reader) nextExpMantissa(num uint64, offset int, depth int) (Item, error) {
	head, err := r.next(depth + 1)
	if err != nil {
		return Item{}, err
	}
	if head.Type != TypeArray || head.Len != 2 {
		return Item{}, ErrBadExpMantissa
	}

	// CBOR allows a wider exponent, but values outside int64 are rejected
	expItem, err := r.next(depth + 1)
	if err != nil {
		return Item{}, err
	}
	if expItem.Type != TypeInt64 {
		return Item{}, ErrBadExpMantissa
	}

	mantItem, err := r.next(depth + 1)
	if err != nil {
		return Item{}, err
	}
	var mant Mantissa
	switch mantItem.Type {
	case TypeInt64:
		mant = Mantissa{Type: TypeInt64, Int: mantItem.Int}
	case TypeUint64:
		mant = Mantissa{Type: TypeUint64, Uint: mantItem.Uint}
	case TypeBignumPos, TypeBignumNeg:
		mant = Mantissa{Type: mantItem.Type, Bytes: mantItem.Bytes}
	default:
		return Item{}, ErrBadExpMantissa
	}

	item := Item{
		Type:     TypeDecimalFraction,
		Offset:   offset,
		Exponent: expItem.Int,
		Mantissa: mant,
	}
	if num == bigFloatTagNum {
		item.Type = TypeBigFloat
	}
	return item, nil
}

// head reads an item's initial byte and length/value argument.
func (r *Reader) head() (major, info byte, arg uint64, err error) {
	if r.pos >= len(r.data) {
		return 0, 0, 0, io.EOF
	}
	first := r.data[r.pos]
	major = first >> 5
	info = first & fiveBitMask
	r.pos++

	var argLen int
	switch {
	case info < oneByteAdditional:
		return major, info, uint64(info), nil
	case info == oneByteAdditional:
		argLen = 1
	case info == twoBytesAdditional:
		argLen = 2
	case info == fourBytesAdditional:
		argLen = 4
	case info == eightBytesAdditional:
		argLen = 8
	default:
		// 28-30 are reserved; 31 marks indefinite lengths, which this
		// package does not support
		return 0, 0, 0, fmt.Errorf("unsupported additional info %d", info)
	}

	if r.pos+argLen > len(r.data) {
		return 0, 0, 0, io.ErrUnexpectedEOF
	}
	for _, b := range r.data[r.pos : r.pos+argLen] {
		arg = arg<<8 | uint64(b)
	}
	r.pos += argLen
	return major, info, arg, nil
}

// take returns the next n input bytes without copying.
func (r *Reader) take(n uint64) ([]byte, error) {
	if n >= MaxArrayDecodeLength {
		return nil, fmt.Errorf("string length exceeds max size: %d", n)
	}
	if uint64(len(r.data)-r.pos) < n {
		return nil, io.ErrUnexpectedEOF
	}
	b := r.data[r.pos : r.pos+int(n)]
	r.pos += int(n)
	return b, nil
}
