// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package cbor

import (
	"bytes"
	"errors"
	"fmt"
)

// ErrLabelNotFound is returned by the map lookup methods when no entry in the
// map carries the requested label.
var ErrLabelNotFound = errors.New("label not found in map")

// MapItemInt64 reads the map at the current position and returns the value
// item for the entry labeled with the given integer. The whole map is
// consumed, leaving the Reader positioned after it. Errors latch.
func (r *Reader) MapItemInt64(label int64) (Item, error) {
	return r.mapItem(func(key Item) bool {
		return key.Type == TypeInt64 && key.Int == label
	})
}

// MapItemText reads the map at the current position and returns the value
// item for the entry labeled with the given text string. The whole map is
// consumed, leaving the Reader positioned after it. Errors latch.
func (r *Reader) MapItemText(label string) (Item, error) {
	return r.mapItem(func(key Item) bool {
		return key.Type == TypeTextString && bytes.Equal(key.Bytes, []byte(label))
	})
}

func (r *Reader) mapItem(match func(Item) bool) (Item, error) {
	if r.err != nil {
		return Item{}, r.err
	}
	item, err := r.lookup(match)
	if err != nil {
		r.err = err
		return Item{}, err
	}
	return item, nil
}

func (r *Reader) lookup(match func(Item) bool) (Item, error) {
	head, err := r.next(0)
	if err != nil {
		return Item{}, err
	}
	if head.Type != TypeMap {
		return Item{}, ErrUnexpectedType
	}

	var found Item
	var ok bool
	for i := 0; i < head.Len; i++ {
		key, err := r.next(0)
		if err != nil {
			return Item{}, err
		}
		if !ok && match(key) {
			if found, err = r.next(0); err != nil {
				return Item{}, err
			}
			// nested content of an aggregate value must still be consumed
			// so the scan stays aligned on key-value pairs
			if err := r.consumeContent(found, 0); err != nil {
				return Item{}, err
			}
			ok = true
			continue
		}
		if err := r.skip(0); err != nil {
			return Item{}, err
		}
	}
	if !ok {
		return Item{}, ErrLabelNotFound
	}
	return found, nil
}

// Skip discards the next item, including any nested content. Errors latch.
func (r *Reader) Skip() error {
	if r.err != nil {
		return r.err
	}
	if err := r.skip(0); err != nil {
		r.err = err
		return err
	}
	return nil
}

func (r *Reader) skip(depth int) error {
	if depth > maxNestingDepth {
		return fmt.Errorf("nesting exceeds depth limit %d", maxNestingDepth)
	}

	item, err := r.next(depth)
	if err != nil {
		return err
	}
	return r.consumeContent(item, depth)
}

// consumeContent discards the nested items belonging to an already-read
// aggregate head. Scalar items have no trailing content.
func (r *Reader) consumeContent(item Item, depth int) error {
	switch item.Type {
	case TypeArray:
		for i := 0; i < item.Len; i++ {
			if err := r.skip(depth + 1); err != nil {
				return err
			}
		}
	case TypeMap:
		for i := 0; i < item.Len*2; i++ {
			if err := r.skip(depth + 1); err != nil {
				return err
			}
		}
	case TypeTag:
		// uninterpreted tag content follows as a separate item
		return r.skip(depth + 1)
	}
	return nil
}
