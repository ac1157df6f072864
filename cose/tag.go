// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package cose

import (
	"crypto"
	"fmt"

	"github.com/fido-device-onboard/go-cbor/cbor"
)

// Sign1Tag encodes to a CBOR tag while ensuring the right tag number.
type Sign1Tag[T, E any] Sign1[T, E]

// Tag is a helper for accessing the tag value.
func (s1 *Sign1[T, E]) Tag() *Sign1Tag[T, E] { return (*Sign1Tag[T, E])(s1) }

// Untag is a helper for accessing the untagged value.
func (t *Sign1Tag[T, E]) Untag() *Sign1[T, E] { return (*Sign1[T, E])(t) }

// MarshalCBOR implements cbor.Marshaler.
func (t Sign1Tag[T, E]) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(cbor.Tag[Sign1[T, E]]{
		Num: Sign1TagNum,
		Val: Sign1[T, E](t),
	})
}

// UnmarshalCBOR implements cbor.Unmarshaler.
func (t *Sign1Tag[T, E]) UnmarshalCBOR(data []byte) error {
	var tag cbor.Tag[Sign1[T, E]]
	if err := cbor.Unmarshal(data, &tag); err != nil {
		return err
	}
	if tag.Num != Sign1TagNum {
		return fmt.Errorf("mismatched tag number %d for Sign1, expected %d", tag.Num, Sign1TagNum)
	}
	*t = Sign1Tag[T, E](tag.Val)
	return nil
}

// Sign using a single private key. See [Sign1.Sign].
func (t *Sign1Tag[T, E]) Sign(key crypto.Signer, payload []byte, externalAAD E, opts crypto.SignerOpts) error {
	return (*Sign1[T, E])(t).Sign(key, payload, externalAAD, opts)
}

// Verify using a single public key. See [Sign1.Verify].
func (t *Sign1Tag[T, E]) Verify(key crypto.PublicKey, payload []byte, externalAAD E) (bool, error) {
	return (*Sign1[T, E])(t).Verify(key, payload, externalAAD)
}

// SignTag encodes to a CBOR tag while ensuring the right tag number.
type SignTag[T, E any] Sign[T, E]

// Tag is a helper for accessing the tag value.
func (s *Sign[T, E]) Tag() *SignTag[T, E] { return (*SignTag[T, E])(s) }

// Untag is a helper for accessing the untagged value.
func (t *SignTag[T, E]) Untag() *Sign[T, E] { return (*Sign[T, E])(t) }

// MarshalCBOR implements cbor.Marshaler.
func (t SignTag[T, E]) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(cbor.Tag[Sign[T, E]]{
		Num: SignTagNum,
		Val: Sign[T, E](t),
	})
}

// UnmarshalCBOR implements cbor.Unmarshaler.
func (t *SignTag[T, E]) UnmarshalCBOR(data []byte) error {
	var tag cbor.Tag[Sign[T, E]]
	if err := cbor.Unmarshal(data, &tag); err != nil {
		return err
	}
	if tag.Num != SignTagNum {
		return fmt.Errorf("mismatched tag number %d for Sign, expected %d", tag.Num, SignTagNum)
	}
	*t = SignTag[T, E](tag.Val)
	return nil
}

// Sign appends a COSE_Signature computed with a single private key. See
// [Sign.Sign].
func (t *SignTag[T, E]) Sign(key crypto.Signer, payload []byte, externalAAD E, opts crypto.SignerOpts) error {
	return (*Sign[T, E])(t).Sign(key, payload, externalAAD, opts)
}

// Verify reports whether any attached signature verifies under the given
// public key. See [Sign.Verify].
func (t *SignTag[T, E]) Verify(key crypto.PublicKey, payload []byte, externalAAD E) (bool, error) {
	return (*Sign[T, E])(t).Verify(key, payload, externalAAD)
}
