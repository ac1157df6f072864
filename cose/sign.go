// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package cose

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/fido-device-onboard/go-cbor/cbor"
)

// Signature context strings from RFC 8152 section 4.4.
const (
	sigContext  = "Signature"
	sig1Context = "Signature1"
)

// sigStruct is the Sig_structure that gets serialized and signed. Payload
// holds the payload already marshaled as a byte string.
type sigStruct[E any] struct {
	Context       string
	BodyProtected emptyOrSerializedMap
	SignProtected emptyOrSerializedMap
	ExternalAad   cbor.ByteWrap[E]
	Payload       cbor.RawBytes
}

// SignProtected is omitted when the context is Signature1.
func (sig sigStruct[E]) MarshalCBOR() ([]byte, error) {
	switch sig.Context {
	case sigContext:
		return cbor.Marshal(struct {
			Context       string
			BodyProtected emptyOrSerializedMap
			SignProtected emptyOrSerializedMap
			ExternalAad   cbor.ByteWrap[E]
			Payload       cbor.RawBytes
		}(sig))
	case sig1Context:
		return cbor.Marshal(struct {
			Context       string
			BodyProtected emptyOrSerializedMap
			ExternalAad   cbor.ByteWrap[E]
			Payload       cbor.RawBytes
		}{
			Context:       sig.Context,
			BodyProtected: sig.BodyProtected,
			ExternalAad:   sig.ExternalAad,
			Payload:       sig.Payload,
		})
	default:
		return nil, fmt.Errorf("unknown signature context: %s", sig.Context)
	}
}

// payloadBytes marshals the payload element of a Sig_structure, preferring
// the payload attached to the signing structure over one transported
// independently.
func payloadBytes[T any](attached *cbor.ByteWrap[T], transported []byte) (cbor.RawBytes, error) {
	if attached != nil {
		return cbor.Marshal(attached)
	}
	if transported == nil {
		return nil, errors.New("payload was transported independently but not given as an argument")
	}
	return cbor.Marshal(transported)
}

// Algorithm returns the signature algorithm from the protected headers.
func (hdr Header) Algorithm() (SignatureAlgorithm, bool) {
	var alg SignatureAlgorithm
	if ok, err := hdr.Protected.Parse(AlgLabel, &alg); err != nil || !ok {
		return 0, false
	}
	return alg, true
}

// Signature is a COSE_Signature, which carries the signature and information
// about the signature for a single signer of a Sign structure.
type Signature struct {
	Header
	Signature []byte // non-empty byte string
}

// Sign1 is a COSE_Sign1 signature structure, which is used when only one
// signature is being placed on a message.
type Sign1[T, E any] struct {
	Header
	Payload   *cbor.ByteWrap[T] // null when transported separately
	Signature []byte            // non-empty byte string
}

// Sign using a single private key. Unless it was transported independently
// of the signature, payload may be nil. For empty AAD, the type should be
// []byte. RSA keys default to a SHA-256 hash unless opts selects another and
// use RSASSA-PSS when opts is a *rsa.PSSOptions; other key types ignore
// opts.
func (s1 *Sign1[T, E]) Sign(key crypto.Signer, payload []byte, externalAAD E, opts crypto.SignerOpts) error {
	body, err := payloadBytes(s1.Payload, payload)
	if err != nil {
		return err
	}

	// Set signature algorithm protected header
	alg, err := signAlgorithm(key, opts)
	if err != nil {
		return err
	}
	if s1.Protected == nil {
		s1.Protected = make(HeaderMap)
	}
	s1.Protected[AlgLabel] = alg

	protected, err := newEmptyOrSerializedMap(s1.Protected)
	if err != nil {
		return fmt.Errorf("error marshaling protected header map: %w", err)
	}
	data, err := cbor.Marshal(sigStruct[E]{
		Context:       sig1Context,
		BodyProtected: protected,
		ExternalAad:   *cbor.NewByteWrap(externalAAD),
		Payload:       body,
	})
	if err != nil {
		return err
	}

	sig, err := signData(key, alg, opts, data)
	if err != nil {
		return err
	}
	s1.Signature = sig
	return nil
}

// Verify using a single public key. Unless it was transported independently
// of the signature, payload may be nil. For empty AAD, the type should be
// []byte.
func (s1 *Sign1[T, E]) Verify(key crypto.PublicKey, payload []byte, externalAAD E) (bool, error) {
	if len(s1.Signature) == 0 {
		return false, errors.New("missing signature")
	}
	body, err := payloadBytes(s1.Payload, payload)
	if err != nil {
		return false, err
	}
	alg, ok := s1.Algorithm()
	if !ok {
		return false, errors.New("no signature algorithm in protected headers")
	}

	protected, err := newEmptyOrSerializedMap(s1.Protected)
	if err != nil {
		return false, fmt.Errorf("error marshaling protected header map: %w", err)
	}
	data, err := cbor.Marshal(sigStruct[E]{
		Context:       sig1Context,
		BodyProtected: protected,
		ExternalAad:   *cbor.NewByteWrap(externalAAD),
		Payload:       body,
	})
	if err != nil {
		return false, err
	}

	return verifyData(key, alg, data, s1.Signature)
}

// Sign is a COSE_Sign signature structure, which is used for multi-signature
// messages.
type Sign[T, E any] struct {
	Header
	Payload    *cbor.ByteWrap[T] // null when transported separately
	Signatures []Signature       // non-empty array of Signature
}

// Sign computes a COSE_Signature with a single private key and appends it to
// the Signatures field. It may be called once per signer.
func (s *Sign[T, E]) Sign(key crypto.Signer, payload []byte, externalAAD E, opts crypto.SignerOpts) error {
	body, err := payloadBytes(s.Payload, payload)
	if err != nil {
		return err
	}

	alg, err := signAlgorithm(key, opts)
	if err != nil {
		return err
	}
	signProtected := HeaderMap{AlgLabel: alg}

	bodyProtected, err := newEmptyOrSerializedMap(s.Protected)
	if err != nil {
		return fmt.Errorf("error marshaling protected header map: %w", err)
	}
	signProtectedMap, err := newEmptyOrSerializedMap(signProtected)
	if err != nil {
		return fmt.Errorf("error marshaling signer protected header map: %w", err)
	}
	data, err := cbor.Marshal(sigStruct[E]{
		Context:       sigContext,
		BodyProtected: bodyProtected,
		SignProtected: signProtectedMap,
		ExternalAad:   *cbor.NewByteWrap(externalAAD),
		Payload:       body,
	})
	if err != nil {
		return err
	}

	sig, err := signData(key, alg, opts, data)
	if err != nil {
		return err
	}
	s.Signatures = append(s.Signatures, Signature{
		Header:    Header{Protected: signProtected},
		Signature: sig,
	})
	return nil
}

// Verify reports whether any attached signature verifies under the given
// public key.
func (s *Sign[T, E]) Verify(key crypto.PublicKey, payload []byte, externalAAD E) (bool, error) {
	body, err := payloadBytes(s.Payload, payload)
	if err != nil {
		return false, err
	}
	bodyProtected, err := newEmptyOrSerializedMap(s.Protected)
	if err != nil {
		return false, fmt.Errorf("error marshaling protected header map: %w", err)
	}

	for _, sig := range s.Signatures {
		alg, ok := sig.Algorithm()
		if !ok || len(sig.Signature) == 0 {
			continue
		}
		signProtected, err := newEmptyOrSerializedMap(sig.Protected)
		if err != nil {
			return false, fmt.Errorf("error marshaling signer protected header map: %w", err)
		}
		data, err := cbor.Marshal(sigStruct[E]{
			Context:       sigContext,
			BodyProtected: bodyProtected,
			SignProtected: signProtected,
			ExternalAad:   *cbor.NewByteWrap(externalAAD),
			Payload:       body,
		})
		if err != nil {
			return false, err
		}
		passed, err := verifyData(key, alg, data, sig.Signature)
		if err != nil {
			return false, err
		}
		if passed {
			return true, nil
		}
	}
	return false, nil
}

// signAlgorithm selects the COSE signature algorithm for the given key.
func signAlgorithm(key crypto.Signer, opts crypto.SignerOpts) (SignatureAlgorithm, error) {
	switch key := key.(type) {
	case *ecdsa.PrivateKey:
		switch key.Curve {
		case elliptic.P256():
			return ES256Alg, nil
		case elliptic.P384():
			return ES384Alg, nil
		case elliptic.P521():
			return ES512Alg, nil
		}
		return 0, fmt.Errorf("unsupported curve: %s", key.Params().Name)
	case ed25519.PrivateKey:
		return EdDSAAlg, nil
	case *rsa.PrivateKey:
		hash := crypto.SHA256
		if opts != nil && opts.HashFunc() != 0 {
			hash = opts.HashFunc()
		}
		_, pss := opts.(*rsa.PSSOptions)
		switch hash {
		case crypto.SHA256:
			if pss {
				return PS256Alg, nil
			}
			return RS256Alg, nil
		case crypto.SHA384:
			if pss {
				return PS384Alg, nil
			}
			return RS384Alg, nil
		case crypto.SHA512:
			if pss {
				return PS512Alg, nil
			}
			return RS512Alg, nil
		}
		return 0, fmt.Errorf("unsupported hash for RSA: %s", hash)
	default:
		return 0, fmt.Errorf("unsupported key type: %T", key)
	}
}

func signData(key crypto.Signer, alg SignatureAlgorithm, opts crypto.SignerOpts, data []byte) ([]byte, error) {
	switch key := key.(type) {
	case *ecdsa.PrivateKey:
		h := alg.HashFunc().New()
		_, _ = h.Write(data)
		r, s, err := ecdsa.Sign(rand.Reader, key, h.Sum(nil))
		if err != nil {
			return nil, err
		}
		// Encode signature following RFC 8152 section 8.1
		n := (key.Params().N.BitLen() + 7) / 8
		sig := make([]byte, 2*n)
		r.FillBytes(sig[:n])
		s.FillBytes(sig[n:])
		return sig, nil

	case ed25519.PrivateKey:
		// Pure Ed25519, no prehashing
		return ed25519.Sign(key, data), nil

	case *rsa.PrivateKey:
		hash := alg.HashFunc()
		h := hash.New()
		_, _ = h.Write(data)
		if pssOpts, ok := opts.(*rsa.PSSOptions); ok {
			return rsa.SignPSS(rand.Reader, key, hash, h.Sum(nil), pssOpts)
		}
		return rsa.SignPKCS1v15(rand.Reader, key, hash, h.Sum(nil))

	default:
		return nil, fmt.Errorf("unsupported key type: %T", key)
	}
}

func verifyData(key crypto.PublicKey, alg SignatureAlgorithm, data, sig []byte) (bool, error) {
	switch key := key.(type) {
	case *ecdsa.PublicKey:
		if len(sig) == 0 || len(sig)%2 != 0 {
			return false, errors.New("signature length must be non-zero and even")
		}
		h := alg.HashFunc().New()
		_, _ = h.Write(data)
		// Decode signature following RFC 8152 section 8.1
		n := len(sig) / 2
		r := new(big.Int).SetBytes(sig[:n])
		s := new(big.Int).SetBytes(sig[n:])
		return ecdsa.Verify(key, h.Sum(nil), r, s), nil

	case ed25519.PublicKey:
		return ed25519.Verify(key, data, sig), nil

	case *rsa.PublicKey:
		hash := alg.HashFunc()
		h := hash.New()
		_, _ = h.Write(data)
		switch alg {
		case PS256Alg, PS384Alg, PS512Alg:
			return rsa.VerifyPSS(key, hash, h.Sum(nil), sig, nil) == nil, nil
		default:
			return rsa.VerifyPKCS1v15(key, hash, h.Sum(nil), sig) == nil, nil
		}

	default:
		return false, fmt.Errorf("unsupported key type: %T", key)
	}
}
