// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package cose_test

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/fido-device-onboard/go-cbor/cbor"
	"github.com/fido-device-onboard/go-cbor/cose"
)

func TestSignAndVerify(t *testing.T) {
	t.Run("es256", func(t *testing.T) {
		// Test from https://github.com/cose-wg/Examples/blob/b7a0a92bcdcba1e35c2075140e0c7c64e6e13551/sign1-tests/sign-pass-02.json
		x, _ := base64.RawURLEncoding.DecodeString("usWxHK2PmfnHKwXPS54m0kTcGJ90UiglWiGahtagnv8")
		y, _ := base64.RawURLEncoding.DecodeString("IBOL-C3BttVivg-lSreASjpkttcsz-1rb7btKLv8EX4")
		d, _ := base64.RawURLEncoding.DecodeString("V8kgd2ZBRuh2dgyVINBUqpPDr7BOMGcF22CQMIUHtNM")
		key256 := &ecdsa.PrivateKey{
			PublicKey: ecdsa.PublicKey{
				Curve: elliptic.P256(),
				X:     new(big.Int).SetBytes(x),
				Y:     new(big.Int).SetBytes(y),
			},
			D: new(big.Int).SetBytes(d),
		}
		data, _ := hex.DecodeString("d28443a10126a10442313154546869732069732074686520636f6e74656e742e584010729cd711cb3813d8d8e944a8da7111e7b258c9bdca6135f7ae1adbee9509891267837e1e33bd36c150326ae62755c6bd8e540c3e8f92d7d225e8db72b8820b")

		s1 := cose.Sign1[[]byte, []byte]{
			Header: cose.Header{
				Unprotected: cose.HeaderMap{
					cose.Label{Int64: 4}: []byte("11"),
				},
			},
			Payload: cbor.NewByteWrap([]byte("This is the content.")),
		}

		externalAAD, _ := hex.DecodeString("11aa22bb33cc44dd55006699")

		if err := s1.Sign(key256, nil, externalAAD, nil); err != nil {
			t.Fatalf("error signing: %v", err)
		}
		if len(s1.Signature) != 64 {
			t.Fatalf("signature length correct: expected %d, got %d", 64, len(s1.Signature))
		}

		// Unmarshal from test case
		var s1t cose.Sign1Tag[[]byte, []byte]
		if err := cbor.Unmarshal(data, &s1t); err != nil {
			t.Fatalf("error unmarshaling: %v", err)
		}

		passed, err := s1t.Verify(key256.Public(), nil, externalAAD)
		if err != nil {
			t.Fatalf("error verifying: %v", err)
		}
		if !passed {
			t.Fatal("verification failed")
		}
	})

	t.Run("es384", func(t *testing.T) {
		key384, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
		if err != nil {
			t.Errorf("error generating ec key p384: %v", err)
			return
		}

		s1 := cose.Sign1[[]byte, []byte]{
			Payload: cbor.NewByteWrap([]byte("This is the content.")),
		}
		if err := s1.Sign(key384, nil, nil, nil); err != nil {
			t.Fatalf("error signing: %v", err)
		}
		if len(s1.Signature) != 96 {
			t.Fatalf("signature length correct: expected %d, got %d", 96, len(s1.Signature))
		}

		// Marshal and Unmarshal
		data, err := cbor.Marshal(s1)
		if err != nil {
			t.Fatalf("error marshaling: %v", err)
		}
		var s1a cose.Sign1[[]byte, []byte]
		if err := cbor.Unmarshal(data, &s1a); err != nil {
			t.Fatalf("error unmarshaling: %v", err)
		}

		passed, err := s1a.Verify(key384.Public(), nil, nil)
		if err != nil {
			t.Fatalf("error verifying: %v", err)
		}
		if !passed {
			t.Fatal("verification failed")
		}
	})

	t.Run("eddsa", func(t *testing.T) {
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			t.Fatalf("error generating ed25519 key: %v", err)
		}

		s1 := cose.Sign1[[]byte, []byte]{
			Payload: cbor.NewByteWrap([]byte("This is the content.")),
		}
		if err := s1.Sign(priv, nil, nil, nil); err != nil {
			t.Fatalf("error signing: %v", err)
		}
		if len(s1.Signature) != ed25519.SignatureSize {
			t.Fatalf("signature length correct: expected %d, got %d", ed25519.SignatureSize, len(s1.Signature))
		}
		if alg, ok := s1.Algorithm(); !ok || alg != cose.EdDSAAlg {
			t.Fatalf("expected EdDSA algorithm header, got %d", alg)
		}

		passed, err := s1.Verify(pub, nil, nil)
		if err != nil {
			t.Fatalf("error verifying: %v", err)
		}
		if !passed {
			t.Fatal("verification failed")
		}
	})

	t.Run("rs256", func(t *testing.T) {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			t.Fatalf("error generating rsa key: %v", err)
		}

		s1 := cose.Sign1[[]byte, []byte]{
			Payload: cbor.NewByteWrap([]byte("This is the content.")),
		}
		if err := s1.Sign(key, nil, nil, nil); err != nil {
			t.Fatalf("error signing: %v", err)
		}
		if alg, ok := s1.Algorithm(); !ok || alg != cose.RS256Alg {
			t.Fatalf("expected RS256 algorithm header, got %d", alg)
		}

		passed, err := s1.Verify(key.Public(), nil, nil)
		if err != nil {
			t.Fatalf("error verifying: %v", err)
		}
		if !passed {
			t.Fatal("verification failed")
		}
	})

	t.Run("ps256", func(t *testing.T) {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			t.Fatalf("error generating rsa key: %v", err)
		}

		s1 := cose.Sign1[[]byte, []byte]{
			Payload: cbor.NewByteWrap([]byte("This is the content.")),
		}
		pssOpts := &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash, Hash: 0}
		if err := s1.Sign(key, nil, nil, pssOpts); err != nil {
			t.Fatalf("error signing: %v", err)
		}
		if alg, ok := s1.Algorithm(); !ok || alg != cose.PS256Alg {
			t.Fatalf("expected PS256 algorithm header, got %d", alg)
		}

		passed, err := s1.Verify(key.Public(), nil, nil)
		if err != nil {
			t.Fatalf("error verifying: %v", err)
		}
		if !passed {
			t.Fatal("verification failed")
		}
	})
}

func TestSignDetachedPayload(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}

	payload := []byte("detached content")
	var s1 cose.Sign1[[]byte, []byte]
	if err := s1.Sign(key, payload, nil, nil); err != nil {
		t.Fatalf("error signing: %v", err)
	}
	if s1.Payload != nil {
		t.Fatal("payload should not be attached")
	}

	passed, err := s1.Verify(key.Public(), payload, nil)
	if err != nil {
		t.Fatalf("error verifying: %v", err)
	}
	if !passed {
		t.Fatal("verification failed")
	}

	// Verification must fail with a different payload
	passed, err = s1.Verify(key.Public(), []byte("other content"), nil)
	if err != nil {
		t.Fatalf("error verifying: %v", err)
	}
	if passed {
		t.Fatal("verification should have failed for a modified payload")
	}

	// Verification must fail with no payload at all
	if _, err = s1.Verify(key.Public(), nil, nil); err == nil {
		t.Fatal("expected error verifying without the detached payload")
	}
}

func TestSignMultipleSigners(t *testing.T) {
	key1, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	key2, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}

	s := cose.Sign[[]byte, []byte]{
		Payload: cbor.NewByteWrap([]byte("This is the content.")),
	}
	if err := s.Sign(key1, nil, nil, nil); err != nil {
		t.Fatalf("error signing with first key: %v", err)
	}
	if err := s.Sign(key2, nil, nil, nil); err != nil {
		t.Fatalf("error signing with second key: %v", err)
	}
	if len(s.Signatures) != 2 {
		t.Fatalf("expected 2 signatures, got %d", len(s.Signatures))
	}

	// Marshal and unmarshal through the tagged form
	data, err := cbor.Marshal(s.Tag())
	if err != nil {
		t.Fatalf("error marshaling: %v", err)
	}
	var st cose.SignTag[[]byte, []byte]
	if err := cbor.Unmarshal(data, &st); err != nil {
		t.Fatalf("error unmarshaling: %v", err)
	}

	for i, key := range []*ecdsa.PrivateKey{key1, key2} {
		passed, err := st.Verify(key.Public(), nil, nil)
		if err != nil {
			t.Fatalf("error verifying signer %d: %v", i+1, err)
		}
		if !passed {
			t.Fatalf("verification failed for signer %d", i+1)
		}
	}

	otherKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	passed, err := st.Verify(otherKey.Public(), nil, nil)
	if err != nil {
		t.Fatalf("error verifying unrelated key: %v", err)
	}
	if passed {
		t.Fatal("verification should have failed for an unrelated key")
	}
}
