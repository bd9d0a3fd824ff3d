// Copyright 2026 The Labsync Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the CBOR encoding used by the durable cache
// tier. Encoding is Core Deterministic (RFC 8949 §4.2): sorted map
// keys, smallest integer encoding, no indefinite-length items — the
// same cached page always produces identical bytes, which keeps the
// durable tier's compression and change detection stable. Decoding
// accepts standard CBOR and ignores unknown fields for forward
// compatibility with newer writers.
package codec

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

var encMode cbor.EncMode
var decMode cbor.DecMode

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		// Cached payloads only ever use string map keys. When the
		// decode target is any-typed, pick map[string]any instead
		// of the CBOR default map[interface{}]interface{}, which
		// the rest of the codebase cannot consume.
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v to CBOR using Core Deterministic Encoding.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}
