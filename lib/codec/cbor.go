// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// encMode is the CBOR encoder configured with Core Deterministic
// Encoding (RFC 8949 §4.2): sorted map keys, smallest integer
// encoding, no indefinite-length items. Same logical data always
// produces identical bytes, so a re-signed claim set is byte-stable.
var encMode cbor.EncMode

// decMode decodes certificate payloads. Health-certificate payloads
// are JSON-shaped documents, so maps decoded into any-typed targets
// become map[string]any and integers become int64.
var decMode cbor.DecMode

// genericDecMode decodes arbitrary CBOR: COSE header maps, the outer
// COSE_Sign1 array, and anything the debug decoder is handed. Maps
// keep their native key types (map[any]any) because COSE and CWT use
// integer labels, and all integers decode as int64 so that label
// lookups compare against a single type.
var genericDecMode cbor.DecMode

// nestedDiagMode renders byte strings that hold well-formed CBOR as
// embedded items (<<...>>), which is how COSE headers and payloads
// nest inside an envelope.
var nestedDiagMode cbor.DiagMode

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
		IntDec:         cbor.IntDecConvertSigned,
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}

	genericDecMode, err = cbor.DecOptions{
		IntDec: cbor.IntDecConvertSigned,
	}.DecMode()
	if err != nil {
		panic("codec: generic CBOR decoder initialization failed: " + err.Error())
	}

	nestedDiagMode, err = cbor.DiagOptions{
		ByteStringEmbeddedCBOR: true,
	}.DiagMode()
	if err != nil {
		panic("codec: CBOR diagnostic mode initialization failed: " + err.Error())
	}
}

// Marshal encodes v to CBOR using Core Deterministic Encoding.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v. Untyped maps inside v become
// map[string]any.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// UnmarshalGeneric decodes a single CBOR data item without assuming
// string map keys. The returned value is built from int64, []byte,
// string, bool, float64, nil, []any, map[any]any and Tag.
func UnmarshalGeneric(data []byte) (any, error) {
	var value any
	if err := genericDecMode.Unmarshal(data, &value); err != nil {
		return nil, err
	}
	return value, nil
}

// UnmarshalGenericInto decodes CBOR data into v with the generic
// decoder's conventions: untyped maps inside v become map[any]any.
func UnmarshalGenericInto(data []byte, v any) error {
	return genericDecMode.Unmarshal(data, v)
}

// UnmarshalFirst decodes the first CBOR data item in data into v and
// returns the bytes that follow it.
func UnmarshalFirst(data []byte, v any) ([]byte, error) {
	return genericDecMode.UnmarshalFirst(data, v)
}

// Tag is a decoded CBOR tag and its content. Type alias so consumers
// import only lib/codec, not fxamacker/cbor directly.
type Tag = cbor.Tag

// RawMessage is a raw encoded CBOR value, used to delay decoding.
type RawMessage = cbor.RawMessage

// Wellformed reports whether data is exactly one well-formed CBOR data
// item with no trailing bytes.
func Wellformed(data []byte) bool {
	return cbor.Wellformed(data) == nil
}

// Diagnose returns the CBOR diagnostic notation (RFC 8949 §8) for the
// entire contents of data.
func Diagnose(data []byte) (string, error) {
	return cbor.Diagnose(data)
}

// DiagnoseNested is Diagnose with byte strings that contain CBOR shown
// as embedded data items instead of hex.
func DiagnoseNested(data []byte) (string, error) {
	return nestedDiagMode.Diagnose(data)
}
