package common

import (
	"bytes"

	"github.com/ugorji/go/codec"
)

// Encode is the canonical JSON encoding used for hashing, on the wire and in
// the report archive. Map keys come out sorted. Encoded structs declare their
// fields in alphabetical order of the encoded names.
func Encode(v interface{}) ([]byte, error) {
	b := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(b, jh)

	if err := enc.Encode(v); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// Decode reverses Encode.
func Decode(data []byte, v interface{}) error {
	b := bytes.NewBuffer(data)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	dec := codec.NewDecoder(b, jh)

	return dec.Decode(v)
}
