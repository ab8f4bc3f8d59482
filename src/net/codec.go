package net

import (
	"bytes"

	"github.com/ugorji/go/codec"
)

var msgpackHandle = newMsgpackHandle()

func newMsgpackHandle() *codec.MsgpackHandle {
	mh := new(codec.MsgpackHandle)
	mh.WriteExt = true
	return mh
}

// Encode encodes v with msgpack.
func Encode(v interface{}) ([]byte, error) {
	b := new(bytes.Buffer)
	enc := codec.NewEncoder(b, msgpackHandle)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// Decode decodes msgpack data into v.
func Decode(data []byte, v interface{}) error {
	dec := codec.NewDecoderBytes(data, msgpackHandle)
	return dec.Decode(v)
}
