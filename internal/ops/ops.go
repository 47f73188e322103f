// Package ops implements the pure byte-transform operations a proof tree
// applies along a root-to-leaf path: three unary hashes, two unary
// transforms, and two binary (payload-carrying) transforms.
package ops

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/ripemd160"

	"otsproof/internal/codec"
)

// Tag bytes for each operation, per the OpenTimestamps wire format.
const (
	TagSHA1      byte = 0x02
	TagRIPEMD160 byte = 0x03
	TagSHA256    byte = 0x08
	TagAppend    byte = 0xf0
	TagPrepend   byte = 0xf1
	TagReverse   byte = 0xf2
	TagHexlify   byte = 0xf3
)

// MinPayloadLen and MaxPayloadLen bound the Append/Prepend payload.
const (
	MinPayloadLen = 1
	MaxPayloadLen = 4096
)

// BadTagError reports an unrecognized operation tag byte.
type BadTagError struct {
	Tag byte
}

func (e *BadTagError) Error() string {
	return fmt.Sprintf("ops: unknown op tag 0x%02x", e.Tag)
}

// Operation is a pure byte transform, one per tag above.
type Operation interface {
	// Tag returns the one-byte wire tag.
	Tag() byte
	// Execute applies the operation to input and returns the result. It
	// never mutates input.
	Execute(input []byte) []byte
	// Serialize writes the tag and, for Append/Prepend, the payload.
	Serialize(w *codec.Writer) error
}

type unaryHash struct{ tag byte }
type reverseOp struct{}
type hexlifyOp struct{}

// Append is a binary transform: output = input ++ Payload.
type Append struct{ Payload []byte }

// Prepend is a binary transform: output = Payload ++ input.
type Prepend struct{ Payload []byte }

// SHA1 is the unary SHA-1 hash operation.
var SHA1 Operation = unaryHash{tag: TagSHA1}

// SHA256 is the unary SHA-256 hash operation.
var SHA256 Operation = unaryHash{tag: TagSHA256}

// RIPEMD160 is the unary RIPEMD-160 hash operation.
var RIPEMD160 Operation = unaryHash{tag: TagRIPEMD160}

// Reverse reverses the byte order of its input.
var Reverse Operation = reverseOp{}

// Hexlify expands its input into lowercase ASCII hex digits.
var Hexlify Operation = hexlifyOp{}

func (o unaryHash) Tag() byte { return o.tag }

func (o unaryHash) Execute(input []byte) []byte {
	switch o.tag {
	case TagSHA1:
		sum := sha1.Sum(input)
		return sum[:]
	case TagSHA256:
		sum := sha256.Sum256(input)
		return sum[:]
	case TagRIPEMD160:
		h := ripemd160.New()
		h.Write(input)
		return h.Sum(nil)
	default:
		panic(fmt.Sprintf("ops: impossible hash tag 0x%02x", o.tag))
	}
}

func (o unaryHash) Serialize(w *codec.Writer) error {
	return w.WriteByte(o.tag)
}

func (reverseOp) Tag() byte { return TagReverse }

func (reverseOp) Execute(input []byte) []byte {
	out := make([]byte, len(input))
	for i, b := range input {
		out[len(input)-1-i] = b
	}
	return out
}

func (reverseOp) Serialize(w *codec.Writer) error {
	return w.WriteByte(TagReverse)
}

func (hexlifyOp) Tag() byte { return TagHexlify }

func (hexlifyOp) Execute(input []byte) []byte {
	out := make([]byte, hex.EncodedLen(len(input)))
	hex.Encode(out, input)
	return out
}

func (hexlifyOp) Serialize(w *codec.Writer) error {
	return w.WriteByte(TagHexlify)
}

func (o Append) Tag() byte { return TagAppend }

func (o Append) Execute(input []byte) []byte {
	out := make([]byte, 0, len(input)+len(o.Payload))
	out = append(out, input...)
	out = append(out, o.Payload...)
	return out
}

func (o Append) Serialize(w *codec.Writer) error {
	if err := w.WriteByte(TagAppend); err != nil {
		return err
	}
	return w.WriteBytes(o.Payload)
}

func (o Prepend) Tag() byte { return TagPrepend }

func (o Prepend) Execute(input []byte) []byte {
	out := make([]byte, 0, len(input)+len(o.Payload))
	out = append(out, o.Payload...)
	out = append(out, input...)
	return out
}

func (o Prepend) Serialize(w *codec.Writer) error {
	if err := w.WriteByte(TagPrepend); err != nil {
		return err
	}
	return w.WriteBytes(o.Payload)
}

// Deserialize reads a tag byte and delegates to DeserializeWithTag.
func Deserialize(r *codec.Reader) (Operation, error) {
	tag, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	return DeserializeWithTag(r, tag)
}

// DeserializeWithTag reads the fields for an operation whose tag has
// already been consumed by the caller.
func DeserializeWithTag(r *codec.Reader, tag byte) (Operation, error) {
	switch tag {
	case TagSHA1:
		return SHA1, nil
	case TagSHA256:
		return SHA256, nil
	case TagRIPEMD160:
		return RIPEMD160, nil
	case TagReverse:
		return Reverse, nil
	case TagHexlify:
		return Hexlify, nil
	case TagAppend:
		payload, err := r.ReadBytes(MinPayloadLen, MaxPayloadLen)
		if err != nil {
			return nil, err
		}
		return Append{Payload: payload}, nil
	case TagPrepend:
		payload, err := r.ReadBytes(MinPayloadLen, MaxPayloadLen)
		if err != nil {
			return nil, err
		}
		return Prepend{Payload: payload}, nil
	default:
		return nil, &BadTagError{Tag: tag}
	}
}
