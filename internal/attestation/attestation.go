// Package attestation implements the three-variant attestation leaf of a
// proof tree: a Bitcoin block-height claim, a pending calendar URI, or an
// opaque tag preserved for forward compatibility.
package attestation

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"otsproof/internal/codec"
)

// TagLen is the fixed width of an attestation's wire tag.
const TagLen = 8

// MaxURILen bounds a Pending attestation's URI.
const MaxURILen = 1000

// bitcoinTag and pendingTag are the two well-known 8-byte attestation tags.
var (
	bitcoinTag = [TagLen]byte{0x05, 0x88, 0x96, 0x0d, 0x73, 0xd7, 0x19, 0x01}
	pendingTag = [TagLen]byte{0x83, 0xdf, 0xe3, 0x0d, 0x2e, 0xf9, 0x0c, 0x8e}
)

// uriCharOK reports whether r is in the whitelist a Pending URI's characters
// must stay within.
func uriCharOK(r rune) bool {
	switch {
	case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		return true
	case r == '.' || r == '_' || r == '-' || r == '/' || r == ':':
		return true
	default:
		return false
	}
}

// InvalidURICharError reports a Pending URI containing a disallowed rune.
type InvalidURICharError struct {
	Char rune
}

func (e *InvalidURICharError) Error() string {
	return fmt.Sprintf("attestation: invalid uri character %q", e.Char)
}

// Attestation is the closed sum type of the three leaf variants.
type Attestation interface {
	// Serialize writes the 8-byte tag followed by the variant's payload.
	Serialize(w *codec.Writer) error
	isAttestation()
}

// Bitcoin claims the commitment was included in the Bitcoin block at Height.
type Bitcoin struct {
	Height uint64
}

// Pending claims the commitment was submitted to a calendar server and
// will become a Bitcoin attestation once anchored.
type Pending struct {
	URI string
}

// Unknown preserves any attestation tag this implementation does not
// recognize, verbatim, for forward compatibility.
type Unknown struct {
	Tag  [TagLen]byte
	Data []byte
}

func (Bitcoin) isAttestation() {}
func (Pending) isAttestation() {}
func (Unknown) isAttestation() {}

// Serialize writes the Bitcoin tag followed by a length-prefixed nested
// blob containing the varint-encoded height.
func (b Bitcoin) Serialize(w *codec.Writer) error {
	if err := w.WriteFixed(bitcoinTag[:]); err != nil {
		return err
	}
	var inner bytes.Buffer
	if err := codec.NewWriter(&inner).WriteUint(b.Height); err != nil {
		return err
	}
	return w.WriteBytes(inner.Bytes())
}

// Serialize writes the Pending tag followed by a length-prefixed nested
// blob containing the URI bytes.
func (p Pending) Serialize(w *codec.Writer) error {
	if err := w.WriteFixed(pendingTag[:]); err != nil {
		return err
	}
	var inner bytes.Buffer
	if err := codec.NewWriter(&inner).WriteBytes([]byte(p.URI)); err != nil {
		return err
	}
	return w.WriteBytes(inner.Bytes())
}

// Serialize writes the preserved tag followed by the stored data as a
// length-prefixed blob.
func (u Unknown) Serialize(w *codec.Writer) error {
	if err := w.WriteFixed(u.Tag[:]); err != nil {
		return err
	}
	return w.WriteBytes(u.Data)
}

// Deserialize reads an 8-byte tag and an outer varint length, then
// dispatches on the tag. The outer length bounds only the Unknown case;
// Bitcoin and Pending read their own inner framing.
func Deserialize(r *codec.Reader) (Attestation, error) {
	rawTag, err := r.ReadFixed(TagLen)
	if err != nil {
		return nil, err
	}
	var tag [TagLen]byte
	copy(tag[:], rawTag)

	outerLen, err := r.ReadUint()
	if err != nil {
		return nil, err
	}

	switch tag {
	case bitcoinTag:
		// outerLen is the nested blob's declared length; per spec.md's
		// Open Question, the height is decoded by continuing to read
		// from the main stream rather than from a sub-buffer bounded to
		// outerLen, so a mismatching outer length surfaces only as
		// TrailingBytes at the top level, never here.
		height, err := r.ReadUint()
		if err != nil {
			return nil, err
		}
		return Bitcoin{Height: height}, nil
	case pendingTag:
		uriBytes, err := r.ReadBytes(0, MaxURILen)
		if err != nil {
			return nil, err
		}
		if !utf8.Valid(uriBytes) {
			return nil, fmt.Errorf("attestation: %w", errInvalidUTF8)
		}
		for _, ch := range string(uriBytes) {
			if !uriCharOK(ch) {
				return nil, &InvalidURICharError{Char: ch}
			}
		}
		return Pending{URI: string(uriBytes)}, nil
	default:
		data, err := r.ReadFixed(int(outerLen))
		if err != nil {
			return nil, err
		}
		return Unknown{Tag: tag, Data: data}, nil
	}
}

var errInvalidUTF8 = fmt.Errorf("non-utf8 uri")
