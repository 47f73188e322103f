// Package timestampfile implements the on-disk detached proof container:
// magic, version, digest type, starting digest, and the recursively
// encoded proof tree.
package timestampfile

import (
	"io"

	"otsproof/internal/codec"
	"otsproof/internal/digest"
	"otsproof/internal/prooftree"
)

// File is a complete detached proof: the algorithm and value of the
// document digest the tree's root step was built from, and the tree
// itself.
type File struct {
	DigestType  digest.Type
	StartDigest []byte
	Root        *prooftree.Node
}

// ReadFrom decodes a complete detached proof file, failing on any
// trailing byte after the tree.
func ReadFrom(r io.Reader) (*File, error) {
	dr := codec.NewReader(r)

	if err := dr.ReadMagic(); err != nil {
		return nil, err
	}
	if err := dr.ReadVersion(); err != nil {
		return nil, err
	}

	tagByte, err := dr.ReadByte()
	if err != nil {
		return nil, err
	}
	digestType, err := digest.FromTag(tagByte)
	if err != nil {
		return nil, err
	}

	startDigest, err := dr.ReadFixed(digestType.Len())
	if err != nil {
		return nil, err
	}

	root, err := prooftree.DecodeRoot(dr, startDigest)
	if err != nil {
		return nil, err
	}

	if err := dr.CheckEOF(); err != nil {
		return nil, err
	}

	return &File{DigestType: digestType, StartDigest: startDigest, Root: root}, nil
}

// WriteTo encodes f as a complete detached proof file.
func (f *File) WriteTo(w io.Writer) error {
	dw := codec.NewWriter(w)

	if err := dw.WriteMagic(); err != nil {
		return err
	}
	if err := dw.WriteVersion(); err != nil {
		return err
	}
	if err := dw.WriteByte(f.DigestType.Tag()); err != nil {
		return err
	}
	if err := dw.WriteFixed(f.StartDigest); err != nil {
		return err
	}
	return prooftree.Encode(dw, f.Root)
}
