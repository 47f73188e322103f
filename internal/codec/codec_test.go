package codec

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestVarintZero(t *testing.T) {
	var buf bytes.Buffer
	if err := NewWriter(&buf).WriteUint(0); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), []byte{0x00}) {
		t.Fatalf("expected single 0x00 byte, got %x", buf.Bytes())
	}

	v, err := NewReader(&buf).ReadUint()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if v != 0 {
		t.Fatalf("expected 0, got %d", v)
	}
}

func TestVarintBoundaries(t *testing.T) {
	cases := []struct {
		val  uint64
		want []byte
	}{
		{127, []byte{0x7f}},
		{128, []byte{0x80, 0x01}},
		{16384, []byte{0x80, 0x80, 0x01}},
	}

	for _, c := range cases {
		var buf bytes.Buffer
		if err := NewWriter(&buf).WriteUint(c.val); err != nil {
			t.Fatalf("write %d: %v", c.val, err)
		}
		if !bytes.Equal(buf.Bytes(), c.want) {
			t.Fatalf("value %d: expected %x, got %x", c.val, c.want, buf.Bytes())
		}

		got, err := NewReader(&buf).ReadUint()
		if err != nil {
			t.Fatalf("read %d: %v", c.val, err)
		}
		if got != c.val {
			t.Fatalf("round trip %d: got %d", c.val, got)
		}
	}
}

func TestReadBytesLengthBounds(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.WriteBytes([]byte("hello world this is too long")); err != nil {
		t.Fatal(err)
	}

	_, err := NewReader(&buf).ReadBytes(0, 5)
	var bl *BadLengthError
	if !errors.As(err, &bl) {
		t.Fatalf("expected *BadLengthError, got %v", err)
	}
}

func TestMagicAndVersion(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.WriteMagic(); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteVersion(); err != nil {
		t.Fatal(err)
	}

	r := NewReader(&buf)
	if err := r.ReadMagic(); err != nil {
		t.Fatalf("read magic: %v", err)
	}
	if err := r.ReadVersion(); err != nil {
		t.Fatalf("read version: %v", err)
	}
	if err := r.CheckEOF(); err != nil {
		t.Fatalf("expected clean eof, got %v", err)
	}
}

func TestBadMagic(t *testing.T) {
	corrupt := append([]byte(nil), Magic...)
	corrupt[len(corrupt)-1] = 0x95

	r := NewReader(bytes.NewReader(corrupt))
	err := r.ReadMagic()
	var bm *BadMagicError
	if !errors.As(err, &bm) {
		t.Fatalf("expected *BadMagicError, got %v", err)
	}
	if len(bm.Got) != len(Magic) {
		t.Fatalf("expected %d received bytes, got %d", len(Magic), len(bm.Got))
	}
}

func TestBadVersion(t *testing.T) {
	var buf bytes.Buffer
	_ = NewWriter(&buf).WriteUint(2)

	err := NewReader(&buf).ReadVersion()
	var bv *BadVersionError
	if !errors.As(err, &bv) {
		t.Fatalf("expected *BadVersionError, got %v", err)
	}
}

func TestTrailingBytes(t *testing.T) {
	buf := bytes.NewReader([]byte{0x01, 0x02})
	r := NewReader(buf)
	if _, err := r.ReadByte(); err != nil {
		t.Fatal(err)
	}
	if err := r.CheckEOF(); !errors.Is(err, ErrTrailingBytes) {
		t.Fatalf("expected ErrTrailingBytes, got %v", err)
	}
}

func TestReadFixedShortRead(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{0x01, 0x02}))
	if _, err := r.ReadFixed(10); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected ErrUnexpectedEOF, got %v", err)
	}
}
