package prooftree

import (
	"bytes"
	"errors"
	"testing"

	"otsproof/internal/attestation"
	"otsproof/internal/codec"
	"otsproof/internal/ops"
)

func encodeDecode(t *testing.T, start []byte, n *Node) *Node {
	t.Helper()
	var buf bytes.Buffer
	if err := Encode(codec.NewWriter(&buf), n); err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeRoot(codec.NewReader(&buf), start)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if err := codec.NewReader(&buf).CheckEOF(); err != nil {
		t.Fatalf("unexpected eof check failure: %v", err)
	}
	return got
}

func TestOpNodeRoundTrip(t *testing.T) {
	start := []byte("hello")
	leaf := NewAttestationNode(attestation.Pending{URI: "https://a.pool.opentimestamps.org"}, ops.SHA256.Execute(start))
	n := NewOpNode(ops.SHA256, start, leaf)

	got := encodeDecode(t, start, n)
	if got.Kind != KindOp {
		t.Fatalf("expected op node, got kind %d", got.Kind)
	}
	if !bytes.Equal(got.Output, ops.SHA256.Execute(start)) {
		t.Fatalf("output mismatch: %x", got.Output)
	}
	if got.Next[0].Kind != KindAttestation {
		t.Fatalf("expected attestation child, got kind %d", got.Next[0].Kind)
	}
}

func TestForkArityAndOrderPreserved(t *testing.T) {
	start := []byte("commitment-bytes")
	a := NewAttestationNode(attestation.Pending{URI: "https://a.pool.opentimestamps.org"}, start)
	b := NewAttestationNode(attestation.Bitcoin{Height: 700000}, start)
	c := NewAttestationNode(attestation.Pending{URI: "https://b.pool.eternitywall.com"}, start)
	fork := NewForkNode(start, a, b, c)

	got := encodeDecode(t, start, fork)
	if got.Kind != KindFork {
		t.Fatalf("expected fork, got kind %d", got.Kind)
	}
	if len(got.Next) != 3 {
		t.Fatalf("expected 3 children, got %d", len(got.Next))
	}
	if _, ok := got.Next[0].Attestation.(attestation.Pending); !ok {
		t.Fatalf("child order not preserved: child 0 is %T", got.Next[0].Attestation)
	}
	if _, ok := got.Next[1].Attestation.(attestation.Bitcoin); !ok {
		t.Fatalf("child order not preserved: child 1 is %T", got.Next[1].Attestation)
	}
}

func TestSemanticExecutionInvariant(t *testing.T) {
	start := []byte("doc-digest-32-bytes-or-not----!")
	leaf := NewAttestationNode(attestation.Bitcoin{Height: 42}, ops.Reverse.Execute(ops.SHA256.Execute(start)))
	inner := NewOpNode(ops.Reverse, ops.SHA256.Execute(start), leaf)
	root := NewOpNode(ops.SHA256, start, inner)

	if !bytes.Equal(root.Output, ops.SHA256.Execute(start)) {
		t.Fatalf("root output invariant violated")
	}
	if !bytes.Equal(root.Next[0].Output, ops.Reverse.Execute(root.Output)) {
		t.Fatalf("child output invariant violated")
	}
}

func TestStackOverflow(t *testing.T) {
	var buf bytes.Buffer
	w := codec.NewWriter(&buf)
	for i := 0; i < 257; i++ {
		if err := w.WriteByte(ops.TagReverse); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.WriteByte(0x00); err != nil {
		t.Fatal(err)
	}
	if err := (attestation.Bitcoin{Height: 1}).Serialize(w); err != nil {
		t.Fatal(err)
	}

	_, err := DecodeRoot(codec.NewReader(&buf), []byte("x"))
	if !errors.Is(err, ErrStackOverflow) {
		t.Fatalf("expected ErrStackOverflow, got %v", err)
	}
}

func TestTrailingBytesAfterTree(t *testing.T) {
	start := []byte("x")
	leaf := NewAttestationNode(attestation.Bitcoin{Height: 1}, start)

	var buf bytes.Buffer
	if err := Encode(codec.NewWriter(&buf), leaf); err != nil {
		t.Fatal(err)
	}
	buf.WriteByte(0x01)

	r := codec.NewReader(&buf)
	if _, err := DecodeRoot(r, start); err != nil {
		t.Fatalf("decode should succeed before checking eof: %v", err)
	}
	if err := r.CheckEOF(); !errors.Is(err, codec.ErrTrailingBytes) {
		t.Fatalf("expected ErrTrailingBytes, got %v", err)
	}
}
