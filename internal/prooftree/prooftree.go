// Package prooftree implements the recursive proof-tree data model: nodes
// are an operation, a fork, or an attestation leaf, where each node's
// output derives from its parent's output by the node's data.
package prooftree

import (
	"fmt"

	"otsproof/internal/attestation"
	"otsproof/internal/codec"
	"otsproof/internal/ops"
)

// MaxDepth bounds the root-to-leaf node count a decoded tree may have.
const MaxDepth = 256

// forkTag precedes every fork child except the last.
const forkTag byte = 0xff

// attestationTag opens an attestation leaf.
const attestationTag byte = 0x00

// ErrStackOverflow is returned when decoding exceeds MaxDepth.
var ErrStackOverflow = fmt.Errorf("prooftree: tree depth exceeds %d", MaxDepth)

// Kind distinguishes the three node variants.
type Kind int

const (
	KindOp Kind = iota
	KindFork
	KindAttestation
)

// Node is one element of a proof tree. Exactly one of the Op/Attestation
// fields is meaningful, selected by Kind; Fork nodes use neither.
type Node struct {
	Kind        Kind
	Op          ops.Operation
	Attestation attestation.Attestation
	Output      []byte
	Next        []*Node
}

// NewOpNode builds an Op node, computing Output from input via op.
func NewOpNode(op ops.Operation, input []byte, child *Node) *Node {
	return &Node{
		Kind:   KindOp,
		Op:     op,
		Output: op.Execute(input),
		Next:   []*Node{child},
	}
}

// NewForkNode builds a Fork node over children that all share input.
func NewForkNode(input []byte, children ...*Node) *Node {
	return &Node{
		Kind:   KindFork,
		Output: input,
		Next:   children,
	}
}

// NewAttestationNode builds an attestation leaf asserting input existed.
func NewAttestationNode(a attestation.Attestation, input []byte) *Node {
	return &Node{
		Kind:        KindAttestation,
		Attestation: a,
		Output:      input,
	}
}

// Decode reads one node from r given its input digest. startTag, when
// non-nil, supplies a tag byte already consumed by the caller (used by the
// fork loop to hand off its final child's lookahead byte) instead of
// reading a fresh one. depthBudget must be MaxDepth at the top level.
func Decode(r *codec.Reader, input []byte, startTag *byte, depthBudget int) (*Node, error) {
	depthBudget--
	if depthBudget < 0 {
		return nil, ErrStackOverflow
	}

	var tag byte
	var err error
	if startTag != nil {
		tag = *startTag
	} else {
		tag, err = r.ReadByte()
		if err != nil {
			return nil, err
		}
	}

	switch tag {
	case attestationTag:
		a, err := attestation.Deserialize(r)
		if err != nil {
			return nil, err
		}
		return &Node{Kind: KindAttestation, Attestation: a, Output: input}, nil

	case forkTag:
		var children []*Node
		for {
			child, err := Decode(r, input, nil, depthBudget)
			if err != nil {
				return nil, err
			}
			children = append(children, child)

			next, err := r.ReadByte()
			if err != nil {
				return nil, err
			}
			if next != forkTag {
				last, err := Decode(r, input, &next, depthBudget)
				if err != nil {
					return nil, err
				}
				children = append(children, last)
				break
			}
		}
		return &Node{Kind: KindFork, Output: input, Next: children}, nil

	default:
		op, err := ops.DeserializeWithTag(r, tag)
		if err != nil {
			return nil, err
		}
		output := op.Execute(input)
		child, err := Decode(r, output, nil, depthBudget)
		if err != nil {
			return nil, err
		}
		return &Node{Kind: KindOp, Op: op, Output: output, Next: []*Node{child}}, nil
	}
}

// DecodeRoot starts recursion at the top of a tree with a fresh depth
// budget.
func DecodeRoot(r *codec.Reader, startDigest []byte) (*Node, error) {
	return Decode(r, startDigest, nil, MaxDepth)
}

// Encode writes n in the mirror of Decode: attestation leaves emit 0x00
// then the attestation; ops emit their tag then recurse; fork children are
// separated by 0xff before each child except the last.
func Encode(w *codec.Writer, n *Node) error {
	switch n.Kind {
	case KindAttestation:
		if err := w.WriteByte(attestationTag); err != nil {
			return err
		}
		return n.Attestation.Serialize(w)

	case KindFork:
		if len(n.Next) < 2 {
			return fmt.Errorf("prooftree: fork node has %d children, want >= 2", len(n.Next))
		}
		for i, child := range n.Next {
			if i < len(n.Next)-1 {
				if err := w.WriteByte(forkTag); err != nil {
					return err
				}
			}
			if err := Encode(w, child); err != nil {
				return err
			}
		}
		return nil

	case KindOp:
		if err := n.Op.Serialize(w); err != nil {
			return err
		}
		if len(n.Next) != 1 {
			return fmt.Errorf("prooftree: op node has %d children, want 1", len(n.Next))
		}
		return Encode(w, n.Next[0])

	default:
		return fmt.Errorf("prooftree: unknown node kind %d", n.Kind)
	}
}
