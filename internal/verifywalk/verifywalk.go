// Package verifywalk implements the verification walk: locate a Bitcoin
// attestation in a proof tree and compare its implied Merkle root against
// an externally obtained block header.
package verifywalk

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"otsproof/internal/attestation"
	"otsproof/internal/blockheader"
	"otsproof/internal/prooftree"
)

// ErrNoBitcoinAttestation is returned when the tree contains no Bitcoin
// attestation leaf at all.
var ErrNoBitcoinAttestation = errors.New("verifywalk: no bitcoin attestation in tree")

// VerificationError reports a failed verification at a specific height:
// a Merkle root mismatch, or a block header that could not be fetched.
type VerificationError struct {
	Height uint32
	Reason string
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("verifywalk: verification failed at height %d: %s", e.Height, e.Reason)
}

// Result describes a successful verification.
type Result struct {
	Height    uint32
	BlockTime uint32
}

// Tree walks root depth-first, first child first, stopping at the first
// Bitcoin attestation leaf whose Output is at least 32 bytes, and checks
// its candidate Merkle root against verifier.
func Tree(ctx context.Context, verifier blockheader.Verifier, root *prooftree.Node) (*Result, error) {
	leaf := findBitcoinLeaf(root)
	if leaf == nil {
		return nil, ErrNoBitcoinAttestation
	}
	height := leaf.Attestation.(attestation.Bitcoin).Height

	candidateRoot := leaf.Output[:32]

	header, err := verifier.GetBlockHeader(ctx, uint32(height))
	if err != nil {
		return nil, &VerificationError{Height: uint32(height), Reason: fmt.Sprintf("fetch header: %v", err)}
	}

	if !bytes.Equal(candidateRoot, header.MerkleRoot[:]) {
		return nil, &VerificationError{Height: uint32(height), Reason: "merkle root mismatch"}
	}

	return &Result{Height: uint32(height), BlockTime: header.Time}, nil
}

// findBitcoinLeaf returns the first node, in depth-first first-child-first
// order, whose data is a Bitcoin attestation with a 32-byte-or-longer
// output. Shorter-output Bitcoin leaves are skipped, per spec.
func findBitcoinLeaf(n *prooftree.Node) *prooftree.Node {
	if n.Kind == prooftree.KindAttestation {
		if b, ok := n.Attestation.(attestation.Bitcoin); ok && len(n.Output) >= 32 {
			_ = b
			return n
		}
		return nil
	}
	for _, child := range n.Next {
		if found := findBitcoinLeaf(child); found != nil {
			return found
		}
	}
	return nil
}
