// Package stamp implements the stamping flow: hashing a document, mixing
// in a random nonce, and submitting the resulting commitment to one or
// more calendar servers to produce an initial, all-Pending proof tree.
package stamp

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"log/slog"

	"otsproof/internal/attestation"
	"otsproof/internal/calendar"
	"otsproof/internal/codec"
	"otsproof/internal/digest"
	"otsproof/internal/noncesource"
	"otsproof/internal/ops"
	"otsproof/internal/prooftree"
	"otsproof/internal/timestampfile"
)

// Document hashes r with digest.SHA256 and returns the resulting digest
// alongside the digest type, ready to pass to File.
func Document(r io.Reader) (digest.Type, []byte, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return 0, nil, fmt.Errorf("stamp: hash document: %w", err)
	}
	return digest.SHA256, h.Sum(nil), nil
}

// File builds a complete detached proof for startDigest: a nonce is
// appended and the result re-hashed with SHA256 to produce the commitment
// submitted to every calendar, one after another. Calendars that fail to accept
// the submission are skipped; File fails only if none accept.
func File(ctx context.Context, logger *slog.Logger, nonces noncesource.Source, client calendar.Client, calendars []string, digestType digest.Type, startDigest []byte) (*timestampfile.File, error) {
	if logger == nil {
		logger = slog.Default()
	}

	nonce, err := nonces.Bytes(noncesource.NonceLen)
	if err != nil {
		return nil, fmt.Errorf("stamp: nonce: %w", err)
	}

	appendOp := ops.Append{Payload: nonce}
	nonced := appendOp.Execute(startDigest)
	commitment := ops.SHA256.Execute(nonced)

	var commitmentArr [32]byte
	copy(commitmentArr[:], commitment)

	pendingLeaves := make([]*prooftree.Node, 0, len(calendars))
	for _, uri := range calendars {
		body, err := client.Submit(ctx, commitmentArr)
		if err != nil {
			logger.Warn("stamp: calendar submission failed, omitting", "uri", uri, "error", err)
			continue
		}
		pendingLeaves = append(pendingLeaves, submitLeaf(logger, uri, commitment, body))
	}
	if len(pendingLeaves) == 0 {
		return nil, fmt.Errorf("stamp: no calendar accepted the submission")
	}

	var tail *prooftree.Node
	if len(pendingLeaves) == 1 {
		tail = pendingLeaves[0]
	} else {
		tail = prooftree.NewForkNode(commitment, pendingLeaves...)
	}

	sha256Node := prooftree.NewOpNode(ops.SHA256, nonced, tail)
	appendNode := prooftree.NewOpNode(appendOp, startDigest, sha256Node)

	return &timestampfile.File{
		DigestType:  digestType,
		StartDigest: startDigest,
		Root:        appendNode,
	}, nil
}

// submitLeaf decodes a calendar's submit response the same way
// upgrade.Tree decodes a GetTimestamp response: the body is a tree
// encoding rooted at commitment. A calendar may return more than a bare
// Pending leaf immediately (a richer subtree, or one naming a different
// follow-up URI), so the decoded subtree is spliced in directly rather
// than assumed. Only a body that fails to decode falls back to a
// same-URI Pending leaf.
func submitLeaf(logger *slog.Logger, uri string, commitment []byte, body []byte) *prooftree.Node {
	fetched, err := prooftree.DecodeRoot(codec.NewReader(bytes.NewReader(body)), commitment)
	if err != nil {
		logger.Warn("stamp: malformed submit response, assuming bare pending", "uri", uri, "error", err)
		return prooftree.NewAttestationNode(attestation.Pending{URI: uri}, commitment)
	}
	return fetched
}
