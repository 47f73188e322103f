// Package upgrade implements merge semantics: replacing a proof tree's
// Pending attestation leaves with subtrees fetched from their calendar
// servers, in place, preserving every node's Output.
package upgrade

import (
	"bytes"
	"context"
	"errors"
	"log/slog"

	"otsproof/internal/attestation"
	"otsproof/internal/calendar"
	"otsproof/internal/codec"
	"otsproof/internal/prooftree"
)

// Tree upgrades every reachable Pending leaf in root by requesting its
// commitment from client. It returns true iff at least one leaf was
// replaced. Calendar failures (unreachable, non-404 4xx, malformed
// response) are logged and leave the affected leaf untouched; the walk
// never fails as a whole.
func Tree(ctx context.Context, logger *slog.Logger, client calendar.Client, root *prooftree.Node) (bool, error) {
	if logger == nil {
		logger = slog.Default()
	}
	return walk(ctx, logger, client, root)
}

func walk(ctx context.Context, logger *slog.Logger, client calendar.Client, n *prooftree.Node) (bool, error) {
	switch n.Kind {
	case prooftree.KindAttestation:
		pending, ok := n.Attestation.(attestation.Pending)
		if !ok {
			return false, nil
		}
		return tryUpgradeLeaf(ctx, logger, client, n, pending)

	case prooftree.KindFork, prooftree.KindOp:
		changed := false
		for _, child := range n.Next {
			childChanged, err := walk(ctx, logger, client, child)
			if err != nil {
				return changed, err
			}
			changed = changed || childChanged
		}
		return changed, nil

	default:
		return false, nil
	}
}

func tryUpgradeLeaf(ctx context.Context, logger *slog.Logger, client calendar.Client, leaf *prooftree.Node, pending attestation.Pending) (bool, error) {
	var commitment [32]byte
	if len(leaf.Output) != len(commitment) {
		// Not a 32-byte commitment at this leaf (a non-SHA256 digest path
		// fed straight to an attestation): nothing to poll for by hash.
		return false, nil
	}
	copy(commitment[:], leaf.Output)

	body, err := client.GetTimestamp(ctx, pending.URI, commitment)
	if err != nil {
		if errors.Is(err, calendar.ErrStillPending) {
			return false, nil
		}
		logger.Warn("upgrade: calendar request failed, leaving pending",
			"uri", pending.URI, "error", err)
		return false, nil
	}

	fetched, err := prooftree.DecodeRoot(codec.NewReader(bytes.NewReader(body)), leaf.Output)
	if err != nil {
		logger.Warn("upgrade: malformed calendar response, leaving pending",
			"uri", pending.URI, "error", err)
		return false, nil
	}

	leaf.Kind = fetched.Kind
	leaf.Op = fetched.Op
	leaf.Attestation = fetched.Attestation
	leaf.Next = fetched.Next
	// leaf.Output is left untouched: the fetched subtree is rooted at the
	// same commitment this leaf already asserted.
	return true, nil
}
