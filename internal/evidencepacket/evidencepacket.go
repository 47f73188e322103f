// Package evidencepacket exports a verified proof as a self-contained
// JSON document: the document digest, the digest algorithm, the Bitcoin
// height and block time a verification located, and any calendar URIs
// still pending. Every export is validated against an embedded JSON
// Schema before being written.
package evidencepacket

import (
	"bytes"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"otsproof/internal/attestation"
	"otsproof/internal/prooftree"
	"otsproof/internal/timestampfile"
	"otsproof/internal/verifywalk"
)

//go:embed schema.json
var schemaJSON []byte

const schemaResourceName = "evidencepacket-v1.schema.json"

// Packet is the exported evidence for one detached proof.
type Packet struct {
	Version         int      `json:"version"`
	DigestAlgorithm string   `json:"digest_algorithm"`
	DigestHex       string   `json:"digest_hex"`
	Verified        bool     `json:"verified"`
	BitcoinHeight   uint32   `json:"bitcoin_height,omitempty"`
	BlockTimeUnix   uint32   `json:"block_time_unix,omitempty"`
	PendingURIs     []string `json:"pending_calendar_uris,omitempty"`
}

// Build assembles a Packet from a detached proof file and, when present,
// the result of a verification walk over it.
func Build(file *timestampfile.File, result *verifywalk.Result) *Packet {
	p := &Packet{
		Version:         1,
		DigestAlgorithm: file.DigestType.String(),
		DigestHex:       hex.EncodeToString(file.StartDigest),
		PendingURIs:     pendingURIs(file.Root),
	}
	if result != nil {
		p.Verified = true
		p.BitcoinHeight = result.Height
		p.BlockTimeUnix = result.BlockTime
	}
	return p
}

// pendingURIs collects every Pending attestation leaf's URI still
// outstanding in the tree, depth-first.
func pendingURIs(n *prooftree.Node) []string {
	if n == nil {
		return nil
	}
	var uris []string
	if n.Kind == prooftree.KindAttestation {
		if pending, ok := n.Attestation.(attestation.Pending); ok {
			uris = append(uris, pending.URI)
		}
		return uris
	}
	for _, child := range n.Next {
		uris = append(uris, pendingURIs(child)...)
	}
	return uris
}

// Validate checks p against the embedded evidence-packet schema.
func Validate(p *Packet) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("evidencepacket: marshal: %w", err)
	}

	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return fmt.Errorf("evidencepacket: unmarshal instance: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaResourceName, bytes.NewReader(schemaJSON)); err != nil {
		return fmt.Errorf("evidencepacket: add schema resource: %w", err)
	}
	schema, err := compiler.Compile(schemaResourceName)
	if err != nil {
		return fmt.Errorf("evidencepacket: compile schema: %w", err)
	}

	if err := schema.Validate(instance); err != nil {
		return fmt.Errorf("evidencepacket: validation failed: %w", err)
	}
	return nil
}

// WriteTo marshals p as indented JSON, validating first.
func WriteTo(w io.Writer, p *Packet) error {
	if err := Validate(p); err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(p)
}
