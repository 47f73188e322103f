package evidencepacket

import (
	"bytes"
	"strings"
	"testing"

	"otsproof/internal/attestation"
	"otsproof/internal/digest"
	"otsproof/internal/ops"
	"otsproof/internal/prooftree"
	"otsproof/internal/timestampfile"
	"otsproof/internal/verifywalk"
)

func singleCalendarFile(uri string) *timestampfile.File {
	startDigest := bytes.Repeat([]byte{0xab}, 32)
	leaf := prooftree.NewAttestationNode(attestation.Pending{URI: uri}, startDigest)
	root := prooftree.NewOpNode(ops.SHA256, startDigest, leaf)

	return &timestampfile.File{
		DigestType:  digest.SHA256,
		StartDigest: startDigest,
		Root:        root,
	}
}

func TestBuildUnverifiedWithPendingURI(t *testing.T) {
	file := singleCalendarFile("https://a.pool.opentimestamps.org")

	p := Build(file, nil)
	if p.Verified {
		t.Error("expected Verified false without a verifywalk result")
	}
	if len(p.PendingURIs) != 1 || p.PendingURIs[0] != "https://a.pool.opentimestamps.org" {
		t.Errorf("expected one pending URI, got %v", p.PendingURIs)
	}
	if p.DigestAlgorithm != "sha256" {
		t.Errorf("expected digest algorithm sha256, got %s", p.DigestAlgorithm)
	}
}

func TestBuildVerified(t *testing.T) {
	file := singleCalendarFile("https://a.pool.opentimestamps.org")
	result := &verifywalk.Result{Height: 800000, BlockTime: 1700000000}

	p := Build(file, result)
	if !p.Verified {
		t.Error("expected Verified true with a verifywalk result")
	}
	if p.BitcoinHeight != 800000 {
		t.Errorf("expected height 800000, got %d", p.BitcoinHeight)
	}
	if p.BlockTimeUnix != 1700000000 {
		t.Errorf("expected block time 1700000000, got %d", p.BlockTimeUnix)
	}
}

func TestValidatePasses(t *testing.T) {
	file := singleCalendarFile("https://a.pool.opentimestamps.org")
	p := Build(file, nil)

	if err := Validate(p); err != nil {
		t.Errorf("expected valid packet, got %v", err)
	}
}

func TestWriteToProducesValidJSON(t *testing.T) {
	file := singleCalendarFile("https://a.pool.opentimestamps.org")
	p := Build(file, &verifywalk.Result{Height: 123, BlockTime: 456})

	var buf bytes.Buffer
	if err := WriteTo(&buf, p); err != nil {
		t.Fatalf("WriteTo failed: %v", err)
	}
	if !strings.Contains(buf.String(), `"bitcoin_height": 123`) {
		t.Errorf("expected output to contain bitcoin_height, got %s", buf.String())
	}
}
