// Package noncesource supplies the random nonce a stamping flow mixes into
// a document digest before submission, preferring a hardware TPM's RNG and
// falling back to crypto/rand when no TPM is present.
package noncesource

import (
	"crypto/rand"
	"fmt"
	"os"
	"sync"

	"github.com/google/go-tpm/tpm2"
	"github.com/google/go-tpm/tpm2/transport"
)

// NonceLen is the width of a stamping nonce.
const NonceLen = 16

// Source produces random nonce bytes.
type Source interface {
	// Available reports whether this source can currently serve Bytes.
	Available() bool
	// Bytes returns n cryptographically random bytes.
	Bytes(n int) ([]byte, error)
	Close() error
}

// softwareSource wraps crypto/rand.
type softwareSource struct{}

func (softwareSource) Available() bool { return true }

func (softwareSource) Bytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("noncesource: crypto/rand: %w", err)
	}
	return buf, nil
}

func (softwareSource) Close() error { return nil }

// tpmDevicePaths mirrors the common Linux TPM resource-manager locations.
var tpmDevicePaths = []string{"/dev/tpmrm0", "/dev/tpm0"}

// tpmSource draws randomness from a hardware TPM 2.0 device via TPM2_GetRandom.
type tpmSource struct {
	mu   sync.Mutex
	path string
	t    transport.TPM
}

func detectTPM() *tpmSource {
	for _, path := range tpmDevicePaths {
		if _, err := os.Stat(path); err == nil {
			return &tpmSource{path: path}
		}
	}
	return nil
}

func (s *tpmSource) Available() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

func (s *tpmSource) open() error {
	if s.t != nil {
		return nil
	}
	t, err := transport.OpenTPM(s.path)
	if err != nil {
		return fmt.Errorf("noncesource: open %s: %w", s.path, err)
	}
	s.t = t
	return nil
}

// Bytes requests n random bytes from the TPM, issuing TPM2_GetRandom in
// 32-byte chunks since most devices cap a single request's size.
func (s *tpmSource) Bytes(n int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.open(); err != nil {
		return nil, err
	}

	const chunk = 32
	out := make([]byte, 0, n)
	for len(out) < n {
		want := n - len(out)
		if want > chunk {
			want = chunk
		}
		cmd := tpm2.GetRandom{BytesRequested: uint16(want)}
		rsp, err := cmd.Execute(s.t)
		if err != nil {
			return nil, fmt.Errorf("noncesource: TPM2_GetRandom: %w", err)
		}
		out = append(out, rsp.RandomBytes.Buffer...)
	}
	return out[:n], nil
}

func (s *tpmSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.t == nil {
		return nil
	}
	err := s.t.Close()
	s.t = nil
	return err
}

// New returns the hardware TPM source when one is present and reachable,
// otherwise crypto/rand.
func New() Source {
	if s := detectTPM(); s != nil {
		if err := s.open(); err == nil {
			return s
		}
	}
	return softwareSource{}
}
