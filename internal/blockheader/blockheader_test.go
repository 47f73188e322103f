package blockheader

import (
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGetBlockHeaderReversesMerkleRoot(t *testing.T) {
	const hash = "0000000000000000000aaaabbbbccccddddeeeeffff1111222233334444dead"
	// merkle_root as Esplora would publish it: display (reverse) byte order.
	const displayRoot = "0102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f20"

	mux := http.NewServeMux()
	mux.HandleFunc("/block-height/800000", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(hash))
	})
	mux.HandleFunc("/block/"+hash, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"merkle_root":"` + displayRoot + `","timestamp":1700000000}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := NewEsploraClient(srv.URL)
	header, err := client.GetBlockHeader(t.Context(), 800000)
	if err != nil {
		t.Fatalf("GetBlockHeader: %v", err)
	}

	displayBytes, err := hex.DecodeString(displayRoot)
	if err != nil {
		t.Fatal(err)
	}
	var wantInternal [32]byte
	for i, b := range displayBytes {
		wantInternal[len(displayBytes)-1-i] = b
	}

	if header.MerkleRoot != wantInternal {
		t.Fatalf("MerkleRoot = %x, want reversed %x (internal byte order)", header.MerkleRoot, wantInternal)
	}
	if header.Time != 1700000000 {
		t.Fatalf("Time = %d, want 1700000000", header.Time)
	}
}

func TestGetBlockHeaderMalformedMerkleRoot(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/block-height/1", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("deadbeef"))
	})
	mux.HandleFunc("/block/deadbeef", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"merkle_root":"not-hex","timestamp":0}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := NewEsploraClient(srv.URL)
	_, err := client.GetBlockHeader(t.Context(), 1)
	if err == nil {
		t.Fatal("expected error for malformed merkle root")
	}
	if !strings.Contains(err.Error(), "malformed merkle root") {
		t.Fatalf("unexpected error: %v", err)
	}
}
