package protocol

import (
	"bufio"
	"bytes"
	"sync"
	"testing"

	"github.com/synctree/rsyncd/pkg/checksum"
)

// halfDuplex is one direction of an in-memory byte stream; a pair of them
// connects a client and server's bufio readers/writers, simulating a
// full-duplex byte stream without a real socket.
type halfDuplex struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (h *halfDuplex) Write(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.buf.Write(p)
}

func (h *halfDuplex) Read(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.buf.Read(p)
}

func TestHandshakeRoundTrip(t *testing.T) {
	clientToServer := &halfDuplex{}
	serverToClient := &halfDuplex{}

	clientR := bufio.NewReader(serverToClient)
	clientW := bufio.NewWriter(clientToServer)
	serverR := bufio.NewReader(clientToServer)
	serverW := bufio.NewWriter(serverToClient)

	done := make(chan *Session, 1)
	errs := make(chan error, 2)

	go func() {
		session, err := Run(clientR, clientW, Options{
			LocalMaxVersion: MaxVersion,
			IsSender:        true,
			EntropySeed:     bytes.NewReader([]byte{1, 2, 3, 4}),
		})
		if err != nil {
			errs <- err
			return
		}
		done <- session
	}()

	serverSession, err := Run(serverR, serverW, Options{
		LocalMaxVersion: MaxVersion,
		IsSender:        false,
	})
	if err != nil {
		t.Fatalf("server handshake failed: %v", err)
	}

	select {
	case err := <-errs:
		t.Fatalf("client handshake failed: %v", err)
	case clientSession := <-done:
		if clientSession.Version != serverSession.Version {
			t.Fatalf("version mismatch: client=%d server=%d", clientSession.Version, serverSession.Version)
		}
		if clientSession.Seed != serverSession.Seed {
			t.Fatalf("seed mismatch: client=%d server=%d", clientSession.Seed, serverSession.Seed)
		}
		if clientSession.CompatFlags != serverSession.CompatFlags {
			t.Fatalf("compat flag mismatch: client=%#x server=%#x", clientSession.CompatFlags, serverSession.CompatFlags)
		}
		if clientSession.ChecksumAlgo != serverSession.ChecksumAlgo {
			t.Fatalf("checksum algorithm mismatch: client=%s server=%s", clientSession.ChecksumAlgo, serverSession.ChecksumAlgo)
		}
	}
}

func TestNegotiateVersionClampsToMax(t *testing.T) {
	var a, b bytes.Buffer
	wA := bufio.NewWriter(&a)
	rA := bufio.NewReader(&b)
	wB := bufio.NewWriter(&b)
	rB := bufio.NewReader(&a)

	peerErrs := make(chan error, 1)
	go func() {
		_, err := NegotiateVersion(rB, wB, 200)
		peerErrs <- err
	}()

	version, err := NegotiateVersion(rA, wA, MaxVersion)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if version != MaxVersion {
		t.Fatalf("expected clamped version %d, got %d", MaxVersion, version)
	}
	if err := <-peerErrs; err != nil {
		t.Fatalf("peer unexpected error: %v", err)
	}
}

func TestChecksumAlgorithmNegotiationPicksFirstMutual(t *testing.T) {
	var a, b bytes.Buffer
	wA := bufio.NewWriter(&a)
	rA := bufio.NewReader(&b)
	wB := bufio.NewWriter(&b)
	rB := bufio.NewReader(&a)

	result := make(chan checksum.Algorithm, 1)
	go func() {
		algo, _ := NegotiateChecksumAlgorithm(rB, wB, 32, []checksum.Algorithm{checksum.MD5, checksum.XXH3})
		result <- algo
	}()

	algo, err := NegotiateChecksumAlgorithm(rA, wA, 32, []checksum.Algorithm{checksum.XXH3, checksum.MD5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if algo != checksum.XXH3 {
		t.Fatalf("expected XXH3, got %s", algo)
	}
	if got := <-result; got != checksum.MD5 {
		t.Fatalf("expected peer to resolve MD5 (its own first preference present in remote list), got %s", got)
	}
}
