package transport

import (
	"io"
	"net"
	"os/exec"
	"testing"
	"time"
)

func TestProcessStreamRoundTrip(t *testing.T) {
	if _, err := exec.LookPath("cat"); err != nil {
		t.Skip("cat not available")
	}
	cmd := exec.Command("cat")
	stream, err := NewProcessStream(cmd, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := stream.Start(); err != nil {
		t.Fatal(err)
	}
	defer stream.Close()

	payload := []byte("hello transport\n")
	if _, err := stream.Write(payload); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, len(payload))
	if _, err := io.ReadFull(stream, buf); err != nil {
		t.Fatal(err)
	}
	if string(buf) != string(payload) {
		t.Fatalf("got %q, want %q", buf, payload)
	}
}

func TestProcessStreamCloseTerminatesProcess(t *testing.T) {
	if _, err := exec.LookPath("cat"); err != nil {
		t.Skip("cat not available")
	}
	cmd := exec.Command("cat")
	stream, err := NewProcessStream(cmd, 10*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if err := stream.Start(); err != nil {
		t.Fatal(err)
	}
	if err := stream.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestDialLocalRoundTrip(t *testing.T) {
	if _, err := exec.LookPath("cat"); err != nil {
		t.Skip("cat not available")
	}
	stream, err := DialLocal("cat")
	if err != nil {
		t.Fatal(err)
	}
	defer stream.Close()

	payload := []byte("local transport\n")
	if _, err := stream.Write(payload); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, len(payload))
	if _, err := io.ReadFull(stream, buf); err != nil {
		t.Fatal(err)
	}
	if string(buf) != string(payload) {
		t.Fatalf("got %q, want %q", buf, payload)
	}
}

func TestDialTCPRoundTrip(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer listener.Close()

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 5)
		io.ReadFull(conn, buf)
		conn.Write(buf)
	}()

	addr := listener.Addr().(*net.TCPAddr)
	stream, err := DialTCP(addr.IP.String(), uint16(addr.Port))
	if err != nil {
		t.Fatal(err)
	}
	defer stream.Close()

	if _, err := stream.Write([]byte("hello")); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 5)
	if _, err := io.ReadFull(stream, buf); err != nil {
		t.Fatal(err)
	}
	if string(buf) != "hello" {
		t.Fatalf("got %q, want %q", buf, "hello")
	}
}

func TestDialTCPDefaultPort(t *testing.T) {
	if DefaultDaemonPort != 873 {
		t.Fatalf("DefaultDaemonPort = %d, want 873", DefaultDaemonPort)
	}
}
