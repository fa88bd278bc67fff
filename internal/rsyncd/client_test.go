package rsyncd

import (
	"bufio"
	"net"
	"testing"
)

func TestSelectModuleAgainstAcceptAnonymous(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer listener.Close()

	config := Config{Modules: []ModuleConfig{{Name: "pub", Path: "/srv/pub"}}}

	done := make(chan error, 1)
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			done <- err
			return
		}
		defer conn.Close()
		_, err = Accept(conn, config, nil)
		done <- err
	}()

	conn, err := net.Dial("tcp", listener.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	reader := bufio.NewReader(conn)
	writer := bufio.NewWriter(conn)
	if err := SelectModule(reader, writer, "pub", "", "", true); err != nil {
		t.Fatalf("SelectModule failed: %v", err)
	}

	// Accept proceeds into protocol.Run after this, which needs a real
	// binary handshake peer; closing here is enough to confirm the
	// line-mode preamble completed without error on the server side.
	conn.Close()
	<-done
}

func TestSelectModuleAgainstAcceptAuthenticated(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer listener.Close()

	config := Config{Modules: []ModuleConfig{{
		Name:    "secure",
		Path:    "/srv/secure",
		Secrets: map[string]string{"alice": "s3cret"},
	}}}

	done := make(chan error, 1)
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			done <- err
			return
		}
		defer conn.Close()
		_, err = Accept(conn, config, nil)
		done <- err
	}()

	conn, err := net.Dial("tcp", listener.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	reader := bufio.NewReader(conn)
	writer := bufio.NewWriter(conn)
	if err := SelectModule(reader, writer, "secure", "alice", "s3cret", true); err != nil {
		t.Fatalf("SelectModule failed: %v", err)
	}
	conn.Close()
	<-done
}

func TestSelectModuleAgainstAcceptRejectsPushToReadOnlyModule(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer listener.Close()

	config := Config{Modules: []ModuleConfig{{Name: "pub", Path: "/srv/pub", ReadOnly: true}}}

	done := make(chan error, 1)
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			done <- err
			return
		}
		defer conn.Close()
		_, err = Accept(conn, config, nil)
		done <- err
	}()

	conn, err := net.Dial("tcp", listener.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	reader := bufio.NewReader(conn)
	writer := bufio.NewWriter(conn)
	if err := SelectModule(reader, writer, "pub", "", "", true); err == nil {
		t.Fatal("expected a push against a read-only module to be rejected")
	}

	serverErr := <-done
	if serverErr == nil {
		t.Fatal("expected Accept to reject the push with an error")
	}
}
