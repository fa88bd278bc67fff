package protocol

import "testing"

func TestConnectionSessionHappyPath(t *testing.T) {
	s := NewConnectionSession()
	if err := s.EnterModuleSelect(31); err != nil {
		t.Fatal(err)
	}
	if err := s.EnterAuthenticating("data", []byte("challenge")); err != nil {
		t.Fatal(err)
	}
	if err := s.EnterTransferring("", true); err != nil {
		t.Fatal(err)
	}
	if s.Module != "data" {
		t.Fatalf("expected module to persist from authenticating, got %q", s.Module)
	}
	if err := s.EnterClosing("transfer complete"); err != nil {
		t.Fatal(err)
	}
	if err := s.EnterClosed(); err != nil {
		t.Fatal(err)
	}
	if s.State != StateClosed {
		t.Fatalf("expected Closed, got %s", s.State)
	}
}

func TestConnectionSessionAnonymousModuleSkipsAuth(t *testing.T) {
	s := NewConnectionSession()
	if err := s.EnterModuleSelect(31); err != nil {
		t.Fatal(err)
	}
	if err := s.EnterTransferring("anon", false); err != nil {
		t.Fatal(err)
	}
	if s.State != StateTransferring {
		t.Fatalf("expected Transferring, got %s", s.State)
	}
}

func TestConnectionSessionRejectsInvalidTransition(t *testing.T) {
	s := NewConnectionSession()
	if err := s.EnterTransferring("data", true); err == nil {
		t.Fatal("expected an error skipping straight to Transferring from AwaitingGreeting")
	}
}

func TestConnectionSessionClosingFromAnyState(t *testing.T) {
	s := NewConnectionSession()
	if err := s.EnterClosing("client disconnected"); err != nil {
		t.Fatal(err)
	}
	if s.CloseReason != "client disconnected" {
		t.Fatalf("unexpected close reason: %q", s.CloseReason)
	}
}
