package protocol

import (
	"github.com/pkg/errors"

	"github.com/synctree/rsyncd/internal/errkind"
)

// ConnectionState identifies where a daemon session sits in the greeting/
// module-select/authenticate/transfer lifecycle (spec.md 3). Transitions
// are explicit and validated by Transition; an invalid transition is a
// protocol error, not a panic, since a misbehaving peer can trigger one.
type ConnectionState int

// Daemon connection states.
const (
	StateAwaitingGreeting ConnectionState = iota
	StateModuleSelect
	StateAuthenticating
	StateTransferring
	StateClosing
	StateClosed
)

// String renders a human-readable state name.
func (s ConnectionState) String() string {
	switch s {
	case StateAwaitingGreeting:
		return "awaiting-greeting"
	case StateModuleSelect:
		return "module-select"
	case StateAuthenticating:
		return "authenticating"
	case StateTransferring:
		return "transferring"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// validTransitions enumerates the edges of the state machine named in
// spec.md 3: AwaitingGreeting -> ModuleSelect{version} -> Authenticating{
// module, challenge} -> Transferring{module, is_sender} -> Closing{reason}
// -> Closed. Authentication is optional (anonymous modules skip straight
// from ModuleSelect to Transferring), and any state may transition directly
// to Closing on error.
var validTransitions = map[ConnectionState]map[ConnectionState]bool{
	StateAwaitingGreeting: {StateModuleSelect: true, StateClosing: true},
	StateModuleSelect:     {StateAuthenticating: true, StateTransferring: true, StateClosing: true},
	StateAuthenticating:   {StateTransferring: true, StateClosing: true},
	StateTransferring:     {StateClosing: true},
	StateClosing:          {StateClosed: true},
	StateClosed:           {},
}

// ConnectionSession tracks a daemon connection's current state and the data attached
// to each recorded transition.
type ConnectionSession struct {
	State ConnectionState

	// Version is recorded on entering ModuleSelect.
	Version uint8
	// Module and Challenge are recorded on entering Authenticating.
	Module    string
	Challenge []byte
	// IsSender is recorded on entering Transferring.
	IsSender bool
	// CloseReason is recorded on entering Closing.
	CloseReason string
}

// NewConnectionSession constructs a session in its initial state.
func NewConnectionSession() *ConnectionSession {
	return &ConnectionSession{State: StateAwaitingGreeting}
}

// Transition validates and applies a move to next, returning a ProtocolError
// (via errkind) if the edge is not in validTransitions.
func (s *ConnectionSession) Transition(next ConnectionState) error {
	allowed := validTransitions[s.State]
	if !allowed[next] {
		return errkind.New(errkind.KindProtocol, errkind.RoleDaemon, "connection-state",
			errors.Errorf("invalid transition from %s to %s", s.State, next))
	}
	s.State = next
	return nil
}

// EnterModuleSelect transitions to ModuleSelect, recording the negotiated
// greeting version.
func (s *ConnectionSession) EnterModuleSelect(version uint8) error {
	if err := s.Transition(StateModuleSelect); err != nil {
		return err
	}
	s.Version = version
	return nil
}

// EnterAuthenticating transitions to Authenticating, recording the selected
// module and the challenge issued to the client.
func (s *ConnectionSession) EnterAuthenticating(module string, challenge []byte) error {
	if err := s.Transition(StateAuthenticating); err != nil {
		return err
	}
	s.Module = module
	s.Challenge = challenge
	return nil
}

// EnterTransferring transitions to Transferring, recording the module (if
// not already set by EnterAuthenticating) and transfer direction.
func (s *ConnectionSession) EnterTransferring(module string, isSender bool) error {
	if err := s.Transition(StateTransferring); err != nil {
		return err
	}
	if module != "" {
		s.Module = module
	}
	s.IsSender = isSender
	return nil
}

// EnterClosing transitions to Closing, recording the reason.
func (s *ConnectionSession) EnterClosing(reason string) error {
	if err := s.Transition(StateClosing); err != nil {
		return err
	}
	s.CloseReason = reason
	return nil
}

// EnterClosed transitions to the terminal Closed state.
func (s *ConnectionSession) EnterClosed() error {
	return s.Transition(StateClosed)
}
