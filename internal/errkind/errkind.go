// Package errkind classifies core errors into the fixed taxonomy rsync
// itself uses, and maps each kind to the matching process exit code.
package errkind

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind identifies the broad class of failure a core operation reported, the
// taxonomy named by spec.md 7.
type Kind int

// Error kinds.
const (
	KindSuccess Kind = iota
	KindSyntax
	KindProtocol
	KindFileSelect
	KindUnsupportedFeature
	KindStartClient
	KindSocketIO
	KindFileIO
	KindProtocolStream
	KindDiagnostics
	KindIPC
	KindInterrupted
	KindWaitpid
	KindOutOfMemory
	KindPartialTransfer
	KindVanished
	KindMaxDelete
	KindIOTimeout
	KindConnectTimeout
	KindChecksum
	KindTransport
	KindBasisChanged
	KindAccessDenied
	KindConfig
	KindFatal
)

// exitCodes maps each kind to the fixed integer exit code mirrored from
// upstream rsync (spec.md 7). Kinds with no direct upstream analogue
// (Checksum, Transport, BasisChanged, AccessDenied, Config) fold onto the
// closest upstream bucket rather than inventing new numbers, since the
// contract callers rely on is the fixed set of codes, not a 1:1 kind
// mapping.
var exitCodes = map[Kind]int{
	KindSuccess:            0,
	KindSyntax:             1,
	KindProtocol:           2,
	KindFileSelect:         3,
	KindUnsupportedFeature: 4,
	KindStartClient:        5,
	KindSocketIO:           10,
	KindFileIO:             11,
	KindProtocolStream:     12,
	KindDiagnostics:        13,
	KindIPC:                14,
	KindInterrupted:        20,
	KindWaitpid:            21,
	KindOutOfMemory:        22,
	KindPartialTransfer:    23,
	KindVanished:           24,
	KindMaxDelete:          25,
	KindIOTimeout:          30,
	KindConnectTimeout:     35,
	KindChecksum:           12,
	KindTransport:          10,
	KindBasisChanged:       23,
	KindAccessDenied:       11,
	KindConfig:             1,
	KindFatal:              13,
}

// String renders a human-readable name for the kind, used in log lines and
// error messages.
func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindSyntax:
		return "syntax"
	case KindProtocol:
		return "protocol"
	case KindFileSelect:
		return "file-select"
	case KindUnsupportedFeature:
		return "unsupported-feature"
	case KindStartClient:
		return "start-client"
	case KindSocketIO:
		return "socket-io"
	case KindFileIO:
		return "file-io"
	case KindProtocolStream:
		return "protocol-stream"
	case KindDiagnostics:
		return "diagnostics"
	case KindIPC:
		return "ipc"
	case KindInterrupted:
		return "interrupted"
	case KindWaitpid:
		return "waitpid"
	case KindOutOfMemory:
		return "out-of-memory"
	case KindPartialTransfer:
		return "partial-transfer"
	case KindVanished:
		return "vanished"
	case KindMaxDelete:
		return "max-delete"
	case KindIOTimeout:
		return "io-timeout"
	case KindConnectTimeout:
		return "connect-timeout"
	case KindChecksum:
		return "checksum"
	case KindTransport:
		return "transport"
	case KindBasisChanged:
		return "basis-changed"
	case KindAccessDenied:
		return "access-denied"
	case KindConfig:
		return "config"
	case KindFatal:
		return "fatal"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ExitCode returns the fixed process exit code for the kind.
func (k Kind) ExitCode() int {
	if code, ok := exitCodes[k]; ok {
		return code
	}
	return exitCodes[KindFatal]
}

// Role identifies the pipeline position of the component that raised an
// error, carried on every Error so messages can be formatted with the
// "[role]" trailer spec.md 7 requires.
type Role string

// Pipeline roles.
const (
	RoleSender    Role = "sender"
	RoleReceiver  Role = "receiver"
	RoleGenerator Role = "generator"
	RoleServer    Role = "server"
	RoleClient    Role = "client"
	RoleDaemon    Role = "daemon"
)

// Error is the core error type: a kind, the role that raised it, and the
// wrapped underlying cause (preserving github.com/pkg/errors' stack trace
// via Wrap).
type Error struct {
	Kind  Kind
	Role  Role
	Step  string
	cause error
}

// New constructs an Error wrapping cause with the given kind and role. If
// step is non-empty it identifies the sub-operation in which the error
// occurred (e.g. a handshake step name), surfaced per spec.md 4.3's
// failure-mode requirement.
func New(kind Kind, role Role, step string, cause error) *Error {
	return &Error{Kind: kind, Role: role, Step: step, cause: errors.WithStack(cause)}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Step != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Role, e.Step, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Role, e.cause)
}

// Unwrap allows errors.Is/errors.As (and github.com/pkg/errors.Cause) to
// reach the wrapped cause.
func (e *Error) Unwrap() error {
	return e.cause
}

// Cause implements the interface github.com/pkg/errors.Cause looks for.
func (e *Error) Cause() error {
	return e.cause
}

// ExitCode reports the process exit code for the underlying kind, falling
// back to the generic fatal code for any non-Error.
func ExitCode(err error) int {
	if err == nil {
		return exitCodes[KindSuccess]
	}
	var kindErr *Error
	if errors.As(err, &kindErr) {
		return kindErr.Kind.ExitCode()
	}
	return exitCodes[KindFatal]
}
