package rsyncd

import (
	"bufio"
	"net"
	"strings"

	"github.com/pkg/errors"

	"github.com/synctree/rsyncd/internal/errkind"
	"github.com/synctree/rsyncd/internal/logging"
	"github.com/synctree/rsyncd/pkg/protocol"
)

// listCommand is the conventional module name a client sends to
// request a listing rather than select a module for transfer.
const listCommand = "#list"

// daemonMajorVersion and daemonMinorVersion are the legacy line-mode
// greeting's own version numbers, distinct from the binary protocol
// version negotiated once a module has been selected (spec.md 8).
const (
	daemonMajorVersion = 31
	daemonMinorVersion = 0
)

// Negotiated is the result of a completed daemon acceptance: the
// selected module and the binary-protocol Session ready for the core
// pipeline to drive.
type Negotiated struct {
	Module  ModuleConfig
	Session *protocol.Session
	IsSender bool
}

// Accept drives one freshly accepted daemon connection through the
// line-mode greeting, module selection, and (if required) challenge/
// response authentication, then hands off to the binary protocol
// handshake. It returns (nil, nil) after serving a module listing,
// since a listing request terminates the connection without a
// transfer.
func Accept(conn net.Conn, config Config, log *logging.Logger) (*Negotiated, error) {
	session := protocol.NewConnectionSession()

	reader := bufio.NewReader(conn)
	writer := bufio.NewWriter(conn)

	if err := protocol.WriteLine(writer, protocol.GreetingLine(daemonMajorVersion, daemonMinorVersion)); err != nil {
		return nil, errkind.New(errkind.KindTransport, errkind.RoleDaemon, "greeting",
			errors.Wrap(err, "unable to send daemon greeting"))
	}

	clientGreeting, err := protocol.ReadLine(reader)
	if err != nil {
		return nil, err
	}
	clientMajor, _, err := protocol.ParseGreeting(clientGreeting)
	if err != nil {
		return nil, errkind.New(errkind.KindProtocol, errkind.RoleDaemon, "greeting", err)
	}
	if err := session.EnterModuleSelect(uint8(clientMajor)); err != nil {
		return nil, err
	}

	moduleLine, err := protocol.ReadLine(reader)
	if err != nil {
		return nil, err
	}
	moduleName := strings.TrimSpace(moduleLine)

	if moduleName == "" || moduleName == listCommand {
		log.Debug("daemon: serving module listing to %s", conn.RemoteAddr())
		if err := WriteModuleListing(writer, config); err != nil {
			return nil, err
		}
		_ = session.EnterClosing("listing served")
		return nil, nil
	}

	module, ok := config.Lookup(moduleName)
	if !ok {
		return nil, errkind.New(errkind.KindFileSelect, errkind.RoleDaemon, "module-select",
			errors.Errorf("unknown module %q", moduleName))
	}

	directionLine, err := protocol.ReadLine(reader)
	if err != nil {
		return nil, err
	}
	clientIsSender := directionLine == directionPush
	daemonIsSender := !clientIsSender

	if clientIsSender && module.ReadOnly {
		return nil, errkind.New(errkind.KindAccessDenied, errkind.RoleDaemon, "module-select",
			errors.Errorf("module %q is read-only", module.Name))
	}

	if module.RequiresAuth() {
		if err := authenticate(reader, writer, session, module, daemonIsSender); err != nil {
			return nil, err
		}
	} else {
		if err := session.EnterTransferring(module.Name, daemonIsSender); err != nil {
			return nil, err
		}
	}

	if err := protocol.WriteLine(writer, protocol.DaemonGreetingPrefix+"OK"); err != nil {
		return nil, errkind.New(errkind.KindTransport, errkind.RoleDaemon, "module-select",
			errors.Wrap(err, "unable to acknowledge module selection"))
	}

	handshakeSession, err := protocol.Run(reader, writer, protocol.Options{
		LocalMaxVersion: protocol.MaxVersion,
		IsSender:        session.IsSender,
		Role:            errkind.RoleDaemon,
	})
	if err != nil {
		return nil, err
	}

	return &Negotiated{Module: module, Session: handshakeSession, IsSender: session.IsSender}, nil
}

// authenticate issues a challenge for module and validates the
// client's response against every configured secret, per spec.md 8's
// "base64 of MD5(challenge || password)" contract. It does not
// implement a user database or module ACL policy beyond this
// primitive; the caller supplies the already-loaded module secrets.
func authenticate(reader *bufio.Reader, writer *bufio.Writer, session *protocol.ConnectionSession, module ModuleConfig, isSender bool) error {
	challenge, err := GenerateChallenge()
	if err != nil {
		return err
	}
	if err := session.EnterAuthenticating(module.Name, challenge); err != nil {
		return err
	}

	if err := protocol.WriteLine(writer, protocol.ChallengeLine(challenge)); err != nil {
		return errkind.New(errkind.KindTransport, errkind.RoleDaemon, "authenticate",
			errors.Wrap(err, "unable to send authentication challenge"))
	}

	responseLine, err := protocol.ReadLine(reader)
	if err != nil {
		return err
	}
	parts := strings.SplitN(responseLine, " ", 2)
	username := ""
	response := parts[0]
	if len(parts) == 2 {
		username = parts[0]
		response = parts[1]
	}

	secret, ok := module.Secrets[username]
	verified := ok && VerifyResponse(challenge, secret, response)
	if !ok && username == "" {
		for _, candidate := range module.Secrets {
			if VerifyResponse(challenge, candidate, response) {
				verified = true
				break
			}
		}
	}
	if !verified {
		return errkind.New(errkind.KindAccessDenied, errkind.RoleDaemon, "authenticate",
			errors.Errorf("authentication failed for module %q", module.Name))
	}

	return session.EnterTransferring(module.Name, isSender)
}
