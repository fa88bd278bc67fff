package rsyncd

import (
	"bufio"

	"github.com/pkg/errors"

	"github.com/synctree/rsyncd/internal/errkind"
	"github.com/synctree/rsyncd/pkg/protocol"
)

// directionPush and directionPull are the keywords a client sends right after the module
// name, telling the daemon which end will hold the source tree. This
// is a Go-native simplification of real rsync's own full command-line
// argument exchange (spec.md 1's exclusion of protocol novelty covers
// inventing a wire format, not this minimal substitute for it): without
// it the daemon has no way to know whether to generate+receive or
// merely send, since this implementation negotiates no other arguments.
const (
	directionPush = "SENDER"
	directionPull = "RECEIVER"
)

// SelectModule drives the client side of the line-mode daemon
// preamble: exchange greetings, request moduleName, announce isSender,
// and (if the daemon challenges) answer with base64(MD5(challenge||
// secret)). On return the caller hands reader/writer to protocol.Run
// to complete the binary handshake, mirroring Accept's server-side
// sequencing.
func SelectModule(reader *bufio.Reader, writer *bufio.Writer, moduleName, username, secret string, isSender bool) error {
	if err := protocol.WriteLine(writer, protocol.GreetingLine(daemonMajorVersion, daemonMinorVersion)); err != nil {
		return errkind.New(errkind.KindTransport, errkind.RoleClient, "greeting",
			errors.Wrap(err, "unable to send client greeting"))
	}

	greeting, err := protocol.ReadLine(reader)
	if err != nil {
		return err
	}
	if _, _, err := protocol.ParseGreeting(greeting); err != nil {
		return errkind.New(errkind.KindProtocol, errkind.RoleClient, "greeting", err)
	}

	if err := protocol.WriteLine(writer, moduleName); err != nil {
		return errkind.New(errkind.KindTransport, errkind.RoleClient, "module-select",
			errors.Wrap(err, "unable to send module name"))
	}

	direction := directionPull
	if isSender {
		direction = directionPush
	}
	if err := protocol.WriteLine(writer, direction); err != nil {
		return errkind.New(errkind.KindTransport, errkind.RoleClient, "module-select",
			errors.Wrap(err, "unable to send transfer direction"))
	}

	line, err := protocol.ReadLine(reader)
	if err != nil {
		return err
	}

	if challenge, err := protocol.ParseChallenge(line); err == nil {
		response := ComputeResponse(challenge, secret)
		reply := response
		if username != "" {
			reply = username + " " + response
		}
		if err := protocol.WriteLine(writer, reply); err != nil {
			return errkind.New(errkind.KindTransport, errkind.RoleClient, "authenticate",
				errors.Wrap(err, "unable to send authentication response"))
		}
		line, err = protocol.ReadLine(reader)
		if err != nil {
			return err
		}
	}

	if line != protocol.DaemonGreetingPrefix+"OK" {
		return errkind.New(errkind.KindAccessDenied, errkind.RoleClient, "module-select",
			errors.Errorf("daemon rejected module %q: %s", moduleName, line))
	}

	return nil
}
