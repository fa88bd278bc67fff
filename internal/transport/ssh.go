package transport

import (
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/pkg/errors"
)

// connectTimeoutSeconds bounds SSH's own connection establishment; it
// has no effect on transfer duration once a session is up.
const connectTimeoutSeconds = 5

// SSHKillDelay is how long closing an SSH-backed Stream waits for the
// remote rsync server to exit on its own before this side sends
// SIGTERM to the local ssh client process.
const SSHKillDelay = 1 * time.Second

// DialSSH starts `ssh [-p port] [user@]host <remoteCommand>` and
// returns a Stream wired to its stdin/stdout. remoteCommand is
// typically an invocation of the peer's own rsync binary in --server
// mode; it is passed through verbatim as the remote shell's command
// line, matching real rsync's own `-e ssh` behavior. Grounded on the
// teacher's pkg/ssh/transport.go Command/ssh.go Command, generalized
// from mutagen's fixed agent-invocation command to an arbitrary
// caller-supplied remote command string.
func DialSSH(host, user string, port uint16, remoteCommand string) (*ProcessStream, error) {
	ssh, err := exec.LookPath("ssh")
	if err != nil {
		return nil, errors.Wrap(err, "unable to locate ssh executable")
	}

	target := host
	if user != "" {
		target = fmt.Sprintf("%s@%s", user, host)
	}

	args := []string{fmt.Sprintf("-oConnectTimeout=%d", connectTimeoutSeconds)}
	if port != 0 {
		args = append(args, "-p", fmt.Sprintf("%d", port))
	}
	args = append(args, target, remoteCommand)

	cmd := exec.Command(ssh, args...)
	cmd.Env = os.Environ()
	cmd.Stderr = os.Stderr

	stream, err := NewProcessStream(cmd, SSHKillDelay)
	if err != nil {
		return nil, err
	}
	if err := stream.Start(); err != nil {
		return nil, err
	}
	return stream, nil
}

// DialLocal starts localCommand (typically the local rsync binary in
// --server mode, for a same-host transfer) and returns a Stream wired
// to its stdin/stdout.
func DialLocal(localCommand string, args ...string) (*ProcessStream, error) {
	path, err := exec.LookPath(localCommand)
	if err != nil {
		return nil, errors.Wrap(err, "unable to locate local command")
	}
	cmd := exec.Command(path, args...)
	cmd.Env = os.Environ()
	cmd.Stderr = os.Stderr

	stream, err := NewProcessStream(cmd, SSHKillDelay)
	if err != nil {
		return nil, err
	}
	if err := stream.Start(); err != nil {
		return nil, err
	}
	return stream, nil
}
