package protocol

import (
	"bufio"
	"encoding/base64"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/synctree/rsyncd/internal/errkind"
)

// DaemonGreetingPrefix is the line a legacy daemon client/server exchanges
// before any binary framing begins (spec.md 4.3/8).
const DaemonGreetingPrefix = "@RSYNCD: "

// DaemonExitLine terminates a module listing.
const DaemonExitLine = "@RSYNCD: EXIT"

// daemonAuthPrefix precedes a base64 authentication challenge.
const daemonAuthPrefix = "@RSYNCD: AUTHREQD "

// Sniff peeks at the first line of a freshly accepted connection without
// consuming bytes that a binary-mode peer would need, per spec.md 4.3's
// "replay buffering guarantees a single initial line can be inspected
// without losing bytes for the binary path". It reports whether the
// connection is a legacy daemon line-mode session.
func Sniff(r *bufio.Reader) (bool, error) {
	peek, err := r.Peek(len(DaemonGreetingPrefix))
	if err != nil {
		// A short read (fewer bytes than the prefix available) can
		// never be a daemon greeting; treat it as binary mode and let
		// the ordinary handshake surface any real truncation error.
		return false, nil
	}
	return string(peek) == DaemonGreetingPrefix, nil
}

// ReadLine reads one newline-terminated ASCII line in text mode, stripping
// the trailing newline (and any carriage return).
func ReadLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", errkind.New(errkind.KindProtocolStream, errkind.RoleClient, "line-mode",
			errors.Wrap(err, "unable to read daemon line"))
	}
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	return line, nil
}

// WriteLine writes one newline-terminated ASCII line in text mode.
func WriteLine(w *bufio.Writer, line string) error {
	if _, err := w.WriteString(line); err != nil {
		return err
	}
	if err := w.WriteByte('\n'); err != nil {
		return err
	}
	return w.Flush()
}

// GreetingLine formats the daemon's version greeting.
func GreetingLine(major, minor int) string {
	return DaemonGreetingPrefix + strconv.Itoa(major) + "." + strconv.Itoa(minor)
}

// ParseGreeting extracts the major/minor version from a greeting line
// produced by GreetingLine.
func ParseGreeting(line string) (major, minor int, err error) {
	if !strings.HasPrefix(line, DaemonGreetingPrefix) {
		return 0, 0, errors.Errorf("malformed daemon greeting: %q", line)
	}
	version := strings.TrimPrefix(line, DaemonGreetingPrefix)
	parts := strings.SplitN(version, ".", 2)
	if len(parts) != 2 {
		return 0, 0, errors.Errorf("malformed daemon greeting version: %q", version)
	}
	major, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, errors.Wrap(err, "invalid greeting major version")
	}
	minor, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, errors.Wrap(err, "invalid greeting minor version")
	}
	return major, minor, nil
}

// ChallengeLine formats an authentication challenge.
func ChallengeLine(challenge []byte) string {
	return daemonAuthPrefix + base64.StdEncoding.EncodeToString(challenge)
}

// ParseChallenge extracts the challenge bytes from a line produced by
// ChallengeLine.
func ParseChallenge(line string) ([]byte, error) {
	if !strings.HasPrefix(line, daemonAuthPrefix) {
		return nil, errors.Errorf("malformed auth challenge line: %q", line)
	}
	return base64.StdEncoding.DecodeString(strings.TrimPrefix(line, daemonAuthPrefix))
}
