package transport

import (
	"fmt"
	"net"
	"time"

	"github.com/pkg/errors"
)

// DefaultDaemonPort is rsync's registered daemon port (873).
const DefaultDaemonPort = 873

// dialTimeout bounds TCP connection establishment for the daemon
// collaborator; it has no effect once the connection is up.
const dialTimeout = 10 * time.Second

// DialTCP connects to an rsync daemon (an "rsync://host[:port]/module"
// endpoint) and returns the raw connection as a Stream. Everything
// past the TCP handshake — the daemon greeting, module negotiation,
// and protocol handshake — is internal/rsyncd's and pkg/protocol's
// concern; this collaborator only establishes the byte pipe.
func DialTCP(host string, port uint16) (Stream, error) {
	if port == 0 {
		port = DefaultDaemonPort
	}
	address := net.JoinHostPort(host, fmt.Sprintf("%d", port))
	conn, err := net.DialTimeout("tcp", address, dialTimeout)
	if err != nil {
		return nil, errors.Wrap(err, "unable to connect to rsync daemon")
	}
	return conn, nil
}
