package protocol

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/synctree/rsyncd/internal/errkind"
	"github.com/synctree/rsyncd/pkg/checksum"
	"github.com/synctree/rsyncd/pkg/wire"
)

// SendSeed transmits a freshly generated checksum seed (sender side of the
// spec.md 4.3 step-2 exchange); the caller keeps its own copy for local use.
func SendSeed(w wire.Writer, seed checksum.Seed) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(seed))
	if _, err := w.Write(buf[:]); err != nil {
		return errkind.New(errkind.KindProtocol, errkind.RoleSender, "seed-exchange",
			errors.Wrap(err, "unable to write checksum seed"))
	}
	if err := wire.TryFlush(w); err != nil {
		return errkind.New(errkind.KindProtocol, errkind.RoleSender, "seed-exchange",
			errors.Wrap(err, "unable to flush checksum seed"))
	}
	return nil
}

// ReceiveSeed reads the checksum seed transmitted by SendSeed (receiver
// side of the spec.md 4.3 step-2 exchange).
func ReceiveSeed(r wire.Reader) (checksum.Seed, error) {
	var buf [4]byte
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			return 0, errkind.New(errkind.KindProtocol, errkind.RoleReceiver, "seed-exchange",
				errors.Wrap(err, "unable to read checksum seed"))
		}
	}
	return checksum.Seed(binary.LittleEndian.Uint32(buf[:])), nil
}
