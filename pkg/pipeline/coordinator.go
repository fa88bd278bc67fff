package pipeline

import (
	"bufio"
	"io"

	"github.com/pkg/errors"

	"github.com/synctree/rsyncd/pkg/checksum"
	"github.com/synctree/rsyncd/pkg/delta"
	"github.com/synctree/rsyncd/pkg/wire"
)

// FileTransfer is everything the coordinator needs to drive one file
// through generator decision, send, and apply: how to read the current
// source content, how to read the chosen basis (nil for ActionWhole),
// and where to write the reconstituted result.
type FileTransfer struct {
	Index  int32
	Action Action
	Source io.Reader
	Basis  io.ReadSeeker
	Output io.WriteSeeker

	// BasisChanged lets a caller short-circuit ApplyFile when it
	// already knows (via an mtime/size recheck) that the basis that
	// was signatured no longer matches what's on disk, forcing a redo
	// with a fresh signature rather than applying against stale data.
	BasisChanged bool
}

// Coordinator runs the generator/sender/receiver dance for a batch of
// files over one shared in-process pair of pipes, used both for direct
// local loopback transfers and as the reference behavior the networked
// transport implementation replicates over a real multiplexed
// connection (spec.md 4.6, 5).
type Coordinator struct {
	Algorithm       checksum.Algorithm
	Seed            checksum.Seed
	StrongLen       int
	BlockSize       uint64
	LiteralCeiling  int
	ProtocolVersion uint8
	MaxRetries      int

	Stats *Stats
	Redo  *Queue

	phase *Machine
}

// NewCoordinator constructs a Coordinator with fresh Stats and Redo
// queue. BlockSize of 0 lets pkg/delta pick one per spec.md 4.5's
// heuristic for each file's basis length.
func NewCoordinator(algorithm checksum.Algorithm, seed checksum.Seed, strongLen int, protocolVersion uint8, maxRetries int) *Coordinator {
	return &Coordinator{
		Algorithm:       algorithm,
		Seed:            seed,
		StrongLen:       strongLen,
		ProtocolVersion: protocolVersion,
		MaxRetries:      maxRetries,
		Stats:           &Stats{},
		Redo:            NewQueue(maxRetries),
		phase:           NewMachine(),
	}
}

// Phase returns the run's current phase.
func (c *Coordinator) Phase() Phase {
	return c.phase.Current()
}

// RunFile drives a single file through generator decision and transfer
// over an in-process byte pipe: the local generator and sender logic run
// sequentially against the same FileTransfer rather than across a real
// network boundary, mirroring what two peers connected by
// pkg/wire.Writer/Reader over a real transport would do frame for frame.
// It returns ErrBasisChanged itself, and a checksum mismatch as an error
// wrapped with receiver context, so callers can feed RunRedo.
func (c *Coordinator) RunFile(ft FileTransfer) error {
	if ft.Action == ActionSkip {
		c.Stats.RecordSkip()
		return nil
	}

	if ft.BasisChanged {
		return ErrBasisChanged
	}

	pr, pw := io.Pipe()
	sendSide := NewSenderSide(c.ProtocolVersion, c.Algorithm, c.Seed, c.StrongLen, c.LiteralCeiling)
	recvSide := NewReceiverSide(c.Algorithm, c.Seed, c.StrongLen)

	var sig *delta.SignatureSet
	if ft.Action == ActionDelta && ft.Basis != nil {
		var err error
		sig, err = delta.GenerateSignature(ft.Basis, c.BlockSize, c.Algorithm, c.Seed, c.StrongLen)
		if err != nil {
			return errors.Wrap(err, "unable to generate basis signature")
		}
		if _, err := ft.Basis.Seek(0, io.SeekStart); err != nil {
			return errors.Wrap(err, "unable to rewind basis after signing")
		}
	} else {
		sig = &delta.SignatureSet{StrongLen: c.StrongLen}
	}

	errCh := make(chan error, 2)

	go func() {
		defer pw.Close()
		// SendFile needs byte-at-a-time writes (varints, NDX deltas),
		// which the frame-level multiplex Writer doesn't itself expose;
		// bufio supplies WriteByte the same way it does ahead of the
		// handshake, with the multiplex Writer underneath doing the
		// actual frame tagging.
		w := bufio.NewWriter(wire.NewWriter(pw))
		if err := sendSide.SendFile(w, ft.Source, sig, c.Stats); err != nil {
			errCh <- errors.Wrap(err, "sender")
			return
		}
		errCh <- nil
	}()

	go func() {
		r := bufio.NewReader(wire.NewReader(pr, wire.DiscardSink{}))
		basis := ft.Basis
		if basis == nil {
			basis = emptyReadSeeker{}
		}
		if err := recvSide.ApplyFile(r, basis, ft.Output, sig, c.Stats); err != nil {
			errCh <- errors.Wrap(err, "receiver")
			return
		}
		errCh <- nil
	}()

	var firstErr error
	for i := 0; i < 2; i++ {
		if err := <-errCh; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return firstErr
	}

	c.Stats.RecordTransfer()
	return nil
}

// RunRedo records a failed RunFile result against ndx and reports
// whether the caller should retry (with a freshly reselected basis) or
// give up on the file. Only RedoChecksumMismatch and RedoBasisChanged
// are meaningful triggers; every other error kind is the caller's to
// treat as fatal per spec.md 7.
func (c *Coordinator) RunRedo(ndx int32, trigger RedoTrigger) (retry bool) {
	_, exhausted := c.Redo.Record(ndx, trigger)
	c.Stats.RecordRedo()
	if exhausted {
		c.Stats.RecordRedoExhaustion()
		return false
	}
	return true
}

// emptyReadSeeker is a zero-length basis, used when a file has no basis
// at all (ActionWhole): an all-literal token stream never issues a Copy
// token, so no read ever reaches it, but delta.NewApplier requires a
// non-nil io.ReadSeeker to construct.
type emptyReadSeeker struct{}

func (emptyReadSeeker) Read([]byte) (int, error)       { return 0, io.EOF }
func (emptyReadSeeker) Seek(int64, int) (int64, error) { return 0, nil }
