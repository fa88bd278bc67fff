package rsyncd

import (
	"bufio"

	"github.com/pkg/errors"

	"github.com/synctree/rsyncd/internal/fsutil"
	"github.com/synctree/rsyncd/internal/metadata"
	"github.com/synctree/rsyncd/internal/xfer"
	"github.com/synctree/rsyncd/pkg/flist"
	"github.com/synctree/rsyncd/pkg/pipeline"
)

// Serve drives the content-transfer phase of an accepted connection: a
// genuine two-peer transfer needs complementary roles on each end, so
// whichever side the client isn't holding (source/sender or
// destination/generator+receiver), the daemon holds here, against
// negotiated.Module.Path.
func Serve(negotiated *Negotiated) (*pipeline.Stats, error) {
	if negotiated.IsSender {
		return ServeSource(negotiated)
	}
	return ServeDestination(negotiated)
}

// ServeSource walks the module's tree, sends its file list to the
// client, and then responds to the client's generator instructions as
// pkg/pipeline.SenderSide — the daemon side of a --pull transfer.
func ServeSource(negotiated *Negotiated) (*pipeline.Stats, error) {
	session := negotiated.Session

	var list flist.List
	if err := flist.Walk(fsutil.OSStatSource{Root: negotiated.Module.Path}, flist.AcceptAllFilter{}, &list); err != nil {
		return nil, errors.Wrap(err, "unable to walk module tree")
	}

	writer := bufio.NewWriter(session.MultiplexWriter)
	reader := bufio.NewReader(session.MultiplexReader)
	entryOpts := flist.Options{Protocol: session.Version}

	if err := xfer.WriteFileList(writer, session.Version, entryOpts, &list); err != nil {
		return nil, errors.Wrap(err, "unable to send file list")
	}
	if err := writer.Flush(); err != nil {
		return nil, errors.Wrap(err, "unable to flush file list")
	}

	return xfer.RunSource(&list, xfer.SourceConfig{
		SessionParams: xfer.SessionParams{
			ProtocolVersion: session.Version,
			Algorithm:       session.ChecksumAlgo,
			Seed:            session.Seed,
			StrongLen:       session.StrongLen,
		},
		Root: negotiated.Module.Path,
	}, writer, reader, nil)
}

// ServeDestination reads the client's file list and then takes the
// generator+receiver role against the module's tree — the daemon side
// of a --push transfer. There is no argument exchange in this
// implementation to carry the client's -lptgo flags, so metadata
// application is unconditional (times, perms, and ownership), matching
// the conservative default a module with no further negotiation can
// offer.
func ServeDestination(negotiated *Negotiated) (*pipeline.Stats, error) {
	session := negotiated.Session

	writer := bufio.NewWriter(session.MultiplexWriter)
	reader := bufio.NewReader(session.MultiplexReader)
	entryOpts := flist.Options{Protocol: session.Version}

	list, err := xfer.ReadFileList(reader, session.Version, entryOpts)
	if err != nil {
		return nil, errors.Wrap(err, "unable to read file list")
	}

	stats, err := xfer.RunDestination(list, xfer.DestinationConfig{
		SessionParams: xfer.SessionParams{
			ProtocolVersion: session.Version,
			Algorithm:       session.ChecksumAlgo,
			Seed:            session.Seed,
			StrongLen:       session.StrongLen,
		},
		Root:          negotiated.Module.Path,
		PreserveLinks: true,
		Metadata: metadata.Options{
			PreserveModTime:   true,
			PreserveMode:      true,
			PreserveOwnership: true,
		},
	}, writer, reader)
	if err != nil {
		return nil, err
	}
	if err := writer.Flush(); err != nil {
		return nil, errors.Wrap(err, "unable to flush instruction stream")
	}
	return stats, nil
}
