package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/synctree/rsyncd/internal/batch"
	"github.com/synctree/rsyncd/internal/bwlimit"
	"github.com/synctree/rsyncd/internal/cliopts"
	"github.com/synctree/rsyncd/internal/fsutil"
	"github.com/synctree/rsyncd/internal/logging"
	"github.com/synctree/rsyncd/internal/rsyncd"
	"github.com/synctree/rsyncd/internal/transport"
	"github.com/synctree/rsyncd/internal/xfer"
	"github.com/synctree/rsyncd/pkg/flist"
	"github.com/synctree/rsyncd/pkg/pipeline"
	"github.com/synctree/rsyncd/pkg/protocol"
	"github.com/synctree/rsyncd/pkg/wire"
)

// throttledWriter wraps a transport.Stream's outbound side with
// opts.BandwidthLimit, per spec.md's bandwidth-limiter collaborator;
// an Unlimited opts.BandwidthLimit yields w unchanged.
func throttledWriter(w io.Writer, opts cliopts.Options) io.Writer {
	if opts.BandwidthLimit <= bwlimit.Unlimited {
		return w
	}
	limiter := bwlimit.NewLimiter(opts.BandwidthLimit, 0)
	return bwlimit.NewWriter(context.Background(), w, limiter)
}

// daemonSecret resolves the password for a daemon target requiring
// authentication: RSYNC_PASSWORD (spec.md 6's environment contract) if
// set, otherwise an interactive, echo-off prompt read via
// golang.org/x/term, mirroring real rsync's own fallback. A non-auth
// module never reaches either path since SelectModule only sends a
// response when the daemon actually challenges.
func daemonSecret(t target) (string, error) {
	if pw, ok := os.LookupEnv("RSYNC_PASSWORD"); ok {
		return pw, nil
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", errors.New("daemon requires a password: set RSYNC_PASSWORD or run interactively")
	}
	fmt.Fprintf(os.Stderr, "Password for %s@%s: ", t.User, t.Host)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", errors.Wrap(err, "unable to read password")
	}
	return string(password), nil
}

// dialRemote establishes the byte stream for t (SSH, or the command in
// opts.RemoteShell, for a shell target; TCP plus daemon module
// selection for a daemon target), completes the protocol handshake as
// isSender, and returns the resulting Session.
func dialRemote(t target, isSender bool, opts cliopts.Options) (*protocol.Session, error) {
	switch t.Kind {
	case targetShell:
		remoteCommand := "rsync --server"
		var stream *transport.ProcessStream
		var err error
		if shell := strings.Fields(opts.RemoteShell); len(shell) > 0 {
			host := t.Host
			if t.User != "" {
				host = t.User + "@" + t.Host
			}
			stream, err = transport.DialLocal(shell[0], append(shell[1:], host, remoteCommand)...)
		} else {
			stream, err = transport.DialSSH(t.Host, t.User, 0, remoteCommand)
		}
		if err != nil {
			return nil, err
		}
		reader := bufio.NewReader(stream)
		writer := bufio.NewWriter(throttledWriter(stream, opts))
		return protocol.Run(reader, writer, protocol.Options{
			LocalMaxVersion: protocol.MaxVersion,
			IsSender:        isSender,
			EntropySeed:     rand.Reader,
		})

	case targetDaemon:
		stream, err := transport.DialTCP(t.Host, t.Port)
		if err != nil {
			return nil, err
		}
		reader := bufio.NewReader(stream)
		writer := bufio.NewWriter(throttledWriter(stream, opts))
		secret, err := daemonSecret(t)
		if err != nil {
			return nil, err
		}
		if err := rsyncd.SelectModule(reader, writer, t.Module, t.User, secret, isSender); err != nil {
			return nil, err
		}
		return protocol.Run(reader, writer, protocol.Options{
			LocalMaxVersion: protocol.MaxVersion,
			IsSender:        isSender,
			EntropySeed:     rand.Reader,
		})

	default:
		return nil, errors.Errorf("unsupported remote target kind %d", t.Kind)
	}
}

// runRemotePush negotiates a session against dest, transmits
// sourceRoot's file list over the multiplex connection (spec.md 4.4),
// then takes the sender role for the generator/receiver exchange the
// destination-side daemon drives: dest decides per-file actions and
// this side streams the resulting delta tokens back, per spec.md 4.6.
// A --write-batch recording tees both the instructions dest issues and
// the token streams sent in response, so --read-batch can replay the
// same destination without a live peer.
func runRemotePush(sourceRoot string, dest target, opts cliopts.Options, log *logging.Logger) (*pipeline.Stats, error) {
	session, err := dialRemote(dest, true, opts)
	if err != nil {
		return nil, err
	}

	evaluator, err := buildFilterEvaluator(opts, log)
	if err != nil {
		return nil, err
	}

	var list flist.List
	if err := flist.Walk(fsutil.OSStatSource{Root: sourceRoot}, evaluator, &list); err != nil {
		return nil, errors.Wrap(err, "unable to walk source tree")
	}

	// The multiplex Writer/Reader only implement io.Writer/io.Reader;
	// pkg/flist and pkg/pipeline need the full wire.Writer/wire.Reader
	// (byte-at-a-time) interface, so both directions are wrapped in
	// bufio the same way pkg/protocol's handshake does before driving a
	// codec over the raw stream.
	writer := bufio.NewWriter(session.MultiplexWriter)
	reader := bufio.NewReader(session.MultiplexReader)
	entryOpts := flist.Options{Protocol: session.Version}

	var batchWriter *batch.Writer
	if opts.WriteBatch != "" {
		batchWriter, err = batch.Create(opts.WriteBatch, batch.FromSession(session))
		if err != nil {
			return nil, err
		}
		defer batchWriter.Close()
	}

	if err := xfer.WriteFileList(writer, session.Version, entryOpts, &list); err != nil {
		return nil, errors.Wrap(err, "unable to send file list")
	}
	if err := writer.Flush(); err != nil {
		return nil, errors.Wrap(err, "unable to flush file list")
	}
	if batchWriter != nil {
		if err := xfer.WriteFileList(batchWriter.Stream, session.Version, entryOpts, &list); err != nil {
			return nil, errors.Wrap(err, "unable to record file list to batch file")
		}
	}

	var tee wire.Writer
	if batchWriter != nil {
		tee = batchWriter.Stream
	}
	stats, err := xfer.RunSource(&list, xfer.SourceConfig{
		SessionParams: xfer.SessionParams{
			ProtocolVersion: session.Version,
			Algorithm:       session.ChecksumAlgo,
			Seed:            session.Seed,
			StrongLen:       session.StrongLen,
		},
		Root: sourceRoot,
	}, writer, reader, tee)
	if err != nil {
		return nil, err
	}

	log.Info("sent %s: %d entries, %d transferred (protocol %d, checksum %s)",
		sourceRoot, list.Len(), stats.Snapshot().FilesTransferred, session.Version, session.ChecksumAlgo)
	return stats, nil
}

// runRemotePull negotiates a session against source, reads its
// transmitted file list, then takes the generator+receiver role
// against destRoot: it decides each file's action locally (it, unlike
// the source daemon, can see destRoot's existing contents) and applies
// the token stream the source daemon sends back.
func runRemotePull(source target, destRoot string, opts cliopts.Options, log *logging.Logger) (*pipeline.Stats, error) {
	session, err := dialRemote(source, false, opts)
	if err != nil {
		return nil, err
	}

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
		Root:          destRoot,
		DryRun:        opts.DryRun,
		PreserveLinks: opts.PreserveLinks,
		ForceChecksum: opts.Checksum,
		Metadata:      metadataOptionsFor(opts),
	}, writer, reader)
	if err != nil {
		return nil, err
	}
	if err := writer.Flush(); err != nil {
		return nil, errors.Wrap(err, "unable to flush instruction stream")
	}

	log.Info("received from %s: %d entries, %d transferred into %s (protocol %d, checksum %s)",
		source.Host, list.Len(), stats.Snapshot().FilesTransferred, destRoot, session.Version, session.ChecksumAlgo)
	return stats, nil
}
