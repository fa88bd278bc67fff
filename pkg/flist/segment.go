package flist

import (
	"github.com/pkg/errors"

	"github.com/synctree/rsyncd/pkg/wire"
)

// SegmentWriter streams a FileList as a sequence of incremental-recursion
// segments (spec.md 4.4): entries within a segment carry no per-entry NDX
// (indices are assigned implicitly, in transmission order, the way
// upstream rsync's file-list phase works); a zero flags byte ends a
// segment. The coordinator then writes an NDX value to tell the peer
// whether another segment follows (NDX_FLIST_EOF) or the list is complete
// (NDX_DONE).
type SegmentWriter struct {
	codec *Codec
	ndx   *wire.NdxCodec
	next  int32
}

// NewSegmentWriter constructs a segment writer. protocol gates NDX encoding
// width for the segment-boundary/list-end markers; entryOpts configures the
// underlying entry Codec.
func NewSegmentWriter(protocol uint8, entryOpts Options) *SegmentWriter {
	return &SegmentWriter{codec: NewCodec(entryOpts), ndx: wire.NewNdxCodec(protocol)}
}

// WriteSegment writes one segment's entries (in transmission order) and
// its terminating zero flags byte. It returns the index assigned to the
// first entry of this segment, since indices are contiguous across the
// whole list.
func (s *SegmentWriter) WriteSegment(w wire.Writer, entries []Entry) (firstIndex int, err error) {
	firstIndex = int(s.next)
	for _, e := range entries {
		if err := s.codec.WriteEntry(w, e); err != nil {
			return firstIndex, errors.Wrapf(err, "unable to write entry %q", e.Path)
		}
		s.next++
	}
	return firstIndex, s.codec.WriteEndMarker(w)
}

// WriteSegmentBoundary writes the NDX_FLIST_EOF marker separating one
// segment from the next.
func (s *SegmentWriter) WriteSegmentBoundary(w wire.Writer) error {
	return s.ndx.Write(w, wire.NdxFlistEOF)
}

// WriteListEnd writes the NDX_DONE marker that terminates the file list
// entirely.
func (s *SegmentWriter) WriteListEnd(w wire.Writer) error {
	return s.ndx.Write(w, wire.NdxDone)
}

// SegmentReader is the receiver-side counterpart of SegmentWriter.
type SegmentReader struct {
	codec *Codec
	ndx   *wire.NdxCodec
	next  int
}

// NewSegmentReader constructs a segment reader matching entryOpts/protocol
// used by the peer's SegmentWriter.
func NewSegmentReader(protocol uint8, entryOpts Options) *SegmentReader {
	return &SegmentReader{codec: NewCodec(entryOpts), ndx: wire.NewNdxCodec(protocol)}
}

// ReadSegment reads entries until the segment's end marker (zero flags
// byte), assigning each the next sequential index.
func (s *SegmentReader) ReadSegment(r wire.Reader) ([]IndexedEntry, error) {
	var entries []IndexedEntry
	for {
		entry, ok, err := s.codec.ReadEntry(r)
		if err != nil {
			return entries, errors.Wrap(err, "unable to read entry")
		}
		if !ok {
			return entries, nil
		}
		entries = append(entries, IndexedEntry{Index: s.next, Entry: entry})
		s.next++
	}
}

// ReadBoundary reads the NDX value following a segment and reports whether
// the list is complete (NDX_DONE) as opposed to merely segment-complete
// (NDX_FLIST_EOF).
func (s *SegmentReader) ReadBoundary(r wire.Reader) (listDone bool, err error) {
	ndx, err := s.ndx.Read(r)
	if err != nil {
		return false, errors.Wrap(err, "unable to read segment boundary")
	}
	switch ndx {
	case wire.NdxDone:
		return true, nil
	case wire.NdxFlistEOF:
		return false, nil
	default:
		return false, errors.Errorf("unexpected NDX %d at segment boundary", ndx)
	}
}

// IndexedEntry pairs a decoded Entry with its assigned list index.
type IndexedEntry struct {
	Index int
	Entry Entry
}
