package flist

import (
	"bytes"
	"testing"

	"github.com/synctree/rsyncd/pkg/wire"
)

func TestCodecRoundTripSameAsPreviousCompression(t *testing.T) {
	opts := Options{Protocol: 31, PreserveUID: true, PreserveGID: true, PreserveLinks: true, PreserveDevices: true}

	entries := []Entry{
		{Path: "a", Kind: KindRegular, Size: 100, Mode: 0o644, UID: 1000, GID: 1000, ModTimeSeconds: 1000},
		{Path: "a/b", Kind: KindRegular, Size: 200, Mode: 0o644, UID: 1000, GID: 1000, ModTimeSeconds: 1000},
		{Path: "a/c", Kind: KindDirectory, Mode: 0o755, UID: 1000, GID: 1000, ModTimeSeconds: 2000},
		{Path: "a/link", Kind: KindSymlink, Mode: 0o777, UID: 1000, GID: 1000, ModTimeSeconds: 2000, SymlinkTarget: "../target"},
	}
	for i := range entries {
		entries[i].HardlinkGroup = -1
	}

	var buf bytes.Buffer
	writer := NewCodec(opts)
	for _, e := range entries {
		if err := writer.WriteEntry(&buf, e); err != nil {
			t.Fatalf("write %q: %v", e.Path, err)
		}
	}
	if err := writer.WriteEndMarker(&buf); err != nil {
		t.Fatal(err)
	}

	reader := NewCodec(opts)
	for _, want := range entries {
		got, ok, err := reader.ReadEntry(&buf)
		if err != nil {
			t.Fatalf("read (want %q): %v", want.Path, err)
		}
		if !ok {
			t.Fatalf("unexpected end marker before %q", want.Path)
		}
		if got.Path != want.Path || got.Size != want.Size || got.UID != want.UID || got.GID != want.GID {
			t.Fatalf("mismatch for %q: got %+v want %+v", want.Path, got, want)
		}
		if got.Kind != want.Kind {
			t.Fatalf("kind mismatch for %q: got %s want %s", want.Path, got.Kind, want.Kind)
		}
		if want.Kind == KindSymlink && got.SymlinkTarget != want.SymlinkTarget {
			t.Fatalf("symlink target mismatch: got %q want %q", got.SymlinkTarget, want.SymlinkTarget)
		}
	}
	_, ok, err := reader.ReadEntry(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected end marker after last entry")
	}
}

func TestCodecSameNamePrefixCompression(t *testing.T) {
	opts := Options{Protocol: 31}
	var buf bytes.Buffer
	writer := NewCodec(opts)
	entries := []Entry{
		{Path: "dir/file-one", Kind: KindRegular, Mode: 0o644, ModTimeSeconds: 5, HardlinkGroup: -1},
		{Path: "dir/file-two", Kind: KindRegular, Mode: 0o644, ModTimeSeconds: 5, HardlinkGroup: -1},
	}
	for _, e := range entries {
		if err := writer.WriteEntry(&buf, e); err != nil {
			t.Fatal(err)
		}
	}
	writer.WriteEndMarker(&buf)

	reader := NewCodec(opts)
	for _, want := range entries {
		got, ok, err := reader.ReadEntry(&buf)
		if err != nil || !ok {
			t.Fatalf("read %q: ok=%v err=%v", want.Path, ok, err)
		}
		if got.Path != want.Path {
			t.Fatalf("got path %q want %q", got.Path, want.Path)
		}
	}
}

func TestHardlinkTrackerGroupsSharedInode(t *testing.T) {
	tracker := NewHardlinkTracker()
	first, hardlinked := tracker.Observe(1, 42, 0)
	if hardlinked {
		t.Fatal("first observation should not be hardlinked")
	}
	second, hardlinked := tracker.Observe(1, 42, 5)
	if !hardlinked || second != first {
		t.Fatalf("expected hardlinked=true first=%d, got hardlinked=%v first=%d", first, hardlinked, second)
	}
	_, hardlinked = tracker.Observe(1, 43, 6)
	if hardlinked {
		t.Fatal("different inode should not be grouped")
	}
}

func TestListEnsureValidRejectsDuplicatePaths(t *testing.T) {
	list := &List{Entries: []Entry{
		{Path: "a", Kind: KindRegular, HardlinkGroup: -1},
		{Path: "a", Kind: KindRegular, HardlinkGroup: -1},
	}}
	if err := list.EnsureValid(); err == nil {
		t.Fatal("expected duplicate path to be rejected")
	}
}

func TestEntryEnsureValidRejectsDotDot(t *testing.T) {
	e := Entry{Path: "a/../b", Kind: KindRegular, HardlinkGroup: -1}
	if err := e.EnsureValid(); err == nil {
		t.Fatal("expected \"..\" component to be rejected")
	}
}

func TestModeRoundTripsKind(t *testing.T) {
	for _, kind := range []Kind{KindRegular, KindDirectory, KindSymlink, KindDeviceChar, KindDeviceBlock, KindFIFO, KindSocket} {
		e := Entry{Kind: kind, Mode: 0o644}
		encoded := e.EncodedMode()
		if got := modeBitsToKind(encoded); got != kind {
			t.Fatalf("kind round trip failed: %s became %s", kind, got)
		}
	}
}

func TestSegmentWriterReaderRoundTrip(t *testing.T) {
	opts := Options{Protocol: 31}
	var buf bytes.Buffer
	w := NewSegmentWriter(31, opts)

	segment1 := []Entry{
		{Path: "root", Kind: KindDirectory, Mode: 0o755, HardlinkGroup: -1},
		{Path: "root/a", Kind: KindRegular, Mode: 0o644, HardlinkGroup: -1},
	}
	first, err := w.WriteSegment(&buf, segment1)
	if err != nil {
		t.Fatal(err)
	}
	if first != 0 {
		t.Fatalf("expected first segment to start at index 0, got %d", first)
	}
	if err := w.WriteSegmentBoundary(&buf); err != nil {
		t.Fatal(err)
	}

	segment2 := []Entry{
		{Path: "root/b", Kind: KindRegular, Mode: 0o644, HardlinkGroup: -1},
	}
	second, err := w.WriteSegment(&buf, segment2)
	if err != nil {
		t.Fatal(err)
	}
	if second != 2 {
		t.Fatalf("expected second segment to start at index 2, got %d", second)
	}
	if err := w.WriteListEnd(&buf); err != nil {
		t.Fatal(err)
	}

	r := NewSegmentReader(31, opts)
	got1, err := r.ReadSegment(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(got1) != 2 || got1[0].Index != 0 || got1[1].Index != 1 {
		t.Fatalf("unexpected first segment: %+v", got1)
	}
	done, err := r.ReadBoundary(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if done {
		t.Fatal("expected segment boundary, not list end")
	}

	got2, err := r.ReadSegment(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(got2) != 1 || got2[0].Index != 2 {
		t.Fatalf("unexpected second segment: %+v", got2)
	}
	done, err = r.ReadBoundary(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if !done {
		t.Fatal("expected list end")
	}
}

var _ wire.Reader = (*bytes.Buffer)(nil)
var _ wire.Writer = (*bytes.Buffer)(nil)
