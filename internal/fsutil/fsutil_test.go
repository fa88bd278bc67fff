package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/synctree/rsyncd/pkg/flist"
)

func TestOSStatSourceReadDir(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "b.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(root, "a-dir"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink("b.txt", filepath.Join(root, "c-link")); err != nil {
		t.Fatal(err)
	}

	source := OSStatSource{Root: root}
	entries, err := source.ReadDir("")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}

	// Sorted lexicographically: a-dir, b.txt, c-link.
	if entries[0].Name != "a-dir" || entries[0].Kind != flist.KindDirectory {
		t.Fatalf("unexpected first entry: %+v", entries[0])
	}
	if entries[1].Name != "b.txt" || entries[1].Kind != flist.KindRegular || entries[1].Size != 5 {
		t.Fatalf("unexpected second entry: %+v", entries[1])
	}
	if entries[2].Name != "c-link" || entries[2].Kind != flist.KindSymlink || entries[2].SymlinkTarget != "b.txt" {
		t.Fatalf("unexpected third entry: %+v", entries[2])
	}
}

func TestWalkIntegratesWithOSStatSource(t *testing.T) {
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "sub", "file.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	var list flist.List
	if err := flist.Walk(OSStatSource{Root: root}, nil, &list); err != nil {
		t.Fatal(err)
	}
	if list.Len() != 2 {
		t.Fatalf("got %d entries, want 2", list.Len())
	}
	if list.At(0).Path != "sub" || list.At(1).Path != "sub/file.txt" {
		t.Fatalf("unexpected walk order: %q, %q", list.At(0).Path, list.At(1).Path)
	}
}

func TestMakedevRoundTrip(t *testing.T) {
	dev := Makedev(8, 1)
	if dev == 0 {
		t.Fatal("expected a non-zero composed device number")
	}
	if major, minor := unix.Major(dev), unix.Minor(dev); major != 8 || minor != 1 {
		t.Fatalf("Makedev(8, 1) decomposed to (%d, %d), want (8, 1)", major, minor)
	}
}
