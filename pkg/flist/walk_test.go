package flist

import "testing"

// fixtureSource is a synthetic StatSource backed by an in-memory tree,
// keyed by relative path ("" for the root).
type fixtureSource struct {
	children map[string][]DirEntry
}

func (f *fixtureSource) ReadDir(relativePath string) ([]DirEntry, error) {
	return f.children[relativePath], nil
}

func newFixture() *fixtureSource {
	return &fixtureSource{children: map[string][]DirEntry{
		"": {
			{Name: "docs", Kind: KindDirectory, Mode: 0o755},
			{Name: "readme.txt", Kind: KindRegular, Mode: 0o644, Size: 10},
			{Name: "secret.key", Kind: KindRegular, Mode: 0o600, Size: 5},
		},
		"docs": {
			{Name: "a.txt", Kind: KindRegular, Mode: 0o644, Size: 1, Device: 1, Inode: 100},
			{Name: "b.txt", Kind: KindRegular, Mode: 0o644, Size: 1, Device: 1, Inode: 100},
		},
	}}
}

// excludeFilter excludes the top-level path "secret.key".
type excludeFilter struct{}

func (excludeFilter) Evaluate(relativePath string, isDir bool) FilterDecision {
	if relativePath == "secret.key" {
		return FilterExclude
	}
	return FilterInclude
}
func (excludeFilter) EnterDirectory(string) {}
func (excludeFilter) ExitDirectory(string)  {}

func TestWalkAppliesFilterExclusion(t *testing.T) {
	source := newFixture()
	list := &List{}
	if err := Walk(source, excludeFilter{}, list); err != nil {
		t.Fatal(err)
	}

	for _, e := range list.Entries {
		if e.Path == "secret.key" {
			t.Fatal("excluded path was admitted into the list")
		}
	}
	if list.Len() == 0 {
		t.Fatal("expected some entries to be admitted")
	}
}

func TestWalkDetectsHardlinks(t *testing.T) {
	source := newFixture()
	list := &List{}
	if err := Walk(source, nil, list); err != nil {
		t.Fatal(err)
	}

	var a, b *Entry
	for i := range list.Entries {
		switch list.Entries[i].Path {
		case "docs/a.txt":
			a = &list.Entries[i]
		case "docs/b.txt":
			b = &list.Entries[i]
		}
	}
	if a == nil || b == nil {
		t.Fatal("expected both docs/a.txt and docs/b.txt to be walked")
	}
	if a.IsHardlinked() {
		t.Fatal("first occurrence of a shared inode should not be marked hardlinked")
	}
	if !b.IsHardlinked() {
		t.Fatal("second occurrence of a shared inode should be marked hardlinked")
	}
}

func TestWalkDefaultFilterAdmitsEverything(t *testing.T) {
	source := newFixture()
	list := &List{}
	if err := Walk(source, AcceptAllFilter{}, list); err != nil {
		t.Fatal(err)
	}
	found := false
	for _, e := range list.Entries {
		if e.Path == "secret.key" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected secret.key to be admitted under AcceptAllFilter")
	}
}
