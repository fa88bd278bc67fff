package pipeline

import (
	"bytes"
	"io"
	"testing"

	"github.com/synctree/rsyncd/pkg/checksum"
	"github.com/synctree/rsyncd/pkg/delta"
)

// seekBuffer is a minimal in-memory io.ReadWriteSeeker test double backed
// by a growable byte slice.
type seekBuffer struct {
	data []byte
	pos  int64
}

func (s *seekBuffer) Write(p []byte) (int, error) {
	end := s.pos + int64(len(p))
	if end > int64(len(s.data)) {
		grown := make([]byte, end)
		copy(grown, s.data)
		s.data = grown
	}
	copy(s.data[s.pos:end], p)
	s.pos = end
	return len(p), nil
}

func (s *seekBuffer) Read(p []byte) (int, error) {
	if s.pos >= int64(len(s.data)) {
		return 0, io.EOF
	}
	n := copy(p, s.data[s.pos:])
	s.pos += int64(n)
	return n, nil
}

func (s *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		s.pos = offset
	case io.SeekCurrent:
		s.pos += offset
	case io.SeekEnd:
		s.pos = int64(len(s.data)) + offset
	}
	return s.pos, nil
}

func TestPhaseMachineSequentialAdvance(t *testing.T) {
	m := NewMachine()
	if m.Current() != PhaseFileList {
		t.Fatalf("expected PhaseFileList, got %s", m.Current())
	}
	for _, want := range []Phase{PhaseTransfer, PhaseRedo, PhaseStatistics, PhaseDone} {
		if err := m.Advance(); err != nil {
			t.Fatalf("Advance: %v", err)
		}
		if m.Current() != want {
			t.Fatalf("expected %s, got %s", want, m.Current())
		}
	}
	if err := m.Advance(); err == nil {
		t.Fatal("expected error advancing past PhaseDone")
	}
}

func TestPhaseMachineSkipRedo(t *testing.T) {
	m := NewMachine()
	if err := m.Advance(); err != nil {
		t.Fatal(err)
	}
	if m.Current() != PhaseTransfer {
		t.Fatalf("expected PhaseTransfer, got %s", m.Current())
	}
	if err := m.SkipRedo(); err != nil {
		t.Fatalf("SkipRedo: %v", err)
	}
	if m.Current() != PhaseStatistics {
		t.Fatalf("expected PhaseStatistics after skip, got %s", m.Current())
	}
	if err := m.SkipRedo(); err == nil {
		t.Fatal("expected error calling SkipRedo from a non-transfer phase")
	}
}

func TestQuickCheckNoDestinationIsWhole(t *testing.T) {
	got := QuickCheck(QuickCheckInput{DestExists: false})
	if got != ActionWhole {
		t.Fatalf("expected ActionWhole, got %s", got)
	}
}

func TestQuickCheckMatchingSizeAndTimeSkips(t *testing.T) {
	got := QuickCheck(QuickCheckInput{
		DestExists:    true,
		SourceSize:    100,
		DestSize:      100,
		SourceModTime: 1000,
		DestModTime:   1000,
	})
	if got != ActionSkip {
		t.Fatalf("expected ActionSkip, got %s", got)
	}
}

func TestQuickCheckWithinModifyWindowSkips(t *testing.T) {
	got := QuickCheck(QuickCheckInput{
		DestExists:          true,
		SourceSize:          100,
		DestSize:            100,
		SourceModTime:       1005,
		DestModTime:         1000,
		ModifyWindowSeconds: 10,
	})
	if got != ActionSkip {
		t.Fatalf("expected ActionSkip within modify window, got %s", got)
	}
}

func TestQuickCheckDifferingSizeIsDelta(t *testing.T) {
	got := QuickCheck(QuickCheckInput{
		DestExists:    true,
		SourceSize:    100,
		DestSize:      50,
		SourceModTime: 1000,
		DestModTime:   1000,
	})
	if got != ActionDelta {
		t.Fatalf("expected ActionDelta, got %s", got)
	}
}

func TestQuickCheckChecksumModeForcesDeltaOnMismatch(t *testing.T) {
	got := QuickCheck(QuickCheckInput{
		DestExists:     true,
		SourceSize:     100,
		DestSize:       100,
		SourceModTime:  1000,
		DestModTime:    1000,
		ChecksumMode:   true,
		SourceChecksum: []byte{1, 2, 3},
		DestChecksum:   []byte{1, 2, 4},
	})
	if got != ActionDelta {
		t.Fatalf("expected ActionDelta on checksum mismatch, got %s", got)
	}
}

func TestQuickCheckChecksumModeSkipsOnMatch(t *testing.T) {
	got := QuickCheck(QuickCheckInput{
		DestExists:     true,
		SourceSize:     100,
		DestSize:       100,
		SourceModTime:  1000,
		DestModTime:    1000,
		ChecksumMode:   true,
		SourceChecksum: []byte{9, 9, 9},
		DestChecksum:   []byte{9, 9, 9},
	})
	if got != ActionSkip {
		t.Fatalf("expected ActionSkip on checksum match, got %s", got)
	}
}

type fakeProber struct {
	existing map[string]bool
}

func (p fakeProber) Exists(dir, relativePath string) bool {
	return p.existing[dir+"/"+relativePath]
}

func TestSelectBasisPriorityOrder(t *testing.T) {
	prober := fakeProber{existing: map[string]bool{
		"link/a.txt":    true,
		"copy/a.txt":    true,
		"compare/a.txt": true,
	}}
	// link-dest should win over copy-dest and compare-dest even though
	// all three have the file, since exact destination doesn't.
	got := SelectBasis(prober, "a.txt", "dest", []string{"link"}, []string{"copy"}, []string{"compare"}, "", "")
	if got.Kind != BasisLinkDest || got.Dir != "link" {
		t.Fatalf("expected link-dest basis, got %+v", got)
	}
}

func TestSelectBasisExactDestinationWins(t *testing.T) {
	prober := fakeProber{existing: map[string]bool{
		"dest/a.txt": true,
		"link/a.txt": true,
	}}
	got := SelectBasis(prober, "a.txt", "dest", []string{"link"}, nil, nil, "", "")
	if got.Kind != BasisExact {
		t.Fatalf("expected exact basis, got %+v", got)
	}
}

func TestSelectBasisFallsThroughToPartial(t *testing.T) {
	prober := fakeProber{existing: map[string]bool{
		"partial/a.txt": true,
	}}
	got := SelectBasis(prober, "a.txt", "dest", nil, nil, nil, "", "partial")
	if got.Kind != BasisPartial {
		t.Fatalf("expected partial basis, got %+v", got)
	}
}

func TestSelectBasisNoneWhenNothingExists(t *testing.T) {
	got := SelectBasis(fakeProber{}, "a.txt", "dest", nil, nil, nil, "", "")
	if got.Kind != BasisNone {
		t.Fatalf("expected BasisNone, got %+v", got)
	}
}

func TestCompareDestIsReadOnly(t *testing.T) {
	if !BasisCompareDest.ReadOnly() {
		t.Fatal("expected compare-dest basis to be read-only")
	}
	if BasisLinkDest.ReadOnly() {
		t.Fatal("expected link-dest basis to not be read-only")
	}
}

func TestRedoQueueBoundedRetries(t *testing.T) {
	q := NewQueue(2)
	for i := 1; i <= 2; i++ {
		attempt, exhausted := q.Record(7, RedoChecksumMismatch)
		if exhausted {
			t.Fatalf("attempt %d should not be exhausted yet", i)
		}
		if attempt != i {
			t.Fatalf("expected attempt %d, got %d", i, attempt)
		}
	}
	_, exhausted := q.Record(7, RedoChecksumMismatch)
	if !exhausted {
		t.Fatal("expected exhaustion on third attempt with max 2")
	}
}

func TestRedoQueuePendingDrains(t *testing.T) {
	q := NewQueue(3)
	q.Record(1, RedoChecksumMismatch)
	q.Record(2, RedoBasisChanged)
	pending := q.Pending()
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending entries, got %d", len(pending))
	}
	if !q.Empty() {
		t.Fatal("expected queue to be empty after draining Pending")
	}
}

func TestGeneratorSenderInstructionRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := &buf
	g := NewGeneratorSide(30)
	sig, err := delta.GenerateSignature(bytes.NewReader([]byte("hello world")), 4, checksum.XXH3, checksum.Seed(1), 8)
	if err != nil {
		t.Fatal(err)
	}
	if err := g.SendInstruction(w, Instruction{Index: 42, Signature: sig}); err != nil {
		t.Fatalf("SendInstruction: %v", err)
	}
	if err := g.SendDone(w); err != nil {
		t.Fatalf("SendDone: %v", err)
	}

	r := &buf
	s := NewSenderSide(30, checksum.XXH3, checksum.Seed(1), 8, 0)
	index, gotSig, done, err := s.ReceiveInstruction(r)
	if err != nil {
		t.Fatalf("ReceiveInstruction: %v", err)
	}
	if done || index != 42 {
		t.Fatalf("expected index 42 not done, got index=%d done=%v", index, done)
	}
	if gotSig.Count != sig.Count || gotSig.BlockSize != sig.BlockSize {
		t.Fatalf("signature mismatch: got %+v want %+v", gotSig, sig)
	}

	_, _, done, err = s.ReceiveInstruction(r)
	if err != nil {
		t.Fatalf("ReceiveInstruction (done): %v", err)
	}
	if !done {
		t.Fatal("expected done sentinel on second read")
	}
}

func TestCoordinatorRunFileWholeTransfer(t *testing.T) {
	c := NewCoordinator(checksum.XXH3, checksum.Seed(1), 8, 30, DefaultMaxRetries)
	dest := &seekBuffer{}
	ft := FileTransfer{
		Index:  0,
		Action: ActionWhole,
		Source: bytes.NewReader([]byte("brand new content")),
		Output: dest,
	}
	if err := c.RunFile(ft); err != nil {
		t.Fatalf("RunFile: %v", err)
	}
	if !bytes.Equal(dest.data, []byte("brand new content")) {
		t.Fatalf("unexpected output: %q", dest.data)
	}
	if c.Stats.Snapshot().FilesTransferred != 1 {
		t.Fatal("expected one file transferred")
	}
}

func TestCoordinatorRunFileDeltaTransfer(t *testing.T) {
	c := NewCoordinator(checksum.XXH3, checksum.Seed(1), 8, 30, DefaultMaxRetries)
	c.BlockSize = 8
	basisContent := bytes.Repeat([]byte("abcdefgh"), 64) // 512 bytes
	target := make([]byte, len(basisContent))
	copy(target, basisContent)
	target[100] = 'Z'

	basis := &seekBuffer{data: append([]byte(nil), basisContent...)}
	dest := &seekBuffer{}
	ft := FileTransfer{
		Index:  1,
		Action: ActionDelta,
		Source: bytes.NewReader(target),
		Basis:  basis,
		Output: dest,
	}
	if err := c.RunFile(ft); err != nil {
		t.Fatalf("RunFile: %v", err)
	}
	if !bytes.Equal(dest.data, target) {
		t.Fatal("reconstituted output does not match target")
	}
	snap := c.Stats.Snapshot()
	if snap.LiteralBytes == 0 {
		t.Fatal("expected some literal bytes for the single changed byte")
	}
}

func TestCoordinatorRunFileSkip(t *testing.T) {
	c := NewCoordinator(checksum.XXH3, checksum.Seed(1), 8, 30, DefaultMaxRetries)
	ft := FileTransfer{Index: 2, Action: ActionSkip}
	if err := c.RunFile(ft); err != nil {
		t.Fatalf("RunFile: %v", err)
	}
	if c.Stats.Snapshot().FilesSkipped != 1 {
		t.Fatal("expected one file skipped")
	}
}

func TestCoordinatorRunFileBasisChangedTriggersRedo(t *testing.T) {
	c := NewCoordinator(checksum.XXH3, checksum.Seed(1), 8, 30, DefaultMaxRetries)
	ft := FileTransfer{Index: 3, Action: ActionDelta, BasisChanged: true}
	err := c.RunFile(ft)
	if err != ErrBasisChanged {
		t.Fatalf("expected ErrBasisChanged, got %v", err)
	}
	retry := c.RunRedo(3, RedoBasisChanged)
	if !retry {
		t.Fatal("expected first failure to be retriable")
	}
}

func TestCoordinatorRedoExhaustion(t *testing.T) {
	c := NewCoordinator(checksum.XXH3, checksum.Seed(1), 8, 30, 1)
	if !c.RunRedo(5, RedoChecksumMismatch) {
		t.Fatal("first retry should be allowed")
	}
	if c.RunRedo(5, RedoChecksumMismatch) {
		t.Fatal("second retry should be exhausted with maxRetries=1")
	}
	if c.Stats.Snapshot().RedoExhaustions != 1 {
		t.Fatal("expected one redo exhaustion recorded")
	}
}

func TestStatsSpeedupRatio(t *testing.T) {
	s := &Stats{}
	if s.SpeedupRatio() != 1.0 {
		t.Fatal("expected 1.0 speedup with no data")
	}
	s.AddLiteral(100)
	s.AddMatched(900)
	s.AddSent(100)
	if ratio := s.SpeedupRatio(); ratio != 10.0 {
		t.Fatalf("expected 10x speedup, got %f", ratio)
	}
}
