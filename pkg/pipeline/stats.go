package pipeline

import "sync"

// Stats accumulates the statistics-phase counters spec.md 4.6 and 6
// describe: bytes moved, how much of that was literal versus matched from
// a basis, and how many files were touched. Safe for concurrent use by
// the generator, sender, and receiver roles.
type Stats struct {
	mu sync.Mutex

	FilesConsidered  int64
	FilesSkipped     int64
	FilesTransferred int64

	LiteralBytes  int64
	MatchedBytes  int64
	BytesSent     int64
	BytesReceived int64

	Redos           int64
	RedoExhaustions int64
}

// AddLiteral records n literal bytes sent or received.
func (s *Stats) AddLiteral(n int64) {
	s.mu.Lock()
	s.LiteralBytes += n
	s.mu.Unlock()
}

// AddMatched records n bytes reconstructed from a basis copy, rather than
// sent as literal data.
func (s *Stats) AddMatched(n int64) {
	s.mu.Lock()
	s.MatchedBytes += n
	s.mu.Unlock()
}

// AddSent records n bytes written to the transport.
func (s *Stats) AddSent(n int64) {
	s.mu.Lock()
	s.BytesSent += n
	s.mu.Unlock()
}

// AddReceived records n bytes read from the transport.
func (s *Stats) AddReceived(n int64) {
	s.mu.Lock()
	s.BytesReceived += n
	s.mu.Unlock()
}

// RecordSkip marks a file as considered but not transferred.
func (s *Stats) RecordSkip() {
	s.mu.Lock()
	s.FilesConsidered++
	s.FilesSkipped++
	s.mu.Unlock()
}

// RecordTransfer marks a file as considered and transferred.
func (s *Stats) RecordTransfer() {
	s.mu.Lock()
	s.FilesConsidered++
	s.FilesTransferred++
	s.mu.Unlock()
}

// RecordRedo marks one retry attempt, and RecordRedoExhaustion marks a
// file that ran out of retries.
func (s *Stats) RecordRedo() {
	s.mu.Lock()
	s.Redos++
	s.mu.Unlock()
}

func (s *Stats) RecordRedoExhaustion() {
	s.mu.Lock()
	s.RedoExhaustions++
	s.mu.Unlock()
}

// Snapshot returns a copy of the counters with no lock held, safe to log
// or compare in tests.
func (s *Stats) Snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		FilesConsidered:  s.FilesConsidered,
		FilesSkipped:     s.FilesSkipped,
		FilesTransferred: s.FilesTransferred,
		LiteralBytes:     s.LiteralBytes,
		MatchedBytes:     s.MatchedBytes,
		BytesSent:        s.BytesSent,
		BytesReceived:    s.BytesReceived,
		Redos:            s.Redos,
		RedoExhaustions:  s.RedoExhaustions,
	}
}

// SpeedupRatio reports how much smaller the wire transfer was than the
// total reconstituted bytes would have been sent as pure literal data —
// rsync's traditional "total size / bytes sent" headline number. Returns
// 1.0 when no bytes have moved yet.
func (s Stats) SpeedupRatio() float64 {
	total := s.LiteralBytes + s.MatchedBytes
	if s.BytesSent == 0 || total == 0 {
		return 1.0
	}
	return float64(total) / float64(s.BytesSent)
}
