package transport

import (
	"io"
	"os/exec"
	"runtime"
	"syscall"
	"time"

	"github.com/pkg/errors"
)

// ProcessStream implements Stream around the standard input/output of a
// subprocess (the shell/SSH collaborator spec.md names: `ssh host
// rsync --server ...` or a bare local `rsync --server` invocation for
// the same-host case). Closing it terminates the subprocess. Grounded
// on the teacher's pkg/process/connection.go Stream, carrying over its
// kill-delay-then-SIGTERM-then-wait shutdown sequence.
type ProcessStream struct {
	process   *exec.Cmd
	stdout    io.Reader
	stdin     io.Writer
	killDelay time.Duration
}

// NewProcessStream wraps process, redirecting its stdin/stdout. It must
// be called before process is started; the returned Stream must only
// be used after process.Start succeeds. killDelay bounds how long
// Close waits for the process to exit on its own before sending
// SIGTERM.
func NewProcessStream(process *exec.Cmd, killDelay time.Duration) (*ProcessStream, error) {
	stdin, err := process.StdinPipe()
	if err != nil {
		return nil, errors.Wrap(err, "unable to redirect process input")
	}
	stdout, err := process.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "unable to redirect process output")
	}
	return &ProcessStream{
		process:   process,
		stdout:    stdout,
		stdin:     stdin,
		killDelay: killDelay,
	}, nil
}

// Start starts the underlying process.
func (s *ProcessStream) Start() error {
	if err := s.process.Start(); err != nil {
		return errors.Wrap(err, "unable to start transport process")
	}
	return nil
}

// Read implements io.Reader.Read.
func (s *ProcessStream) Read(buffer []byte) (int, error) {
	return s.stdout.Read(buffer)
}

// Write implements io.Writer.Write.
func (s *ProcessStream) Write(buffer []byte) (int, error) {
	return s.stdin.Write(buffer)
}

// Close terminates the subprocess and waits for it to exit, waiting up
// to killDelay for it to exit on its own before signaling it.
func (s *ProcessStream) Close() error {
	waitResult := make(chan error, 1)
	go func() { waitResult <- s.process.Wait() }()

	if s.killDelay > 0 {
		timer := time.NewTimer(s.killDelay)
		select {
		case err := <-waitResult:
			timer.Stop()
			if err != nil {
				return errors.Wrap(err, "transport process wait failed")
			}
			return nil
		case <-timer.C:
		}
	}

	if runtime.GOOS == "windows" {
		s.process.Process.Kill()
	} else {
		s.process.Process.Signal(syscall.SIGTERM)
	}

	if err := <-waitResult; err != nil {
		return errors.Wrap(err, "transport process wait failed")
	}
	return nil
}
