package pipe

import (
	"io"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// childProc is one spawned child process with its three stdio pipes.
type childProc struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser

	waitOnce sync.Once
	waitErr  error
	exited   chan struct{}
}

// startProcess spawns the command with stdin, stdout and stderr redirected
// to pipes. The caller owns the returned process and must eventually reap
// it via stopProcess.
func startProcess(log *zap.SugaredLogger, command string, args ...string) (*childProc, error) {
	cmd := exec.Command(command, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &SpawnError{Command: command, Err: err}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &SpawnError{Command: command, Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, &SpawnError{Command: command, Err: err}
	}

	if err := cmd.Start(); err != nil {
		return nil, &SpawnError{Command: command, Err: err}
	}
	log.Infof("child process started: %s (PID %d)", command, cmd.Process.Pid)

	return &childProc{
		cmd:    cmd,
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
		exited: make(chan struct{}),
	}, nil
}

// pid returns the child's process ID.
func (p *childProc) pid() int { return p.cmd.Process.Pid }

// reap waits for the child to exit, exactly once, and releases it.
// Concurrent callers block until the first Wait completes.
func (p *childProc) reap() error {
	p.waitOnce.Do(func() {
		p.waitErr = p.cmd.Wait()
		close(p.exited)
	})
	return p.waitErr
}

// stopProcess terminates p: SIGTERM first, then SIGKILL if the child has
// not exited within grace. It always reaps the child before returning so
// no zombie is left behind, and is safe to call more than once or on a
// process that already exited.
func stopProcess(log *zap.SugaredLogger, p *childProc, grace time.Duration) {
	if p == nil {
		return
	}
	select {
	case <-p.exited:
		return
	default:
	}

	// Signal on an exited-but-unreaped process is a no-op, so this is
	// safe even if the child died between the check above and here.
	if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		log.Debugf("sending SIGTERM to PID %d: %s", p.pid(), err)
	}

	go p.reap()

	select {
	case <-p.exited:
		log.Debugf("child PID %d exited", p.pid())
	case <-time.After(grace):
		log.Warnf("child PID %d did not exit within %s, killing", p.pid(), grace)
		if err := p.cmd.Process.Kill(); err != nil {
			log.Debugf("killing PID %d: %s", p.pid(), err)
		}
		<-p.exited
	}
}
