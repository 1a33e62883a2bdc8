// Package pipe bridges a locally-spawned child process speaking a
// line-delimited protocol on its standard streams to a remote WebSocket
// endpoint, so that each side sees the other as its peer. The pipe
// restarts the child and reconnects with exponential backoff until it is
// explicitly stopped; it never interprets the payloads it relays.
package pipe

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

// Pipe states, visible through Snapshot.
const (
	StateConnecting = "connecting"
	StateRelaying   = "relaying"
	StateBackoff    = "backoff"
	StateStopped    = "stopped"
)

// Pipe is one supervised bridging session. At most one child process and
// one connection are alive at a time; both are owned exclusively by the
// pipe and torn down together when either side is lost.
type Pipe struct {
	cfg Config
	log *zap.SugaredLogger

	stopOnce sync.Once
	stopCh   chan struct{}

	mu    sync.Mutex
	state string
	proc  *childProc
	conn  *conn
	retry *backoff

	cycles   atomic.Int64
	sent     atomic.Int64
	received atomic.Int64
	dropped  atomic.Int64
}

// New builds a Pipe from cfg. Run starts it, Stop halts it.
func New(cfg Config, log *zap.SugaredLogger) *Pipe {
	return &Pipe{
		cfg:    cfg,
		log:    log.Named("pipe"),
		stopCh: make(chan struct{}),
		retry:  newBackoff(cfg.ReconnectDelay, cfg.MaxReconnectDelay),
		state:  StateConnecting,
	}
}

// Run drives connect/relay/teardown cycles until Stop is called or ctx is
// cancelled. Per-cycle failures are logged and retried with backoff; Run
// has no error return because the pipe self-heals indefinitely.
func (p *Pipe) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-p.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	for p.running() && ctx.Err() == nil {
		p.cycle(ctx)
	}

	p.setState(StateStopped)
	p.log.Info("pipe stopped")
}

// Stop halts the pipe: the running flag is cleared, the current socket is
// closed and the current child is terminated with the configured grace
// period, so an in-flight cycle unwinds promptly rather than waiting for
// a relay hop to notice. Safe to call more than once.
func (p *Pipe) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopCh)

		p.mu.Lock()
		proc, cn := p.proc, p.conn
		p.mu.Unlock()

		if cn != nil {
			cn.close(websocket.StatusNormalClosure, "shutting down")
		}
		stopProcess(p.log, proc, p.cfg.GracePeriod)
	})
}

// running reports whether Stop has not been called yet.
func (p *Pipe) running() bool {
	select {
	case <-p.stopCh:
		return false
	default:
		return true
	}
}

// cycle is one pass of the CONNECTING -> RELAYING -> TEARDOWN -> BACKOFF
// state machine. The child is restarted on every attempt; it is never
// kept alive across failed connections.
func (p *Pipe) cycle(ctx context.Context) {
	p.cycles.Add(1)
	p.setState(StateConnecting)

	fields := strings.Fields(p.cfg.Command)
	proc, err := startProcess(p.log, fields[0], fields[1:]...)
	if err != nil {
		p.log.Errorf("starting child: %s", err)
		p.waitBackoff(ctx)
		return
	}
	p.setProc(proc)

	cn, err := dialConn(ctx, p.log.Named("ws"), p.cfg)
	if err != nil {
		p.log.Errorf("%s", err)
		if errors.Is(err, ErrAuthRejected) {
			p.log.Error("authentication failed: verify XIAOZHI_TOKEN against your xiaozhi account settings (https://api.xiaozhi.me)")
		}
		stopProcess(p.log, proc, p.cfg.GracePeriod)
		p.setProc(nil)
		p.waitBackoff(ctx)
		return
	}
	p.setConn(cn)
	p.resetBackoff()
	p.log.Infof("connected to %s", p.cfg.Endpoint)

	p.setState(StateRelaying)
	p.relay(ctx, proc, cn)

	p.setConn(nil)
	p.setProc(nil)

	if p.running() && ctx.Err() == nil {
		p.waitBackoff(ctx)
	}
}

// relay pumps records between the child and the connection until any one
// hop ends, then shuts both ends down so the remaining hops unblock, and
// joins them. The hops hold references to this cycle's process and
// connection but do not own their lifecycle.
func (p *Pipe) relay(ctx context.Context, proc *childProc, cn *conn) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 3)
	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); done <- p.pumpStdout(ctx, proc, cn) }()
	go func() { defer wg.Done(); done <- p.pumpSocket(ctx, proc, cn) }()
	go func() { defer wg.Done(); done <- p.pumpStderr(proc) }()

	select {
	case err := <-done:
		if err != nil {
			p.log.Warnf("relay cycle ended: %s", err)
		} else {
			p.log.Info("relay cycle ended")
		}
	case <-ctx.Done():
	}

	// Closing the socket unblocks the pending receive, and stopping the
	// child delivers EOF to the stdout/stderr readers. Only after both
	// can the hops be joined.
	cancel()
	cn.close(websocket.StatusNormalClosure, "")
	stopProcess(p.log, proc, p.cfg.GracePeriod)
	wg.Wait()
}

// pumpStdout forwards newline-delimited records from the child's stdout
// to the socket. A record read while the socket is closed is dropped, not
// buffered: delivery is at-most-once on every hop. Ends on stdout EOF.
func (p *Pipe) pumpStdout(ctx context.Context, proc *childProc, cn *conn) error {
	sc := bufio.NewScanner(proc.stdout)
	sc.Buffer(make([]byte, 64*1024), readLimit)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		if !cn.open() {
			p.dropped.Add(1)
			continue
		}
		if err := cn.send(ctx, line); err != nil {
			if ctx.Err() != nil || !cn.open() {
				p.dropped.Add(1)
				continue
			}
			return &StreamError{Hop: "stdout->socket", Err: err}
		}
		p.sent.Add(1)
		p.log.Debugf("process -> ws: %s", truncate(line, 100))
	}
	if err := sc.Err(); err != nil {
		return &StreamError{Hop: "stdout->socket", Err: err}
	}
	p.log.Debug("child stdout closed")
	return nil
}

// pumpSocket forwards messages from the socket to the child's stdin, each
// terminated by exactly one newline and fully written before the next
// receive, so the child always sees complete lines in receipt order. Ends
// when the connection closes.
func (p *Pipe) pumpSocket(ctx context.Context, proc *childProc, cn *conn) error {
	for {
		msg, err := cn.receive(ctx)
		if err != nil {
			if ctx.Err() != nil || !cn.open() || websocket.CloseStatus(err) != -1 {
				p.log.Debugf("socket closed: %s", err)
				return nil
			}
			return &StreamError{Hop: "socket->stdin", Err: err}
		}
		p.log.Debugf("ws -> process: %s", truncate(msg, 100))

		if _, err := proc.stdin.Write(append(msg, '\n')); err != nil {
			return &StreamError{Hop: "socket->stdin", Err: err}
		}
		p.received.Add(1)
	}
}

// pumpStderr forwards the child's diagnostic output to the log, one line
// per entry. Ends on stderr EOF.
func (p *Pipe) pumpStderr(proc *childProc) error {
	childLog := p.log.Named("child")
	sc := bufio.NewScanner(proc.stderr)
	sc.Buffer(make([]byte, 64*1024), readLimit)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			childLog.Info(line)
		}
	}
	if err := sc.Err(); err != nil {
		return &StreamError{Hop: "stderr->log", Err: err}
	}
	return nil
}

// waitBackoff sleeps for the current backoff delay, then doubles it
// (bounded). The sleep is cut short by stop or context cancellation.
func (p *Pipe) waitBackoff(ctx context.Context) {
	p.setState(StateBackoff)

	p.mu.Lock()
	d := p.retry.delay()
	p.mu.Unlock()
	p.log.Infof("reconnecting in %s", d)

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}

	p.mu.Lock()
	p.retry.advance()
	p.mu.Unlock()
}

func (p *Pipe) resetBackoff() {
	p.mu.Lock()
	p.retry.reset()
	p.mu.Unlock()
}

func (p *Pipe) setState(s string) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

func (p *Pipe) setProc(proc *childProc) {
	p.mu.Lock()
	p.proc = proc
	p.mu.Unlock()
}

func (p *Pipe) setConn(cn *conn) {
	p.mu.Lock()
	p.conn = cn
	p.mu.Unlock()
}

// Snapshot is a point-in-time view of the pipe for the status endpoint.
type Snapshot struct {
	State            string `json:"state"`
	Connected        bool   `json:"connected"`
	ChildPID         int    `json:"child_pid,omitempty"`
	ReconnectDelay   string `json:"reconnect_delay"`
	Cycles           int64  `json:"cycles"`
	MessagesSent     int64  `json:"messages_sent"`
	MessagesReceived int64  `json:"messages_received"`
	MessagesDropped  int64  `json:"messages_dropped"`
}

// Snapshot reports the pipe's current state.
func (p *Pipe) Snapshot() Snapshot {
	p.mu.Lock()
	snap := Snapshot{
		State:          p.state,
		Connected:      p.conn != nil && p.conn.open(),
		ReconnectDelay: p.retry.delay().String(),
	}
	if p.proc != nil {
		snap.ChildPID = p.proc.pid()
	}
	p.mu.Unlock()

	snap.Cycles = p.cycles.Load()
	snap.MessagesSent = p.sent.Load()
	snap.MessagesReceived = p.received.Load()
	snap.MessagesDropped = p.dropped.Load()
	return snap
}

// truncate shortens b for log lines.
func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
