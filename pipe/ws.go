package pipe

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

// readLimit bounds incoming WebSocket messages and child stdout lines.
// MCP tool results can be large.
const readLimit = 1 << 20

// conn wraps a WebSocket connection with keepalive probing and an
// idempotent close.
type conn struct {
	ws  *websocket.Conn
	log *zap.SugaredLogger

	closeOnce  sync.Once
	closed     chan struct{}
	cancelPing context.CancelFunc
}

// dialConn opens a WebSocket to cfg.Endpoint with the token carried as a
// query parameter and starts keepalive probing on the returned connection.
func dialConn(ctx context.Context, log *zap.SugaredLogger, cfg Config) (*conn, error) {
	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, &ConnectError{Endpoint: cfg.Endpoint, Err: err}
	}
	q := u.Query()
	q.Set("token", cfg.Token)
	u.RawQuery = q.Encode()

	ws, resp, err := websocket.Dial(ctx, u.String(), nil) //nolint:bodyclose // Dial closes resp.Body
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, &ConnectError{
				Endpoint: cfg.Endpoint,
				Err:      fmt.Errorf("HTTP %d: %w", resp.StatusCode, ErrAuthRejected),
			}
		}
		return nil, &ConnectError{Endpoint: cfg.Endpoint, Err: err}
	}
	ws.SetReadLimit(readLimit)

	c := &conn{
		ws:     ws,
		log:    log,
		closed: make(chan struct{}),
	}
	pingCtx, cancel := context.WithCancel(context.Background())
	c.cancelPing = cancel
	go c.keepalive(pingCtx, cfg.PingInterval, cfg.PingTimeout)
	return c, nil
}

// keepalive probes the peer so dead connections are detected even with no
// application traffic. A missed pong closes the connection, which unblocks
// any pending receive.
func (c *conn) keepalive(ctx context.Context, interval, timeout time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		pingCtx, cancel := context.WithTimeout(ctx, timeout)
		err := c.ws.Ping(pingCtx)
		cancel()
		if err != nil {
			if ctx.Err() == nil {
				c.log.Warnf("keepalive ping failed: %s", err)
				c.close(websocket.StatusPolicyViolation, "keepalive timeout")
			}
			return
		}
	}
}

// send forwards one message to the peer as a single text frame.
func (c *conn) send(ctx context.Context, msg []byte) error {
	return c.ws.Write(ctx, websocket.MessageText, msg)
}

// receive blocks until one message arrives from the peer.
func (c *conn) receive(ctx context.Context) ([]byte, error) {
	_, b, err := c.ws.Read(ctx)
	return b, err
}

// open reports whether the connection has not been closed locally.
func (c *conn) open() bool {
	select {
	case <-c.closed:
		return false
	default:
		return true
	}
}

// close closes the connection gracefully. Safe to call multiple times.
func (c *conn) close(code websocket.StatusCode, reason string) {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.cancelPing()
		if err := c.ws.Close(code, reason); err != nil {
			c.log.Debugf("closing connection: %s", err)
		}
	})
}
