package net

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
)

// Dial connects to a server and starts the session. The session begins in
// the Connecting state; the caller sends the handshake.
func Dial(ctx context.Context, addr string, timeout time.Duration, cfg SessionConfig, log *zap.Logger) (*Session, error) {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	sess := NewSession(conn, 0, cfg, log)
	sess.Start()
	return sess, nil
}
