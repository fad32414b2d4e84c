package net

import (
	"net"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

// Server accepts TCP connections and creates Sessions. New sessions reach
// the simulation loop through a channel it drains once per step.
type Server struct {
	listener net.Listener
	nextID   atomic.Uint64
	newConns chan *Session
	cfg      SessionConfig
	log      *zap.Logger
	closeCh  chan struct{}
	closed   atomic.Bool
}

func NewServer(bindAddr string, cfg SessionConfig, log *zap.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return nil, err
	}
	return newServer(ln, cfg, log), nil
}

func newServer(ln net.Listener, cfg SessionConfig, log *zap.Logger) *Server {
	return &Server{
		listener: ln,
		newConns: make(chan *Session, 64),
		cfg:      cfg,
		log:      log,
		closeCh:  make(chan struct{}),
	}
}

// AcceptLoop runs in its own goroutine until Shutdown. Repeated accept
// failures back off from minAcceptDelay up to maxAcceptDelay.
func (s *Server) AcceptLoop() error {
	var delay time.Duration
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.closeCh:
				return nil
			default:
			}
			if delay == 0 {
				delay = minAcceptDelay
			} else {
				delay = min(2*delay, maxAcceptDelay)
			}
			s.log.Error("accept failed", zap.Duration("retry_in", delay), zap.Error(err))
			select {
			case <-s.closeCh:
				return nil
			case <-time.After(delay):
			}
			continue
		}
		delay = 0

		sess := NewSession(conn, s.nextID.Add(1), s.cfg, s.log)
		sess.Start()
		sess.log.Info("connection accepted")

		select {
		case s.newConns <- sess:
		default:
			sess.log.Warn("accept queue full, refusing connection")
			sess.Close()
		}
	}
}

// NewSessions returns the channel of newly accepted sessions.
func (s *Server) NewSessions() <-chan *Session {
	return s.newConns
}

// Shutdown stops accepting new connections. Safe to call more than once.
func (s *Server) Shutdown() {
	if s.closed.Swap(true) {
		return
	}
	close(s.closeCh)
	s.listener.Close()
}

func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}
