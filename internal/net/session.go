package net

import (
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/boxworld/box/internal/config"
	"github.com/boxworld/box/internal/message"
	"github.com/boxworld/box/internal/net/protocol"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrSessionClosed is returned when sending on a closed or closing session.
var ErrSessionClosed = errors.New("session closed")

// SessionConfig sizes the per-connection queues and limits.
type SessionConfig struct {
	InQueueSize     int
	OutQueueSize    int
	ReadBuffer      int
	MaxBuffered     int
	WriteTimeout    time.Duration
	FramesPerSecond int // 0 = unlimited
	FrameBurst      int
}

// NewSessionConfig maps the network settings. The pending-input bound is
// raised to MaxFrameSize so a legal frame split across reads always fits.
func NewSessionConfig(c config.NetworkConfig) SessionConfig {
	return SessionConfig{
		InQueueSize:     c.InQueueSize,
		OutQueueSize:    c.OutQueueSize,
		ReadBuffer:      c.ReadBuffer,
		MaxBuffered:     max(c.MaxBufferedBytes, MaxFrameSize),
		WriteTimeout:    c.WriteTimeout,
		FramesPerSecond: c.FramesPerSecond,
		FrameBurst:      c.FrameBurst,
	}
}

// Session is one TCP stream. Reads and writes run in their own goroutines;
// everything else is called from the simulation loop only.
type Session struct {
	ID    uint64
	Trace uuid.UUID
	conn  net.Conn
	state atomic.Int32 // protocol.State

	InQueue  chan []byte // raw chunks from readLoop
	OutQueue chan []byte // whole frames for writeLoop; nil closes after drain

	frames  *FrameBuffer
	limiter *rate.Limiter
	outBuf  [][]byte
	closing bool
	cfg     SessionConfig

	closeCh   chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool

	log *zap.Logger
}

func NewSession(conn net.Conn, id uint64, cfg SessionConfig, log *zap.Logger) *Session {
	if cfg.ReadBuffer <= 0 {
		cfg.ReadBuffer = 4096
	}
	s := &Session{
		ID:       id,
		Trace:    uuid.New(),
		conn:     conn,
		InQueue:  make(chan []byte, cfg.InQueueSize),
		OutQueue: make(chan []byte, cfg.OutQueueSize),
		frames:   NewFrameBuffer(cfg.MaxBuffered),
		cfg:      cfg,
		closeCh:  make(chan struct{}),
	}
	if cfg.FramesPerSecond > 0 {
		burst := cfg.FrameBurst
		if burst <= 0 {
			burst = cfg.FramesPerSecond
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.FramesPerSecond), burst)
	}
	s.log = log.With(
		zap.Uint64("session", id),
		zap.String("trace", s.Trace.String()),
		zap.String("remote", conn.RemoteAddr().String()),
	)
	s.state.Store(int32(protocol.StateConnecting))
	return s
}

func (s *Session) State() protocol.State {
	return protocol.State(s.state.Load())
}

func (s *Session) SetState(st protocol.State) {
	s.state.Store(int32(st))
}

// Start launches the reader and writer goroutines.
func (s *Session) Start() {
	go s.readLoop()
	go s.writeLoop()
}

// Receive drains up to maxChunks queued reads without blocking and returns
// the whole frames they complete. A malformed frame discards all pending
// input and is reported as an error with no messages.
func (s *Session) Receive(maxChunks int) ([]message.NetworkMessage, error) {
	for i := 0; i < maxChunks; i++ {
		select {
		case chunk := <-s.InQueue:
			_, _ = s.frames.Write(chunk)
			continue
		default:
		}
		break
	}
	msgs, err := s.frames.Decode()
	if err != nil {
		return nil, err
	}
	if s.limiter == nil {
		return msgs, nil
	}
	for i := range msgs {
		if !s.limiter.Allow() {
			s.log.Warn("frame rate exceeded, closing", zap.Int("accepted", i))
			s.Close()
			return msgs[:i], nil
		}
	}
	return msgs, nil
}

// Done reports whether the stream is gone and every queued read consumed.
func (s *Session) Done() bool {
	return s.closed.Load() && len(s.InQueue) == 0
}

// Send encodes msg and buffers it until FlushOutput.
func (s *Session) Send(msg message.NetworkMessage) error {
	frame, err := EncodeFrame(msg)
	if err != nil {
		return err
	}
	return s.SendFrame(frame)
}

// SendFrame buffers an already encoded frame, so a broadcast encodes once.
func (s *Session) SendFrame(frame []byte) error {
	if s.closing || s.closed.Load() {
		return ErrSessionClosed
	}
	s.outBuf = append(s.outBuf, frame)
	return nil
}

// CloseWhenDrained closes the stream once everything already sent has
// been written. Later sends fail with ErrSessionClosed.
func (s *Session) CloseWhenDrained() {
	if s.closing || s.closed.Load() {
		return
	}
	s.closing = true
	s.outBuf = append(s.outBuf, nil)
}

// FlushOutput hands buffered frames to the writer. A full OutQueue means a
// slow peer and closes the session.
func (s *Session) FlushOutput() {
	for _, data := range s.outBuf {
		select {
		case s.OutQueue <- data:
		default:
			s.log.Warn("output queue full, closing slow session")
			s.Close()
			s.outBuf = s.outBuf[:0]
			return
		}
	}
	s.outBuf = s.outBuf[:0]
}

func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.SetState(protocol.StateDisconnected)
		close(s.closeCh)
		s.conn.Close()
	})
}

// Closed is closed once the session has shut down.
func (s *Session) Closed() <-chan struct{} {
	return s.closeCh
}

func (s *Session) IsClosed() bool {
	return s.closed.Load()
}

// readLoop pushes raw chunks to InQueue. Frame boundaries are found later
// by the FrameBuffer, so a chunk may hold any number of partial frames.
func (s *Session) readLoop() {
	defer s.Close()

	buf := make([]byte, s.cfg.ReadBuffer)
	for {
		n, err := s.conn.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case s.InQueue <- chunk:
			case <-s.closeCh:
				return
			}
		}
		if err != nil {
			if !s.closed.Load() && !errors.Is(err, io.EOF) {
				s.log.Debug("read error", zap.Error(err))
			}
			return
		}
	}
}

func (s *Session) writeLoop() {
	defer s.Close()

	for {
		select {
		case data := <-s.OutQueue:
			if data == nil {
				return
			}
			if s.cfg.WriteTimeout > 0 {
				_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			}
			if _, err := s.conn.Write(data); err != nil {
				if !s.closed.Load() {
					s.log.Debug("write error", zap.Error(err))
				}
				return
			}
		case <-s.closeCh:
			return
		}
	}
}
