package system

import (
	"fmt"
	"math"
	"time"

	"github.com/boxworld/box/internal/component"
	"github.com/boxworld/box/internal/core/ecs"
	coresys "github.com/boxworld/box/internal/core/system"
	"github.com/boxworld/box/internal/gamemath"
	"github.com/boxworld/box/internal/message"
	"github.com/boxworld/box/internal/net"
	"github.com/boxworld/box/internal/net/protocol"
	"github.com/boxworld/box/internal/sim"
	"go.uber.org/zap"
)

// DefaultMaxChunksPerStep bounds how many queued reads one peer may feed
// into a single step.
const DefaultMaxChunksPerStep = 16

// SessionSource hands over newly accepted sessions.
type SessionSource interface {
	NewSessions() <-chan *net.Session
}

// ClientConnection is one peer of the server.
type ClientConnection struct {
	Session  *net.Session
	ClientID uint16
	joined   bool // handshake completed, owns a box
	gone     bool // peer said goodbye
}

type serverPeer struct {
	conn *ClientConnection
	ctx  *sim.Context
}

// ServerNetworkSystem accepts clients, runs the handshake and relays every
// bus message to all connected clients.
type ServerNetworkSystem struct {
	source    SessionSource
	version   string
	motd      string
	maxChunks int

	conns  []*ClientConnection // accept order
	byID   map[uint16]*ClientConnection
	nextID uint16

	registry *protocol.Registry[serverPeer]
	log      *zap.Logger
}

func NewServerNetworkSystem(source SessionSource, version, motd string, log *zap.Logger) *ServerNetworkSystem {
	s := &ServerNetworkSystem{
		source:    source,
		version:   version,
		motd:      motd,
		maxChunks: DefaultMaxChunksPerStep,
		byID:      make(map[uint16]*ClientConnection),
		registry:  protocol.NewRegistry[serverPeer](log),
		log:       log,
	}
	s.registry.Register(message.NetConnect,
		[]protocol.State{protocol.StateConnecting},
		s.handleConnect)
	s.registry.Register(message.NetDisconnect,
		[]protocol.State{protocol.StateConnecting, protocol.StateConnected},
		s.handleDisconnect)
	// Clients do not drive game state; their GameMessages are ignored.
	return s
}

func (s *ServerNetworkSystem) Name() string               { return "network" }
func (s *ServerNetworkSystem) Priority() coresys.Priority { return coresys.PriorityNetwork }

func (s *ServerNetworkSystem) Access() coresys.Access {
	return coresys.Access{
		Reads:  []string{sim.CompMovement, sim.CompClientID},
		Writes: []string{sim.ResNetwork},
	}
}

// Clients returns the live connections in accept order.
func (s *ServerNetworkSystem) Clients() []*ClientConnection {
	return s.conns
}

func (s *ServerNetworkSystem) Run(ctx *sim.Context) {
	s.acceptNew()

	for _, c := range s.conns {
		msgs, err := c.Session.Receive(s.maxChunks)
		if err != nil {
			s.log.Warn("malformed input discarded",
				zap.Uint16("client_id", c.ClientID),
				zap.Error(err),
			)
		}
		for _, msg := range msgs {
			if err := s.registry.Dispatch(serverPeer{conn: c, ctx: ctx}, c.Session.State(), msg); err != nil {
				s.log.Debug("frame dispatch failed",
					zap.Uint16("client_id", c.ClientID),
					zap.Error(err),
				)
			}
		}
	}

	s.reap(ctx)
}

// acceptNew drains the accept channel without blocking.
func (s *ServerNetworkSystem) acceptNew() {
	for {
		select {
		case sess := <-s.source.NewSessions():
			id, ok := s.allocateID()
			if !ok {
				s.log.Warn("no free client id, refusing connection", zap.Uint64("session", sess.ID))
				_ = sess.Send(message.Disconnect{Reason: "server full"})
				sess.CloseWhenDrained()
				sess.FlushOutput()
				continue
			}
			c := &ClientConnection{Session: sess, ClientID: id}
			s.conns = append(s.conns, c)
			s.byID[id] = c
			s.log.Info("client connecting", zap.Uint16("client_id", id), zap.Uint64("session", sess.ID))
		default:
			return
		}
	}
}

// allocateID hands out the next id not held by a live connection,
// wrapping at the top of the uint16 range.
func (s *ServerNetworkSystem) allocateID() (uint16, bool) {
	if len(s.byID) > math.MaxUint16 {
		return 0, false
	}
	for i := 0; i <= math.MaxUint16; i++ {
		id := s.nextID
		s.nextID++
		if _, used := s.byID[id]; !used {
			return id, true
		}
	}
	return 0, false
}

func (s *ServerNetworkSystem) handleConnect(p serverPeer, msg message.NetworkMessage) {
	c := p.conn
	m := msg.(message.Connect)
	if m.Version != s.version {
		s.log.Info("client version mismatch",
			zap.Uint16("client_id", c.ClientID),
			zap.String("client_version", m.Version),
			zap.String("server_version", s.version),
		)
		reason := fmt.Sprintf("version mismatch: server %s, client %s", s.version, m.Version)
		_ = c.Session.Send(message.Disconnect{Reason: reason})
		c.Session.CloseWhenDrained()
		// Reaped before AfterFlush, so hand the frame over now.
		c.Session.FlushOutput()
		c.gone = true
		return
	}

	if err := c.Session.Send(message.Connected{ClientID: c.ClientID, Motd: s.motd}); err != nil {
		s.log.Debug("send connected failed", zap.Uint16("client_id", c.ClientID), zap.Error(err))
		return
	}
	c.Session.SetState(protocol.StateConnected)
	c.joined = true

	s.sendSnapshot(p.ctx, c)
	p.ctx.Post(message.SpawnBox{
		Position: gamemath.SpawnPosition(c.ClientID),
		ClientID: c.ClientID,
	})
	s.log.Info("client connected", zap.Uint16("client_id", c.ClientID))
}

// sendSnapshot replays the boxes that already exist so a late joiner sees
// the same world as everyone else.
func (s *ServerNetworkSystem) sendSnapshot(ctx *sim.Context, c *ClientConnection) {
	ecs.Each2(ctx.Store.ClientID, ctx.Store.Movement, func(e ecs.Entity, owner *component.ClientID, m *component.Movement) {
		if ctx.Store.PendingDestruction(e) {
			return
		}
		spawn := message.SpawnBox{Position: m.Position, ClientID: owner.ID}
		if err := c.Session.Send(message.GameMessage{Message: spawn}); err != nil {
			s.log.Debug("snapshot send failed", zap.Uint16("client_id", c.ClientID), zap.Error(err))
		}
	})
}

func (s *ServerNetworkSystem) handleDisconnect(p serverPeer, msg message.NetworkMessage) {
	m := msg.(message.Disconnect)
	s.log.Info("client disconnected",
		zap.Uint16("client_id", p.conn.ClientID),
		zap.String("reason", m.Reason),
	)
	p.conn.gone = true
	p.conn.Session.Close()
}

// reap removes connections whose stream is gone and releases their boxes.
func (s *ServerNetworkSystem) reap(ctx *sim.Context) {
	kept := s.conns[:0]
	for _, c := range s.conns {
		if !c.gone && !c.Session.Done() {
			kept = append(kept, c)
			continue
		}
		if !c.gone {
			s.log.Info("client connection closed", zap.Uint16("client_id", c.ClientID))
		}
		delete(s.byID, c.ClientID)
		if c.joined {
			ctx.Post(message.DespawnClient{ClientID: c.ClientID})
		}
	}
	for i := len(kept); i < len(s.conns); i++ {
		s.conns[i] = nil
	}
	s.conns = kept
}

// HandleMessage relays msg to every client past the handshake. The frame is
// encoded once and shared.
func (s *ServerNetworkSystem) HandleMessage(_ *sim.Context, msg message.Message) {
	frame, err := net.EncodeFrame(message.GameMessage{Message: msg})
	if err != nil {
		s.log.Error("encode broadcast failed", zap.Stringer("message", msg.Kind()), zap.Error(err))
		return
	}
	for _, c := range s.conns {
		if !c.joined || c.gone {
			continue
		}
		if err := c.Session.SendFrame(frame); err != nil {
			s.log.Debug("broadcast send failed", zap.Uint16("client_id", c.ClientID), zap.Error(err))
		}
	}
}

// AfterFlush hands this tick's frames to the writers.
func (s *ServerNetworkSystem) AfterFlush(*sim.Context) {
	for _, c := range s.conns {
		c.Session.FlushOutput()
	}
}

// Shutdown tells every client the server is going away and waits up to
// timeout for the goodbyes to be written. Call it after the loop stopped.
func (s *ServerNetworkSystem) Shutdown(reason string, timeout time.Duration) {
	for _, c := range s.conns {
		_ = c.Session.Send(message.Disconnect{Reason: reason})
		c.Session.CloseWhenDrained()
		c.Session.FlushOutput()
	}
	deadline := time.After(timeout)
	for _, c := range s.conns {
		select {
		case <-c.Session.Closed():
		case <-deadline:
			s.log.Warn("shutdown timed out with clients still draining")
			return
		}
	}
}
