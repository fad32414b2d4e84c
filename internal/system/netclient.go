package system

import (
	"errors"

	coresys "github.com/boxworld/box/internal/core/system"
	"github.com/boxworld/box/internal/message"
	"github.com/boxworld/box/internal/net"
	"github.com/boxworld/box/internal/net/protocol"
	"github.com/boxworld/box/internal/sim"
	"go.uber.org/zap"
)

// ErrNotConnected is returned when writing without a live server stream.
var ErrNotConnected = errors.New("not connected to a server")

// ServerConnection is the client's view of its server. Session is nil when
// the dial failed.
type ServerConnection struct {
	Session *net.Session
	State   protocol.State
}

func (c *ServerConnection) Send(msg message.NetworkMessage) error {
	if c.Session == nil || c.State == protocol.StateDisconnected {
		return ErrNotConnected
	}
	return c.Session.Send(msg)
}

type clientPeer struct {
	ctx *sim.Context
}

// ClientNetworkSystem runs the client half of the handshake and feeds the
// server's game messages into the local bus.
type ClientNetworkSystem struct {
	conn             ServerConnection
	quitOnDisconnect bool
	maxChunks        int
	registry         *protocol.Registry[clientPeer]
	log              *zap.Logger
}

// NewClientNetworkSystem takes the dialed session, or nil if the dial
// failed, and queues the Connect handshake.
func NewClientNetworkSystem(sess *net.Session, version string, quitOnDisconnect bool, log *zap.Logger) *ClientNetworkSystem {
	s := &ClientNetworkSystem{
		conn:             ServerConnection{Session: sess, State: protocol.StateDisconnected},
		quitOnDisconnect: quitOnDisconnect,
		maxChunks:        DefaultMaxChunksPerStep,
		registry:         protocol.NewRegistry[clientPeer](log),
		log:              log,
	}
	s.registry.Register(message.NetConnected,
		[]protocol.State{protocol.StateConnecting},
		s.handleConnected)
	s.registry.Register(message.NetGame,
		[]protocol.State{protocol.StateConnected},
		s.handleGame)
	s.registry.Register(message.NetDisconnect,
		[]protocol.State{protocol.StateConnecting, protocol.StateConnected},
		s.handleDisconnect)

	if sess != nil {
		s.conn.State = protocol.StateConnecting
		if err := s.conn.Send(message.Connect{Version: version}); err != nil {
			log.Warn("queue connect failed", zap.Error(err))
			s.conn.State = protocol.StateDisconnected
		}
	}
	return s
}

func (s *ClientNetworkSystem) Name() string               { return "network" }
func (s *ClientNetworkSystem) Priority() coresys.Priority { return coresys.PriorityNetwork }

func (s *ClientNetworkSystem) Access() coresys.Access {
	return coresys.Access{
		Writes: []string{sim.ResNetwork, sim.ResMyClientID, sim.ResRunning},
	}
}

// State returns the connection phase.
func (s *ClientNetworkSystem) State() protocol.State {
	return s.conn.State
}

// Connection exposes the server connection for writes.
func (s *ClientNetworkSystem) Connection() *ServerConnection {
	return &s.conn
}

func (s *ClientNetworkSystem) Run(ctx *sim.Context) {
	if s.conn.State == protocol.StateDisconnected {
		if s.quitOnDisconnect {
			ctx.Res.IsRunning = false
		}
		return
	}

	msgs, err := s.conn.Session.Receive(s.maxChunks)
	if err != nil {
		s.log.Warn("malformed input from server discarded", zap.Error(err))
	}
	// State is re-read per frame: Connected and the first game messages
	// commonly arrive in one read.
	for _, msg := range msgs {
		if err := s.registry.Dispatch(clientPeer{ctx: ctx}, s.conn.State, msg); err != nil {
			s.log.Debug("frame dispatch failed", zap.Error(err))
		}
	}

	if s.conn.State != protocol.StateDisconnected && s.conn.Session.Done() {
		s.disconnected(ctx, "connection closed")
	}
}

func (s *ClientNetworkSystem) handleConnected(p clientPeer, msg message.NetworkMessage) {
	m := msg.(message.Connected)
	p.ctx.Res.MyClientID = sim.ClientIDSlot{ID: m.ClientID, Known: true}
	s.conn.State = protocol.StateConnected
	s.conn.Session.SetState(protocol.StateConnected)
	s.log.Info("connected to server",
		zap.Uint16("client_id", m.ClientID),
		zap.String("motd", m.Motd),
	)
}

func (s *ClientNetworkSystem) handleGame(p clientPeer, msg message.NetworkMessage) {
	p.ctx.Post(msg.(message.GameMessage).Message)
}

func (s *ClientNetworkSystem) handleDisconnect(p clientPeer, msg message.NetworkMessage) {
	s.disconnected(p.ctx, msg.(message.Disconnect).Reason)
}

func (s *ClientNetworkSystem) disconnected(ctx *sim.Context, reason string) {
	s.log.Info("disconnected from server", zap.String("reason", reason))
	s.conn.State = protocol.StateDisconnected
	s.conn.Session.Close()
	if s.quitOnDisconnect {
		ctx.Res.IsRunning = false
	}
}

// HandleMessage says goodbye to the server when the local process quits.
// Other intents stay local.
func (s *ClientNetworkSystem) HandleMessage(_ *sim.Context, msg message.Message) {
	if _, ok := msg.(message.Quit); !ok {
		return
	}
	if err := s.conn.Send(message.Disconnect{Reason: "client quit"}); err != nil {
		return
	}
	s.conn.Session.CloseWhenDrained()
}

func (s *ClientNetworkSystem) AfterFlush(*sim.Context) {
	if s.conn.Session != nil {
		s.conn.Session.FlushOutput()
	}
}
