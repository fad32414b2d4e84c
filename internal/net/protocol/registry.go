package protocol

import (
	"errors"
	"fmt"

	"github.com/boxworld/box/internal/message"
	"go.uber.org/zap"
)

// State is the lifecycle phase of one connection.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting         // stream open, handshake pending
	StateConnected          // handshake done, game traffic flows
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	default:
		return fmt.Sprintf("Unknown(%d)", int32(s))
	}
}

var (
	ErrNotAllowed = errors.New("message not allowed in this state")
	ErrHandler    = errors.New("handler panicked")
)

// HandlerFunc processes one inbound network message for peer P.
type HandlerFunc[P any] func(peer P, msg message.NetworkMessage)

type handlerEntry[P any] struct {
	fn      HandlerFunc[P]
	allowed map[State]bool
}

// Registry maps network message kinds to handlers gated by connection state.
type Registry[P any] struct {
	handlers map[message.NetKind]*handlerEntry[P]
	log      *zap.Logger
}

func NewRegistry[P any](log *zap.Logger) *Registry[P] {
	return &Registry[P]{
		handlers: make(map[message.NetKind]*handlerEntry[P]),
		log:      log,
	}
}

// Register binds kind to fn, accepted only while the peer is in one of states.
func (reg *Registry[P]) Register(kind message.NetKind, states []State, fn HandlerFunc[P]) {
	allowed := make(map[State]bool, len(states))
	for _, s := range states {
		allowed[s] = true
	}
	reg.handlers[kind] = &handlerEntry[P]{fn: fn, allowed: allowed}
}

// Dispatch runs the handler for msg. Kinds without a handler are ignored;
// a kind arriving in a state it is not allowed in returns ErrNotAllowed and
// is dropped.
func (reg *Registry[P]) Dispatch(peer P, state State, msg message.NetworkMessage) error {
	kind := msg.NetKind()
	entry, ok := reg.handlers[kind]
	if !ok {
		reg.log.Debug("no handler for message",
			zap.Stringer("kind", kind),
			zap.Stringer("state", state),
		)
		return nil
	}
	if !entry.allowed[state] {
		return fmt.Errorf("%w: %s in %s", ErrNotAllowed, kind, state)
	}
	return reg.safeCall(entry.fn, peer, msg)
}

// safeCall keeps a bad message from crashing the simulation loop.
func (reg *Registry[P]) safeCall(fn HandlerFunc[P], peer P, msg message.NetworkMessage) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			reg.log.Error("handler panic recovered",
				zap.Stringer("kind", msg.NetKind()),
				zap.Any("panic", rec),
			)
			err = fmt.Errorf("%w: %s: %v", ErrHandler, msg.NetKind(), rec)
		}
	}()
	fn(peer, msg)
	return nil
}
