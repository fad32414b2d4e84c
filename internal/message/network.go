package message

import (
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

var (
	ErrUnknownKind = errors.New("unknown message kind")
	ErrEmptyGame   = errors.New("game message without body")
)

// NetKind identifies a NetworkMessage variant on the wire.
type NetKind uint8

const (
	NetConnect NetKind = iota + 1
	NetConnected
	NetDisconnect
	NetGame
)

func (k NetKind) String() string {
	switch k {
	case NetConnect:
		return "Connect"
	case NetConnected:
		return "Connected"
	case NetDisconnect:
		return "Disconnect"
	case NetGame:
		return "GameMessage"
	default:
		return fmt.Sprintf("NetKind(%d)", uint8(k))
	}
}

// NetworkMessage is everything that travels inside one wire frame.
type NetworkMessage interface {
	NetKind() NetKind
}

// Connect opens the handshake. Version must equal the server's exactly.
type Connect struct {
	Version string `msgpack:"version"`
}

// Connected completes the handshake and assigns the client id.
type Connected struct {
	ClientID uint16 `msgpack:"client_id"`
	Motd     string `msgpack:"motd"`
}

// Disconnect announces that the sender is closing the connection.
type Disconnect struct {
	Reason string `msgpack:"reason"`
}

// GameMessage relays a bus message to the peer.
type GameMessage struct {
	Message Message
}

func (Connect) NetKind() NetKind     { return NetConnect }
func (Connected) NetKind() NetKind   { return NetConnected }
func (Disconnect) NetKind() NetKind  { return NetDisconnect }
func (GameMessage) NetKind() NetKind { return NetGame }

// envelope is the serialized payload of a frame. Body holds the variant
// encoded on its own so the envelope can be decoded before the variant is known.
type envelope struct {
	Net  NetKind `msgpack:"n"`
	Game Kind    `msgpack:"g,omitempty"`
	Body []byte  `msgpack:"b"`
}

// Marshal serializes msg into a frame payload.
func Marshal(msg NetworkMessage) ([]byte, error) {
	env := envelope{Net: msg.NetKind()}
	var body any = msg
	if gm, ok := msg.(GameMessage); ok {
		if gm.Message == nil {
			return nil, ErrEmptyGame
		}
		env.Game = gm.Message.Kind()
		body = gm.Message
	}
	b, err := msgpack.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal %s body: %w", msg.NetKind(), err)
	}
	env.Body = b
	out, err := msgpack.Marshal(&env)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	return out, nil
}

// Unmarshal parses a frame payload produced by Marshal.
func Unmarshal(data []byte) (NetworkMessage, error) {
	var env envelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}
	switch env.Net {
	case NetConnect:
		var m Connect
		if err := unmarshalBody(env, &m); err != nil {
			return nil, err
		}
		return m, nil
	case NetConnected:
		var m Connected
		if err := unmarshalBody(env, &m); err != nil {
			return nil, err
		}
		return m, nil
	case NetDisconnect:
		var m Disconnect
		if err := unmarshalBody(env, &m); err != nil {
			return nil, err
		}
		return m, nil
	case NetGame:
		v, err := newMessage(env.Game)
		if err != nil {
			return nil, err
		}
		if err := unmarshalBody(env, v); err != nil {
			return nil, err
		}
		return GameMessage{Message: derefMessage(v)}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, env.Net)
	}
}

func unmarshalBody(env envelope, v any) error {
	if err := msgpack.Unmarshal(env.Body, v); err != nil {
		return fmt.Errorf("unmarshal %s body: %w", env.Net, err)
	}
	return nil
}
