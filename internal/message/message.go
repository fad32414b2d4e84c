// Package message defines the in-process game messages posted on the bus and
// the network envelope that carries them between processes.
package message

import (
	"fmt"

	"github.com/boxworld/box/internal/component"
	"github.com/boxworld/box/internal/core/ecs"
	"github.com/go-gl/mathgl/mgl32"
)

// Kind identifies a game message variant on the wire.
type Kind uint8

const (
	KindSpawnBox Kind = iota + 1
	KindSelectEntity
	KindInteractWith
	KindQuit
	KindDespawnClient
)

func (k Kind) String() string {
	switch k {
	case KindSpawnBox:
		return "SpawnBox"
	case KindSelectEntity:
		return "SelectEntity"
	case KindInteractWith:
		return "InteractWith"
	case KindQuit:
		return "Quit"
	case KindDespawnClient:
		return "DespawnClient"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Message is a gameplay intent. It lives for exactly one bus flush.
type Message interface {
	Kind() Kind
}

// SpawnBox creates a box at Position owned by ClientID.
type SpawnBox struct {
	Position mgl32.Vec3 `msgpack:"pos"`
	ClientID uint16     `msgpack:"client_id"`
}

// SelectEntity promotes the hovered entity to the current selection.
type SelectEntity struct{}

// InteractWith asks Entity to act on Target. Only ground targets move it.
type InteractWith struct {
	Entity ecs.Entity      `msgpack:"entity"`
	Target component.Hover `msgpack:"target"`
}

// Quit stops the process at the end of the tick.
type Quit struct{}

// DespawnClient removes every entity owned by a departed client.
type DespawnClient struct {
	ClientID uint16 `msgpack:"client_id"`
}

func (SpawnBox) Kind() Kind      { return KindSpawnBox }
func (SelectEntity) Kind() Kind  { return KindSelectEntity }
func (InteractWith) Kind() Kind  { return KindInteractWith }
func (Quit) Kind() Kind          { return KindQuit }
func (DespawnClient) Kind() Kind { return KindDespawnClient }

// newMessage returns a pointer to a zero value of the variant for k.
func newMessage(k Kind) (any, error) {
	switch k {
	case KindSpawnBox:
		return &SpawnBox{}, nil
	case KindSelectEntity:
		return &SelectEntity{}, nil
	case KindInteractWith:
		return &InteractWith{}, nil
	case KindQuit:
		return &Quit{}, nil
	case KindDespawnClient:
		return &DespawnClient{}, nil
	default:
		return nil, fmt.Errorf("%w: game message %s", ErrUnknownKind, k)
	}
}

func derefMessage(v any) Message {
	switch m := v.(type) {
	case *SpawnBox:
		return *m
	case *SelectEntity:
		return *m
	case *InteractWith:
		return *m
	case *Quit:
		return *m
	case *DespawnClient:
		return *m
	}
	return nil
}
