package component

// ClientID ties an entity to the network client that owns it. A client may
// own several entities.
type ClientID struct {
	ID uint16
}

// Controllable marks entities the local client may steer.
type Controllable struct{}
