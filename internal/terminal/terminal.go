// Package terminal implements the protocol clients that talk to biometric
// terminals: a session-oriented TCP client and an address-framed serial
// client. Both speak the formats defined in the wire package and bound
// every exchange with an explicit timeout; a timed-out exchange leaves the
// client in a state where disconnecting is always safe.
package terminal

import (
	"errors"
	"time"
)

// Exchange ceilings. Bulk log retrieval is allowed more time than control
// commands; the serial bus gets one flat budget per exchange.
const (
	ControlTimeout = 10 * time.Second
	BulkTimeout    = 30 * time.Second
	SerialTimeout  = 5 * time.Second
)

var (
	// ErrConnectionTimeout covers unreachable devices and exchanges whose
	// response never arrived inside the ceiling.
	ErrConnectionTimeout = errors.New("device did not answer in time")
	// ErrProtocol covers error acknowledgements and malformed responses.
	ErrProtocol = errors.New("device protocol violation")
	// ErrNotConnected is returned for exchanges attempted without a session.
	ErrNotConnected = errors.New("not connected")
)

// Session states.
const (
	stateDisconnected uint32 = iota
	stateConnecting
	stateConnected
)
