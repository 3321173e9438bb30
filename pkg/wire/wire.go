// Package wire implements the datagram codec for the chat cluster.
//
// Every datagram is a single UTF-8 JSON object carrying a "type" tag
// and a flat set of optional fields. The same schema is spoken by
// servers and clients on both the discovery and the service endpoint.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MaxDatagramSize is the read buffer size for both endpoints.
// Frames larger than this are truncated by the transport and will fail
// to decode.
const MaxDatagramSize = 1024

// Type tags a datagram with its meaning.
type Type string

const (
	TypeDiscover  Type = "discover"
	TypeHeartbeat Type = "heartbeat"
	TypeLeader    Type = "leader"
	TypeElection  Type = "election"
	TypeJoin      Type = "join"
	TypeWelcome   Type = "welcome"
	TypeMessage   Type = "message"
	TypeNotice    Type = "notice"
	TypeLeave     Type = "leave"
)

// ErrUnknownType marks a datagram whose tag is not part of the
// protocol. Listeners drop these silently.
var ErrUnknownType = errors.New("unknown datagram type")

var knownTypes = map[Type]bool{
	TypeDiscover:  true,
	TypeHeartbeat: true,
	TypeLeader:    true,
	TypeElection:  true,
	TypeJoin:      true,
	TypeWelcome:   true,
	TypeMessage:   true,
	TypeNotice:    true,
	TypeLeave:     true,
}

// Datagram is the union of all protocol messages. Fields not used by a
// given type are omitted on the wire.
type Datagram struct {
	Type       Type   `json:"type"`
	ID         string `json:"id,omitempty"`
	Port       int    `json:"port,omitempty"`
	IsLeader   bool   `json:"isLeader,omitempty"`
	Token      string `json:"token,omitempty"`
	Text       string `json:"text,omitempty"`
	Name       string `json:"name,omitempty"`
	SenderName string `json:"sender_name,omitempty"`
}

// Encode serializes a datagram for transmission.
func Encode(d Datagram) ([]byte, error) {
	return json.Marshal(d)
}

// Decode parses a received frame. A malformed payload returns a decode
// error; a well-formed payload with an unrecognized tag returns
// ErrUnknownType so callers can drop it without logging.
func Decode(data []byte) (Datagram, error) {
	var d Datagram
	if err := json.Unmarshal(data, &d); err != nil {
		return Datagram{}, fmt.Errorf("malformed datagram: %w", err)
	}
	if !knownTypes[d.Type] {
		return Datagram{}, ErrUnknownType
	}
	return d, nil
}
