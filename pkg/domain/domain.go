// Package domain holds the identifier types shared across the chat
// cluster packages.
package domain

import (
	"github.com/google/uuid"
	"github.com/rs/xid"
)

// NodeID identifies a single server process for its lifetime.
//
// Ids are generated from XIDs because XIDs have a time-based component
// and are inherently sortable as strings. The lexicographic order on
// NodeIDs is the ring order used by the election protocol, so every
// node in the cluster derives the same ring from the same set of ids.
type NodeID string

// NewNodeID generates a fresh node identifier.
func NewNodeID() NodeID {
	return NodeID(xid.New().String())
}

func (id NodeID) String() string {
	return string(id)
}

// ClientID identifies a chat client. Clients generate their own id
// before their first join, so a random UUID is used instead of a
// coordinated scheme.
type ClientID string

// NewClientID generates a fresh client identifier.
func NewClientID() ClientID {
	return ClientID(uuid.NewString())
}

func (id ClientID) String() string {
	return string(id)
}
