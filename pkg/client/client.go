// Package client implements the protocol side of a chat client: it
// discovers the current leader through its heartbeats, joins it,
// re-joins automatically whenever the leadership moves, and exchanges
// message datagrams with it. Presentation of the received events is
// left to the caller.
package client

import (
	"net"
	"sync"

	"go.uber.org/zap"

	"github.com/polenoz/ringchat/pkg/domain"
	"github.com/polenoz/ringchat/pkg/transport"
	"github.com/polenoz/ringchat/pkg/wire"
)

// Event is one user-visible occurrence delivered by the client: the
// assigned name after a join, a relayed chat message, or a system
// notice.
type Event struct {
	Type       wire.Type
	Text       string
	Name       string
	SenderName string
}

// New creates a chat client with a fresh id listening for leader
// heartbeats on discoveryPort.
func New(discoveryPort int, logger *zap.Logger) *Client {
	return &Client{
		logger:        logger,
		id:            domain.NewClientID(),
		discoveryPort: discoveryPort,
		events:        make(chan Event, 64),
	}
}

// Client is the chat client state machine.
type Client struct {
	logger        *zap.Logger
	id            domain.ClientID
	discoveryPort int

	discConn *net.UDPConn
	msgConn  *net.UDPConn
	port     int

	listeners []*transport.Listener

	mu         sync.Mutex
	leaderID   domain.NodeID
	leaderAddr *net.UDPAddr
	name       string

	events chan Event
}

// Run opens both sockets and starts the receive loops. The client
// joins the leader as soon as its first heartbeat arrives.
func (c *Client) Run() error {
	discConn, err := transport.ListenDiscovery(c.discoveryPort)
	if err != nil {
		return err
	}
	msgConn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: 0})
	if err != nil {
		discConn.Close()
		return err
	}
	c.discConn = discConn
	c.msgConn = msgConn
	c.port = msgConn.LocalAddr().(*net.UDPAddr).Port

	c.listeners = []*transport.Listener{
		transport.NewListener("client-discovery", discConn, c.handleDiscovery, c.logger),
		transport.NewListener("client-messages", msgConn, c.handleMessage, c.logger),
	}
	for _, l := range c.listeners {
		l.Run()
	}
	c.logger.Info("waiting for leader heartbeat",
		zap.String("client", c.id.String()))
	return nil
}

// Events delivers welcomes, messages and notices to the caller.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Name returns the display name assigned by the leader, or the empty
// string before the first welcome.
func (c *Client) Name() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.name
}

// Send relays a chat message through the current leader. Sending
// before a leader was discovered is dropped.
func (c *Client) Send(text string) error {
	c.mu.Lock()
	addr := c.leaderAddr
	c.mu.Unlock()
	if addr == nil {
		c.logger.Warn("no leader known, message dropped")
		return nil
	}
	return transport.Send(c.msgConn, addr, wire.Datagram{
		Type: wire.TypeMessage,
		ID:   c.id.String(),
		Text: text,
	})
}

// Stop announces the departure to the leader and shuts the client
// down.
func (c *Client) Stop() error {
	c.mu.Lock()
	addr := c.leaderAddr
	c.mu.Unlock()
	if addr != nil {
		transport.Send(c.msgConn, addr, wire.Datagram{
			Type: wire.TypeLeave,
			ID:   c.id.String(),
		})
	}
	for _, l := range c.listeners {
		l.Stop()
	}
	close(c.events)
	return nil
}

// handleDiscovery watches the discovery port for leader heartbeats.
// A heartbeat carrying an unknown leader id rebinds the client and
// re-sends the join; records do not survive leader transitions on the
// server side, so joining again is mandatory, not optional.
func (c *Client) handleDiscovery(d wire.Datagram, from *net.UDPAddr) {
	if d.Type != wire.TypeHeartbeat {
		return
	}
	id := domain.NodeID(d.ID)

	c.mu.Lock()
	if c.leaderID == id {
		c.mu.Unlock()
		return
	}
	c.leaderID = id
	c.leaderAddr = &net.UDPAddr{IP: from.IP, Port: d.Port}
	addr := c.leaderAddr
	c.mu.Unlock()

	c.logger.Info("leader discovered, joining",
		zap.String("leader", id.String()),
		zap.String("addr", addr.String()))

	err := transport.Send(c.msgConn, addr, wire.Datagram{
		Type: wire.TypeJoin,
		ID:   c.id.String(),
		Port: c.port,
	})
	if err != nil {
		c.logger.Warn("join send failed", zap.Error(err))
	}
}

// handleMessage consumes datagrams the leader sends to this client.
func (c *Client) handleMessage(d wire.Datagram, from *net.UDPAddr) {
	switch d.Type {
	case wire.TypeWelcome:
		c.mu.Lock()
		c.name = d.Name
		c.mu.Unlock()
	case wire.TypeMessage, wire.TypeNotice:
	default:
		return
	}

	ev := Event{
		Type:       d.Type,
		Text:       d.Text,
		Name:       d.Name,
		SenderName: d.SenderName,
	}
	select {
	case c.events <- ev:
	default:
		c.logger.Warn("event buffer full, dropping")
	}
}
