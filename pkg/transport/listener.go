package transport

import (
	"errors"
	"net"

	"go.uber.org/zap"

	"github.com/polenoz/ringchat/pkg/wire"
)

// Handler processes one decoded datagram together with its source
// address.
type Handler func(d wire.Datagram, from *net.UDPAddr)

// NewListener creates a listener worker that reads datagrams from conn
// and dispatches them to handler.
func NewListener(name string, conn *net.UDPConn, handler Handler, logger *zap.Logger) *Listener {
	return &Listener{
		name:    name,
		logger:  logger,
		conn:    conn,
		handler: handler,
	}
}

// Listener is the receive loop shared by the discovery and the service
// endpoint. Malformed datagrams are logged and dropped, unknown tags
// are dropped silently; no receive error ever terminates the loop
// before shutdown.
type Listener struct {
	name    string
	logger  *zap.Logger
	conn    *net.UDPConn
	handler Handler

	done chan struct{}
}

// Run starts the receive loop in its own goroutine.
func (l *Listener) Run() error {
	l.done = make(chan struct{})
	go l.loop()
	return nil
}

func (l *Listener) loop() {
	defer close(l.done)

	buf := make([]byte, wire.MaxDatagramSize)
	for {
		n, addr, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			l.logger.Warn("receive failed",
				zap.String("listener", l.name), zap.Error(err))
			continue
		}

		d, err := wire.Decode(buf[:n])
		if errors.Is(err, wire.ErrUnknownType) {
			continue
		}
		if err != nil {
			l.logger.Warn("dropping malformed datagram",
				zap.String("listener", l.name),
				zap.String("from", addr.String()),
				zap.Error(err))
			continue
		}
		l.handler(d, addr)
	}
}

// Stop closes the socket and waits for the receive loop to drain.
func (l *Listener) Stop() error {
	l.conn.Close()
	<-l.done
	return nil
}
