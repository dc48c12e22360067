package link

import (
	"net"
	"sync"
	"time"

	"github.com/caesium-cloud/hera/internal/metrics"
	"github.com/caesium-cloud/hera/internal/protocol"
	"github.com/caesium-cloud/hera/pkg/log"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ErrChannelClosed is returned for sends on a channel that has shut
// down, and is the reason pending calls fail when the link drops.
var ErrChannelClosed = errors.New("channel closed")

const defaultWriteTimeout = 5 * time.Second

// Channel is an open connection to one peer host. Replies are matched
// to requests by envelope id; a reply nobody waits for is discarded.
type Channel struct {
	host         string
	conn         net.Conn
	codec        *protocol.Codec
	writeTimeout time.Duration

	mu      sync.Mutex
	pending map[string]chan *protocol.Envelope
	closed  bool

	done      chan struct{}
	closeOnce sync.Once
	onClose   func(*Channel)
}

func newChannel(host string, conn net.Conn, maxFrameSize int, writeTimeout time.Duration, onClose func(*Channel)) *Channel {
	ch := &Channel{
		host:         host,
		conn:         conn,
		codec:        protocol.NewCodec(conn, maxFrameSize),
		writeTimeout: writeTimeout,
		pending:      map[string]chan *protocol.Envelope{},
		done:         make(chan struct{}),
		onClose:      onClose,
	}
	go ch.readLoop()
	return ch
}

func (c *Channel) Host() string {
	return c.host
}

// Done is closed once the channel has shut down.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

func (c *Channel) Alive() bool {
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

// Send writes env without waiting for a reply.
func (c *Channel) Send(env *protocol.Envelope) error {
	if !c.Alive() {
		return ErrChannelClosed
	}

	if c.writeTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	if err := c.codec.WriteEnvelope(env); err != nil {
		c.Close()
		return err
	}
	return nil
}

// Call is an outstanding request.
type Call struct {
	id    string
	reply chan *protocol.Envelope
	ch    *Channel
}

func (c *Call) ID() string {
	return c.id
}

// Reply delivers the matching response at most once. It is closed
// without a value if the channel shuts down first.
func (c *Call) Reply() <-chan *protocol.Envelope {
	return c.reply
}

// Abandon stops waiting for the reply. A reply arriving afterwards is
// logged and dropped.
func (c *Call) Abandon() {
	c.ch.mu.Lock()
	delete(c.ch.pending, c.id)
	c.ch.mu.Unlock()
}

// Request sends a request of the given kind and registers a Call for
// its reply.
func (c *Channel) Request(kind protocol.Kind, payload []byte) (*Call, error) {
	call := &Call{
		id:    uuid.NewString(),
		reply: make(chan *protocol.Envelope, 1),
		ch:    c,
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrChannelClosed
	}
	c.pending[call.id] = call.reply
	c.mu.Unlock()

	if err := c.Send(&protocol.Envelope{Kind: kind, ID: call.id, Payload: payload}); err != nil {
		call.Abandon()
		return nil, err
	}
	return call, nil
}

func (c *Channel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.conn.Close()

		c.mu.Lock()
		c.closed = true
		for id, reply := range c.pending {
			close(reply)
			delete(c.pending, id)
		}
		c.mu.Unlock()

		close(c.done)
		if c.onClose != nil {
			c.onClose(c)
		}
	})
	return err
}

func (c *Channel) readLoop() {
	defer c.Close()

	for {
		env, err := c.codec.ReadEnvelope()
		if err != nil {
			if c.Alive() {
				log.Warn("peer channel read failed", "host", c.host, "error", err)
			}
			return
		}

		if env.Kind != protocol.KindResponse {
			log.Debug("ignoring unexpected frame", "host", c.host, "kind", env.Kind)
			continue
		}

		c.mu.Lock()
		reply, ok := c.pending[env.ID]
		delete(c.pending, env.ID)
		c.mu.Unlock()

		if !ok {
			metrics.LateRepliesTotal.Inc()
			log.Info("discarding reply with no waiting caller", "host", c.host, "id", env.ID)
			continue
		}
		reply <- env
	}
}
