// Package link maintains the single long-lived connection from the
// schedule center to its worker peer.
package link

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/caesium-cloud/hera/internal/metrics"
	"github.com/caesium-cloud/hera/pkg/log"
	"github.com/pkg/errors"
)

var (
	// ErrTimeout reports a connect attempt that neither succeeded nor
	// failed within the connect timeout.
	ErrTimeout = errors.New("connect timed out")
	// ErrConnect matches every *ConnectError.
	ErrConnect = errors.New("connect failed")
	// ErrNotConnected is returned when no channel is open.
	ErrNotConnected = errors.New("no peer channel")
)

// ConnectError reports a connect attempt the transport rejected.
type ConnectError struct {
	Host string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect server failed %s: %v", e.Host, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

func (e *ConnectError) Is(target error) bool {
	return target == ErrConnect
}

// Dialer opens transport connections. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Slot holds the current channel. It is shared by the client, the
// heartbeat monitor and the dispatch bridge; readers never block a
// reconnect.
type Slot struct {
	ch atomic.Pointer[Channel]
}

// Load returns the open channel, or nil.
func (s *Slot) Load() *Channel {
	return s.ch.Load()
}

func (s *Slot) clear(ch *Channel) bool {
	return s.ch.CompareAndSwap(ch, nil)
}

type Config struct {
	ConnectTimeout time.Duration
	WriteTimeout   time.Duration
	MaxFrameSize   int
	Dialer         Dialer
}

// Client connects to the peer. Connect calls are serialized; the
// resulting channel is published through Slot.
type Client struct {
	mu           sync.Mutex
	slot         *Slot
	dialer       Dialer
	timeout      time.Duration
	writeTimeout time.Duration
	maxSize      int
}

func NewClient(cfg Config) *Client {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 2 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Dialer == nil {
		cfg.Dialer = &net.Dialer{}
	}
	return &Client{
		slot:         &Slot{},
		dialer:       cfg.Dialer,
		timeout:      cfg.ConnectTimeout,
		writeTimeout: cfg.WriteTimeout,
		maxSize:      cfg.MaxFrameSize,
	}
}

func (c *Client) Slot() *Slot {
	return c.slot
}

// Connect ensures a channel to host is open. It is a no-op when the
// current channel already targets host. Otherwise any existing channel
// is closed before dialing, and the attempt is abandoned after the
// connect timeout with ErrTimeout.
func (c *Client) Connect(ctx context.Context, host string, port int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cur := c.slot.Load(); cur != nil {
		if cur.Host() == host && cur.Alive() {
			return nil
		}
		log.Info("closing peer channel", "host", cur.Host(), "next", host)
		cur.Close()
	}

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	conn, err := c.dial(ctx, addr)
	if errors.Is(err, ErrTimeout) {
		metrics.LinkConnectsTotal.WithLabelValues("timeout").Inc()
		return err
	}
	if err != nil {
		metrics.LinkConnectsTotal.WithLabelValues("failed").Inc()
		return &ConnectError{Host: host, Err: err}
	}

	ch := newChannel(host, conn, c.maxSize, c.writeTimeout, func(ch *Channel) {
		if c.slot.clear(ch) {
			metrics.LinkConnected.Set(0)
			log.Warn("peer channel closed", "host", ch.Host())
		}
	})
	c.slot.ch.Store(ch)

	metrics.LinkConnectsTotal.WithLabelValues("connected").Inc()
	metrics.LinkConnected.Set(1)
	log.Info("connected to peer", "address", addr)
	return nil
}

type dialResult struct {
	conn net.Conn
	err  error
}

// dial races the transport against the connect timeout. A connection
// that completes after the deadline is closed.
func (c *Client) dial(ctx context.Context, addr string) (net.Conn, error) {
	dialCtx, cancel := context.WithCancel(ctx)
	results := make(chan dialResult, 1)

	go func() {
		conn, err := c.dialer.DialContext(dialCtx, "tcp", addr)
		results <- dialResult{conn: conn, err: err}
	}()

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	abandon := func() {
		cancel()
		go func() {
			if r := <-results; r.conn != nil {
				r.conn.Close()
			}
		}()
	}

	select {
	case r := <-results:
		cancel()
		return r.conn, r.err
	case <-timer.C:
		abandon()
		return nil, errors.Wrapf(ErrTimeout, "connect %s consumed %s", addr, c.timeout)
	case <-ctx.Done():
		abandon()
		return nil, ctx.Err()
	}
}

// Keep connects to host and, on every tick with no open channel,
// connects again until ctx is done. Failed attempts are logged and
// retried on the next tick.
func (c *Client) Keep(ctx context.Context, host string, port int, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if c.slot.Load() == nil {
			if err := c.Connect(ctx, host, port); err != nil && ctx.Err() == nil {
				log.Warn("peer connect failed", "host", host, "port", port, "error", err)
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Close shuts the current channel, if any.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cur := c.slot.Load(); cur != nil {
		return cur.Close()
	}
	return nil
}
