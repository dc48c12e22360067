package testutil

import (
	"context"
	"net"
	"sync"
	"testing"

	"github.com/caesium-cloud/hera/internal/link"
	"github.com/caesium-cloud/hera/internal/protocol"
)

// Request is a command observed by a Peer.
type Request struct {
	Kind    protocol.Kind
	Command protocol.Command
}

// Peer is an in-memory worker peer reached through a connected link
// client. By default it answers every request with OK and the
// command id.
type Peer struct {
	Client *link.Client
	Server *protocol.Server

	mu       sync.Mutex
	handler  protocol.HandlerFunc
	requests []Request
}

// StartPeer connects a fresh link client to a new Peer. Everything is
// torn down when the test ends.
func StartPeer(tb testing.TB) *Peer {
	tb.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	p := &Peer{handler: Echo}
	p.Server = protocol.NewServer(protocol.HandlerFunc(p.handle), 0)

	p.Client = link.NewClient(link.Config{
		Dialer: dialer(func(context.Context, string, string) (net.Conn, error) {
			client, peer := net.Pipe()
			go p.Server.ServeConn(ctx, peer)
			return client, nil
		}),
	})
	if err := p.Client.Connect(ctx, "peer", 8887); err != nil {
		cancel()
		tb.Fatalf("connect peer: %v", err)
	}

	tb.Cleanup(func() {
		p.Client.Close()
		cancel()
	})
	return p
}

// Echo answers OK with the command id.
func Echo(_ context.Context, env *protocol.Envelope) *protocol.Response {
	cmd, err := protocol.UnmarshalCommand(env.Payload)
	if err != nil {
		return &protocol.Response{Status: protocol.StatusError, Message: err.Error()}
	}
	return &protocol.Response{Status: protocol.StatusOK, Message: cmd.ID}
}

// Silent never answers.
func Silent(context.Context, *protocol.Envelope) *protocol.Response {
	return nil
}

func (p *Peer) SetHandler(h protocol.HandlerFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handler = h
}

// Requests returns every request received so far.
func (p *Peer) Requests() []Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Request(nil), p.requests...)
}

func (p *Peer) handle(ctx context.Context, env *protocol.Envelope) *protocol.Response {
	p.mu.Lock()
	if cmd, err := protocol.UnmarshalCommand(env.Payload); err == nil {
		p.requests = append(p.requests, Request{Kind: env.Kind, Command: *cmd})
	}
	h := p.handler
	p.mu.Unlock()

	return h(ctx, env)
}

type dialer func(ctx context.Context, network, address string) (net.Conn, error)

func (d dialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	return d(ctx, network, address)
}
