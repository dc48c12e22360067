package protocol

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/caesium-cloud/hera/pkg/log"
)

// Handler answers a single request envelope on the peer side.
type Handler interface {
	Handle(ctx context.Context, env *Envelope) *Response
}

type HandlerFunc func(ctx context.Context, env *Envelope) *Response

func (f HandlerFunc) Handle(ctx context.Context, env *Envelope) *Response {
	return f(ctx, env)
}

// Server is the peer end of the link. It acknowledges heartbeats
// silently and answers every request envelope with a Response carrying
// the same id. Requests on one connection are handled concurrently.
type Server struct {
	handler      Handler
	maxFrameSize int

	heartbeats    atomic.Uint64
	lastHeartbeat atomic.Int64

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

func NewServer(handler Handler, maxFrameSize int) *Server {
	if handler == nil {
		panic("protocol server requires a handler")
	}
	return &Server{
		handler:      handler,
		maxFrameSize: maxFrameSize,
		conns:        map[net.Conn]struct{}{},
	}
}

// Heartbeats returns how many heartbeat frames have been received.
func (s *Server) Heartbeats() uint64 {
	return s.heartbeats.Load()
}

// LastHeartbeat returns when the most recent heartbeat arrived.
func (s *Server) LastHeartbeat() time.Time {
	ms := s.lastHeartbeat.Load()
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// Serve accepts connections on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
		s.closeConns()
	}()

	log.Info("peer listening", "address", ln.Addr().String())

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go s.ServeConn(ctx, conn)
	}
}

// ServeConn reads envelopes from conn until it fails or ctx ends.
func (s *Server) ServeConn(ctx context.Context, conn net.Conn) {
	s.track(conn, true)
	defer func() {
		s.track(conn, false)
		conn.Close()
	}()

	codec := NewCodec(conn, s.maxFrameSize)
	remote := conn.RemoteAddr().String()
	log.Debug("peer connection opened", "remote", remote)

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		env, err := codec.ReadEnvelope()
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) && ctx.Err() == nil {
				log.Warn("peer connection failed", "remote", remote, "error", err)
			}
			return
		}

		switch env.Kind {
		case KindHeartbeat:
			s.heartbeats.Add(1)
			s.lastHeartbeat.Store(time.Now().UnixMilli())
		case KindResponse:
			log.Debug("ignoring response frame on peer side", "id", env.ID)
		default:
			wg.Add(1)
			go func(env *Envelope) {
				defer wg.Done()
				s.reply(ctx, codec, env)
			}(env)
		}
	}
}

func (s *Server) reply(ctx context.Context, codec *Codec, env *Envelope) {
	resp := s.handler.Handle(ctx, env)
	if resp == nil {
		return
	}

	out := &Envelope{Kind: KindResponse, ID: env.ID, Payload: resp.Marshal()}
	if err := codec.WriteEnvelope(out); err != nil {
		log.Warn("failed to write response", "id", env.ID, "kind", env.Kind, "error", err)
	}
}

func (s *Server) track(conn net.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.conns[conn] = struct{}{}
	} else {
		delete(s.conns, conn)
	}
}

func (s *Server) closeConns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		conn.Close()
	}
}
