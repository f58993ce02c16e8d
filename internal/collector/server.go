package collector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"sync"
	"time"

	"github.com/ernie/crewvoice/internal/domain"
)

// Handler processes one decoded game event
type Handler interface {
	HandleEvent(ctx context.Context, e *domain.GameEvent) error
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(ctx context.Context, e *domain.GameEvent) error

// HandleEvent calls f
func (f HandlerFunc) HandleEvent(ctx context.Context, e *domain.GameEvent) error {
	return f(ctx, e)
}

const (
	defaultMaxEventBytes = 64 << 10
	defaultReadTimeout   = 10 * time.Second
)

// EventServer accepts game server connections carrying one JSON event each
type EventServer struct {
	addr        string
	handler     Handler
	maxBytes    int64
	readTimeout time.Duration

	listener net.Listener
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewEventServer creates a server that dispatches events to h
func NewEventServer(addr string, h Handler, maxBytes int64, readTimeout time.Duration) *EventServer {
	if maxBytes <= 0 {
		maxBytes = defaultMaxEventBytes
	}
	if readTimeout <= 0 {
		readTimeout = defaultReadTimeout
	}
	return &EventServer{
		addr:        addr,
		handler:     h,
		maxBytes:    maxBytes,
		readTimeout: readTimeout,
	}
}

// Start listens and serves connections until Stop is called or ctx ends
func (s *EventServer) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.addr, err)
	}
	s.listener = ln

	ctx, s.cancel = context.WithCancel(ctx)
	log.Printf("Event ingress listening on %s", ln.Addr())

	s.wg.Add(1)
	go s.acceptLoop(ctx)

	// Unblock Accept when the parent context ends
	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	return nil
}

// Addr returns the bound address, useful when listening on port 0
func (s *EventServer) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop closes the listener and waits for in-flight events to finish
func (s *EventServer) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	log.Println("Event ingress stopped")
}

func (s *EventServer) acceptLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			log.Printf("Error accepting event connection: %v", err)
			continue
		}
		s.wg.Add(1)
		go s.serveConn(ctx, conn)
	}
}

// serveConn reads one event, dispatches it and closes the connection
func (s *EventServer) serveConn(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(s.readTimeout))
	e, err := DecodeEvent(io.LimitReader(conn, s.maxBytes))
	if err != nil {
		log.Printf("Dropping event from %s: %v", conn.RemoteAddr(), err)
		return
	}

	if err := s.handler.HandleEvent(ctx, e); err != nil {
		log.Printf("Error handling %s for game %s: %v", e.EventName, e.GameCode, err)
	}
}
