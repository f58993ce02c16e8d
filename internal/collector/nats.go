package collector

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/nats-io/nats.go"
)

// NATSIngress receives game events published on a NATS subject
type NATSIngress struct {
	url     string
	subject string
	handler Handler

	conn   *nats.Conn
	closed chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewNATSIngress creates a subscriber that dispatches events to h
func NewNATSIngress(url, subject string, h Handler) *NATSIngress {
	return &NATSIngress{url: url, subject: subject, handler: h}
}

// Start connects and subscribes. Each message is handled on its own goroutine.
func (n *NATSIngress) Start(ctx context.Context) error {
	n.closed = make(chan struct{})
	conn, err := nats.Connect(n.url,
		nats.Name("crewvoice"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("NATS disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Printf("NATS reconnected to %s", c.ConnectedUrl())
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			close(n.closed)
		}),
	)
	if err != nil {
		return fmt.Errorf("connecting to NATS at %s: %w", n.url, err)
	}

	n.ctx, n.cancel = context.WithCancel(ctx)
	if _, err := conn.Subscribe(n.subject, n.handleMsg); err != nil {
		conn.Close()
		return fmt.Errorf("subscribing to %s: %w", n.subject, err)
	}
	// Make sure the server has registered the subscription before returning
	if err := conn.Flush(); err != nil {
		conn.Close()
		return fmt.Errorf("flushing subscription: %w", err)
	}

	n.conn = conn
	log.Printf("NATS ingress subscribed to %s on %s", n.subject, n.url)
	return nil
}

func (n *NATSIngress) handleMsg(msg *nats.Msg) {
	e, err := DecodeEventBytes(msg.Data)
	if err != nil {
		log.Printf("Dropping NATS event on %s: %v", msg.Subject, err)
		return
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		if err := n.handler.HandleEvent(n.ctx, e); err != nil {
			log.Printf("Error handling %s for game %s: %v", e.EventName, e.GameCode, err)
		}
	}()
}

// Stop drains pending messages, closes the connection and waits for
// in-flight events
func (n *NATSIngress) Stop() {
	if n.conn == nil {
		return
	}
	if err := n.conn.Drain(); err != nil {
		log.Printf("Error draining NATS connection: %v", err)
		n.conn.Close()
	}
	<-n.closed
	n.wg.Wait()
	n.cancel()
	log.Println("NATS ingress stopped")
}
