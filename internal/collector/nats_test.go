package collector

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"github.com/ernie/crewvoice/internal/domain"
)

func runNATSServer(t *testing.T) *server.Server {
	t.Helper()
	ns, err := server.NewServer(&server.Options{
		Host:   "127.0.0.1",
		Port:   -1,
		NoLog:  true,
		NoSigs: true,
	})
	if err != nil {
		t.Fatalf("creating NATS server: %v", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server not ready")
	}
	t.Cleanup(ns.Shutdown)
	return ns
}

func TestNATSIngress(t *testing.T) {
	ns := runNATSServer(t)

	got := make(chan *domain.GameEvent, 10)
	ingress := NewNATSIngress(ns.ClientURL(), "crewvoice.events", HandlerFunc(func(_ context.Context, e *domain.GameEvent) error {
		got <- e
		return nil
	}))
	if err := ingress.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer ingress.Stop()

	pub, err := nats.Connect(ns.ClientURL())
	if err != nil {
		t.Fatal(err)
	}
	defer pub.Close()

	if err := pub.Publish("crewvoice.events", []byte(`not json`)); err != nil {
		t.Fatal(err)
	}
	if err := pub.Publish("crewvoice.events", []byte(`{"EventName":"GameEnd","GameCode":"ABCDEF","MatchID":3}`)); err != nil {
		t.Fatal(err)
	}
	if err := pub.Flush(); err != nil {
		t.Fatal(err)
	}

	select {
	case e := <-got:
		if e.GameCode != "ABCDEF" || e.MatchID != 3 {
			t.Errorf("event = %+v", e)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for NATS event")
	}
	select {
	case e := <-got:
		t.Errorf("malformed message dispatched as %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestNATSIngressConnectError(t *testing.T) {
	ingress := NewNATSIngress("nats://127.0.0.1:1", "x", HandlerFunc(func(context.Context, *domain.GameEvent) error { return nil }))
	if err := ingress.Start(context.Background()); err == nil {
		ingress.Stop()
		t.Fatal("Start succeeded without a server")
	}
}
