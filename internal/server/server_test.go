package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/geekxflood/gosnmpd/internal/agent"
	"github.com/geekxflood/gosnmpd/internal/codec"
	"github.com/geekxflood/gosnmpd/internal/mib"
	"github.com/geekxflood/gosnmpd/internal/oid"
)

func startTestServer(t *testing.T, a *agent.Agent) (string, func()) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = 0
	srv := New(cfg, a, nil)
	if err := srv.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	addr := srv.conn.LocalAddr().String()
	return addr, srv.Shutdown
}

func roundTrip(t *testing.T, addr string, req *codec.Message) *codec.Message {
	t.Helper()
	conn, err := net.Dial("udp", addr)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(2 * time.Second))

	encoded, err := codec.Encode(req)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := conn.Write(encoded); err != nil {
		t.Fatal(err)
	}

	buf := make([]byte, 65507)
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := codec.Decode(buf[:n])
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestServerServesGetRequest(t *testing.T) {
	a := agent.New(agent.Config{Communities: []string{"public"}}, nil)
	_ = a.AddPlugin(oid.MustParse("1.2.3"), func(string) (any, error) { return 99, nil })

	addr, shutdown := startTestServer(t, a)
	defer shutdown()

	resp := roundTrip(t, addr, &codec.Message{
		Community: "public",
		PDUType:   codec.GetRequest,
		RequestID: 1,
		Varbinds:  []codec.Varbind{{Name: oid.MustParse("1.2.3")}},
	})
	if resp.Varbinds[0].Value != mib.Integer(99) {
		t.Fatalf("response value = %#v, want INTEGER 99", resp.Varbinds[0].Value)
	}
}

func TestServerDropsUnauthorisedCommunity(t *testing.T) {
	a := agent.New(agent.Config{Communities: []string{"private"}}, nil)
	addr, shutdown := startTestServer(t, a)
	defer shutdown()

	conn, err := net.Dial("udp", addr)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	encoded, _ := codec.Encode(&codec.Message{
		Community: "somethingfunny",
		PDUType:   codec.GetRequest,
		RequestID: 1,
		Varbinds:  []codec.Varbind{{Name: oid.MustParse("1.2.3")}},
	})
	if _, err := conn.Write(encoded); err != nil {
		t.Fatal(err)
	}

	conn.SetDeadline(time.Now().Add(200 * time.Millisecond))
	buf := make([]byte, 1024)
	if _, err := conn.Read(buf); err == nil {
		t.Fatal("expected no response for an unauthorised community")
	}
}

func TestServerShutdownIsClean(t *testing.T) {
	a := agent.New(agent.Config{Communities: []string{"public"}}, nil)
	cfg := DefaultConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = 0
	cfg.ReadTimeout = 50 * time.Millisecond
	srv := New(cfg, a, nil)
	if err := srv.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	done := make(chan struct{})
	go func() {
		srv.Shutdown()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Shutdown did not return promptly")
	}
}
