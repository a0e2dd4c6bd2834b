package client

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/geekxflood/gosnmpd/internal/codec"
	"github.com/geekxflood/gosnmpd/internal/mib"
	"github.com/geekxflood/gosnmpd/internal/oid"
)

// fakeAgent answers a single UDP request with a canned GetResponse,
// standing in for an upstream agent so UDPClient can be exercised without
// the real internal/server.
func fakeAgent(t *testing.T, respond func(req *codec.Message) *codec.Message) string {
	t.Helper()
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	go func() {
		defer conn.Close()
		buf := make([]byte, 65507)
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			return
		}
		req, err := codec.Decode(buf[:n])
		if err != nil {
			return
		}
		resp := respond(req)
		encoded, err := codec.Encode(resp)
		if err != nil {
			return
		}
		_, _ = conn.WriteTo(encoded, addr)
	}()
	return conn.LocalAddr().String()
}

func TestUDPClientGet(t *testing.T) {
	addr := fakeAgent(t, func(req *codec.Message) *codec.Message {
		return &codec.Message{
			Community:   req.Community,
			PDUType:     codec.GetResponse,
			RequestID:   req.RequestID,
			ErrorStatus: codec.ErrorStatusNoError,
			Varbinds: []codec.Varbind{
				{Name: req.Varbinds[0].Name, Value: mib.Integer(42)},
			},
		}
	})

	c := NewUDPClient(&Config{Address: addr, Community: "public", Timeout: time.Second})
	v, ok, err := c.Get(context.Background(), oid.MustParse("1.2.3"))
	if err != nil || !ok || v != mib.Integer(42) {
		t.Fatalf("Get = %v, %v, %v", v, ok, err)
	}
}

func TestUDPClientGetNoSuchObject(t *testing.T) {
	addr := fakeAgent(t, func(req *codec.Message) *codec.Message {
		return &codec.Message{
			Community: req.Community,
			PDUType:   codec.GetResponse,
			RequestID: req.RequestID,
			Varbinds: []codec.Varbind{
				{Name: req.Varbinds[0].Name, Value: mib.NoSuchObject},
			},
		}
	})

	c := NewUDPClient(&Config{Address: addr, Community: "public", Timeout: time.Second})
	_, ok, err := c.Get(context.Background(), oid.MustParse("1.2.3"))
	if err != nil || ok {
		t.Fatalf("Get = ok=%v, %v, want ok=false", ok, err)
	}
}

func TestUDPClientGetNext(t *testing.T) {
	addr := fakeAgent(t, func(req *codec.Message) *codec.Message {
		return &codec.Message{
			Community: req.Community,
			PDUType:   codec.GetResponse,
			RequestID: req.RequestID,
			Varbinds: []codec.Varbind{
				{Name: oid.MustParse("1.2.4"), Value: mib.OctetString("hi")},
			},
		}
	})

	c := NewUDPClient(&Config{Address: addr, Community: "public", Timeout: time.Second})
	next, v, ok, err := c.GetNext(context.Background(), oid.MustParse("1.2.3"))
	if err != nil || !ok || next.String() != "1.2.4" || string(v.(mib.OctetString)) != "hi" {
		t.Fatalf("GetNext = %v, %v, %v, %v", next, v, ok, err)
	}
}

func TestUDPClientUnreachableRetriesThenFails(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := conn.LocalAddr().String()
	conn.Close() // nothing listens; every send/receive should fail fast

	c := NewUDPClient(&Config{Address: addr, Community: "public", Timeout: 50 * time.Millisecond, MaxRetries: 1, RetryDelay: time.Millisecond})
	_, _, err = c.Get(context.Background(), oid.MustParse("1.2.3"))
	if err == nil {
		t.Fatal("expected an error against an unreachable upstream")
	}
}

func TestMemoryClientGetAndGetNext(t *testing.T) {
	root := &mib.Node{}
	_ = root.Place(oid.MustParse("1.0"), mib.ScalarChild(7))
	_ = root.Place(oid.MustParse("1.1"), mib.ScalarChild(8))

	c := NewMemoryClient(root, "public")
	v, ok, err := c.Get(context.Background(), oid.MustParse("1.0"))
	if err != nil || !ok || v != mib.Integer(7) {
		t.Fatalf("Get = %v, %v, %v", v, ok, err)
	}

	next, v, ok, err := c.GetNext(context.Background(), oid.MustParse("1.0"))
	if err != nil || !ok || next.String() != "1.1" || v != mib.Integer(8) {
		t.Fatalf("GetNext = %v, %v, %v, %v", next, v, ok, err)
	}

	_, _, ok, err = c.GetNext(context.Background(), oid.MustParse("1.1"))
	if err != nil || ok {
		t.Fatalf("GetNext past the end = ok=%v, %v, want ok=false", ok, err)
	}
}
