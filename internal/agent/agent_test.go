package agent

import (
	"testing"

	"github.com/geekxflood/gosnmpd/internal/client"
	"github.com/geekxflood/gosnmpd/internal/codec"
	"github.com/geekxflood/gosnmpd/internal/mib"
	"github.com/geekxflood/gosnmpd/internal/oid"
)

func TestSystemGroupAutoRegistered(t *testing.T) {
	a := New(Config{SysContact: "ops@example.com", SysName: "box1", SysLocation: "rack 3"}, nil)

	resp := a.ProcessGetRequest(&codec.Message{
		Community: "public",
		Varbinds: []codec.Varbind{
			{Name: oid.MustParse("1.3.6.1.2.1.1.4.0")},
			{Name: oid.MustParse("1.3.6.1.2.1.1.5.0")},
			{Name: oid.MustParse("1.3.6.1.2.1.1.6.0")},
		},
	})

	want := []string{"ops@example.com", "box1", "rack 3"}
	for i, w := range want {
		got, ok := resp.Varbinds[i].Value.(mib.OctetString)
		if !ok || string(got) != w {
			t.Errorf("varbind %d = %#v, want OctetString(%q)", i, resp.Varbinds[i].Value, w)
		}
	}
}

func TestAddPluginAndGet(t *testing.T) {
	a := New(DefaultConfig(), nil)
	if err := a.AddPlugin(oid.MustParse("1.2.3"), func(string) (any, error) { return 42, nil }); err != nil {
		t.Fatal(err)
	}

	resp := a.ProcessGetRequest(&codec.Message{
		Community: "public",
		Varbinds:  []codec.Varbind{{Name: oid.MustParse("1.2.3")}},
	})
	if resp.Varbinds[0].Value != mib.Integer(42) {
		t.Fatalf("Get 1.2.3 = %#v, want INTEGER 42", resp.Varbinds[0].Value)
	}

	resp = a.ProcessGetRequest(&codec.Message{
		Community: "public",
		Varbinds:  []codec.Varbind{{Name: oid.MustParse("1.2.3.4")}},
	})
	if !mib.IsNoSuchObject(resp.Varbinds[0].Value) {
		t.Fatalf("Get 1.2.3.4 = %#v, want NoSuchObject", resp.Varbinds[0].Value)
	}
}

// TestGetNextScenario reproduces the walk-sequence end-to-end scenario:
// a Fibonacci-producing plugin at 3.2.1, GetNext at three points landing
// on two in-range successors and one off-the-end rewrite.
func TestGetNextScenario(t *testing.T) {
	a := New(DefaultConfig(), nil)
	fib := []any{1, 1, 2, 3, 5, 8, 13}
	if err := a.AddPlugin(oid.MustParse("3.2.1"), func(string) (any, error) { return fib, nil }); err != nil {
		t.Fatal(err)
	}

	resp := a.ProcessGetNextRequest(&codec.Message{
		Community: "public",
		Varbinds: []codec.Varbind{
			{Name: oid.MustParse("3.2.1")},
			{Name: oid.MustParse("3.2.1.4")},
			{Name: oid.MustParse("3.2.1.6")},
		},
	})

	if resp.Varbinds[0].Name.String() != "3.2.1.0" || resp.Varbinds[0].Value != mib.Integer(1) {
		t.Errorf("varbind 0 = %v %#v", resp.Varbinds[0].Name, resp.Varbinds[0].Value)
	}
	if resp.Varbinds[1].Name.String() != "3.2.1.5" || resp.Varbinds[1].Value != mib.Integer(8) {
		t.Errorf("varbind 1 = %v %#v", resp.Varbinds[1].Name, resp.Varbinds[1].Value)
	}
	if resp.Varbinds[2].Name.String() != "0" || !mib.IsEndOfMibView(resp.Varbinds[2].Value) {
		t.Errorf("varbind 2 = %v %#v, want name 0 / EndOfMibView", resp.Varbinds[2].Name, resp.Varbinds[2].Value)
	}
	if resp.ErrorStatus != codec.ErrorStatusNoSuchName || resp.ErrorIndex != 2 {
		t.Errorf("error-status/index = %d/%d, want noSuchName/2", resp.ErrorStatus, resp.ErrorIndex)
	}
}

func TestGetNextScalarPlugin(t *testing.T) {
	a := New(DefaultConfig(), nil)
	if err := a.AddPlugin(oid.MustParse("3.2.1"), func(string) (any, error) { return 42, nil }); err != nil {
		t.Fatal(err)
	}

	resp := a.ProcessGetNextRequest(&codec.Message{
		Community: "public",
		Varbinds:  []codec.Varbind{{Name: oid.MustParse("3.2")}},
	})
	if resp.Varbinds[0].Name.String() != "3.2.1" || resp.Varbinds[0].Value != mib.Integer(42) {
		t.Fatalf("GetNext 3.2 = %v %#v", resp.Varbinds[0].Name, resp.Varbinds[0].Value)
	}
}

func TestRegistrationRuleEnforced(t *testing.T) {
	a := New(DefaultConfig(), nil)
	_ = a.AddPlugin(oid.MustParse("1.2"), func(string) (any, error) { return 1, nil })

	err := a.AddPlugin(oid.MustParse("1.2.3"), func(string) (any, error) { return 2, nil })
	if err != mib.ErrEncroachesOnPlugin {
		t.Errorf("nesting under a plugin = %v, want ErrEncroachesOnPlugin", err)
	}
}

func TestRegistrationRuleEnforcedUnderProxy(t *testing.T) {
	a := New(DefaultConfig(), nil)
	upstream := &mib.Node{}
	_ = a.AddProxyClient(oid.MustParse("1.2"), client.NewMemoryClient(upstream, "public"))

	err := a.AddPlugin(oid.MustParse("1.2.3"), func(string) (any, error) { return 2, nil })
	if err != mib.ErrCannotNestInProxy {
		t.Errorf("nesting under a proxy = %v, want ErrCannotNestInProxy", err)
	}
}

func TestCommunityPassthroughScenario(t *testing.T) {
	a := New(DefaultConfig(), nil)
	_ = a.AddPlugin(oid.MustParse("1.2.3"), func(community string) (any, error) { return community, nil })

	resp := a.ProcessGetRequest(&codec.Message{
		Community: "public",
		Varbinds:  []codec.Varbind{{Name: oid.MustParse("1.2.3")}},
	})
	if string(resp.Varbinds[0].Value.(mib.OctetString)) != "public" {
		t.Fatalf("Get 1.2.3 = %#v, want OCTET STRING \"public\"", resp.Varbinds[0].Value)
	}
}
