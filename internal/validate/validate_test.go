package validate

import (
	"testing"

	"github.com/geekxflood/gosnmpd/internal/codec"
	"github.com/geekxflood/gosnmpd/internal/oid"
)

func TestValidatePacketSize(t *testing.T) {
	v := New(&Config{MaxPacketSize: 10, MaxVarbinds: 100, MaxOIDLength: 128})
	err := v.ValidateRequest(&codec.Message{}, "10.0.0.1:1234", make([]byte, 11))
	if err == nil {
		t.Fatal("expected oversized packet to be rejected")
	}
}

func TestValidateBlockedSource(t *testing.T) {
	v := New(&Config{MaxPacketSize: 8000, MaxVarbinds: 100, MaxOIDLength: 128, BlockedSources: []string{"10.0.0.0/8"}})
	err := v.ValidateRequest(&codec.Message{}, "10.1.2.3:1234", []byte("x"))
	if err == nil {
		t.Fatal("expected blocked source to be rejected")
	}
}

func TestValidateAllowedSourceAllowList(t *testing.T) {
	v := New(&Config{MaxPacketSize: 8000, MaxVarbinds: 100, MaxOIDLength: 128, AllowedSources: []string{"192.168.1.0/24"}})
	if err := v.ValidateRequest(&codec.Message{}, "192.168.1.5:1234", []byte("x")); err != nil {
		t.Fatalf("expected source within allow list to pass, got %v", err)
	}
	if err := v.ValidateRequest(&codec.Message{}, "10.0.0.1:1234", []byte("x")); err == nil {
		t.Fatal("expected source outside allow list to be rejected")
	}
}

func TestValidateTooManyVarbinds(t *testing.T) {
	v := New(&Config{MaxPacketSize: 8000, MaxVarbinds: 1, MaxOIDLength: 128})
	msg := &codec.Message{Varbinds: []codec.Varbind{
		{Name: oid.MustParse("1.2.3")},
		{Name: oid.MustParse("1.2.4")},
	}}
	if err := v.ValidateRequest(msg, "10.0.0.1:1234", []byte("x")); err == nil {
		t.Fatal("expected too many varbinds to be rejected")
	}
}

func TestValidateOIDTooLong(t *testing.T) {
	v := New(&Config{MaxPacketSize: 8000, MaxVarbinds: 100, MaxOIDLength: 2})
	msg := &codec.Message{Varbinds: []codec.Varbind{{Name: oid.MustParse("1.2.3")}}}
	if err := v.ValidateRequest(msg, "10.0.0.1:1234", []byte("x")); err == nil {
		t.Fatal("expected overlong OID to be rejected")
	}
}

func TestNewNilConfigUsesDefaults(t *testing.T) {
	v := New(nil)
	if v.config.MaxVarbinds != DefaultConfig().MaxVarbinds {
		t.Fatal("New(nil) should apply DefaultConfig")
	}
}
