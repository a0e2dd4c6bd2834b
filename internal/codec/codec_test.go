package codec

import (
	"reflect"
	"testing"

	"github.com/geekxflood/gosnmpd/internal/mib"
	"github.com/geekxflood/gosnmpd/internal/oid"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []Message{
		{
			Community: "public",
			PDUType:   GetRequest,
			RequestID: 1,
			Varbinds: []Varbind{
				{Name: oid.MustParse("1.3.6.1.2.1.1.1.0"), Value: nil},
			},
		},
		{
			Community: "public",
			PDUType:   GetNextRequest,
			RequestID: 2,
			Varbinds: []Varbind{
				{Name: oid.MustParse("1.3.6.1.2.1.1"), Value: nil},
			},
		},
		{
			Community:   "public",
			PDUType:     GetResponse,
			RequestID:   3,
			ErrorStatus: ErrorStatusNoError,
			Varbinds: []Varbind{
				{Name: oid.MustParse("1.3.6.1.2.1.1.1.0"), Value: mib.OctetString("a test agent")},
				{Name: oid.MustParse("1.3.6.1.2.1.1.3.0"), Value: mib.TimeTicks(12345)},
				{Name: oid.MustParse("0.0"), Value: mib.Integer(-17)},
			},
		},
		{
			Community:   "public",
			PDUType:     GetResponse,
			RequestID:   4,
			ErrorStatus: ErrorStatusNoSuchName,
			ErrorIndex:  1,
			Varbinds: []Varbind{
				{Name: oid.MustParse("1.3.6.1.2.1.1.1.99"), Value: mib.NoSuchObject},
			},
		},
		{
			Community:   "public",
			PDUType:     GetResponse,
			RequestID:   5,
			ErrorStatus: ErrorStatusNoError,
			Varbinds: []Varbind{
				{Name: oid.MustParse("1.3.6.1.2.1.1.9.1.3.1"), Value: mib.EndOfMibView},
			},
		},
	}

	for i, want := range cases {
		encoded, err := Encode(&want)
		if err != nil {
			t.Fatalf("case %d: Encode: %v", i, err)
		}
		got, err := Decode(encoded)
		if err != nil {
			t.Fatalf("case %d: Decode: %v", i, err)
		}
		if got.Community != want.Community || got.PDUType != want.PDUType || got.RequestID != want.RequestID {
			t.Fatalf("case %d: envelope mismatch: got %+v, want %+v", i, got, want)
		}
		if got.ErrorStatus != want.ErrorStatus || got.ErrorIndex != want.ErrorIndex {
			t.Fatalf("case %d: error fields mismatch: got %+v, want %+v", i, got, want)
		}
		if len(got.Varbinds) != len(want.Varbinds) {
			t.Fatalf("case %d: varbind count mismatch: got %d, want %d", i, len(got.Varbinds), len(want.Varbinds))
		}
		for j, wantVb := range want.Varbinds {
			gotVb := got.Varbinds[j]
			if !gotVb.Name.Equal(wantVb.Name) {
				t.Errorf("case %d varbind %d: name got %s, want %s", i, j, gotVb.Name, wantVb.Name)
			}
			if wantVb.Value == nil {
				continue
			}
			if !reflect.DeepEqual(gotVb.Value, wantVb.Value) {
				t.Errorf("case %d varbind %d: value got %#v, want %#v", i, j, gotVb.Value, wantVb.Value)
			}
		}
	}
}

func TestEncodeObjectIdentifierLargeComponent(t *testing.T) {
	id := oid.MustParse("1.3.6.1.4.1.27068.2.2.7")
	encoded := encodeObjectIdentifier(id)
	d := &decoder{data: encoded}
	got, err := d.parseObjectIdentifier()
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(id) {
		t.Errorf("round trip got %s, want %s", got, id)
	}
}

func TestDecodeTruncatedPacket(t *testing.T) {
	_, err := Decode([]byte{tagSequence, 0x10, 0x02, 0x01})
	if err != ErrTruncated {
		t.Errorf("Decode(truncated) = %v, want ErrTruncated", err)
	}
}

func TestDecodeUnsupportedVersion(t *testing.T) {
	msg := &Message{Community: "public", PDUType: GetRequest, RequestID: 1}
	encoded, err := Encode(msg)
	if err != nil {
		t.Fatal(err)
	}
	// Flip the version integer's content byte (offset 4: seq tag, len, int
	// tag, int len, then the version value byte) from 0 to 1.
	encoded[4] = 1
	if _, err := Decode(encoded); err != ErrUnsupportedVersion {
		t.Errorf("Decode(v2c) = %v, want ErrUnsupportedVersion", err)
	}
}

func TestEncodeIntegerNegativeRoundTrip(t *testing.T) {
	for _, v := range []int64{0, 1, -1, 127, 128, -128, -129, 70000, -70000} {
		encoded := encodeInteger(tagInteger, v)
		d := &decoder{data: encoded}
		got, err := d.parseInteger(tagInteger)
		if err != nil {
			t.Fatalf("v=%d: %v", v, err)
		}
		if got != v {
			t.Errorf("v=%d: round trip got %d", v, got)
		}
	}
}
