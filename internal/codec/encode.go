package codec

import (
	"bytes"
	"fmt"

	"github.com/geekxflood/gosnmpd/internal/mib"
	"github.com/geekxflood/gosnmpd/internal/oid"
)

// tlv wraps content bytes with a tag and BER length octets, short form
// when possible and long form otherwise.
func tlv(tag byte, content []byte) []byte {
	var buf bytes.Buffer
	buf.WriteByte(tag)
	buf.Write(encodeLength(len(content)))
	buf.Write(content)
	return buf.Bytes()
}

func encodeLength(n int) []byte {
	if n < 0x80 {
		return []byte{byte(n)}
	}
	var raw []byte
	for n > 0 {
		raw = append([]byte{byte(n & 0xff)}, raw...)
		n >>= 8
	}
	return append([]byte{byte(0x80 | len(raw))}, raw...)
}

// encodeInteger renders a two's-complement, minimal-length big-endian
// INTEGER body, then wraps it in the given tag.
func encodeInteger(tag byte, v int64) []byte {
	if v == 0 {
		return tlv(tag, []byte{0})
	}
	var raw []byte
	neg := v < 0
	u := uint64(v)
	if neg {
		u = uint64(-v)
	}
	for u > 0 {
		raw = append([]byte{byte(u & 0xff)}, raw...)
		u >>= 8
	}
	if neg {
		// two's complement over the minimal byte width, then sign-extend
		// if the top bit of the first byte isn't already set.
		for i := range raw {
			raw[i] = ^raw[i]
		}
		for i := len(raw) - 1; i >= 0; i-- {
			raw[i]++
			if raw[i] != 0 {
				break
			}
		}
		if raw[0]&0x80 == 0 {
			raw = append([]byte{0xff}, raw...)
		}
	} else if raw[0]&0x80 != 0 {
		raw = append([]byte{0}, raw...)
	}
	return tlv(tag, raw)
}

func encodeOctetString(s string) []byte {
	return tlv(tagOctetString, []byte(s))
}

// encodeObjectIdentifier implements the inverse of decodeObjectIdentifier:
// the first byte packs 40*first+second, and every later component is
// emitted base-128 with continuation bits set on all but its last byte.
func encodeObjectIdentifier(id oid.ID) []byte {
	parts := id.Components()
	if len(parts) == 0 {
		return tlv(tagObjectIdentifier, nil)
	}
	first, second := uint32(0), uint32(0)
	rest := parts
	if len(parts) >= 2 {
		first, second = parts[0], parts[1]
		rest = parts[2:]
	} else {
		second = parts[0]
		rest = nil
	}
	var body []byte
	body = append(body, byte(first*40+second))
	for _, p := range rest {
		body = append(body, encodeBase128(p)...)
	}
	return tlv(tagObjectIdentifier, body)
}

func encodeBase128(v uint32) []byte {
	if v == 0 {
		return []byte{0}
	}
	var digits []byte
	for v > 0 {
		digits = append([]byte{byte(v & 0x7f)}, digits...)
		v >>= 7
	}
	for i := 0; i < len(digits)-1; i++ {
		digits[i] |= 0x80
	}
	return digits
}

// encodeValue renders a single varbind value, including the NoSuchObject
// and EndOfMibView sentinels as their dedicated context tags.
func encodeValue(v mib.Value) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return tlv(tagNull, nil), nil
	case mib.Integer:
		return encodeInteger(tagInteger, int64(val)), nil
	case mib.OctetString:
		return tlv(tagOctetString, []byte(val)), nil
	case mib.ObjectIdentifier:
		return encodeObjectIdentifier(oid.ID(val)), nil
	case mib.IPAddress:
		return tlv(tagIPAddress, val[:]), nil
	case mib.Counter32:
		return encodeInteger(tagCounter32, int64(val)), nil
	case mib.Gauge32:
		return encodeInteger(tagGauge32, int64(val)), nil
	case mib.TimeTicks:
		return encodeInteger(tagTimeTicks, int64(val)), nil
	case mib.Counter64:
		return encodeInteger(tagCounter64, int64(val)), nil
	case mib.Opaque:
		return tlv(tagOpaque, val), nil
	default:
		if mib.IsNoSuchObject(v) {
			return tlv(tagNoSuchObject, nil), nil
		}
		if mib.IsEndOfMibView(v) {
			return tlv(tagEndOfMibView, nil), nil
		}
		return nil, fmt.Errorf("codec: unsupported value type %T", v)
	}
}

func encodeVarbind(vb Varbind) ([]byte, error) {
	valueBytes, err := encodeValue(vb.Value)
	if err != nil {
		return nil, err
	}
	var body bytes.Buffer
	body.Write(encodeObjectIdentifier(vb.Name))
	body.Write(valueBytes)
	return tlv(tagSequence, body.Bytes()), nil
}

func encodeVarbindList(vbs []Varbind) ([]byte, error) {
	var body bytes.Buffer
	for _, vb := range vbs {
		encoded, err := encodeVarbind(vb)
		if err != nil {
			return nil, err
		}
		body.Write(encoded)
	}
	return tlv(tagSequence, body.Bytes()), nil
}

func pduTagFor(t PDUType) (byte, error) {
	switch t {
	case GetRequest:
		return tagGetRequest, nil
	case GetNextRequest:
		return tagGetNextRequest, nil
	case GetResponse:
		return tagGetResponse, nil
	default:
		return 0, fmt.Errorf("codec: unsupported PDU type %d", t)
	}
}

// Encode renders a Message as a full SNMPv1 packet.
func Encode(msg *Message) ([]byte, error) {
	pduTag, err := pduTagFor(msg.PDUType)
	if err != nil {
		return nil, err
	}
	varbindBytes, err := encodeVarbindList(msg.Varbinds)
	if err != nil {
		return nil, err
	}

	var pduBody bytes.Buffer
	pduBody.Write(encodeInteger(tagInteger, int64(msg.RequestID)))
	pduBody.Write(encodeInteger(tagInteger, int64(msg.ErrorStatus)))
	pduBody.Write(encodeInteger(tagInteger, int64(msg.ErrorIndex)))
	pduBody.Write(varbindBytes)
	pdu := tlv(pduTag, pduBody.Bytes())

	var outer bytes.Buffer
	outer.Write(encodeInteger(tagInteger, int64(VersionSNMPv1)))
	outer.Write(encodeOctetString(msg.Community))
	outer.Write(pdu)
	return tlv(tagSequence, outer.Bytes()), nil
}
