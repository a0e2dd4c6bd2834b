package codec

import (
	"errors"
	"fmt"

	"github.com/geekxflood/gosnmpd/internal/mib"
	"github.com/geekxflood/gosnmpd/internal/oid"
)

// ErrTruncated is returned when the byte slice ends before a declared
// length is satisfied.
var ErrTruncated = errors.New("codec: truncated packet")

// ErrUnsupportedVersion is returned when the decoded version integer is
// not VersionSNMPv1.
var ErrUnsupportedVersion = errors.New("codec: unsupported SNMP version")

// decoder is a byte-cursor reader over a BER-encoded buffer, in the style
// of a hand-rolled ASN.1 parser: each parse method advances pos and
// returns ErrTruncated if the buffer runs out before a declared length.
type decoder struct {
	data []byte
	pos  int
}

func (d *decoder) remaining() int { return len(d.data) - d.pos }

func (d *decoder) expectTag(want byte) error {
	if d.remaining() < 1 {
		return ErrTruncated
	}
	got := d.data[d.pos]
	d.pos++
	if got != want {
		return fmt.Errorf("codec: expected tag 0x%02x, got 0x%02x", want, got)
	}
	return nil
}

func (d *decoder) peekTag() (byte, error) {
	if d.remaining() < 1 {
		return 0, ErrTruncated
	}
	return d.data[d.pos], nil
}

// parseLength decodes a BER length octet sequence: short form (single
// byte, high bit clear) or long form (high bit set, low 7 bits give the
// count of following length octets, big-endian).
func (d *decoder) parseLength() (int, error) {
	if d.remaining() < 1 {
		return 0, ErrTruncated
	}
	first := d.data[d.pos]
	d.pos++
	if first&0x80 == 0 {
		return int(first), nil
	}
	n := int(first & 0x7f)
	if n == 0 || d.remaining() < n {
		return 0, ErrTruncated
	}
	length := 0
	for i := 0; i < n; i++ {
		length = length<<8 | int(d.data[d.pos])
		d.pos++
	}
	return length, nil
}

func (d *decoder) takeBytes(n int) ([]byte, error) {
	if n < 0 || d.remaining() < n {
		return nil, ErrTruncated
	}
	b := d.data[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

// parseInteger decodes a tagged INTEGER: two's-complement, big-endian,
// minimal encoding.
func (d *decoder) parseInteger(wantTag byte) (int64, error) {
	if err := d.expectTag(wantTag); err != nil {
		return 0, err
	}
	length, err := d.parseLength()
	if err != nil {
		return 0, err
	}
	raw, err := d.takeBytes(length)
	if err != nil {
		return 0, err
	}
	if len(raw) == 0 {
		return 0, nil
	}
	var v int64
	if raw[0]&0x80 != 0 {
		v = -1
	}
	for _, b := range raw {
		v = v<<8 | int64(b)
	}
	return v, nil
}

func (d *decoder) parseOctetString() (string, error) {
	if err := d.expectTag(tagOctetString); err != nil {
		return "", err
	}
	length, err := d.parseLength()
	if err != nil {
		return "", err
	}
	raw, err := d.takeBytes(length)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// parseObjectIdentifier decodes a tagged OBJECT IDENTIFIER into an oid.ID
// via decodeObjectIdentifier.
func (d *decoder) parseObjectIdentifier() (oid.ID, error) {
	if err := d.expectTag(tagObjectIdentifier); err != nil {
		return oid.Empty, err
	}
	length, err := d.parseLength()
	if err != nil {
		return oid.Empty, err
	}
	raw, err := d.takeBytes(length)
	if err != nil {
		return oid.Empty, err
	}
	return decodeObjectIdentifier(raw)
}

// decodeObjectIdentifier implements the standard OID byte encoding: the
// first byte packs the first two sub-identifiers as 40*first+second, and
// every subsequent sub-identifier is base-128 with the high bit of every
// byte but the last set as a continuation flag.
func decodeObjectIdentifier(raw []byte) (oid.ID, error) {
	if len(raw) == 0 {
		return oid.Empty, nil
	}
	first := uint32(raw[0]) / 40
	second := uint32(raw[0]) % 40
	parts := []uint32{first, second}

	var cur uint32
	haveDigits := false
	for _, b := range raw[1:] {
		cur = cur<<7 | uint32(b&0x7f)
		haveDigits = true
		if b&0x80 == 0 {
			parts = append(parts, cur)
			cur = 0
			haveDigits = false
		}
	}
	if haveDigits {
		return oid.Empty, fmt.Errorf("codec: truncated OID continuation sequence")
	}
	return oid.FromComponents(parts), nil
}

// parseValue decodes a single tagged value per the varbind value grammar:
// requests carry a Null placeholder, responses carry a typed value or a
// NoSuchObject/EndOfMibView sentinel.
func (d *decoder) parseValue() (mib.Value, error) {
	tag, err := d.peekTag()
	if err != nil {
		return nil, err
	}
	switch tag {
	case tagInteger:
		v, err := d.parseInteger(tagInteger)
		if err != nil {
			return nil, err
		}
		return mib.Integer(v), nil
	case tagOctetString:
		s, err := d.parseOctetString()
		if err != nil {
			return nil, err
		}
		return mib.OctetString([]byte(s)), nil
	case tagNull:
		if err := d.expectTag(tagNull); err != nil {
			return nil, err
		}
		if _, err := d.parseLength(); err != nil {
			return nil, err
		}
		return nil, nil
	case tagObjectIdentifier:
		id, err := d.parseObjectIdentifier()
		if err != nil {
			return nil, err
		}
		return mib.ObjectIdentifier(id), nil
	case tagIPAddress:
		d.pos++
		length, err := d.parseLength()
		if err != nil {
			return nil, err
		}
		raw, err := d.takeBytes(length)
		if err != nil {
			return nil, err
		}
		var ip mib.IPAddress
		copy(ip[:], raw)
		return ip, nil
	case tagCounter32:
		v, err := d.parseInteger(tagCounter32)
		if err != nil {
			return nil, err
		}
		return mib.Counter32(uint32(v)), nil
	case tagGauge32:
		v, err := d.parseInteger(tagGauge32)
		if err != nil {
			return nil, err
		}
		return mib.Gauge32(uint32(v)), nil
	case tagTimeTicks:
		v, err := d.parseInteger(tagTimeTicks)
		if err != nil {
			return nil, err
		}
		return mib.TimeTicks(uint32(v)), nil
	case tagCounter64:
		v, err := d.parseInteger(tagCounter64)
		if err != nil {
			return nil, err
		}
		return mib.Counter64(uint64(v)), nil
	case tagNoSuchObject:
		d.pos++
		if _, err := d.parseLength(); err != nil {
			return nil, err
		}
		return mib.NoSuchObject, nil
	case tagEndOfMibView:
		d.pos++
		if _, err := d.parseLength(); err != nil {
			return nil, err
		}
		return mib.EndOfMibView, nil
	default:
		d.pos++
		length, err := d.parseLength()
		if err != nil {
			return nil, err
		}
		raw, err := d.takeBytes(length)
		if err != nil {
			return nil, err
		}
		return mib.Opaque(raw), nil
	}
}

func (d *decoder) parseVarbind() (Varbind, error) {
	if err := d.expectTag(tagSequence); err != nil {
		return Varbind{}, err
	}
	length, err := d.parseLength()
	if err != nil {
		return Varbind{}, err
	}
	end := d.pos + length
	if end > len(d.data) {
		return Varbind{}, ErrTruncated
	}
	name, err := d.parseObjectIdentifier()
	if err != nil {
		return Varbind{}, err
	}
	value, err := d.parseValue()
	if err != nil {
		return Varbind{}, err
	}
	d.pos = end
	return Varbind{Name: name, Value: value}, nil
}

func (d *decoder) parseVarbindList() ([]Varbind, error) {
	if err := d.expectTag(tagSequence); err != nil {
		return nil, err
	}
	length, err := d.parseLength()
	if err != nil {
		return nil, err
	}
	end := d.pos + length
	if end > len(d.data) {
		return nil, ErrTruncated
	}
	var vbs []Varbind
	for d.pos < end {
		vb, err := d.parseVarbind()
		if err != nil {
			return nil, err
		}
		vbs = append(vbs, vb)
	}
	return vbs, nil
}

func (d *decoder) parsePDU(pduTag byte) (Message, error) {
	var msg Message
	switch pduTag {
	case tagGetRequest:
		msg.PDUType = GetRequest
	case tagGetNextRequest:
		msg.PDUType = GetNextRequest
	case tagGetResponse:
		msg.PDUType = GetResponse
	default:
		return Message{}, fmt.Errorf("codec: unsupported PDU tag 0x%02x", pduTag)
	}
	if err := d.expectTag(pduTag); err != nil {
		return Message{}, err
	}
	length, err := d.parseLength()
	if err != nil {
		return Message{}, err
	}
	end := d.pos + length
	if end > len(d.data) {
		return Message{}, ErrTruncated
	}
	requestID, err := d.parseInteger(tagInteger)
	if err != nil {
		return Message{}, err
	}
	msg.RequestID = int32(requestID)
	errorStatus, err := d.parseInteger(tagInteger)
	if err != nil {
		return Message{}, err
	}
	msg.ErrorStatus = int(errorStatus)
	errorIndex, err := d.parseInteger(tagInteger)
	if err != nil {
		return Message{}, err
	}
	msg.ErrorIndex = int(errorIndex)
	vbs, err := d.parseVarbindList()
	if err != nil {
		return Message{}, err
	}
	msg.Varbinds = vbs
	d.pos = end
	return msg, nil
}

// Decode parses a full SNMPv1 packet: SEQUENCE { version, community, pdu }.
func Decode(data []byte) (*Message, error) {
	d := &decoder{data: data}
	if err := d.expectTag(tagSequence); err != nil {
		return nil, err
	}
	outerLength, err := d.parseLength()
	if err != nil {
		return nil, err
	}
	if d.pos+outerLength > len(d.data) {
		return nil, ErrTruncated
	}

	version, err := d.parseInteger(tagInteger)
	if err != nil {
		return nil, err
	}
	if version != VersionSNMPv1 {
		return nil, ErrUnsupportedVersion
	}

	community, err := d.parseOctetString()
	if err != nil {
		return nil, err
	}

	pduTag, err := d.peekTag()
	if err != nil {
		return nil, err
	}
	msg, err := d.parsePDU(pduTag)
	if err != nil {
		return nil, err
	}
	msg.Version = int(version)
	msg.Community = community
	return &msg, nil
}
