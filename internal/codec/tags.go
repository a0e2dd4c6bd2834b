// Package codec implements ASN.1 BER encoding and decoding of the
// SNMPv1 message envelope this agent speaks: SEQUENCE { version INTEGER,
// community OCTET STRING, pdu }, where pdu is a GetRequest,
// GetNextRequest, or GetResponse carrying a request-id, error-status,
// error-index, and a varbind list.
package codec

// ASN.1 BER/DER universal tag constants.
const (
	tagInteger          = 0x02
	tagOctetString      = 0x04
	tagNull             = 0x05
	tagObjectIdentifier = 0x06
	tagSequence         = 0x30
)

// SNMP application-tagged value constants (application class, 0x40-0x46).
const (
	tagIPAddress  = 0x40
	tagCounter32  = 0x41
	tagGauge32    = 0x42
	tagTimeTicks  = 0x43
	tagOpaque     = 0x44
	tagCounter64  = 0x46
)

// SNMP PDU context-specific tags (class 2, constructed).
const (
	tagGetRequest     = 0xA0
	tagGetNextRequest = 0xA1
	tagGetResponse    = 0xA2
)

// SNMP sentinel value tags used in a GetResponse varbind in place of a
// typed value.
const (
	tagNoSuchObject = 0x80
	tagEndOfMibView = 0x82
)

// VersionSNMPv1 is the only protocol version this agent speaks.
const VersionSNMPv1 = 0

// Error-status codes relevant to this agent; SNMPv1 defines more, but
// GetRequest/GetNextRequest only ever produce these two outcomes here.
const (
	ErrorStatusNoError    = 0
	ErrorStatusNoSuchName = 2
)
