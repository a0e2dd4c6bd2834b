package mib

import (
	"fmt"

	"github.com/geekxflood/gosnmpd/internal/oid"
)

// Value is the sealed set of SNMP value variants the engine passes
// between the tree and the wire codec. A plugin producer may return any
// of these directly (they satisfy the "already an SNMP value object"
// row of the value-typing table) and they flow through materialisation
// and coercion by reference, never copied.
type Value interface {
	snmpValue()
}

// Integer is the SNMP INTEGER variant.
type Integer int32

func (Integer) snmpValue() {}

// OctetString is the SNMP OCTET STRING variant.
type OctetString []byte

func (OctetString) snmpValue() {}

// ObjectIdentifier is the SNMP OBJECT IDENTIFIER variant.
type ObjectIdentifier oid.ID

func (ObjectIdentifier) snmpValue() {}

// IPAddress is the SNMP IpAddress variant: four octets, network order.
type IPAddress [4]byte

func (IPAddress) snmpValue() {}

// Counter32 is the SNMP Counter32 variant.
type Counter32 uint32

func (Counter32) snmpValue() {}

// Gauge32 is the SNMP Gauge32 variant.
type Gauge32 uint32

func (Gauge32) snmpValue() {}

// TimeTicks is the SNMP TimeTicks variant: centiseconds since some epoch
// meaningful to the object (for sysUpTime, since agent start).
type TimeTicks uint32

func (TimeTicks) snmpValue() {}

// Counter64 is the SNMP Counter64 variant.
type Counter64 uint64

func (Counter64) snmpValue() {}

// Opaque is the SNMP Opaque variant: an application-defined byte blob.
type Opaque []byte

func (Opaque) snmpValue() {}

type noSuchObjectType struct{}

func (noSuchObjectType) snmpValue() {}

type endOfMibViewType struct{}

func (endOfMibViewType) snmpValue() {}

// NoSuchObject is the distinct sentinel returned when no scalar exists at
// a requested OID. Callers must compare against this identity, never
// construct an equivalent value of their own.
var NoSuchObject Value = noSuchObjectType{}

// EndOfMibView is the distinct sentinel returned when a GetNext search
// finds no lexicographic successor.
var EndOfMibView Value = endOfMibViewType{}

// IsNoSuchObject reports whether v is the NoSuchObject sentinel.
func IsNoSuchObject(v Value) bool {
	_, ok := v.(noSuchObjectType)
	return ok
}

// IsEndOfMibView reports whether v is the EndOfMibView sentinel.
func IsEndOfMibView(v Value) bool {
	_, ok := v.(endOfMibViewType)
	return ok
}

// Typed maps a raw lookup result to an SNMP value per §4.8: Go integer
// types other than uint64 become INTEGER, strings and byte slices become
// OCTET STRING, an
// already-typed Value passes through unchanged, and anything else is
// rendered to its textual form as OCTET STRING.
func Typed(raw any) Value {
	switch v := raw.(type) {
	case nil:
		return NoSuchObject
	case Value:
		return v
	case int:
		return Integer(v)
	case int8:
		return Integer(v)
	case int16:
		return Integer(v)
	case int32:
		return Integer(v)
	case int64:
		return Integer(v)
	case uint:
		return Integer(v)
	case uint8:
		return Integer(v)
	case uint16:
		return Integer(v)
	case uint32:
		return Integer(v)
	case string:
		return OctetString([]byte(v))
	case []byte:
		return OctetString(v)
	case oid.ID:
		return ObjectIdentifier(v)
	default:
		return OctetString([]byte(fmt.Sprintf("%v", v)))
	}
}

// TypedFromLookup converts a Node.Lookup result into the SNMP value the
// agent façade returns to a caller: a scalar is typed per Typed, anything
// else (absent, or an interior subtree with no scalar of its own) is the
// NoSuchObject sentinel.
func TypedFromLookup(res LookupResult, err error) Value {
	if err != nil || res.Kind != ResultScalar {
		return NoSuchObject
	}
	return Typed(res.Scalar)
}
