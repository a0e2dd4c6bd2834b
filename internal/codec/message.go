package codec

import (
	"github.com/geekxflood/gosnmpd/internal/mib"
	"github.com/geekxflood/gosnmpd/internal/oid"
)

// PDUType identifies which of the three message shapes this agent speaks
// a Message carries.
type PDUType int

const (
	GetRequest PDUType = iota
	GetNextRequest
	GetResponse
)

// Varbind pairs an OID with the value bound to it on the wire. In a
// request the Value is ignored by convention (SNMPv1 requests carry a
// Null placeholder); in a response it is the typed result of the lookup.
type Varbind struct {
	Name  oid.ID
	Value mib.Value
}

// Message is the decoded form of a full SNMPv1 packet: the community
// envelope plus one PDU.
type Message struct {
	Version     int
	Community   string
	PDUType     PDUType
	RequestID   int32
	ErrorStatus int
	ErrorIndex  int
	Varbinds    []Varbind
}
