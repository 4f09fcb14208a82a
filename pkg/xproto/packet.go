package xproto

import "fmt"

// PacketType is the 2-byte little-endian code every datagram starts with.
type PacketType uint16

const (
	TypeInitRequest      PacketType = 0 // client => peer
	TypeInitResponse     PacketType = 1 // peer => client
	TypeInitAck          PacketType = 2 // client => peer
	TypeDelayProbe       PacketType = 3 // client => peer => client
	TypeDisconnect       PacketType = 4 // client => peer
	TypeServerDisconnect PacketType = 5 // peer => client
	TypeDelayResult      PacketType = 6 // client => peer
)

// NameSize is the fixed width of the InitRequest name field.
const NameSize = 10

// 各类型最小长度(字节)
var minSizes = map[PacketType]int{
	TypeInitRequest:      14,
	TypeInitResponse:     8,
	TypeInitAck:          9,
	TypeDelayProbe:       48,
	TypeDisconnect:       8,
	TypeServerDisconnect: 2,
	TypeDelayResult:      20,
}

// MinSize returns the fixed wire size of t, or 0 for an unknown type.
func MinSize(t PacketType) int {
	return minSizes[t]
}

func (t PacketType) String() string {
	switch t {
	case TypeInitRequest:
		return "InitRequest"
	case TypeInitResponse:
		return "InitResponse"
	case TypeInitAck:
		return "InitAck"
	case TypeDelayProbe:
		return "DelayProbe"
	case TypeDisconnect:
		return "Disconnect"
	case TypeServerDisconnect:
		return "ServerDisconnect"
	case TypeDelayResult:
		return "DelayResult"
	default:
		return fmt.Sprintf("PacketType(%d)", uint16(t))
	}
}

// Packet is one of the seven protocol messages.
type Packet interface {
	Type() PacketType
}

type InitRequest struct {
	Name string // at most NameSize bytes survive encoding
}

type InitResponse struct {
	Result   uint8 // 0: ok
	ClientID uint32
}

type InitAck struct {
	ClientID uint32
	Result   uint8
}

// DelayProbe is stamped by the client, annotated by the peer and echoed back.
type DelayProbe struct {
	ClientID       uint32
	SeqNum         uint32
	TimeClientSend uint64
	TimeServerRecv uint64
	TimeServerSend uint64
	TimeClientRecv uint64
}

type Disconnect struct{}

type ServerDisconnect struct{}

type DelayResult struct {
	ClientID   uint32
	SeqNum     uint32
	DelayNanos uint64
}

func (InitRequest) Type() PacketType      { return TypeInitRequest }
func (InitResponse) Type() PacketType     { return TypeInitResponse }
func (InitAck) Type() PacketType          { return TypeInitAck }
func (DelayProbe) Type() PacketType       { return TypeDelayProbe }
func (Disconnect) Type() PacketType       { return TypeDisconnect }
func (ServerDisconnect) Type() PacketType { return TypeServerDisconnect }
func (DelayResult) Type() PacketType      { return TypeDelayResult }

// OK reports whether the peer accepted the handshake.
func (p InitResponse) OK() bool {
	return p.Result == 0
}
