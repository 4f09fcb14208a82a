package xproto

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
)

var (
	ErrUnknownPacketType = errors.New("unknown packet type")
	ErrTruncatedPacket   = errors.New("truncated packet")
)

// 协议包内存布局, 全部小端, blank字段为填充
type initRequestWire struct {
	Type       uint16
	NameLength uint16
	Name       [NameSize]byte
}

type initResponseWire struct {
	Type     uint16
	Result   uint8
	_        uint8
	ClientID uint32
}

type initAckWire struct {
	Type     uint16
	_        uint16
	ClientID uint32
	Result   uint8
}

type delayProbeWire struct {
	Type           uint16
	_              uint16
	ClientID       uint32
	SeqNum         uint32
	_              uint32
	TimeClientSend uint64
	TimeServerRecv uint64
	TimeServerSend uint64
	TimeClientRecv uint64
}

type disconnectWire struct {
	Type uint16
	_    [6]byte
}

type serverDisconnectWire struct {
	Type uint16
}

type delayResultWire struct {
	Type       uint16
	_          uint16
	ClientID   uint32
	SeqNum     uint32
	DelayNanos uint64
}

// Encode returns the fixed-size little-endian layout of p.
// Names longer than NameSize bytes are cut to NameSize.
func Encode(p Packet) []byte {
	var wire interface{}
	switch v := p.(type) {
	case InitRequest:
		w := &initRequestWire{Type: uint16(TypeInitRequest)}
		n := copy(w.Name[:], v.Name)
		w.NameLength = uint16(n)
		wire = w
	case *InitRequest:
		return Encode(*v)
	case InitResponse:
		wire = &initResponseWire{Type: uint16(TypeInitResponse), Result: v.Result, ClientID: v.ClientID}
	case *InitResponse:
		return Encode(*v)
	case InitAck:
		wire = &initAckWire{Type: uint16(TypeInitAck), ClientID: v.ClientID, Result: v.Result}
	case *InitAck:
		return Encode(*v)
	case DelayProbe:
		wire = &delayProbeWire{
			Type:           uint16(TypeDelayProbe),
			ClientID:       v.ClientID,
			SeqNum:         v.SeqNum,
			TimeClientSend: v.TimeClientSend,
			TimeServerRecv: v.TimeServerRecv,
			TimeServerSend: v.TimeServerSend,
			TimeClientRecv: v.TimeClientRecv,
		}
	case *DelayProbe:
		return Encode(*v)
	case Disconnect, *Disconnect:
		wire = &disconnectWire{Type: uint16(TypeDisconnect)}
	case ServerDisconnect, *ServerDisconnect:
		wire = &serverDisconnectWire{Type: uint16(TypeServerDisconnect)}
	case DelayResult:
		wire = &delayResultWire{Type: uint16(TypeDelayResult), ClientID: v.ClientID, SeqNum: v.SeqNum, DelayNanos: v.DelayNanos}
	case *DelayResult:
		return Encode(*v)
	default:
		panic(errors.Errorf("xproto: cannot encode %T", p))
	}

	ioWrite := bytes.NewBuffer(make([]byte, 0, binary.Size(wire)))
	if err := binary.Write(ioWrite, binary.LittleEndian, wire); err != nil {
		// wire结构均为定长, 不会出错
		panic(err)
	}
	return ioWrite.Bytes()
}

// Decode parses a datagram. Bytes past the fixed size of the type are ignored.
func Decode(msg []byte) (Packet, error) {
	if len(msg) < 2 {
		return nil, errors.Wrapf(ErrTruncatedPacket, "len %d", len(msg))
	}
	t := PacketType(binary.LittleEndian.Uint16(msg))
	size := MinSize(t)
	if size == 0 {
		return nil, errors.Wrapf(ErrUnknownPacketType, "type %d", uint16(t))
	}
	if len(msg) < size {
		return nil, errors.Wrapf(ErrTruncatedPacket, "%v len %d need %d", t, len(msg), size)
	}

	switch t {
	case TypeInitRequest:
		w := &initRequestWire{}
		if err := unpack(msg[:size], w); err != nil {
			return nil, err
		}
		return InitRequest{Name: string(bytes.TrimRight(w.Name[:], "\x00"))}, nil
	case TypeInitResponse:
		w := &initResponseWire{}
		if err := unpack(msg[:size], w); err != nil {
			return nil, err
		}
		return InitResponse{Result: w.Result, ClientID: w.ClientID}, nil
	case TypeInitAck:
		w := &initAckWire{}
		if err := unpack(msg[:size], w); err != nil {
			return nil, err
		}
		return InitAck{ClientID: w.ClientID, Result: w.Result}, nil
	case TypeDelayProbe:
		w := &delayProbeWire{}
		if err := unpack(msg[:size], w); err != nil {
			return nil, err
		}
		return DelayProbe{
			ClientID:       w.ClientID,
			SeqNum:         w.SeqNum,
			TimeClientSend: w.TimeClientSend,
			TimeServerRecv: w.TimeServerRecv,
			TimeServerSend: w.TimeServerSend,
			TimeClientRecv: w.TimeClientRecv,
		}, nil
	case TypeDisconnect:
		return Disconnect{}, nil
	case TypeServerDisconnect:
		return ServerDisconnect{}, nil
	default:
		w := &delayResultWire{}
		if err := unpack(msg[:size], w); err != nil {
			return nil, err
		}
		return DelayResult{ClientID: w.ClientID, SeqNum: w.SeqNum, DelayNanos: w.DelayNanos}, nil
	}
}

func unpack(msg []byte, wire interface{}) error {
	ioReader := bytes.NewReader(msg)
	if err := binary.Read(ioReader, binary.LittleEndian, wire); err != nil {
		return errors.Wrap(ErrTruncatedPacket, err.Error())
	}
	return nil
}
