package xproto_test

import (
	"encoding/binary"
	"reflect"
	"testing"

	"udpdelay/pkg/xproto"

	"github.com/pkg/errors"
)

func samplePackets() []xproto.Packet {
	return []xproto.Packet{
		xproto.InitRequest{Name: "Go_Client"},
		xproto.InitRequest{Name: ""},
		xproto.InitRequest{Name: "ten_bytes!"},
		xproto.InitResponse{Result: 0, ClientID: 42},
		xproto.InitResponse{Result: 1},
		xproto.InitAck{ClientID: 0xfffffffe},
		xproto.DelayProbe{ClientID: 7, SeqNum: 3, TimeClientSend: 1000, TimeServerRecv: 1100, TimeServerSend: 1200, TimeClientRecv: 1500},
		xproto.DelayProbe{ClientID: 1, SeqNum: 0xffffffff, TimeClientSend: 0xffffffffffffffff},
		xproto.Disconnect{},
		xproto.ServerDisconnect{},
		xproto.DelayResult{ClientID: 9, SeqNum: 12, DelayNanos: 500},
	}
}

func TestRoundTrip(t *testing.T) {
	for _, p := range samplePackets() {
		msg := xproto.Encode(p)
		if len(msg) != xproto.MinSize(p.Type()) {
			t.Fatalf("%v encoded to %d bytes, want %d", p.Type(), len(msg), xproto.MinSize(p.Type()))
		}
		got, err := xproto.Decode(msg)
		if err != nil {
			t.Fatalf("%v decode: %v", p.Type(), err)
		}
		if !reflect.DeepEqual(got, p) {
			t.Fatalf("round trip %#v => %#v", p, got)
		}
	}
}

func TestPointerPacketsEncode(t *testing.T) {
	probe := &xproto.DelayProbe{ClientID: 2, SeqNum: 5, TimeClientSend: 77}
	got, err := xproto.Decode(xproto.Encode(probe))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, *probe) {
		t.Fatalf("got %#v", got)
	}
}

func TestTruncated(t *testing.T) {
	for _, p := range samplePackets() {
		msg := xproto.Encode(p)
		_, err := xproto.Decode(msg[:len(msg)-1])
		if !errors.Is(err, xproto.ErrTruncatedPacket) {
			t.Fatalf("%v: want ErrTruncatedPacket, got %v", p.Type(), err)
		}
	}
	if _, err := xproto.Decode(nil); !errors.Is(err, xproto.ErrTruncatedPacket) {
		t.Fatalf("empty buffer: got %v", err)
	}
	if _, err := xproto.Decode([]byte{3}); !errors.Is(err, xproto.ErrTruncatedPacket) {
		t.Fatalf("one byte: got %v", err)
	}
}

func TestUnknownType(t *testing.T) {
	for _, code := range []uint16{7, 8, 255, 0x0100, 0xffff} {
		for _, size := range []int{2, 3, 14, 48, 100} {
			msg := make([]byte, size)
			binary.LittleEndian.PutUint16(msg, code)
			_, err := xproto.Decode(msg)
			if !errors.Is(err, xproto.ErrUnknownPacketType) {
				t.Fatalf("code %d size %d: got %v", code, size, err)
			}
		}
	}
}

func TestTrailingBytesIgnored(t *testing.T) {
	want := xproto.DelayResult{ClientID: 3, SeqNum: 4, DelayNanos: 5}
	msg := append(xproto.Encode(want), 0xde, 0xad, 0xbe, 0xef)
	got, err := xproto.Decode(msg)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Fatalf("got %#v", got)
	}
}

func TestWireLayout(t *testing.T) {
	msg := xproto.Encode(xproto.DelayProbe{ClientID: 0x01020304, SeqNum: 9, TimeClientSend: 1, TimeServerRecv: 2, TimeServerSend: 3, TimeClientRecv: 4})
	if binary.LittleEndian.Uint16(msg[0:]) != 3 {
		t.Fatalf("type %x", msg[0:2])
	}
	if msg[4] != 0x04 || msg[7] != 0x01 {
		t.Fatalf("client id not little endian: %x", msg[4:8])
	}
	if binary.LittleEndian.Uint32(msg[8:]) != 9 {
		t.Fatalf("seq %x", msg[8:12])
	}
	for i, off := range []int{16, 24, 32, 40} {
		if binary.LittleEndian.Uint64(msg[off:]) != uint64(i+1) {
			t.Fatalf("timestamp at %d: %x", off, msg[off:off+8])
		}
	}

	resp := xproto.Encode(xproto.InitResponse{Result: 2, ClientID: 42})
	if resp[2] != 2 || binary.LittleEndian.Uint32(resp[4:]) != 42 {
		t.Fatalf("init response layout %x", resp)
	}

	ack := xproto.Encode(xproto.InitAck{ClientID: 42})
	if binary.LittleEndian.Uint32(ack[4:]) != 42 || ack[8] != 0 {
		t.Fatalf("init ack layout %x", ack)
	}

	result := xproto.Encode(xproto.DelayResult{ClientID: 1, SeqNum: 2, DelayNanos: 500})
	if binary.LittleEndian.Uint64(result[12:]) != 500 {
		t.Fatalf("delay result layout %x", result)
	}
}

func TestInitRequestName(t *testing.T) {
	msg := xproto.Encode(xproto.InitRequest{Name: "Mac"})
	if binary.LittleEndian.Uint16(msg[2:]) != 3 {
		t.Fatalf("name length %x", msg[2:4])
	}
	for _, b := range msg[7:14] {
		if b != 0 {
			t.Fatalf("name not zero padded: %x", msg[4:14])
		}
	}

	// 超长名字被截断到10字节
	long := xproto.Encode(xproto.InitRequest{Name: "a_very_long_client_name"})
	if len(long) != 14 || binary.LittleEndian.Uint16(long[2:]) != xproto.NameSize {
		t.Fatalf("long name encoded as %x", long)
	}
	got, err := xproto.Decode(long)
	if err != nil {
		t.Fatal(err)
	}
	if got.(xproto.InitRequest).Name != "a_very_lon" {
		t.Fatalf("got %q", got.(xproto.InitRequest).Name)
	}

	// no terminator required
	full := xproto.Encode(xproto.InitRequest{Name: "0123456789"})
	got, err = xproto.Decode(full)
	if err != nil {
		t.Fatal(err)
	}
	if got.(xproto.InitRequest).Name != "0123456789" {
		t.Fatalf("got %q", got.(xproto.InitRequest).Name)
	}
}
