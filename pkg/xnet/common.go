package xnet

import (
	"context"
	"net"
	"time"

	"github.com/pkg/errors"
)

const (
	udpNetwork     = "udp"
	readBufferSize = 2048 // 单个datagram读缓存

	writeChanLimit   = 200 // 写channel大小
	udpMsgChanLimit  = 64  // 服务端session消息队列
	udpCheckDuration = 1 * time.Second

	wsWriteTimeout = 10 * time.Second
	wsPongWait     = 60 * time.Second
	wsPingPeriod   = wsPongWait * 9 / 10
	maxMessageSize = 4096
)

var (
	ErrSockClosed  = errors.New("sock already close")
	ErrMsgOverflow = errors.New("msg overflow")
	ErrIdleTimeout = errors.New("idle timeout")
)

// Socket is one remote endpoint a handler can answer.
type Socket interface {
	SendMsg(ctx context.Context, msg []byte) error
	RemoteAddr() net.Addr
	Close(ctx context.Context)
}

// 消息处理, 返回error时关闭连接
type OnMsg func(ctx context.Context, state interface{}, msg []byte) error

// 建立链接, 返回值作为该连接的state
type OnConnect func(ctx context.Context, sock Socket) interface{}

// 关闭链接
type OnDisconnect func(ctx context.Context, state interface{})
