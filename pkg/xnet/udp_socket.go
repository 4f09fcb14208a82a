package xnet

import (
	"context"
	"net"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"udpdelay/pkg/xcommon"
	"udpdelay/pkg/xlog"
)

type udpOnMsg func(ctx context.Context, msg []byte, addr *net.UDPAddr)

// udpOnClose is called once when the read loop exits, err is nil on a local close.
type udpOnClose func(ctx context.Context, err error)

type UDPSocketArgs struct {
	isServer bool
	conn     *net.UDPConn
	onMsg    udpOnMsg
	onClose  udpOnClose
}

type udpDatagram struct {
	msg  []byte
	addr *net.UDPAddr
}

// UDPSocket owns the conn: one read loop, one write loop.
// close(closeCh) => write loop drains => conn.Close() => read loop exits
type UDPSocket struct {
	isServer bool
	conn     *net.UDPConn
	onMsg    udpOnMsg
	onClose  udpOnClose
	writeCh  chan *udpDatagram

	errMu sync.Mutex
	err   error // 第一个致命错误

	closeOnce sync.Once
	closeCh   chan struct{}
	wg        xcommon.WaitGroup
}

func NewUDPSocket(ctx context.Context, arg UDPSocketArgs) *UDPSocket {
	sock := &UDPSocket{
		isServer: arg.isServer,
		conn:     arg.conn,
		onMsg:    arg.onMsg,
		onClose:  arg.onClose,
		writeCh:  make(chan *udpDatagram, writeChanLimit),
		closeCh:  make(chan struct{}),
	}
	return sock
}

// start runs the loops. Callers assign the socket to its owner first,
// since onMsg may fire before start returns.
func (sock *UDPSocket) start(ctx context.Context) {
	sock.wg.Add(2)
	go sock.readLoop(ctx)
	go sock.writeLoop(ctx)
}

func (sock *UDPSocket) readLoop(ctx context.Context) {
	defer sock.wg.Done(ctx)

	// onClose在Done之前执行, Wait返回时回调已完成
	defer func() {
		err := sock.getErr()
		if err != nil {
			xlog.Get(ctx).Warn("Read loop exit with error", zap.Error(err))
		}
		sock.forceClose(ctx)
		if sock.onClose != nil {
			sock.onClose(ctx, err)
		}
	}()

	for {
		bytes := make([]byte, readBufferSize)
		n, addr, err := sock.conn.ReadFromUDP(bytes)
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				sock.setErr(err)
			}
			break
		}
		sock.onMsg(ctx, bytes[0:n], addr)
	}
}

func (sock *UDPSocket) writeLoop(ctx context.Context) {
	defer func() {
		_ = sock.conn.Close()
	}()

	defer sock.wg.Done(ctx)

	closed := false

loop:
	for {
		var datagram *udpDatagram
		if !closed {
			select {
			case datagram = <-sock.writeCh:
			case <-sock.closeCh:
				closed = true
				continue loop
			}
		} else {
			// 关闭状态, 非阻塞发送剩余数据(如Disconnect)
			select {
			case datagram = <-sock.writeCh:
			default:
			}
		}
		if datagram == nil {
			break
		}

		var err error
		if sock.isServer {
			_, err = sock.conn.WriteToUDP(datagram.msg, datagram.addr)
		} else {
			_, err = sock.conn.Write(datagram.msg)
		}
		if err != nil {
			if !closed {
				sock.abort(ctx, errors.Wrap(err, "udp write"))
			}
			break
		}
	}
}

func (sock *UDPSocket) setErr(err error) {
	sock.errMu.Lock()
	defer sock.errMu.Unlock()
	if sock.err == nil {
		sock.err = err
	}
}

func (sock *UDPSocket) getErr() error {
	sock.errMu.Lock()
	defer sock.errMu.Unlock()
	return sock.err
}

// abort records err as the close reason and starts closing.
func (sock *UDPSocket) abort(ctx context.Context, err error) {
	sock.setErr(err)
	sock.forceClose(ctx)
}

func (sock *UDPSocket) close(ctx context.Context) {
	sock.forceClose(ctx)
	sock.wg.Wait()
}

func (sock *UDPSocket) forceClose(ctx context.Context) {
	sock.closeOnce.Do(func() {
		close(sock.closeCh)
	})
}

func (sock *UDPSocket) sendMsg(ctx context.Context, datagram *udpDatagram) error {
	select {
	case <-sock.closeCh:
		return ErrSockClosed
	default:
	}
	select {
	case sock.writeCh <- datagram:
		return nil
	case <-sock.closeCh:
		return ErrSockClosed
	default:
		return ErrMsgOverflow
	}
}
