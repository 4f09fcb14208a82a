package xnet

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"udpdelay/pkg/xcommon"
	"udpdelay/pkg/xlog"
)

type WebsocketArgs struct {
	conn         *websocket.Conn
	onMsg        OnMsg
	onConnect    OnConnect
	onDisconnect OnDisconnect
}

type Websocket struct {
	conn         *websocket.Conn
	onMsg        OnMsg
	onConnect    OnConnect
	onDisconnect OnDisconnect

	writeCh chan []byte // 写channel

	closeOnce sync.Once
	closeCh   chan struct{}
	wg        xcommon.WaitGroup
}

func NewWebsocket(ctx context.Context, arg WebsocketArgs) *Websocket {
	sock := &Websocket{
		conn:         arg.conn,
		onMsg:        arg.onMsg,
		onConnect:    arg.onConnect,
		onDisconnect: arg.onDisconnect,
		writeCh:      make(chan []byte, writeChanLimit),
		closeCh:      make(chan struct{}),
	}
	sock.conn.SetReadLimit(maxMessageSize)
	sock.conn.SetPongHandler(func(string) error {
		return sock.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	sock.wg.Add(2)
	go sock.readLoop(ctx)
	go sock.writeLoop(ctx)
	return sock
}

func (sock *Websocket) readLoop(ctx context.Context) {
	defer sock.wg.Done(ctx)

	var readErr error
	defer func() {
		if readErr != nil {
			xlog.Get(ctx).Warn("Read loop exit with error.", zap.Error(readErr))
		}
		sock.forceClose()
	}()

	state := sock.onConnect(ctx, sock)
	defer func() {
		sock.onDisconnect(ctx, state)
	}()

	for {
		if err := sock.conn.SetReadDeadline(time.Now().Add(wsPongWait)); err != nil {
			readErr = err
			break
		}

		_, message, err := sock.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && !errors.Is(err, net.ErrClosed) {
				readErr = err
			}
			break
		}
		if err := sock.onMsg(ctx, state, message); err != nil {
			readErr = err
			break
		}
	}
}

func (sock *Websocket) writeLoop(ctx context.Context) {
	defer sock.wg.Done(ctx)

	var writeErr error
	defer func() {
		if writeErr != nil {
			xlog.Get(ctx).Warn("Write loop exit with error.", zap.Error(writeErr))
		}
		_ = sock.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(wsWriteTimeout))
		_ = sock.conn.Close()
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	closed := false

loop:
	for {
		var msg []byte
		if !closed {
			select {
			case msg = <-sock.writeCh:
			case <-ticker.C:
				if err := sock.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
					writeErr = err
					break loop
				}
				continue loop
			case <-sock.closeCh:
				closed = true
				continue loop
			}
		} else {
			// closed状态,非阻塞获取数据,将待发送数据全部发送
			select {
			case msg = <-sock.writeCh:
			default:
			}
		}
		if msg == nil {
			break
		}

		if err := sock.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
			writeErr = err
			break
		}
		if err := sock.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			writeErr = err
			break
		}
	}
	sock.forceClose()
}

func (sock *Websocket) Close(ctx context.Context) {
	sock.forceClose()
	sock.wg.Wait()
}

func (sock *Websocket) forceClose() {
	sock.closeOnce.Do(func() {
		close(sock.closeCh)
	})
}

func (sock *Websocket) WaitUntilClose(ctx context.Context) {
	sock.wg.Wait()
}

func (sock *Websocket) SendMsg(ctx context.Context, msg []byte) error {
	select {
	case sock.writeCh <- msg:
		return nil
	case <-sock.closeCh:
		return ErrSockClosed
	default:
		return ErrMsgOverflow
	}
}

func (sock *Websocket) RemoteAddr() net.Addr {
	return sock.conn.RemoteAddr()
}
