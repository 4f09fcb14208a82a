package xnet

import (
	"context"
	"net"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"udpdelay/pkg/xcommon"
	"udpdelay/pkg/xlog"
)

type udpSendMsg func(ctx context.Context, datagram *udpDatagram) error

type UDPSessionArgs struct {
	addr         *net.UDPAddr
	onMsg        OnMsg
	onConnect    OnConnect
	onDisconnect OnDisconnect
	sendMsg      udpSendMsg
	release      func(session *UDPSession)
	now          int64
}

// UDPSession is the server side view of one remote address.
// Messages are handled one at a time on the session's own goroutine.
type UDPSession struct {
	addr         *net.UDPAddr
	onMsg        OnMsg
	onConnect    OnConnect
	onDisconnect OnDisconnect
	sendMsg      udpSendMsg
	release      func(session *UDPSession)
	activeAt     int64

	msgCh chan []byte

	closeCh   chan struct{}
	closeOnce sync.Once
	wg        xcommon.WaitGroup
}

func NewUDPSession(ctx context.Context, arg UDPSessionArgs) *UDPSession {
	session := &UDPSession{
		addr:         arg.addr,
		onMsg:        arg.onMsg,
		onConnect:    arg.onConnect,
		onDisconnect: arg.onDisconnect,
		sendMsg:      arg.sendMsg,
		release:      arg.release,
		activeAt:     arg.now,
		msgCh:        make(chan []byte, udpMsgChanLimit),
		closeCh:      make(chan struct{}),
	}
	session.wg.Add(1)
	go session.handlerLoop(xlog.NewContext(ctx, xlog.Remote(arg.addr)))
	return session
}

func (session *UDPSession) handlerLoop(ctx context.Context) {
	defer session.wg.Done(ctx)

	var handlerErr error
	defer func() {
		if handlerErr != nil {
			xlog.Get(ctx).Warn("Handler loop exit with error", zap.Error(handlerErr))
		}
		session.forceClose(ctx)
	}()

	state := session.onConnect(ctx, session)
	defer func() {
		session.onDisconnect(ctx, state)
	}()

loop:
	for {
		var msg []byte
		select {
		case msg = <-session.msgCh:
		case <-session.closeCh:
			break loop
		}

		if err := session.onMsg(ctx, state, msg); err != nil {
			handlerErr = err
			break
		}
	}
}

func (session *UDPSession) recvMsg(msg []byte, now int64) error {
	select {
	case <-session.closeCh:
		return ErrSockClosed
	default:
	}
	select {
	case session.msgCh <- msg:
		atomic.StoreInt64(&session.activeAt, now)
		return nil
	case <-session.closeCh:
		return ErrSockClosed
	default:
		return ErrMsgOverflow
	}
}

func (session *UDPSession) RemoteAddr() net.Addr {
	return session.addr
}

func (session *UDPSession) getActiveAt() int64 {
	return atomic.LoadInt64(&session.activeAt)
}

// Close ends the session without waiting; safe from inside OnMsg.
// A later datagram from the same address opens a new session.
func (session *UDPSession) Close(ctx context.Context) {
	session.forceClose(ctx)
}

func (session *UDPSession) closeWait(ctx context.Context) {
	session.forceClose(ctx)
	session.wg.Wait()
}

func (session *UDPSession) forceClose(ctx context.Context) {
	session.closeOnce.Do(func() {
		close(session.closeCh)
		if session.release != nil {
			session.release(session)
		}
	})
}

func (session *UDPSession) SendMsg(ctx context.Context, msg []byte) error {
	return session.sendMsg(ctx, &udpDatagram{msg: msg, addr: session.addr})
}
