package xnet

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"udpdelay/pkg/xcommon"
	"udpdelay/pkg/xlog"
)

type UDPSvrArgs struct {
	Addr         string
	IdleTimeout  time.Duration // 0: sessions never expire
	OnMsg        OnMsg
	OnConnect    OnConnect
	OnDisconnect OnDisconnect
}

type UDPServer struct {
	onMsg        OnMsg
	onConnect    OnConnect
	onDisconnect OnDisconnect
	idleTimeout  time.Duration

	sock *UDPSocket

	mu       sync.Mutex
	sessions map[string]*UDPSession

	closeOnce sync.Once
	closeCh   chan struct{}
	wg        xcommon.WaitGroup
}

func NewUDPServer(ctx context.Context, arg UDPSvrArgs) (*UDPServer, error) {
	udpAddr, err := net.ResolveUDPAddr(udpNetwork, arg.Addr)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve %s", arg.Addr)
	}
	conn, err := net.ListenUDP(udpNetwork, udpAddr)
	if err != nil {
		return nil, errors.Wrapf(err, "listen %s", arg.Addr)
	}
	svr := &UDPServer{
		onMsg:        arg.OnMsg,
		onConnect:    arg.OnConnect,
		onDisconnect: arg.OnDisconnect,
		idleTimeout:  arg.IdleTimeout,
		sessions:     make(map[string]*UDPSession),
		closeCh:      make(chan struct{}),
	}

	svr.sock = NewUDPSocket(ctx, UDPSocketArgs{isServer: true, conn: conn, onMsg: svr.udpOnMsg})
	svr.sock.start(ctx)

	if svr.idleTimeout > 0 {
		svr.wg.Add(1)
		go svr.checkLoop(ctx)
	}
	return svr, nil
}

func (svr *UDPServer) checkLoop(ctx context.Context) {
	defer svr.wg.Done(ctx)

	ticker := time.NewTicker(checkDuration(svr.idleTimeout))
	defer ticker.Stop()

loop:
	for {
		select {
		case <-ticker.C:
		case <-svr.closeCh:
			break loop
		}
		deadline := time.Now().Add(-svr.idleTimeout).UnixNano()
		expires := make([]*UDPSession, 0)

		svr.mu.Lock()
		for _, session := range svr.sessions {
			if session.getActiveAt() < deadline {
				expires = append(expires, session)
			}
		}
		svr.mu.Unlock()

		for _, session := range expires {
			xlog.Get(ctx).Warn("UDP session timeout", xlog.Remote(session.RemoteAddr()))
			session.closeWait(ctx)
		}
	}
}

func (svr *UDPServer) udpOnMsg(ctx context.Context, msg []byte, addr *net.UDPAddr) {
	id := addr.String()
	now := time.Now().UnixNano()

	svr.mu.Lock()
	session := svr.sessions[id]
	if session == nil {
		select {
		case <-svr.closeCh:
			svr.mu.Unlock()
			return
		default:
		}
		session = NewUDPSession(ctx, UDPSessionArgs{
			addr:         addr,
			onMsg:        svr.onMsg,
			onConnect:    svr.onConnect,
			onDisconnect: svr.onDisconnect,
			sendMsg:      svr.sock.sendMsg,
			release:      svr.delSession,
			now:          now,
		})
		svr.sessions[id] = session
	}
	svr.mu.Unlock()

	if err := session.recvMsg(msg, now); err != nil {
		xlog.Get(ctx).Warn("UDP session recv msg failed.", xlog.Remote(addr), zap.Error(err))
	}
}

func (svr *UDPServer) delSession(session *UDPSession) {
	id := session.addr.String()
	svr.mu.Lock()
	defer svr.mu.Unlock()
	if svr.sessions[id] == session {
		delete(svr.sessions, id)
	}
}

func (svr *UDPServer) SessionCount() int {
	svr.mu.Lock()
	defer svr.mu.Unlock()
	return len(svr.sessions)
}

func (svr *UDPServer) LocalAddr() net.Addr {
	return svr.sock.conn.LocalAddr()
}

// Close ends every session (running their OnDisconnect), flushes what
// they queued and closes the socket.
func (svr *UDPServer) Close(ctx context.Context) {
	svr.closeOnce.Do(func() {
		close(svr.closeCh)
	})
	svr.wg.Wait()

	svr.mu.Lock()
	sessions := make([]*UDPSession, 0, len(svr.sessions))
	for _, session := range svr.sessions {
		sessions = append(sessions, session)
	}
	svr.mu.Unlock()

	for _, session := range sessions {
		session.closeWait(ctx)
	}
	svr.sock.close(ctx)
}
