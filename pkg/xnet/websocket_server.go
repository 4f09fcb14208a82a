package xnet

import (
	"context"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"udpdelay/pkg/xcommon"
	"udpdelay/pkg/xlog"
)

type WSSvrArgs struct {
	Addr         string
	Path         string
	OnMsg        OnMsg
	OnConnect    OnConnect
	OnDisconnect OnDisconnect
}

type WSServer struct {
	upgrader *websocket.Upgrader
	httpSrv  *http.Server
	listener net.Listener
	wg       xcommon.WaitGroup

	mu      sync.Mutex
	sockets map[*Websocket]bool // 所有的active连接
}

func NewWSServer(ctx context.Context, arg WSSvrArgs) (*WSServer, error) {
	ln, err := net.Listen("tcp", arg.Addr)
	if err != nil {
		return nil, errors.Wrapf(err, "listen %s", arg.Addr)
	}
	svr := &WSServer{
		upgrader: &websocket.Upgrader{},
		listener: ln,
		sockets:  make(map[*Websocket]bool),
	}
	onMsg := arg.OnMsg
	if onMsg == nil {
		onMsg = func(ctx context.Context, state interface{}, msg []byte) error { return nil }
	}
	onConnect := arg.OnConnect
	if onConnect == nil {
		onConnect = func(ctx context.Context, sock Socket) interface{} { return sock }
	}
	onDisconnect := arg.OnDisconnect
	if onDisconnect == nil {
		onDisconnect = func(ctx context.Context, state interface{}) {}
	}

	mux := http.NewServeMux()
	mux.Handle(arg.Path, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		conn, err := svr.upgrader.Upgrade(w, r, nil)
		if err != nil {
			// upgrader已回复http错误
			xlog.Get(ctx).Warn("Upgrade connection failed", zap.Error(err))
			return
		}

		sock := NewWebsocket(ctx, WebsocketArgs{
			conn:         conn,
			onMsg:        onMsg,
			onConnect:    onConnect,
			onDisconnect: onDisconnect,
		})
		svr.addSocket(sock)
		sock.WaitUntilClose(ctx)
		svr.delSocket(sock)
	}))

	svr.httpSrv = &http.Server{
		Handler: mux,
		BaseContext: func(net.Listener) context.Context {
			// 把传入的context作为每个request的基础context
			return ctx
		},
	}

	svr.wg.Add(1)
	go svr.serve(ctx)
	return svr, nil
}

func (svr *WSServer) serve(ctx context.Context) {
	defer svr.wg.Done(ctx)
	if err := svr.httpSrv.Serve(svr.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		xlog.Get(ctx).Error("Websocket server exit with error", zap.Error(err))
	}
}

func (svr *WSServer) Addr() net.Addr {
	return svr.listener.Addr()
}

// Broadcast queues msg on every connected socket.
func (svr *WSServer) Broadcast(ctx context.Context, msg []byte) int {
	svr.mu.Lock()
	defer svr.mu.Unlock()
	sent := 0
	for sock := range svr.sockets {
		if err := sock.SendMsg(ctx, msg); err != nil {
			xlog.Get(ctx).Debug("Broadcast skip socket", xlog.Remote(sock.RemoteAddr()), zap.Error(err))
			continue
		}
		sent++
	}
	return sent
}

func (svr *WSServer) SocketCount() int {
	svr.mu.Lock()
	defer svr.mu.Unlock()
	return len(svr.sockets)
}

func (svr *WSServer) Close(ctx context.Context) {
	svr.mu.Lock()
	sockets := make([]*Websocket, 0, len(svr.sockets))
	for sock := range svr.sockets {
		sockets = append(sockets, sock)
	}
	svr.mu.Unlock()

	for _, sock := range sockets {
		sock.Close(ctx)
	}
	_ = svr.httpSrv.Close()
	svr.wg.Wait()
}

func (svr *WSServer) addSocket(sock *Websocket) {
	svr.mu.Lock()
	defer svr.mu.Unlock()
	svr.sockets[sock] = true
}

func (svr *WSServer) delSocket(sock *Websocket) {
	svr.mu.Lock()
	defer svr.mu.Unlock()
	delete(svr.sockets, sock)
}
