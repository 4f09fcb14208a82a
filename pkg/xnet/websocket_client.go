package xnet

import (
	"context"
	"net"
	"net/url"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

type WSCliArgs struct {
	Addr         string
	Path         string
	OnMsg        OnMsg
	OnConnect    OnConnect
	OnDisconnect OnDisconnect
}

type WSClient struct {
	sock *Websocket
}

func NewWSClient(ctx context.Context, arg WSCliArgs) (*WSClient, error) {
	u := url.URL{Scheme: "ws", Host: arg.Addr, Path: arg.Path}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", u.String())
	}
	onMsg := arg.OnMsg
	if onMsg == nil {
		onMsg = func(ctx context.Context, state interface{}, msg []byte) error { return nil }
	}
	onConnect := arg.OnConnect
	if onConnect == nil {
		onConnect = func(ctx context.Context, sock Socket) interface{} { return nil }
	}
	onDisconnect := arg.OnDisconnect
	if onDisconnect == nil {
		onDisconnect = func(ctx context.Context, state interface{}) {}
	}
	sock := NewWebsocket(ctx, WebsocketArgs{
		conn:         conn,
		onMsg:        onMsg,
		onConnect:    onConnect,
		onDisconnect: onDisconnect,
	})
	return &WSClient{sock: sock}, nil
}

func (cli *WSClient) Close(ctx context.Context) {
	cli.sock.Close(ctx)
}

// Done is closed once the connection is gone.
func (cli *WSClient) Done() <-chan struct{} {
	return cli.sock.closeCh
}

func (cli *WSClient) Wait(ctx context.Context) {
	cli.sock.WaitUntilClose(ctx)
}

func (cli *WSClient) SendMsg(ctx context.Context, msg []byte) error {
	return cli.sock.SendMsg(ctx, msg)
}

func (cli *WSClient) RemoteAddr() net.Addr {
	return cli.sock.RemoteAddr()
}
