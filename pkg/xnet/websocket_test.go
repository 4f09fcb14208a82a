package xnet_test

import (
	"context"
	"testing"
	"time"

	"udpdelay/pkg/xnet"
)

func TestWebsocketBroadcast(t *testing.T) {
	ctx := context.Background()
	connected := make(chan struct{}, 1)
	svr, err := xnet.NewWSServer(ctx, xnet.WSSvrArgs{
		Addr: "127.0.0.1:0",
		Path: "/feed",
		OnConnect: func(ctx context.Context, sock xnet.Socket) interface{} {
			connected <- struct{}{}
			return sock
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	defer svr.Close(ctx)

	recvCh := make(chan string, 4)
	cli, err := xnet.NewWSClient(ctx, xnet.WSCliArgs{
		Addr: svr.Addr().String(),
		Path: "/feed",
		OnMsg: func(ctx context.Context, state interface{}, msg []byte) error {
			recvCh <- string(msg)
			return nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	defer cli.Close(ctx)

	select {
	case <-connected:
	case <-time.After(2 * time.Second):
		t.Fatal("server never saw the client")
	}
	// OnConnect在addSocket之前执行, 等待注册完成
	deadline := time.Now().Add(2 * time.Second)
	for svr.SocketCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if n := svr.Broadcast(ctx, []byte(`{"seq":1}`)); n != 1 {
		t.Fatalf("broadcast reached %d sockets", n)
	}
	select {
	case got := <-recvCh:
		if got != `{"seq":1}` {
			t.Fatalf("got %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast not received")
	}

	svr.Close(ctx)
	select {
	case <-cli.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("client not closed after server shutdown")
	}
}
