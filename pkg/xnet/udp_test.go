package xnet_test

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/pkg/errors"

	"udpdelay/pkg/xnet"
)

func newEchoServer(t *testing.T, ctx context.Context, idle time.Duration, disconnected chan<- string) *xnet.UDPServer {
	t.Helper()
	svr, err := xnet.NewUDPServer(ctx, xnet.UDPSvrArgs{
		Addr:        "127.0.0.1:0",
		IdleTimeout: idle,
		OnConnect: func(ctx context.Context, sock xnet.Socket) interface{} {
			return sock
		},
		OnDisconnect: func(ctx context.Context, state interface{}) {
			if disconnected != nil {
				disconnected <- state.(xnet.Socket).RemoteAddr().String()
			}
		},
		OnMsg: func(ctx context.Context, state interface{}, msg []byte) error {
			return state.(xnet.Socket).SendMsg(ctx, msg)
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return svr
}

func TestUDPEcho(t *testing.T) {
	ctx := context.Background()
	svr := newEchoServer(t, ctx, 0, nil)
	defer svr.Close(ctx)

	recvCh := make(chan string, 16)
	closeCh := make(chan error, 1)
	cli, err := xnet.NewUDPClient(ctx, xnet.UDPCliArgs{
		Addr:    svr.LocalAddr().String(),
		OnMsg:   func(ctx context.Context, msg []byte) { recvCh <- string(msg) },
		OnClose: func(ctx context.Context, err error) { closeCh <- err },
	})
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 5; i++ {
		want := fmt.Sprintf("cli data %v", i)
		if err := cli.SendMsg(ctx, []byte(want)); err != nil {
			t.Fatal(err)
		}
		select {
		case got := <-recvCh:
			if got != want {
				t.Fatalf("got %q want %q", got, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("no echo for %q", want)
		}
	}
	if svr.SessionCount() != 1 {
		t.Fatalf("sessions %d", svr.SessionCount())
	}

	cli.Close(ctx)
	cli.Wait()
	select {
	case err := <-closeCh:
		if err != nil {
			t.Fatalf("local close reported %v", err)
		}
	default:
		t.Fatal("OnClose not called before Wait returned")
	}
	if err := cli.SendMsg(ctx, []byte("late")); !errors.Is(err, xnet.ErrSockClosed) {
		t.Fatalf("send after close: %v", err)
	}
}

func TestUDPClientLocalBind(t *testing.T) {
	ctx := context.Background()
	svr := newEchoServer(t, ctx, 0, nil)
	defer svr.Close(ctx)

	cli, err := xnet.NewUDPClient(ctx, xnet.UDPCliArgs{
		Addr:      svr.LocalAddr().String(),
		LocalAddr: "127.0.0.1:0",
	})
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		cli.Close(ctx)
		cli.Wait()
	}()
	local := cli.LocalAddr().(*net.UDPAddr)
	if !local.IP.Equal(net.IPv4(127, 0, 0, 1)) || local.Port == 0 {
		t.Fatalf("local addr %v", local)
	}

	if _, err := xnet.NewUDPClient(ctx, xnet.UDPCliArgs{Addr: "127.0.0.1:1", LocalAddr: "not an addr"}); err == nil {
		t.Fatal("bad local address must fail")
	}
}

func TestUDPClientIdleTimeout(t *testing.T) {
	ctx := context.Background()
	// 没有对端, 收不到任何数据
	ln, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	closeCh := make(chan error, 1)
	cli, err := xnet.NewUDPClient(ctx, xnet.UDPCliArgs{
		Addr:        ln.LocalAddr().String(),
		IdleTimeout: 50 * time.Millisecond,
		OnClose:     func(ctx context.Context, err error) { closeCh <- err },
	})
	if err != nil {
		t.Fatal(err)
	}
	select {
	case err := <-closeCh:
		if !errors.Is(err, xnet.ErrIdleTimeout) {
			t.Fatalf("got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("idle timeout not reported")
	}
	cli.Wait()
}

func TestUDPServerIdleSession(t *testing.T) {
	ctx := context.Background()
	disconnected := make(chan string, 1)
	svr := newEchoServer(t, ctx, 50*time.Millisecond, disconnected)
	defer svr.Close(ctx)

	cli, err := xnet.NewUDPClient(ctx, xnet.UDPCliArgs{Addr: svr.LocalAddr().String()})
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		cli.Close(ctx)
		cli.Wait()
	}()
	if err := cli.SendMsg(ctx, []byte("hi")); err != nil {
		t.Fatal(err)
	}

	select {
	case addr := <-disconnected:
		if addr != cli.LocalAddr().String() {
			t.Fatalf("expired %s, client is %s", addr, cli.LocalAddr())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("idle session not expired")
	}
	if svr.SessionCount() != 0 {
		t.Fatalf("sessions %d", svr.SessionCount())
	}
}

func TestUDPServerStartUnderTraffic(t *testing.T) {
	ctx := context.Background()
	// 先占一个端口, 释放后对端已经在持续发包
	ln, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.LocalAddr().String()
	ln.Close()

	sender, err := net.Dial("udp", addr)
	if err != nil {
		t.Fatal(err)
	}
	defer sender.Close()
	stop := make(chan struct{})
	sent := make(chan struct{})
	go func() {
		defer close(sent)
		for {
			select {
			case <-stop:
				return
			default:
			}
			// 端口未监听时会收到ICMP错误, 忽略
			_, _ = sender.Write([]byte("early"))
		}
	}()
	defer func() {
		close(stop)
		<-sent
	}()

	for i := 0; i < 20; i++ {
		svr, err := xnet.NewUDPServer(ctx, xnet.UDPSvrArgs{
			Addr:         addr,
			OnConnect:    func(ctx context.Context, sock xnet.Socket) interface{} { return sock },
			OnDisconnect: func(ctx context.Context, state interface{}) {},
			OnMsg: func(ctx context.Context, state interface{}, msg []byte) error {
				return state.(xnet.Socket).SendMsg(ctx, msg)
			},
		})
		if err != nil {
			t.Fatal(err)
		}
		deadline := time.Now().Add(2 * time.Second)
		for svr.SessionCount() == 0 && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}
		if svr.SessionCount() == 0 {
			t.Fatalf("round %d: no session for flooding sender", i)
		}
		svr.Close(ctx)
	}
}
