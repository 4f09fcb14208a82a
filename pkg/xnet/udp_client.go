package xnet

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"udpdelay/pkg/xcommon"
	"udpdelay/pkg/xlog"
)

type UDPCliArgs struct {
	Addr        string        // remote host:port
	LocalAddr   string        // optional local bind, "addr:port", ":port" or "addr:0"
	IdleTimeout time.Duration // 0: disabled
	OnMsg       func(ctx context.Context, msg []byte)
	OnClose     func(ctx context.Context, err error) // err nil: closed locally
}

// UDPClient is a single connected UDP association.
type UDPClient struct {
	sock        *UDPSocket
	remote      *net.UDPAddr
	onMsg       func(ctx context.Context, msg []byte)
	idleTimeout time.Duration
	activeAt    int64 // unix nano

	closeOnce sync.Once
	closeCh   chan struct{}
	wg        xcommon.WaitGroup
}

func NewUDPClient(ctx context.Context, arg UDPCliArgs) (*UDPClient, error) {
	udpAddr, err := net.ResolveUDPAddr(udpNetwork, arg.Addr)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve remote %s", arg.Addr)
	}
	var localAddr *net.UDPAddr
	if arg.LocalAddr != "" {
		if localAddr, err = net.ResolveUDPAddr(udpNetwork, arg.LocalAddr); err != nil {
			return nil, errors.Wrapf(err, "resolve local %s", arg.LocalAddr)
		}
	}
	conn, err := net.DialUDP(udpNetwork, localAddr, udpAddr)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", arg.Addr)
	}

	cli := &UDPClient{
		remote:      udpAddr,
		onMsg:       arg.OnMsg,
		idleTimeout: arg.IdleTimeout,
		activeAt:    time.Now().UnixNano(),
		closeCh:     make(chan struct{}),
	}
	cli.sock = NewUDPSocket(ctx, UDPSocketArgs{
		isServer: false,
		conn:     conn,
		onMsg:    cli.udpOnMsg,
		onClose: func(ctx context.Context, err error) {
			cli.stopCheck()
			if arg.OnClose != nil {
				arg.OnClose(ctx, err)
			}
		},
	})
	cli.sock.start(ctx)

	if cli.idleTimeout > 0 {
		cli.wg.Add(1)
		go cli.checkLoop(ctx)
	}
	return cli, nil
}

func (cli *UDPClient) checkLoop(ctx context.Context) {
	defer cli.wg.Done(ctx)

	ticker := time.NewTicker(checkDuration(cli.idleTimeout))
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
		case <-cli.closeCh:
			return
		}

		idle := time.Duration(time.Now().UnixNano() - atomic.LoadInt64(&cli.activeAt))
		if idle > cli.idleTimeout {
			xlog.Get(ctx).Warn("UDP session timeout", xlog.Remote(cli.remote), zap.Duration("idle", idle))
			cli.sock.abort(ctx, errors.Wrapf(ErrIdleTimeout, "no datagram for %v", idle))
			return
		}
	}
}

func checkDuration(timeout time.Duration) time.Duration {
	if d := timeout / 4; d < udpCheckDuration {
		if d <= 0 {
			return time.Millisecond
		}
		return d
	}
	return udpCheckDuration
}

func (cli *UDPClient) udpOnMsg(ctx context.Context, msg []byte, addr *net.UDPAddr) {
	atomic.StoreInt64(&cli.activeAt, time.Now().UnixNano())
	if cli.onMsg != nil {
		cli.onMsg(ctx, msg)
	}
}

// SendMsg queues msg for the remote; it never waits for the network.
func (cli *UDPClient) SendMsg(ctx context.Context, msg []byte) error {
	return cli.sock.sendMsg(ctx, &udpDatagram{msg: msg, addr: cli.remote})
}

func (cli *UDPClient) RemoteAddr() net.Addr {
	return cli.remote
}

func (cli *UDPClient) LocalAddr() net.Addr {
	return cli.sock.conn.LocalAddr()
}

// Close releases the association without waiting: queued datagrams are
// flushed, then the conn is closed, which ends any pending read.
// Safe to call from OnMsg/OnClose.
func (cli *UDPClient) Close(ctx context.Context) {
	cli.sock.forceClose(ctx)
	cli.stopCheck()
}

// Wait blocks until all loops exited and OnClose returned.
func (cli *UDPClient) Wait() {
	cli.sock.wg.Wait()
	cli.wg.Wait()
}

func (cli *UDPClient) stopCheck() {
	cli.closeOnce.Do(func() {
		close(cli.closeCh)
	})
}
