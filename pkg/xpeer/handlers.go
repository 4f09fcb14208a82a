package xpeer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"udpdelay/pkg/xlog"
	"udpdelay/pkg/xproto"
	"udpdelay/pkg/xstats"
)

// handlers: packet type => func
var handlers = make(map[xproto.PacketType]handleFunc)

// recvAt is the peer clock reading taken when the datagram was handed over.
type handleFunc func(ctx context.Context, p *Peer, c *client, pkt xproto.Packet, recvAt uint64)

func init() {
	register(xproto.TypeInitRequest, handleWarp(handleInitRequest))
	register(xproto.TypeInitAck, handleWarp(handleInitAck))
	register(xproto.TypeDelayProbe, handleWarp(handleDelayProbe))
	register(xproto.TypeDelayResult, handleWarp(handleDelayResult))
	register(xproto.TypeDisconnect, handleWarp(handleDisconnect))
}

// 非线程安全, init内调用
func register(t xproto.PacketType, fn handleFunc) {
	if _, ok := handlers[t]; ok {
		panic(fmt.Sprintf("packet type[%v] is repeated.", t))
	}
	handlers[t] = fn
}

// 函数包装: typed handler => handleFunc
func handleWarp[P xproto.Packet](fn func(ctx context.Context, p *Peer, c *client, pkt P, recvAt uint64)) handleFunc {
	return func(ctx context.Context, p *Peer, c *client, pkt xproto.Packet, recvAt uint64) {
		fn(ctx, p, c, pkt.(P), recvAt)
	}
}

func handleInitRequest(ctx context.Context, p *Peer, c *client, req xproto.InitRequest, recvAt uint64) {
	// 重复的InitRequest(InitResponse丢失)回同一个id
	if c.id != 0 {
		c.send(ctx, xproto.InitResponse{Result: resultOK, ClientID: c.id})
		return
	}

	id, ok := p.register(c)
	if !ok {
		xlog.Get(ctx).Warn("Registry full, refuse client", zap.String("name", req.Name))
		c.send(ctx, xproto.InitResponse{Result: resultFull})
		return
	}
	c.id = id
	c.name = req.Name
	c.stats = xstats.NewRecorder(fmt.Sprintf("%s#%d", req.Name, id))
	xlog.Get(ctx).Info("Client registered", xlog.ClientID(id), zap.String("name", req.Name))
	c.send(ctx, xproto.InitResponse{Result: resultOK, ClientID: id})
}

func handleInitAck(ctx context.Context, p *Peer, c *client, ack xproto.InitAck, recvAt uint64) {
	if !c.own(ctx, ack.ClientID, ack.Type()) || c.acked {
		return
	}
	c.acked = true
	xlog.Get(ctx).Info("Client confirmed", xlog.ClientID(c.id), zap.String("name", c.name))
}

func handleDelayProbe(ctx context.Context, p *Peer, c *client, probe xproto.DelayProbe, recvAt uint64) {
	if !c.own(ctx, probe.ClientID, probe.Type()) {
		return
	}
	c.stats.OnProbe(probe.SeqNum)
	probe.TimeServerRecv = recvAt
	probe.TimeServerSend = p.clock()
	c.send(ctx, probe)
}

func handleDelayResult(ctx context.Context, p *Peer, c *client, result xproto.DelayResult, recvAt uint64) {
	if !c.own(ctx, result.ClientID, result.Type()) {
		return
	}
	c.stats.OnDelay(result.SeqNum, time.Duration(result.DelayNanos))
	p.publish(ctx, c, result)
}

func handleDisconnect(ctx context.Context, p *Peer, c *client, _ xproto.Disconnect, recvAt uint64) {
	xlog.Get(ctx).Info("Client disconnect", xlog.ClientID(c.id))
	c.left = true
	c.sock.Close(ctx)
}
