package xpeer

import (
	"context"

	"go.uber.org/zap"

	"udpdelay/pkg/xlog"
	"udpdelay/pkg/xnet"
	"udpdelay/pkg/xproto"
	"udpdelay/pkg/xstats"
)

// client is the state of one remote address. Only its UDP session's
// handler goroutine touches it.
type client struct {
	sock  xnet.Socket
	id    uint32 // 0: not registered
	name  string
	acked bool
	left  bool // sent Disconnect itself
	stats *xstats.Recorder
}

func (c *client) send(ctx context.Context, p xproto.Packet) {
	if err := c.sock.SendMsg(ctx, xproto.Encode(p)); err != nil {
		xlog.Get(ctx).Warn("Send failed", zap.Stringer("type", p.Type()), zap.Error(err))
	}
}

// own reports whether a client-originated packet carries this client's id.
func (c *client) own(ctx context.Context, clientID uint32, t xproto.PacketType) bool {
	if c.id != 0 && c.id == clientID {
		return true
	}
	xlog.Get(ctx).Debug("Ignore packet", zap.Stringer("type", t), xlog.ClientID(clientID), zap.Uint32("registered", c.id))
	return false
}
