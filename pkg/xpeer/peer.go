package xpeer

import (
	"context"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"udpdelay/pkg/xlog"
	"udpdelay/pkg/xnet"
	"udpdelay/pkg/xproto"
	"udpdelay/pkg/xsession"
	"udpdelay/pkg/xstats"
)

const (
	resultOK   uint8 = 0
	resultFull uint8 = 1
)

// Peer is the measuring side of the protocol: it hands out client ids,
// stamps and echoes probes, and collects the delays clients report back.
type Peer struct {
	clock      xsession.Clock
	maxClients int
	feedPath   string

	svr  *xnet.UDPServer
	feed *xnet.WSServer

	mu      sync.Mutex
	nextID  uint32
	clients map[uint32]*client
}

func NewPeer(ctx context.Context, conf Config) (*Peer, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	p := &Peer{
		clock:      xsession.MonotonicWallClock,
		maxClients: conf.MaxClients,
		feedPath:   conf.FeedPath,
		nextID:     1,
		clients:    make(map[uint32]*client),
	}

	if conf.FeedListen != "" {
		feed, err := xnet.NewWSServer(ctx, xnet.WSSvrArgs{Addr: conf.FeedListen, Path: conf.FeedPath})
		if err != nil {
			return nil, err
		}
		p.feed = feed
		xlog.Get(ctx).Info("Feed listening", zap.Stringer("addr", feed.Addr()), zap.String("path", conf.FeedPath))
	}

	svr, err := xnet.NewUDPServer(ctx, xnet.UDPSvrArgs{
		Addr:         conf.Listen,
		IdleTimeout:  conf.IdleTimeout(),
		OnConnect:    p.onConnect,
		OnMsg:        p.onMsg,
		OnDisconnect: p.onDisconnect,
	})
	if err != nil {
		if p.feed != nil {
			p.feed.Close(ctx)
		}
		return nil, err
	}
	p.svr = svr
	xlog.Get(ctx).Info("Peer listening", zap.Stringer("addr", svr.LocalAddr()), zap.Int("max_clients", conf.MaxClients))
	return p, nil
}

func (p *Peer) onConnect(ctx context.Context, sock xnet.Socket) interface{} {
	xlog.Get(ctx).Debug("New remote")
	return &client{sock: sock}
}

func (p *Peer) onMsg(ctx context.Context, state interface{}, msg []byte) error {
	recvAt := p.clock()
	c := state.(*client)

	pkt, err := xproto.Decode(msg)
	if err != nil {
		xlog.Get(ctx).Debug("Drop datagram", zap.Int("len", len(msg)), zap.Error(err))
		return nil
	}
	handler := handlers[pkt.Type()]
	if handler == nil {
		xlog.Get(ctx).Debug("Ignore packet", zap.Stringer("type", pkt.Type()))
		return nil
	}
	handler(ctx, p, c, pkt, recvAt)
	return nil
}

// register assigns the next client id, false when the registry is full.
func (p *Peer) register(c *client) (uint32, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.clients) >= p.maxClients {
		return 0, false
	}
	id := p.nextID
	p.nextID++
	if p.nextID == 0 {
		p.nextID = 1
	}
	p.clients[id] = c
	return id, true
}

func (p *Peer) publish(ctx context.Context, c *client, result xproto.DelayResult) {
	xlog.Get(ctx).Debug("Delay reported", xlog.ClientID(c.id), xlog.Seq(result.SeqNum), zap.Duration("delay", time.Duration(result.DelayNanos)))
	if p.feed == nil {
		return
	}
	m := Measurement{ClientID: c.id, Name: c.name, Seq: result.SeqNum, DelayNs: result.DelayNanos, At: time.Now()}
	p.feed.Broadcast(ctx, m.Marshal())
}

// onDisconnect runs when the remote's UDP session ends: on Disconnect,
// on idle expiry and on Close. Only the last two notify the client.
func (p *Peer) onDisconnect(ctx context.Context, state interface{}) {
	c := state.(*client)
	if c.id == 0 {
		return
	}
	p.mu.Lock()
	delete(p.clients, c.id)
	p.mu.Unlock()

	if !c.left {
		xlog.Get(ctx).Info("Drop client", xlog.ClientID(c.id))
		c.send(ctx, xproto.ServerDisconnect{})
	}
	xstats.Print(ctx, c.stats.Summary())
}

func (p *Peer) ClientCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.clients)
}

func (p *Peer) Addr() net.Addr {
	return p.svr.LocalAddr()
}

// FeedAddr is nil when the feed is disabled.
func (p *Peer) FeedAddr() net.Addr {
	if p.feed == nil {
		return nil
	}
	return p.feed.Addr()
}

func (p *Peer) FeedPath() string {
	return p.feedPath
}

func (p *Peer) FeedSubscribers() int {
	if p.feed == nil {
		return 0
	}
	return p.feed.SocketCount()
}

// Close sends ServerDisconnect to every client and stops listening.
func (p *Peer) Close(ctx context.Context) {
	p.svr.Close(ctx)
	if p.feed != nil {
		p.feed.Close(ctx)
	}
}
