package xsession

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"udpdelay/pkg/xlog"
	"udpdelay/pkg/xnet"
	"udpdelay/pkg/xproto"
)

var (
	ErrHandshakeRejected = errors.New("handshake rejected")
	ErrServerDisconnect  = errors.New("server disconnect")
	ErrSessionUsed       = errors.New("session already started")
	ErrNotConnected      = errors.New("session not connected")
	ErrTransportClosed   = errors.New("transport closed")
)

const DefaultProbeInterval = 1 * time.Second

// Transport is the single UDP association a Session talks through.
// SendMsg must not block on the network. Close releases the association,
// must make a pending receive return, and must not wait for the receive
// callback (it may be called from inside it).
type Transport interface {
	SendMsg(ctx context.Context, msg []byte) error
	Close(ctx context.Context)
}

type SessionArgs struct {
	Name          string
	ProbeInterval time.Duration // 0: DefaultProbeInterval
	Clock         Clock         // nil: MonotonicWallClock

	// Hooks run outside the session lock, on the receive or ticker goroutine.
	// They must not call Wait.
	OnConnect    func(ctx context.Context, clientID uint32)
	OnProbe      func(ctx context.Context, probe xproto.DelayProbe)
	OnDelay      func(ctx context.Context, result xproto.DelayResult)
	OnDisconnect func(ctx context.Context, err error) // err nil: local Disconnect
}

// Session is one logical client-to-peer association:
// Disconnected => Connecting => Connected => Disconnected.
// A Session runs once; retry with a new Session.
type Session struct {
	name     string
	interval time.Duration
	clock    Clock
	args     SessionArgs

	mu        sync.Mutex
	state     State
	started   bool
	clientID  uint32
	assigned  bool
	nextSeq   uint32
	transport Transport
	waiter    func()
	sched     *probeScheduler
	err       error

	doneCh chan struct{}
}

func NewSession(args SessionArgs) *Session {
	s := &Session{
		name:     args.Name,
		interval: args.ProbeInterval,
		clock:    args.Clock,
		args:     args,
		state:    Disconnected,
		doneCh:   make(chan struct{}),
	}
	if s.interval <= 0 {
		s.interval = DefaultProbeInterval
	}
	if s.clock == nil {
		s.clock = MonotonicWallClock
	}
	return s
}

// Start sends the InitRequest through tr and moves to Connecting.
func (s *Session) Start(ctx context.Context, tr Transport) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrSessionUsed
	}
	s.started = true
	s.transport = tr
	if w, ok := tr.(interface{ Wait() }); ok {
		s.waiter = w.Wait
	}
	s.state = Connecting

	if err := s.send(ctx, xproto.InitRequest{Name: s.name}); err != nil {
		err = errors.Wrap(err, "send init request")
		tr, sched := s.endLocked(err)
		s.mu.Unlock()
		s.release(ctx, tr, sched, err)
		return err
	}
	s.mu.Unlock()

	xlog.Get(ctx).Debug("Init request sent", zap.String("name", s.name))
	return nil
}

// OnMsg handles one inbound datagram. Malformed datagrams are dropped.
func (s *Session) OnMsg(ctx context.Context, msg []byte) {
	p, err := xproto.Decode(msg)
	if err != nil {
		xlog.Get(ctx).Debug("Drop datagram", zap.Int("len", len(msg)), zap.Error(err))
		return
	}
	s.handlePacket(ctx, p)
}

func (s *Session) handlePacket(ctx context.Context, p xproto.Packet) {
	switch v := p.(type) {
	case xproto.InitResponse:
		s.onInitResponse(ctx, v)
	case xproto.DelayProbe:
		s.onDelayProbe(ctx, v)
	case xproto.ServerDisconnect:
		s.onServerDisconnect(ctx)
	default:
		xlog.Get(ctx).Debug("Ignore packet", zap.Stringer("type", p.Type()))
	}
}

func (s *Session) onInitResponse(ctx context.Context, p xproto.InitResponse) {
	s.mu.Lock()
	if s.state != Connecting {
		s.mu.Unlock()
		xlog.Get(ctx).Debug("Ignore init response", zap.Stringer("state", s.State()))
		return
	}

	if !p.OK() {
		reason := errors.Wrapf(ErrHandshakeRejected, "result %d", p.Result)
		tr, sched := s.endLocked(reason)
		s.mu.Unlock()
		xlog.Get(ctx).Warn("Init refused", zap.Uint8("result", p.Result))
		s.release(ctx, tr, sched, reason)
		return
	}

	s.clientID = p.ClientID
	s.assigned = true
	s.state = Connected
	if err := s.send(ctx, xproto.InitAck{ClientID: p.ClientID}); err != nil {
		s.failLocked(ctx, errors.Wrap(err, "send init ack"))
		return
	}
	s.sched = newProbeScheduler(s.interval, s.Probe)
	s.sched.start(xlog.NewContext(ctx, xlog.ClientID(p.ClientID)))
	s.mu.Unlock()

	xlog.Get(ctx).Info("Connected", xlog.ClientID(p.ClientID))
	if s.args.OnConnect != nil {
		s.args.OnConnect(ctx, p.ClientID)
	}
}

// onDelayProbe accepts echoes whose server stamps are still zero: the delay
// only depends on the client's own send stamp.
func (s *Session) onDelayProbe(ctx context.Context, p xproto.DelayProbe) {
	s.mu.Lock()
	if s.state != Connected || p.ClientID != s.clientID || p.SeqNum >= s.nextSeq {
		s.mu.Unlock()
		xlog.Get(ctx).Debug("Ignore probe echo", xlog.ClientID(p.ClientID), xlog.Seq(p.SeqNum))
		return
	}

	now := s.clock()
	var delay uint64
	if now > p.TimeClientSend {
		delay = now - p.TimeClientSend
	}
	result := xproto.DelayResult{ClientID: s.clientID, SeqNum: p.SeqNum, DelayNanos: delay}
	if err := s.send(ctx, result); err != nil {
		s.failLocked(ctx, errors.Wrap(err, "send delay result"))
		return
	}
	s.mu.Unlock()

	xlog.Get(ctx).Debug("Delay measured", xlog.Seq(p.SeqNum), zap.Duration("delay", time.Duration(delay)))
	if s.args.OnDelay != nil {
		s.args.OnDelay(ctx, result)
	}
}

func (s *Session) onServerDisconnect(ctx context.Context) {
	s.mu.Lock()
	if s.state != Connected {
		s.mu.Unlock()
		return
	}
	tr, sched := s.endLocked(ErrServerDisconnect)
	s.mu.Unlock()

	xlog.Get(ctx).Info("Server disconnect")
	s.release(ctx, tr, sched, ErrServerDisconnect)
}

// Probe emits the next DelayProbe. The ticker calls it once per interval.
func (s *Session) Probe(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Connected {
		s.mu.Unlock()
		return ErrNotConnected
	}
	probe := xproto.DelayProbe{
		ClientID:       s.clientID,
		SeqNum:         s.nextSeq,
		TimeClientSend: s.clock(),
	}
	s.nextSeq++
	if err := s.send(ctx, probe); err != nil {
		err = errors.Wrap(err, "send probe")
		s.failLocked(ctx, err)
		return err
	}
	s.mu.Unlock()

	if s.args.OnProbe != nil {
		s.args.OnProbe(ctx, probe)
	}
	return nil
}

// Disconnect sends a best-effort Disconnect and releases the transport.
// Calling it on a finished session does nothing.
func (s *Session) Disconnect(ctx context.Context) {
	s.mu.Lock()
	if !s.started {
		s.started = true
		close(s.doneCh)
		s.mu.Unlock()
		return
	}
	if s.state == Disconnected {
		s.mu.Unlock()
		return
	}
	if err := s.send(ctx, xproto.Disconnect{}); err != nil {
		xlog.Get(ctx).Debug("Send disconnect failed", zap.Error(err))
	}
	tr, sched := s.endLocked(nil)
	s.mu.Unlock()

	s.release(ctx, tr, sched, nil)
}

// OnTransportError ends the session after a send/receive failure.
// A nil err means the transport closed underneath the session.
func (s *Session) OnTransportError(ctx context.Context, err error) {
	s.mu.Lock()
	if s.state == Disconnected {
		s.mu.Unlock()
		return
	}
	if err == nil {
		err = ErrTransportClosed
	}
	s.failLocked(ctx, errors.Wrap(err, "transport"))
}

// failLocked ends the session with a transport failure and unlocks.
func (s *Session) failLocked(ctx context.Context, err error) {
	tr, sched := s.endLocked(err)
	s.mu.Unlock()
	xlog.Get(ctx).Warn("Session failed", zap.Error(err))
	s.release(ctx, tr, sched, err)
}

// send must hold mu. A full write queue drops the packet like the network would.
func (s *Session) send(ctx context.Context, p xproto.Packet) error {
	err := s.transport.SendMsg(ctx, xproto.Encode(p))
	if errors.Is(err, xnet.ErrMsgOverflow) {
		xlog.Get(ctx).Warn("Packet dropped", zap.Stringer("type", p.Type()), zap.Error(err))
		return nil
	}
	return err
}

// endLocked moves to Disconnected; after it no probe can be emitted.
func (s *Session) endLocked(reason error) (Transport, *probeScheduler) {
	s.state = Disconnected
	s.err = reason
	tr := s.transport
	s.transport = nil
	return tr, s.sched
}

func (s *Session) release(ctx context.Context, tr Transport, sched *probeScheduler, reason error) {
	if sched != nil {
		sched.stop()
	}
	if tr != nil {
		tr.Close(ctx)
	}
	close(s.doneCh)
	if s.args.OnDisconnect != nil {
		s.args.OnDisconnect(ctx, reason)
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ClientID is valid only once the handshake completed.
func (s *Session) ClientID() (uint32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clientID, s.assigned
}

func (s *Session) NextSeqNum() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextSeq
}

// Done is closed when the session has ended.
func (s *Session) Done() <-chan struct{} {
	return s.doneCh
}

// Err is why the session ended: nil for a local Disconnect.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Wait blocks until the session ended and its goroutines exited.
func (s *Session) Wait() {
	<-s.doneCh
	s.mu.Lock()
	sched, waiter := s.sched, s.waiter
	s.mu.Unlock()
	if sched != nil {
		sched.wait()
	}
	if waiter != nil {
		waiter()
	}
}
