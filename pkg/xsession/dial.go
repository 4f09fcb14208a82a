package xsession

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"udpdelay/pkg/xlog"
	"udpdelay/pkg/xnet"
)

// Dial opens the UDP association described by cfg and starts a session on it.
// cfg.ClientName and cfg.ProbeInterval override the matching args fields.
func Dial(ctx context.Context, cfg Config, args SessionArgs) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	args.Name = cfg.ClientName
	args.ProbeInterval = cfg.ProbeInterval()
	sess := NewSession(args)

	cli, err := xnet.NewUDPClient(ctx, xnet.UDPCliArgs{
		Addr:        cfg.RemoteAddr(),
		LocalAddr:   cfg.LocalAddr(),
		IdleTimeout: cfg.IdleTimeout(),
		OnMsg:       sess.OnMsg,
		OnClose:     sess.OnTransportError,
	})
	if err != nil {
		return nil, err
	}

	ctx = xlog.NewContext(ctx, xlog.Remote(cli.RemoteAddr()))
	xlog.Get(ctx).Info("Dial", zap.Stringer("local", cli.LocalAddr()))
	if err := sess.Start(ctx, cli); err != nil {
		cli.Wait()
		return nil, errors.Wrap(err, "start session")
	}
	return sess, nil
}
