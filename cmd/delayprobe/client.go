package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"udpdelay/pkg/xcommon"
	"udpdelay/pkg/xenv"
	"udpdelay/pkg/xlog"
	"udpdelay/pkg/xproto"
	"udpdelay/pkg/xsession"
	"udpdelay/pkg/xstats"
)

var clientFlags struct {
	port         int
	localAddress string
	localPort    int
	name         string
	interval     float64
	idleTimeout  float64
}

var clientCmd = &cobra.Command{
	Use:   "client [host]",
	Short: "Connect to a peer and probe it until interrupted",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		conf := xsession.DefaultConfig()
		if err := xenv.Load(&conf, cfgFile); err != nil {
			return err
		}
		if len(args) == 1 {
			conf.RemoteHost = args[0]
		}
		flags := cmd.Flags()
		if flags.Changed("port") {
			conf.RemotePort = clientFlags.port
		}
		if flags.Changed("local-address") {
			conf.LocalAddress = clientFlags.localAddress
		}
		if flags.Changed("local-port") {
			conf.LocalPort = clientFlags.localPort
		}
		if flags.Changed("name") {
			conf.ClientName = clientFlags.name
		}
		if flags.Changed("interval") {
			conf.ProbeIntervalSeconds = clientFlags.interval
		}
		if flags.Changed("idle-timeout") {
			conf.IdleTimeoutSeconds = clientFlags.idleTimeout
		}
		return runClient(cmd.Context(), conf)
	},
}

func init() {
	flags := clientCmd.Flags()
	flags.IntVar(&clientFlags.port, "port", 5050, "peer UDP port")
	flags.StringVar(&clientFlags.localAddress, "local-address", "", "bind source interface")
	flags.IntVar(&clientFlags.localPort, "local-port", 0, "bind source port")
	flags.StringVar(&clientFlags.name, "name", "Go_Client", "client name, at most 10 bytes are sent")
	flags.Float64Var(&clientFlags.interval, "interval", 1, "probe interval in seconds")
	flags.Float64Var(&clientFlags.idleTimeout, "idle-timeout", 0, "give up after this many silent seconds, 0 disables")
}

func runClient(ctx context.Context, conf xsession.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	defer xcommon.Recover(ctx)

	rec := xstats.NewRecorder(conf.ClientName)
	sess, err := xsession.Dial(ctx, conf, xsession.SessionArgs{
		OnConnect: func(ctx context.Context, clientID uint32) {
			xlog.Get(ctx).Info("Handshake done", xlog.ClientID(clientID))
		},
		OnProbe: func(ctx context.Context, probe xproto.DelayProbe) {
			rec.OnProbe(probe.SeqNum)
		},
		OnDelay: func(ctx context.Context, result xproto.DelayResult) {
			rec.OnDelay(result.SeqNum, time.Duration(result.DelayNanos))
			xlog.Get(ctx).Info("Delay", xlog.Seq(result.SeqNum), zap.Duration("rtt", time.Duration(result.DelayNanos)))
		},
	})
	if err != nil {
		return err
	}

	xcommon.UntilSignal(ctx, sess.Done())
	sess.Disconnect(ctx)
	sess.Wait()

	xstats.Print(ctx, rec.Summary())
	return sess.Err()
}
