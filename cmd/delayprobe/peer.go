package main

import (
	"context"

	"github.com/spf13/cobra"

	"udpdelay/pkg/xcommon"
	"udpdelay/pkg/xenv"
	"udpdelay/pkg/xpeer"
)

var peerFlags struct {
	listen      string
	feed        string
	maxClients  int
	idleTimeout float64
}

var peerCmd = &cobra.Command{
	Use:   "peer",
	Short: "Run a delay peer that echoes probes and collects results",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		conf := xpeer.DefaultConfig()
		if err := xenv.Load(&conf, cfgFile); err != nil {
			return err
		}
		flags := cmd.Flags()
		if flags.Changed("listen") {
			conf.Listen = peerFlags.listen
		}
		if flags.Changed("feed") {
			conf.FeedListen = peerFlags.feed
		}
		if flags.Changed("max-clients") {
			conf.MaxClients = peerFlags.maxClients
		}
		if flags.Changed("idle-timeout") {
			conf.IdleTimeoutSeconds = peerFlags.idleTimeout
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		defer xcommon.Recover(ctx)

		peer, err := xpeer.NewPeer(ctx, conf)
		if err != nil {
			return err
		}
		xcommon.UntilSignal(ctx, nil)
		peer.Close(ctx)
		return nil
	},
}

func init() {
	flags := peerCmd.Flags()
	flags.StringVar(&peerFlags.listen, "listen", ":5050", "UDP listen address")
	flags.StringVar(&peerFlags.feed, "feed", "", "websocket feed listen address, empty disables")
	flags.IntVar(&peerFlags.maxClients, "max-clients", 1024, "refuse handshakes beyond this many clients")
	flags.Float64Var(&peerFlags.idleTimeout, "idle-timeout", 10, "drop clients silent for this many seconds")
}
