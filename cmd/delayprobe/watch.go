package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"udpdelay/pkg/xcommon"
	"udpdelay/pkg/xlog"
	"udpdelay/pkg/xnet"
	"udpdelay/pkg/xpeer"
)

var watchFlags struct {
	path string
}

var watchCmd = &cobra.Command{
	Use:   "watch <feed-addr>",
	Short: "Print the measurements a peer publishes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		defer xcommon.Recover(ctx)

		cli, err := xnet.NewWSClient(ctx, xnet.WSCliArgs{
			Addr: args[0],
			Path: watchFlags.path,
			OnMsg: func(ctx context.Context, state interface{}, msg []byte) error {
				m, err := xpeer.ParseMeasurement(msg)
				if err != nil {
					xlog.Get(ctx).Warn("Bad measurement", zap.Error(err))
					return nil
				}
				fmt.Printf("%s %s#%d seq=%d delay=%v\n", m.At.Format("15:04:05.000"), m.Name, m.ClientID, m.Seq, m.Delay())
				return nil
			},
		})
		if err != nil {
			return err
		}
		xcommon.UntilSignal(ctx, cli.Done())
		cli.Close(ctx)
		return nil
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchFlags.path, "path", "/feed", "feed path on the peer")
}
