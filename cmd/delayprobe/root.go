package main

import (
	"github.com/spf13/cobra"

	"udpdelay/pkg/xenv"
	"udpdelay/pkg/xlog"
)

var (
	cfgFile  string
	logLevel string
	logJSON  bool
)

var rootCmd = &cobra.Command{
	Use:           "delayprobe",
	Short:         "Measure UDP delay between a client and a delay peer",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		opts := xlog.Options{Level: "info"}
		if err := xenv.Load(&opts, cfgFile); err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			opts.Level = logLevel
		}
		if cmd.Flags().Changed("log-json") {
			opts.JSON = logJSON
		}
		xlog.Init(opts)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		xlog.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "debug|info|warn|error")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "ECS JSON logs")

	rootCmd.AddCommand(clientCmd, peerCmd, watchCmd)
}
