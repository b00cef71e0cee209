// Package cli implements the baekyad command line.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/baekya-protocol/baekya/internal/daemon"
	"github.com/baekya-protocol/baekya/internal/infra/logger"
)

// Version is set at build time with -ldflags "-X .../internal/cli.Version=...".
var Version = "dev"

var (
	rootCmd = &cobra.Command{
		Use:   "baekyad",
		Short: "Baekya protocol node",
		Long: `baekyad runs a Baekya protocol node: DAO governance, contribution
verification with B-token emission, and periodic P-token issuance.`,

		PersistentPreRunE: func(cmd *cobra.Command, args []string) (err error) {
			// Cancelled on SIGINT/SIGTERM
			ctx, cancel = context.WithCancel(context.Background())
			signalChannel = make(chan os.Signal, 1)
			signal.Notify(signalChannel, os.Interrupt, syscall.SIGTERM)
			go func() {
				select {
				case <-signalChannel:
					cancel()
				case <-ctx.Done():
				}
			}()

			if cfgFile == "" {
				cfgFile = daemon.DefaultPath()
			}
			conf, err = daemon.Load(cfgFile)
			if err != nil {
				return
			}
			return logger.Init(conf.Log.Level, conf.Log.Format)
		},

		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			signal.Stop(signalChannel)
			cancel()
			return nil
		},
		SilenceUsage: true,
	}

	conf    daemon.Config
	cfgFile string

	ctx           context.Context
	cancel        context.CancelFunc
	signalChannel chan os.Signal
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "configuration file path (default $BAEKYA_HOME/config.toml)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
