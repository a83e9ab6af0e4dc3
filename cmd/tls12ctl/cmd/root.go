// Package cmd is the command tree for tls12ctl, a thin socket-I/O shell
// around the sans-I/O engine (SPEC_FULL §10): it owns accept/dial loops
// and byte shuffling only, no protocol logic.
package cmd

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/vlet/tls12/config"
)

// RootCommand builds the tls12ctl command tree, mirroring the teacher's
// cmd/keploy-cli/cmd.RootCommand shape: one constructor returning a fully
// wired *cobra.Command.
func RootCommand() *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:   "tls12ctl",
		Short: "Drive the tls12 sans-I/O engine over real TCP sockets",
	}
	config.BindFlags(root.PersistentFlags(), v)

	root.AddCommand(serveCommand(v))
	root.AddCommand(dialCommand(v))

	return root
}

func newLogger(cfg *config.Config) *zap.Logger {
	color.NoColor = cfg.DisableANSI

	zcfg := zap.NewDevelopmentConfig()
	if !cfg.Debug {
		zcfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	logger, err := zcfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
