package cmd

import (
	"fmt"
	"net"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/vlet/tls12"
	"github.com/vlet/tls12/config"
	"github.com/vlet/tls12/internal/wire"
)

func serveCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Accept TLS 1.2 connections and echo application data back",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			logger := newLogger(cfg)
			defer logger.Sync() //nolint:errcheck

			return runServe(logger, cfg)
		},
	}
}

func runServe(logger *zap.Logger, cfg *config.Config) error {
	certPEM, err := os.ReadFile(cfg.CertFile)
	if err != nil {
		return fmt.Errorf("tls12ctl: read cert file: %w", err)
	}
	keyPEM, err := os.ReadFile(cfg.KeyFile)
	if err != nil {
		return fmt.Errorf("tls12ctl: read key file: %w", err)
	}

	server, err := tls12.NewServer(certPEM, keyPEM,
		tls12.WithServerLogger(logger),
		tls12.WithServerSessionCacheSize(cfg.SessionCacheSize),
	)
	if err != nil {
		return fmt.Errorf("tls12ctl: build server: %w", err)
	}

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return fmt.Errorf("tls12ctl: listen: %w", err)
	}
	defer ln.Close()

	color.Green("tls12ctl: listening on %s", cfg.Listen)

	for {
		conn, err := ln.Accept()
		if err != nil {
			return fmt.Errorf("tls12ctl: accept: %w", err)
		}
		go handleServerConn(logger, server, conn)
	}
}

// handleServerConn wires up the per-connection callbacks — echo whatever
// application data arrives, matching spec §8 scenario 1's "server
// echoes" — then drives the socket I/O loop until close.
func handleServerConn(logger *zap.Logger, server *tls12.Server, conn net.Conn) {
	remote := conn.RemoteAddr().String()

	var tc *tls12.Connection
	tc = server.NewConnection(tls12.Callbacks{
		OnHandshakeFinish: func() {
			color.Cyan("tls12ctl: handshake complete with %s (sni=%q resuming=%v)", remote, tc.ServerName(), tc.Resuming())
		},
		OnData: func(b []byte) {
			logger.Info("tls12ctl: received application data", zap.String("remote", remote), zap.Int("bytes", len(b)))
			_ = tc.Send(b)
		},
		OnError: func(desc wire.AlertDescription) {
			color.Red("tls12ctl: connection to %s failed: alert %s", remote, desc)
		},
	})

	pumpConn(logger, conn, tc)
}
