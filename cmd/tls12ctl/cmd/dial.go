package cmd

import (
	"bufio"
	"fmt"
	"net"
	"os"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/vlet/tls12"
	"github.com/vlet/tls12/config"
	"github.com/vlet/tls12/internal/wire"
)

func dialCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "dial",
		Short: "Open a TLS 1.2 connection, send stdin lines, print replies",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			logger := newLogger(cfg)
			defer logger.Sync() //nolint:errcheck

			return runDial(logger, cfg)
		},
	}
}

type netRead struct {
	data []byte
	err  error
}

// runDial owns the Connection from a single goroutine for its whole
// lifetime: reads from the socket and reads from stdin are each fanned in
// over a channel so exactly one goroutine ever touches tc, per the
// Context's single-threaded contract (spec §5).
func runDial(logger *zap.Logger, cfg *config.Config) error {
	suites, err := cfg.ResolveCipherSuites()
	if err != nil {
		return err
	}
	clientOpts := []tls12.ClientOption{
		tls12.WithClientLogger(logger),
		tls12.WithClientSessionCacheSize(cfg.SessionCacheSize),
	}
	if suites != nil {
		clientOpts = append(clientOpts, tls12.WithClientCipherSuites(suites))
	}
	client := tls12.NewClient(clientOpts...)

	conn, err := net.Dial("tcp", cfg.Dial)
	if err != nil {
		return fmt.Errorf("tls12ctl: dial: %w", err)
	}
	defer conn.Close()

	var tc *tls12.Connection
	tc, err = client.NewConnection(cfg.ServerName, tls12.Callbacks{
		OnHandshakeFinish: func() {
			color.Cyan("tls12ctl: handshake complete (resuming=%v)", tc.Resuming())
		},
		OnData: func(b []byte) {
			fmt.Printf("< %s", b)
		},
		OnError: func(desc wire.AlertDescription) {
			color.Red("tls12ctl: connection failed: alert %s", desc)
		},
	})
	if err != nil {
		return fmt.Errorf("tls12ctl: start handshake: %w", err)
	}
	if err := flushTo(conn, tc); err != nil {
		return fmt.Errorf("tls12ctl: initial flush: %w", err)
	}

	reads := make(chan netRead)
	go func() {
		buf := make([]byte, 16*1024)
		for {
			n, err := conn.Read(buf)
			var chunk []byte
			if n > 0 {
				chunk = append([]byte(nil), buf[:n]...)
			}
			reads <- netRead{data: chunk, err: err}
			if err != nil {
				return
			}
		}
	}()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case r := <-reads:
			if len(r.data) > 0 {
				if err := tc.Feed(r.data); err != nil {
					logger.Warn("tls12ctl: engine rejected input", zap.Error(err))
				}
				if err := flushTo(conn, tc); err != nil {
					return fmt.Errorf("tls12ctl: flush: %w", err)
				}
			}
			if r.err != nil {
				return nil
			}
			if tc.Shutdown() {
				return nil
			}

		case line, ok := <-lines:
			if !ok {
				if err := tc.Close(); err != nil {
					return err
				}
				if err := flushTo(conn, tc); err != nil {
					return err
				}
				printSessionCache(client)
				return nil
			}
			if err := tc.Send([]byte(line + "\n")); err != nil {
				logger.Warn("tls12ctl: send failed", zap.Error(err))
				continue
			}
			if err := flushTo(conn, tc); err != nil {
				return fmt.Errorf("tls12ctl: flush: %w", err)
			}
		}
	}
}

// printSessionCache dumps the client's resumable-session server names,
// demonstrating the cache wiring from SPEC_FULL §11 the way the teacher's
// own diff/report commands dump tabular state via tablewriter.
func printSessionCache(cl *tls12.Client) {
	names := cl.CachedServerNames()
	if len(names) == 0 {
		return
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Cached server name"})
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, name := range names {
		table.Append([]string{name})
	}
	table.Render()
}
