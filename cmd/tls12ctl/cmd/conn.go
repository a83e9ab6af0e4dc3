package cmd

import (
	"net"

	"go.uber.org/zap"

	"github.com/vlet/tls12"
)

// flushTo writes every record the engine has queued for transmission to
// conn, in FIFO order (spec §4.6).
func flushTo(conn net.Conn, tc *tls12.Connection) error {
	for {
		rec, ok := tc.NextRecord()
		if !ok {
			return nil
		}
		if _, err := conn.Write(rec); err != nil {
			return err
		}
	}
}

// pumpConn is the socket-I/O loop every tls12ctl subcommand shares: read
// whatever arrived, hand it to the engine, write back whatever the engine
// queued in response, repeat until the peer closes the TCP connection or
// the engine reports Shutdown — CLOSED with nothing left to send, after a
// close_notify or a fatal alert (spec §5: the engine itself never touches
// the socket).
func pumpConn(logger *zap.Logger, conn net.Conn, tc *tls12.Connection) {
	defer conn.Close()

	if err := flushTo(conn, tc); err != nil {
		logger.Warn("tls12ctl: initial flush failed", zap.Error(err))
		return
	}

	buf := make([]byte, 16*1024)
	for {
		n, readErr := conn.Read(buf)
		if n > 0 {
			if err := tc.Feed(buf[:n]); err != nil {
				logger.Warn("tls12ctl: engine rejected input", zap.Error(err))
			}
			if err := flushTo(conn, tc); err != nil {
				logger.Warn("tls12ctl: flush failed", zap.Error(err))
				return
			}
			if tc.Shutdown() {
				return
			}
		}
		if readErr != nil {
			return
		}
	}
}
