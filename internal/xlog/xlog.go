// Package xlog centralizes the zap logging conventions shared across the
// engine, mirroring the teacher's utils.LogError helper: callers pass the
// *zap.Logger they were constructed with rather than reaching for a
// package-level global.
package xlog

import "go.uber.org/zap"

// Error logs err at Error level with a message and structured fields,
// returning err unchanged so it can be used inline: `return xlog.Error(...)`.
func Error(logger *zap.Logger, err error, msg string, fields ...zap.Field) error {
	if logger == nil {
		return err
	}
	logger.Error(msg, append(fields, zap.Error(err))...)
	return err
}

// NoOp returns a logger that discards everything, used as the default
// when a caller does not supply one.
func NoOp() *zap.Logger {
	return zap.NewNop()
}
