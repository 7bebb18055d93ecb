// Package log provides the logging interface for the luabox SDK.
//
// The SDK logs nothing by default. Pass a [Logger] in the client config to see
// what the sandbox is doing, an adapter for any logger only needs the format
// methods and the value helpers:
//
//	type slogLogger struct{ l *slog.Logger }
//
//	func (s slogLogger) Infof(format string, args ...any)  { s.l.Info(fmt.Sprintf(format, args...)) }
//	func (s slogLogger) Debugf(format string, args ...any) { s.l.Debug(fmt.Sprintf(format, args...)) }
//	// ... remaining methods
package log

import "github.com/slok/luabox/internal/log"

// Logger is the interface that loggers must implement for the SDK.
type Logger = log.Logger

// Kv are structured logging key-value pairs.
type Kv = log.Kv

// Noop discards all the log output.
var Noop = log.Noop
