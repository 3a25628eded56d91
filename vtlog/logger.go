// Copyright (C) 2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package vtlog adapts the channel's logging calls to github.com/luxfi/log,
// the same Logger interface the teacher codebase standardizes on. It
// supplies a real slog-backed implementation and a no-op one for tests,
// mirroring the shape of the teacher's log.NoLog (see original log/nolog.go).
package vtlog

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/luxfi/log"
	"go.uber.org/zap"
)

// Logger is the interface all channel components log through.
type Logger = log.Logger

// NewNoOp returns a Logger that discards everything, for tests and for
// callers that haven't wired one in.
func NewNoOp() Logger {
	return noOpLogger{}
}

// NewDefault returns a Logger backed by log/slog, writing leveled text to
// w with component as a standing "component" field. Pass os.Stderr for w
// in production use (SPEC_FULL.md's ambient stack §2).
func NewDefault(w io.Writer, component string, level slog.Level) Logger {
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	base := slog.New(h).With("component", component)
	return &slogAdapter{slog: base, level: level}
}

// NewStderr is a convenience wrapper around NewDefault for os.Stderr at
// info level, the default for cmd/mrefctl.
func NewStderr(component string) Logger {
	return NewDefault(os.Stderr, component, slog.LevelInfo)
}

// slogAdapter implements log.Logger atop log/slog. The node-compatibility
// methods (Fatal/Verbo/WithFields/WithOptions/StopOnPanic/...) exist only
// to satisfy the interface; the channel itself never calls them.
type slogAdapter struct {
	slog  *slog.Logger
	level slog.Level
}

func (a *slogAdapter) With(ctx ...interface{}) log.Logger {
	return &slogAdapter{slog: a.slog.With(ctx...), level: a.level}
}

func (a *slogAdapter) New(ctx ...interface{}) log.Logger {
	return a.With(ctx...)
}

func (a *slogAdapter) Log(level slog.Level, msg string, ctx ...interface{}) {
	a.slog.Log(context.Background(), level, msg, ctx...)
}

func (a *slogAdapter) Trace(msg string, ctx ...interface{}) {
	a.slog.Log(context.Background(), slog.LevelDebug-4, msg, ctx...)
}

func (a *slogAdapter) Debug(msg string, ctx ...interface{}) { a.slog.Debug(msg, ctx...) }
func (a *slogAdapter) Info(msg string, ctx ...interface{})  { a.slog.Info(msg, ctx...) }
func (a *slogAdapter) Warn(msg string, ctx ...interface{})  { a.slog.Warn(msg, ctx...) }
func (a *slogAdapter) Error(msg string, ctx ...interface{}) { a.slog.Error(msg, ctx...) }
func (a *slogAdapter) Crit(msg string, ctx ...interface{})  { a.slog.Error(msg, ctx...) }

func (a *slogAdapter) WriteLog(level slog.Level, msg string, attrs ...any) {
	a.slog.Log(context.Background(), level, msg, attrs...)
}

func (a *slogAdapter) Enabled(ctx context.Context, level slog.Level) bool {
	return a.slog.Enabled(ctx, level)
}

func (a *slogAdapter) Handler() slog.Handler { return a.slog.Handler() }

func (a *slogAdapter) Fatal(msg string, fields ...zap.Field) { a.slog.Error(msg) }
func (a *slogAdapter) Verbo(msg string, fields ...zap.Field) { a.slog.Debug(msg) }

func (a *slogAdapter) WithFields(fields ...zap.Field) log.Logger  { return a }
func (a *slogAdapter) WithOptions(opts ...zap.Option) log.Logger { return a }

func (a *slogAdapter) SetLevel(level slog.Level) { a.level = level }
func (a *slogAdapter) GetLevel() slog.Level      { return a.level }
func (a *slogAdapter) EnabledLevel(lvl slog.Level) bool {
	return a.slog.Enabled(context.Background(), lvl)
}

func (a *slogAdapter) StopOnPanic()                       {}
func (a *slogAdapter) RecoverAndPanic(f func())           { f() }
func (a *slogAdapter) RecoverAndExit(f, exit func())      { f() }
func (a *slogAdapter) Stop()                              {}
func (a *slogAdapter) Write(p []byte) (int, error)        { return len(p), nil }

// noOpLogger discards everything; grounded on the teacher's log.NoLog.
type noOpLogger struct{}

func (noOpLogger) With(ctx ...interface{}) log.Logger { return noOpLogger{} }
func (noOpLogger) New(ctx ...interface{}) log.Logger  { return noOpLogger{} }
func (noOpLogger) Log(level slog.Level, msg string, ctx ...interface{})   {}
func (noOpLogger) Trace(msg string, ctx ...interface{})                   {}
func (noOpLogger) Debug(msg string, ctx ...interface{})                   {}
func (noOpLogger) Info(msg string, ctx ...interface{})                    {}
func (noOpLogger) Warn(msg string, ctx ...interface{})                    {}
func (noOpLogger) Error(msg string, ctx ...interface{})                   {}
func (noOpLogger) Crit(msg string, ctx ...interface{})                    {}
func (noOpLogger) WriteLog(level slog.Level, msg string, attrs ...any)    {}
func (noOpLogger) Enabled(ctx context.Context, level slog.Level) bool     { return false }
func (noOpLogger) Handler() slog.Handler                                  { return nil }
func (noOpLogger) Fatal(msg string, fields ...zap.Field)                  {}
func (noOpLogger) Verbo(msg string, fields ...zap.Field)                  {}
func (noOpLogger) WithFields(fields ...zap.Field) log.Logger              { return noOpLogger{} }
func (noOpLogger) WithOptions(opts ...zap.Option) log.Logger              { return noOpLogger{} }
func (noOpLogger) SetLevel(level slog.Level)                              {}
func (noOpLogger) GetLevel() slog.Level                                   { return slog.Level(0) }
func (noOpLogger) EnabledLevel(lvl slog.Level) bool                       { return false }
func (noOpLogger) StopOnPanic()                                           {}
func (noOpLogger) RecoverAndPanic(f func())                               { f() }
func (noOpLogger) RecoverAndExit(f, exit func())                          { f() }
func (noOpLogger) Stop()                                                  {}
func (noOpLogger) Write(p []byte) (int, error)                            { return len(p), nil }
