// Copyright 2025 ByteDance Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package log is the process-wide printf-style logger. It writes to stderr
// through zap so stdout stays free for command output and the MCP stdio
// transport.
package log

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	ErrorLevel
)

func (l Level) zap() zapcore.Level {
	switch l {
	case DebugLevel:
		return zapcore.DebugLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

var (
	mu     sync.RWMutex
	level  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	logger = newLogger(zapcore.Lock(os.Stderr))
)

func newLogger(out zapcore.WriteSyncer) *zap.SugaredLogger {
	enc := zap.NewDevelopmentEncoderConfig()
	enc.EncodeLevel = zapcore.CapitalLevelEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), out, level)
	return zap.New(core).Sugar()
}

// SetLogLevel changes the minimum level for every subsequent call.
func SetLogLevel(l Level) {
	level.SetLevel(l.zap())
}

// SetOutput redirects log output, e.g. to a file or io.Discard in tests.
func SetOutput(out zapcore.WriteSyncer) {
	mu.Lock()
	logger = newLogger(out)
	mu.Unlock()
}

// ParseLevel maps "debug", "info" and "error" to a Level. Unknown names
// fall back to InfoLevel.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

func current() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func Debug(format string, args ...any) {
	current().Debugf(strings.TrimRight(format, "\n"), args...)
}

func Info(format string, args ...any) {
	current().Infof(strings.TrimRight(format, "\n"), args...)
}

func Warn(format string, args ...any) {
	current().Warnf(strings.TrimRight(format, "\n"), args...)
}

func Error(format string, args ...any) {
	current().Errorf(strings.TrimRight(format, "\n"), args...)
}

// Sync flushes buffered entries. Call it before the process exits.
func Sync() {
	_ = current().Sync()
}
