// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

// Package logging builds the dual-sink logger the batch orchestrator writes
// to throughout an invocation: a truncated per-run log file that always
// receives info-and-above records, and a console sink whose minimum level
// is gated by the --quiet/--verbose flags (spec §4.5, §6 "Log file").
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// New opens logPath (truncating it) and returns a zerolog.Logger that fans
// out to both that file and stderr. verbose raises the stderr sink to debug;
// quiet silences everything below warn on stderr; the file sink is always
// info+ regardless of either flag, matching the original's FileHandler
// level being fixed independently of the stream handler's.
func New(logPath string, verbose, quiet bool) (zerolog.Logger, func() error, error) {
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return zerolog.Logger{}, nil, err
	}

	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	consoleLevel := zerolog.InfoLevel
	switch {
	case quiet:
		consoleLevel = zerolog.WarnLevel
	case verbose:
		consoleLevel = zerolog.DebugLevel
	}

	leveled := &levelFilterWriter{w: console, level: consoleLevel}
	multi := zerolog.MultiLevelWriter(f, leveled)

	logger := zerolog.New(multi).With().Timestamp().Logger()
	return logger, f.Close, nil
}

// levelFilterWriter drops any zerolog event below level, letting the file
// sink stay at info+ while the console sink independently respects
// --quiet/--verbose on the same *zerolog.Logger (zerolog's own level gate is
// global to the logger, not per-writer). Implementing zerolog.LevelWriter
// lets MultiLevelWriter hand us the already-parsed level instead of making
// us re-parse the JSON event.
type levelFilterWriter struct {
	w     io.Writer
	level zerolog.Level
}

func (l *levelFilterWriter) Write(p []byte) (int, error) {
	return l.w.Write(p)
}

func (l *levelFilterWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level < l.level {
		return len(p), nil
	}
	return l.w.Write(p)
}
