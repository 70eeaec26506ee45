/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package logging configures the process-wide zerolog logger.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup configures zerolog for the process, writing to stdout.
func Setup(environment string, extra ...io.Writer) zerolog.Logger {
	return SetupWithWriter(environment, os.Stdout, extra...)
}

// SetupWithWriter configures zerolog to write human readable output to out. The
// extra writers receive the raw JSON events.
func SetupWithWriter(environment string, out io.Writer, extra ...io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	level := zerolog.InfoLevel
	if environment == "development" {
		level = zerolog.DebugLevel
	}

	consoleWriter := zerolog.ConsoleWriter{Out: out, NoColor: out != os.Stdout}

	var w io.Writer = consoleWriter
	if len(extra) > 0 {
		w = zerolog.MultiLevelWriter(append([]io.Writer{consoleWriter}, extra...)...)
	}

	logger := zerolog.New(w).With().Timestamp().Logger().Level(level)
	log.Logger = logger
	return logger
}
