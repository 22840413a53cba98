// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package main

import (
	"strings"

	"github.com/project-illium/logger"
	"github.com/pterm/pterm"

	"github.com/project-illium/ilxd/blockchain"
	"github.com/project-illium/ilxd/blockstore"
)

var logLevelMap = map[string]pterm.LogLevel{
	"debug":   pterm.LogLevelDebug,
	"info":    pterm.LogLevelInfo,
	"warning": pterm.LogLevelWarn,
	"error":   pterm.LogLevelError,
	"fatal":   pterm.LogLevelFatal,
}

// setupLogging wires the block storage engine's and block index's
// package loggers to the verbosity requested on the command line.
func setupLogging(level string) {
	lvl, ok := logLevelMap[strings.ToLower(level)]
	if !ok {
		lvl = pterm.LogLevelInfo
	}
	l := logger.DefaultLogger.WithLevel(lvl)
	blockstore.UseLogger(l)
	blockchain.UseLogger(l)
}
