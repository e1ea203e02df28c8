// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"beamform/cmd"
	"beamform/internal/log"
	"beamform/pkg/build"
)

// main runs the command line interface:
//
// 1. Startup: build information, signal handling.
// 2. Command: load and validate the configuration, run the command.
// 3. Shutdown: transports are closed by the command before it returns.
func main() {
	// Development builds run without ldflags and keep the defaults.
	if err := build.Initialize(); err != nil {
		log.Debugf("build info: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Execute(ctx); err != nil {
		stop()
		log.Fatal(err)
	}
}
