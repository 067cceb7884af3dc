// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"os"

	"github.com/anvilproject/drs-downloader/internal/cli"
)

// version is set at build time via -ldflags "-X main.version=...". A
// DRS_DOWNLOADER_VERSION environment override lets a downstream packager
// stamp a release version onto an already-built binary without relinking.
var version = "0.1.0-dev"

func main() {
	if v := os.Getenv("DRS_DOWNLOADER_VERSION"); v != "" {
		version = v
	}
	if err := cli.Execute(version); err != nil {
		os.Exit(1)
	}
}
