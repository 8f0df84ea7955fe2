// cmd/tempmon/main.go
package main

import (
	"context"
	"os"

	"github.com/sydneycally-inclane-2812/temp-monitor-site/internal/cli"
)

// Default version is "dev" if not set with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	os.Exit(cli.Execute(context.Background(), version, os.Stderr))
}
