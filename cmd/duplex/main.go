// Command duplex serves WebSocket sessions and static files over a single
// listener.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-dev/duplex/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
  ┌┬┐┬ ┬┌─┐┬  ┌─┐─┐ ┬
   │││ │├─┘│  ├┤ ┌┴┬┘
  ─┴┘└─┘┴  ┴─┘└─┘┴ └─
`

func main() {
	rootCmd := &cobra.Command{
		Use:   "duplex",
		Short: "A small WebSocket and file server",
		Long: `Duplex accepts HTTP/1.x connections, upgrades them to WebSocket
sessions by path and serves the remaining requests from disk or S3.

  • Named sessions in echo, broadcast or JSON mode
  • Static files from a directory or an S3 bucket
  • Prometheus metrics and health checks on an admin port`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		checkCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		errors.Print(os.Stderr, err)
		os.Exit(1)
	}
}

// printBanner prints the ASCII art banner.
func printBanner() {
	fmt.Print(banner)
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Printf("\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}
