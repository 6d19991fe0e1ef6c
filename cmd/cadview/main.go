// Command cadview runs the visualization server and pushes geometry to it.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
   ┌─┐┌─┐┌┬┐┬  ┬┬┌─┐┬ ┬
   │  ├─┤ ││└┐┌┘│├┤ │││
   └─┘┴ ┴─┴┘ └┘ ┴└─┘└┴┘
`

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		errorMsg("%s", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cadview",
		Short: "Embedded 3D geometry viewer server",
		Long: `cadview serves a browser viewer for 3D geometry produced by a host
application and relays the viewer's shape clicks back to the host.

It runs two servers:

  • an HTTP gateway for the viewer page, static assets and geometry ingestion
  • a WebSocket bridge keeping one live session per browser tab`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		pushCmd(),
		versionCmd(),
	)
	return rootCmd
}

// printBanner prints the cadview banner.
func printBanner() {
	color.New(color.FgCyan).Print(banner)
	color.New(color.FgHiBlack).Printf("    version: %s\n\n", version)
}

// success prints a success message.
func success(format string, args ...any) {
	color.New(color.FgGreen).Print("✓ ")
	fmt.Printf("%s\n", fmt.Sprintf(format, args...))
}

// info prints an info line with a marker.
func info(label, value string) {
	color.New(color.FgGreen).Print("    ▶ ")
	fmt.Printf("%-10s %s\n", label+":", value)
}

// warn prints a warning message.
func warn(format string, args ...any) {
	color.New(color.FgYellow).Print("⚠ ")
	fmt.Printf("%s\n", fmt.Sprintf(format, args...))
}

// errorMsg prints an error message.
func errorMsg(format string, args ...any) {
	color.New(color.FgRed).Fprint(os.Stderr, "✗ ")
	fmt.Fprintf(os.Stderr, "%s\n", fmt.Sprintf(format, args...))
}
