// Command connectorhostd runs the connector host: it loads connector
// manifests from one or more directories, serves Prometheus metrics and
// go-sundheit health checks over HTTP, and maintains a reconnecting
// WebSocket session to a controlling server for remote operation dispatch.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func commandRoot() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "connectorhostd",
		Short: "Connector host daemon",
	}
	cmd.AddCommand(commandServe())
	cmd.AddCommand(commandVersion())
	return cmd
}

func main() {
	if err := commandRoot().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
