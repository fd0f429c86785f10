package main

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/aretw0/opbridge/pkg/adapters/mcp"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Exposes the bridge as an MCP server so agents can call its operations as tools.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		transport, _ := cmd.Flags().GetString("transport")
		port, _ := cmd.Flags().GetInt("port")

		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		srv := mcp.NewServer(s.host.Bridge, s.logger)

		switch transport {
		case "stdio":
			// Logs go to stderr so they never corrupt JSON-RPC on stdout.
			s.logger.Info("Starting opbridge MCP Server (Stdio)", "tools", srv.Tools())
			return srv.ServeStdio()
		case "sse":
			s.logger.Info("Starting opbridge MCP Server (SSE)", "port", port)
			if err := srv.ServeSSE(s.Context(), port); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			s.logger.Info("MCP Server stopped gracefully")
			return nil
		default:
			return fmt.Errorf("unknown transport: %s. Supported: stdio, sse", transport)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	mcpCmd.Flags().Int("port", 8080, "Port to listen on (only for SSE)")
}
