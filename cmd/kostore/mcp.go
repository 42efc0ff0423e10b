package main

import (
	"github.com/felixgeelhaar/mcp-go"
	"github.com/spf13/cobra"

	mcptools "github.com/felixgeelhaar/kostore/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP server for AI agent integration",
	Long: `Start a Model Context Protocol (MCP) server exposing kostore to AI agents.

Available tools:
  - kostore_install_plugin   Install plugins from GitHub repositories
  - kostore_install_patches  Install user patches from GitHub repositories
  - kostore_locate           Find the plugin root in a local directory
  - kostore_status           Show version, install root and installed items

Examples:
  kostore mcp                 # Start stdio MCP server
  kostore mcp --http :8080    # Start HTTP MCP server`,
	RunE: runMCP,
}

var mcpHTTP string

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().StringVar(&mcpHTTP, "http", "", "Start HTTP server on address (e.g., :8080)")
}

func runMCP(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	k, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}

	srv := mcp.NewServer(mcp.ServerInfo{
		Name:    "kostore",
		Version: version,
	})
	mcptools.RegisterAll(srv, k, mcptools.VersionInfo{
		Version:   version,
		Commit:    commit,
		BuildDate: buildDate,
	})

	if mcpHTTP != "" {
		return mcp.ServeHTTP(ctx, srv, mcpHTTP)
	}
	return mcp.ServeStdio(ctx, srv)
}
