package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	mcpserver "github.com/docuchat/docuchat/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server for AI agent integration",
	Long:  `Starts a Model Context Protocol (MCP) server on stdio, exposing the document library to AI agents like Claude Code.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		a, err := buildApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		// Stdout carries the MCP protocol; status goes to stderr.
		mcpserver.Version = Version
		fmt.Fprintf(os.Stderr, "docuchat MCP server started on stdio (corpus=%s, chunks=%d)\n",
			a.manager.Active(), a.manager.Chunks().Count())

		srv := mcpserver.NewServer(a.service, a.manager.Files())
		return srv.Serve()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
