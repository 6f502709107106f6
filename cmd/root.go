package cmd

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "docuchat",
	Short: "Chat with your document library",
	Long: `Docuchat indexes PDFs and text documents into a local vector database
and answers questions about them with an LLM. Answers are grounded in
the documents, cite filename and page, and can include rendered page
images for figures and schematics. It integrates with AI agents via
MCP and serves a chat API over HTTP and WebSocket.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", ".docuchat.yml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
