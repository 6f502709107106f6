package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [path...]",
	Short: "Index documents into the active corpus",
	Long: `Indexes PDF and text documents into the active corpus. Paths may be
files or directories; directories are walked with the configured
include and exclude patterns.`,
	Args: cobra.MinimumNArgs(1),
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

		ctx := cmd.Context()
		total := 0
		for _, path := range args {
			stat, err := os.Stat(path)
			if err != nil {
				return fmt.Errorf("accessing %s: %w", path, err)
			}

			if stat.IsDir() {
				infos, err := a.ingestor.IngestDir(ctx, path)
				if err != nil {
					return err
				}
				total += len(infos)
				continue
			}

			info, err := a.ingestor.IngestFile(ctx, path)
			if err != nil {
				return err
			}
			fmt.Printf("indexed %s (%d pages, place %d)\n", info.Filename, info.TotalPages, info.Place)
			total++
		}

		fmt.Printf("\nDone: %d document(s) indexed into corpus %q (%d chunks total).\n",
			total, a.manager.Active(), a.manager.Chunks().Count())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}
