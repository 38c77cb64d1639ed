package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gossip-lsp/lexis/indexer"
	"github.com/gossip-lsp/lexis/treesitter"
)

var stubsOut string

var stubsCmd = &cobra.Command{
	Use:   "stubs <dir>",
	Short: "Index a directory into a stubs snapshot",
	Long: `stubs analyzes every Go file below dir, typically the standard library
sources, and writes the resulting index to a snapshot the server loads
with --stubs.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger()
		if err != nil {
			return err
		}
		analyzer := treesitter.NewAnalyzer(nil, treesitter.WithLogger(logger))
		idx, stats, err := indexer.BuildStubs(cmd.Context(), args[0], analyzer, logger)
		if err != nil {
			return err
		}

		f, err := os.Create(stubsOut)
		if err != nil {
			return err
		}
		w := bufio.NewWriter(f)
		if err := idx.Save(w); err != nil {
			f.Close()
			return fmt.Errorf("writing %s: %w", stubsOut, err)
		}
		if err := w.Flush(); err != nil {
			f.Close()
			return fmt.Errorf("writing %s: %w", stubsOut, err)
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d definitions from %d files (%d failed) written to %s\n",
			idx.Len(), stats.Files, stats.Failed, stubsOut)
		return nil
	},
}

func init() {
	stubsCmd.Flags().StringVarP(&stubsOut, "output", "o", "stubs.idx", "snapshot file to write")
	rootCmd.AddCommand(stubsCmd)
}
