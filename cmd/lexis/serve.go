package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gossip-lsp/lexis"
)

var (
	transportSpec string
	cacheKind     string
	stubsPath     string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the language server",
	Long: `serve speaks the Language Server Protocol over the given transport:

  stdio               standard input and output
  node-ipc            fd 3 in, stdout out
  tcp:<addr>          connect to an editor listening on addr
  tcp-listen:<addr>   accept one editor connection on addr
  unix:<path>         connect to a Unix domain socket
  unix-listen:<path>  accept one connection on a Unix domain socket
  ws:<addr>           accept one WebSocket connection on addr`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger()
		if err != nil {
			return err
		}
		settings := lexis.DefaultSettings()
		if cmd.Flags().Changed("cache") {
			settings.Cache = cacheKind
		}
		settings.Stubs = stubsPath
		if err := settings.Validate(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		s := lexis.NewServer("lexis", version,
			lexis.WithLogger(logger),
			lexis.WithSettings(settings),
		)
		err = lexis.Serve(ctx, s, lexis.WithTransportSpec(transportSpec))
		if ctx.Err() != nil {
			return nil
		}
		return err
	},
}

func init() {
	serveCmd.Flags().StringVar(&transportSpec, "transport", "stdio", "transport to serve on")
	serveCmd.Flags().StringVar(&cacheKind, "cache", lexis.CacheFile, "snapshot cache: file, sqlite, client or none")
	serveCmd.Flags().StringVar(&stubsPath, "stubs", "", "stubs snapshot written by `lexis stubs`")
	rootCmd.AddCommand(serveCmd)
}
