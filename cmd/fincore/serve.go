package main

import (
	"github.com/spf13/cobra"

	"fincore/internal/app"
	"fincore/internal/logger"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the catalog, queries and streams over HTTP",
		Long: `Serve the HTTP API. Credentials and preference defaults are reloaded
when the config file changes; providers are fixed at startup.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			defer opts.close()
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.App.HTTPAddr = addr
			}
			a, err := app.NewApp(cmd.Context(), cfg, app.WithConfigPath(opts.path()))
			if err != nil {
				return err
			}
			logger.Infof("fincore listening on %s", a.Server().Addr())
			return a.Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides app.http_addr)")
	return cmd
}
