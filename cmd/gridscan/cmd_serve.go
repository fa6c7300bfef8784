package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/microsoft/gridscan/internal/report"
	"github.com/microsoft/gridscan/internal/webapi"
	"github.com/microsoft/gridscan/internal/webserver"
	"github.com/spf13/cobra"
)

func newServeCommand(root *rootOptions) *cobra.Command {
	var port int
	var noBrowser bool
	var origins []string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the local dashboard",
		Long: `Start the local dashboard and its JSON API on 127.0.0.1.

The dashboard holds one session: the displayed result, its inspection
statuses and the history of the configured user. Uploads are forwarded to the
scoring service. A slow response that arrives after a newer upload or history
load is discarded.

Endpoints:
  GET  /api/health                  Health check
  GET  /api/result                  Displayed result
  POST /api/result                  Display an uploaded result document
  POST /api/analyze                 Analyze an uploaded dataset (?save=true)
  GET  /api/markers                 Map markers
  GET  /api/classification          Anomaly and ranked tables
  GET  /api/transformers            Transformer distribution
  GET  /api/history                 Past runs, newest first
  POST /api/history/{id}/load       Display a past run
  GET  /api/inspection              Inspection statuses
  PUT  /api/inspection/{consumerId} Set an inspection status
  GET  /api/export?format=md        Download the report`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(root)
			if err != nil {
				return err
			}
			defer closeApp(cmd, a)

			sess, err := a.session()
			if err != nil {
				return err
			}
			resolver, err := a.resolver()
			if err != nil {
				return err
			}
			archiver, err := a.archiver()
			if err != nil {
				return err
			}

			var format report.Format
			if err := format.Set(a.cfg.Export.Format); err != nil {
				return err
			}
			if !cmd.Flags().Changed("port") {
				port = a.cfg.Server.Port
			}

			srv, err := webserver.New(webserver.Config{
				Port: port,
				API: webapi.Deps{
					Session:      sess,
					Analyzer:     a.analyzer(),
					History:      resolver,
					Archiver:     archiver,
					UserID:       a.userID(),
					ExportFormat: format,
					Logger:       a.logger,
				},
				AllowedOrigins: origins,
				NoBrowser:      noBrowser,
				Logger:         a.logger,
				Out:            cmd.OutOrStdout(),
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", webserver.DefaultPort, "Port to listen on (default server.port)")
	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "Do not open a browser")
	cmd.Flags().StringSliceVar(&origins, "allow-origin", nil, "Origins allowed to call the API (CORS)")

	return cmd
}
