package commands

import (
	"log/slog"

	"gradewatch-backend/lib/configutil"
	"gradewatch-backend/lib/restyutil"
	"gradewatch-backend/lib/scrapers/canvas"
	"gradewatch-backend/lib/serviceutil"
	"gradewatch-backend/lib/telemetry"
	"gradewatch-backend/services/watcher"
	"gradewatch-backend/services/watcher/store"

	"github.com/spf13/cobra"
)

var watchConfig *string
var watchTraceHttp *string

func init() {
	watchConfig = watchCmd.Flags().String("config", "config.json5", "The config file to read.")
	watchTraceHttp = watchCmd.Flags().String("trace-http", "", "Dump raw gradebook exchanges to a directory.")
	rootCmd.AddCommand(watchCmd)
}

type logProgress struct{}

func (logProgress) Progress(processed, total int) {
	slog.Debug("cycle progress", "processed", processed, "total", total)
}

var watchCmd = &cobra.Command{
	Use:   "watch [--config <path/to/config.json5>]",
	Short: "Polls gradebooks continuously and records freshly submitted work.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := serviceutil.SignalContext()

		cfg, err := configutil.ReadConfig[Config](*watchConfig)
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}

		db, err := cfg.Database.OpenDB(store.Schema)
		if err != nil {
			serviceutil.Fatal("failed to open database", err)
		}
		defer db.Close()

		telemetry.InstrumentPerfStats(ctx)
		if *watchTraceHttp != "" {
			canvas.SetRestyInstrumentOutput(restyutil.NewFilesystemOutput(*watchTraceHttp))
		}

		st := store.NewStore(db)
		w := watcher.New(watcher.Options{
			Roster:   st,
			Sink:     st,
			Settings: fileSettings{name: *watchConfig, mode: watcher.ModeSubmission},
			Operator: stdinOperator{},
			Progress: logProgress{},
			Clients:  clientFactory(cfg.AccessToken),
		})

		slog.Info("watching for submissions", "config", *watchConfig)
		err = w.Run(ctx)
		if err != nil {
			serviceutil.Fatal("watcher exited", err)
		}
	},
}
