package commands

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"gradewatch-backend/lib/configutil"
	"gradewatch-backend/lib/serviceutil"
	"gradewatch-backend/services/watcher"
	"gradewatch-backend/services/watcher/store"

	"github.com/jedib0t/go-pretty/v6/progress"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var missingConfig *string
var missingFilter *string

func init() {
	missingConfig = missingCmd.Flags().String("config", "config.json5", "The config file to read.")
	missingFilter = missingCmd.Flags().String("filter", "", "Override the configured days-out filter, e.g. '>=5'.")
	rootCmd.AddCommand(missingCmd)
}

type staticSettings struct {
	s watcher.Settings
}

func (p staticSettings) Settings(ctx context.Context) (watcher.Settings, error) {
	return p.s, nil
}

// trackerProgress mirrors dispatch progress onto a terminal tracker.
// The total is only known once the first update arrives.
type trackerProgress struct {
	writer  progress.Writer
	tracker *progress.Tracker
}

func newTrackerProgress() *trackerProgress {
	w := progress.NewWriter()
	w.SetOutputWriter(os.Stderr)
	go w.Render()
	return &trackerProgress{writer: w}
}

func (p *trackerProgress) Progress(processed, total int) {
	if p.tracker == nil {
		p.tracker = &progress.Tracker{
			Message: "checking students",
			Total:   int64(total),
			Units:   progress.UnitsDefault,
		}
		p.writer.AppendTracker(p.tracker)
	}
	p.tracker.SetValue(int64(processed))
}

func (p *trackerProgress) stop() {
	if p.tracker != nil {
		p.tracker.MarkAsDone()
	}
	p.writer.Stop()
}

func renderMissingReport(report watcher.MissingReport) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Student", "Grade", "Assignment", "Due", "Score"})

	for _, student := range report.Students {
		for i, assignment := range student.Missing {
			name, grade := "", ""
			if i == 0 {
				name, grade = student.Name, student.CurrentGrade
			}
			t.AppendRow(table.Row{name, grade, assignment.Title, assignment.DueDate, assignment.Score})
		}
		t.AppendSeparator()
	}
	t.AppendFooter(table.Row{
		fmt.Sprintf("%d students", report.StudentCount), "", "", "",
		report.Elapsed.Round(time.Second),
	})
	t.Render()
}

var missingCmd = &cobra.Command{
	Use:   "missing [--config <path/to/config.json5>] [--filter <expr>]",
	Short: "Runs a single missing-assignment check and prints the report.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := serviceutil.SignalContext()

		cfg, err := configutil.ReadConfig[Config](*missingConfig)
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}
		settings := cfg.Watcher.settings(watcher.ModeMissing)
		if *missingFilter != "" {
			settings.DaysOutFilter = *missingFilter
		}

		db, err := cfg.Database.OpenDB(store.Schema)
		if err != nil {
			serviceutil.Fatal("failed to open database", err)
		}
		defer db.Close()

		st := store.NewStore(db)
		tracker := newTrackerProgress()
		w := watcher.New(watcher.Options{
			Roster:   st,
			Sink:     st,
			Settings: staticSettings{s: settings},
			Operator: stdinOperator{},
			Progress: tracker,
			Clients:  clientFactory(cfg.AccessToken),
		})

		err = w.Run(ctx)
		tracker.stop()
		if err != nil {
			serviceutil.Fatal("missing check failed", err)
		}

		report, err := st.LatestMissingReport(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			fmt.Println("no report was recorded")
			return
		}
		if err != nil {
			serviceutil.Fatal("failed to read report", err)
		}
		renderMissingReport(report)
	},
}
