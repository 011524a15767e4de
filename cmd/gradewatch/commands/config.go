package commands

import (
	"context"
	"time"

	"gradewatch-backend/lib/configutil"
	configsqlite "gradewatch-backend/lib/configutil/sqlite"
	"gradewatch-backend/lib/scrapers/canvas"
	"gradewatch-backend/services/watcher"
)

// WatcherConfig carries the engine knobs. The mode is not part of it,
// each subcommand fixes its own mode.
type WatcherConfig struct {
	MaxConcurrency       int               `json:"max_concurrency"`
	BatchSize            int               `json:"batch_size"`
	DaysOutFilter        string            `json:"days_out_filter"`
	IncludeFailingGrades bool              `json:"include_failing_grades"`
	Keyword              string            `json:"keyword"`
	CycleDelaySeconds    int               `json:"cycle_delay_seconds"`
	AuthWaitSeconds      int               `json:"auth_wait_seconds"`
	AuthDefault          string            `json:"auth_default"`
	OriginAliases        map[string]string `json:"origin_aliases"`
}

type Config struct {
	Database    configsqlite.Struct `json:"database"`
	AccessToken string              `json:"access_token"`
	Watcher     WatcherConfig       `json:"watcher"`
}

func (c WatcherConfig) settings(mode watcher.Mode) watcher.Settings {
	decision := watcher.DecisionContinue
	if c.AuthDefault == "shutdown" {
		decision = watcher.DecisionShutdown
	}
	return watcher.Settings{
		Mode:                 mode,
		MaxConcurrency:       c.MaxConcurrency,
		BatchSize:            c.BatchSize,
		DaysOutFilter:        c.DaysOutFilter,
		IncludeFailingGrades: c.IncludeFailingGrades,
		Keyword:              c.Keyword,
		CycleDelay:           time.Duration(c.CycleDelaySeconds) * time.Second,
		AuthDecisionTimeout:  time.Duration(c.AuthWaitSeconds) * time.Second,
		AuthDefaultDecision:  decision,
		OriginAliases:        c.OriginAliases,
	}.WithDefaults()
}

// fileSettings re-reads config.json5 at the start of every cycle, so
// knobs can be adjusted without restarting the daemon.
type fileSettings struct {
	name string
	mode watcher.Mode
}

func (p fileSettings) Settings(ctx context.Context) (watcher.Settings, error) {
	cfg, err := configutil.ReadConfig[Config](p.name)
	if err != nil {
		return watcher.Settings{}, err
	}
	return cfg.Watcher.settings(p.mode), nil
}

func clientFactory(accessToken string) watcher.ClientFactory {
	return func(origin string) (watcher.CourseClient, error) {
		return canvas.NewClient(canvas.ClientOptions{
			Origin:      origin,
			AccessToken: accessToken,
		})
	}
}
