// Package watcher is the polling engine: it groups a roster of
// students by remote course, fetches their gradebook data under a
// bounded worker pool and reports either freshly submitted work or
// overdue unsubmitted assignments.
package watcher

import (
	"context"
	"time"

	"gradewatch-backend/lib/scrapers/canvas"
)

type Mode string

const (
	// detect new work, cycles repeat until stopped
	ModeSubmission Mode = "submission"
	// detect overdue unsubmitted work, a single terminating pass
	ModeMissing Mode = "missing"
)

// StudentEntry is one roster record, received by value for the
// duration of one cycle and never persisted by the engine.
type StudentEntry struct {
	Name string
	// the per-student gradebook url
	GradebookUrl string
	// older rosters carry the url under a legacy column, used as a
	// fallback when GradebookUrl is empty
	LegacyUrl string
	// days since the student's last activity
	DaysOut int
	// optional numeric grade
	Grade *float64
	// identifier used to correlate remote records
	StudentId string
}

type Settings struct {
	Mode           Mode
	MaxConcurrency int
	BatchSize      int
	// e.g. ">=5", see ParseDaysOutFilter
	DaysOutFilter        string
	IncludeFailingGrades bool
	// zero means "now", pin it for retrospective checks
	ReferenceDate time.Time
	// submission-mode keyword, empty means today's date with exact
	// matching
	Keyword string
	// delay between submission-mode cycles
	CycleDelay time.Duration
	// how long to wait for an operator to answer an authorization
	// failure prompt
	AuthDecisionTimeout time.Duration
	// what to assume when no answer arrives in time. defaulting to
	// continue keeps the pipeline self-healing but masks a real
	// configuration problem, which is why it is a knob and not a
	// constant.
	AuthDefaultDecision AuthDecision
	// legacy gradebook hosts mapped to their canonical origin
	OriginAliases map[string]string
}

const (
	DefaultMaxConcurrency      = 5
	DefaultBatchSize           = 30
	DefaultCycleDelay          = time.Second * 2
	DefaultAuthDecisionTimeout = time.Second * 60
)

// WithDefaults fills in the zero-valued knobs.
func (s Settings) WithDefaults() Settings {
	if s.Mode == "" {
		s.Mode = ModeSubmission
	}
	if s.MaxConcurrency <= 0 {
		s.MaxConcurrency = DefaultMaxConcurrency
	}
	if s.BatchSize <= 0 {
		s.BatchSize = DefaultBatchSize
	}
	if s.DaysOutFilter == "" {
		s.DaysOutFilter = ">=0"
	}
	if s.CycleDelay <= 0 {
		s.CycleDelay = DefaultCycleDelay
	}
	if s.AuthDecisionTimeout <= 0 {
		s.AuthDecisionTimeout = DefaultAuthDecisionTimeout
	}
	return s
}

// FoundEvent reports a submission that matched the keyword in
// submission mode.
type FoundEvent struct {
	Student      string
	Assignment   string
	SubmittedAt  time.Time
	GradebookUrl string
	// the canonical gradebook reference, used to key the found set
	Key string
}

type MissingAssignment struct {
	Title   string
	Link    string
	DueDate string
	Score   string
}

// MissingStudent is rebuilt from scratch every cycle so a student
// whose situation improved never keeps stale entries.
type MissingStudent struct {
	Name         string
	CurrentGrade string
	Missing      []MissingAssignment
}

type MissingReport struct {
	// number of students with at least one missing assignment
	StudentCount int
	Elapsed      time.Duration
	Students     []MissingStudent
}

// SkippedStudent is a roster entry whose gradebook reference could not
// be parsed. Raw keeps whatever value the roster held, possibly empty.
type SkippedStudent struct {
	Name string
	Raw  string
}

// RosterStore is the external roster source. FoundKeys must reflect
// writes made through the ResultSink before the next cycle reads it.
type RosterStore interface {
	Roster(ctx context.Context) ([]StudentEntry, error)
	FoundKeys(ctx context.Context) (map[string]struct{}, error)
}

// ResultSink consumes the engine's output. SubmissionFound is called
// at most once per student per cycle, MissingCheckComplete exactly
// once per missing-mode run.
type ResultSink interface {
	SubmissionFound(ctx context.Context, event FoundEvent) error
	MissingCheckComplete(ctx context.Context, report MissingReport) error
	RosterSkipped(ctx context.Context, skipped []SkippedStudent) error
}

// SettingsProvider is read once at the start of every cycle.
type SettingsProvider interface {
	Settings(ctx context.Context) (Settings, error)
}

// Operator answers authorization-failure prompts. Implementations
// must be safe to call with no UI attached.
type Operator interface {
	RequestAuthDecision(ctx context.Context) (AuthDecision, error)
}

// ProgressObserver receives processed/total tuples as batches are
// dispatched. Updates can arrive rapidly, consumers may coalesce.
type ProgressObserver interface {
	Progress(processed, total int)
}

// CourseClient is the slice of the canvas client the engine needs,
// kept narrow so tests can substitute a fake transport.
type CourseClient interface {
	Submissions(ctx context.Context, courseId string, studentIds []string) ([]canvas.Submission, error)
	Users(ctx context.Context, courseId string, studentIds []string) ([]canvas.User, error)
}

// ClientFactory returns a client for a gradebook origin. Called once
// per distinct origin per cycle.
type ClientFactory func(origin string) (CourseClient, error)
