package watcher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"gradewatch-backend/lib/scrapers/canvas"
	"gradewatch-backend/lib/timezone"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("services/watcher")

type Options struct {
	Roster   RosterStore
	Sink     ResultSink
	Settings SettingsProvider
	Operator Operator
	Progress ProgressObserver
	Clients  ClientFactory
}

// Watcher drives cycles of build-dispatch-analyze over the roster. A
// watcher runs one Run call at a time and stays stopped once stopped.
type Watcher struct {
	roster   RosterStore
	sink     ResultSink
	settings SettingsProvider
	operator Operator
	progress ProgressObserver
	clients  ClientFactory

	stopRequested atomic.Bool
}

func New(opts Options) *Watcher {
	return &Watcher{
		roster:   opts.Roster,
		sink:     opts.Sink,
		settings: opts.Settings,
		operator: opts.Operator,
		progress: opts.Progress,
		clients:  opts.Clients,
	}
}

// Stop requests an abrupt-but-safe teardown: no new work starts, and
// results from calls already in flight are dropped rather than
// forwarded, since remote calls can't be rolled back anyway.
func (w *Watcher) Stop() {
	w.stopRequested.Store(true)
}

func (w *Watcher) stopped(ctx context.Context) bool {
	return w.stopRequested.Load() || ctx.Err() != nil
}

func (w *Watcher) publishProgress(processed, total int) {
	if w.progress != nil {
		w.progress.Progress(processed, total)
	}
}

// cyclePolicy decides what happens once a cycle's queue is drained.
type cyclePolicy interface {
	Next() (again bool, delay time.Duration)
}

// continuousPolicy restarts the cycle after a fixed delay so newly
// added roster entries get picked up and found students drop out.
type continuousPolicy struct {
	delay time.Duration
}

func (p continuousPolicy) Next() (bool, time.Duration) { return true, p.delay }

// oneShotPolicy terminates after a single pass.
type oneShotPolicy struct{}

func (oneShotPolicy) Next() (bool, time.Duration) { return false, 0 }

func policyForMode(mode Mode, delay time.Duration) cyclePolicy {
	if mode == ModeMissing {
		return oneShotPolicy{}
	}
	return continuousPolicy{delay: delay}
}

type cycleOutcome int

const (
	cycleCompleted cycleOutcome = iota
	cycleShutdown
	cycleStopped
)

// Run polls until the consumer stops it, the operator requests a
// shutdown, or a missing-mode pass finishes. Settings are re-read at
// the start of every cycle.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		if w.stopped(ctx) {
			return nil
		}

		s, err := w.settings.Settings(ctx)
		if err != nil {
			return err
		}
		s = s.WithDefaults()

		outcome, err := w.runCycle(ctx, s)
		if err != nil {
			return err
		}
		if outcome != cycleCompleted {
			return nil
		}

		again, delay := policyForMode(s.Mode, s.CycleDelay).Next()
		if !again {
			return nil
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil
		}
	}
}

type batchResult struct {
	batch    Batch
	subs     []canvas.Submission
	users    []canvas.User
	ok       bool
	shutdown bool
}

func (w *Watcher) runCycle(ctx context.Context, s Settings) (cycleOutcome, error) {
	ctx, span := tracer.Start(ctx, "cycle")
	defer span.End()
	start := timezone.Now()

	filter, err := ParseDaysOutFilter(s.DaysOutFilter)
	if err != nil {
		return 0, err
	}

	roster, err := w.roster.Roster(ctx)
	if err != nil {
		return 0, err
	}

	found := map[string]struct{}{}
	if s.Mode == ModeSubmission {
		// read fresh every cycle so a student removed from the found
		// set externally becomes eligible again
		found, err = w.roster.FoundKeys(ctx)
		if err != nil {
			return 0, err
		}
	}

	plan := buildBatches(roster, s, filter, found)
	span.SetAttributes(
		attribute.Int("batches", len(plan.Batches)),
		attribute.Int("students", plan.Total),
		attribute.Int("skipped", len(plan.Skipped)),
	)

	if len(plan.Skipped) > 0 {
		slog.WarnContext(ctx, "students skipped for invalid gradebook references", "count", len(plan.Skipped))
		err := w.sink.RosterSkipped(ctx, plan.Skipped)
		if err != nil {
			slog.WarnContext(ctx, "failed to report skipped students", "err", err)
		}
	}

	w.publishProgress(0, plan.Total)

	if len(plan.Batches) == 0 {
		if s.Mode == ModeMissing {
			err := w.sink.MissingCheckComplete(ctx, MissingReport{
				Elapsed: timezone.Now().Sub(start),
			})
			if err != nil {
				return 0, err
			}
		}
		return cycleCompleted, nil
	}

	gate := NewAuthGate(w.operator, s.AuthDecisionTimeout, s.AuthDefaultDecision)
	clients := newClientCache(w.clients)

	results := make(chan batchResult)
	next, active, processed := 0, 0, 0
	var missing []MissingStudent

	for {
		// the queue index and counters belong to this loop alone,
		// workers only report completion over the channel
		for active < s.MaxConcurrency && next < len(plan.Batches) && !w.stopped(ctx) && !gate.ShuttingDown() {
			batch := plan.Batches[next]
			next++
			// optimistic: count the batch as processed at dispatch so
			// progress reflects in-flight work
			processed += len(batch.Members)
			w.publishProgress(processed, plan.Total)
			active++
			go func() {
				results <- w.fetchBatch(ctx, gate, clients, batch)
			}()
		}
		if active == 0 {
			break
		}

		r := <-results
		active--

		if w.stopped(ctx) || r.shutdown || !r.ok {
			continue
		}

		for _, member := range r.batch.Members {
			switch s.Mode {
			case ModeSubmission:
				event, matched := matchSubmission(member, r.subs, s)
				if !matched {
					continue
				}
				slog.InfoContext(ctx, "submission found",
					"student", event.Student,
					"assignment", event.Assignment,
				)
				err := w.sink.SubmissionFound(ctx, event)
				if err != nil {
					slog.WarnContext(ctx, "failed to report found submission", "err", err)
				}
			case ModeMissing:
				student := aggregateMissing(member, r.subs, r.users, s)
				if len(student.Missing) > 0 {
					missing = append(missing, student)
				}
			}
		}
	}

	if gate.ShuttingDown() {
		slog.InfoContext(ctx, "shutdown requested by operator, tearing down cycle")
		span.SetStatus(codes.Ok, "shutdown requested")
		return cycleShutdown, nil
	}
	if w.stopped(ctx) {
		return cycleStopped, nil
	}

	if s.Mode == ModeMissing {
		err := w.sink.MissingCheckComplete(ctx, MissingReport{
			StudentCount: len(missing),
			Elapsed:      timezone.Now().Sub(start),
			Students:     missing,
		})
		if err != nil {
			return 0, err
		}
	}
	return cycleCompleted, nil
}

func (w *Watcher) fetchBatch(ctx context.Context, gate *AuthGate, clients *clientCache, batch Batch) batchResult {
	ctx, span := tracer.Start(ctx, "fetchBatch")
	defer span.End()
	span.SetAttributes(
		attribute.String("course", batch.CourseId),
		attribute.Int("students", len(batch.Members)),
	)

	if gate.ShuttingDown() {
		return batchResult{batch: batch, shutdown: true}
	}
	if w.stopped(ctx) {
		return batchResult{batch: batch}
	}

	client, err := clients.get(batch.Origin)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "client init failed")
		slog.WarnContext(ctx, "failed to initialize gradebook client, skipping batch",
			"origin", batch.Origin, "err", err)
		return batchResult{batch: batch}
	}

	ids := batch.StudentIds()

	subs, err := client.Submissions(ctx, batch.CourseId, ids)
	if err != nil {
		if errors.Is(err, canvas.ErrUnauthorized) {
			if gate.Resolve(ctx) == DecisionShutdown {
				return batchResult{batch: batch, shutdown: true}
			}
			// the operator chose to continue, the failed call reads
			// as empty data
			subs = nil
		} else {
			span.RecordError(err)
			span.SetStatus(codes.Error, "submissions fetch failed")
			slog.WarnContext(ctx, "submissions fetch failed, skipping batch",
				"course", batch.CourseId, "err", err)
			return batchResult{batch: batch}
		}
	}

	users, err := client.Users(ctx, batch.CourseId, ids)
	if err != nil {
		if errors.Is(err, canvas.ErrUnauthorized) {
			if gate.Resolve(ctx) == DecisionShutdown {
				return batchResult{batch: batch, subs: subs, shutdown: true}
			}
			users = nil
		} else {
			// grades are simply absent for this batch
			slog.WarnContext(ctx, "users fetch failed, proceeding without grades",
				"course", batch.CourseId, "err", err)
			users = nil
		}
	}

	return batchResult{batch: batch, subs: subs, users: users, ok: true}
}

// clientCache memoizes one client per gradebook origin for the
// duration of a cycle.
type clientCache struct {
	factory ClientFactory

	mu      sync.Mutex
	clients map[string]CourseClient
}

func newClientCache(factory ClientFactory) *clientCache {
	return &clientCache{
		factory: factory,
		clients: map[string]CourseClient{},
	}
}

func (c *clientCache) get(origin string) (CourseClient, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	client, ok := c.clients[origin]
	if ok {
		return client, nil
	}
	client, err := c.factory(origin)
	if err != nil {
		return nil, err
	}
	c.clients[origin] = client
	return client, nil
}
