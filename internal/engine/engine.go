// Package engine implements the reconciliation cycle: fetch certificate
// material from the secret store, write what changed, notify the proxy once,
// and publish the outcome.
package engine

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/proxyops/certsyncd/internal/certstore"
	"github.com/proxyops/certsyncd/internal/reload"
	"github.com/proxyops/certsyncd/internal/secrets"
	"github.com/proxyops/certsyncd/pkg/common/iface"
)

// Discovery methods reported in cycle results.
const (
	DiscoveryTagBased = "tag-based"
	DiscoveryExplicit = "explicit"
)

// Failure reasons the engine assigns itself. Together with the secrets
// Reason* codes these keep CycleResult.Failed values a bounded set; the raw
// error detail goes to the log, never into the result.
const (
	ReasonWriteError = "write-error"
	ReasonCollision  = "name-collision"
)

// CycleResult is the immutable record of one reconciliation pass.
type CycleResult struct {
	ID              string            `json:"id"`
	StartedAt       time.Time         `json:"started_at"`
	FinishedAt      time.Time         `json:"finished_at"`
	DiscoveryMethod string            `json:"discovery_method"`
	Fetched         int               `json:"fetched"`
	Changed         []string          `json:"changed"`
	Failed          map[string]string `json:"failed,omitempty"`
	WholesaleError  string            `json:"wholesale_error,omitempty"`
	ReloadTriggered bool              `json:"reload_triggered"`
	ReloadStrategy  string            `json:"reload_strategy,omitempty"`
	ReloadError     string            `json:"reload_error,omitempty"`
}

// Recorder receives cycle outcomes and per-certificate observations. The
// status registry implements it.
type Recorder interface {
	Publish(CycleResult)
	ObserveCertificate(name string, domains []string, notAfter time.Time)
	SetManagedCount(n int)
}

// Store is the slice of the local certificate store the engine drives.
type Store interface {
	WriteIfChanged(ctx context.Context, rec *secrets.Record) certstore.WriteResult
	Count() int
}

// Options select which secrets a cycle reconciles. When a tag filter is
// configured it drives discovery; explicit names are the fallback.
type Options struct {
	Names    []string
	TagKey   string
	TagValue string
}

// Engine runs reconciliation cycles. It holds no cycle state of its own; all
// outcome data lives in the CycleResult it produces.
type Engine struct {
	source     secrets.Source
	store      Store
	dispatcher reload.Dispatcher
	recorder   Recorder
	opts       Options
	log        iface.Logger
	clock      func() time.Time
}

func New(source secrets.Source, store Store, dispatcher reload.Dispatcher, recorder Recorder, opts Options, log iface.Logger) *Engine {
	return &Engine{
		source:     source,
		store:      store,
		dispatcher: dispatcher,
		recorder:   recorder,
		opts:       opts,
		log:        log,
		clock:      time.Now,
	}
}

// SetClock sets the time provider (mainly for testing).
func (e *Engine) SetClock(clock func() time.Time) {
	e.clock = clock
}

// RunCycle executes one full fetch, diff, write, notify pass. It always
// returns a result; errors along the way are captured inside it. A cycle
// that fetched nothing and changed nothing is a normal no-op.
func (e *Engine) RunCycle(ctx context.Context) CycleResult {
	res := CycleResult{
		ID:        uuid.New().String(),
		StartedAt: e.clock(),
		Failed:    make(map[string]string),
	}

	result, err := e.fetch(ctx, &res)
	if err != nil {
		// Wholesale failure: the store could not be queried at all. Zero
		// changes, no reload.
		e.log.Error("fetch failed wholesale: %v", err)
		res.WholesaleError = err.Error()
		return e.finish(res)
	}

	res.Fetched = len(result.Records)
	for _, failure := range result.Failures {
		e.log.Warn("secret %s failed: %s (%s)", failure.Name, failure.Reason, failure.Detail)
		res.Failed[failure.Name] = failure.Reason
	}

	writable := e.excludeCollisions(result.Records, &res)

	for i := range writable {
		rec := &writable[i]
		wr := e.store.WriteIfChanged(ctx, rec)
		switch wr.Outcome {
		case certstore.OutcomeWritten:
			res.Changed = append(res.Changed, rec.Name)
		case certstore.OutcomeFailed:
			e.log.Error("write failed for %s: %s", rec.Name, wr.Reason)
			res.Failed[rec.Name] = ReasonWriteError
			continue
		}
		e.recorder.ObserveCertificate(rec.Name, certstore.LeafDomains([]byte(rec.CertificatePEM)), certstore.LeafExpiry([]byte(rec.CertificatePEM)))
	}
	sort.Strings(res.Changed)

	if len(res.Changed) > 0 {
		res.ReloadStrategy = e.dispatcher.Strategy()
		if err := e.dispatcher.Trigger(ctx); err != nil {
			// The writes stand; reload is best-effort notification.
			e.log.Error("reload failed: %v", err)
			res.ReloadError = err.Error()
		} else {
			res.ReloadTriggered = true
		}
	}

	return e.finish(res)
}

func (e *Engine) fetch(ctx context.Context, res *CycleResult) (secrets.Result, error) {
	if e.opts.TagKey != "" && e.opts.TagValue != "" {
		res.DiscoveryMethod = DiscoveryTagBased
		return e.source.FetchByTag(ctx, e.opts.TagKey, e.opts.TagValue)
	}
	res.DiscoveryMethod = DiscoveryExplicit
	return e.source.FetchByNames(ctx, e.opts.Names)
}

// excludeCollisions drops every record whose target file base is claimed by
// another record in the same cycle. Both sides of a collision are failed;
// writing either would silently clobber the other.
func (e *Engine) excludeCollisions(records []secrets.Record, res *CycleResult) []secrets.Record {
	byBase := make(map[string][]string, len(records))
	for i := range records {
		base := records[i].FileBase()
		byBase[base] = append(byBase[base], records[i].Name)
	}

	writable := records[:0:0]
	for i := range records {
		base := records[i].FileBase()
		if len(byBase[base]) > 1 {
			e.log.Error("file name collision on %q between %v", base, byBase[base])
			res.Failed[records[i].Name] = ReasonCollision
			continue
		}
		writable = append(writable, records[i])
	}
	return writable
}

func (e *Engine) finish(res CycleResult) CycleResult {
	res.FinishedAt = e.clock()
	if len(res.Failed) == 0 {
		res.Failed = nil
	}
	e.recorder.SetManagedCount(e.store.Count())
	e.recorder.Publish(res)
	e.log.Info("cycle %s done: fetched=%d changed=%d failed=%d reload=%v",
		res.ID, res.Fetched, len(res.Changed), len(res.Failed), res.ReloadTriggered)
	return res
}
