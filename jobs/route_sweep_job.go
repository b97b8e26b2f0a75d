// Package jobs holds the background work started next to the HTTP server.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/go-co-op/gocron/v2"

	"raceday-api/metrics"
	"raceday-api/storage"
)

// RouteReferences returns every route URL still pointed at by an event or a
// route row.
type RouteReferences interface {
	ReferencedRouteURLs(ctx context.Context) (map[string]struct{}, error)
}

// SweepResult summarizes one sweep.
type SweepResult struct {
	Scanned int
	Deleted int
	Failed  int
}

// RouteSweepJob removes uploaded GPX files that no event references anymore,
// e.g. files left behind when the database insert after an upload failed.
type RouteSweepJob struct {
	refs    RouteReferences
	store   storage.RouteStore
	metrics *metrics.Metrics
	minAge  time.Duration
	now     func() time.Time

	scheduler gocron.Scheduler
}

func NewRouteSweepJob(refs RouteReferences, store storage.RouteStore, m *metrics.Metrics, minAge time.Duration) *RouteSweepJob {
	return &RouteSweepJob{
		refs:    refs,
		store:   store,
		metrics: m,
		minAge:  minAge,
		now:     time.Now,
	}
}

// Start runs a sweep immediately and then every interval until Stop.
func (j *RouteSweepJob) Start(interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("route sweep interval must be positive, got %s", interval)
	}

	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			defer cancel()
			if _, err := j.Sweep(ctx); err != nil {
				slog.Error("route sweep failed", "error", err)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = sched.Shutdown()
		return fmt.Errorf("schedule route sweep: %w", err)
	}

	j.scheduler = sched
	sched.Start()
	slog.Info("route sweep job started", "interval", interval, "min_age", j.minAge)
	return nil
}

// Stop waits for a running sweep to finish.
func (j *RouteSweepJob) Stop() error {
	if j.scheduler == nil {
		return nil
	}
	err := j.scheduler.Shutdown()
	j.scheduler = nil
	slog.Info("route sweep job stopped")
	return err
}

// Sweep deletes unreferenced objects under storage.RoutesPrefix that are
// older than the minimum age. Young objects may belong to an upload whose
// event insert has not committed yet.
func (j *RouteSweepJob) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult

	objects, err := j.store.List(ctx, storage.RoutesPrefix)
	if err != nil {
		return res, fmt.Errorf("list route files: %w", err)
	}
	res.Scanned = len(objects)
	if len(objects) == 0 {
		return res, nil
	}

	urls, err := j.refs.ReferencedRouteURLs(ctx)
	if err != nil {
		return res, err
	}
	refs := j.referencedKeys(urls)

	cutoff := j.now().Add(-j.minAge)
	var errs []error
	for _, obj := range objects {
		if obj.LastModified.After(cutoff) {
			continue
		}
		if _, ok := refs[obj.Key]; ok {
			continue
		}

		if err := j.store.Delete(ctx, obj.Key); err != nil {
			res.Failed++
			errs = append(errs, fmt.Errorf("delete %s: %w", obj.Key, err))
			continue
		}
		res.Deleted++
		j.metrics.RouteFileDeleted(metrics.ReasonSweep)
		slog.Info("removed orphaned route file", "key", obj.Key, "size", obj.Size)
	}

	if res.Deleted > 0 || res.Failed > 0 {
		slog.Info("route sweep finished", "scanned", res.Scanned, "deleted", res.Deleted, "failed", res.Failed)
	}
	return res, errors.Join(errs...)
}

// referencedKeys maps stored route URLs to object keys. URLs outside the
// current base URL (the bucket host or public base changed since they were
// written) still protect the object whose key appears in their path.
func (j *RouteSweepJob) referencedKeys(urls map[string]struct{}) map[string]struct{} {
	keys := make(map[string]struct{}, len(urls))
	for raw := range urls {
		if key, ok := j.store.KeyFromURL(raw); ok {
			keys[key] = struct{}{}
			continue
		}
		u, err := url.Parse(raw)
		if err != nil {
			continue
		}
		if i := strings.Index(u.Path, storage.RoutesPrefix); i >= 0 {
			keys[u.Path[i:]] = struct{}{}
		}
	}
	return keys
}
