package simpleblog

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultSweepGrace protects uploads whose record write may still be in flight.
const DefaultSweepGrace = time.Hour

// SweepResult summarizes one reconciliation pass.
type SweepResult struct {
	Scanned  int
	Orphans  []string
	Deleted  int
	Failures int
}

// Reconciler removes blob store objects that no identity or post references.
// It repairs what the best-effort deletes of the request path leave behind.
type Reconciler struct {
	repository Repository
	store      BlobStore
	folders    []string
	grace      time.Duration
	now        func() time.Time
}

// ReconcilerOption configures a Reconciler
type ReconcilerOption func(*Reconciler)

// WithGrace skips objects younger than d.
func WithGrace(d time.Duration) ReconcilerOption {
	return func(r *Reconciler) {
		if d >= 0 {
			r.grace = d
		}
	}
}

// WithSweepClock overrides the time source.
func WithSweepClock(now func() time.Time) ReconcilerOption {
	return func(r *Reconciler) {
		r.now = now
	}
}

// NewReconciler sweeps the avatar and blog folders of appName.
func NewReconciler(repository Repository, store BlobStore, appName string, opts ...ReconcilerOption) *Reconciler {
	if appName == "" {
		appName = DefaultAppName
	}
	r := &Reconciler{
		repository: repository,
		store:      store,
		folders:    []string{FolderPath(appName, FolderAvatars) + "/", FolderPath(appName, FolderBlogs) + "/"},
		grace:      DefaultSweepGrace,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Sweep deletes unreferenced objects older than the grace period. With dryRun
// set it only reports them.
func (r *Reconciler) Sweep(ctx context.Context, dryRun bool) (*SweepResult, error) {
	// list objects before references: an asset stored and persisted between the two
	// reads is then seen as referenced, never as an orphan
	var objects []ObjectMeta
	for _, folder := range r.folders {
		listed, err := r.store.List(ctx, folder)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", folder, err)
		}
		objects = append(objects, listed...)
	}

	ids, err := r.repository.ListAssetIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list referenced assets: %w", err)
	}
	referenced := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		referenced[id] = struct{}{}
	}

	result := &SweepResult{Scanned: len(objects)}
	cutoff := r.now().Add(-r.grace)
	for _, obj := range objects {
		if _, ok := referenced[obj.Key]; ok {
			continue
		}
		if obj.UpdatedAt.After(cutoff) {
			continue
		}
		result.Orphans = append(result.Orphans, obj.Key)
		if dryRun {
			continue
		}
		if err := r.store.Delete(ctx, obj.Key); err != nil {
			slog.Error("Failed to delete orphaned object", "key", obj.Key, "error", err)
			result.Failures++
			continue
		}
		result.Deleted++
	}

	slog.Info("Sweep finished",
		"scanned", result.Scanned,
		"orphans", len(result.Orphans),
		"deleted", result.Deleted,
		"failures", result.Failures,
		"dry_run", dryRun)
	return result, nil
}
