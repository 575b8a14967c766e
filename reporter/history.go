package reporter

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/sourcegraph/conc/pool"

	"github.com/plugci/plugci/store"
	"github.com/plugci/plugci/tester"
	"github.com/plugci/plugci/types"
)

// updateHistory merges the freshly published run into the run-scoped,
// per-plugin and global history indexes, uploads the logo asset and, when
// requested, the package set and test artifacts. All of this runs after the
// job record is committed; the indexes follow at-least-once convergence
// rather than transactional multi-key consistency.
func (r *Reporter) updateHistory(ctx context.Context, report *types.BuildReport) error {
	logoRef := r.uploadLogo(ctx, report)

	record := types.HistoryRecord{
		PluginID: report.Plugin.ID,
		Name:     report.Plugin.Name,
		Logo:     logoRef,
		Build:    r.cfg.Build,
		Version:  report.Plugin.Info.Version,
	}

	historyKey := store.HistoryKey(report.Plugin.ID, r.cfg.Build)
	if err := r.mergeIndex(ctx, historyKey, record); err != nil {
		return err
	}

	if r.cfg.UploadArtifacts {
		r.uploadArtifacts(ctx, report)
	}

	if err := r.mergeIndex(ctx, store.PluginIndexKey(report.Plugin.ID), record); err != nil {
		return err
	}
	return r.mergeGlobalIndex(ctx, record)
}

// uploadLogo pushes the manifest's logo asset to the store and returns its
// remote reference. Logo upload is best-effort; a missing or failed logo
// leaves the history record without one.
func (r *Reporter) uploadLogo(ctx context.Context, report *types.BuildReport) string {
	logo := report.Plugin.Info.Logos.Large
	if logo == "" {
		logo = report.Plugin.Info.Logos.Small
	}
	if logo == "" {
		return ""
	}

	localPath := filepath.Join(r.cfg.Workspace.DistDir(), report.Plugin.ID, filepath.FromSlash(logo))
	key := store.LogoKey(report.Plugin.ID, filepath.Base(logo))
	ref, err := r.cfg.Store.UploadLogo(ctx, localPath, key)
	if err != nil {
		r.cfg.Log.Error("Logo upload failed", "key", key, "err", err)
		return ""
	}
	return ref
}

// mergeIndex reads the index at key, replaces the record under the current
// branch or PR and writes it back. The default on a missing index is a
// fresh empty index per call. Read-merge-write is last-writer-wins per key;
// entries for other branches and PRs are carried through untouched.
func (r *Reporter) mergeIndex(ctx context.Context, key string, record types.HistoryRecord) error {
	idx := types.NewHistoryIndex()
	if _, err := r.cfg.Store.ReadJSON(ctx, key, idx); err != nil {
		return fmt.Errorf("failed to read history index %s: %w", key, err)
	}
	// A stored index may carry null maps.
	if idx.Branches == nil {
		idx.Branches = make(map[string]types.HistoryRecord)
	}
	if idx.PRs == nil {
		idx.PRs = make(map[string]types.HistoryRecord)
	}

	if r.cfg.Build.IsPR() {
		idx.PRs[strconv.Itoa(r.cfg.Build.PR)] = record
	} else {
		idx.Branches[r.cfg.Build.Branch] = record
	}

	if err := r.cfg.Store.WriteJSON(ctx, key, idx, nil); err != nil {
		return fmt.Errorf("failed to write history index %s: %w", key, err)
	}
	r.cfg.Log.Debug("Merged history index", "key", key)
	return nil
}

// mergeGlobalIndex updates the cross-plugin index mapping plugin ids to
// their latest record.
func (r *Reporter) mergeGlobalIndex(ctx context.Context, record types.HistoryRecord) error {
	key := store.GlobalIndexKey()
	idx := make(types.GlobalIndex)
	if _, err := r.cfg.Store.ReadJSON(ctx, key, &idx); err != nil {
		return fmt.Errorf("failed to read global index %s: %w", key, err)
	}
	idx[record.PluginID] = record
	if err := r.cfg.Store.WriteJSON(ctx, key, idx, nil); err != nil {
		return fmt.Errorf("failed to write global index %s: %w", key, err)
	}
	return nil
}

// uploadArtifacts pushes the package set and test artifacts to the
// run-scoped prefix. These side uploads are best-effort and never gate
// pipeline success; failures are logged for the operator.
func (r *Reporter) uploadArtifacts(ctx context.Context, report *types.BuildReport) {
	prefix := store.RunPrefix(report.Plugin.ID, r.cfg.Build)

	p := pool.New().WithErrors().WithContext(ctx)
	p.Go(func(ctx context.Context) error {
		return r.cfg.Store.UploadPackages(ctx, r.cfg.Workspace.PackagesDir(), prefix)
	})
	p.Go(func(ctx context.Context) error {
		return r.cfg.Store.UploadTestFiles(ctx, r.cfg.Workspace.JobDir(tester.Stage), prefix)
	})
	if err := p.Wait(); err != nil {
		r.cfg.Log.Error("Best-effort artifact upload failed", "prefix", prefix, "err", err)
	}
}
