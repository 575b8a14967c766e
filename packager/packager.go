// Package packager implements the package stage: it merges every build
// job's dist output into one canonical distribution tree, stamps the plugin
// manifest with build provenance, produces the verified zip artifact and
// stages a local sandbox environment for the test stage.
package packager

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/log"

	"github.com/plugci/plugci/manifest"
	"github.com/plugci/plugci/types"
	"github.com/plugci/plugci/workspace"
)

const (
	// MinPackageSize is the smallest archive considered viable. Anything
	// below it is an empty or truncated zip.
	MinPackageSize = 3000

	// InfoFilename is the package details record inside the packages dir.
	InfoFilename = "info.json"

	// Stage names the package job folder.
	Stage = "package"

	srcDirName     = "src"
	docsDirName    = "docs"
	pluginsDirName = "plugins"
	envFilename    = "custom.ini"
)

// Config holds the package stage configuration.
type Config struct {
	Workspace *workspace.Workspace
	WorkDir   string // project checkout, may hold a pre-existing dist
	Build     types.BuildInfo
	Log       log.Logger
}

// Packager runs the package stage.
type Packager struct {
	cfg Config
}

// New creates a package stage.
func New(cfg Config) (*Packager, error) {
	if cfg.Workspace == nil {
		return nil, fmt.Errorf("workspace is required")
	}
	return &Packager{cfg: cfg}, nil
}

// Result carries what the package stage produced: the persisted package
// details and the stamped manifest.
type Result struct {
	Info     *types.PackageInfo
	Manifest types.PluginManifest
}

// Run assembles the canonical distribution tree and produces the package
// artifacts.
func (p *Packager) Run(ctx context.Context) (*Result, error) {
	w := p.cfg.Workspace

	job, err := w.Allocate(Stage)
	if err != nil {
		return nil, err
	}

	for _, dir := range []string{w.PackagesDir(), w.DistDir(), w.TestEnvDir()} {
		if err := workspace.RecreateDir(dir); err != nil {
			return nil, err
		}
	}

	// Plugin identity comes from the project manifest; the canonical tree
	// is keyed by it.
	src, err := manifest.Load(filepath.Join(p.cfg.WorkDir, srcDirName))
	if err != nil {
		return nil, err
	}
	pluginID := src.Manifest.ID
	canonical := filepath.Join(w.DistDir(), pluginID)
	if err := os.MkdirAll(canonical, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", canonical, err)
	}

	if err := p.merge(canonical); err != nil {
		return nil, err
	}

	mf, err := manifest.Load(canonical)
	if err != nil {
		return nil, err
	}
	if err := mf.StampBuild(p.cfg.Build); err != nil {
		return nil, err
	}
	if err := mf.Save(); err != nil {
		return nil, err
	}

	info, err := p.pack(canonical, mf.Manifest)
	if err != nil {
		return nil, err
	}

	if err := workspace.WriteJSONFile(filepath.Join(w.PackagesDir(), InfoFilename), info); err != nil {
		return nil, err
	}
	if err := p.writeEnvConfig(); err != nil {
		return nil, err
	}
	if err := w.RecordStats(job); err != nil {
		return nil, err
	}
	return &Result{Info: info, Manifest: mf.Manifest}, nil
}

// merge unions every contribution into the canonical tree: first a
// pre-existing local dist in the working directory, then each build job's
// dist subfolder in lexicographic job name order. A path contributed twice
// fails the stage; the tree is left detectably incomplete rather than
// silently overwritten.
func (p *Packager) merge(canonical string) error {
	localDist := filepath.Join(p.cfg.WorkDir, "dist")
	if workspace.DirExists(localDist) {
		p.cfg.Log.Debug("Merging local dist folder", "dir", localDist)
		if err := workspace.MergeDir(localDist, canonical); err != nil {
			return err
		}
	}

	jobs, err := p.cfg.Workspace.Jobs()
	if err != nil {
		return err
	}
	for _, name := range jobs {
		jobDist := filepath.Join(p.cfg.Workspace.JobDir(name), "dist")
		if !workspace.DirExists(jobDist) {
			continue
		}
		p.cfg.Log.Debug("Merging job dist folder", "job", name)
		if err := workspace.MergeDir(jobDist, canonical); err != nil {
			return err
		}
	}
	return nil
}

// pack zips the canonical tree, verifies the archive and extracts it into
// the sandbox plugins directory. A docs directory inside the tree is
// packaged as a separate archive.
func (p *Packager) pack(canonical string, mf types.PluginManifest) (*types.PackageInfo, error) {
	w := p.cfg.Workspace

	archiveName := fmt.Sprintf("%s-%s.zip", mf.ID, mf.Info.Version)
	archivePath := filepath.Join(w.PackagesDir(), archiveName)

	// The archive is rooted at a single top-level directory named after
	// the plugin id, so extraction lands at plugins/<id>.
	written, err := ZipDir(canonical, mf.ID, archivePath, p.cfg.Build)
	if err != nil {
		return nil, err
	}
	p.cfg.Log.Info("Packaged plugin", "archive", archiveName, "files", written)

	details, err := p.verify(archivePath, archiveName, written)
	if err != nil {
		return nil, err
	}
	info := &types.PackageInfo{Plugin: *details}

	docsDir := filepath.Join(canonical, docsDirName)
	if workspace.DirExists(docsDir) {
		docsName := fmt.Sprintf("%s-%s-docs.zip", mf.ID, mf.Info.Version)
		docsPath := filepath.Join(w.PackagesDir(), docsName)
		if _, err := ZipDir(docsDir, docsDirName, docsPath, p.cfg.Build); err != nil {
			return nil, err
		}
		docsDetails, err := Details(docsPath, docsName)
		if err != nil {
			return nil, err
		}
		info.Docs = docsDetails
		p.cfg.Log.Info("Packaged docs", "archive", docsName)
	}
	return info, nil
}

// verify checks the archive size against the minimum threshold, computes
// its details and round-trips it through extraction into the sandbox. An
// extraction entry count that differs from what was written means a
// corrupted archive.
func (p *Packager) verify(archivePath, archiveName string, written int) (*types.PackageDetails, error) {
	details, err := Details(archivePath, archiveName)
	if err != nil {
		return nil, err
	}
	if details.Size < MinPackageSize {
		return nil, types.NewIntegrityError(archiveName,
			fmt.Sprintf("archive size %d is below the minimum of %d bytes", details.Size, MinPackageSize))
	}

	pluginsDir := filepath.Join(p.cfg.Workspace.TestEnvDir(), pluginsDirName)
	extracted, err := Unzip(archivePath, pluginsDir)
	if err != nil {
		return nil, err
	}
	if extracted != written {
		return nil, types.NewIntegrityError(archiveName,
			fmt.Sprintf("archive extracted %d files, expected %d", extracted, written))
	}
	return details, nil
}

// writeEnvConfig writes the minimal instance configuration pointing the
// sandbox at its plugins directory.
func (p *Packager) writeEnvConfig() error {
	w := p.cfg.Workspace
	pluginsDir, err := filepath.Abs(filepath.Join(w.TestEnvDir(), pluginsDirName))
	if err != nil {
		return err
	}
	content := fmt.Sprintf("[paths]\nplugins = %s\n", pluginsDir)
	path := filepath.Join(w.TestEnvDir(), envFilename)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
