// Package manifest reads and rewrites the plugin.json inside a distribution
// tree. Fields the pipeline does not model are preserved byte-for-byte so a
// stamp-and-save round trip never loses plugin metadata.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/plugci/plugci/types"
)

// Filename is the manifest file name inside a distribution tree.
const Filename = "plugin.json"

// File is a loaded plugin manifest bound to its on-disk location.
type File struct {
	path string
	raw  map[string]json.RawMessage

	Manifest types.PluginManifest
}

// Load reads the manifest from dir. A missing manifest is a precondition
// failure: nothing can be packaged or published without plugin identity.
func Load(dir string) (*File, error) {
	path := filepath.Join(dir, Filename)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, types.NewPreconditionError("plugin manifest", path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	f := &File{path: path}
	if err := json.Unmarshal(data, &f.raw); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &f.Manifest); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if f.Manifest.ID == "" {
		return nil, fmt.Errorf("manifest %s has no plugin id", path)
	}
	return f, nil
}

// LoadFromDist locates the canonical plugin tree inside a dist directory
// and loads its manifest. The dist directory holds exactly one plugin
// directory once the package stage has merged.
func LoadFromDist(distDir string) (*File, error) {
	entries, err := os.ReadDir(distDir)
	if err != nil {
		return nil, types.NewPreconditionError("canonical distribution tree", distDir)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(distDir, e.Name())
		if _, err := os.Stat(filepath.Join(dir, Filename)); err == nil {
			return Load(dir)
		}
	}
	return nil, types.NewPreconditionError("plugin manifest", distDir)
}

// StampBuild writes the build provenance into the manifest's info block.
// The package stage calls this exactly once per run, before zipping.
func (f *File) StampBuild(build types.BuildInfo) error {
	var info map[string]json.RawMessage
	if rawInfo, ok := f.raw["info"]; ok {
		if err := json.Unmarshal(rawInfo, &info); err != nil {
			return fmt.Errorf("failed to parse info block of %s: %w", f.path, err)
		}
	} else {
		info = make(map[string]json.RawMessage)
	}

	rawBuild, err := json.Marshal(build)
	if err != nil {
		return fmt.Errorf("failed to marshal build info: %w", err)
	}
	info["build"] = rawBuild

	rawInfo, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to marshal info block: %w", err)
	}
	f.raw["info"] = rawInfo
	f.Manifest.Info.Build = &build
	return nil
}

// Save persists the manifest back to the location it was loaded from.
func (f *File) Save() error {
	data, err := json.MarshalIndent(f.raw, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", f.path, err)
	}
	if err := os.WriteFile(f.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", f.path, err)
	}
	return nil
}
