package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plugci/plugci/types"
)

const sampleManifest = `{
  "id": "my-panel",
  "name": "My Panel",
  "type": "panel",
  "info": {
    "version": "1.2.3",
    "logos": {"small": "img/logo.svg", "large": "img/logo.svg"},
    "author": {"name": "Example Org"}
  },
  "dependencies": {"platformVersion": ">=9.0.0"}
}`

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, Filename), []byte(content), 0o644))
}

func TestLoad_MissingManifestIsPrecondition(t *testing.T) {
	_, err := Load(t.TempDir())
	require.Error(t, err)
	assert.True(t, types.IsPreconditionError(err))
}

func TestLoad_EmptyIDRejected(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `{"name": "no id"}`)

	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no plugin id")
}

func TestLoad_ParsesIdentity(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, sampleManifest)

	f, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "my-panel", f.Manifest.ID)
	assert.Equal(t, "My Panel", f.Manifest.Name)
	assert.Equal(t, "panel", f.Manifest.Type)
	assert.Equal(t, "1.2.3", f.Manifest.Info.Version)
	assert.Equal(t, "img/logo.svg", f.Manifest.Info.Logos.Large)
	assert.Nil(t, f.Manifest.Info.Build)
}

func TestStampBuild_RoundTripsProvenance(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, sampleManifest)

	f, err := Load(dir)
	require.NoError(t, err)

	build := types.BuildInfo{
		Time:   1724900000,
		Repo:   "https://github.com/example/my-panel",
		Branch: "main",
		Hash:   "abc123",
		Number: 17,
	}
	require.NoError(t, f.StampBuild(build))
	require.NoError(t, f.Save())

	reloaded, err := Load(dir)
	require.NoError(t, err)
	require.NotNil(t, reloaded.Manifest.Info.Build)
	assert.Equal(t, build, *reloaded.Manifest.Info.Build)
}

func TestStampBuild_PreservesUnknownFields(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, sampleManifest)

	f, err := Load(dir)
	require.NoError(t, err)
	require.NoError(t, f.StampBuild(types.BuildInfo{Hash: "def456", Branch: "main", Number: 1}))
	require.NoError(t, f.Save())

	data, err := os.ReadFile(filepath.Join(dir, Filename))
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "dependencies")

	var info map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw["info"], &info))
	assert.Contains(t, info, "author")
	assert.Contains(t, info, "build")
}

func TestLoadFromDist_FindsSinglePluginTree(t *testing.T) {
	distDir := t.TempDir()
	pluginDir := filepath.Join(distDir, "my-panel")
	require.NoError(t, os.MkdirAll(pluginDir, 0o755))
	writeManifest(t, pluginDir, sampleManifest)

	f, err := LoadFromDist(distDir)
	require.NoError(t, err)
	assert.Equal(t, "my-panel", f.Manifest.ID)
}

func TestLoadFromDist_EmptyDistIsPrecondition(t *testing.T) {
	_, err := LoadFromDist(t.TempDir())
	require.Error(t, err)
	assert.True(t, types.IsPreconditionError(err))
}
