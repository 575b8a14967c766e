package builder

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plugci/plugci/types"
	"github.com/plugci/plugci/workspace"
)

func testLogger() log.Logger {
	return log.NewLogger(log.DiscardHandler())
}

// fakeRunner plays the project build command: it writes output into the
// working directory and logs a line through the stage's writer.
type fakeRunner struct {
	name    string
	args    []string
	dir     string
	outputs map[string]string // relative path -> contents, created in dir
	err     error
}

func (f *fakeRunner) Run(_ context.Context, dir string, w io.Writer, name string, args ...string) error {
	f.name = name
	f.args = args
	f.dir = dir
	if w != nil {
		fmt.Fprintln(w, "compiling")
	}
	for rel, contents := range f.outputs {
		path := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
			return err
		}
	}
	return f.err
}

func fixture(t *testing.T) (*workspace.Workspace, string) {
	t.Helper()
	root := t.TempDir()
	ws := workspace.New(filepath.Join(root, "ci"), testLogger())
	workDir := filepath.Join(root, "src")
	require.NoError(t, os.MkdirAll(workDir, 0o755))
	return ws, workDir
}

func TestRun_FrontendCollectsOutputs(t *testing.T) {
	ws, workDir := fixture(t)
	runner := &fakeRunner{outputs: map[string]string{
		"dist/module.js":                 "bundle",
		"dist/plugin.json":               "{}",
		"coverage/coverage-summary.json": "{}",
	}}

	b, err := New(Config{Workspace: ws, WorkDir: workDir, Runner: runner, Log: testLogger()})
	require.NoError(t, err)
	require.NoError(t, b.Run(context.Background()))

	assert.Equal(t, "yarn", runner.name)
	assert.Equal(t, []string{"build", "--coverage"}, runner.args)
	assert.Equal(t, workDir, runner.dir)

	jobDir := ws.JobDir(StageFrontend)
	assert.FileExists(t, filepath.Join(jobDir, "dist", "module.js"))
	assert.FileExists(t, filepath.Join(jobDir, "coverage", "coverage-summary.json"))
	assert.FileExists(t, filepath.Join(jobDir, "build.log"))
	assert.FileExists(t, filepath.Join(jobDir, "stats.json"))

	// The working directory is left clean for the next job.
	assert.NoDirExists(t, filepath.Join(workDir, "dist"))
	assert.NoDirExists(t, filepath.Join(workDir, "coverage"))
}

func TestRun_BackendUsesDescriptor(t *testing.T) {
	ws, workDir := fixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(workDir, DescriptorFile), []byte("//go:build mage"), 0o644))
	runner := &fakeRunner{outputs: map[string]string{"dist/plugin_linux_amd64": "elf"}}

	b, err := New(Config{Workspace: ws, WorkDir: workDir, Backend: true, Runner: runner, Log: testLogger()})
	require.NoError(t, err)
	require.NoError(t, b.Run(context.Background()))

	assert.Equal(t, "mage", runner.name)
	assert.Equal(t, []string{"-v", "buildAll"}, runner.args)
	assert.FileExists(t, filepath.Join(ws.JobDir(StageBackend), "dist", "plugin_linux_amd64"))
}

func TestRun_BackendWithoutDescriptorFails(t *testing.T) {
	ws, workDir := fixture(t)
	runner := &fakeRunner{}

	b, err := New(Config{Workspace: ws, WorkDir: workDir, Backend: true, Runner: runner, Log: testLogger()})
	require.NoError(t, err)

	err = b.Run(context.Background())
	require.Error(t, err)
	assert.True(t, types.IsPreconditionError(err))
	assert.Empty(t, runner.name, "delegate must not run without a descriptor")
}

func TestRun_DelegateFailureStillCollectsOutputs(t *testing.T) {
	ws, workDir := fixture(t)
	runner := &fakeRunner{
		outputs: map[string]string{"dist/partial.js": "incomplete"},
		err:     fmt.Errorf("command yarn exited with code 2"),
	}

	b, err := New(Config{Workspace: ws, WorkDir: workDir, Runner: runner, Log: testLogger()})
	require.NoError(t, err)

	err = b.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exited with code 2")

	// Partial outputs are still inspectable in the job folder.
	assert.FileExists(t, filepath.Join(ws.JobDir(StageFrontend), "dist", "partial.js"))
	assert.NoDirExists(t, filepath.Join(workDir, "dist"))
}

func TestRun_CommandOverrides(t *testing.T) {
	ws, workDir := fixture(t)
	runner := &fakeRunner{}

	b, err := New(Config{Workspace: ws, WorkDir: workDir, FrontendCmd: "npm run build", Runner: runner, Log: testLogger()})
	require.NoError(t, err)
	require.NoError(t, b.Run(context.Background()))

	assert.Equal(t, "npm", runner.name)
	assert.Equal(t, []string{"run", "build"}, runner.args)
}

func TestNew_RequiresCollaborators(t *testing.T) {
	ws, _ := fixture(t)

	_, err := New(Config{Runner: &fakeRunner{}})
	assert.Error(t, err)

	_, err = New(Config{Workspace: ws})
	assert.Error(t, err)
}
