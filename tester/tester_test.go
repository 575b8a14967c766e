package tester

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
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

// fakeInstance serves the two endpoints the stage probes, reporting the
// given build hash for plugin my-panel.
func fakeInstance(t *testing.T, hash string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/frontend/settings", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"buildInfo": {"version": "10.0.0", "commit": "aabbcc", "env": "dev"}}`)
	})
	mux.HandleFunc("/api/plugins/my-panel/settings", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `{"info": {"build": {"hash": %q}}}`, hash)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// stubRunner plays the e2e harness: it drops files into the output
// directory and fills in counts.
type stubRunner struct {
	passed, failed int
	files          []string
	err            error
	ran            bool
}

func (s *stubRunner) Run(_ context.Context, outputDir string, results *types.TestResults) error {
	s.ran = true
	if s.err != nil {
		return s.err
	}
	for _, name := range s.files {
		path := filepath.Join(outputDir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
			return err
		}
	}
	results.Passed = s.passed
	results.Failed = s.failed
	return nil
}

func newTester(t *testing.T, ws *workspace.Workspace, url string, runner E2ERunner) *Tester {
	t.Helper()
	tester, err := New(Config{
		Workspace:   ws,
		PluginID:    "my-panel",
		Build:       types.BuildInfo{Hash: "abc123", Number: 17},
		InstanceURL: url,
		Runner:      runner,
		Log:         testLogger(),
	})
	require.NoError(t, err)
	return tester
}

func TestRun_CollectsResultsAndScreenshots(t *testing.T) {
	ws := workspace.New(filepath.Join(t.TempDir(), "ci"), testLogger())
	srv := fakeInstance(t, "abc123")
	runner := &stubRunner{passed: 7, failed: 2, files: []string{"panel.png", "shots/detail.PNG", "trace.log"}}

	results, err := newTester(t, ws, srv.URL, runner).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, runner.ran)
	assert.Equal(t, 7, results.Passed)
	assert.Equal(t, 2, results.Failed)
	assert.Empty(t, results.Error)
	require.NotNil(t, results.Instance)
	assert.Equal(t, "10.0.0", results.Instance.Version)

	// Screenshots are job-relative, slash-separated and sorted; the log
	// file is not a screenshot.
	assert.Equal(t, []string{"e2e-results/panel.png", "e2e-results/shots/detail.PNG"}, results.Screenshots)

	var persisted types.TestResults
	require.NoError(t, workspace.ReadJSONFile(filepath.Join(ws.JobDir(Stage), ResultsFilename), &persisted))
	assert.Equal(t, results.Passed, persisted.Passed)
	assert.Equal(t, results.Screenshots, persisted.Screenshots)
}

func TestRun_VersionMismatchIsCaptured(t *testing.T) {
	ws := workspace.New(filepath.Join(t.TempDir(), "ci"), testLogger())
	srv := fakeInstance(t, "someoneelse")
	runner := &stubRunner{}

	results, err := newTester(t, ws, srv.URL, runner).Run(context.Background())
	require.NoError(t, err, "a mismatch must not abort the stage")
	assert.False(t, runner.ran, "tests must not run against the wrong build")
	assert.Contains(t, results.Error, "abc123")
	assert.Contains(t, results.Error, "someoneelse")
	assert.Zero(t, results.Passed)

	// The results record is persisted either way.
	assert.FileExists(t, filepath.Join(ws.JobDir(Stage), ResultsFilename))
}

func TestRun_EmptyInstanceHashIsTolerated(t *testing.T) {
	ws := workspace.New(filepath.Join(t.TempDir(), "ci"), testLogger())
	srv := fakeInstance(t, "")
	runner := &stubRunner{passed: 1}

	results, err := newTester(t, ws, srv.URL, runner).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, runner.ran)
	assert.Empty(t, results.Error)
	assert.Equal(t, 1, results.Passed)
}

func TestRun_UnreachableInstanceIsCaptured(t *testing.T) {
	ws := workspace.New(filepath.Join(t.TempDir(), "ci"), testLogger())
	srv := fakeInstance(t, "abc123")
	srv.Close()
	runner := &stubRunner{}

	results, err := newTester(t, ws, srv.URL, runner).Run(context.Background())
	require.NoError(t, err)
	assert.False(t, runner.ran)
	assert.Contains(t, results.Error, "instance settings unavailable")
}

func TestRun_RunnerErrorIsCaptured(t *testing.T) {
	ws := workspace.New(filepath.Join(t.TempDir(), "ci"), testLogger())
	srv := fakeInstance(t, "abc123")
	runner := &stubRunner{err: fmt.Errorf("browser crashed")}

	results, err := newTester(t, ws, srv.URL, runner).Run(context.Background())
	require.NoError(t, err)
	assert.Contains(t, results.Error, "browser crashed")
}

func TestRun_StagesTemplateFile(t *testing.T) {
	ws := workspace.New(filepath.Join(t.TempDir(), "ci"), testLogger())
	srv := fakeInstance(t, "abc123")

	template := filepath.Join(t.TempDir(), "suite.yaml")
	require.NoError(t, os.WriteFile(template, []byte("steps: []"), 0o644))

	tester, err := New(Config{
		Workspace:    ws,
		PluginID:     "my-panel",
		Build:        types.BuildInfo{Hash: "abc123"},
		InstanceURL:  srv.URL,
		Runner:       &stubRunner{},
		TemplateFile: template,
		Log:          testLogger(),
	})
	require.NoError(t, err)
	_, err = tester.Run(context.Background())
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(ws.Root(), "e2e-temp", "suite.yaml"))
}

func TestNew_RequiresCollaborators(t *testing.T) {
	ws := workspace.New(filepath.Join(t.TempDir(), "ci"), testLogger())

	_, err := New(Config{Runner: &stubRunner{}, InstanceURL: "http://localhost:3000"})
	assert.Error(t, err)

	_, err = New(Config{Workspace: ws, InstanceURL: "http://localhost:3000"})
	assert.Error(t, err)

	_, err = New(Config{Workspace: ws, Runner: &stubRunner{}})
	assert.Error(t, err)
}
