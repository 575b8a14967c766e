package plugci

import (
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/plugci/plugci/flags"
	"github.com/plugci/plugci/types"
)

// PipelineManifest is the optional plugci.yaml checked into the plugin
// repository. It carries run metadata that is project-specific rather than
// CI-specific.
type PipelineManifest struct {
	ArtifactsBaseURL string   `yaml:"artifactsBaseUrl"`
	PlatformVersions []string `yaml:"platformVersions"`
	Commands         struct {
		Backend  string `yaml:"backend"`
		Frontend string `yaml:"frontend"`
		E2E      string `yaml:"e2e"`
	} `yaml:"commands"`
}

// Config holds the application configuration
type Config struct {
	WorkDir string // project checkout the pipeline operates on
	CIDir   string // workspace directory

	Backend     bool // build stage mode
	BackendCmd  string
	FrontendCmd string
	E2ECmd      string

	InstanceURL  string // live instance for the test stage
	TestTemplate string

	StoreDir        string // directory backing the store client
	StoreBaseURL    string
	UploadArtifacts bool

	ArtifactsBaseURL string
	PlatformVersions []string

	Build types.BuildInfo
	Log   log.Logger
}

// NewConfig creates a new Config from cli context
func NewConfig(ctx *cli.Context, logger log.Logger) (*Config, error) {
	cfg := &Config{
		WorkDir:         ctx.String(flags.WorkDir.Name),
		CIDir:           ctx.String(flags.CIDir.Name),
		Backend:         ctx.Bool(flags.Backend.Name),
		BackendCmd:      ctx.String(flags.BackendCmd.Name),
		FrontendCmd:     ctx.String(flags.FrontendCmd.Name),
		E2ECmd:          ctx.String(flags.E2ECmd.Name),
		InstanceURL:     ctx.String(flags.InstanceURL.Name),
		TestTemplate:    ctx.String(flags.TestTemplate.Name),
		StoreDir:        ctx.String(flags.StoreDir.Name),
		StoreBaseURL:    ctx.String(flags.StoreBaseURL.Name),
		UploadArtifacts: ctx.Bool(flags.UploadArtifacts.Name),
		Build:           BuildInfoFromEnv(time.Now()),
		Log:             logger,
	}

	if err := cfg.loadManifest(ctx.String(flags.PipelineConfig.Name)); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadManifest overlays plugci.yaml under the CLI flags: flags win where
// both are set. A missing manifest is fine; projects without one rely on
// the defaults.
func (c *Config) loadManifest(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		c.Log.Debug("No pipeline manifest", "path", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	var m PipelineManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	c.ArtifactsBaseURL = m.ArtifactsBaseURL
	c.PlatformVersions = m.PlatformVersions
	if c.BackendCmd == "" {
		c.BackendCmd = m.Commands.Backend
	}
	if c.FrontendCmd == "" {
		c.FrontendCmd = m.Commands.Frontend
	}
	if c.E2ECmd == "" {
		c.E2ECmd = m.Commands.E2E
	}
	c.Log.Debug("Loaded pipeline manifest", "path", path)
	return nil
}
