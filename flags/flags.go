package flags

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

const EnvVarPrefix = "PLUGCI"

// prefixEnvVar names the environment variable for a flag.
func prefixEnvVar(name string) []string {
	return []string{fmt.Sprintf("%s_%s", EnvVarPrefix, name)}
}

var (
	WorkDir = &cli.StringFlag{
		Name:    "workdir",
		Value:   ".",
		EnvVars: prefixEnvVar("WORKDIR"),
		Usage:   "Project checkout the pipeline operates on",
	}
	CIDir = &cli.StringFlag{
		Name:    "ci-dir",
		Value:   "ci",
		EnvVars: prefixEnvVar("CI_DIR"),
		Usage:   "Workspace directory for job folders, dist, packages and the sandbox",
	}
	Backend = &cli.BoolFlag{
		Name:    "backend",
		Value:   false,
		EnvVars: prefixEnvVar("BACKEND"),
		Usage:   "Run the backend build instead of the frontend build",
	}
	BackendCmd = &cli.StringFlag{
		Name:    "backend-cmd",
		Value:   "",
		EnvVars: prefixEnvVar("BACKEND_CMD"),
		Usage:   "Override for the backend build command",
	}
	FrontendCmd = &cli.StringFlag{
		Name:    "frontend-cmd",
		Value:   "",
		EnvVars: prefixEnvVar("FRONTEND_CMD"),
		Usage:   "Override for the frontend build command",
	}
	E2ECmd = &cli.StringFlag{
		Name:    "e2e-cmd",
		Value:   "",
		EnvVars: prefixEnvVar("E2E_CMD"),
		Usage:   "Override for the end-to-end test runner command",
	}
	InstanceURL = &cli.StringFlag{
		Name:    "instance-url",
		Value:   "http://localhost:3000",
		EnvVars: prefixEnvVar("INSTANCE_URL"),
		Usage:   "Base URL of the live instance the test stage runs against",
	}
	TestTemplate = &cli.StringFlag{
		Name:    "test-template",
		Value:   "",
		EnvVars: prefixEnvVar("TEST_TEMPLATE"),
		Usage:   "Test-definition template staged for the e2e runner",
	}
	StoreDir = &cli.StringFlag{
		Name:    "store-dir",
		Value:   "",
		EnvVars: prefixEnvVar("STORE_DIR"),
		Usage:   "Directory backing the remote store client (required for the report stage)",
	}
	StoreBaseURL = &cli.StringFlag{
		Name:    "store-base-url",
		Value:   "",
		EnvVars: prefixEnvVar("STORE_BASE_URL"),
		Usage:   "Public base URL prepended to store keys in remote references",
	}
	UploadArtifacts = &cli.BoolFlag{
		Name:    "upload-artifacts",
		Value:   false,
		EnvVars: prefixEnvVar("UPLOAD_ARTIFACTS"),
		Usage:   "Additionally upload the package set and test artifacts to the run prefix",
	}
	PipelineConfig = &cli.StringFlag{
		Name:    "config",
		Value:   "plugci.yaml",
		EnvVars: prefixEnvVar("CONFIG"),
		Usage:   "Pipeline manifest with artifacts base URL and target platform versions",
	}
	LogLevel = &cli.StringFlag{
		Name:    "log.level",
		Value:   "info",
		EnvVars: prefixEnvVar("LOG_LEVEL"),
		Usage:   "Log level (trace, debug, info, warn, error, crit)",
	}
)

var Flags = []cli.Flag{
	WorkDir,
	CIDir,
	Backend,
	BackendCmd,
	FrontendCmd,
	E2ECmd,
	InstanceURL,
	TestTemplate,
	StoreDir,
	StoreBaseURL,
	UploadArtifacts,
	PipelineConfig,
	LogLevel,
}
