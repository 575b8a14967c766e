package tester

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/plugci/plugci/types"
)

const instanceTimeout = 30 * time.Second

// Instance is the HTTP client for the live instance the packaged plugin is
// deployed against.
type Instance struct {
	baseURL string
	client  *http.Client
	log     log.Logger
}

// NewInstance creates a client for the instance at baseURL.
func NewInstance(baseURL string, logger log.Logger) *Instance {
	return &Instance{
		baseURL: baseURL,
		client:  &http.Client{Timeout: instanceTimeout},
		log:     logger,
	}
}

type settingsResponse struct {
	BuildInfo types.InstanceBuildInfo `json:"buildInfo"`
}

type pluginResponse struct {
	Info struct {
		Build types.BuildInfo `json:"build"`
	} `json:"info"`
}

// Settings queries the instance's settings endpoint, confirming it is
// reachable and capturing its build info snapshot.
func (i *Instance) Settings(ctx context.Context) (*types.InstanceBuildInfo, error) {
	var resp settingsResponse
	if err := i.get(ctx, "/api/frontend/settings", &resp); err != nil {
		return nil, fmt.Errorf("instance settings unavailable: %w", err)
	}
	i.log.Info("Instance reachable", "version", resp.BuildInfo.Version, "commit", resp.BuildInfo.Commit)
	return &resp.BuildInfo, nil
}

// PluginBuildHash returns the build provenance hash the instance reports
// for the plugin, or empty when the instance's record carries none.
func (i *Instance) PluginBuildHash(ctx context.Context, pluginID string) (string, error) {
	var resp pluginResponse
	if err := i.get(ctx, "/api/plugins/"+pluginID+"/settings", &resp); err != nil {
		return "", fmt.Errorf("plugin record unavailable: %w", err)
	}
	return resp.Info.Build.Hash, nil
}

func (i *Instance) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, i.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := i.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s returned status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}
