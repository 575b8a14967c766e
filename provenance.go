package plugci

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/plugci/plugci/types"
)

// BuildInfoFromEnv assembles build provenance from the CI environment. The
// pipeline runs under CircleCI; a checkout without CI variables yields a
// provenance with only the timestamp set, which the report stage rejects.
func BuildInfoFromEnv(now time.Time) types.BuildInfo {
	info := types.BuildInfo{
		Time:   now.Unix(),
		Repo:   os.Getenv("CIRCLE_REPOSITORY_URL"),
		Branch: os.Getenv("CIRCLE_BRANCH"),
		Hash:   os.Getenv("CIRCLE_SHA1"),
	}
	if n, err := strconv.Atoi(os.Getenv("CIRCLE_BUILD_NUM")); err == nil {
		info.Number = n
	}
	if pr := prNumberFromEnv(); pr > 0 {
		info.PR = pr
	}
	return info
}

// prNumberFromEnv reads the pull request number. CircleCI exposes it
// directly on forked PRs and only as the PR URL otherwise.
func prNumberFromEnv() int {
	if n, err := strconv.Atoi(os.Getenv("CIRCLE_PR_NUMBER")); err == nil {
		return n
	}
	url := os.Getenv("CIRCLE_PULL_REQUEST")
	if url == "" {
		return 0
	}
	parts := strings.Split(strings.TrimRight(url, "/"), "/")
	if n, err := strconv.Atoi(parts[len(parts)-1]); err == nil {
		return n
	}
	return 0
}
