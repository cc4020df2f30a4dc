package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetFullVersion(t *testing.T) {
	defer func(v, c, d string) { Version, GitCommit, BuildDate = v, c, d }(Version, GitCommit, BuildDate)

	Version, GitCommit, BuildDate = "1.2.0", "0123456789abcdef", "2026-10-19"
	full := GetFullVersion()
	assert.Contains(t, full, "1.2.0 (commit: 0123456")
	assert.NotContains(t, full, "89abcdef")
	assert.Contains(t, full, runtime.GOOS+"/"+runtime.GOARCH)

	GitCommit = "unknown"
	assert.Contains(t, GetFullVersion(), "commit: unknown")
	assert.Equal(t, "1.2.0", Get().Version)
}
