package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetCurrentVersion(t *testing.T) {
	assert.Equal(t, DevVersion, GetCurrentVersion("dev"))
	assert.Equal(t, Version, GetCurrentVersion("prod"))
}

func TestStringFull(t *testing.T) {
	oldCommit, oldBuild := GitCommit, BuildTime
	t.Cleanup(func() { GitCommit, BuildTime = oldCommit, oldBuild })

	GitCommit, BuildTime = "unknown", "unknown"
	assert.Equal(t, "Version="+Version, StringFull())

	GitCommit, BuildTime = "0123456789abcdef", "2026-01-02T03:04:05Z"
	assert.Equal(t, "Version="+Version+" Commit=01234567 BuildTime=2026-01-02T03:04:05Z", StringFull())
}
