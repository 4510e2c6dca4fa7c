package vars

import (
	"bytes"
	"runtime/debug"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCommitShort(t *testing.T) {
	old := Commit
	t.Cleanup(func() { Commit = old })

	Commit = "da15c174cd2ada1ad247906536c101e8f6799def"
	assert.Equal(t, "da15c17", CommitShort())
	assert.Equal(t, "da15c17", Info().CommitShort)

	Commit = "abc"
	assert.Equal(t, "abc", CommitShort())
}

func TestUserAgent(t *testing.T) {
	assert.Equal(t, "srcrelay/"+Version+" (+https://github.com/woozymasta/srcrelay)", UserAgent())
}

func TestApplyVCS(t *testing.T) {
	oldCommit, oldTime := Commit, BuildTime
	t.Cleanup(func() { Commit, BuildTime = oldCommit, oldTime })

	Commit = "unknown"
	applyVCS([]debug.BuildSetting{
		{Key: "vcs.revision", Value: "0123456789abcdef"},
		{Key: "vcs.time", Value: "2025-03-04T05:06:07Z"},
		{Key: "vcs.modified", Value: "true"},
	})
	assert.Equal(t, "0123456789abcdef", Commit)
	assert.Equal(t, time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC), BuildTime)

	// linker values win
	Commit = "ldflags"
	applyVCS([]debug.BuildSetting{{Key: "vcs.revision", Value: "other"}})
	assert.Equal(t, "ldflags", Commit)
}

func TestPrint(t *testing.T) {
	var buf bytes.Buffer
	Print(&buf)

	out := buf.String()
	assert.Contains(t, out, "srcrelay "+Version)
	assert.Contains(t, out, "license:  AGPL-3.0")
	assert.Contains(t, out, "go:       go")
}
