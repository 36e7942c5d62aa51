package cvmirror

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/crates-vendor/cvmirror/pkg/configuration"
	"gotest.tools/v3/assert"
)

func TestConfirmOverwriteSkipsMissingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "does-not-exist")
	c := &Command{Config: &configuration.Config{MirrorDir: dir}}
	assert.NilError(t, c.confirmOverwrite())
}

func TestConfirmOverwriteSkipsEmptyDir(t *testing.T) {
	dir := t.TempDir()
	c := &Command{Config: &configuration.Config{MirrorDir: dir}}
	assert.NilError(t, c.confirmOverwrite())
}

func TestConfirmOverwriteRemovesWithAssumeYes(t *testing.T) {
	dir := t.TempDir()
	assert.NilError(t, os.WriteFile(filepath.Join(dir, "stale.txt"), []byte("x"), 0o644))

	c := &Command{Config: &configuration.Config{MirrorDir: dir}, AssumeYes: true}
	assert.NilError(t, c.confirmOverwrite())

	_, err := os.Stat(dir)
	assert.Assert(t, os.IsNotExist(err))
}
