package mirror

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/crates-vendor/cvmirror/internal/resolve"
	"github.com/crates-vendor/cvmirror/pkg/registry"
	"github.com/crates-vendor/cvmirror/pkg/target"
	"gotest.tools/v3/assert"
)

func TestIndexFilePathLayout(t *testing.T) {
	cases := map[string]string{
		"a":     "1/a",
		"ab":    "2/ab",
		"abc":   "3/a/abc",
		"serde": "se/rd/serde",
		"TOKIO": "to/ki/tokio",
	}
	for name, want := range cases {
		assert.Equal(t, indexFilePath(name), want)
	}
}

func TestRecordValidation(t *testing.T) {
	schema, err := compileRecordSchema()
	assert.NilError(t, err)

	rec := toRecord(&resolve.ClosureEntry{Release: &registry.Release{
		Name: "demo", Version: "1.0.0",
		Dependencies: []registry.DependencyRef{
			{RefName: "b", PackageName: "b", Requirement: "^1.0", Kind: registry.Normal},
		},
		Features: map[string][]string{},
	}})
	assert.NilError(t, validate(schema, rec))
}

type stubFetcher struct{}

func (stubFetcher) Fetch(_ context.Context, e *resolve.ClosureEntry) ([]byte, error) {
	return []byte("archive:" + string(e.Release.Name) + "@" + e.Release.Version), nil
}

func resolveDemo(t *testing.T) resolve.Closure {
	t.Helper()
	w := &resolve.Walker{
		Store:  registry.NewMemStore().Add("demo", &registry.Release{Name: "demo", Version: "1.0.0", Features: map[string][]string{}}),
		Target: mustTarget(t),
	}
	c, err := w.Resolve([]resolve.Root{{Name: "demo", Version: "1.0.0"}})
	assert.NilError(t, err)
	return c
}

func TestFileWriterWritesLayout(t *testing.T) {
	dir := t.TempDir()
	closure := resolveDemo(t)

	fw := &FileWriter{Dir: dir, Fetcher: stubFetcher{}}
	assert.NilError(t, fw.Write(context.Background(), closure, 4))

	cfgBytes, err := os.ReadFile(filepath.Join(dir, "index", "config.json"))
	assert.NilError(t, err)
	var cfg configJSON
	assert.NilError(t, json.Unmarshal(cfgBytes, &cfg))
	assert.Assert(t, strings.HasSuffix(cfg.DL, "registry"))

	indexBytes, err := os.ReadFile(filepath.Join(dir, "index", indexFilePath("demo")))
	assert.NilError(t, err)
	assert.Assert(t, strings.Contains(string(indexBytes), `"name":"demo"`))

	archiveBytes, err := os.ReadFile(filepath.Join(dir, archivePath("demo", "1.0.0")))
	assert.NilError(t, err)
	assert.Equal(t, string(archiveBytes), "archive:demo@1.0.0")

	_, err = os.Stat(filepath.Join(dir, "index", ".git"))
	assert.NilError(t, err)
}

func TestLockfileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	closure := resolveDemo(t)

	l := NewLockfile("v1", closure)
	assert.NilError(t, WriteLockfile(dir, l))

	loaded, err := LoadLockfile(dir)
	assert.NilError(t, err)
	assert.Equal(t, len(loaded.Entries), 1)
	assert.Equal(t, loaded.Entries[0].Name, "demo")
}

func TestLockfilePruneDropsMissing(t *testing.T) {
	l := &Lockfile{Entries: []LockfileEntry{
		{Name: "gone", Version: "1.0.0"},
		{Name: "demo", Version: "1.0.0"},
	}}

	current := resolveDemo(t)

	dropped := l.Prune(current)
	assert.DeepEqual(t, dropped, []string{"gone@1.0.0"})
	assert.Equal(t, len(l.Entries), 1)
}

func mustTarget(t *testing.T) *target.Descriptor {
	t.Helper()
	d, err := target.Lookup("x86_64-unknown-linux-gnu")
	assert.NilError(t, err)
	return d
}
