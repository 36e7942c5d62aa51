package registry_test

import (
	"errors"
	"testing"

	"github.com/crates-vendor/cvmirror/pkg/registry"
	"gotest.tools/v3/assert"
)

func TestMemStoreAddAndGet(t *testing.T) {
	store := registry.NewMemStore().
		Add("serde", &registry.Release{Name: "serde", Version: "1.0.0"}).
		Add("serde", &registry.Release{Name: "serde", Version: "1.0.1"})

	rec, err := store.Get("serde")
	assert.NilError(t, err)
	assert.Equal(t, len(rec.Releases), 2)
	assert.Equal(t, rec.Releases[1].Version, "1.0.1")
}

func TestMemStoreCaseInsensitive(t *testing.T) {
	store := registry.NewMemStore().Add("Serde", &registry.Release{Name: "Serde", Version: "1.0.0"})

	rec, err := store.Get("serde")
	assert.NilError(t, err)
	assert.Equal(t, rec.Name, registry.Name("Serde"))
}

func TestMemStoreNotFound(t *testing.T) {
	store := registry.NewMemStore()

	_, err := store.Get("nonexistent")
	assert.Assert(t, errors.Is(err, registry.ErrNotFound))
}

func TestReleaseString(t *testing.T) {
	r := &registry.Release{Name: "tokio", Version: "1.28.0"}
	assert.Equal(t, r.String(), "tokio@1.28.0")
}
