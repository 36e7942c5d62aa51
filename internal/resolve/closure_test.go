package resolve_test

import (
	"testing"

	"github.com/crates-vendor/cvmirror/internal/resolve"
	"github.com/crates-vendor/cvmirror/pkg/registry"
	"github.com/crates-vendor/cvmirror/pkg/target"
	"github.com/google/go-cmp/cmp"
	"gotest.tools/v3/assert"
)

func linuxTarget(t *testing.T) *target.Descriptor {
	t.Helper()
	d, err := target.Lookup("x86_64-unknown-linux-gnu")
	assert.NilError(t, err)
	return d
}

func windowsTarget(t *testing.T) *target.Descriptor {
	t.Helper()
	d, err := target.Lookup("x86_64-pc-windows-msvc")
	assert.NilError(t, err)
	return d
}

func dep(refName string, pkg registry.Name, req string, kind registry.DependencyKind, optional bool) registry.DependencyRef {
	return registry.DependencyRef{
		RefName: refName, PackageName: pkg, Requirement: req, Kind: kind, Optional: optional,
	}
}

// Scenario 1: required-only chain.
func TestRequiredOnlyChain(t *testing.T) {
	store := registry.NewMemStore().
		Add("A", &registry.Release{Name: "A", Version: "1.0.0", Dependencies: []registry.DependencyRef{
			dep("B", "B", "^1.0", registry.Normal, false),
		}}).
		Add("B",
			&registry.Release{Name: "B", Version: "1.0.0", Dependencies: []registry.DependencyRef{
				dep("C", "C", "^1.0", registry.Normal, false),
			}},
			&registry.Release{Name: "B", Version: "1.1.0", Dependencies: []registry.DependencyRef{
				dep("C", "C", "^1.0", registry.Normal, false),
			}},
		).
		Add("C", &registry.Release{Name: "C", Version: "1.0.0"})

	w := &resolve.Walker{Store: store, Target: linuxTarget(t)}
	closure, err := w.Resolve([]resolve.Root{{Name: "A", Version: "1.0.0"}})
	assert.NilError(t, err)

	assert.Equal(t, len(closure), 3)
	assertDownloaded(t, closure, "A", "1.0.0", true)
	assertDownloaded(t, closure, "B", "1.1.0", true)
	assertDownloaded(t, closure, "C", "1.0.0", true)
}

// Scenario 2: root-maximize pulls an optional dependency: every root
// feature is enabled (so "x" fires its dep:B entry, which also
// suppresses B's implicit feature) and every optional dependency of a
// root is force-activated.
func TestOptionalPulledByRootMaximize(t *testing.T) {
	store := registry.NewMemStore().
		Add("A", &registry.Release{
			Name: "A", Version: "1.0.0",
			Dependencies: []registry.DependencyRef{dep("B", "B", "^1.0", registry.Normal, true)},
			Features: map[string][]string{
				"default": {},
				"x":       {"dep:B"},
			},
		}).
		Add("B", &registry.Release{Name: "B", Version: "1.0.0"})

	w := &resolve.Walker{Store: store, Target: linuxTarget(t)}
	closure, err := w.Resolve([]resolve.Root{{Name: "A", Version: "1.0.0"}})
	assert.NilError(t, err)

	assert.Equal(t, len(closure), 2)
	assertDownloaded(t, closure, "B", "1.0.0", true)
}

// Scenario 3: a weak feature request only takes effect because
// another entry independently activates the dependency.
func TestWeakFeatureActivation(t *testing.T) {
	store := registry.NewMemStore().
		Add("A", &registry.Release{
			Name: "A", Version: "1.0.0",
			Dependencies: []registry.DependencyRef{
				dep("B", "B", "^1.0", registry.Normal, true),
				dep("C", "C", "^1.0", registry.Normal, true),
			},
			Features: map[string][]string{
				"default": {},
				"f":       {"C", "B?/extra"},
			},
		}).
		Add("B", &registry.Release{Name: "B", Version: "1.0.0", Features: map[string][]string{"extra": {}}}).
		Add("C", &registry.Release{Name: "C", Version: "1.0.0"})

	w := &resolve.Walker{Store: store, Target: linuxTarget(t)}
	closure, err := w.Resolve([]resolve.Root{{Name: "A", Version: "1.0.0"}})
	assert.NilError(t, err)

	// Roots maximize: every feature in F is enabled, so "f" fires
	// regardless; B is force-activated as an optional dependency of a
	// root, and "extra" propagates via the weak entry once B is
	// independently active.
	entry, ok := closure.Get("B", "1.0.0")
	assert.Assert(t, ok)
	assert.Assert(t, entry.Download)
	_, ok = closure.Get("C", "1.0.0")
	assert.Assert(t, ok)
}

// Scenario 4: a target-guarded dependency stays in the closure but is
// marked index-only when the guard evaluates false.
func TestTargetGuardedDependencyIsIndexOnly(t *testing.T) {
	d := dep("D", "D", "^1.0", registry.Normal, false)
	d.TargetGuard = `cfg(target_os = "linux")`

	store := registry.NewMemStore().
		Add("A", &registry.Release{Name: "A", Version: "1.0.0", Dependencies: []registry.DependencyRef{d}}).
		Add("D", &registry.Release{Name: "D", Version: "1.0.0"})

	w := &resolve.Walker{Store: store, Target: windowsTarget(t)}
	closure, err := w.Resolve([]resolve.Root{{Name: "A", Version: "1.0.0"}})
	assert.NilError(t, err)

	assertDownloaded(t, closure, "D", "1.0.0", false)
}

// Scenario 5: the newest release is withdrawn and must be skipped.
func TestWithdrawnNewestSkipped(t *testing.T) {
	store := registry.NewMemStore().
		Add("A", &registry.Release{Name: "A", Version: "1.0.0", Dependencies: []registry.DependencyRef{
			dep("B", "B", "^1.0", registry.Normal, false),
		}}).
		Add("B",
			&registry.Release{Name: "B", Version: "1.0.0"},
			&registry.Release{Name: "B", Version: "1.1.0", Withdrawn: true},
		)

	w := &resolve.Walker{Store: store, Target: linuxTarget(t)}
	closure, err := w.Resolve([]resolve.Root{{Name: "A", Version: "1.0.0"}})
	assert.NilError(t, err)

	assertDownloaded(t, closure, "B", "1.0.0", true)
	_, ok := closure.Get("B", "1.1.0")
	assert.Assert(t, !ok)
}

// Scenario 6: two roots request the same dependency under different
// feature sets; the release appears once, with the union of features
// applied to its own dependents.
func TestReentryWithMoreFeatures(t *testing.T) {
	bx := dep("B", "B", "^1.0", registry.Normal, false)
	bx.Features = []string{"x"}
	by := dep("B", "B", "^1.0", registry.Normal, false)
	by.Features = []string{"y"}

	store := registry.NewMemStore().
		Add("A", &registry.Release{Name: "A", Version: "1.0.0", Dependencies: []registry.DependencyRef{bx}}).
		Add("C", &registry.Release{Name: "C", Version: "1.0.0", Dependencies: []registry.DependencyRef{by}}).
		Add("B", &registry.Release{
			Name: "B", Version: "1.0.0",
			Dependencies: []registry.DependencyRef{dep("DX", "DX", "^1.0", registry.Normal, true), dep("DY", "DY", "^1.0", registry.Normal, true)},
			Features: map[string][]string{
				"x": {"dep:DX"},
				"y": {"dep:DY"},
			},
		}).
		Add("DX", &registry.Release{Name: "DX", Version: "1.0.0"}).
		Add("DY", &registry.Release{Name: "DY", Version: "1.0.0"})

	w := &resolve.Walker{Store: store, Target: linuxTarget(t)}
	closure, err := w.Resolve([]resolve.Root{
		{Name: "A", Version: "1.0.0"},
		{Name: "C", Version: "1.0.0"},
	})
	assert.NilError(t, err)

	bCount := 0
	for _, e := range closure.Entries() {
		if e.Release.Name == "B" {
			bCount++
		}
	}
	assert.Equal(t, bCount, 1)
	_, ok := closure.Get("DX", "1.0.0")
	assert.Assert(t, ok)
	_, ok = closure.Get("DY", "1.0.0")
	assert.Assert(t, ok)
}

func TestRootsAlwaysDownloadFlagged(t *testing.T) {
	store := registry.NewMemStore().Add("A", &registry.Release{Name: "A", Version: "1.0.0"})
	w := &resolve.Walker{Store: store, Target: linuxTarget(t)}
	closure, err := w.Resolve([]resolve.Root{{Name: "A", Version: "1.0.0"}})
	assert.NilError(t, err)
	assertDownloaded(t, closure, "A", "1.0.0", true)
}

func TestIdempotence(t *testing.T) {
	store := registry.NewMemStore().
		Add("A", &registry.Release{Name: "A", Version: "1.0.0", Dependencies: []registry.DependencyRef{
			dep("B", "B", "^1.0", registry.Normal, false),
		}}).
		Add("B", &registry.Release{Name: "B", Version: "1.0.0"})

	run := func() resolve.Closure {
		w := &resolve.Walker{Store: store, Target: linuxTarget(t)}
		c, err := w.Resolve([]resolve.Root{{Name: "A", Version: "1.0.0"}})
		assert.NilError(t, err)
		return c
	}

	first, second := run(), run()
	assert.Equal(t, len(first), len(second))
	for key, e := range first {
		other, ok := second[key]
		assert.Assert(t, ok)
		assert.Equal(t, e.Download, other.Download)
	}
}

func TestRootNotFoundIsFatal(t *testing.T) {
	store := registry.NewMemStore()
	w := &resolve.Walker{Store: store, Target: linuxTarget(t)}
	_, err := w.Resolve([]resolve.Root{{Name: "missing", Version: "1.0.0"}})
	assert.ErrorContains(t, err, "not found")
}

// Spec.md §8: enlarging the root set cannot remove entries from, or
// downgrade download-flags in, the closure.
func TestMonotonicEnlargingRootSet(t *testing.T) {
	store := registry.NewMemStore().
		Add("A", &registry.Release{Name: "A", Version: "1.0.0", Dependencies: []registry.DependencyRef{
			dep("B", "B", "^1.0", registry.Normal, false),
		}}).
		Add("B", &registry.Release{Name: "B", Version: "1.0.0"}).
		Add("C", &registry.Release{Name: "C", Version: "1.0.0", Dependencies: []registry.DependencyRef{
			dep("D", "D", "^1.0", registry.Normal, false),
		}}).
		Add("D", &registry.Release{Name: "D", Version: "1.0.0"})

	small := closureNames(t, store, []resolve.Root{{Name: "A", Version: "1.0.0"}})
	large := closureNames(t, store, []resolve.Root{
		{Name: "A", Version: "1.0.0"},
		{Name: "C", Version: "1.0.0"},
	})

	for name, wantDownload := range small {
		gotDownload, ok := large[name]
		assert.Assert(t, ok, "enlarging the root set dropped %s from the closure", name)
		assert.Equal(t, gotDownload, wantDownload || gotDownload,
			"enlarging the root set downgraded the download-flag for %s", name)
	}

	if diff := cmp.Diff(map[string]bool{"A@1.0.0": true, "B@1.0.0": true}, small); diff != "" {
		t.Fatalf("unexpected small closure (-want +got):\n%s", diff)
	}
}

func closureNames(t *testing.T, store registry.Store, roots []resolve.Root) map[string]bool {
	t.Helper()
	w := &resolve.Walker{Store: store, Target: linuxTarget(t)}
	closure, err := w.Resolve(roots)
	assert.NilError(t, err)

	out := make(map[string]bool, len(closure))
	for _, e := range closure.Entries() {
		out[string(e.Release.Name)+"@"+e.Release.Version] = e.Download
	}
	return out
}

func assertDownloaded(t *testing.T, c resolve.Closure, name registry.Name, version string, want bool) {
	t.Helper()
	e, ok := c.Get(name, version)
	assert.Assert(t, ok, "expected %s@%s in closure", name, version)
	assert.Equal(t, e.Download, want)
}
