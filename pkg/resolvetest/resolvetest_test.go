package resolvetest_test

import (
	"testing"

	"github.com/crates-vendor/cvmirror/pkg/registry"
	"github.com/crates-vendor/cvmirror/pkg/resolvetest"
)

func TestRequiredOnlyChainSnapshot(t *testing.T) {
	store := registry.NewMemStore().
		Add("A", &registry.Release{Name: "A", Version: "1.0.0", Dependencies: []registry.DependencyRef{
			{RefName: "B", PackageName: "B", Requirement: "^1.0", Kind: registry.Normal},
		}}).
		Add("B", &registry.Release{Name: "B", Version: "1.0.0"})

	resolvetest.New(t, store, nil).
		Root("A", "1.0.0").
		Run()
}

func TestUnparsableRequirementReportsError(t *testing.T) {
	store := registry.NewMemStore().
		Add("A", &registry.Release{Name: "A", Version: "1.0.0", Dependencies: []registry.DependencyRef{
			{RefName: "B", PackageName: "B", Requirement: "not-a-valid-requirement!!", Kind: registry.Normal},
		}}).
		Add("B", &registry.Release{Name: "B", Version: "1.0.0"})

	resolvetest.New(t, store, nil).
		Root("A", "1.0.0").
		ErrorContains("unparsable").
		Run()
}
