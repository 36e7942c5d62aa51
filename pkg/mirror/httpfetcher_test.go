package mirror_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/crates-vendor/cvmirror/internal/resolve"
	"github.com/crates-vendor/cvmirror/pkg/mirror"
	"github.com/crates-vendor/cvmirror/pkg/registry"
	"gotest.tools/v3/assert"
)

func TestHTTPFetcherSubstitutesTemplate(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte("archive-bytes"))
	}))
	defer srv.Close()

	f := &mirror.HTTPFetcher{URLTemplate: srv.URL + "/crates/{crate}/{crate}-{version}.crate"}
	entry := &resolve.ClosureEntry{Release: &registry.Release{Name: "demo", Version: "1.0.0"}}

	blob, err := f.Fetch(context.Background(), entry)
	assert.NilError(t, err)
	assert.Equal(t, string(blob), "archive-bytes")
	assert.Equal(t, gotPath, "/crates/demo/demo-1.0.0.crate")
}

func TestHTTPFetcherNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := &mirror.HTTPFetcher{URLTemplate: srv.URL + "/{crate}-{version}.crate"}
	entry := &resolve.ClosureEntry{Release: &registry.Release{Name: "demo", Version: "1.0.0"}}

	_, err := f.Fetch(context.Background(), entry)
	assert.ErrorContains(t, err, "unexpected status")
}
