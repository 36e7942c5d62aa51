package target_test

import (
	"testing"

	"github.com/crates-vendor/cvmirror/pkg/target"
	"gotest.tools/v3/assert"
)

func TestLookupKnownTriple(t *testing.T) {
	d, err := target.Lookup("x86_64-unknown-linux-gnu")
	assert.NilError(t, err)
	assert.Equal(t, d.OS, "linux")
	assert.Equal(t, d.Arch, "x86_64")
	assert.Equal(t, d.Family, "unix")
}

func TestLookupUnknownTriple(t *testing.T) {
	_, err := target.Lookup("sparc-sun-solaris2.10")
	assert.ErrorContains(t, err, "not a known built-in triple")
}

func TestAttrKnownKeys(t *testing.T) {
	d, err := target.Lookup("x86_64-pc-windows-msvc")
	assert.NilError(t, err)

	for key, want := range map[string]string{
		"target_os":            "windows",
		"target_family":        "windows",
		"target_env":           "msvc",
		"target_arch":          "x86_64",
		"target_pointer_width": "64",
		"target_endian":        "little",
		"target":               "x86_64-pc-windows-msvc",
	} {
		got, ok := d.Attr(key)
		assert.Assert(t, ok, "expected %q to be a known attr", key)
		assert.Equal(t, got, want)
	}
}

func TestAttrUnknownKey(t *testing.T) {
	d, err := target.Lookup("x86_64-unknown-linux-gnu")
	assert.NilError(t, err)

	_, ok := d.Attr("target_some_custom_key")
	assert.Assert(t, !ok)
}

func TestValidate(t *testing.T) {
	d := &target.Descriptor{}
	assert.ErrorContains(t, d.Validate(), "target triple is required")

	d.Triple = "x86_64-unknown-linux-gnu"
	assert.ErrorContains(t, d.Validate(), "os is required")

	d.OS = "linux"
	assert.ErrorContains(t, d.Validate(), "arch is required")

	d.Arch = "x86_64"
	assert.NilError(t, d.Validate())
}
