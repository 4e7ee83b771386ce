package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFileRefsScanLegacyBareString(t *testing.T) {
	var refs FileRefs
	err := refs.Scan("uploads/po-123.pdf")
	assert.NoError(t, err)
	assert.Equal(t, FileRefs{"uploads/po-123.pdf"}, refs)
	assert.Equal(t, "uploads/po-123.pdf", refs.First())
}

func TestFileRefsScanJSONArray(t *testing.T) {
	var refs FileRefs
	err := refs.Scan(`["a.pdf","b.pdf"]`)
	assert.NoError(t, err)
	assert.Equal(t, FileRefs{"a.pdf", "b.pdf"}, refs)

	var fromBytes FileRefs
	err = fromBytes.Scan([]byte(`["c.pdf"]`))
	assert.NoError(t, err)
	assert.Equal(t, FileRefs{"c.pdf"}, fromBytes)
}

func TestFileRefsScanEmpty(t *testing.T) {
	var refs FileRefs
	assert.NoError(t, refs.Scan(nil))
	assert.Nil(t, refs)

	assert.NoError(t, refs.Scan("  "))
	assert.Nil(t, refs)
	assert.Equal(t, "", refs.First())
}

func TestFileRefsScanMalformedArray(t *testing.T) {
	var refs FileRefs
	err := refs.Scan(`["a.pdf"`)
	assert.Error(t, err)
}

func TestFileRefsValueAlwaysJSONArray(t *testing.T) {
	v, err := FileRefs{"a.pdf", "b.pdf"}.Value()
	assert.NoError(t, err)
	assert.Equal(t, `["a.pdf","b.pdf"]`, v)

	// Nil normalizes to an empty array, never NULL or a bare string.
	v, err = FileRefs(nil).Value()
	assert.NoError(t, err)
	assert.Equal(t, `[]`, v)
}

func TestFileRefsRoundTrip(t *testing.T) {
	original := FileRefs{"x.pdf", "y.pdf", "z.pdf"}
	v, err := original.Value()
	assert.NoError(t, err)

	var restored FileRefs
	assert.NoError(t, restored.Scan(v))
	assert.Equal(t, original, restored)
}
