package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportParamsNormalizeDefaults(t *testing.T) {
	opts := ReportParams{}.Normalize()

	assert.Equal(t, 1, opts.Depth)
	assert.True(t, opts.Attributes)
	assert.Equal(t, 0.71, opts.AspectRatio)
	assert.Nil(t, opts.DPI)
	assert.Equal(t, "", opts.Format)
}

func TestReportParamsNormalizeClampsInvalidValues(t *testing.T) {
	cases := []struct {
		name  string
		input ReportParams
		depth int
		ratio float64
	}{
		{name: "zero depth", input: ReportParams{Depth: "0"}, depth: 1, ratio: 0.71},
		{name: "negative depth", input: ReportParams{Depth: "-3"}, depth: 1, ratio: 0.71},
		{name: "text depth", input: ReportParams{Depth: "deep"}, depth: 1, ratio: 0.71},
		{name: "bad ratio", input: ReportParams{Depth: "4", AspectRatio: "wide"}, depth: 4, ratio: 0.71},
		{name: "valid", input: ReportParams{Depth: " 2 ", AspectRatio: "1.5"}, depth: 2, ratio: 1.5},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			opts := tc.input.Normalize()
			assert.Equal(t, tc.depth, opts.Depth)
			assert.Equal(t, tc.ratio, opts.AspectRatio)
		})
	}
}

func TestReportParamsNormalizeAttributesAndDPI(t *testing.T) {
	opts := ReportParams{Attributes: "False", DPI: "300", Format: " SVG "}.Normalize()
	assert.False(t, opts.Attributes)
	require.NotNil(t, opts.DPI)
	assert.Equal(t, 300.0, *opts.DPI)
	assert.Equal(t, "svg", opts.Format)

	opts = ReportParams{Attributes: "True", DPI: "many"}.Normalize()
	assert.True(t, opts.Attributes)
	assert.Nil(t, opts.DPI)
}

func TestReportOptionsCacheKeyIsStable(t *testing.T) {
	a := ReportParams{Depth: "2", Format: "json"}.Normalize()
	b := ReportParams{Depth: "2", Format: "JSON"}.Normalize()
	c := ReportParams{Depth: "3", Format: "json"}.Normalize()

	assert.Equal(t, a.CacheKey(), b.CacheKey())
	assert.NotEqual(t, a.CacheKey(), c.CacheKey())
	assert.Equal(t, "depth=2&attributes=true&aspect_ratio=0.71&format=json", a.CacheKey())
}

func TestStorageLocationURI(t *testing.T) {
	loc := &StorageLocation{Path: "/data/file.csv", StorageRoot: &StorageRoot{Root: "https://example.org/"}}
	assert.Equal(t, "https://example.org/data/file.csv", loc.URI())

	loc = &StorageLocation{Path: "data/file.csv", StorageRoot: &StorageRoot{Root: "file:///srv/"}}
	assert.Equal(t, "file:///srv/data/file.csv", loc.URI())

	var missing *StorageLocation
	assert.Equal(t, "", missing.URI())
}

func TestExternalObjectSourceIdentifier(t *testing.T) {
	id := "https://doi.org/10.1/abc"
	alt := "alt-1"
	assert.Equal(t, id, (&ExternalObject{Identifier: &id, AlternateIdentifier: &alt}).SourceIdentifier())
	assert.Equal(t, alt, (&ExternalObject{AlternateIdentifier: &alt}).SourceIdentifier())
	assert.Equal(t, "", (&ExternalObject{}).SourceIdentifier())
}
