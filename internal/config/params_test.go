package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultParamsValid(t *testing.T) {
	require.NoError(t, DefaultParams().Validate())
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Params)
		errs   string
	}{
		{"zero cell size", func(p *Params) { p.CellSize = 0 }, "cell_size"},
		{"negative mosaic cell size", func(p *Params) { p.MosaicCellSize = -1 }, "mosaic_cell_size"},
		{"class code out of range", func(p *Params) { p.ClassCode = 300 }, "class_code"},
		{"inverted height band", func(p *Params) { p.MinHeight = 60 }, "min_height"},
		{"compactness above one", func(p *Params) { p.MinCompactness = 1.5 }, "min_compactness"},
		{"zero footprint area", func(p *Params) { p.MinFootprintArea = 0 }, "min_footprint_area"},
		{"zero segment size", func(p *Params) { p.MinSegmentSize = 0 }, "min_segment_size"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := DefaultParams()
			tc.mutate(&p)
			err := p.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errs)
		})
	}
}

func TestOverridesApply(t *testing.T) {
	t.Run("partial overlay", func(t *testing.T) {
		cell := 0.5
		slope := 15.0
		o := &Overrides{CellSize: &cell, MinSlope: &slope}

		got := DefaultParams()
		o.Apply(&got)

		want := DefaultParams()
		want.CellSize = 0.5
		want.MinSlope = 15
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("params mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("nil overlay is a no-op", func(t *testing.T) {
		var o *Overrides
		got := DefaultParams()
		o.Apply(&got)
		if diff := cmp.Diff(DefaultParams(), got); diff != "" {
			t.Errorf("params mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestLoadOverrides(t *testing.T) {
	dir := t.TempDir()

	t.Run("valid file", func(t *testing.T) {
		path := filepath.Join(dir, "params.yaml")
		require.NoError(t, os.WriteFile(path, []byte("cell_size: 0.5\nmin_roof_height: 3.0\n"), 0644))

		o, err := LoadOverrides(path)
		require.NoError(t, err)
		require.NotNil(t, o.CellSize)
		assert.Equal(t, 0.5, *o.CellSize)
		require.NotNil(t, o.MinRoofHeight)
		assert.Equal(t, 3.0, *o.MinRoofHeight)
		assert.Nil(t, o.ClassCode, "omitted fields stay unset")
	})

	t.Run("wrong extension", func(t *testing.T) {
		path := filepath.Join(dir, "params.json")
		require.NoError(t, os.WriteFile(path, []byte("{}"), 0644))
		_, err := LoadOverrides(path)
		assert.ErrorContains(t, err, ".yaml")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadOverrides(filepath.Join(dir, "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := filepath.Join(dir, "broken.yaml")
		require.NoError(t, os.WriteFile(path, []byte("cell_size: [not a number"), 0644))
		_, err := LoadOverrides(path)
		assert.ErrorContains(t, err, "parse overrides")
	})
}
