package robot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTuning_SaveLoad(t *testing.T) {
	file := filepath.Join(t.TempDir(), DefaultTuningFile)
	want := DefaultTuning()
	want.Geometry.AngleOffset = 148
	want.Motion.Descent = []float64{-25, -27}
	require.NoError(t, want.Save(file))

	got, err := LoadTuning(file)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestTuning_PartialKeepsDefaults(t *testing.T) {
	file := filepath.Join(t.TempDir(), "partial.yaml")
	data := "version: 1\ngeometry:\n  angle_offset: 152\nmotion:\n  jog_step: 0.5\n"
	require.NoError(t, os.WriteFile(file, []byte(data), 0644))

	got, err := LoadTuning(file)
	require.NoError(t, err)

	def := DefaultTuning()
	assert.Equal(t, 152.0, got.Geometry.AngleOffset)
	assert.Equal(t, def.Geometry.B, got.Geometry.B)
	assert.Equal(t, 0.5, got.Motion.JogStep)
	assert.Equal(t, def.Motion.Descent, got.Motion.Descent)
	assert.Equal(t, def.Planner, got.Planner)
}

func TestTuning_Rejects(t *testing.T) {
	dir := t.TempDir()
	tests := map[string]string{
		"version":  "version: 7\n",
		"geometry": "version: 1\ngeometry:\n  b: -1\n",
		"limits":   "version: 1\nlimits:\n  min_angle: 200\n  max_angle: 100\n",
		"motion":   "version: 1\nmotion:\n  descent: []\n",
		"syntax":   "version: [1\n",
	}
	for name, data := range tests {
		file := filepath.Join(dir, name+".yaml")
		require.NoError(t, os.WriteFile(file, []byte(data), 0644))
		_, err := LoadTuning(file)
		assert.Error(t, err, name)
	}
}

func TestTuning_Missing(t *testing.T) {
	file := filepath.Join(t.TempDir(), "none.yaml")
	_, err := LoadTuning(file)
	assert.Error(t, err)

	got, err := LoadTuningOrDefault(file)
	require.NoError(t, err)
	assert.Equal(t, DefaultTuning(), got)
}
