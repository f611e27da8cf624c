package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleGraph = `
metadata:
  name: bench
  description: test rig
modules:
  - name: src
    type: noise
    params:
      min: -1.0
      max: 1.0
      period_ms: 100
transformers:
  - name: scaled
    type: linear_transform
    params:
      input: src.value
      from: [-1.0, 1.0]
      to: [0.0, 1.0]
pipes:
  - from: scaled.value
    to: ui.level
`

func TestLoadGraph(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bench.yml")
	require.NoError(t, os.WriteFile(path, []byte(sampleGraph), 0o644))

	g, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "bench", g.Metadata.Name)
	assert.Equal(t, "test rig", g.Metadata.Description)
	require.Len(t, g.Modules, 1)
	assert.Equal(t, "src", g.Modules[0].Name)
	assert.Equal(t, "noise", g.Modules[0].Type)
	require.Len(t, g.Transformers, 1)
	require.Len(t, g.Pipes, 1)
	assert.Equal(t, "scaled.value", g.Pipes[0].From)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	assert.Error(t, err)
}

func TestDecodeInto(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bench.yml")
	require.NoError(t, os.WriteFile(path, []byte(sampleGraph), 0o644))
	g, err := Load(path)
	require.NoError(t, err)

	type noiseParams struct {
		Min      float64 `yaml:"min"`
		Max      float64 `yaml:"max"`
		PeriodMs int64   `yaml:"period_ms"`
	}
	p, err := DecodeInto[noiseParams](g.Modules[0].Params)
	require.NoError(t, err)
	assert.Equal(t, noiseParams{Min: -1, Max: 1, PeriodMs: 100}, p)
}

func TestDecodeIntoEmptyParams(t *testing.T) {
	var e Entry
	type empty struct{}
	_, err := DecodeInto[empty](e.Params)
	assert.NoError(t, err)
}
