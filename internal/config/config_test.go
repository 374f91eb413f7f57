package config_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"pcode/internal/config"
	"pcode/pkg/interpreter"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	cfg, err := config.Load("testdata/pcode.toml")
	require.NoError(t, err)

	want := config.Config{
		Run: config.RunConfig{
			Step:     true,
			Speed:    250,
			MaxSteps: 10000,
			MaxDepth: interpreter.DefaultMaxDepth, // not in the file, kept from Default
			Seed:     42,
		},
		Logging: config.LogConfig{Verbose: true},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadErrors(t *testing.T) {
	_, err := config.Load("testdata/unknown.toml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Turbo")

	_, err = config.Load("testdata/syntax.toml")
	assert.Error(t, err)

	_, err = config.Load("testdata/absent.toml")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDumpThenLoad(t *testing.T) {
	cfg := config.Default
	cfg.Run.Speed = 40
	cfg.Logging.NoColor = true

	var buf bytes.Buffer
	require.NoError(t, config.Dump(&buf, cfg))

	file := filepath.Join(t.TempDir(), "dumped.toml")
	require.NoError(t, os.WriteFile(file, buf.Bytes(), 0o644))

	got, err := config.Load(file)
	require.NoError(t, err)
	if diff := cmp.Diff(cfg, got); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}
