package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"cbird/pkg/index"
)

func TestNewEnvAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, "cbird.yaml")
	env, err := NewEnv(envPath, []byte("roots: [\"/media/photos\"]\n"))
	require.NoError(t, err)

	require.Equal(t, []string{"/media/photos"}, env.Roots)
	require.Equal(t, filepath.Join(dir, ".cbird"), env.IndexDir)
}

func TestNewEnvRejectsRelativeRoot(t *testing.T) {
	_, err := NewEnv("/x/cbird.yaml", []byte("roots: [\"photos\"]\n"))
	require.Error(t, err)
}

func TestNewEnvRequiresAtLeastOneRoot(t *testing.T) {
	_, err := NewEnv("/x/cbird.yaml", []byte("roots: []\n"))
	require.Error(t, err)
}

func TestLoadEnvReadsFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, "cbird.yaml")
	require.NoError(t, os.WriteFile(envPath, []byte("roots: [\"/media\"]\nimageWorkers: 4\n"), 0o600))

	env, err := LoadEnv(envPath)
	require.NoError(t, err)
	require.Equal(t, 4, env.ImageWorkers)
}

func TestNewGeneralGeneratesDefaults(t *testing.T) {
	dir := t.TempDir()
	g, err := NewGeneral(dir)
	require.NoError(t, err)

	settings := g.Get()
	require.Equal(t, Defaults(), settings)
	require.FileExists(t, filepath.Join(dir, "general.json"))
}

func TestGeneralSetPersists(t *testing.T) {
	dir := t.TempDir()
	g, err := NewGeneral(dir)
	require.NoError(t, err)

	updated := g.Get()
	updated.DCTThresh = 10
	require.NoError(t, g.Set(updated))

	g2, err := NewGeneral(dir)
	require.NoError(t, err)
	require.Equal(t, 10, g2.Get().DCTThresh)
}

func TestSettingsApplyOverlaysThresholds(t *testing.T) {
	s := Settings{DCTThresh: 3, CVThresh: 9, MinMatches: 2, MaxMatches: 7}
	params := s.Apply(index.DefaultSearchParams())
	require.Equal(t, 3, params.DCTThresh)
	require.Equal(t, 9, params.CVThresh)
	require.Equal(t, 2, params.MinMatches)
	require.Equal(t, 7, params.MaxMatches)
}
