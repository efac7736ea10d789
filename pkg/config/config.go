// Package config loads and validates the engine's static on-disk
// configuration plus a small mutable settings record, following the
// teacher's two-tier split: ConfigEnv's yaml-unmarshal-with-defaults-
// and-validation for fixed startup parameters (pkg/storage/storage.go),
// and ConfigGeneral's mutex-guarded Get/Set for values a running process
// may change (same file).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v2"

	"cbird/pkg/index"
	"cbird/pkg/scanner"
)

// Env is the static configuration read once at startup from cbird.yaml.
// Fields absent from the file fall back to the defaults below.
type Env struct {
	Roots        []string `yaml:"roots"`
	IndexDir     string   `yaml:"indexDir"`
	ImageWorkers int      `yaml:"imageWorkers"`
	VideoWorkers int      `yaml:"videoWorkers"`

	ConfigDir string `yaml:"-"` // directory containing the loaded file
}

// NewEnv parses envYAML (the raw contents of cbird.yaml, found at
// envPath) and fills in every default, validating that every path is
// absolute the way the reference's NewConfigEnv does.
func NewEnv(envPath string, envYAML []byte) (*Env, error) {
	var env Env
	if err := yaml.Unmarshal(envYAML, &env); err != nil {
		return nil, fmt.Errorf("config: unmarshal %s: %w", envPath, err)
	}

	env.ConfigDir = filepath.Dir(envPath)

	if len(env.Roots) == 0 {
		return nil, fmt.Errorf("config: %s: at least one root is required", envPath)
	}
	for _, root := range env.Roots {
		if !filepath.IsAbs(root) {
			return nil, fmt.Errorf("config: root %q is not an absolute path", root)
		}
	}

	if env.IndexDir == "" {
		env.IndexDir = filepath.Join(env.ConfigDir, ".cbird")
	}
	if !filepath.IsAbs(env.IndexDir) {
		return nil, fmt.Errorf("config: indexDir %q is not an absolute path", env.IndexDir)
	}

	if env.ImageWorkers < 0 {
		return nil, fmt.Errorf("config: imageWorkers must be >= 0")
	}
	if env.VideoWorkers < 0 {
		return nil, fmt.Errorf("config: videoWorkers must be >= 0")
	}

	return &env, nil
}

// LoadEnv reads and parses the config file at path.
func LoadEnv(path string) (*Env, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return NewEnv(path, data)
}

// Defaults returns the search-time settings this file persists, sourced
// from index.DefaultSearchParams so a fresh config round-trips to the
// same behavior as passing no overrides at all.
func Defaults() Settings {
	p := index.DefaultSearchParams()
	return Settings{
		DCTThresh:  p.DCTThresh,
		CVThresh:   p.CVThresh,
		MinMatches: p.MinMatches,
		MaxMatches: p.MaxMatches,
		Theme:      "default",
	}
}

// Settings are the mutable, JSON-persisted search defaults a running
// process may change at runtime (the "General" half of the reference's
// split), mirrored back into index.SearchParams by Apply.
type Settings struct {
	DCTThresh  int    `json:"dctThresh"`
	CVThresh   int    `json:"cvThresh"`
	MinMatches int    `json:"minMatches"`
	MaxMatches int    `json:"maxMatches"`
	Theme      string `json:"theme"`
}

// Apply overlays s onto a copy of params's threshold/match fields,
// leaving every other field (Algo, feature counts, flags, ...) alone.
func (s Settings) Apply(params index.SearchParams) index.SearchParams {
	params.DCTThresh = s.DCTThresh
	params.CVThresh = s.CVThresh
	params.MinMatches = s.MinMatches
	params.MaxMatches = s.MaxMatches
	return params
}

// General owns a JSON-persisted Settings record, generated with defaults
// on first use, read/written under a mutex so concurrent requests from a
// future HTTP surface don't race (pkg/storage.ConfigGeneral).
type General struct {
	mu       sync.Mutex
	path     string
	settings Settings
}

// NewGeneral loads dir/general.json, generating it with Defaults() if
// absent.
func NewGeneral(dir string) (*General, error) {
	path := filepath.Join(dir, "general.json")

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeSettings(path, Defaults()); err != nil {
			return nil, fmt.Errorf("config: generate %s: %w", path, err)
		}
	}

	settings, err := readSettings(path)
	if err != nil {
		return nil, err
	}
	return &General{path: path, settings: settings}, nil
}

// Get returns the current settings.
func (g *General) Get() Settings {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.settings
}

// Set persists newSettings to disk and updates the in-memory copy.
func (g *General) Set(newSettings Settings) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := writeSettings(g.path, newSettings); err != nil {
		return err
	}
	g.settings = newSettings
	return nil
}

// ScanParams returns the scanner.Params for e. Env has no scan fields,
// so every field is left at scanner.DefaultParams.
func (e *Env) ScanParams() scanner.Params {
	return scanner.DefaultParams()
}
