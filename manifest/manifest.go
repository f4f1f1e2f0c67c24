// Package manifest handles ul.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/chazu/ul/compiler"
)

// FileName is the name of the configuration file searched for by FindAndLoad.
const FileName = "ul.toml"

// Default limits, matching a chunk's one-byte constant operand.
const (
	DefaultMaxConstants = 256
	DefaultStackDepth   = 256
)

// Manifest represents a ul.toml project configuration.
type Manifest struct {
	Limits Limits       `toml:"limits"`
	Output OutputConfig `toml:"output"`
	Log    LogConfig    `toml:"log"`

	// Dir is the directory containing the ul.toml file (set at load time).
	Dir string `toml:"-"`
}

// Limits bounds what the compiler and VM accept.
type Limits struct {
	MaxConstants int `toml:"max-constants"`
	MaxCode      int `toml:"max-code"`
	StackDepth   int `toml:"stack-depth"`
}

// OutputConfig configures what the driver prints besides the result.
type OutputConfig struct {
	Disassemble bool `toml:"disassemble"`
	Trace       bool `toml:"trace"`
}

// LogConfig configures commonlog.
type LogConfig struct {
	Verbosity int `toml:"verbosity"`
}

// Default returns the configuration used when no ul.toml exists.
func Default() *Manifest {
	return &Manifest{
		Limits: Limits{
			MaxConstants: DefaultMaxConstants,
			StackDepth:   DefaultStackDepth,
		},
	}
}

// Load parses a ul.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	return LoadFile(filepath.Join(dir, FileName))
}

// LoadFile parses the configuration file at path. Keys missing from the file
// keep their defaults; unknown keys are an error.
func LoadFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m := Default()
	md, err := toml.Decode(string(data), m)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}
	return m, nil
}

// FindAndLoad walks up from startDir to find a ul.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// Validate checks the limits against what a chunk and the VM can support.
func (m *Manifest) Validate() error {
	if m.Limits.MaxConstants < 1 || m.Limits.MaxConstants > DefaultMaxConstants {
		return fmt.Errorf("limits.max-constants must be between 1 and %d, got %d",
			DefaultMaxConstants, m.Limits.MaxConstants)
	}
	if m.Limits.MaxCode < 0 {
		return fmt.Errorf("limits.max-code must not be negative, got %d", m.Limits.MaxCode)
	}
	if m.Limits.StackDepth < 1 {
		return fmt.Errorf("limits.stack-depth must be at least 1, got %d", m.Limits.StackDepth)
	}
	if m.Log.Verbosity < 0 {
		return fmt.Errorf("log.verbosity must not be negative, got %d", m.Log.Verbosity)
	}
	return nil
}

// Options converts the limits into compiler options.
func (m *Manifest) Options() compiler.Options {
	return compiler.Options{
		MaxConstants: m.Limits.MaxConstants,
		MaxCodeSize:  m.Limits.MaxCode,
		StackDepth:   m.Limits.StackDepth,
	}
}
